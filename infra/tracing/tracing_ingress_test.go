package tracing

import (
	"net/http"
	"net/http/httptest"
	"pilotage/testinfra"
	"testing"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/gomega"
	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/mocktracer"
)

func TestTracingIngress(t *testing.T) {
	RegisterTestingT(t)

	tracer := mocktracer.New()
	opentracing.SetGlobalTracer(tracer)
	defer opentracing.SetGlobalTracer(opentracing.NoopTracer{})

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(TracingIngress())
	router.GET("/v1/projects/:id", func(c *gin.Context) {
		if opentracing.SpanFromContext(c.Request.Context()) == nil {
			c.Status(http.StatusTeapot)
			return
		}
		c.Status(http.StatusOK)
	})
	router.GET("/v1/failing", func(c *gin.Context) {
		c.Status(http.StatusBadGateway)
	})

	t.Run("should start a root span named after the route", func(t *testing.T) {
		tracer.Reset()

		req := httptest.NewRequest(http.MethodGet, "/v1/projects/10?x=1", nil)
		status, _, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusOK))

		spans := tracer.FinishedSpans()
		Expect(len(spans)).To(Equal(1))
		s := spans[0]
		Expect(s.OperationName).To(Equal("GET /v1/projects/:id"))
		Expect(s.ParentID).To(Equal(0))
		Expect(s.Tag("http.url")).To(Equal("/v1/projects/10?x=1"))
		Expect(s.Tag("http.status_code")).To(Equal(uint16(200)))
		Expect(s.Tag("error")).To(BeNil())
	})

	t.Run("should continue the caller trace", func(t *testing.T) {
		tracer.Reset()

		clientSpan := tracer.StartSpan("client")
		req := httptest.NewRequest(http.MethodGet, "/v1/projects/10", nil)
		Expect(tracer.Inject(clientSpan.Context(), opentracing.HTTPHeaders, opentracing.HTTPHeadersCarrier(req.Header))).To(BeNil())
		status, _, _ := testinfra.ExecuteRequest(req, router)
		clientSpan.Finish()
		Expect(status).To(Equal(http.StatusOK))

		spans := tracer.FinishedSpans()
		Expect(len(spans)).To(Equal(2))
		client, server := spans[1], spans[0]
		Expect(client.OperationName).To(Equal("client"))
		Expect(server.ParentID).To(Equal(client.SpanContext.SpanID))
		Expect(server.SpanContext.TraceID).To(Equal(client.SpanContext.TraceID))
	})

	t.Run("should flag server errors", func(t *testing.T) {
		tracer.Reset()

		status, _, _ := testinfra.ExecuteRequest(httptest.NewRequest(http.MethodGet, "/v1/failing", nil), router)
		Expect(status).To(Equal(http.StatusBadGateway))

		spans := tracer.FinishedSpans()
		Expect(len(spans)).To(Equal(1))
		Expect(spans[0].Tag("http.status_code")).To(Equal(uint16(502)))
		Expect(spans[0].Tag("error")).To(Equal(true))
	})
}
