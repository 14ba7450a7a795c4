package persistence_test

import (
	"context"
	"pilotage/domain"
	"pilotage/testinfra"
	"testing"

	. "github.com/onsi/gomega"
	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/mocktracer"
)

func TestGormTracing(t *testing.T) {
	RegisterTestingT(t)

	tracer := mocktracer.New()
	opentracing.SetGlobalTracer(tracer)
	defer opentracing.SetGlobalTracer(opentracing.NoopTracer{})

	t.Run("sql spans should be skipped without parent span", func(t *testing.T) {
		testDatabase := gormTracingTestSetup(t)
		defer testinfra.StopTestDatabase(testDatabase)
		tracer.Reset()

		r := []domain.Project{}
		Expect(testDatabase.DS.GormDB().Find(&r).Error).To(BeNil())
		Expect(testDatabase.DS.GormDBWithContext(context.Background()).Find(&r).Error).To(BeNil())
		Expect(len(r)).To(BeZero())
		Expect(len(tracer.FinishedSpans())).To(Equal(0))
	})

	t.Run("sql spans should be children of the request span", func(t *testing.T) {
		testDatabase := gormTracingTestSetup(t)
		defer testinfra.StopTestDatabase(testDatabase)
		tracer.Reset()

		clientSpan := tracer.StartSpan("client")
		ctx := opentracing.ContextWithSpan(context.Background(), clientSpan)

		r := []domain.Project{}
		Expect(testDatabase.DS.GormDBWithContext(ctx).Find(&r).Error).To(BeNil())
		clientSpan.Finish()

		spans := tracer.FinishedSpans()
		Expect(len(spans)).To(Equal(2))
		s0 := spans[1]
		Expect(s0.OperationName).To(Equal("client"))
		Expect(s0.ParentID).To(BeZero())

		s1 := spans[0]
		Expect(s1.OperationName).To(Equal("sql"))
		Expect(s1.ParentID).To(Equal(s0.SpanContext.SpanID))
		Expect(s1.SpanContext.TraceID).To(Equal(s0.SpanContext.TraceID))
	})
}

func gormTracingTestSetup(t *testing.T) *testinfra.TestDatabase {
	db := testinfra.StartTestDatabase("pilotage")
	if err := db.DS.GormDB().AutoMigrate(&domain.Project{}).Error; err != nil {
		t.Fatal(err)
	}
	return db
}
