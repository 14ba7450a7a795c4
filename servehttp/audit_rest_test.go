package servehttp_test

import (
	"net/http"
	"net/http/httptest"
	"pilotage/audit"
	"pilotage/bizerror"
	"pilotage/servehttp"
	"pilotage/session"
	"pilotage/testinfra"
	"testing"

	. "github.com/onsi/gomega"
)

func TestAuditAPI(t *testing.T) {
	RegisterTestingT(t)

	audits := &auditStub{}
	router, auth := newRouter(testinfra.BuildSecCtx(2))
	servehttp.RegisterAuditHandler(router, audits, auth)

	t.Run("should require the entity", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/audit-records?entityType=BORDEREAU", nil)
		status, body, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusBadRequest))
		Expect(body).To(ContainSubstring("'EntityID' failed on the 'required' tag"))
	})

	t.Run("should pass the query through", func(t *testing.T) {
		var q audit.AuditQuery
		audits.query = func(aq audit.AuditQuery, sec *session.Context) ([]audit.AuditRecord, error) {
			q = aq
			if !sec.IsAdmin() {
				return nil, bizerror.ErrForbidden
			}
			return []audit.AuditRecord{}, nil
		}
		req := httptest.NewRequest(http.MethodGet, "/v1/audit-records?entityType=BORDEREAU&entityId=12", nil)
		status, _, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusForbidden))
		Expect(q).To(Equal(audit.AuditQuery{EntityType: "BORDEREAU", EntityID: "12"}))
	})
}
