package servehttp_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"pilotage/bizerror"
	"pilotage/domain/bordereau"
	"pilotage/esign"
	"pilotage/servehttp"
	"pilotage/session"
	"pilotage/storage"
	"pilotage/testinfra"
	"strings"
	"testing"

	"github.com/fundwit/go-commons/types"
	. "github.com/onsi/gomega"
)

func TestBordereauAPI(t *testing.T) {
	RegisterTestingT(t)

	bordereaux := &bordereauStub{}
	signatures := &signatureStub{}
	router, auth := newRouter(adminSec)
	servehttp.RegisterBordereauHandler(router, bordereaux, signatures, auth)

	t.Run("should generate a document", func(t *testing.T) {
		var gen *bordereau.BordereauGeneration
		bordereaux.generateDocument = func(g *bordereau.BordereauGeneration, sec *session.Context) (*bordereau.GenerationResult, error) {
			gen = g
			return &bordereau.GenerationResult{Bordereau: &bordereau.Bordereau{ID: 5}}, nil
		}
		req := httptest.NewRequest(http.MethodPost, "/v1/bordereaux",
			strings.NewReader(`{"projectId":"3","type":"BA","period":{"year":2024,"month":2}}`))
		status, _, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusCreated))
		Expect(gen.ProjectID).To(Equal(types.ID(3)))
		Expect(gen.Type).To(Equal(bordereau.TypeBA))
		Expect(gen.Period.Year).To(Equal(2024))
	})

	t.Run("should report renderer failures as bad gateway", func(t *testing.T) {
		bordereaux.generateDocument = func(g *bordereau.BordereauGeneration, sec *session.Context) (*bordereau.GenerationResult, error) {
			return nil, bizerror.External("renderer", errors.New("print page error: status 500"))
		}
		req := httptest.NewRequest(http.MethodPost, "/v1/bordereaux", strings.NewReader(`{"projectId":"3","type":"BL"}`))
		status, body, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusBadGateway))
		Expect(body).To(ContainSubstring(`"code":"common.external_service_failure"`))
	})

	t.Run("should stream a version file", func(t *testing.T) {
		bordereaux.readVersionFile = func(versionID types.ID, sec *session.Context) (*storage.FileObject, []byte, error) {
			Expect(versionID).To(Equal(types.ID(9)))
			return &storage.FileObject{FileName: "BA-P-1.pdf", ContentType: "application/pdf"}, []byte("%PDF"), nil
		}
		req := httptest.NewRequest(http.MethodGet, "/v1/bordereau-versions/9/file", nil)
		status, body, headers := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusOK))
		Expect(body).To(Equal("%PDF"))
		Expect(headers.Get("Content-Type")).To(Equal("application/pdf"))
		Expect(headers.Get("Content-Disposition")).To(Equal(`attachment; filename="BA-P-1.pdf"`))
	})

	t.Run("should validate signature requests", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/signature-requests",
			strings.NewReader(`{"bordereauId":"5","recipientEmail":"not-an-email"}`))
		status, body, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusBadRequest))
		Expect(body).To(ContainSubstring("'RecipientEmail' failed on the 'email' tag"))
	})

	t.Run("should send for signature", func(t *testing.T) {
		signatures.send = func(req esign.SignatureRequest, sec *session.Context) (*esign.SignatureAgreement, error) {
			Expect(req.BordereauID).To(Equal(types.ID(5)))
			Expect(req.RecipientEmail).To(Equal("client@example.com"))
			return &esign.SignatureAgreement{ID: 8, ProviderID: "agr-1", Status: esign.StatusSent}, nil
		}
		req := httptest.NewRequest(http.MethodPost, "/v1/signature-requests",
			strings.NewReader(`{"bordereauId":"5","recipientEmail":"client@example.com"}`))
		status, body, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusCreated))
		Expect(body).To(ContainSubstring(`"providerId":"agr-1"`))
	})

	t.Run("should send reminders with or without a note", func(t *testing.T) {
		notes := []string{}
		signatures.remind = func(agreementID types.ID, req esign.ReminderRequest, sec *session.Context) error {
			Expect(agreementID).To(Equal(types.ID(8)))
			notes = append(notes, req.Note)
			return nil
		}
		status, _, _ := testinfra.ExecuteRequest(httptest.NewRequest(http.MethodPost, "/v1/agreements/8/reminders", nil), router)
		Expect(status).To(Equal(http.StatusNoContent))

		req := httptest.NewRequest(http.MethodPost, "/v1/agreements/8/reminders", strings.NewReader(`{"note":"please sign"}`))
		status, _, _ = testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusNoContent))
		Expect(notes).To(Equal([]string{"", "please sign"}))
	})
}
