package servehttp_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"pilotage/bizerror"
	"pilotage/domain"
	"pilotage/domain/deliverable"
	"pilotage/domain/project"
	"pilotage/export"
	"pilotage/servehttp"
	"pilotage/session"
	"pilotage/testinfra"
	"strings"
	"testing"
	"time"

	"github.com/fundwit/go-commons/types"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
)

func TestProjectAPI(t *testing.T) {
	RegisterTestingT(t)

	projects := &projectStub{}
	deliverables := &deliverableStub{}
	exports := &exportStub{}
	router, auth := newRouter(adminSec)
	servehttp.RegisterProjectHandler(router, projects, deliverables, exports, auth)

	t.Run("should list projects with the request session", func(t *testing.T) {
		var uid types.ID
		projects.queryProjects = func(sec *session.Context) ([]domain.Project, error) {
			uid = sec.Identity.ID
			return []domain.Project{{ID: 10, ProjectNumber: "P-10", Type: domain.ProjectTypeAT}}, nil
		}
		req := httptest.NewRequest(http.MethodGet, "/v1/projects", nil)
		status, body, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusOK))
		Expect(body).To(ContainSubstring(`"id":"10"`))
		Expect(body).To(ContainSubstring(`"projectNumber":"P-10"`))
		Expect(uid).To(Equal(types.ID(1)))
	})

	t.Run("should map manager errors to responses", func(t *testing.T) {
		projects.queryProjects = func(sec *session.Context) ([]domain.Project, error) {
			return nil, bizerror.ErrForbidden
		}
		req := httptest.NewRequest(http.MethodGet, "/v1/projects", nil)
		status, body, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusForbidden))
		Expect(body).To(MatchJSON(`{"code":"security.forbidden","message":"access forbidden","data":null}`))

		projects.queryProjects = func(sec *session.Context) ([]domain.Project, error) {
			return nil, errors.New("some error")
		}
		status, body, _ = testinfra.ExecuteRequest(httptest.NewRequest(http.MethodGet, "/v1/projects", nil), router)
		Expect(status).To(Equal(http.StatusInternalServerError))
		Expect(body).To(MatchJSON(`{"code":"common.internal_server_error","message":"some error","data":null}`))
	})

	t.Run("should validate the creation body", func(t *testing.T) {
		called := false
		projects.createProject = func(c *project.ProjectCreating, sec *session.Context) (*domain.Project, error) {
			called = true
			return nil, nil
		}
		req := httptest.NewRequest(http.MethodPost, "/v1/projects", strings.NewReader(`{"projectNumber":"P-1","designation":"d","type":"OTHER"}`))
		status, body, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusBadRequest))
		Expect(body).To(ContainSubstring(`"code":"common.bad_param"`))
		Expect(body).To(ContainSubstring("'Type' failed on the 'oneof' tag"))
		Expect(called).To(BeFalse())
	})

	t.Run("should create a project", func(t *testing.T) {
		var creating *project.ProjectCreating
		projects.createProject = func(c *project.ProjectCreating, sec *session.Context) (*domain.Project, error) {
			creating = c
			return &domain.Project{ID: 20, ProjectNumber: c.ProjectNumber, Type: c.Type}, nil
		}
		req := httptest.NewRequest(http.MethodPost, "/v1/projects",
			strings.NewReader(`{"projectNumber":"P-20","designation":"Forfait","type":"FORFAIT","orderAmount":"12000"}`))
		status, body, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusCreated))
		Expect(body).To(ContainSubstring(`"id":"20"`))
		Expect(creating.Type).To(Equal(domain.ProjectTypeForfait))
		Expect(creating.OrderAmount.Equal(decimal.NewFromInt(12000))).To(BeTrue())
	})

	t.Run("should reject malformed ids", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodDelete, "/v1/projects/abc", nil)
		status, body, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusBadRequest))
		Expect(body).To(MatchJSON(`{"code":"common.bad_param","message":"invalid id 'abc'","data":null}`))
	})

	t.Run("should report referenced projects as conflicts", func(t *testing.T) {
		var deleted types.ID
		projects.deleteProject = func(id types.ID, sec *session.Context) error {
			deleted = id
			return bizerror.ErrProjectInUse
		}
		req := httptest.NewRequest(http.MethodDelete, "/v1/projects/30", nil)
		status, body, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusConflict))
		Expect(body).To(ContainSubstring(`"code":"project.in_use"`))
		Expect(deleted).To(Equal(types.ID(30)))

		projects.deleteProject = func(id types.ID, sec *session.Context) error { return nil }
		status, _, _ = testinfra.ExecuteRequest(httptest.NewRequest(http.MethodDelete, "/v1/projects/30", nil), router)
		Expect(status).To(Equal(http.StatusNoContent))
	})

	t.Run("should serve project progress", func(t *testing.T) {
		deliverables.progress = func(projectID types.ID, sec *session.Context) (*deliverable.Progress, error) {
			Expect(projectID).To(Equal(types.ID(40)))
			return &deliverable.Progress{Count: 4, Delivered: 2, Validated: 1}, nil
		}
		req := httptest.NewRequest(http.MethodGet, "/v1/projects/40/progress", nil)
		status, body, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusOK))
		Expect(body).To(ContainSubstring(`"count":4`))
		Expect(body).To(ContainSubstring(`"delivered":2`))
	})

	t.Run("should require a project for deliverable queries", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/deliverables", nil)
		status, body, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusBadRequest))
		Expect(body).To(ContainSubstring("'ProjectID' failed on the 'required' tag"))
	})
	t.Run("should export the project list", func(t *testing.T) {
		exports.exportProjects = func(sec *session.Context) (string, []byte, error) {
			return "projets-export-2024-03-01.xlsx", []byte("xlsx"), nil
		}
		status, body, headers := testinfra.ExecuteRequest(httptest.NewRequest(http.MethodGet, "/v1/projects/export", nil), router)
		Expect(status).To(Equal(http.StatusOK))
		Expect(body).To(Equal("xlsx"))
		Expect(headers.Get("Content-Disposition")).To(Equal(`attachment; filename="projets-export-2024-03-01.xlsx"`))
		Expect(headers.Get("Content-Type")).To(Equal(export.ContentTypeXLSX))
	})

	t.Run("should propose the next project number", func(t *testing.T) {
		var year int
		projects.nextNumber = func(y int, sec *session.Context) (string, error) {
			year = y
			return "PRJ-2024-013", nil
		}
		status, body, _ := testinfra.ExecuteRequest(httptest.NewRequest(http.MethodGet, "/v1/projects/next-number?year=2024", nil), router)
		Expect(status).To(Equal(http.StatusOK))
		Expect(body).To(MatchJSON(`{"next":"PRJ-2024-013"}`))
		Expect(year).To(Equal(2024))

		status, _, _ = testinfra.ExecuteRequest(httptest.NewRequest(http.MethodGet, "/v1/projects/next-number", nil), router)
		Expect(status).To(Equal(http.StatusOK))
		Expect(year).To(Equal(time.Now().Year()))

		status, _, _ = testinfra.ExecuteRequest(httptest.NewRequest(http.MethodGet, "/v1/projects/next-number?year=24", nil), router)
		Expect(status).To(Equal(http.StatusBadRequest))
	})
}
