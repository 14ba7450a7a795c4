package servehttp_test

import (
	"net/http"
	"net/http/httptest"
	"pilotage/bizerror"
	"pilotage/domain/timeentry"
	"pilotage/servehttp"
	"pilotage/session"
	"pilotage/testinfra"
	"strings"
	"testing"

	. "github.com/onsi/gomega"
)

func TestCommentAPI(t *testing.T) {
	RegisterTestingT(t)

	comments := &commentStub{}
	router, auth := newRouter(adminSec)
	servehttp.RegisterCommentHandler(router, comments, auth)

	t.Run("should list the comments of a month", func(t *testing.T) {
		var q timeentry.CommentQuery
		comments.list = func(cq timeentry.CommentQuery, sec *session.Context) ([]timeentry.BordereauComment, error) {
			q = cq
			return []timeentry.BordereauComment{{ID: 3, ProjectID: 7, Year: 2024, Month: 3, Day: 4,
				Type: timeentry.TypeSite, Comment: "astreinte"}}, nil
		}
		req := httptest.NewRequest(http.MethodGet, "/v1/bordereau-comments?projectId=7&year=2024&month=3", nil)
		status, body, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusOK))
		Expect(body).To(ContainSubstring(`"comment":"astreinte"`))
		Expect(q).To(Equal(timeentry.CommentQuery{ProjectID: 7, Year: 2024, Month: 3}))
	})

	t.Run("should refuse a comment in a locked period", func(t *testing.T) {
		var upsert timeentry.CommentUpsert
		comments.upsert = func(u timeentry.CommentUpsert, sec *session.Context) (*timeentry.BordereauComment, error) {
			upsert = u
			return nil, bizerror.ErrPeriodLocked
		}
		req := httptest.NewRequest(http.MethodPut, "/v1/bordereau-comments",
			strings.NewReader(`{"projectId":"7","year":2024,"month":3,"day":4,"type":"SITE","comment":"astreinte"}`))
		status, body, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusLocked))
		Expect(body).To(ContainSubstring(`"code":"period.locked"`))
		Expect(upsert.Day).To(Equal(4))
		Expect(upsert.Type).To(Equal(timeentry.TypeSite))
	})

	t.Run("should validate the line type", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPut, "/v1/bordereau-comments",
			strings.NewReader(`{"projectId":"7","year":2024,"month":3,"day":4,"type":"NIGHT"}`))
		status, _, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusBadRequest))
	})
}
