package testinfra

import (
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"pilotage/session"
	"strings"

	"github.com/fundwit/go-commons/types"
	"github.com/gin-gonic/gin"
)

// BuildSecCtx build security context
func BuildSecCtx(uid types.ID, perms ...string) *session.Context {
	return &session.Context{Token: "test-token", Identity: session.Identity{ID: uid, Name: "user " + uid.String()}, Perms: perms}
}

// ExecuteRequest serves req and returns status, body and headers.
func ExecuteRequest(req *http.Request, engine *gin.Engine) (int, string, http.Header) {
	if req.Body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	body, _ := ioutil.ReadAll(w.Body)
	return w.Code, strings.TrimSpace(string(body)), w.Header()
}
