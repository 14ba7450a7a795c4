package servehttp

import (
	"net/http"
	"pilotage/audit"
	"pilotage/session"

	"github.com/gin-gonic/gin"
)

func RegisterAuditHandler(r *gin.Engine, m audit.AuditManagerTraits, middleWares ...gin.HandlerFunc) {
	handler := &auditHandler{audits: m}
	r.GET("/v1/audit-records", append(middleWares, handler.handleQuery)...)
}

type auditHandler struct {
	audits audit.AuditManagerTraits
}

func (h *auditHandler) handleQuery(c *gin.Context) {
	q := audit.AuditQuery{}
	bindQuery(c, &q)
	records, err := h.audits.QueryAuditRecords(q, session.FindSecurityContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, records)
}
