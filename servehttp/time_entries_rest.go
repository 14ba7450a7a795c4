package servehttp

import (
	"net/http"
	"pilotage/domain/timeentry"
	"pilotage/export"
	"pilotage/session"

	"github.com/gin-gonic/gin"
)

func RegisterTimeEntryHandler(r *gin.Engine, m timeentry.TimeEntryManagerTraits, e export.ExportManagerTraits,
	middleWares ...gin.HandlerFunc) {
	handler := &timeEntryHandler{entries: m, exports: e}

	g := r.Group("/v1/time-entries", middleWares...)
	g.GET("", handler.handleListMonth)
	g.PUT("", handler.handleUpsert)
	g.GET("history", handler.handleListAll)
	g.GET("export", handler.handleExport)
}

type timeEntryHandler struct {
	entries timeentry.TimeEntryManagerTraits
	exports export.ExportManagerTraits
}

func (h *timeEntryHandler) handleUpsert(c *gin.Context) {
	upsert := timeentry.TimeEntryUpsert{}
	bindJSON(c, &upsert)
	entry, err := h.entries.Upsert(upsert, session.FindSecurityContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, entry)
}

func (h *timeEntryHandler) handleListMonth(c *gin.Context) {
	q := timeentry.MonthQuery{}
	bindQuery(c, &q)
	entries, err := h.entries.ListMonth(q, session.FindSecurityContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, entries)
}

func (h *timeEntryHandler) handleListAll(c *gin.Context) {
	q := projectQuery{}
	bindQuery(c, &q)
	entries, err := h.entries.ListAll(q.ProjectID, session.FindSecurityContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, entries)
}

func (h *timeEntryHandler) handleExport(c *gin.Context) {
	q := timeentry.MonthQuery{}
	bindQuery(c, &q)
	name, data, err := h.exports.ExportMonth(q.ProjectID, q.Year, q.Month, session.FindSecurityContext(c))
	if err != nil {
		panic(err)
	}
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Data(http.StatusOK, export.ContentTypeXLSX, data)
}
