package servehttp

import (
	"net/http"
	"pilotage/domain/deliverable"
	"pilotage/domain/project"
	"pilotage/export"
	"pilotage/session"
	"time"

	"github.com/fundwit/go-commons/types"
	"github.com/gin-gonic/gin"
)

type projectQuery struct {
	ProjectID types.ID `form:"projectId" binding:"required"`
}

type yearQuery struct {
	Year int `form:"year" binding:"omitempty,min=2000,max=2999"`
}

// year defaults to the current one.
func (q yearQuery) year() int {
	if q.Year == 0 {
		return time.Now().Year()
	}
	return q.Year
}

func RegisterProjectHandler(r *gin.Engine, m project.ProjectManagerTraits, d deliverable.DeliverableManagerTraits,
	e export.ExportManagerTraits, middleWares ...gin.HandlerFunc) {
	handler := &projectHandler{projects: m, deliverables: d, exports: e}

	g := r.Group("/v1/projects", middleWares...)
	g.GET("", handler.handleQuery)
	g.POST("", handler.handleCreate)
	g.GET("export", handler.handleExport)
	g.GET("next-number", handler.handleNextNumber)
	g.GET(":id", handler.handleDetail)
	g.PUT(":id", handler.handleUpdate)
	g.DELETE(":id", handler.handleDelete)
	g.GET(":id/progress", handler.handleProgress)

	dg := r.Group("/v1/deliverables", middleWares...)
	dg.GET("", handler.handleQueryDeliverables)
	dg.POST("", handler.handleCreateDeliverable)
	dg.PUT(":id/status", handler.handleUpdateDeliverableStatus)
	dg.DELETE(":id", handler.handleDeleteDeliverable)
}

type projectHandler struct {
	projects     project.ProjectManagerTraits
	deliverables deliverable.DeliverableManagerTraits
	exports      export.ExportManagerTraits
}

func (h *projectHandler) handleQuery(c *gin.Context) {
	projects, err := h.projects.QueryProjects(session.FindSecurityContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, projects)
}

func (h *projectHandler) handleCreate(c *gin.Context) {
	creating := project.ProjectCreating{}
	bindJSON(c, &creating)
	p, err := h.projects.CreateProject(&creating, session.FindSecurityContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusCreated, p)
}

func (h *projectHandler) handleExport(c *gin.Context) {
	name, data, err := h.exports.ExportProjects(session.FindSecurityContext(c))
	if err != nil {
		panic(err)
	}
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Data(http.StatusOK, export.ContentTypeXLSX, data)
}

func (h *projectHandler) handleNextNumber(c *gin.Context) {
	q := yearQuery{}
	bindQuery(c, &q)
	next, err := h.projects.NextProjectNumber(q.year(), session.FindSecurityContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, gin.H{"next": next})
}

func (h *projectHandler) handleDetail(c *gin.Context) {
	detail, err := h.projects.DetailProject(parseID(c, "id"), session.FindSecurityContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, detail)
}

func (h *projectHandler) handleUpdate(c *gin.Context) {
	id := parseID(c, "id")
	updating := project.ProjectUpdating{}
	bindJSON(c, &updating)
	p, err := h.projects.UpdateProject(id, &updating, session.FindSecurityContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, p)
}

func (h *projectHandler) handleDelete(c *gin.Context) {
	if err := h.projects.DeleteProject(parseID(c, "id"), session.FindSecurityContext(c)); err != nil {
		panic(err)
	}
	c.Status(http.StatusNoContent)
}

func (h *projectHandler) handleProgress(c *gin.Context) {
	progress, err := h.deliverables.ProjectProgress(parseID(c, "id"), session.FindSecurityContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, progress)
}

func (h *projectHandler) handleQueryDeliverables(c *gin.Context) {
	q := projectQuery{}
	bindQuery(c, &q)
	deliverables, err := h.deliverables.QueryDeliverables(q.ProjectID, session.FindSecurityContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, deliverables)
}

func (h *projectHandler) handleCreateDeliverable(c *gin.Context) {
	creating := deliverable.DeliverableCreating{}
	bindJSON(c, &creating)
	d, err := h.deliverables.CreateDeliverable(&creating, session.FindSecurityContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusCreated, d)
}

func (h *projectHandler) handleUpdateDeliverableStatus(c *gin.Context) {
	id := parseID(c, "id")
	updating := deliverable.DeliverableStatusUpdating{}
	bindJSON(c, &updating)
	d, err := h.deliverables.UpdateDeliverableStatus(id, &updating, session.FindSecurityContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, d)
}

func (h *projectHandler) handleDeleteDeliverable(c *gin.Context) {
	if err := h.deliverables.DeleteDeliverable(parseID(c, "id"), session.FindSecurityContext(c)); err != nil {
		panic(err)
	}
	c.Status(http.StatusNoContent)
}
