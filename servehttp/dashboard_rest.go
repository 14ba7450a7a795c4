package servehttp

import (
	"net/http"
	"pilotage/domain/dashboard"
	"pilotage/session"

	"github.com/gin-gonic/gin"
)

func RegisterDashboardHandler(r *gin.Engine, m dashboard.DashboardManagerTraits, middleWares ...gin.HandlerFunc) {
	handler := &dashboardHandler{manager: m}
	r.GET("/v1/dashboard/production", append(middleWares, handler.handleProduction)...)
}

type dashboardHandler struct {
	manager dashboard.DashboardManagerTraits
}

func (h *dashboardHandler) handleProduction(c *gin.Context) {
	q := yearQuery{}
	bindQuery(c, &q)
	production, err := h.manager.Production(q.year(), session.FindSecurityContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, production)
}
