package servehttp

import (
	"net/http"
	"pilotage/domain/snapshot"
	"pilotage/session"

	"github.com/gin-gonic/gin"
)

func RegisterSnapshotHandler(r *gin.Engine, m snapshot.SnapshotManagerTraits, middleWares ...gin.HandlerFunc) {
	handler := &snapshotHandler{snapshots: m}

	g := r.Group("/v1/snapshots", middleWares...)
	g.GET("", handler.handleQuery)
	g.POST("", handler.handleCreateManual)
	g.GET(":id", handler.handleDetail)
}

type snapshotHandler struct {
	snapshots snapshot.SnapshotManagerTraits
}

func (h *snapshotHandler) handleQuery(c *gin.Context) {
	q := snapshot.SnapshotQuery{}
	bindQuery(c, &q)
	snapshots, err := h.snapshots.QuerySnapshots(q, session.FindSecurityContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, snapshots)
}

func (h *snapshotHandler) handleDetail(c *gin.Context) {
	s, err := h.snapshots.DetailSnapshot(parseID(c, "id"), session.FindSecurityContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, s)
}

func (h *snapshotHandler) handleCreateManual(c *gin.Context) {
	creation := snapshot.ManualSnapshotCreation{}
	bindJSON(c, &creation)
	s, err := h.snapshots.CreateManualSnapshot(creation, session.FindSecurityContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusCreated, s)
}
