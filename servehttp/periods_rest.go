package servehttp

import (
	"net/http"
	"pilotage/domain/closure"
	"pilotage/domain/lock"
	"pilotage/session"

	"github.com/gin-gonic/gin"
)

func RegisterPeriodHandler(r *gin.Engine, l lock.LockManagerTraits, cm closure.ClosureManagerTraits,
	middleWares ...gin.HandlerFunc) {
	handler := &periodHandler{locks: l, closures: cm}

	g := r.Group("/v1/period-locks", middleWares...)
	g.GET("", handler.handleQueryLocks)
	g.POST("", handler.handleLock)
	g.DELETE("", handler.handleUnlock)

	r.POST("/v1/month-closures", append(middleWares, handler.handleCloseMonth)...)
	r.POST("/v1/admin-unlocks", append(middleWares, handler.handleAdminUnlock)...)
}

type periodHandler struct {
	locks    lock.LockManagerTraits
	closures closure.ClosureManagerTraits
}

func (h *periodHandler) handleQueryLocks(c *gin.Context) {
	q := projectQuery{}
	bindQuery(c, &q)
	locks, err := h.locks.QueryLocks(q.ProjectID, session.FindSecurityContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, locks)
}

func (h *periodHandler) handleLock(c *gin.Context) {
	req := lock.PeriodLockRequest{}
	bindJSON(c, &req)
	l, err := h.locks.Lock(req, session.FindSecurityContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, l)
}

func (h *periodHandler) handleUnlock(c *gin.Context) {
	req := lock.PeriodLockRequest{}
	bindJSON(c, &req)
	l, err := h.locks.Unlock(req, session.FindSecurityContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, l)
}

func (h *periodHandler) handleCloseMonth(c *gin.Context) {
	req := closure.PeriodClosing{}
	bindJSON(c, &req)
	r, err := h.closures.CloseMonth(&req, session.FindSecurityContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, r)
}

func (h *periodHandler) handleAdminUnlock(c *gin.Context) {
	req := closure.PeriodClosing{}
	bindJSON(c, &req)
	r, err := h.closures.AdminUnlock(&req, session.FindSecurityContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, r)
}
