package servehttp

import (
	"net/http"
	"pilotage/domain/timeentry"
	"pilotage/session"

	"github.com/gin-gonic/gin"
)

func RegisterCommentHandler(r *gin.Engine, m timeentry.CommentManagerTraits, middleWares ...gin.HandlerFunc) {
	handler := &commentHandler{manager: m}

	g := r.Group("/v1/bordereau-comments", middleWares...)
	g.GET("", handler.handleList)
	g.PUT("", handler.handleUpsert)
}

type commentHandler struct {
	manager timeentry.CommentManagerTraits
}

func (h *commentHandler) handleList(c *gin.Context) {
	q := timeentry.CommentQuery{}
	bindQuery(c, &q)
	comments, err := h.manager.ListComments(q, session.FindSecurityContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, comments)
}

func (h *commentHandler) handleUpsert(c *gin.Context) {
	upsert := timeentry.CommentUpsert{}
	bindJSON(c, &upsert)
	comment, err := h.manager.UpsertComment(upsert, session.FindSecurityContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, comment)
}
