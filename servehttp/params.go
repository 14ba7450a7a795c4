package servehttp

import (
	"errors"
	"pilotage/bizerror"

	"github.com/fundwit/go-commons/types"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

func parseID(c *gin.Context, name string) types.ID {
	id, err := types.ParseID(c.Param(name))
	if err != nil {
		panic(&bizerror.ErrBadParam{Cause: errors.New("invalid id '" + c.Param(name) + "'")})
	}
	return id
}

// bindJSON binds and validates the request body against its binding tags.
func bindJSON(c *gin.Context, v interface{}) {
	if err := c.ShouldBindBodyWith(v, binding.JSON); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
}

func bindQuery(c *gin.Context, v interface{}) {
	if err := c.ShouldBindQuery(v); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
}
