package session

import (
	"pilotage/bizerror"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

const TokenExpiration = 24 * time.Hour

// TokenCache is filled by the authentication collaborator (IssueToken) and
// read by SimpleAuthFilter.
var TokenCache = cache.New(TokenExpiration, 1*time.Minute)

const KeySecCtx = "SecCtx"
const KeySecToken = "sec_token"

func IssueToken(identity Identity, perms []string) *Context {
	secCtx := &Context{Token: uuid.New().String(), Identity: identity, Perms: perms}
	TokenCache.Set(secCtx.Token, secCtx, cache.DefaultExpiration)
	return secCtx
}

func RevokeToken(token string) {
	TokenCache.Delete(token)
}

// FindSecurityContext returns a copy of the session bound to the request
// with the request context attached for tracing.
func FindSecurityContext(ctx *gin.Context) *Context {
	value, found := ctx.Get(KeySecCtx)
	if !found {
		return &Context{Context: ctx.Request.Context()}
	}
	s0, ok := value.(*Context)
	if !ok || s0.Token == "" {
		return &Context{Context: ctx.Request.Context()}
	}
	s := s0.Clone()
	s.Context = ctx.Request.Context()
	return &s
}

func SimpleAuthFilter() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		token, err := ctx.Cookie(KeySecToken)
		if err != nil {
			panic(bizerror.ErrUnauthenticated)
		}
		securityContextValue, found := TokenCache.Get(token)
		if !found {
			panic(bizerror.ErrUnauthenticated)
		}
		secCtx, ok := securityContextValue.(*Context)
		if !ok {
			panic(bizerror.ErrUnauthenticated)
		}
		SaveSecurityContext(ctx, secCtx)
		ctx.Next()
	}
}

func SaveSecurityContext(ctx *gin.Context, secCtx *Context) {
	if secCtx != nil && secCtx.Token != "" {
		ctx.Set(KeySecCtx, secCtx)
	}
}
