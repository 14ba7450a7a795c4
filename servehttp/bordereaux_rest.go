package servehttp

import (
	"net/http"
	"net/url"
	"pilotage/domain/bordereau"
	"pilotage/esign"
	"pilotage/session"

	"github.com/fundwit/go-commons/types"
	"github.com/gin-gonic/gin"
)

type agreementQuery struct {
	BordereauID types.ID `form:"bordereauId" binding:"required"`
}

func RegisterBordereauHandler(r *gin.Engine, m bordereau.BordereauManagerTraits, s esign.SignatureManagerTraits,
	middleWares ...gin.HandlerFunc) {
	handler := &bordereauHandler{bordereaux: m, signatures: s}

	g := r.Group("/v1/bordereaux", middleWares...)
	g.GET("", handler.handleQuery)
	g.POST("", handler.handleGenerate)
	g.GET(":id", handler.handleDetail)

	r.GET("/v1/bordereau-versions/:id/file", append(middleWares, handler.handleDownloadVersion)...)

	r.POST("/v1/signature-requests", append(middleWares, handler.handleSendForSignature)...)
	ag := r.Group("/v1/agreements", middleWares...)
	ag.GET("", handler.handleQueryAgreements)
	ag.POST(":id/reminders", handler.handleRemind)
}

type bordereauHandler struct {
	bordereaux bordereau.BordereauManagerTraits
	signatures esign.SignatureManagerTraits
}

func (h *bordereauHandler) handleQuery(c *gin.Context) {
	q := projectQuery{}
	bindQuery(c, &q)
	bordereaux, err := h.bordereaux.QueryBordereaux(q.ProjectID, session.FindSecurityContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, bordereaux)
}

func (h *bordereauHandler) handleGenerate(c *gin.Context) {
	gen := bordereau.BordereauGeneration{}
	bindJSON(c, &gen)
	result, err := h.bordereaux.GenerateDocument(&gen, session.FindSecurityContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusCreated, result)
}

func (h *bordereauHandler) handleDetail(c *gin.Context) {
	detail, err := h.bordereaux.DetailBordereau(parseID(c, "id"), session.FindSecurityContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, detail)
}

func (h *bordereauHandler) handleDownloadVersion(c *gin.Context) {
	file, data, err := h.bordereaux.ReadVersionFile(parseID(c, "id"), session.FindSecurityContext(c))
	if err != nil {
		panic(err)
	}
	c.Header("Content-Disposition", `attachment; filename="`+url.PathEscape(file.FileName)+`"`)
	c.Data(http.StatusOK, file.ContentType, data)
}

func (h *bordereauHandler) handleSendForSignature(c *gin.Context) {
	req := esign.SignatureRequest{}
	bindJSON(c, &req)
	agreement, err := h.signatures.SendForSignature(req, session.FindSecurityContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusCreated, agreement)
}

func (h *bordereauHandler) handleQueryAgreements(c *gin.Context) {
	q := agreementQuery{}
	bindQuery(c, &q)
	agreements, err := h.signatures.QueryAgreements(q.BordereauID, session.FindSecurityContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, agreements)
}

func (h *bordereauHandler) handleRemind(c *gin.Context) {
	id := parseID(c, "id")
	req := esign.ReminderRequest{}
	if c.Request.ContentLength != 0 {
		bindJSON(c, &req)
	}
	if err := h.signatures.Remind(id, req, session.FindSecurityContext(c)); err != nil {
		panic(err)
	}
	c.Status(http.StatusNoContent)
}
