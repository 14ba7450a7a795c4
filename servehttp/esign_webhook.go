package servehttp

import (
	"io/ioutil"
	"net/http"
	"pilotage/esign"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const HeaderAdobeSignClientID = "X-AdobeSign-ClientId"

// RegisterSignatureWebhook mounts the provider callback. It is public: the
// provider authenticates by echoing its client id, not with a session.
func RegisterSignatureWebhook(r *gin.Engine, m esign.SignatureManagerTraits) {
	handler := &webhookHandler{signatures: m}
	r.GET("/v1/adobe-sign/webhook", handler.handleVerify)
	r.POST("/v1/adobe-sign/webhook", handler.handleNotify)
}

type webhookHandler struct {
	signatures esign.SignatureManagerTraits
}

func (h *webhookHandler) clientID(c *gin.Context) string {
	provided := c.GetHeader(HeaderAdobeSignClientID)
	if provided == "" {
		provided = c.Query("client_id")
	}
	if provided == "" {
		provided = c.Query("clientId")
	}
	return esign.EchoClientID(provided, h.signatures.ClientID())
}

func (h *webhookHandler) echo(c *gin.Context, status int) {
	id := h.clientID(c)
	if id != "" {
		c.Header(HeaderAdobeSignClientID, id)
	}
	c.JSON(status, esign.EchoBody(id))
}

// handleVerify answers the registration handshake.
func (h *webhookHandler) handleVerify(c *gin.Context) {
	h.echo(c, http.StatusOK)
}

// handleNotify applies the delivered events. Undecodable bodies are still
// acknowledged so the provider stops redelivering them.
func (h *webhookHandler) handleNotify(c *gin.Context) {
	body, err := ioutil.ReadAll(c.Request.Body)
	if err != nil {
		logrus.Warnf("read signature webhook body: %v", err)
		h.echo(c, http.StatusOK)
		return
	}
	events, err := esign.ParseEvents(body)
	if err != nil {
		logrus.Warnf("ignore undecodable signature webhook: %v", err)
		h.echo(c, http.StatusOK)
		return
	}

	result, err := h.signatures.HandleEvents(c.Request.Context(), events)
	if err != nil {
		logrus.Errorf("signature webhook failed: %v", err)
		h.echo(c, http.StatusInternalServerError)
		return
	}
	logrus.WithField("processed", result.Processed).WithField("ignored", result.Ignored).
		WithField("signed", result.Signed).Info("signature webhook applied")
	h.echo(c, http.StatusOK)
}
