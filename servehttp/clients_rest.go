package servehttp

import (
	"net/http"
	"pilotage/domain/client"
	"pilotage/session"

	"github.com/fundwit/go-commons/types"
	"github.com/gin-gonic/gin"
)

type clientQuery struct {
	ClientID types.ID `form:"clientId" binding:"required"`
}

func RegisterClientHandler(r *gin.Engine, m client.ClientManagerTraits, middleWares ...gin.HandlerFunc) {
	handler := &clientHandler{manager: m}

	g := r.Group("/v1/clients", middleWares...)
	g.GET("", handler.handleQuery)
	g.POST("", handler.handleCreate)
	g.PUT(":id", handler.handleUpdate)
	g.DELETE(":id", handler.handleDelete)

	cg := r.Group("/v1/contacts", middleWares...)
	cg.GET("", handler.handleQueryContacts)
	cg.POST("", handler.handleCreateContact)
	cg.PATCH(":id", handler.handleUpdateContact)
	cg.DELETE(":id", handler.handleDeleteContact)
}

type clientHandler struct {
	manager client.ClientManagerTraits
}

func (h *clientHandler) handleQuery(c *gin.Context) {
	clients, err := h.manager.QueryClients(session.FindSecurityContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, clients)
}

func (h *clientHandler) handleCreate(c *gin.Context) {
	saving := client.ClientSaving{}
	bindJSON(c, &saving)
	created, err := h.manager.CreateClient(&saving, session.FindSecurityContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusCreated, created)
}

func (h *clientHandler) handleUpdate(c *gin.Context) {
	id := parseID(c, "id")
	saving := client.ClientSaving{}
	bindJSON(c, &saving)
	updated, err := h.manager.UpdateClient(id, &saving, session.FindSecurityContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, updated)
}

func (h *clientHandler) handleDelete(c *gin.Context) {
	if err := h.manager.DeleteClient(parseID(c, "id"), session.FindSecurityContext(c)); err != nil {
		panic(err)
	}
	c.Status(http.StatusNoContent)
}

func (h *clientHandler) handleQueryContacts(c *gin.Context) {
	q := clientQuery{}
	bindQuery(c, &q)
	contacts, err := h.manager.QueryContacts(q.ClientID, session.FindSecurityContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, contacts)
}

func (h *clientHandler) handleCreateContact(c *gin.Context) {
	creating := client.ContactCreating{}
	bindJSON(c, &creating)
	contact, err := h.manager.CreateContact(&creating, session.FindSecurityContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusCreated, contact)
}

func (h *clientHandler) handleUpdateContact(c *gin.Context) {
	id := parseID(c, "id")
	updating := client.ContactUpdating{}
	bindJSON(c, &updating)
	contact, err := h.manager.UpdateContact(id, &updating, session.FindSecurityContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, contact)
}

func (h *clientHandler) handleDeleteContact(c *gin.Context) {
	if err := h.manager.DeleteContact(parseID(c, "id"), session.FindSecurityContext(c)); err != nil {
		panic(err)
	}
	c.Status(http.StatusNoContent)
}
