package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"realtime-chat/internal/services"
)

// MessageHandler serves the /messages endpoints. Every route requires a session.
type MessageHandler struct {
	svc *services.MessageService
}

func NewMessageHandler(svc *services.MessageService) *MessageHandler {
	return &MessageHandler{svc: svc}
}

func (h *MessageHandler) Register(group *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := group.Group("/messages", authMW)
	g.GET("/users", h.Sidebar)
	g.GET("/contacts", h.Contacts)
	g.GET("/:id", h.Conversation)
	g.PUT("/mark/:id", h.MarkSeen)
	g.POST("/send/:id", h.Send)
}

type sendMessageRequest struct {
	Text  *string `json:"text"`
	Image *string `json:"image"`
}

// Sidebar lists every other user ranked by recent activity with unseen counts.
func (h *MessageHandler) Sidebar(c *gin.Context) {
	sidebar, err := h.svc.Sidebar(c.Request.Context(), userIDFromContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"users": sidebar.Users, "unseenMessages": sidebar.Unseen})
}

func (h *MessageHandler) Contacts(c *gin.Context) {
	contacts, err := h.svc.RankedContacts(c.Request.Context(), userIDFromContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"contacts": contacts})
}

// Conversation returns the thread with :id and marks its incoming messages seen.
func (h *MessageHandler) Conversation(c *gin.Context) {
	msgs, err := h.svc.Conversation(c.Request.Context(), userIDFromContext(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"messages": msgs})
}

func (h *MessageHandler) MarkSeen(c *gin.Context) {
	if err := h.svc.MarkOneSeen(c.Request.Context(), userIDFromContext(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, nil)
}

func (h *MessageHandler) Send(c *gin.Context) {
	var req sendMessageRequest
	if !bindJSON(c, &req) {
		return
	}
	msg, err := h.svc.Send(c.Request.Context(), userIDFromContext(c), c.Param("id"), services.SendInput{
		Text:  req.Text,
		Image: req.Image,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, gin.H{"newMessage": msg})
}
