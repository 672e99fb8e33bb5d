package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/wide/core"
	"github.com/layer-3/wide/service"
)

// HistoryHandlers serve the presentation history of the session owner.
type HistoryHandlers struct {
	history *service.HistoryService
}

func NewHistoryHandlers(history *service.HistoryService) *HistoryHandlers {
	return &HistoryHandlers{history: history}
}

// GenerateMessage returns the consent text the caller signs to derive a key.
func (h *HistoryHandlers) GenerateMessage(c *gin.Context) {
	session, _ := sessionFrom(c)
	c.JSON(http.StatusOK, gin.H{"message": service.ConsentMessage(session.Address)})
}

// RegisterKey stores the history key derived from a consent signature.
func (h *HistoryHandlers) RegisterKey(c *gin.Context) {
	session, _ := sessionFrom(c)

	var req struct {
		Signature string `json:"signature" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if _, err := h.history.RegisterHistoryKey(c.Request.Context(), session, session.Address, req.Signature); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Key returns the registered history key of the caller.
func (h *HistoryHandlers) Key(c *gin.Context) {
	session, _ := sessionFrom(c)

	key, err := h.history.HistoryKey(c.Request.Context(), session, session.Address)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"key": key})
}

// HasKey reports whether the caller has registered a history key.
func (h *HistoryHandlers) HasKey(c *gin.Context) {
	session, _ := sessionFrom(c)

	_, err := h.history.HistoryKey(c.Request.Context(), session, session.Address)
	if err != nil && !errors.Is(err, core.ErrNotFound) {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"hasKey": err == nil})
}

// LogPresentation appends the request body to the caller's history.
func (h *HistoryHandlers) LogPresentation(c *gin.Context) {
	session, _ := sessionFrom(c)

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		badRequest(c, err)
		return
	}

	receipt, err := h.history.LogPresentationFor(c.Request.Context(), session, session.Address, json.RawMessage(body))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "receipt": receipt})
}

// Get returns the caller's presentation history.
func (h *HistoryHandlers) Get(c *gin.Context) {
	session, _ := sessionFrom(c)

	entries, hasKey, err := h.history.HistoryFor(c.Request.Context(), session, session.Address)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": entries, "hasKey": hasKey})
}
