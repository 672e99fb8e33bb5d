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

// IntegrityHandlers expose proof verification.
type IntegrityHandlers struct {
	integrity *service.IntegrityService
}

func NewIntegrityHandlers(integrity *service.IntegrityService) *IntegrityHandlers {
	return &IntegrityHandlers{integrity: integrity}
}

// Verify checks a record and signature against the server key.
func (h *IntegrityHandlers) Verify(c *gin.Context) {
	var req struct {
		Record    core.IntegrityRecord `json:"record"`
		Signature string               `json:"signature" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	verification, err := h.integrity.VerifyIntegrityProof(req.Record, req.Signature)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, verification)
}

// RelyingPartyHandlers serve relying-party configuration documents.
type RelyingPartyHandlers struct {
	relyingParties *service.RelyingPartyService
}

func NewRelyingPartyHandlers(relyingParties *service.RelyingPartyService) *RelyingPartyHandlers {
	return &RelyingPartyHandlers{relyingParties: relyingParties}
}

// GetConfig returns the stored document, or 204 when there is none.
func (h *RelyingPartyHandlers) GetConfig(c *gin.Context) {
	cfg, err := h.relyingParties.GetConfig(c.Request.Context(), c.Param("domain"))
	if errors.Is(err, core.ErrNotFound) {
		c.Status(http.StatusNoContent)
		return
	}
	if err != nil {
		writeError(c, err)
		return
	}

	c.Data(http.StatusOK, "application/json; charset=utf-8", cfg.Config)
}

func (h *RelyingPartyHandlers) SetConfig(c *gin.Context) {
	session, _ := sessionFrom(c)

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		badRequest(c, err)
		return
	}

	if err := h.relyingParties.SetConfig(c.Request.Context(), session, c.Param("domain"), json.RawMessage(body)); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *RelyingPartyHandlers) DeleteConfig(c *gin.Context) {
	session, _ := sessionFrom(c)

	if err := h.relyingParties.DeleteConfig(c.Request.Context(), session, c.Param("domain")); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
