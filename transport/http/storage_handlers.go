package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/wide/core"
	"github.com/layer-3/wide/service"
)

// StorageHandlers serves the owner-scoped credential store.
type StorageHandlers struct {
	credentials *service.CredentialService
	integrity   *service.IntegrityService
}

func NewStorageHandlers(credentials *service.CredentialService, integrity *service.IntegrityService) *StorageHandlers {
	return &StorageHandlers{
		credentials: credentials,
		integrity:   integrity,
	}
}

type credentialRequest struct {
	Issuer      json.RawMessage        `json:"issuer"`
	Payload     json.RawMessage        `json:"payload"`
	Credentials []core.CredentialField `json:"credentials"`
	PayloadHash string                 `json:"payloadHash"`
}

// IssueResponse describes a stored credential and the state of its proof.
type IssueResponse struct {
	ID     string               `json:"id"`
	Issuer json.RawMessage      `json:"issuer"`
	Proof  *core.IntegrityProof `json:"proof"`
	Anchor core.AnchorOutcome   `json:"anchor"`
}

// UpdateResponse is the updated record with its new proof.
type UpdateResponse struct {
	Credential *core.CredentialRecord `json:"credential"`
	Proof      *core.IntegrityProof   `json:"proof"`
	Anchor     core.AnchorOutcome     `json:"anchor"`
}

// IssuedCredentials lists the issuance index of the account.
func (h *StorageHandlers) IssuedCredentials(c *gin.Context) {
	account, ok := accountParam(c)
	if !ok {
		return
	}
	session, _ := sessionFrom(c)

	issued, err := h.credentials.CollectIssued(c.Request.Context(), session, account)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, issued)
}

// IssueCredential stores a credential, then signs and anchors a proof of its
// encrypted payload. Anchoring never fails the request once the credential is
// stored; its state is reported in the response.
func (h *StorageHandlers) IssueCredential(c *gin.Context) {
	account, ok := accountParam(c)
	if !ok {
		return
	}
	session, _ := sessionFrom(c)

	var req credentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	ctx := c.Request.Context()
	issued, err := h.credentials.IssueCredential(ctx, session, account, req.Issuer, req.Payload, req.Credentials)
	if err != nil {
		writeError(c, err)
		return
	}

	proof, err := h.integrity.ComputeIntegrityProof(account, req.Payload, req.PayloadHash)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, IssueResponse{
		ID:     issued.ID,
		Issuer: issued.Issuer,
		Proof:  proof,
		Anchor: h.integrity.AnchorProof(ctx, proof),
	})
}

// GetCredential returns a stored credential, or 204 when there is none.
func (h *StorageHandlers) GetCredential(c *gin.Context) {
	account, ok := accountParam(c)
	if !ok {
		return
	}
	session, _ := sessionFrom(c)

	record, err := h.credentials.GetCredential(c.Request.Context(), session, account, c.Param("id"))
	if errors.Is(err, core.ErrNotFound) {
		c.Status(http.StatusNoContent)
		return
	}
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, record)
}

// UpdateCredential replaces the payload and fields of a credential and
// anchors a proof of the new payload.
func (h *StorageHandlers) UpdateCredential(c *gin.Context) {
	account, ok := accountParam(c)
	if !ok {
		return
	}
	session, _ := sessionFrom(c)

	var req credentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	ctx := c.Request.Context()
	record, err := h.credentials.UpdateCredential(ctx, session, account, c.Param("id"), req.Payload, req.Credentials)
	if err != nil {
		writeError(c, err)
		return
	}

	proof, err := h.integrity.ComputeIntegrityProof(account, req.Payload, req.PayloadHash)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, UpdateResponse{
		Credential: record,
		Proof:      proof,
		Anchor:     h.integrity.AnchorProof(ctx, proof),
	})
}

// DeleteCredential removes a credential. Unknown ids are reported as not
// deleted rather than as an error.
func (h *StorageHandlers) DeleteCredential(c *gin.Context) {
	account, ok := accountParam(c)
	if !ok {
		return
	}
	session, _ := sessionFrom(c)

	result, err := h.credentials.DeleteCredential(c.Request.Context(), session, account, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
