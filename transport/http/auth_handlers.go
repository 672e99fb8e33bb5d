package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/wide/core"
	"github.com/layer-3/wide/internal/siwe"
	"github.com/layer-3/wide/service"
)

// CookieConfig controls the session cookie.
type CookieConfig struct {
	Name     string
	Domain   string
	Secure   bool
	SameSite http.SameSite
}

// AuthHandlers contains HTTP handlers for the sign-in endpoints
type AuthHandlers struct {
	authService *service.AuthService
	cookie      CookieConfig
}

// NewAuthHandlers creates new auth handlers
func NewAuthHandlers(authService *service.AuthService, cookie CookieConfig) *AuthHandlers {
	return &AuthHandlers{
		authService: authService,
		cookie:      cookie,
	}
}

// ChallengeResponse carries an unsigned sign-in message.
type ChallengeResponse struct {
	Success        bool   `json:"success"`
	RequiresSignup bool   `json:"requiresSignup"`
	Message        string `json:"message,omitempty"`
	Nonce          string `json:"nonce,omitempty"`
	ExpirationTime string `json:"expirationTime,omitempty"`
}

func challengeResponse(msg *siwe.Message) ChallengeResponse {
	return ChallengeResponse{
		Success:        true,
		Message:        msg.String(),
		Nonce:          msg.Nonce,
		ExpirationTime: msg.ExpirationTime,
	}
}

// GenerateSignIn issues a sign-in challenge. Addresses that have not accepted
// the terms are told to sign up instead.
func (h *AuthHandlers) GenerateSignIn(c *gin.Context) {
	address, err := core.ParseAddress(c.Query("ethereumAddress"))
	if err != nil {
		writeError(c, err)
		return
	}

	accepted, err := h.authService.TermsAccepted(c.Request.Context(), address)
	if err != nil {
		writeError(c, err)
		return
	}
	if !accepted {
		c.JSON(http.StatusOK, ChallengeResponse{RequiresSignup: true})
		return
	}

	msg, err := h.authService.IssueChallenge(c.Request.Context(), address, core.PurposeSignIn)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, challengeResponse(msg))
}

// GenerateSignUp issues a sign-up challenge and records terms acceptance.
func (h *AuthHandlers) GenerateSignUp(c *gin.Context) {
	address, err := core.ParseAddress(c.Query("ethereumAddress"))
	if err != nil {
		writeError(c, err)
		return
	}

	msg, err := h.authService.IssueChallenge(c.Request.Context(), address, core.PurposeSignUp)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, challengeResponse(msg))
}

// VerifySignIn verifies a signed challenge and sets the session cookie.
func (h *AuthHandlers) VerifySignIn(c *gin.Context) {
	var req struct {
		Message      string `json:"message" binding:"required"`
		Signature    string `json:"signature" binding:"required"`
		IsOnboarding bool   `json:"isOnboarding"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	purpose := core.PurposeSignIn
	if req.IsOnboarding {
		purpose = core.PurposeSignUp
	}

	result, err := h.authService.VerifyChallenge(c.Request.Context(), req.Message, req.Signature, purpose)
	if err != nil {
		writeError(c, err)
		return
	}

	maxAge := int(result.Session.ExpiresAt.Sub(result.Session.CreatedAt) / time.Second)
	h.setCookie(c, result.Token, maxAge)

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"address":   result.Session.Address,
		"expiresAt": result.Session.ExpiresAt,
	})
}

// SignOut destroys the caller's session and clears the cookie.
func (h *AuthHandlers) SignOut(c *gin.Context) {
	session, _ := sessionFrom(c)

	if err := h.authService.SignOut(c.Request.Context(), session); err != nil {
		writeError(c, err)
		return
	}

	h.setCookie(c, "", -1)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// RevokeTerms withdraws the caller's terms acceptance.
func (h *AuthHandlers) RevokeTerms(c *gin.Context) {
	session, _ := sessionFrom(c)

	if err := h.authService.RevokeTerms(c.Request.Context(), session); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *AuthHandlers) setCookie(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(h.cookie.SameSite)
	c.SetCookie(h.cookie.Name, value, maxAge, "/", h.cookie.Domain, h.cookie.Secure, true)
}
