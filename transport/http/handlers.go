package http

import (
	"encoding/hex"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/layer-3/popgate/core"
	"github.com/layer-3/popgate/service"
)

// GatewayHandlers contains HTTP handlers for the personhood gateway.
type GatewayHandlers struct {
	gateway *service.Gateway
}

// NewGatewayHandlers creates new gateway handlers.
func NewGatewayHandlers(gateway *service.Gateway) *GatewayHandlers {
	return &GatewayHandlers{gateway: gateway}
}

// proofOfWorkBody is the wire shape of a proof-of-work solution.
type proofOfWorkBody struct {
	Difficulty int    `json:"difficulty"`
	Nonce      string `json:"nonce" binding:"required"`
	Digest     string `json:"digest"`
}

// verifyRequestBody is the wire shape of a proof bundle submission.
type verifyRequestBody struct {
	SessionID    string           `json:"session_id" binding:"required"`
	IdentityID   string           `json:"identity_id" binding:"required"`
	AuthResponse string           `json:"auth_response" binding:"required"`
	ProofOfWork  *proofOfWorkBody `json:"proof_of_work"`
	TimeProof    *struct {
		AccountAgeDays int `json:"account_age_days"`
	} `json:"time_proof"`
	Reputation *struct {
		Score int `json:"score"`
	} `json:"reputation"`
}

// RequestAccess handles the challenge issuance endpoint.
func (h *GatewayHandlers) RequestAccess(c *gin.Context) {
	grant, err := h.gateway.RequestAccess(c.Request.Context())
	if err != nil {
		if errors.Is(err, core.ErrServiceUnavailable) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "identity proof service unavailable"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create challenge"})
		return
	}

	c.JSON(http.StatusOK, grant)
}

// VerifyPersonhood handles proof bundle submission.
func (h *GatewayHandlers) VerifyPersonhood(c *gin.Context) {
	var req verifyRequestBody
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	bundle := &core.ProofBundle{
		IdentityID: req.IdentityID,
		Auth:       &core.SignatureProof{Response: []byte(req.AuthResponse)},
	}
	if req.ProofOfWork != nil {
		nonce, err := hex.DecodeString(req.ProofOfWork.Nonce)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "proof_of_work.nonce is not valid hex"})
			return
		}
		digest, err := hex.DecodeString(req.ProofOfWork.Digest)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "proof_of_work.digest is not valid hex"})
			return
		}
		bundle.Work = &core.ProofOfWork{
			Difficulty: req.ProofOfWork.Difficulty,
			Nonce:      nonce,
			Digest:     digest,
		}
	}
	if req.TimeProof != nil {
		bundle.Age = &core.TimeProof{AccountAgeDays: req.TimeProof.AccountAgeDays}
	}
	if req.Reputation != nil {
		bundle.Carried = &core.CarriedReputation{Score: req.Reputation.Score}
	}

	result, err := h.gateway.VerifyPersonhood(c.Request.Context(), req.SessionID, bundle)
	if err != nil {
		if errors.Is(err, core.ErrServiceUnavailable) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "identity proof service unavailable"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "verification failed"})
		return
	}

	if !result.Verified {
		c.JSON(denyStatus(result.Reason), result)
		return
	}
	c.JSON(http.StatusOK, result)
}

// denyStatus maps deny reasons to HTTP statuses.
func denyStatus(reason core.DenyReason) int {
	switch reason {
	case core.DenyInvalidSession, core.DenySessionExpired:
		return http.StatusBadRequest
	case core.DenyInvalidAuth, core.DenyInvalidPoW, core.DenyMissingPoW, core.DenyInvalidToken:
		return http.StatusUnauthorized
	case core.DenyBlacklisted, core.DenyTooManyAttempts:
		return http.StatusForbidden
	default:
		return http.StatusBadRequest
	}
}

// Me returns the admitted caller's session view.
func (h *GatewayHandlers) Me(c *gin.Context) {
	admission, exists := c.Get(ContextAdmission)
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "admission missing from context"})
		return
	}

	res := admission.(*core.AdmissionResult)
	c.JSON(http.StatusOK, gin.H{
		"identity_id":     res.IdentityID,
		"tier":            res.Tier,
		"limit":           res.Limit,
		"request_count":   res.RequestCount,
		"last_request_at": res.LastRequestAt,
	})
}

// Authorize reports the admission decision already made by the middleware.
func (h *GatewayHandlers) Authorize(c *gin.Context) {
	admission, exists := c.Get(ContextAdmission)
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "admission missing from context"})
		return
	}

	c.JSON(http.StatusOK, admission)
}

// Blacklist bans an identity and revokes its sessions.
func (h *GatewayHandlers) Blacklist(c *gin.Context) {
	var req struct {
		IdentityID string `json:"identity_id" binding:"required"`
		Reason     string `json:"reason" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	revoked, err := h.gateway.BlacklistIdentity(c.Request.Context(), req.IdentityID, req.Reason)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to blacklist identity"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"blacklisted":      true,
		"sessions_revoked": revoked,
	})
}

// Unblacklist lifts a ban. Revoked sessions are not restored.
func (h *GatewayHandlers) Unblacklist(c *gin.Context) {
	identityID := c.Param("identity_id")
	removed, err := h.gateway.UnblacklistIdentity(c.Request.Context(), identityID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to unblacklist identity"})
		return
	}
	if !removed {
		c.JSON(http.StatusNotFound, gin.H{"error": "identity not blacklisted"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"unblacklisted": true})
}

// Stats returns a snapshot of the gateway's registries.
func (h *GatewayHandlers) Stats(c *gin.Context) {
	stats, err := h.gateway.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to collect stats"})
		return
	}

	c.JSON(http.StatusOK, stats)
}
