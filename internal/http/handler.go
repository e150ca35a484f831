package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/yourierick/solifin/member-service/internal/apperr"
	"github.com/yourierick/solifin/member-service/internal/models"
)

// RenewalService is implemented by *service.RenewalService.
type RenewalService interface {
	WalletBalance(ctx context.Context, token string) decimal.Decimal
	Quote(ctx context.Context, token string, req *models.RenewalQuoteRequest) (*models.RenewalQuoteResponse, error)
	Recalculate(ctx context.Context, token string, req *models.RenewalQuoteRequest) (*models.RenewalQuoteResponse, error)
	Renew(ctx context.Context, token, userID, packID string, req *models.RenewalQuoteRequest) (*models.RenewalResponse, error)
	History(ctx context.Context, userID, packID string, limit int) ([]*models.RenewalLog, error)
}

// ReferralService is implemented by *service.ReferralService.
type ReferralService interface {
	GetTree(ctx context.Context, token, packID string) (*models.ReferralTreeResponse, error)
	GetStats(ctx context.Context, token, packID string) (json.RawMessage, error)
}

type Handler struct {
	renewals  RenewalService
	referrals ReferralService
}

func NewHandler(renewals RenewalService, referrals ReferralService) *Handler {
	return &Handler{
		renewals:  renewals,
		referrals: referrals,
	}
}

// ==================== Wallet ====================

// GetWalletBalance returns the member's wallet balance (0 when unavailable)
func (h *Handler) GetWalletBalance(c *gin.Context) {
	balance := h.renewals.WalletBalance(c.Request.Context(), c.GetString(ctxToken))
	c.JSON(http.StatusOK, gin.H{"success": true, "balance": balance, "currency": models.WalletCurrency})
}

// ==================== Referrals ====================

// GetReferralTree returns the pack's referral tree with generation totals
func (h *Handler) GetReferralTree(c *gin.Context) {
	resp, err := h.referrals.GetTree(c.Request.Context(), c.GetString(ctxToken), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": resp})
}

// GetPackStats returns the pack's detailed statistics
func (h *Handler) GetPackStats(c *gin.Context) {
	stats, err := h.referrals.GetStats(c.Request.Context(), c.GetString(ctxToken), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": stats})
}

// ==================== Renewal ====================

// QuoteRenewal resolves totals, conversion and fees for the renewal form
func (h *Handler) QuoteRenewal(c *gin.Context) {
	var req models.RenewalQuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	resp, err := h.renewals.Quote(c.Request.Context(), c.GetString(ctxToken), &req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": resp})
}

// RecalculateRenewal is QuoteRenewal with a manual fee retry
func (h *Handler) RecalculateRenewal(c *gin.Context) {
	var req models.RenewalQuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	resp, err := h.renewals.Recalculate(c.Request.Context(), c.GetString(ctxToken), &req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": resp})
}

// RenewPack submits the renewal
func (h *Handler) RenewPack(c *gin.Context) {
	var req models.RenewalQuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	resp, err := h.renewals.Renew(c.Request.Context(), c.GetString(ctxToken), c.GetString(ctxUserID), c.Param("id"), &req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GetRenewalHistory lists the member's renewal attempts for the pack
func (h *Handler) GetRenewalHistory(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	entries, err := h.renewals.History(c.Request.Context(), c.GetString(ctxUserID), c.Param("id"), limit)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": entries})
}

// writeError maps error kinds to status codes; the body carries only the
// member-facing message.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		status = http.StatusBadRequest
	case apperr.KindRejected:
		status = http.StatusUnprocessableEntity
	case apperr.KindNotFound:
		status = http.StatusNotFound
	case apperr.KindNetwork:
		status = http.StatusBadGateway
	}

	c.JSON(status, gin.H{
		"success": false,
		"kind":    apperr.KindOf(err),
		"error":   apperr.UserMessage(err),
	})
}
