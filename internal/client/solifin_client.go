package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yourierick/solifin/member-service/internal/apperr"
	"github.com/yourierick/solifin/member-service/internal/metrics"
	"github.com/yourierick/solifin/member-service/internal/models"
	"go.uber.org/zap"
)

// maxErrorBody bounds how much of an error response is kept for messages.
const maxErrorBody = 4 << 10

// SolifinClient calls the Solifin backend API on behalf of a member. Every
// call forwards the member's bearer token.
type SolifinClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewSolifinClient creates a new backend API client
func NewSolifinClient(baseURL string, timeout time.Duration, logger *zap.Logger) *SolifinClient {
	return &SolifinClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger.Named("solifin_client"),
	}
}

// envelope is the common {success, message} wrapper of backend responses.
type envelope struct {
	Success *bool  `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

func (e envelope) text() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Error
}

// WalletBalanceResponse is the response of GET /api/userwallet/balance
type WalletBalanceResponse struct {
	Success bool                 `json:"success"`
	Balance models.LenientAmount `json:"balance"`
}

// ConvertRequest is the body of POST /api/currency/convert
type ConvertRequest struct {
	Amount decimal.Decimal `json:"amount"`
	From   string          `json:"from"`
	To     string          `json:"to"`
}

type ConvertResponse struct {
	Success         bool                 `json:"success"`
	ConvertedAmount models.LenientAmount `json:"convertedAmount"`
}

// TransferFeeRequest is the body of POST /api/transaction-fees/transfer.
// PaymentMethod carries the specific option (visa, m-pesa), not the category.
type TransferFeeRequest struct {
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod string          `json:"payment_method"`
	Currency      string          `json:"currency"`
}

type TransferFeeResponse struct {
	Success    bool                 `json:"success"`
	Fee        models.LenientAmount `json:"fee"`
	Percentage models.LenientAmount `json:"percentage"`
}

// RenewPackRequest is the body of POST /api/packs/{id}/renew
type RenewPackRequest struct {
	DurationMonths int               `json:"duration_months"`
	PaymentType    string            `json:"payment_type"`
	PaymentMethod  string            `json:"payment_method"`
	Currency       string            `json:"currency"`
	Amount         decimal.Decimal   `json:"amount"`
	Fees           decimal.Decimal   `json:"fees"`
	PaymentDetails map[string]string `json:"payment_details,omitempty"`
}

type RenewPackResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// ReferralsResponse is the response of GET /api/packs/{id}/referrals.
// Data[0] holds generation 1.
type ReferralsResponse struct {
	Data [][]models.ReferralRecord `json:"data"`
}

// GetWalletBalance fetches the member's wallet balance in USD.
func (c *SolifinClient) GetWalletBalance(ctx context.Context, token string) (decimal.Decimal, error) {
	var resp WalletBalanceResponse
	if err := c.do(ctx, "wallet_balance", http.MethodGet, "/api/userwallet/balance", token, nil, &resp); err != nil {
		return decimal.Zero, err
	}
	return resp.Balance.Decimal, nil
}

// ConvertCurrency converts amount between two ISO currencies.
func (c *SolifinClient) ConvertCurrency(ctx context.Context, token string, amount decimal.Decimal, from, to string) (decimal.Decimal, error) {
	req := &ConvertRequest{Amount: amount, From: from, To: to}
	var resp ConvertResponse
	if err := c.do(ctx, "currency_convert", http.MethodPost, "/api/currency/convert", token, req, &resp); err != nil {
		return decimal.Zero, err
	}
	// A missing, null or non-numeric convertedAmount decodes as zero.
	if amount.IsPositive() && !resp.ConvertedAmount.IsPositive() {
		return decimal.Zero, apperr.Network("solifin currency_convert",
			fmt.Errorf("unusable convertedAmount %s for %s %s", resp.ConvertedAmount.String(), amount.String(), from))
	}
	return resp.ConvertedAmount.Decimal, nil
}

// GetTransferFee looks up the transaction fee for a specific payment option.
func (c *SolifinClient) GetTransferFee(ctx context.Context, token string, amount decimal.Decimal, paymentOption, currency string) (*TransferFeeResponse, error) {
	req := &TransferFeeRequest{Amount: amount, PaymentMethod: paymentOption, Currency: currency}
	var resp TransferFeeResponse
	if err := c.do(ctx, "transfer_fee", http.MethodPost, "/api/transaction-fees/transfer", token, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RenewPack finalizes a pack renewal. A refusal comes back as a KindRejected error
// carrying the backend's message.
func (c *SolifinClient) RenewPack(ctx context.Context, token, packID string, req *RenewPackRequest) (*RenewPackResponse, error) {
	path := fmt.Sprintf("/api/packs/%s/renew", url.PathEscape(packID))
	var resp RenewPackResponse
	if err := c.do(ctx, "pack_renew", http.MethodPost, path, token, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetReferrals fetches the per-generation referral arrays of a pack.
func (c *SolifinClient) GetReferrals(ctx context.Context, token, packID string) ([][]models.ReferralRecord, error) {
	path := fmt.Sprintf("/api/packs/%s/referrals", url.PathEscape(packID))
	var resp ReferralsResponse
	if err := c.do(ctx, "pack_referrals", http.MethodGet, path, token, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// GetDetailedStats returns the pack statistics object untouched.
func (c *SolifinClient) GetDetailedStats(ctx context.Context, token, packID string) (json.RawMessage, error) {
	path := fmt.Sprintf("/api/packs/%s/detailed-stats", url.PathEscape(packID))
	var resp json.RawMessage
	if err := c.do(ctx, "pack_detailed_stats", http.MethodGet, path, token, nil, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// do performs one JSON call and maps failures onto apperr kinds:
// transport errors, 5xx and bad bodies are network errors, 404 is not found,
// other 4xx and success=false are rejections.
func (c *SolifinClient) do(ctx context.Context, endpoint, method, path, token string, in, out interface{}) (err error) {
	op := "solifin " + endpoint
	start := time.Now()
	defer func() {
		metrics.BackendCallDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
		outcome := "ok"
		if err != nil {
			outcome = string(apperr.KindOf(err))
			if outcome == "" {
				outcome = "error"
			}
		}
		metrics.BackendCallsTotal.WithLabelValues(endpoint, outcome).Inc()
	}()

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("backend call failed", zap.String("endpoint", endpoint), zap.Error(err))
		return apperr.Network(op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperr.Network(op, fmt.Errorf("read body: %w", err))
	}

	var env envelope
	_ = json.Unmarshal(raw, &env)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return apperr.NotFound(op, env.text())
	case resp.StatusCode >= 500:
		c.logger.Warn("backend returned server error",
			zap.String("endpoint", endpoint),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", truncate(raw)))
		return apperr.Network(op, fmt.Errorf("solifin api returned status %d", resp.StatusCode))
	case resp.StatusCode >= 400:
		msg := env.text()
		if msg == "" {
			msg = fmt.Sprintf("request refused with status %d", resp.StatusCode)
		}
		return apperr.Rejected(op, msg)
	}

	if env.Success != nil && !*env.Success {
		msg := env.text()
		if msg == "" {
			msg = "request refused"
		}
		return apperr.Rejected(op, msg)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return apperr.Network(op, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func truncate(b []byte) []byte {
	if len(b) > maxErrorBody {
		return b[:maxErrorBody]
	}
	return b
}
