package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/yourierick/solifin/member-service/internal/apperr"
	"github.com/yourierick/solifin/member-service/internal/client"
	"github.com/yourierick/solifin/member-service/internal/config"
	"github.com/yourierick/solifin/member-service/internal/metrics"
	"github.com/yourierick/solifin/member-service/internal/models"
	"go.uber.org/zap"
)

// RenewalAPI is the part of the Solifin API used for renewals.
type RenewalAPI interface {
	PricingAPI
	GetWalletBalance(ctx context.Context, token string) (decimal.Decimal, error)
	RenewPack(ctx context.Context, token, packID string, req *client.RenewPackRequest) (*client.RenewPackResponse, error)
}

// RenewalLogStore persists renewal attempts.
type RenewalLogStore interface {
	Create(ctx context.Context, entry *models.RenewalLog) error
	ListByUserAndPack(ctx context.Context, userID, packID string, limit int) ([]*models.RenewalLog, error)
}

// RenewalService resolves renewal forms and submits renewals.
type RenewalService struct {
	cfg      *config.Config
	api      RenewalAPI
	resolver *FeeResolver
	logs     RenewalLogStore
	logger   *zap.Logger
}

// NewRenewalService creates a new renewal service
func NewRenewalService(
	cfg *config.Config,
	api RenewalAPI,
	resolver *FeeResolver,
	logs RenewalLogStore,
	logger *zap.Logger,
) *RenewalService {
	return &RenewalService{
		cfg:      cfg,
		api:      api,
		resolver: resolver,
		logs:     logs,
		logger:   logger.Named("renewal_service"),
	}
}

// WalletBalance returns the member's balance, or zero when it cannot be read.
func (s *RenewalService) WalletBalance(ctx context.Context, token string) decimal.Decimal {
	balance, err := s.api.GetWalletBalance(ctx, token)
	if err != nil {
		s.logger.Warn("wallet balance unavailable, assuming zero", zap.Error(err))
		return decimal.Zero
	}
	return balance
}

// Quote resolves a renewal form from the submitted inputs.
func (s *RenewalService) Quote(ctx context.Context, token string, req *models.RenewalQuoteRequest) (*models.RenewalQuoteResponse, error) {
	f, err := s.resolve(ctx, token, req, false)
	if err != nil {
		return nil, err
	}
	return quoteResponse(f), nil
}

// Recalculate is Quote followed by the manual retry when fees failed.
func (s *RenewalService) Recalculate(ctx context.Context, token string, req *models.RenewalQuoteRequest) (*models.RenewalQuoteResponse, error) {
	f, err := s.resolve(ctx, token, req, true)
	if err != nil {
		return nil, err
	}
	return quoteResponse(f), nil
}

func (s *RenewalService) resolve(ctx context.Context, token string, req *models.RenewalQuoteRequest, retry bool) (models.RenewalForm, error) {
	if !req.BasePrice.IsPositive() {
		return models.RenewalForm{}, apperr.Validation("renewal quote", "base_price must be positive")
	}
	if !req.PaymentMethod.IsValid() {
		return models.RenewalForm{}, apperr.Validation("renewal quote", fmt.Sprintf("unknown payment method %q", req.PaymentMethod))
	}

	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = s.cfg.Renewal.DefaultCurrency
	}
	if !models.IsCurrencyCode(currency) {
		return models.RenewalForm{}, apperr.Validation("renewal quote", fmt.Sprintf("currency %q is not an ISO 4217 code", req.Currency))
	}

	// Each input restarts the pipeline, so only the effect of the last one
	// is still current.
	events := []Event{
		MethodChanged{Method: req.PaymentMethod},
		OptionChanged{Option: req.PaymentOption},
		CurrencyChanged{Currency: currency},
		MonthsChanged{Months: req.Months},
	}
	if req.PaymentMethod == models.PaymentMethodWallet {
		events = append(events, BalanceLoaded{Balance: s.WalletBalance(ctx, token)})
	}
	for _, key := range sortedKeys(req.Fields) {
		events = append(events, FieldChanged{Key: key, Value: req.Fields[key]})
	}

	f := NewRenewalForm(req.BasePrice)
	var eff *Effect
	for _, ev := range events {
		f, eff = applyKeepingEffect(f, ev, eff)
	}
	f = s.resolver.Run(ctx, token, f, eff)

	if retry && f.Stage == models.StageFeeError {
		s.logger.Info("recalculating fees after error", zap.String("option", f.PaymentOption))
		f, eff = Apply(f, Recalculate{})
		f = s.resolver.Run(ctx, token, f, eff)
	}

	return f, nil
}

// applyKeepingEffect applies ev and keeps the pending effect unless ev
// superseded it.
func applyKeepingEffect(f models.RenewalForm, ev Event, pending *Effect) (models.RenewalForm, *Effect) {
	next, eff := Apply(f, ev)
	if eff != nil {
		return next, eff
	}
	if pending != nil && IsStale(next, pending.Seq) {
		return next, nil
	}
	return next, pending
}

// Renew validates the form again and forwards the renewal to the backend.
// Every attempt is written to the renewal log.
func (s *RenewalService) Renew(ctx context.Context, token, userID, packID string, req *models.RenewalQuoteRequest) (*models.RenewalResponse, error) {
	f, err := s.resolve(ctx, token, req, false)
	if err != nil {
		return nil, err
	}
	quote := quoteResponse(f)

	if !quote.FormIsValid {
		msg := strings.Join(quote.Problems, "; ")
		s.record(ctx, userID, packID, f, models.RenewalStatusInvalid, msg)
		metrics.RenewalsTotal.WithLabelValues(string(f.PaymentMethod), models.RenewalStatusInvalid).Inc()
		return nil, apperr.Validation("renew pack", msg)
	}

	resp, err := s.api.RenewPack(ctx, token, packID, &client.RenewPackRequest{
		DurationMonths: f.Months,
		PaymentType:    string(f.PaymentMethod),
		PaymentMethod:  f.PaymentOption,
		Currency:       f.Currency,
		Amount:         f.ConvertedAmount,
		Fees:           f.TransactionFees,
		PaymentDetails: f.Fields,
	})
	if err != nil {
		status := models.RenewalStatusFailed
		if apperr.Is(err, apperr.KindRejected) {
			status = models.RenewalStatusRejected
		}
		s.record(ctx, userID, packID, f, status, apperr.UserMessage(err))
		metrics.RenewalsTotal.WithLabelValues(string(f.PaymentMethod), status).Inc()
		return nil, fmt.Errorf("renew pack %s: %w", packID, err)
	}

	message := resp.Message
	if message == "" {
		message = "Pack renewed"
	}
	logID := s.record(ctx, userID, packID, f, models.RenewalStatusAccepted, message)
	metrics.RenewalsTotal.WithLabelValues(string(f.PaymentMethod), models.RenewalStatusAccepted).Inc()

	s.logger.Info("pack renewed",
		zap.String("user_id", userID),
		zap.String("pack_id", packID),
		zap.Int("months", f.Months),
		zap.String("payment_method", string(f.PaymentMethod)))

	return &models.RenewalResponse{
		Success: true,
		Message: message,
		LogID:   logID,
		Quote:   quote,
	}, nil
}

// History lists the member's recent renewal attempts for a pack.
func (s *RenewalService) History(ctx context.Context, userID, packID string, limit int) ([]*models.RenewalLog, error) {
	entries, err := s.logs.ListByUserAndPack(ctx, userID, packID, limit)
	if err != nil {
		return nil, fmt.Errorf("list renewal history: %w", err)
	}
	return entries, nil
}

// record writes the attempt; a storage failure never fails the renewal.
func (s *RenewalService) record(ctx context.Context, userID, packID string, f models.RenewalForm, status, message string) string {
	entry := &models.RenewalLog{
		UserID:          userID,
		PackID:          packID,
		Months:          f.Months,
		PaymentMethod:   f.PaymentMethod,
		PaymentOption:   f.PaymentOption,
		Currency:        f.Currency,
		TotalAmount:     f.TotalAmount,
		ConvertedAmount: f.ConvertedAmount,
		TransactionFees: f.TransactionFees,
		Status:          status,
		Message:         message,
	}
	if err := s.logs.Create(ctx, entry); err != nil {
		s.logger.Error("failed to record renewal attempt",
			zap.String("pack_id", packID), zap.String("status", status), zap.Error(err))
		return ""
	}
	return entry.ID
}

func quoteResponse(f models.RenewalForm) *models.RenewalQuoteResponse {
	problems := Problems(f)
	return &models.RenewalQuoteResponse{
		RenewalForm: f,
		FormIsValid: len(problems) == 0,
		Problems:    problems,
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
