package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/yourierick/solifin/member-service/internal/apperr"
	"github.com/yourierick/solifin/member-service/internal/client"
	"github.com/yourierick/solifin/member-service/internal/models"
	"go.uber.org/zap"
)

// PricingAPI is the part of the Solifin API the resolver needs.
type PricingAPI interface {
	ConvertCurrency(ctx context.Context, token string, amount decimal.Decimal, from, to string) (decimal.Decimal, error)
	GetTransferFee(ctx context.Context, token string, amount decimal.Decimal, paymentOption, currency string) (*client.TransferFeeResponse, error)
}

// RateCache remembers successful conversions.
type RateCache interface {
	Get(ctx context.Context, amount decimal.Decimal, from, to string) (decimal.Decimal, bool, error)
	Set(ctx context.Context, amount decimal.Decimal, from, to string, converted decimal.Decimal) error
}

// FeeQuote is a resolved transaction fee. Percentage is nil when no lookup
// was made (wallet).
type FeeQuote struct {
	Fee        decimal.Decimal
	Percentage *decimal.Decimal
}

// FeeResolver performs the conversion and fee lookups requested by the form
// reducer and feeds the outcomes back into it.
type FeeResolver struct {
	api    PricingAPI
	cache  RateCache
	logger *zap.Logger
}

// NewFeeResolver creates a resolver. cache may be nil.
func NewFeeResolver(api PricingAPI, cache RateCache, logger *zap.Logger) *FeeResolver {
	return &FeeResolver{
		api:    api,
		cache:  cache,
		logger: logger.Named("fee_resolver"),
	}
}

// ConvertCurrency converts amount. On failure it returns amount unchanged
// together with the error, so callers always have a displayable value.
func (r *FeeResolver) ConvertCurrency(ctx context.Context, token string, amount decimal.Decimal, from, to string) (decimal.Decimal, error) {
	if from == to {
		return amount, nil
	}

	if r.cache != nil {
		if v, ok, err := r.cache.Get(ctx, amount, from, to); err != nil {
			r.logger.Debug("conversion cache read failed", zap.Error(err))
		} else if ok {
			return v, nil
		}
	}

	converted, err := r.api.ConvertCurrency(ctx, token, amount, from, to)
	if err == nil && amount.IsPositive() && !converted.IsPositive() {
		err = apperr.Network("convert currency", fmt.Errorf("backend converted %s %s to %s", amount, from, converted))
	}
	if err != nil {
		r.logger.Warn("currency conversion failed, keeping unconverted amount",
			zap.String("from", from), zap.String("to", to), zap.Error(err))
		return amount, err
	}

	if r.cache != nil {
		if err := r.cache.Set(ctx, amount, from, to, converted); err != nil {
			r.logger.Debug("conversion cache write failed", zap.Error(err))
		}
	}
	return converted, nil
}

// ComputeFee looks up the fee for a specific payment option. Wallet
// payments cost nothing and never reach the network. On failure the quote
// is a zero fee at zero percent, returned with the error.
func (r *FeeResolver) ComputeFee(ctx context.Context, token string, amount decimal.Decimal, method models.PaymentMethod, option, currency string) (FeeQuote, error) {
	if method == models.PaymentMethodWallet {
		return FeeQuote{Fee: decimal.Zero}, nil
	}

	resp, err := r.api.GetTransferFee(ctx, token, amount, option, currency)
	if err != nil {
		r.logger.Warn("fee lookup failed",
			zap.String("option", option), zap.String("currency", currency), zap.Error(err))
		zero := decimal.Zero
		return FeeQuote{Fee: decimal.Zero, Percentage: &zero}, err
	}

	pct := resp.Percentage.Decimal
	return FeeQuote{Fee: resp.Fee.Decimal, Percentage: &pct}, nil
}

// Execute performs one effect and returns the event to apply.
func (r *FeeResolver) Execute(ctx context.Context, token string, method models.PaymentMethod, eff Effect) Event {
	switch eff.Kind {
	case EffectConvert:
		amount, err := r.ConvertCurrency(ctx, token, eff.Amount, eff.From, eff.To)
		if err != nil {
			return ConversionFailed{Seq: eff.Seq}
		}
		return ConversionSucceeded{Seq: eff.Seq, Amount: amount}
	case EffectComputeFee:
		quote, err := r.ComputeFee(ctx, token, eff.Amount, method, eff.Option, eff.Currency)
		if err != nil {
			return FeeFailed{Seq: eff.Seq}
		}
		pct := decimal.Zero
		if quote.Percentage != nil {
			pct = *quote.Percentage
		}
		return FeeSucceeded{Seq: eff.Seq, Fee: quote.Fee, Percentage: pct}
	}
	return nil
}

// Run drives the form until no call is pending.
func (r *FeeResolver) Run(ctx context.Context, token string, f models.RenewalForm, eff *Effect) models.RenewalForm {
	for eff != nil {
		ev := r.Execute(ctx, token, f.PaymentMethod, *eff)
		if ev == nil {
			break
		}
		f, eff = Apply(f, ev)
	}
	return f
}
