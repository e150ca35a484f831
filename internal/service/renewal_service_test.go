package service

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/yourierick/solifin/member-service/internal/apperr"
	"github.com/yourierick/solifin/member-service/internal/client"
	"github.com/yourierick/solifin/member-service/internal/config"
	"github.com/yourierick/solifin/member-service/internal/models"
	"go.uber.org/zap"
)

func newTestRenewalService(api *fakeAPI, store *fakeLogStore) *RenewalService {
	cfg := &config.Config{Renewal: config.RenewalConfig{DefaultCurrency: "USD"}}
	logger := zap.NewNop()
	return NewRenewalService(cfg, api, NewFeeResolver(api, nil, logger), store, logger)
}

func balanceOf(s string) func() (decimal.Decimal, error) {
	return func() (decimal.Decimal, error) { return dec(s), nil }
}

func walletRequest(months int) *models.RenewalQuoteRequest {
	return &models.RenewalQuoteRequest{
		BasePrice:     dec("10"),
		Months:        months,
		PaymentMethod: models.PaymentMethodWallet,
	}
}

func cardRequest(currency string) *models.RenewalQuoteRequest {
	return &models.RenewalQuoteRequest{
		BasePrice:     dec("10"),
		Months:        1,
		PaymentMethod: models.PaymentMethodCreditCard,
		PaymentOption: "visa",
		Currency:      currency,
		Fields: map[string]string{
			"card_number": "4111111111111111",
			"card_holder": "Awa Diallo",
			"expiry_date": "12/28",
			"cvv":         "123",
		},
	}
}

func TestQuoteWallet(t *testing.T) {
	tests := []struct {
		name    string
		balance string
		valid   bool
	}{
		{"balance covers total", "50", true},
		{"balance too low", "20", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeAPI{balance: balanceOf(tt.balance)}
			svc := newTestRenewalService(api, &fakeLogStore{})

			q, err := svc.Quote(context.Background(), "tok", walletRequest(3))
			if err != nil {
				t.Fatalf("Quote() error = %v", err)
			}
			if !q.TotalAmount.Equal(dec("30")) || !q.ConvertedAmount.Equal(dec("30")) || !q.TransactionFees.IsZero() {
				t.Errorf("total = %s, converted = %s, fees = %s", q.TotalAmount, q.ConvertedAmount, q.TransactionFees)
			}
			if q.FormIsValid != tt.valid {
				t.Errorf("FormIsValid = %v, want %v (problems %v)", q.FormIsValid, tt.valid, q.Problems)
			}
			if api.convertCalls != 0 || api.feeCalls != 0 {
				t.Error("wallet quote reached the pricing endpoints")
			}
		})
	}
}

func TestQuoteWalletBalanceUnavailable(t *testing.T) {
	svc := newTestRenewalService(&fakeAPI{}, &fakeLogStore{})

	q, err := svc.Quote(context.Background(), "tok", walletRequest(1))
	if err != nil {
		t.Fatalf("Quote() error = %v", err)
	}
	if !q.WalletBalance.IsZero() || q.FormIsValid {
		t.Errorf("balance = %s, valid = %v; want 0 and invalid", q.WalletBalance, q.FormIsValid)
	}
}

func TestQuoteCardConversionFailure(t *testing.T) {
	api := &fakeAPI{fee: feeOf("1", "10")}
	svc := newTestRenewalService(api, &fakeLogStore{})

	q, err := svc.Quote(context.Background(), "tok", cardRequest("EUR"))
	if err != nil {
		t.Fatalf("Quote() error = %v", err)
	}
	if !q.ConvertedAmount.Equal(dec("10")) || !q.FeesError || q.FormIsValid {
		t.Errorf("converted = %s, feesError = %v, valid = %v", q.ConvertedAmount, q.FeesError, q.FormIsValid)
	}
	if api.convertCalls != 1 {
		t.Errorf("conversion called %d times, want 1", api.convertCalls)
	}
}

func TestQuoteCardSuccess(t *testing.T) {
	api := &fakeAPI{
		convert: func(decimal.Decimal, string, string) (decimal.Decimal, error) { return dec("9.2"), nil },
		fee:     feeOf("0.46", "5"),
	}
	svc := newTestRenewalService(api, &fakeLogStore{})

	q, err := svc.Quote(context.Background(), "tok", cardRequest("eur"))
	if err != nil {
		t.Fatalf("Quote() error = %v", err)
	}
	if q.Currency != "EUR" || !q.ConvertedAmount.Equal(dec("9.2")) || !q.TransactionFees.Equal(dec("0.46")) {
		t.Errorf("currency = %s, converted = %s, fees = %s", q.Currency, q.ConvertedAmount, q.TransactionFees)
	}
	if !q.FormIsValid {
		t.Errorf("problems = %v", q.Problems)
	}
	if api.feeCalls != 1 {
		t.Errorf("fee lookup called %d times, want 1", api.feeCalls)
	}
}

func TestQuoteRejectsBadInput(t *testing.T) {
	svc := newTestRenewalService(&fakeAPI{}, &fakeLogStore{})

	tests := []struct {
		name string
		req  *models.RenewalQuoteRequest
	}{
		{"zero price", &models.RenewalQuoteRequest{BasePrice: decimal.Zero, Months: 1, PaymentMethod: models.PaymentMethodWallet}},
		{"unknown method", &models.RenewalQuoteRequest{BasePrice: dec("10"), Months: 1, PaymentMethod: "paypal"}},
		{"currency not a code", &models.RenewalQuoteRequest{BasePrice: dec("10"), Months: 1, PaymentMethod: models.PaymentMethodCreditCard, PaymentOption: "visa", Currency: "not-a-currency"}},
		{"currency with digits", &models.RenewalQuoteRequest{BasePrice: dec("10"), Months: 1, PaymentMethod: models.PaymentMethodMobileMoney, PaymentOption: "mpesa", Currency: "US1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Quote(context.Background(), "tok", tt.req)
			if !apperr.Is(err, apperr.KindValidation) {
				t.Errorf("err = %v, want validation error", err)
			}
			store := &fakeLogStore{}
			_, err = newTestRenewalService(&fakeAPI{}, store).Renew(context.Background(), "tok", "u1", "p1", tt.req)
			if !apperr.Is(err, apperr.KindValidation) {
				t.Errorf("Renew() err = %v, want validation error", err)
			}
		})
	}
}

func TestRecalculateRetriesFee(t *testing.T) {
	api := &fakeAPI{
		fee: func(call int, amount decimal.Decimal, option, currency string) (*client.TransferFeeResponse, error) {
			if call == 1 {
				return nil, errBackendDown
			}
			return feeOf("0.5", "5")(call, amount, option, currency)
		},
	}
	svc := newTestRenewalService(api, &fakeLogStore{})

	q, err := svc.Recalculate(context.Background(), "tok", cardRequest("USD"))
	if err != nil {
		t.Fatalf("Recalculate() error = %v", err)
	}
	if api.feeCalls != 2 {
		t.Errorf("fee lookup called %d times, want 2", api.feeCalls)
	}
	if q.FeesError || !q.TransactionFees.Equal(dec("0.5")) || !q.FormIsValid {
		t.Errorf("feesError = %v, fees = %s, problems = %v", q.FeesError, q.TransactionFees, q.Problems)
	}
}

func TestRenewInvalidFormIsNotSubmitted(t *testing.T) {
	api := &fakeAPI{balance: balanceOf("5")}
	store := &fakeLogStore{}
	svc := newTestRenewalService(api, store)

	_, err := svc.Renew(context.Background(), "tok", "u1", "p1", walletRequest(1))
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("err = %v, want validation error", err)
	}
	if api.renewCalls != 0 {
		t.Error("invalid renewal reached the backend")
	}
	if len(store.entries) != 1 || store.entries[0].Status != models.RenewalStatusInvalid {
		t.Errorf("log entries = %+v, want one invalid attempt", store.entries)
	}
}

func TestRenewBackendErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantKind   apperr.Kind
		wantStatus string
	}{
		{"rejected", apperr.Rejected("renew pack", "Pack already renewed"), apperr.KindRejected, models.RenewalStatusRejected},
		{"network", errBackendDown, apperr.KindNetwork, models.RenewalStatusFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeAPI{
				balance: balanceOf("100"),
				renew: func(*client.RenewPackRequest) (*client.RenewPackResponse, error) {
					return nil, tt.err
				},
			}
			store := &fakeLogStore{}
			svc := newTestRenewalService(api, store)

			_, err := svc.Renew(context.Background(), "tok", "u1", "p1", walletRequest(2))
			if apperr.KindOf(err) != tt.wantKind {
				t.Errorf("kind = %q, want %q", apperr.KindOf(err), tt.wantKind)
			}
			if len(store.entries) != 1 || store.entries[0].Status != tt.wantStatus {
				t.Errorf("log entries = %+v, want status %s", store.entries, tt.wantStatus)
			}
		})
	}
}

func TestRenewAccepted(t *testing.T) {
	api := &fakeAPI{
		balance: balanceOf("100"),
		renew: func(*client.RenewPackRequest) (*client.RenewPackResponse, error) {
			return &client.RenewPackResponse{Success: true}, nil
		},
	}
	store := &fakeLogStore{}
	svc := newTestRenewalService(api, store)

	resp, err := svc.Renew(context.Background(), "tok", "u1", "p1", walletRequest(3))
	if err != nil {
		t.Fatalf("Renew() error = %v", err)
	}
	if !resp.Success || resp.Message != "Pack renewed" || resp.LogID != "log-1" {
		t.Errorf("unexpected response %+v", resp)
	}

	req := api.lastRenew
	if req.DurationMonths != 3 || req.PaymentType != "wallet" || req.PaymentMethod != models.WalletOption {
		t.Errorf("unexpected renew request %+v", req)
	}
	if !req.Amount.Equal(dec("30")) || !req.Fees.IsZero() || req.Currency != "USD" {
		t.Errorf("amount = %s, fees = %s, currency = %s", req.Amount, req.Fees, req.Currency)
	}

	history, err := svc.History(context.Background(), "u1", "p1", 10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 1 || history[0].Status != models.RenewalStatusAccepted {
		t.Errorf("history = %+v", history)
	}
}

func TestRenewSurvivesLogFailure(t *testing.T) {
	api := &fakeAPI{
		balance: balanceOf("100"),
		renew: func(*client.RenewPackRequest) (*client.RenewPackResponse, error) {
			return &client.RenewPackResponse{Success: true, Message: "ok"}, nil
		},
	}
	svc := newTestRenewalService(api, &fakeLogStore{createErr: errors.New("db down")})

	resp, err := svc.Renew(context.Background(), "tok", "u1", "p1", walletRequest(1))
	if err != nil {
		t.Fatalf("Renew() error = %v", err)
	}
	if resp.LogID != "" || resp.Message != "ok" {
		t.Errorf("unexpected response %+v", resp)
	}
}
