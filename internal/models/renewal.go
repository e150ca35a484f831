package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	PaymentMethodWallet      PaymentMethod = "wallet"
	PaymentMethodCreditCard  PaymentMethod = "credit_card"
	PaymentMethodMobileMoney PaymentMethod = "mobile_money"
)

func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodWallet, PaymentMethodCreditCard, PaymentMethodMobileMoney:
		return true
	}
	return false
}

// WalletOption is the sub-option auto-selected for wallet payments.
const WalletOption = "solifin-wallet"

// WalletCurrency is the only currency a wallet holds.
const WalletCurrency = "USD"

// IsCurrencyCode reports whether code has the shape of an ISO 4217 code.
func IsCurrencyCode(code string) bool {
	if len(code) != 3 {
		return false
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

// requiredFields lists the payment detail fields each method needs.
var requiredFields = map[PaymentMethod][]string{
	PaymentMethodWallet:      {},
	PaymentMethodCreditCard:  {"card_number", "card_holder", "expiry_date", "cvv"},
	PaymentMethodMobileMoney: {"phone_number"},
}

// RequiredFields returns the payment detail keys that must be non-empty.
func (m PaymentMethod) RequiredFields() []string {
	return requiredFields[m]
}

// FeeStage is the position of a renewal form in the conversion/fee pipeline.
type FeeStage string

const (
	StageIdle               FeeStage = "idle"
	StageConvertingCurrency FeeStage = "converting_currency"
	StageComputingFee       FeeStage = "computing_fee"
	StageReady              FeeStage = "ready"
	StageFeeError           FeeStage = "fee_error"
)

// InFlight reports whether a conversion or fee lookup is pending.
func (s FeeStage) InFlight() bool {
	return s == StageConvertingCurrency || s == StageComputingFee
}

// RenewalForm is the state of one renewal dialog. It only changes through
// service.Apply.
type RenewalForm struct {
	BasePrice       decimal.Decimal   `json:"base_price"`
	Months          int               `json:"months"`
	PaymentMethod   PaymentMethod     `json:"payment_method"`
	PaymentOption   string            `json:"payment_option"`
	Currency        string            `json:"currency"`
	Fields          map[string]string `json:"-"`
	WalletBalance   decimal.Decimal   `json:"wallet_balance"`
	TotalAmount     decimal.Decimal   `json:"total_amount"`
	ConvertedAmount decimal.Decimal   `json:"converted_amount"`
	TransactionFees decimal.Decimal   `json:"transaction_fees"`
	FeePercentage   *decimal.Decimal  `json:"fee_percentage"`
	FeesError       bool              `json:"fees_error"`
	Stage           FeeStage          `json:"stage"`

	// Seq identifies the latest conversion/fee request; older results are ignored.
	Seq uint64 `json:"-"`
	// Converted is false while ConvertedAmount is only the unconverted fallback.
	Converted bool `json:"-"`
}

// RenewalQuoteRequest is the body of the quote and renew endpoints.
type RenewalQuoteRequest struct {
	BasePrice     decimal.Decimal   `json:"base_price"`
	Months        int               `json:"months"`
	PaymentMethod PaymentMethod     `json:"payment_method" binding:"required"`
	PaymentOption string            `json:"payment_option"`
	Currency      string            `json:"currency"`
	Fields        map[string]string `json:"fields"`
}

type RenewalQuoteResponse struct {
	RenewalForm
	FormIsValid bool     `json:"form_is_valid"`
	Problems    []string `json:"problems,omitempty"`
}

type RenewalResponse struct {
	Success bool                  `json:"success"`
	Message string                `json:"message,omitempty"`
	LogID   string                `json:"log_id,omitempty"`
	Quote   *RenewalQuoteResponse `json:"quote,omitempty"`
}

// Renewal log status constants
const (
	RenewalStatusAccepted = "accepted"
	RenewalStatusRejected = "rejected"
	RenewalStatusInvalid  = "invalid"
	RenewalStatusFailed   = "failed"
)

// RenewalLog is one renewal submission attempt.
type RenewalLog struct {
	ID              string          `json:"id"`
	UserID          string          `json:"user_id"`
	PackID          string          `json:"pack_id"`
	Months          int             `json:"months"`
	PaymentMethod   PaymentMethod   `json:"payment_method"`
	PaymentOption   string          `json:"payment_option"`
	Currency        string          `json:"currency"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	ConvertedAmount decimal.Decimal `json:"converted_amount"`
	TransactionFees decimal.Decimal `json:"transaction_fees"`
	Status          string          `json:"status"`
	Message         string          `json:"message"`
	CreatedAt       time.Time       `json:"created_at"`
}
