package service

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/yourierick/solifin/member-service/internal/models"
)

// Event is an input to the renewal form reducer.
type Event interface {
	isEvent()
}

type MonthsChanged struct{ Months int }
type MethodChanged struct{ Method models.PaymentMethod }
type OptionChanged struct{ Option string }
type CurrencyChanged struct{ Currency string }
type FieldChanged struct{ Key, Value string }
type BalanceLoaded struct{ Balance decimal.Decimal }

// Recalculate is the member's manual retry after a fee error.
type Recalculate struct{}

type ConversionSucceeded struct {
	Seq    uint64
	Amount decimal.Decimal
}

type ConversionFailed struct{ Seq uint64 }

type FeeSucceeded struct {
	Seq        uint64
	Fee        decimal.Decimal
	Percentage decimal.Decimal
}

type FeeFailed struct{ Seq uint64 }

func (MonthsChanged) isEvent()       {}
func (MethodChanged) isEvent()       {}
func (OptionChanged) isEvent()       {}
func (CurrencyChanged) isEvent()     {}
func (FieldChanged) isEvent()        {}
func (BalanceLoaded) isEvent()       {}
func (Recalculate) isEvent()         {}
func (ConversionSucceeded) isEvent() {}
func (ConversionFailed) isEvent()    {}
func (FeeSucceeded) isEvent()        {}
func (FeeFailed) isEvent()           {}

type EffectKind string

const (
	EffectConvert    EffectKind = "convert"
	EffectComputeFee EffectKind = "compute_fee"
)

// Effect is a backend call the reducer asks for. Its result must be fed
// back as an event carrying the same Seq.
type Effect struct {
	Kind     EffectKind
	Seq      uint64
	Amount   decimal.Decimal
	From     string
	To       string
	Option   string
	Currency string
}

// ComputeBaseTotal returns basePrice * months, treating months below 1 as 1.
func ComputeBaseTotal(basePrice decimal.Decimal, months int) decimal.Decimal {
	if months < 1 {
		months = 1
	}
	return basePrice.Mul(decimal.NewFromInt(int64(months)))
}

// NewRenewalForm opens a form for one month paid from the wallet.
func NewRenewalForm(basePrice decimal.Decimal) models.RenewalForm {
	f := models.RenewalForm{
		BasePrice:     basePrice,
		Months:        1,
		PaymentMethod: models.PaymentMethodWallet,
		PaymentOption: models.WalletOption,
		Currency:      models.WalletCurrency,
		Fields:        map[string]string{},
		WalletBalance: decimal.Zero,
		Stage:         models.StageIdle,
	}
	f, _ = restart(f)
	return f
}

// IsStale reports whether a result issued with seq has been superseded.
func IsStale(f models.RenewalForm, seq uint64) bool {
	return seq != f.Seq
}

// Apply is the renewal form reducer. It never mutates f. Any change to
// months, method, option or currency restarts the conversion/fee pipeline
// under a new sequence number; results carrying an older number are ignored.
func Apply(f models.RenewalForm, ev Event) (models.RenewalForm, *Effect) {
	f.Fields = copyFields(f.Fields)

	switch e := ev.(type) {
	case MonthsChanged:
		f.Months = e.Months
		return restart(f)

	case MethodChanged:
		f.PaymentMethod = e.Method
		f.Fields = map[string]string{}
		if e.Method == models.PaymentMethodWallet {
			f.PaymentOption = models.WalletOption
			f.Currency = models.WalletCurrency
		} else {
			f.PaymentOption = ""
		}
		return restart(f)

	case OptionChanged:
		if f.PaymentMethod == models.PaymentMethodWallet {
			return f, nil
		}
		f.PaymentOption = strings.TrimSpace(e.Option)
		return restart(f)

	case CurrencyChanged:
		if f.PaymentMethod == models.PaymentMethodWallet {
			return f, nil
		}
		f.Currency = strings.ToUpper(strings.TrimSpace(e.Currency))
		return restart(f)

	case FieldChanged:
		f.Fields[e.Key] = e.Value
		return f, nil

	case BalanceLoaded:
		f.WalletBalance = e.Balance
		return f, nil

	case Recalculate:
		if f.Stage != models.StageFeeError {
			return f, nil
		}
		if !f.Converted {
			return restart(f)
		}
		f.Seq++
		f.FeesError = false
		return startFee(f)

	case ConversionSucceeded:
		if IsStale(f, e.Seq) || f.Stage != models.StageConvertingCurrency {
			return f, nil
		}
		f.ConvertedAmount = e.Amount
		f.Converted = true
		return startFee(f)

	case ConversionFailed:
		if IsStale(f, e.Seq) || f.Stage != models.StageConvertingCurrency {
			return f, nil
		}
		f.ConvertedAmount = f.TotalAmount
		f.Converted = false
		setFeeFallback(&f)
		return f, nil

	case FeeSucceeded:
		if IsStale(f, e.Seq) || f.Stage != models.StageComputingFee {
			return f, nil
		}
		pct := e.Percentage
		f.TransactionFees = e.Fee
		f.FeePercentage = &pct
		f.FeesError = false
		f.Stage = models.StageReady
		return f, nil

	case FeeFailed:
		if IsStale(f, e.Seq) || f.Stage != models.StageComputingFee {
			return f, nil
		}
		setFeeFallback(&f)
		return f, nil
	}

	return f, nil
}

func restart(f models.RenewalForm) (models.RenewalForm, *Effect) {
	f.Seq++
	f.TotalAmount = ComputeBaseTotal(f.BasePrice, f.Months)
	f.ConvertedAmount = f.TotalAmount
	f.TransactionFees = decimal.Zero
	f.FeePercentage = nil
	f.FeesError = false

	if f.PaymentMethod == models.PaymentMethodWallet {
		f.Converted = true
		f.Stage = models.StageReady
		return f, nil
	}

	f.Converted = false
	if !f.TotalAmount.IsPositive() || !models.IsCurrencyCode(f.Currency) {
		f.Stage = models.StageIdle
		return f, nil
	}

	if f.Currency == models.WalletCurrency {
		f.Converted = true
		return startFee(f)
	}

	f.Stage = models.StageConvertingCurrency
	return f, &Effect{
		Kind:   EffectConvert,
		Seq:    f.Seq,
		Amount: f.TotalAmount,
		From:   models.WalletCurrency,
		To:     f.Currency,
	}
}

// startFee asks for the fee on the converted amount. The lookup is keyed on
// the specific option, so it waits in idle until one is chosen.
func startFee(f models.RenewalForm) (models.RenewalForm, *Effect) {
	if f.PaymentOption == "" {
		f.Stage = models.StageIdle
		return f, nil
	}
	f.Stage = models.StageComputingFee
	return f, &Effect{
		Kind:     EffectComputeFee,
		Seq:      f.Seq,
		Amount:   f.ConvertedAmount,
		Option:   f.PaymentOption,
		Currency: f.Currency,
	}
}

func setFeeFallback(f *models.RenewalForm) {
	zero := decimal.Zero
	f.TransactionFees = decimal.Zero
	f.FeePercentage = &zero
	f.FeesError = true
	f.Stage = models.StageFeeError
}

func copyFields(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// Problems lists every reason the form cannot be submitted.
func Problems(f models.RenewalForm) []string {
	var problems []string

	if f.Months <= 0 {
		problems = append(problems, "duration must be at least one month")
	}
	if !f.PaymentMethod.IsValid() {
		problems = append(problems, fmt.Sprintf("unknown payment method %q", f.PaymentMethod))
		return problems
	}

	switch {
	case f.Stage.InFlight():
		problems = append(problems, "fees are still being computed")
	case f.FeesError:
		problems = append(problems, "fees could not be computed, recalculate to retry")
	case f.Stage != models.StageReady:
		problems = append(problems, "fees have not been computed yet")
	}

	if f.PaymentOption == "" {
		problems = append(problems, "payment option is required")
	}
	if !models.IsCurrencyCode(f.Currency) {
		problems = append(problems, fmt.Sprintf("currency %q is not supported", f.Currency))
	}
	for _, key := range f.PaymentMethod.RequiredFields() {
		if strings.TrimSpace(f.Fields[key]) == "" {
			problems = append(problems, key+" is required")
		}
	}

	if f.PaymentMethod == models.PaymentMethodWallet {
		due := f.TotalAmount.Add(f.TransactionFees)
		if f.WalletBalance.LessThan(due) {
			problems = append(problems, "insufficient wallet balance")
		}
	}

	return problems
}

// Validate reports whether the form may be submitted.
func Validate(f models.RenewalForm) bool {
	return len(Problems(f)) == 0
}
