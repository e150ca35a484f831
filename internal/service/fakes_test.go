package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yourierick/solifin/member-service/internal/apperr"
	"github.com/yourierick/solifin/member-service/internal/client"
	"github.com/yourierick/solifin/member-service/internal/models"
)

var errBackendDown = apperr.Network("fake backend", errors.New("connection refused"))

// fakeAPI stands in for the Solifin client. Nil funcs fail with a network error.
type fakeAPI struct {
	mu sync.Mutex

	convert  func(amount decimal.Decimal, from, to string) (decimal.Decimal, error)
	fee      func(call int, amount decimal.Decimal, option, currency string) (*client.TransferFeeResponse, error)
	balance  func() (decimal.Decimal, error)
	renew    func(req *client.RenewPackRequest) (*client.RenewPackResponse, error)
	referral func() ([][]models.ReferralRecord, error)

	convertCalls int
	feeCalls     int
	renewCalls   int
	lastRenew    *client.RenewPackRequest
}

func (f *fakeAPI) ConvertCurrency(_ context.Context, _ string, amount decimal.Decimal, from, to string) (decimal.Decimal, error) {
	f.mu.Lock()
	f.convertCalls++
	f.mu.Unlock()
	if f.convert == nil {
		return decimal.Zero, errBackendDown
	}
	return f.convert(amount, from, to)
}

func (f *fakeAPI) GetTransferFee(_ context.Context, _ string, amount decimal.Decimal, option, currency string) (*client.TransferFeeResponse, error) {
	f.mu.Lock()
	f.feeCalls++
	call := f.feeCalls
	f.mu.Unlock()
	if f.fee == nil {
		return nil, errBackendDown
	}
	return f.fee(call, amount, option, currency)
}

func (f *fakeAPI) GetWalletBalance(context.Context, string) (decimal.Decimal, error) {
	if f.balance == nil {
		return decimal.Zero, errBackendDown
	}
	return f.balance()
}

func (f *fakeAPI) RenewPack(_ context.Context, _ string, _ string, req *client.RenewPackRequest) (*client.RenewPackResponse, error) {
	f.mu.Lock()
	f.renewCalls++
	f.lastRenew = req
	f.mu.Unlock()
	if f.renew == nil {
		return nil, errBackendDown
	}
	return f.renew(req)
}

func (f *fakeAPI) GetReferrals(context.Context, string, string) ([][]models.ReferralRecord, error) {
	if f.referral == nil {
		return nil, errBackendDown
	}
	return f.referral()
}

func (f *fakeAPI) GetDetailedStats(context.Context, string, string) (json.RawMessage, error) {
	return json.RawMessage(`{"total_members": 3}`), nil
}

func feeOf(fee, pct string) func(int, decimal.Decimal, string, string) (*client.TransferFeeResponse, error) {
	return func(int, decimal.Decimal, string, string) (*client.TransferFeeResponse, error) {
		return &client.TransferFeeResponse{
			Success:    true,
			Fee:        models.LenientAmount{Decimal: decimal.RequireFromString(fee)},
			Percentage: models.LenientAmount{Decimal: decimal.RequireFromString(pct)},
		}, nil
	}
}

// fakeLogStore is an in-memory RenewalLogStore and LogPurger.
type fakeLogStore struct {
	mu        sync.Mutex
	entries   []*models.RenewalLog
	createErr error
	purgeErr  error
	cutoffs   []time.Time
}

func (s *fakeLogStore) Create(_ context.Context, entry *models.RenewalLog) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	entry.ID = fmt.Sprintf("log-%d", len(s.entries)+1)
	s.entries = append(s.entries, entry)
	return nil
}

func (s *fakeLogStore) ListByUserAndPack(_ context.Context, userID, packID string, limit int) ([]*models.RenewalLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.RenewalLog
	for _, e := range s.entries {
		if e.UserID == userID && e.PackID == packID {
			out = append(out, e)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *fakeLogStore) PurgeOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cutoffs = append(s.cutoffs, cutoff)
	if s.purgeErr != nil {
		return 0, s.purgeErr
	}
	return 2, nil
}

// mapCache is an in-memory RateCache.
type mapCache struct {
	values map[string]decimal.Decimal
}

func newMapCache() *mapCache {
	return &mapCache{values: map[string]decimal.Decimal{}}
}

func (c *mapCache) key(amount decimal.Decimal, from, to string) string {
	return from + ":" + to + ":" + amount.String()
}

func (c *mapCache) Get(_ context.Context, amount decimal.Decimal, from, to string) (decimal.Decimal, bool, error) {
	v, ok := c.values[c.key(amount, from, to)]
	return v, ok, nil
}

func (c *mapCache) Set(_ context.Context, amount decimal.Decimal, from, to string, converted decimal.Decimal) error {
	c.values[c.key(amount, from, to)] = converted
	return nil
}
