package models

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Pack status constants
const (
	PackStatusActive   = "active"
	PackStatusInactive = "inactive"
)

// MaxGenerations is the depth of the referral hierarchy.
const MaxGenerations = 4

// RootName is the label of the synthetic root ("You").
const RootName = "Vous"

// ReferralRecord is one referred member in one generation, as returned by
// GET /api/packs/{id}/referrals. Decoding never fails on loosely typed fields.
type ReferralRecord struct {
	ID              FlexID        `json:"id"`
	Name            string        `json:"name"`
	SponsorID       FlexID        `json:"sponsor_id"`
	Generation      FlexInt       `json:"generation"`
	TotalCommission LenientAmount `json:"total_commission"`
	PackStatus      string        `json:"pack_status"`
}

// IsActive reports whether the pack counts as active for display.
func (r ReferralRecord) IsActive() bool {
	return r.PackStatus == PackStatusActive
}

// TreeNode is the render-ready referral tree.
type TreeNode struct {
	Name       string         `json:"name"`
	Attributes NodeAttributes `json:"attributes"`
	Children   []*TreeNode    `json:"children"`
}

type NodeAttributes struct {
	Commission string `json:"commission,omitempty"`
	Status     string `json:"status"`
	Generation int    `json:"generation"`
	UserID     string `json:"userId,omitempty"`
	SponsorID  string `json:"sponsorId,omitempty"`
}

// GenerationSummary feeds the per-generation stat cards.
type GenerationSummary struct {
	Generation      int             `json:"generation"`
	Count           int             `json:"count"`
	Active          int             `json:"active"`
	TotalCommission decimal.Decimal `json:"total_commission"`
}

type ReferralTreeResponse struct {
	Tree        *TreeNode           `json:"tree"`
	Generations []GenerationSummary `json:"generations"`
	Dropped     int                 `json:"dropped"`
}

// FlexID accepts a JSON string, number or null and keeps its textual form.
type FlexID string

func (id *FlexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			*id = ""
			return nil
		}
		*id = FlexID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		*id = ""
		return nil
	}
	*id = FlexID(n.String())
	return nil
}

func (id FlexID) String() string {
	return string(id)
}

// FlexInt accepts a JSON number or numeric string; anything else is 0.
type FlexInt int

func (i *FlexInt) UnmarshalJSON(data []byte) error {
	var id FlexID
	_ = id.UnmarshalJSON(data)
	n, err := strconv.Atoi(string(id))
	if err != nil {
		*i = 0
		return nil
	}
	*i = FlexInt(n)
	return nil
}

// LenientAmount is a decimal that decodes from a number, a numeric string,
// or anything else (as zero).
type LenientAmount struct {
	decimal.Decimal
}

func (a *LenientAmount) UnmarshalJSON(data []byte) error {
	var raw FlexID
	_ = raw.UnmarshalJSON(data)
	a.Decimal = ParseAmount(string(raw))
	return nil
}

// ParseAmount coerces s to a decimal, defaulting to zero.
func ParseAmount(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// FormatCommission renders an amount as "X.XX$".
func FormatCommission(d decimal.Decimal) string {
	return d.StringFixed(2) + "$"
}
