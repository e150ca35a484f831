package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/yourierick/solifin/member-service/internal/apperr"
	"github.com/yourierick/solifin/member-service/internal/models"
	"go.uber.org/zap"
)

func TestReferralServiceGetTree(t *testing.T) {
	// Two generations where record 3 names a sponsor that does not exist.
	payload := `[
		[{"id": 1, "name": "Awa", "sponsor_id": null, "total_commission": "12.5", "pack_status": "active"}],
		[{"id": 2, "name": "Ben", "sponsor_id": 1, "pack_status": "active"},
		 {"id": 3, "name": "Chloe", "sponsor_id": 99, "pack_status": "inactive"}]
	]`
	var generations [][]models.ReferralRecord
	if err := json.Unmarshal([]byte(payload), &generations); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	api := &fakeAPI{referral: func() ([][]models.ReferralRecord, error) { return generations, nil }}
	svc := NewReferralService(api, zap.NewNop())

	resp, err := svc.GetTree(context.Background(), "tok", "7")
	if err != nil {
		t.Fatalf("GetTree() error = %v", err)
	}

	root := resp.Tree
	if len(root.Children) != 1 || root.Children[0].Attributes.UserID != "1" {
		t.Fatalf("root children = %+v, want only user 1", root.Children)
	}
	awa := root.Children[0]
	if awa.Attributes.Commission != "12.50$" {
		t.Errorf("commission = %q, want 12.50$", awa.Attributes.Commission)
	}
	if len(awa.Children) != 1 || awa.Children[0].Attributes.UserID != "2" {
		t.Fatalf("user 1 children = %+v, want only user 2", awa.Children)
	}
	if awa.Children[0].Attributes.Commission != "0.00$" {
		t.Errorf("missing commission rendered as %q, want 0.00$", awa.Children[0].Attributes.Commission)
	}
	if resp.Dropped != 1 {
		t.Errorf("dropped = %d, want 1", resp.Dropped)
	}
	if resp.Generations[1].Count != 2 {
		t.Errorf("generation 2 count = %d, want 2", resp.Generations[1].Count)
	}
}

func TestReferralServiceGetTreeError(t *testing.T) {
	svc := NewReferralService(&fakeAPI{}, zap.NewNop())

	_, err := svc.GetTree(context.Background(), "tok", "7")
	if !apperr.Is(err, apperr.KindNetwork) {
		t.Errorf("err = %v, want network error", err)
	}
}

func TestReferralServiceGetStats(t *testing.T) {
	svc := NewReferralService(&fakeAPI{}, zap.NewNop())

	stats, err := svc.GetStats(context.Background(), "tok", "7")
	if err != nil {
		t.Fatalf("GetStats() error = %v", err)
	}
	if string(stats) != `{"total_members": 3}` {
		t.Errorf("stats = %s", stats)
	}
}
