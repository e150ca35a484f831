package service

import (
	"github.com/shopspring/decimal"
	"github.com/yourierick/solifin/member-service/internal/models"
)

// BuildReferralTree nests the flat per-generation arrays under a synthetic
// root. generations[0] holds generation 1. A record of generation N is hung
// under the node already placed whose user id equals its sponsor id; records
// whose sponsor is not in the tree are left out. The second return value is
// how many records were left out.
func BuildReferralTree(generations [][]models.ReferralRecord) (*models.TreeNode, int) {
	root := &models.TreeNode{
		Name: models.RootName,
		Attributes: models.NodeAttributes{
			Status:     models.PackStatusActive,
			Generation: 0,
		},
		Children: []*models.TreeNode{},
	}

	// First placement wins for duplicated user ids, which is input order,
	// not preorder of the tree built so far.
	index := make(map[string]*models.TreeNode)
	dropped := 0

	for i, records := range generations {
		if i >= models.MaxGenerations {
			break
		}
		generation := i + 1

		for _, r := range records {
			parent := root
			if generation > 1 {
				p, ok := index[r.SponsorID.String()]
				if r.SponsorID == "" || !ok {
					dropped++
					continue
				}
				parent = p
			}

			node := newReferralNode(r, generation)
			parent.Children = append(parent.Children, node)
			if id := r.ID.String(); id != "" {
				if _, seen := index[id]; !seen {
					index[id] = node
				}
			}
		}
	}

	return root, dropped
}

func newReferralNode(r models.ReferralRecord, generation int) *models.TreeNode {
	status := models.PackStatusInactive
	if r.IsActive() {
		status = models.PackStatusActive
	}
	return &models.TreeNode{
		Name: r.Name,
		Attributes: models.NodeAttributes{
			Commission: models.FormatCommission(r.TotalCommission.Decimal),
			Status:     status,
			Generation: generation,
			UserID:     r.ID.String(),
			SponsorID:  r.SponsorID.String(),
		},
		Children: []*models.TreeNode{},
	}
}

// SummarizeReferrals counts members, active packs and commissions per
// generation. It always returns MaxGenerations entries.
func SummarizeReferrals(generations [][]models.ReferralRecord) []models.GenerationSummary {
	summaries := make([]models.GenerationSummary, models.MaxGenerations)
	for i := range summaries {
		summaries[i] = models.GenerationSummary{
			Generation:      i + 1,
			TotalCommission: decimal.Zero,
		}
	}

	for i, records := range generations {
		if i >= models.MaxGenerations {
			break
		}
		s := &summaries[i]
		for _, r := range records {
			s.Count++
			if r.IsActive() {
				s.Active++
			}
			s.TotalCommission = s.TotalCommission.Add(r.TotalCommission.Decimal)
		}
	}

	return summaries
}
