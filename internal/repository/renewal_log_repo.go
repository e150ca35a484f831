package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/yourierick/solifin/member-service/internal/models"
)

// defaultHistoryLimit caps history queries when the caller gives no limit.
const defaultHistoryLimit = 50

type RenewalLogRepository struct {
	pool *pgxpool.Pool
}

func NewRenewalLogRepository(pool *pgxpool.Pool) *RenewalLogRepository {
	return &RenewalLogRepository{pool: pool}
}

// Create inserts a renewal attempt, assigning ID and CreatedAt when unset
func (r *RenewalLogRepository) Create(ctx context.Context, entry *models.RenewalLog) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO renewal_logs (
			id, user_id, pack_id, months, payment_method, payment_option,
			currency, total_amount, converted_amount, transaction_fees,
			status, message, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10,
			$11, $12, $13
		)
	`
	_, err := r.pool.Exec(ctx, query,
		entry.ID, entry.UserID, entry.PackID, entry.Months, string(entry.PaymentMethod), entry.PaymentOption,
		entry.Currency, entry.TotalAmount.String(), entry.ConvertedAmount.String(), entry.TransactionFees.String(),
		entry.Status, entry.Message, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert renewal log: %w", err)
	}
	return nil
}

// ListByUserAndPack returns the newest attempts of a member for one pack
func (r *RenewalLogRepository) ListByUserAndPack(ctx context.Context, userID, packID string, limit int) ([]*models.RenewalLog, error) {
	limit = historyLimit(limit)

	query := selectRenewalLogs + `
		WHERE user_id = $1 AND pack_id = $2
		ORDER BY created_at DESC
		LIMIT $3
	`
	rows, err := r.pool.Query(ctx, query, userID, packID, limit)
	if err != nil {
		return nil, fmt.Errorf("query renewal logs: %w", err)
	}
	defer rows.Close()

	entries := []*models.RenewalLog{}
	for rows.Next() {
		entry, err := scanRenewalLog(rows)
		if err != nil {
			return nil, fmt.Errorf("scan renewal log: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func historyLimit(limit int) int {
	if limit <= 0 || limit > defaultHistoryLimit {
		return defaultHistoryLimit
	}
	return limit
}

// PurgeOlderThan deletes entries created before cutoff
func (r *RenewalLogRepository) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM renewal_logs WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge renewal logs: %w", err)
	}
	return tag.RowsAffected(), nil
}

const selectRenewalLogs = `
	SELECT id::text, user_id, pack_id, months, payment_method, payment_option,
	       currency, total_amount::text, converted_amount::text, transaction_fees::text,
	       status, message, created_at
	FROM renewal_logs`

func scanRenewalLog(row pgx.Row) (*models.RenewalLog, error) {
	var e models.RenewalLog
	var method, total, converted, fees string
	err := row.Scan(
		&e.ID, &e.UserID, &e.PackID, &e.Months, &method, &e.PaymentOption,
		&e.Currency, &total, &converted, &fees,
		&e.Status, &e.Message, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	e.PaymentMethod = models.PaymentMethod(method)
	e.TotalAmount = models.ParseAmount(total)
	e.ConvertedAmount = models.ParseAmount(converted)
	e.TransactionFees = models.ParseAmount(fees)
	return &e, nil
}
