package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/rachid-J/Asssurance-sub001/internal/apperr"
	"github.com/rachid-J/Asssurance-sub001/internal/models"
)

const insertEntryQuery = `
	INSERT INTO payment_entry (
		id, policy_id, sequence_number, scheduled_amount, amount,
		paid_at, method, reference, notes, refund_of_sequence, created_at
	) VALUES (
		:id, :policy_id, :sequence_number, :scheduled_amount, :amount,
		:paid_at, :method, :reference, :notes, :refund_of_sequence, :created_at
	)`

// insertEntryTx appends one ledger entry inside an open transaction. Shared
// by the schedule creation and the cancel/terminate refund paths.
func insertEntryTx(ctx context.Context, tx *sqlx.Tx, entry *models.PaymentEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	if _, err := tx.NamedExecContext(ctx, insertEntryQuery, entry); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			return fmt.Errorf("%w: duplicate ledger slot %d", apperr.ErrValidation, entry.SequenceNumber)
		}
		return fmt.Errorf("failed to append ledger entry: %w", err)
	}
	return nil
}

type PaymentRepository struct {
	db *sqlx.DB
}

func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// Append adds one entry to a policy's ledger. Entries are never deleted;
// corrections are appended as opposite-sign entries.
func (r *PaymentRepository) Append(ctx context.Context, entry *models.PaymentEntry) error {
	if r.db == nil {
		return errNoConn
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin ledger append: %v", apperr.ErrStorageUnavailable, err)
	}
	defer tx.Rollback()

	if err := insertEntryTx(ctx, tx, entry); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit ledger append: %v", apperr.ErrStorageUnavailable, err)
	}
	return nil
}

// ListByPolicy returns the full ledger in slot order, refunds at the end
// of the sequence they were appended in.
func (r *PaymentRepository) ListByPolicy(ctx context.Context, policyID uuid.UUID) ([]models.PaymentEntry, error) {
	if r.db == nil {
		return nil, errNoConn
	}
	var entries []models.PaymentEntry
	query := `SELECT * FROM payment_entry WHERE policy_id = $1 ORDER BY created_at ASC, sequence_number ASC`

	if err := r.db.SelectContext(ctx, &entries, query, policyID); err != nil {
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	return entries, nil
}

func (r *PaymentRepository) GetBySequence(ctx context.Context, policyID uuid.UUID, sequence int) (*models.PaymentEntry, error) {
	if r.db == nil {
		return nil, errNoConn
	}
	var entry models.PaymentEntry
	query := `SELECT * FROM payment_entry WHERE policy_id = $1 AND sequence_number = $2`

	err := r.db.GetContext(ctx, &entry, query, policyID, sequence)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: installment %d", apperr.ErrNotFound, sequence)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger entry: %w", err)
	}
	return &entry, nil
}

// MarkPaid stamps an installment collected. Guarded on the slot not being
// paid yet so a double collection surfaces instead of overwriting the
// original stamp.
func (r *PaymentRepository) MarkPaid(ctx context.Context, policyID uuid.UUID, sequence int, paidAt time.Time, method models.PaymentMethod, reference string) error {
	if r.db == nil {
		return errNoConn
	}
	query := `
		UPDATE payment_entry SET paid_at = $1, method = $2, reference = $3
		WHERE policy_id = $4 AND sequence_number = $5 AND paid_at IS NULL`

	res, err := r.db.ExecContext(ctx, query, paidAt, method, reference, policyID, sequence)
	if err != nil {
		return fmt.Errorf("failed to mark installment paid: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: installment %d is missing or already collected", apperr.ErrValidation, sequence)
	}
	return nil
}

// CountByPolicy reports the ledger size; a non-zero count freezes the
// gross premium.
func (r *PaymentRepository) CountByPolicy(ctx context.Context, policyID uuid.UUID) (int, error) {
	if r.db == nil {
		return 0, errNoConn
	}
	var count int
	query := `SELECT COUNT(*) FROM payment_entry WHERE policy_id = $1`

	if err := r.db.GetContext(ctx, &count, query, policyID); err != nil {
		return 0, fmt.Errorf("failed to count ledger entries: %w", err)
	}
	return count, nil
}
