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

const (
	pqUniqueViolation      = "23505"
	activeNumberConstraint = "uq_policy_number_active"
)

// errNoConn surfaces a repository used before the database connection was
// established, instead of a nil dereference.
var errNoConn = fmt.Errorf("%w: database connection not established", apperr.ErrStorageUnavailable)

type PolicyRepository struct {
	db *sqlx.DB
}

func NewPolicyRepository(db *sqlx.DB) *PolicyRepository {
	return &PolicyRepository{db: db}
}

const insertPolicyQuery = `
	INSERT INTO policy (
		id, policy_number, client_id, vehicle_id, vehicle_usage, insurance_kind,
		premium_base, premium_gross, premium_current, start_date, end_date,
		status, created_by, canceled_at, canceled_by, cancel_reason,
		refund_method, refund_penalty_pct, total_refunded, is_full_refund,
		termination_date, created_at, updated_at
	) VALUES (
		:id, :policy_number, :client_id, :vehicle_id, :vehicle_usage, :insurance_kind,
		:premium_base, :premium_gross, :premium_current, :start_date, :end_date,
		:status, :created_by, :canceled_at, :canceled_by, :cancel_reason,
		:refund_method, :refund_penalty_pct, :total_refunded, :is_full_refund,
		:termination_date, :created_at, :updated_at
	)`

// Create inserts the policy together with its installment schedule in one
// transaction: a policy either exists with its full schedule or not at all.
func (r *PolicyRepository) Create(ctx context.Context, policy *models.Policy, schedule []models.PaymentEntry) error {
	if r.db == nil {
		return errNoConn
	}
	if policy.ID == uuid.Nil {
		policy.ID = uuid.New()
	}
	now := time.Now()
	policy.CreatedAt = now
	policy.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin create policy: %v", apperr.ErrStorageUnavailable, err)
	}
	defer tx.Rollback()

	if _, err := tx.NamedExecContext(ctx, insertPolicyQuery, policy); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			if pqErr.Constraint == activeNumberConstraint {
				return fmt.Errorf("%w: policy number %s", apperr.ErrActiveRenewalExists, policy.PolicyNumber)
			}
			return fmt.Errorf("%w: duplicate policy %s", apperr.ErrValidation, policy.ID)
		}
		return fmt.Errorf("failed to create policy: %w", err)
	}

	for i := range schedule {
		schedule[i].PolicyID = policy.ID
		if err := insertEntryTx(ctx, tx, &schedule[i]); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit create policy: %v", apperr.ErrStorageUnavailable, err)
	}
	return nil
}

func (r *PolicyRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Policy, error) {
	if r.db == nil {
		return nil, errNoConn
	}
	var policy models.Policy
	query := `SELECT * FROM policy WHERE id = $1`

	err := r.db.GetContext(ctx, &policy, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: policy %s", apperr.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get policy: %w", err)
	}

	return &policy, nil
}

// GetActiveByNumber resolves the single active instance of a policy chain.
func (r *PolicyRepository) GetActiveByNumber(ctx context.Context, policyNumber string) (*models.Policy, error) {
	if r.db == nil {
		return nil, errNoConn
	}
	var policy models.Policy
	query := `SELECT * FROM policy WHERE policy_number = $1 AND status = $2`

	err := r.db.GetContext(ctx, &policy, query, policyNumber, models.PolicyActive)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no active policy %s", apperr.ErrNotFound, policyNumber)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get policy by number: %w", err)
	}

	return &policy, nil
}

func (r *PolicyRepository) HasActiveWithNumber(ctx context.Context, policyNumber string) (bool, error) {
	if r.db == nil {
		return false, errNoConn
	}
	var count int
	query := `SELECT COUNT(*) FROM policy WHERE policy_number = $1 AND status = $2`

	if err := r.db.GetContext(ctx, &count, query, policyNumber, models.PolicyActive); err != nil {
		return false, fmt.Errorf("failed to count active policies: %w", err)
	}
	return count > 0, nil
}

// LatestExpiredByVehicle finds the renewal predecessor: the most recently
// ended expired policy for the vehicle, most recently created winning ties.
func (r *PolicyRepository) LatestExpiredByVehicle(ctx context.Context, vehicleID uuid.UUID) (*models.Policy, error) {
	if r.db == nil {
		return nil, errNoConn
	}
	var policy models.Policy
	query := `
		SELECT * FROM policy
		WHERE vehicle_id = $1 AND status = $2
		ORDER BY end_date DESC, created_at DESC
		LIMIT 1`

	err := r.db.GetContext(ctx, &policy, query, vehicleID, models.PolicyExpired)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: vehicle %s", apperr.ErrNoExpiredPolicy, vehicleID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve renewal chain: %w", err)
	}

	return &policy, nil
}

func (r *PolicyRepository) List(ctx context.Context, filter models.PolicyFilter) ([]models.Policy, error) {
	if r.db == nil {
		return nil, errNoConn
	}
	query := `SELECT * FROM policy WHERE 1=1`
	args := []any{}

	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.PolicyNumber != "" {
		args = append(args, filter.PolicyNumber)
		query += fmt.Sprintf(" AND policy_number = $%d", len(args))
	}
	if filter.ClientID != uuid.Nil {
		args = append(args, filter.ClientID)
		query += fmt.Sprintf(" AND client_id = $%d", len(args))
	}
	if filter.VehicleID != uuid.Nil {
		args = append(args, filter.VehicleID)
		query += fmt.Sprintf(" AND vehicle_id = $%d", len(args))
	}
	if filter.CreatedBy != "" {
		args = append(args, filter.CreatedBy)
		query += fmt.Sprintf(" AND created_by = $%d", len(args))
	}
	query += " ORDER BY created_at DESC"

	var policies []models.Policy
	if err := r.db.SelectContext(ctx, &policies, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list policies: %w", err)
	}
	return policies, nil
}

// UpdateTerms rewrites the monetary terms and the coverage window of an
// active instance. Lifecycle fields are owned by the transition methods.
func (r *PolicyRepository) UpdateTerms(ctx context.Context, policy *models.Policy) error {
	if r.db == nil {
		return errNoConn
	}
	policy.UpdatedAt = time.Now()

	query := `
		UPDATE policy SET
			premium_base = :premium_base,
			premium_gross = :premium_gross,
			premium_current = :premium_current,
			start_date = :start_date,
			end_date = :end_date,
			updated_at = :updated_at
		WHERE id = :id AND status = 'Active'`

	res, err := r.db.NamedExecContext(ctx, query, policy)
	if err != nil {
		return fmt.Errorf("failed to update policy terms: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: policy %s is not active", apperr.ErrConflict, policy.ID)
	}
	return nil
}

// CancelWithRefunds appends the refund entries and flips the policy to
// Canceled in a single transaction. The status update is guarded on the
// row still being Active, and the ledger size is re-checked against the
// snapshot the refunds were computed from, so a concurrent sweep, cancel
// or collection rolls the whole unit back instead of half-applying it.
func (r *PolicyRepository) CancelWithRefunds(ctx context.Context, policy *models.Policy, refunds []models.PaymentEntry, priorEntries int) error {
	if r.db == nil {
		return errNoConn
	}
	policy.UpdatedAt = time.Now()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin cancellation: %v", apperr.ErrStorageUnavailable, err)
	}
	defer tx.Rollback()

	var count int
	if err := tx.GetContext(ctx, &count, `SELECT COUNT(*) FROM payment_entry WHERE policy_id = $1`, policy.ID); err != nil {
		return fmt.Errorf("failed to recount ledger entries: %w", err)
	}
	if count != priorEntries {
		return fmt.Errorf("%w: ledger of policy %s changed during cancellation", apperr.ErrConflict, policy.ID)
	}

	for i := range refunds {
		if err := insertEntryTx(ctx, tx, &refunds[i]); err != nil {
			return err
		}
	}

	query := `
		UPDATE policy SET
			status = :status,
			canceled_at = :canceled_at,
			canceled_by = :canceled_by,
			cancel_reason = :cancel_reason,
			refund_method = :refund_method,
			refund_penalty_pct = :refund_penalty_pct,
			total_refunded = :total_refunded,
			is_full_refund = :is_full_refund,
			updated_at = :updated_at
		WHERE id = :id AND status = 'Active'`

	res, err := tx.NamedExecContext(ctx, query, policy)
	if err != nil {
		return fmt.Errorf("failed to cancel policy: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: policy %s left Active during cancellation", apperr.ErrConflict, policy.ID)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit cancellation: %v", apperr.ErrStorageUnavailable, err)
	}
	return nil
}

// Terminate converts an active policy to the terminated/resale state,
// appending the optional refund entry in the same transaction.
func (r *PolicyRepository) Terminate(ctx context.Context, policy *models.Policy, refund *models.PaymentEntry) error {
	if r.db == nil {
		return errNoConn
	}
	policy.UpdatedAt = time.Now()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin termination: %v", apperr.ErrStorageUnavailable, err)
	}
	defer tx.Rollback()

	if refund != nil {
		if err := insertEntryTx(ctx, tx, refund); err != nil {
			return err
		}
	}

	query := `
		UPDATE policy SET
			status = :status,
			insurance_kind = :insurance_kind,
			termination_date = :termination_date,
			updated_at = :updated_at
		WHERE id = :id AND status = 'Active'`

	res, err := tx.NamedExecContext(ctx, query, policy)
	if err != nil {
		return fmt.Errorf("failed to terminate policy: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: policy %s left Active during termination", apperr.ErrConflict, policy.ID)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit termination: %v", apperr.ErrStorageUnavailable, err)
	}
	return nil
}

// ExpireDue flips every overdue active policy to Expired in one set-based
// conditional update. A policy canceled a moment earlier is excluded by
// the status filter at update time, so the sweep can run concurrently with
// manual transitions and with itself.
func (r *PolicyRepository) ExpireDue(ctx context.Context, now time.Time) (int64, error) {
	if r.db == nil {
		return 0, errNoConn
	}
	query := `
		UPDATE policy SET status = $1, updated_at = $2
		WHERE status = $3 AND end_date < $2`

	res, err := r.db.ExecContext(ctx, query, models.PolicyExpired, now, models.PolicyActive)
	if err != nil {
		return 0, fmt.Errorf("failed to expire due policies: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read expired row count: %w", err)
	}
	return n, nil
}
