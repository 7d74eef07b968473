package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/rachid-J/Asssurance-sub001/internal/apperr"
	"github.com/rachid-J/Asssurance-sub001/internal/models"
)

// PolicyStore is the persistence surface the lifecycle engine requires.
// Implemented by repository.PolicyRepository; every status transition is a
// conditional update guarded on the expected prior status, and the
// multi-write methods (Create, CancelWithRefunds, Terminate) are
// all-or-nothing transactions.
type PolicyStore interface {
	Create(ctx context.Context, policy *models.Policy, schedule []models.PaymentEntry) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Policy, error)
	GetActiveByNumber(ctx context.Context, policyNumber string) (*models.Policy, error)
	HasActiveWithNumber(ctx context.Context, policyNumber string) (bool, error)
	LatestExpiredByVehicle(ctx context.Context, vehicleID uuid.UUID) (*models.Policy, error)
	List(ctx context.Context, filter models.PolicyFilter) ([]models.Policy, error)
	UpdateTerms(ctx context.Context, policy *models.Policy) error
	CancelWithRefunds(ctx context.Context, policy *models.Policy, refunds []models.PaymentEntry, priorEntries int) error
	Terminate(ctx context.Context, policy *models.Policy, refund *models.PaymentEntry) error
	ExpireDue(ctx context.Context, now time.Time) (int64, error)
}

// LedgerStore is the append-only payment ledger.
type LedgerStore interface {
	Append(ctx context.Context, entry *models.PaymentEntry) error
	ListByPolicy(ctx context.Context, policyID uuid.UUID) ([]models.PaymentEntry, error)
	GetBySequence(ctx context.Context, policyID uuid.UUID, sequence int) (*models.PaymentEntry, error)
	MarkPaid(ctx context.Context, policyID uuid.UUID, sequence int, paidAt time.Time, method models.PaymentMethod, reference string) error
	CountByPolicy(ctx context.Context, policyID uuid.UUID) (int, error)
}

// ReferenceDirectory answers existence lookups against the agency's
// client/vehicle records.
type ReferenceDirectory interface {
	ClientExists(ctx context.Context, id uuid.UUID) (bool, error)
	GetVehicle(ctx context.Context, id uuid.UUID) (*models.Vehicle, error)
}

// SummaryProjector receives the recomputed payment summary after ledger
// writes. Implementations are best-effort caches, never sources of truth.
type SummaryProjector interface {
	Store(ctx context.Context, summary models.PaymentSummary) error
}

// Actor is the identity performing an operation, as established by the
// auth collaborator upstream. The engine only records and compares it.
type Actor struct {
	UserID string
	Role   string
}

func (a Actor) Elevated() bool {
	return a.Role == models.RoleAdmin
}

// requireOwnership enforces ownership-or-elevated-privilege on a policy.
func requireOwnership(policy *models.Policy, actor Actor) error {
	if actor.Elevated() || actor.UserID == policy.CreatedBy {
		return nil
	}
	return apperr.ErrForbidden
}
