package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rachid-J/Asssurance-sub001/internal/apperr"
	"github.com/rachid-J/Asssurance-sub001/internal/models"
)

// PaymentService owns the installment-collection and ad-hoc refund paths
// plus the read-side payment projections.
type PaymentService struct {
	policies  PolicyStore
	ledger    LedgerStore
	projector SummaryProjector
}

func NewPaymentService(policies PolicyStore, ledger LedgerStore, projector SummaryProjector) *PaymentService {
	return &PaymentService{
		policies:  policies,
		ledger:    ledger,
		projector: projector,
	}
}

// refreshSummary recomputes the denormalized payment summary from the
// ledger and pushes it to the projection cache. Best effort: the ledger is
// the source of truth, so a cache failure is only logged.
func refreshSummary(ctx context.Context, projector SummaryProjector, policy *models.Policy, entries []models.PaymentEntry) {
	if projector == nil {
		return
	}

	var last *time.Time
	for _, e := range entries {
		if e.PaidAt != nil && e.Amount.IsPositive() && (last == nil || e.PaidAt.After(*last)) {
			t := *e.PaidAt
			last = &t
		}
	}

	paid := models.PaidAmount(entries)
	summary := models.PaymentSummary{
		PolicyID:        policy.ID,
		TotalPaid:       paid,
		IsPaidInFull:    paid.GreaterThanOrEqual(policy.PremiumCurrent) && policy.PremiumCurrent.IsPositive(),
		LastPaymentDate: last,
	}

	if err := projector.Store(ctx, summary); err != nil {
		slog.Warn("failed to refresh payment summary projection", "policy_id", policy.ID, "error", err)
	}
}

// PayInstallment stamps a scheduled installment collected. When the slot
// does not exist yet (renewal ledgers start empty) a collected entry is
// appended instead, using the supplied amount.
func (s *PaymentService) PayInstallment(ctx context.Context, actor Actor, policyID uuid.UUID, req models.PayInstallmentRequest) (*models.PaymentEntry, error) {
	policy, err := s.policies.GetByID(ctx, policyID)
	if err != nil {
		return nil, err
	}
	if err := requireOwnership(policy, actor); err != nil {
		return nil, err
	}
	if policy.Status != models.PolicyActive {
		return nil, fmt.Errorf("%w: cannot collect on a %s policy", apperr.ErrValidation, policy.Status)
	}

	entry, err := s.collect(ctx, policy, req)
	if err != nil {
		return nil, err
	}

	slog.Info("installment collected",
		"policy_id", policy.ID,
		"sequence", entry.SequenceNumber,
		"amount", entry.Amount,
		"method", req.Method)

	return entry, nil
}

// CollectByPolicyNumber is the payment-gateway entry point used by the
// event consumer: the gateway reports collections against the chain's
// active instance.
func (s *PaymentService) CollectByPolicyNumber(ctx context.Context, policyNumber string, req models.PayInstallmentRequest) (*models.PaymentEntry, error) {
	policy, err := s.policies.GetActiveByNumber(ctx, policyNumber)
	if err != nil {
		return nil, err
	}
	return s.collect(ctx, policy, req)
}

func (s *PaymentService) collect(ctx context.Context, policy *models.Policy, req models.PayInstallmentRequest) (*models.PaymentEntry, error) {
	if req.SequenceNumber <= 0 {
		return nil, fmt.Errorf("%w: sequence_number must be positive", apperr.ErrValidation)
	}

	entries, err := s.ledger.ListByPolicy(ctx, policy.ID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	var collected *models.PaymentEntry
	for i := range entries {
		if entries[i].SequenceNumber != req.SequenceNumber {
			continue
		}
		if entries[i].PaidAt != nil {
			return nil, fmt.Errorf("%w: installment %d already collected", apperr.ErrValidation, req.SequenceNumber)
		}
		if err := s.ledger.MarkPaid(ctx, policy.ID, req.SequenceNumber, now, req.Method, req.Reference); err != nil {
			return nil, err
		}
		entries[i].PaidAt = &now
		method := string(req.Method)
		entries[i].Method = &method
		entries[i].Reference = &req.Reference
		collected = &entries[i]
		break
	}

	if collected == nil {
		if !req.Amount.IsPositive() {
			return nil, fmt.Errorf("%w: amount required for unscheduled installment %d", apperr.ErrValidation, req.SequenceNumber)
		}
		method := string(req.Method)
		entry := models.PaymentEntry{
			PolicyID:        policy.ID,
			SequenceNumber:  req.SequenceNumber,
			ScheduledAmount: req.Amount,
			Amount:          req.Amount,
			PaidAt:          &now,
			Method:          &method,
			Reference:       &req.Reference,
		}
		if err := s.ledger.Append(ctx, &entry); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
		collected = &entry
	}

	refreshSummary(ctx, s.projector, policy, entries)
	return collected, nil
}

// RecordRefund is the ad-hoc partial refund path: a negative entry capped
// by the ledger balance, without touching the policy status.
func (s *PaymentService) RecordRefund(ctx context.Context, actor Actor, policyID uuid.UUID, req models.RecordRefundRequest) (*models.PaymentEntry, error) {
	policy, err := s.policies.GetByID(ctx, policyID)
	if err != nil {
		return nil, err
	}
	if err := requireOwnership(policy, actor); err != nil {
		return nil, err
	}
	if policy.Status != models.PolicyActive {
		return nil, fmt.Errorf("%w: cannot refund a %s policy", apperr.ErrValidation, policy.Status)
	}
	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: %s", apperr.ErrInvalidRefundAmount, req.Amount)
	}

	entries, err := s.ledger.ListByPolicy(ctx, policyID)
	if err != nil {
		return nil, err
	}

	balance := models.PaidAmount(entries)
	if req.Amount.GreaterThan(balance) {
		return nil, fmt.Errorf("%w: requested %s, balance %s", apperr.ErrInsufficientBalance, req.Amount, balance)
	}

	now := time.Now()
	method := string(req.Method)
	var notes *string
	if req.Reason != "" {
		notes = &req.Reason
	}

	entry := models.PaymentEntry{
		PolicyID:        policyID,
		SequenceNumber:  models.NextSequence(entries),
		ScheduledAmount: req.Amount.Neg(),
		Amount:          req.Amount.Neg(),
		PaidAt:          &now,
		Method:          &method,
		Notes:           notes,
	}
	if err := s.ledger.Append(ctx, &entry); err != nil {
		return nil, err
	}

	refreshSummary(ctx, s.projector, policy, append(entries, entry))

	slog.Info("refund recorded",
		"policy_id", policyID,
		"sequence", entry.SequenceNumber,
		"amount", entry.Amount,
		"recorded_by", actor.UserID)

	return &entry, nil
}

// Progress is the pure read-side installment projection: a floor of four
// expected installments, and a percentage guarded against a zero premium.
func (s *PaymentService) Progress(ctx context.Context, policyID uuid.UUID) (*models.PaymentProgress, error) {
	policy, err := s.policies.GetByID(ctx, policyID)
	if err != nil {
		return nil, err
	}

	entries, err := s.ledger.ListByPolicy(ctx, policyID)
	if err != nil {
		return nil, err
	}

	return ComputeProgress(policy, entries), nil
}

// ComputeProgress derives the installment projection from a policy and its
// ledger without touching storage.
func ComputeProgress(policy *models.Policy, entries []models.PaymentEntry) *models.PaymentProgress {
	total := len(entries)
	if total < models.MinInstallments {
		total = models.MinInstallments
	}

	paidCount := 0
	for _, e := range entries {
		if e.PaidAt != nil {
			paidCount++
		}
	}

	paid := models.PaidAmount(entries)
	percentage := 0.0
	if policy.PremiumCurrent.IsPositive() {
		ratio, _ := paid.Div(policy.PremiumCurrent).Mul(decimal.NewFromInt(100)).Float64()
		percentage = ratio
		if percentage > 100 {
			percentage = 100
		}
		if percentage < 0 {
			percentage = 0
		}
	}

	return &models.PaymentProgress{
		PolicyID:          policy.ID,
		TotalInstallments: total,
		PaidInstallments:  paidCount,
		PaidAmount:        paid,
		Remaining:         models.Remaining(policy.PremiumCurrent, entries),
		PaymentPercentage: percentage,
		IsPaidInFull:      policy.PremiumCurrent.IsPositive() && paid.GreaterThanOrEqual(policy.PremiumCurrent),
	}
}
