package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rachid-J/Asssurance-sub001/internal/apperr"
	"github.com/rachid-J/Asssurance-sub001/internal/models"
)

// CancellationService orchestrates the terminal manual transitions:
// cancellation with full or partial refund, and conversion to the
// terminated/resale state. Refund entries and the status flip always land
// in one transaction; a reader never observes one without the other.
type CancellationService struct {
	policies  PolicyStore
	ledger    LedgerStore
	projector SummaryProjector
}

func NewCancellationService(policies PolicyStore, ledger LedgerStore, projector SummaryProjector) *CancellationService {
	return &CancellationService{
		policies:  policies,
		ledger:    ledger,
		projector: projector,
	}
}

func cancellationNotes(directive models.RefundDirective) *string {
	parts := make([]string, 0, 2)
	if directive.CancelReason != nil && *directive.CancelReason != "" {
		parts = append(parts, "reason: "+*directive.CancelReason)
	}
	if directive.PenaltyPercentage != nil {
		parts = append(parts, fmt.Sprintf("penalty: %.2f%%", *directive.PenaltyPercentage))
	}
	if len(parts) == 0 {
		return nil
	}
	notes := strings.Join(parts, "; ")
	return &notes
}

// Cancel transitions an active policy to Canceled, appending the refund
// entries the directive asks for. Full refund reverses every collected
// installment with a matching negative entry; a plain refund amount yields
// exactly one entry.
func (s *CancellationService) Cancel(ctx context.Context, actor Actor, policyID uuid.UUID, directive models.RefundDirective) (*models.CancellationResult, error) {
	policy, err := s.policies.GetByID(ctx, policyID)
	if err != nil {
		return nil, err
	}
	if policy.Status == models.PolicyCanceled {
		return nil, fmt.Errorf("%w: policy %s", apperr.ErrAlreadyCanceled, policyID)
	}
	if err := requireOwnership(policy, actor); err != nil {
		return nil, err
	}
	if policy.Status != models.PolicyActive {
		return nil, fmt.Errorf("%w: cannot cancel a %s policy", apperr.ErrValidation, policy.Status)
	}
	if directive.RefundAmount != nil && !directive.RefundAmount.IsPositive() {
		return nil, fmt.Errorf("%w: %s", apperr.ErrInvalidRefundAmount, directive.RefundAmount)
	}

	entries, err := s.ledger.ListByPolicy(ctx, policyID)
	if err != nil {
		return nil, err
	}

	totalCollected := models.TotalCollected(entries)
	now := time.Now()
	notes := cancellationNotes(directive)

	var refunds []models.PaymentEntry
	switch {
	case directive.FullRefund && totalCollected.IsPositive():
		seq := models.NextSequence(entries)
		for _, e := range entries {
			if e.PaidAt == nil || !e.Amount.IsPositive() {
				continue
			}
			slot := e.SequenceNumber
			paidAt := now
			refunds = append(refunds, models.PaymentEntry{
				PolicyID:         policyID,
				SequenceNumber:   seq,
				ScheduledAmount:  e.Amount.Neg(),
				Amount:           e.Amount.Neg(),
				PaidAt:           &paidAt,
				Method:           directive.RefundMethod,
				Notes:            notes,
				RefundOfSequence: &slot,
			})
			seq++
		}
	case directive.RefundAmount != nil && totalCollected.IsPositive():
		paidAt := now
		refunds = append(refunds, models.PaymentEntry{
			PolicyID:        policyID,
			SequenceNumber:  models.NextSequence(entries),
			ScheduledAmount: directive.RefundAmount.Neg(),
			Amount:          directive.RefundAmount.Neg(),
			PaidAt:          &paidAt,
			Method:          directive.RefundMethod,
			Notes:           notes,
		})
	}

	totalRefunded := decimal.Zero
	for _, r := range refunds {
		totalRefunded = totalRefunded.Add(r.Amount.Neg())
	}
	netAmount := models.PaidAmount(entries).Sub(totalRefunded)

	isFull := directive.FullRefund
	policy.Status = models.PolicyCanceled
	policy.CanceledAt = &now
	policy.CanceledBy = &actor.UserID
	policy.CancelReason = directive.CancelReason
	policy.RefundMethod = directive.RefundMethod
	policy.RefundPenalty = directive.PenaltyPercentage
	policy.TotalRefunded = decimal.NewNullDecimal(totalRefunded)
	policy.IsFullRefund = &isFull

	if err := s.policies.CancelWithRefunds(ctx, policy, refunds, len(entries)); err != nil {
		return nil, err
	}

	refreshSummary(ctx, s.projector, policy, append(entries, refunds...))

	slog.Info("policy canceled",
		"policy_id", policy.ID,
		"canceled_by", actor.UserID,
		"full_refund", directive.FullRefund,
		"refund_entries", len(refunds),
		"total_refunded", totalRefunded,
		"net_amount", netAmount)

	return &models.CancellationResult{
		Policy:        policy,
		RefundEntries: refunds,
		NetAmount:     netAmount,
	}, nil
}

// Terminate converts an active policy to the terminated/resale state. The
// optional refund is validated against the amount collected and not yet
// refunded, then appended in the same transaction as the status flip.
func (s *CancellationService) Terminate(ctx context.Context, actor Actor, policyID uuid.UUID, req models.TerminationRequest) (*models.Policy, error) {
	policy, err := s.policies.GetByID(ctx, policyID)
	if err != nil {
		return nil, err
	}
	if policy.Status == models.PolicyCanceled {
		return nil, fmt.Errorf("%w: policy %s", apperr.ErrAlreadyCanceled, policyID)
	}
	if err := requireOwnership(policy, actor); err != nil {
		return nil, err
	}
	if policy.Status != models.PolicyActive {
		return nil, fmt.Errorf("%w: cannot terminate a %s policy", apperr.ErrValidation, policy.Status)
	}

	entries, err := s.ledger.ListByPolicy(ctx, policyID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	var refund *models.PaymentEntry
	if req.RefundAmount != nil {
		amount := *req.RefundAmount
		if !amount.IsPositive() {
			return nil, fmt.Errorf("%w: %s", apperr.ErrInvalidRefundAmount, amount)
		}
		balance := models.PaidAmount(entries)
		if amount.GreaterThan(balance) {
			return nil, fmt.Errorf("%w: requested %s, balance %s", apperr.ErrRefundExceedsBalance, amount, balance)
		}
		notes := "refund on termination"
		paidAt := now
		refund = &models.PaymentEntry{
			PolicyID:        policyID,
			SequenceNumber:  models.NextSequence(entries),
			ScheduledAmount: amount.Neg(),
			Amount:          amount.Neg(),
			PaidAt:          &paidAt,
			Method:          req.RefundMethod,
			Notes:           &notes,
		}
	}

	policy.Status = models.PolicyTermination
	policy.InsuranceKind = models.KindResale
	policy.TerminationDate = &now

	if err := s.policies.Terminate(ctx, policy, refund); err != nil {
		return nil, err
	}

	if refund != nil {
		entries = append(entries, *refund)
	}
	refreshSummary(ctx, s.projector, policy, entries)

	slog.Info("policy terminated",
		"policy_id", policy.ID,
		"terminated_by", actor.UserID,
		"with_refund", refund != nil)

	return policy, nil
}
