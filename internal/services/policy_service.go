package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rachid-J/Asssurance-sub001/internal/apperr"
	"github.com/rachid-J/Asssurance-sub001/internal/models"
)

// PolicyService issues policy instances and serves the read side of the
// record store.
type PolicyService struct {
	policies PolicyStore
	ledger   LedgerStore
	refs     ReferenceDirectory
}

func NewPolicyService(policies PolicyStore, ledger LedgerStore, refs ReferenceDirectory) *PolicyService {
	return &PolicyService{
		policies: policies,
		ledger:   ledger,
		refs:     refs,
	}
}

// buildInstallmentSchedule splits the current premium into the standard
// four unpaid placeholders. The last slot absorbs the rounding remainder so
// the schedule always sums to the premium exactly.
func buildInstallmentSchedule(premium decimal.Decimal) []models.PaymentEntry {
	per := premium.Div(decimal.NewFromInt(models.MinInstallments)).Round(2)

	schedule := make([]models.PaymentEntry, 0, models.MinInstallments)
	for i := 1; i <= models.MinInstallments; i++ {
		amount := per
		if i == models.MinInstallments {
			amount = premium.Sub(per.Mul(decimal.NewFromInt(models.MinInstallments - 1)))
		}
		schedule = append(schedule, models.PaymentEntry{
			SequenceNumber:  i,
			ScheduledAmount: amount,
			Amount:          amount,
		})
	}
	return schedule
}

// Create issues a new policy instance. New-business policies get a fixed
// schedule of unpaid installment placeholders inside the same transaction;
// renewal-kind issuance goes through the chain resolver first.
func (s *PolicyService) Create(ctx context.Context, actor Actor, req models.CreatePolicyRequest) (*models.Policy, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrValidation, err)
	}

	exists, err := s.refs.ClientExists(ctx, req.ClientID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: client %s", apperr.ErrNotFound, req.ClientID)
	}

	vehicle, err := s.refs.GetVehicle(ctx, req.VehicleID)
	if err != nil {
		return nil, err
	}

	policyNumber := req.PolicyNumber
	var schedule []models.PaymentEntry

	switch req.InsuranceKind {
	case models.KindRenewal:
		prior, err := resolveRenewalChain(ctx, s.policies, req.VehicleID)
		if err != nil {
			return nil, err
		}
		policyNumber = prior.PolicyNumber
	case models.KindNew:
		active, err := s.policies.HasActiveWithNumber(ctx, policyNumber)
		if err != nil {
			return nil, err
		}
		if active {
			return nil, fmt.Errorf("%w: policy number %s", apperr.ErrActiveRenewalExists, policyNumber)
		}
		schedule = buildInstallmentSchedule(req.PremiumCurrent)
	default:
		active, err := s.policies.HasActiveWithNumber(ctx, policyNumber)
		if err != nil {
			return nil, err
		}
		if active {
			return nil, fmt.Errorf("%w: policy number %s", apperr.ErrActiveRenewalExists, policyNumber)
		}
	}

	policy := &models.Policy{
		PolicyNumber:   policyNumber,
		ClientID:       req.ClientID,
		VehicleID:      req.VehicleID,
		VehicleUsage:   vehicle.Usage,
		InsuranceKind:  req.InsuranceKind,
		PremiumBase:    req.PremiumBase,
		PremiumGross:   req.PremiumGross,
		PremiumCurrent: req.PremiumCurrent,
		StartDate:      req.StartDate,
		EndDate:        req.EndDate,
		Status:         models.PolicyActive,
		CreatedBy:      actor.UserID,
	}

	if err := s.policies.Create(ctx, policy, schedule); err != nil {
		return nil, err
	}

	slog.Info("policy issued",
		"policy_id", policy.ID,
		"policy_number", policy.PolicyNumber,
		"insurance_kind", policy.InsuranceKind,
		"installments", len(schedule))

	return policy, nil
}

func (s *PolicyService) Get(ctx context.Context, id uuid.UUID) (*models.Policy, error) {
	return s.policies.GetByID(ctx, id)
}

func (s *PolicyService) List(ctx context.Context, filter models.PolicyFilter) ([]models.Policy, error) {
	if err := filter.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrValidation, err)
	}
	return s.policies.List(ctx, filter)
}

// UpdateTerms edits the monetary terms or coverage window of an active
// policy. The gross premium freezes the instant the ledger holds an entry.
func (s *PolicyService) UpdateTerms(ctx context.Context, actor Actor, id uuid.UUID, req models.UpdatePolicyRequest) (*models.Policy, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrValidation, err)
	}

	policy, err := s.policies.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireOwnership(policy, actor); err != nil {
		return nil, err
	}
	if policy.Status != models.PolicyActive {
		return nil, fmt.Errorf("%w: cannot edit a %s policy", apperr.ErrValidation, policy.Status)
	}

	if req.PremiumGross != nil && !req.PremiumGross.Equal(policy.PremiumGross) {
		count, err := s.ledger.CountByPolicy(ctx, policy.ID)
		if err != nil {
			return nil, err
		}
		if count > 0 {
			return nil, fmt.Errorf("%w: policy %s has %d ledger entries", apperr.ErrPremiumLocked, policy.ID, count)
		}
		policy.PremiumGross = *req.PremiumGross
	}
	if req.PremiumBase != nil {
		policy.PremiumBase = *req.PremiumBase
	}
	if req.PremiumCurrent != nil {
		policy.PremiumCurrent = *req.PremiumCurrent
	}
	if req.StartDate != nil {
		policy.StartDate = *req.StartDate
	}
	if req.EndDate != nil {
		policy.EndDate = *req.EndDate
	}
	if !policy.EndDate.After(policy.StartDate) {
		return nil, fmt.Errorf("%w: end_date must be after start_date", apperr.ErrValidation)
	}

	if err := s.policies.UpdateTerms(ctx, policy); err != nil {
		return nil, err
	}

	slog.Info("policy terms updated", "policy_id", policy.ID, "updated_by", actor.UserID)
	return policy, nil
}

// Ledger returns the audit view of a policy's payment history.
func (s *PolicyService) Ledger(ctx context.Context, id uuid.UUID) ([]models.PaymentEntry, error) {
	if _, err := s.policies.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.ledger.ListByPolicy(ctx, id)
}
