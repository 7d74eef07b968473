package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/rachid-J/Asssurance-sub001/internal/apperr"
	"github.com/rachid-J/Asssurance-sub001/internal/models"
)

// resolveRenewalChain locates the renewal predecessor for a vehicle: the
// most recently ended expired policy, and verifies that no active instance
// already carries its policy number. Shared by the renewal operation and by
// create-with-renewal-kind.
func resolveRenewalChain(ctx context.Context, policies PolicyStore, vehicleID uuid.UUID) (*models.Policy, error) {
	prior, err := policies.LatestExpiredByVehicle(ctx, vehicleID)
	if err != nil {
		return nil, err
	}

	active, err := policies.HasActiveWithNumber(ctx, prior.PolicyNumber)
	if err != nil {
		return nil, err
	}
	if active {
		return nil, fmt.Errorf("%w: policy number %s", apperr.ErrActiveRenewalExists, prior.PolicyNumber)
	}

	return prior, nil
}

// RenewalService chains a new policy instance onto a vehicle's expired
// predecessor. The new instance inherits the policy number only; ledger
// entries are never copied across instances.
type RenewalService struct {
	policies PolicyStore
	refs     ReferenceDirectory
}

func NewRenewalService(policies PolicyStore, refs ReferenceDirectory) *RenewalService {
	return &RenewalService{policies: policies, refs: refs}
}

func (s *RenewalService) Renew(ctx context.Context, actor Actor, req models.RenewPolicyRequest) (*models.Policy, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrValidation, err)
	}

	prior, err := resolveRenewalChain(ctx, s.policies, req.VehicleID)
	if err != nil {
		return nil, err
	}

	vehicle, err := s.refs.GetVehicle(ctx, req.VehicleID)
	if err != nil {
		return nil, err
	}

	renewed := &models.Policy{
		PolicyNumber:   prior.PolicyNumber,
		ClientID:       prior.ClientID,
		VehicleID:      req.VehicleID,
		VehicleUsage:   vehicle.Usage,
		InsuranceKind:  models.KindRenewal,
		PremiumBase:    req.PremiumBase,
		PremiumGross:   req.PremiumGross,
		PremiumCurrent: req.PremiumCurrent,
		StartDate:      req.StartDate,
		EndDate:        req.EndDate,
		Status:         models.PolicyActive,
		CreatedBy:      actor.UserID,
	}

	// Renewals start with an empty ledger; installments are scheduled by
	// the collection flow as payments arrive.
	if err := s.policies.Create(ctx, renewed, nil); err != nil {
		return nil, err
	}

	slog.Info("policy renewed",
		"policy_number", renewed.PolicyNumber,
		"prior_policy_id", prior.ID,
		"renewed_policy_id", renewed.ID,
		"vehicle_id", req.VehicleID)

	return renewed, nil
}
