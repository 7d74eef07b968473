package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func isValidInsuranceKind(kind InsuranceKind) bool {
	switch kind {
	case KindNew, KindRenewal, KindResale:
		return true
	default:
		return false
	}
}

func isValidPolicyStatus(status PolicyStatus) bool {
	switch status {
	case PolicyActive, PolicyExpired, PolicyTermination, PolicyCanceled:
		return true
	default:
		return false
	}
}

// CreatePolicyRequest carries the terms of a new policy instance.
type CreatePolicyRequest struct {
	PolicyNumber   string          `json:"policy_number"`
	ClientID       uuid.UUID       `json:"client_id"`
	VehicleID      uuid.UUID       `json:"vehicle_id"`
	InsuranceKind  InsuranceKind   `json:"insurance_kind"`
	PremiumBase    decimal.Decimal `json:"premium_base"`
	PremiumGross   decimal.Decimal `json:"premium_gross"`
	PremiumCurrent decimal.Decimal `json:"premium_current"`
	StartDate      time.Time       `json:"start_date"`
	EndDate        time.Time       `json:"end_date"`
}

func (r CreatePolicyRequest) Validate() error {
	if strings.TrimSpace(r.PolicyNumber) == "" && r.InsuranceKind != KindRenewal {
		return fmt.Errorf("policy_number is required")
	}
	if r.ClientID == uuid.Nil {
		return fmt.Errorf("client_id is required")
	}
	if r.VehicleID == uuid.Nil {
		return fmt.Errorf("vehicle_id is required")
	}
	if !isValidInsuranceKind(r.InsuranceKind) {
		return fmt.Errorf("invalid insurance_kind: %s", r.InsuranceKind)
	}
	if r.PremiumBase.IsNegative() || r.PremiumGross.IsNegative() || r.PremiumCurrent.IsNegative() {
		return fmt.Errorf("premium amounts must not be negative")
	}
	if r.StartDate.IsZero() || r.EndDate.IsZero() {
		return fmt.Errorf("coverage window is required")
	}
	if !r.EndDate.After(r.StartDate) {
		return fmt.Errorf("end_date must be after start_date")
	}
	return nil
}

// RenewPolicyRequest issues a new instance chained to the vehicle's most
// recently expired policy.
type RenewPolicyRequest struct {
	VehicleID      uuid.UUID       `json:"vehicle_id"`
	PremiumBase    decimal.Decimal `json:"premium_base"`
	PremiumGross   decimal.Decimal `json:"premium_gross"`
	PremiumCurrent decimal.Decimal `json:"premium_current"`
	StartDate      time.Time       `json:"start_date"`
	EndDate        time.Time       `json:"end_date"`
}

func (r RenewPolicyRequest) Validate() error {
	if r.VehicleID == uuid.Nil {
		return fmt.Errorf("vehicle_id is required")
	}
	if r.PremiumBase.IsNegative() || r.PremiumGross.IsNegative() || r.PremiumCurrent.IsNegative() {
		return fmt.Errorf("premium amounts must not be negative")
	}
	if !r.EndDate.After(r.StartDate) {
		return fmt.Errorf("end_date must be after start_date")
	}
	return nil
}

// UpdatePolicyRequest edits the monetary terms or the coverage window of an
// active policy. Nil fields are left untouched.
type UpdatePolicyRequest struct {
	PremiumBase    *decimal.Decimal `json:"premium_base,omitempty"`
	PremiumGross   *decimal.Decimal `json:"premium_gross,omitempty"`
	PremiumCurrent *decimal.Decimal `json:"premium_current,omitempty"`
	StartDate      *time.Time       `json:"start_date,omitempty"`
	EndDate        *time.Time       `json:"end_date,omitempty"`
}

func (r UpdatePolicyRequest) Validate() error {
	for name, v := range map[string]*decimal.Decimal{
		"premium_base":    r.PremiumBase,
		"premium_gross":   r.PremiumGross,
		"premium_current": r.PremiumCurrent,
	} {
		if v != nil && v.IsNegative() {
			return fmt.Errorf("%s must not be negative", name)
		}
	}
	return nil
}

// RefundDirective drives the cancellation engine.
type RefundDirective struct {
	RefundAmount      *decimal.Decimal `json:"refund_amount,omitempty"`
	RefundMethod      *string          `json:"refund_method,omitempty"`
	CancelReason      *string          `json:"cancel_reason,omitempty"`
	PenaltyPercentage *float64         `json:"penalty_percentage,omitempty"`
	FullRefund        bool             `json:"full_refund"`
}

// TerminationRequest converts a policy to the terminated/resale state,
// optionally with an accompanying refund.
type TerminationRequest struct {
	RefundAmount *decimal.Decimal `json:"refund_amount,omitempty"`
	RefundMethod *string          `json:"refund_method,omitempty"`
}

// RecordRefundRequest is the ad-hoc partial refund path.
type RecordRefundRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Method PaymentMethod   `json:"method"`
	Reason string          `json:"reason"`
}

// PayInstallmentRequest marks a scheduled installment collected. Amount is
// only consulted when the slot does not exist yet (renewal ledgers start
// empty and grow as payments arrive).
type PayInstallmentRequest struct {
	SequenceNumber int             `json:"sequence_number"`
	Amount         decimal.Decimal `json:"amount"`
	Method         PaymentMethod   `json:"method"`
	Reference      string          `json:"reference"`
}

// PolicyFilter narrows listPolicies. Empty fields are ignored.
type PolicyFilter struct {
	Status       PolicyStatus `json:"status" query:"status"`
	PolicyNumber string       `json:"policy_number" query:"policy_number"`
	ClientID     uuid.UUID    `json:"client_id" query:"client_id"`
	VehicleID    uuid.UUID    `json:"vehicle_id" query:"vehicle_id"`
	CreatedBy    string       `json:"created_by" query:"created_by"`
}

func (f PolicyFilter) Validate() error {
	if f.Status != "" && !isValidPolicyStatus(f.Status) {
		return fmt.Errorf("invalid status: %s", f.Status)
	}
	return nil
}

// CancellationResult is returned by the cancellation engine: the updated
// policy plus the refund entries the cancellation appended.
type CancellationResult struct {
	Policy        *Policy         `json:"policy"`
	RefundEntries []PaymentEntry  `json:"refund_entries"`
	NetAmount     decimal.Decimal `json:"net_amount"`
}
