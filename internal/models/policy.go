package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ============================================================================
// POLICY (ONE ROW PER ISSUED INSTANCE)
// ============================================================================

// Policy is one issued instance. A renewal creates a new instance sharing
// the predecessor's policy number; it never mutates the old row.
type Policy struct {
	ID            uuid.UUID       `json:"id" db:"id"`
	PolicyNumber  string          `json:"policy_number" db:"policy_number"`
	ClientID      uuid.UUID       `json:"client_id" db:"client_id"`
	VehicleID     uuid.UUID       `json:"vehicle_id" db:"vehicle_id"`
	VehicleUsage  *string         `json:"vehicle_usage,omitempty" db:"vehicle_usage"`
	InsuranceKind InsuranceKind   `json:"insurance_kind" db:"insurance_kind"`
	PremiumBase   decimal.Decimal `json:"premium_base" db:"premium_base"`
	// PremiumGross is frozen the instant the ledger holds one entry.
	PremiumGross   decimal.Decimal `json:"premium_gross" db:"premium_gross"`
	PremiumCurrent decimal.Decimal `json:"premium_current" db:"premium_current"`
	StartDate      time.Time       `json:"start_date" db:"start_date"`
	EndDate        time.Time       `json:"end_date" db:"end_date"`
	Status         PolicyStatus    `json:"status" db:"status"`
	CreatedBy      string          `json:"created_by" db:"created_by"`

	// Cancellation audit.
	CanceledAt    *time.Time          `json:"canceled_at,omitempty" db:"canceled_at"`
	CanceledBy    *string             `json:"canceled_by,omitempty" db:"canceled_by"`
	CancelReason  *string             `json:"cancel_reason,omitempty" db:"cancel_reason"`
	RefundMethod  *string             `json:"refund_method,omitempty" db:"refund_method"`
	RefundPenalty *float64            `json:"refund_penalty_pct,omitempty" db:"refund_penalty_pct"`
	TotalRefunded decimal.NullDecimal `json:"total_refunded,omitempty" db:"total_refunded"`
	IsFullRefund  *bool               `json:"is_full_refund,omitempty" db:"is_full_refund"`

	// Termination audit.
	TerminationDate *time.Time `json:"termination_date,omitempty" db:"termination_date"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Client and Vehicle live with external collaborators; only the fields the
// lifecycle engine reads are modeled here.

type Client struct {
	ID       uuid.UUID `json:"id" db:"id"`
	FullName string    `json:"full_name" db:"full_name"`
}

type Vehicle struct {
	ID          uuid.UUID `json:"id" db:"id"`
	ClientID    uuid.UUID `json:"client_id" db:"client_id"`
	PlateNumber string    `json:"plate_number" db:"plate_number"`
	Usage       *string   `json:"usage,omitempty" db:"usage"`
}
