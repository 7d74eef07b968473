package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ============================================================================
// PAYMENT LEDGER
// ============================================================================

// RefundSequenceSentinel is assigned to a refund appended onto an empty
// ledger. Every other entry gets a positive sequence number, unique per
// policy.
const RefundSequenceSentinel = -1

// MinInstallments is the floor of expected installments used by the
// payment-progress projection.
const MinInstallments = 4

// PaymentEntry is a single signed monetary record attached to one policy.
// Positive amount = installment collected, negative = refund issued.
// Entries are appended, never updated except to stamp collection, and
// never deleted; corrections are opposite-sign entries.
type PaymentEntry struct {
	ID              uuid.UUID       `json:"id" db:"id"`
	PolicyID        uuid.UUID       `json:"policy_id" db:"policy_id"`
	SequenceNumber  int             `json:"sequence_number" db:"sequence_number"`
	ScheduledAmount decimal.Decimal `json:"scheduled_amount" db:"scheduled_amount"`
	Amount          decimal.Decimal `json:"amount" db:"amount"`
	PaidAt          *time.Time      `json:"paid_at,omitempty" db:"paid_at"`
	Method          *string         `json:"method,omitempty" db:"method"`
	Reference       *string         `json:"reference,omitempty" db:"reference"`
	Notes           *string         `json:"notes,omitempty" db:"notes"`
	// RefundOfSequence links a bulk-cancellation refund back to the
	// installment slot it reverses.
	RefundOfSequence *int      `json:"refund_of_sequence,omitempty" db:"refund_of_sequence"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
}

// IsRefund reports whether the entry reduces the amount collected.
func (e PaymentEntry) IsRefund() bool {
	return e.Amount.IsNegative()
}

// PaidAmount is the signed sum over collected entries: installments with a
// collection timestamp plus all refunds (refunds are stamped at creation).
// This is the single source of truth for how much the agency is holding.
func PaidAmount(entries []PaymentEntry) decimal.Decimal {
	total := decimal.Zero
	for _, e := range entries {
		if e.PaidAt != nil {
			total = total.Add(e.Amount)
		}
	}
	return total
}

// TotalCollected sums only the positive collected entries, before refunds.
func TotalCollected(entries []PaymentEntry) decimal.Decimal {
	total := decimal.Zero
	for _, e := range entries {
		if e.PaidAt != nil && e.Amount.IsPositive() {
			total = total.Add(e.Amount)
		}
	}
	return total
}

// NetAmount is the signed sum over the whole ledger.
func NetAmount(entries []PaymentEntry) decimal.Decimal {
	total := decimal.Zero
	for _, e := range entries {
		total = total.Add(e.Amount)
	}
	return total
}

// Remaining is what the client still owes: max(premiumCurrent - paid, 0).
func Remaining(premiumCurrent decimal.Decimal, entries []PaymentEntry) decimal.Decimal {
	rem := premiumCurrent.Sub(PaidAmount(entries))
	if rem.IsNegative() {
		return decimal.Zero
	}
	return rem
}

// NextSequence returns the sequence number a new refund entry should take:
// the sentinel on an empty ledger, otherwise one past the largest absolute
// sequence seen. One numbering scheme for every refund path keeps
// (policy, sequence) unique.
func NextSequence(entries []PaymentEntry) int {
	if len(entries) == 0 {
		return RefundSequenceSentinel
	}
	max := 0
	for _, e := range entries {
		seq := e.SequenceNumber
		if seq < 0 {
			seq = -seq
		}
		if seq > max {
			max = seq
		}
	}
	return max + 1
}

// PaymentSummary is the denormalized projection cached after ledger writes.
// It is never consulted for validation; the ledger is authoritative.
type PaymentSummary struct {
	PolicyID        uuid.UUID       `json:"policy_id"`
	TotalPaid       decimal.Decimal `json:"total_paid"`
	IsPaidInFull    bool            `json:"is_paid_in_full"`
	LastPaymentDate *time.Time      `json:"last_payment_date,omitempty"`
}

// PaymentProgress is the read-side installment projection.
type PaymentProgress struct {
	PolicyID          uuid.UUID       `json:"policy_id"`
	TotalInstallments int             `json:"total_installments"`
	PaidInstallments  int             `json:"paid_installments"`
	PaidAmount        decimal.Decimal `json:"paid_amount"`
	Remaining         decimal.Decimal `json:"remaining"`
	PaymentPercentage float64         `json:"payment_percentage"`
	IsPaidInFull      bool            `json:"is_paid_in_full"`
}
