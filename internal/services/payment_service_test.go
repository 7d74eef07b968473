package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rachid-J/Asssurance-sub001/internal/apperr"
	"github.com/rachid-J/Asssurance-sub001/internal/models"
)

func payRequest(seq int) models.PayInstallmentRequest {
	return models.PayInstallmentRequest{
		SequenceNumber: seq,
		Method:         models.MethodCash,
		Reference:      "rcpt-001",
	}
}

func TestPayInstallment_FirstOfFour(t *testing.T) {
	store := newMemStore()
	policy := issuePolicyWithPayments(t, store, 0)
	svc := NewPaymentService(store, store, store)

	entry, err := svc.PayInstallment(context.Background(), ownerActor, policy.ID, payRequest(1))
	require.NoError(t, err)
	require.NotNil(t, entry.PaidAt)
	assert.True(t, entry.Amount.Equal(dec("1200")))

	progress, err := svc.Progress(context.Background(), policy.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, progress.TotalInstallments)
	assert.Equal(t, 1, progress.PaidInstallments)
	assert.True(t, progress.PaidAmount.Equal(dec("1200")))
	assert.True(t, progress.Remaining.Equal(dec("3600")))
	assert.InDelta(t, 25.0, progress.PaymentPercentage, 0.001)
	assert.False(t, progress.IsPaidInFull)
}

func TestPayInstallment_AllFourSettlesPolicy(t *testing.T) {
	store := newMemStore()
	policy := issuePolicyWithPayments(t, store, 4)
	svc := NewPaymentService(store, store, store)

	progress, err := svc.Progress(context.Background(), policy.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, progress.PaidInstallments)
	assert.True(t, progress.Remaining.IsZero())
	assert.InDelta(t, 100.0, progress.PaymentPercentage, 0.001)
	assert.True(t, progress.IsPaidInFull)
}

func TestPayInstallment_AlreadyCollected(t *testing.T) {
	store := newMemStore()
	policy := issuePolicyWithPayments(t, store, 1)
	svc := NewPaymentService(store, store, store)

	_, err := svc.PayInstallment(context.Background(), ownerActor, policy.ID, payRequest(1))
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestPayInstallment_RejectsNonPositiveSequence(t *testing.T) {
	store := newMemStore()
	policy := issuePolicyWithPayments(t, store, 0)
	svc := NewPaymentService(store, store, store)

	_, err := svc.PayInstallment(context.Background(), ownerActor, policy.ID, payRequest(0))
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestPayInstallment_UnscheduledSlotNeedsAmount(t *testing.T) {
	store := newMemStore()
	policy := issuePolicyWithPayments(t, store, 0)
	svc := NewPaymentService(store, store, store)

	// Slot 5 does not exist on a new-business schedule.
	_, err := svc.PayInstallment(context.Background(), ownerActor, policy.ID, payRequest(5))
	assert.ErrorIs(t, err, apperr.ErrValidation)

	req := payRequest(5)
	req.Amount = dec("300")
	entry, err := svc.PayInstallment(context.Background(), ownerActor, policy.ID, req)
	require.NoError(t, err)
	assert.Equal(t, 5, entry.SequenceNumber)
	assert.NotNil(t, entry.PaidAt)

	count, err := store.CountByPolicy(context.Background(), policy.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, count)
}

func TestPayInstallment_RejectsCanceledPolicy(t *testing.T) {
	store := newMemStore()
	policy := issuePolicyWithPayments(t, store, 0)
	svc := NewPaymentService(store, store, store)

	store.setStatus(policy.ID, models.PolicyCanceled)

	_, err := svc.PayInstallment(context.Background(), ownerActor, policy.ID, payRequest(1))
	assert.ErrorIs(t, err, apperr.ErrValidation)

	entries, err := store.ListByPolicy(context.Background(), policy.ID)
	require.NoError(t, err)
	for _, e := range entries {
		assert.Nil(t, e.PaidAt, "no installment may be collected on a canceled policy")
	}
}

func TestPayInstallment_ForbiddenForNonOwner(t *testing.T) {
	store := newMemStore()
	policy := issuePolicyWithPayments(t, store, 0)
	svc := NewPaymentService(store, store, store)

	_, err := svc.PayInstallment(context.Background(), otherActor, policy.ID, payRequest(1))
	assert.ErrorIs(t, err, apperr.ErrForbidden)
}

func TestCollectByPolicyNumber_AppendsToRenewalLedger(t *testing.T) {
	store := newMemStore()
	clientID, vehicleID := store.seedClientVehicle()
	policySvc := NewPolicyService(store, store, store)
	paymentSvc := NewPaymentService(store, store, store)

	req := newCreateRequest(clientID, vehicleID)
	req.InsuranceKind = models.KindResale
	policy, err := policySvc.Create(context.Background(), ownerActor, req)
	require.NoError(t, err)

	payReq := payRequest(1)
	payReq.Amount = dec("2400")
	entry, err := paymentSvc.CollectByPolicyNumber(context.Background(), policy.PolicyNumber, payReq)
	require.NoError(t, err)
	assert.Equal(t, policy.ID, entry.PolicyID)
	assert.True(t, entry.Amount.Equal(dec("2400")))
	assert.NotNil(t, entry.PaidAt)
}

func TestCollectByPolicyNumber_NoActiveInstance(t *testing.T) {
	store := newMemStore()
	svc := NewPaymentService(store, store, store)

	_, err := svc.CollectByPolicyNumber(context.Background(), "POL-MISSING", payRequest(1))
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestRecordRefund_InsufficientBalance(t *testing.T) {
	store := newMemStore()
	policy := issuePolicyWithPayments(t, store, 1) // 1200 collected
	svc := NewPaymentService(store, store, store)

	_, err := svc.RecordRefund(context.Background(), ownerActor, policy.ID, models.RecordRefundRequest{
		Amount: dec("1500"),
		Method: models.MethodCash,
	})
	assert.ErrorIs(t, err, apperr.ErrInsufficientBalance)

	// The rejected refund leaves the ledger untouched.
	entries, err := store.ListByPolicy(context.Background(), policy.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 4)
	assert.True(t, models.PaidAmount(entries).Equal(dec("1200")))
}

func TestRecordRefund_ReducesBalance(t *testing.T) {
	store := newMemStore()
	policy := issuePolicyWithPayments(t, store, 2)
	svc := NewPaymentService(store, store, store)

	entry, err := svc.RecordRefund(context.Background(), ownerActor, policy.ID, models.RecordRefundRequest{
		Amount: dec("500"),
		Method: models.MethodTransfer,
		Reason: "billing correction",
	})
	require.NoError(t, err)
	assert.Equal(t, 5, entry.SequenceNumber)
	assert.True(t, entry.Amount.Equal(dec("-500")))

	progress, err := svc.Progress(context.Background(), policy.ID)
	require.NoError(t, err)
	assert.True(t, progress.PaidAmount.Equal(dec("1900")))
	assert.True(t, progress.Remaining.Equal(dec("2900")))
}

func TestRecordRefund_RejectsNonPositiveAmount(t *testing.T) {
	store := newMemStore()
	policy := issuePolicyWithPayments(t, store, 2)
	svc := NewPaymentService(store, store, store)

	_, err := svc.RecordRefund(context.Background(), ownerActor, policy.ID, models.RecordRefundRequest{
		Amount: dec("0"),
	})
	assert.ErrorIs(t, err, apperr.ErrInvalidRefundAmount)

	_, err = svc.RecordRefund(context.Background(), ownerActor, policy.ID, models.RecordRefundRequest{
		Amount: dec("-100"),
	})
	assert.ErrorIs(t, err, apperr.ErrInvalidRefundAmount)
}

func TestRecordRefund_RejectsTerminatedPolicy(t *testing.T) {
	store := newMemStore()
	policy := issuePolicyWithPayments(t, store, 2)
	svc := NewPaymentService(store, store, store)

	store.setStatus(policy.ID, models.PolicyTermination)

	_, err := svc.RecordRefund(context.Background(), ownerActor, policy.ID, models.RecordRefundRequest{
		Amount: dec("500"),
		Method: models.MethodCash,
	})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	entries, err := store.ListByPolicy(context.Background(), policy.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 4, "a terminated policy's ledger is closed")
}

func TestProgress_ZeroPremium(t *testing.T) {
	policy := &models.Policy{ID: uuid.New(), PremiumCurrent: dec("0")}

	progress := ComputeProgress(policy, nil)
	assert.Equal(t, models.MinInstallments, progress.TotalInstallments)
	assert.Equal(t, 0.0, progress.PaymentPercentage)
	assert.False(t, progress.IsPaidInFull)
	assert.True(t, progress.Remaining.IsZero())
}

func TestNextSequence_EmptyLedgerSentinel(t *testing.T) {
	assert.Equal(t, models.RefundSequenceSentinel, models.NextSequence(nil))
}
