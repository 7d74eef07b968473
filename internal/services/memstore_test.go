package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rachid-J/Asssurance-sub001/internal/apperr"
	"github.com/rachid-J/Asssurance-sub001/internal/models"
)

// ============================================================================
// TEST DOUBLES
// ============================================================================

// memStore is an in-memory PolicyStore + LedgerStore + ReferenceDirectory
// + SummaryProjector with the same transition guards as the SQL layer.
// failCancelTx simulates a storage fault inside the cancellation
// transaction: nothing is applied and the caller sees StorageUnavailable.
type memStore struct {
	mu        sync.Mutex
	policies  map[uuid.UUID]models.Policy
	entries   map[uuid.UUID][]models.PaymentEntry
	clients   map[uuid.UUID]bool
	vehicles  map[uuid.UUID]models.Vehicle
	summaries map[uuid.UUID]models.PaymentSummary

	failCancelTx bool
}

func newMemStore() *memStore {
	return &memStore{
		policies:  make(map[uuid.UUID]models.Policy),
		entries:   make(map[uuid.UUID][]models.PaymentEntry),
		clients:   make(map[uuid.UUID]bool),
		vehicles:  make(map[uuid.UUID]models.Vehicle),
		summaries: make(map[uuid.UUID]models.PaymentSummary),
	}
}

func (m *memStore) Create(_ context.Context, policy *models.Policy, schedule []models.PaymentEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if policy.ID == uuid.Nil {
		policy.ID = uuid.New()
	}
	now := time.Now()
	policy.CreatedAt = now
	policy.UpdatedAt = now

	for _, p := range m.policies {
		if p.PolicyNumber == policy.PolicyNumber && p.Status == models.PolicyActive && policy.Status == models.PolicyActive {
			return fmt.Errorf("%w: policy number %s", apperr.ErrActiveRenewalExists, policy.PolicyNumber)
		}
	}

	m.policies[policy.ID] = *policy
	for i := range schedule {
		schedule[i].PolicyID = policy.ID
		if schedule[i].ID == uuid.Nil {
			schedule[i].ID = uuid.New()
		}
		schedule[i].CreatedAt = now
		m.entries[policy.ID] = append(m.entries[policy.ID], schedule[i])
	}
	return nil
}

func (m *memStore) GetByID(_ context.Context, id uuid.UUID) (*models.Policy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.policies[id]
	if !ok {
		return nil, fmt.Errorf("%w: policy %s", apperr.ErrNotFound, id)
	}
	return &p, nil
}

func (m *memStore) GetActiveByNumber(_ context.Context, policyNumber string) (*models.Policy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range m.policies {
		if p.PolicyNumber == policyNumber && p.Status == models.PolicyActive {
			found := p
			return &found, nil
		}
	}
	return nil, fmt.Errorf("%w: no active policy %s", apperr.ErrNotFound, policyNumber)
}

func (m *memStore) HasActiveWithNumber(_ context.Context, policyNumber string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range m.policies {
		if p.PolicyNumber == policyNumber && p.Status == models.PolicyActive {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) LatestExpiredByVehicle(_ context.Context, vehicleID uuid.UUID) (*models.Policy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var expired []models.Policy
	for _, p := range m.policies {
		if p.VehicleID == vehicleID && p.Status == models.PolicyExpired {
			expired = append(expired, p)
		}
	}
	if len(expired) == 0 {
		return nil, fmt.Errorf("%w: vehicle %s", apperr.ErrNoExpiredPolicy, vehicleID)
	}

	sort.Slice(expired, func(i, j int) bool {
		if !expired[i].EndDate.Equal(expired[j].EndDate) {
			return expired[i].EndDate.After(expired[j].EndDate)
		}
		return expired[i].CreatedAt.After(expired[j].CreatedAt)
	})
	return &expired[0], nil
}

func (m *memStore) List(_ context.Context, filter models.PolicyFilter) ([]models.Policy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.Policy
	for _, p := range m.policies {
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		if filter.PolicyNumber != "" && p.PolicyNumber != filter.PolicyNumber {
			continue
		}
		if filter.ClientID != uuid.Nil && p.ClientID != filter.ClientID {
			continue
		}
		if filter.VehicleID != uuid.Nil && p.VehicleID != filter.VehicleID {
			continue
		}
		if filter.CreatedBy != "" && p.CreatedBy != filter.CreatedBy {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (m *memStore) UpdateTerms(_ context.Context, policy *models.Policy) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.policies[policy.ID]
	if !ok || stored.Status != models.PolicyActive {
		return fmt.Errorf("%w: policy %s is not active", apperr.ErrConflict, policy.ID)
	}
	policy.UpdatedAt = time.Now()
	m.policies[policy.ID] = *policy
	return nil
}

func (m *memStore) CancelWithRefunds(_ context.Context, policy *models.Policy, refunds []models.PaymentEntry, priorEntries int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failCancelTx {
		return fmt.Errorf("%w: simulated fault", apperr.ErrStorageUnavailable)
	}

	stored, ok := m.policies[policy.ID]
	if !ok || stored.Status != models.PolicyActive {
		return fmt.Errorf("%w: policy %s left Active during cancellation", apperr.ErrConflict, policy.ID)
	}
	if len(m.entries[policy.ID]) != priorEntries {
		return fmt.Errorf("%w: ledger of policy %s changed during cancellation", apperr.ErrConflict, policy.ID)
	}

	for i := range refunds {
		if refunds[i].ID == uuid.Nil {
			refunds[i].ID = uuid.New()
		}
		refunds[i].CreatedAt = time.Now()
		m.entries[policy.ID] = append(m.entries[policy.ID], refunds[i])
	}
	policy.UpdatedAt = time.Now()
	m.policies[policy.ID] = *policy
	return nil
}

func (m *memStore) Terminate(_ context.Context, policy *models.Policy, refund *models.PaymentEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.policies[policy.ID]
	if !ok || stored.Status != models.PolicyActive {
		return fmt.Errorf("%w: policy %s left Active during termination", apperr.ErrConflict, policy.ID)
	}

	if refund != nil {
		if refund.ID == uuid.Nil {
			refund.ID = uuid.New()
		}
		refund.CreatedAt = time.Now()
		m.entries[policy.ID] = append(m.entries[policy.ID], *refund)
	}
	policy.UpdatedAt = time.Now()
	m.policies[policy.ID] = *policy
	return nil
}

func (m *memStore) ExpireDue(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for id, p := range m.policies {
		if p.Status == models.PolicyActive && p.EndDate.Before(now) {
			p.Status = models.PolicyExpired
			p.UpdatedAt = now
			m.policies[id] = p
			n++
		}
	}
	return n, nil
}

// LedgerStore

func (m *memStore) Append(_ context.Context, entry *models.PaymentEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range m.entries[entry.PolicyID] {
		if e.SequenceNumber == entry.SequenceNumber {
			return fmt.Errorf("%w: duplicate ledger slot %d", apperr.ErrValidation, entry.SequenceNumber)
		}
	}
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	entry.CreatedAt = time.Now()
	m.entries[entry.PolicyID] = append(m.entries[entry.PolicyID], *entry)
	return nil
}

func (m *memStore) ListByPolicy(_ context.Context, policyID uuid.UUID) ([]models.PaymentEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.PaymentEntry, len(m.entries[policyID]))
	copy(out, m.entries[policyID])
	return out, nil
}

func (m *memStore) GetBySequence(_ context.Context, policyID uuid.UUID, sequence int) (*models.PaymentEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range m.entries[policyID] {
		if e.SequenceNumber == sequence {
			found := e
			return &found, nil
		}
	}
	return nil, fmt.Errorf("%w: installment %d", apperr.ErrNotFound, sequence)
}

func (m *memStore) MarkPaid(_ context.Context, policyID uuid.UUID, sequence int, paidAt time.Time, method models.PaymentMethod, reference string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, e := range m.entries[policyID] {
		if e.SequenceNumber == sequence && e.PaidAt == nil {
			t := paidAt
			ms := string(method)
			m.entries[policyID][i].PaidAt = &t
			m.entries[policyID][i].Method = &ms
			m.entries[policyID][i].Reference = &reference
			return nil
		}
	}
	return fmt.Errorf("%w: installment %d is missing or already collected", apperr.ErrValidation, sequence)
}

func (m *memStore) CountByPolicy(_ context.Context, policyID uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries[policyID]), nil
}

// ReferenceDirectory

func (m *memStore) ClientExists(_ context.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clients[id], nil
}

func (m *memStore) GetVehicle(_ context.Context, id uuid.UUID) (*models.Vehicle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.vehicles[id]
	if !ok {
		return nil, fmt.Errorf("%w: vehicle %s", apperr.ErrNotFound, id)
	}
	return &v, nil
}

// SummaryProjector

func (m *memStore) Store(_ context.Context, summary models.PaymentSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.summaries[summary.PolicyID] = summary
	return nil
}

// ============================================================================
// TEST HELPERS
// ============================================================================

func (m *memStore) seedClientVehicle() (uuid.UUID, uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	clientID := uuid.New()
	vehicleID := uuid.New()
	usage := "personal"
	m.clients[clientID] = true
	m.vehicles[vehicleID] = models.Vehicle{
		ID:          vehicleID,
		ClientID:    clientID,
		PlateNumber: "1234-A-56",
		Usage:       &usage,
	}
	return clientID, vehicleID
}

func (m *memStore) policyCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.policies)
}

func (m *memStore) setStatus(id uuid.UUID, status models.PolicyStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p := m.policies[id]
	p.Status = status
	m.policies[id] = p
}
