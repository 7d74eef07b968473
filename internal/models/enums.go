package models

// PolicyStatus values are persisted as-is; external reporting depends on
// these exact spellings.
type PolicyStatus string

const (
	PolicyActive      PolicyStatus = "Active"
	PolicyExpired     PolicyStatus = "Expired"
	PolicyTermination PolicyStatus = "Termination"
	PolicyCanceled    PolicyStatus = "Canceled"
)

// Terminal reports whether no further transition is permitted from s.
func (s PolicyStatus) Terminal() bool {
	switch s {
	case PolicyCanceled, PolicyTermination, PolicyExpired:
		return true
	default:
		return false
	}
}

type InsuranceKind string

const (
	KindNew     InsuranceKind = "New"
	KindRenewal InsuranceKind = "Renewal"
	KindResale  InsuranceKind = "Resale"
)

type PaymentMethod string

const (
	MethodCash     PaymentMethod = "cash"
	MethodCheck    PaymentMethod = "check"
	MethodCard     PaymentMethod = "card"
	MethodTransfer PaymentMethod = "transfer"
)

// RoleAdmin is the elevated role that bypasses ownership checks.
// Identity itself is established by the auth collaborator upstream.
const RoleAdmin = "admin"
