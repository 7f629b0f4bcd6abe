package domain

// ReconciliationOutcome is what a verification attempt settled on. Idempotent
// is set when the intent was already terminal or another caller won the
// transition.
type ReconciliationOutcome struct {
	Intent         PaymentIntent
	Membership     *MembershipRecord
	ProviderStatus ProviderStatus
	Idempotent     bool
	NeedsReview    bool
}
