package domain

import "context"

type IntentRepository interface {
	Create(ctx context.Context, intent PaymentIntent) (PaymentIntent, error)
	GetByReference(ctx context.Context, reference string) (PaymentIntent, error)
	// Transition moves an intent from one status to another only if its current
	// status equals from. It returns ErrConflict when the guard does not hold.
	Transition(ctx context.Context, reference string, from IntentStatus, to IntentStatus, reason string) error
	// CompleteVerification atomically transitions Pending to Verified and
	// appends the membership record.
	CompleteVerification(ctx context.Context, reference string, record MembershipRecord) (MembershipRecord, error)
}
