package domain

import "context"

type MembershipRepository interface {
	Append(ctx context.Context, record MembershipRecord) (MembershipRecord, error)
	GetByPaymentReference(ctx context.Context, reference string) (MembershipRecord, error)
	FindByEmail(ctx context.Context, email string) ([]MembershipRecord, error)
	List(ctx context.Context, limit int, offset int) ([]MembershipRecord, error)
}
