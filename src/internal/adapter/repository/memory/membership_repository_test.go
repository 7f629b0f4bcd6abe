package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aspoi/membership-payments/src/internal/domain"
)

func TestMembershipListNewestFirstWithPaging(t *testing.T) {
	repo := NewMembershipRepository()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, ref := range []string{"A", "B", "C"} {
		_, err := repo.Append(context.Background(), domain.MembershipRecord{
			PaymentReference: ref,
			Email:            "member@example.com",
			VerifiedAt:       base.Add(time.Duration(i) * time.Hour),
		})
		require.NoError(t, err)
	}

	records, err := repo.List(context.Background(), 2, 0)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "C", records[0].PaymentReference)
	assert.Equal(t, "B", records[1].PaymentReference)

	records, err = repo.List(context.Background(), 2, 2)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "A", records[0].PaymentReference)

	records, err = repo.List(context.Background(), 2, 10)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestMembershipFindByEmailIgnoresCase(t *testing.T) {
	repo := NewMembershipRepository()
	_, err := repo.Append(context.Background(), domain.MembershipRecord{PaymentReference: "A", Email: "Ada@Example.com"})
	require.NoError(t, err)
	_, err = repo.Append(context.Background(), domain.MembershipRecord{PaymentReference: "B", Email: "bob@example.com"})
	require.NoError(t, err)

	records, err := repo.FindByEmail(context.Background(), " ada@example.COM ")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "A", records[0].PaymentReference)
	assert.NotEmpty(t, records[0].ID)

	_, err = repo.FindByEmail(context.Background(), "")
	var validationErr *domain.ValidationError
	assert.ErrorAs(t, err, &validationErr)
}

func TestMembershipGetByPaymentReference(t *testing.T) {
	repo := NewMembershipRepository()
	_, err := repo.Append(context.Background(), domain.MembershipRecord{PaymentReference: "A"})
	require.NoError(t, err)

	record, err := repo.GetByPaymentReference(context.Background(), "A")
	require.NoError(t, err)
	assert.Equal(t, "A", record.PaymentReference)

	_, err = repo.GetByPaymentReference(context.Background(), "Z")
	assert.ErrorIs(t, err, domain.ErrRecordNotFound)
}
