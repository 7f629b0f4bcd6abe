package cache

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/aspoi/membership-payments/src/internal/domain"
)

const defaultSize = 1024

// IntentRepository serves terminal intents from an LRU cache. Pending intents
// are always read through since their status can still change.
type IntentRepository struct {
	next    domain.IntentRepository
	settled *lru.Cache[string, domain.PaymentIntent]
}

func NewIntentRepository(next domain.IntentRepository, size int) (*IntentRepository, error) {
	if size <= 0 {
		size = defaultSize
	}
	settled, err := lru.New[string, domain.PaymentIntent](size)
	if err != nil {
		return nil, fmt.Errorf("create intent cache: %w", err)
	}
	return &IntentRepository{next: next, settled: settled}, nil
}

func (r *IntentRepository) Create(ctx context.Context, intent domain.PaymentIntent) (domain.PaymentIntent, error) {
	return r.next.Create(ctx, intent)
}

func (r *IntentRepository) GetByReference(ctx context.Context, reference string) (domain.PaymentIntent, error) {
	if intent, ok := r.settled.Get(reference); ok {
		return intent, nil
	}

	intent, err := r.next.GetByReference(ctx, reference)
	if err != nil {
		return domain.PaymentIntent{}, err
	}
	if intent.Status.IsTerminal() {
		r.settled.Add(reference, intent)
	}
	return intent, nil
}

func (r *IntentRepository) Transition(ctx context.Context, reference string, from domain.IntentStatus, to domain.IntentStatus, reason string) error {
	if err := r.next.Transition(ctx, reference, from, to, reason); err != nil {
		return err
	}
	r.settled.Remove(reference)
	return nil
}

func (r *IntentRepository) CompleteVerification(ctx context.Context, reference string, record domain.MembershipRecord) (domain.MembershipRecord, error) {
	created, err := r.next.CompleteVerification(ctx, reference, record)
	if err != nil {
		return domain.MembershipRecord{}, err
	}
	r.settled.Remove(reference)
	return created, nil
}

func (r *IntentRepository) Len() int {
	return r.settled.Len()
}
