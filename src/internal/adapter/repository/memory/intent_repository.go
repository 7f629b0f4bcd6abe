package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aspoi/membership-payments/src/internal/domain"
)

// IntentRepository keeps intents in process memory. It backs local runs and
// tests; state does not survive a restart.
type IntentRepository struct {
	mu          sync.Mutex
	intents     map[string]domain.PaymentIntent
	memberships *MembershipRepository
	now         func() time.Time
}

func NewIntentRepository(memberships *MembershipRepository) *IntentRepository {
	if memberships == nil {
		memberships = NewMembershipRepository()
	}
	return &IntentRepository{
		intents:     make(map[string]domain.PaymentIntent),
		memberships: memberships,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (r *IntentRepository) Create(_ context.Context, intent domain.PaymentIntent) (domain.PaymentIntent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.intents[intent.Reference]; exists {
		return domain.PaymentIntent{}, fmt.Errorf("create intent %s: %w", intent.Reference, domain.ErrDuplicateRecord)
	}

	now := r.now()
	intent.CreatedAt = now
	intent.UpdatedAt = now
	if intent.Status == "" {
		intent.Status = domain.IntentStatusPending
	}
	r.intents[intent.Reference] = intent
	return intent, nil
}

func (r *IntentRepository) GetByReference(_ context.Context, reference string) (domain.PaymentIntent, error) {
	trimmed := strings.TrimSpace(reference)
	if trimmed == "" {
		return domain.PaymentIntent{}, domain.NewValidationError("reference is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	intent, ok := r.intents[trimmed]
	if !ok {
		return domain.PaymentIntent{}, domain.ErrRecordNotFound
	}
	return intent, nil
}

func (r *IntentRepository) Transition(_ context.Context, reference string, from domain.IntentStatus, to domain.IntentStatus, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	intent, err := r.guard(reference, from)
	if err != nil {
		return err
	}
	r.apply(intent, to, reason)
	return nil
}

func (r *IntentRepository) CompleteVerification(ctx context.Context, reference string, record domain.MembershipRecord) (domain.MembershipRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	intent, err := r.guard(reference, domain.IntentStatusPending)
	if err != nil {
		return domain.MembershipRecord{}, err
	}

	created, err := r.memberships.Append(ctx, record)
	if err != nil {
		return domain.MembershipRecord{}, err
	}
	r.apply(intent, domain.IntentStatusVerified, "")
	return created, nil
}

func (r *IntentRepository) guard(reference string, from domain.IntentStatus) (domain.PaymentIntent, error) {
	intent, ok := r.intents[reference]
	if !ok {
		return domain.PaymentIntent{}, domain.ErrRecordNotFound
	}
	if intent.Status != from {
		return domain.PaymentIntent{}, fmt.Errorf("intent %s is %s, expected %s: %w", reference, intent.Status, from, domain.ErrConflict)
	}
	return intent, nil
}

func (r *IntentRepository) apply(intent domain.PaymentIntent, to domain.IntentStatus, reason string) {
	now := r.now()
	intent.Status = to
	intent.UpdatedAt = now
	intent.FailureReason = nil
	if reason != "" {
		intent.FailureReason = &reason
	}
	if to.IsTerminal() {
		intent.ResolvedAt = &now
	}
	r.intents[intent.Reference] = intent
}
