package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aspoi/membership-payments/src/internal/domain"
	"github.com/google/uuid"
)

type MembershipRepository struct {
	mu          sync.RWMutex
	records     []domain.MembershipRecord
	byReference map[string]int
}

func NewMembershipRepository() *MembershipRepository {
	return &MembershipRepository{
		byReference: make(map[string]int),
	}
}

func (r *MembershipRepository) Append(_ context.Context, record domain.MembershipRecord) (domain.MembershipRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byReference[record.PaymentReference]; exists {
		return domain.MembershipRecord{}, fmt.Errorf("membership for %s: %w", record.PaymentReference, domain.ErrDuplicateRecord)
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.VerifiedAt.IsZero() {
		record.VerifiedAt = time.Now().UTC()
	}

	r.byReference[record.PaymentReference] = len(r.records)
	r.records = append(r.records, record)
	return record, nil
}

func (r *MembershipRepository) GetByPaymentReference(_ context.Context, reference string) (domain.MembershipRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	idx, ok := r.byReference[strings.TrimSpace(reference)]
	if !ok {
		return domain.MembershipRecord{}, domain.ErrRecordNotFound
	}
	return r.records[idx], nil
}

func (r *MembershipRepository) FindByEmail(_ context.Context, email string) ([]domain.MembershipRecord, error) {
	trimmed := strings.TrimSpace(email)
	if trimmed == "" {
		return nil, domain.NewValidationError("email is required")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	matches := make([]domain.MembershipRecord, 0)
	for _, record := range r.records {
		if strings.EqualFold(record.Email, trimmed) {
			matches = append(matches, record)
		}
	}
	sortNewestFirst(matches)
	return matches, nil
}

func (r *MembershipRepository) List(_ context.Context, limit int, offset int) ([]domain.MembershipRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	r.mu.RLock()
	all := make([]domain.MembershipRecord, len(r.records))
	copy(all, r.records)
	r.mu.RUnlock()

	sortNewestFirst(all)
	if offset >= len(all) {
		return []domain.MembershipRecord{}, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func sortNewestFirst(records []domain.MembershipRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].VerifiedAt.After(records[j].VerifiedAt)
	})
}
