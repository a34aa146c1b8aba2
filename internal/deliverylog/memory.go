package deliverylog

import (
	"context"
	"sort"
	"strings"
	"sync"

	"ShopPulse/internal/models"
)

// MemoryStore keeps delivery records in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*memoryRecord
	seq     int64
}

type memoryRecord struct {
	models.Delivery
	seq int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*memoryRecord)}
}

func (s *MemoryStore) Upsert(_ context.Context, u Update) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[u.JobID]
	if !ok {
		s.seq++
		rec = &memoryRecord{
			Delivery: models.Delivery{
				JobID:      u.JobID,
				Recipient:  u.Recipient,
				Subject:    u.Subject,
				Template:   u.Template,
				Priority:   u.Priority,
				MaxRetries: u.MaxRetries,
				Metadata:   copyMetadata(u.Metadata),
				CreatedAt:  u.CreatedAt,
			},
			seq: s.seq,
		}
		s.records[u.JobID] = rec
	}

	rec.Status = u.Status
	rec.Attempts = u.Attempts
	rec.UpdatedAt = u.UpdatedAt
	if u.Error != "" {
		rec.Error = u.Error
	}
	if u.MessageID != "" {
		rec.MessageID = u.MessageID
	}
	if u.SentAt != nil {
		t := *u.SentAt
		rec.SentAt = &t
	}
	if u.CompletedAt != nil {
		t := *u.CompletedAt
		rec.CompletedAt = &t
	}
	return nil
}

func (s *MemoryStore) List(_ context.Context, f Filter) ([]models.Delivery, error) {
	s.mu.RLock()
	matched := make([]*memoryRecord, 0, len(s.records))
	for _, rec := range s.records {
		if f.Status != "" && rec.Status != f.Status {
			continue
		}
		if f.Recipient != "" && !strings.EqualFold(rec.Recipient, f.Recipient) {
			continue
		}
		if f.Template != "" && rec.Template != f.Template {
			continue
		}
		matched = append(matched, rec)
	}

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].seq > matched[j].seq
	})

	if f.Limit > 0 && len(matched) > f.Limit {
		matched = matched[:f.Limit]
	}

	out := make([]models.Delivery, len(matched))
	for i, rec := range matched {
		out[i] = rec.Delivery
		out[i].Metadata = copyMetadata(rec.Metadata)
	}
	s.mu.RUnlock()

	return out, nil
}

// Len reports how many records exist.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func copyMetadata(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
