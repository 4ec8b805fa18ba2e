package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type memoryOutboxRepo struct {
	mu      sync.Mutex
	nextID  int64
	records []Record
}

func (m *memoryOutboxRepo) add(subject, topic string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.records = append(m.records, Record{
		ID:        m.nextID,
		EventID:   uuid.New(),
		Topic:     topic,
		Subject:   subject,
		Payload:   json.RawMessage(`{}`),
		CreatedAt: time.Now(),
	})
	return m.nextID
}

func (m *memoryOutboxRepo) Undelivered(ctx context.Context, limit int) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Record
	for _, rec := range m.records {
		if rec.DeliveredAt == nil {
			out = append(out, rec)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (m *memoryOutboxRepo) MarkDelivered(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.records {
		if m.records[i].ID == id {
			now := time.Now()
			m.records[i].DeliveredAt = &now
			m.records[i].Attempts++
			return nil
		}
	}
	return errors.New("record not found")
}

func (m *memoryOutboxRepo) MarkFailed(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.records {
		if m.records[i].ID == id {
			m.records[i].Attempts++
			return nil
		}
	}
	return errors.New("record not found")
}

func (m *memoryOutboxRepo) attempts(id int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.records {
		if rec.ID == id {
			return rec.Attempts
		}
	}
	return -1
}

type recordingSink struct {
	mu        sync.Mutex
	failOnID  int64
	delivered []Record
}

func (s *recordingSink) Deliver(ctx context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failOnID != 0 && rec.ID == s.failOnID {
		return errors.New("sink unavailable")
	}
	s.delivered = append(s.delivered, rec)
	return nil
}

func (s *recordingSink) idsFor(subject string) []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []int64
	for _, rec := range s.delivered {
		if rec.Subject == subject {
			ids = append(ids, rec.ID)
		}
	}
	return ids
}

func TestDrainDeliversPerSubjectInCommitOrder(t *testing.T) {
	repo := &memoryOutboxRepo{}
	repo.add(ProductSubject(1), TopicProductAdded)
	repo.add(ProductSubject(2), TopicProductAdded)
	repo.add(ProductSubject(1), TopicStatusUpdated)
	repo.add(ProductSubject(2), TopicStatusUpdated)
	repo.add(ProductSubject(1), TopicStatusUpdated)

	sink := &recordingSink{}
	dispatcher := NewDispatcher(nil, repo, sink, nil, nil, 0)

	result, err := dispatcher.Drain(context.Background())
	require.NoError(t, err)
	require.Equal(t, 5, result.Delivered)
	require.Equal(t, 0, result.Failed)

	require.Equal(t, []int64{1, 3, 5}, sink.idsFor(ProductSubject(1)))
	require.Equal(t, []int64{2, 4}, sink.idsFor(ProductSubject(2)))

	remaining, err := repo.Undelivered(context.Background(), 10)
	require.NoError(t, err)
	require.Empty(t, remaining)
}

func TestDrainStopsSubjectAtFirstFailure(t *testing.T) {
	repo := &memoryOutboxRepo{}
	first := repo.add(ProductSubject(9), TopicProductAdded)
	second := repo.add(ProductSubject(9), TopicStatusUpdated)
	third := repo.add(ProductSubject(9), TopicStatusUpdated)
	other := repo.add(AccountSubject("carol"), TopicRoleAssigned)

	sink := &recordingSink{failOnID: second}
	dispatcher := NewDispatcher(nil, repo, sink, nil, nil, 0)

	result, err := dispatcher.Drain(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, result.Delivered)
	require.Equal(t, 1, result.Failed)

	require.Equal(t, []int64{first}, sink.idsFor(ProductSubject(9)))
	require.Equal(t, []int64{other}, sink.idsFor(AccountSubject("carol")))
	require.Equal(t, 1, repo.attempts(second))
	require.Equal(t, 0, repo.attempts(third))

	// Next pass resumes where the subject stopped, order intact.
	sink.failOnID = 0
	result, err = dispatcher.Drain(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, result.Delivered)
	require.Equal(t, []int64{first, second, third}, sink.idsFor(ProductSubject(9)))
}

func TestDrainSkipsWhenLeaseHeld(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	repo := &memoryOutboxRepo{}
	repo.add(ProductSubject(1), TopicProductAdded)

	require.NoError(t, client.Set(context.Background(), drainLeaseKey, "1", time.Minute).Err())

	sink := &recordingSink{}
	dispatcher := NewDispatcher(nil, repo, sink, client, nil, 0)

	result, err := dispatcher.Drain(context.Background())
	require.NoError(t, err)
	require.True(t, result.Skipped)
	require.Empty(t, sink.delivered)

	require.NoError(t, client.Del(context.Background(), drainLeaseKey).Err())

	result, err = dispatcher.Drain(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, result.Delivered)

	// Lease releases after the pass.
	require.False(t, mr.Exists(drainLeaseKey))
}

func TestDrainWithNothingPending(t *testing.T) {
	dispatcher := NewDispatcher(nil, &memoryOutboxRepo{}, &recordingSink{}, nil, nil, 0)
	result, err := dispatcher.Drain(context.Background())
	require.NoError(t, err)
	require.Zero(t, result.Delivered)
	require.Zero(t, result.Failed)
}
