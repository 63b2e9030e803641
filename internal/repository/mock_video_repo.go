package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Prodelaya/youtube-AIsummary-sub001/internal/domain"
)

// MockVideoRepository is a hand-written, in-memory implementation of
// VideoRepository used in unit tests. No mock-generation library needed.
type MockVideoRepository struct {
	mu          sync.RWMutex
	videos      map[string]*domain.Video
	transcripts map[string]*domain.Transcript // keyed by video ID
	summaries   map[string]*domain.Summary    // keyed by summary ID
	sources     map[string]*domain.Source
	subscribers map[int64]*domain.Subscriber
	subs        map[string][]int64 // source ID → subscriber IDs

	// Optional error overrides — set in tests to simulate failure paths.
	GetVideoErr         error
	CreateSummaryErr    error
	UpdateDeliveryErr   error
	ListSubscribersErr  error
	MarkBlockedErr      error
	ScheduleRetryCalls  []time.Time
	ScheduledRetryCount int
}

func NewMockVideoRepository() *MockVideoRepository {
	return &MockVideoRepository{
		videos:      make(map[string]*domain.Video),
		transcripts: make(map[string]*domain.Transcript),
		summaries:   make(map[string]*domain.Summary),
		sources:     make(map[string]*domain.Source),
		subscribers: make(map[int64]*domain.Subscriber),
		subs:        make(map[string][]int64),
	}
}

// ---- test seeding helpers ----

func (m *MockVideoRepository) AddSource(src *domain.Source) {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *src
	m.sources[src.ID] = &clone
}

func (m *MockVideoRepository) AddSubscriber(sub *domain.Subscriber, sourceIDs ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *sub
	m.subscribers[sub.ID] = &clone
	for _, sourceID := range sourceIDs {
		m.subs[sourceID] = append(m.subs[sourceID], sub.ID)
	}
}

// ---- VideoRepository ----

func (m *MockVideoRepository) CreateVideo(_ context.Context, v *domain.Video) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.videos {
		if existing.SourceID == v.SourceID && existing.Ref == v.Ref {
			return domain.ErrDuplicateRef
		}
	}
	clone := *v
	m.videos[v.ID] = &clone
	return nil
}

func (m *MockVideoRepository) GetVideo(_ context.Context, id string) (*domain.Video, error) {
	if m.GetVideoErr != nil {
		return nil, m.GetVideoErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.videos[id]
	if !ok || v.DeletedAt != nil {
		return nil, domain.ErrNotFound
	}
	clone := *v
	return &clone, nil
}

func (m *MockVideoRepository) GetVideoByRef(_ context.Context, sourceID, ref string) (*domain.Video, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, v := range m.videos {
		if v.SourceID == sourceID && v.Ref == ref && v.DeletedAt == nil {
			clone := *v
			return &clone, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockVideoRepository) UpdateVideoStatus(_ context.Context, id string, from, to domain.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.videos[id]
	if !ok || v.Status != from {
		return domain.ErrInvalidTransition
	}
	v.Status = to
	v.NextRetryAt = nil
	return nil
}

func (m *MockVideoRepository) MarkVideoAcquired(_ context.Context, id string, durationSeconds int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.videos[id]
	if !ok || v.Status != domain.StatusAcquiring {
		return domain.ErrInvalidTransition
	}
	v.Status = domain.StatusAcquired
	v.DurationSeconds = durationSeconds
	v.NextRetryAt = nil
	return nil
}

func (m *MockVideoRepository) MarkVideoFailed(_ context.Context, id, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.videos[id]; ok && !v.Status.IsTerminal() {
		v.Status = domain.StatusFailed
		v.ErrorMessage = &reason
		v.NextRetryAt = nil
	}
	return nil
}

func (m *MockVideoRepository) MarkVideoSkipped(_ context.Context, id, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.videos[id]
	if !ok || v.Status != domain.StatusAcquired {
		return domain.ErrInvalidTransition
	}
	v.Status = domain.StatusSkipped
	v.SkipReason = &reason
	return nil
}

func (m *MockVideoRepository) RequeueFailed(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.videos[id]
	if !ok || v.Status != domain.StatusFailed {
		return domain.ErrNotRequeueable
	}
	v.Status = domain.StatusPending
	v.ErrorMessage = nil
	v.RetryCount = 0
	v.NextRetryAt = nil
	return nil
}

func (m *MockVideoRepository) ScheduleRetry(_ context.Context, id string, retryCount int, nextRetryAt time.Time, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ScheduledRetryCount++
	m.ScheduleRetryCalls = append(m.ScheduleRetryCalls, nextRetryAt)
	if v, ok := m.videos[id]; ok {
		v.RetryCount = retryCount
		v.NextRetryAt = &nextRetryAt
		v.ErrorMessage = &errMsg
	}
	return nil
}

func (m *MockVideoRepository) FindDueRetries(_ context.Context) ([]*domain.Video, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	now := time.Now()
	var due []*domain.Video
	for _, v := range m.videos {
		if v.NextRetryAt != nil && !v.NextRetryAt.After(now) && !v.Status.IsTerminal() {
			clone := *v
			due = append(due, &clone)
		}
	}
	return due, nil
}

func (m *MockVideoRepository) FindStranded(_ context.Context, minAge time.Duration) ([]*domain.Video, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cutoff := time.Now().Add(-minAge)
	var stranded []*domain.Video
	for _, v := range m.videos {
		if v.NextRetryAt == nil && !v.Status.IsTerminal() && !v.UpdatedAt.After(cutoff) && v.DeletedAt == nil {
			clone := *v
			stranded = append(stranded, &clone)
		}
	}
	return stranded, nil
}

func (m *MockVideoRepository) CreateTranscript(_ context.Context, t *domain.Transcript) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.videos[t.VideoID]
	if !ok || v.Status != domain.StatusTranscribing {
		return domain.ErrInvalidTransition
	}
	if _, exists := m.transcripts[t.VideoID]; !exists {
		clone := *t
		m.transcripts[t.VideoID] = &clone
	}
	v.Status = domain.StatusTranscribed
	v.NextRetryAt = nil
	return nil
}

func (m *MockVideoRepository) GetTranscript(_ context.Context, videoID string) (*domain.Transcript, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.transcripts[videoID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *t
	return &clone, nil
}

func (m *MockVideoRepository) CreateSummary(_ context.Context, s *domain.Summary) error {
	if m.CreateSummaryErr != nil {
		return m.CreateSummaryErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.videos[s.VideoID]
	if !ok || v.Status != domain.StatusSummarizing {
		return domain.ErrInvalidTransition
	}
	for _, existing := range m.summaries {
		if existing.VideoID == s.VideoID {
			// unique(video_id): keep the first artifact, still advance status.
			v.Status = domain.StatusCompleted
			return nil
		}
	}
	clone := *s
	clone.Deliveries = append([]domain.DeliveryRecord(nil), s.Deliveries...)
	m.summaries[s.ID] = &clone
	v.Status = domain.StatusCompleted
	v.NextRetryAt = nil
	return nil
}

func (m *MockVideoRepository) GetSummary(_ context.Context, id string) (*domain.Summary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.summaries[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneSummary(s), nil
}

func (m *MockVideoRepository) GetSummaryByVideo(_ context.Context, videoID string) (*domain.Summary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.summaries {
		if s.VideoID == videoID {
			return cloneSummary(s), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockVideoRepository) UpdateSummaryDelivery(_ context.Context, id string, deliveries []domain.DeliveryRecord, distributed bool) error {
	if m.UpdateDeliveryErr != nil {
		return m.UpdateDeliveryErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.summaries[id]; ok {
		s.Deliveries = append([]domain.DeliveryRecord(nil), deliveries...)
		s.Distributed = distributed
	}
	return nil
}

func (m *MockVideoRepository) ListUndistributed(_ context.Context, minAge time.Duration) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cutoff := time.Now().Add(-minAge)
	var ids []string
	for id, s := range m.summaries {
		if !s.Distributed && !s.CreatedAt.After(cutoff) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *MockVideoRepository) ListRecentSummaries(_ context.Context, sourceID string, limit int) ([]*domain.Summary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.Summary
	for _, s := range m.summaries {
		v, ok := m.videos[s.VideoID]
		if !ok || v.SourceID != sourceID {
			continue
		}
		result = append(result, cloneSummary(s))
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *MockVideoRepository) GetSource(_ context.Context, id string) (*domain.Source, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	src, ok := m.sources[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *src
	return &clone, nil
}

func (m *MockVideoRepository) ListActiveSubscribers(_ context.Context, sourceID string) ([]*domain.Subscriber, error) {
	if m.ListSubscribersErr != nil {
		return nil, m.ListSubscribersErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var subs []*domain.Subscriber
	for _, id := range m.subs[sourceID] {
		sub, ok := m.subscribers[id]
		if !ok || sub.Blocked {
			continue
		}
		clone := *sub
		subs = append(subs, &clone)
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].ID < subs[j].ID })
	return subs, nil
}

func (m *MockVideoRepository) MarkSubscriberBlocked(_ context.Context, id int64) error {
	if m.MarkBlockedErr != nil {
		return m.MarkBlockedErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if sub, ok := m.subscribers[id]; ok {
		sub.Blocked = true
	}
	return nil
}

func (m *MockVideoRepository) CountByStatus(_ context.Context) (map[domain.Status]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	counts := make(map[domain.Status]int)
	for _, v := range m.videos {
		if v.DeletedAt == nil {
			counts[v.Status]++
		}
	}
	return counts, nil
}

func cloneSummary(s *domain.Summary) *domain.Summary {
	clone := *s
	clone.Deliveries = append([]domain.DeliveryRecord(nil), s.Deliveries...)
	clone.Keywords = append([]string(nil), s.Keywords...)
	return &clone
}
