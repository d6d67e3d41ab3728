package services

import (
	"context"
	"errors"
	"sort"
	"sync"

	"linkguard/internal/domain/models"
	"linkguard/pkg/logger"
)

// memStore is an in-memory FlaggedLinkStore
type memStore struct {
	mu     sync.Mutex
	nextID int64
	rows   map[models.DedupKey]*models.FlaggedLink
	// failURLs makes InsertIfNew fail for the listed URLs
	failURLs map[string]bool
}

func newMemStore() *memStore {
	return &memStore{rows: make(map[models.DedupKey]*models.FlaggedLink), failURLs: make(map[string]bool)}
}

func (s *memStore) InsertIfNew(_ context.Context, link *models.FlaggedLink) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failURLs[link.URL] {
		return false, errors.New("disk full")
	}
	if _, ok := s.rows[link.Key()]; ok {
		return false, nil
	}
	s.nextID++
	link.ID = s.nextID
	stored := *link
	s.rows[link.Key()] = &stored
	return true, nil
}

func (s *memStore) ListAll(_ context.Context, filter models.LevelFilter) ([]*models.FlaggedLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	links := make([]*models.FlaggedLink, 0, len(s.rows))
	for _, row := range s.rows {
		if filter.Matches(row.ThreatLevel) {
			copied := *row
			links = append(links, &copied)
		}
	}
	sort.Slice(links, func(i, j int) bool {
		if links[i].Timestamp != links[j].Timestamp {
			return links[i].Timestamp > links[j].Timestamp
		}
		return links[i].ID > links[j].ID
	})
	return links, nil
}

func (s *memStore) ClearAll(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = make(map[models.DedupKey]*models.FlaggedLink)
	return nil
}

func (s *memStore) Count(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.rows)), nil
}

// memInbox is an in-memory MessageSource and MessageSink
type memInbox struct {
	mu       sync.Mutex
	messages []models.RawMessage
	listErr  error
}

func (m *memInbox) Append(_ context.Context, msg models.RawMessage) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.messages {
		if existing == msg {
			return false, nil
		}
	}
	m.messages = append(m.messages, msg)
	return true, nil
}

func (m *memInbox) ListSince(_ context.Context, fromMillis int64) ([]models.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}

	out := make([]models.RawMessage, 0)
	for _, msg := range m.messages {
		if msg.ReceivedAtMillis >= fromMillis {
			out = append(out, msg)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ReceivedAtMillis > out[j].ReceivedAtMillis })
	return out, nil
}

// memState is an in-memory ScanStateStore
type memState struct {
	mu         sync.Mutex
	watermark  int64
	settings   *models.ScanSettings
	advanceErr error
	advanced   int
}

func (s *memState) Watermark(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.watermark, nil
}

func (s *memState) AdvanceWatermark(_ context.Context, millis int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.advanceErr != nil {
		return s.advanceErr
	}
	s.advanced++
	if millis > s.watermark {
		s.watermark = millis
	}
	return nil
}

func (s *memState) Settings(context.Context) (models.ScanSettings, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.settings == nil {
		return models.ScanSettings{}, false, nil
	}
	return *s.settings, true, nil
}

func (s *memState) SaveSettings(_ context.Context, settings models.ScanSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = &settings
	return nil
}

// recordingAlerter captures posted alerts
type recordingAlerter struct {
	mu     sync.Mutex
	alerts []*Alert
	err    error
}

func (a *recordingAlerter) PostAlert(_ context.Context, alert *Alert) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	a.alerts = append(a.alerts, alert)
	return nil
}

func (a *recordingAlerter) posted() []*Alert {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]*Alert(nil), a.alerts...)
}

func newTestCoordinator(store FlaggedLinkStore) *IngestionCoordinator {
	return NewIngestionCoordinator(NewDefaultThreatClassifier(), store, logger.NewNop())
}
