package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"tapplay-backend/internal/models"
	"tapplay-backend/internal/repository"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// fakeSessionStore mirrors the conditional updates of WatchSessionRepo.
type fakeSessionStore struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*models.WatchSession
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: map[uuid.UUID]*models.WatchSession{}}
}

func (f *fakeSessionStore) Create(ctx context.Context, s *models.WatchSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.sessions {
		if existing.ProfileID == s.ProfileID && existing.IsActive() {
			return repository.ErrActiveSessionExists
		}
	}
	s.ID = uuid.New()
	s.Status = models.SessionActive
	cp := *s
	f.sessions[s.ID] = &cp
	return nil
}

func (f *fakeSessionStore) GetByID(ctx context.Context, id uuid.UUID) (*models.WatchSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSessionStore) GetActiveByProfile(ctx context.Context, profileID uuid.UUID) (*models.WatchSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.sessions {
		if s.ProfileID == profileID && s.IsActive() {
			cp := *s
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeSessionStore) RecordHeartbeat(ctx context.Context, id uuid.UUID, elapsed, position int, at time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok || !s.IsActive() {
		return 0, repository.ErrSessionNotActive
	}
	if elapsed > s.ElapsedSeconds {
		s.ElapsedSeconds = elapsed
	}
	s.LastPositionSeconds = position
	if at.After(s.LastHeartbeatAt) {
		s.LastHeartbeatAt = at
	}
	return s.ElapsedSeconds, nil
}

func (f *fakeSessionStore) Finish(ctx context.Context, id uuid.UUID, status, reason string, elapsed, position int, at time.Time) (*models.WatchSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok || !s.IsActive() {
		return nil, repository.ErrSessionNotActive
	}
	s.Status = status
	s.StoppedReason = &reason
	if elapsed > s.ElapsedSeconds {
		s.ElapsedSeconds = elapsed
	}
	s.LastPositionSeconds = position
	if at.After(s.LastHeartbeatAt) {
		s.LastHeartbeatAt = at
	}
	ended := s.LastHeartbeatAt
	s.EndedAt = &ended
	cp := *s
	return &cp, nil
}

func (f *fakeSessionStore) ListStale(ctx context.Context, before time.Time, limit int) ([]*models.WatchSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*models.WatchSession{}
	for _, s := range f.sessions {
		if s.IsActive() && s.LastHeartbeatAt.Before(before) {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastHeartbeatAt.Before(out[j].LastHeartbeatAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeSessionStore) active(profileID uuid.UUID) []*models.WatchSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*models.WatchSession{}
	for _, s := range f.sessions {
		if s.ProfileID == profileID && s.IsActive() {
			out = append(out, s)
		}
	}
	return out
}

type fakeDailyStore struct {
	mu     sync.Mutex
	totals map[string]int
}

func newFakeDailyStore() *fakeDailyStore {
	return &fakeDailyStore{totals: map[string]int{}}
}

func dailyKey(profileID uuid.UUID, day time.Time) string {
	return profileID.String() + "|" + day.Format("2006-01-02")
}

func (f *fakeDailyStore) Get(ctx context.Context, profileID uuid.UUID, day time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.totals[dailyKey(profileID, day)], nil
}

func (f *fakeDailyStore) Increment(ctx context.Context, profileID uuid.UUID, day time.Time, minutes int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if minutes < 0 {
		minutes = 0
	}
	key := dailyKey(profileID, day)
	f.totals[key] += minutes
	return f.totals[key], nil
}

type fakeProfiles map[uuid.UUID]*models.Profile

func (f fakeProfiles) GetByID(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	p, ok := f[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return p, nil
}

// fakeChips maps chip ID to the profile it is active for.
type fakeChips map[uuid.UUID]uuid.UUID

func (f fakeChips) IsActiveChipForProfile(ctx context.Context, chipID, profileID uuid.UUID) (bool, error) {
	owner, ok := f[chipID]
	return ok && owner == profileID, nil
}

type fakeVideos map[uuid.UUID]*models.Video

func (f fakeVideos) GetByID(ctx context.Context, id uuid.UUID) (*models.Video, error) {
	v, ok := f[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return v, nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []models.WSMessage
}

func (f *fakePublisher) Publish(ctx context.Context, userID uuid.UUID, msg models.WSMessage) {
	f.mu.Lock()
	f.events = append(f.events, msg)
	f.mu.Unlock()
}

func (f *fakePublisher) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.events))
	for _, e := range f.events {
		out = append(out, e.Type)
	}
	return out
}
