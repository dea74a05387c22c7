package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"tapplay-backend/internal/logging"
	"tapplay-backend/internal/metrics"
	"tapplay-backend/internal/models"
	"tapplay-backend/internal/repository"
)

const (
	msgWatchedEnough      = "You've watched enough for today! Time to play outside."
	msgTimesUp            = "Time's up! See you tomorrow."
	msgSessionNotFound    = "Session not found"
	msgSessionAlreadyDone = "Session not found or already ended"
)

// Event types pushed to the guardian feed.
const (
	EventSessionStarted = "session_started"
	EventSessionEnded   = "session_ended"
	EventLimitReached   = "limit_reached"
)

type watchSessionStore interface {
	Create(ctx context.Context, s *models.WatchSession) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.WatchSession, error)
	GetActiveByProfile(ctx context.Context, profileID uuid.UUID) (*models.WatchSession, error)
	RecordHeartbeat(ctx context.Context, id uuid.UUID, elapsed, position int, at time.Time) (int, error)
	Finish(ctx context.Context, id uuid.UUID, status, reason string, elapsed, position int, at time.Time) (*models.WatchSession, error)
	ListStale(ctx context.Context, before time.Time, limit int) ([]*models.WatchSession, error)
}

type dailyWatchStore interface {
	Get(ctx context.Context, profileID uuid.UUID, day time.Time) (int, error)
	Increment(ctx context.Context, profileID uuid.UUID, day time.Time, minutes int) (int, error)
}

type profileReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Profile, error)
}

type chipVerifier interface {
	IsActiveChipForProfile(ctx context.Context, chipID, profileID uuid.UUID) (bool, error)
}

type videoReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Video, error)
}

// WatchService enforces the daily limit across the start, heartbeat and end
// of a watch session. All times come from the injected clock.
type WatchService struct {
	sessions watchSessionStore
	daily    dailyWatchStore
	profiles profileReader
	chips    chipVerifier
	videos   videoReader
	guard    TamperGuard
	events   EventPublisher
	metrics  *metrics.Metrics
	loc      *time.Location
	now      func() time.Time
}

func NewWatchService(
	sessions watchSessionStore,
	daily dailyWatchStore,
	profiles profileReader,
	chips chipVerifier,
	videos videoReader,
	guard TamperGuard,
	events EventPublisher,
	m *metrics.Metrics,
	loc *time.Location,
) *WatchService {
	if m == nil {
		m = metrics.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &WatchService{
		sessions: sessions,
		daily:    daily,
		profiles: profiles,
		chips:    chips,
		videos:   videos,
		guard:    guard,
		events:   events,
		metrics:  m,
		loc:      loc,
		now:      time.Now,
	}
}

// SetClock replaces the time source.
func (s *WatchService) SetClock(now func() time.Time) {
	s.now = now
}

// day truncates t to the calendar date in the configured zone.
func (s *WatchService) day(t time.Time) time.Time {
	y, m, d := t.In(s.loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, s.loc)
}

// Start opens a session for a chip scan. A session already playing on the
// profile is displaced and its time committed.
func (s *WatchService) Start(ctx context.Context, ownerID, profileID, chipID, videoID uuid.UUID) (*models.StartWatchResponse, error) {
	profile, err := s.ownedProfile(ctx, ownerID, profileID)
	if err != nil {
		return nil, err
	}

	ok, err := s.chips.IsActiveChipForProfile(ctx, chipID, profileID)
	if err != nil {
		return nil, fmt.Errorf("failed to verify chip: %w", err)
	}
	if !ok {
		return nil, &ForbiddenError{Message: "Invalid NFC chip"}
	}

	video, err := s.videos.GetByID(ctx, videoID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to load video: %w", err)
	}
	if video == nil || video.UserID != ownerID {
		return nil, &NotFoundError{Message: "Video not found"}
	}

	now := s.now()

	// The previous session is closed before the limit check so that a
	// refused scan never leaves it blocking later ones.
	prior, err := s.sessions.GetActiveByProfile(ctx, profileID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to load active session: %w", err)
	}
	if prior != nil {
		_, _, err := s.finalize(ctx, ownerID, prior, models.SessionAbandoned, models.StopDisplaced,
			prior.ElapsedSeconds, prior.LastPositionSeconds, now)
		if err != nil && !errors.Is(err, repository.ErrSessionNotActive) {
			return nil, fmt.Errorf("failed to close previous session: %w", err)
		}
	}

	watched, err := s.daily.Get(ctx, profileID, s.day(now))
	if err != nil {
		return nil, fmt.Errorf("failed to read daily watch time: %w", err)
	}

	allowance := EvaluateLimit(profile.DailyLimitMinutes, watched, 0)
	if allowance.Exhausted() {
		s.metrics.LimitBlocks.WithLabelValues("start").Inc()
		logging.Ctx(ctx).Info().
			Str("profile_id", profileID.String()).
			Int("watched_minutes", watched).
			Msg("Watch session refused: daily limit reached")
		return nil, &LimitReachedError{Message: msgWatchedEnough}
	}

	session := &models.WatchSession{
		ProfileID:       profileID,
		VideoID:         video.ID,
		NFCChipID:       &chipID,
		StartedAt:       now,
		LastHeartbeatAt: now,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		if errors.Is(err, repository.ErrActiveSessionExists) {
			return nil, &ConflictError{Message: "Another video just started on this profile"}
		}
		return nil, fmt.Errorf("failed to create watch session: %w", err)
	}

	s.metrics.SessionsStarted.Inc()
	logging.Ctx(ctx).Info().
		Str("session_id", session.ID.String()).
		Str("profile_id", profileID.String()).
		Str("video_id", video.ID.String()).
		Msg("Watch session started")

	remaining := allowance.RemainingPtr()
	s.publish(ctx, ownerID, EventSessionStarted, models.WatchEvent{
		SessionID:        session.ID,
		ProfileID:        profileID,
		VideoID:          video.ID,
		RemainingMinutes: remaining,
		At:               now,
	})

	return &models.StartWatchResponse{
		SessionID:         session.ID,
		RemainingMinutes:  remaining,
		DailyLimitMinutes: profile.DailyLimitMinutes,
	}, nil
}

// Heartbeat credits plausible progress and stops the session once the
// allowance runs out.
func (s *WatchService) Heartbeat(ctx context.Context, ownerID, sessionID uuid.UUID, position int) (*models.HeartbeatResponse, error) {
	sess, profile, err := s.activeOwnedSession(ctx, ownerID, sessionID, msgSessionNotFound)
	if err != nil {
		return nil, err
	}

	duration, err := s.videoDuration(ctx, sess.VideoID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	verdict := s.guard.Check(PlaybackReport{
		Position:         seconds(position),
		PreviousPosition: seconds(sess.LastPositionSeconds),
		VideoDuration:    seconds(duration),
		WallClockDelta:   now.Sub(sess.LastHeartbeatAt),
	})
	if !verdict.Accepted {
		s.metrics.Heartbeats.WithLabelValues("rejected").Inc()
		s.metrics.TamperRejections.WithLabelValues(verdict.Reason).Inc()
		logging.Ctx(ctx).Warn().
			Str("session_id", sess.ID.String()).
			Str("reason", verdict.Reason).
			Int("position", position).
			Int("previous_position", sess.LastPositionSeconds).
			Msg("Heartbeat rejected")
		return nil, &InvalidPositionError{Reason: verdict.Reason}
	}

	elapsed := capElapsed(sess.ElapsedSeconds+creditSeconds(verdict.Credit), duration, s.guard.Grace)
	stored, err := s.sessions.RecordHeartbeat(ctx, sess.ID, elapsed, position, now)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotActive) {
			return nil, &NotFoundError{Message: msgSessionNotFound}
		}
		return nil, fmt.Errorf("failed to record heartbeat: %w", err)
	}

	watched, err := s.daily.Get(ctx, profile.ID, s.day(now))
	if err != nil {
		return nil, fmt.Errorf("failed to read daily watch time: %w", err)
	}

	allowance := EvaluateLimit(profile.DailyLimitMinutes, watched, stored)
	if allowance.Exhausted() {
		s.metrics.Heartbeats.WithLabelValues("limit_reached").Inc()
		s.metrics.LimitBlocks.WithLabelValues("heartbeat").Inc()

		_, _, err := s.finalize(ctx, ownerID, sess, models.SessionAbandoned, models.StopDailyLimit, stored, position, now)
		if err != nil && !errors.Is(err, repository.ErrSessionNotActive) {
			return nil, fmt.Errorf("failed to stop session at limit: %w", err)
		}

		s.publish(ctx, ownerID, EventLimitReached, models.WatchEvent{
			SessionID:      sess.ID,
			ProfileID:      profile.ID,
			VideoID:        sess.VideoID,
			ElapsedSeconds: stored,
			At:             now,
		})
		return nil, &LimitReachedError{Message: msgTimesUp}
	}

	s.metrics.Heartbeats.WithLabelValues("accepted").Inc()

	return &models.HeartbeatResponse{
		SessionID:        sess.ID,
		ElapsedSeconds:   stored,
		RemainingMinutes: allowance.RemainingPtr(),
	}, nil
}

// End completes a session on the client's request. A final position is
// credited best-effort: an implausible one is clamped, never refused.
func (s *WatchService) End(ctx context.Context, ownerID, sessionID uuid.UUID, reason string, finalPosition *int) (*models.EndWatchResponse, error) {
	if !IsClientStopReason(reason) {
		return nil, &ValidationError{Fields: map[string]string{"stopped_reason": "Unknown stop reason"}}
	}

	sess, _, err := s.activeOwnedSession(ctx, ownerID, sessionID, msgSessionAlreadyDone)
	if err != nil {
		return nil, err
	}

	now := s.now()
	elapsed := sess.ElapsedSeconds
	position := sess.LastPositionSeconds

	if finalPosition != nil {
		duration, err := s.videoDuration(ctx, sess.VideoID)
		if err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("session_id", sess.ID.String()).Msg("Video lookup failed while ending session")
			duration = 0
		}

		verdict := s.guard.Check(PlaybackReport{
			Position:         seconds(*finalPosition),
			PreviousPosition: seconds(sess.LastPositionSeconds),
			VideoDuration:    seconds(duration),
			WallClockDelta:   now.Sub(sess.LastHeartbeatAt),
		})
		if !verdict.Accepted {
			logging.Ctx(ctx).Warn().
				Str("session_id", sess.ID.String()).
				Str("reason", verdict.Reason).
				Int("position", *finalPosition).
				Msg("Final position implausible, crediting bounded progress")
		}

		elapsed = capElapsed(elapsed+creditSeconds(verdict.Credit), duration, s.guard.Grace)
		position = clampPosition(*finalPosition, duration, s.guard.Grace)
	}

	total, final, err := s.finalize(ctx, ownerID, sess, models.SessionCompleted, reason, elapsed, position, now)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotActive) {
			return nil, &NotFoundError{Message: msgSessionAlreadyDone}
		}
		return nil, fmt.Errorf("failed to end session: %w", err)
	}

	return &models.EndWatchResponse{
		SessionID:         final.ID,
		DurationSeconds:   final.ElapsedSeconds,
		StoppedReason:     reason,
		TotalWatchedToday: total,
	}, nil
}

// DailyWatchTime reports today's aggregate for a profile the caller owns.
func (s *WatchService) DailyWatchTime(ctx context.Context, ownerID, profileID uuid.UUID) (*models.DailyWatchTimeResponse, error) {
	profile, err := s.ownedProfile(ctx, ownerID, profileID)
	if err != nil {
		return nil, err
	}

	today := s.day(s.now())
	watched, err := s.daily.Get(ctx, profileID, today)
	if err != nil {
		return nil, fmt.Errorf("failed to read daily watch time: %w", err)
	}

	return &models.DailyWatchTimeResponse{
		ProfileID:      profileID,
		Date:           today.Format("2006-01-02"),
		WatchedMinutes: watched,
		DailyLimit:     profile.DailyLimitMinutes,
		Remaining:      EvaluateLimit(profile.DailyLimitMinutes, watched, 0).RemainingPtr(),
	}, nil
}

// AbandonStale closes active sessions that stopped sending heartbeats,
// committing whatever time they accrued. Returns how many were closed.
func (s *WatchService) AbandonStale(ctx context.Context, staleAfter time.Duration, batch int) (int, error) {
	now := s.now()
	stale, err := s.sessions.ListStale(ctx, now.Add(-staleAfter), batch)
	if err != nil {
		return 0, fmt.Errorf("failed to list stale sessions: %w", err)
	}

	closed := 0
	for _, sess := range stale {
		ownerID := uuid.Nil
		if profile, err := s.profiles.GetByID(ctx, sess.ProfileID); err == nil {
			ownerID = profile.UserID
		}

		_, _, err := s.finalize(ctx, ownerID, sess, models.SessionAbandoned, models.StopStale,
			sess.ElapsedSeconds, sess.LastPositionSeconds, now)
		if errors.Is(err, repository.ErrSessionNotActive) {
			continue
		}
		if err != nil {
			logging.Error().Err(err).Str("session_id", sess.ID.String()).Msg("Failed to abandon stale session")
			continue
		}
		closed++
	}
	return closed, nil
}

// finalize moves sess to a terminal status and commits its whole minutes to
// the daily aggregate. Only the caller that wins the status transition commits.
// The returned total is for the day the minutes were credited to.
func (s *WatchService) finalize(ctx context.Context, ownerID uuid.UUID, sess *models.WatchSession, status, reason string, elapsed, position int, now time.Time) (int, *models.WatchSession, error) {
	final, err := s.sessions.Finish(ctx, sess.ID, status, reason, elapsed, position, now)
	if err != nil {
		return 0, nil, err
	}

	// Time of sessions closed on the child's behalf belongs to the day it
	// was last seen playing.
	creditDay := now
	if reason == models.StopDisplaced || reason == models.StopStale {
		creditDay = sess.LastHeartbeatAt
	}

	total, err := s.daily.Increment(ctx, final.ProfileID, s.day(creditDay), wholeMinutes(final.ElapsedSeconds))
	if err != nil {
		return 0, final, fmt.Errorf("failed to commit watch time: %w", err)
	}

	s.metrics.SessionsEnded.WithLabelValues(status, reason).Inc()
	logging.Ctx(ctx).Info().
		Str("session_id", final.ID.String()).
		Str("profile_id", final.ProfileID.String()).
		Str("status", status).
		Str("reason", reason).
		Int("elapsed_seconds", final.ElapsedSeconds).
		Int("total_minutes_today", total).
		Msg("Watch session ended")

	s.publish(ctx, ownerID, EventSessionEnded, models.WatchEvent{
		SessionID:      final.ID,
		ProfileID:      final.ProfileID,
		VideoID:        final.VideoID,
		Reason:         reason,
		ElapsedSeconds: final.ElapsedSeconds,
		At:             now,
	})

	return total, final, nil
}

func (s *WatchService) ownedProfile(ctx context.Context, ownerID, profileID uuid.UUID) (*models.Profile, error) {
	profile, err := s.profiles.GetByID(ctx, profileID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Message: "Profile not found"}
		}
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	if profile.UserID != ownerID {
		return nil, &NotFoundError{Message: "Profile not found"}
	}
	return profile, nil
}

// activeOwnedSession hides sessions of other guardians behind the same
// not-found message as missing or finished ones.
func (s *WatchService) activeOwnedSession(ctx context.Context, ownerID, sessionID uuid.UUID, notFound string) (*models.WatchSession, *models.Profile, error) {
	sess, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, &NotFoundError{Message: notFound}
		}
		return nil, nil, fmt.Errorf("failed to load session: %w", err)
	}
	if !sess.IsActive() {
		return nil, nil, &NotFoundError{Message: notFound}
	}

	profile, err := s.profiles.GetByID(ctx, sess.ProfileID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, &NotFoundError{Message: notFound}
		}
		return nil, nil, fmt.Errorf("failed to load profile: %w", err)
	}
	if profile.UserID != ownerID {
		return nil, nil, &NotFoundError{Message: notFound}
	}
	return sess, profile, nil
}

func (s *WatchService) videoDuration(ctx context.Context, videoID uuid.UUID) (int, error) {
	video, err := s.videos.GetByID(ctx, videoID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, &NotFoundError{Message: msgSessionNotFound}
		}
		return 0, fmt.Errorf("failed to load video: %w", err)
	}
	return video.DurationSeconds, nil
}

func (s *WatchService) publish(ctx context.Context, ownerID uuid.UUID, eventType string, ev models.WatchEvent) {
	if s.events == nil || ownerID == uuid.Nil {
		return
	}
	s.events.Publish(ctx, ownerID, models.WSMessage{Type: eventType, Payload: ev})
}

// IsClientStopReason reports whether a client may end a session with reason.
func IsClientStopReason(reason string) bool {
	switch reason {
	case models.StopCompleted, models.StopManual, models.StopDailyLimit, models.StopSwipeExit, models.StopError:
		return true
	}
	return false
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

func creditSeconds(d time.Duration) int {
	return int(math.Round(d.Seconds()))
}

func wholeMinutes(elapsedSeconds int) int {
	return int(math.Round(float64(elapsedSeconds) / 60))
}

// capElapsed keeps a session from accruing more than one pass over the video.
func capElapsed(elapsed, duration int, grace time.Duration) int {
	if elapsed < 0 {
		return 0
	}
	if duration <= 0 {
		return elapsed
	}
	limit := duration + int(grace/time.Second)
	if elapsed > limit {
		return limit
	}
	return elapsed
}

func clampPosition(position, duration int, grace time.Duration) int {
	if position < 0 {
		return 0
	}
	if duration > 0 {
		if limit := duration + int(grace/time.Second); position > limit {
			return limit
		}
	}
	return position
}
