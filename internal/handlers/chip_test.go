package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"tapplay-backend/internal/models"
	"tapplay-backend/internal/validation"
)

type stubChipStore struct {
	byID  map[uuid.UUID]*models.NFCChip
	byUID map[string]*models.NFCChip
	items []*models.Video

	lastMaxAge int
	created    *models.NFCChip
	deleted    bool
}

func newStubChipStore(chips ...*models.NFCChip) *stubChipStore {
	s := &stubChipStore{byID: map[uuid.UUID]*models.NFCChip{}, byUID: map[string]*models.NFCChip{}}
	for _, c := range chips {
		s.byID[c.ID] = c
		s.byUID[c.UID] = c
	}
	return s
}

func (s *stubChipStore) Create(ctx context.Context, c *models.NFCChip) error {
	c.ID = uuid.New()
	c.IsActive = true
	s.created = c
	return nil
}

func (s *stubChipStore) GetByID(ctx context.Context, id uuid.UUID) (*models.NFCChip, error) {
	if c, ok := s.byID[id]; ok {
		return c, nil
	}
	return nil, pgx.ErrNoRows
}

func (s *stubChipStore) GetByUID(ctx context.Context, uid string) (*models.NFCChip, error) {
	if c, ok := s.byUID[uid]; ok {
		return c, nil
	}
	return nil, pgx.ErrNoRows
}

func (s *stubChipStore) ListByProfile(ctx context.Context, profileID uuid.UUID) ([]*models.NFCChip, error) {
	var out []*models.NFCChip
	for _, c := range s.byID {
		if c.ProfileID == profileID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *stubChipStore) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	return nil
}

func (s *stubChipStore) Delete(ctx context.Context, id uuid.UUID) error {
	s.deleted = true
	return nil
}

func (s *stubChipStore) SetPlaylist(ctx context.Context, chipID uuid.UUID, videoIDs []uuid.UUID) error {
	return nil
}

func (s *stubChipStore) Playlist(ctx context.Context, chipID uuid.UUID, maxAge int) ([]*models.Video, error) {
	s.lastMaxAge = maxAge
	return s.items, nil
}

type stubProfiles map[uuid.UUID]*models.Profile

func (s stubProfiles) GetByID(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	if p, ok := s[id]; ok {
		return p, nil
	}
	return nil, pgx.ErrNoRows
}

type stubVideos map[uuid.UUID]*models.Video

func (s stubVideos) GetByID(ctx context.Context, id uuid.UUID) (*models.Video, error) {
	if v, ok := s[id]; ok {
		return v, nil
	}
	return nil, pgx.ErrNoRows
}

func TestNormalizeChipUID(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"04:a2:3b:91", "04:A2:3B:91", true},
		{" 04:A2:3B:91:7C:80:00 ", "04:A2:3B:91:7C:80:00", true},
		{"04:A2:3B", "04:A2:3B", false},
		{"04A23B91", "04A23B91", false},
		{"04:A2:3B:ZZ", "04:A2:3B:ZZ", false},
	}

	for _, tc := range tests {
		got, ok := normalizeChipUID(tc.in)
		if got != tc.want || ok != tc.ok {
			t.Errorf("normalizeChipUID(%q) = (%q, %v), want (%q, %v)", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestChipHandler_Scan_ReturnsAgeFilteredPlaylist(t *testing.T) {
	userID := uuid.New()
	profile := &models.Profile{ID: uuid.New(), UserID: userID, Age: 6}
	chip := &models.NFCChip{ID: uuid.New(), ProfileID: profile.ID, UID: "04:A2:3B:91", IsActive: true}

	chips := newStubChipStore(chip)
	chips.items = []*models.Video{{ID: uuid.New(), Title: "Counting with Bluey", AgeRating: 3}}
	h := NewChipHandler(chips, stubProfiles{profile.ID: profile}, stubVideos{}, validation.New())

	req := newWatchRequest(t, http.MethodPost, "/api/v1/chips/scan", map[string]string{
		"profile_id": profile.ID.String(),
		"uid":        "04:a2:3b:91",
	}, userID, nil)
	rr := httptest.NewRecorder()
	h.Scan(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rr.Code, rr.Body.String())
	}
	if chips.lastMaxAge != 6 {
		t.Fatalf("expected playlist filtered at age 6, got %d", chips.lastMaxAge)
	}

	var resp models.ScanChipResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ChipID != chip.ID || len(resp.Playlist) != 1 {
		t.Fatalf("unexpected scan response: %+v", resp)
	}
}

func TestChipHandler_Scan_RejectsForeignOrInactiveChip(t *testing.T) {
	userID := uuid.New()
	profile := &models.Profile{ID: uuid.New(), UserID: userID, Age: 6}
	sibling := &models.Profile{ID: uuid.New(), UserID: userID, Age: 9}

	siblingChip := &models.NFCChip{ID: uuid.New(), ProfileID: sibling.ID, UID: "04:A2:3B:91", IsActive: true}
	inactive := &models.NFCChip{ID: uuid.New(), ProfileID: profile.ID, UID: "04:A2:3B:92", IsActive: false}

	chips := newStubChipStore(siblingChip, inactive)
	h := NewChipHandler(chips, stubProfiles{profile.ID: profile, sibling.ID: sibling}, stubVideos{}, validation.New())

	for _, uid := range []string{"04:A2:3B:91", "04:A2:3B:92", "04:A2:3B:99"} {
		req := newWatchRequest(t, http.MethodPost, "/api/v1/chips/scan", map[string]string{
			"profile_id": profile.ID.String(),
			"uid":        uid,
		}, userID, nil)
		rr := httptest.NewRecorder()
		h.Scan(rr, req)

		if rr.Code != http.StatusForbidden {
			t.Fatalf("uid %s: expected status %d, got %d", uid, http.StatusForbidden, rr.Code)
		}
	}
}

func TestChipHandler_Register_RequiresOwnedProfile(t *testing.T) {
	owner := &models.Profile{ID: uuid.New(), UserID: uuid.New()}
	chips := newStubChipStore()
	h := NewChipHandler(chips, stubProfiles{owner.ID: owner}, stubVideos{}, validation.New())

	req := newWatchRequest(t, http.MethodPost, "/api/v1/chips", map[string]string{
		"profile_id": owner.ID.String(),
		"uid":        "04:A2:3B:91",
	}, uuid.New(), nil)
	rr := httptest.NewRecorder()
	h.Register(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, rr.Code)
	}
	if chips.created != nil {
		t.Fatalf("chip must not be created on another guardian's profile")
	}
}

func TestChipHandler_Register_NormalizesUID(t *testing.T) {
	userID := uuid.New()
	profile := &models.Profile{ID: uuid.New(), UserID: userID}
	chips := newStubChipStore()
	h := NewChipHandler(chips, stubProfiles{profile.ID: profile}, stubVideos{}, validation.New())

	req := newWatchRequest(t, http.MethodPost, "/api/v1/chips", map[string]string{
		"profile_id": profile.ID.String(),
		"uid":        "04:a2:3b:91",
		"label":      "Blue dinosaur",
	}, userID, nil)
	rr := httptest.NewRecorder()
	h.Register(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, rr.Code, rr.Body.String())
	}
	if chips.created == nil || chips.created.UID != "04:A2:3B:91" {
		t.Fatalf("expected upper-cased uid to be stored, got %+v", chips.created)
	}
}

func TestChipHandler_Delete_HidesOtherGuardiansChips(t *testing.T) {
	profile := &models.Profile{ID: uuid.New(), UserID: uuid.New()}
	chip := &models.NFCChip{ID: uuid.New(), ProfileID: profile.ID, UID: "04:A2:3B:91", IsActive: true}
	chips := newStubChipStore(chip)
	h := NewChipHandler(chips, stubProfiles{profile.ID: profile}, stubVideos{}, validation.New())

	req := newWatchRequest(t, http.MethodDelete, "/api/v1/chips/"+chip.ID.String(), nil, uuid.New(),
		map[string]string{"id": chip.ID.String()})
	rr := httptest.NewRecorder()
	h.Delete(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, rr.Code)
	}
	if chips.deleted {
		t.Fatalf("delete should not run for non-owner")
	}
}

func TestChipHandler_SetPlaylist_RejectsForeignVideo(t *testing.T) {
	userID := uuid.New()
	profile := &models.Profile{ID: uuid.New(), UserID: userID}
	chip := &models.NFCChip{ID: uuid.New(), ProfileID: profile.ID, UID: "04:A2:3B:91", IsActive: true}
	foreign := &models.Video{ID: uuid.New(), UserID: uuid.New()}

	h := NewChipHandler(newStubChipStore(chip), stubProfiles{profile.ID: profile}, stubVideos{foreign.ID: foreign}, validation.New())

	req := newWatchRequest(t, http.MethodPut, "/api/v1/chips/"+chip.ID.String()+"/playlist",
		map[string][]string{"video_ids": {foreign.ID.String()}}, userID, map[string]string{"id": chip.ID.String()})
	rr := httptest.NewRecorder()
	h.SetPlaylist(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, rr.Code)
	}
}
