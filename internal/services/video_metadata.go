package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	urlpkg "net/url"
	"regexp"
	"strings"
	"time"

	yt "github.com/kkdai/youtube/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker/v2"

	"tapplay-backend/internal/logging"
	"tapplay-backend/internal/metrics"
	"tapplay-backend/internal/models"
)

var (
	youtubeIDRe     = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)
	vimeoIDRe       = regexp.MustCompile(`^[0-9]{5,12}$`)
	dailymotionIDRe = regexp.MustCompile(`^x[0-9a-z]{4,10}$`)
)

// ParseVideoURL resolves a share URL to its platform and platform video ID.
func ParseVideoURL(raw string) (platform, videoID string, err error) {
	parsed, err := urlpkg.Parse(strings.TrimSpace(raw))
	if err != nil || parsed.Host == "" {
		return "", "", fmt.Errorf("invalid video URL")
	}

	host := strings.TrimPrefix(strings.ToLower(parsed.Hostname()), "www.")
	host = strings.TrimPrefix(host, "m.")
	parts := strings.Split(strings.Trim(parsed.Path, "/"), "/")

	switch host {
	case "youtube.com", "music.youtube.com", "youtube-nocookie.com":
		if v := parsed.Query().Get("v"); youtubeIDRe.MatchString(v) {
			return models.PlatformYouTube, v, nil
		}
		if len(parts) >= 2 {
			switch parts[0] {
			case "shorts", "embed", "v", "live":
				if youtubeIDRe.MatchString(parts[1]) {
					return models.PlatformYouTube, parts[1], nil
				}
			}
		}
	case "youtu.be":
		if youtubeIDRe.MatchString(parts[0]) {
			return models.PlatformYouTube, parts[0], nil
		}
	case "vimeo.com", "player.vimeo.com":
		for _, p := range parts {
			if vimeoIDRe.MatchString(p) {
				return models.PlatformVimeo, p, nil
			}
		}
	case "dailymotion.com":
		if len(parts) >= 2 && (parts[0] == "video" || parts[0] == "embed") {
			id := strings.SplitN(parts[len(parts)-1], "_", 2)[0]
			if dailymotionIDRe.MatchString(id) {
				return models.PlatformDailymotion, id, nil
			}
		}
	case "dai.ly":
		if dailymotionIDRe.MatchString(parts[0]) {
			return models.PlatformDailymotion, parts[0], nil
		}
	}

	return "", "", fmt.Errorf("unsupported video URL")
}

type metadataFetcher interface {
	Fetch(ctx context.Context, videoID string) (*models.VideoMetadata, error)
}

type metadataCache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// VideoMetadataService looks up titles and durations on the hosting
// platforms. Each platform sits behind its own circuit breaker and results
// are cached in Redis.
type VideoMetadataService struct {
	fetchers map[string]metadataFetcher
	breakers map[string]*gobreaker.CircuitBreaker[*models.VideoMetadata]
	cache    metadataCache
	ttl      time.Duration
	metrics  *metrics.Metrics
}

func NewVideoMetadataService(redisClient *redis.Client, ttl time.Duration, m *metrics.Metrics) *VideoMetadataService {
	httpClient := &http.Client{Timeout: 15 * time.Second}

	var cache metadataCache
	if redisClient != nil {
		cache = &redisMetadataCache{redis: redisClient}
	}

	return newVideoMetadataService(map[string]metadataFetcher{
		models.PlatformYouTube:     &youtubeFetcher{client: &yt.Client{HTTPClient: httpClient}},
		models.PlatformVimeo:       &vimeoFetcher{httpClient: httpClient, baseURL: "https://vimeo.com"},
		models.PlatformDailymotion: &dailymotionFetcher{httpClient: httpClient, baseURL: "https://api.dailymotion.com"},
	}, cache, ttl, m)
}

func newVideoMetadataService(fetchers map[string]metadataFetcher, cache metadataCache, ttl time.Duration, m *metrics.Metrics) *VideoMetadataService {
	if m == nil {
		m = metrics.NewNop()
	}

	s := &VideoMetadataService{
		fetchers: fetchers,
		breakers: make(map[string]*gobreaker.CircuitBreaker[*models.VideoMetadata], len(fetchers)),
		cache:    cache,
		ttl:      ttl,
		metrics:  m,
	}
	for platform := range fetchers {
		s.breakers[platform] = newMetadataBreaker(platform, m)
	}
	return s
}

func newMetadataBreaker(platform string, m *metrics.Metrics) *gobreaker.CircuitBreaker[*models.VideoMetadata] {
	name := "metadata-" + platform
	m.BreakerState.WithLabelValues(name).Set(0)

	return gobreaker.NewCircuitBreaker[*models.VideoMetadata](gobreaker.Settings{
		Name:        name,
		MaxRequests: 2,
		Interval:    time.Minute,
		Timeout:     time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Metadata circuit breaker state change")
			m.BreakerState.WithLabelValues(name).Set(breakerStateValue(to))
		},
	})
}

func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

func metadataCacheKey(platform, videoID string) string {
	return "video_meta:" + platform + ":" + videoID
}

// Lookup returns cached metadata when available, otherwise fetches it.
func (s *VideoMetadataService) Lookup(ctx context.Context, platform, videoID string) (*models.VideoMetadata, error) {
	fetcher, ok := s.fetchers[platform]
	if !ok {
		return nil, fmt.Errorf("unsupported platform: %s", platform)
	}

	key := metadataCacheKey(platform, videoID)
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, key); err == nil && data != nil {
			var meta models.VideoMetadata
			if json.Unmarshal(data, &meta) == nil {
				s.metrics.MetadataLookups.WithLabelValues(platform, "hit").Inc()
				return &meta, nil
			}
		}
	}

	meta, err := s.breakers[platform].Execute(func() (*models.VideoMetadata, error) {
		return fetcher.Fetch(ctx, videoID)
	})
	if err != nil {
		s.metrics.MetadataLookups.WithLabelValues(platform, "error").Inc()
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%s lookups temporarily unavailable: %w", platform, err)
		}
		return nil, err
	}

	meta.Platform = platform
	meta.PlatformVideoID = videoID
	s.metrics.MetadataLookups.WithLabelValues(platform, "fetched").Inc()

	if s.cache != nil {
		if data, err := json.Marshal(meta); err == nil {
			if err := s.cache.Set(ctx, key, data, s.ttl); err != nil {
				logging.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("Failed to cache video metadata")
			}
		}
	}

	return meta, nil
}

type redisMetadataCache struct {
	redis *redis.Client
}

// Get returns nil, nil on a cache miss.
func (c *redisMetadataCache) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := c.redis.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return data, err
}

func (c *redisMetadataCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.redis.Set(ctx, key, value, ttl).Err()
}

type youtubeFetcher struct {
	client *yt.Client
}

func (f *youtubeFetcher) Fetch(ctx context.Context, videoID string) (*models.VideoMetadata, error) {
	video, err := f.client.GetVideoContext(ctx, videoID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch YouTube video metadata: %w", err)
	}

	thumbnail := fmt.Sprintf("https://img.youtube.com/vi/%s/hqdefault.jpg", videoID)
	var best uint
	for _, t := range video.Thumbnails {
		if t.Width > best {
			best = t.Width
			thumbnail = t.URL
		}
	}

	return &models.VideoMetadata{
		Title:           video.Title,
		ThumbnailURL:    thumbnail,
		DurationSeconds: int(video.Duration.Seconds()),
	}, nil
}

// vimeoFetcher reads the public oEmbed endpoint, which needs no API token.
type vimeoFetcher struct {
	httpClient *http.Client
	baseURL    string
}

func (f *vimeoFetcher) Fetch(ctx context.Context, videoID string) (*models.VideoMetadata, error) {
	endpoint := f.baseURL + "/api/oembed.json?url=" + urlpkg.QueryEscape("https://vimeo.com/"+videoID)

	var body struct {
		Title        string `json:"title"`
		Duration     int    `json:"duration"`
		ThumbnailURL string `json:"thumbnail_url"`
	}
	if err := getJSON(ctx, f.httpClient, endpoint, &body); err != nil {
		return nil, fmt.Errorf("failed to fetch Vimeo metadata: %w", err)
	}

	return &models.VideoMetadata{
		Title:           body.Title,
		ThumbnailURL:    body.ThumbnailURL,
		DurationSeconds: body.Duration,
	}, nil
}

type dailymotionFetcher struct {
	httpClient *http.Client
	baseURL    string
}

func (f *dailymotionFetcher) Fetch(ctx context.Context, videoID string) (*models.VideoMetadata, error) {
	endpoint := f.baseURL + "/video/" + urlpkg.PathEscape(videoID) + "?fields=title,duration,thumbnail_url"

	var body struct {
		Title        string `json:"title"`
		Duration     int    `json:"duration"`
		ThumbnailURL string `json:"thumbnail_url"`
	}
	if err := getJSON(ctx, f.httpClient, endpoint, &body); err != nil {
		return nil, fmt.Errorf("failed to fetch Dailymotion metadata: %w", err)
	}

	return &models.VideoMetadata{
		Title:           body.Title,
		ThumbnailURL:    body.ThumbnailURL,
		DurationSeconds: body.Duration,
	}, nil
}

func getJSON(ctx context.Context, client *http.Client, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
