// Package catalog implements the ReleaseCatalog external collaborator: a
// best-effort, optional HTTP lookup of a track's canonical duration, used
// only to arbitrate duration disagreements the simple (2s, 5s) tolerances
// in audio.CompareDuration can't resolve.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/uocradio/libguard/internal/util"
)

// MusicBrainzBaseURL is the API this package queries for release/recording
// duration data keyed by MusicBrainz release-group and track-position
// identifiers (the same identifiers the tag dialects store as album_id /
// release_group_id).
const MusicBrainzBaseURL = "https://musicbrainz.org/ws/2"

// UserAgent identifies this tool to the MusicBrainz API, which requires a
// descriptive one.
const UserAgent = "LibraryGuard/1.0 (+https://github.com/uocradio/libguard)"

// RateLimit is the minimum spacing between requests MusicBrainz asks
// anonymous clients to observe.
const RateLimit = 1 * time.Second

// Client is the production ReleaseCatalog adapter. A nil *Client is a valid
// audio.ReleaseCatalog that always reports "unknown" ("no network
// operation beyond a best-effort duration lookup"; callers that want no
// network activity at all simply don't construct a Client).
type Client struct {
	httpClient *http.Client
	limiter    *time.Ticker
}

// NewClient returns a rate-limited MusicBrainz-backed catalog client. The
// per-request timeout is short: this lookup is explicitly best-effort
// ("timeouts and errors return null").
func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 5 * time.Second},
		limiter:    time.NewTicker(RateLimit),
	}
}

// Close releases the client's rate limiter.
func (c *Client) Close() {
	if c.limiter != nil {
		c.limiter.Stop()
	}
}

type releaseGroupResponse struct {
	Releases []struct {
		Media []struct {
			Tracks []struct {
				Position int `json:"position"`
				Length   int `json:"length"` // milliseconds
			} `json:"tracks"`
		} `json:"media"`
	} `json:"releases"`
}

// Lookup implements audio.ReleaseCatalog: returns the canonical duration in
// seconds for (albumID, trackNumber), or (0, false) if unknown, unavailable,
// or the request times out. albumID is treated as a MusicBrainz release
// group MBID, matching the tag dialects' album_id field.
func (c *Client) Lookup(albumID string, trackNumber int) (float64, bool) {
	if c == nil || albumID == "" || trackNumber <= 0 {
		return 0, false
	}

	<-c.limiter.C

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	u := fmt.Sprintf("%s/release-group/%s?inc=releases+media+recordings&fmt=json", MusicBrainzBaseURL, url.PathEscape(albumID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, false
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		util.DebugLog("catalog: lookup %s track %d failed: %v", albumID, trackNumber, err)
		return 0, false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		util.DebugLog("catalog: lookup %s returned status %d", albumID, resp.StatusCode)
		return 0, false
	}

	var body releaseGroupResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, false
	}

	for _, release := range body.Releases {
		for _, medium := range release.Media {
			for _, track := range medium.Tracks {
				if track.Position == trackNumber && track.Length > 0 {
					return float64(track.Length) / 1000.0, true
				}
			}
		}
	}
	return 0, false
}

// StubCatalog is a deterministic in-memory ReleaseCatalog for tests.
type StubCatalog struct {
	Durations map[string]float64 // keyed by fmt.Sprintf("%s/%d", albumID, trackNumber)
}

// NewStubCatalog returns an empty stub; populate Durations directly or via
// Set.
func NewStubCatalog() *StubCatalog {
	return &StubCatalog{Durations: make(map[string]float64)}
}

// Set registers the canonical duration for (albumID, trackNumber).
func (s *StubCatalog) Set(albumID string, trackNumber int, durationSecs float64) {
	s.Durations[stubKey(albumID, trackNumber)] = durationSecs
}

// Lookup implements audio.ReleaseCatalog.
func (s *StubCatalog) Lookup(albumID string, trackNumber int) (float64, bool) {
	if s == nil {
		return 0, false
	}
	d, ok := s.Durations[stubKey(albumID, trackNumber)]
	return d, ok
}

func stubKey(albumID string, trackNumber int) string {
	return fmt.Sprintf("%s/%d", albumID, trackNumber)
}
