package holiday

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/minato-lab/leavesync/pkg/domain/types"
	"github.com/minato-lab/leavesync/pkg/utils/safe"
)

// DefaultBaseURL is the public holiday-calendar API
const DefaultBaseURL = "https://timor.tech/api/holiday"

// DayKind classifies one calendar day
type DayKind int

const (
	DayWork DayKind = iota
	DayRest
	DayHoliday
)

// DayInfo is the enrichment entry of one calendar day
type DayInfo struct {
	Date string  `json:"date"`
	Kind DayKind `json:"kind"`
	Name string  `json:"name,omitempty"`
}

// Service resolves the day-by-day holiday map of a calendar year
type Service interface {
	Year(ctx context.Context, year int) (map[string]DayInfo, error)
}

type yearEntry struct {
	days      map[string]DayInfo
	fetchedAt time.Time
}

type client struct {
	baseURL    string
	httpClient *http.Client
	now        func() time.Time

	mu    sync.RWMutex
	cache map[int]yearEntry
}

// Option is a functional option for client configuration
type Option func(*client)

// WithBaseURL overrides the holiday API endpoint (used by tests)
func WithBaseURL(u string) Option {
	return func(c *client) { c.baseURL = u }
}

// WithClock replaces the time source (used by tests)
func WithClock(now func() time.Time) Option {
	return func(c *client) { c.now = now }
}

// New creates a holiday service. Year maps are cached and refreshed at most
// once per calendar day; a lost refresh race costs one extra HTTP call.
func New(opts ...Option) Service {
	c := &client{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		now:        time.Now,
		cache:      make(map[int]yearEntry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type yearResponse struct {
	Code    int `json:"code"`
	Holiday map[string]struct {
		Holiday bool   `json:"holiday"`
		Name    string `json:"name"`
		Date    string `json:"date"`
	} `json:"holiday"`
}

func (c *client) Year(ctx context.Context, year int) (map[string]DayInfo, error) {
	today := c.now().Format("2006-01-02")

	c.mu.RLock()
	entry, ok := c.cache[year]
	c.mu.RUnlock()
	if ok && entry.fetchedAt.Format("2006-01-02") == today {
		return entry.days, nil
	}

	endpoint := fmt.Sprintf("%s/year/%d", c.baseURL, year)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to build holiday request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, goerr.Wrap(err, "holiday request failed",
			goerr.T(types.ErrTagAPI), goerr.V("year", year))
	}
	defer safe.Close(ctx, resp.Body)

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read holiday response",
			goerr.T(types.ErrTagAPI))
	}

	var parsed yearResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, goerr.Wrap(err, "failed to parse holiday response",
			goerr.T(types.ErrTagAPI), goerr.V("year", year))
	}
	if parsed.Code != 0 {
		return nil, goerr.New("holiday API returned error code",
			goerr.T(types.ErrTagAPI), goerr.V("code", parsed.Code))
	}

	// Start from the plain calendar: weekdays work, weekends rest
	days := make(map[string]DayInfo, 366)
	for day := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC); day.Year() == year; day = day.AddDate(0, 0, 1) {
		kind := DayWork
		if wd := day.Weekday(); wd == time.Saturday || wd == time.Sunday {
			kind = DayRest
		}
		days[day.Format("01-02")] = DayInfo{Date: day.Format("2006-01-02"), Kind: kind}
	}

	// Overlay the statutory exceptions: holiday entries are days off,
	// non-holiday entries are compensatory working days on a weekend
	for key, day := range parsed.Holiday {
		kind := DayWork
		if day.Holiday {
			kind = DayHoliday
		}
		days[key] = DayInfo{Date: day.Date, Kind: kind, Name: day.Name}
	}

	c.mu.Lock()
	c.cache[year] = yearEntry{days: days, fetchedAt: c.now()}
	c.mu.Unlock()

	return days, nil
}
