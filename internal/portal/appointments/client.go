// Package appointments queries the portal's slot-search and filter endpoints.
package appointments

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/wolfman30/slotwatch/pkg/logging"
)

const (
	slotsPath   = "/appointments/api/search-appointments/slots"
	filtersPath = "/appointments/api/search-appointments/filters"

	// Large enough that the portal returns everything on one page.
	defaultPageSize = 5000
)

// Requester sends authenticated portal requests. *auth.Session implements it.
type Requester interface {
	Do(req *http.Request) (*http.Response, error)
}

// Observer receives the outcome of every search. Status is "ok" or "error".
type Observer interface {
	ObserveSearch(status string, results int)
}

// Client wraps the appointment search API.
type Client struct {
	baseURL   string
	requester Requester
	logger    *logging.Logger
	observer  Observer
	pageSize  int
}

// Option is a functional option for configuring the Client.
type Option func(*Client)

// WithLogger sets a custom logger.
func WithLogger(logger *logging.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithObserver reports search outcomes, typically to metrics.
func WithObserver(o Observer) Option {
	return func(c *Client) {
		c.observer = o
	}
}

// NewClient creates a client for the API gateway at baseURL.
func NewClient(baseURL string, requester Requester, opts ...Option) *Client {
	c := &Client{
		baseURL:   baseURL,
		requester: requester,
		logger:    logging.Default(),
		pageSize:  defaultPageSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Search returns the free slots matching f. Failures are logged and yield an
// empty result; a failed search never aborts a poll cycle.
func (c *Client) Search(ctx context.Context, f SearchFilters) []Appointment {
	params := url.Values{}
	if f.RegionID != 0 {
		params.Set("RegionIds", strconv.Itoa(f.RegionID))
	}
	for _, id := range f.SpecialtyIDs {
		params.Add("SpecialtyIds", strconv.Itoa(id))
	}
	if f.ClinicID != 0 {
		params.Set("ClinicIds", strconv.Itoa(f.ClinicID))
	}
	params.Set("Page", "1")
	params.Set("PageSize", strconv.Itoa(c.pageSize))
	params.Set("StartTime", f.StartDate.Format("2006-01-02"))
	searchType := f.SearchType
	if searchType == "" {
		searchType = SearchTypeStandard
	}
	params.Set("SlotSearchType", string(searchType))
	params.Set("VisitType", "Center")
	if f.LanguageID != 0 {
		params.Set("DoctorLanguageIds", strconv.Itoa(f.LanguageID))
	}
	if f.DoctorID != 0 {
		params.Set("DoctorIds", strconv.Itoa(f.DoctorID))
	}

	var out searchResponse
	if err := c.getJSON(ctx, slotsPath, params, &out); err != nil {
		c.logger.Error("appointment search failed", "error", err, "region", f.RegionID, "specialties", f.SpecialtyIDs, "doctor", f.DoctorID)
		c.observe("error", 0)
		return nil
	}

	items := out.Items
	if !f.EndDate.IsZero() {
		items = filterUntil(items, f.EndDate, c.logger)
	}
	c.observe("ok", len(items))
	c.logger.Debug("appointment search finished", "results", len(items), "returned", len(out.Items))
	return items
}

// ListFilters returns the selectable filter values. Region and specialties
// narrow the doctors and clinics categories.
func (c *Client) ListFilters(ctx context.Context, regionID int, specialtyIDs ...int) FilterSet {
	params := url.Values{}
	params.Set("SlotSearchType", "0")
	if regionID != 0 {
		params.Set("RegionIds", strconv.Itoa(regionID))
	}
	for _, id := range specialtyIDs {
		params.Add("SpecialtyIds", strconv.Itoa(id))
	}

	var raw map[string]json.RawMessage
	if err := c.getJSON(ctx, filtersPath, params, &raw); err != nil {
		c.logger.Error("filter listing failed", "error", err)
		return FilterSet{}
	}

	set := make(FilterSet, len(raw))
	for category, body := range raw {
		var options []FilterOption
		if err := json.Unmarshal(body, &options); err != nil {
			// Not every top-level key is an option list.
			continue
		}
		set[category] = options
	}
	return set
}

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out any) error {
	if c.requester == nil {
		return fmt.Errorf("appointments: requester not configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("appointments: create request: %w", err)
	}

	resp, err := c.requester.Do(req)
	if err != nil {
		return fmt.Errorf("appointments: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("appointments: status %d: %s", resp.StatusCode, string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("appointments: decode response: %w", err)
	}
	return nil
}

func (c *Client) observe(status string, n int) {
	if c.observer != nil {
		c.observer.ObserveSearch(status, n)
	}
}

// filterUntil drops slots after the calendar day of end. The end day itself is kept.
func filterUntil(items []Appointment, end time.Time, logger *logging.Logger) []Appointment {
	kept := make([]Appointment, 0, len(items))
	for _, item := range items {
		t, err := item.Time()
		if err != nil {
			logger.Warn("dropping slot with unreadable date", "date", item.AppointmentDate, "error", err)
			continue
		}
		if SameOrBeforeDay(t, end) {
			kept = append(kept, item)
		}
	}
	return kept
}
