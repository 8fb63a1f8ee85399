package appointments

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfman30/slotwatch/pkg/logging"
)

type plainRequester struct{ client *http.Client }

func (p plainRequester) Do(req *http.Request) (*http.Response, error) {
	req.Header.Set("Authorization", "Bearer test")
	return p.client.Do(req)
}

type failingRequester struct{}

func (failingRequester) Do(*http.Request) (*http.Response, error) {
	return nil, errors.New("connection refused")
}

type recordingObserver struct {
	statuses []string
	results  []int
}

func (r *recordingObserver) ObserveSearch(status string, n int) {
	r.statuses = append(r.statuses, status)
	r.results = append(r.results, n)
}

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	opts = append([]Option{WithLogger(logging.Discard())}, opts...)
	return NewClient(srv.URL, plainRequester{client: srv.Client()}, opts...)
}

func slot(doctorID int64, date string) Appointment {
	return Appointment{
		AppointmentDate: date,
		Doctor:          Ref{ID: doctorID, Name: "Dr " + date},
		Clinic:          Ref{ID: 7, Name: "Centrum"},
		Specialty:       Ref{ID: 9, Name: "Internist"},
	}
}

func TestSearchBuildsQuery(t *testing.T) {
	var got map[string][]string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, slotsPath, r.URL.Path)
		assert.Equal(t, "Bearer test", r.Header.Get("Authorization"))
		got = r.URL.Query()
		json.NewEncoder(w).Encode(searchResponse{Items: []Appointment{slot(1, "2024-06-01T09:00:00")}})
	})

	items := client.Search(context.Background(), SearchFilters{
		RegionID:     202,
		SpecialtyIDs: []int{9, 10},
		DoctorID:     1234,
		LanguageID:   6,
		StartDate:    time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		SearchType:   SearchTypeDiagnosticProcedure,
	})
	require.Len(t, items, 1)

	assert.Equal(t, []string{"202"}, got["RegionIds"])
	assert.Equal(t, []string{"9", "10"}, got["SpecialtyIds"])
	assert.Equal(t, []string{"1234"}, got["DoctorIds"])
	assert.Equal(t, []string{"6"}, got["DoctorLanguageIds"])
	assert.Equal(t, []string{"5000"}, got["PageSize"])
	assert.Equal(t, []string{"1"}, got["Page"])
	assert.Equal(t, []string{"2024-06-01"}, got["StartTime"])
	assert.Equal(t, []string{"DiagnosticProcedure"}, got["SlotSearchType"])
	assert.Equal(t, []string{"Center"}, got["VisitType"])
	assert.NotContains(t, got, "ClinicIds")
}

func TestSearchDefaultsToStandardType(t *testing.T) {
	var searchType string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		searchType = r.URL.Query().Get("SlotSearchType")
		w.Write([]byte(`{"items":[]}`))
	})
	client.Search(context.Background(), SearchFilters{RegionID: 202})
	assert.Equal(t, "0", searchType)
}

func TestSearchOmitsUnsetRegion(t *testing.T) {
	var query map[string][]string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query()
		w.Write([]byte(`{"items":[]}`))
	})
	client.Search(context.Background(), SearchFilters{SpecialtyIDs: []int{9}})
	assert.NotContains(t, query, "RegionIds")
	assert.Equal(t, []string{"9"}, query["SpecialtyIds"])
}

func TestSearchEndDateIsInclusive(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(searchResponse{Items: []Appointment{
			slot(1, "2024-06-09T08:00:00"),
			slot(1, "2024-06-10T23:30:00"),
			slot(1, "2024-06-11T00:00:00"),
			slot(1, "not-a-date"),
		}})
	})

	items := client.Search(context.Background(), SearchFilters{
		RegionID: 202,
		EndDate:  time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC),
	})
	dates := make([]string, 0, len(items))
	for _, it := range items {
		dates = append(dates, it.AppointmentDate)
	}
	assert.Equal(t, []string{"2024-06-09T08:00:00", "2024-06-10T23:30:00"}, dates)
}

func TestSearchWithoutEndDateKeepsEverything(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(searchResponse{Items: []Appointment{
			slot(1, "2024-06-09T08:00:00"),
			slot(2, "2031-01-01T08:00:00"),
		}})
	})
	assert.Len(t, client.Search(context.Background(), SearchFilters{RegionID: 202}), 2)
}

func TestSearchFailuresAreNonFatal(t *testing.T) {
	t.Run("non-200 status", func(t *testing.T) {
		obs := &recordingObserver{}
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
		}, WithObserver(obs))
		assert.Empty(t, client.Search(context.Background(), SearchFilters{RegionID: 202}))
		assert.Equal(t, []string{"error"}, obs.statuses)
	})

	t.Run("malformed body", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"items":[`))
		})
		assert.Empty(t, client.Search(context.Background(), SearchFilters{RegionID: 202}))
	})

	t.Run("transport error", func(t *testing.T) {
		client := NewClient("http://portal.invalid", failingRequester{}, WithLogger(logging.Discard()))
		assert.Empty(t, client.Search(context.Background(), SearchFilters{RegionID: 202}))
	})

	t.Run("success is observed", func(t *testing.T) {
		obs := &recordingObserver{}
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(searchResponse{Items: []Appointment{slot(1, "2024-06-09T08:00:00")}})
		}, WithObserver(obs))
		client.Search(context.Background(), SearchFilters{RegionID: 202})
		assert.Equal(t, []string{"ok"}, obs.statuses)
		assert.Equal(t, []int{1}, obs.results)
	})
}

func TestListFilters(t *testing.T) {
	var query map[string][]string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, filtersPath, r.URL.Path)
		query = r.URL.Query()
		w.Write([]byte(`{
			"regions": [{"id": "202", "value": "Warszawa"}],
			"doctors": [{"id": 1234, "value": "Jan Kowalski"}],
			"clinics": [],
			"meta": {"version": 2}
		}`))
	})

	set := client.ListFilters(context.Background(), 202, 9)
	assert.Equal(t, []string{"202"}, query["RegionIds"])
	assert.Equal(t, []string{"9"}, query["SpecialtyIds"])
	assert.Equal(t, []string{"0"}, query["SlotSearchType"])

	require.Len(t, set["regions"], 1)
	assert.Equal(t, FlexibleID("202"), set["regions"][0].ID)
	assert.Equal(t, "Warszawa", set["regions"][0].Value)
	assert.Equal(t, FlexibleID("1234"), set["doctors"][0].ID)
	assert.NotContains(t, set, "meta")

	cats := set.Categories()
	sort.Strings(cats)
	assert.Equal(t, []string{"clinics", "doctors", "regions"}, cats)
}

func TestListFiltersWithoutNarrowing(t *testing.T) {
	var query map[string][]string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query()
		w.Write([]byte(`{"specialties":[{"id":9,"value":"Internist"}]}`))
	})
	set := client.ListFilters(context.Background(), 0)
	assert.NotContains(t, query, "RegionIds")
	assert.NotContains(t, query, "SpecialtyIds")
	assert.Len(t, set["specialties"], 1)
}

func TestListFiltersError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	assert.Empty(t, client.ListFilters(context.Background(), 202))
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		raw  string
		want time.Time
	}{
		{"2024-06-01T09:00:00", time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)},
		{"2024-06-01T09:00", time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)},
		{"2024-06-01", time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)},
		{"2024-06-01T09:00:00.5", time.Date(2024, 6, 1, 9, 0, 0, 500000000, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseDate(tt.raw)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "want %s got %s", tt.want, got)
		})
	}

	withOffset, err := ParseDate("2024-06-01T23:30:00+02:00")
	require.NoError(t, err)
	assert.Equal(t, 1, withOffset.Day(), "wall clock date must not shift to UTC")

	_, err = ParseDate("June 1st")
	assert.Error(t, err)
}

func TestSearchTypeFor(t *testing.T) {
	assert.Equal(t, SearchTypeDiagnosticProcedure, SearchTypeFor(519))
	assert.Equal(t, SearchTypeStandard, SearchTypeFor(9))
}

func TestAppointmentDoctorKey(t *testing.T) {
	assert.Equal(t, "1234", slot(1234, "2024-06-01T09:00:00").DoctorKey())
}
