package appointments

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SearchType selects the portal's slot catalogue.
type SearchType string

const (
	SearchTypeStandard            SearchType = "0"
	SearchTypeDiagnosticProcedure SearchType = "DiagnosticProcedure"

	// DiagnosticSpecialtyID is searched as a diagnostic procedure rather than a visit.
	DiagnosticSpecialtyID = 519
)

// SearchTypeFor returns the search type the portal expects for a specialty.
func SearchTypeFor(specialtyID int) SearchType {
	if specialtyID == DiagnosticSpecialtyID {
		return SearchTypeDiagnosticProcedure
	}
	return SearchTypeStandard
}

// Ref is an id/name pair as returned by the portal.
type Ref struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Appointment is one free slot. AppointmentDate keeps the portal's raw string
// because the reminder ledger keys on it verbatim.
type Appointment struct {
	AppointmentDate string `json:"appointmentDate"`
	Doctor          Ref    `json:"doctor"`
	Clinic          Ref    `json:"clinic"`
	Specialty       Ref    `json:"specialty"`
	DoctorLanguages []Ref  `json:"doctorLanguages,omitempty"`
}

// Time parses AppointmentDate.
func (a Appointment) Time() (time.Time, error) {
	return ParseDate(a.AppointmentDate)
}

// DoctorKey is the doctor identifier as used by the reminder ledger.
func (a Appointment) DoctorKey() string {
	return strconv.FormatInt(a.Doctor.ID, 10)
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseDate accepts the ISO-8601 shapes the portal emits, with or without an
// offset. Zone-less values keep their wall clock.
func ParseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("appointments: unrecognised date %q", raw)
}

// SameOrBeforeDay reports whether t falls on or before the calendar day of limit.
func SameOrBeforeDay(t, limit time.Time) bool {
	ty, tm, td := t.Date()
	ly, lm, ld := limit.Date()
	if ty != ly {
		return ty < ly
	}
	if tm != lm {
		return tm < lm
	}
	return td <= ld
}

// SearchFilters parameterises one slot search. Zero values mean "not set".
type SearchFilters struct {
	RegionID     int
	SpecialtyIDs []int
	ClinicID     int
	DoctorID     int
	StartDate    time.Time
	EndDate      time.Time
	LanguageID   int
	SearchType   SearchType
}

type searchResponse struct {
	Items []Appointment `json:"items"`
}

// FilterOption is one selectable value of a filter category.
type FilterOption struct {
	ID    FlexibleID `json:"id"`
	Value string     `json:"value"`
}

// FlexibleID holds identifiers the portal sends either as numbers or strings.
type FlexibleID string

func (f *FlexibleID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("appointments: filter id: %w", err)
	}
	*f = FlexibleID(n.String())
	return nil
}

// FilterSet maps a filter category (regions, specialties, doctors, clinics, ...)
// to its options.
type FilterSet map[string][]FilterOption

// Categories returns the category names present in the set.
func (f FilterSet) Categories() []string {
	out := make([]string, 0, len(f))
	for k := range f {
		out = append(out, k)
	}
	return out
}
