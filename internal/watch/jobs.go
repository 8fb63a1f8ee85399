package watch

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/wolfman30/slotwatch/internal/portal/appointments"
)

// Job is one standing search: what to look for and how to announce it.
type Job struct {
	Name         string
	RegionID     int
	SpecialtyIDs []int
	ClinicID     int
	DoctorID     int
	LanguageID   int
	Stars        int
	Transport    string
	Title        string
}

// Filters builds the search for the window [start, end]. A zero end means open ended.
func (j Job) Filters(start, end time.Time) appointments.SearchFilters {
	searchType := appointments.SearchTypeStandard
	if len(j.SpecialtyIDs) > 0 {
		searchType = appointments.SearchTypeFor(j.SpecialtyIDs[0])
	}
	return appointments.SearchFilters{
		RegionID:     j.RegionID,
		SpecialtyIDs: j.SpecialtyIDs,
		ClinicID:     j.ClinicID,
		DoctorID:     j.DoctorID,
		LanguageID:   j.LanguageID,
		StartDate:    start,
		EndDate:      end,
		SearchType:   searchType,
	}
}

var requiredColumns = []string{"service_id", "doctor_id", "stars", "run"}

// LoadJobs reads the jobs file. A missing or empty file yields no jobs. Rows
// whose run column is "no" are skipped. Every job searches regionID.
func LoadJobs(path string, regionID int) ([]Job, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("watch: open jobs file: %w", err)
	}
	defer f.Close()
	return ParseJobs(f, regionID)
}

// ParseJobs reads jobs from CSV with a header row.
func ParseJobs(r io.Reader, regionID int) ([]Job, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("watch: read jobs header: %w", err)
	}
	cols := map[string]int{}
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))] = i
	}
	for _, c := range requiredColumns {
		if _, ok := cols[c]; !ok {
			return nil, fmt.Errorf("watch: jobs file missing column %q", c)
		}
	}

	var jobs []Job
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("watch: read jobs line %d: %w", line, err)
		}
		field := func(name string) string {
			i, ok := cols[name]
			if !ok || i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}

		if strings.EqualFold(field("run"), "no") {
			continue
		}

		specialty, err := strconv.Atoi(field("service_id"))
		if err != nil {
			return nil, fmt.Errorf("watch: jobs line %d: service_id: %w", line, err)
		}
		job := Job{
			Name:         field("name"),
			RegionID:     regionID,
			SpecialtyIDs: []int{specialty},
			Transport:    field("transport"),
		}
		if raw := field("doctor_id"); raw != "" {
			if job.DoctorID, err = strconv.Atoi(raw); err != nil {
				return nil, fmt.Errorf("watch: jobs line %d: doctor_id: %w", line, err)
			}
		}
		if raw := field("stars"); raw != "" {
			if job.Stars, err = strconv.Atoi(raw); err != nil {
				return nil, fmt.Errorf("watch: jobs line %d: stars: %w", line, err)
			}
		}
		if job.Name != "" {
			job.Title = job.Name
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}
