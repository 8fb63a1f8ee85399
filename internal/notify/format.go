// Package notify renders appointment digests and delivers them through
// push, chat, email and queue transports.
package notify

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/wolfman30/slotwatch/internal/portal/appointments"
)

const (
	// EmptyDigest is rendered when there is nothing to report.
	EmptyDigest = "No appointments found."

	blockSeparator = "-------------------------"
	notAvailable   = "N/A"
	maxStars       = 3
)

// Formatter renders appointment digests relative to a clock.
type Formatter struct {
	now func() time.Time
}

// NewFormatter returns a formatter. A nil clock means time.Now.
func NewFormatter(now func() time.Time) *Formatter {
	if now == nil {
		now = time.Now
	}
	return &Formatter{now: now}
}

type dayGroup struct {
	day   time.Time
	items []appointments.Appointment
	times []time.Time
}

// Render groups appointments by calendar day and renders one block per day in
// chronological order. Appointments with unreadable dates are left out.
func (f *Formatter) Render(appts []appointments.Appointment, stars int) string {
	if len(appts) == 0 {
		return EmptyDigest
	}

	groups := map[time.Time]*dayGroup{}
	for _, a := range appts {
		t, err := a.Time()
		if err != nil {
			continue
		}
		day := calendarDay(t)
		g, ok := groups[day]
		if !ok {
			g = &dayGroup{day: day}
			groups[day] = g
		}
		g.items = append(g.items, a)
		g.times = append(g.times, t)
	}

	days := make([]time.Time, 0, len(groups))
	for d := range groups {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	now := f.now()
	blocks := make([]string, 0, len(days))
	for _, d := range days {
		blocks = append(blocks, renderBlock(groups[d], now, stars))
	}
	return strings.Join(blocks, "\n")
}

func renderBlock(g *dayGroup, now time.Time, stars int) string {
	doctorSet := map[string]struct{}{}
	for _, it := range g.items {
		doctorSet[nameOrNA(it.Doctor.Name)] = struct{}{}
	}
	doctors := make([]string, 0, len(doctorSet))
	for name := range doctorSet {
		doctors = append(doctors, name)
	}
	sort.Strings(doctors)

	hours := make([]string, 0, len(g.times))
	for _, t := range g.times {
		hours = append(hours, t.Format("15:04"))
	}
	sort.Strings(hours)

	first := g.items[0]
	var b strings.Builder
	fmt.Fprintf(&b, "Date: %s (%s)\n", g.day.Format("02.01.2006"), RelativeDayLabel(g.day, now))
	fmt.Fprintf(&b, "Doctor: %s\n", strings.Join(doctors, ", "))
	fmt.Fprintf(&b, "Specialty: %s\n", nameOrNA(first.Specialty.Name))
	fmt.Fprintf(&b, "Clinic: %s\n", nameOrNA(first.Clinic.Name))
	fmt.Fprintf(&b, "Appointments: %d (%s)\n", len(g.items), strings.Join(hours, ", "))
	fmt.Fprintf(&b, "Stars: %s\n", StarRating(stars))
	b.WriteString(blockSeparator)
	return b.String()
}

// RelativeDayLabel describes date relative to now by calendar day: "today",
// "tomorrow", "in N days", "yesterday" or "N days ago".
func RelativeDayLabel(date, now time.Time) string {
	delta := int(calendarDay(date).Sub(calendarDay(now)).Hours() / 24)
	switch {
	case delta == 0:
		return "today"
	case delta == 1:
		return "tomorrow"
	case delta > 1:
		return fmt.Sprintf("in %d days", delta)
	case delta == -1:
		return "yesterday"
	default:
		return fmt.Sprintf("%d days ago", -delta)
	}
}

// StarRating renders a 1 to 3 rating as filled and empty stars; anything else is N/A.
func StarRating(stars int) string {
	if stars < 1 || stars > maxStars {
		return notAvailable
	}
	return strings.Repeat("★", stars) + strings.Repeat("☆", maxStars-stars)
}

// calendarDay drops the clock and zone so days compare by their wall date.
func calendarDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func nameOrNA(name string) string {
	if strings.TrimSpace(name) == "" {
		return notAvailable
	}
	return name
}
