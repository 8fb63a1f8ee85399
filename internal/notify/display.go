package notify

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/wolfman30/slotwatch/internal/portal/appointments"
)

var displayRule = strings.Repeat("-", 50)

// Display prints the appointments about to be announced.
func Display(w io.Writer, appts []appointments.Appointment) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, displayRule)
	if len(appts) == 0 {
		fmt.Fprintln(w, "No new appointments found.")
		return
	}
	fmt.Fprintln(w, "New appointments found:")
	fmt.Fprintln(w, displayRule)
	for _, a := range appts {
		date := a.AppointmentDate
		if date == "" {
			date = notAvailable
		}
		fmt.Fprintf(w, "Date: %s\n", date)
		fmt.Fprintf(w, "  Clinic: %s\n", nameOrNA(a.Clinic.Name))
		fmt.Fprintf(w, "  Doctor: %s\n", nameOrNA(a.Doctor.Name))
		fmt.Fprintf(w, "  Specialty: %s\n", nameOrNA(a.Specialty.Name))
		fmt.Fprintf(w, "  Languages: %s\n", languages(a.DoctorLanguages))
		fmt.Fprintln(w, displayRule)
	}
}

func languages(refs []appointments.Ref) string {
	if len(refs) == 0 {
		return notAvailable
	}
	names := make([]string, 0, len(refs))
	for _, r := range refs {
		names = append(names, nameOrNA(r.Name))
	}
	return strings.Join(names, ", ")
}

// OnlyToday reports whether every readable appointment falls on the calendar
// day of now. Unreadable dates are ignored.
func OnlyToday(appts []appointments.Appointment, now time.Time) bool {
	today := calendarDay(now)
	for _, a := range appts {
		t, err := a.Time()
		if err != nil {
			continue
		}
		if !calendarDay(t).Equal(today) {
			return false
		}
	}
	return true
}
