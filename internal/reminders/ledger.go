// Package reminders tracks how often each free slot has been announced and
// suppresses slots that were already reported too many times.
package reminders

import (
	"github.com/wolfman30/slotwatch/internal/portal/appointments"
)

// DefaultThreshold is how many times a single slot is announced before it is muted.
const DefaultThreshold = 3

// Entry is one remembered slot of a doctor.
type Entry struct {
	AppointmentDate string `json:"appointmentDate"`
	ReminderCount   int    `json:"reminderCount"`
}

// Ledger maps a doctor id to the slots already announced for that doctor.
type Ledger map[string][]Entry

// Reconcile counts one more sighting for every appointment and returns the
// ones that should be announced. A slot seen for the first time is always
// returned; a known slot is returned while its count stays within threshold.
// Entries are never removed and counts never decrease.
func (l Ledger) Reconcile(appts []appointments.Appointment, threshold int) []appointments.Appointment {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	notify := make([]appointments.Appointment, 0, len(appts))
	for _, appt := range appts {
		key := appt.DoctorKey()
		entries := l[key]

		found := false
		for i := range entries {
			if entries[i].AppointmentDate != appt.AppointmentDate {
				continue
			}
			found = true
			entries[i].ReminderCount++
			if entries[i].ReminderCount <= threshold {
				notify = append(notify, appt)
			}
			break
		}
		if !found {
			l[key] = append(entries, Entry{AppointmentDate: appt.AppointmentDate, ReminderCount: 1})
			notify = append(notify, appt)
		}
	}
	return notify
}

// Count returns the reminder count of a slot, zero when unknown.
func (l Ledger) Count(doctorKey, appointmentDate string) int {
	for _, e := range l[doctorKey] {
		if e.AppointmentDate == appointmentDate {
			return e.ReminderCount
		}
	}
	return 0
}

// Clone returns a deep copy.
func (l Ledger) Clone() Ledger {
	out := make(Ledger, len(l))
	for k, v := range l {
		out[k] = append([]Entry(nil), v...)
	}
	return out
}
