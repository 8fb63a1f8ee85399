package notify

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/wolfman30/slotwatch/internal/portal/appointments"
)

func TestDisplayGolden(t *testing.T) {
	var buf bytes.Buffer
	Display(&buf, []appointments.Appointment{
		{
			AppointmentDate: "2024-06-02T09:15:00",
			Doctor:          appointments.Ref{ID: 1, Name: "Anna Nowak"},
			Clinic:          appointments.Ref{ID: 12, Name: "Centrum Wola"},
			Specialty:       appointments.Ref{ID: 9, Name: "Dermatologia"},
			DoctorLanguages: []appointments.Ref{{ID: 60, Name: "Polish"}, {ID: 61, Name: "English"}},
		},
		{
			AppointmentDate: "2024-06-10T08:00:00",
			Doctor:          appointments.Ref{ID: 3, Name: "Ewa Wisniewska"},
			Specialty:       appointments.Ref{ID: 9, Name: "Dermatologia"},
		},
	})
	newGoldie(t).Assert(t, "display", buf.Bytes())
}

func TestDisplayEmpty(t *testing.T) {
	var buf bytes.Buffer
	Display(&buf, nil)
	assert.Equal(t, "\n"+displayRule+"\nNo new appointments found.\n", buf.String())
}

func TestOnlyToday(t *testing.T) {
	now := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	today := appointments.Appointment{AppointmentDate: "2024-06-01T17:00:00"}
	tomorrow := appointments.Appointment{AppointmentDate: "2024-06-02T09:00:00"}
	broken := appointments.Appointment{AppointmentDate: "??"}

	assert.True(t, OnlyToday([]appointments.Appointment{today}, now))
	assert.True(t, OnlyToday([]appointments.Appointment{today, broken}, now))
	assert.False(t, OnlyToday([]appointments.Appointment{today, tomorrow}, now))
	assert.True(t, OnlyToday(nil, now))
}
