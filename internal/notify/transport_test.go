package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/slotwatch/pkg/logging"
)

type recordingObserver struct {
	events []string
}

func (r *recordingObserver) ObserveNotification(transport, status string) {
	r.events = append(r.events, transport+":"+status)
}

func TestDispatcherRoutesByName(t *testing.T) {
	obs := &recordingObserver{}
	d := NewDispatcher(logging.Discard(), obs)

	var got []string
	d.Register("Telegram", TransportFunc(func(_ context.Context, message, title string) error {
		got = append(got, title+"|"+message)
		return nil
	}))

	require.NoError(t, d.Send(context.Background(), " telegram ", "body", "Slots"))
	assert.Equal(t, []string{"Slots|body"}, got)
	assert.Equal(t, []string{"telegram:sent"}, obs.events)
	assert.Equal(t, []string{"telegram"}, d.Names())
}

func TestDispatcherUnknownTransport(t *testing.T) {
	obs := &recordingObserver{}
	d := NewDispatcher(logging.Discard(), obs)

	err := d.Send(context.Background(), "xmpp", "body", "title")
	assert.ErrorIs(t, err, ErrUnknownTransport)
	assert.Equal(t, []string{"xmpp:failed"}, obs.events)
}

func TestDispatcherTransportFailureIsNotRetried(t *testing.T) {
	d := NewDispatcher(logging.Discard(), nil)
	calls := 0
	d.Register("gotify", TransportFunc(func(context.Context, string, string) error {
		calls++
		return errors.New("503")
	}))

	err := d.Send(context.Background(), "gotify", "body", "title")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gotify")
	assert.Equal(t, 1, calls)
}

func TestDispatcherIgnoresNilTransport(t *testing.T) {
	d := NewDispatcher(nil, nil)
	d.Register("sqs", nil)
	assert.Empty(t, d.Names())
}

func TestLogTransport(t *testing.T) {
	assert.NoError(t, NewLogTransport(nil).Send(context.Background(), "body", "title"))
}
