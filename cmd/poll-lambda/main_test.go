package main

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/slotwatch/pkg/logging"
)

type countingLoop struct {
	calls int
	err   error
}

func (c *countingLoop) RunCycle(context.Context) error {
	c.calls++
	return c.err
}

func TestHandleRunsOneCycle(t *testing.T) {
	loop := &countingLoop{}
	h := &handler{loop: loop, logger: logging.Discard()}

	err := h.handle(context.Background(), events.CloudWatchEvent{
		ID:        "evt-1",
		Resources: []string{"arn:aws:events:eu-central-1:123:rule/slotwatch"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, loop.calls)
}

func TestHandleReturnsCycleError(t *testing.T) {
	loop := &countingLoop{err: errors.New("auth: login failed")}
	h := &handler{loop: loop, logger: logging.Discard()}

	err := h.handle(context.Background(), events.CloudWatchEvent{ID: "evt-2"})
	assert.EqualError(t, err, "auth: login failed")
}

func TestFirstResource(t *testing.T) {
	assert.Empty(t, firstResource(events.CloudWatchEvent{}))
	assert.Equal(t, "a", firstResource(events.CloudWatchEvent{Resources: []string{"a", "b"}}))
}
