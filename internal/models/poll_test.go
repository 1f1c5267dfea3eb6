package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPollClosed(t *testing.T) {
	now := time.Now()
	poll := Poll{EndsAt: now.Add(time.Hour)}

	assert.False(t, poll.Closed(now))
	assert.False(t, poll.Closed(poll.EndsAt))
	assert.True(t, poll.Closed(poll.EndsAt.Add(time.Second)))
}
