package reembed

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProgressTracker(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, 10, 5)

	tracker.Add(3)
	assert.Zero(t, tracker.Current(), "ignored before Start")

	tracker.Start()
	tracker.Add(3)
	assert.Empty(t, buf.String())

	tracker.Add(3)
	assert.Contains(t, buf.String(), "Progress: 6/10 chunks (60.0%)")

	tracker.Add(20)
	assert.Equal(t, 10, tracker.Current(), "clamped to total")

	tracker.Finish()
	out := buf.String()
	assert.Contains(t, out, "Progress: 10/10 chunks (100.0%)")
	assert.True(t, strings.HasSuffix(out, "\n"))
	assert.Positive(t, tracker.Elapsed())
}
