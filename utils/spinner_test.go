package utils

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSpinner_ShouldPrintStopMessage(t *testing.T) {
	var buf bytes.Buffer
	s := NewSpinner(&buf, "loading", time.Millisecond, true)
	s.Start()
	s.Start()
	time.Sleep(5 * time.Millisecond)
	s.Message("almost there")
	s.StopMsg = "done\n"
	s.Stop()
	s.Stop()

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "\033[?25l"))
	assert.Contains(t, out, "loading")
	assert.True(t, strings.HasSuffix(out, "\033[?25hdone\n"))
	assert.Equal(t, 1, strings.Count(out, "done"))
}

func TestSpinner_StopWithoutStart(t *testing.T) {
	var buf bytes.Buffer
	s := NewSpinner(&buf, "idle", time.Millisecond, false)
	s.StopMsg = "never"
	s.Stop()
	assert.Empty(t, buf.String())
}
