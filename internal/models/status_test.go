package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsTerminal(t *testing.T) {
	terminal := []Status{StatusComplete, StatusFailed, StatusCancelled}
	for _, s := range terminal {
		assert.True(t, s.IsTerminal(), "%s should be terminal", s)
	}

	live := []Status{StatusUnknown, StatusReady, StatusPending, StatusRunning, StatusInfo, StatusFinishing}
	for _, s := range live {
		assert.False(t, s.IsTerminal(), "%s should not be terminal", s)
	}
}

func TestParseStatus(t *testing.T) {
	assert.Equal(t, StatusComplete, ParseStatus("COMPLETE"))
	assert.Equal(t, StatusUnknown, ParseStatus("complete"), "status parsing is case sensitive")
	assert.Equal(t, StatusUnknown, ParseStatus("WEDGED"))
	assert.Equal(t, StatusUnknown, ParseStatus(""))
}

func TestStatusMapCanonical(t *testing.T) {
	m := StatusMap{
		"Q":  StatusPending,
		"R":  StatusRunning,
		"CG": StatusFinishing,
		"CD": StatusComplete,
	}

	assert.Equal(t, StatusPending, m.Canonical("Q"))
	assert.Equal(t, StatusComplete, m.Canonical("CD"))
	assert.Equal(t, StatusUnknown, m.Canonical("NODE_FAIL"))
}
