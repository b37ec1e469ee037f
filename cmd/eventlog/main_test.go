package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/pedalnav/internal/core/domain"
)

func TestTally_CountsPerType(t *testing.T) {
	tl := &tally{counts: make(map[domain.NavigationEventType]int)}
	at := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

	events := []domain.NavigationEvent{
		{SessionID: "s1", Type: domain.EventModeChanged, Mode: domain.ModeNavigating, Time: at},
		{SessionID: "s1", Type: domain.EventArrived, Position: &domain.Coordinate{Lat: 43.261, Lon: -2.927}, Time: at},
		{SessionID: "s2", Type: domain.EventRouteFailed, Detail: "valhalla unavailable", Time: at},
		{SessionID: "s1", Type: domain.EventModeChanged, Mode: domain.ModeArrived, Time: at},
	}
	for _, e := range events {
		require.NoError(t, tl.record(t.Context(), e))
	}

	assert.Equal(t, 2, tl.counts[domain.EventModeChanged])
	assert.Equal(t, 1, tl.counts[domain.EventArrived])
	assert.Equal(t, 1, tl.counts[domain.EventRouteFailed])
}
