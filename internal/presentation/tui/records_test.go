package tui

import (
	"strings"
	"testing"
	"time"

	"github.com/aretw0/sessionlock/pkg/domain"
	"github.com/stretchr/testify/assert"
)

func TestState(t *testing.T) {
	now := time.Now()
	live := domain.NewRecord("a", "app", 5, nil, 0, domain.ActionNone, now)
	locked := live.Clone()
	locked.Locked = true
	expired := domain.NewRecord("b", "app", 1, nil, 0, domain.ActionNone, now.Add(-time.Hour))
	expired.Locked = true

	assert.Equal(t, StateLive, State(live, now))
	assert.Equal(t, StateLocked, State(locked, now))
	assert.Equal(t, StateExpired, State(expired, now))
}

func TestRecordsTable(t *testing.T) {
	now := time.Now()
	rec := domain.NewRecord("s|1", "shop", 5, []byte("abc"), 2, domain.ActionUninitialized, now.Add(-10*time.Second))
	rec.Locked = true
	rec.LockToken = 4

	out := RecordsTable([]*domain.Record{rec}, now)
	assert.Contains(t, out, "# Sessions (1)")
	assert.Contains(t, out, `| shop | s\|1 | locked | 4 | 10s |`)
	assert.Contains(t, out, "| 2 | 3 | uninitialized |")

	assert.Contains(t, RecordsTable(nil, now), "_No session records._")
}

func TestRecordDetail(t *testing.T) {
	now := time.Now()
	payload := []byte(strings.Repeat("x", 100))
	rec := domain.NewRecord("s1", "shop", 5, payload, 1, domain.ActionNone, now)

	out := RecordDetail(rec, now)
	assert.Contains(t, out, "# shop / s1")
	assert.Contains(t, out, "- **State**: live")
	assert.Contains(t, out, "100 bytes, 1 items")
	assert.Equal(t, 4, strings.Count(out, "|xxxxxxxxxxxxxxxx|"), "preview is capped")
	assert.NotContains(t, out, "Lock Age")
}
