package tui

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/aretw0/sessionlock/pkg/domain"
	"github.com/muesli/termenv"
)

// Record states shown by the inspector.
const (
	StateLive    = "live"
	StateLocked  = "locked"
	StateExpired = "expired"
)

// previewBytes caps the payload preview in detail views.
const previewBytes = 64

// State classifies rec at now. Expiry wins over the lock.
func State(rec *domain.Record, now time.Time) string {
	switch {
	case rec.Expired(now):
		return StateExpired
	case rec.Locked:
		return StateLocked
	default:
		return StateLive
	}
}

// ColorState paints a state name for terminal output.
func ColorState(state string) termenv.Style {
	p := termenv.ColorProfile()
	s := termenv.String(state)
	switch state {
	case StateLive:
		return s.Foreground(p.Color("#4ade80"))
	case StateLocked:
		return s.Foreground(p.Color("#facc15"))
	case StateExpired:
		return s.Foreground(p.Color("#f87171")).Faint()
	default:
		return s
	}
}

// RecordsTable renders records as a markdown table, the inspector dump.
func RecordsTable(records []*domain.Record, now time.Time) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Sessions (%d)\n\n", len(records))
	if len(records) == 0 {
		sb.WriteString("_No session records._\n")
		return sb.String()
	}

	sb.WriteString("| Namespace | ID | State | Token | Lock Age | Expires | Items | Bytes | Flags |\n")
	sb.WriteString("|---|---|---|---:|---:|---|---:|---:|---|\n")
	for _, rec := range records {
		lockAge := "-"
		if rec.Locked {
			lockAge = rec.LockAge(now).Round(time.Second).String()
		}
		fmt.Fprintf(&sb, "| %s | %s | %s | %d | %s | %s | %d | %d | %s |\n",
			escape(rec.Namespace),
			escape(rec.ID),
			State(rec, now),
			rec.LockToken,
			lockAge,
			rec.Expires.Format(time.RFC3339),
			rec.ItemCount,
			len(rec.Payload),
			rec.Flags,
		)
	}
	return sb.String()
}

// RecordDetail renders one record for the inspect command.
func RecordDetail(rec *domain.Record, now time.Time) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s / %s\n\n", escape(rec.Namespace), escape(rec.ID))
	fmt.Fprintf(&sb, "- **State**: %s\n", State(rec, now))
	fmt.Fprintf(&sb, "- **Created**: %s\n", rec.Created.Format(time.RFC3339))
	fmt.Fprintf(&sb, "- **Expires**: %s (timeout %d min)\n", rec.Expires.Format(time.RFC3339), rec.TimeoutMinutes)
	fmt.Fprintf(&sb, "- **Lock**: held=%v token=%d acquired=%s\n", rec.Locked, rec.LockToken, rec.LockAcquiredAt.Format(time.RFC3339))
	if rec.Locked {
		fmt.Fprintf(&sb, "- **Lock Age**: %s\n", rec.LockAge(now).Round(time.Millisecond))
	}
	fmt.Fprintf(&sb, "- **Flags**: %s\n", rec.Flags)
	fmt.Fprintf(&sb, "- **Payload**: %d bytes, %d items\n", len(rec.Payload), rec.ItemCount)

	if len(rec.Payload) > 0 {
		preview := rec.Payload
		if len(preview) > previewBytes {
			preview = preview[:previewBytes]
		}
		sb.WriteString("\n```\n")
		sb.WriteString(hex.Dump(preview))
		sb.WriteString("```\n")
	}
	return sb.String()
}

func escape(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}
