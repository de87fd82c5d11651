package main

import (
	"fmt"
	"sync"
	"time"

	"github.com/wufe/catears-dashboard/internal/syncer"
)

// syncStatus keeps the latest controller state for the TUI, which reads
// it from its own goroutine.
type syncStatus struct {
	mtx    struct{ sync.RWMutex }
	state  syncer.State
	mirror string
}

func newSyncStatus() *syncStatus {
	return &syncStatus{state: syncer.State{Status: syncer.StatusIdle}}
}

func (s *syncStatus) Set(state syncer.State) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.state = state
}

// SetMirror records the outcome of the last Hue mirror update.
func (s *syncStatus) SetMirror(msg string) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.mirror = msg
}

func (s *syncStatus) Get() (syncer.State, string) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return s.state, s.mirror
}

// statusLine renders the badge shown under the preview, e.g.
// "✓ Synced (bucket/file)" or "✗ Sync failed". Error details only go to
// the log.
func statusLine(state syncer.State) string {
	switch state.Status {
	case syncer.StatusSyncing:
		return blueTextStyle.Render("Syncing...")
	case syncer.StatusSuccess:
		return greenTextStyle.Render(fmt.Sprintf("✓ Synced (%s/%s)", state.LastReceipt.Bucket, state.LastReceipt.File))
	case syncer.StatusError:
		return redTextStyle.Render("✗ Sync failed")
	case syncer.StatusAuthRequired:
		return warnTextStyle.Render("Login required (press L)")
	default:
		if state.Pending {
			return blueTextStyle.Render("● Changes pending")
		}
		if !state.Authorized {
			return warnTextStyle.Render("Not logged in: edits stay local")
		}
		return "Idle"
	}
}

// lastSyncLine renders the time of the last successful push relative to now.
func lastSyncLine(state syncer.State, now time.Time) string {
	if state.LastSyncTime.IsZero() {
		return "Last sync: never"
	}
	ago := now.Sub(state.LastSyncTime).Truncate(time.Second)
	return fmt.Sprintf("Last sync: %s (%s ago)", state.LastSyncTime.Format(time.TimeOnly), ago)
}
