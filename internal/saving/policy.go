package saving

import (
	"time"

	"github.com/lotas/flowtabs/internal/applog"
	"github.com/lotas/flowtabs/internal/tabs"
)

// Policy decides when idle tabs are put to sleep and when stored tabs are
// dropped. A zero duration disables the rule.
type Policy struct {
	SleepAfter   time.Duration
	ArchiveAfter time.Duration
	Now          func() time.Time
}

func (p Policy) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

func (p Policy) ShouldSleep(lastActive time.Time) bool {
	return p.SleepAfter > 0 && !lastActive.IsZero() && p.now().Sub(lastActive) > p.SleepAfter
}

func (p Policy) ShouldArchive(lastActive time.Time) bool {
	return p.ArchiveAfter > 0 && !lastActive.IsZero() && p.now().Sub(lastActive) > p.ArchiveAfter
}

// SleepIdle puts hidden tabs that have been idle for too long to sleep.
// Tabs playing picture-in-picture stay awake. It returns how many slept.
func SleepIdle(m *tabs.Manager, p Policy) int {
	n := 0
	for _, t := range m.Tabs() {
		if t.Visible() || t.Asleep() || t.PipActive() {
			continue
		}
		if p.ShouldSleep(t.LastActiveAt()) && t.PutToSleep() {
			n++
		}
	}
	if n > 0 {
		applog.Info("tabs.slept", "count", n)
	}
	return n
}
