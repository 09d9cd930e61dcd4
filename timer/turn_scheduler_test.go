package timer

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type schedulerRecorder struct {
	mu        sync.Mutex
	reminders []TurnMsg
	timeouts  []TurnMsg
}

func (r *schedulerRecorder) onReminder(msg TurnMsg) {
	r.mu.Lock()
	r.reminders = append(r.reminders, msg)
	r.mu.Unlock()
}

func (r *schedulerRecorder) onTimeout(msg TurnMsg) {
	r.mu.Lock()
	r.timeouts = append(r.timeouts, msg)
	r.mu.Unlock()
}

func (r *schedulerRecorder) reminderCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.reminders)
}

func (r *schedulerRecorder) timeoutCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.timeouts)
}

func waitUntil(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestSchedulerEscalatesToTimeoutOnce(t *testing.T) {
	t.Parallel()

	rec := &schedulerRecorder{}
	ts := NewTurnScheduler("CODE1", 20*time.Millisecond, 3, rec.onReminder, rec.onTimeout, nil)
	ts.Run()
	defer ts.Destroy()

	assert.NoError(t, ts.Reset(TurnMsg{SeatNo: 2, PlayerID: "p2"}))

	// Keep idling past the limit: reminders must continue, the timeout must
	// not repeat.
	waitUntil(t, "five reminders", func() bool { return rec.reminderCount() >= 5 })

	rec.mu.Lock()
	defer rec.mu.Unlock()
	for i, msg := range rec.reminders {
		assert.Equal(t, 2, msg.SeatNo)
		assert.Equal(t, uint32(i+1), msg.ReminderCount)
		assert.Equal(t, msg.ReminderCount >= 3, msg.TimedOut)
	}
	assert.Len(t, rec.timeouts, 1)
	assert.Equal(t, uint32(3), rec.timeouts[0].ReminderCount)
	assert.True(t, ts.IsTimedOut(2))
	assert.False(t, ts.IsTimedOut(1))
}

func TestSchedulerPlayerActedStopsEscalation(t *testing.T) {
	t.Parallel()

	rec := &schedulerRecorder{}
	ts := NewTurnScheduler("CODE1", 20*time.Millisecond, 2, rec.onReminder, rec.onTimeout, nil)
	ts.Run()
	defer ts.Destroy()

	assert.NoError(t, ts.Reset(TurnMsg{SeatNo: 0, PlayerID: "p0"}))
	waitUntil(t, "first reminder", func() bool { return rec.reminderCount() >= 1 })

	ts.PlayerActed()
	assert.False(t, ts.IsTimedOut(0))

	settled := rec.reminderCount()
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, settled, rec.reminderCount(), "reminders kept firing after the seat acted")
	assert.Equal(t, 0, rec.timeoutCount())
}

func TestSchedulerResetStartsFreshTurn(t *testing.T) {
	t.Parallel()

	rec := &schedulerRecorder{}
	ts := NewTurnScheduler("CODE1", 20*time.Millisecond, 10, rec.onReminder, rec.onTimeout, nil)
	ts.Run()
	defer ts.Destroy()

	assert.NoError(t, ts.Reset(TurnMsg{SeatNo: 0, PlayerID: "p0"}))
	waitUntil(t, "seat 0 reminder", func() bool { return rec.reminderCount() >= 2 })

	assert.NoError(t, ts.Reset(TurnMsg{SeatNo: 1, PlayerID: "p1"}))
	before := rec.reminderCount()
	waitUntil(t, "seat 1 reminder", func() bool { return rec.reminderCount() > before })

	rec.mu.Lock()
	last := rec.reminders[len(rec.reminders)-1]
	rec.mu.Unlock()
	assert.Equal(t, 1, last.SeatNo)
	assert.Equal(t, uint32(1), last.ReminderCount)
}

func TestSchedulerResetRejectsBadTurn(t *testing.T) {
	t.Parallel()

	ts := NewTurnScheduler("CODE1", time.Minute, 3, nil, nil, nil)
	ts.Run()
	defer ts.Destroy()

	assert.Error(t, ts.Reset(TurnMsg{SeatNo: -1, PlayerID: "p0"}))
	assert.Error(t, ts.Reset(TurnMsg{SeatNo: 0, PlayerID: ""}))
}
