package timer

import (
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

var turnSchedulerLogger = log.With().Str("logger_name", "timer::turn_scheduler").Logger()

// TurnMsg identifies the seat-turn a scheduler is escalating.
type TurnMsg struct {
	SeatNo        int
	PlayerID      string
	ReminderCount uint32
	TimedOut      bool
}

// TurnScheduler walks one human seat-turn through the
// reminder -> timeout -> eligible-for-boot escalation. One scheduler exists
// per session and it arms at most one timer at a time; Reset always disarms
// the previous turn's timer first.
//
// onReminder fires on every reminder interval, including after the seat has
// timed out (idleness does not stop notification). onTimeout fires exactly
// once per seat-turn, when ReminderCount reaches the configured limit. Both
// callbacks run on the scheduler goroutine and are expected to hand work off
// to the session's command queue.
type TurnScheduler struct {
	sessionCode string

	chReset   chan TurnMsg
	chActed   chan bool
	chEndLoop chan bool

	reminderInterval time.Duration
	reminderLimit    uint32

	onReminder   func(TurnMsg)
	onTimeout    func(TurnMsg)
	crashHandler func()

	mu      sync.Mutex
	current TurnMsg
	armed   bool
}

func NewTurnScheduler(
	sessionCode string,
	reminderInterval time.Duration,
	reminderLimit uint32,
	onReminder func(TurnMsg),
	onTimeout func(TurnMsg),
	crashHandler func()) *TurnScheduler {

	ts := TurnScheduler{
		sessionCode:      sessionCode,
		chReset:          make(chan TurnMsg),
		chActed:          make(chan bool),
		chEndLoop:        make(chan bool, 10),
		reminderInterval: reminderInterval,
		reminderLimit:    reminderLimit,
		onReminder:       onReminder,
		onTimeout:        onTimeout,
		crashHandler:     crashHandler,
	}
	return &ts
}

func (t *TurnScheduler) Run() {
	go t.loop()
}

func (t *TurnScheduler) Destroy() {
	t.chEndLoop <- true
}

func (t *TurnScheduler) loop() {
	defer func() {
		err := recover()
		if err != nil {
			debug.PrintStack()
			turnSchedulerLogger.Error().
				Str("sessionCode", t.sessionCode).
				Msgf("Turn scheduler loop returning due to panic: %s\nStack Trace:\n%s", err, string(debug.Stack()))
			if t.crashHandler != nil {
				t.crashHandler()
			}
		} else {
			turnSchedulerLogger.Info().Str("sessionCode", t.sessionCode).Msg("Turn scheduler loop returning")
		}
	}()

	var tick *time.Timer
	tickC := func() <-chan time.Time {
		if tick == nil {
			return nil
		}
		return tick.C
	}

	for {
		select {
		case <-t.chEndLoop:
			if tick != nil {
				tick.Stop()
			}
			return
		case msg := <-t.chReset:
			// A new turn began. Disarm the previous timer before arming.
			if tick != nil {
				tick.Stop()
			}
			tick = time.NewTimer(t.reminderInterval)
			t.store(msg, true)
		case <-t.chActed:
			// The seat acted. Acting always resets escalation, even after
			// timeout.
			if tick != nil {
				tick.Stop()
				tick = nil
			}
			t.store(TurnMsg{SeatNo: -1}, false)
		case <-tickC():
			cur, armed := t.Snapshot()
			if !armed {
				tick = nil
				break
			}
			cur.ReminderCount++
			crossed := !cur.TimedOut && cur.ReminderCount >= t.reminderLimit
			if crossed {
				cur.TimedOut = true
			}
			t.store(cur, true)

			turnSchedulerLogger.Debug().
				Str("sessionCode", t.sessionCode).
				Int("seatNo", cur.SeatNo).
				Uint32("reminders", cur.ReminderCount).
				Bool("timedOut", cur.TimedOut).
				Msg("Reminder interval elapsed")

			if crossed && t.onTimeout != nil {
				t.onTimeout(cur)
			}
			if t.onReminder != nil {
				t.onReminder(cur)
			}
			tick = time.NewTimer(t.reminderInterval)
		}
	}
}

// Reset starts escalation for a new human seat-turn.
func (t *TurnScheduler) Reset(msg TurnMsg) error {
	var errMsgs []string
	if msg.SeatNo < 0 {
		errMsgs = append(errMsgs, "invalid seatNo")
	}
	if msg.PlayerID == "" {
		errMsgs = append(errMsgs, "invalid playerID")
	}
	if len(errMsgs) > 0 {
		return fmt.Errorf(strings.Join(errMsgs, "; "))
	}
	msg.ReminderCount = 0
	msg.TimedOut = false
	t.chReset <- msg
	return nil
}

// PlayerActed cancels the active timer and clears timed-out status.
func (t *TurnScheduler) PlayerActed() {
	t.chActed <- true
}

// Snapshot returns the current turn record and whether a timer is armed.
func (t *TurnScheduler) Snapshot() (TurnMsg, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current, t.armed
}

// IsTimedOut reports whether the given seat's current turn has escalated past
// the reminder limit. Boot requests are gated on this predicate.
func (t *TurnScheduler) IsTimedOut(seatNo int) bool {
	cur, armed := t.Snapshot()
	return armed && cur.SeatNo == seatNo && cur.TimedOut
}

func (t *TurnScheduler) store(msg TurnMsg, armed bool) {
	t.mu.Lock()
	t.current = msg
	t.armed = armed
	t.mu.Unlock()
}
