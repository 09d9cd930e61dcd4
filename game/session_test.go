package game

import (
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardroom.io/server/cards"
)

// fakeEngine is a minimal deterministic variant: every seat plays exactly one
// card per round, seat 0 scores a point each round, and the game ends after a
// fixed number of rounds.
type fakeEngine struct {
	seats  int
	rounds int
}

type fakeRound struct {
	acted []bool
}

func (e *fakeEngine) Variant() string { return "fake" }
func (e *fakeEngine) NumSeats() int   { return e.seats }

func (e *fakeEngine) Deal(rng *rand.Rand, roundNum int, prev RoundState) (*DealResult, error) {
	return &DealResult{
		Round:     &fakeRound{acted: make([]bool, e.seats)},
		FirstSeat: 0,
		Phase:     PhasePlaying,
	}, nil
}

func (e *fakeEngine) LegalActions(state RoundState, seat int) []Action {
	rs := state.(*fakeRound)
	if rs.acted[seat] {
		return nil
	}
	return []Action{{Type: ActionPlay}}
}

func (e *fakeEngine) Apply(state RoundState, seat int, action Action) (*ApplyResult, error) {
	rs := state.(*fakeRound)
	if action.Type != ActionPlay {
		return nil, errors.New("fake variant only accepts plays")
	}
	if rs.acted[seat] {
		return nil, errors.Errorf("seat %d already acted", seat)
	}
	rs.acted[seat] = true
	for next := 0; next < e.seats; next++ {
		if !rs.acted[next] {
			return &ApplyResult{NextSeat: next, Phase: PhasePlaying}, nil
		}
	}
	return &ApplyResult{NextSeat: NoSeat, Phase: PhaseRoundComplete}, nil
}

func (e *fakeEngine) ScoreRound(state RoundState) *RoundResult {
	deltas := make([]int32, e.seats)
	deltas[0] = 1
	return &RoundResult{Deltas: deltas, Summary: "seat zero scores"}
}

func (e *fakeEngine) GameOver(scores []int32, roundNum int) (bool, int) {
	if roundNum >= e.rounds {
		return true, 0
	}
	return false, NoSeat
}

func (e *fakeEngine) ViewForSeat(state RoundState, seat int) *SeatView {
	rs := state.(*fakeRound)
	counts := make([]int, e.seats)
	for i, acted := range rs.acted {
		if !acted {
			counts[i] = 1
		}
	}
	view := &SeatView{HandCounts: counts}
	if seat >= 0 && seat < e.seats {
		// One marker card per seat so filtering is observable.
		view.Hand = []cards.Card{cards.NewCard(uint8(seat)+2, cards.Clubs)}
	}
	return view
}

type fakeStrategy struct{}

func (fakeStrategy) ChooseAction(view *SeatView, seat int, legal []Action) Action {
	return legal[0]
}

// recordingReceiver captures everything the session pushes out.
type recordingReceiver struct {
	mu         sync.Mutex
	broadcasts []*SessionMessage
	direct     map[string][]*SessionMessage
}

func newRecordingReceiver() *recordingReceiver {
	return &recordingReceiver{direct: make(map[string][]*SessionMessage)}
}

func (r *recordingReceiver) BroadcastSessionMessage(msg *SessionMessage) {
	r.mu.Lock()
	r.broadcasts = append(r.broadcasts, msg)
	r.mu.Unlock()
}

func (r *recordingReceiver) SendMessageToPlayer(playerID string, msg *SessionMessage) {
	r.mu.Lock()
	r.direct[playerID] = append(r.direct[playerID], msg)
	r.mu.Unlock()
}

func (r *recordingReceiver) countBroadcasts(msgType string, reason string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, m := range r.broadcasts {
		if m.MessageType != msgType {
			continue
		}
		if reason != "" && (m.SeatUpdate == nil || m.SeatUpdate.Reason != reason) {
			continue
		}
		n++
	}
	return n
}

func (r *recordingReceiver) countDirect(playerID string, msgType string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, m := range r.direct[playerID] {
		if m.MessageType == msgType {
			n++
		}
	}
	return n
}

func (r *recordingReceiver) lastDirect(playerID string, msgType string) *SessionMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	msgs := r.direct[playerID]
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].MessageType == msgType {
			return msgs[i]
		}
	}
	return nil
}

func (r *recordingReceiver) lastBroadcast(msgType string) *SessionMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.broadcasts) - 1; i >= 0; i-- {
		if r.broadcasts[i].MessageType == msgType {
			return r.broadcasts[i]
		}
	}
	return nil
}

type sinkRecorder struct {
	mu      sync.Mutex
	configs []*SessionConfig
	results []*TerminalMessage
}

func (s *sinkRecorder) RecordResult(config *SessionConfig, terminal *TerminalMessage) {
	s.mu.Lock()
	s.configs = append(s.configs, config)
	s.results = append(s.results, terminal)
	s.mu.Unlock()
}

func (s *sinkRecorder) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.results)
}

func waitFor(t *testing.T, what string, cond func() bool) {
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

func fastTiming() TimingConfig {
	return TimingConfig{
		ReminderIntervalSec: 1,
		ReminderLimit:       10,
		ReconnectGraceSec:   60,
		AIActionDelayMillis: 1,
		RoundPauseMillis:    1,
		DealPauseMillis:     1,
	}
}

func humanSeats(n int) []SeatConfig {
	seats := make([]SeatConfig, n)
	for i := range seats {
		seats[i] = SeatConfig{
			PlayerID: fmt.Sprintf("p%d", i),
			Name:     fmt.Sprintf("Player %d", i),
			IsHuman:  true,
		}
	}
	return seats
}

func startTestSession(
	t *testing.T,
	code string,
	timing TimingConfig,
	seats []SeatConfig,
	engine *fakeEngine,
	rec *recordingReceiver,
	sink ResultSink) (*Manager, *Session) {

	t.Helper()
	m, err := NewManager(timing, rec, sink)
	require.NoError(t, err)
	s, err := m.CreateSession(
		&SessionConfig{SessionCode: code, Variant: "fake", Seats: seats},
		engine, fakeStrategy{}, rec)
	require.NoError(t, err)
	s.Start()
	return m, s
}

func TestActionAcceptedOnlyFromCurrentSeat(t *testing.T) {
	t.Parallel()

	rec := newRecordingReceiver()
	_, s := startTestSession(t, "TURN01", fastTiming(), humanSeats(4),
		&fakeEngine{seats: 4, rounds: 100}, rec, nil)

	waitFor(t, "first deal", func() bool { return rec.countDirect("p0", SessionGameState) >= 1 })
	assert.Equal(t, uint64(1), s.Sequence())

	// Seat 1 is not up. The rejection must not advance the sequence.
	assert.False(t, s.SubmitAction("p1", Action{Type: ActionPlay}))
	assert.Equal(t, uint64(1), s.Sequence())
	assert.Equal(t, 0, s.currentSeat)

	assert.True(t, s.SubmitAction("p0", Action{Type: ActionPlay}))
	assert.Equal(t, uint64(2), s.Sequence())
	assert.Equal(t, 1, s.currentSeat)

	// An illegal action from the right seat is also rejected without a bump.
	assert.False(t, s.SubmitAction("p1", Action{Type: ActionBid}))
	assert.Equal(t, uint64(2), s.Sequence())
}

func TestStateBroadcastsAreFilteredPerSeat(t *testing.T) {
	t.Parallel()

	rec := newRecordingReceiver()
	startTestSession(t, "FILT01", fastTiming(), humanSeats(4),
		&fakeEngine{seats: 4, rounds: 100}, rec, nil)

	waitFor(t, "first deal", func() bool {
		for i := 0; i < 4; i++ {
			if rec.countDirect(fmt.Sprintf("p%d", i), SessionGameState) == 0 {
				return false
			}
		}
		return true
	})

	for i := 0; i < 4; i++ {
		msg := rec.lastDirect(fmt.Sprintf("p%d", i), SessionGameState)
		require.NotNil(t, msg.GameState)
		require.NotNil(t, msg.GameState.View)
		require.Len(t, msg.GameState.View.Hand, 1)
		assert.Equal(t, cards.NewCard(uint8(i)+2, cards.Clubs), msg.GameState.View.Hand[0])
		assert.Equal(t, []int{1, 1, 1, 1}, msg.GameState.View.HandCounts)
	}
}

func TestBootRequiresTimeoutThenHandsSeatToAI(t *testing.T) {
	t.Parallel()

	timing := fastTiming()
	timing.ReminderLimit = 1
	rec := newRecordingReceiver()
	m, s := startTestSession(t, "BOOT01", timing, humanSeats(4),
		&fakeEngine{seats: 4, rounds: 100}, rec, nil)

	waitFor(t, "first deal", func() bool { return rec.countDirect("p0", SessionGameState) >= 1 })

	// Not timed out yet.
	assert.False(t, m.BootPlayer("p1", "BOOT01", 0))

	waitFor(t, "seat 0 timeout broadcast", func() bool {
		return rec.countBroadcasts(SessionSeatTimedOut, "") >= 1
	})
	timedOut := rec.lastBroadcast(SessionSeatTimedOut)
	assert.Equal(t, 0, timedOut.SeatUpdate.SeatNo)

	seqBefore := s.Sequence()
	assert.True(t, m.BootPlayer("p1", "BOOT01", 0))

	// One bump for the seat update, one for the AI move that follows.
	waitFor(t, "AI move after boot", func() bool { return rec.countDirect("p1", SessionYourTurn) >= 1 })
	assert.Equal(t, seqBefore+2, s.Sequence())
	assert.Equal(t, ControlAI, s.seats[0].Control)
	assert.Equal(t, 1, s.currentSeat)
	assert.Equal(t, 1, rec.countBroadcasts(SessionSeatUpdate, SeatUpdateReplacedAI))

	// A second boot of the same seat is a no-op.
	assert.False(t, m.BootPlayer("p1", "BOOT01", 0))
}

func TestDisconnectStartsGraceAndReconnectRestores(t *testing.T) {
	t.Parallel()

	rec := newRecordingReceiver()
	m, s := startTestSession(t, "DISC01", fastTiming(), humanSeats(4),
		&fakeEngine{seats: 4, rounds: 100}, rec, nil)

	waitFor(t, "first deal", func() bool { return rec.countDirect("p0", SessionGameState) >= 1 })

	m.HandleDisconnect("p1")
	waitFor(t, "disconnect broadcast", func() bool {
		return rec.countBroadcasts(SessionSeatUpdate, SeatUpdateDisconnected) >= 1
	})
	assert.False(t, s.seats[1].Connected)
	assert.Equal(t, ControlHuman, s.seats[1].Control)
	assert.Equal(t, 1, m.DisconnectRegistry().Count())

	assert.True(t, m.HandleReconnect("p1"))
	waitFor(t, "reconnect broadcast", func() bool {
		return rec.countBroadcasts(SessionSeatUpdate, SeatUpdateReconnected) >= 1
	})
	assert.True(t, s.seats[1].Connected)
	assert.Equal(t, 0, m.DisconnectRegistry().Count())

	// The reconnect answer includes a resync of the caller's view.
	resync := rec.lastDirect("p1", SessionGameState)
	require.NotNil(t, resync)
	require.NotNil(t, resync.GameState.View)
	assert.Equal(t, cards.NewCard(3, cards.Clubs), resync.GameState.View.Hand[0])

	// Reconnecting while already connected resyncs and succeeds quietly.
	assert.True(t, m.HandleReconnect("p1"))
	assert.Equal(t, 1, rec.countBroadcasts(SessionSeatUpdate, SeatUpdateReconnected))
}

func TestGraceExpiryHandsSeatToAIPermanently(t *testing.T) {
	t.Parallel()

	timing := fastTiming()
	timing.ReconnectGraceSec = 1
	rec := newRecordingReceiver()
	m, s := startTestSession(t, "GRACE1", timing, humanSeats(4),
		&fakeEngine{seats: 4, rounds: 100}, rec, nil)

	waitFor(t, "first deal", func() bool { return rec.countDirect("p0", SessionGameState) >= 1 })

	// Seat 0 holds the turn; losing it mid-turn must not stall the game.
	m.HandleDisconnect("p0")
	waitFor(t, "AI takeover", func() bool {
		return rec.countBroadcasts(SessionSeatUpdate, SeatUpdateReplacedAI) >= 1
	})
	assert.Equal(t, 0, m.DisconnectRegistry().Count())

	// The AI finishes the held turn.
	waitFor(t, "turn moves on", func() bool { return rec.countDirect("p1", SessionYourTurn) >= 1 })
	assert.Equal(t, ControlAI, s.seats[0].Control)
	assert.Equal(t, 1, s.currentSeat)

	// The identity can still reclaim the seat afterwards.
	assert.True(t, m.HandleReconnect("p0"))
	waitFor(t, "restore broadcast", func() bool {
		return rec.countBroadcasts(SessionSeatUpdate, SeatUpdateRestored) >= 1
	})
	assert.Equal(t, ControlHuman, s.seats[0].Control)
	assert.True(t, s.seats[0].Connected)
}

func TestResyncRepeatsStateWithoutSequenceBump(t *testing.T) {
	t.Parallel()

	rec := newRecordingReceiver()
	m, s := startTestSession(t, "SYNC01", fastTiming(), humanSeats(4),
		&fakeEngine{seats: 4, rounds: 100}, rec, nil)

	waitFor(t, "first deal", func() bool { return rec.countDirect("p0", SessionGameState) >= 1 })
	before := s.Sequence()
	notices := rec.countDirect("p0", SessionYourTurn)

	m.RequestResync("p0")
	waitFor(t, "resync answer", func() bool {
		return rec.countDirect("p0", SessionGameState) >= 2
	})

	msg := rec.lastDirect("p0", SessionGameState)
	assert.Equal(t, before, msg.Sequence)
	assert.Equal(t, before, s.Sequence())

	// p0 holds the turn, so the resync also rebuilds the turn notice.
	waitFor(t, "rebuilt turn notice", func() bool {
		return rec.countDirect("p0", SessionYourTurn) > notices
	})
	notice := rec.lastDirect("p0", SessionYourTurn)
	require.NotNil(t, notice.TurnNotice)
	assert.Equal(t, 0, notice.TurnNotice.SeatNo)
	assert.NotEmpty(t, notice.TurnNotice.LegalActions)
}

func TestStaleSessionCodeGetsSessionLost(t *testing.T) {
	t.Parallel()

	rec := newRecordingReceiver()
	m, err := NewManager(fastTiming(), rec, nil)
	require.NoError(t, err)

	assert.False(t, m.SubmitAction("ghost", "NOSUCH", Action{Type: ActionPlay}))
	waitFor(t, "session lost answer", func() bool {
		return rec.countDirect("ghost", SessionLost) >= 1
	})
	msg := rec.lastDirect("ghost", SessionLost)
	assert.Nil(t, msg.Terminal)
}

func TestAllAISessionRunsToCompletion(t *testing.T) {
	t.Parallel()

	seats := make([]SeatConfig, 4)
	for i := range seats {
		seats[i] = SeatConfig{Name: fmt.Sprintf("Bot %d", i)}
	}
	rec := newRecordingReceiver()
	sink := &sinkRecorder{}
	m, _ := startTestSession(t, "AIRUN1", fastTiming(), seats,
		&fakeEngine{seats: 4, rounds: 2}, rec, sink)

	waitFor(t, "game completion", func() bool { return sink.count() >= 1 })

	sink.mu.Lock()
	terminal := sink.results[0]
	sink.mu.Unlock()
	assert.Equal(t, 0, terminal.WinnerSeat)
	assert.Equal(t, "Bot 0", terminal.WinnerName)
	assert.Equal(t, 2, terminal.RoundsDealt)
	assert.Equal(t, []int32{2, 0, 0, 0}, terminal.FinalScores)

	waitFor(t, "session archived", func() bool { return m.ActiveSessionCount() == 0 })
	gameOver := rec.lastBroadcast(SessionGameOver)
	require.NotNil(t, gameOver)
	assert.Equal(t, terminal, gameOver.Terminal)
}

func TestResyncAfterGameOverCarriesTerminalResult(t *testing.T) {
	t.Parallel()

	seats := humanSeats(1)
	for i := 1; i < 4; i++ {
		seats = append(seats, SeatConfig{Name: fmt.Sprintf("Bot %d", i)})
	}
	rec := newRecordingReceiver()
	sink := &sinkRecorder{}
	m, s := startTestSession(t, "TERM01", fastTiming(), seats,
		&fakeEngine{seats: 4, rounds: 1}, rec, sink)

	waitFor(t, "human turn", func() bool { return rec.countDirect("p0", SessionYourTurn) >= 1 })
	assert.True(t, s.SubmitAction("p0", Action{Type: ActionPlay}))

	waitFor(t, "game completion", func() bool { return sink.count() >= 1 })
	waitFor(t, "session archived", func() bool { return m.ActiveSessionCount() == 0 })

	m.RequestResync("p0")
	waitFor(t, "session lost answer", func() bool { return rec.countDirect("p0", SessionLost) >= 1 })
	msg := rec.lastDirect("p0", SessionLost)
	require.NotNil(t, msg.Terminal)
	assert.Equal(t, 0, msg.Terminal.WinnerSeat)
	assert.Equal(t, 1, msg.Terminal.RoundsDealt)
}

func TestSeatSignalsAfterGameOverDoNotMutate(t *testing.T) {
	t.Parallel()

	seats := humanSeats(1)
	for i := 1; i < 4; i++ {
		seats = append(seats, SeatConfig{Name: fmt.Sprintf("Bot %d", i)})
	}
	rec := newRecordingReceiver()
	sink := &sinkRecorder{}
	m, s := startTestSession(t, "DEAD01", fastTiming(), seats,
		&fakeEngine{seats: 4, rounds: 1}, rec, sink)

	waitFor(t, "human turn", func() bool { return rec.countDirect("p0", SessionYourTurn) >= 1 })
	assert.True(t, s.SubmitAction("p0", Action{Type: ActionPlay}))
	waitFor(t, "game completion", func() bool { return sink.count() >= 1 })
	waitFor(t, "session archived", func() bool { return m.ActiveSessionCount() == 0 })

	// The transport can still hold the session pointer it fetched before the
	// game ended. Late seat signals on it must not touch state, the sequence,
	// or the disconnect registry.
	seqBefore := s.Sequence()
	s.PlayerDisconnected("p0")
	assert.False(t, s.PlayerReconnected("p0"))

	assert.Equal(t, seqBefore, s.Sequence())
	assert.True(t, s.seats[0].Connected)
	assert.Equal(t, ControlHuman, s.seats[0].Control)
	assert.Equal(t, 0, rec.countBroadcasts(SessionSeatUpdate, SeatUpdateDisconnected))
	assert.Equal(t, 0, m.DisconnectRegistry().Count())
}

func TestVoluntaryLeaveHandsSeatToAI(t *testing.T) {
	t.Parallel()

	rec := newRecordingReceiver()
	m, s := startTestSession(t, "LEAVE1", fastTiming(), humanSeats(4),
		&fakeEngine{seats: 4, rounds: 100}, rec, nil)

	waitFor(t, "first deal", func() bool { return rec.countDirect("p0", SessionGameState) >= 1 })

	m.HandleLeave("p2")
	waitFor(t, "AI takeover", func() bool {
		return rec.countBroadcasts(SessionSeatUpdate, SeatUpdateReplacedAI) >= 1
	})
	assert.Equal(t, ControlAI, s.seats[2].Control)
	assert.Equal(t, 0, m.DisconnectRegistry().Count())
}
