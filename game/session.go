package game

import (
	"math/rand"
	"time"

	"github.com/looplab/fsm"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"cardroom.io/server/timer"
	"cardroom.io/server/util"
	"cardroom.io/server/util/random"
)

var sessionLogger = log.With().Str("logger_name", "game::session").Logger()

// Session is the authoritative runtime for one match. All mutable fields
// below the marker are touched only from inside queued actions; the public
// methods wrap every mutation in CommandQueue.Enqueue so concurrent client
// messages never interleave.
type Session struct {
	code      string
	config    *SessionConfig
	timing    TimingConfig
	rules     RulesEngine
	strategy  Strategy
	queue     *CommandQueue
	scheduler *timer.TurnScheduler
	registry  *DisconnectRegistry
	receiver  MessageReceiver
	manager   *Manager
	rng       *rand.Rand
	logger    zerolog.Logger

	// Mutable state. Queue-serialized.
	seats       []*Seat
	phase       *fsm.FSM
	round       RoundState
	roundNum    int
	scores      []int32
	currentSeat int
	sequence    uint64
	gameOver    bool
	winnerSeat  int
}

// MessageReceiver delivers session output to the transport. BroadcastSessionMessage
// reaches every connected participant; SendMessageToPlayer reaches one.
type MessageReceiver interface {
	BroadcastSessionMessage(msg *SessionMessage)
	SendMessageToPlayer(playerID string, msg *SessionMessage)
}

func NewSession(
	manager *Manager,
	config *SessionConfig,
	rules RulesEngine,
	strategy Strategy,
	receiver MessageReceiver) (*Session, error) {

	if len(config.Seats) != rules.NumSeats() {
		return nil, errors.Errorf("variant %s needs %d seats, got %d",
			rules.Variant(), rules.NumSeats(), len(config.Seats))
	}

	s := &Session{
		code:        config.SessionCode,
		config:      config,
		timing:      manager.timing,
		rules:       rules,
		strategy:    strategy,
		queue:       manager.queue,
		registry:    manager.registry,
		receiver:    receiver,
		manager:     manager,
		rng:         rand.New(random.NewSource()),
		currentSeat: NoSeat,
		winnerSeat:  NoSeat,
		scores:      make([]int32, rules.NumSeats()),
		phase:       newPhaseFSM(),
	}
	s.logger = sessionLogger.With().
		Str("sessionCode", s.code).
		Str("variant", rules.Variant()).
		Logger()

	s.seats = make([]*Seat, len(config.Seats))
	for i, sc := range config.Seats {
		control := ControlAI
		if sc.IsHuman {
			control = ControlHuman
		}
		s.seats[i] = &Seat{
			SeatNo:    i,
			Control:   control,
			PlayerID:  sc.PlayerID,
			Name:      sc.Name,
			Connected: sc.IsHuman,
		}
	}

	s.scheduler = timer.NewTurnScheduler(
		s.code,
		s.timing.ReminderInterval(),
		s.timing.ReminderLimit,
		s.onReminderFired,
		s.onTurnTimedOut,
		func() {
			s.logger.Error().Msg("Turn scheduler crashed. Session keeps running without reminders")
		})
	s.scheduler.Run()

	return s, nil
}

func newPhaseFSM() *fsm.FSM {
	return fsm.NewFSM(
		string(PhaseDealing),
		fsm.Events{
			{Name: "begin_bidding", Src: []string{string(PhaseDealing)}, Dst: string(PhaseBidding)},
			{Name: "begin_exchange", Src: []string{string(PhaseDealing)}, Dst: string(PhaseExchange)},
			{Name: "begin_playing", Src: []string{string(PhaseDealing), string(PhaseBidding), string(PhaseExchange)}, Dst: string(PhasePlaying)},
			{Name: "complete_round", Src: []string{string(PhaseBidding), string(PhaseExchange), string(PhasePlaying)}, Dst: string(PhaseRoundComplete)},
			{Name: "next_round", Src: []string{string(PhaseRoundComplete)}, Dst: string(PhaseDealing)},
			{Name: "end_game", Src: []string{string(PhaseRoundComplete)}, Dst: string(PhaseGameOver)},
		},
		fsm.Callbacks{},
	)
}

var phaseEvents = map[Phase]string{
	PhaseBidding:       "begin_bidding",
	PhaseExchange:      "begin_exchange",
	PhasePlaying:       "begin_playing",
	PhaseRoundComplete: "complete_round",
	PhaseDealing:       "next_round",
	PhaseGameOver:      "end_game",
}

func (s *Session) enterPhase(target Phase) {
	if Phase(s.phase.Current()) == target {
		return
	}
	event, ok := phaseEvents[target]
	if !ok {
		s.logger.Error().Str("phase", string(target)).Msg("Unknown phase requested")
		return
	}
	if err := s.phase.Event(event); err != nil {
		s.logger.Error().
			Str("from", s.phase.Current()).
			Str("to", string(target)).
			Msgf("Illegal phase transition: %v", err)
	}
}

func (s *Session) Phase() Phase {
	return Phase(s.phase.Current())
}

func (s *Session) Code() string {
	return s.code
}

func (s *Session) Variant() string {
	return s.rules.Variant()
}

func (s *Session) NumSeats() int {
	return len(s.seats)
}

// Sequence is exposed for tests and operational queries; reading it races
// in-flight actions by design (it is only ever observed, never branched on).
func (s *Session) Sequence() uint64 {
	return s.sequence
}

// Start deals the first round. Like every mutation it goes through the queue,
// so actions arriving during startup line up behind the deal.
func (s *Session) Start() {
	s.queue.Enqueue(s.code, func() {
		s.deal()
	})
}

// SubmitAction applies one player action. It returns only after the action
// was either rejected or fully applied and broadcast.
func (s *Session) SubmitAction(playerID string, action Action) bool {
	resultCh := make(chan bool, 1)
	s.queue.Enqueue(s.code, func() {
		resultCh <- s.applyPlayerAction(playerID, action)
	})
	return <-resultCh
}

// RequestResync re-sends the caller's current filtered view, plus a fresh
// turn notification if it is the caller's turn. Never mutates.
func (s *Session) RequestResync(playerID string) {
	s.queue.Enqueue(s.code, func() {
		s.resync(playerID)
	})
}

// BootPlayer force-replaces a timed-out seat with AI. Any seated human may
// request it; the only gate is the timeout predicate at execution time.
func (s *Session) BootPlayer(requestorID string, seatNo int) bool {
	resultCh := make(chan bool, 1)
	s.queue.Enqueue(s.code, func() {
		resultCh <- s.bootPlayer(requestorID, seatNo)
	})
	return <-resultCh
}

// Leave is a voluntary surrender of the seat to AI control.
func (s *Session) Leave(playerID string) {
	s.queue.Enqueue(s.code, func() {
		seat := s.seatOf(playerID)
		if seat == nil {
			return
		}
		s.registry.Resolve(playerID)
		s.replaceWithAI(seat.SeatNo, SeatUpdateReplacedAI)
	})
}

// PlayerDisconnected is driven by transport-level connection loss. The seat
// is not converted; a grace timer starts and the turn clock keeps running.
func (s *Session) PlayerDisconnected(playerID string) {
	s.queue.Enqueue(s.code, func() {
		if s.gameOver {
			// No grace record for a finished game; nothing left to hold.
			return
		}
		seat := s.seatOf(playerID)
		if seat == nil || !seat.IsHuman() || !seat.Connected {
			return
		}
		seat.Connected = false
		s.registry.MarkDisconnected(playerID, s.code, seat.SeatNo)
		s.broadcastSeatUpdate(seat, SeatUpdateDisconnected)
	})
}

// PlayerReconnected restores the identity's seat. Returns false when the
// identity has no seat here (the caller should answer with a session-lost
// signal). The seat-still-AI check happens at restoration time, inside the
// queue, so a racing AI move and a reconnect serialize cleanly. A duplicate
// restore is a no-op success.
func (s *Session) PlayerReconnected(playerID string) bool {
	resultCh := make(chan bool, 1)
	s.queue.Enqueue(s.code, func() {
		resultCh <- s.restoreHumanPlayer(playerID)
	})
	return <-resultCh
}

func (s *Session) seatOf(playerID string) *Seat {
	for _, seat := range s.seats {
		if seat.OwnedBy(playerID) {
			return seat
		}
	}
	return nil
}

func (s *Session) actionablePhase() bool {
	switch s.Phase() {
	case PhaseBidding, PhaseExchange, PhasePlaying:
		return true
	}
	return false
}

// ---- queued internals below. Every function here runs inside the command
// queue and may touch mutable state freely. ----

func (s *Session) deal() {
	if s.gameOver {
		return
	}
	s.enterPhase(PhaseDealing)

	result, err := s.rules.Deal(s.rng, s.roundNum+1, s.round)
	if err != nil {
		s.logger.Error().Msgf("Deal failed: %v", err)
		return
	}
	s.roundNum++
	s.round = result.Round
	s.enterPhase(result.Phase)
	s.currentSeat = result.FirstSeat

	s.logger.Info().
		Int("roundNum", s.roundNum).
		Str("phase", string(result.Phase)).
		Int("firstSeat", result.FirstSeat).
		Msg("New round dealt")

	s.broadcastState(result.Events)
	s.notifyTurn()
}

func (s *Session) applyPlayerAction(playerID string, action Action) bool {
	if s.gameOver {
		s.rejected(playerID, WrongPhaseError{Phase: PhaseGameOver})
		return false
	}
	if !s.actionablePhase() || s.currentSeat == NoSeat {
		s.rejected(playerID, WrongPhaseError{Phase: s.Phase()})
		return false
	}
	seat := s.seats[s.currentSeat]
	if !seat.IsHuman() || !seat.OwnedBy(playerID) {
		s.rejected(playerID, NotYourTurnError{SeatNo: s.currentSeat, PlayerID: playerID})
		return false
	}
	return s.applySeatAction(seat.SeatNo, action)
}

func (s *Session) rejected(playerID string, reason error) {
	util.Metrics.ActionRejected()
	s.logger.Debug().
		Str("playerID", playerID).
		Msgf("Action rejected: %v", reason)
}

// applySeatAction is the shared apply path for human and AI moves.
func (s *Session) applySeatAction(seatNo int, action Action) bool {
	result, err := s.rules.Apply(s.round, seatNo, action)
	if err != nil {
		util.Metrics.ActionRejected()
		s.logger.Debug().
			Int("seatNo", seatNo).
			Str("actionType", string(action.Type)).
			Msgf("Rules engine rejected action: %v", err)
		return false
	}

	if s.seats[seatNo].IsHuman() {
		s.scheduler.PlayerActed()
	}
	util.Metrics.ActionApplied()

	if result.Phase == PhaseRoundComplete {
		s.completeRound(result)
		return true
	}

	s.enterPhase(result.Phase)
	s.currentSeat = result.NextSeat
	s.broadcastState(result.Events)
	s.notifyTurn()
	return true
}

func (s *Session) completeRound(result *ApplyResult) {
	s.enterPhase(PhaseRoundComplete)
	s.currentSeat = NoSeat

	roundResult := s.rules.ScoreRound(s.round)
	for i, delta := range roundResult.Deltas {
		if i < len(s.scores) {
			s.scores[i] += delta
		}
	}

	events := append(result.Events, RoundEvent{
		Type: "ROUND_RESULT",
		Seat: NoSeat,
		Note: roundResult.Summary,
	})

	s.logger.Info().
		Int("roundNum", s.roundNum).
		Msgf("Round complete: %s scores=%v", roundResult.Summary, s.scores)

	s.broadcastState(events)

	over, winnerSeat := s.rules.GameOver(s.scores, s.roundNum)
	if over {
		s.endGame(winnerSeat)
		return
	}

	// Pacing pause before the next deal. The deal reenters the queue so a
	// late action from the finished round cannot race it.
	pause := s.timing.RoundPause()
	if util.Env.ShouldDisablePacing() {
		pause = 0
	}
	time.AfterFunc(pause, func() {
		s.queue.Enqueue(s.code, func() {
			s.deal()
		})
	})
}

func (s *Session) endGame(winnerSeat int) {
	s.enterPhase(PhaseGameOver)
	s.gameOver = true
	s.winnerSeat = winnerSeat
	s.currentSeat = NoSeat
	s.scheduler.Destroy()

	winnerName := ""
	if winnerSeat >= 0 && winnerSeat < len(s.seats) {
		winnerName = s.seats[winnerSeat].Name
	}
	terminal := &TerminalMessage{
		WinnerSeat:  winnerSeat,
		WinnerName:  winnerName,
		FinalScores: append([]int32{}, s.scores...),
		RoundsDealt: s.roundNum,
	}

	s.logger.Info().
		Int("winnerSeat", winnerSeat).
		Msgf("Game over. Final scores: %v", s.scores)

	s.sequence++
	s.receiver.BroadcastSessionMessage(&SessionMessage{
		SessionCode: s.code,
		MessageType: SessionGameOver,
		MessageID:   s.generateMsgID("GAME_OVER", s.sequence),
		Sequence:    s.sequence,
		Terminal:    terminal,
	})
	util.Metrics.BroadcastSent()

	s.manager.sessionEnded(s, terminal)
}

// notifyTurn hands the turn to the current seat: a turn notice plus reminder
// escalation for humans, a pacing-delayed strategy call for AI.
func (s *Session) notifyTurn() {
	if s.currentSeat == NoSeat || !s.actionablePhase() {
		return
	}
	seat := s.seats[s.currentSeat]
	if !seat.IsHuman() {
		s.scheduleAITurn(seat.SeatNo)
		return
	}

	s.sendTurnNotice(seat, 0, false)
	if err := s.scheduler.Reset(timer.TurnMsg{SeatNo: seat.SeatNo, PlayerID: seat.PlayerID}); err != nil {
		s.logger.Error().Msgf("Failed to arm turn scheduler: %v", err)
	}
}

// sendTurnNotice builds the notification from live state. Legal actions are
// recomputed on every call; a reminder must never replay a cached set.
func (s *Session) sendTurnNotice(seat *Seat, reminderCount uint32, timedOut bool) {
	notice := &TurnNoticeMessage{
		SeatNo:        seat.SeatNo,
		Phase:         s.Phase(),
		LegalActions:  s.rules.LegalActions(s.round, seat.SeatNo),
		ReminderCount: reminderCount,
		TimedOut:      timedOut,
	}
	s.receiver.SendMessageToPlayer(seat.PlayerID, &SessionMessage{
		SessionCode: s.code,
		MessageType: SessionYourTurn,
		MessageID:   s.generateMsgID("YOUR_TURN", s.sequence),
		Sequence:    s.sequence,
		TurnNotice:  notice,
	})
}

func (s *Session) scheduleAITurn(seatNo int) {
	delay := s.timing.AIActionDelay()
	if util.Env.ShouldDisablePacing() {
		delay = 0
	}
	time.AfterFunc(delay, func() {
		s.queue.Enqueue(s.code, func() {
			s.runAITurn(seatNo)
		})
	})
}

// runAITurn re-checks everything at execution time: the seat may have been
// restored to a human, or the turn may have moved on, between scheduling and
// now.
func (s *Session) runAITurn(seatNo int) {
	if s.gameOver || !s.actionablePhase() || s.currentSeat != seatNo {
		return
	}
	seat := s.seats[seatNo]
	if seat.IsHuman() {
		return
	}

	legal := s.rules.LegalActions(s.round, seatNo)
	if len(legal) == 0 {
		s.logger.Error().Int("seatNo", seatNo).Msg("AI seat has no legal actions; game may stall")
		return
	}
	view := s.rules.ViewForSeat(s.round, seatNo)
	action := s.strategy.ChooseAction(view, seatNo, legal)
	if s.applySeatAction(seatNo, action) {
		return
	}

	// The strategy produced an illegal move. Keep the game alive with the
	// first legal action.
	s.logger.Warn().
		Int("seatNo", seatNo).
		Str("actionType", string(action.Type)).
		Msg("Strategy chose an illegal action. Falling back to first legal action")
	s.applySeatAction(seatNo, legal[0])
}

func (s *Session) bootPlayer(requestorID string, seatNo int) bool {
	if s.gameOver || seatNo < 0 || seatNo >= len(s.seats) {
		return false
	}
	requestor := s.seatOf(requestorID)
	if requestor == nil || !requestor.IsHuman() || !requestor.Connected {
		return false
	}
	if !s.scheduler.IsTimedOut(seatNo) {
		s.rejected(requestorID, SeatNotTimedOutError{SeatNo: seatNo})
		return false
	}
	if !s.seats[seatNo].IsHuman() {
		// A concurrent boot already converted the seat. Harmless no-op.
		return false
	}
	s.logger.Info().
		Int("seatNo", seatNo).
		Str("playerID", requestorID).
		Msg("Timed-out seat booted by participant")
	s.replaceWithAI(seatNo, SeatUpdateReplacedAI)
	return true
}

// replaceWithAI converts a seat to AI control. Idempotent; used for voluntary
// leave, boot, and grace-period expiry.
func (s *Session) replaceWithAI(seatNo int, reason string) {
	if s.gameOver || seatNo < 0 || seatNo >= len(s.seats) {
		return
	}
	seat := s.seats[seatNo]
	if !seat.IsHuman() {
		return
	}
	seat.Control = ControlAI
	seat.Connected = false

	if s.currentSeat == seatNo {
		// Clears the armed timer and the timed-out flag.
		s.scheduler.PlayerActed()
	}
	util.Metrics.SeatReplacedWithAI()

	s.broadcastSeatUpdate(seat, reason)

	if s.currentSeat == seatNo && s.actionablePhase() {
		s.scheduleAITurn(seatNo)
	}
}

func (s *Session) restoreHumanPlayer(playerID string) bool {
	if s.gameOver {
		// The caller answers with a session-lost signal carrying the result.
		return false
	}
	seat := s.seatOf(playerID)
	if seat == nil {
		return false
	}
	s.registry.Resolve(playerID)

	if seat.IsHuman() && seat.Connected {
		// Duplicate restore. Answer with a resync and succeed.
		s.logger.Debug().Msgf("Restore is a no-op: %v", SeatNotAIError{SeatNo: seat.SeatNo})
		s.resync(playerID)
		return true
	}

	if seat.IsHuman() {
		seat.Connected = true
		s.broadcastSeatUpdate(seat, SeatUpdateReconnected)
		s.resync(playerID)
		return true
	}

	// The seat went to AI while the player was away. Take it back.
	seat.Control = ControlHuman
	seat.Connected = true
	s.broadcastSeatUpdate(seat, SeatUpdateRestored)
	s.resync(playerID)

	if s.currentSeat == seat.SeatNo && s.actionablePhase() {
		s.sendTurnNotice(seat, 0, false)
		if err := s.scheduler.Reset(timer.TurnMsg{SeatNo: seat.SeatNo, PlayerID: seat.PlayerID}); err != nil {
			s.logger.Error().Msgf("Failed to re-arm turn scheduler after restore: %v", err)
		}
	}
	return true
}

// onReminderFired runs on the scheduler goroutine; the actual notification is
// rebuilt inside the queue from current state.
func (s *Session) onReminderFired(msg timer.TurnMsg) {
	s.queue.Enqueue(s.code, func() {
		if s.gameOver || s.currentSeat != msg.SeatNo {
			return
		}
		seat := s.seats[msg.SeatNo]
		if !seat.IsHuman() {
			return
		}
		s.logger.Debug().
			Int("seatNo", msg.SeatNo).
			Uint32("reminders", msg.ReminderCount).
			Msg("Re-sending turn notification")
		s.sendTurnNotice(seat, msg.ReminderCount, msg.TimedOut)
	})
}

// onTurnTimedOut marks the escalation visible to every participant. The seat
// is not forced to move; timeout only makes it boot-eligible.
func (s *Session) onTurnTimedOut(msg timer.TurnMsg) {
	s.queue.Enqueue(s.code, func() {
		if s.gameOver || s.currentSeat != msg.SeatNo {
			return
		}
		seat := s.seats[msg.SeatNo]
		if !seat.IsHuman() {
			return
		}
		s.logger.Info().
			Int("seatNo", msg.SeatNo).
			Str("playerID", seat.PlayerID).
			Msg("Seat timed out and is now eligible for boot")
		s.sequence++
		s.receiver.BroadcastSessionMessage(&SessionMessage{
			SessionCode: s.code,
			MessageType: SessionSeatTimedOut,
			MessageID:   s.generateMsgID("SEAT_TIMED_OUT", s.sequence),
			Sequence:    s.sequence,
			SeatUpdate: &SeatUpdateMessage{
				SeatNo:  seat.SeatNo,
				Control: seat.Control,
				Name:    seat.Name,
				Reason:  SeatUpdateTimedOut,
			},
		})
		util.Metrics.BroadcastSent()
	})
}
