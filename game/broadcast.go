package game

import (
	"cardroom.io/server/util"
)

// broadcastState pushes a freshly filtered snapshot to every connected human
// seat. The sequence number is incremented exactly once per call; all of the
// per-seat messages produced here carry that one value.
func (s *Session) broadcastState(events []RoundEvent) {
	s.sequence++
	msgID := s.generateMsgID("GAME_STATE", s.sequence)

	for _, seat := range s.seats {
		if !seat.IsHuman() || !seat.Connected {
			continue
		}
		s.receiver.SendMessageToPlayer(seat.PlayerID, &SessionMessage{
			SessionCode: s.code,
			MessageType: SessionGameState,
			MessageID:   msgID,
			Sequence:    s.sequence,
			GameState:   s.buildStateMessage(seat.SeatNo, events),
		})
	}
	util.Metrics.BroadcastSent()
}

// broadcastSeatUpdate announces a seat lifecycle change (disconnect,
// reconnect, AI takeover, restore) to everyone. Counts as one broadcast, so
// it bumps the sequence.
func (s *Session) broadcastSeatUpdate(seat *Seat, reason string) {
	s.sequence++
	s.receiver.BroadcastSessionMessage(&SessionMessage{
		SessionCode: s.code,
		MessageType: SessionSeatUpdate,
		MessageID:   s.generateMsgID("SEAT_UPDATE", s.sequence),
		Sequence:    s.sequence,
		SeatUpdate: &SeatUpdateMessage{
			SeatNo:  seat.SeatNo,
			Control: seat.Control,
			Name:    seat.Name,
			Reason:  reason,
		},
	})
	util.Metrics.BroadcastSent()
}

// buildStateMessage assembles the snapshot one viewer is allowed to see: the
// viewer's own hand, public counts for everyone else, and the timeout marker
// read live from the scheduler.
func (s *Session) buildStateMessage(viewerSeat int, events []RoundEvent) *GameStateMessage {
	timedOutSeat := NoSeat
	if cur, armed := s.scheduler.Snapshot(); armed && cur.TimedOut {
		timedOutSeat = cur.SeatNo
	}

	seats := make([]SeatStatus, len(s.seats))
	for i, seat := range s.seats {
		seats[i] = SeatStatus{
			SeatNo:    seat.SeatNo,
			Control:   seat.Control,
			Name:      seat.Name,
			Connected: seat.Connected,
			TimedOut:  seat.SeatNo == timedOutSeat,
		}
	}

	msg := &GameStateMessage{
		Phase:       s.Phase(),
		RoundNum:    s.roundNum,
		CurrentSeat: s.currentSeat,
		Seats:       seats,
		Scores:      append([]int32{}, s.scores...),
		Events:      events,
	}
	if s.round != nil {
		msg.View = s.rules.ViewForSeat(s.round, viewerSeat)
	}
	return msg
}

// resync re-sends the caller's authoritative view at the current sequence,
// plus a rebuilt turn notification when the caller is up. No mutation, no
// sequence bump; running inside the queue guarantees the state reflects the
// most recently completed action.
func (s *Session) resync(playerID string) {
	seat := s.seatOf(playerID)
	if seat == nil {
		s.receiver.SendMessageToPlayer(playerID, &SessionMessage{
			SessionCode: s.code,
			MessageType: SessionLost,
			MessageID:   s.generateMsgID("SESSION_LOST", s.sequence),
		})
		return
	}

	s.receiver.SendMessageToPlayer(playerID, &SessionMessage{
		SessionCode: s.code,
		MessageType: SessionGameState,
		MessageID:   s.generateMsgID("RESYNC", s.sequence),
		Sequence:    s.sequence,
		GameState:   s.buildStateMessage(seat.SeatNo, nil),
	})

	if s.gameOver {
		winnerName := ""
		if s.winnerSeat >= 0 && s.winnerSeat < len(s.seats) {
			winnerName = s.seats[s.winnerSeat].Name
		}
		s.receiver.SendMessageToPlayer(playerID, &SessionMessage{
			SessionCode: s.code,
			MessageType: SessionGameOver,
			MessageID:   s.generateMsgID("GAME_OVER", s.sequence),
			Sequence:    s.sequence,
			Terminal: &TerminalMessage{
				WinnerSeat:  s.winnerSeat,
				WinnerName:  winnerName,
				FinalScores: append([]int32{}, s.scores...),
				RoundsDealt: s.roundNum,
			},
		})
		return
	}

	if s.currentSeat == seat.SeatNo && seat.IsHuman() && s.actionablePhase() {
		cur, armed := s.scheduler.Snapshot()
		reminderCount := uint32(0)
		timedOut := false
		if armed && cur.SeatNo == seat.SeatNo {
			reminderCount = cur.ReminderCount
			timedOut = cur.TimedOut
		}
		s.sendTurnNotice(seat, reminderCount, timedOut)
	}
}
