package game

import (
	"fmt"
	"time"
)

// Messages from players to the session.
const (
	PlayerActed   string = "ACTION"
	PlayerResync  string = "RESYNC"
	PlayerBoot    string = "BOOT"
	PlayerLeave   string = "LEAVE"
	PlayerRejoin  string = "REJOIN"
	PlayerOffline string = "OFFLINE"
)

// Messages from the session to players.
const (
	SessionGameState    string = "GAME_STATE"
	SessionYourTurn     string = "YOUR_TURN"
	SessionSeatUpdate   string = "SEAT_UPDATE"
	SessionSeatTimedOut string = "SEAT_TIMED_OUT"
	SessionGameOver     string = "GAME_OVER"
	SessionLost         string = "SESSION_LOST"
)

// Seat update reasons.
const (
	SeatUpdateDisconnected string = "DISCONNECTED"
	SeatUpdateReconnected  string = "RECONNECTED"
	SeatUpdateReplacedAI   string = "REPLACED_WITH_AI"
	SeatUpdateRestored     string = "RESTORED_HUMAN"
	SeatUpdateTimedOut     string = "TIMED_OUT"
)

// PlayerMessage is the wire envelope for anything a client sends to the
// session layer.
type PlayerMessage struct {
	SessionCode string  `json:"sessionCode"`
	MessageType string  `json:"messageType"`
	MessageID   string  `json:"messageId,omitempty"`
	PlayerID    string  `json:"playerId"`
	Action      *Action `json:"action,omitempty"`
	SeatNo      int     `json:"seatNo,omitempty"` // target seat for BOOT
}

// SessionMessage is the wire envelope for everything the session pushes out.
// Exactly one payload pointer is set, selected by MessageType.
type SessionMessage struct {
	SessionCode string `json:"sessionCode"`
	MessageType string `json:"messageType"`
	MessageID   string `json:"messageId"`
	Sequence    uint64 `json:"seq,omitempty"`

	GameState  *GameStateMessage  `json:"gameState,omitempty"`
	TurnNotice *TurnNoticeMessage `json:"turnNotice,omitempty"`
	SeatUpdate *SeatUpdateMessage `json:"seatUpdate,omitempty"`
	Terminal   *TerminalMessage   `json:"terminal,omitempty"`
}

// SeatStatus is the public view of one seat inside a state snapshot.
type SeatStatus struct {
	SeatNo    int         `json:"seatNo"`
	Control   SeatControl `json:"control"`
	Name      string      `json:"name"`
	Connected bool        `json:"connected"`
	TimedOut  bool        `json:"timedOut"`
}

// GameStateMessage is the per-viewer filtered snapshot. View carries the
// recipient's own hand; everyone else appears only as counts.
type GameStateMessage struct {
	Phase       Phase        `json:"phase"`
	RoundNum    int          `json:"roundNum"`
	CurrentSeat int          `json:"currentSeat"`
	Seats       []SeatStatus `json:"seats"`
	Scores      []int32      `json:"scores"`
	View        *SeatView    `json:"view,omitempty"`
	Events      []RoundEvent `json:"events,omitempty"`
}

// TurnNoticeMessage tells one seat it is up, with the legal actions computed
// fresh from current state.
type TurnNoticeMessage struct {
	SeatNo        int      `json:"seatNo"`
	Phase         Phase    `json:"phase"`
	LegalActions  []Action `json:"legalActions"`
	ReminderCount uint32   `json:"reminderCount"`
	TimedOut      bool     `json:"timedOut"`
}

type SeatUpdateMessage struct {
	SeatNo  int         `json:"seatNo"`
	Control SeatControl `json:"control"`
	Name    string      `json:"name"`
	Reason  string      `json:"reason"`
}

type TerminalMessage struct {
	WinnerSeat  int     `json:"winnerSeat"`
	WinnerName  string  `json:"winnerName"`
	FinalScores []int32 `json:"finalScores"`
	RoundsDealt int     `json:"roundsDealt"`
}

func (s *Session) generateMsgID(prefix string, seq uint64) string {
	return fmt.Sprintf("%s:%s:%d:%d", s.code, prefix, seq, time.Now().UnixNano())
}
