package game

// NoSeat is the currentSeat sentinel used while no turn is active
// (dealing, pacing pauses between rounds, game over).
const NoSeat = -1

// Phase is the session-level phase. A variant reports which of the
// actionable phases it enters after a deal and after each apply.
type Phase string

const (
	PhaseDealing       Phase = "DEALING"
	PhaseBidding       Phase = "BIDDING"
	PhaseExchange      Phase = "EXCHANGE"
	PhasePlaying       Phase = "PLAYING"
	PhaseRoundComplete Phase = "ROUND_COMPLETE"
	PhaseGameOver      Phase = "GAME_OVER"
)

type SeatControl string

const (
	ControlHuman SeatControl = "HUMAN"
	ControlAI    SeatControl = "AI"
)

// Seat is one fixed position in a session. PlayerID is the stable identity of
// the seat's human owner; it survives disconnection and AI takeover so the
// same identity can later reclaim the seat.
type Seat struct {
	SeatNo    int
	Control   SeatControl
	PlayerID  string
	Name      string
	Connected bool
}

func (s *Seat) IsHuman() bool {
	return s.Control == ControlHuman
}

func (s *Seat) OwnedBy(playerID string) bool {
	return s.PlayerID != "" && s.PlayerID == playerID
}

// SeatConfig describes one seat at session creation.
type SeatConfig struct {
	PlayerID string `json:"playerId" yaml:"playerId"`
	Name     string `json:"name" yaml:"name"`
	IsHuman  bool   `json:"isHuman" yaml:"isHuman"`
}

// SessionConfig is the immutable configuration of one session.
type SessionConfig struct {
	SessionCode string       `json:"sessionCode" yaml:"sessionCode"`
	Variant     string       `json:"variant" yaml:"variant"`
	Seats       []SeatConfig `json:"seats" yaml:"seats"`
}
