package game

import (
	"encoding/json"
	"math/rand"

	"cardroom.io/server/cards"
)

// RoundState is the per-round state owned by a RulesEngine. The session layer
// never looks inside it; it only threads it back into engine calls.
type RoundState interface{}

type ActionType string

const (
	ActionPlay     ActionType = "PLAY"
	ActionPass     ActionType = "PASS"
	ActionBid      ActionType = "BID"
	ActionExchange ActionType = "EXCHANGE"
)

// Action is the single shape for every move in every variant. Which fields
// matter depends on Type.
type Action struct {
	Type  ActionType   `json:"type"`
	Cards []cards.Card `json:"cards,omitempty"`
	Bid   int32        `json:"bid,omitempty"`
}

// RoundEvent is a public fact produced by an apply (trick taken, pile
// cleared, trump revealed). Events ride along with state broadcasts.
type RoundEvent struct {
	Type  string       `json:"type"`
	Seat  int          `json:"seat"`
	Cards []cards.Card `json:"cards,omitempty"`
	Note  string       `json:"note,omitempty"`
}

// DealResult is what a variant hands back for a fresh round.
type DealResult struct {
	Round     RoundState
	FirstSeat int
	Phase     Phase
	Events    []RoundEvent
}

// ApplyResult reports the consequences of a single accepted action.
type ApplyResult struct {
	NextSeat int   // NoSeat while the variant has nothing for anyone to do
	Phase    Phase // actionable phase, or PhaseRoundComplete
	Events   []RoundEvent
}

// RoundResult carries per-seat score deltas once a round completes.
type RoundResult struct {
	Deltas  []int32 `json:"deltas"`
	Summary string  `json:"summary,omitempty"`
}

// SeatView is the redacted round state for one viewer. Hand is populated only
// in the owning seat's view; Public is variant-shaped JSON every seat may see.
type SeatView struct {
	Hand       []cards.Card    `json:"hand,omitempty"`
	HandCounts []int           `json:"handCounts"`
	Public     json.RawMessage `json:"public,omitempty"`
}

// RulesEngine is the injected per-variant capability: pure functions over
// RoundState. Implementations must not retain references across calls and
// must not touch anything but the given round state.
type RulesEngine interface {
	Variant() string
	NumSeats() int

	// Deal starts round roundNum (1-based). prev is the completed previous
	// round state, nil for the first round; variants with rank-based card
	// exchange read it to seed the exchange.
	Deal(rng *rand.Rand, roundNum int, prev RoundState) (*DealResult, error)

	// LegalActions must be re-derivable at any time from the current round
	// state; the session layer calls it fresh for every turn notification.
	LegalActions(rs RoundState, seat int) []Action

	// Apply validates and applies the action. An error means the action is
	// rejected and the round state is unchanged.
	Apply(rs RoundState, seat int, action Action) (*ApplyResult, error)

	// ScoreRound is called once Apply reports PhaseRoundComplete.
	ScoreRound(rs RoundState) *RoundResult

	// GameOver inspects cumulative scores after a round. winnerSeat is the
	// seat (or a representative seat of the winning partnership).
	GameOver(scores []int32, roundNum int) (over bool, winnerSeat int)

	ViewForSeat(rs RoundState, seat int) *SeatView
}

// Strategy picks a move for an AI-controlled seat from the same redacted view
// a human client would see.
type Strategy interface {
	ChooseAction(view *SeatView, seat int, legal []Action) Action
}
