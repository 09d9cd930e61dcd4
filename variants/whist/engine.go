// Package whist implements the 4-player partnership trick variant: five-card
// hands, follow suit, highest card of the led suit takes the trick, and the
// partnership winning three or more tricks scores a point for each partner.
package whist

import (
	"math/rand"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"

	"cardroom.io/server/cards"
	"cardroom.io/server/game"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	numSeats     = 4
	handSize     = 5
	tricksPerWin = 3
)

// DefaultTargetScore ends the game once one partnership reaches it.
const DefaultTargetScore int32 = 5

type trickPlay struct {
	Seat int        `json:"seat"`
	Card cards.Card `json:"card"`
}

type roundState struct {
	hands        [][]cards.Card
	trick        []trickPlay
	leadSeat     int
	tricksWon    []int
	tricksPlayed int
}

type publicView struct {
	Trick        []trickPlay `json:"trick"`
	LeadSeat     int         `json:"leadSeat"`
	TricksWon    []int       `json:"tricksWon"`
	TricksPlayed int         `json:"tricksPlayed"`
}

// Engine implements game.RulesEngine.
type Engine struct {
	targetScore int32
}

func NewEngine(targetScore int32) *Engine {
	if targetScore <= 0 {
		targetScore = DefaultTargetScore
	}
	return &Engine{targetScore: targetScore}
}

func (e *Engine) Variant() string {
	return "whist"
}

func (e *Engine) NumSeats() int {
	return numSeats
}

func (e *Engine) Deal(rng *rand.Rand, roundNum int, prev game.RoundState) (*game.DealResult, error) {
	deck := cards.NewDeck(rand.NewSource(rng.Int63()))
	rs := &roundState{
		hands:     make([][]cards.Card, numSeats),
		tricksWon: make([]int, numSeats),
		leadSeat:  (roundNum - 1) % numSeats,
	}
	for i := 0; i < numSeats; i++ {
		rs.hands[i] = deck.Draw(handSize)
		cards.SortByRank(rs.hands[i])
	}
	return &game.DealResult{
		Round:     rs,
		FirstSeat: rs.leadSeat,
		Phase:     game.PhasePlaying,
	}, nil
}

func (e *Engine) LegalActions(state game.RoundState, seat int) []game.Action {
	rs, ok := state.(*roundState)
	if !ok {
		return nil
	}
	playable := e.playableCards(rs, seat)
	actions := make([]game.Action, 0, len(playable))
	for _, c := range playable {
		actions = append(actions, game.Action{Type: game.ActionPlay, Cards: []cards.Card{c}})
	}
	return actions
}

// playableCards applies the follow-suit rule against the current trick.
func (e *Engine) playableCards(rs *roundState, seat int) []cards.Card {
	hand := rs.hands[seat]
	if len(rs.trick) == 0 {
		return hand
	}
	ledSuit := rs.trick[0].Card.Suit()
	var following []cards.Card
	for _, c := range hand {
		if c.Suit() == ledSuit {
			following = append(following, c)
		}
	}
	if len(following) > 0 {
		return following
	}
	return hand
}

func (e *Engine) Apply(state game.RoundState, seat int, action game.Action) (*game.ApplyResult, error) {
	rs, ok := state.(*roundState)
	if !ok {
		return nil, errors.New("foreign round state")
	}
	if action.Type != game.ActionPlay || len(action.Cards) != 1 {
		return nil, errors.New("whist only accepts single-card plays")
	}
	card := action.Cards[0]
	if !cards.ContainsAll(rs.hands[seat], action.Cards) {
		return nil, errors.Errorf("card %s is not in seat %d's hand", card, seat)
	}
	if !e.isPlayable(rs, seat, card) {
		return nil, errors.Errorf("seat %d must follow suit", seat)
	}

	rs.hands[seat] = cards.Remove(rs.hands[seat], action.Cards)
	rs.trick = append(rs.trick, trickPlay{Seat: seat, Card: card})

	if len(rs.trick) < numSeats {
		return &game.ApplyResult{
			NextSeat: (seat + 1) % numSeats,
			Phase:    game.PhasePlaying,
		}, nil
	}

	winner := trickWinner(rs.trick)
	rs.tricksWon[winner]++
	rs.tricksPlayed++
	taken := make([]cards.Card, 0, numSeats)
	for _, tp := range rs.trick {
		taken = append(taken, tp.Card)
	}
	rs.trick = nil
	rs.leadSeat = winner

	events := []game.RoundEvent{{
		Type:  "TRICK_TAKEN",
		Seat:  winner,
		Cards: taken,
	}}

	if rs.tricksPlayed == handSize {
		return &game.ApplyResult{
			NextSeat: game.NoSeat,
			Phase:    game.PhaseRoundComplete,
			Events:   events,
		}, nil
	}
	return &game.ApplyResult{
		NextSeat: winner,
		Phase:    game.PhasePlaying,
		Events:   events,
	}, nil
}

func (e *Engine) isPlayable(rs *roundState, seat int, card cards.Card) bool {
	for _, c := range e.playableCards(rs, seat) {
		if c == card {
			return true
		}
	}
	return false
}

func trickWinner(trick []trickPlay) int {
	ledSuit := trick[0].Card.Suit()
	winner := trick[0]
	for _, tp := range trick[1:] {
		if tp.Card.Suit() == ledSuit && tp.Card.Rank() > winner.Card.Rank() {
			winner = tp
		}
	}
	return winner.Seat
}

func (e *Engine) ScoreRound(state game.RoundState) *game.RoundResult {
	rs, ok := state.(*roundState)
	if !ok {
		return &game.RoundResult{Deltas: make([]int32, numSeats)}
	}
	deltas := make([]int32, numSeats)
	evenTricks := rs.tricksWon[0] + rs.tricksWon[2]
	if evenTricks >= tricksPerWin {
		deltas[0], deltas[2] = 1, 1
		return &game.RoundResult{Deltas: deltas, Summary: "north/south take the round"}
	}
	deltas[1], deltas[3] = 1, 1
	return &game.RoundResult{Deltas: deltas, Summary: "east/west take the round"}
}

func (e *Engine) GameOver(scores []int32, roundNum int) (bool, int) {
	for seat, score := range scores {
		if score >= e.targetScore {
			return true, seat
		}
	}
	return false, game.NoSeat
}

func (e *Engine) ViewForSeat(state game.RoundState, seat int) *game.SeatView {
	rs, ok := state.(*roundState)
	if !ok {
		return &game.SeatView{}
	}
	counts := make([]int, numSeats)
	for i, h := range rs.hands {
		counts[i] = len(h)
	}
	public, _ := json.Marshal(publicView{
		Trick:        rs.trick,
		LeadSeat:     rs.leadSeat,
		TricksWon:    rs.tricksWon,
		TricksPlayed: rs.tricksPlayed,
	})
	view := &game.SeatView{
		HandCounts: counts,
		Public:     public,
	}
	if seat >= 0 && seat < numSeats {
		view.Hand = append([]cards.Card{}, rs.hands[seat]...)
	}
	return view
}
