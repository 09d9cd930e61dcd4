// Package ohhell implements the bidding trick variant: each seat bids the
// number of tricks it will take, a turned-up card fixes trump, and an exact
// bid earns a bonus. Hand sizes shrink each round and the game runs a fixed
// number of rounds.
package ohhell

import (
	"math/rand"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"

	"cardroom.io/server/cards"
	"cardroom.io/server/game"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	numSeats      = 4
	maxHandSize   = 7
	exactBidBonus = 10
)

// DefaultNumRounds plays hands of 7 down to 1 cards.
const DefaultNumRounds = 7

type trickPlay struct {
	Seat int        `json:"seat"`
	Card cards.Card `json:"card"`
}

type roundState struct {
	hands     [][]cards.Card
	bids      []int32 // -1 until placed
	bidsOpen  int     // seats still to bid
	trump     cards.Suit
	upcard    cards.Card
	trick     []trickPlay
	leadSeat  int
	tricksWon []int
	handSize  int
	played    int
}

type publicView struct {
	Bids      []int32     `json:"bids"`
	Trump     cards.Suit  `json:"trump"`
	Upcard    cards.Card  `json:"upcard"`
	Trick     []trickPlay `json:"trick"`
	LeadSeat  int         `json:"leadSeat"`
	TricksWon []int       `json:"tricksWon"`
}

// Engine implements game.RulesEngine.
type Engine struct {
	numRounds int
}

func NewEngine(numRounds int) *Engine {
	if numRounds <= 0 || numRounds > maxHandSize {
		numRounds = DefaultNumRounds
	}
	return &Engine{numRounds: numRounds}
}

func (e *Engine) Variant() string {
	return "ohhell"
}

func (e *Engine) NumSeats() int {
	return numSeats
}

func (e *Engine) handSizeFor(roundNum int) int {
	size := maxHandSize - (roundNum - 1)
	if size < 1 {
		size = 1
	}
	return size
}

func (e *Engine) Deal(rng *rand.Rand, roundNum int, prev game.RoundState) (*game.DealResult, error) {
	deck := cards.NewDeck(rand.NewSource(rng.Int63()))
	size := e.handSizeFor(roundNum)
	rs := &roundState{
		hands:     make([][]cards.Card, numSeats),
		bids:      make([]int32, numSeats),
		bidsOpen:  numSeats,
		tricksWon: make([]int, numSeats),
		handSize:  size,
		leadSeat:  (roundNum - 1) % numSeats,
	}
	for i := 0; i < numSeats; i++ {
		rs.hands[i] = deck.Draw(size)
		cards.SortByRank(rs.hands[i])
		rs.bids[i] = -1
	}
	rs.upcard = deck.Draw(1)[0]
	rs.trump = rs.upcard.Suit()

	return &game.DealResult{
		Round:     rs,
		FirstSeat: rs.leadSeat,
		Phase:     game.PhaseBidding,
		Events: []game.RoundEvent{{
			Type:  "TRUMP_REVEALED",
			Seat:  game.NoSeat,
			Cards: []cards.Card{rs.upcard},
		}},
	}, nil
}

func (e *Engine) LegalActions(state game.RoundState, seat int) []game.Action {
	rs, ok := state.(*roundState)
	if !ok {
		return nil
	}
	if rs.bidsOpen > 0 {
		if rs.bids[seat] >= 0 {
			return nil
		}
		actions := make([]game.Action, 0, rs.handSize+1)
		for bid := 0; bid <= rs.handSize; bid++ {
			actions = append(actions, game.Action{Type: game.ActionBid, Bid: int32(bid)})
		}
		return actions
	}
	playable := e.playableCards(rs, seat)
	actions := make([]game.Action, 0, len(playable))
	for _, c := range playable {
		actions = append(actions, game.Action{Type: game.ActionPlay, Cards: []cards.Card{c}})
	}
	return actions
}

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
	if rs.bidsOpen > 0 {
		return e.applyBid(rs, seat, action)
	}
	return e.applyPlay(rs, seat, action)
}

func (e *Engine) applyBid(rs *roundState, seat int, action game.Action) (*game.ApplyResult, error) {
	if action.Type != game.ActionBid {
		return nil, errors.New("bidding phase accepts only bids")
	}
	if rs.bids[seat] >= 0 {
		return nil, errors.Errorf("seat %d already bid", seat)
	}
	if action.Bid < 0 || action.Bid > int32(rs.handSize) {
		return nil, errors.Errorf("bid %d out of range", action.Bid)
	}

	rs.bids[seat] = action.Bid
	rs.bidsOpen--

	events := []game.RoundEvent{{Type: "BID_PLACED", Seat: seat, Note: ""}}
	if rs.bidsOpen == 0 {
		return &game.ApplyResult{
			NextSeat: rs.leadSeat,
			Phase:    game.PhasePlaying,
			Events:   events,
		}, nil
	}
	return &game.ApplyResult{
		NextSeat: (seat + 1) % numSeats,
		Phase:    game.PhaseBidding,
		Events:   events,
	}, nil
}

func (e *Engine) applyPlay(rs *roundState, seat int, action game.Action) (*game.ApplyResult, error) {
	if action.Type != game.ActionPlay || len(action.Cards) != 1 {
		return nil, errors.New("play one card")
	}
	card := action.Cards[0]
	if !cards.ContainsAll(rs.hands[seat], action.Cards) {
		return nil, errors.Errorf("card %s is not in seat %d's hand", card, seat)
	}
	playable := e.playableCards(rs, seat)
	legal := false
	for _, c := range playable {
		if c == card {
			legal = true
			break
		}
	}
	if !legal {
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

	winner := trickWinner(rs.trick, rs.trump)
	rs.tricksWon[winner]++
	rs.played++
	taken := make([]cards.Card, 0, numSeats)
	for _, tp := range rs.trick {
		taken = append(taken, tp.Card)
	}
	rs.trick = nil
	rs.leadSeat = winner

	events := []game.RoundEvent{{Type: "TRICK_TAKEN", Seat: winner, Cards: taken}}

	if rs.played == rs.handSize {
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

// trickWinner prefers the highest trump, then the highest card of the led
// suit.
func trickWinner(trick []trickPlay, trump cards.Suit) int {
	winner := trick[0]
	for _, tp := range trick[1:] {
		wTrump := winner.Card.Suit() == trump
		cTrump := tp.Card.Suit() == trump
		switch {
		case cTrump && !wTrump:
			winner = tp
		case cTrump == wTrump && tp.Card.Suit() == winner.Card.Suit() && tp.Card.Rank() > winner.Card.Rank():
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
	for seat := 0; seat < numSeats; seat++ {
		won := int32(rs.tricksWon[seat])
		if won == rs.bids[seat] {
			deltas[seat] = exactBidBonus + won
		} else {
			deltas[seat] = won
		}
	}
	return &game.RoundResult{Deltas: deltas, Summary: "exact bids earn the bonus"}
}

func (e *Engine) GameOver(scores []int32, roundNum int) (bool, int) {
	if roundNum < e.numRounds {
		return false, game.NoSeat
	}
	winner := 0
	for seat, score := range scores {
		if score > scores[winner] {
			winner = seat
		}
	}
	return true, winner
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
	// Bids are public once placed; unplaced bids stay hidden as -1 anyway.
	public, _ := json.Marshal(publicView{
		Bids:      rs.bids,
		Trump:     rs.trump,
		Upcard:    rs.upcard,
		Trick:     rs.trick,
		LeadSeat:  rs.leadSeat,
		TricksWon: rs.tricksWon,
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
