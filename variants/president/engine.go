// Package president implements the climbing/shedding variant: equal-size sets
// beat by rank or pass, the first seat to empty its hand takes the best rank,
// and the best and worst ranked seats exchange cards at the start of the next
// round.
package president

import (
	"math/rand"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"

	"cardroom.io/server/cards"
	"cardroom.io/server/game"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const numSeats = 4

// DefaultTargetScore ends the game once one seat reaches it.
const DefaultTargetScore int32 = 11

// rankAwards is indexed by finish position.
var rankAwards = []int32{3, 2, 1, 0}

type roundState struct {
	hands [][]cards.Card

	// Current pile to beat. pileCount == 0 means an open lead.
	pile      []cards.Card
	pileSeat  int
	pileCount int
	pileRank  uint8
	passes    int

	finished []int
	out      []bool
	leadSeat int

	// Exchange sub-phase at round start: the president owes one card back to
	// the scum.
	exchanging    bool
	presidentSeat int
	scumSeat      int
}

type publicView struct {
	Pile      []cards.Card `json:"pile"`
	PileSeat  int          `json:"pileSeat"`
	Passes    int          `json:"passes"`
	Finished  []int        `json:"finished"`
	LeadSeat  int          `json:"leadSeat"`
	Exchange  bool         `json:"exchange"`
	President int          `json:"president"`
	Scum      int          `json:"scum"`
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
	return "president"
}

func (e *Engine) NumSeats() int {
	return numSeats
}

func (e *Engine) Deal(rng *rand.Rand, roundNum int, prev game.RoundState) (*game.DealResult, error) {
	deck := cards.NewDeck(rand.NewSource(rng.Int63()))
	rs := &roundState{
		hands:         make([][]cards.Card, numSeats),
		pileSeat:      game.NoSeat,
		presidentSeat: game.NoSeat,
		scumSeat:      game.NoSeat,
		out:           make([]bool, numSeats),
		leadSeat:      (roundNum - 1) % numSeats,
	}
	for i := 0; i < numSeats; i++ {
		rs.hands[i] = deck.Draw(52 / numSeats)
		cards.SortByRank(rs.hands[i])
	}

	prevRound, _ := prev.(*roundState)
	if prevRound == nil || len(prevRound.finished) < numSeats {
		return &game.DealResult{
			Round:     rs,
			FirstSeat: rs.leadSeat,
			Phase:     game.PhasePlaying,
		}, nil
	}

	// Rank-based exchange: the scum's best card moves to the president
	// automatically; the president then chooses a card to give back.
	rs.presidentSeat = prevRound.finished[0]
	rs.scumSeat = prevRound.finished[numSeats-1]
	rs.exchanging = true

	best := rs.hands[rs.scumSeat][0] // hands are sorted high to low
	rs.hands[rs.scumSeat] = cards.Remove(rs.hands[rs.scumSeat], []cards.Card{best})
	rs.hands[rs.presidentSeat] = append(rs.hands[rs.presidentSeat], best)
	cards.SortByRank(rs.hands[rs.presidentSeat])

	return &game.DealResult{
		Round:     rs,
		FirstSeat: rs.presidentSeat,
		Phase:     game.PhaseExchange,
		Events: []game.RoundEvent{{
			Type: "EXCHANGE",
			Seat: rs.scumSeat,
			Note: "scum surrenders its best card",
		}},
	}, nil
}

func (e *Engine) LegalActions(state game.RoundState, seat int) []game.Action {
	rs, ok := state.(*roundState)
	if !ok {
		return nil
	}
	if rs.exchanging {
		if seat != rs.presidentSeat {
			return nil
		}
		actions := make([]game.Action, 0, len(rs.hands[seat]))
		for _, c := range rs.hands[seat] {
			actions = append(actions, game.Action{Type: game.ActionExchange, Cards: []cards.Card{c}})
		}
		return actions
	}

	var actions []game.Action
	for _, set := range legalSets(rs, seat) {
		actions = append(actions, game.Action{Type: game.ActionPlay, Cards: set})
	}
	if rs.pileCount > 0 {
		actions = append(actions, game.Action{Type: game.ActionPass})
	}
	return actions
}

// legalSets enumerates the equal-rank sets the seat may put on the pile.
func legalSets(rs *roundState, seat int) [][]cards.Card {
	byRank := make(map[uint8][]cards.Card)
	for _, c := range rs.hands[seat] {
		byRank[c.Rank()] = append(byRank[c.Rank()], c)
	}

	var sets [][]cards.Card
	for rank := cards.MinRank; rank <= cards.MaxRank; rank++ {
		group := byRank[rank]
		if len(group) == 0 {
			continue
		}
		if rs.pileCount == 0 {
			// Open lead: any size from this rank group.
			for size := 1; size <= len(group); size++ {
				sets = append(sets, append([]cards.Card{}, group[:size]...))
			}
			continue
		}
		if rank > rs.pileRank && len(group) >= rs.pileCount {
			sets = append(sets, append([]cards.Card{}, group[:rs.pileCount]...))
		}
	}
	return sets
}

func (e *Engine) Apply(state game.RoundState, seat int, action game.Action) (*game.ApplyResult, error) {
	rs, ok := state.(*roundState)
	if !ok {
		return nil, errors.New("foreign round state")
	}
	if rs.exchanging {
		return e.applyExchange(rs, seat, action)
	}

	switch action.Type {
	case game.ActionPass:
		return e.applyPass(rs, seat)
	case game.ActionPlay:
		return e.applyPlay(rs, seat, action)
	default:
		return nil, errors.Errorf("action %s not allowed while playing", action.Type)
	}
}

func (e *Engine) applyExchange(rs *roundState, seat int, action game.Action) (*game.ApplyResult, error) {
	if seat != rs.presidentSeat {
		return nil, errors.Errorf("seat %d has nothing to exchange", seat)
	}
	if action.Type != game.ActionExchange || len(action.Cards) != 1 {
		return nil, errors.New("exchange is a single returned card")
	}
	if !cards.ContainsAll(rs.hands[seat], action.Cards) {
		return nil, errors.Errorf("card %s is not in the president's hand", action.Cards[0])
	}

	rs.hands[seat] = cards.Remove(rs.hands[seat], action.Cards)
	rs.hands[rs.scumSeat] = append(rs.hands[rs.scumSeat], action.Cards[0])
	cards.SortByRank(rs.hands[rs.scumSeat])
	rs.exchanging = false
	rs.leadSeat = rs.presidentSeat

	return &game.ApplyResult{
		NextSeat: rs.presidentSeat,
		Phase:    game.PhasePlaying,
		Events: []game.RoundEvent{{
			Type: "EXCHANGE",
			Seat: seat,
			Note: "president returns a card",
		}},
	}, nil
}

func (e *Engine) applyPass(rs *roundState, seat int) (*game.ApplyResult, error) {
	if rs.pileCount == 0 {
		return nil, errors.New("cannot pass on an open lead")
	}
	rs.passes++

	if rs.passes >= e.activeSeats(rs)-1 {
		// Everyone else passed; the pile clears and its owner leads again.
		lead := rs.pileSeat
		if lead == game.NoSeat || rs.out[lead] {
			lead = e.nextActive(rs, seat)
		}
		rs.pile = nil
		rs.pileCount = 0
		rs.pileRank = 0
		rs.pileSeat = game.NoSeat
		rs.passes = 0
		rs.leadSeat = lead
		return &game.ApplyResult{
			NextSeat: lead,
			Phase:    game.PhasePlaying,
			Events:   []game.RoundEvent{{Type: "PILE_CLEARED", Seat: lead}},
		}, nil
	}
	return &game.ApplyResult{
		NextSeat: e.nextActive(rs, seat),
		Phase:    game.PhasePlaying,
	}, nil
}

func (e *Engine) applyPlay(rs *roundState, seat int, action game.Action) (*game.ApplyResult, error) {
	set := action.Cards
	if len(set) == 0 {
		return nil, errors.New("empty play")
	}
	rank := set[0].Rank()
	for _, c := range set {
		if c.Rank() != rank {
			return nil, errors.New("a play must be a single rank")
		}
	}
	if !cards.ContainsAll(rs.hands[seat], set) {
		return nil, errors.Errorf("seat %d does not hold those cards", seat)
	}
	if rs.pileCount > 0 {
		if len(set) != rs.pileCount {
			return nil, errors.Errorf("pile requires sets of %d", rs.pileCount)
		}
		if rank <= rs.pileRank {
			return nil, errors.Errorf("set of %s does not beat the pile", set[0])
		}
	}

	rs.hands[seat] = cards.Remove(rs.hands[seat], set)
	rs.pile = append([]cards.Card{}, set...)
	rs.pileSeat = seat
	rs.pileCount = len(set)
	rs.pileRank = rank
	rs.passes = 0

	var events []game.RoundEvent
	if len(rs.hands[seat]) == 0 {
		rs.out[seat] = true
		rs.finished = append(rs.finished, seat)
		events = append(events, game.RoundEvent{Type: "SEAT_OUT", Seat: seat})
	}

	if e.activeSeats(rs) <= 1 {
		// Fold the last holder into the finish order; the round is done.
		for i := 0; i < numSeats; i++ {
			if !rs.out[i] {
				rs.out[i] = true
				rs.finished = append(rs.finished, i)
			}
		}
		return &game.ApplyResult{
			NextSeat: game.NoSeat,
			Phase:    game.PhaseRoundComplete,
			Events:   events,
		}, nil
	}

	return &game.ApplyResult{
		NextSeat: e.nextActive(rs, seat),
		Phase:    game.PhasePlaying,
		Events:   events,
	}, nil
}

func (e *Engine) activeSeats(rs *roundState) int {
	count := 0
	for i := 0; i < numSeats; i++ {
		if !rs.out[i] {
			count++
		}
	}
	return count
}

func (e *Engine) nextActive(rs *roundState, seat int) int {
	for i := 1; i <= numSeats; i++ {
		next := (seat + i) % numSeats
		if !rs.out[next] {
			return next
		}
	}
	return game.NoSeat
}

func (e *Engine) ScoreRound(state game.RoundState) *game.RoundResult {
	rs, ok := state.(*roundState)
	if !ok {
		return &game.RoundResult{Deltas: make([]int32, numSeats)}
	}
	deltas := make([]int32, numSeats)
	for pos, seat := range rs.finished {
		if pos < len(rankAwards) {
			deltas[seat] = rankAwards[pos]
		}
	}
	return &game.RoundResult{Deltas: deltas, Summary: "ranks awarded by finish order"}
}

func (e *Engine) GameOver(scores []int32, roundNum int) (bool, int) {
	winner := game.NoSeat
	var best int32
	for seat, score := range scores {
		if score >= e.targetScore && score > best {
			winner = seat
			best = score
		}
	}
	return winner != game.NoSeat, winner
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
		Pile:      rs.pile,
		PileSeat:  rs.pileSeat,
		Passes:    rs.passes,
		Finished:  rs.finished,
		LeadSeat:  rs.leadSeat,
		Exchange:  rs.exchanging,
		President: rs.presidentSeat,
		Scum:      rs.scumSeat,
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
