package ohhell

import (
	"cardroom.io/server/game"
)

// Strategy bids one trick per high card and then plays low. Deterministic so
// escalation tests can predict AI behavior.
type Strategy struct{}

func NewStrategy() *Strategy {
	return &Strategy{}
}

const highCardRank = 12 // queen or better counts toward the bid

func (s *Strategy) ChooseAction(view *game.SeatView, seat int, legal []game.Action) game.Action {
	if legal[0].Type == game.ActionBid {
		want := int32(0)
		for _, c := range view.Hand {
			if c.Rank() >= highCardRank {
				want++
			}
		}
		best := legal[0]
		for _, a := range legal[1:] {
			if abs32(a.Bid-want) < abs32(best.Bid-want) {
				best = a
			}
		}
		return best
	}

	best := legal[0]
	for _, a := range legal[1:] {
		if len(a.Cards) == 1 && len(best.Cards) == 1 && a.Cards[0].Rank() < best.Cards[0].Rank() {
			best = a
		}
	}
	return best
}

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}
