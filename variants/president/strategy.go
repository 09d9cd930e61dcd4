package president

import (
	"cardroom.io/server/game"
)

// Strategy sheds the smallest legal set and passes only when it must. For the
// exchange it returns its weakest card, which is also what a human would do.
type Strategy struct{}

func NewStrategy() *Strategy {
	return &Strategy{}
}

func (s *Strategy) ChooseAction(view *game.SeatView, seat int, legal []game.Action) game.Action {
	var best *game.Action
	for i := range legal {
		a := &legal[i]
		switch a.Type {
		case game.ActionExchange:
			if best == nil || a.Cards[0].Rank() < best.Cards[0].Rank() {
				best = a
			}
		case game.ActionPlay:
			if best == nil || best.Type != game.ActionPlay {
				best = a
				continue
			}
			// Prefer smaller sets of lower rank to keep bombs intact.
			if len(a.Cards) < len(best.Cards) ||
				(len(a.Cards) == len(best.Cards) && a.Cards[0].Rank() < best.Cards[0].Rank()) {
				best = a
			}
		}
	}
	if best != nil {
		return *best
	}
	return legal[len(legal)-1] // pass
}
