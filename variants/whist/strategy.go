package whist

import (
	"cardroom.io/server/game"
)

// Strategy plays the lowest legal card. It wins no style points but never
// stalls a table.
type Strategy struct{}

func NewStrategy() *Strategy {
	return &Strategy{}
}

func (s *Strategy) ChooseAction(view *game.SeatView, seat int, legal []game.Action) game.Action {
	best := legal[0]
	for _, a := range legal[1:] {
		if len(a.Cards) == 1 && len(best.Cards) == 1 && a.Cards[0].Rank() < best.Cards[0].Rank() {
			best = a
		}
	}
	return best
}
