// Package variants maps variant names to their rules engine and AI strategy.
package variants

import (
	"github.com/pkg/errors"

	"cardroom.io/server/game"
	"cardroom.io/server/variants/ohhell"
	"cardroom.io/server/variants/president"
	"cardroom.io/server/variants/whist"
)

const (
	Whist     = "whist"
	President = "president"
	OhHell    = "ohhell"
)

func New(variant string) (game.RulesEngine, game.Strategy, error) {
	switch variant {
	case Whist:
		return whist.NewEngine(whist.DefaultTargetScore), whist.NewStrategy(), nil
	case President:
		return president.NewEngine(president.DefaultTargetScore), president.NewStrategy(), nil
	case OhHell:
		return ohhell.NewEngine(ohhell.DefaultNumRounds), ohhell.NewStrategy(), nil
	}
	return nil, nil, errors.Errorf("unknown variant: %s", variant)
}
