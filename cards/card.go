package cards

import "fmt"

// Card is a byte-packed playing card: rank<<2 | suit.
// Ranks run 2..14 with ace high. The packed form is what goes on the wire.
type Card uint8

type Suit uint8

const (
	Clubs Suit = iota
	Diamonds
	Hearts
	Spades
)

const (
	MinRank uint8 = 2
	MaxRank uint8 = 14 // ace
)

var suitGlyphs = []string{"c", "d", "h", "s"}
var rankNames = map[uint8]string{
	2: "2", 3: "3", 4: "4", 5: "5", 6: "6", 7: "7", 8: "8",
	9: "9", 10: "T", 11: "J", 12: "Q", 13: "K", 14: "A",
}

func NewCard(rank uint8, suit Suit) Card {
	return Card(rank<<2 | uint8(suit))
}

func (c Card) Rank() uint8 {
	return uint8(c) >> 2
}

func (c Card) Suit() Suit {
	return Suit(uint8(c) & 0x3)
}

func (c Card) String() string {
	name, ok := rankNames[c.Rank()]
	if !ok {
		return fmt.Sprintf("?%d", uint8(c))
	}
	return name + suitGlyphs[c.Suit()]
}

// CardsToString formats a hand for logging.
func CardsToString(cs []Card) string {
	str := "["
	for i, c := range cs {
		if i > 0 {
			str += " "
		}
		str += c.String()
	}
	return str + "]"
}

// ContainsAll reports whether hand contains every card in sub, counting duplicates.
func ContainsAll(hand []Card, sub []Card) bool {
	remaining := make(map[Card]int, len(hand))
	for _, c := range hand {
		remaining[c]++
	}
	for _, c := range sub {
		if remaining[c] == 0 {
			return false
		}
		remaining[c]--
	}
	return true
}

// Remove returns hand minus the cards in sub. The caller must have verified
// membership with ContainsAll first.
func Remove(hand []Card, sub []Card) []Card {
	toRemove := make(map[Card]int, len(sub))
	for _, c := range sub {
		toRemove[c]++
	}
	out := make([]Card, 0, len(hand))
	for _, c := range hand {
		if toRemove[c] > 0 {
			toRemove[c]--
			continue
		}
		out = append(out, c)
	}
	return out
}
