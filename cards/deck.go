package cards

import (
	"math/rand"
	"sort"

	"cardroom.io/server/util/random"
)

var fullDeck []Card

func init() {
	fullDeck = initializeFullCards()
}

type Deck struct {
	cards   []Card
	randGen *rand.Rand
}

// NewDeck returns a shuffled 52-card deck. Pass a source for deterministic
// deals in tests; nil uses a crypto-seeded source.
func NewDeck(source rand.Source) *Deck {
	if source == nil {
		source = random.NewSource()
	}
	deck := &Deck{randGen: rand.New(source)}
	deck.Shuffle()
	return deck
}

func (deck *Deck) Shuffle() *Deck {
	deck.cards = make([]Card, len(fullDeck))
	copy(deck.cards, fullDeck)

	deck.randGen.Shuffle(len(deck.cards), func(i, j int) {
		deck.cards[i], deck.cards[j] = deck.cards[j], deck.cards[i]
	})
	return deck
}

func (deck *Deck) Draw(n int) []Card {
	cards := make([]Card, n)
	copy(cards, deck.cards[:n])
	deck.cards = deck.cards[n:]
	return cards
}

func (deck *Deck) Remaining() int {
	return len(deck.cards)
}

func (deck *Deck) Empty() bool {
	return len(deck.cards) == 0
}

// SortByRank orders a hand high to low, suits grouped within equal ranks.
func SortByRank(hand []Card) {
	sort.Slice(hand, func(i, j int) bool {
		if hand[i].Rank() != hand[j].Rank() {
			return hand[i].Rank() > hand[j].Rank()
		}
		return hand[i].Suit() > hand[j].Suit()
	})
}

func initializeFullCards() []Card {
	cards := make([]Card, 0, 52)
	for rank := MinRank; rank <= MaxRank; rank++ {
		for suit := Clubs; suit <= Spades; suit++ {
			cards = append(cards, NewCard(rank, suit))
		}
	}
	return cards
}
