package carousel

import (
	"github.com/garyellow/line-carousel-composer/internal/resource"
)

// Collection is an immutable, ordered, non-empty set of cards.
// The first card is the master.
type Collection struct {
	cards    []Card
	activeID int
	revision uint64
}

// NewCollection returns a collection holding one default card.
func NewCollection() Collection {
	return Collection{cards: []Card{NewCard(1)}, activeID: 1}
}

// Len returns the number of cards.
func (c Collection) Len() int { return len(c.cards) }

// Cards returns a copy of the cards in display order.
func (c Collection) Cards() []Card {
	out := make([]Card, len(c.cards))
	copy(out, c.cards)
	return out
}

// Master returns the first card.
func (c Collection) Master() Card { return c.cards[0] }

// ActiveID returns the id of the card being edited.
func (c Collection) ActiveID() int { return c.activeID }

// Active returns the card being edited.
func (c Collection) Active() Card {
	card, _, _ := c.Find(c.activeID)
	return card
}

// Revision increases with every accepted mutation.
func (c Collection) Revision() uint64 { return c.revision }

// Find returns the card with id and its position.
func (c Collection) Find(id int) (Card, int, bool) {
	for i, card := range c.cards {
		if card.ID == id {
			return card, i, true
		}
	}
	return Card{}, -1, false
}

// Handles returns the set of handles owned by all cards.
func (c Collection) Handles() map[resource.Handle]struct{} {
	set := make(map[resource.Handle]struct{})
	for _, card := range c.cards {
		for _, h := range card.Handles() {
			set[h] = struct{}{}
		}
	}
	return set
}

func (c Collection) nextID() int {
	maxID := 0
	for _, card := range c.cards {
		maxID = max(maxID, card.ID)
	}
	return maxID + 1
}

// with returns a copy of c holding cards, with the revision bumped.
func (c Collection) with(cards []Card, activeID int) Collection {
	return Collection{cards: cards, activeID: activeID, revision: c.revision + 1}
}
