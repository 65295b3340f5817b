package blackjack

import (
	"encoding/json"
	"fmt"

	"github.com/lox/blackjack/internal/deck"
)

// Role identifies who holds a hand
type Role string

const (
	Dealer Role = "dealer"
	Player Role = "player"
)

// Hand is the ordered list of cards held by one participant. Order is deal
// order; index 0 of the dealer's hand is the hole card.
type Hand struct {
	role  Role
	cards []deck.Card
	total int
}

// NewHand creates an empty hand for role
func NewHand(role Role) *Hand {
	return &Hand{role: role}
}

// Role returns the owner of the hand
func (h *Hand) Role() Role {
	return h.role
}

// Reset clears the hand and returns the slot ids that were on display
func (h *Hand) Reset() []string {
	slots := make([]string, len(h.cards))
	for i := range h.cards {
		slots[i] = h.SlotID(i)
	}
	h.cards = nil
	h.total = 0
	return slots
}

// Deal appends card with the given visibility and returns its index
func (h *Hand) Deal(card deck.Card, faceUp bool) int {
	card.FaceUp = faceUp
	h.cards = append(h.cards, card)
	h.total = score(h.cards)
	return len(h.cards) - 1
}

// Reveal turns card i face up. It reports whether the card was face down.
func (h *Hand) Reveal(i int) bool {
	if i < 0 || i >= len(h.cards) || h.cards[i].FaceUp {
		return false
	}
	h.cards[i].FaceUp = true
	return true
}

// Total is the best score of the hand counting hidden cards
func (h *Hand) Total() int {
	return h.total
}

// VisibleTotal scores only the face-up cards
func (h *Hand) VisibleTotal() int {
	visible := make([]deck.Card, 0, len(h.cards))
	for _, c := range h.cards {
		if c.FaceUp {
			visible = append(visible, c)
		}
	}
	return score(visible)
}

// IsBust reports a total over 21
func (h *Hand) IsBust() bool {
	return h.total > 21
}

// HasBlackjack reports an Ace plus a ten-value card as the only two cards
func (h *Hand) HasBlackjack() bool {
	if len(h.cards) != 2 {
		return false
	}
	a, b := h.cards[0], h.cards[1]
	return (a.IsAce() && b.IsTenValue()) || (b.IsAce() && a.IsTenValue())
}

// Len returns the number of cards held
func (h *Hand) Len() int {
	return len(h.cards)
}

// Card returns card i
func (h *Hand) Card(i int) deck.Card {
	return h.cards[i]
}

// Cards returns a copy of the cards in deal order
func (h *Hand) Cards() []deck.Card {
	out := make([]deck.Card, len(h.cards))
	copy(out, h.cards)
	return out
}

// Last returns the most recently dealt card and its index
func (h *Hand) Last() (deck.Card, int, bool) {
	if len(h.cards) == 0 {
		return deck.Card{}, -1, false
	}
	i := len(h.cards) - 1
	return h.cards[i], i, true
}

// SlotID is the stable display address of card i, e.g. "dealer0"
func (h *Hand) SlotID(i int) string {
	return SlotID(h.role, i)
}

// SlotID addresses card i of the role's hand
func SlotID(role Role, i int) string {
	return fmt.Sprintf("%s%d", role, i)
}

// score counts every Ace as 11 and then downgrades one Ace at a time to 1
// while the hand is over 21
func score(cards []deck.Card) int {
	total, aces := 0, 0
	for _, c := range cards {
		total += c.Value()
		if c.IsAce() {
			aces++
		}
	}
	for total > 21 && aces > 0 {
		total -= 10
		aces--
	}
	return total
}

type cardSnapshot struct {
	Rank   string `json:"rank"`
	Suit   string `json:"suit"`
	Image  string `json:"image"`
	FaceUp bool   `json:"faceUp"`
}

type handSnapshot struct {
	Name  Role           `json:"name"`
	Bank  *int           `json:"bank,omitempty"`
	Cards []cardSnapshot `json:"cards"`
}

func (h *Hand) snapshot() handSnapshot {
	snap := handSnapshot{Name: h.role, Cards: make([]cardSnapshot, len(h.cards))}
	for i, c := range h.cards {
		snap.Cards[i] = cardSnapshot{
			Rank:   c.Rank.Name(),
			Suit:   c.Suit.Name(),
			Image:  c.Image,
			FaceUp: c.FaceUp,
		}
	}
	return snap
}

// restore rebuilds the hand from a snapshot. Totals are always recomputed.
func (h *Hand) restore(snap handSnapshot) error {
	cards := make([]deck.Card, len(snap.Cards))
	for i, cs := range snap.Cards {
		rank, err := deck.ParseRank(cs.Rank)
		if err != nil {
			return fmt.Errorf("card %d: %w", i, err)
		}
		suit, err := deck.ParseSuit(cs.Suit)
		if err != nil {
			return fmt.Errorf("card %d: %w", i, err)
		}
		cards[i] = deck.Card{Rank: rank, Suit: suit, Image: cs.Image, FaceUp: cs.FaceUp}
	}
	h.role = snap.Name
	h.cards = cards
	h.total = score(cards)
	return nil
}

// MarshalJSON serializes the owner and cards
func (h *Hand) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.snapshot())
}

// UnmarshalJSON restores a hand written by MarshalJSON
func (h *Hand) UnmarshalJSON(data []byte) error {
	var snap handSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return err
	}
	return h.restore(snap)
}
