package deck

import (
	"fmt"
	"strings"
)

// BackImage is the shared image shown for any face-down card
const BackImage = "https://www.deckofcardsapi.com/static/img/back.png"

const imageBaseURL = "https://deckofcardsapi.com/static/img/"

// Suit represents a card suit
type Suit int

const (
	Spades Suit = iota
	Hearts
	Diamonds
	Clubs
)

// String returns the string representation of a suit
func (s Suit) String() string {
	switch s {
	case Spades:
		return "♠"
	case Hearts:
		return "♥"
	case Diamonds:
		return "♦"
	case Clubs:
		return "♣"
	default:
		return "?"
	}
}

// Name returns the upper-case suit word used by the deck service
func (s Suit) Name() string {
	switch s {
	case Spades:
		return "SPADES"
	case Hearts:
		return "HEARTS"
	case Diamonds:
		return "DIAMONDS"
	case Clubs:
		return "CLUBS"
	default:
		return ""
	}
}

// IsRed returns true if the suit is red (Hearts or Diamonds)
func (s Suit) IsRed() bool {
	return s == Hearts || s == Diamonds
}

// ParseSuit accepts the deck service words (HEARTS), single letters (h, H)
// and the unicode symbols.
func ParseSuit(s string) (Suit, error) {
	switch strings.ToUpper(s) {
	case "SPADES", "S", "♠":
		return Spades, nil
	case "HEARTS", "H", "♥":
		return Hearts, nil
	case "DIAMONDS", "D", "♦":
		return Diamonds, nil
	case "CLUBS", "C", "♣":
		return Clubs, nil
	}
	return 0, fmt.Errorf("invalid suit: %q", s)
}

// Rank represents a card rank
type Rank int

const (
	Two Rank = iota + 2
	Three
	Four
	Five
	Six
	Seven
	Eight
	Nine
	Ten
	Jack
	Queen
	King
	Ace
)

// String returns the string representation of a rank
func (r Rank) String() string {
	switch {
	case r >= Two && r <= Nine:
		return fmt.Sprintf("%d", int(r))
	case r == Ten:
		return "10"
	case r == Jack:
		return "J"
	case r == Queen:
		return "Q"
	case r == King:
		return "K"
	case r == Ace:
		return "A"
	default:
		return "?"
	}
}

// Name returns the rank value as the deck service spells it ("ACE", "10", "KING")
func (r Rank) Name() string {
	switch r {
	case Jack:
		return "JACK"
	case Queen:
		return "QUEEN"
	case King:
		return "KING"
	case Ace:
		return "ACE"
	default:
		return r.String()
	}
}

// code is the single character rank used in deck service card codes; ten is "0"
func (r Rank) code() string {
	if r == Ten {
		return "0"
	}
	return r.String()
}

// ParseRank accepts deck service values (ACE, 10, KING) as well as the short
// forms A, T, 0, J, Q, K and 2-9.
func ParseRank(s string) (Rank, error) {
	switch strings.ToUpper(s) {
	case "ACE", "A":
		return Ace, nil
	case "KING", "K":
		return King, nil
	case "QUEEN", "Q":
		return Queen, nil
	case "JACK", "J":
		return Jack, nil
	case "10", "T", "0":
		return Ten, nil
	}
	if len(s) == 1 && s[0] >= '2' && s[0] <= '9' {
		return Rank(s[0] - '0'), nil
	}
	return 0, fmt.Errorf("invalid rank: %q", s)
}

// Card is a playing card as dealt from a shoe. Rank, Suit and Image never
// change once a card exists; only FaceUp is flipped when a card is revealed.
type Card struct {
	Rank   Rank
	Suit   Suit
	Image  string
	FaceUp bool
}

// NewCard creates a face-up card with the public image for its code
func NewCard(rank Rank, suit Suit) Card {
	c := Card{Rank: rank, Suit: suit, FaceUp: true}
	c.Image = ImageURL(c.Code())
	return c
}

// ImageURL returns the public image reference for a card code such as "AS"
func ImageURL(code string) string {
	return imageBaseURL + code + ".png"
}

// ParseCard parses a card code such as "AS", "0H", "10h" or "K♣"
func ParseCard(s string) (Card, error) {
	runes := []rune(s)
	if len(runes) < 2 {
		return Card{}, fmt.Errorf("invalid card: %q", s)
	}
	suit, err := ParseSuit(string(runes[len(runes)-1]))
	if err != nil {
		return Card{}, err
	}
	rank, err := ParseRank(string(runes[:len(runes)-1]))
	if err != nil {
		return Card{}, err
	}
	return NewCard(rank, suit), nil
}

// MustParseCards parses a space separated list of card codes and panics on error.
// Intended for tests and fixtures.
func MustParseCards(s string) []Card {
	fields := strings.Fields(s)
	cards := make([]Card, 0, len(fields))
	for _, f := range fields {
		c, err := ParseCard(f)
		if err != nil {
			panic(err)
		}
		cards = append(cards, c)
	}
	return cards
}

// String returns the string representation of a card (e.g., "A♠")
func (c Card) String() string {
	return c.Rank.String() + c.Suit.String()
}

// Code returns the deck service card code, e.g. "AS" or "0H"
func (c Card) Code() string {
	return c.Rank.code() + c.Suit.Name()[:1]
}

// Value returns the blackjack value of the card counting an Ace as 11.
// Soft-ace reduction happens at hand level.
func (c Card) Value() int {
	switch {
	case c.Rank == Ace:
		return 11
	case c.Rank >= Ten:
		return 10
	default:
		return int(c.Rank)
	}
}

// IsAce returns true if the card is an Ace
func (c Card) IsAce() bool {
	return c.Rank == Ace
}

// IsTenValue returns true for 10, J, Q and K
func (c Card) IsTenValue() bool {
	return c.Rank >= Ten && c.Rank <= King
}

// IsRed returns true if the card is red
func (c Card) IsRed() bool {
	return c.Suit.IsRed()
}

// DisplayImage returns the card face when it is face up and the shared back otherwise
func (c Card) DisplayImage() string {
	if !c.FaceUp {
		return BackImage
	}
	return c.Image
}

// Equal compares rank and suit, ignoring visibility
func (c Card) Equal(other Card) bool {
	return c.Rank == other.Rank && c.Suit == other.Suit
}
