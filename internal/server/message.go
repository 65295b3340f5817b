package server

import (
	"encoding/json"
	"time"

	"github.com/lox/blackjack/internal/blackjack"
	"github.com/lox/blackjack/internal/deck"
)

// MessageType identifies a websocket message
type MessageType string

// Client → Server
const (
	MessageTypeNew    MessageType = "new"
	MessageTypeBet    MessageType = "bet"
	MessageTypeClear  MessageType = "clear"
	MessageTypeDeal   MessageType = "deal"
	MessageTypeHit    MessageType = "hit"
	MessageTypeStand  MessageType = "stand"
	MessageTypeNext   MessageType = "next"
	MessageTypeResume MessageType = "resume"
)

// Server → Client
const (
	MessageTypeSession MessageType = "session"
	MessageTypeState   MessageType = "state"
	MessageTypeCard    MessageType = "card"
	MessageTypeCleared MessageType = "cleared"
	MessageTypeSettled MessageType = "settled"
	MessageTypeBetInfo MessageType = "bet"
	MessageTypeError   MessageType = "error"
)

// Message represents the base WebSocket message structure
type Message struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	RequestID string          `json:"requestId,omitempty"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(messageType MessageType, data any) (*Message, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return &Message{
		Type:      messageType,
		Data:      raw,
		Timestamp: time.Now(),
	}, nil
}

// Client → Server payloads

type NewGameData struct {
	Reset bool `json:"reset"`
}

type BetData struct {
	Amount int `json:"amount"`
}

// Server → Client payloads

type SessionData struct {
	SessionID string `json:"sessionId"`
}

type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// CardData never carries the rank or suit of a face-down card
type CardData struct {
	Role   string `json:"role"`
	Index  int    `json:"index"`
	SlotID string `json:"slotId"`
	Image  string `json:"image"`
	FaceUp bool   `json:"faceUp"`
	Label  string `json:"label,omitempty"`
	Value  int    `json:"value,omitempty"`
}

type ClearedData struct {
	Role    string   `json:"role"`
	SlotIDs []string `json:"slotIds"`
}

type SettledData struct {
	Outcome string `json:"outcome"`
	Result  string `json:"result"`
	Bet     int    `json:"bet"`
	Payout  int    `json:"payout"`
	Bank    int    `json:"bank"`
}

type BetInfoData struct {
	Bet  int `json:"bet"`
	Bank int `json:"bank"`
}

type StateData struct {
	State       string     `json:"state"`
	Result      string     `json:"result,omitempty"`
	Outcome     string     `json:"outcome,omitempty"`
	Bank        int        `json:"bank"`
	Bet         int        `json:"bet"`
	MinBet      int        `json:"minBet"`
	ShoeID      string     `json:"shoeId,omitempty"`
	Dealer      []CardData `json:"dealer"`
	Player      []CardData `json:"player"`
	DealerTotal int        `json:"dealerTotal"`
	PlayerTotal int        `json:"playerTotal"`
}

func cardData(role blackjack.Role, i int, c deck.Card) CardData {
	d := CardData{
		Role:   string(role),
		Index:  i,
		SlotID: blackjack.SlotID(role, i),
		Image:  c.DisplayImage(),
		FaceUp: c.FaceUp,
	}
	if c.FaceUp {
		d.Label = c.String()
		d.Value = c.Value()
	}
	return d
}

// StateFromTable converts an engine snapshot for the wire
func StateFromTable(t blackjack.Table) StateData {
	s := StateData{
		State:       t.State.String(),
		Result:      t.Result,
		Bank:        t.Bank,
		Bet:         t.Bet,
		MinBet:      t.MinBet,
		ShoeID:      t.ShoeID,
		Dealer:      make([]CardData, len(t.Dealer)),
		Player:      make([]CardData, len(t.Player)),
		DealerTotal: t.DealerTotal,
		PlayerTotal: t.PlayerTotal,
	}
	if t.Outcome != blackjack.OutcomeNone {
		s.Outcome = t.Outcome.String()
	}
	for i, c := range t.Dealer {
		s.Dealer[i] = cardData(blackjack.Dealer, i, c)
	}
	for i, c := range t.Player {
		s.Player[i] = cardData(blackjack.Player, i, c)
	}
	return s
}

// MessageFromEvent converts an engine event. State changes are sent as full
// snapshots by the connection instead, so they return nil here.
func MessageFromEvent(event blackjack.Event) (*Message, error) {
	switch e := event.(type) {
	case blackjack.CardShownEvent:
		d := CardData{
			Role:   string(e.Role),
			Index:  e.Index,
			SlotID: e.SlotID,
			Image:  e.Image,
			FaceUp: e.FaceUp,
		}
		if e.FaceUp {
			d.Label = e.Label
		}
		return NewMessage(MessageTypeCard, d)
	case blackjack.HandClearedEvent:
		return NewMessage(MessageTypeCleared, ClearedData{Role: string(e.Role), SlotIDs: e.SlotIDs})
	case blackjack.RoundSettledEvent:
		return NewMessage(MessageTypeSettled, SettledData{
			Outcome: e.Outcome.String(),
			Result:  e.Result,
			Bet:     e.Bet,
			Payout:  e.Payout,
			Bank:    e.Bank,
		})
	case blackjack.BetChangedEvent:
		return NewMessage(MessageTypeBetInfo, BetInfoData{Bet: e.Bet, Bank: e.Bank})
	default:
		return nil, nil
	}
}
