package blackjack

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
)

// Storage keys. Hands are stored under their role name.
const (
	KeyDeck      = "deck"
	KeyGameState = "gameState"
	KeyResult    = "result"
	KeyBet       = "bet"
)

// save writes the whole round through to the store. Failures are logged and
// play continues; the next successful save catches up.
func (e *Engine) save(ctx context.Context) {
	if e.store == nil {
		return
	}

	player := e.player.snapshot()
	bank := e.bank
	player.Bank = &bank

	dealerJSON, err := json.Marshal(e.dealer.snapshot())
	if err != nil {
		e.logger.Warn("Failed to encode dealer hand", "error", err)
		return
	}
	playerJSON, err := json.Marshal(player)
	if err != nil {
		e.logger.Warn("Failed to encode player hand", "error", err)
		return
	}

	// gameState goes last so a save interrupted part way is still read
	// back with the previous state
	entries := []struct{ key, value string }{
		{KeyDeck, e.shoeID},
		{string(Dealer), string(dealerJSON)},
		{string(Player), string(playerJSON)},
		{KeyBet, strconv.Itoa(e.bet)},
		{KeyResult, e.result},
		{KeyGameState, e.state.String()},
	}
	for _, kv := range entries {
		if err := e.store.Set(ctx, kv.key, kv.value); err != nil {
			e.logger.Warn("Failed to save game", "key", kv.key, "error", err)
			return
		}
	}
}

// Resume restores a saved round. It reports false when there is nothing to
// resume, including when the store cannot be read. A save that exists but
// cannot be decoded returns ErrCorruptSave and leaves the engine untouched.
// On success every card is re-published followed by the state.
func (e *Engine) Resume(ctx context.Context) (bool, error) {
	if err := e.require("resume", StateInitial); err != nil {
		return false, err
	}
	if e.store == nil {
		return false, nil
	}

	shoeID, ok, err := e.store.Get(ctx, KeyDeck)
	if err != nil {
		e.logger.Warn("Failed to read saved game", "error", err)
		return false, nil
	}
	if !ok || shoeID == "" {
		return false, nil
	}

	rawState, ok, err := e.store.Get(ctx, KeyGameState)
	if err != nil {
		e.logger.Warn("Failed to read saved game", "error", err)
		return false, nil
	}
	if !ok {
		return false, fmt.Errorf("%w: missing %s", ErrCorruptSave, KeyGameState)
	}
	state, err := ParseState(rawState)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrCorruptSave, err)
	}
	if state == StateInitial {
		return false, nil
	}

	dealer, _, err := e.loadHand(ctx, Dealer)
	if err != nil {
		return e.resumeFailed(err)
	}
	player, bank, err := e.loadHand(ctx, Player)
	if err != nil {
		return e.resumeFailed(err)
	}

	result, _, err := e.store.Get(ctx, KeyResult)
	if err != nil {
		e.logger.Warn("Failed to read saved game", "error", err)
		return false, nil
	}

	rawBet, ok, err := e.store.Get(ctx, KeyBet)
	if err != nil {
		e.logger.Warn("Failed to read saved game", "error", err)
		return false, nil
	}
	bet := 0
	if ok && rawBet != "" {
		if bet, err = strconv.Atoi(rawBet); err != nil || bet < 0 {
			return false, fmt.Errorf("%w: bad bet %q", ErrCorruptSave, rawBet)
		}
	}

	if bank == nil {
		b := e.startingBank
		bank = &b
	}
	if state == StateResult && result == "" {
		return false, fmt.Errorf("%w: settled round without a result", ErrCorruptSave)
	}
	if state == StatePlaying && (dealer.Len() < 2 || player.Len() < 2) {
		return false, fmt.Errorf("%w: round in play without a full deal", ErrCorruptSave)
	}

	e.shoeID = shoeID
	e.dealer = dealer
	e.player = player
	e.bank = *bank
	e.bet = bet
	e.result = result
	e.outcome = OutcomeOf(result)

	e.logger.Info("Resumed game", "shoe", shoeID, "state", state, "bank", e.bank, "bet", e.bet)

	for _, h := range []*Hand{e.dealer, e.player} {
		for i := range h.Len() {
			e.publishCard(h, i)
		}
	}
	e.publish(BetChangedEvent{Bet: e.bet, Bank: e.bank})
	e.setState(state)
	return true, nil
}

type storeReadError struct{ err error }

func (e *storeReadError) Error() string { return e.err.Error() }

func (e *Engine) resumeFailed(err error) (bool, error) {
	if readErr, ok := err.(*storeReadError); ok {
		e.logger.Warn("Failed to read saved game", "error", readErr.err)
		return false, nil
	}
	return false, err
}

func (e *Engine) loadHand(ctx context.Context, role Role) (*Hand, *int, error) {
	h := NewHand(role)
	raw, ok, err := e.store.Get(ctx, string(role))
	if err != nil {
		return nil, nil, &storeReadError{err}
	}
	if !ok || raw == "" {
		return h, nil, nil
	}

	var snap handSnapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return nil, nil, fmt.Errorf("%w: %s hand: %v", ErrCorruptSave, role, err)
	}
	if snap.Name != role {
		return nil, nil, fmt.Errorf("%w: %s key holds %q hand", ErrCorruptSave, role, snap.Name)
	}
	if err := h.restore(snap); err != nil {
		return nil, nil, fmt.Errorf("%w: %s hand: %v", ErrCorruptSave, role, err)
	}
	if snap.Bank != nil && *snap.Bank < 0 {
		return nil, nil, fmt.Errorf("%w: negative bank", ErrCorruptSave)
	}
	return h, snap.Bank, nil
}
