package blackjack

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTransition is matched by every *TransitionError
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrInvalidBet is returned when a wager is empty, below the table minimum or above the bank
	ErrInvalidBet = errors.New("invalid bet")
	// ErrCorruptSave is returned by Resume when a saved snapshot cannot be decoded
	ErrCorruptSave = errors.New("corrupt save")
	// ErrProviderTimeout is the cause of a provider call cancelled by the draw timeout
	ErrProviderTimeout = errors.New("card provider timed out")
	// ErrShortDraw is returned when the provider hands back fewer cards than requested
	ErrShortDraw = errors.New("card provider returned too few cards")
)

// TransitionError reports an operation attempted outside its state
type TransitionError struct {
	Op    string
	State State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s while %s", e.Op, e.State)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// ProviderError wraps a failed card provider call. The round is unchanged
// when one is returned.
type ProviderError struct {
	Op  string
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("card provider %s: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
