package blackjack

import "fmt"

// State is the round lifecycle position
type State int

const (
	StateInitial State = iota
	StateBetting
	StatePlaying
	StateResult
)

var stateNames = [...]string{"initial", "betting", "playing", "result"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// ParseState is the inverse of State.String
func ParseState(s string) (State, error) {
	for i, name := range stateNames {
		if name == s {
			return State(i), nil
		}
	}
	return StateInitial, fmt.Errorf("unknown state %q", s)
}

// Outcome is who the settled round went to
type Outcome int

const (
	OutcomeNone Outcome = iota
	OutcomePlayerWin
	OutcomeDealerWin
	OutcomePush
)

func (o Outcome) String() string {
	switch o {
	case OutcomePlayerWin:
		return "player_win"
	case OutcomeDealerWin:
		return "dealer_win"
	case OutcomePush:
		return "push"
	default:
		return "none"
	}
}

// Result texts shown to the player once a round settles
const (
	ResultPlayerBlackjack = "Player Blackjack"
	ResultDealerBlackjack = "Dealer Blackjack"
	ResultPush            = "Push"
	ResultPlayerBust      = "Player Bust"
	ResultDealerBust      = "Dealer Bust"
	ResultDealerWon       = "Dealer Won"
	ResultPlayerWon       = "Player Won"
)

var resultOutcomes = map[string]Outcome{
	ResultPlayerBlackjack: OutcomePlayerWin,
	ResultDealerBlackjack: OutcomeDealerWin,
	ResultPush:            OutcomePush,
	ResultPlayerBust:      OutcomeDealerWin,
	ResultDealerBust:      OutcomePlayerWin,
	ResultDealerWon:       OutcomeDealerWin,
	ResultPlayerWon:       OutcomePlayerWin,
}

// OutcomeOf maps a result text back to its outcome
func OutcomeOf(result string) Outcome {
	return resultOutcomes[result]
}

// Payout is what a settled bet returns to the bank. The bet was already
// deducted when the cards were dealt.
func Payout(o Outcome, bet int) int {
	switch o {
	case OutcomePlayerWin:
		return 2 * bet
	case OutcomePush:
		return bet
	default:
		return 0
	}
}
