package simulator

import "github.com/lox/blackjack/internal/blackjack"

// Stats aggregates settled rounds
type Stats struct {
	Sessions int
	Rounds   int
	Shoes    int
	Bankrupt int

	PlayerWins int
	DealerWins int
	Pushes     int

	PlayerBlackjacks int
	DealerBlackjacks int
	PlayerBusts      int
	DealerBusts      int

	Wagered int
	Net     int
}

func (s *Stats) record(event blackjack.Event) {
	e, ok := event.(blackjack.RoundSettledEvent)
	if !ok {
		return
	}

	s.Rounds++
	s.Wagered += e.Bet
	s.Net += e.Payout - e.Bet

	switch e.Outcome {
	case blackjack.OutcomePlayerWin:
		s.PlayerWins++
	case blackjack.OutcomeDealerWin:
		s.DealerWins++
	case blackjack.OutcomePush:
		s.Pushes++
	}

	switch e.Result {
	case blackjack.ResultPlayerBlackjack:
		s.PlayerBlackjacks++
	case blackjack.ResultDealerBlackjack:
		s.DealerBlackjacks++
	case blackjack.ResultPlayerBust:
		s.PlayerBusts++
	case blackjack.ResultDealerBust:
		s.DealerBusts++
	}
}

// Merge adds other into s
func (s *Stats) Merge(other *Stats) {
	s.Sessions += other.Sessions
	s.Rounds += other.Rounds
	s.Shoes += other.Shoes
	s.Bankrupt += other.Bankrupt
	s.PlayerWins += other.PlayerWins
	s.DealerWins += other.DealerWins
	s.Pushes += other.Pushes
	s.PlayerBlackjacks += other.PlayerBlackjacks
	s.DealerBlackjacks += other.DealerBlackjacks
	s.PlayerBusts += other.PlayerBusts
	s.DealerBusts += other.DealerBusts
	s.Wagered += other.Wagered
	s.Net += other.Net
}

// WinRate is the share of rounds the player won
func (s *Stats) WinRate() float64 {
	if s.Rounds == 0 {
		return 0
	}
	return float64(s.PlayerWins) / float64(s.Rounds)
}

// Edge is the player's return per unit wagered. Negative favours the house.
func (s *Stats) Edge() float64 {
	if s.Wagered == 0 {
		return 0
	}
	return float64(s.Net) / float64(s.Wagered)
}
