package events

import "time"

// Evento emitido após a liquidação de uma corrida.
type RaceSettled struct {
	RaceID       string    `json:"race_id"`
	TotalBets    int       `json:"total_bets"`
	TotalWinners int       `json:"total_winners"`
	TotalLosers  int       `json:"total_losers"`
	PaidOutCents int64     `json:"paid_out_cents"`
	FinalizedBy  string    `json:"finalized_by"`
	Ts           time.Time `json:"ts"`
}
