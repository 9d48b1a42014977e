package dto

type AccountResponse struct {
	AccountID         string `json:"accountId"`
	BalanceCents      int64  `json:"balance_cents"`
	TotalWageredCents int64  `json:"total_wagered_cents"`
	TotalWonCents     int64  `json:"total_won_cents"`
	TotalLostCents    int64  `json:"total_lost_cents"`
	Role              string `json:"role"`
}

type PlaceWagerResponse struct {
	WagerID         string `json:"wagerId"`
	Status          string `json:"status"` // pending
	NewBalanceCents int64  `json:"new_balance_cents"`
}

type CancelWagerResponse struct {
	WagerID         string `json:"wagerId"`
	Status          string `json:"status"` // cancelled
	RefundedCents   int64  `json:"refunded_cents"`
	NewBalanceCents int64  `json:"new_balance_cents"`
}

type WagerStatusResponse struct {
	WagerID     string  `json:"wagerId"`
	RaceID      string  `json:"raceId"`
	WagerType   string  `json:"wager_type"`
	StakeCents  int64   `json:"stake_cents"`
	Odd         float64 `json:"odd"`
	Status      string  `json:"status"`
	PayoutCents int64   `json:"payout_cents,omitempty"`
}

type SettleRaceResponse struct {
	RaceID       string `json:"raceId"`
	TotalBets    int    `json:"totalBets"`
	TotalWinners int    `json:"totalWinners"`
	TotalLosers  int    `json:"totalLosers"`
}

type FundsRequestResponse struct {
	RequestID string `json:"requestId"`
	Status    string `json:"status"` // pending | approved
}

// ErrorResponse é o corpo padrão de erro: kind da taxonomia + mensagem legível.
type ErrorResponse struct {
	Error   string `json:"error"` // kind
	Message string `json:"message"`
}
