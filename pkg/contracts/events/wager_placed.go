package events

type WagerPlaced struct {
	WagerID    string  `json:"wager_id"`
	AccountID  string  `json:"account_id"`
	RaceID     string  `json:"race_id"`
	WagerType  string  `json:"wager_type"`
	StakeCents int64   `json:"stake_cents"`
	Odd        float64 `json:"odd"`
	TsUnixMs   int64   `json:"ts_unix_ms"`
}
