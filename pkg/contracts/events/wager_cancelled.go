package events

type WagerCancelled struct {
	WagerID       string `json:"wager_id"`
	AccountID     string `json:"account_id"`
	RaceID        string `json:"race_id"`
	RefundedCents int64  `json:"refunded_cents"`
	TsUnixMs      int64  `json:"ts_unix_ms"`
}
