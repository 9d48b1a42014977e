package topics

const (
	// Feed de corridas (fornecedor -> plataforma)
	RaceUpdates    = "race_updates"
	RaceUpdatesDLQ = "race_updates_dlq"

	// Apostas
	WagerPlaced    = "wager_placed"
	WagerCancelled = "wager_cancelled"

	// Liquidação
	RaceSettled = "race_settled"
)
