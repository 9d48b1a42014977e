package dto

// Selection espelha a união etiquetada do modelo; o kind define qual campo vale.
type Selection struct {
	Kind      string        `json:"kind"` // single | ordered | by_position | by_race
	Entrant   int           `json:"entrant,omitempty"`
	Ordered   []int         `json:"ordered,omitempty"`
	Positions map[int][]int `json:"positions,omitempty"`
	Legs      map[int][]int `json:"legs,omitempty"`
}

type PlaceWagerRequest struct {
	RaceID     string    `json:"raceId"`
	WagerType  string    `json:"wager_type"` // WIN | PLACE | SHOW | EXACTA | ...
	Selection  Selection `json:"selection"`
	StakeCents int64     `json:"stake_cents"`
	Odd        float64   `json:"odd"` // odd que o cliente viu; 0 = usar a corrente
}

type SettleRaceRequest struct {
	Result struct {
		Winner     int         `json:"winner"`
		Place      []int       `json:"place,omitempty"`
		Show       []int       `json:"show,omitempty"`
		Order      []int       `json:"order,omitempty"`
		LegWinners map[int]int `json:"leg_winners,omitempty"`
	} `json:"result"`
}

type FundsRequestCreate struct {
	AmountCents   int64  `json:"amount_cents"`
	PaymentMethod string `json:"payment_method"`
}

type ApproveFundsRequest struct {
	PaymentMethod    string `json:"payment_method"`
	PaymentReference string `json:"payment_reference"`
}
