package events

import "time"

// RaceResult é o resultado oficial publicado pelo fornecedor (ou pelo admin).
// Winner é obrigatório; Place/Show/Order e LegWinners dependem do cartão.
type RaceResult struct {
	Winner     int         `json:"winner"`
	Place      []int       `json:"place,omitempty"`
	Show       []int       `json:"show,omitempty"`
	Order      []int       `json:"order,omitempty"`       // ordem de chegada completa
	LegWinners map[int]int `json:"leg_winners,omitempty"` // perna -> vencedor (dupla/pick3)
}

// RaceUpdate é a mensagem do feed de corridas: cartão, transição de status e,
// quando finished, o resultado oficial.
type RaceUpdate struct {
	RaceID    string      `json:"race_id"`
	Track     string      `json:"track"`
	Number    int         `json:"number"` // número da corrida no programa
	Status    string      `json:"status"` // scheduled | in_progress | finished
	Entrants  []int       `json:"entrants,omitempty"`
	Odds      []OddsQuote `json:"odds,omitempty"` // board corrente, quando o feed envia
	Result    *RaceResult `json:"result,omitempty"`
	Source    string      `json:"source"`
	Version   int         `json:"version"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// OddsQuote é a odd corrente de um par (corrida, tipo de aposta, número do animal).
type OddsQuote struct {
	RaceID    string  `json:"race_id"`
	WagerType string  `json:"wager_type"`
	Entrant   int     `json:"entrant"`
	Odd       float64 `json:"odd"`
}
