package repo

import (
	"time"

	"github.com/radieske/race-wager-engine/internal/wager-service/fault"
	"github.com/radieske/race-wager-engine/pkg/contracts/events"
)

// Valores monetários são sempre int64 em centavos.

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Account é a conta do apostador com saldo e agregados.
// Mutada exclusivamente pelas transações deste repositório.
type Account struct {
	ID                string
	BalanceCents      int64
	TotalWageredCents int64
	TotalWonCents     int64
	TotalLostCents    int64
	Role              Role
	Version           int64
	CreatedAt         time.Time
}

// MaxOdd é o teto canônico da odd decimal aceita numa aposta. Mantém o
// payout (stake x odd) longe do limite de int64.
const MaxOdd = 1000.0

type WagerType string

const (
	WagerWin         WagerType = "WIN"
	WagerPlace       WagerType = "PLACE"
	WagerShow        WagerType = "SHOW"
	WagerExacta      WagerType = "EXACTA"
	WagerQuinella    WagerType = "QUINELLA"
	WagerTrifecta    WagerType = "TRIFECTA"
	WagerDailyDouble WagerType = "DAILY_DOUBLE"
	WagerPick3       WagerType = "PICK3"
)

type SelectionKind string

const (
	SelSingle     SelectionKind = "single"
	SelOrdered    SelectionKind = "ordered"
	SelByPosition SelectionKind = "by_position"
	SelByRace     SelectionKind = "by_race"
)

// Selection é a união etiquetada de formas de seleção por tipo de aposta.
// Persistida como JSONB na coluna wagers.selection.
type Selection struct {
	Kind      SelectionKind `json:"kind"`
	Entrant   int           `json:"entrant,omitempty"`   // single (WIN/PLACE/SHOW)
	Ordered   []int         `json:"ordered,omitempty"`   // exacta/trifecta
	Positions map[int][]int `json:"positions,omitempty"` // quinella: posição -> conjunto
	Legs      map[int][]int `json:"legs,omitempty"`      // dupla/pick3: perna -> conjunto
}

// Entrants devolve todos os números de animais citados na seleção,
// independente da forma. Usado pela validação.
func (s Selection) Entrants() []int {
	switch s.Kind {
	case SelSingle:
		return []int{s.Entrant}
	case SelOrdered:
		return s.Ordered
	case SelByPosition:
		var out []int
		for _, set := range s.Positions {
			out = append(out, set...)
		}
		return out
	case SelByRace:
		var out []int
		for _, set := range s.Legs {
			out = append(out, set...)
		}
		return out
	}
	return nil
}

// ValidateFor confere a seleção contra a forma que o tipo de aposta exige.
// Retorna invalid-argument quando vazia, com número de animal < 1 ou com a
// forma errada pro tipo.
func (s Selection) ValidateFor(wt WagerType) error {
	entrants := s.Entrants()
	if len(entrants) == 0 {
		return fault.New(fault.InvalidArgument, "selection is empty")
	}
	for _, e := range entrants {
		if e < 1 {
			return fault.New(fault.InvalidArgument, "entrant numbers start at 1")
		}
	}

	switch wt {
	case WagerWin, WagerPlace, WagerShow:
		if s.Kind != SelSingle {
			return fault.New(fault.InvalidArgument, "wager type requires a single entrant")
		}
	case WagerExacta:
		if s.Kind != SelOrdered || len(s.Ordered) != 2 {
			return fault.New(fault.InvalidArgument, "exacta requires two entrants in order")
		}
	case WagerTrifecta:
		if s.Kind != SelOrdered || len(s.Ordered) != 3 {
			return fault.New(fault.InvalidArgument, "trifecta requires three entrants in order")
		}
	case WagerQuinella:
		if s.Kind != SelByPosition || len(entrants) != 2 {
			return fault.New(fault.InvalidArgument, "quinella requires an unordered pair")
		}
	case WagerDailyDouble:
		if s.Kind != SelByRace || len(s.Legs) != 2 {
			return fault.New(fault.InvalidArgument, "daily double requires selections for two legs")
		}
	case WagerPick3:
		if s.Kind != SelByRace || len(s.Legs) != 3 {
			return fault.New(fault.InvalidArgument, "pick3 requires selections for three legs")
		}
	default:
		return fault.New(fault.InvalidArgument, "unknown wager type: "+string(wt))
	}
	return nil
}

type WagerStatus string

const (
	WagerPending   WagerStatus = "pending"
	WagerWon       WagerStatus = "won"
	WagerLost      WagerStatus = "lost"
	WagerCancelled WagerStatus = "cancelled"
)

// Wager é a aposta persistida. Transições de status são de mão única:
// pending -> won | lost | cancelled.
type Wager struct {
	ID          string
	AccountID   string
	RaceID      string
	Type        WagerType
	Selection   Selection
	StakeCents  int64
	Odd         float64
	Status      WagerStatus
	PayoutCents int64 // preenchido só quando won
	CreatedAt   time.Time
	SettledAt   *time.Time
	CancelledAt *time.Time
}

type EntryType string

const (
	EntryWager      EntryType = "wager"
	EntryRefund     EntryType = "refund"
	EntryWin        EntryType = "win"
	EntryRecharge   EntryType = "recharge"
	EntryWithdrawal EntryType = "withdrawal"
)

// LedgerEntry é o lançamento imutável do razão. Valor negativo = débito.
// A soma dos lançamentos de uma conta é sempre igual ao saldo corrente.
type LedgerEntry struct {
	ID             string
	AccountID      string
	Type           EntryType
	AmountCents    int64
	RelatedWagerID string
	Status         string
	CreatedAt      time.Time
}

type RaceStatus string

const (
	RaceScheduled  RaceStatus = "scheduled"
	RaceInProgress RaceStatus = "in_progress"
	RaceFinished   RaceStatus = "finished"
)

// Race é a corrida; produzida pelo feed externo, o resultado é gravado
// pela liquidação. Depois de finished nunca é re-liquidada.
type Race struct {
	ID          string
	Track       string
	Number      int
	Status      RaceStatus
	Result      *events.RaceResult
	FinishedAt  *time.Time
	FinalizedBy string
}

type FundsKind string

const (
	FundsRecharge   FundsKind = "recharge"
	FundsWithdrawal FundsKind = "withdrawal"
)

type FundsStatus string

const (
	FundsPending  FundsStatus = "pending"
	FundsApproved FundsStatus = "approved"
)

// FundsRequest é um pedido de recarga ou saque, aprovado por um admin.
type FundsRequest struct {
	ID               string
	AccountID        string
	Kind             FundsKind
	AmountCents      int64
	Status           FundsStatus
	PaymentMethod    string
	PaymentReference string
	ApprovedBy       string
	ApprovedAt       *time.Time
	CreatedAt        time.Time
}
