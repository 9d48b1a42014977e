package settlement

import (
	"github.com/radieske/race-wager-engine/internal/wager-service/fault"
	"github.com/radieske/race-wager-engine/internal/wager-service/repo"
	"github.com/radieske/race-wager-engine/pkg/contracts/events"
)

// Rule decide, de forma binária, se uma seleção ganhou contra o resultado
// oficial. O engine despacha pelo tipo de aposta via registry; tipo novo é
// entrada nova aqui, sem mexer no fluxo de liquidação.
type Rule func(sel repo.Selection, res events.RaceResult) bool

var rules = map[repo.WagerType]Rule{
	repo.WagerWin: func(sel repo.Selection, res events.RaceResult) bool {
		return sel.Entrant == res.Winner
	},
	repo.WagerPlace: func(sel repo.Selection, res events.RaceResult) bool {
		return containsInt(res.Place, sel.Entrant)
	},
	repo.WagerShow: func(sel repo.Selection, res events.RaceResult) bool {
		return containsInt(res.Show, sel.Entrant)
	},
	repo.WagerExacta: func(sel repo.Selection, res events.RaceResult) bool {
		return orderedPrefixMatch(sel.Ordered, res.Order, 2)
	},
	repo.WagerTrifecta: func(sel repo.Selection, res events.RaceResult) bool {
		return orderedPrefixMatch(sel.Ordered, res.Order, 3)
	},
	repo.WagerQuinella: func(sel repo.Selection, res events.RaceResult) bool {
		if len(res.Order) < 2 {
			return false
		}
		return sameSet(sel.Entrants(), res.Order[:2])
	},
	repo.WagerDailyDouble: legsRule,
	repo.WagerPick3:       legsRule,
}

// legsRule: toda perna selecionada tem que conter o vencedor daquela perna.
func legsRule(sel repo.Selection, res events.RaceResult) bool {
	if len(sel.Legs) == 0 {
		return false
	}
	for leg, set := range sel.Legs {
		winner, ok := res.LegWinners[leg]
		if !ok || !containsInt(set, winner) {
			return false
		}
	}
	return true
}

// IsWinner avalia a aposta contra o resultado. Tipo sem regra registrada é
// erro interno: liquidar às cegas seria pior que abortar.
func IsWinner(wt repo.WagerType, sel repo.Selection, res events.RaceResult) (bool, error) {
	rule, ok := rules[wt]
	if !ok {
		return false, fault.New(fault.Internal, "no settlement rule for wager type "+string(wt))
	}
	return rule(sel, res), nil
}

// normalizeResult completa place/show a partir da ordem de chegada quando o
// fornecedor só manda a ordem, e exige um vencedor.
func normalizeResult(res events.RaceResult) (events.RaceResult, error) {
	if res.Winner == 0 && len(res.Order) > 0 {
		res.Winner = res.Order[0]
	}
	if res.Winner < 1 {
		return res, fault.New(fault.InvalidArgument, "result is missing a winner")
	}
	if len(res.Place) == 0 && len(res.Order) >= 2 {
		res.Place = res.Order[:2]
	}
	if len(res.Show) == 0 && len(res.Order) >= 3 {
		res.Show = res.Order[:3]
	}
	return res, nil
}

// coversLegs confere se o resultado traz vencedor pra toda perna citada na
// seleção. Aposta multi-corrida nunca é liquidada com perna descoberta.
func coversLegs(sel repo.Selection, res events.RaceResult) bool {
	if sel.Kind != repo.SelByRace {
		return true
	}
	for leg := range sel.Legs {
		if _, ok := res.LegWinners[leg]; !ok {
			return false
		}
	}
	return true
}

func containsInt(xs []int, x int) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}

func orderedPrefixMatch(sel, order []int, n int) bool {
	if len(sel) != n || len(order) < n {
		return false
	}
	for i := 0; i < n; i++ {
		if sel[i] != order[i] {
			return false
		}
	}
	return true
}

func sameSet(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[int]bool, len(a))
	for _, v := range a {
		seen[v] = true
	}
	for _, v := range b {
		if !seen[v] {
			return false
		}
	}
	return true
}
