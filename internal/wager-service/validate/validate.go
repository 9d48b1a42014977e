package validate

import (
	"fmt"

	"github.com/radieske/race-wager-engine/internal/wager-service/fault"
	"github.com/radieske/race-wager-engine/internal/wager-service/repo"
)

// Funções puras de validação, sem efeito colateral. São o caminho rápido
// pré-transação: as checagens autoritativas (saldo, status da corrida)
// SEMPRE se repetem dentro da transação no repositório.

// Stake valida o valor apostado contra os limites canônicos, em centavos.
func Stake(amountCents, minCents, maxCents int64) error {
	switch {
	case amountCents <= 0:
		return fault.New(fault.InvalidArgument, "stake must be positive")
	case amountCents < minCents:
		return fault.New(fault.InvalidArgument, fmt.Sprintf("stake below minimum of %d cents", minCents))
	case amountCents > maxCents:
		return fault.New(fault.InvalidArgument, fmt.Sprintf("stake above maximum of %d cents", maxCents))
	}
	return nil
}

// Odd valida a odd declarada na aposta (multiplicador decimal entre 1 e o
// teto canônico). Zero significa "usar a odd corrente do board".
func Odd(odd float64) error {
	if odd == 0 {
		return nil
	}
	if odd < 1 || odd > repo.MaxOdd {
		return fault.New(fault.InvalidArgument, fmt.Sprintf("odd must be between 1.0 and %.0f", repo.MaxOdd))
	}
	return nil
}

// Selection valida a seleção contra a forma esperada pelo tipo de aposta.
func Selection(wt repo.WagerType, sel repo.Selection) error {
	return sel.ValidateFor(wt)
}

// RaceEligibility rejeita apostas/cancelamentos em corridas que já largaram
// ou terminaram. Só corridas scheduled aceitam mutação.
func RaceEligibility(status repo.RaceStatus) error {
	if status != repo.RaceScheduled {
		return fault.New(fault.FailedPrecondition, "race is not open for wagering")
	}
	return nil
}

// Balance confere saldo suficiente. Caminho rápido; a checagem que vale é a
// da transação, com a linha da conta travada.
func Balance(account *repo.Account, amountCents int64) error {
	if account.BalanceCents < amountCents {
		return fault.New(fault.FailedPrecondition, "insufficient balance")
	}
	return nil
}

// Admin confere a capability de admin da conta.
func Admin(account *repo.Account) error {
	if account.Role != repo.RoleAdmin {
		return fault.New(fault.PermissionDenied, "caller is not an admin")
	}
	return nil
}
