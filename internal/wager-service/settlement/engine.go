package settlement

import (
	"context"
	"database/sql"
	"encoding/json"
	"math"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/radieske/race-wager-engine/internal/wager-service/fault"
	"github.com/radieske/race-wager-engine/internal/wager-service/repo"
	"github.com/radieske/race-wager-engine/pkg/contracts/events"
)

// Engine liquida todas as apostas pending de uma corrida contra o resultado
// oficial, numa única transação: trava a corrida, grava o resultado, trava as
// apostas pendentes e aplica crédito/derrota por aposta. Tudo-ou-nada; uma
// corrida finished nunca é re-liquidada.
type Engine struct {
	db  *sql.DB
	log *zap.Logger
}

func New(db *sql.DB, log *zap.Logger) *Engine {
	return &Engine{db: db, log: log}
}

// Caller identifica quem dispara a liquidação. Chamadas humanas passam a
// conta admin (o role é re-verificado dentro da transação); o worker do feed
// entra como System com o nome da origem.
type Caller struct {
	AccountID string
	System    bool
	Source    string
}

func (c Caller) FinalizedBy() string {
	if c.System {
		return c.Source
	}
	return c.AccountID
}

// Summary é o resultado agregado da liquidação.
type Summary struct {
	TotalBets    int
	TotalWinners int
	TotalLosers  int
	PaidOutCents int64
}

type pendingWager struct {
	id        string
	accountID string
	wagerType repo.WagerType
	selection repo.Selection
	stake     int64
	odd       float64
}

// Settle roda a liquidação da corrida. Falhas antes do commit não deixam
// nenhuma mutação parcial pra trás.
func (e *Engine) Settle(ctx context.Context, caller Caller, raceID string, result events.RaceResult) (*Summary, error) {
	if !caller.System && caller.AccountID == "" {
		return nil, fault.New(fault.Unauthenticated, "missing caller identity")
	}

	result, err := normalizeResult(result)
	if err != nil {
		return nil, err
	}

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fault.Wrap(err, "store failure")
	}
	defer tx.Rollback()

	if !caller.System {
		var role string
		err := tx.QueryRowContext(ctx, `SELECT role FROM accounts WHERE id=$1`, caller.AccountID).Scan(&role)
		if err == sql.ErrNoRows {
			return nil, fault.New(fault.PermissionDenied, "caller is not an admin")
		}
		if err != nil {
			return nil, fault.Wrap(err, "store failure")
		}
		if repo.Role(role) != repo.RoleAdmin {
			return nil, fault.New(fault.PermissionDenied, "caller is not an admin")
		}
	}

	// Trava a corrida: nada entra nem sai enquanto a liquidação roda, e a
	// re-liquidação é barrada aqui.
	var status string
	err = tx.QueryRowContext(ctx, `SELECT status FROM races WHERE id=$1 FOR UPDATE`, raceID).Scan(&status)
	if err == sql.ErrNoRows {
		return nil, fault.New(fault.NotFound, "race not found")
	}
	if err != nil {
		return nil, fault.Wrap(err, "store failure")
	}
	if repo.RaceStatus(status) == repo.RaceFinished {
		return nil, fault.New(fault.FailedPrecondition, "race already settled")
	}

	resultJSON, err := json.Marshal(result)
	if err != nil {
		return nil, fault.Wrap(err, "encode result")
	}
	if _, err = tx.ExecContext(ctx, `
		UPDATE races SET status='finished', result=$1, finished_at=NOW(), finalized_by=$2 WHERE id=$3`,
		resultJSON, caller.FinalizedBy(), raceID); err != nil {
		return nil, fault.Wrap(err, "store failure")
	}

	pending, err := lockPendingWagers(ctx, tx, raceID)
	if err != nil {
		return nil, err
	}

	// Aposta multi-corrida com perna sem vencedor no resultado aborta a
	// liquidação inteira antes de qualquer mutação por aposta.
	for _, w := range pending {
		if !coversLegs(w.selection, result) {
			return nil, fault.New(fault.InvalidArgument, "result does not cover all legs of pending multi-race wagers")
		}
	}

	sum := &Summary{TotalBets: len(pending)}
	for _, w := range pending {
		won, err := IsWinner(w.wagerType, w.selection, result)
		if err != nil {
			return nil, err
		}
		if won {
			// Aposta com odd fora dos limites canônicos nunca deveria ter sido
			// aceita; creditar estouraria int64, então aborta tudo.
			if w.odd < 1 || w.odd > repo.MaxOdd {
				return nil, fault.New(fault.Internal, "wager carries an odd outside allowed bounds")
			}
			payout := int64(math.Round(float64(w.stake) * w.odd))
			if payout < w.stake {
				return nil, fault.New(fault.Internal, "payout overflow")
			}
			if err := e.creditWinner(ctx, tx, w, payout); err != nil {
				return nil, err
			}
			sum.TotalWinners++
			sum.PaidOutCents += payout
		} else {
			if err := e.recordLoser(ctx, tx, w); err != nil {
				return nil, err
			}
			sum.TotalLosers++
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, fault.Wrap(err, "store failure")
	}

	e.log.Info("race settled",
		zap.String("race_id", raceID),
		zap.String("finalized_by", caller.FinalizedBy()),
		zap.Int("total_bets", sum.TotalBets),
		zap.Int("winners", sum.TotalWinners),
		zap.Int("losers", sum.TotalLosers),
		zap.Int64("paid_out_cents", sum.PaidOutCents),
	)
	return sum, nil
}

// lockPendingWagers carrega e trava as apostas pendentes da corrida, em ordem
// de id pra evitar deadlock entre liquidadores concorrentes.
func lockPendingWagers(ctx context.Context, tx *sql.Tx, raceID string) ([]pendingWager, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT id, account_id, wager_type, selection, stake_cents, odd
		FROM wagers
		WHERE race_id=$1 AND status='pending'
		ORDER BY id
		FOR UPDATE`, raceID)
	if err != nil {
		return nil, fault.Wrap(err, "store failure")
	}
	defer rows.Close()

	var out []pendingWager
	for rows.Next() {
		var w pendingWager
		var selJSON []byte
		if err := rows.Scan(&w.id, &w.accountID, &w.wagerType, &selJSON, &w.stake, &w.odd); err != nil {
			return nil, fault.Wrap(err, "store failure")
		}
		if err := json.Unmarshal(selJSON, &w.selection); err != nil {
			return nil, fault.Wrap(err, "decode selection")
		}
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fault.Wrap(err, "store failure")
	}
	return out, nil
}

// creditWinner: payout = stake x odd; credita a conta, marca won e anexa o
// lançamento de ganho.
func (e *Engine) creditWinner(ctx context.Context, tx *sql.Tx, w pendingWager, payout int64) error {
	if _, err := tx.ExecContext(ctx, `
		UPDATE accounts
		SET balance_cents = balance_cents + $1,
		    total_won_cents = total_won_cents + $2,
		    version = version + 1
		WHERE id = $3`,
		payout, payout-w.stake, w.accountID); err != nil {
		return fault.Wrap(err, "store failure")
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE wagers SET status='won', payout_cents=$1, settled_at=NOW() WHERE id=$2`,
		payout, w.id); err != nil {
		return fault.Wrap(err, "store failure")
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO ledger_entries(id, account_id, entry_type, amount_cents, related_wager_id, status, created_at)
		VALUES($1,$2,'win',$3,$4,'committed',NOW())`,
		uuid.NewString(), w.accountID, payout, w.id); err != nil {
		return fault.Wrap(err, "store failure")
	}
	return nil
}

// recordLoser: o débito já aconteceu na colocação; aqui só agrega a perda e
// marca lost. Sem lançamento no razão.
func (e *Engine) recordLoser(ctx context.Context, tx *sql.Tx, w pendingWager) error {
	if _, err := tx.ExecContext(ctx, `
		UPDATE accounts
		SET total_lost_cents = total_lost_cents + $1,
		    version = version + 1
		WHERE id = $2`,
		w.stake, w.accountID); err != nil {
		return fault.Wrap(err, "store failure")
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE wagers SET status='lost', settled_at=NOW() WHERE id=$1`,
		w.id); err != nil {
		return fault.Wrap(err, "store failure")
	}
	return nil
}
