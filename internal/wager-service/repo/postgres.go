package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/radieske/race-wager-engine/internal/wager-service/fault"
)

// Postgres implementa as transações atômicas do engine sobre as coleções
// accounts, wagers, ledger_entries, races e funds_requests.
//
// Toda mutação de saldo passa por lock pessimista (SELECT ... FOR UPDATE) na
// linha da conta mais bump de versão; nunca existe um incremento "cru" de
// saldo fora dessas transações.
type Postgres struct {
	db            *sql.DB
	MinStakeCents int64
	MaxStakeCents int64
}

func NewPostgres(db *sql.DB, minStake, maxStake int64) *Postgres {
	return &Postgres{db: db, MinStakeCents: minStake, MaxStakeCents: maxStake}
}

// DB expõe a conexão para quem compõe transações próprias (liquidação).
func (p *Postgres) DB() *sql.DB { return p.db }

// GetOrCreateAccount retorna a conta do usuário, criando com saldo zero e
// role user se não existir. Usada no registro. O ON CONFLICT absorve dois
// registros simultâneos do mesmo id: os dois caem na releitura e recebem a
// mesma conta.
func (p *Postgres) GetOrCreateAccount(ctx context.Context, accountID string) (*Account, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fault.Wrap(err, "store failure")
	}
	defer tx.Rollback()

	acc, err := p.getAccountTx(ctx, tx, accountID, false)
	if err != nil {
		if fault.KindOf(err) != fault.NotFound {
			return nil, err
		}
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO accounts(id, balance_cents, total_wagered_cents, total_won_cents, total_lost_cents, role, version, created_at)
			 VALUES($1,0,0,0,0,'user',1,$2)
			 ON CONFLICT (id) DO NOTHING`,
			accountID, time.Now().UTC()); err != nil {
			return nil, fault.Wrap(err, "store failure")
		}
		// relê dentro da mesma transação: em read committed a linha do
		// concorrente já commitado aparece aqui
		if acc, err = p.getAccountTx(ctx, tx, accountID, false); err != nil {
			return nil, err
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, fault.Wrap(err, "store failure")
	}
	return acc, nil
}

// GetAccount lê a conta sem lock (caminho rápido de validação e consultas).
func (p *Postgres) GetAccount(ctx context.Context, accountID string) (*Account, error) {
	return p.getAccount(ctx, p.db, accountID, false)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (p *Postgres) getAccount(ctx context.Context, q queryRower, accountID string, forUpdate bool) (*Account, error) {
	query := `SELECT id, balance_cents, total_wagered_cents, total_won_cents, total_lost_cents, role, version FROM accounts WHERE id=$1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	var a Account
	err := q.QueryRowContext(ctx, query, accountID).
		Scan(&a.ID, &a.BalanceCents, &a.TotalWageredCents, &a.TotalWonCents, &a.TotalLostCents, &a.Role, &a.Version)
	if err == sql.ErrNoRows {
		return nil, fault.New(fault.NotFound, "account not found")
	}
	if err != nil {
		return nil, fault.Wrap(err, "store failure")
	}
	return &a, nil
}

func (p *Postgres) getAccountTx(ctx context.Context, tx *sql.Tx, accountID string, forUpdate bool) (*Account, error) {
	return p.getAccount(ctx, tx, accountID, forUpdate)
}

// applyAccountDelta grava a mutação de saldo/agregados com compare-and-commit
// na versão. Com a linha travada a versão nunca diverge; a cláusula fica como
// guarda contra escrita fora das transações deste repositório.
func applyAccountDelta(ctx context.Context, tx *sql.Tx, acc *Account, dBalance, dWagered, dWon, dLost int64) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE accounts
		SET balance_cents = balance_cents + $1,
		    total_wagered_cents = total_wagered_cents + $2,
		    total_won_cents = total_won_cents + $3,
		    total_lost_cents = total_lost_cents + $4,
		    version = version + 1
		WHERE id = $5 AND version = $6`,
		dBalance, dWagered, dWon, dLost, acc.ID, acc.Version)
	if err != nil {
		return fault.Wrap(err, "store failure")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fault.Wrap(err, "store failure")
	}
	if n != 1 {
		return fault.New(fault.Internal, "account version conflict")
	}
	return nil
}

// insertLedgerEntry anexa um lançamento ao razão. Lançamentos nunca são
// alterados ou removidos depois.
func insertLedgerEntry(ctx context.Context, tx *sql.Tx, accountID string, t EntryType, amountCents int64, relatedWagerID string) (string, error) {
	id := uuid.NewString()
	var related any
	if relatedWagerID != "" {
		related = relatedWagerID
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO ledger_entries(id, account_id, entry_type, amount_cents, related_wager_id, status, created_at)
		VALUES($1,$2,$3,$4,$5,'committed',NOW())`,
		id, accountID, string(t), amountCents, related)
	if err != nil {
		return "", fault.Wrap(err, "store failure")
	}
	return id, nil
}

// getRaceStatusTx lê o status da corrida dentro da transação, com FOR SHARE
// pra serializar contra a liquidação (que trava a corrida FOR UPDATE).
func getRaceStatusTx(ctx context.Context, tx *sql.Tx, raceID string) (RaceStatus, error) {
	var st string
	err := tx.QueryRowContext(ctx, `SELECT status FROM races WHERE id=$1 FOR SHARE`, raceID).Scan(&st)
	if err == sql.ErrNoRows {
		return "", fault.New(fault.FailedPrecondition, "race not found")
	}
	if err != nil {
		return "", fault.Wrap(err, "store failure")
	}
	return RaceStatus(st), nil
}

// PlaceWager executa a transação de aposta (débito + wager + lançamento) de
// forma tudo-ou-nada e retorna o id da aposta e o saldo pós-transação.
//
// As pré-condições (corrida scheduled, stake dentro dos limites, saldo) são
// re-checadas aqui dentro mesmo que o handler já tenha validado antes.
func (p *Postgres) PlaceWager(ctx context.Context, accountID, raceID string, wt WagerType, sel Selection, stakeCents int64, odd float64) (wagerID string, newBalance int64, err error) {
	switch {
	case stakeCents <= 0:
		return "", 0, fault.New(fault.InvalidArgument, "stake must be positive")
	case stakeCents < p.MinStakeCents || stakeCents > p.MaxStakeCents:
		return "", 0, fault.New(fault.InvalidArgument, "stake outside allowed bounds")
	case odd < 1 || odd > MaxOdd:
		return "", 0, fault.New(fault.InvalidArgument, "odd outside allowed bounds")
	}
	if err = sel.ValidateFor(wt); err != nil {
		return "", 0, err
	}

	selJSON, err := json.Marshal(sel)
	if err != nil {
		return "", 0, fault.Wrap(err, "encode selection")
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return "", 0, fault.Wrap(err, "store failure")
	}
	defer tx.Rollback()

	st, err := getRaceStatusTx(ctx, tx, raceID)
	if err != nil {
		return "", 0, err
	}
	if st != RaceScheduled {
		return "", 0, fault.New(fault.FailedPrecondition, "race is not open for wagering")
	}

	acc, err := p.getAccountTx(ctx, tx, accountID, true)
	if err != nil {
		return "", 0, err
	}
	if acc.BalanceCents < stakeCents {
		return "", 0, fault.New(fault.FailedPrecondition, "insufficient balance")
	}

	if err = applyAccountDelta(ctx, tx, acc, -stakeCents, stakeCents, 0, 0); err != nil {
		return "", 0, err
	}

	wagerID = uuid.NewString()
	if _, err = tx.ExecContext(ctx, `
		INSERT INTO wagers(id, account_id, race_id, wager_type, selection, stake_cents, odd, status, created_at)
		VALUES($1,$2,$3,$4,$5,$6,$7,'pending',NOW())`,
		wagerID, accountID, raceID, string(wt), selJSON, stakeCents, odd); err != nil {
		return "", 0, fault.Wrap(err, "store failure")
	}

	if _, err = insertLedgerEntry(ctx, tx, accountID, EntryWager, -stakeCents, wagerID); err != nil {
		return "", 0, err
	}

	if err = tx.Commit(); err != nil {
		return "", 0, fault.Wrap(err, "store failure")
	}
	return wagerID, acc.BalanceCents - stakeCents, nil
}

// CancelWager reverte uma aposta pending do próprio dono enquanto a corrida
// ainda está scheduled: credita o stake de volta, marca cancelled e anexa o
// lançamento de refund. Segunda chamada falha com failed-precondition.
func (p *Postgres) CancelWager(ctx context.Context, accountID, wagerID string) (refundCents int64, newBalance int64, raceID string, err error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, "", fault.Wrap(err, "store failure")
	}
	defer tx.Rollback()

	var ownerID, status string
	var stake int64
	err = tx.QueryRowContext(ctx,
		`SELECT account_id, race_id, stake_cents, status FROM wagers WHERE id=$1 FOR UPDATE`, wagerID).
		Scan(&ownerID, &raceID, &stake, &status)
	if err == sql.ErrNoRows {
		return 0, 0, "", fault.New(fault.NotFound, "wager not found")
	}
	if err != nil {
		return 0, 0, "", fault.Wrap(err, "store failure")
	}

	if ownerID != accountID {
		return 0, 0, "", fault.New(fault.FailedPrecondition, "wager belongs to another account")
	}
	if WagerStatus(status) != WagerPending {
		return 0, 0, "", fault.New(fault.FailedPrecondition, "wager is not pending")
	}

	st, err := getRaceStatusTx(ctx, tx, raceID)
	if err != nil {
		return 0, 0, "", err
	}
	if st != RaceScheduled {
		return 0, 0, "", fault.New(fault.FailedPrecondition, "race is not open for wagering")
	}

	acc, err := p.getAccountTx(ctx, tx, accountID, true)
	if err != nil {
		return 0, 0, "", err
	}

	if _, err = tx.ExecContext(ctx,
		`UPDATE wagers SET status='cancelled', cancelled_at=NOW() WHERE id=$1`, wagerID); err != nil {
		return 0, 0, "", fault.Wrap(err, "store failure")
	}

	if err = applyAccountDelta(ctx, tx, acc, stake, 0, 0, 0); err != nil {
		return 0, 0, "", err
	}

	if _, err = insertLedgerEntry(ctx, tx, accountID, EntryRefund, stake, wagerID); err != nil {
		return 0, 0, "", err
	}

	if err = tx.Commit(); err != nil {
		return 0, 0, "", fault.Wrap(err, "store failure")
	}
	return stake, acc.BalanceCents + stake, raceID, nil
}

// GetWager lê a aposta pra consulta de status.
func (p *Postgres) GetWager(ctx context.Context, wagerID string) (*Wager, error) {
	var w Wager
	var selJSON []byte
	var payout sql.NullInt64
	var settledAt, cancelledAt sql.NullTime
	err := p.db.QueryRowContext(ctx, `
		SELECT id, account_id, race_id, wager_type, selection, stake_cents, odd, status, payout_cents, created_at, settled_at, cancelled_at
		FROM wagers WHERE id=$1`, wagerID).
		Scan(&w.ID, &w.AccountID, &w.RaceID, &w.Type, &selJSON, &w.StakeCents, &w.Odd, &w.Status, &payout, &w.CreatedAt, &settledAt, &cancelledAt)
	if err == sql.ErrNoRows {
		return nil, fault.New(fault.NotFound, "wager not found")
	}
	if err != nil {
		return nil, fault.Wrap(err, "store failure")
	}
	if err := json.Unmarshal(selJSON, &w.Selection); err != nil {
		return nil, fault.Wrap(err, "decode selection")
	}
	if payout.Valid {
		w.PayoutCents = payout.Int64
	}
	if settledAt.Valid {
		w.SettledAt = &settledAt.Time
	}
	if cancelledAt.Valid {
		w.CancelledAt = &cancelledAt.Time
	}
	return &w, nil
}

// GetRace lê a corrida (status + resultado, se houver).
func (p *Postgres) GetRace(ctx context.Context, raceID string) (*Race, error) {
	var r Race
	var resultJSON []byte
	var finishedAt sql.NullTime
	var finalizedBy sql.NullString
	err := p.db.QueryRowContext(ctx, `
		SELECT id, track, race_number, status, result, finished_at, finalized_by
		FROM races WHERE id=$1`, raceID).
		Scan(&r.ID, &r.Track, &r.Number, &r.Status, &resultJSON, &finishedAt, &finalizedBy)
	if err == sql.ErrNoRows {
		return nil, fault.New(fault.NotFound, "race not found")
	}
	if err != nil {
		return nil, fault.Wrap(err, "store failure")
	}
	if len(resultJSON) > 0 {
		if err := json.Unmarshal(resultJSON, &r.Result); err != nil {
			return nil, fault.Wrap(err, "decode race result")
		}
	}
	if finishedAt.Valid {
		r.FinishedAt = &finishedAt.Time
	}
	if finalizedBy.Valid {
		r.FinalizedBy = finalizedBy.String
	}
	return &r, nil
}

// UpsertRace grava/atualiza o cartão vindo do feed. Corridas finished são
// imutáveis pra liquidação: o upsert nunca regride o status de uma corrida
// já finalizada (a gravação do resultado é papel exclusivo da liquidação).
//
// O status 'finished' também só entra no banco pela liquidação: um feed que
// anuncia a corrida encerrada vira in_progress aqui, senão a liquidação
// encontraria a corrida já fechada e recusaria liquidar as apostas.
func (p *Postgres) UpsertRace(ctx context.Context, raceID, track string, number int, status RaceStatus) error {
	if status == RaceFinished {
		status = RaceInProgress
	}
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO races(id, track, race_number, status)
		VALUES($1,$2,$3,$4)
		ON CONFLICT (id) DO UPDATE SET
		  track = EXCLUDED.track,
		  race_number = EXCLUDED.race_number,
		  status = EXCLUDED.status
		WHERE races.status <> 'finished'`,
		raceID, track, number, string(status))
	if err != nil {
		return fault.Wrap(err, "store failure")
	}
	return nil
}

// CreateFundsRequest registra um pedido pending de recarga ou saque.
// O saque valida o saldo já na criação como caminho rápido; a checagem que
// vale é refeita na aprovação, com a conta travada.
func (p *Postgres) CreateFundsRequest(ctx context.Context, accountID string, kind FundsKind, amountCents int64, method string) (string, error) {
	if amountCents <= 0 {
		return "", fault.New(fault.InvalidArgument, "amount must be positive")
	}

	acc, err := p.GetAccount(ctx, accountID)
	if err != nil {
		return "", err
	}
	if kind == FundsWithdrawal && acc.BalanceCents < amountCents {
		return "", fault.New(fault.FailedPrecondition, "insufficient balance")
	}

	id := uuid.NewString()
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO funds_requests(id, account_id, kind, amount_cents, status, payment_method, created_at)
		VALUES($1,$2,$3,$4,'pending',$5,NOW())`,
		id, accountID, string(kind), amountCents, method)
	if err != nil {
		return "", fault.Wrap(err, "store failure")
	}
	return id, nil
}

// ApproveFundsRequest aprova um pedido pending: credita (recarga) ou debita
// (saque) a conta, marca approved com os metadados de pagamento e anexa o
// lançamento correspondente. A capability de admin é re-verificada dentro da
// transação, não só na borda HTTP.
func (p *Postgres) ApproveFundsRequest(ctx context.Context, adminID, requestID, method, reference string) (FundsKind, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fault.Wrap(err, "store failure")
	}
	defer tx.Rollback()

	admin, err := p.getAccountTx(ctx, tx, adminID, false)
	if err != nil {
		return "", err
	}
	if admin.Role != RoleAdmin {
		return "", fault.New(fault.PermissionDenied, "caller is not an admin")
	}

	var accountID, kind, status string
	var amount int64
	err = tx.QueryRowContext(ctx,
		`SELECT account_id, kind, amount_cents, status FROM funds_requests WHERE id=$1 FOR UPDATE`, requestID).
		Scan(&accountID, &kind, &amount, &status)
	if err == sql.ErrNoRows {
		return "", fault.New(fault.NotFound, "funds request not found")
	}
	if err != nil {
		return "", fault.Wrap(err, "store failure")
	}
	if FundsStatus(status) != FundsPending {
		return "", fault.New(fault.FailedPrecondition, "funds request already processed")
	}

	acc, err := p.getAccountTx(ctx, tx, accountID, true)
	if err != nil {
		return "", err
	}

	delta := amount
	entryType := EntryRecharge
	if FundsKind(kind) == FundsWithdrawal {
		if acc.BalanceCents < amount {
			return "", fault.New(fault.FailedPrecondition, "insufficient balance")
		}
		delta = -amount
		entryType = EntryWithdrawal
	}

	if err = applyAccountDelta(ctx, tx, acc, delta, 0, 0, 0); err != nil {
		return "", err
	}

	if _, err = tx.ExecContext(ctx, `
		UPDATE funds_requests
		SET status='approved', approved_by=$1, approved_at=NOW(), payment_method=$2, payment_reference=$3
		WHERE id=$4`,
		adminID, method, reference, requestID); err != nil {
		return "", fault.Wrap(err, "store failure")
	}

	if _, err = insertLedgerEntry(ctx, tx, accountID, entryType, delta, ""); err != nil {
		return "", err
	}

	if err = tx.Commit(); err != nil {
		return "", fault.Wrap(err, "store failure")
	}
	return FundsKind(kind), nil
}

// LedgerSum soma os lançamentos de uma conta. Usada pela reconciliação:
// a soma tem que bater com o saldo corrente.
func (p *Postgres) LedgerSum(ctx context.Context, accountID string) (int64, error) {
	var sum sql.NullInt64
	err := p.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount_cents),0) FROM ledger_entries WHERE account_id=$1`, accountID).Scan(&sum)
	if err != nil {
		return 0, fault.Wrap(err, "store failure")
	}
	return sum.Int64, nil
}
