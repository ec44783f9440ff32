package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/radieske/wager-pool/internal/wager"
)

// Postgres implementa wager.Store em banco Postgres.
// Valores uint64 ficam em NUMERIC(20,0) e trafegam como texto.
type Postgres struct{ db *sql.DB }

// NewPostgres retorna uma instância do store Postgres
func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const poolColumns = `address, authority, vault, min_bet, max_bet, house_edge,
	total_wagered, total_paid_out, total_funded, created_at`

const betColumns = `address, pool, player, seq, amount, predicted_time_alive,
	actual_time_alive, settled, won, payout, created_at, settled_at`

// InTx abre uma transação, executa fn e faz commit; qualquer erro faz rollback
func (p *Postgres) InTx(ctx context.Context, fn func(ctx context.Context, tx wager.Tx) error) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(ctx, &pgTx{q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", mapErr(err))
	}
	return nil
}

func (p *Postgres) Pool(ctx context.Context, addr common.Address) (wager.Pool, error) {
	return getPool(ctx, p.db, addr, false)
}

func (p *Postgres) Bet(ctx context.Context, addr common.Address) (wager.Bet, error) {
	return getBet(ctx, p.db, addr, false)
}

// Bets lista apostas de um pool com filtros opcionais de jogador e status
func (p *Postgres) Bets(ctx context.Context, f wager.BetFilter) ([]wager.Bet, error) {
	var (
		where = []string{"pool = $1"}
		args  = []any{f.Pool.Hex()}
	)
	if f.Player != nil {
		args = append(args, f.Player.Hex())
		where = append(where, fmt.Sprintf("player = $%d", len(args)))
	}
	if f.Open != nil {
		args = append(args, !*f.Open)
		where = append(where, fmt.Sprintf("settled = $%d", len(args)))
	}
	q := `SELECT ` + betColumns + ` FROM bets WHERE ` + strings.Join(where, " AND ") + ` ORDER BY created_at, address`
	if f.Limit > 0 {
		q += " LIMIT " + strconv.Itoa(f.Limit)
	}

	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list bets: %w", err)
	}
	defer rows.Close()

	var out []wager.Bet
	for rows.Next() {
		b, err := scanBet(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// Balance retorna o saldo; conta inexistente tem saldo zero
func (p *Postgres) Balance(ctx context.Context, account common.Address) (uint64, error) {
	var bal uint64
	err := p.db.QueryRowContext(ctx, `SELECT balance FROM accounts WHERE address=$1`, account.Hex()).Scan(&bal)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("balance: %w", err)
	}
	return bal, nil
}

type pgTx struct{ q querier }

func (t *pgTx) CreatePool(ctx context.Context, p wager.Pool) error {
	_, err := t.q.ExecContext(ctx, `
		INSERT INTO pools (address, authority, vault, min_bet, max_bet, house_edge, created_at)
		VALUES ($1,$2,$3,$4::numeric,$5::numeric,$6,$7)`,
		p.Address.Hex(), p.Authority.Hex(), p.Vault.Hex(), u64(p.MinBet), u64(p.MaxBet), int(p.HouseEdge), p.CreatedAt,
	)
	return mapErr(err)
}

func (t *pgTx) LockPool(ctx context.Context, addr common.Address) (wager.Pool, error) {
	return getPool(ctx, t.q, addr, true)
}

func (t *pgTx) UpdatePoolTotals(ctx context.Context, p wager.Pool) error {
	res, err := t.q.ExecContext(ctx, `
		UPDATE pools SET total_wagered=$2::numeric, total_paid_out=$3::numeric, total_funded=$4::numeric
		WHERE address=$1`,
		p.Address.Hex(), u64(p.TotalWagered), u64(p.TotalPaidOut), u64(p.TotalFunded),
	)
	if err != nil {
		return mapErr(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return wager.ErrPoolNotFound
	}
	return nil
}

// NextBetSequence reserva o próximo número de sequência do par (pool, player)
func (t *pgTx) NextBetSequence(ctx context.Context, pool, player common.Address) (uint64, error) {
	var seq uint64
	err := t.q.QueryRowContext(ctx, `
		INSERT INTO bet_sequences (pool, player, next_seq) VALUES ($1,$2,1)
		ON CONFLICT (pool, player) DO UPDATE SET next_seq = bet_sequences.next_seq + 1
		RETURNING next_seq - 1`,
		pool.Hex(), player.Hex(),
	).Scan(&seq)
	return seq, mapErr(err)
}

func (t *pgTx) CreateBet(ctx context.Context, b wager.Bet) error {
	_, err := t.q.ExecContext(ctx, `
		INSERT INTO bets (address, pool, player, seq, amount, predicted_time_alive, created_at)
		VALUES ($1,$2,$3,$4,$5::numeric,$6::numeric,$7)`,
		b.Address.Hex(), b.Pool.Hex(), b.Player.Hex(), int64(b.Sequence), u64(b.Amount), u64(b.PredictedTimeAlive), b.Timestamp,
	)
	return mapErr(err)
}

func (t *pgTx) LockBet(ctx context.Context, addr common.Address) (wager.Bet, error) {
	return getBet(ctx, t.q, addr, true)
}

// UpdateBetSettlement grava o resultado; o filtro settled=FALSE garante transição única
func (t *pgTx) UpdateBetSettlement(ctx context.Context, b wager.Bet) error {
	res, err := t.q.ExecContext(ctx, `
		UPDATE bets
		SET actual_time_alive=$2::numeric, settled=TRUE, won=$3, payout=$4::numeric, settled_at=$5
		WHERE address=$1 AND settled=FALSE`,
		b.Address.Hex(), u64(b.ActualTimeAlive), b.Won, u64(b.Payout), b.SettledAt,
	)
	if err != nil {
		return mapErr(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return wager.ErrBetAlreadySettled
	}
	return nil
}

// OpenVault cria a conta do vault ou converte uma conta 'user' pré-existente
// no endereço; vault já existente não passa no WHERE e vira ErrRecordExists.
func (t *pgTx) OpenVault(ctx context.Context, vault, pool common.Address) (uint64, error) {
	var bal uint64
	err := t.q.QueryRowContext(ctx, `
		INSERT INTO accounts (address, kind, pool, balance) VALUES ($1,'vault',$2,0)
		ON CONFLICT (address) DO UPDATE
		SET kind = 'vault', pool = EXCLUDED.pool, version = accounts.version + 1, updated_at = NOW()
		WHERE accounts.kind = 'user'
		RETURNING balance`,
		vault.Hex(), pool.Hex(),
	).Scan(&bal)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("vault %s: %w", vault.Hex(), wager.ErrRecordExists)
	}
	if err != nil {
		return 0, mapErr(err)
	}
	return bal, nil
}

// Credit soma saldo externo; só contas de usuário podem receber crédito direto
func (t *pgTx) Credit(ctx context.Context, account common.Address, amount uint64, ref string) error {
	var bal uint64
	err := t.q.QueryRowContext(ctx, `
		INSERT INTO accounts (address, kind, balance) VALUES ($1,'user',$2::numeric)
		ON CONFLICT (address) DO UPDATE
		SET balance = accounts.balance + EXCLUDED.balance, version = accounts.version + 1, updated_at = NOW()
		WHERE accounts.kind = 'user'
		RETURNING balance`,
		account.Hex(), u64(amount),
	).Scan(&bal)
	if errors.Is(err, sql.ErrNoRows) {
		return wager.ErrVaultCustody
	}
	if err != nil {
		return mapErr(err)
	}
	return t.journal(ctx, nil, account, amount, OpCredit, ref)
}

func (t *pgTx) Transfer(ctx context.Context, from, to common.Address, amount uint64, ref string) error {
	if err := t.debit(ctx, from, "user", amount); err != nil {
		return err
	}
	if err := t.credit(ctx, to, amount); err != nil {
		return err
	}
	return t.journal(ctx, &from, to, amount, OpTransfer, ref)
}

func (t *pgTx) TransferFromVault(ctx context.Context, c wager.Custody, to common.Address, amount uint64, ref string) error {
	if !c.Valid() {
		return wager.ErrVaultCustody
	}
	var pool sql.NullString
	err := t.q.QueryRowContext(ctx, `SELECT pool FROM accounts WHERE address=$1 AND kind='vault' FOR UPDATE`, c.Vault().Hex()).Scan(&pool)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && pool.String != c.Pool().Hex()) {
		return wager.ErrVaultCustody
	}
	if err != nil {
		return err
	}

	vault := c.Vault()
	if err := t.debit(ctx, vault, "vault", amount); err != nil {
		return err
	}
	if err := t.credit(ctx, to, amount); err != nil {
		return err
	}
	return t.journal(ctx, &vault, to, amount, OpPayout, ref)
}

// debit subtrai saldo com lock de linha; conta de outro tipo => ErrVaultCustody
func (t *pgTx) debit(ctx context.Context, account common.Address, kind string, amount uint64) error {
	res, err := t.q.ExecContext(ctx, `
		UPDATE accounts SET balance = balance - $2::numeric, version = version + 1, updated_at = NOW()
		WHERE address=$1 AND kind=$3 AND balance >= $2::numeric`,
		account.Hex(), u64(amount), kind,
	)
	if err != nil {
		return mapErr(err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}

	var curKind string
	err = t.q.QueryRowContext(ctx, `SELECT kind FROM accounts WHERE address=$1`, account.Hex()).Scan(&curKind)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if amount == 0 {
			return nil
		}
		return wager.ErrInsufficientFunds
	case err != nil:
		return err
	case curKind != kind:
		return wager.ErrVaultCustody
	default:
		return wager.ErrInsufficientFunds
	}
}

func (t *pgTx) credit(ctx context.Context, account common.Address, amount uint64) error {
	_, err := t.q.ExecContext(ctx, `
		INSERT INTO accounts (address, kind, balance) VALUES ($1,'user',$2::numeric)
		ON CONFLICT (address) DO UPDATE
		SET balance = accounts.balance + EXCLUDED.balance, version = accounts.version + 1, updated_at = NOW()`,
		account.Hex(), u64(amount),
	)
	return mapErr(err)
}

func (t *pgTx) journal(ctx context.Context, from *common.Address, to common.Address, amount uint64, op, ref string) error {
	var fromAddr sql.NullString
	if from != nil {
		fromAddr = sql.NullString{String: from.Hex(), Valid: true}
	}
	_, err := t.q.ExecContext(ctx, `
		INSERT INTO ledger_entries (id, from_addr, to_addr, amount, operation, ref)
		VALUES ($1,$2,$3,$4::numeric,$5,$6)`,
		uuid.NewString(), fromAddr, to.Hex(), u64(amount), op, ref,
	)
	return mapErr(err)
}

func getPool(ctx context.Context, q querier, addr common.Address, lock bool) (wager.Pool, error) {
	query := `SELECT ` + poolColumns + ` FROM pools WHERE address=$1`
	if lock {
		query += ` FOR UPDATE`
	}
	var (
		p                         wager.Pool
		address, authority, vault string
	)
	err := q.QueryRowContext(ctx, query, addr.Hex()).Scan(
		&address, &authority, &vault, &p.MinBet, &p.MaxBet, &p.HouseEdge,
		&p.TotalWagered, &p.TotalPaidOut, &p.TotalFunded, &p.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return wager.Pool{}, wager.ErrPoolNotFound
	}
	if err != nil {
		return wager.Pool{}, fmt.Errorf("get pool: %w", err)
	}
	p.Address = common.HexToAddress(address)
	p.Authority = common.HexToAddress(authority)
	p.Vault = common.HexToAddress(vault)
	return p, nil
}

func getBet(ctx context.Context, q querier, addr common.Address, lock bool) (wager.Bet, error) {
	query := `SELECT ` + betColumns + ` FROM bets WHERE address=$1`
	if lock {
		query += ` FOR UPDATE`
	}
	b, err := scanBet(q.QueryRowContext(ctx, query, addr.Hex()))
	if errors.Is(err, sql.ErrNoRows) {
		return wager.Bet{}, wager.ErrBetNotFound
	}
	return b, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBet(r rowScanner) (wager.Bet, error) {
	var (
		b                     wager.Bet
		address, pool, player string
		seq                   int64
		settledAt             sql.NullTime
	)
	err := r.Scan(
		&address, &pool, &player, &seq, &b.Amount, &b.PredictedTimeAlive,
		&b.ActualTimeAlive, &b.Settled, &b.Won, &b.Payout, &b.Timestamp, &settledAt,
	)
	if err != nil {
		return wager.Bet{}, err
	}
	b.Address = common.HexToAddress(address)
	b.Pool = common.HexToAddress(pool)
	b.Player = common.HexToAddress(player)
	b.Sequence = uint64(seq)
	if settledAt.Valid {
		b.SettledAt = settledAt.Time
	}
	return b, nil
}

// mapErr traduz erros do Postgres para os erros de domínio
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("%w: %s", wager.ErrRecordExists, pqErr.Constraint)
		case "23514": // check_violation
			return fmt.Errorf("%w: %s", wager.ErrArithmeticOverflow, pqErr.Constraint)
		}
	}
	return err
}

func u64(v uint64) string { return strconv.FormatUint(v, 10) }
