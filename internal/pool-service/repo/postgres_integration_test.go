//go:build integration

package repo

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"go.uber.org/zap"

	"github.com/radieske/wager-pool/internal/shared/db"
	"github.com/radieske/wager-pool/internal/wager"
)

const postgresImage = "postgres:16-alpine"

type PostgresSuite struct {
	suite.Suite
	ctx       context.Context
	cancel    context.CancelFunc
	container *tcPostgres.PostgresContainer
	dsn       string
	db        *sql.DB
	store     *Postgres
	engine    *wager.Engine
}

func TestPostgresSuite(t *testing.T) {
	suite.Run(t, new(PostgresSuite))
}

func (s *PostgresSuite) SetupSuite() {
	s.ctx, s.cancel = context.WithTimeout(context.Background(), 5*time.Minute)

	container, err := tcPostgres.Run(s.ctx,
		postgresImage,
		tcPostgres.WithDatabase("wager"),
		tcPostgres.WithUsername("wager"),
		tcPostgres.WithPassword("wager"),
		tcPostgres.BasicWaitStrategies(),
	)
	s.Require().NoError(err)
	s.container = container

	s.dsn, err = container.ConnectionString(s.ctx, "sslmode=disable")
	s.Require().NoError(err)

	applied, err := db.Migrate(s.ctx, s.dsn)
	s.Require().NoError(err)
	s.Require().True(applied)

	applied, err = db.Migrate(s.ctx, s.dsn)
	s.Require().NoError(err)
	s.Require().False(applied, "migrations idempotentes")

	s.db, err = db.ConnectPostgres(s.dsn)
	s.Require().NoError(err)
	s.store = NewPostgres(s.db)
}

func (s *PostgresSuite) TearDownSuite() {
	if s.db != nil {
		_ = s.db.Close()
	}
	if s.container != nil {
		_ = s.container.Terminate(context.Background())
	}
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *PostgresSuite) SetupTest() {
	_, err := s.db.ExecContext(s.ctx, `TRUNCATE bets, bet_sequences, pools, ledger_entries, accounts`)
	s.Require().NoError(err)
	s.engine = wager.NewEngine(s.store, zap.NewNop(), nil, nil)
}

func (s *PostgresSuite) TestLifecycle() {
	ctx := s.ctx
	p, err := s.engine.InitializePool(ctx, alice, wager.PoolParams{MinBet: 10, MaxBet: 1_000, HouseEdge: 500})
	s.Require().NoError(err)

	_, err = s.engine.InitializePool(ctx, alice, wager.PoolParams{MinBet: 10, MaxBet: 1_000})
	s.ErrorIs(err, wager.ErrRecordExists)

	_, err = s.engine.Deposit(ctx, bob, 1_000, "seed")
	s.Require().NoError(err)
	_, err = s.engine.Deposit(ctx, alice, 10_000, "seed")
	s.Require().NoError(err)
	_, err = s.engine.FundVault(ctx, alice, p.Address, 10_000)
	s.Require().NoError(err)

	b, err := s.engine.PlaceBet(ctx, bob, p.Address, 1_000, 20_000)
	s.Require().NoError(err)

	st, err := s.engine.SettleBet(ctx, bob, b.Address, 20_080)
	s.Require().NoError(err)
	s.Equal(uint64(9_500), st.Payout())

	_, err = s.engine.SettleBet(ctx, bob, b.Address, 20_080)
	s.ErrorIs(err, wager.ErrBetAlreadySettled)

	got, err := s.engine.Bet(ctx, b.Address)
	s.Require().NoError(err)
	s.True(got.Settled)
	s.Equal(uint64(20_080), got.ActualTimeAlive)

	bal, err := s.engine.Balance(ctx, bob)
	s.Require().NoError(err)
	s.Equal(uint64(9_500), bal)

	a, err := s.engine.Audit(ctx, p.Address)
	s.Require().NoError(err)
	s.True(a.Balanced)
	s.Equal(uint64(10_000+1_000-9_500), a.VaultBalance)
}

func (s *PostgresSuite) TestShortfallRollsBack() {
	ctx := s.ctx
	p, err := s.engine.InitializePool(ctx, alice, wager.PoolParams{MinBet: 10, MaxBet: 1_000, HouseEdge: 0})
	s.Require().NoError(err)
	_, err = s.engine.Deposit(ctx, bob, 100, "seed")
	s.Require().NoError(err)

	b, err := s.engine.PlaceBet(ctx, bob, p.Address, 100, 5)
	s.Require().NoError(err)

	_, err = s.engine.SettleBet(ctx, bob, b.Address, 5)
	s.ErrorIs(err, wager.ErrInsufficientFunds)

	got, err := s.engine.Bet(ctx, b.Address)
	s.Require().NoError(err)
	s.False(got.Settled)

	pool, err := s.engine.Pool(ctx, p.Address)
	s.Require().NoError(err)
	s.Zero(pool.TotalPaidOut)
}

func (s *PostgresSuite) TestConcurrentSettleSingleWinner() {
	ctx := s.ctx
	p, err := s.engine.InitializePool(ctx, alice, wager.PoolParams{MinBet: 10, MaxBet: 1_000})
	s.Require().NoError(err)
	_, err = s.engine.Deposit(ctx, alice, 100_000, "seed")
	s.Require().NoError(err)
	_, err = s.engine.FundVault(ctx, alice, p.Address, 100_000)
	s.Require().NoError(err)
	_, err = s.engine.Deposit(ctx, bob, 1_000, "seed")
	s.Require().NoError(err)

	b, err := s.engine.PlaceBet(ctx, bob, p.Address, 1_000, 100)
	s.Require().NoError(err)

	const workers = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		oks  int
		errs []error
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.engine.SettleBet(ctx, bob, b.Address, 100)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				oks++
				return
			}
			errs = append(errs, err)
		}()
	}
	wg.Wait()

	s.Equal(1, oks)
	for _, err := range errs {
		s.ErrorIs(err, wager.ErrBetAlreadySettled)
	}
	bal, err := s.engine.Balance(ctx, bob)
	s.Require().NoError(err)
	s.Equal(uint64(10_000), bal)
}

func (s *PostgresSuite) TestVaultCustody() {
	ctx := s.ctx
	p, err := s.engine.InitializePool(ctx, alice, wager.PoolParams{MinBet: 1, MaxBet: 10})
	s.Require().NoError(err)

	err = s.store.InTx(ctx, func(ctx context.Context, tx wager.Tx) error {
		return tx.Transfer(ctx, p.Vault, bob, 1, "steal")
	})
	s.ErrorIs(err, wager.ErrVaultCustody)

	err = s.store.InTx(ctx, func(ctx context.Context, tx wager.Tx) error {
		return tx.TransferFromVault(ctx, wager.Custody{}, bob, 1, "forged")
	})
	s.ErrorIs(err, wager.ErrVaultCustody)
}

func (s *PostgresSuite) TestInitializePoolAdoptsPrecreditedVault() {
	ctx := s.ctx
	vault := wager.VaultAddress(wager.PoolAddress(alice))

	_, err := s.engine.Deposit(ctx, vault, 3, "early")
	s.Require().NoError(err)

	p, err := s.engine.InitializePool(ctx, alice, wager.PoolParams{MinBet: 1, MaxBet: 10})
	s.Require().NoError(err)
	s.Equal(uint64(3), p.TotalFunded)

	_, err = s.engine.Deposit(ctx, vault, 1, "mint")
	s.ErrorIs(err, wager.ErrVaultCustody)

	a, err := s.engine.Audit(ctx, p.Address)
	s.Require().NoError(err)
	s.True(a.Balanced)
	s.Equal(uint64(3), a.VaultBalance)

	err = s.store.InTx(ctx, func(ctx context.Context, tx wager.Tx) error {
		_, err := tx.OpenVault(ctx, vault, p.Address)
		return err
	})
	s.ErrorIs(err, wager.ErrRecordExists)
}
