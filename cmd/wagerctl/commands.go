package main

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/radieske/wager-pool/internal/wagerctl/client"
	"github.com/radieske/wager-pool/internal/wager"
)

const requestTimeout = 10 * time.Second

func loadKey() (*ecdsa.PrivateKey, error) {
	if options.KeyFile == "" {
		return nil, errors.New("--key-file is required for this command")
	}
	key, err := crypto.LoadECDSA(options.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("load key: %w", err)
	}
	return key, nil
}

func newClient(needKey bool) (*client.Client, *ecdsa.PrivateKey, error) {
	var key *ecdsa.PrivateKey
	if needKey || options.KeyFile != "" {
		k, err := loadKey()
		if err != nil {
			return nil, nil, err
		}
		key = k
	}
	return client.New(options.URL, key), key, nil
}

func parseAddress(name, v string) (common.Address, error) {
	if !common.IsHexAddress(v) {
		return common.Address{}, fmt.Errorf("invalid %s address %q", name, v)
	}
	return common.HexToAddress(v), nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func timeout() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), requestTimeout)
}

type keygenCmd struct {
	Out string `long:"out" short:"o" required:"yes" description:"path of the key file to create"`
}

func (c *keygenCmd) Execute([]string) error {
	if _, err := os.Stat(c.Out); err == nil {
		return fmt.Errorf("%s already exists", c.Out)
	}
	key, err := crypto.GenerateKey()
	if err != nil {
		return err
	}
	if err := crypto.SaveECDSA(c.Out, key); err != nil {
		return err
	}
	addr := crypto.PubkeyToAddress(key.PublicKey)
	return printJSON(map[string]string{
		"address": addr.Hex(),
		"pool":    wager.PoolAddress(addr).Hex(),
	})
}

type depositCmd struct {
	Account string `long:"account" description:"account to credit (default: key address)"`
	Amount  uint64 `long:"amount" required:"yes" description:"units to credit"`
	Ref     string `long:"ref" description:"external reference"`
}

func (c *depositCmd) Execute([]string) error {
	cli, key, err := newClient(c.Account == "")
	if err != nil {
		return err
	}
	var account common.Address
	if c.Account != "" {
		if account, err = parseAddress("account", c.Account); err != nil {
			return err
		}
	} else {
		account = crypto.PubkeyToAddress(key.PublicKey)
	}

	ctx, cancel := timeout()
	defer cancel()
	out, err := cli.Deposit(ctx, account, c.Amount, c.Ref)
	if err != nil {
		return err
	}
	return printJSON(out)
}

type initPoolCmd struct {
	MinBet    uint64 `long:"min-bet" required:"yes" description:"minimum stake"`
	MaxBet    uint64 `long:"max-bet" required:"yes" description:"maximum stake"`
	HouseEdge uint16 `long:"house-edge" default:"0" description:"fee in basis points (100 = 1%)"`
}

func (c *initPoolCmd) Execute([]string) error {
	cli, _, err := newClient(true)
	if err != nil {
		return err
	}
	ctx, cancel := timeout()
	defer cancel()
	out, err := cli.InitializePool(ctx, c.MinBet, c.MaxBet, c.HouseEdge)
	if err != nil {
		return err
	}
	return printJSON(out)
}

type fundVaultCmd struct {
	Pool   string `long:"pool" description:"pool address (default: pool of the key)"`
	Amount uint64 `long:"amount" required:"yes" description:"units moved from the authority balance"`
}

func (c *fundVaultCmd) Execute([]string) error {
	cli, key, err := newClient(true)
	if err != nil {
		return err
	}
	pool := wager.PoolAddress(crypto.PubkeyToAddress(key.PublicKey))
	if c.Pool != "" {
		if pool, err = parseAddress("pool", c.Pool); err != nil {
			return err
		}
	}

	ctx, cancel := timeout()
	defer cancel()
	out, err := cli.FundVault(ctx, pool, c.Amount)
	if err != nil {
		return err
	}
	return printJSON(out)
}

type placeBetCmd struct {
	Pool      string `long:"pool" required:"yes" description:"pool address"`
	Amount    uint64 `long:"amount" required:"yes" description:"stake"`
	Predicted uint64 `long:"predicted" required:"yes" description:"predicted time alive (ms)"`
}

func (c *placeBetCmd) Execute([]string) error {
	cli, _, err := newClient(true)
	if err != nil {
		return err
	}
	pool, err := parseAddress("pool", c.Pool)
	if err != nil {
		return err
	}

	ctx, cancel := timeout()
	defer cancel()
	out, err := cli.PlaceBet(ctx, pool, c.Amount, c.Predicted)
	if err != nil {
		return err
	}
	return printJSON(out)
}

type settleBetCmd struct {
	Bet    string `long:"bet" description:"bet address"`
	Pool   string `long:"pool" description:"pool address (with --seq, instead of --bet)"`
	Seq    uint64 `long:"seq" description:"bet sequence of the key in --pool"`
	Actual uint64 `long:"actual" required:"yes" description:"observed time alive (ms)"`
}

func (c *settleBetCmd) Execute([]string) error {
	cli, key, err := newClient(true)
	if err != nil {
		return err
	}

	var bet common.Address
	switch {
	case c.Bet != "":
		if bet, err = parseAddress("bet", c.Bet); err != nil {
			return err
		}
	case c.Pool != "":
		pool, err := parseAddress("pool", c.Pool)
		if err != nil {
			return err
		}
		bet = wager.BetAddress(pool, crypto.PubkeyToAddress(key.PublicKey), c.Seq)
	default:
		return errors.New("either --bet or --pool/--seq is required")
	}

	ctx, cancel := timeout()
	defer cancel()
	out, err := cli.SettleBet(ctx, bet, c.Actual)
	if err != nil {
		return err
	}
	return printJSON(out)
}

type showCmd struct {
	Player string `long:"player" description:"filter bets by player"`
	Open   bool   `long:"open" description:"only open bets"`
	Limit  int    `long:"limit" default:"100" description:"max bets listed"`

	Args struct {
		Kind    string `positional-arg-name:"kind" description:"pool | bet | account | bets | audit"`
		Address string `positional-arg-name:"address"`
	} `positional-args:"yes" required:"yes"`
}

func (c *showCmd) Execute([]string) error {
	cli, _, err := newClient(false)
	if err != nil {
		return err
	}
	addr, err := parseAddress(c.Args.Kind, c.Args.Address)
	if err != nil {
		return err
	}

	ctx, cancel := timeout()
	defer cancel()

	var out any
	switch c.Args.Kind {
	case "pool":
		out, err = cli.Pool(ctx, addr)
	case "bet":
		out, err = cli.Bet(ctx, addr)
	case "account":
		out, err = cli.Balance(ctx, addr)
	case "audit":
		out, err = cli.Audit(ctx, addr)
	case "bets":
		var player *common.Address
		if c.Player != "" {
			p, perr := parseAddress("player", c.Player)
			if perr != nil {
				return perr
			}
			player = &p
		}
		out, err = cli.Bets(ctx, addr, player, c.Open, c.Limit)
	default:
		return fmt.Errorf("unknown kind %q", c.Args.Kind)
	}
	if err != nil {
		return err
	}
	return printJSON(out)
}
