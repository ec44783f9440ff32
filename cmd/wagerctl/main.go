package main

import (
	"errors"
	"os"

	"github.com/jessevdk/go-flags"
)

var options struct {
	URL     string `long:"url" env:"POOL_SERVICE_URL" default:"http://localhost:8083" description:"pool-service base URL"`
	KeyFile string `long:"key-file" short:"k" env:"WAGER_KEY_FILE" description:"file with the hex secp256k1 private key"`
}

func main() {
	parser := flags.NewParser(&options, flags.Default)

	mustAdd(parser, "keygen", "Generate a private key", "Writes a new hex private key to --out and prints its address.", &keygenCmd{})
	mustAdd(parser, "deposit", "Credit an account (dev faucet)", "Requires ALLOW_DEPOSITS on the server.", &depositCmd{})
	mustAdd(parser, "init-pool", "Create the pool owned by the key", "Signed by the authority key.", &initPoolCmd{})
	mustAdd(parser, "fund-vault", "Top up the pool vault", "Signed by the authority key.", &fundVaultCmd{})
	mustAdd(parser, "place-bet", "Place a bet", "Signed by the player key.", &placeBetCmd{})
	mustAdd(parser, "settle-bet", "Settle a bet with the observed time alive", "Signed by the player key.", &settleBetCmd{})
	mustAdd(parser, "show", "Show pool, bet, account, bets or audit", "Kinds: pool, bet, account, bets, audit.", &showCmd{})

	if _, err := parser.Parse(); err != nil {
		var ferr *flags.Error
		if errors.As(err, &ferr) && ferr.Type == flags.ErrHelp {
			return
		}
		os.Exit(1)
	}
}

func mustAdd(p *flags.Parser, name, short, long string, data any) {
	if _, err := p.AddCommand(name, short, long, data); err != nil {
		panic(err)
	}
}
