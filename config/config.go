// Package config parses swapd's daemon configuration from the command
// line, in the jessevdk/go-flags struct-tag idiom used throughout the
// pack's daemon entrypoints (e.g. breez-lightninglib's lnd config).
package config

import (
	"fmt"
	"time"

	flags "github.com/jessevdk/go-flags"

	"github.com/rfc003/swapd/swap"
)

// Config is swapd's full daemon configuration.
type Config struct {
	RoleName string `long:"role" description:"swap role: alice or bob" required:"true"`

	BitcoinRPCHost string `long:"bitcoin.rpchost" description:"Bitcoin node RPC host:port"`
	BitcoinRPCUser string `long:"bitcoin.rpcuser" description:"Bitcoin node RPC username"`
	BitcoinRPCPass string `long:"bitcoin.rpcpass" description:"Bitcoin node RPC password"`
	BitcoinNetwork string `long:"bitcoin.network" description:"mainnet, testnet, or regtest" default:"testnet"`

	EthereumRPCURL string `long:"ethereum.rpcurl" description:"Ethereum node JSON-RPC URL"`
	EthereumChainID int64 `long:"ethereum.chainid" description:"Ethereum chain id"`

	SeedPath string `long:"seedpath" description:"path to the 32-byte swap seed file" required:"true"`

	DataDir string `long:"datadir" description:"directory for the bbolt swap store" default:"./data"`

	RPCListenAddr string `long:"rpclisten" description:"address the websocket JSON-RPC server listens on" default:"127.0.0.1:9935"`

	BitcoinPollInterval  time.Duration `long:"bitcoin.pollinterval" description:"Bitcoin block poll interval (default 300s)"`
	EthereumPollInterval time.Duration `long:"ethereum.pollinterval" description:"Ethereum block poll interval (default 20s)"`

	RPCTimeout time.Duration `long:"rpctimeout" description:"per-call ledger RPC timeout" default:"30s"`
}

// Role parses the configured role string.
func (c *Config) Role() (swap.Role, error) {
	switch c.RoleName {
	case "alice":
		return swap.Alice, nil
	case "bob":
		return swap.Bob, nil
	default:
		return 0, fmt.Errorf("config: unknown role %q, want \"alice\" or \"bob\"", c.RoleName)
	}
}

// Load parses os.Args-style argv into a Config.
func Load(argv []string) (*Config, error) {
	cfg := &Config{}
	parser := flags.NewParser(cfg, flags.Default)
	if _, err := parser.ParseArgs(argv); err != nil {
		return nil, err
	}
	return cfg, nil
}
