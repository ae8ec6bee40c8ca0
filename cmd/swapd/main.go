// Command swapd runs the RFC003 atomic swap daemon: it loads a swap's
// Request/Accept/Seed from disk, drives its two ledger observers, and
// serves a websocket JSON-RPC endpoint for querying status and actions.
package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/fatih/color"
	logging "github.com/ipfs/go-log"

	"github.com/rfc003/swapd/config"
	"github.com/rfc003/swapd/driver"
	ledgerbtc "github.com/rfc003/swapd/ledger/bitcoin"
	"github.com/rfc003/swapd/rpc"
	"github.com/rfc003/swapd/store"
	"github.com/rfc003/swapd/swap"
	watchbtc "github.com/rfc003/swapd/watch/bitcoin"
	watcheth "github.com/rfc003/swapd/watch/ethereum"
)

var log = logging.Logger("cmd/swapd")

// registry is the Drivers implementation the rpc.Server queries; a mutex
// guarded map of in-flight drivers.
type registry struct {
	mu      sync.Mutex
	drivers map[swap.ID]*driver.Driver
}

func newRegistry() *registry {
	return &registry{drivers: make(map[swap.ID]*driver.Driver)}
}

func (r *registry) Get(id swap.ID) (*driver.Driver, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.drivers[id]
	return d, ok
}

func (r *registry) put(id swap.ID, d *driver.Driver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drivers[id] = d
}

func main() {
	if err := run(); err != nil {
		log.Errorf("swapd: %s", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		return err
	}

	role, err := cfg.Role()
	if err != nil {
		return err
	}

	seed, err := loadSeed(cfg.SeedPath)
	if err != nil {
		return fmt.Errorf("load seed: %w", err)
	}
	log.Infof("swapd: starting as %s, seed loaded from %s", role, cfg.SeedPath)
	_ = seed // not used further: swapd has no path for proposing a new swap; restored swaps carry their own recorded seed

	st, err := store.OpenBoltStore(cfg.DataDir + "/swaps.db")
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	deps, err := buildDeps(cfg)
	if err != nil {
		return fmt.Errorf("build ledger clients: %w", err)
	}

	reg := newRegistry()

	records, err := st.All()
	if err != nil {
		return fmt.Errorf("load swap records: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	for _, rec := range records {
		if !rec.Accepted {
			continue
		}
		d, err := driver.New(rec.Role, rec.Request, rec.Accept, swap.NewSeed(rec.Seed), deps)
		if err != nil {
			log.Errorf("swapd: skipping swap %s: %s", rec.Request.SwapID, err)
			continue
		}
		reg.put(rec.Request.SwapID, d)

		wg.Add(1)
		go func(d *driver.Driver, rec store.Record) {
			defer wg.Done()
			if err := d.Run(ctx, rec.StartOfSwap); err != nil {
				log.Warnf("swapd: swap %s ended: %s", rec.Request.SwapID, err)
				return
			}
			log.Infof(color.New(color.Bold).Sprintf("swap %s completed", rec.Request.SwapID))
		}(d, rec)
	}

	server := rpc.New(reg, st)
	httpServer := &http.Server{Addr: cfg.RPCListenAddr, Handler: server}

	go func() {
		log.Infof("swapd: rpc listening on %s", cfg.RPCListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("swapd: rpc server: %s", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Infof("swapd: shutting down")
	cancel()
	_ = httpServer.Close()
	wg.Wait()
	return nil
}

func loadSeed(path string) ([32]byte, error) {
	var s [32]byte
	raw, err := os.ReadFile(path)
	if err != nil {
		return s, err
	}
	decoded, err := hex.DecodeString(string(raw))
	if err != nil {
		return s, fmt.Errorf("seed file must contain hex-encoded bytes: %w", err)
	}
	if len(decoded) != 32 {
		return s, fmt.Errorf("seed must be 32 bytes, got %d", len(decoded))
	}
	copy(s[:], decoded)
	return s, nil
}

func buildDeps(cfg *config.Config) (driver.Deps, error) {
	var deps driver.Deps

	if cfg.BitcoinRPCHost != "" {
		network, err := parseBitcoinNetwork(cfg.BitcoinNetwork)
		if err != nil {
			return deps, err
		}
		client, err := newBitcoinRPCClient(cfg)
		if err != nil {
			return deps, err
		}
		cache := newBlockCache()
		poller := newPoller(client, cache, cfg.RPCTimeout)
		deps.Bitcoin = &driver.BitcoinDeps{
			Watcher: watchbtc.NewWatcher(poller, cfg.BitcoinPollInterval),
			Ledger:  ledgerbtc.Ledger{Network: network},
		}
	}

	if cfg.EthereumRPCURL != "" {
		client, receipts, err := newEthereumRPCClient(cfg)
		if err != nil {
			return deps, err
		}
		cache := newBlockCache()
		poller := newPoller(client, cache, cfg.RPCTimeout)
		deps.Ethereum = &driver.EthereumDeps{
			Watcher: watcheth.NewWatcher(poller, receipts, cfg.EthereumPollInterval),
		}
	}

	return deps, nil
}

func parseBitcoinNetwork(name string) (ledgerbtc.Network, error) {
	switch name {
	case "mainnet":
		return ledgerbtc.Mainnet, nil
	case "testnet":
		return ledgerbtc.Testnet, nil
	case "regtest":
		return ledgerbtc.Regtest, nil
	default:
		return 0, fmt.Errorf("unknown bitcoin network %q", name)
	}
}

