package main

import (
	"context"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/rpcclient"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/rfc003/swapd/config"
	"github.com/rfc003/swapd/watch"
	watchbtc "github.com/rfc003/swapd/watch/bitcoin"
	"github.com/rfc003/swapd/watch/blockcache"
	watcheth "github.com/rfc003/swapd/watch/ethereum"
)

// cacheLimit bounds the in-memory recent-block window each poller keeps,
// large enough to comfortably cover the Margin lookback at either ledger's
// default block time.
const cacheLimit = 4096

func newBlockCache() *blockcache.Cache {
	return blockcache.New(cacheLimit)
}

const defaultRPCTimeout = 30 * time.Second

func newPoller(client watch.Client, cache *blockcache.Cache, rpcTimeout time.Duration) *watch.Poller {
	if rpcTimeout <= 0 {
		rpcTimeout = defaultRPCTimeout
	}
	return watch.NewPoller(client, cache, rpcTimeout)
}

// bitcoinRPCClient adapts a btcd rpcclient.Client -- the same client the
// pack's chainntnfs/btcdnotify wraps -- into watch.Client, returning the
// watch/bitcoin package's own Block type so the watcher's internal type
// assertions succeed.
type bitcoinRPCClient struct {
	conn *rpcclient.Client
}

func newBitcoinRPCClient(cfg *config.Config) (*bitcoinRPCClient, error) {
	conn, err := rpcclient.New(&rpcclient.ConnConfig{
		Host:         cfg.BitcoinRPCHost,
		User:         cfg.BitcoinRPCUser,
		Pass:         cfg.BitcoinRPCPass,
		HTTPPostMode: true,
		DisableTLS:   true,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("connect bitcoin rpc: %w", err)
	}
	return &bitcoinRPCClient{conn: conn}, nil
}

func (c *bitcoinRPCClient) LatestBlock(ctx context.Context) (watch.Block, error) {
	hash, height, err := c.conn.GetBestBlock()
	if err != nil {
		return nil, err
	}
	msg, err := c.conn.GetBlock(hash)
	if err != nil {
		return nil, err
	}
	return watchbtc.NewBlock(msg, uint64(height)), nil
}

func (c *bitcoinRPCClient) BlockByHash(ctx context.Context, hash string) (watch.Block, error) {
	h, err := chainhash.NewHashFromStr(hash)
	if err != nil {
		return nil, fmt.Errorf("parse block hash: %w", err)
	}
	verbose, err := c.conn.GetBlockVerbose(h)
	if err != nil {
		return nil, err
	}
	msg, err := c.conn.GetBlock(h)
	if err != nil {
		return nil, err
	}
	return watchbtc.NewBlock(msg, uint64(verbose.Height)), nil
}

// ethereumRPCClient adapts a go-ethereum ethclient.Client into both
// watch.Client (for the Poller) and watch/ethereum's ReceiptClient,
// returning the watch/ethereum package's own Block type for the same
// reason as above.
type ethereumRPCClient struct {
	conn *ethclient.Client
}

func newEthereumRPCClient(cfg *config.Config) (*ethereumRPCClient, *ethereumRPCClient, error) {
	conn, err := ethclient.Dial(cfg.EthereumRPCURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect ethereum rpc: %w", err)
	}
	c := &ethereumRPCClient{conn: conn}
	return c, c, nil
}

func (c *ethereumRPCClient) LatestBlock(ctx context.Context) (watch.Block, error) {
	b, err := c.conn.BlockByNumber(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &watcheth.Block{Msg: b}, nil
}

func (c *ethereumRPCClient) BlockByHash(ctx context.Context, hash string) (watch.Block, error) {
	b, err := c.conn.BlockByHash(ctx, ethcommon.HexToHash(hash))
	if err != nil {
		return nil, err
	}
	return &watcheth.Block{Msg: b}, nil
}

func (c *ethereumRPCClient) ReceiptByHash(ctx context.Context, txHash ethcommon.Hash) (*types.Receipt, error) {
	return c.conn.TransactionReceipt(ctx, txHash)
}
