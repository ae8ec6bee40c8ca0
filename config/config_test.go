package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rfc003/swapd/swap"
)

func TestLoad_RequiredFields(t *testing.T) {
	_, err := Load([]string{"--role", "alice"})
	require.Error(t, err, "seedpath is required")

	_, err = Load([]string{"--seedpath", "/tmp/seed"})
	require.Error(t, err, "role is required")
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load([]string{"--role", "alice", "--seedpath", "/tmp/seed"})
	require.NoError(t, err)

	require.Equal(t, "testnet", cfg.BitcoinNetwork)
	require.Equal(t, "./data", cfg.DataDir)
	require.Equal(t, "127.0.0.1:9935", cfg.RPCListenAddr)
	require.Equal(t, 30*time.Second, cfg.RPCTimeout)
}

func TestLoad_Overrides(t *testing.T) {
	cfg, err := Load([]string{
		"--role", "bob",
		"--seedpath", "/tmp/seed",
		"--bitcoin.network", "regtest",
		"--bitcoin.pollinterval", "10s",
		"--ethereum.chainid", "1337",
	})
	require.NoError(t, err)

	require.Equal(t, "regtest", cfg.BitcoinNetwork)
	require.Equal(t, 10*time.Second, cfg.BitcoinPollInterval)
	require.Equal(t, int64(1337), cfg.EthereumChainID)
}

func TestConfig_Role(t *testing.T) {
	cfg := &Config{RoleName: "alice"}
	role, err := cfg.Role()
	require.NoError(t, err)
	require.Equal(t, swap.Alice, role)

	cfg.RoleName = "bob"
	role, err = cfg.Role()
	require.NoError(t, err)
	require.Equal(t, swap.Bob, role)

	cfg.RoleName = "carol"
	_, err = cfg.Role()
	require.Error(t, err)
}
