package common

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBitcoinToSatoshi_RoundTrip(t *testing.T) {
	amt := BitcoinToSatoshi(1.5)
	require.Equal(t, uint64(150_000_000), amt.Uint64())
	require.InDelta(t, 1.5, amt.AsBitcoin(), 1e-8)
}

func TestEtherToWei_RoundTrip(t *testing.T) {
	amt := EtherToWei(2.5)
	require.Equal(t, "2500000000000000000", amt.String())
	require.InDelta(t, 2.5, amt.AsEther(), 1e-9)
}

func TestNewEtherAmount(t *testing.T) {
	amt := NewEtherAmount(1_000_000_000_000_000_000)
	require.Equal(t, "1000000000000000000", amt.String())
	require.InDelta(t, 1.0, amt.AsEther(), 1e-9)
}
