// Package common holds small unit-conversion helpers shared by config
// parsing and the CLI, covering RFC003's two ledgers: Bitcoin satoshi and
// Ethereum wei.
package common

import (
	"math"
	"math/big"
)

var (
	numEtherUnits   = math.Pow(10, 18)
	numBitcoinUnits = math.Pow(10, 8)
)

// BitcoinAmount represents an amount of satoshi, Bitcoin's smallest
// denomination.
type BitcoinAmount uint64

// BitcoinToSatoshi converts a standard BTC amount to satoshi.
func BitcoinToSatoshi(amount float64) BitcoinAmount {
	return BitcoinAmount(amount * numBitcoinUnits)
}

// Uint64 returns the amount as satoshi.
func (a BitcoinAmount) Uint64() uint64 { return uint64(a) }

// AsBitcoin converts the satoshi amount into standard BTC units.
func (a BitcoinAmount) AsBitcoin() float64 {
	return float64(a) / numBitcoinUnits
}

// EtherAmount represents an amount of wei, ether's smallest denomination.
type EtherAmount big.Int

// NewEtherAmount wraps a raw wei amount.
func NewEtherAmount(amount int64) EtherAmount {
	i := big.NewInt(amount)
	return EtherAmount(*i)
}

// EtherToWei converts a standard ether amount to wei.
func EtherToWei(amount float64) EtherAmount {
	amt := big.NewFloat(amount)
	mult := big.NewFloat(numEtherUnits)
	res, _ := big.NewFloat(0).Mul(amt, mult).Int(nil)
	return EtherAmount(*res)
}

// BigInt returns the EtherAmount as a *big.Int.
func (a EtherAmount) BigInt() *big.Int {
	i := big.Int(a)
	return &i
}

// AsEther returns the wei amount as ether.
func (a EtherAmount) AsEther() float64 {
	wei := big.NewFloat(0).SetInt(a.BigInt())
	mult := big.NewFloat(numEtherUnits)
	ether := big.NewFloat(0).Quo(wei, mult)
	res, _ := ether.Float64()
	return res
}

// String implements fmt.Stringer.
func (a EtherAmount) String() string {
	return a.BigInt().String()
}
