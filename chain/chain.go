// Package chain holds the fixed network metadata the payment and licensing
// flows depend on: the settlement chain for gasless micropayments and the
// licensing chain hosting the game license contract. The values feed wallet
// switch/add requests and the EIP-712 signing domain.
package chain

import (
	"fmt"
	"math/big"
)

// NativeCurrency describes a chain's gas token.
type NativeCurrency struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
}

// Chain is the metadata needed to identify a network and, when the wallet
// does not know it yet, to add it.
type Chain struct {
	ID          int64
	Name        string
	RPCURL      string
	WSURL       string
	ExplorerURL string
	Currency    NativeCurrency
}

// HexID returns the chain id in the 0x-prefixed hex form wallets expect.
func (c Chain) HexID() string {
	return fmt.Sprintf("0x%x", c.ID)
}

// BigID returns the chain id as a big integer for signing domains.
func (c Chain) BigID() *big.Int {
	return big.NewInt(c.ID)
}

// AddChainParams is the wallet_addEthereumChain parameter object.
type AddChainParams struct {
	ChainID           string         `json:"chainId"`
	ChainName         string         `json:"chainName"`
	NativeCurrency    NativeCurrency `json:"nativeCurrency"`
	RPCURLs           []string       `json:"rpcUrls"`
	BlockExplorerURLs []string       `json:"blockExplorerUrls,omitempty"`
}

// AddParams builds the add-chain request for this chain.
func (c Chain) AddParams() AddChainParams {
	p := AddChainParams{
		ChainID:        c.HexID(),
		ChainName:      c.Name,
		NativeCurrency: c.Currency,
		RPCURLs:        []string{c.RPCURL},
	}
	if c.ExplorerURL != "" {
		p.BlockExplorerURLs = []string{c.ExplorerURL}
	}
	return p
}

// FluentTestnet is the settlement chain for per-use lens payments.
var FluentTestnet = Chain{
	ID:          20994,
	Name:        "Fluent Testnet",
	RPCURL:      "https://rpc.testnet.fluent.xyz/",
	ExplorerURL: "https://testnet.fluentscan.xyz/",
	Currency: NativeCurrency{
		Name:     "Fluent",
		Symbol:   "FLUID",
		Decimals: 18,
	},
}

// SagaOpenXR is the licensing chain hosting the game license contract.
var SagaOpenXR = Chain{
	ID:          2763783314764000,
	Name:        "Saga - openxr",
	RPCURL:      "https://openxr-2763783314764000-1.jsonrpc.sagarpc.io",
	WSURL:       "https://openxr-2763783314764000-1.ws.sagarpc.io",
	ExplorerURL: "https://openxr-2763783314764000-1.sagaexplorer.io",
	Currency: NativeCurrency{
		Name:     "XRT",
		Symbol:   "XRT",
		Decimals: 18,
	},
}

// Payment flow constants.
const (
	// FluidTokenAddress is the ERC20 token lens payments are denominated in.
	FluidTokenAddress = "0xd8acBC0d60acCCeeF70D9b84ac47153b3895D3d0"
	// RecipientAddress receives per-use lens payments.
	RecipientAddress = "0xb448e18d272291503fb8f3150247e2b4bc817729"
	// LensPaymentAmountWei is the per-use lens price (0.01 FLUID).
	LensPaymentAmountWei = "10000000000000000"
	// FluidTokenName and FluidTokenVersion form the EIP-712 signing domain
	// of the token contract.
	FluidTokenName    = "Fluent USD"
	FluidTokenVersion = "1"
)

// Licensing flow constants.
const (
	// LicenseContractAddress is the game license contract on SagaOpenXR.
	LicenseContractAddress = "0xe29Eb65EE3Dda606E9f2e0aD6D2D4f73AEF83846"
)

// LensPaymentAmount returns the per-use price as a big integer.
func LensPaymentAmount() *big.Int {
	v, _ := new(big.Int).SetString(LensPaymentAmountWei, 10)
	return v
}
