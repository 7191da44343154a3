package license

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	lenspay "github.com/openxr-labs/lenspay"
	"github.com/openxr-labs/lenspay/chain"
	"github.com/openxr-labs/lenspay/wallet"
)

// contractABI covers the two functions this system touches. The contract
// itself is an external collaborator; nothing here deploys or mutates it
// beyond purchaseLicense.
const contractABI = `[
	{"name":"hasLicense","type":"function","stateMutability":"view","inputs":[{"name":"gameId","type":"uint256"},{"name":"account","type":"address"}],"outputs":[{"name":"","type":"bool"}]},
	{"name":"purchaseLicense","type":"function","stateMutability":"payable","inputs":[{"name":"gameId","type":"uint256"}],"outputs":[]}
]`

// Status is the tri-state outcome of a license check. A transient RPC
// failure is Unknown, not a confirmed Unlicensed, so callers can tell
// "denied" from "couldn't check".
type Status int

const (
	// StatusUnknown: the check could not be completed.
	StatusUnknown Status = iota
	// StatusUnlicensed: the contract confirmed no license.
	StatusUnlicensed
	// StatusLicensed: the contract confirmed ownership.
	StatusLicensed
)

func (s Status) String() string {
	switch s {
	case StatusLicensed:
		return "licensed"
	case StatusUnlicensed:
		return "unlicensed"
	default:
		return "unknown"
	}
}

// ContractCaller is the read-only chain surface the oracle needs.
// *ethclient.Client satisfies it.
type ContractCaller interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Oracle performs read-only license checks against the license contract.
// Stateless: every call re-queries the chain, so a stale positive is never
// served.
type Oracle struct {
	caller   ContractCaller
	contract common.Address
	abi      abi.ABI
}

// NewOracle creates an oracle over an existing caller.
func NewOracle(caller ContractCaller, contractAddress string) (*Oracle, error) {
	parsed, err := abi.JSON(strings.NewReader(contractABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse license contract ABI: %w", err)
	}
	return &Oracle{
		caller:   caller,
		contract: common.HexToAddress(contractAddress),
		abi:      parsed,
	}, nil
}

// Dial connects to the licensing chain RPC and returns an oracle bound to
// the production license contract.
func Dial(ctx context.Context) (*Oracle, error) {
	client, err := ethclient.DialContext(ctx, chain.SagaOpenXR.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial licensing chain: %w", err)
	}
	return NewOracle(client, chain.LicenseContractAddress)
}

// HasLicense checks whether account holds a permanent license for the
// item. No retries; transient failures surface as StatusUnknown alongside
// a typed transport error.
func (o *Oracle) HasLicense(ctx context.Context, account, itemID string) (Status, error) {
	contractID, err := ContractID(itemID)
	if err != nil {
		return StatusUnknown, err
	}

	data, err := o.abi.Pack("hasLicense", contractID, common.HexToAddress(account))
	if err != nil {
		return StatusUnknown, fmt.Errorf("failed to pack hasLicense call: %w", err)
	}

	result, err := o.caller.CallContract(ctx, ethereum.CallMsg{
		To:   &o.contract,
		Data: data,
	}, nil)
	if err != nil {
		return StatusUnknown, lenspay.NewPaymentError(
			lenspay.ErrCodeTransportFailure,
			fmt.Sprintf("license check failed: %s", err.Error()),
			nil,
		)
	}

	out, err := o.abi.Unpack("hasLicense", result)
	if err != nil {
		return StatusUnknown, fmt.Errorf("failed to unpack hasLicense result: %w", err)
	}
	owns, ok := out[0].(bool)
	if !ok {
		return StatusUnknown, fmt.Errorf("unexpected hasLicense return type %T", out[0])
	}

	if owns {
		return StatusLicensed, nil
	}
	return StatusUnlicensed, nil
}

// Purchase buys a permanent license for the item with a direct payable
// call, priced from the catalog. This is the on-chain path, distinct from
// gasless per-use payments; the buyer pays gas. Returns the tx hash.
func (o *Oracle) Purchase(ctx context.Context, provider wallet.Provider, itemID string) (string, error) {
	item, err := Lookup(itemID)
	if err != nil {
		return "", err
	}

	data, err := o.abi.Pack("purchaseLicense", big.NewInt(item.ContractID))
	if err != nil {
		return "", fmt.Errorf("failed to pack purchaseLicense call: %w", err)
	}

	txHash, err := provider.SendTransaction(ctx, wallet.TxRequest{
		To:      o.contract.Hex(),
		Data:    data,
		Value:   item.PriceWei,
		ChainID: chain.SagaOpenXR.ID,
	})
	if err != nil {
		if wallet.IsUserRejection(err) {
			return "", lenspay.NewPaymentError(lenspay.ErrCodeSigningRejected,
				"license purchase was declined", nil)
		}
		return "", fmt.Errorf("license purchase failed: %w", err)
	}
	return txHash, nil
}
