// Package wallet defines the narrow capability surface the payment core
// needs from a wallet backend. The core never inspects vendor-specific
// provider shapes; each backend is wrapped in an adapter implementing
// Provider, and rejection conditions are typed at this layer rather than
// inferred from error text downstream.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/openxr-labs/lenspay/chain"
)

// Provider is the wallet capability interface consumed by the payment core.
type Provider interface {
	// Address returns the active account address.
	Address() string

	// ChainID returns the chain the wallet is currently on.
	ChainID(ctx context.Context) (int64, error)

	// SwitchChain asks the wallet to move to the given chain. Returns an
	// *RPCError with CodeUnrecognizedChain if the wallet does not know it.
	SwitchChain(ctx context.Context, chainID int64) error

	// AddChain registers chain metadata with the wallet.
	AddChain(ctx context.Context, c chain.Chain) error

	// SignTypedData produces a 65-byte EIP-712 signature over typed data.
	// May block indefinitely on user interaction.
	SignTypedData(ctx context.Context, typed apitypes.TypedData) ([]byte, error)

	// SendTransaction submits a transaction and returns its hash.
	SendTransaction(ctx context.Context, tx TxRequest) (string, error)
}

// TxRequest is a minimal transaction request for direct on-chain calls
// (the one-time license purchase path).
type TxRequest struct {
	To      string
	Data    []byte
	Value   *big.Int
	ChainID int64
}

// EIP-1193 provider error codes surfaced by wallet backends.
const (
	// CodeUserRejected: the user declined the request.
	CodeUserRejected = 4001
	// CodeUnrecognizedChain: wallet_switchEthereumChain was asked for a
	// chain the wallet has not been told about.
	CodeUnrecognizedChain = 4902
)

// RPCError is a provider-level error with an EIP-1193 code. Adapters must
// return these for rejection and unrecognized-chain conditions so callers
// never have to string-match on messages.
type RPCError struct {
	Code    int
	Message string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("provider error %d: %s", e.Code, e.Message)
}

// IsUserRejection reports whether err is a user declining a wallet prompt.
func IsUserRejection(err error) bool {
	var rpcErr *RPCError
	return errors.As(err, &rpcErr) && rpcErr.Code == CodeUserRejected
}

// IsUnrecognizedChain reports whether err means the wallet needs the chain
// added before it can switch to it.
func IsUnrecognizedChain(err error) bool {
	var rpcErr *RPCError
	return errors.As(err, &rpcErr) && rpcErr.Code == CodeUnrecognizedChain
}
