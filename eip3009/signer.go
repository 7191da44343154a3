package eip3009

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	lenspay "github.com/openxr-labs/lenspay"
	"github.com/openxr-labs/lenspay/wallet"
)

// DefaultValidity is how long a fresh authorization stays redeemable.
const DefaultValidity = time.Hour

// TypedDataSigner is the signing capability the authorization signer needs.
// wallet.Provider satisfies it.
type TypedDataSigner interface {
	Address() string
	SignTypedData(ctx context.Context, typed apitypes.TypedData) ([]byte, error)
}

// Domain binds signed authorizations to one token contract on one chain,
// preventing cross-contract and cross-chain replay.
type Domain struct {
	TokenName    string
	TokenVersion string
	TokenAddress string
	ChainID      *big.Int
}

// Signer produces signed EIP-3009 authorizations. Pure aside from the
// external signing prompt: one call, one authorization.
type Signer struct {
	signer   TypedDataSigner
	domain   Domain
	validity time.Duration
}

// NewSigner creates an authorization signer bound to the given domain.
func NewSigner(signer TypedDataSigner, domain Domain) *Signer {
	return &Signer{
		signer:   signer,
		domain:   domain,
		validity: DefaultValidity,
	}
}

// WithValidity overrides the default validity window.
func (s *Signer) WithValidity(d time.Duration) *Signer {
	s.validity = d
	return s
}

// Address returns the payer address authorizations are signed for.
func (s *Signer) Address() string {
	return s.signer.Address()
}

// Sign builds and signs one transfer authorization from the signer's
// address to the payee. Signing failures are typed and never retried here;
// a retry needs a fresh nonce and user re-approval.
func (s *Signer) Sign(ctx context.Context, to string, value *big.Int) (*Authorization, error) {
	if value == nil || value.Sign() <= 0 {
		return nil, fmt.Errorf("authorization value must be positive")
	}

	nonce, err := NewNonce()
	if err != nil {
		return nil, err
	}

	validAfter, validBefore := ValidityWindow(s.validity)

	auth := &Authorization{
		From:        s.signer.Address(),
		To:          to,
		Value:       value.String(),
		ValidAfter:  validAfter.String(),
		ValidBefore: validBefore.String(),
		Nonce:       nonce,
		CreatedAt:   time.Now(),
	}

	typed, err := s.typedData(auth)
	if err != nil {
		return nil, err
	}

	sig, err := s.signer.SignTypedData(ctx, typed)
	if err != nil {
		return nil, signingError(err)
	}

	auth.V, auth.R, auth.S, err = SplitSignature(sig)
	if err != nil {
		return nil, err
	}

	return auth, nil
}

// SignBatch signs n authorizations sequentially. One signature prompt at a
// time: concurrent prompts to the same wallet are not assumed supported.
// Fails on the first rejection; earlier signatures in the batch are lost.
func (s *Signer) SignBatch(ctx context.Context, to string, value *big.Int, n int) ([]*Authorization, error) {
	if n <= 0 {
		return nil, fmt.Errorf("batch size must be positive")
	}

	batch := make([]*Authorization, 0, n)
	for i := 0; i < n; i++ {
		auth, err := s.Sign(ctx, to, value)
		if err != nil {
			return nil, fmt.Errorf("batch signing failed at authorization %d of %d: %w", i+1, n, err)
		}
		batch = append(batch, auth)
	}
	return batch, nil
}

// typedData assembles the EIP-712 payload for TransferWithAuthorization.
func (s *Signer) typedData(auth *Authorization) (apitypes.TypedData, error) {
	value, ok := new(big.Int).SetString(auth.Value, 10)
	if !ok {
		return apitypes.TypedData{}, fmt.Errorf("invalid authorization value: %s", auth.Value)
	}
	validAfter, ok := new(big.Int).SetString(auth.ValidAfter, 10)
	if !ok {
		return apitypes.TypedData{}, fmt.Errorf("invalid validAfter: %s", auth.ValidAfter)
	}
	validBefore, ok := new(big.Int).SetString(auth.ValidBefore, 10)
	if !ok {
		return apitypes.TypedData{}, fmt.Errorf("invalid validBefore: %s", auth.ValidBefore)
	}

	return apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": {
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			"TransferWithAuthorization": {
				{Name: "from", Type: "address"},
				{Name: "to", Type: "address"},
				{Name: "value", Type: "uint256"},
				{Name: "validAfter", Type: "uint256"},
				{Name: "validBefore", Type: "uint256"},
				{Name: "nonce", Type: "bytes32"},
			},
		},
		PrimaryType: "TransferWithAuthorization",
		Domain: apitypes.TypedDataDomain{
			Name:              s.domain.TokenName,
			Version:           s.domain.TokenVersion,
			ChainId:           (*math.HexOrDecimal256)(s.domain.ChainID),
			VerifyingContract: s.domain.TokenAddress,
		},
		Message: apitypes.TypedDataMessage{
			"from":        auth.From,
			"to":          auth.To,
			"value":       (*math.HexOrDecimal256)(value),
			"validAfter":  (*math.HexOrDecimal256)(validAfter),
			"validBefore": (*math.HexOrDecimal256)(validBefore),
			"nonce":       auth.Nonce,
		},
	}, nil
}

// signingError classifies a wallet signing failure.
func signingError(err error) error {
	switch {
	case wallet.IsUserRejection(err):
		return lenspay.NewPaymentError(lenspay.ErrCodeSigningRejected, "signature request was declined", nil)
	case errors.Is(err, context.DeadlineExceeded):
		return lenspay.NewPaymentError(lenspay.ErrCodeSigningTimeout, "signature request timed out", nil)
	default:
		return fmt.Errorf("failed to sign authorization: %w", err)
	}
}
