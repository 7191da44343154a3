// Package payment coordinates a single unit-of-access purchase: it ensures
// the wallet is on the expected chain, sources a pre-signed authorization
// (generating a fresh batch on miss), drives the facilitator verify/settle
// handshake, and reports the outcome.
package payment

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	lenspay "github.com/openxr-labs/lenspay"
	"github.com/openxr-labs/lenspay/chain"
	"github.com/openxr-labs/lenspay/eip3009"
	"github.com/openxr-labs/lenspay/facilitator"
	"github.com/openxr-labs/lenspay/wallet"
)

// Status labels the states a payment attempt moves through.
type Status string

const (
	StatusIdle                  Status = "idle"
	StatusEnsuringNetwork       Status = "ensuring_network"
	StatusSourcingAuthorization Status = "sourcing_authorization"
	StatusSettling              Status = "settling"
	StatusSucceeded             Status = "succeeded"
	StatusFailed                Status = "failed"
)

// Receipt reports a successful settlement. It means the facilitator has
// broadcast the transfer, not that it is final on chain; callers needing
// finality poll the chain or re-check the license/balance separately.
type Receipt struct {
	TxHash        string
	TransactionID string
	BlockNumber   uint64
}

// Facilitator is the settlement surface the orchestrator drives.
// *facilitator.Client satisfies it.
type Facilitator interface {
	Verify(ctx context.Context, paymentPayload string, details lenspay.PaymentDetails) (*lenspay.VerifyResponse, error)
	Settle(ctx context.Context, paymentPayload string, details lenspay.PaymentDetails, transactionID string) (*lenspay.SettleResponse, error)
}

var _ Facilitator = (*facilitator.Client)(nil)

// DefaultBatchSize is how many authorizations one approval round produces.
const DefaultBatchSize = 10

// DefaultWalletTimeout bounds how long a single wallet prompt may hang
// before the attempt fails with a timeout rather than a rejection.
const DefaultWalletTimeout = 2 * time.Minute

// Config fixes the payment parameters for an orchestrator instance.
type Config struct {
	// Chain is the settlement chain the wallet must be on.
	Chain chain.Chain

	// TokenAddress is the ERC20 contract payments are denominated in.
	TokenAddress string
	// TokenName and TokenVersion form the token's EIP-712 domain.
	TokenName    string
	TokenVersion string

	// Recipient receives every payment.
	Recipient string
	// Amount is the per-use price in the smallest token unit.
	Amount *big.Int

	// BatchSize is how many authorizations to pre-sign on a cache miss
	// (default DefaultBatchSize).
	BatchSize int

	// Validity is each authorization's redemption window (default one hour).
	Validity time.Duration

	// WalletTimeout bounds each wallet prompt (default DefaultWalletTimeout).
	WalletTimeout time.Duration

	// SkipVerify settles without the verify phase. A deliberate relaxation
	// of the two-phase protocol; leave false unless the facilitator
	// deployment requires it.
	SkipVerify bool
}

// DefaultConfig returns the production lens-payment configuration.
func DefaultConfig() Config {
	return Config{
		Chain:        chain.FluentTestnet,
		TokenAddress: chain.FluidTokenAddress,
		TokenName:    chain.FluidTokenName,
		TokenVersion: chain.FluidTokenVersion,
		Recipient:    chain.RecipientAddress,
		Amount:       chain.LensPaymentAmount(),
	}
}

// Orchestrator is the single entry point for "pay for one unit of access".
// It owns the authorization cache for its session; there is no shared
// package-level state.
type Orchestrator struct {
	config   Config
	provider wallet.Provider
	signer   *eip3009.Signer
	cache    *eip3009.Cache
	fac      Facilitator

	mu       sync.Mutex
	inFlight map[string]bool
	status   Status
}

// New creates an orchestrator for one wallet session.
func New(provider wallet.Provider, fac Facilitator, config Config) *Orchestrator {
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultBatchSize
	}
	if config.Validity <= 0 {
		config.Validity = eip3009.DefaultValidity
	}
	if config.WalletTimeout <= 0 {
		config.WalletTimeout = DefaultWalletTimeout
	}

	signer := eip3009.NewSigner(provider, eip3009.Domain{
		TokenName:    config.TokenName,
		TokenVersion: config.TokenVersion,
		TokenAddress: config.TokenAddress,
		ChainID:      config.Chain.BigID(),
	}).WithValidity(config.Validity)

	return &Orchestrator{
		config:   config,
		provider: provider,
		signer:   signer,
		cache:    eip3009.NewCache(),
		fac:      fac,
		inFlight: make(map[string]bool),
		status:   StatusIdle,
	}
}

// Status returns the state of the most recent payment attempt.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

// Remaining reports how many pre-signed authorizations the payer still has.
// Display only; an authorization can expire between count and use.
func (o *Orchestrator) Remaining() int {
	return o.cache.Remaining(o.provider.Address())
}

func (o *Orchestrator) setStatus(s Status) {
	o.mu.Lock()
	o.status = s
	o.mu.Unlock()
}

// Pay performs one payment attempt end to end. Only one attempt may be
// outstanding per payer: in-flight wallet prompts cannot be cancelled, so a
// second concurrent call fails fast instead of stacking prompts.
func (o *Orchestrator) Pay(ctx context.Context) (*Receipt, error) {
	payer := o.provider.Address()

	o.mu.Lock()
	if o.inFlight[payer] {
		o.mu.Unlock()
		return nil, lenspay.NewPaymentError(
			lenspay.ErrCodePaymentInProgress,
			"a payment for this wallet is already in progress",
			nil,
		)
	}
	o.inFlight[payer] = true
	o.status = StatusEnsuringNetwork
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		delete(o.inFlight, payer)
		o.mu.Unlock()
	}()

	receipt, err := o.pay(ctx, payer)
	if err != nil {
		o.setStatus(StatusFailed)
		return nil, err
	}
	o.setStatus(StatusSucceeded)
	return receipt, nil
}

func (o *Orchestrator) pay(ctx context.Context, payer string) (*Receipt, error) {
	if err := o.EnsureNetwork(ctx); err != nil {
		return nil, err
	}

	o.setStatus(StatusSourcingAuthorization)
	auth, err := o.sourceAuthorization(ctx, payer)
	if err != nil {
		return nil, err
	}

	o.setStatus(StatusSettling)
	receipt, err := o.settle(ctx, payer, auth)
	if err != nil {
		// The authorization was not consumed; it stays available for retry.
		o.cache.Release(payer, auth.Nonce)
		return nil, err
	}

	// Consume only after successful settlement so a failed submit never
	// loses an authorization.
	o.cache.MarkUsed(payer, auth.Nonce)
	return receipt, nil
}

// EnsureNetwork confirms the wallet is on the configured chain, switching
// and, for a wallet that does not know the chain, adding it and retrying
// the switch once. Failure is terminal for the attempt: there is no
// fallback to whatever chain the wallet happens to be on.
func (o *Orchestrator) EnsureNetwork(ctx context.Context) error {
	current, err := o.provider.ChainID(ctx)
	if err != nil {
		return lenspay.NewPaymentError(lenspay.ErrCodeTransportFailure,
			fmt.Sprintf("failed to read wallet chain id: %s", err.Error()), nil)
	}
	if current == o.config.Chain.ID {
		return nil
	}

	walletCtx, cancel := context.WithTimeout(ctx, o.config.WalletTimeout)
	defer cancel()

	err = o.provider.SwitchChain(walletCtx, o.config.Chain.ID)
	if wallet.IsUnrecognizedChain(err) {
		if addErr := o.provider.AddChain(walletCtx, o.config.Chain); addErr != nil {
			return o.networkError(addErr)
		}
		err = o.provider.SwitchChain(walletCtx, o.config.Chain.ID)
	}
	if err != nil {
		return o.networkError(err)
	}
	return nil
}

func (o *Orchestrator) networkError(err error) error {
	switch {
	case wallet.IsUserRejection(err):
		return lenspay.NewPaymentError(lenspay.ErrCodeSigningRejected,
			"network switch was declined", nil)
	case errors.Is(err, context.DeadlineExceeded):
		return lenspay.NewPaymentError(lenspay.ErrCodeSigningTimeout,
			"network switch request timed out", nil)
	default:
		return lenspay.NewPaymentError(lenspay.ErrCodeNetworkMismatch,
			fmt.Sprintf("wallet must be on %s (chain %d)", o.config.Chain.Name, o.config.Chain.ID),
			map[string]interface{}{"cause": err.Error()})
	}
}

// sourceAuthorization takes the next cached authorization, generating a
// full fresh batch first when the payer's queue is exhausted. A populated
// cache never triggers the signer.
func (o *Orchestrator) sourceAuthorization(ctx context.Context, payer string) (*eip3009.Authorization, error) {
	if auth := o.cache.Reserve(payer); auth != nil {
		return auth, nil
	}

	walletCtx, cancel := context.WithTimeout(ctx, o.config.WalletTimeout)
	defer cancel()

	batch, err := o.signer.SignBatch(walletCtx, o.config.Recipient, o.config.Amount, o.config.BatchSize)
	if err != nil {
		return nil, err
	}
	o.cache.Add(payer, batch)

	auth := o.cache.Reserve(payer)
	if auth == nil {
		return nil, fmt.Errorf("freshly signed batch yielded no usable authorization")
	}
	return auth, nil
}

// settle drives the facilitator handshake for one authorization. In the
// default flow settle is never invoked with a payload verify rejected.
func (o *Orchestrator) settle(ctx context.Context, payer string, auth *eip3009.Authorization) (*Receipt, error) {
	payload, err := auth.PayloadJSON()
	if err != nil {
		return nil, err
	}

	details := lenspay.PaymentDetails{
		NetworkID:    fmt.Sprintf("%d", o.config.Chain.ID),
		Amount:       auth.Value,
		To:           auth.To,
		From:         payer,
		Scheme:       lenspay.SchemeERC20,
		TokenAddress: o.config.TokenAddress,
	}

	var transactionID string
	if !o.config.SkipVerify {
		verifyRes, err := o.fac.Verify(ctx, payload, details)
		if err != nil {
			return nil, err
		}
		transactionID = verifyRes.TransactionID
	}

	settleRes, err := o.fac.Settle(ctx, payload, details, transactionID)
	if err != nil {
		return nil, err
	}

	return &Receipt{
		TxHash:        settleRes.TxHash,
		TransactionID: settleRes.TransactionID,
		BlockNumber:   settleRes.BlockNumber,
	}, nil
}
