package payment

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	lenspay "github.com/openxr-labs/lenspay"
	"github.com/openxr-labs/lenspay/chain"
	"github.com/openxr-labs/lenspay/wallet"
)

// fakeProvider is a scripted wallet backend.
type fakeProvider struct {
	mu          sync.Mutex
	address     string
	chainID     int64
	known       map[int64]bool
	signCalls   int
	switchCalls int
	addCalls    int
	signErr     error
	signBlock   chan struct{} // when set, SignTypedData waits for a receive
}

func newFakeProvider(chainID int64) *fakeProvider {
	return &fakeProvider{
		address: "0x1111111111111111111111111111111111111111",
		chainID: chainID,
		known:   map[int64]bool{chainID: true},
	}
}

func (p *fakeProvider) Address() string { return p.address }

func (p *fakeProvider) ChainID(ctx context.Context) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.chainID, nil
}

func (p *fakeProvider) SwitchChain(ctx context.Context, chainID int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.switchCalls++
	if !p.known[chainID] {
		return &wallet.RPCError{Code: wallet.CodeUnrecognizedChain, Message: "unrecognized chain"}
	}
	p.chainID = chainID
	return nil
}

func (p *fakeProvider) AddChain(ctx context.Context, c chain.Chain) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.addCalls++
	p.known[c.ID] = true
	return nil
}

func (p *fakeProvider) SignTypedData(ctx context.Context, typed apitypes.TypedData) ([]byte, error) {
	if p.signBlock != nil {
		select {
		case <-p.signBlock:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.signCalls++
	if p.signErr != nil {
		return nil, p.signErr
	}
	sig := make([]byte, 65)
	sig[64] = 27
	return sig, nil
}

func (p *fakeProvider) SendTransaction(ctx context.Context, tx wallet.TxRequest) (string, error) {
	return "0xhash", nil
}

// fakeFacilitator scripts the verify/settle handshake.
type fakeFacilitator struct {
	mu          sync.Mutex
	verifyCalls int
	settleCalls int
	verifyErr   error
	settleErr   error
	lastPayload string
	lastDetails lenspay.PaymentDetails
}

func (f *fakeFacilitator) Verify(ctx context.Context, payload string, details lenspay.PaymentDetails) (*lenspay.VerifyResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verifyCalls++
	f.lastPayload = payload
	f.lastDetails = details
	if f.verifyErr != nil {
		return nil, f.verifyErr
	}
	return &lenspay.VerifyResponse{Valid: true, TransactionID: "tx-123"}, nil
}

func (f *fakeFacilitator) Settle(ctx context.Context, payload string, details lenspay.PaymentDetails, transactionID string) (*lenspay.SettleResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.settleCalls++
	if f.settleErr != nil {
		return nil, f.settleErr
	}
	return &lenspay.SettleResponse{
		Success:       true,
		TxHash:        "0xsettled",
		TransactionID: transactionID,
		BlockNumber:   42,
	}, nil
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Amount = big.NewInt(10000000000000000)
	return cfg
}

func TestFreshPayerGeneratesBatchAndConsumesFirst(t *testing.T) {
	provider := newFakeProvider(chain.FluentTestnet.ID)
	fac := &fakeFacilitator{}
	orch := New(provider, fac, testConfig())

	receipt, err := orch.Pay(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "0xsettled", receipt.TxHash)
	assert.Equal(t, uint64(42), receipt.BlockNumber)

	assert.Equal(t, 10, provider.signCalls, "first payment signs a full batch")
	assert.Equal(t, 9, orch.Remaining(), "one of ten consumed")
	assert.Equal(t, StatusSucceeded, orch.Status())
}

func TestPopulatedCacheNeverTriggersSigner(t *testing.T) {
	provider := newFakeProvider(chain.FluentTestnet.ID)
	fac := &fakeFacilitator{}
	orch := New(provider, fac, testConfig())

	_, err := orch.Pay(context.Background())
	require.NoError(t, err)
	require.Equal(t, 10, provider.signCalls)

	for i := 0; i < 5; i++ {
		_, err := orch.Pay(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, 10, provider.signCalls, "cache hits must not invoke the signer")
	assert.Equal(t, 4, orch.Remaining())
}

func TestVerifyFailurePreventsSettle(t *testing.T) {
	provider := newFakeProvider(chain.FluentTestnet.ID)
	fac := &fakeFacilitator{
		verifyErr: lenspay.NewPaymentError(lenspay.ErrCodeVerificationFailed, "nonce already used", nil),
	}
	orch := New(provider, fac, testConfig())

	_, err := orch.Pay(context.Background())
	require.Error(t, err)
	assert.Equal(t, lenspay.ErrCodeVerificationFailed, lenspay.CodeOf(err))
	assert.Contains(t, err.Error(), "nonce already used")
	assert.Equal(t, 0, fac.settleCalls, "settle must never run after a verify rejection")
	assert.Equal(t, StatusFailed, orch.Status())

	// The authorization was not consumed and stays available.
	assert.Equal(t, 10, orch.Remaining())
}

func TestSettleFailureKeepsAuthorization(t *testing.T) {
	provider := newFakeProvider(chain.FluentTestnet.ID)
	fac := &fakeFacilitator{
		settleErr: lenspay.NewPaymentError(lenspay.ErrCodeSettlementFailed, "reverted", nil),
	}
	orch := New(provider, fac, testConfig())

	_, err := orch.Pay(context.Background())
	assert.Equal(t, lenspay.ErrCodeSettlementFailed, lenspay.CodeOf(err))
	assert.Equal(t, 10, orch.Remaining(), "failed settlement must not consume the authorization")

	// Retry succeeds with the same batch, no fresh signatures.
	fac.settleErr = nil
	_, err = orch.Pay(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10, provider.signCalls)
	assert.Equal(t, 9, orch.Remaining())
}

func TestSkipVerifyGoesStraightToSettle(t *testing.T) {
	provider := newFakeProvider(chain.FluentTestnet.ID)
	fac := &fakeFacilitator{}
	cfg := testConfig()
	cfg.SkipVerify = true
	orch := New(provider, fac, cfg)

	_, err := orch.Pay(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, fac.verifyCalls)
	assert.Equal(t, 1, fac.settleCalls)
}

func TestEnsureNetworkAddsUnrecognizedChain(t *testing.T) {
	// Wallet starts on mainnet and has never heard of the payment chain:
	// switch fails with 4902, the chain is added, and the switch retried once.
	provider := newFakeProvider(1)
	fac := &fakeFacilitator{}
	orch := New(provider, fac, testConfig())

	_, err := orch.Pay(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, provider.addCalls)
	assert.Equal(t, 2, provider.switchCalls, "switch, add, switch again")
	assert.Equal(t, chain.FluentTestnet.ID, provider.chainID)
}

func TestEnsureNetworkRejectionIsTyped(t *testing.T) {
	// The wallet declines the switch prompt outright.
	provider := &rejectingProvider{fakeProvider: newFakeProvider(1)}
	fac := &fakeFacilitator{}
	orch := New(provider, fac, testConfig())

	_, err := orch.Pay(context.Background())
	require.Error(t, err)
	assert.Equal(t, lenspay.ErrCodeSigningRejected, lenspay.CodeOf(err))
	assert.Equal(t, 0, fac.verifyCalls)
}

// rejectingProvider declines every chain switch.
type rejectingProvider struct {
	*fakeProvider
}

func (p *rejectingProvider) SwitchChain(ctx context.Context, chainID int64) error {
	return &wallet.RPCError{Code: wallet.CodeUserRejected, Message: "user rejected the request"}
}

func TestSigningRejectionSurfacesTyped(t *testing.T) {
	provider := newFakeProvider(chain.FluentTestnet.ID)
	provider.signErr = &wallet.RPCError{Code: wallet.CodeUserRejected, Message: "user rejected"}
	fac := &fakeFacilitator{}
	orch := New(provider, fac, testConfig())

	_, err := orch.Pay(context.Background())
	assert.Equal(t, lenspay.ErrCodeSigningRejected, lenspay.CodeOf(err))
	assert.Equal(t, 0, fac.verifyCalls)
	assert.Equal(t, 0, fac.settleCalls)
}

func TestConcurrentPaymentGuard(t *testing.T) {
	provider := newFakeProvider(chain.FluentTestnet.ID)
	provider.signBlock = make(chan struct{})
	fac := &fakeFacilitator{}
	orch := New(provider, fac, testConfig())

	firstDone := make(chan error, 1)
	go func() {
		_, err := orch.Pay(context.Background())
		firstDone <- err
	}()

	// Wait until the first attempt is parked inside the signing prompt.
	require.Eventually(t, func() bool {
		return orch.Status() == StatusSourcingAuthorization
	}, time.Second, 5*time.Millisecond)

	_, err := orch.Pay(context.Background())
	assert.Equal(t, lenspay.ErrCodePaymentInProgress, lenspay.CodeOf(err))

	close(provider.signBlock)
	require.NoError(t, <-firstDone)

	// With the first attempt finished, payments are accepted again.
	_, err = orch.Pay(context.Background())
	require.NoError(t, err)
}

func TestPaymentDetailsMatchConfiguration(t *testing.T) {
	provider := newFakeProvider(chain.FluentTestnet.ID)
	fac := &fakeFacilitator{}
	orch := New(provider, fac, testConfig())

	_, err := orch.Pay(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "20994", fac.lastDetails.NetworkID)
	assert.Equal(t, "10000000000000000", fac.lastDetails.Amount)
	assert.Equal(t, chain.RecipientAddress, fac.lastDetails.To)
	assert.Equal(t, provider.Address(), fac.lastDetails.From)
	assert.Equal(t, lenspay.SchemeERC20, fac.lastDetails.Scheme)
	assert.Equal(t, chain.FluidTokenAddress, fac.lastDetails.TokenAddress)
	assert.NotEmpty(t, fac.lastPayload)
}
