package wallet

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/openxr-labs/lenspay/chain"
)

// KeySigner implements Provider with a raw ECDSA private key. Used for
// headless operation and tests; browser-wallet deployments wrap their
// provider in an adapter instead.
type KeySigner struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
	ethClient  *ethclient.Client

	mu      sync.Mutex
	chainID int64
	known   map[int64]chain.Chain
}

// NewKeySigner creates a key-backed wallet from a hex-encoded private key.
// The signer starts on chainID and accepts switches to any chain added via
// AddChain or listed in knownChains.
func NewKeySigner(privateKeyHex string, chainID int64, knownChains ...chain.Chain) (*KeySigner, error) {
	privateKeyHex = strings.TrimPrefix(privateKeyHex, "0x")

	privateKey, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}

	known := make(map[int64]chain.Chain, len(knownChains))
	for _, c := range knownChains {
		known[c.ID] = c
	}

	return &KeySigner{
		privateKey: privateKey,
		address:    crypto.PubkeyToAddress(privateKey.PublicKey),
		chainID:    chainID,
		known:      known,
	}, nil
}

// WithEthClient attaches an RPC client so SendTransaction can broadcast.
func (s *KeySigner) WithEthClient(client *ethclient.Client) *KeySigner {
	s.ethClient = client
	return s
}

// Address returns the signer's Ethereum address.
func (s *KeySigner) Address() string {
	return s.address.Hex()
}

// ChainID returns the chain the signer currently targets.
func (s *KeySigner) ChainID(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chainID, nil
}

// SwitchChain moves the signer to a chain it has been told about.
func (s *KeySigner) SwitchChain(ctx context.Context, chainID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if chainID != s.chainID {
		if _, ok := s.known[chainID]; !ok {
			return &RPCError{
				Code:    CodeUnrecognizedChain,
				Message: fmt.Sprintf("unrecognized chain id %d", chainID),
			}
		}
	}
	s.chainID = chainID
	return nil
}

// AddChain registers chain metadata with the signer.
func (s *KeySigner) AddChain(ctx context.Context, c chain.Chain) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.known[c.ID] = c
	return nil
}

// SignTypedData signs EIP-712 typed data with the private key.
// The digest is 0x19 0x01 <domainSeparator> <structHash>, and the recovery
// id is shifted to the Ethereum convention (27/28).
func (s *KeySigner) SignTypedData(ctx context.Context, typed apitypes.TypedData) ([]byte, error) {
	if _, exists := typed.Types["EIP712Domain"]; !exists {
		typed.Types["EIP712Domain"] = []apitypes.Type{
			{Name: "name", Type: "string"},
			{Name: "version", Type: "string"},
			{Name: "chainId", Type: "uint256"},
			{Name: "verifyingContract", Type: "address"},
		}
	}

	dataHash, err := typed.HashStruct(typed.PrimaryType, typed.Message)
	if err != nil {
		return nil, fmt.Errorf("failed to hash struct: %w", err)
	}

	domainSeparator, err := typed.HashStruct("EIP712Domain", typed.Domain.Map())
	if err != nil {
		return nil, fmt.Errorf("failed to hash domain: %w", err)
	}

	rawData := []byte{0x19, 0x01}
	rawData = append(rawData, domainSeparator...)
	rawData = append(rawData, dataHash...)
	digest := crypto.Keccak256(rawData)

	signature, err := crypto.Sign(digest, s.privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign: %w", err)
	}

	signature[64] += 27
	return signature, nil
}

// SendTransaction signs and broadcasts a transaction. Requires an attached
// ethclient.
func (s *KeySigner) SendTransaction(ctx context.Context, req TxRequest) (string, error) {
	if s.ethClient == nil {
		return "", fmt.Errorf("SendTransaction requires an ethclient; use WithEthClient")
	}

	nonce, err := s.ethClient.PendingNonceAt(ctx, s.address)
	if err != nil {
		return "", fmt.Errorf("failed to fetch account nonce: %w", err)
	}

	gasPrice, err := s.ethClient.SuggestGasPrice(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to fetch gas price: %w", err)
	}

	to := common.HexToAddress(req.To)
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    req.Value,
		Gas:      200_000,
		GasPrice: gasPrice,
		Data:     req.Data,
	})

	s.mu.Lock()
	chainID := s.chainID
	s.mu.Unlock()
	if req.ChainID != 0 {
		chainID = req.ChainID
	}

	signed, err := types.SignTx(tx, types.LatestSignerForChainID(big.NewInt(chainID)), s.privateKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err := s.ethClient.SendTransaction(ctx, signed); err != nil {
		return "", fmt.Errorf("failed to broadcast transaction: %w", err)
	}

	return signed.Hash().Hex(), nil
}
