// Package lenspay implements the payment-authorization and license-gating
// core of the OpenXR lens camera: gasless EIP-3009 micropayments settled
// through a remote facilitator, batched pre-signed authorizations, and
// read-only on-chain license checks.
package lenspay

import "fmt"

// Scheme tags how a payment is settled on chain. Native transfers and
// ERC20-style transfers take different settlement paths at the facilitator.
type Scheme string

const (
	// SchemeNative is a native-currency transfer.
	SchemeNative Scheme = "evm-native"
	// SchemeERC20 is an ERC20 token transfer (EIP-3009 transferWithAuthorization).
	SchemeERC20 Scheme = "evm-erc20"
)

// PaymentDetails describes what is being paid for, independent of how the
// payment is authorized. The facilitator verifies the signed payload against
// these exact values; any mismatch is a verification failure, never a silent
// correction.
type PaymentDetails struct {
	NetworkID    string `json:"networkId"`
	Amount       string `json:"amount"` // smallest token unit, decimal string
	To           string `json:"to"`
	From         string `json:"from,omitempty"`
	Scheme       Scheme `json:"scheme"`
	TokenAddress string `json:"tokenAddress,omitempty"`
}

// Validate performs basic validation on payment details.
func (d PaymentDetails) Validate() error {
	if d.NetworkID == "" {
		return fmt.Errorf("payment network is required")
	}
	if d.Amount == "" {
		return fmt.Errorf("payment amount is required")
	}
	if d.To == "" {
		return fmt.Errorf("payment recipient is required")
	}
	switch d.Scheme {
	case SchemeNative:
	case SchemeERC20:
		if d.TokenAddress == "" {
			return fmt.Errorf("token address is required for %s payments", SchemeERC20)
		}
	default:
		return fmt.Errorf("unsupported payment scheme: %s", d.Scheme)
	}
	return nil
}

// VerifyResponse is the facilitator's answer to a verify request.
type VerifyResponse struct {
	Valid         bool   `json:"valid"`
	TransactionID string `json:"transactionId,omitempty"`
	Message       string `json:"message,omitempty"`
}

// SettleResponse is the facilitator's answer to a settle request.
type SettleResponse struct {
	Success       bool   `json:"success"`
	TxHash        string `json:"txHash,omitempty"`
	TransactionID string `json:"transactionId"`
	BlockNumber   uint64 `json:"blockNumber,omitempty"`
	Message       string `json:"message,omitempty"`
}

// NetworkConfig describes the facilitator's active settlement network.
// Informational only; correctness never depends on it.
type NetworkConfig struct {
	ChainID             int64  `json:"chainId"`
	Name                string `json:"name"`
	RPCURL              string `json:"rpcUrl"`
	Symbol              string `json:"symbol"`
	Explorer            string `json:"explorer"`
	FacilitatorAddress  string `json:"facilitatorAddress"`
	WalletConfigured    bool   `json:"walletConfigured"`
	SettlementAvailable bool   `json:"settlementAvailable"`
}
