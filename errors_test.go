package lenspay

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeOf(t *testing.T) {
	err := NewPaymentError(ErrCodeVerificationFailed, "nonce already used", nil)
	assert.Equal(t, ErrCodeVerificationFailed, CodeOf(err))

	wrapped := fmt.Errorf("payment attempt: %w", err)
	assert.Equal(t, ErrCodeVerificationFailed, CodeOf(wrapped))

	assert.Equal(t, "", CodeOf(errors.New("plain error")))
	assert.Equal(t, "", CodeOf(nil))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(NewPaymentError(ErrCodeTransportFailure, "timeout", nil)))
	assert.True(t, IsRetryable(NewPaymentError(ErrCodeSettlementFailed, "reverted", nil)))
	assert.False(t, IsRetryable(NewPaymentError(ErrCodeSigningRejected, "declined", nil)))
	assert.False(t, IsRetryable(NewPaymentError(ErrCodeInvalidItem, "unknown item", nil)))
	assert.False(t, IsRetryable(errors.New("plain error")))
}

func TestPaymentDetailsValidate(t *testing.T) {
	valid := PaymentDetails{
		NetworkID:    "20994",
		Amount:       "10000000000000000",
		To:           "0xb448e18d272291503fb8f3150247e2b4bc817729",
		Scheme:       SchemeERC20,
		TokenAddress: "0xd8acBC0d60acCCeeF70D9b84ac47153b3895D3d0",
	}
	assert.NoError(t, valid.Validate())

	native := valid
	native.Scheme = SchemeNative
	native.TokenAddress = ""
	assert.NoError(t, native.Validate())

	missingToken := valid
	missingToken.TokenAddress = ""
	assert.Error(t, missingToken.Validate())

	badScheme := valid
	badScheme.Scheme = "evm-something"
	assert.Error(t, badScheme.Validate())

	noRecipient := valid
	noRecipient.To = ""
	assert.Error(t, noRecipient.Validate())
}
