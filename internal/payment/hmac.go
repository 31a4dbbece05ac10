package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// HMACVerifier checks a signature computed by the payment provider over
// checkoutId|status|amount with a shared secret
type HMACVerifier struct {
	secret []byte
}

// NewHMACVerifier creates a verifier for the shared secret
func NewHMACVerifier(secret string) *HMACVerifier {
	return &HMACVerifier{secret: []byte(secret)}
}

// Name identifies the verifier in logs and metrics
func (v *HMACVerifier) Name() string { return "hmac" }

// Verify rejects a confirmation whose signature is missing or does not match
func (v *HMACVerifier) Verify(_ context.Context, c Confirmation) error {
	if c.Signature == "" {
		return fmt.Errorf("%w: missing signature", ErrRejected)
	}
	got, err := hex.DecodeString(c.Signature)
	if err != nil {
		return fmt.Errorf("%w: malformed signature", ErrRejected)
	}
	if !hmac.Equal(got, v.mac(c)) {
		return fmt.Errorf("%w: signature mismatch", ErrRejected)
	}
	return nil
}

// Sign returns the hex signature a provider would attach to c
func (v *HMACVerifier) Sign(c Confirmation) string {
	return hex.EncodeToString(v.mac(c))
}

func (v *HMACVerifier) mac(c Confirmation) []byte {
	m := hmac.New(sha256.New, v.secret)
	m.Write([]byte(c.CheckoutID + "|" + c.Status + "|" + formatAmount(c.Amount)))
	return m.Sum(nil)
}
