package siwe

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	ErrInvalidMessage   = errors.New("invalid sign-in message")
	ErrDomainMismatch   = errors.New("domain mismatch")
	ErrNonceExpired     = errors.New("nonce expired or mismatched")
	ErrInvalidSignature = errors.New("invalid signature")
)

// Verify checks a signed message against the expected domain and the nonce
// the server issued, and returns the checksummed signer address.
func Verify(message, signature, expectedDomain, expectedNonce string, now time.Time) (common.Address, *Message, error) {
	m, err := Parse(message)
	if err != nil {
		return common.Address{}, nil, err
	}

	if m.Domain != expectedDomain {
		return common.Address{}, m, fmt.Errorf("%w: got %q", ErrDomainMismatch, m.Domain)
	}
	if expectedNonce == "" || m.Nonce != expectedNonce {
		return common.Address{}, m, ErrNonceExpired
	}
	if m.ExpirationTime != "" {
		exp, _ := parseTime(m.ExpirationTime)
		if !now.Before(exp) {
			return common.Address{}, m, fmt.Errorf("%w: message expired at %s", ErrNonceExpired, m.ExpirationTime)
		}
	}
	if m.NotBefore != "" {
		nbf, _ := parseTime(m.NotBefore)
		if now.Before(nbf) {
			return common.Address{}, m, fmt.Errorf("%w: message not valid before %s", ErrNonceExpired, m.NotBefore)
		}
	}

	signer, err := RecoverAddress(m.SignedText(), signature)
	if err != nil {
		return common.Address{}, m, err
	}
	if signer != common.HexToAddress(m.Address) {
		return common.Address{}, m, fmt.Errorf("%w: recovered %s", ErrInvalidSignature, signer.Hex())
	}
	return signer, m, nil
}

// RecoverAddress returns the address that personal-signed text.
func RecoverAddress(text, signature string) (common.Address, error) {
	if !strings.HasPrefix(signature, "0x") {
		signature = "0x" + signature
	}
	sig, err := hexutil.Decode(signature)
	if err != nil || len(sig) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("%w: malformed signature", ErrInvalidSignature)
	}

	// Wallets send V as 27/28, the recovery routine expects 0/1.
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}
	if sig[crypto.RecoveryIDOffset] > 1 {
		return common.Address{}, fmt.Errorf("%w: bad recovery id", ErrInvalidSignature)
	}

	pub, err := crypto.SigToPub(accounts.TextHash([]byte(text)), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}
