package siwe

import (
	"crypto/ecdsa"
	"encoding/json"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return key
}

func newMessage(key *ecdsa.PrivateKey) *Message {
	return &Message{
		Domain:         "app.example",
		Address:        crypto.PubkeyToAddress(key.PublicKey).Hex(),
		Statement:      "Sign in to FlashSquad",
		URI:            "https://app.example",
		Version:        "1",
		ChainID:        1,
		Nonce:          "abcdef123456",
		IssuedAt:       "2024-05-01T11:59:00Z",
		ExpirationTime: "2024-05-01T12:10:00Z",
	}
}

func sign(t *testing.T, key *ecdsa.PrivateKey, text string) string {
	t.Helper()
	sig, err := crypto.Sign(accounts.TextHash([]byte(text)), key)
	require.NoError(t, err)
	sig[crypto.RecoveryIDOffset] += 27
	return hexutil.Encode(sig)
}

func TestParse_TextRoundTrip(t *testing.T) {
	key := newKey(t)
	m := newMessage(key)
	m.NotBefore = "2024-05-01T11:00:00.000Z"
	m.RequestID = "req-1"
	m.Resources = []string{"ipfs://Qm1", "https://app.example/tos"}

	text := m.String()
	parsed, err := Parse(text)
	require.NoError(t, err)

	assert.Equal(t, m.Domain, parsed.Domain)
	assert.Equal(t, m.Address, parsed.Address)
	assert.Equal(t, m.Statement, parsed.Statement)
	assert.Equal(t, int64(1), parsed.ChainID)
	assert.Equal(t, m.Resources, parsed.Resources)
	assert.Equal(t, "req-1", parsed.RequestID)
	assert.Equal(t, text, parsed.String())
	assert.Equal(t, text, parsed.SignedText())
}

func TestParse_WithoutStatement(t *testing.T) {
	m := newMessage(newKey(t))
	m.Statement = ""

	text := m.String()
	assert.Contains(t, text, m.Address+"\n\n\nURI: ")

	parsed, err := Parse(text)
	require.NoError(t, err)
	assert.Empty(t, parsed.Statement)
	assert.Equal(t, "https://app.example", parsed.URI)
}

func TestParse_JSONForm(t *testing.T) {
	m := newMessage(newKey(t))
	raw, err := json.Marshal(m)
	require.NoError(t, err)

	parsed, err := Parse(string(raw))
	require.NoError(t, err)
	assert.Equal(t, m.String(), parsed.SignedText())
}

func TestParse_Invalid(t *testing.T) {
	key := newKey(t)
	cases := map[string]func(m *Message){
		"bad address":   func(m *Message) { m.Address = "0x1234" },
		"bad version":   func(m *Message) { m.Version = "2" },
		"short nonce":   func(m *Message) { m.Nonce = "abc" },
		"bad issued at": func(m *Message) { m.IssuedAt = "yesterday" },
		"no uri":        func(m *Message) { m.URI = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			m := newMessage(key)
			mutate(m)
			_, err := Parse(m.String())
			assert.ErrorIs(t, err, ErrInvalidMessage)
		})
	}

	_, err := Parse("hello")
	assert.ErrorIs(t, err, ErrInvalidMessage)
	_, err = Parse("{not json")
	assert.ErrorIs(t, err, ErrInvalidMessage)
}

func TestVerify_Success(t *testing.T) {
	key := newKey(t)
	m := newMessage(key)
	text := m.String()

	addr, parsed, err := Verify(text, sign(t, key, text), "app.example", "abcdef123456", testNow)
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), addr)
	assert.Equal(t, "abcdef123456", parsed.Nonce)
}

func TestVerify_LowercaseAddressAndRawV(t *testing.T) {
	key := newKey(t)
	m := newMessage(key)
	m.Address = "0x" + hexutil.Encode(crypto.PubkeyToAddress(key.PublicKey).Bytes())[2:]
	text := m.String()

	sig, err := crypto.Sign(accounts.TextHash([]byte(text)), key)
	require.NoError(t, err)

	addr, _, err := Verify(text, hexutil.Encode(sig)[2:], "app.example", "abcdef123456", testNow)
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), addr)
}

func TestVerify_JSONForm(t *testing.T) {
	key := newKey(t)
	m := newMessage(key)
	raw, err := json.Marshal(m)
	require.NoError(t, err)

	addr, _, err := Verify(string(raw), sign(t, key, m.String()), "app.example", "abcdef123456", testNow)
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), addr)
}

func TestVerify_Failures(t *testing.T) {
	key := newKey(t)
	other := newKey(t)
	m := newMessage(key)
	text := m.String()
	good := sign(t, key, text)

	t.Run("domain mismatch", func(t *testing.T) {
		_, _, err := Verify(text, good, "evil.example", "abcdef123456", testNow)
		assert.ErrorIs(t, err, ErrDomainMismatch)
	})

	t.Run("nonce mismatch", func(t *testing.T) {
		_, _, err := Verify(text, good, "app.example", "zzzzzzzz9999", testNow)
		assert.ErrorIs(t, err, ErrNonceExpired)
	})

	t.Run("no nonce issued", func(t *testing.T) {
		_, _, err := Verify(text, good, "app.example", "", testNow)
		assert.ErrorIs(t, err, ErrNonceExpired)
	})

	t.Run("expired", func(t *testing.T) {
		_, _, err := Verify(text, good, "app.example", "abcdef123456", testNow.Add(time.Hour))
		assert.ErrorIs(t, err, ErrNonceExpired)
	})

	t.Run("not yet valid", func(t *testing.T) {
		early := newMessage(key)
		early.NotBefore = "2024-05-01T13:00:00Z"
		earlyText := early.String()
		_, _, err := Verify(earlyText, sign(t, key, earlyText), "app.example", "abcdef123456", testNow)
		assert.ErrorIs(t, err, ErrNonceExpired)
	})

	t.Run("wrong signer", func(t *testing.T) {
		_, _, err := Verify(text, sign(t, other, text), "app.example", "abcdef123456", testNow)
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("tampered message", func(t *testing.T) {
		tampered := newMessage(key)
		tampered.Statement = "Something else"
		_, _, err := Verify(tampered.String(), good, "app.example", "abcdef123456", testNow)
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("malformed signature", func(t *testing.T) {
		_, _, err := Verify(text, "0x1234", "app.example", "abcdef123456", testNow)
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("garbage message", func(t *testing.T) {
		_, _, err := Verify("not a message", good, "app.example", "abcdef123456", testNow)
		assert.ErrorIs(t, err, ErrInvalidMessage)
	})
}
