package service

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flashsquad-backend/internal/features/auth/models"
	"flashsquad-backend/internal/features/auth/nonce"
	"flashsquad-backend/internal/features/auth/siwe"
	"flashsquad-backend/internal/features/auth/token"
	"flashsquad-backend/internal/features/holdings"
	squadmodels "flashsquad-backend/internal/features/squad/models"
	usermodels "flashsquad-backend/internal/features/user/models"
)

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type fakeUsers struct {
	users map[string]*usermodels.User
	err   error
}

func (f *fakeUsers) Reconcile(ctx context.Context, address string) (*usermodels.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	if u, ok := f.users[address]; ok {
		return u, nil
	}
	u := &usermodels.User{ID: "user-1", WalletID: "wallet-1", Address: address, Name: address}
	f.users[address] = u
	return u, nil
}

type fakeScanner struct {
	holdings []holdings.Holding
	err      error
	block    bool
}

func (f *fakeScanner) Scan(ctx context.Context, address string, limits map[string]int) ([]holdings.Holding, error) {
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.holdings, f.err
}

type upsertCall struct {
	userID, walletID string
	holdings         []holdings.Holding
}

type fakeUpserter struct {
	calls []upsertCall
}

func (f *fakeUpserter) UpsertHoldings(ctx context.Context, userID, walletID string, hs []holdings.Holding) (*squadmodels.UpsertReport, error) {
	f.calls = append(f.calls, upsertCall{userID, walletID, hs})
	report := &squadmodels.UpsertReport{}
	for _, h := range hs {
		report.SquadIDs = append(report.SquadIDs, "squad-"+h.ContractAddress)
		report.PersonaIDs = append(report.PersonaIDs, "persona-"+h.TokenID)
	}
	return report, nil
}

type fixture struct {
	svc      AuthService
	store    *nonce.Store
	mr       *miniredis.Miniredis
	users    *fakeUsers
	scanner  *fakeScanner
	upserter *fakeUpserter
	tokens   *token.Issuer
	key      *ecdsa.PrivateKey
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	f := &fixture{
		store:    nonce.NewStore(rdb, 5*time.Minute),
		mr:       mr,
		users:    &fakeUsers{users: map[string]*usermodels.User{}},
		scanner:  &fakeScanner{},
		upserter: &fakeUpserter{},
		tokens:   token.NewIssuer("test-secret", time.Hour, "user"),
		key:      key,
	}
	f.svc = NewAuthService(f.store, f.users, f.scanner, f.upserter, f.tokens, Options{
		Domain:      "app.example",
		FlowTimeout: 2 * time.Second,
		Now:         func() time.Time { return testNow },
	})
	return f
}

func (f *fixture) address() string {
	return crypto.PubkeyToAddress(f.key.PublicKey).Hex()
}

func (f *fixture) message(domain, n string) string {
	m := &siwe.Message{
		Domain:    domain,
		Address:   f.address(),
		Statement: "Sign in to FlashSquad",
		URI:       "https://" + domain,
		Version:   "1",
		ChainID:   1,
		Nonce:     n,
		IssuedAt:  "2024-05-01T11:59:00Z",
	}
	return m.String()
}

func signWith(t *testing.T, key *ecdsa.PrivateKey, text string) string {
	t.Helper()
	sig, err := crypto.Sign(accounts.TextHash([]byte(text)), key)
	require.NoError(t, err)
	sig[crypto.RecoveryIDOffset] += 27
	return hexutil.Encode(sig)
}

func (f *fixture) nonce(t *testing.T) string {
	t.Helper()
	resp, err := f.svc.Nonce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, testNow.Add(5*time.Minute), resp.ExpiresAt)
	return resp.Nonce
}

func (f *fixture) signIn(t *testing.T, domain, n, issued string) (*models.Session, error) {
	t.Helper()
	msg := f.message(domain, n)
	return f.svc.SignIn(context.Background(), models.SignInRequest{
		Message:   msg,
		Signature: signWith(t, f.key, msg),
	}, issued)
}

func TestSignIn_CreatesSquadAndPersonaForHolding(t *testing.T) {
	f := newFixture(t)
	f.scanner.holdings = []holdings.Holding{{Chain: "ethereum", ContractAddress: "0xdef", TokenID: "7"}}
	n := f.nonce(t)

	sess, err := f.signIn(t, "app.example", n, n)
	require.NoError(t, err)

	assert.Equal(t, f.address(), sess.Address)
	assert.Equal(t, "user-1", sess.User.ID)
	assert.Equal(t, []string{"squad-0xdef"}, sess.Holdings.SquadIDs)
	assert.Equal(t, []string{"persona-7"}, sess.Holdings.PersonaIDs)

	require.Len(t, f.upserter.calls, 1)
	assert.Equal(t, "user-1", f.upserter.calls[0].userID)
	assert.Equal(t, "wallet-1", f.upserter.calls[0].walletID)

	claims, err := f.tokens.Validate(sess.Token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID())
	assert.Equal(t, f.address(), claims.Subject)
}

func TestSignIn_NonceIsSingleUse(t *testing.T) {
	f := newFixture(t)
	n := f.nonce(t)

	_, err := f.signIn(t, "app.example", n, n)
	require.NoError(t, err)

	_, err = f.signIn(t, "app.example", n, n)
	assert.ErrorIs(t, err, ErrNonceExpired)
	assert.Len(t, f.upserter.calls, 1)
}

func TestSignIn_RequiresNonceCookie(t *testing.T) {
	f := newFixture(t)
	n := f.nonce(t)

	// a live nonce issued to another browser is not enough
	_, err := f.signIn(t, "app.example", n, "")
	assert.ErrorIs(t, err, ErrNonceExpired)
	assert.Empty(t, f.upserter.calls)

	// and it stays usable by the browser holding the cookie
	_, err = f.signIn(t, "app.example", n, n)
	assert.NoError(t, err)
}

func TestSignIn_ExpiredNonce(t *testing.T) {
	f := newFixture(t)
	n := f.nonce(t)
	f.mr.FastForward(6 * time.Minute)

	_, err := f.signIn(t, "app.example", n, n)
	assert.ErrorIs(t, err, ErrNonceExpired)
}

func TestSignIn_NonceNotMatchingCookie(t *testing.T) {
	f := newFixture(t)
	issued := f.nonce(t)
	other := f.nonce(t)

	_, err := f.signIn(t, "app.example", other, issued)
	assert.ErrorIs(t, err, ErrNonceExpired)
}

func TestSignIn_DomainMismatch(t *testing.T) {
	f := newFixture(t)
	n := f.nonce(t)

	_, err := f.signIn(t, "evil.example", n, n)
	assert.ErrorIs(t, err, ErrDomainMismatch)
	assert.Empty(t, f.upserter.calls)
}

func TestSignIn_WrongSigner(t *testing.T) {
	f := newFixture(t)
	n := f.nonce(t)
	other, err := crypto.GenerateKey()
	require.NoError(t, err)

	msg := f.message("app.example", n)
	_, err = f.svc.SignIn(context.Background(), models.SignInRequest{
		Message:   msg,
		Signature: signWith(t, other, msg),
	}, n)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestSignIn_InvalidMessage(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.SignIn(context.Background(), models.SignInRequest{Message: "hello", Signature: "0x00"}, "")
	assert.ErrorIs(t, err, ErrInvalidMessage)
}

func TestSignIn_UpstreamFailureIsAuthUnavailable(t *testing.T) {
	f := newFixture(t)
	f.scanner.err = holdings.ErrUpstreamUnavailable
	n := f.nonce(t)

	sess, err := f.signIn(t, "app.example", n, n)
	assert.Nil(t, sess)
	assert.ErrorIs(t, err, ErrAuthUnavailable)
	assert.Empty(t, f.upserter.calls)
}

func TestSignIn_ReconcileFailure(t *testing.T) {
	f := newFixture(t)
	f.users.err = errors.New("connection refused")
	n := f.nonce(t)

	_, err := f.signIn(t, "app.example", n, n)
	assert.ErrorIs(t, err, ErrAuthUnavailable)
}

func TestSignIn_DeadlineExceeded(t *testing.T) {
	f := newFixture(t)
	f.scanner.block = true
	f.svc = NewAuthService(f.store, f.users, f.scanner, f.upserter, f.tokens, Options{
		Domain:      "app.example",
		FlowTimeout: 50 * time.Millisecond,
		Now:         func() time.Time { return testNow },
	})
	n := f.nonce(t)

	start := time.Now()
	_, err := f.signIn(t, "app.example", n, n)
	assert.ErrorIs(t, err, ErrAuthUnavailable)
	assert.Less(t, time.Since(start), time.Second)
}

func TestNonce_RedisDown(t *testing.T) {
	f := newFixture(t)
	f.mr.Close()

	_, err := f.svc.Nonce(context.Background())
	assert.ErrorIs(t, err, ErrAuthUnavailable)
}

func TestSession(t *testing.T) {
	f := newFixture(t)

	assert.False(t, f.svc.Session("").Authenticated)
	assert.False(t, f.svc.Session("garbage").Authenticated)

	raw, exp, err := f.tokens.Issue("user-1", f.address())
	require.NoError(t, err)
	info := f.svc.Session(raw)
	assert.True(t, info.Authenticated)
	assert.Equal(t, "user-1", info.UserID)
	assert.Equal(t, f.address(), info.Address)
	require.NotNil(t, info.ExpiresAt)
	assert.WithinDuration(t, exp, *info.ExpiresAt, time.Second)
}
