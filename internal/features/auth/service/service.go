package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"flashsquad-backend/internal/common/logger"
	"flashsquad-backend/internal/features/auth/models"
	"flashsquad-backend/internal/features/auth/nonce"
	"flashsquad-backend/internal/features/auth/siwe"
	"flashsquad-backend/internal/features/auth/token"
	"flashsquad-backend/internal/features/holdings"
	squadmodels "flashsquad-backend/internal/features/squad/models"
	usermodels "flashsquad-backend/internal/features/user/models"
)

var (
	ErrInvalidMessage   = siwe.ErrInvalidMessage
	ErrDomainMismatch   = siwe.ErrDomainMismatch
	ErrNonceExpired     = siwe.ErrNonceExpired
	ErrInvalidSignature = siwe.ErrInvalidSignature
	// ErrAuthUnavailable means an upstream failed or the flow ran out of time.
	ErrAuthUnavailable = errors.New("sign-in unavailable")
)

// Sign-in steps, in order.
const (
	StepVerifying   = "verifying"
	StepReconciling = "reconciling"
	StepScanning    = "scanning"
	StepUpserting   = "upserting"
	StepIssuing     = "issuing"
)

type NonceStore interface {
	Issue(ctx context.Context) (string, error)
	Consume(ctx context.Context, n string) error
	TTL() time.Duration
}

type UserReconciler interface {
	Reconcile(ctx context.Context, address string) (*usermodels.User, error)
}

type HoldingsScanner interface {
	Scan(ctx context.Context, address string, limits map[string]int) ([]holdings.Holding, error)
}

type HoldingsUpserter interface {
	UpsertHoldings(ctx context.Context, userID, walletID string, hs []holdings.Holding) (*squadmodels.UpsertReport, error)
}

type TokenIssuer interface {
	Issue(userID, wallet string) (string, time.Time, error)
	Validate(raw string) (*token.Claims, error)
}

// VerifyFunc checks a signed sign-in message, see siwe.Verify.
type VerifyFunc func(message, signature, expectedDomain, expectedNonce string, now time.Time) (common.Address, *siwe.Message, error)

type AuthService interface {
	Nonce(ctx context.Context) (*models.NonceResponse, error)
	// SignIn runs verify, reconcile, scan, upsert and issue under one
	// deadline. issuedNonce is the nonce handed to this client, if known.
	SignIn(ctx context.Context, req models.SignInRequest, issuedNonce string) (*models.Session, error)
	Session(raw string) *models.SessionInfo
}

type Options struct {
	Domain      string
	FlowTimeout time.Duration
	Verify      VerifyFunc
	Now         func() time.Time
}

type authService struct {
	nonces   NonceStore
	users    UserReconciler
	scanner  HoldingsScanner
	upserter HoldingsUpserter
	tokens   TokenIssuer

	domain      string
	flowTimeout time.Duration
	verify      VerifyFunc
	now         func() time.Time
}

func NewAuthService(nonces NonceStore, users UserReconciler, scanner HoldingsScanner, upserter HoldingsUpserter, tokens TokenIssuer, opts Options) AuthService {
	if opts.Verify == nil {
		opts.Verify = siwe.Verify
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &authService{
		nonces:      nonces,
		users:       users,
		scanner:     scanner,
		upserter:    upserter,
		tokens:      tokens,
		domain:      opts.Domain,
		flowTimeout: opts.FlowTimeout,
		verify:      opts.Verify,
		now:         opts.Now,
	}
}

func (s *authService) Nonce(ctx context.Context) (*models.NonceResponse, error) {
	n, err := s.nonces.Issue(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthUnavailable, err)
	}
	return &models.NonceResponse{Nonce: n, ExpiresAt: s.now().Add(s.nonces.TTL())}, nil
}

func (s *authService) SignIn(ctx context.Context, req models.SignInRequest, issuedNonce string) (*models.Session, error) {
	if s.flowTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.flowTimeout)
		defer cancel()
	}

	address, err := s.verifyMessage(ctx, req, issuedNonce)
	if err != nil {
		return nil, err
	}

	u, err := s.users.Reconcile(ctx, address)
	if err != nil {
		return nil, s.unavailable(ctx, address, StepReconciling, err)
	}

	hs, err := s.scanner.Scan(ctx, address, nil)
	if err != nil {
		return nil, s.unavailable(ctx, address, StepScanning, err)
	}

	report, err := s.upserter.UpsertHoldings(ctx, u.ID, u.WalletID, hs)
	if err != nil {
		return nil, s.unavailable(ctx, address, StepUpserting, err)
	}
	log := logger.Step(address, StepUpserting)
	log.Debug().
		Int("holdings", len(hs)).
		Int("squads", len(report.SquadIDs)).
		Int("skipped", len(report.Skipped)).
		Msg("Holdings upserted")

	tok, expiresAt, err := s.tokens.Issue(u.ID, address)
	if err != nil {
		return nil, s.unavailable(ctx, address, StepIssuing, err)
	}

	log = logger.Step(address, StepIssuing)
	log.Info().Str("user_id", u.ID).Msg("Signed in")
	return &models.Session{
		Token:     tok,
		ExpiresAt: expiresAt,
		Address:   address,
		User:      usermodels.ToUserResponse(u),
		Holdings:  report,
	}, nil
}

// verifyMessage burns the nonce before checking the signature, so a nonce
// is spent by any attempt that reaches this point.
func (s *authService) verifyMessage(ctx context.Context, req models.SignInRequest, issuedNonce string) (string, error) {
	msg, err := siwe.Parse(req.Message)
	if err != nil {
		logger.Warn().Err(err).Str("step", StepVerifying).Msg("Rejected sign-in message")
		return "", err
	}
	log := logger.Step(msg.Address, StepVerifying)

	// The nonce must come from this browser's cookie, never from the message.
	if issuedNonce == "" {
		log.Warn().Msg("No nonce cookie on sign-in")
		return "", fmt.Errorf("%w: no nonce issued to this session", ErrNonceExpired)
	}
	expected := issuedNonce
	if err := s.nonces.Consume(ctx, expected); err != nil {
		if errors.Is(err, nonce.ErrNotFound) {
			log.Warn().Msg("Nonce unknown, used or expired")
			return "", fmt.Errorf("%w: nonce not live", ErrNonceExpired)
		}
		return "", s.unavailable(ctx, msg.Address, StepVerifying, err)
	}

	signer, _, err := s.verify(req.Message, req.Signature, s.domain, expected, s.now())
	if err != nil {
		log.Warn().Err(err).Msg("Sign-in verification failed")
		return "", err
	}
	return signer.Hex(), nil
}

func (s *authService) unavailable(ctx context.Context, address, step string, err error) error {
	log := logger.Step(address, step)
	event := log.Error().Err(err)
	if ctx.Err() != nil {
		event = event.Bool("deadline_exceeded", errors.Is(ctx.Err(), context.DeadlineExceeded))
	}
	event.Msg("Sign-in step failed")
	return fmt.Errorf("%w: %s: %v", ErrAuthUnavailable, step, err)
}

func (s *authService) Session(raw string) *models.SessionInfo {
	if raw == "" {
		return &models.SessionInfo{}
	}
	claims, err := s.tokens.Validate(raw)
	if err != nil {
		return &models.SessionInfo{}
	}
	info := &models.SessionInfo{
		Authenticated: true,
		UserID:        claims.UserID(),
		Address:       claims.Subject,
	}
	if claims.ExpiresAt != nil {
		exp := claims.ExpiresAt.Time
		info.ExpiresAt = &exp
	}
	return info
}
