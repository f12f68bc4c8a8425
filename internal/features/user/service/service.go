package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"flashsquad-backend/internal/common/cache"
	"flashsquad-backend/internal/common/logger"
	"flashsquad-backend/internal/common/validation"
	"flashsquad-backend/internal/features/user/models"
	"flashsquad-backend/internal/features/user/repository"
)

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrImageNotFound = errors.New("image not found")
	ErrInvalidInput  = errors.New("invalid input")
)

type userService struct {
	repo          repository.UserRepository
	ens           ENSResolver
	avatarBaseURL string
}

func NewUserService(repo repository.UserRepository, ens ENSResolver, avatarBaseURL string) UserService {
	return &userService{
		repo:          repo,
		ens:           ens,
		avatarBaseURL: strings.TrimRight(avatarBaseURL, "/"),
	}
}

func (s *userService) Reconcile(ctx context.Context, address string) (*models.User, error) {
	log := logger.Step(address, "reconciling")

	in := models.UpsertInput{
		Address: validation.NormalizeAddress(address),
		Name:    address,
	}

	name, err := s.ens.ENSName(ctx, address)
	switch {
	case err != nil:
		log.Warn().Err(err).Msg("ENS lookup failed, keeping stored identity")
	default:
		in.ENSKnown = true
		in.ENSName = name
		if name != "" {
			in.Name = name
			in.AvatarURL = s.avatarURL(name)
		}
	}

	u, err := s.repo.UpsertByWallet(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("upsert user: %w", err)
	}
	log.Debug().Str("user_id", u.ID).Str("ens_name", in.ENSName).Msg("User reconciled")
	return u, nil
}

func (s *userService) avatarURL(ensName string) string {
	if s.avatarBaseURL == "" {
		return ""
	}
	return s.avatarBaseURL + "/" + url.PathEscape(ensName)
}

func (s *userService) GetUser(ctx context.Context, id string) (*models.UserResponse, error) {
	u, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return models.ToUserResponse(u), nil
}

func (s *userService) UpdateUser(ctx context.Context, id string, req models.UpdateUserRequest) (*models.UserResponse, error) {
	if req.Name != nil {
		if err := validation.ValidateDisplayName(*req.Name); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		trimmed := strings.TrimSpace(*req.Name)
		req.Name = &trimmed
	}
	if req.Bio != nil {
		if err := validation.ValidateBio(*req.Bio); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
	}

	u, err := s.repo.Update(ctx, id, req)
	switch {
	case errors.Is(err, repository.ErrUserNotFound):
		return nil, ErrUserNotFound
	case errors.Is(err, repository.ErrImageNotFound):
		return nil, ErrImageNotFound
	case err != nil:
		return nil, err
	}
	return models.ToUserResponse(u), nil
}

// cachedENSResolver memoizes ENS lookups, including "no name" answers.
type cachedENSResolver struct {
	next  ENSResolver
	cache *cache.CacheService
	ttl   time.Duration
}

func NewCachedENSResolver(next ENSResolver, c *cache.CacheService, ttl time.Duration) ENSResolver {
	return &cachedENSResolver{next: next, cache: c, ttl: ttl}
}

func (r *cachedENSResolver) ENSName(ctx context.Context, address string) (string, error) {
	key := cache.ENSKey(validation.NormalizeAddress(address))

	var name string
	err := r.cache.Get(ctx, key, &name)
	if err == nil {
		return name, nil
	}
	if !errors.Is(err, cache.ErrMiss) {
		logger.Warn().Err(err).Msg("ENS cache read failed")
	}

	name, err = r.next.ENSName(ctx, address)
	if err != nil {
		return "", err
	}
	if err := r.cache.Set(ctx, key, name, r.ttl); err != nil {
		logger.Warn().Err(err).Msg("ENS cache write failed")
	}
	return name, nil
}
