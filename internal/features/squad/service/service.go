package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"flashsquad-backend/internal/common/logger"
	"flashsquad-backend/internal/common/validation"
	"flashsquad-backend/internal/features/holdings"
	"flashsquad-backend/internal/features/squad/models"
	"flashsquad-backend/internal/features/squad/repository"
	userrepo "flashsquad-backend/internal/features/user/repository"
)

var (
	ErrSquadNotFound       = errors.New("squad not found")
	ErrPersonaNotFound     = errors.New("persona not found")
	ErrUserNotFound        = errors.New("user not found")
	ErrImageNotFound       = errors.New("image not found")
	ErrNotMember           = errors.New("not a squad member")
	ErrNotAdmin            = errors.New("squad admin required")
	ErrNotOwner            = errors.New("persona owner required")
	ErrInvalidInput        = errors.New("invalid input")
	ErrUpstreamUnavailable = holdings.ErrUpstreamUnavailable
)

// defaultPerChain matches the indexer's page size when none is configured.
const defaultPerChain = 50

type Options struct {
	// Networks lists the chains a holding may come from.
	Networks []string
	// PerChain is the scan limit per chain. A chain that returns this many
	// holdings may hold more, so its stored ownership is left alone.
	PerChain int
}

type squadService struct {
	repo     repository.SquadRepository
	users    UserLookup
	scanner  HoldingsScanner
	networks map[string]bool
	perChain int
}

func NewSquadService(repo repository.SquadRepository, users UserLookup, scanner HoldingsScanner, opts Options) SquadService {
	known := make(map[string]bool, len(opts.Networks))
	for _, n := range opts.Networks {
		known[strings.ToLower(strings.TrimSpace(n))] = true
	}
	perChain := opts.PerChain
	if perChain <= 0 {
		perChain = defaultPerChain
	}
	return &squadService{
		repo:     repo,
		users:    users,
		scanner:  scanner,
		networks: known,
		perChain: perChain,
	}
}

func (s *squadService) RefreshHoldings(ctx context.Context, userID string) (*models.UpsertReport, error) {
	u, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, userrepo.ErrUserNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	hs, err := s.scanner.Scan(ctx, u.Address, nil)
	if err != nil {
		return nil, err
	}

	report, err := s.UpsertHoldings(ctx, u.ID, u.WalletID, hs)
	if err != nil {
		return nil, err
	}
	logger.Info().
		Str("user_id", u.ID).
		Int("squads", len(report.SquadIDs)).
		Int("personas", len(report.PersonaIDs)).
		Int("skipped", len(report.Skipped)).
		Msg("Holdings refreshed")
	return report, nil
}

func (s *squadService) ListSquads(ctx context.Context, userID string, includeHidden bool) ([]models.Membership, error) {
	out, err := s.repo.ListForUser(ctx, userID, includeHidden)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []models.Membership{}
	}
	return out, nil
}

func (s *squadService) GetSquad(ctx context.Context, userID, squadID string) (*models.Membership, error) {
	return s.membership(ctx, userID, squadID)
}

func (s *squadService) ListMembers(ctx context.Context, userID, squadID string) ([]models.Member, error) {
	if _, err := s.membership(ctx, userID, squadID); err != nil {
		return nil, err
	}
	out, err := s.repo.ListMembers(ctx, squadID)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []models.Member{}
	}
	return out, nil
}

func (s *squadService) ListPersonas(ctx context.Context, userID, squadID string) ([]models.Persona, error) {
	if _, err := s.membership(ctx, userID, squadID); err != nil {
		return nil, err
	}
	out, err := s.repo.ListPersonas(ctx, userID, squadID)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []models.Persona{}
	}
	return out, nil
}

func (s *squadService) SetCurrentPersona(ctx context.Context, userID, squadID, personaID string) (*models.Membership, error) {
	if _, err := s.membership(ctx, userID, squadID); err != nil {
		return nil, err
	}
	p, err := s.persona(ctx, personaID)
	if err != nil {
		return nil, err
	}
	if p.SquadID != squadID {
		return nil, fmt.Errorf("%w: persona belongs to another squad", ErrInvalidInput)
	}
	if p.OwnerUserID != userID {
		return nil, ErrNotOwner
	}

	if err := s.repo.SetCurrentPersona(ctx, userID, squadID, personaID); err != nil {
		return nil, mapRepoError(err)
	}
	return s.membership(ctx, userID, squadID)
}

func (s *squadService) SetHidden(ctx context.Context, userID, squadID string, hidden bool) (*models.Membership, error) {
	if err := s.repo.SetHidden(ctx, userID, squadID, hidden); err != nil {
		return nil, mapRepoError(err)
	}
	return s.membership(ctx, userID, squadID)
}

func (s *squadService) UpdateSquad(ctx context.Context, userID, squadID string, req models.UpdateSquadRequest) (*models.Squad, error) {
	m, err := s.membership(ctx, userID, squadID)
	if err != nil {
		return nil, err
	}
	if !m.IsAdmin {
		return nil, ErrNotAdmin
	}

	if req.BrandColor != nil {
		if err := validation.ValidateBrandColor(*req.BrandColor); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		color := strings.ToLower(*req.BrandColor)
		req.BrandColor = &color
	}

	if err := s.repo.UpdateSquad(ctx, squadID, req); err != nil {
		return nil, mapRepoError(err)
	}
	return s.getSquad(ctx, squadID)
}

func (s *squadService) UpdatePersona(ctx context.Context, userID, personaID string, req models.UpdatePersonaRequest) (*models.Persona, error) {
	p, err := s.persona(ctx, personaID)
	if err != nil {
		return nil, err
	}
	if p.OwnerUserID != userID {
		return nil, ErrNotOwner
	}
	if req.Bio != nil {
		if err := validation.ValidateBio(*req.Bio); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
	}

	if err := s.repo.UpdatePersona(ctx, personaID, req); err != nil {
		return nil, mapRepoError(err)
	}
	return s.persona(ctx, personaID)
}

func (s *squadService) membership(ctx context.Context, userID, squadID string) (*models.Membership, error) {
	m, err := s.repo.GetMembership(ctx, userID, squadID)
	if err == nil {
		return m, nil
	}
	if !errors.Is(err, repository.ErrNotMember) {
		return nil, err
	}
	// Distinguish a missing squad from one the caller is not in.
	if _, err := s.getSquad(ctx, squadID); err != nil {
		return nil, err
	}
	return nil, ErrNotMember
}

func (s *squadService) getSquad(ctx context.Context, squadID string) (*models.Squad, error) {
	sq, err := s.repo.GetSquad(ctx, squadID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return sq, nil
}

func (s *squadService) persona(ctx context.Context, personaID string) (*models.Persona, error) {
	p, err := s.repo.GetPersona(ctx, personaID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return p, nil
}

func mapRepoError(err error) error {
	switch {
	case errors.Is(err, repository.ErrSquadNotFound):
		return ErrSquadNotFound
	case errors.Is(err, repository.ErrPersonaNotFound):
		return ErrPersonaNotFound
	case errors.Is(err, repository.ErrNotMember):
		return ErrNotMember
	case errors.Is(err, repository.ErrImageNotFound):
		return ErrImageNotFound
	}
	return err
}
