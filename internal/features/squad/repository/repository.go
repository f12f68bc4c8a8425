package repository

import (
	"context"
	"errors"

	"flashsquad-backend/internal/features/squad/models"
)

var (
	ErrSquadNotFound   = errors.New("squad not found")
	ErrPersonaNotFound = errors.New("persona not found")
	ErrNotMember       = errors.New("not a squad member")
	ErrImageNotFound   = errors.New("image not found")
)

type SquadRepository interface {
	// UpsertHoldings writes every record in one transaction, then brings the
	// user's memberships back in line with what the wallet holds.
	UpsertHoldings(ctx context.Context, userID, walletID string, batch models.UpsertBatch) (*models.UpsertResult, error)

	ListForUser(ctx context.Context, userID string, includeHidden bool) ([]models.Membership, error)
	GetSquad(ctx context.Context, squadID string) (*models.Squad, error)
	GetMembership(ctx context.Context, userID, squadID string) (*models.Membership, error)
	ListMembers(ctx context.Context, squadID string) ([]models.Member, error)

	GetPersona(ctx context.Context, personaID string) (*models.Persona, error)
	ListPersonas(ctx context.Context, userID, squadID string) ([]models.Persona, error)

	SetCurrentPersona(ctx context.Context, userID, squadID, personaID string) error
	SetHidden(ctx context.Context, userID, squadID string, hidden bool) error
	UpdateSquad(ctx context.Context, squadID string, req models.UpdateSquadRequest) error
	UpdatePersona(ctx context.Context, personaID string, req models.UpdatePersonaRequest) error
}
