package service

import (
	"context"

	"flashsquad-backend/internal/features/holdings"
	"flashsquad-backend/internal/features/squad/models"
	usermodels "flashsquad-backend/internal/features/user/models"
)

type SquadService interface {
	// UpsertHoldings turns a wallet's holdings into squads and personas
	// owned by userID. Malformed holdings are skipped and reported.
	UpsertHoldings(ctx context.Context, userID, walletID string, hs []holdings.Holding) (*models.UpsertReport, error)
	// RefreshHoldings rescans a user's wallet and upserts the result.
	RefreshHoldings(ctx context.Context, userID string) (*models.UpsertReport, error)

	ListSquads(ctx context.Context, userID string, includeHidden bool) ([]models.Membership, error)
	GetSquad(ctx context.Context, userID, squadID string) (*models.Membership, error)
	ListMembers(ctx context.Context, userID, squadID string) ([]models.Member, error)
	ListPersonas(ctx context.Context, userID, squadID string) ([]models.Persona, error)

	SetCurrentPersona(ctx context.Context, userID, squadID, personaID string) (*models.Membership, error)
	SetHidden(ctx context.Context, userID, squadID string, hidden bool) (*models.Membership, error)
	UpdateSquad(ctx context.Context, userID, squadID string, req models.UpdateSquadRequest) (*models.Squad, error)
	UpdatePersona(ctx context.Context, userID, personaID string, req models.UpdatePersonaRequest) (*models.Persona, error)
}

// HoldingsScanner lists the NFTs a wallet holds.
type HoldingsScanner interface {
	Scan(ctx context.Context, address string, limits map[string]int) ([]holdings.Holding, error)
}

// UserLookup resolves the wallet behind a user.
type UserLookup interface {
	GetByID(ctx context.Context, id string) (*usermodels.User, error)
}
