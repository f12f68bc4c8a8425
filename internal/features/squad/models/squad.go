package models

import (
	"time"

	mediamodels "flashsquad-backend/internal/features/media/models"
)

// Squad is the community of one NFT collection.
// @Description Squad derived from an NFT collection
type Squad struct {
	ID              string                `json:"id"`
	NFTCollectionID string                `json:"nft_collection_id"`
	Network         string                `json:"network" example:"ethereum"`
	ContractAddress string                `json:"contract_address" example:"0xbc4ca0eda7647a8ab7c2061c2e118a18a936f13d"`
	DisplayName     string                `json:"display_name" example:"BoredApeYachtClub"`
	Description     string                `json:"description,omitempty"`
	BrandColor      string                `json:"brand_color,omitempty" example:"#1a2b3c"`
	Typeface        string                `json:"typeface,omitempty"`
	SquadImage      *mediamodels.ImageRef `json:"squad_image,omitempty"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
}

// Persona is a user's identity inside a squad, backed by one NFT.
// @Description Persona backed by an NFT
type Persona struct {
	ID           string                `json:"id"`
	NFTID        string                `json:"nft_id"`
	SquadID      string                `json:"squad_id"`
	TokenID      string                `json:"token_id" example:"7"`
	DisplayName  string                `json:"display_name"`
	Bio          string                `json:"bio,omitempty"`
	ImageURL     string                `json:"image_url,omitempty"`
	ProfileImage *mediamodels.ImageRef `json:"profile_image,omitempty"`
	OwnerUserID  string                `json:"owner_user_id,omitempty"`
}

// Membership is a user's relationship to one squad.
// @Description Squad as seen by one member
type Membership struct {
	Squad          Squad    `json:"squad"`
	CurrentPersona *Persona `json:"current_persona,omitempty"`
	IsAdmin        bool     `json:"is_admin"`
	IsHidden       bool     `json:"is_hidden"`
}

// Member is an entry of a squad's member list.
type Member struct {
	UserID         string    `json:"user_id"`
	Name           string    `json:"name"`
	IsAdmin        bool      `json:"is_admin"`
	CurrentPersona *Persona  `json:"current_persona,omitempty"`
	JoinedAt       time.Time `json:"joined_at"`
}

// UpsertRecord is one validated holding ready to be written.
type UpsertRecord struct {
	Network         string
	ContractAddress string
	TokenID         string
	CollectionName  string
	CollectionDesc  string
	CollectionImage string
	BrandColor      string
	NFTName         string
	NFTDescription  string
	PersonaName     string
	ImageURL        string
}

// UpsertBatch is one wallet scan ready to be written. CompleteNetworks names
// the networks the scan covered in full; NFTs stored for the wallet there
// but missing from Records are released.
type UpsertBatch struct {
	Records          []UpsertRecord
	CompleteNetworks []string
}

// SkippedHolding reports a holding that failed validation.
type SkippedHolding struct {
	Index           int    `json:"index"`
	Network         string `json:"network"`
	ContractAddress string `json:"contract_address"`
	TokenID         string `json:"token_id"`
	Reason          string `json:"reason"`
}

// UpsertResult lists the rows a batch touched.
type UpsertResult struct {
	SquadIDs   []string
	PersonaIDs []string
}

// UpsertReport summarizes a holdings upsert.
type UpsertReport struct {
	SquadIDs   []string         `json:"squad_ids"`
	PersonaIDs []string         `json:"persona_ids"`
	Skipped    []SkippedHolding `json:"skipped,omitempty"`
}

type SetPersonaRequest struct {
	PersonaID string `json:"persona_id" binding:"required"`
}

type VisibilityRequest struct {
	Hidden bool `json:"hidden"`
}

type UpdateSquadRequest struct {
	BrandColor   *string `json:"brand_color" example:"#1a2b3c"`
	SquadImageID *string `json:"squad_image_id"`
}

type UpdatePersonaRequest struct {
	Bio            *string `json:"bio"`
	ProfileImageID *string `json:"profile_image_id"`
}

// RefreshResponse acknowledges a queued holdings refresh.
type RefreshResponse struct {
	Queued    bool   `json:"queued"`
	MessageID string `json:"message_id"`
}
