package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"flashsquad-backend/internal/common/cache"
	"flashsquad-backend/internal/common/logger"
	"flashsquad-backend/internal/common/validation"
	"flashsquad-backend/internal/features/post/models"
	"flashsquad-backend/internal/features/post/repository"
	squadmodels "flashsquad-backend/internal/features/squad/models"
	squadrepo "flashsquad-backend/internal/features/squad/repository"
)

var (
	ErrPostNotFound    = errors.New("post not found")
	ErrCommentNotFound = errors.New("comment not found")
	ErrSquadNotFound   = errors.New("squad not found")
	ErrImageNotFound   = errors.New("image not found")
	ErrNotMember       = errors.New("not a squad member")
	ErrNoPersona       = errors.New("no current persona in squad")
	ErrNotAuthor       = errors.New("author required")
	ErrInvalidInput    = errors.New("invalid input")
)

const (
	DefaultFeedLimit = 20
	MaxFeedLimit     = 100
)

type postService struct {
	repo    repository.PostRepository
	squads  SquadAccess
	cache   *cache.CacheService
	feedTTL time.Duration
}

// NewPostService builds the feed service. The first feed page of each squad
// is cached for feedTTL; a nil cache disables caching.
func NewPostService(repo repository.PostRepository, squads SquadAccess, c *cache.CacheService, feedTTL time.Duration) PostService {
	return &postService{
		repo:    repo,
		squads:  squads,
		cache:   c,
		feedTTL: feedTTL,
	}
}

func (s *postService) CreatePost(ctx context.Context, userID, squadID string, req models.CreatePostRequest) (*models.Post, error) {
	imageIDs, err := normalizeImageIDs(req.ImageIDs)
	if err != nil {
		return nil, err
	}
	if err := validation.ValidatePostBody(req.Body, len(imageIDs) > 0); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	personaID, err := s.actingPersona(ctx, userID, squadID)
	if err != nil {
		return nil, err
	}

	postID, err := s.repo.CreatePost(ctx, squadID, personaID, strings.TrimSpace(req.Body), imageIDs)
	if err != nil {
		return nil, mapRepoError(err)
	}
	s.invalidate(ctx, squadID)

	logger.Info().
		Str("squad_id", squadID).
		Str("post_id", postID).
		Str("persona_id", personaID).
		Int("images", len(imageIDs)).
		Msg("Post created")
	return s.post(ctx, postID)
}

func normalizeImageIDs(ids []string) ([]string, error) {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		parsed, err := uuid.Parse(strings.TrimSpace(id))
		if err != nil {
			return nil, fmt.Errorf("%w: image id %q is not a UUID", ErrInvalidInput, id)
		}
		key := parsed.String()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, key)
	}
	if len(out) > validation.MaxImagesPerPost {
		return nil, fmt.Errorf("%w: at most %d images per post", ErrInvalidInput, validation.MaxImagesPerPost)
	}
	return out, nil
}

func (s *postService) GetPost(ctx context.Context, userID, postID string) (*models.Post, error) {
	p, err := s.post(ctx, postID)
	if err != nil {
		return nil, err
	}
	if err := s.membership(ctx, userID, p.SquadID); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *postService) Feed(ctx context.Context, userID, squadID string, limit, offset int) (*models.FeedPage, error) {
	if err := s.membership(ctx, userID, squadID); err != nil {
		return nil, err
	}
	limit = validation.ClampLimit(limit, DefaultFeedLimit, MaxFeedLimit)
	if offset < 0 {
		offset = 0
	}

	var (
		posts []models.Post
		err   error
	)
	if offset == 0 && limit == DefaultFeedLimit && s.cache != nil {
		posts, err = s.cachedFeed(ctx, squadID)
	} else {
		posts, err = s.repo.ListFeed(ctx, squadID, limit, offset)
	}
	if err != nil {
		return nil, err
	}
	if posts == nil {
		posts = []models.Post{}
	}
	return &models.FeedPage{Posts: posts, Limit: limit, Offset: offset}, nil
}

// cachedFeed serves the default first page through Redis and falls back to
// the database when Redis is unavailable.
func (s *postService) cachedFeed(ctx context.Context, squadID string) ([]models.Post, error) {
	var (
		posts   []models.Post
		loaded  []models.Post
		loadErr error
	)
	err := s.cache.GetOrSet(ctx, cache.SquadFeedKey(squadID), &posts, s.feedTTL, func() (interface{}, error) {
		loaded, loadErr = s.repo.ListFeed(ctx, squadID, DefaultFeedLimit, 0)
		return loaded, loadErr
	})
	if err == nil {
		return posts, nil
	}
	if loadErr != nil {
		return nil, loadErr
	}

	logger.Warn().Err(err).Str("squad_id", squadID).Msg("Feed cache unavailable")
	if loaded != nil {
		return loaded, nil
	}
	return s.repo.ListFeed(ctx, squadID, DefaultFeedLimit, 0)
}

func (s *postService) invalidate(ctx context.Context, squadID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, cache.SquadFeedKey(squadID)); err != nil {
		logger.Warn().Err(err).Str("squad_id", squadID).Msg("Failed to invalidate feed cache")
	}
}

func (s *postService) DeletePost(ctx context.Context, userID, postID string) error {
	p, err := s.post(ctx, postID)
	if err != nil {
		return err
	}
	if p.Author.OwnerUserID != userID {
		return ErrNotAuthor
	}
	if err := s.repo.DeletePost(ctx, postID); err != nil {
		return mapRepoError(err)
	}
	s.invalidate(ctx, p.SquadID)
	return nil
}

func (s *postService) CreateComment(ctx context.Context, userID, postID string, req models.CreateCommentRequest) (*models.Comment, error) {
	if err := validation.ValidateComment(req.Body); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	p, err := s.post(ctx, postID)
	if err != nil {
		return nil, err
	}
	personaID, err := s.actingPersona(ctx, userID, p.SquadID)
	if err != nil {
		return nil, err
	}

	commentID, err := s.repo.CreateComment(ctx, postID, personaID, strings.TrimSpace(req.Body))
	if err != nil {
		return nil, mapRepoError(err)
	}
	s.invalidate(ctx, p.SquadID)

	c, err := s.repo.GetComment(ctx, commentID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return c, nil
}

func (s *postService) ListComments(ctx context.Context, userID, postID string) ([]models.Comment, error) {
	p, err := s.post(ctx, postID)
	if err != nil {
		return nil, err
	}
	if err := s.membership(ctx, userID, p.SquadID); err != nil {
		return nil, err
	}
	out, err := s.repo.ListComments(ctx, postID)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []models.Comment{}
	}
	return out, nil
}

func (s *postService) DeleteComment(ctx context.Context, userID, commentID string) error {
	c, err := s.repo.GetComment(ctx, commentID)
	if err != nil {
		return mapRepoError(err)
	}
	if c.Author.OwnerUserID != userID {
		return ErrNotAuthor
	}
	if err := s.repo.DeleteComment(ctx, commentID); err != nil {
		return mapRepoError(err)
	}
	s.invalidate(ctx, c.SquadID)
	return nil
}

func (s *postService) AddReaction(ctx context.Context, userID, postID, reaction string) ([]models.ReactionCount, error) {
	reaction = strings.TrimSpace(reaction)
	if err := validation.ValidateReaction(reaction); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	p, err := s.post(ctx, postID)
	if err != nil {
		return nil, err
	}
	personaID, err := s.actingPersona(ctx, userID, p.SquadID)
	if err != nil {
		return nil, err
	}

	added, err := s.repo.AddReaction(ctx, postID, personaID, reaction)
	if err != nil {
		return nil, mapRepoError(err)
	}
	if added {
		s.invalidate(ctx, p.SquadID)
	}
	return s.repo.ReactionSummary(ctx, postID)
}

// RemoveReaction removes the reaction left by the caller's current persona.
func (s *postService) RemoveReaction(ctx context.Context, userID, postID, reaction string) ([]models.ReactionCount, error) {
	reaction = strings.TrimSpace(reaction)
	if err := validation.ValidateReaction(reaction); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	p, err := s.post(ctx, postID)
	if err != nil {
		return nil, err
	}
	personaID, err := s.actingPersona(ctx, userID, p.SquadID)
	if err != nil {
		return nil, err
	}

	if err := s.repo.RemoveReaction(ctx, postID, personaID, reaction); err != nil {
		return nil, err
	}
	s.invalidate(ctx, p.SquadID)
	return s.repo.ReactionSummary(ctx, postID)
}

func (s *postService) post(ctx context.Context, postID string) (*models.Post, error) {
	p, err := s.repo.GetPost(ctx, postID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return p, nil
}

func (s *postService) membership(ctx context.Context, userID, squadID string) error {
	_, err := s.getMembership(ctx, userID, squadID)
	return err
}

func (s *postService) getMembership(ctx context.Context, userID, squadID string) (*squadmodels.Membership, error) {
	m, err := s.squads.GetMembership(ctx, userID, squadID)
	if err == nil {
		return m, nil
	}
	if !errors.Is(err, squadrepo.ErrNotMember) {
		return nil, err
	}
	if _, err := s.squads.GetSquad(ctx, squadID); err != nil {
		if errors.Is(err, squadrepo.ErrSquadNotFound) {
			return nil, ErrSquadNotFound
		}
		return nil, err
	}
	return nil, ErrNotMember
}

// actingPersona returns the caller's current persona in the squad, provided
// the caller still holds its NFT.
func (s *postService) actingPersona(ctx context.Context, userID, squadID string) (string, error) {
	m, err := s.getMembership(ctx, userID, squadID)
	if err != nil {
		return "", err
	}
	if m.CurrentPersona == nil {
		return "", ErrNoPersona
	}

	p, err := s.squads.GetPersona(ctx, m.CurrentPersona.ID)
	if errors.Is(err, squadrepo.ErrPersonaNotFound) {
		return "", ErrNoPersona
	}
	if err != nil {
		return "", err
	}
	if p.OwnerUserID != userID || p.SquadID != squadID {
		return "", ErrNoPersona
	}
	return p.ID, nil
}

func mapRepoError(err error) error {
	switch {
	case errors.Is(err, repository.ErrPostNotFound):
		return ErrPostNotFound
	case errors.Is(err, repository.ErrCommentNotFound):
		return ErrCommentNotFound
	case errors.Is(err, repository.ErrImageNotFound):
		return ErrImageNotFound
	default:
		return err
	}
}
