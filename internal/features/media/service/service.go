package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"flashsquad-backend/internal/common/cache"
	"flashsquad-backend/internal/common/logger"
	"flashsquad-backend/internal/common/validation"
	"flashsquad-backend/internal/features/media/models"
	"flashsquad-backend/internal/features/media/repository"
	"flashsquad-backend/internal/platform/storage"
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidSignature  = errors.New("invalid webhook signature")
	ErrAssemblyNotFound  = errors.New("assembly not found")
	ErrStorageFailed     = errors.New("storage unavailable")
	ErrAssemblyCacheDown = errors.New("assembly cache unavailable")
)

const (
	assemblyCompleted = "ASSEMBLY_COMPLETED"
	compressStep      = "compress_image"
)

var allowedContentTypes = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

type MediaService interface {
	CreateUpload(ctx context.Context, userID string, req models.UploadRequest) (*storage.Upload, error)
	CreateImage(ctx context.Context, req models.CreateImageRequest) (*models.Image, error)
	// HandleTranscodeNotification verifies and records a transcoding
	// completion callback. payload is the raw "transloadit" form field.
	HandleTranscodeNotification(ctx context.Context, payload, signature string) (*models.Assembly, error)
	GetAssembly(ctx context.Context, id string) (*models.Assembly, error)
}

// Presigner signs direct uploads to object storage.
type Presigner interface {
	PresignUpload(ctx context.Context, key, contentType string) (*storage.Upload, error)
}

type Options struct {
	TranscoderSecret string
	AssemblyTTL      time.Duration
}

type mediaService struct {
	repo        repository.ImageRepository
	presigner   Presigner
	cache       *cache.CacheService
	secret      string
	assemblyTTL time.Duration
	now         func() time.Time
}

func NewMediaService(repo repository.ImageRepository, presigner Presigner, c *cache.CacheService, opts Options) MediaService {
	if opts.AssemblyTTL <= 0 {
		opts.AssemblyTTL = time.Hour
	}
	return &mediaService{
		repo:        repo,
		presigner:   presigner,
		cache:       c,
		secret:      opts.TranscoderSecret,
		assemblyTTL: opts.AssemblyTTL,
		now:         time.Now,
	}
}

func (s *mediaService) CreateUpload(ctx context.Context, userID string, req models.UploadRequest) (*storage.Upload, error) {
	contentType := strings.ToLower(strings.TrimSpace(req.ContentType))
	ext, ok := allowedContentTypes[contentType]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported content type %q", ErrInvalidInput, req.ContentType)
	}

	key := path.Join("uploads", userID, uuid.NewString()+ext)
	up, err := s.presigner.PresignUpload(ctx, key, contentType)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageFailed, err)
	}
	logger.Debug().Str("user_id", userID).Str("file_name", req.FileName).Str("key", key).Msg("Upload presigned")
	return up, nil
}

func (s *mediaService) CreateImage(ctx context.Context, req models.CreateImageRequest) (*models.Image, error) {
	if err := validation.ValidateImageURL(req.URL); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := validation.ValidateAltText(req.AltText); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return s.repo.Create(ctx, req.URL, strings.TrimSpace(req.AltText), req.Description)
}

type notification struct {
	AssemblyID string `json:"assembly_id"`
	OK         string `json:"ok"`
	Error      string `json:"error"`
	Message    string `json:"message"`
	Fields     struct {
		AltText string `json:"alt_text"`
	} `json:"fields"`
	Results map[string][]struct {
		SSLURL string `json:"ssl_url"`
		URL    string `json:"url"`
		Name   string `json:"name"`
	} `json:"results"`
}

func (s *mediaService) HandleTranscodeNotification(ctx context.Context, payload, signature string) (*models.Assembly, error) {
	if !s.validSignature(payload, signature) {
		return nil, ErrInvalidSignature
	}

	var n notification
	if err := json.Unmarshal([]byte(payload), &n); err != nil {
		return nil, fmt.Errorf("%w: malformed notification: %v", ErrInvalidInput, err)
	}
	if n.AssemblyID == "" {
		return nil, fmt.Errorf("%w: assembly_id is required", ErrInvalidInput)
	}

	a := &models.Assembly{ID: n.AssemblyID, Status: models.AssemblyFailed, UpdatedAt: s.now().UTC()}
	switch {
	case n.Error != "":
		a.Error = n.Error
	case n.OK != assemblyCompleted:
		a.Error = "unexpected status " + n.OK
	case len(n.Results[compressStep]) == 0:
		a.Error = "no " + compressStep + " result"
	default:
		result := n.Results[compressStep][0]
		url := result.SSLURL
		if url == "" {
			url = result.URL
		}
		img, err := s.repo.Create(ctx, url, n.Fields.AltText, result.Name)
		if err != nil {
			return nil, err
		}
		a.Status = models.AssemblyCompleted
		a.ImageID = img.ID
		a.URL = img.URL
	}

	if err := s.cache.Set(ctx, cache.AssemblyKey(a.ID), a, s.assemblyTTL); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAssemblyCacheDown, err)
	}
	logger.Info().
		Str("assembly_id", a.ID).
		Str("status", a.Status).
		Str("image_id", a.ImageID).
		Msg("Transcode notification recorded")
	return a, nil
}

// validSignature accepts a bare hex HMAC-SHA1 or a "sha384:"-prefixed one.
func (s *mediaService) validSignature(payload, signature string) bool {
	if s.secret == "" || signature == "" {
		return false
	}
	newHash := sha1.New
	if algo, sig, ok := strings.Cut(signature, ":"); ok {
		if algo != "sha384" {
			return false
		}
		newHash, signature = sha512.New384, sig
	}

	got, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(newHash, []byte(s.secret))
	mac.Write([]byte(payload))
	return hmac.Equal(got, mac.Sum(nil))
}

func (s *mediaService) GetAssembly(ctx context.Context, id string) (*models.Assembly, error) {
	var a models.Assembly
	err := s.cache.Get(ctx, cache.AssemblyKey(id), &a)
	if errors.Is(err, cache.ErrMiss) {
		return nil, ErrAssemblyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAssemblyCacheDown, err)
	}
	return &a, nil
}
