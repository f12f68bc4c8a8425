package models

import "time"

// Image is an uploaded or externally hosted picture.
// @Description Image reference
type Image struct {
	ID          string    `json:"id" example:"5f0c7a3e-1b2d-4c55-9a0e-2f8d6c1e9b11"`
	URL         string    `json:"url" example:"https://cdn.example/uploads/a.png"`
	AltText     string    `json:"alt_text,omitempty" example:"Token #7"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ImageRef is the short form embedded in other resources.
type ImageRef struct {
	ID      string `json:"id"`
	URL     string `json:"url"`
	AltText string `json:"alt_text,omitempty"`
}

// CreateImageRequest registers an already uploaded URL.
type CreateImageRequest struct {
	URL         string `json:"url" binding:"required" example:"https://cdn.example/uploads/a.png"`
	AltText     string `json:"alt_text" example:"My avatar"`
	Description string `json:"description"`
}

// UploadRequest asks for a presigned upload URL.
type UploadRequest struct {
	FileName    string `json:"file_name" binding:"required" example:"avatar.png"`
	ContentType string `json:"content_type" binding:"required" example:"image/png"`
}

// Assembly is the state of a transcoding job as seen by the client.
type Assembly struct {
	ID        string    `json:"id"`
	Status    string    `json:"status" enums:"completed,failed"`
	ImageID   string    `json:"image_id,omitempty"`
	URL       string    `json:"url,omitempty"`
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

const (
	AssemblyCompleted = "completed"
	AssemblyFailed    = "failed"
)
