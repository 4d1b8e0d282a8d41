package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PostStatus tracks where a post is in the publishing flow.
type PostStatus string

const (
	PostDraft  PostStatus = "draft"
	PostCopied PostStatus = "copied"
	PostPosted PostStatus = "posted"
)

// Valid reports whether s is a known status.
func (s PostStatus) Valid() bool {
	return s == PostDraft || s == PostCopied || s == PostPosted
}

// SourceType records what a post was generated from.
type SourceType string

const (
	SourceAIResearch SourceType = "ai_research"
	SourceInstagram  SourceType = "instagram"
)

// ImageSource records how a post image was produced.
type ImageSource string

const (
	ImageGenerated ImageSource = "generated"
	ImageRendered  ImageSource = "rendered"
	ImageUploaded  ImageSource = "uploaded"
)

// Post is a persisted generation artifact.
type Post struct {
	ID          int64             `json:"id" db:"id"`
	Content     string            `json:"content" db:"content"`
	ImageURL    string            `json:"image_url,omitempty" db:"image_url"`
	ImageSource ImageSource       `json:"image_source,omitempty" db:"image_source"`
	Status      PostStatus        `json:"status" db:"status"`
	SourceType  SourceType        `json:"source_type" db:"source_type"`
	SourceData  map[string]string `json:"source_data,omitempty" db:"-"`
	JobID       string            `json:"job_id,omitempty" db:"job_id"`
	AICost      decimal.Decimal   `json:"ai_cost" db:"-"`
	CreatedAt   time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at" db:"updated_at"`
}

// ArtifactMeta describes a new artifact at creation time.
type ArtifactMeta struct {
	SourceType  SourceType
	SourceData  map[string]string
	ImageURL    string
	ImageSource ImageSource
	JobID       string
	AICost      decimal.Decimal
}

// ArtifactUpdate lists mutable artifact fields. Nil fields are left as is.
type ArtifactUpdate struct {
	Content     *string
	ImageURL    *string
	ImageSource *ImageSource
	Status      *PostStatus
	AICost      *decimal.Decimal
}
