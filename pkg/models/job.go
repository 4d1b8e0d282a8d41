package models

// JobKind identifies a job pipeline.
type JobKind string

const (
	JobTextGeneration JobKind = "text_generation"
	JobReelAnalysis   JobKind = "reel_analysis"
	JobInfographic    JobKind = "infographic"
	JobImprove        JobKind = "improve"
	JobPostAnalysis   JobKind = "post_analysis"
	JobVideoUpload    JobKind = "video_upload"
)

// GenerateRequest asks for a LinkedIn post about a topic.
type GenerateRequest struct {
	Topic   string `json:"topic" binding:"required"`
	Context string `json:"context,omitempty"`
}

// ReelRequest asks for a post derived from an Instagram reel. At least one
// of URL and Description must be set.
type ReelRequest struct {
	URL         string `json:"url,omitempty"`
	Description string `json:"description,omitempty"`
}

// InfographicRequest asks for an infographic for post content. When PostID
// is set the image is attached to that post.
type InfographicRequest struct {
	Content string `json:"content" binding:"required"`
	Title   string `json:"title,omitempty"`
	PostID  int64  `json:"postId,omitempty"`
}

// ImproveRequest asks for a revision of a post that addresses feedback.
// When PostID is set the stored post is updated, and Content may be left
// empty to revise the stored text.
type ImproveRequest struct {
	Content  string   `json:"originalPost,omitempty"`
	Feedback []string `json:"feedbackPoints"`
	PostID   int64    `json:"postId,omitempty"`
}

// AnalyzeRequest asks for a quality score of post content, given inline
// or by stored post.
type AnalyzeRequest struct {
	Content string `json:"post,omitempty"`
	PostID  int64  `json:"postId,omitempty"`
}

// UploadRequest is a video file already written to disk by the caller.
type UploadRequest struct {
	Path        string `json:"-"`
	FileName    string `json:"fileName"`
	Description string `json:"description,omitempty"`
}

// PostAnalysis scores a post on fixed criteria from 0 to 10.
type PostAnalysis struct {
	Scores       map[string]float64 `json:"scores"`
	OverallScore float64            `json:"overallScore"`
	Suggestions  []string           `json:"suggestions"`
}
