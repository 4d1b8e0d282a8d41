package server

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/postwright/postwright/pkg/errors"
	"github.com/postwright/postwright/pkg/models"
)

const maxListLimit = 500

// monthWindow resolves the optional ?month=YYYY-MM parameter to a UTC
// [start, end) window. It defaults to the current month.
func monthWindow(c *gin.Context, now time.Time) (time.Time, time.Time, error) {
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	if m := c.Query("month"); m != "" {
		t, err := time.Parse("2006-01", m)
		if err != nil {
			return time.Time{}, time.Time{}, errors.NewValidationError("month", "expected YYYY-MM")
		}
		start = t
	}
	return start, start.AddDate(0, 1, 0), nil
}

func queryLimit(c *gin.Context, def int) (int, error) {
	raw := c.Query("limit")
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, errors.NewValidationError("limit", "must be a positive integer")
	}
	if n > maxListLimit {
		n = maxListLimit
	}
	return n, nil
}

func (s *Server) handleCostSummary(c *gin.Context) {
	ctx := c.Request.Context()
	if c.Query("month") == "" && s.opts.Budget != nil {
		sum, err := s.opts.Budget.Summary(ctx)
		if err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, sum)
		return
	}

	start, end, err := monthWindow(c, time.Now().UTC())
	if err != nil {
		s.fail(c, err)
		return
	}
	sum, err := s.opts.Ledger.Summary(ctx, start, end)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sum)
}

func (s *Server) handleCostOperations(c *gin.Context) {
	start, end, err := monthWindow(c, time.Now().UTC())
	if err != nil {
		s.fail(c, err)
		return
	}
	ops, err := s.opts.Ledger.ByOperation(c.Request.Context(), start, end)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"operations": ops})
}

func (s *Server) handleCostExport(c *gin.Context) {
	start, end, err := monthWindow(c, time.Now().UTC())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", `attachment; filename="costs-`+start.Format("2006-01")+`.csv"`)
	c.Status(http.StatusOK)
	if err := s.opts.Ledger.ExportCSV(c.Request.Context(), c.Writer, start, end); err != nil {
		// Headers are gone; the client sees a truncated file.
		s.log.Errorw("cost export failed", "error", err)
	}
}

func (s *Server) handleRecentCosts(c *gin.Context) {
	limit, err := queryLimit(c, 10)
	if err != nil {
		s.fail(c, err)
		return
	}
	entries, err := s.opts.Ledger.Recent(c.Request.Context(), limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

func (s *Server) handleBudget(c *gin.Context) {
	if s.opts.Budget == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "budget not configured"})
		return
	}
	st, err := s.opts.Budget.Status(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (s *Server) handleLogs(c *gin.Context) {
	if s.opts.Logs == nil {
		c.JSON(http.StatusOK, gin.H{"logs": []models.ProcessingLog{}})
		return
	}
	limit, err := queryLimit(c, 50)
	if err != nil {
		s.fail(c, err)
		return
	}
	logs, err := s.opts.Logs.Query(c.Request.Context(), models.ProcessingLogQuery{
		ProcessType: models.ProcessType(c.Query("type")),
		Status:      models.ProcessStatus(c.Query("status")),
		Limit:       limit,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": logs})
}

func (s *Server) handleListPosts(c *gin.Context) {
	limit, err := queryLimit(c, 20)
	if err != nil {
		s.fail(c, err)
		return
	}
	status := models.PostStatus(c.Query("status"))
	if status != "" && !status.Valid() {
		s.fail(c, errors.NewValidationError("status", "unknown status"))
		return
	}
	posts, err := s.opts.Posts.List(c.Request.Context(), status, limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"posts": posts})
}

func postID(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.NewValidationError("id", "must be a positive integer")
	}
	return id, nil
}

func (s *Server) handleGetPost(c *gin.Context) {
	id, err := postID(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	p, err := s.opts.Posts.Get(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

type updatePostRequest struct {
	Status models.PostStatus `json:"status" binding:"required"`
}

func (s *Server) handleUpdatePost(c *gin.Context) {
	id, err := postID(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	var body updatePostRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status is required"})
		return
	}
	ctx := c.Request.Context()
	if err := s.opts.Posts.UpdateStatus(ctx, id, body.Status); err != nil {
		s.fail(c, err)
		return
	}
	p, err := s.opts.Posts.Get(ctx, id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

var uploadImageTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/webp": true,
}

// handlePostImage attaches an uploaded image to a post. The type is sniffed
// from the content, not taken from the client.
func (s *Server) handlePostImage(c *gin.Context) {
	id, err := postID(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	if s.opts.Files == nil {
		s.fail(c, errors.New(errors.ErrPersistence, "image storage not configured"))
		return
	}
	ctx := c.Request.Context()
	if _, err := s.opts.Posts.Get(ctx, id); err != nil {
		s.fail(c, err)
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxUpload()+1<<20)
	fh, err := c.FormFile("image")
	if err != nil {
		s.fail(c, errors.NewValidationError("image", "required"))
		return
	}
	if fh.Size > s.maxUpload() {
		s.fail(c, errors.NewValidationError("image", "too large"))
		return
	}
	f, err := fh.Open()
	if err != nil {
		s.fail(c, errors.NewValidationError("image", "not readable"))
		return
	}
	data, err := io.ReadAll(f)
	f.Close()
	if err != nil {
		s.fail(c, errors.NewValidationError("image", "not readable"))
		return
	}
	mimeType := http.DetectContentType(data)
	if !uploadImageTypes[mimeType] {
		s.fail(c, errors.NewValidationError("image", "must be PNG, JPEG or WebP"))
		return
	}

	url, err := s.opts.Files.Save(ctx, data, mimeType)
	if err != nil {
		s.fail(c, err)
		return
	}
	src := models.ImageUploaded
	if err := s.opts.Posts.UpdateArtifact(ctx, id, models.ArtifactUpdate{ImageURL: &url, ImageSource: &src}); err != nil {
		s.fail(c, err)
		return
	}
	p, err := s.opts.Posts.Get(ctx, id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}
