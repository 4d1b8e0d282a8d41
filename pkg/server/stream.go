package server

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/postwright/postwright/pkg/errors"
	"github.com/postwright/postwright/pkg/models"
	"github.com/postwright/postwright/pkg/progress"
)

func (s *Server) handleGenerate(c *gin.Context) {
	var req models.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "topic is required"})
		return
	}
	rep, err := s.opts.Jobs.StartText(c.Request.Context(), req)
	s.stream(c, rep, err)
}

func (s *Server) handleReel(c *gin.Context) {
	var req models.ReelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	rep, err := s.opts.Jobs.StartReel(c.Request.Context(), req)
	s.stream(c, rep, err)
}

func (s *Server) handleInfographic(c *gin.Context) {
	var req models.InfographicRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "content is required"})
		return
	}
	rep, err := s.opts.Jobs.StartInfographic(c.Request.Context(), req)
	s.stream(c, rep, err)
}

func (s *Server) handleImprove(c *gin.Context) {
	var req models.ImproveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	rep, err := s.opts.Jobs.StartImprove(c.Request.Context(), req)
	s.stream(c, rep, err)
}

func (s *Server) handleAnalyze(c *gin.Context) {
	var req models.AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	rep, err := s.opts.Jobs.StartAnalyze(c.Request.Context(), req)
	s.stream(c, rep, err)
}

// handleUpload saves the multipart "video" file under TempDir and hands it
// to an upload job, which removes it when done.
func (s *Server) handleUpload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxUpload()+1<<20)
	fh, err := c.FormFile("video")
	if err != nil {
		s.fail(c, errors.NewValidationError("video", "required"))
		return
	}
	if fh.Size > s.maxUpload() {
		s.fail(c, errors.NewValidationError("video", fmt.Sprintf("larger than %d MB", s.opts.MaxUploadMB)))
		return
	}

	path, err := s.tempFile(fh.Filename)
	if err != nil {
		s.fail(c, err)
		return
	}
	if err := c.SaveUploadedFile(fh, path); err != nil {
		_ = os.Remove(path)
		s.fail(c, errors.Wrap(errors.Mark(err, errors.ErrPersistence), "save upload"))
		return
	}

	rep, err := s.opts.Jobs.StartUpload(c.Request.Context(), models.UploadRequest{
		Path:        path,
		FileName:    filepath.Base(fh.Filename),
		Description: c.PostForm("description"),
	})
	s.stream(c, rep, err)
}

func (s *Server) maxUpload() int64 {
	return int64(s.opts.MaxUploadMB) << 20
}

// tempFile reserves a file for an upload, keeping a short extension of the
// client's file name so the transcriber can tell the container format.
func (s *Server) tempFile(name string) (string, error) {
	if s.opts.TempDir != "" {
		if err := os.MkdirAll(s.opts.TempDir, 0o755); err != nil {
			return "", errors.Wrap(errors.Mark(err, errors.ErrPersistence), "create temp dir")
		}
	}
	ext := strings.ToLower(filepath.Ext(name))
	if len(ext) > 6 {
		ext = ""
	}
	f, err := os.CreateTemp(s.opts.TempDir, "upload-*"+ext)
	if err != nil {
		return "", errors.Wrap(errors.Mark(err, errors.ErrPersistence), "create upload file")
	}
	path := f.Name()
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", errors.Mark(err, errors.ErrPersistence)
	}
	return path, nil
}

// stream relays the job's events as `progress` SSE frames until the
// terminal event or until the client goes away. Start errors are answered
// with JSON before the stream opens.
func (s *Server) stream(c *gin.Context, rep *progress.Reporter, err error) {
	if err != nil {
		s.fail(c, err)
		return
	}
	if rep == nil {
		s.fail(c, errors.New(errors.ErrProvider, "job did not start"))
		return
	}

	h := c.Writer.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	h.Set("X-Job-ID", rep.JobID())

	events := rep.Events()
	gone := c.Stream(func(w io.Writer) bool {
		ev, ok := <-events
		if !ok {
			return false
		}
		c.SSEvent("progress", ev)
		return !ev.Terminal()
	})
	if gone {
		s.log.Infow("client disconnected, job continues", "job_id", rep.JobID())
	}
}
