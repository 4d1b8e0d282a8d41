package jobs

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/postwright/postwright/pkg/errors"
	"github.com/postwright/postwright/pkg/models"
	"github.com/postwright/postwright/pkg/progress"
)

const maxDescriptionLen = 5000

// StartUpload validates req and starts a job that writes a post from an
// uploaded video. The job owns the file at req.Path: it is removed when the
// job ends, or at once when the request is rejected.
func (r *Runner) StartUpload(sub context.Context, req models.UploadRequest) (*progress.Reporter, error) {
	reject := func(err error) (*progress.Reporter, error) {
		if req.Path != "" {
			if rerr := os.Remove(req.Path); rerr != nil && !os.IsNotExist(rerr) {
				r.Log.Warnw("upload cleanup failed", "path", req.Path, "error", rerr)
			}
		}
		return nil, err
	}

	if req.Path == "" {
		return reject(errors.NewValidationError("video", "required"))
	}
	info, err := os.Stat(req.Path)
	switch {
	case err != nil:
		return reject(errors.NewValidationError("video", "not readable"))
	case info.IsDir() || info.Size() == 0:
		return reject(errors.NewValidationError("video", "empty file"))
	}
	desc := strings.TrimSpace(req.Description)
	if len([]rune(desc)) > maxDescriptionLen {
		return reject(errors.NewValidationError("description", "too long"))
	}

	name := strings.TrimSpace(req.FileName)
	if name == "" {
		name = filepath.Base(req.Path)
	}
	meta := map[string]string{"file_name": name}
	return r.launch(sub, uploadPlan, meta, func(ctx context.Context, j *job) (map[string]any, error) {
		return r.runUpload(ctx, j, req.Path, name, desc)
	}, req.Path), nil
}

func (r *Runner) runUpload(ctx context.Context, j *job, path, name, desc string) (map[string]any, error) {
	transcript := r.transcribeStep(ctx, j, path)
	return r.writeReelPost(ctx, j, transcript, desc, map[string]string{"file_name": name})
}
