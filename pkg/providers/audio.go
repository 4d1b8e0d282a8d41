package providers

import (
	"os"

	"github.com/postwright/postwright/pkg/errors"
)

// MaxTranscriptionBytes is the largest audio file sent for transcription.
const MaxTranscriptionBytes = 25 * 1024 * 1024

// EstimateDuration guesses an audio file's length in seconds from its size:
// bytes/16000 plus twenty percent.
func EstimateDuration(size int64) float64 {
	if size <= 0 {
		return 0
	}
	return float64(size) / 16000 * 1.2
}

// checkAudio returns the size of the file at path, rejecting files over max.
func checkAudio(path string, max int64) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, errors.Mark(errors.Wrap(err, "stat audio"), errors.ErrTranscription)
	}
	if max > 0 && info.Size() > max {
		return 0, errors.Newf(errors.ErrTranscription,
			"audio file too large for transcription (~%.1fMB), use a shorter clip",
			float64(info.Size())/1024/1024)
	}
	return info.Size(), nil
}
