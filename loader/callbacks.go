package loader

import "time"

// Phases reported through Progress.
const (
	PhaseConnecting = "connecting"
	PhaseBootstrap  = "bootstrap"
	PhaseUploading  = "uploading"
	PhaseComplete   = "complete"
)

// Progress describes how far an upload has got.
type Progress struct {
	Phase string

	// Cog is the cog whose image is being sent (0 for the single-core path)
	Cog int

	// Page is the number of pages acknowledged for Cog, TotalPages the
	// number it needs including the marker page
	Page       int
	TotalPages int

	// BytesSent and TotalBytes count image bytes over the whole session
	BytesSent  int
	TotalBytes int

	ElapsedTime time.Duration
}

// ProgressCallback is called synchronously from the upload loop and should
// return quickly.
type ProgressCallback func(Progress)

func (s *Session) reportProgress(p Progress) {
	if s.config.ProgressCallback != nil {
		p.ElapsedTime = time.Since(s.started)
		s.config.ProgressCallback(p)
	}
}
