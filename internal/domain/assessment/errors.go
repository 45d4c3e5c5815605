package assessment

import "errors"

var (
	ErrNoFile             = errors.New("no file selected")
	ErrAnalysisInProgress = errors.New("analysis already in progress")
	ErrAlreadyAnalyzed    = errors.New("assessment already has a result; reset first")
	ErrAnalysisFailed     = errors.New("analysis failed")
	ErrReset              = errors.New("assessment was reset during analysis")
	ErrClosed             = errors.New("assessment view closed")

	// ErrQuotaExceeded indicates the LLM provider returned a quota/limit error (HTTP 429 or similar).
	ErrQuotaExceeded = errors.New("ai quota exceeded")
)
