package assessment

import "context"

// Analyzer port (analyze call ke analysis API)
type Analyzer interface {
	Analyze(ctx context.Context, file File) (PredictionResult, error)
}

// Advisor port. Implementations may absorb failures into a fallback value.
type Advisor interface {
	GetAdvisory(ctx context.Context, label string, confidence float64) (AdvisoryResult, error)
}

// ChatSender sends one user message on top of history and returns the assistant reply.
// It never fails; failures come back as ChatFallbackReply.
type ChatSender interface {
	SendChatTurn(ctx context.Context, label string, confidence float64, history []ChatTurn, message string) string
}

// PreviewStore port (penyimpanan preview handle)
type PreviewStore interface {
	Create(ctx context.Context, file File) (Preview, error)
	Release(ctx context.Context, p Preview) error
}
