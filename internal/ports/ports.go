package ports

import (
	"context"
	"errors"
	"time"

	"IntelVault/internal/domain"
)

// ErrUnavailable signals that an optional external capability is not
// configured. Callers treat it as "no data", not as a failure.
var ErrUnavailable = errors.New("capability unavailable")

// CandidateSource pulls fresh candidates from upstream providers.
type CandidateSource interface {
	FetchCandidates(ctx context.Context, day time.Time) ([]domain.Candidate, error)
}

// HighlightBuilder normalises a candidate into highlights.
type HighlightBuilder interface {
	Build(ctx context.Context, c domain.Candidate, dryRun bool) (domain.Highlights, error)
}

// Completer is a generative model returning a JSON object. Implementations
// return ErrUnavailable when no model is configured.
type Completer interface {
	CompleteJSON(ctx context.Context, system string, user any, maxTokens int) (map[string]any, error)
}

// PillarClassifier assigns up to three topic tags.
type PillarClassifier interface {
	Classify(text string, keyphrases []string) []string
}

// Embedder turns texts into vectors, one per input, in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// TranscriptSource acquires transcripts for video candidates. Captions
// returns (nil, nil) when none exist; Transcribe is the paid fallback.
type TranscriptSource interface {
	Captions(ctx context.Context, url string) ([]domain.Segment, error)
	Transcribe(ctx context.Context, url string) ([]domain.Segment, error)
}

// Notifier delivers alerts and digests to a chat channel.
type Notifier interface {
	PublishDigest(ctx context.Context, digest string) error
}

// Scheduler controls when pipelines execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
