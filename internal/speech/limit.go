package speech

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/voicematch/internal/pipeline"
)

// Limited throttles calls to a Service with a token bucket shared by
// synthesis and transcription.
type Limited struct {
	svc     Service
	limiter *rate.Limiter
}

// NewLimited allows perSecond calls with bursts of burst. A non-positive
// perSecond disables throttling.
func NewLimited(svc Service, perSecond float64, burst int) *Limited {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	if burst < 1 {
		burst = 1
	}
	return &Limited{svc: svc, limiter: rate.NewLimiter(limit, burst)}
}

// Synthesize waits for a token, then delegates.
func (l *Limited) Synthesize(ctx context.Context, word string, profile VoiceProfile) ([]byte, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, pipeline.Transient(err)
	}
	return l.svc.Synthesize(ctx, word, profile)
}

// Transcribe waits for a token, then delegates.
func (l *Limited) Transcribe(ctx context.Context, audio []byte, name, language string) (string, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return "", pipeline.Transient(err)
	}
	return l.svc.Transcribe(ctx, audio, name, language)
}
