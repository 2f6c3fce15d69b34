package speech

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/voicematch/internal/pipeline"
)

func TestVoiceProfile(t *testing.T) {
	p := VoiceProfile{Locale: "en-GB", Voice: "nova"}
	assert.Equal(t, "en-GB_nova", p.String())
	assert.Equal(t, "en", p.Language())

	parsed, err := ParseProfile(p.String())
	require.NoError(t, err)
	assert.Equal(t, p, parsed)

	_, err = ParseProfile("en-GB")
	assert.Error(t, err)

	assert.Len(t, DefaultProfiles(), 12)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want pipeline.Class
	}{
		{"rate limited", &openai.APIError{HTTPStatusCode: http.StatusTooManyRequests}, pipeline.ClassTransient},
		{"server error", &openai.APIError{HTTPStatusCode: http.StatusBadGateway}, pipeline.ClassTransient},
		{"bad request", &openai.APIError{HTTPStatusCode: http.StatusBadRequest}, pipeline.ClassPermanent},
		{"unauthorized", &openai.RequestError{HTTPStatusCode: http.StatusUnauthorized, Err: errors.New("bad key")}, pipeline.ClassPermanent},
		{"request 503", &openai.RequestError{HTTPStatusCode: http.StatusServiceUnavailable, Err: errors.New("down")}, pipeline.ClassTransient},
		{"deadline", context.DeadlineExceeded, pipeline.ClassTransient},
		{"untyped error", errors.New("LimitExceededException: limit exceeded"), pipeline.ClassTransient},
		{"unknown 4xx", &openai.APIError{HTTPStatusCode: http.StatusTeapot}, pipeline.ClassPermanent},
		{"network", fmt.Errorf("dial tcp: connection refused"), pipeline.ClassTransient},
		{"empty input", errEmptyInput, pipeline.ClassPermanent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classify("op", tt.err)
			require.Error(t, err)
			assert.Equal(t, tt.want, pipeline.Classify(err))
			assert.ErrorIs(t, err, tt.err)
		})
	}
	assert.NoError(t, classify("op", nil))
}

func TestLoopback(t *testing.T) {
	ctx := context.Background()
	var svc Service = Loopback{}

	clip, err := svc.Synthesize(ctx, "Trader Joe's", VoiceProfile{Locale: "en-US", Voice: "alloy"})
	require.NoError(t, err)

	text, err := svc.Transcribe(ctx, clip, "trader.mp3", "en")
	require.NoError(t, err)
	assert.Equal(t, "Trader Joe's", text)

	_, err = svc.Transcribe(ctx, []byte("ID3 not ours"), "x.mp3", "en")
	require.Error(t, err)
	assert.Equal(t, pipeline.ClassPermanent, pipeline.Classify(err))
}

func TestLimited(t *testing.T) {
	ctx := context.Background()
	l := NewLimited(Loopback{}, 1000, 2)

	start := time.Now()
	for i := 0; i < 4; i++ {
		_, err := l.Synthesize(ctx, "word", VoiceProfile{Locale: "en-US", Voice: "alloy"})
		require.NoError(t, err)
	}
	assert.Less(t, time.Since(start), time.Second)

	slow := NewLimited(Loopback{}, 0.001, 1)
	_, err := slow.Synthesize(ctx, "first", VoiceProfile{Locale: "en-US", Voice: "alloy"})
	require.NoError(t, err)

	cctx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	_, err = slow.Transcribe(cctx, nil, "x.mp3", "en")
	require.Error(t, err)
	assert.Equal(t, pipeline.ClassTransient, pipeline.Classify(err))
}
