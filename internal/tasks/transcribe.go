package tasks

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/fyrsmithlabs/voicematch/internal/artifacts"
	"github.com/fyrsmithlabs/voicematch/internal/pipeline"
	"github.com/fyrsmithlabs/voicematch/internal/speech"
)

// Transcription is the TaskInvoker of the transcribe stage: it fetches a
// clip by its ref and returns the transcript.
type Transcription struct {
	Store artifacts.Store
	STT   speech.Transcriber
}

var _ pipeline.TaskInvoker = (*Transcription)(nil)

// NewTranscription creates the transcribe invoker.
func NewTranscription(store artifacts.Store, stt speech.Transcriber) *Transcription {
	return &Transcription{Store: store, STT: stt}
}

// Invoke transcribes the clip stored at item.Ref. Missing clips are
// permanent failures; store faults are transient.
func (t *Transcription) Invoke(ctx context.Context, item pipeline.WorkItem) (string, error) {
	audio, err := t.Store.Get(ctx, item.Ref)
	if err != nil {
		if errors.Is(err, artifacts.ErrNotFound) {
			return "", pipeline.Permanent(err)
		}
		return "", pipeline.Transient(fmt.Errorf("fetch clip: %w", err))
	}

	var language string
	if p, err := speech.ParseProfile(item.Profile); err == nil {
		language = p.Language()
	}

	text, err := t.STT.Transcribe(ctx, audio, path.Base(item.Ref), language)
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", pipeline.Permanent(fmt.Errorf("empty transcript for %s", item.Ref))
	}
	return text, nil
}
