package speech

import (
	"bytes"
	"context"
	"fmt"
)

// loopbackMagic prefixes clips produced by Loopback.
var loopbackMagic = []byte("VMLOOP1\n")

// Loopback is an offline backend: the "audio" is the word itself and
// transcription reads it back. It lets the whole pipeline run without
// credentials.
type Loopback struct{}

// Synthesize encodes word as a loopback clip.
func (Loopback) Synthesize(ctx context.Context, word string, profile VoiceProfile) ([]byte, error) {
	if word == "" {
		return nil, classify("synthesize", errEmptyInput)
	}
	if err := ctx.Err(); err != nil {
		return nil, classify("synthesize", err)
	}
	clip := append([]byte{}, loopbackMagic...)
	return append(clip, word...), nil
}

// Transcribe decodes a loopback clip.
func (Loopback) Transcribe(ctx context.Context, audio []byte, name, language string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", classify("transcribe "+name, err)
	}
	text, ok := bytes.CutPrefix(audio, loopbackMagic)
	if !ok || len(text) == 0 {
		return "", classify("transcribe "+name, fmt.Errorf("%w: not a loopback clip", errEmptyInput))
	}
	return string(text), nil
}
