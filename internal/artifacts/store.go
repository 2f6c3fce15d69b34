// Package artifacts is the key-addressed store for word lists, generated
// clips and pipeline outputs.
package artifacts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"
)

// ErrNotFound is returned when no object exists under a key.
var ErrNotFound = errors.New("artifact not found")

// Content types used by the pipeline.
const (
	ContentTypeJSON = "application/json"
	ContentTypeMP3  = "audio/mpeg"
)

// Store reads and writes opaque blobs by string key.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Exists(ctx context.Context, key string) (bool, error)
}

// PutJSON marshals v with indentation and stores it under key.
func PutJSON(ctx context.Context, s Store, key string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return s.Put(ctx, key, data, ContentTypeJSON)
}

// GetJSON loads key and unmarshals it into v.
func GetJSON(ctx context.Context, s Store, key string, v any) error {
	data, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

// RunPrefix is the key prefix for everything a run writes.
func RunPrefix(runID string) string {
	return path.Join("runs", runID)
}

// ClipKey is where the clip of word in profile is stored for a run. Spaces
// in the word become underscores.
func ClipKey(runID, word, profile string) string {
	name := strings.ReplaceAll(strings.TrimSpace(word), " ", "_")
	name = strings.ReplaceAll(name, "/", "_")
	return path.Join(RunPrefix(runID), "audio", name+"_"+profile+".mp3")
}

// OutputKey is where a named run output is stored.
func OutputKey(runID, name string) string {
	return path.Join(RunPrefix(runID), name)
}
