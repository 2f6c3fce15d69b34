package artifacts

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	_, err := store.Get(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)

	data := []byte("clip")
	require.NoError(t, store.Put(ctx, "runs/r1/audio/a.mp3", data, ContentTypeMP3))
	data[0] = 'X'

	got, err := store.Get(ctx, "runs/r1/audio/a.mp3")
	require.NoError(t, err)
	assert.Equal(t, "clip", string(got), "store keeps its own copy")

	ok, err := store.Exists(ctx, "runs/r1/audio/a.mp3")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, store.Put(ctx, "runs/r2/x", nil, ContentTypeJSON))
	assert.Equal(t, []string{"runs/r1/audio/a.mp3"}, store.Keys("runs/r1/"))

	assert.Error(t, store.Put(ctx, "", data, ContentTypeMP3))
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	in := map[string][]string{"walmart": {"wall mart"}}
	require.NoError(t, PutJSON(ctx, store, "out.json", in))

	var out map[string][]string
	require.NoError(t, GetJSON(ctx, store, "out.json", &out))
	assert.Equal(t, in, out)

	require.NoError(t, store.Put(ctx, "bad.json", []byte("{"), ContentTypeJSON))
	assert.Error(t, GetJSON(ctx, store, "bad.json", &out))
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "runs/r1/audio/Trader_Joe's_en-GB_nova.mp3", ClipKey("r1", "Trader Joe's", "en-GB_nova"))
	assert.Equal(t, "runs/r1/variations.json", OutputKey("r1", "variations.json"))
}
