package tasks

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/voicematch/internal/artifacts"
	"github.com/fyrsmithlabs/voicematch/internal/logging"
	"github.com/fyrsmithlabs/voicematch/internal/pipeline"
	"github.com/fyrsmithlabs/voicematch/internal/speech"
)

// flakySynth fails every synthesis of the listed (word, voice) pairs.
type flakySynth struct {
	speech.Loopback
	fail map[string]error
}

func (f flakySynth) Synthesize(ctx context.Context, word string, p speech.VoiceProfile) ([]byte, error) {
	if err, ok := f.fail[word+"/"+p.Voice]; ok {
		return nil, err
	}
	return f.Loopback.Synthesize(ctx, word, p)
}

var testProfiles = []speech.VoiceProfile{
	{Locale: "en-US", Voice: "alloy"},
	{Locale: "en-GB", Voice: "nova"},
}

func TestLoadWords(t *testing.T) {
	ctx := context.Background()
	store := artifacts.NewMemory()
	require.NoError(t, artifacts.PutJSON(ctx, store, "words.json", []WordRecord{{Word: "Walmart"}, {Word: "Trader Joe's"}}))

	words, err := LoadWords(ctx, store, "words.json")
	require.NoError(t, err)
	assert.Equal(t, []string{"Walmart", "Trader Joe's"}, words)

	_, err = LoadWords(ctx, store, "missing.json")
	assert.Equal(t, pipeline.KindConfig, pipeline.KindOf(err))

	require.NoError(t, store.Put(ctx, "bad.json", []byte(`{"word":1}`), artifacts.ContentTypeJSON))
	_, err = LoadWords(ctx, store, "bad.json")
	assert.Equal(t, pipeline.KindConfig, pipeline.KindOf(err))

	_, err = LoadWords(ctx, store, "")
	assert.Equal(t, pipeline.KindConfig, pipeline.KindOf(err))
}

func TestCleanWords(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, CleanWords([]string{" a", "", "b", "a ", "  "}))
	assert.Empty(t, CleanWords(nil))
}

func TestGenerate(t *testing.T) {
	ctx := context.Background()
	store := artifacts.NewMemory()
	logger := logging.NewTestLogger()
	g := &Generator{
		Store: store,
		Synth: flakySynth{fail: map[string]error{
			"Costco/nova": pipeline.Permanent(errors.New("voice unavailable")),
		}},
		Profiles:    testProfiles,
		Concurrency: 2,
		Logger:      logger.Logger,
	}

	res, err := g.Generate(ctx, "r1", []string{"Walmart", "Costco", "Walmart"})
	require.NoError(t, err)
	require.Len(t, res.Items, 3)
	require.Len(t, res.Failed, 1)

	assert.Equal(t, pipeline.WorkItem{
		Ref:     "runs/r1/audio/Walmart_en-US_alloy.mp3",
		Word:    "Walmart",
		Profile: "en-US_alloy",
	}, res.Items[0])
	assert.Equal(t, "Costco", res.Failed[0].Item.Word)
	assert.Equal(t, pipeline.ClassPermanent, res.Failed[0].Class)

	assert.Equal(t, []string{
		"runs/r1/audio/Costco_en-US_alloy.mp3",
		"runs/r1/audio/Walmart_en-GB_nova.mp3",
		"runs/r1/audio/Walmart_en-US_alloy.mp3",
	}, store.Keys("runs/r1/audio/"))

	logger.AssertLogged(t, zapcore.WarnLevel, "clip generation failed")
	logger.AssertField(t, "clips generated", "run_id", "r1")
}

func TestGenerateFailures(t *testing.T) {
	ctx := context.Background()
	store := artifacts.NewMemory()
	boom := pipeline.Transient(errors.New("throttled"))
	g := &Generator{
		Store:    store,
		Synth:    flakySynth{fail: map[string]error{"Walmart/alloy": boom, "Walmart/nova": boom}},
		Profiles: testProfiles,
	}

	res, err := g.Generate(ctx, "r1", []string{"Walmart"})
	require.Error(t, err)
	assert.Equal(t, pipeline.KindStageFatal, pipeline.KindOf(err))
	assert.Len(t, res.Failed, 2)

	_, err = g.Generate(ctx, "r1", []string{" ", ""})
	assert.Equal(t, pipeline.KindConfig, pipeline.KindOf(err))

	g.Profiles = nil
	_, err = g.Generate(ctx, "r1", []string{"Walmart"})
	assert.Equal(t, pipeline.KindConfig, pipeline.KindOf(err))
}

// countingSynth counts synthesis calls.
type countingSynth struct {
	speech.Loopback
	calls atomic.Int64
}

func (c *countingSynth) Synthesize(ctx context.Context, word string, p speech.VoiceProfile) ([]byte, error) {
	c.calls.Add(1)
	return c.Loopback.Synthesize(ctx, word, p)
}

func TestGenerateSkipsStoredClips(t *testing.T) {
	ctx := context.Background()
	store := artifacts.NewMemory()
	existing := "runs/r1/audio/Walmart_en-GB_nova.mp3"
	require.NoError(t, store.Put(ctx, existing, []byte("earlier clip"), artifacts.ContentTypeMP3))

	synth := &countingSynth{}
	g := &Generator{Store: store, Synth: synth, Profiles: testProfiles}

	res, err := g.Generate(ctx, "r1", []string{"Walmart"})
	require.NoError(t, err)
	assert.Len(t, res.Items, 2)
	assert.EqualValues(t, 1, synth.calls.Load())

	body, err := store.Get(ctx, existing)
	require.NoError(t, err)
	assert.Equal(t, "earlier clip", string(body))

	_, err = g.Generate(ctx, "r1", []string{"Walmart"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, synth.calls.Load())
}

// recordingSTT remembers the language hint it was called with.
type recordingSTT struct {
	speech.Loopback
	language string
	name     string
}

func (r *recordingSTT) Transcribe(ctx context.Context, audio []byte, name, language string) (string, error) {
	r.language, r.name = language, name
	return r.Loopback.Transcribe(ctx, audio, name, language)
}

func TestTranscription(t *testing.T) {
	ctx := context.Background()
	store := artifacts.NewMemory()
	clip, err := speech.Loopback{}.Synthesize(ctx, "Walmart", testProfiles[1])
	require.NoError(t, err)
	ref := artifacts.ClipKey("r1", "Walmart", testProfiles[1].String())
	require.NoError(t, store.Put(ctx, ref, clip, artifacts.ContentTypeMP3))

	stt := &recordingSTT{}
	inv := NewTranscription(store, stt)

	text, err := inv.Invoke(ctx, pipeline.WorkItem{Ref: ref, Word: "Walmart", Profile: "en-GB_nova"})
	require.NoError(t, err)
	assert.Equal(t, "Walmart", text)
	assert.Equal(t, "en", stt.language)
	assert.Equal(t, "Walmart_en-GB_nova.mp3", stt.name)

	_, err = inv.Invoke(ctx, pipeline.WorkItem{Ref: "runs/r1/audio/missing.mp3"})
	require.Error(t, err)
	assert.Equal(t, pipeline.ClassPermanent, pipeline.Classify(err))
	assert.ErrorIs(t, err, artifacts.ErrNotFound)

	require.NoError(t, store.Put(ctx, "runs/r1/audio/garbage.mp3", []byte("ID3"), artifacts.ContentTypeMP3))
	_, err = inv.Invoke(ctx, pipeline.WorkItem{Ref: "runs/r1/audio/garbage.mp3"})
	assert.Equal(t, pipeline.ClassPermanent, pipeline.Classify(err))
}

// brokenStore fails every read.
type brokenStore struct{ artifacts.Store }

func (brokenStore) Get(context.Context, string) ([]byte, error) {
	return nil, errors.New("connection reset")
}

func TestTranscriptionStoreFault(t *testing.T) {
	inv := NewTranscription(brokenStore{}, speech.Loopback{})
	_, err := inv.Invoke(context.Background(), pipeline.WorkItem{Ref: "runs/r1/audio/a.mp3"})
	require.Error(t, err)
	assert.Equal(t, pipeline.ClassTransient, pipeline.Classify(err))
}
