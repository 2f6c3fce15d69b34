package workflows

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"go.temporal.io/sdk/testsuite"

	"github.com/fyrsmithlabs/voicematch/internal/pipeline"
)

var (
	testLocales = []string{"en-US", "en-GB", "en-IN", "en-NZ", "en-ZA", "en-AU"}
	testVoices  = []string{"alloy", "nova"}
)

func clipItems(runID string, words ...string) []pipeline.WorkItem {
	var items []pipeline.WorkItem
	for _, w := range words {
		for _, l := range testLocales {
			for _, v := range testVoices {
				profile := l + "_" + v
				items = append(items, pipeline.WorkItem{
					Ref:     fmt.Sprintf("runs/%s/audio/%s_%s.mp3", runID, w, profile),
					Word:    w,
					Profile: profile,
				})
			}
		}
	}
	return items
}

func testInput(runID string) VariationsInput {
	return VariationsInput{
		RunID:        runID,
		Words:        []string{"apple", "banana"},
		ChunkSize:    10,
		Concurrency:  25,
		MaxRounds:    1,
		RetryBackoff: 30 * time.Second,
		Timeout:      time.Hour,
		DrainTimeout: 30 * time.Second,
	}
}

// transcriber scripts TranscribeChunk: refs in transient fail while their
// attempt count is below the limit.
type transcriber struct {
	mu        sync.Mutex
	attempts  map[string]int
	transient map[string]int
	rounds    map[int][]int
}

func newTranscriber() *transcriber {
	return &transcriber{
		attempts:  make(map[string]int),
		transient: make(map[string]int),
		rounds:    make(map[int][]int),
	}
}

func (tr *transcriber) run(_ context.Context, in TranscribeInput) (pipeline.ChunkResult, error) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.rounds[in.Round] = append(tr.rounds[in.Round], len(in.Chunk.Items))

	res := pipeline.ChunkResult{Index: in.Chunk.Index}
	for _, item := range in.Chunk.Items {
		tr.attempts[item.Ref]++
		if tr.attempts[item.Ref] <= tr.transient[item.Ref] {
			res.Retryable = append(res.Retryable, pipeline.ItemFailure{
				Item:   item,
				Reason: "TransientTaskFailure: limit exceeded",
				Class:  pipeline.ClassTransient,
			})
			continue
		}
		res.Completed = append(res.Completed, pipeline.Completion{Item: item, Output: item.Word})
	}
	return res, nil
}

type VariationsWorkflowTestSuite struct {
	suite.Suite
	testsuite.WorkflowTestSuite

	env *testsuite.TestWorkflowEnvironment
}

func TestVariationsWorkflowTestSuite(t *testing.T) {
	suite.Run(t, new(VariationsWorkflowTestSuite))
}

func (s *VariationsWorkflowTestSuite) SetupTest() {
	s.env = s.NewTestWorkflowEnvironment()
	s.env.RegisterWorkflow(VariationsWorkflow)
	s.env.RegisterActivity(&Activities{})
}

func (s *VariationsWorkflowTestSuite) AfterTest(suiteName, testName string) {
	s.env.AssertExpectations(s.T())
}

func (s *VariationsWorkflowTestSuite) mockReconcile(captured *pipeline.ReconcileRequest, calls *int) {
	var a *Activities
	s.env.OnActivity(a.Reconcile, mock.Anything, mock.Anything).Return(
		func(_ context.Context, req pipeline.ReconcileRequest) (pipeline.ReconcileResult, error) {
			*calls++
			*captured = req
			return pipeline.ReconcileResult{
				DictionaryKey: "runs/" + req.RunID + "/variations.json",
				Words:         len(req.Words),
			}, nil
		})
}

func (s *VariationsWorkflowTestSuite) Test_AllSucceed() {
	var a *Activities
	items := clipItems("wf-a", "apple", "banana")
	s.env.OnActivity(a.GenerateClips, mock.Anything, GenerateInput{RunID: "wf-a", Words: []string{"apple", "banana"}}).
		Return(pipeline.GenerateResult{Items: items}, nil)
	tr := newTranscriber()
	s.env.OnActivity(a.TranscribeChunk, mock.Anything, mock.Anything).Return(tr.run)
	var req pipeline.ReconcileRequest
	var reconciles int
	s.mockReconcile(&req, &reconciles)

	s.env.ExecuteWorkflow(VariationsWorkflow, testInput("wf-a"))

	s.True(s.env.IsWorkflowCompleted())
	s.NoError(s.env.GetWorkflowError())

	var exec pipeline.WorkflowExecution
	s.NoError(s.env.GetWorkflowResult(&exec))
	s.Equal(pipeline.RunSucceeded, exec.Status)
	s.Equal(pipeline.StateSucceeded, exec.State)

	out, ok := exec.Outcome(pipeline.StageTranscribe)
	s.True(ok)
	s.Equal(pipeline.StageSucceeded, out.Status)
	s.Len(out.Completed, 24)
	s.ElementsMatch([]int{10, 10, 4}, tr.rounds[0])
	s.Len(tr.rounds, 1)

	s.Equal(1, reconciles)
	s.Len(req.Completed, 24)
	s.Empty(req.Failed)
	s.Equal([]string{"apple", "banana"}, req.Words)
	s.Equal("runs/wf-a/variations.json", exec.Result.DictionaryKey)
}

func (s *VariationsWorkflowTestSuite) Test_RetryRound() {
	var a *Activities
	items := clipItems("wf-b", "apple", "banana")
	s.env.OnActivity(a.GenerateClips, mock.Anything, mock.Anything).
		Return(pipeline.GenerateResult{Items: items}, nil)

	tr := newTranscriber()
	for _, i := range []int{0, 5, 13} {
		tr.transient[items[i].Ref] = 1
	}
	for _, i := range []int{20, 23} {
		tr.transient[items[i].Ref] = 99
	}
	s.env.OnActivity(a.TranscribeChunk, mock.Anything, mock.Anything).Return(tr.run)
	var req pipeline.ReconcileRequest
	var reconciles int
	s.mockReconcile(&req, &reconciles)

	s.env.ExecuteWorkflow(VariationsWorkflow, testInput("wf-b"))

	s.True(s.env.IsWorkflowCompleted())
	s.NoError(s.env.GetWorkflowError())

	var exec pipeline.WorkflowExecution
	s.NoError(s.env.GetWorkflowResult(&exec))
	s.Equal(pipeline.RunSucceeded, exec.Status)

	out, _ := exec.Outcome(pipeline.StageTranscribe)
	s.Equal(pipeline.StagePartialFailure, out.Status)
	s.Len(out.Completed, 22)
	s.Len(out.Failed, 2)
	s.Equal(2, out.Rounds)
	s.Equal([]int{5}, tr.rounds[1])
	s.GreaterOrEqual(exec.Elapsed, 30*time.Second)

	s.Equal(1, reconciles)
	s.Len(req.Completed, 22)
	s.Len(req.Failed, 2)
}

func (s *VariationsWorkflowTestSuite) Test_GenerateTimeout() {
	var a *Activities
	in := testInput("wf-t")
	in.Timeout = time.Second

	s.env.OnActivity(a.GenerateClips, mock.Anything, mock.Anything).
		After(2*time.Second).
		Return(pipeline.GenerateResult{Items: clipItems("wf-t", "apple")}, nil)
	tr := newTranscriber()
	var req pipeline.ReconcileRequest
	var reconciles int

	s.env.ExecuteWorkflow(VariationsWorkflow, in)

	s.True(s.env.IsWorkflowCompleted())
	err := s.env.GetWorkflowError()
	s.Error(err)
	s.Equal(pipeline.KindTimeout, KindFromError(err))

	exec, ok := ExecutionFromError(err)
	s.True(ok)
	s.Equal(pipeline.RunFailed, exec.Status)
	s.Equal(pipeline.StageGenerate, exec.Cause.Stage)
	s.Len(exec.Stages, 1)
	s.Empty(tr.rounds)
	s.Zero(reconciles)
	s.Empty(req.RunID)
}

func (s *VariationsWorkflowTestSuite) Test_TranscribeDeadlineDrains() {
	var a *Activities
	in := testInput("wf-d")
	in.Timeout = time.Minute

	s.env.OnActivity(a.GenerateClips, mock.Anything, mock.Anything).
		Return(pipeline.GenerateResult{Items: clipItems("wf-d", "apple")}, nil)
	s.env.OnActivity(a.TranscribeChunk, mock.Anything, mock.Anything).
		After(10*time.Minute).
		Return(pipeline.ChunkResult{}, nil)

	s.env.ExecuteWorkflow(VariationsWorkflow, in)

	s.True(s.env.IsWorkflowCompleted())
	err := s.env.GetWorkflowError()
	s.Error(err)
	s.Equal(pipeline.KindTimeout, KindFromError(err))

	exec, ok := ExecutionFromError(err)
	s.True(ok)
	s.Equal(pipeline.StageTranscribe, exec.Cause.Stage)
	out, ok := exec.Outcome(pipeline.StageTranscribe)
	s.True(ok)
	s.Equal(pipeline.StageFailed, out.Status)
	s.Len(out.Failed, 12)
	s.Less(exec.Elapsed, 10*time.Minute)
}

func (s *VariationsWorkflowTestSuite) Test_BackoffOutlastsDeadline() {
	var a *Activities
	in := testInput("wf-w")
	in.Timeout = 10 * time.Second
	in.RetryBackoff = 30 * time.Second

	items := clipItems("wf-w", "apple")
	s.env.OnActivity(a.GenerateClips, mock.Anything, mock.Anything).
		Return(pipeline.GenerateResult{Items: items}, nil)
	tr := newTranscriber()
	tr.transient[items[3].Ref] = 99
	s.env.OnActivity(a.TranscribeChunk, mock.Anything, mock.Anything).Return(tr.run)

	s.env.ExecuteWorkflow(VariationsWorkflow, in)

	s.True(s.env.IsWorkflowCompleted())
	err := s.env.GetWorkflowError()
	s.Error(err)
	s.Equal(pipeline.KindTimeout, KindFromError(err))

	exec, ok := ExecutionFromError(err)
	s.True(ok)
	s.Equal(pipeline.RunFailed, exec.Status)
	s.Equal(pipeline.StageTranscribe, exec.Cause.Stage)
	s.Equal(pipeline.KindTimeout, exec.Cause.Kind)
	s.Equal(10*time.Second, exec.Elapsed)
	s.Len(tr.rounds, 1)
	s.Nil(exec.Result)
}

func (s *VariationsWorkflowTestSuite) Test_DeadlineWithoutDrain() {
	var a *Activities
	in := testInput("wf-n")
	in.Timeout = time.Minute
	in.DrainTimeout = 0

	s.env.OnActivity(a.GenerateClips, mock.Anything, mock.Anything).
		Return(pipeline.GenerateResult{Items: clipItems("wf-n", "apple")}, nil)
	s.env.OnActivity(a.TranscribeChunk, mock.Anything, mock.Anything).
		After(10*time.Minute).
		Return(pipeline.ChunkResult{}, nil)

	s.env.ExecuteWorkflow(VariationsWorkflow, in)

	s.True(s.env.IsWorkflowCompleted())
	err := s.env.GetWorkflowError()
	s.Error(err)
	s.Equal(pipeline.KindTimeout, KindFromError(err))

	exec, ok := ExecutionFromError(err)
	s.True(ok)
	s.Equal(pipeline.StageTranscribe, exec.Cause.Stage)
	s.Equal(pipeline.KindTimeout, exec.Cause.Kind)
	s.Less(exec.Elapsed, 10*time.Minute)
}

func (s *VariationsWorkflowTestSuite) Test_GenerateFailure() {
	var a *Activities
	s.env.OnActivity(a.GenerateClips, mock.Anything, mock.Anything).
		Return(pipeline.GenerateResult{}, toApplicationError(pipeline.StageFatal(errors.New("no clips generated for 2 words"))))

	s.env.ExecuteWorkflow(VariationsWorkflow, testInput("wf-g"))

	s.True(s.env.IsWorkflowCompleted())
	err := s.env.GetWorkflowError()
	s.Error(err)
	s.Equal(pipeline.KindStageFatal, KindFromError(err))

	exec, ok := ExecutionFromError(err)
	s.True(ok)
	s.Equal(pipeline.StageGenerate, exec.Cause.Stage)
	s.Contains(exec.Cause.Message, "no clips generated")
	s.Len(exec.Stages, 1)
}

func (s *VariationsWorkflowTestSuite) Test_EmptyWordList() {
	var a *Activities
	s.env.OnActivity(a.GenerateClips, mock.Anything, mock.Anything).
		Return(pipeline.GenerateResult{}, toApplicationError(pipeline.ConfigErrorf("word list is empty")))

	in := testInput("wf-e")
	in.Words = nil
	in.WordsKey = "input/words.json"
	s.env.ExecuteWorkflow(VariationsWorkflow, in)

	err := s.env.GetWorkflowError()
	s.Error(err)
	s.Equal(pipeline.KindConfig, KindFromError(err))
}

func (s *VariationsWorkflowTestSuite) Test_InvalidInput() {
	in := testInput("")
	s.env.ExecuteWorkflow(VariationsWorkflow, in)

	err := s.env.GetWorkflowError()
	s.Error(err)
	s.Equal(pipeline.KindConfig, KindFromError(err))
	_, ok := ExecutionFromError(err)
	s.False(ok)
}

func (s *VariationsWorkflowTestSuite) Test_InvalidBounds() {
	in := testInput("wf-x")
	in.Concurrency = 0
	s.env.ExecuteWorkflow(VariationsWorkflow, in)

	err := s.env.GetWorkflowError()
	s.Error(err)
	s.Equal(pipeline.KindConfig, KindFromError(err))
}
