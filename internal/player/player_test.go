package player

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webreplay/backend/internal/models"
)

type fakeStore struct {
	flows map[string]*models.Flow
}

func (s *fakeStore) GetFlow(_ context.Context, id string) (*models.Flow, error) {
	flow, ok := s.flows[id]
	if !ok {
		return nil, fmt.Errorf("flow %s not found", id)
	}
	return flow, nil
}

type fakeNav struct {
	mu   sync.Mutex
	urls []string
}

func (n *fakeNav) Navigate(_ context.Context, url string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.urls = append(n.urls, url)
	return nil
}

type fakeRunner struct {
	mu     sync.Mutex
	calls  int
	failAt map[int]error // 1-based call number -> error
}

func (r *fakeRunner) RunStep(context.Context, models.RecordedStep, models.PlaybackOptions) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if err, ok := r.failAt[r.calls]; ok {
		return err
	}
	return nil
}

func (r *fakeRunner) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func testFlow(t *testing.T, id string, delays ...int64) *models.Flow {
	t.Helper()
	var steps []models.RecordedStep
	for i, d := range delays {
		steps = append(steps, models.RecordedStep{
			ID:    fmt.Sprintf("s%d", i),
			Type:  models.StepClick,
			Delay: d,
			Target: models.ElementSelector{
				CSS:     fmt.Sprintf("#btn-%d", i),
				TagName: "button",
			},
		})
	}
	flow := &models.Flow{ID: id, Name: "test", StartURL: "https://example.com"}
	require.NoError(t, flow.SetSteps(steps))
	return flow
}

func newTestPlayer(flows ...*models.Flow) (*Player, *fakeNav, *fakeRunner) {
	store := &fakeStore{flows: map[string]*models.Flow{}}
	for _, f := range flows {
		store.flows[f.ID] = f
	}
	nav := &fakeNav{}
	runner := &fakeRunner{}
	p := New(store, nav, runner, nil)
	p.pacingFloor = time.Millisecond
	return p, nav, runner
}

func waitResult(t *testing.T, p *Player) Result {
	t.Helper()
	select {
	case res := <-p.Wait():
		return res
	case <-time.After(5 * time.Second):
		t.Fatal("playback did not finish in time")
		return Result{}
	}
}

func TestPlayRunsAllSteps(t *testing.T) {
	p, nav, runner := newTestPlayer(testFlow(t, "f1", 0, 0, 0))

	opts := models.DefaultPlaybackOptions()
	require.NoError(t, p.Play(context.Background(), "f1", opts))

	res := waitResult(t, p)
	assert.Equal(t, "passed", res.Status)
	assert.Equal(t, 3, res.StepsCompleted)
	assert.Equal(t, 3, res.StepsTotal)
	assert.Equal(t, 3, runner.count())
	assert.Equal(t, []string{"https://example.com"}, nav.urls)

	st := p.State()
	assert.False(t, st.IsPlaying)
}

func TestStopOnErrorAbortsAtFailingStep(t *testing.T) {
	p, _, runner := newTestPlayer(testFlow(t, "f1", 0, 0, 0))
	runner.failAt = map[int]error{2: errors.New("element vanished")}

	opts := models.DefaultPlaybackOptions() // StopOnError true
	require.NoError(t, p.Play(context.Background(), "f1", opts))

	res := waitResult(t, p)
	assert.Equal(t, "failed", res.Status)
	assert.Equal(t, 1, res.StepsCompleted)
	assert.ErrorContains(t, res.Err, "element vanished")
	assert.Equal(t, 2, runner.count())
}

func TestContinueOnErrorRunsToTheEnd(t *testing.T) {
	p, _, runner := newTestPlayer(testFlow(t, "f1", 0, 0, 0))
	runner.failAt = map[int]error{2: errors.New("element vanished")}

	opts := models.DefaultPlaybackOptions()
	opts.StopOnError = false
	require.NoError(t, p.Play(context.Background(), "f1", opts))

	res := waitResult(t, p)
	assert.Equal(t, "passed", res.Status)
	assert.Equal(t, 3, res.StepsCompleted)
	assert.Equal(t, 3, runner.count())
	assert.NoError(t, res.Err)
}

func TestNavigationFailureAbortsEvenWhenContinuingOnError(t *testing.T) {
	p, _, runner := newTestPlayer(testFlow(t, "f1", 0, 0, 0))
	runner.failAt = map[int]error{2: fmt.Errorf("%w: target unreachable", ErrNavigationFailed)}

	opts := models.DefaultPlaybackOptions()
	opts.StopOnError = false
	require.NoError(t, p.Play(context.Background(), "f1", opts))

	res := waitResult(t, p)
	assert.Equal(t, "failed", res.Status)
	assert.Equal(t, 1, res.StepsCompleted)
	assert.ErrorIs(t, res.Err, ErrNavigationFailed)
	assert.Equal(t, 2, runner.count())
}

func TestPauseAndResume(t *testing.T) {
	p, _, runner := newTestPlayer(testFlow(t, "f1", 0, 400, 400))

	require.NoError(t, p.Play(context.Background(), "f1", models.DefaultPlaybackOptions()))

	// Let the first step land, then pause inside the pacing gap.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, p.Pause())
	time.Sleep(100 * time.Millisecond)

	st := p.State()
	assert.True(t, st.IsPlaying)
	assert.True(t, st.IsPaused)
	assert.Equal(t, 1, runner.count())

	// Paused sessions make no progress.
	time.Sleep(600 * time.Millisecond)
	assert.Equal(t, 1, runner.count())

	require.NoError(t, p.Resume())
	res := waitResult(t, p)
	assert.Equal(t, "passed", res.Status)
	assert.Equal(t, 3, runner.count())
}

func TestStopCancelsSession(t *testing.T) {
	p, _, runner := newTestPlayer(testFlow(t, "f1", 0, 500, 500))

	require.NoError(t, p.Play(context.Background(), "f1", models.DefaultPlaybackOptions()))
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, p.Stop())

	res := waitResult(t, p)
	assert.Equal(t, "cancelled", res.Status)
	assert.Equal(t, 1, res.StepsCompleted)
	assert.Equal(t, 1, runner.count())
	assert.False(t, p.State().IsPlaying)
}

func TestStepByStepWaitsForAdvance(t *testing.T) {
	p, _, runner := newTestPlayer(testFlow(t, "f1", 0, 0))

	opts := models.DefaultPlaybackOptions()
	opts.StepByStep = true
	require.NoError(t, p.Play(context.Background(), "f1", opts))

	// Nothing runs until the first advance.
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 0, runner.count())

	require.NoError(t, p.Advance())
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, runner.count())

	require.NoError(t, p.Advance())
	res := waitResult(t, p)
	assert.Equal(t, "passed", res.Status)
	assert.Equal(t, 2, runner.count())
}

func TestSecondPlayWhileRunningIsRejected(t *testing.T) {
	p, _, _ := newTestPlayer(testFlow(t, "f1", 0, 500, 500))

	require.NoError(t, p.Play(context.Background(), "f1", models.DefaultPlaybackOptions()))
	err := p.Play(context.Background(), "f1", models.DefaultPlaybackOptions())
	assert.ErrorIs(t, err, ErrBusy)

	require.NoError(t, p.Stop())
	waitResult(t, p)
}

func TestPlayRejectsUnknownAndEmptyFlows(t *testing.T) {
	empty := &models.Flow{ID: "empty", StartURL: "https://example.com"}
	require.NoError(t, empty.SetSteps(nil))
	p, _, _ := newTestPlayer(empty)

	assert.Error(t, p.Play(context.Background(), "missing", models.DefaultPlaybackOptions()))
	assert.Error(t, p.Play(context.Background(), "empty", models.DefaultPlaybackOptions()))
}

func TestControlsRequireActiveSession(t *testing.T) {
	p, _, _ := newTestPlayer()

	assert.ErrorIs(t, p.Pause(), ErrNotPlaying)
	assert.ErrorIs(t, p.Stop(), ErrNotPlaying)
	assert.ErrorIs(t, p.Advance(), ErrNotPlaying)
}

func TestPacingScalesWithSpeedAndFloors(t *testing.T) {
	p, _, _ := newTestPlayer()
	p.pacingFloor = DefaultPacingFloor

	assert.Equal(t, 500*time.Millisecond, p.pacing(1000, 2.0))
	assert.Equal(t, 2*time.Second, p.pacing(1000, 0.5))
	// Below the floor, the floor wins.
	assert.Equal(t, DefaultPacingFloor, p.pacing(50, 1.0))
	assert.Equal(t, DefaultPacingFloor, p.pacing(1000, 100.0))
}

func TestContextCancellationStopsPlayback(t *testing.T) {
	p, _, _ := newTestPlayer(testFlow(t, "f1", 0, 500, 500))

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, p.Play(ctx, "f1", models.DefaultPlaybackOptions()))
	time.Sleep(100 * time.Millisecond)
	cancel()

	res := waitResult(t, p)
	assert.Equal(t, "cancelled", res.Status)
}
