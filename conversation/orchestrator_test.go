package conversation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"echo/core"
	"echo/diary"
	"echo/prompt"
	"echo/providers"
	"echo/runner"
	"echo/session"
	"echo/templates"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(call string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, call)
}

func (l *callLog) reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = nil
}

func (l *callLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

type loggingStore struct {
	*session.MemoryStore
	log *callLog
}

func (s loggingStore) Initialize(ctx context.Context, userID string) (*session.Session, error) {
	s.log.add("initialize")
	return s.MemoryStore.Initialize(ctx, userID)
}

func (s loggingStore) Get(userID string) (*session.Session, error) {
	s.log.add("get")
	return s.MemoryStore.Get(userID)
}

type loggingPrompts struct {
	*prompt.Assembler
	log *callLog
}

func (p loggingPrompts) BuildSystemPrompt(ctx context.Context, sess *session.Session) (string, error) {
	p.log.add("system_prompt")
	return p.Assembler.BuildSystemPrompt(ctx, sess)
}

func (p loggingPrompts) BuildConversationPrompt(ctx context.Context, sess *session.Session, msg string) (string, error) {
	p.log.add("conversation_prompt")
	return p.Assembler.BuildConversationPrompt(ctx, sess, msg)
}

type fakeTranscriber struct {
	log  *callLog
	text string
	err  error
}

func (f *fakeTranscriber) Transcribe(_ context.Context, in core.AudioInput) (string, error) {
	f.log.add("transcribe")
	if len(in.Data) == 0 {
		return "", core.NewValidationError("audio", "file is empty")
	}
	return f.text, f.err
}

type fakeResponder struct {
	mu          sync.Mutex
	log         *callLog
	greeting    string
	reply       string
	err         error
	instruction string
	lastPrompt  string
}

func (f *fakeResponder) GenerateGreeting(_ context.Context, _ string, instruction string) (string, error) {
	f.log.add("greeting")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.instruction = instruction
	return f.greeting, f.err
}

func (f *fakeResponder) GenerateResponse(_ context.Context, p string) (string, error) {
	f.log.add("response")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastPrompt = p
	return f.reply, f.err
}

type fakeSynthesizer struct {
	mu     sync.Mutex
	log    *callLog
	err    error
	voices []core.VoiceSettings
}

func (f *fakeSynthesizer) Synthesize(_ context.Context, text string, voice core.VoiceSettings) ([]byte, error) {
	f.log.add("synthesize")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.voices = append(f.voices, voice)
	if f.err != nil {
		return nil, f.err
	}
	return []byte("audio:" + text), nil
}

type fakeDiary struct {
	mu    sync.Mutex
	err   error
	snaps []session.Snapshot
}

func (f *fakeDiary) GenerateAndSave(_ context.Context, snap session.Snapshot) (*diary.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snaps = append(f.snaps, snap)
	if f.err != nil {
		return nil, f.err
	}
	return &diary.Entry{ID: "d1", UserID: snap.UserID}, nil
}

type harness struct {
	orch     *Orchestrator
	store    *session.MemoryStore
	runner   *runner.Runner
	log      *callLog
	stt      *fakeTranscriber
	model    *fakeResponder
	tts      *fakeSynthesizer
	diary    *fakeDiary
	failures *failureLog
}

type failureLog struct {
	mu    sync.Mutex
	tasks []string
}

func (f *failureLog) record(name string, _ error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks = append(f.tasks, name)
}

func (f *failureLog) names() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.tasks...)
}

func newHarness(t *testing.T, seed bool, runnerConfig runner.Config) *harness {
	t.Helper()
	tplStore := templates.NewMemoryStore()
	if seed {
		_, err := templates.Seed(context.Background(), tplStore, templates.DefaultSeed())
		require.NoError(t, err)
	}

	log := &callLog{}
	h := &harness{
		store:    session.NewMemoryStore(providers.NewStatic(providers.DefaultFixtures()).Set(), session.WithLogger(core.NopLogger())),
		runner:   runner.NewRunner(runnerConfig, core.NopLogger()),
		log:      log,
		stt:      &fakeTranscriber{log: log, text: "오늘 산책 다녀왔어요"},
		model:    &fakeResponder{log: log, greeting: "영호님, 좋은 아침이에요!", reply: "산책 좋으셨겠어요."},
		tts:      &fakeSynthesizer{log: log},
		diary:    &fakeDiary{},
		failures: &failureLog{},
	}
	h.runner.OnFailure = h.failures.record
	t.Cleanup(func() { h.runner.Stop(context.Background()) })

	orch, err := NewOrchestrator(Dependencies{
		Sessions:    loggingStore{MemoryStore: h.store, log: log},
		Prompts:     loggingPrompts{Assembler: prompt.NewAssembler(tplStore, prompt.Korean), log: log},
		Transcriber: h.stt,
		Responder:   h.model,
		Synthesizer: h.tts,
		Diaries:     h.diary,
		Runner:      h.runner,
	}, core.NopLogger())
	require.NoError(t, err)
	h.orch = orch
	return h
}

func audioClip() core.AudioInput {
	return core.AudioInput{Data: []byte("clip"), MimeType: core.MimeTypeWebM}
}

func TestStart(t *testing.T) {
	h := newHarness(t, true, runner.DefaultConfig())

	res, err := h.orch.Start(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, "영호님, 좋은 아침이에요!", res.Message)
	assert.Equal(t, []byte("audio:영호님, 좋은 아침이에요!"), res.Audio)
	assert.False(t, res.Timestamp.IsZero())

	assert.Equal(t, []string{"initialize", "system_prompt", "greeting", "synthesize"}, h.log.snapshot())
	assert.Equal(t, "대화를 시작해주세요.", h.model.instruction)
	assert.Equal(t, core.VoiceSettings{Speed: 0.9, Tone: core.VoiceToneWarm}, h.tts.voices[0])

	h.runner.Drain()
	sess, err := h.store.Get("1")
	require.NoError(t, err)
	history := sess.History()
	require.Len(t, history, 1)
	assert.Nil(t, history[0].UserMessage)
	assert.Equal(t, "영호님, 좋은 아침이에요!", history[0].AIResponse)
}

func TestMessage(t *testing.T) {
	h := newHarness(t, true, runner.DefaultConfig())
	ctx := context.Background()

	_, err := h.orch.Start(ctx, "1")
	require.NoError(t, err)
	h.runner.Drain()
	h.log.reset()

	res, err := h.orch.Message(ctx, "1", audioClip())
	require.NoError(t, err)
	assert.Equal(t, "오늘 산책 다녀왔어요", res.UserMessage)
	assert.Equal(t, "산책 좋으셨겠어요.", res.AIResponse)
	assert.Equal(t, []byte("audio:산책 좋으셨겠어요."), res.Audio)

	assert.Equal(t, []string{"get", "transcribe", "conversation_prompt", "response", "synthesize"}, h.log.snapshot())
	assert.Contains(t, h.model.lastPrompt, "영호님, 좋은 아침이에요!")
	assert.Contains(t, h.model.lastPrompt, "오늘 산책 다녀왔어요")

	h.runner.Drain()
	sess, err := h.store.Get("1")
	require.NoError(t, err)
	history := sess.History()
	require.Len(t, history, 2)
	require.NotNil(t, history[1].UserMessage)
	assert.Equal(t, "오늘 산책 다녀왔어요", *history[1].UserMessage)
	assert.Equal(t, "산책 좋으셨겠어요.", history[1].AIResponse)
}

func TestMessageWithoutSessionMakesNoExternalCalls(t *testing.T) {
	h := newHarness(t, true, runner.DefaultConfig())

	_, err := h.orch.Message(context.Background(), "nobody", audioClip())
	require.ErrorIs(t, err, core.ErrNotFound)
	assert.Contains(t, err.Error(), "nobody")
	assert.Equal(t, []string{"get"}, h.log.snapshot())
}

func TestMessageValidationStopsBeforeModel(t *testing.T) {
	h := newHarness(t, true, runner.DefaultConfig())
	_, err := h.orch.Start(context.Background(), "1")
	require.NoError(t, err)
	h.log.reset()

	_, err = h.orch.Message(context.Background(), "1", core.AudioInput{MimeType: core.MimeTypeWAV})
	assert.Equal(t, core.KindValidation, core.KindOf(err))
	assert.Equal(t, []string{"get", "transcribe"}, h.log.snapshot())
}

func TestUpstreamFailuresPropagateWithoutAppending(t *testing.T) {
	h := newHarness(t, true, runner.DefaultConfig())
	h.tts.err = core.NewProcessingError(core.PhaseTTS, errors.New("clova down"))

	_, err := h.orch.Start(context.Background(), "1")
	require.Error(t, err)
	phase, ok := core.PhaseOf(err)
	require.True(t, ok)
	assert.Equal(t, core.PhaseTTS, phase)

	h.runner.Drain()
	sess, err := h.store.Get("1")
	require.NoError(t, err)
	assert.Empty(t, sess.History())
}

func TestOverlongReplyIsTTSFailure(t *testing.T) {
	h := newHarness(t, true, runner.DefaultConfig())
	_, err := h.orch.Start(context.Background(), "1")
	require.NoError(t, err)

	h.tts.err = core.NewValidationError("text", "exceeds 2000 characters")
	_, err = h.orch.Message(context.Background(), "1", audioClip())
	require.Error(t, err)
	assert.Equal(t, core.KindUpstream, core.KindOf(err))
	assert.NotErrorIs(t, err, core.ErrValidation)
	phase, ok := core.PhaseOf(err)
	require.True(t, ok)
	assert.Equal(t, core.PhaseTTS, phase)
	assert.ErrorContains(t, err, "exceeds 2000 characters")
}

func TestConcurrentMessagesAppendEveryTurn(t *testing.T) {
	h := newHarness(t, true, runner.DefaultConfig())
	ctx := context.Background()
	_, err := h.orch.Start(ctx, "1")
	require.NoError(t, err)
	h.runner.Drain()

	const n = 16
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.orch.Message(ctx, "1", audioClip())
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	h.runner.Drain()
	sess, err := h.store.Get("1")
	require.NoError(t, err)
	history := sess.History()
	require.Len(t, history, n+1)
	for _, turn := range history[1:] {
		require.NotNil(t, turn.UserMessage)
		assert.Equal(t, "산책 좋으셨겠어요.", turn.AIResponse)
	}
	assert.Empty(t, h.failures.names())
}

func TestConcurrentMessagesAndEnd(t *testing.T) {
	h := newHarness(t, true, runner.DefaultConfig())
	ctx := context.Background()
	_, err := h.orch.Start(ctx, "1")
	require.NoError(t, err)

	const n = 16
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.orch.Message(ctx, "1", audioClip())
			errs <- err
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := h.orch.End(ctx, "1")
		assert.NoError(t, err)
	}()
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			assert.ErrorIs(t, err, core.ErrNotFound)
		}
	}

	h.runner.Drain()
	assert.Empty(t, h.failures.names(), "appends racing end are dropped quietly")
	assert.Equal(t, 0, h.store.Len())
	h.diary.mu.Lock()
	assert.Len(t, h.diary.snaps, 1)
	h.diary.mu.Unlock()
}

func TestStartWithoutTemplatesIsConfigurationMissing(t *testing.T) {
	h := newHarness(t, false, runner.DefaultConfig())

	_, err := h.orch.Start(context.Background(), "1")
	require.ErrorIs(t, err, core.ErrConfigurationMissing)
	assert.Equal(t, []string{"initialize", "system_prompt"}, h.log.snapshot())
}

func TestEnd(t *testing.T) {
	h := newHarness(t, true, runner.DefaultConfig())
	ctx := context.Background()

	_, err := h.orch.Start(ctx, "1")
	require.NoError(t, err)
	h.runner.Drain()
	_, err = h.orch.Message(ctx, "1", audioClip())
	require.NoError(t, err)
	h.runner.Drain()

	res, err := h.orch.End(ctx, "1")
	require.NoError(t, err)
	assert.False(t, res.EndedAt.IsZero())

	_, err = h.store.Get("1")
	assert.ErrorIs(t, err, core.ErrNotFound)

	h.runner.Drain()
	require.Len(t, h.diary.snaps, 1)
	assert.Equal(t, "1", h.diary.snaps[0].UserID)
	assert.Len(t, h.diary.snaps[0].History, 2)
	assert.Empty(t, h.failures.names())
}

func TestEndUnknownUser(t *testing.T) {
	h := newHarness(t, true, runner.DefaultConfig())
	_, err := h.orch.End(context.Background(), "ghost")
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.Empty(t, h.diary.snaps)
}

func TestEndSwallowsDiaryFailure(t *testing.T) {
	h := newHarness(t, true, runner.DefaultConfig())
	h.diary.err = errors.New("diary store offline")

	_, err := h.orch.Start(context.Background(), "1")
	require.NoError(t, err)
	h.runner.Drain()

	_, err = h.orch.End(context.Background(), "1")
	require.NoError(t, err)
	h.runner.Drain()

	assert.Equal(t, []string{taskDiary}, h.failures.names())
	assert.Equal(t, 0, h.store.Len())
}

func TestAppendAfterEndIsSwallowed(t *testing.T) {
	h := newHarness(t, true, runner.Config{MaxConcurrent: 1})

	// hold the only slot so the greeting append queues behind it
	release := make(chan struct{})
	h.runner.Go("block", func(context.Context) error {
		<-release
		return nil
	})

	_, err := h.orch.Start(context.Background(), "1")
	require.NoError(t, err)
	_, err = h.orch.End(context.Background(), "1")
	require.NoError(t, err)

	close(release)
	h.runner.Drain()

	assert.Empty(t, h.failures.names())
	// the diary saw the session before the greeting landed
	require.Len(t, h.diary.snaps, 1)
	assert.Empty(t, h.diary.snaps[0].History)
}

func TestStartReplacesExistingSession(t *testing.T) {
	h := newHarness(t, true, runner.DefaultConfig())
	ctx := context.Background()

	_, err := h.orch.Start(ctx, "1")
	require.NoError(t, err)
	h.runner.Drain()
	_, err = h.orch.Start(ctx, "1")
	require.NoError(t, err)
	h.runner.Drain()

	sess, err := h.store.Get("1")
	require.NoError(t, err)
	assert.Len(t, sess.History(), 1)
	assert.Equal(t, 1, h.store.Len())
}

func TestReapIdle(t *testing.T) {
	h := newHarness(t, true, runner.DefaultConfig())
	ctx := context.Background()

	_, err := h.orch.Start(ctx, "1")
	require.NoError(t, err)
	_, err = h.orch.Start(ctx, "2")
	require.NoError(t, err)
	h.runner.Drain()

	assert.Equal(t, 0, h.orch.ReapIdle(ctx, time.Hour))

	h.orch.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	assert.Equal(t, 2, h.orch.ReapIdle(ctx, time.Hour))
	assert.Equal(t, 0, h.store.Len())

	h.runner.Drain()
	assert.Len(t, h.diary.snaps, 2)
}

func TestRunIdleReaperDisabled(t *testing.T) {
	h := newHarness(t, true, runner.DefaultConfig())
	done := make(chan struct{})
	go func() {
		h.orch.RunIdleReaper(context.Background(), time.Millisecond, 0)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reaper with idle <= 0 should return immediately")
	}
}

func TestNewOrchestratorRequiresCollaborators(t *testing.T) {
	_, err := NewOrchestrator(Dependencies{}, core.NopLogger())
	assert.Error(t, err)
}
