package engine

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"awsbot/app/config"
	"awsbot/app/service/memory"
	"awsbot/app/service/metrics"
	"awsbot/app/service/queue"
	"awsbot/app/service/workflow"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoRunner appends the user text and an echo reply.
type echoRunner struct {
	mu       sync.Mutex
	err      error
	audio    bool
	delay    time.Duration
	inFlight int
	overlap  bool
}

func (r *echoRunner) Run(_ context.Context, state *workflow.State, text string) (*workflow.State, error) {
	if r.err != nil {
		return nil, r.err
	}

	r.mu.Lock()
	r.inFlight++
	if r.inFlight > 1 {
		r.overlap = true
	}
	r.mu.Unlock()

	time.Sleep(r.delay)

	r.mu.Lock()
	r.inFlight--
	r.mu.Unlock()

	next := state.Clone()
	next.Messages = append(next.Messages,
		workflow.NewMessage(workflow.RoleUser, text),
		workflow.NewMessage(workflow.RoleAssistant, "echo: "+text),
	)
	next.ResponseType = workflow.ResponseText
	if r.audio {
		next.ResponseType = workflow.ResponseAudio
		next.AudioBuffer = []byte("mp3")
	}

	return next, nil
}

type fakeTranscriber struct {
	enabled bool
	text    string
	err     error
}

func (f *fakeTranscriber) Enabled() bool { return f.enabled }

func (f *fakeTranscriber) Transcribe(_ context.Context, audio io.Reader) (string, error) {
	if _, err := io.ReadAll(audio); err != nil {
		return "", err
	}
	return f.text, f.err
}

type sent struct {
	chatID int64
	text   string
	voice  []byte
}

type fakeSender struct {
	mu    sync.Mutex
	sent  []sent
	files map[string]string
}

func (f *fakeSender) SendText(_ context.Context, chatID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sent{chatID: chatID, text: text})
	return nil
}

func (f *fakeSender) SendVoice(_ context.Context, chatID int64, audio []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sent{chatID: chatID, voice: audio})
	return nil
}

func (f *fakeSender) SendTyping(context.Context, int64) error { return nil }

func (f *fakeSender) DownloadFile(_ context.Context, fileID string) (io.ReadCloser, error) {
	content, ok := f.files[fileID]
	if !ok {
		return nil, errors.New("file not found")
	}
	return io.NopCloser(bytes.NewBufferString(content)), nil
}

func (f *fakeSender) messages() []sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sent(nil), f.sent...)
}

type failingStore struct {
	memory.Store
}

func (failingStore) Save(context.Context, string, *workflow.State) error {
	return errors.New("disk full")
}

func testConfig() config.Workflow {
	return config.Workflow{
		TurnTimeout:     time.Second,
		FallbackMessage: "sorry",
		Workers:         4,
	}
}

func newTestService(t *testing.T, runner Runner, transcriber Transcriber) (*Service, memory.Store, *queue.Service, *metrics.Service) {
	store, err := memory.NewFileStore(t.TempDir())
	require.NoError(t, err)

	queueSvc := queue.NewService(16)
	metricsSvc := metrics.NewService()

	return NewService(testConfig(), runner, store, transcriber, queueSvc, metricsSvc), store, queueSvc, metricsSvc
}

func TestHandleTurn_PersistsOnSuccess(t *testing.T) {
	svc, store, _, metricsSvc := newTestService(t, &echoRunner{}, &fakeTranscriber{})

	out, err := svc.HandleTurn(context.Background(), "c1", "hello")
	require.NoError(t, err)
	require.Len(t, out.Messages, 2)

	saved, err := store.Load(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, out.Messages, saved.Messages)

	out, err = svc.HandleTurn(context.Background(), "c1", "again")
	require.NoError(t, err)
	assert.Len(t, out.Messages, 4)

	assert.Equal(t, 2.0, testutil.ToFloat64(metricsSvc.Turns("ok", "text")))
}

func TestHandleTurn_FailureKeepsStoredState(t *testing.T) {
	runner := &echoRunner{}
	svc, store, _, metricsSvc := newTestService(t, runner, &fakeTranscriber{})

	_, err := svc.HandleTurn(context.Background(), "c1", "hello")
	require.NoError(t, err)

	runner.err = workflow.ErrInvalidResponseType
	out, err := svc.HandleTurn(context.Background(), "c1", "boom")
	require.ErrorIs(t, err, workflow.ErrInvalidResponseType)
	assert.Nil(t, out)

	saved, err := store.Load(context.Background(), "c1")
	require.NoError(t, err)
	assert.Len(t, saved.Messages, 2)

	assert.Equal(t, 1.0, testutil.ToFloat64(metricsSvc.Turns("error", "none")))
}

func TestHandleTurn_SaveFailureIsTurnFailure(t *testing.T) {
	store, err := memory.NewFileStore(t.TempDir())
	require.NoError(t, err)

	svc := NewService(testConfig(), &echoRunner{}, failingStore{store}, &fakeTranscriber{}, queue.NewService(1), metrics.NewService())

	_, err = svc.HandleTurn(context.Background(), "c1", "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestHandleTurn_SerializesSameConversation(t *testing.T) {
	runner := &echoRunner{delay: 10 * time.Millisecond}
	svc, store, _, _ := newTestService(t, runner, &fakeTranscriber{})

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.HandleTurn(context.Background(), "same", "hi")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.False(t, runner.overlap)

	saved, err := store.Load(context.Background(), "same")
	require.NoError(t, err)
	assert.Len(t, saved.Messages, 10)
	assert.Zero(t, svc.locks.size())
}

func runEngine(t *testing.T, svc *Service, queueSvc *queue.Service, sender *fakeSender, msgs ...queue.Message) {
	t.Helper()

	for _, msg := range msgs {
		require.True(t, queueSvc.Add(msg))
	}
	require.NoError(t, queueSvc.Shutdown())

	done := make(chan struct{})
	go func() {
		svc.Run(context.Background(), sender)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("engine did not stop")
	}
}

func TestRun_DeliversTextReply(t *testing.T) {
	svc, _, queueSvc, _ := newTestService(t, &echoRunner{}, &fakeTranscriber{})
	sender := &fakeSender{}

	runEngine(t, svc, queueSvc, sender, queue.Message{ConversationID: "tg:1", ChatID: 1, Text: "hi"})

	require.Len(t, sender.messages(), 1)
	assert.Equal(t, sent{chatID: 1, text: "echo: hi"}, sender.messages()[0])
}

func TestRun_DeliversVoiceReply(t *testing.T) {
	svc, _, queueSvc, _ := newTestService(t, &echoRunner{audio: true}, &fakeTranscriber{})
	sender := &fakeSender{}

	runEngine(t, svc, queueSvc, sender, queue.Message{ConversationID: "tg:1", ChatID: 1, Text: "hi"})

	require.Len(t, sender.messages(), 1)
	assert.Equal(t, []byte("mp3"), sender.messages()[0].voice)
}

func TestRun_TranscribesVoiceNotes(t *testing.T) {
	svc, store, queueSvc, _ := newTestService(t, &echoRunner{}, &fakeTranscriber{enabled: true, text: "what is iam"})
	sender := &fakeSender{files: map[string]string{"voice-1": "opus"}}

	runEngine(t, svc, queueSvc, sender, queue.Message{ConversationID: "tg:1", ChatID: 1, VoiceFileID: "voice-1"})

	require.Len(t, sender.messages(), 1)
	assert.Equal(t, "echo: what is iam", sender.messages()[0].text)

	saved, err := store.Load(context.Background(), "tg:1")
	require.NoError(t, err)
	assert.Equal(t, "what is iam", saved.Messages[0].Content)
}

func TestRun_FallbackOnFailures(t *testing.T) {
	cases := map[string]struct {
		runner      *echoRunner
		transcriber *fakeTranscriber
		msg         queue.Message
	}{
		"turn error": {
			runner:      &echoRunner{err: errors.New("model down")},
			transcriber: &fakeTranscriber{},
			msg:         queue.Message{ConversationID: "tg:2", ChatID: 2, Text: "hi"},
		},
		"voice disabled": {
			runner:      &echoRunner{},
			transcriber: &fakeTranscriber{},
			msg:         queue.Message{ConversationID: "tg:2", ChatID: 2, VoiceFileID: "v"},
		},
		"transcription error": {
			runner:      &echoRunner{},
			transcriber: &fakeTranscriber{enabled: true, err: errors.New("no speech")},
			msg:         queue.Message{ConversationID: "tg:2", ChatID: 2, VoiceFileID: "v"},
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			svc, _, queueSvc, _ := newTestService(t, tc.runner, tc.transcriber)
			sender := &fakeSender{files: map[string]string{"v": "opus"}}

			runEngine(t, svc, queueSvc, sender, tc.msg)

			require.Len(t, sender.messages(), 1)
			assert.Equal(t, "sorry", sender.messages()[0].text)
			assert.Equal(t, int64(2), sender.messages()[0].chatID)
		})
	}
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	svc, _, _, _ := newTestService(t, &echoRunner{}, &fakeTranscriber{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.Run(ctx, &fakeSender{})
		close(done)
	}()

	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("engine did not stop")
	}
}

func TestKeyedMutex_ReleasesKeys(t *testing.T) {
	locks := newKeyedMutex()

	unlockA, err := locks.Lock(context.Background(), "a")
	require.NoError(t, err)
	unlockB, err := locks.Lock(context.Background(), "b")
	require.NoError(t, err)
	assert.Equal(t, 2, locks.size())

	unlockA()
	unlockB()
	assert.Zero(t, locks.size())
}

func TestKeyedMutex_WaitStopsOnContext(t *testing.T) {
	locks := newKeyedMutex()

	unlock, err := locks.Lock(context.Background(), "a")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = locks.Lock(ctx, "a")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	assert.Zero(t, locks.size())

	unlock, err = locks.Lock(context.Background(), "a")
	require.NoError(t, err)
	unlock()
}

func TestHandleTurn_WaitingBehindSlowTurnTimesOut(t *testing.T) {
	runner := &echoRunner{delay: 300 * time.Millisecond}
	svc, store, _, metricsSvc := newTestService(t, runner, &fakeTranscriber{})
	svc.cfg.TurnTimeout = 100 * time.Millisecond

	slowDone := make(chan struct{})
	go func() {
		defer close(slowDone)
		_, _ = svc.HandleTurn(context.Background(), "busy", "slow")
	}()

	require.Eventually(t, func() bool {
		runner.mu.Lock()
		defer runner.mu.Unlock()
		return runner.inFlight == 1
	}, time.Second, time.Millisecond)

	start := time.Now()
	_, err := svc.HandleTurn(context.Background(), "busy", "queued")
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 250*time.Millisecond)

	<-slowDone

	saved, err := store.Load(context.Background(), "busy")
	require.NoError(t, err)
	assert.Len(t, saved.Messages, 2)
	assert.Equal(t, 1.0, testutil.ToFloat64(metricsSvc.Turns("error", "none")))
	assert.Zero(t, svc.locks.size())
}

func TestConversation_CancelledWhileBusy(t *testing.T) {
	svc, _, _, _ := newTestService(t, &echoRunner{}, &fakeTranscriber{})

	unlock, err := svc.locks.Lock(context.Background(), "c1")
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = svc.Conversation(ctx, "c1")
	require.ErrorIs(t, err, context.Canceled)
}
