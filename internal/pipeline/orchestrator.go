// Package pipeline sequences one voice capture through transcription,
// capsule generation, storage and indexing, and exposes follow-on actions
// against stored insights.
package pipeline

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"sync"

	"github.com/ryan258/insight-capsule/internal/capture"
	"github.com/ryan258/insight-capsule/internal/domain"
	"github.com/ryan258/insight-capsule/internal/generation"
	"github.com/ryan258/insight-capsule/internal/store"
	"github.com/ryan258/insight-capsule/internal/vectorindex"
)

// State is the orchestrator's externally visible state.
type State int

const (
	StateIdle State = iota
	StateRecording
	StateProcessing
)

func (s State) String() string {
	switch s {
	case StateRecording:
		return "recording"
	case StateProcessing:
		return "processing"
	default:
		return "idle"
	}
}

// Config tunes the orchestrator.
type Config struct {
	Capture           capture.Options
	PreferLocal       bool
	AutoStopOnSilence bool // whether the session's silence signal is honored
}

// Orchestrator is the top-level state machine. All state transitions are
// linearized behind one mutex; transcription, generation, storage and
// indexing run on background goroutines so the capture path never blocks on
// them. Exactly one capture/processing run is active at a time; searches and
// drafting actions are independent of that.
type Orchestrator struct {
	cfg           Config
	transcriber   domain.Transcriber
	generator     domain.Generator
	embedder      domain.Embedder
	store         *store.Store
	index         *vectorindex.Index
	sourceFactory func() capture.Source
	registry      *Registry
	logger        *log.Logger

	mu       sync.Mutex
	state    State
	session  *capture.Session
	source   capture.Source
	pumpDone chan struct{}

	bg sync.WaitGroup
}

// New constructs an orchestrator. sourceFactory may be nil when frames are
// appended by the host directly (tests, pre-recorded audio).
func New(cfg Config, transcriber domain.Transcriber, generator domain.Generator, embedder domain.Embedder, st *store.Store, index *vectorindex.Index, sourceFactory func() capture.Source, logger *log.Logger) *Orchestrator {
	if logger == nil {
		logger = log.Default()
	}
	return &Orchestrator{
		cfg:           cfg,
		transcriber:   transcriber,
		generator:     generator,
		embedder:      embedder,
		store:         st,
		index:         index,
		sourceFactory: sourceFactory,
		registry:      NewRegistry(logger),
		logger:        logger,
	}
}

// Subscribe registers a lifecycle event listener.
func (o *Orchestrator) Subscribe(buffer int) (<-chan domain.Event, func()) {
	return o.registry.Subscribe(buffer)
}

// State returns the current pipeline state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Session returns the active capture session, if any. Exposed so hosts
// without a frame source can append frames themselves.
func (o *Orchestrator) Session() *capture.Session {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.session
}

// StartCapture begins a new recording. Valid only from Idle; any other state
// fails with domain.ErrBusy.
func (o *Orchestrator) StartCapture(ctx context.Context) error {
	o.mu.Lock()
	if o.state != StateIdle {
		o.mu.Unlock()
		return domain.ErrBusy
	}

	var sess *capture.Session
	sess = capture.NewSession(o.cfg.Capture, func(reason capture.StopReason) {
		// Silence is advisory; the duration cap is not.
		if reason == capture.StopSilence && !o.cfg.AutoStopOnSilence {
			return
		}
		o.logger.Printf("[pipeline] auto-stopping (%s)", stopReasonString(reason))
		if err := o.stop(context.Background(), sess); err != nil {
			o.logger.Printf("[pipeline] auto-stop: %v", err)
		}
	})
	if err := sess.Begin(); err != nil {
		o.mu.Unlock()
		return err
	}

	var src capture.Source
	if o.sourceFactory != nil {
		src = o.sourceFactory()
		if err := src.Start(ctx); err != nil {
			sess.Abort()
			o.mu.Unlock()
			return &domain.AudioCaptureError{Op: "start source", Err: err}
		}
	}

	o.session = sess
	o.source = src
	o.state = StateRecording
	done := make(chan struct{})
	o.pumpDone = done
	o.mu.Unlock()

	o.registry.Publish(domain.Event{Kind: domain.EventRecordingStarted})
	if src != nil {
		go o.pump(sess, src, done)
	} else {
		close(done)
	}
	return nil
}

// StopCapture finalizes the active recording and hands the artifact to the
// processing worker. Valid only while Recording.
func (o *Orchestrator) StopCapture(ctx context.Context) error {
	return o.stop(ctx, nil)
}

// stop finalizes the run. A non-nil sess restricts the stop to that session,
// so a stale silence signal cannot stop a later recording.
func (o *Orchestrator) stop(ctx context.Context, sess *capture.Session) error {
	o.mu.Lock()
	if o.state != StateRecording || (sess != nil && sess != o.session) {
		o.mu.Unlock()
		return domain.ErrNotRecording
	}
	// Claim the run before touching the source; the pump's failure path
	// becomes a no-op from here on.
	o.state = StateProcessing
	active := o.session
	src := o.source
	done := o.pumpDone
	o.mu.Unlock()

	if src != nil {
		if err := src.Stop(); err != nil {
			o.logger.Printf("[pipeline] stopping source: %v", err)
		}
	}
	<-done // drain: every frame the source produced is in the session

	audioPath, err := active.Finalize()
	if err != nil {
		o.finishRun()
		o.registry.Publish(domain.Event{Kind: domain.EventFailed, Err: err})
		return err
	}

	o.registry.Publish(domain.Event{Kind: domain.EventRecordingStopped})
	o.bg.Add(1)
	go o.process(ctx, audioPath)
	return nil
}

// Abort cancels the active recording, discarding audio. No insight is
// created and no artifact remains.
func (o *Orchestrator) Abort() error {
	o.mu.Lock()
	if o.state != StateRecording {
		o.mu.Unlock()
		return domain.ErrNotRecording
	}
	o.state = StateProcessing
	sess := o.session
	src := o.source
	done := o.pumpDone
	o.mu.Unlock()

	if src != nil {
		_ = src.Stop()
	}
	<-done
	_ = sess.Abort()
	o.finishRun()
	o.registry.Publish(domain.Event{Kind: domain.EventFailed, Err: domain.ErrCaptureAborted})
	return nil
}

// RequestAction generates a draft of the given kind against a stored insight
// and appends it to the record. Independent of capture state.
func (o *Orchestrator) RequestAction(ctx context.Context, insightID, actionKind string) (string, error) {
	ins, err := o.store.Load(insightID)
	if err != nil {
		return "", err
	}
	req, err := generation.RequestForAction(actionKind, ins, o.cfg.PreferLocal)
	if err != nil {
		return "", err
	}
	text, err := o.generator.Generate(ctx, req)
	if err != nil {
		return "", err
	}
	if err := o.store.AppendDraft(insightID, domain.Draft{Kind: actionKind, Text: text}); err != nil {
		return "", err
	}
	return text, nil
}

// Wait blocks until background processing and indexing work has drained.
func (o *Orchestrator) Wait() {
	o.bg.Wait()
}

// Close waits for background work and releases all listeners.
func (o *Orchestrator) Close() {
	o.bg.Wait()
	o.registry.Close()
}

// pump moves frames from the source into the session. It is the single
// writer to the session buffer.
func (o *Orchestrator) pump(sess *capture.Session, src capture.Source, done chan struct{}) {
	defer close(done)
	for {
		frame, err := src.ReadFrame()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				// Reads fail with a closed-pipe error on a deliberate stop;
				// failCapture sorts real failures from that.
				o.failCapture(sess, &domain.AudioCaptureError{Op: "read frame", Err: err})
			}
			return
		}
		if err := sess.AppendFrame(frame); err != nil {
			o.failCapture(sess, err)
			return
		}
	}
}

// failCapture tears down a still-recording run after a capture error. If the
// run was already claimed by stop or Abort, it does nothing.
func (o *Orchestrator) failCapture(sess *capture.Session, cause error) {
	o.mu.Lock()
	if o.state != StateRecording || o.session != sess {
		o.mu.Unlock()
		return
	}
	o.state = StateProcessing
	src := o.source
	o.mu.Unlock()

	if src != nil {
		_ = src.Stop()
	}
	_ = sess.Abort()
	o.finishRun()
	o.logger.Printf("[pipeline] capture failed: %v", cause)
	o.registry.Publish(domain.Event{Kind: domain.EventFailed, Err: cause})
}

// process runs transcription, generation and storage for one finalized
// artifact, then kicks off asynchronous indexing.
func (o *Orchestrator) process(ctx context.Context, audioPath string) {
	defer o.bg.Done()

	o.registry.Publish(domain.Event{Kind: domain.EventStageChanged, Stage: domain.StageTranscribing})
	transcript, err := o.transcriber.Transcribe(ctx, audioPath)
	if err != nil {
		// Source audio is retained so the user can retry manually.
		o.finishRun()
		o.registry.Publish(domain.Event{Kind: domain.EventFailed, Err: err})
		return
	}
	if strings.TrimSpace(transcript) == "" {
		transcript = "User provided silent or very short audio."
	}

	ins := &domain.Insight{
		Title:           deriveTitle(transcript),
		Tags:            store.ExtractTags(transcript),
		Transcript:      transcript,
		SourceAudioPath: audioPath,
	}

	o.registry.Publish(domain.Event{Kind: domain.EventStageChanged, Stage: domain.StageGenerating})
	capsule, genErr := o.generator.Generate(ctx, generation.CapsuleRequest(transcript, o.cfg.PreferLocal))
	if genErr != nil {
		// Generation exhausted its fallback chain. The transcript is still
		// saved so the raw capture is not lost.
		if _, serr := o.store.Save(ins); serr != nil {
			o.logger.Printf("[pipeline] saving transcript after generation failure: %v", serr)
		}
		o.finishRun()
		o.registry.Publish(domain.Event{Kind: domain.EventFailed, InsightID: ins.ID, Err: genErr})
		return
	}
	ins.Capsule = capsule

	o.registry.Publish(domain.Event{Kind: domain.EventStageChanged, Stage: domain.StageStoring})
	id, err := o.store.Save(ins)
	if err != nil {
		o.logger.Printf("[pipeline] transcript for unsaved capture %s:\n%s", audioPath, transcript)
		o.finishRun()
		o.registry.Publish(domain.Event{Kind: domain.EventFailed, Err: err})
		return
	}

	o.finishRun()
	o.registry.Publish(domain.Event{Kind: domain.EventComplete, InsightID: id})

	// Indexing is asynchronous relative to completion; a failure here only
	// delays searchability until the next rebuild.
	o.bg.Add(1)
	go o.indexInsight(ins)
}

func (o *Orchestrator) indexInsight(ins *domain.Insight) {
	defer o.bg.Done()
	o.registry.Publish(domain.Event{Kind: domain.EventStageChanged, Stage: domain.StageIndexing, InsightID: ins.ID})
	vec, err := o.embedder.Embed(context.Background(), vectorindex.DocumentText(ins))
	if err != nil {
		o.logger.Printf("[pipeline] embedding %s: %v", ins.ID, err)
		return
	}
	rec := domain.VectorRecord{
		InsightID: ins.ID,
		Embedding: vec,
		Meta:      domain.VectorMeta{Title: ins.Title, Tags: ins.Tags, CreatedAt: ins.CreatedAt},
	}
	if err := o.index.Add(rec); err != nil {
		o.logger.Printf("[pipeline] indexing %s: %v", ins.ID, err)
	}
}

func (o *Orchestrator) finishRun() {
	o.mu.Lock()
	o.state = StateIdle
	o.session = nil
	o.source = nil
	o.pumpDone = nil
	o.mu.Unlock()
}

func stopReasonString(r capture.StopReason) string {
	if r == capture.StopMaxDuration {
		return "max duration"
	}
	return "silence"
}

const titleWords = 5

// deriveTitle takes the first few words of the transcript.
func deriveTitle(transcript string) string {
	words := strings.Fields(transcript)
	if len(words) == 0 {
		return "Untitled Insight"
	}
	if len(words) <= titleWords {
		return strings.Join(words, " ")
	}
	return strings.Join(words[:titleWords], " ") + "..."
}
