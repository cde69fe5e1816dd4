package capture

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ryan258/insight-capsule/internal/domain"
)

// State is the lifecycle state of a capture session.
type State int

const (
	StateIdle State = iota
	StateRecording
	StateFinalizing
)

// Options configures a capture session.
type Options struct {
	Dir        string // directory for audio artifacts
	SampleRate int
	Channels   int

	SilenceEnabled   bool
	SilenceThreshold float64
	SilenceWindow    time.Duration
	MinRecord        time.Duration // silence is ignored before this much audio
	MaxRecord        time.Duration // hard cap on buffered audio; 0 disables
}

// StopReason says why a session asked to be stopped.
type StopReason int

const (
	StopSilence StopReason = iota
	StopMaxDuration
)

// Session owns one recording's audio buffer between Begin and
// Finalize/Abort. Frames are appended by a single writer; Abort may be called
// concurrently from the orchestrator at any point after Begin.
type Session struct {
	id         string
	opts       Options
	onAutoStop func(StopReason)

	mu        sync.Mutex
	state     State
	startedAt time.Time
	recorded  time.Duration
	tmpPath   string
	finalPath string
	f         *os.File
	w         *wavWriter
	det       *Detector
	fired     bool
}

// NewSession creates an idle session. onAutoStop, if non-nil, is invoked once
// (in its own goroutine) when sustained silence is detected or the max
// duration is reached; honoring a silence signal is the caller's decision.
func NewSession(opts Options, onAutoStop func(StopReason)) *Session {
	if opts.SampleRate == 0 {
		opts.SampleRate = 16000
	}
	if opts.Channels == 0 {
		opts.Channels = 1
	}
	s := &Session{
		id:         uuid.NewString(),
		opts:       opts,
		onAutoStop: onAutoStop,
	}
	if opts.SilenceEnabled {
		s.det = NewDetector(opts.SilenceThreshold, opts.SilenceWindow)
	}
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// StartedAt returns when Begin was called.
func (s *Session) StartedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startedAt
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Begin opens the partial audio artifact and moves the session to Recording.
func (s *Session) Begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateIdle {
		return &domain.AudioCaptureError{Op: "begin", Err: errors.New("session already started")}
	}
	if err := os.MkdirAll(s.opts.Dir, 0o755); err != nil {
		return &domain.AudioCaptureError{Op: "begin", Err: err}
	}
	s.tmpPath = filepath.Join(s.opts.Dir, fmt.Sprintf("capture-%s.wav.partial", s.id))
	s.finalPath = filepath.Join(s.opts.Dir, fmt.Sprintf("capture-%s.wav", s.id))
	f, err := os.OpenFile(s.tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return &domain.AudioCaptureError{Op: "begin", Err: err}
	}
	w, err := newWavWriter(f, s.opts.SampleRate, s.opts.Channels)
	if err != nil {
		f.Close()
		os.Remove(s.tmpPath)
		return &domain.AudioCaptureError{Op: "begin", Err: err}
	}
	s.f = f
	s.w = w
	s.state = StateRecording
	s.startedAt = time.Now()
	return nil
}

// AppendFrame buffers one PCM16 frame. Frames arriving after the session left
// Recording (a concurrent Abort, or a Finalize already in flight) are dropped
// without error.
func (s *Session) AppendFrame(frame []int16) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateRecording {
		return nil
	}
	if err := s.w.writeFrame(frame); err != nil {
		return &domain.AudioCaptureError{Op: "append", Err: err}
	}
	s.recorded += s.frameDuration(len(frame))

	if s.opts.MaxRecord > 0 && !s.fired && s.recorded >= s.opts.MaxRecord {
		s.fire(StopMaxDuration)
		return nil
	}
	if s.det != nil && !s.fired && s.recorded >= s.opts.MinRecord {
		if s.det.Feed(RMS(frame), time.Now()) {
			s.fire(StopSilence)
		}
	}
	return nil
}

// fire signals the auto-stop callback once per session. Caller holds s.mu.
func (s *Session) fire(reason StopReason) {
	s.fired = true
	if s.onAutoStop != nil {
		// Own goroutine: the callback typically re-enters the orchestrator,
		// which will call back into this session.
		go s.onAutoStop(reason)
	}
}

// Finalize flushes the buffer, seals the WAV header and renames the partial
// file to its durable name. Returns the artifact path.
func (s *Session) Finalize() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateRecording {
		return "", &domain.AudioCaptureError{Op: "finalize", Err: errors.New("session not recording")}
	}
	s.state = StateFinalizing
	if err := s.w.finish(); err != nil {
		s.discardLocked()
		return "", &domain.AudioCaptureError{Op: "finalize", Err: err}
	}
	if err := s.f.Close(); err != nil {
		s.discardLocked()
		return "", &domain.AudioCaptureError{Op: "finalize", Err: err}
	}
	s.f = nil
	if err := os.Rename(s.tmpPath, s.finalPath); err != nil {
		os.Remove(s.tmpPath)
		s.state = StateIdle
		return "", &domain.AudioCaptureError{Op: "finalize", Err: err}
	}
	s.state = StateIdle
	return s.finalPath, nil
}

// Abort discards the buffer and removes any partial artifact. Safe to call at
// any point after Begin, and idempotent.
func (s *Session) Abort() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.discardLocked()
	s.state = StateIdle
	return nil
}

// Duration returns how much audio has been buffered so far.
func (s *Session) Duration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recorded
}

func (s *Session) discardLocked() {
	if s.f != nil {
		s.f.Close()
		s.f = nil
	}
	if s.tmpPath != "" {
		os.Remove(s.tmpPath)
	}
}

func (s *Session) frameDuration(samples int) time.Duration {
	perChannel := samples / s.opts.Channels
	if perChannel <= 0 {
		return 0
	}
	return time.Duration(perChannel) * time.Second / time.Duration(s.opts.SampleRate)
}
