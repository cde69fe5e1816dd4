package capture

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func testOptions(t *testing.T) Options {
	t.Helper()
	return Options{Dir: t.TempDir(), SampleRate: 16000, Channels: 1}
}

func TestSessionFinalizeProducesWav(t *testing.T) {
	opts := testOptions(t)
	s := NewSession(opts, nil)
	if err := s.Begin(); err != nil {
		t.Fatalf("begin: %v", err)
	}

	frame := make([]int16, 1024)
	for i := range frame {
		frame[i] = int16(i % 256)
	}
	for i := 0; i < 4; i++ {
		if err := s.AppendFrame(frame); err != nil {
			t.Fatalf("append frame %d: %v", i, err)
		}
	}

	path, err := s.Finalize()
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}

	wantData := 4 * 1024 * 2
	if len(data) != wavHeaderSize+wantData {
		t.Fatalf("artifact size = %d, want %d", len(data), wavHeaderSize+wantData)
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		t.Fatal("missing RIFF/WAVE magic")
	}
	if got := binary.LittleEndian.Uint32(data[40:44]); got != uint32(wantData) {
		t.Fatalf("data chunk size = %d, want %d", got, wantData)
	}
	if got := binary.LittleEndian.Uint32(data[24:28]); got != 16000 {
		t.Fatalf("sample rate = %d, want 16000", got)
	}

	// No partial file remains.
	if _, err := os.Stat(path + ".partial"); !os.IsNotExist(err) {
		t.Fatal("partial file left behind after finalize")
	}
}

func TestSessionAbortLeavesNoArtifact(t *testing.T) {
	opts := testOptions(t)
	s := NewSession(opts, nil)
	if err := s.Begin(); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := s.AppendFrame(make([]int16, 512)); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.Abort(); err != nil {
		t.Fatalf("abort: %v", err)
	}

	entries, err := os.ReadDir(opts.Dir)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	for _, e := range entries {
		t.Fatalf("unexpected artifact after abort: %s", filepath.Join(opts.Dir, e.Name()))
	}

	// Idempotent, and frames after abort are dropped without error.
	if err := s.Abort(); err != nil {
		t.Fatalf("second abort: %v", err)
	}
	if err := s.AppendFrame(make([]int16, 512)); err != nil {
		t.Fatalf("append after abort: %v", err)
	}
}

func TestSessionSilenceSignal(t *testing.T) {
	opts := testOptions(t)
	opts.SilenceEnabled = true
	opts.SilenceThreshold = 0.01
	opts.SilenceWindow = 0 // fire on the first quiet frame
	opts.MinRecord = 0

	fired := make(chan StopReason, 1)
	s := NewSession(opts, func(r StopReason) { fired <- r })
	if err := s.Begin(); err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer s.Abort()

	if err := s.AppendFrame(make([]int16, 1024)); err != nil {
		t.Fatalf("append: %v", err)
	}
	select {
	case r := <-fired:
		if r != StopSilence {
			t.Fatalf("reason = %v, want StopSilence", r)
		}
	case <-time.After(time.Second):
		t.Fatal("silence signal never fired")
	}

	// The signal fires once per session.
	if err := s.AppendFrame(make([]int16, 1024)); err != nil {
		t.Fatalf("append: %v", err)
	}
	select {
	case <-fired:
		t.Fatal("silence signal fired twice")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSessionMaxDurationSignal(t *testing.T) {
	opts := testOptions(t)
	opts.MaxRecord = time.Second

	fired := make(chan StopReason, 1)
	s := NewSession(opts, func(r StopReason) { fired <- r })
	if err := s.Begin(); err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer s.Abort()

	// Loud audio, so the cap fires without any silence involved.
	frame := make([]int16, 16000)
	for i := range frame {
		frame[i] = 12000
	}
	if err := s.AppendFrame(frame); err != nil {
		t.Fatalf("append: %v", err)
	}
	select {
	case r := <-fired:
		if r != StopMaxDuration {
			t.Fatalf("reason = %v, want StopMaxDuration", r)
		}
	case <-time.After(time.Second):
		t.Fatal("max duration signal never fired")
	}
}

func TestSessionDuration(t *testing.T) {
	opts := testOptions(t)
	s := NewSession(opts, nil)
	if err := s.Begin(); err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer s.Abort()

	// 16000 samples at 16kHz mono is one second.
	if err := s.AppendFrame(make([]int16, 16000)); err != nil {
		t.Fatalf("append: %v", err)
	}
	if got := s.Duration(); got != time.Second {
		t.Fatalf("duration = %v, want 1s", got)
	}
}

func TestFinalizeRequiresRecording(t *testing.T) {
	s := NewSession(testOptions(t), nil)
	if _, err := s.Finalize(); err == nil {
		t.Fatal("finalize before begin should fail")
	}
}
