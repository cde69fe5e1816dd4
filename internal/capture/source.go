package capture

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"os/exec"
)

// Source yields PCM16 frames from whatever digitizes the microphone. The
// engine never talks to audio hardware itself.
type Source interface {
	Start(ctx context.Context) error
	// ReadFrame blocks for the next frame; io.EOF ends the stream.
	ReadFrame() ([]int16, error)
	Stop() error
}

// CommandSource runs an external capture program (arecord, sox, ffmpeg) that
// writes raw little-endian PCM16 to stdout.
type CommandSource struct {
	args         []string
	frameSamples int
	cmd          *exec.Cmd
	out          io.ReadCloser
}

// NewCommandSource builds a source around the given command line. frameSamples
// is the number of samples per frame handed to the session.
func NewCommandSource(args []string, frameSamples int) *CommandSource {
	if frameSamples <= 0 {
		frameSamples = 1024
	}
	return &CommandSource{args: args, frameSamples: frameSamples}
}

func (c *CommandSource) Start(ctx context.Context) error {
	if len(c.args) == 0 {
		return errors.New("no capture command configured")
	}
	cmd := exec.CommandContext(ctx, c.args[0], c.args[1:]...)
	out, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return err
	}
	c.cmd = cmd
	c.out = out
	return nil
}

func (c *CommandSource) ReadFrame() ([]int16, error) {
	buf := make([]byte, c.frameSamples*2)
	n, err := io.ReadFull(c.out, buf)
	if n < 2 {
		if err == nil {
			err = io.EOF
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			err = io.EOF
		}
		return nil, err
	}
	frame := make([]int16, n/2)
	for i := range frame {
		frame[i] = int16(binary.LittleEndian.Uint16(buf[i*2:]))
	}
	// A short read means the stream ended mid-frame; deliver what arrived and
	// report EOF on the next call.
	return frame, nil
}

func (c *CommandSource) Stop() error {
	if c.cmd == nil {
		return nil
	}
	if c.cmd.Process != nil {
		_ = c.cmd.Process.Kill()
	}
	err := c.cmd.Wait()
	c.cmd = nil
	// The capture program is killed on purpose; its exit status is noise.
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}
