package capture

import (
	"encoding/binary"
	"os"
)

// wavWriter streams PCM16 frames into a RIFF/WAVE file. The header is written
// with placeholder sizes and patched in finish, so a file is only a valid WAV
// once the session finalizes it.
type wavWriter struct {
	f          *os.File
	sampleRate int
	channels   int
	dataBytes  int
}

const wavHeaderSize = 44

func newWavWriter(f *os.File, sampleRate, channels int) (*wavWriter, error) {
	w := &wavWriter{f: f, sampleRate: sampleRate, channels: channels}
	if err := w.writeHeader(0); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *wavWriter) writeHeader(dataBytes int) error {
	var h [wavHeaderSize]byte
	le := binary.LittleEndian

	copy(h[0:4], "RIFF")
	le.PutUint32(h[4:8], uint32(wavHeaderSize-8+dataBytes))
	copy(h[8:12], "WAVE")

	copy(h[12:16], "fmt ")
	le.PutUint32(h[16:20], 16)
	le.PutUint16(h[20:22], 1) // PCM
	le.PutUint16(h[22:24], uint16(w.channels))
	le.PutUint32(h[24:28], uint32(w.sampleRate))
	le.PutUint32(h[28:32], uint32(w.sampleRate*w.channels*2))
	le.PutUint16(h[32:34], uint16(w.channels*2))
	le.PutUint16(h[34:36], 16)

	copy(h[36:40], "data")
	le.PutUint32(h[40:44], uint32(dataBytes))

	if _, err := w.f.WriteAt(h[:], 0); err != nil {
		return err
	}
	return nil
}

func (w *wavWriter) writeFrame(frame []int16) error {
	buf := make([]byte, len(frame)*2)
	for i, s := range frame {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	if _, err := w.f.WriteAt(buf, int64(wavHeaderSize+w.dataBytes)); err != nil {
		return err
	}
	w.dataBytes += len(buf)
	return nil
}

// finish patches the header sizes and syncs the file to disk.
func (w *wavWriter) finish() error {
	if err := w.writeHeader(w.dataBytes); err != nil {
		return err
	}
	return w.f.Sync()
}
