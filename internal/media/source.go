package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // register decoders
	_ "image/png"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/go-audio/wav"

	"github.com/spigell/interview-guard/internal/integrity"
)

// ErrPermissionRevoked is returned when camera or microphone access goes away
// mid-session. The monitor stops on it.
var ErrPermissionRevoked = errors.New("media permission revoked")

// Source provides camera frames and microphone audio for one session.
type Source interface {
	// Open acquires the devices. A failure here means permission was not granted.
	Open(ctx context.Context) error
	// Frame captures the current video frame.
	Frame(ctx context.Context) (*Frame, error)
	// Audio captures the next d of microphone audio. A nil chunk means no
	// microphone is attached.
	Audio(ctx context.Context, d time.Duration) (*AudioChunk, error)
	// Close releases all media handles.
	Close() error
}

// DirSource replays still images from a directory as camera frames and a WAV
// file as microphone input, looping both.
type DirSource struct {
	dir       string
	audioPath string
	now       func() time.Time

	mu       sync.Mutex
	frames   []string
	next     int
	samples  []float64
	rate     int
	audioPos int
	open     bool
}

// NewDirSource creates a replay source. audioPath may be empty.
func NewDirSource(dir, audioPath string) *DirSource {
	return &DirSource{dir: dir, audioPath: audioPath, now: time.Now}
}

func (s *DirSource) Open(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("%w: camera unavailable: %v", integrity.ErrInvalidInput, err)
	}

	s.frames = s.frames[:0]
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".jpg", ".jpeg", ".png":
			s.frames = append(s.frames, filepath.Join(s.dir, e.Name()))
		}
	}
	slices.Sort(s.frames)

	if len(s.frames) == 0 {
		return fmt.Errorf("%w: camera unavailable: no frames in %s", integrity.ErrInvalidInput, s.dir)
	}

	if s.audioPath != "" {
		samples, rate, err := readWAV(s.audioPath)
		if err != nil {
			return fmt.Errorf("%w: microphone unavailable: %v", integrity.ErrInvalidInput, err)
		}
		s.samples, s.rate = samples, rate
	}

	s.open = true
	return nil
}

func (s *DirSource) Frame(_ context.Context) (*Frame, error) {
	s.mu.Lock()
	if !s.open {
		s.mu.Unlock()
		return nil, ErrPermissionRevoked
	}
	path := s.frames[s.next%len(s.frames)]
	s.next++
	s.mu.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		if _, statErr := os.Stat(s.dir); os.IsNotExist(statErr) {
			return nil, ErrPermissionRevoked
		}
		return nil, fmt.Errorf("%w: read frame %s: %v", integrity.ErrInvalidInput, path, err)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: corrupt frame %s: %v", integrity.ErrInvalidInput, path, err)
	}

	frame := &Frame{Image: img, CapturedAt: s.now()}
	if format == "jpeg" {
		frame.Encoded = data
	}
	return frame, nil
}

func (s *DirSource) Audio(_ context.Context, d time.Duration) (*AudioChunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.open {
		return nil, ErrPermissionRevoked
	}
	if len(s.samples) == 0 {
		return nil, nil
	}

	n := int(d.Seconds() * float64(s.rate))
	out := make([]float64, 0, n)
	for len(out) < n {
		take := min(n-len(out), len(s.samples)-s.audioPos)
		out = append(out, s.samples[s.audioPos:s.audioPos+take]...)
		s.audioPos = (s.audioPos + take) % len(s.samples)
	}

	return &AudioChunk{SampleRate: s.rate, Samples: out, CapturedAt: s.now()}, nil
}

func (s *DirSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = false
	return nil
}

// readWAV decodes a PCM WAV file into mono samples in [-1, 1].
func readWAV(path string) ([]float64, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, 0, fmt.Errorf("%s is not a valid wav file", path)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("decode %s: %w", path, err)
	}

	channels := max(1, buf.Format.NumChannels)
	scale := float64(int(1) << (max(buf.SourceBitDepth, 8) - 1))
	samples := make([]float64, 0, len(buf.Data)/channels)
	for i := 0; i+channels <= len(buf.Data); i += channels {
		var sum float64
		for c := 0; c < channels; c++ {
			sum += float64(buf.Data[i+c])
		}
		samples = append(samples, sum/float64(channels)/scale)
	}

	if len(samples) == 0 {
		return nil, 0, fmt.Errorf("%s holds no audio", path)
	}
	return samples, buf.Format.SampleRate, nil
}
