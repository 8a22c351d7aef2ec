package media

import (
	"encoding/binary"
	"math"
	"math/cmplx"
	"time"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/spigell/interview-guard/internal/integrity"
)

const (
	// fftSize matches a browser analyser node so thresholds keep their meaning.
	fftSize     = 2048
	minDecibels = -100.0
	maxDecibels = -30.0
)

// AudioChunk is mono PCM audio normalized to [-1, 1].
type AudioChunk struct {
	SampleRate int
	Samples    []float64
	CapturedAt time.Time
}

// Duration of the chunk.
func (a *AudioChunk) Duration() time.Duration {
	if a == nil || a.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(a.Samples)) * time.Second / time.Duration(a.SampleRate)
}

// WAV encodes the chunk as 16-bit PCM mono.
func (a *AudioChunk) WAV() []byte {
	dataLen := len(a.Samples) * 2
	le := binary.LittleEndian

	out := make([]byte, 0, 44+dataLen)
	out = append(out, "RIFF"...)
	out = le.AppendUint32(out, uint32(36+dataLen))
	out = append(out, "WAVEfmt "...)
	out = le.AppendUint32(out, 16)
	out = le.AppendUint16(out, 1) // PCM
	out = le.AppendUint16(out, 1) // mono
	out = le.AppendUint32(out, uint32(a.SampleRate))
	out = le.AppendUint32(out, uint32(a.SampleRate*2))
	out = le.AppendUint16(out, 2)
	out = le.AppendUint16(out, 16)
	out = append(out, "data"...)
	out = le.AppendUint32(out, uint32(dataLen))

	for _, s := range a.Samples {
		s = math.Max(-1, math.Min(1, s))
		out = le.AppendUint16(out, uint16(int16(s*math.MaxInt16)))
	}

	return out
}

// SpectralProfile computes the average analyser volume (0..255) and the
// spectral centroid (in FFT bins) of the chunk.
func SpectralProfile(a *AudioChunk) integrity.VoiceProfile {
	if a == nil || len(a.Samples) < fftSize {
		return integrity.VoiceProfile{}
	}

	fft := fourier.NewFFT(fftSize)
	window := blackman(fftSize)
	bins := fftSize / 2
	levels := make([]float64, bins)
	frame := make([]float64, fftSize)
	var coeff []complex128
	frames := 0

	for start := 0; start+fftSize <= len(a.Samples); start += fftSize {
		for i := range frame {
			frame[i] = a.Samples[start+i] * window[i]
		}
		coeff = fft.Coefficients(coeff, frame)
		for i := 0; i < bins; i++ {
			levels[i] += analyserLevel(cmplx.Abs(coeff[i]) / fftSize)
		}
		frames++
	}

	var sum, weighted float64
	for i := range levels {
		levels[i] /= float64(frames)
		sum += levels[i]
		weighted += float64(i) * levels[i]
	}

	profile := integrity.VoiceProfile{AverageVolume: sum / float64(bins)}
	if sum > 0 {
		profile.SpectralCentroid = weighted / sum
	}
	return profile
}

// analyserLevel maps a magnitude onto the 0..255 byte scale.
func analyserLevel(mag float64) float64 {
	if mag <= 0 {
		return 0
	}
	db := 20 * math.Log10(mag)
	level := 255 * (db - minDecibels) / (maxDecibels - minDecibels)
	return math.Max(0, math.Min(255, level))
}

func blackman(n int) []float64 {
	const alpha = 0.16
	a0, a1, a2 := (1-alpha)/2, 0.5, alpha/2
	w := make([]float64, n)
	for i := range w {
		x := 2 * math.Pi * float64(i) / float64(n)
		w[i] = a0 - a1*math.Cos(x) + a2*math.Cos(2*x)
	}
	return w
}

// Chunker accumulates short captures into fixed-length segments for voice
// verification, independent of the visual tick.
type Chunker struct {
	segment time.Duration
	rate    int
	buf     []float64
	started time.Time
}

// NewChunker creates a chunker producing segments of the given length.
func NewChunker(segment time.Duration) *Chunker {
	return &Chunker{segment: segment}
}

// Add appends audio and returns a full segment when one is ready.
// A sample rate change discards the partial segment.
func (c *Chunker) Add(a *AudioChunk) *AudioChunk {
	if a == nil || len(a.Samples) == 0 || a.SampleRate <= 0 {
		return nil
	}

	if c.rate != a.SampleRate {
		c.rate = a.SampleRate
		c.buf = c.buf[:0]
	}
	if len(c.buf) == 0 {
		c.started = a.CapturedAt
	}
	c.buf = append(c.buf, a.Samples...)

	need := int(c.segment.Seconds() * float64(c.rate))
	if len(c.buf) < need {
		return nil
	}

	out := &AudioChunk{
		SampleRate: c.rate,
		Samples:    append([]float64(nil), c.buf[:need]...),
		CapturedAt: c.started,
	}
	rest := copy(c.buf, c.buf[need:])
	c.buf = c.buf[:rest]
	c.started = a.CapturedAt
	return out
}
