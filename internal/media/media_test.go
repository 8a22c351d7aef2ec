package media

import (
	"context"
	"encoding/binary"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spigell/interview-guard/internal/integrity"
)

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func sine(freq float64, amplitude float64, rate int, d time.Duration) *AudioChunk {
	n := int(d.Seconds() * float64(rate))
	samples := make([]float64, n)
	for i := range samples {
		samples[i] = amplitude * math.Sin(2*math.Pi*freq*float64(i)/float64(rate))
	}
	return &AudioChunk{SampleRate: rate, Samples: samples}
}

func TestPixelDelta(t *testing.T) {
	t.Parallel()

	a := Downsample(solid(640, 480, color.RGBA{R: 100, G: 100, B: 100, A: 255}), ThumbnailWidth, ThumbnailHeight)
	b := Downsample(solid(320, 240, color.RGBA{R: 160, G: 130, B: 100, A: 255}), ThumbnailWidth, ThumbnailHeight)

	same, err := PixelDelta(a, a)
	if err != nil || same != 0 {
		t.Fatalf("expected zero delta, got %v (%v)", same, err)
	}

	delta, err := PixelDelta(a, b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(delta-30) > 0.5 {
		t.Fatalf("expected delta 30, got %v", delta)
	}

	if _, err := PixelDelta(a, Downsample(solid(10, 10, color.RGBA{}), 8, 8)); !errors.Is(err, integrity.ErrInvalidInput) {
		t.Fatalf("expected size mismatch error, got %v", err)
	}
}

func TestRegionMean(t *testing.T) {
	t.Parallel()

	img := solid(100, 100, color.RGBA{R: 10, G: 10, B: 10, A: 255})
	for y := 65; y < 90; y++ {
		for x := 35; x < 65; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 200, G: 50, B: 25, A: 255})
		}
	}

	got := RegionMean(img, ChestRegion)
	want := integrity.Color{R: 200, G: 50, B: 25}
	if got.Distance(want) > 0.01 {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}

func TestSpectralProfile(t *testing.T) {
	t.Parallel()

	if p := SpectralProfile(&AudioChunk{SampleRate: 16000, Samples: make([]float64, 100)}); !p.IsZero() {
		t.Fatalf("expected short chunk to have no profile, got %+v", p)
	}

	silence := SpectralProfile(&AudioChunk{SampleRate: 16000, Samples: make([]float64, 8192)})
	if silence.AverageVolume != 0 {
		t.Fatalf("expected silence to have zero volume, got %v", silence.AverageVolume)
	}

	low := SpectralProfile(sine(500, 0.5, 16000, time.Second))
	high := SpectralProfile(sine(3000, 0.5, 16000, time.Second))
	if high.SpectralCentroid-low.SpectralCentroid <= 20 {
		t.Fatalf("expected higher tone to move the centroid: low=%v high=%v", low.SpectralCentroid, high.SpectralCentroid)
	}

	quiet := SpectralProfile(sine(500, 0.01, 16000, time.Second))
	if low.AverageVolume <= quiet.AverageVolume {
		t.Fatalf("expected louder tone to have higher volume: loud=%v quiet=%v", low.AverageVolume, quiet.AverageVolume)
	}
}

func TestChunker(t *testing.T) {
	t.Parallel()

	c := NewChunker(6 * time.Second)
	at := time.Unix(100, 0)
	var segment *AudioChunk
	for i := 0; i < 3; i++ {
		tick := sine(440, 0.3, 8000, 2*time.Second)
		tick.CapturedAt = at.Add(time.Duration(i) * 2 * time.Second)
		segment = c.Add(tick)
		if i < 2 && segment != nil {
			t.Fatalf("segment emitted too early at tick %d", i)
		}
	}

	if segment == nil {
		t.Fatalf("expected a segment after six seconds")
	}
	if segment.Duration() != 6*time.Second {
		t.Fatalf("expected 6s segment, got %s", segment.Duration())
	}
	if !segment.CapturedAt.Equal(at) {
		t.Fatalf("expected segment to start at first capture")
	}
}

func TestDirSource(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	for i, c := range []color.RGBA{{R: 255, A: 255}, {G: 255, A: 255}} {
		f, err := os.Create(filepath.Join(dir, []string{"a.png", "b.png"}[i]))
		if err != nil {
			t.Fatalf("create frame: %v", err)
		}
		if err := png.Encode(f, solid(64, 48, c)); err != nil {
			t.Fatalf("encode frame: %v", err)
		}
		f.Close()
	}

	audioPath := filepath.Join(dir, "voice.wav")
	if err := os.WriteFile(audioPath, sine(440, 0.5, 8000, time.Second).WAV(), 0o644); err != nil {
		t.Fatalf("write wav: %v", err)
	}

	src := NewDirSource(dir, audioPath)
	ctx := context.Background()
	if err := src.Open(ctx); err != nil {
		t.Fatalf("open: %v", err)
	}

	first, err := src.Frame(ctx)
	if err != nil || !first.Stable() {
		t.Fatalf("expected first frame, got %v", err)
	}
	second, _ := src.Frame(ctx)
	third, _ := src.Frame(ctx)
	if RegionMean(first.Image, ChestRegion).Distance(RegionMean(second.Image, ChestRegion)) < 100 {
		t.Fatalf("expected frames to alternate")
	}
	if RegionMean(first.Image, ChestRegion).Distance(RegionMean(third.Image, ChestRegion)) > 1 {
		t.Fatalf("expected frames to loop")
	}
	if _, err := first.JPEG(); err != nil {
		t.Fatalf("expected png frame to encode as jpeg: %v", err)
	}

	chunk, err := src.Audio(ctx, 2500*time.Millisecond)
	if err != nil {
		t.Fatalf("audio: %v", err)
	}
	if chunk.SampleRate != 8000 || len(chunk.Samples) != 20000 {
		t.Fatalf("unexpected chunk: rate=%d samples=%d", chunk.SampleRate, len(chunk.Samples))
	}
	if math.Abs(chunk.Samples[1]-0.5*math.Sin(2*math.Pi*440/8000)) > 0.001 {
		t.Fatalf("unexpected decoded sample %v", chunk.Samples[1])
	}

	src.Close()
	if _, err := src.Frame(ctx); !errors.Is(err, ErrPermissionRevoked) {
		t.Fatalf("expected revoked permission after close, got %v", err)
	}
}

func TestDirSourceMissing(t *testing.T) {
	t.Parallel()

	err := NewDirSource(filepath.Join(t.TempDir(), "none"), "").Open(context.Background())
	if !errors.Is(err, integrity.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestWAVHeader(t *testing.T) {
	t.Parallel()

	chunk := &AudioChunk{SampleRate: 8000, Samples: []float64{0, 1, -1, 2}}
	out := chunk.WAV()

	if len(out) != 44+8 {
		t.Fatalf("expected 52 bytes, got %d", len(out))
	}
	if string(out[0:4]) != "RIFF" || string(out[8:16]) != "WAVEfmt " || string(out[36:40]) != "data" {
		t.Fatalf("unexpected chunk ids: %q", out[:40])
	}
	le := binary.LittleEndian
	if got := le.Uint32(out[24:28]); got != 8000 {
		t.Fatalf("unexpected sample rate %d", got)
	}
	if got := le.Uint32(out[40:44]); got != 8 {
		t.Fatalf("unexpected data length %d", got)
	}
	if got := int16(le.Uint16(out[46:48])); got != math.MaxInt16 {
		t.Fatalf("expected full-scale sample, got %d", got)
	}
	if got := int16(le.Uint16(out[50:52])); got != math.MaxInt16 {
		t.Fatalf("expected clipped sample, got %d", got)
	}
}
