package encoder

import (
	"bytes"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"voicenotes/internal/domain"
)

func block(samples ...float32) domain.SampleBlock {
	return domain.SampleBlock{Samples: samples, Timestamp: time.Now(), FrameCount: len(samples)}
}

func TestPCM16ClampsAndScales(t *testing.T) {
	t.Parallel()

	out := pcm16([]float32{0, 1, -1, 2, -2, 0.5})
	want := []int16{0, 32767, -32767, 32767, -32767, 16383}
	if len(out) != len(want) {
		t.Fatalf("unexpected length: %d", len(out))
	}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("sample %d: got %d, want %d", i, out[i], want[i])
		}
	}
}

func TestRawCodecPassthrough(t *testing.T) {
	t.Parallel()

	codec := NewRawCodec()
	if codec.Format() != "wav" {
		t.Fatalf("unexpected format: %q", codec.Format())
	}

	out, err := codec.Encode([]int16{0x0102, -1})
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if !bytes.Equal(out, []byte{0x02, 0x01, 0xFF, 0xFF}) {
		t.Fatalf("unexpected bytes: %v", out)
	}

	tail, err := codec.Flush()
	if err != nil {
		t.Fatalf("flush failed: %v", err)
	}
	if len(tail) != 0 {
		t.Fatalf("raw codec flush should be empty, got %d bytes", len(tail))
	}
}

func TestMP3CodecRejectsUnsupportedRate(t *testing.T) {
	t.Parallel()

	if _, err := NewMP3Codec(11025); err == nil {
		t.Fatalf("expected unsupported sample rate error")
	}
	if _, err := NewMP3Codec(44100); err != nil {
		t.Fatalf("44100 should be supported: %v", err)
	}
}

func TestEncoderFallsBackToRawOnCodecFailure(t *testing.T) {
	t.Parallel()

	enc := New(12345, zerolog.Nop())
	if enc.Format() != "wav" {
		t.Fatalf("expected raw fallback, got %q", enc.Format())
	}

	enc.Push(block(0.5, -0.5))
	out := enc.Drain()
	if len(out) != 4 {
		t.Fatalf("expected 4 pcm bytes, got %d", len(out))
	}
}

func TestEncoderDrainIsNonBlockingAndClears(t *testing.T) {
	t.Parallel()

	enc := NewWithCodec(NewRawCodec())
	if out := enc.Drain(); out != nil {
		t.Fatalf("empty encoder drained %d bytes", len(out))
	}

	enc.Push(block(0.1, 0.2, 0.3))
	first := enc.Drain()
	if len(first) != 6 {
		t.Fatalf("expected 6 bytes, got %d", len(first))
	}
	if second := enc.Drain(); second != nil {
		t.Fatalf("second drain returned %d bytes", len(second))
	}
}

func TestEncoderFlushReturnsUndrainedBytes(t *testing.T) {
	t.Parallel()

	enc := NewWithCodec(NewRawCodec())
	enc.Push(block(0.1))
	out := enc.Flush()
	if len(out) != 2 {
		t.Fatalf("expected 2 bytes from flush, got %d", len(out))
	}
	if again := enc.Flush(); len(again) != 0 {
		t.Fatalf("second flush returned %d bytes", len(again))
	}
}

func TestMP3CodecBuffersPartialFrames(t *testing.T) {
	t.Parallel()

	codec, err := NewMP3Codec(44100)
	if err != nil {
		t.Fatalf("codec init failed: %v", err)
	}

	// Less than one granule: nothing to emit yet.
	out, err := codec.Encode(make([]int16, mp3FrameSamples/2))
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("partial frame emitted %d bytes", len(out))
	}

	// Crossing the granule boundary produces compressed output.
	out, err = codec.Encode(make([]int16, mp3FrameSamples))
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if len(out) == 0 {
		t.Fatalf("expected compressed frame output")
	}

	tail, err := codec.Flush()
	if err != nil {
		t.Fatalf("flush failed: %v", err)
	}
	if len(tail) == 0 {
		t.Fatalf("expected padded final frame from flush")
	}
}
