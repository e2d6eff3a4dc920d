package encoder

import (
	"bytes"
	"testing"

	"voicenotes/internal/domain"
)

func collectChunks() (*[]domain.EncodedChunk, func(domain.EncodedChunk)) {
	chunks := &[]domain.EncodedChunk{}
	return chunks, func(c domain.EncodedChunk) {
		*chunks = append(*chunks, c)
	}
}

func TestSequencerNumbersAreContiguous(t *testing.T) {
	t.Parallel()

	chunks, emit := collectChunks()
	seq := NewChunkSequencer(MinChunkThreshold, emit)

	payload := bytes.Repeat([]byte{0xAB}, MinChunkThreshold)
	for i := 0; i < 3; i++ {
		seq.OnEncoderOutput(payload)
	}
	seq.OnEncoderOutput([]byte("tail"))
	seq.ForceFlush()

	if len(*chunks) != 4 {
		t.Fatalf("expected 4 chunks, got %d", len(*chunks))
	}
	for i, chunk := range *chunks {
		if chunk.Number != uint32(i+1) {
			t.Fatalf("chunk %d has number %d", i, chunk.Number)
		}
	}
	if (*chunks)[3].ByteSize != 4 {
		t.Fatalf("unexpected final chunk size: %d", (*chunks)[3].ByteSize)
	}
}

func TestSequencerEnforcesThresholdFloor(t *testing.T) {
	t.Parallel()

	chunks, emit := collectChunks()
	seq := NewChunkSequencer(1, emit)

	seq.OnEncoderOutput(bytes.Repeat([]byte{1}, MinChunkThreshold-1))
	if len(*chunks) != 0 {
		t.Fatalf("sub-floor accumulation must not emit, got %d chunks", len(*chunks))
	}

	seq.OnEncoderOutput([]byte{1})
	if len(*chunks) != 1 {
		t.Fatalf("expected threshold chunk, got %d", len(*chunks))
	}
	if (*chunks)[0].ByteSize != MinChunkThreshold {
		t.Fatalf("unexpected chunk size: %d", (*chunks)[0].ByteSize)
	}
}

func TestSequencerBelowThresholdEmitsOnlyOnForceFlush(t *testing.T) {
	t.Parallel()

	chunks, emit := collectChunks()
	seq := NewChunkSequencer(0, emit)

	seq.OnEncoderOutput([]byte("a little audio"))
	seq.OnEncoderOutput([]byte("a little more"))
	if len(*chunks) != 0 {
		t.Fatalf("expected no chunks before flush, got %d", len(*chunks))
	}

	seq.ForceFlush()
	if len(*chunks) != 1 {
		t.Fatalf("expected exactly one final chunk, got %d", len(*chunks))
	}
	if (*chunks)[0].Number != 1 {
		t.Fatalf("unexpected chunk number: %d", (*chunks)[0].Number)
	}
}

func TestSequencerEmptyForceFlushIsNoOp(t *testing.T) {
	t.Parallel()

	chunks, emit := collectChunks()
	seq := NewChunkSequencer(0, emit)

	seq.ForceFlush()
	if len(*chunks) != 0 {
		t.Fatalf("empty flush emitted %d chunks", len(*chunks))
	}
}

func TestSequencerDoubleForceFlushNeverReusesNumbers(t *testing.T) {
	t.Parallel()

	chunks, emit := collectChunks()
	seq := NewChunkSequencer(0, emit)

	seq.OnEncoderOutput([]byte("first"))
	seq.ForceFlush()
	seq.ForceFlush()

	seq.OnEncoderOutput([]byte("second"))
	seq.ForceFlush()

	if len(*chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(*chunks))
	}
	if (*chunks)[0].Number != 1 || (*chunks)[1].Number != 2 {
		t.Fatalf("numbers reused: %d, %d", (*chunks)[0].Number, (*chunks)[1].Number)
	}
}

func TestSequencerIgnoresEmptyOutput(t *testing.T) {
	t.Parallel()

	chunks, emit := collectChunks()
	seq := NewChunkSequencer(0, emit)

	seq.OnEncoderOutput(nil)
	seq.OnEncoderOutput([]byte{})
	seq.ForceFlush()

	if len(*chunks) != 0 {
		t.Fatalf("empty output produced %d chunks", len(*chunks))
	}
}
