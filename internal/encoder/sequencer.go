package encoder

import (
	"bytes"
	"time"

	"voicenotes/internal/domain"
)

// MinChunkThreshold is the floor for the chunk size threshold; smaller
// caller-supplied values are raised to it.
const MinChunkThreshold = 64 * 1024

// ChunkSequencer accumulates encoder output and cuts it into numbered
// chunks. Emission is synchronous with the accumulation call that crossed
// the threshold, so consumers observe chunks in strict numeric order.
// Numbers start at 1 and are never reused, even across errors or a
// redundant ForceFlush.
type ChunkSequencer struct {
	threshold int
	buf       bytes.Buffer
	next      uint32
	emit      func(domain.EncodedChunk)
}

// NewChunkSequencer builds a sequencer with the given byte threshold. The
// emit callback receives every chunk synchronously.
func NewChunkSequencer(threshold int, emit func(domain.EncodedChunk)) *ChunkSequencer {
	if threshold < MinChunkThreshold {
		threshold = MinChunkThreshold
	}
	return &ChunkSequencer{threshold: threshold, next: 1, emit: emit}
}

// OnEncoderOutput appends encoder bytes and emits a chunk if the buffer has
// crossed the threshold.
func (s *ChunkSequencer) OnEncoderOutput(p []byte) {
	if len(p) == 0 {
		return
	}
	s.buf.Write(p)
	if s.buf.Len() >= s.threshold {
		s.cut()
	}
}

// ForceFlush emits a final chunk from whatever remains. An empty buffer is
// a no-op. It is the only way chunk numbering ends for a session.
func (s *ChunkSequencer) ForceFlush() {
	if s.buf.Len() == 0 {
		return
	}
	s.cut()
}

func (s *ChunkSequencer) cut() {
	payload := make([]byte, s.buf.Len())
	copy(payload, s.buf.Bytes())
	s.buf.Reset()

	chunk := domain.EncodedChunk{
		Number:      s.next,
		Payload:     payload,
		CreatedAtMs: time.Now().UnixMilli(),
		ByteSize:    len(payload),
	}
	s.next++
	s.emit(chunk)
}
