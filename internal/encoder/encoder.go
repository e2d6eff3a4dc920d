package encoder

import (
	"github.com/rs/zerolog"

	"voicenotes/internal/domain"
)

// Encoder converts float32 sample blocks into compressed audio bytes. It is
// append-only and owned by exactly one recording session: blocks must be
// pushed in arrival order from a single goroutine.
type Encoder struct {
	codec Codec
	ready []byte
	log   zerolog.Logger
}

// New builds an Encoder on the compressed codec, falling back to raw PCM if
// the codec cannot be constructed. The fallback never fails.
func New(sampleRate int, log zerolog.Logger) *Encoder {
	codec, err := NewMP3Codec(sampleRate)
	if err != nil {
		log.Warn().Err(err).Msg("mp3 codec unavailable, falling back to raw pcm")
		codec = NewRawCodec()
	}
	return &Encoder{codec: codec, log: log}
}

// NewWithCodec builds an Encoder on an explicit codec strategy.
func NewWithCodec(codec Codec) *Encoder {
	return &Encoder{codec: codec}
}

// Format reports the payload format the selected codec produces.
func (e *Encoder) Format() string { return e.codec.Format() }

// Push feeds one sample block to the codec in arrival order.
func (e *Encoder) Push(block domain.SampleBlock) {
	out, err := e.codec.Encode(pcm16(block.Samples))
	if err != nil {
		e.log.Error().Err(err).Msg("codec encode failed, dropping block")
		return
	}
	e.ready = append(e.ready, out...)
}

// Drain returns whatever encoded bytes the codec has produced so far. It
// never blocks and may return nil.
func (e *Encoder) Drain() []byte {
	if len(e.ready) == 0 {
		return nil
	}
	out := e.ready
	e.ready = nil
	return out
}

// Flush forces residual buffered audio out of the codec. Called once, at
// session stop; the returned bytes include anything still undrained.
func (e *Encoder) Flush() []byte {
	tail, err := e.codec.Flush()
	if err != nil {
		e.log.Error().Err(err).Msg("codec flush failed")
	}
	out := append(e.ready, tail...)
	e.ready = nil
	return out
}

// pcm16 converts float samples to clamped 16-bit signed integers.
func pcm16(samples []float32) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		out[i] = int16(s * 32767)
	}
	return out
}
