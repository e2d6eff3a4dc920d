package encoder

import (
	"bytes"
	"fmt"

	"github.com/braheezy/shine-mp3/pkg/mp3"
)

// Codec is a stateful PCM transcoder strategy. Encode returns whatever
// compressed output the codec has ready for the given samples; Flush forces
// out any residual buffered audio and is called once, at session stop.
type Codec interface {
	Format() string
	Encode(samples []int16) ([]byte, error)
	Flush() ([]byte, error)
}

// mp3FrameSamples is the MPEG-1 Layer III granule size per channel. The
// shine encoder consumes whole frames, so the codec buffers the remainder
// between pushes.
const mp3FrameSamples = 1152

var mp3SampleRates = map[int]bool{
	32000: true,
	44100: true,
	48000: true,
}

// mp3Codec compresses mono PCM to MP3 using the shine encoder.
type mp3Codec struct {
	enc     *mp3.Encoder
	pending []int16
}

// NewMP3Codec builds the compressed codec strategy. It fails for sample
// rates the encoder does not support; callers fall back to the raw codec.
func NewMP3Codec(sampleRate int) (Codec, error) {
	if !mp3SampleRates[sampleRate] {
		return nil, fmt.Errorf("mp3 codec: unsupported sample rate %d", sampleRate)
	}
	return &mp3Codec{enc: mp3.NewEncoder(sampleRate, 1)}, nil
}

func (c *mp3Codec) Format() string { return "mp3" }

func (c *mp3Codec) Encode(samples []int16) ([]byte, error) {
	c.pending = append(c.pending, samples...)

	whole := (len(c.pending) / mp3FrameSamples) * mp3FrameSamples
	if whole == 0 {
		return nil, nil
	}

	var out bytes.Buffer
	if err := c.enc.Write(&out, c.pending[:whole]); err != nil {
		return nil, fmt.Errorf("mp3 encode: %w", err)
	}
	c.pending = append(c.pending[:0], c.pending[whole:]...)
	return out.Bytes(), nil
}

func (c *mp3Codec) Flush() ([]byte, error) {
	if len(c.pending) == 0 {
		return nil, nil
	}

	// Zero-pad the tail to a whole frame so the last partial granule is
	// not dropped.
	padded := make([]int16, mp3FrameSamples)
	copy(padded, c.pending)
	c.pending = c.pending[:0]

	var out bytes.Buffer
	if err := c.enc.Write(&out, padded); err != nil {
		return nil, fmt.Errorf("mp3 flush: %w", err)
	}
	return out.Bytes(), nil
}

// rawCodec passes PCM through as little-endian 16-bit samples. It is the
// fallback strategy when the compressed codec cannot be constructed.
type rawCodec struct{}

// NewRawCodec builds the passthrough codec strategy.
func NewRawCodec() Codec { return rawCodec{} }

func (rawCodec) Format() string { return "wav" }

func (rawCodec) Encode(samples []int16) ([]byte, error) {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		out[i*2] = byte(s)
		out[i*2+1] = byte(uint16(s) >> 8)
	}
	return out, nil
}

func (rawCodec) Flush() ([]byte, error) { return nil, nil }
