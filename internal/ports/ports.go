package ports

import (
	"context"

	"voicenotes/internal/domain"
)

// FrameStream is a live capture stream. Blocks delivers SampleBlocks in
// arrival order and is closed once the stream stops.
type FrameStream interface {
	Blocks() <-chan domain.SampleBlock
	Stop() error
}

// SampleFrameSource opens live audio devices as sample streams.
type SampleFrameSource interface {
	Open(ctx context.Context, cfg domain.AudioSourceConfig) (FrameStream, error)
}

// TranscriptionProvider creates one link per recording session; links are
// never shared or reused across sessions.
type TranscriptionProvider interface {
	NewLink() TranscriptionLink
}

// TranscriptionLink is a persistent connection to the remote speech-to-text
// service. Send never blocks chunk emission; Events delivers asynchronous
// results and progress until Disconnect. A link is single-use: Disconnect
// is terminal.
type TranscriptionLink interface {
	Connect(ctx context.Context) error
	Send(chunk domain.EncodedChunk) (bool, error)
	Events() <-chan domain.LinkEvent
	State() domain.LinkState
	Disconnect() error
}

// ChunkStore persists encoded chunks and transcript text. Implementations
// must treat chunk payloads as read-only.
type ChunkStore interface {
	SaveChunk(payload []byte, chunkNumber uint32, baseName string, format string) (string, error)
	AppendTranscript(chunkNumber uint32, text string, timestampMs int64, baseName string, withTimestamps bool) (string, error)
}

// RulesEngine transforms transcript text using deterministic rules.
type RulesEngine interface {
	Apply(text string) (string, error)
}
