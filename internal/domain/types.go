package domain

import "time"

// SourceKind selects which live audio input a session captures.
type SourceKind string

const (
	SourceMicrophone SourceKind = "microphone"
	SourceDesktop    SourceKind = "desktop"
	SourceMix        SourceKind = "mix"
)

// AudioSourceConfig describes the capture input. Immutable once a session starts.
type AudioSourceConfig struct {
	Kind            SourceKind `json:"kind"`
	DeviceID        string     `json:"deviceId,omitempty"`
	DesktopSourceID string     `json:"desktopSourceId,omitempty"`
}

// SampleBlock is one delivery of mono float32 PCM from the capture device.
// Block sizes follow the driver's cadence and are never constant.
type SampleBlock struct {
	Samples    []float32
	Timestamp  time.Time
	FrameCount int
}

// EncodedChunk is an independently decodable unit of compressed audio.
// Immutable once emitted; numbers start at 1 and are contiguous.
type EncodedChunk struct {
	Number      uint32 `json:"chunkNumber"`
	Payload     []byte `json:"-"`
	CreatedAtMs int64  `json:"createdAtMs"`
	ByteSize    int    `json:"byteSize"`
}

// Segment is one timed span of transcribed speech.
type Segment struct {
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence,omitempty"`
}

// TranscriptionResult is a completed transcription attributed to a chunk.
type TranscriptionResult struct {
	ChunkNumber  uint32    `json:"chunkNumber"`
	Text         string    `json:"text"`
	Segments     []Segment `json:"segments,omitempty"`
	ReceivedAtMs int64     `json:"receivedAtMs"`
}

// ProgressStatus reports where a chunk is in the remote pipeline.
type ProgressStatus string

const (
	ProgressProcessing ProgressStatus = "processing"
	ProgressCompleted  ProgressStatus = "completed"
	ProgressFailed     ProgressStatus = "failed"
)

// TranscriptionProgress is an unsolicited per-chunk status update.
type TranscriptionProgress struct {
	ChunkNumber uint32         `json:"chunkNumber"`
	Status      ProgressStatus `json:"status"`
	Message     string         `json:"message,omitempty"`
}

// RecordingStats is derived on demand from session counters.
type RecordingStats struct {
	DurationSec          float64 `json:"durationSec"`
	ChunksGenerated      int     `json:"chunksGenerated"`
	TotalBytes           int64   `json:"totalBytes"`
	CurrentBitrateBps    float64 `json:"currentBitrateBps"`
	ProcessedSampleCount int64   `json:"processedSampleCount"`
}

// SessionState models the recording lifecycle.
type SessionState string

const (
	SessionStateIdle     SessionState = "idle"
	SessionStateStarting SessionState = "starting"
	SessionStateActive   SessionState = "active"
	SessionStateStopping SessionState = "stopping"
)

// LinkState models the transcription connection lifecycle.
type LinkState string

const (
	LinkDisconnected LinkState = "disconnected"
	LinkConnecting   LinkState = "connecting"
	LinkConnected    LinkState = "connected"
	LinkClosed       LinkState = "closed"
)

// LinkEvent is one asynchronous delivery from the transcription link:
// exactly one of Result or Progress is set.
type LinkEvent struct {
	Result   *TranscriptionResult
	Progress *TranscriptionProgress
}

// EventType tags session events delivered to subscribers.
type EventType string

const (
	EventStateChanged EventType = "state_changed"
	EventChunkReady   EventType = "chunk_ready"
	EventStats        EventType = "stats"
	EventResult       EventType = "result"
	EventProgress     EventType = "progress"
	EventWarning      EventType = "warning"
)

// Event is a tagged union of session notifications. The field matching
// Type is set; all others are zero.
type Event struct {
	Type     EventType              `json:"type"`
	State    SessionState           `json:"state,omitempty"`
	Chunk    *EncodedChunk          `json:"chunk,omitempty"`
	Stats    *RecordingStats        `json:"stats,omitempty"`
	Result   *TranscriptionResult   `json:"result,omitempty"`
	Progress *TranscriptionProgress `json:"progress,omitempty"`
	Warning  string                 `json:"warning,omitempty"`
}
