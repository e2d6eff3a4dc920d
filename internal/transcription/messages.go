package transcription

import (
	"encoding/json"
	"fmt"

	"voicenotes/internal/domain"
)

// Message types exchanged with the transcription service.
const (
	msgTranscribeChunk = "transcribe_chunk"
	msgHealthCheck     = "health_check"
	msgChunkProgress   = "chunk_progress"
	msgChunkResult     = "chunk_result"
	msgConnection      = "connection"
	msgError           = "error"
)

// chunkMessage is the outbound transcription request for one chunk.
type chunkMessage struct {
	Type        string `json:"type"`
	AudioData   string `json:"audio_data"`
	Language    string `json:"language,omitempty"`
	ChunkNumber uint32 `json:"chunkNumber"`
	Timestamp   int64  `json:"timestamp"`
}

// healthMessage is the outbound liveness probe.
type healthMessage struct {
	Type string `json:"type"`
}

// segmentPayload mirrors the peer's timed-segment shape.
type segmentPayload struct {
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// resultPayload is the body of a completed chunk_result. The peer may omit
// the top-level text and deliver segments only.
type resultPayload struct {
	Text     string           `json:"text"`
	Segments []segmentPayload `json:"segments"`
}

// inboundMessage is the decoded form of every peer message. Fields beyond
// Type are populated per tag; anything with an unknown tag is rejected at
// the boundary instead of being accessed speculatively.
type inboundMessage struct {
	Type        string         `json:"type"`
	ChunkNumber uint32         `json:"chunkNumber"`
	Status      string         `json:"status"`
	Message     string         `json:"message"`
	Timestamp   int64          `json:"timestamp"`
	Result      *resultPayload `json:"result"`
}

func parseInbound(payload []byte) (inboundMessage, error) {
	var msg inboundMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return inboundMessage{}, fmt.Errorf("malformed peer message: %w", err)
	}
	switch msg.Type {
	case msgChunkProgress, msgChunkResult, msgConnection, msgError:
		return msg, nil
	default:
		return inboundMessage{}, fmt.Errorf("unknown peer message type %q", msg.Type)
	}
}

// resultText returns the transcript text of a completed result, rebuilding
// it from timed segments when the peer omits the top-level field.
func resultText(result *resultPayload) string {
	if result == nil {
		return ""
	}
	if result.Text != "" {
		return result.Text
	}
	text := ""
	for _, seg := range result.Segments {
		if seg.Text == "" {
			continue
		}
		if text != "" {
			text += " "
		}
		text += seg.Text
	}
	return text
}

func resultSegments(result *resultPayload) []domain.Segment {
	if result == nil || len(result.Segments) == 0 {
		return nil
	}
	segments := make([]domain.Segment, 0, len(result.Segments))
	for _, seg := range result.Segments {
		segments = append(segments, domain.Segment{
			Start:      seg.Start,
			End:        seg.End,
			Text:       seg.Text,
			Confidence: seg.Confidence,
		})
	}
	return segments
}

func progressStatus(raw string) domain.ProgressStatus {
	switch raw {
	case "completed":
		return domain.ProgressCompleted
	case "failed":
		return domain.ProgressFailed
	default:
		return domain.ProgressProcessing
	}
}
