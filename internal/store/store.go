package store

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// FileStore persists encoded chunks and transcripts under one notes
// directory. It implements ports.ChunkStore.
type FileStore struct {
	dir        string
	sampleRate int
	log        zerolog.Logger
}

func NewFileStore(dir string, sampleRate int, log zerolog.Logger) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("notes directory is not configured")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create notes directory %q: %w", dir, err)
	}
	return &FileStore{dir: dir, sampleRate: sampleRate, log: log}, nil
}

// SaveChunk writes one chunk payload to disk. Raw PCM payloads (format
// "wav") are wrapped in a RIFF header so every chunk file is playable on
// its own.
func (s *FileStore) SaveChunk(payload []byte, chunkNumber uint32, baseName string, format string) (string, error) {
	data := payload
	if format == "wav" {
		data = wrapWAV(payload, s.sampleRate)
	}

	path := filepath.Join(s.dir, fmt.Sprintf("%s_chunk%03d.%s", baseName, chunkNumber, format))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write chunk %d: %w", chunkNumber, err)
	}

	s.log.Debug().Str("path", path).Int("bytes", len(data)).Msg("chunk persisted")
	return path, nil
}

// AppendTranscript appends one chunk's text to the recording's transcript
// file.
func (s *FileStore) AppendTranscript(chunkNumber uint32, text string, timestampMs int64, baseName string, withTimestamps bool) (string, error) {
	path := filepath.Join(s.dir, baseName+".txt")

	line := text + "\n"
	if withTimestamps {
		at := time.UnixMilli(timestampMs).Format("15:04:05")
		line = fmt.Sprintf("[%s #%d] %s\n", at, chunkNumber, text)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to open transcript %q: %w", path, err)
	}
	defer f.Close()

	if _, err := f.WriteString(line); err != nil {
		return "", fmt.Errorf("failed to append transcript: %w", err)
	}
	return path, nil
}
