package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"voicenotes/internal/domain"
	"voicenotes/internal/encoder"
	"voicenotes/internal/ports"
)

var (
	// ErrSessionActive is returned by Start while a recording is running.
	ErrSessionActive = errors.New("a recording session is already active")
	// ErrSessionStarting is returned by Stop during startup.
	ErrSessionStarting = errors.New("session is still starting")
)

// Config controls recording behavior.
type Config struct {
	SampleRate           int
	ChunkThreshold       int
	TranscriptTimestamps bool
	StatsInterval        time.Duration
}

// RecordingSession orchestrates capture, encoding, chunking, persistence
// and transcription for one recording at a time. The session exclusively
// owns its encoder and link; neither is shared across sessions.
type RecordingSession struct {
	source   ports.SampleFrameSource
	provider ports.TranscriptionProvider
	store    ports.ChunkStore
	rules    ports.RulesEngine
	log      zerolog.Logger
	cfg      Config
	bus      *eventBus

	mu     sync.Mutex
	state  domain.SessionState
	active *activeRecording
}

type activeRecording struct {
	cancel     context.CancelFunc
	stream     ports.FrameStream
	link       ports.TranscriptionLink
	enc        *encoder.Encoder
	seq        *encoder.ChunkSequencer
	stats      *statsTracker
	baseName   string
	transcribe bool

	stopping  atomic.Bool
	pumpDone  chan struct{}
	linkDone  chan struct{}
	statsStop chan struct{}
	statsDone chan struct{}
}

// NewRecordingSession wires the session. provider may be nil to disable
// transcription entirely.
func NewRecordingSession(
	source ports.SampleFrameSource,
	provider ports.TranscriptionProvider,
	store ports.ChunkStore,
	rules ports.RulesEngine,
	log zerolog.Logger,
	cfg Config,
) *RecordingSession {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 44100
	}
	if cfg.StatsInterval <= 0 {
		cfg.StatsInterval = time.Second
	}
	return &RecordingSession{
		source:   source,
		provider: provider,
		store:    store,
		rules:    rules,
		log:      log,
		cfg:      cfg,
		bus:      newEventBus(),
		state:    domain.SessionStateIdle,
	}
}

// Subscribe registers an event listener. The returned cancel function
// unregisters it and closes the channel.
func (s *RecordingSession) Subscribe() (<-chan domain.Event, func()) {
	return s.bus.subscribe()
}

// State reports the current lifecycle state.
func (s *RecordingSession) State() domain.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Stats returns a snapshot of the active recording's counters, or zero
// stats when idle.
func (s *RecordingSession) Stats() domain.RecordingStats {
	s.mu.Lock()
	active := s.active
	s.mu.Unlock()
	if active == nil {
		return domain.RecordingStats{}
	}
	return active.stats.snapshot(time.Now())
}

// Start opens the audio source and begins capturing. A failure to connect
// the transcription link disables transcription for the session but never
// prevents recording.
func (s *RecordingSession) Start(ctx context.Context, srcCfg domain.AudioSourceConfig) error {
	s.mu.Lock()
	if s.state != domain.SessionStateIdle {
		s.mu.Unlock()
		return ErrSessionActive
	}
	s.state = domain.SessionStateStarting
	s.mu.Unlock()
	s.publishState(domain.SessionStateStarting)

	sessionCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	stream, err := s.source.Open(sessionCtx, srcCfg)
	if err != nil {
		cancel()
		s.mu.Lock()
		s.state = domain.SessionStateIdle
		s.mu.Unlock()
		s.publishState(domain.SessionStateIdle)
		return err
	}

	active := &activeRecording{
		cancel:    cancel,
		stream:    stream,
		enc:       encoder.New(s.cfg.SampleRate, s.log),
		stats:     newStatsTracker(time.Now()),
		baseName:  newBaseName(),
		pumpDone:  make(chan struct{}),
		linkDone:  make(chan struct{}),
		statsStop: make(chan struct{}),
		statsDone: make(chan struct{}),
	}
	active.seq = encoder.NewChunkSequencer(s.cfg.ChunkThreshold, func(chunk domain.EncodedChunk) {
		s.handleChunk(active, chunk)
	})

	if s.provider != nil {
		active.link = s.provider.NewLink()
		if err := active.link.Connect(ctx); err != nil {
			s.warn(fmt.Sprintf("transcription unavailable, recording continues: %v", err))
		} else {
			active.transcribe = true
		}
		go s.consumeLinkEvents(active)
	} else {
		close(active.linkDone)
	}

	s.mu.Lock()
	s.active = active
	s.state = domain.SessionStateActive
	s.mu.Unlock()

	go s.pump(active)
	go s.statsLoop(active)

	s.publishState(domain.SessionStateActive)
	s.log.Info().Str("base", active.baseName).Str("source", string(srcCfg.Kind)).
		Bool("transcribe", active.transcribe).Msg("recording started")
	return nil
}

// Stop ends the active recording: final encoder flush, final chunk, stats
// cancel, stream release and link teardown. Every cleanup step runs even
// if an earlier one fails. Stopping an idle session is a no-op.
func (s *RecordingSession) Stop(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case domain.SessionStateIdle, domain.SessionStateStopping:
		s.mu.Unlock()
		return nil
	case domain.SessionStateStarting:
		s.mu.Unlock()
		return ErrSessionStarting
	}
	active := s.active
	s.active = nil
	s.state = domain.SessionStateStopping
	s.mu.Unlock()

	active.stopping.Store(true)
	s.publishState(domain.SessionStateStopping)

	if err := active.stream.Stop(); err != nil {
		s.warn(fmt.Sprintf("audio capture did not stop cleanly: %v", err))
	}
	<-active.pumpDone

	// The pump has exited; this goroutine is now the sequencer's owner.
	active.seq.OnEncoderOutput(active.enc.Flush())
	active.seq.ForceFlush()

	close(active.statsStop)
	<-active.statsDone

	if active.link != nil {
		_ = active.link.Disconnect()
	}
	<-active.linkDone

	active.cancel()

	final := active.stats.snapshot(time.Now())
	s.bus.publish(domain.Event{Type: domain.EventStats, Stats: &final})

	s.mu.Lock()
	s.state = domain.SessionStateIdle
	s.mu.Unlock()
	s.publishState(domain.SessionStateIdle)

	s.log.Info().Int("chunks", final.ChunksGenerated).Int64("bytes", final.TotalBytes).
		Msg("recording stopped")
	return nil
}

// pump is the owner goroutine for sequencing: it drains the frame channel
// in FIFO order and never runs concurrently with the stop-path flush.
func (s *RecordingSession) pump(active *activeRecording) {
	defer close(active.pumpDone)

	for block := range active.stream.Blocks() {
		active.stats.addSamples(len(block.Samples))
		active.enc.Push(block)
		active.seq.OnEncoderOutput(active.enc.Drain())
	}

	// Channel closed without Stop: the capture side died. Fatal to the
	// session, so run the full cleanup path.
	if !active.stopping.Load() {
		s.warn("audio stream ended unexpectedly, stopping session")
		go func() {
			_ = s.Stop(context.Background())
		}()
	}
}

func (s *RecordingSession) handleChunk(active *activeRecording, chunk domain.EncodedChunk) {
	active.stats.addChunk(chunk.ByteSize)
	s.bus.publish(domain.Event{Type: domain.EventChunkReady, Chunk: &chunk})

	if _, err := s.store.SaveChunk(chunk.Payload, chunk.Number, active.baseName, active.enc.Format()); err != nil {
		s.warn(fmt.Sprintf("failed to persist chunk %d: %v", chunk.Number, err))
	}

	if active.transcribe {
		if _, err := active.link.Send(chunk); err != nil {
			s.warn(fmt.Sprintf("failed to send chunk %d for transcription: %v", chunk.Number, err))
		}
	}
}

func (s *RecordingSession) consumeLinkEvents(active *activeRecording) {
	defer close(active.linkDone)

	for event := range active.link.Events() {
		switch {
		case event.Result != nil:
			s.handleResult(active, *event.Result)
		case event.Progress != nil:
			s.bus.publish(domain.Event{Type: domain.EventProgress, Progress: event.Progress})
		}
	}
}

func (s *RecordingSession) handleResult(active *activeRecording, result domain.TranscriptionResult) {
	if s.rules != nil {
		transformed, err := s.rules.Apply(result.Text)
		if err != nil {
			s.warn(fmt.Sprintf("transcript rules failed for chunk %d: %v", result.ChunkNumber, err))
		} else {
			result.Text = transformed
		}
	}

	if _, err := s.store.AppendTranscript(result.ChunkNumber, result.Text, result.ReceivedAtMs,
		active.baseName, s.cfg.TranscriptTimestamps); err != nil {
		s.warn(fmt.Sprintf("failed to persist transcript for chunk %d: %v", result.ChunkNumber, err))
	}

	s.bus.publish(domain.Event{Type: domain.EventResult, Result: &result})
}

func (s *RecordingSession) statsLoop(active *activeRecording) {
	defer close(active.statsDone)

	ticker := time.NewTicker(s.cfg.StatsInterval)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			stats := active.stats.snapshot(now)
			s.bus.publish(domain.Event{Type: domain.EventStats, Stats: &stats})
		case <-active.statsStop:
			return
		}
	}
}

func (s *RecordingSession) publishState(state domain.SessionState) {
	s.bus.publish(domain.Event{Type: domain.EventStateChanged, State: state})
}

func (s *RecordingSession) warn(message string) {
	s.log.Warn().Msg(message)
	s.bus.publish(domain.Event{Type: domain.EventWarning, Warning: message})
}

func newBaseName() string {
	return fmt.Sprintf("note_%s_%s", time.Now().Format("20060102_150405"), uuid.NewString()[:8])
}
