package bootstrap

import (
	"github.com/rs/zerolog"

	"voicenotes/internal/audio"
	"voicenotes/internal/config"
	"voicenotes/internal/logging"
	"voicenotes/internal/rules"
	"voicenotes/internal/store"
	"voicenotes/internal/transcription"
	"voicenotes/internal/usecase"
)

// Services is the assembled runtime graph.
type Services struct {
	Session *usecase.RecordingSession
	Config  config.Config
	Log     zerolog.Logger
}

// Build wires all backend dependencies for the current runtime.
func Build() (Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return Services{}, err
	}
	log := logging.New(cfg.Log.Level, cfg.Log.Format)

	rulesEngine, err := rules.NewEngine(cfg.Rules.Path, cfg.Rules.IterationLimit)
	if err != nil {
		return Services{}, err
	}

	chunkStore, err := store.NewFileStore(cfg.Store.Dir, cfg.Audio.SampleRate, log)
	if err != nil {
		return Services{}, err
	}

	provider := transcription.NewProvider(transcription.Config{
		URL:      cfg.Link.URL,
		Language: cfg.Link.Language,
	}, log)

	session := usecase.NewRecordingSession(
		audio.NewFFmpegSource(cfg.Audio.FFmpegCommand),
		provider,
		chunkStore,
		rulesEngine,
		log,
		usecase.Config{
			SampleRate:           cfg.Audio.SampleRate,
			ChunkThreshold:       cfg.Session.ChunkThreshold,
			TranscriptTimestamps: cfg.Session.TranscriptTimestamps,
		},
	)

	return Services{Session: session, Config: cfg, Log: log}, nil
}
