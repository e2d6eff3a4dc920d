package transcription

import (
	"github.com/rs/zerolog"

	"voicenotes/internal/ports"
)

// Provider builds one Link per recording session. Links are single-use;
// the provider carries the shared configuration.
type Provider struct {
	cfg Config
	log zerolog.Logger
}

func NewProvider(cfg Config, log zerolog.Logger) *Provider {
	return &Provider{cfg: cfg, log: log}
}

func (p *Provider) NewLink() ports.TranscriptionLink {
	return NewLink(p.cfg, p.log)
}
