package main

import (
	"context"
	"fmt"

	"github.com/wailsapp/wails/v2/pkg/runtime"

	"voicenotes/internal/bootstrap"
	"voicenotes/internal/config"
	"voicenotes/internal/domain"
	"voicenotes/internal/usecase"
)

const (
	eventState      = "voicenotes:state"
	eventChunk      = "voicenotes:chunk"
	eventStats      = "voicenotes:stats"
	eventTranscript = "voicenotes:transcript"
	eventProgress   = "voicenotes:progress"
	eventWarning    = "voicenotes:warning"
)

// App is the Wails application root. It forwards session events to the
// frontend and binds the recording controls.
type App struct {
	ctx context.Context

	session *usecase.RecordingSession
	cfg     config.Config
	bootErr error

	unsubscribe func()
}

func NewApp() *App {
	return &App{}
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	services, err := bootstrap.Build()
	if err != nil {
		a.bootErr = err
		runtime.EventsEmit(ctx, eventWarning, map[string]string{"message": err.Error()})
		return
	}

	a.cfg = services.Config
	a.session = services.Session

	events, cancel := a.session.Subscribe()
	a.unsubscribe = cancel
	go a.forwardEvents(events)
}

func (a *App) shutdown(_ context.Context) {
	if a.session != nil {
		_ = a.session.Stop(context.Background())
	}
	if a.unsubscribe != nil {
		a.unsubscribe()
	}
}

// StartRecording begins a recording from the given source. An empty config
// uses the configured defaults.
func (a *App) StartRecording(src domain.AudioSourceConfig) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	if src.Kind == "" {
		src = a.defaultSource()
	}
	return a.session.Start(a.ctx, src)
}

// StopRecording ends the active recording. Stopping while idle is a no-op.
func (a *App) StopRecording() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.session.Stop(a.ctx)
}

// GetState returns the session lifecycle state.
func (a *App) GetState() domain.SessionState {
	if a.session == nil {
		return domain.SessionStateIdle
	}
	return a.session.State()
}

// GetStats returns a live stats snapshot for the UI.
func (a *App) GetStats() domain.RecordingStats {
	if a.session == nil {
		return domain.RecordingStats{}
	}
	return a.session.Stats()
}

// GetRuntimeInfo returns non-sensitive config for the UI.
func (a *App) GetRuntimeInfo() map[string]string {
	if a.bootErr != nil {
		return map[string]string{"error": a.bootErr.Error()}
	}
	return map[string]string{
		"linkUrl":    a.cfg.Link.URL,
		"language":   a.cfg.Link.Language,
		"sourceKind": a.cfg.Audio.SourceKind,
		"device":     a.cfg.Audio.InputDevice,
		"notesDir":   a.cfg.Store.Dir,
		"rulesFile":  a.cfg.Rules.Path,
	}
}

func (a *App) defaultSource() domain.AudioSourceConfig {
	return domain.AudioSourceConfig{
		Kind:            domain.SourceKind(a.cfg.Audio.SourceKind),
		DeviceID:        a.cfg.Audio.InputDevice,
		DesktopSourceID: a.cfg.Audio.DesktopSource,
	}
}

func (a *App) requireReady() error {
	if a.bootErr != nil {
		return a.bootErr
	}
	if a.session == nil {
		return fmt.Errorf("application is not initialized")
	}
	return nil
}

func (a *App) forwardEvents(events <-chan domain.Event) {
	for event := range events {
		if a.ctx == nil {
			continue
		}
		switch event.Type {
		case domain.EventStateChanged:
			runtime.EventsEmit(a.ctx, eventState, map[string]string{"state": string(event.State)})
		case domain.EventChunkReady:
			runtime.EventsEmit(a.ctx, eventChunk, event.Chunk)
		case domain.EventStats:
			runtime.EventsEmit(a.ctx, eventStats, event.Stats)
		case domain.EventResult:
			runtime.EventsEmit(a.ctx, eventTranscript, event.Result)
		case domain.EventProgress:
			runtime.EventsEmit(a.ctx, eventProgress, event.Progress)
		case domain.EventWarning:
			runtime.EventsEmit(a.ctx, eventWarning, map[string]string{"message": event.Warning})
		}
	}
}
