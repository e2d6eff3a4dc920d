package transcription

import (
	"context"
	"encoding/base64"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"voicenotes/internal/domain"
)

// Defaults for the link protocol limits.
const (
	DefaultMaxPayloadBytes = 5 * 1024 * 1024
	DefaultConnectTimeout  = 10 * time.Second
	DefaultReconnectDelay  = 2 * time.Second
	DefaultMaxReconnects   = 5
	DefaultHealthInterval  = 30 * time.Second
)

var errLinkClosed = errors.New("transcription link is closed")

// Config controls the websocket link to the transcription service.
type Config struct {
	URL             string
	Language        string
	MaxPayloadBytes int
	ConnectTimeout  time.Duration
	ReconnectDelay  time.Duration
	MaxReconnects   int
	HealthInterval  time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxPayloadBytes <= 0 {
		c.MaxPayloadBytes = DefaultMaxPayloadBytes
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = DefaultReconnectDelay
	}
	if c.MaxReconnects <= 0 {
		c.MaxReconnects = DefaultMaxReconnects
	}
	if c.HealthInterval <= 0 {
		c.HealthInterval = DefaultHealthInterval
	}
	return c
}

// Link is a persistent websocket connection to the transcription service.
// It owns reconnect handling and the pending-chunk registry used to
// reconcile responses whose chunk identifier was lost in transit.
//
// One Link serves one recording session; the registry and counters are
// never shared.
type Link struct {
	cfg    Config
	log    zerolog.Logger
	dialer *websocket.Dialer

	mu           sync.Mutex
	state        domain.LinkState
	conn         *websocket.Conn
	pending      map[int64]uint32
	lastSent     uint32
	closed       bool
	reconnecting bool
	healthStop   chan struct{}

	writeMu  sync.Mutex
	events   chan domain.LinkEvent
	closedCh chan struct{}
	wg       sync.WaitGroup
}

// NewLink builds a disconnected link. Connect must be called before Send.
func NewLink(cfg Config, log zerolog.Logger) *Link {
	return &Link{
		cfg:      cfg.withDefaults(),
		log:      log,
		dialer:   &websocket.Dialer{HandshakeTimeout: cfg.withDefaults().ConnectTimeout},
		state:    domain.LinkDisconnected,
		pending:  make(map[int64]uint32),
		events:   make(chan domain.LinkEvent, 64),
		closedCh: make(chan struct{}),
	}
}

// State reports the current connection state.
func (l *Link) State() domain.LinkState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Events delivers asynchronous results and progress updates. The channel
// is closed after Disconnect.
func (l *Link) Events() <-chan domain.LinkEvent {
	return l.events
}

// Connect dials the service and waits for its open acknowledgement, racing
// a connect timeout. Connected is entered only on an explicit ack.
func (l *Link) Connect(ctx context.Context) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return errLinkClosed
	}
	if l.state == domain.LinkConnected {
		l.mu.Unlock()
		return nil
	}
	l.state = domain.LinkConnecting
	l.mu.Unlock()

	if err := l.connectOnce(ctx); err != nil {
		l.mu.Lock()
		if l.state == domain.LinkConnecting {
			l.state = domain.LinkDisconnected
		}
		l.mu.Unlock()
		return err
	}
	return nil
}

func (l *Link) connectOnce(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, l.cfg.ConnectTimeout)
	defer cancel()

	conn, _, err := l.dialer.DialContext(dialCtx, l.cfg.URL, nil)
	if err != nil {
		return &domain.LinkError{Kind: domain.LinkTransport, Err: err}
	}

	ack := make(chan struct{}, 1)
	l.wg.Add(1)
	go l.readLoop(conn, ack)

	select {
	case <-ack:
	case <-time.After(l.cfg.ConnectTimeout):
		_ = conn.Close()
		return &domain.LinkError{Kind: domain.LinkConnectTimeout}
	case <-ctx.Done():
		_ = conn.Close()
		return &domain.LinkError{Kind: domain.LinkConnectTimeout, Err: ctx.Err()}
	case <-l.closedCh:
		_ = conn.Close()
		return errLinkClosed
	}

	stop := make(chan struct{})
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		_ = conn.Close()
		return errLinkClosed
	}
	l.conn = conn
	l.state = domain.LinkConnected
	l.healthStop = stop
	l.mu.Unlock()

	l.wg.Add(1)
	go l.healthLoop(conn, stop)

	l.log.Info().Str("url", l.cfg.URL).Msg("transcription link connected")
	return nil
}

// Send transmits one chunk. Oversized payloads are rejected locally and
// never reach the transport; the pending registry is left untouched.
func (l *Link) Send(chunk domain.EncodedChunk) (bool, error) {
	if len(chunk.Payload) > l.cfg.MaxPayloadBytes {
		return false, &domain.LinkError{Kind: domain.LinkPayloadTooLarge}
	}

	l.mu.Lock()
	if l.state != domain.LinkConnected || l.conn == nil {
		l.mu.Unlock()
		return false, &domain.LinkError{Kind: domain.LinkNotConnected}
	}
	conn := l.conn
	l.mu.Unlock()

	msg := chunkMessage{
		Type:        msgTranscribeChunk,
		AudioData:   base64.StdEncoding.EncodeToString(chunk.Payload),
		Language:    l.cfg.Language,
		ChunkNumber: chunk.Number,
		Timestamp:   chunk.CreatedAtMs,
	}

	l.writeMu.Lock()
	err := conn.WriteJSON(msg)
	l.writeMu.Unlock()
	if err != nil {
		return false, &domain.LinkError{Kind: domain.LinkTransport, Err: err}
	}

	l.mu.Lock()
	l.pending[chunk.CreatedAtMs] = chunk.Number
	l.lastSent = chunk.Number
	l.mu.Unlock()

	l.log.Debug().Uint32("chunk", chunk.Number).Int("bytes", chunk.ByteSize).Msg("chunk sent")
	return true, nil
}

// Disconnect closes the link permanently. Best effort: it completes even
// if the peer is unreachable and a second call is a no-op.
func (l *Link) Disconnect() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.state = domain.LinkClosed
	conn := l.conn
	l.conn = nil
	if l.healthStop != nil {
		close(l.healthStop)
		l.healthStop = nil
	}
	l.mu.Unlock()

	close(l.closedCh)
	if conn != nil {
		l.writeMu.Lock()
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		l.writeMu.Unlock()
		_ = conn.Close()
	}

	l.wg.Wait()
	close(l.events)
	return nil
}

func (l *Link) readLoop(conn *websocket.Conn, ack chan<- struct{}) {
	defer l.wg.Done()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			l.handleReadError(conn, err)
			return
		}

		msg, parseErr := parseInbound(payload)
		if parseErr != nil {
			l.log.Warn().Err(parseErr).Msg("ignoring malformed peer message")
			continue
		}

		switch msg.Type {
		case msgConnection:
			select {
			case ack <- struct{}{}:
			default:
			}
			l.log.Debug().Str("message", msg.Message).Msg("peer connection ack")
		case msgChunkProgress:
			l.handleProgress(msg)
		case msgChunkResult:
			l.handleResult(msg)
		case msgError:
			l.log.Warn().Str("message", msg.Message).Msg("peer reported error")
		}
	}
}

func (l *Link) handleReadError(conn *websocket.Conn, err error) {
	l.mu.Lock()
	if l.closed || l.conn != conn {
		// Explicit disconnect, or a connection that was never promoted.
		l.mu.Unlock()
		return
	}
	l.conn = nil
	l.state = domain.LinkDisconnected
	if l.healthStop != nil {
		close(l.healthStop)
		l.healthStop = nil
	}
	alreadyReconnecting := l.reconnecting
	l.reconnecting = true
	l.mu.Unlock()

	l.log.Warn().Err(err).Msg("transcription link lost")
	if !alreadyReconnecting {
		l.wg.Add(1)
		go l.reconnectLoop()
	}
}

func (l *Link) reconnectLoop() {
	defer l.wg.Done()
	defer func() {
		l.mu.Lock()
		l.reconnecting = false
		l.mu.Unlock()
	}()

	for attempt := 1; attempt <= l.cfg.MaxReconnects; attempt++ {
		select {
		case <-time.After(l.cfg.ReconnectDelay):
		case <-l.closedCh:
			return
		}

		l.mu.Lock()
		if l.closed {
			l.mu.Unlock()
			return
		}
		l.state = domain.LinkConnecting
		l.mu.Unlock()

		err := l.connectOnce(context.Background())
		if err == nil {
			l.log.Info().Int("attempt", attempt).Msg("transcription link restored")
			return
		}
		l.log.Warn().Err(err).Int("attempt", attempt).Int("max", l.cfg.MaxReconnects).
			Msg("reconnect attempt failed")

		l.mu.Lock()
		if l.state == domain.LinkConnecting {
			l.state = domain.LinkDisconnected
		}
		l.mu.Unlock()
	}

	// Out of attempts: stay Disconnected until a manual Connect.
	l.log.Error().Int("attempts", l.cfg.MaxReconnects).Msg("giving up on automatic reconnect")
}

func (l *Link) healthLoop(conn *websocket.Conn, stop <-chan struct{}) {
	defer l.wg.Done()

	ticker := time.NewTicker(l.cfg.HealthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.writeMu.Lock()
			err := conn.WriteJSON(healthMessage{Type: msgHealthCheck})
			l.writeMu.Unlock()
			if err != nil {
				l.log.Debug().Err(err).Msg("health probe failed")
				return
			}
		case <-stop:
			return
		case <-l.closedCh:
			return
		}
	}
}

func (l *Link) handleProgress(msg inboundMessage) {
	number := l.resolveChunkNumber(msg.ChunkNumber, msg.Timestamp)
	l.emit(domain.LinkEvent{Progress: &domain.TranscriptionProgress{
		ChunkNumber: number,
		Status:      progressStatus(msg.Status),
		Message:     msg.Message,
	}})
}

func (l *Link) handleResult(msg inboundMessage) {
	number := l.resolveChunkNumber(msg.ChunkNumber, msg.Timestamp)

	if msg.Status == "failed" {
		l.emit(domain.LinkEvent{Progress: &domain.TranscriptionProgress{
			ChunkNumber: number,
			Status:      domain.ProgressFailed,
			Message:     msg.Message,
		}})
		return
	}

	l.emit(domain.LinkEvent{Result: &domain.TranscriptionResult{
		ChunkNumber:  number,
		Text:         resultText(msg.Result),
		Segments:     resultSegments(msg.Result),
		ReceivedAtMs: time.Now().UnixMilli(),
	}})
}

// resolveChunkNumber attributes a peer message to a chunk. The peer does
// not always echo the number it was given: a reported number of 0 means it
// was lost in transit. In that case the oldest pending entry wins, assuming
// roughly FIFO responses; with nothing pending the last-sent number is the
// final fallback.
func (l *Link) resolveChunkNumber(reported uint32, echoedTimestamp int64) uint32 {
	l.mu.Lock()
	defer l.mu.Unlock()

	if reported != 0 {
		delete(l.pending, echoedTimestamp)
		return reported
	}

	if len(l.pending) > 0 {
		var oldest int64
		first := true
		for ts := range l.pending {
			if first || ts < oldest {
				oldest = ts
				first = false
			}
		}
		number := l.pending[oldest]
		delete(l.pending, oldest)
		l.log.Debug().Uint32("chunk", number).Msg("reconciled zero-identified response to oldest pending chunk")
		return number
	}

	l.log.Warn().Uint32("fallback", l.lastSent).
		Msg("zero-identified response with no pending chunks, attributing to last sent")
	return l.lastSent
}

func (l *Link) emit(event domain.LinkEvent) {
	select {
	case l.events <- event:
	case <-l.closedCh:
	default:
		l.log.Warn().Msg("link event dropped, subscriber too slow")
	}
}

// PendingCount reports the number of unreconciled sent chunks.
func (l *Link) PendingCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending)
}
