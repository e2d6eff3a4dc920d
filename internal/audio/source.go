package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"voicenotes/internal/domain"
	"voicenotes/internal/ports"
)

// SampleRate is the fixed capture rate of the pipeline.
const SampleRate = 44100

// readBufBytes is the stdout read granularity. Actual block sizes follow
// whatever the pipe delivers and are never constant.
const readBufBytes = 16 * 1024

// FFmpegSource captures live PCM through an ffmpeg child process reading a
// PulseAudio source. It implements ports.SampleFrameSource.
type FFmpegSource struct {
	command    string
	sampleRate int
}

func NewFFmpegSource(command string) *FFmpegSource {
	if command == "" {
		command = "ffmpeg"
	}
	return &FFmpegSource{command: command, sampleRate: SampleRate}
}

func (s *FFmpegSource) Open(ctx context.Context, cfg domain.AudioSourceConfig) (ports.FrameStream, error) {
	args, device, err := captureArgs(cfg, s.sampleRate)
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, s.command, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create ffmpeg stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
		close(waitErr)
	}()

	// ffmpeg reports unusable devices by exiting immediately; give it a
	// moment before trusting the stream.
	select {
	case err := <-waitErr:
		if ctx.Err() != nil {
			return nil, &domain.DeviceError{Kind: domain.DeviceCancelled, Device: device, Err: ctx.Err()}
		}
		return nil, classifyDeviceError(stderr.String(), device, err)
	case <-time.After(250 * time.Millisecond):
	}

	stream := &ffmpegStream{
		stdout:  stdout,
		stderr:  &stderr,
		process: cmd.Process,
		waitErr: waitErr,
		blocks:  make(chan domain.SampleBlock, 32),
		stopped: make(chan struct{}),
	}
	stream.readerDone = make(chan struct{})
	go stream.readLoop()

	return stream, nil
}

// captureArgs builds the ffmpeg invocation for the requested source kind:
// a single pulse input for microphone or desktop capture, or both mixed
// down through amix.
func captureArgs(cfg domain.AudioSourceConfig, sampleRate int) ([]string, string, error) {
	mic := cfg.DeviceID
	if mic == "" {
		mic = "default"
	}
	monitor := cfg.DesktopSourceID
	if monitor == "" {
		monitor = "default.monitor"
	}

	args := []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "warning",
	}

	var device string
	switch cfg.Kind {
	case domain.SourceMicrophone, "":
		device = mic
		args = append(args, "-f", "pulse", "-i", mic)
	case domain.SourceDesktop:
		device = monitor
		args = append(args, "-f", "pulse", "-i", monitor)
	case domain.SourceMix:
		device = mic + "+" + monitor
		args = append(args,
			"-f", "pulse", "-i", mic,
			"-f", "pulse", "-i", monitor,
			"-filter_complex", "amix=inputs=2:duration=longest",
		)
	default:
		return nil, "", fmt.Errorf("unknown source kind %q", cfg.Kind)
	}

	args = append(args,
		"-ac", "1",
		"-ar", strconv.Itoa(sampleRate),
		"-f", "f32le",
		"-",
	)
	return args, device, nil
}

func classifyDeviceError(stderr string, device string, err error) error {
	detail := strings.ToLower(stderr)
	switch {
	case strings.Contains(detail, "no such entity"),
		strings.Contains(detail, "no such device"),
		strings.Contains(detail, "not found"):
		return &domain.DeviceError{Kind: domain.DeviceNotFound, Device: device, Err: err}
	case strings.Contains(detail, "access denied"),
		strings.Contains(detail, "permission denied"),
		strings.Contains(detail, "not authorized"):
		return &domain.DeviceError{Kind: domain.DevicePermissionDenied, Device: device, Err: err}
	default:
		trimmed := strings.TrimSpace(stderr)
		if trimmed != "" {
			return fmt.Errorf("ffmpeg exited before capture started: %w: %s", err, trimmed)
		}
		return fmt.Errorf("ffmpeg exited before capture started: %w", err)
	}
}

type ffmpegStream struct {
	stdout io.ReadCloser
	stderr *bytes.Buffer

	process *os.Process
	waitErr <-chan error

	blocks     chan domain.SampleBlock
	stopped    chan struct{}
	readerDone chan struct{}

	stopOnce sync.Once
	stopErr  error
}

func (s *ffmpegStream) Blocks() <-chan domain.SampleBlock {
	return s.blocks
}

// readLoop slices stdout into sample blocks. A partial trailing sample is
// carried into the next read so block boundaries never split a float.
func (s *ffmpegStream) readLoop() {
	defer close(s.readerDone)
	defer close(s.blocks)

	buf := make([]byte, readBufBytes)
	carry := make([]byte, 0, 4)

	for {
		n, err := s.stdout.Read(buf)
		if n > 0 {
			data := append(carry, buf[:n]...)
			frames := len(data) / 4
			if frames > 0 {
				samples := make([]float32, frames)
				for i := 0; i < frames; i++ {
					bits := binary.LittleEndian.Uint32(data[i*4 : i*4+4])
					samples[i] = math.Float32frombits(bits)
				}
				block := domain.SampleBlock{
					Samples:    samples,
					Timestamp:  time.Now(),
					FrameCount: frames,
				}
				select {
				case s.blocks <- block:
				case <-s.stopped:
					return
				}
			}
			carry = append(carry[:0], data[frames*4:]...)
		}
		if err != nil {
			return
		}
	}
}

func (s *ffmpegStream) Stop() error {
	s.stopOnce.Do(func() {
		close(s.stopped)

		if s.process != nil {
			_ = s.process.Signal(os.Interrupt)
		}

		select {
		case err, ok := <-s.waitErr:
			if ok {
				s.stopErr = normalizeStopErr(err)
			}
		case <-time.After(1200 * time.Millisecond):
			if s.process != nil {
				_ = s.process.Kill()
			}
			err, ok := <-s.waitErr
			if ok {
				s.stopErr = normalizeStopErr(err)
			}
		}

		if closeErr := s.stdout.Close(); closeErr != nil && !errors.Is(closeErr, os.ErrClosed) {
			if s.stopErr == nil {
				s.stopErr = closeErr
			}
		}
		<-s.readerDone

		if s.stopErr != nil && s.stderr != nil && s.stderr.Len() > 0 {
			s.stopErr = fmt.Errorf("%w: %s", s.stopErr, strings.TrimSpace(s.stderr.String()))
		}
	})

	return s.stopErr
}

// normalizeStopErr drops exit-status errors: ffmpeg exits non-zero when
// interrupted, which is the expected stop path.
func normalizeStopErr(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}
