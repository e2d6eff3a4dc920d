package audio

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"voicenotes/internal/domain"
)

// fakeCapture writes a shell script that stands in for ffmpeg.
func fakeCapture(t *testing.T, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake-ffmpeg")
	contents := "#!/bin/sh\n" + script + "\n"
	if err := os.WriteFile(path, []byte(contents), 0o755); err != nil {
		t.Fatalf("write fake capture script: %v", err)
	}
	return path
}

func TestOpenStreamsSampleBlocks(t *testing.T) {
	t.Parallel()

	// 16384 bytes of f32le zeros are 4096 samples.
	command := fakeCapture(t, "head -c 16384 /dev/zero\nsleep 5")
	source := NewFFmpegSource(command)

	stream, err := source.Open(context.Background(), domain.AudioSourceConfig{Kind: domain.SourceMicrophone})
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}

	total := 0
	deadline := time.After(3 * time.Second)
	for total < 4096 {
		select {
		case block, ok := <-stream.Blocks():
			if !ok {
				t.Fatalf("stream closed early with %d samples", total)
			}
			if block.FrameCount != len(block.Samples) {
				t.Fatalf("frame count mismatch: %d vs %d", block.FrameCount, len(block.Samples))
			}
			total += len(block.Samples)
		case <-deadline:
			t.Fatalf("timed out with %d samples", total)
		}
	}

	if err := stream.Stop(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	// Stop is idempotent.
	if err := stream.Stop(); err != nil {
		t.Fatalf("second stop failed: %v", err)
	}
}

func TestOpenClassifiesMissingDevice(t *testing.T) {
	t.Parallel()

	command := fakeCapture(t, `echo "pulse: No such entity" >&2
exit 1`)
	source := NewFFmpegSource(command)

	_, err := source.Open(context.Background(), domain.AudioSourceConfig{Kind: domain.SourceMicrophone, DeviceID: "mic7"})
	var devErr *domain.DeviceError
	if !errors.As(err, &devErr) {
		t.Fatalf("expected device error, got %v", err)
	}
	if devErr.Kind != domain.DeviceNotFound || devErr.Device != "mic7" {
		t.Fatalf("unexpected classification: %+v", devErr)
	}
}

func TestOpenClassifiesPermissionDenied(t *testing.T) {
	t.Parallel()

	command := fakeCapture(t, `echo "pulse: Access denied" >&2
exit 1`)
	source := NewFFmpegSource(command)

	_, err := source.Open(context.Background(), domain.AudioSourceConfig{Kind: domain.SourceDesktop})
	var devErr *domain.DeviceError
	if !errors.As(err, &devErr) {
		t.Fatalf("expected device error, got %v", err)
	}
	if devErr.Kind != domain.DevicePermissionDenied {
		t.Fatalf("unexpected classification: %+v", devErr)
	}
}

func TestCaptureArgsPerSourceKind(t *testing.T) {
	t.Parallel()

	args, device, err := captureArgs(domain.AudioSourceConfig{Kind: domain.SourceMicrophone, DeviceID: "mic0"}, 44100)
	if err != nil {
		t.Fatalf("microphone args failed: %v", err)
	}
	if device != "mic0" {
		t.Fatalf("unexpected device: %q", device)
	}
	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "-f pulse -i mic0") {
		t.Fatalf("missing pulse input: %q", joined)
	}
	if !strings.HasSuffix(joined, "-ac 1 -ar 44100 -f f32le -") {
		t.Fatalf("unexpected output shape: %q", joined)
	}

	args, device, err = captureArgs(domain.AudioSourceConfig{Kind: domain.SourceDesktop}, 44100)
	if err != nil {
		t.Fatalf("desktop args failed: %v", err)
	}
	if device != "default.monitor" {
		t.Fatalf("unexpected monitor default: %q", device)
	}
	if !strings.Contains(strings.Join(args, " "), "-i default.monitor") {
		t.Fatalf("missing monitor input: %v", args)
	}

	args, _, err = captureArgs(domain.AudioSourceConfig{Kind: domain.SourceMix}, 44100)
	if err != nil {
		t.Fatalf("mix args failed: %v", err)
	}
	joined = strings.Join(args, " ")
	if !strings.Contains(joined, "amix=inputs=2:duration=longest") {
		t.Fatalf("mix must route through amix: %q", joined)
	}
	if strings.Count(joined, "-f pulse") != 2 {
		t.Fatalf("mix needs both pulse inputs: %q", joined)
	}

	if _, _, err := captureArgs(domain.AudioSourceConfig{Kind: "radio"}, 44100); err == nil {
		t.Fatalf("unknown source kind must be rejected")
	}
}

func TestClassifyDeviceError(t *testing.T) {
	t.Parallel()

	err := classifyDeviceError("Connection failure: No such entity", "mic0", errors.New("exit status 1"))
	var devErr *domain.DeviceError
	if !errors.As(err, &devErr) || devErr.Kind != domain.DeviceNotFound {
		t.Fatalf("unexpected classification: %v", err)
	}

	err = classifyDeviceError("pulseaudio: not authorized", "mic0", errors.New("exit status 1"))
	if !errors.As(err, &devErr) || devErr.Kind != domain.DevicePermissionDenied {
		t.Fatalf("unexpected classification: %v", err)
	}

	err = classifyDeviceError("something else went wrong", "mic0", errors.New("exit status 1"))
	if errors.As(err, &devErr) {
		t.Fatalf("unclassified stderr must stay a plain error: %v", err)
	}
	if !strings.Contains(err.Error(), "something else went wrong") {
		t.Fatalf("stderr detail lost: %v", err)
	}
}

func TestNormalizeStopErrDropsExitStatus(t *testing.T) {
	t.Parallel()

	exitErr := exec.Command("sh", "-c", "exit 3").Run()
	if exitErr == nil {
		t.Fatalf("expected a non-zero exit")
	}
	if got := normalizeStopErr(exitErr); got != nil {
		t.Fatalf("exit status must be swallowed, got %v", got)
	}

	plain := errors.New("pipe broke")
	if got := normalizeStopErr(plain); !errors.Is(got, plain) {
		t.Fatalf("unexpected error: %v", got)
	}
	if normalizeStopErr(nil) != nil {
		t.Fatalf("nil must stay nil")
	}
}
