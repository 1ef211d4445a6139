// Package adb is the device bridge adapter: it issues capture and action
// commands to a USB-attached Android device through the adb tool and
// reports raw results. It has no knowledge of goals or decisions.
package adb

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/droidpilot/internal/config"
)

// directVerbs are the bridge-level device-management commands dispatched
// as `adb <verb> ...`. Everything else is forwarded to the device shell
// as `adb shell ...` (tap/swipe/text-input/app-launch directives).
var directVerbs = map[string]struct{}{
	"screencap": {},
	"pull":      {},
	"install":   {},
	"push":      {},
	"devices":   {},
	"logcat":    {},
}

// commandRunner executes one adb invocation and returns its combined
// output. Injected so tests never spawn processes.
type commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Device is one row of `adb devices -l`.
type Device struct {
	Serial string
	State  string
	Model  string
}

// Bridge talks to a single connected device.
type Bridge struct {
	cfg    config.BridgeConfig
	logger *zap.Logger
	run    commandRunner
	sleep  func(ctx context.Context, d time.Duration)
}

// New creates a bridge from configuration.
func New(cfg config.BridgeConfig, logger *zap.Logger) *Bridge {
	if cfg.ADBPath == "" {
		cfg.ADBPath = "adb"
	}
	if cfg.RemoteScreenshotPath == "" {
		cfg.RemoteScreenshotPath = "/sdcard/droidpilot_screen.png"
	}
	return &Bridge{
		cfg:    cfg,
		logger: logger.Named("adb"),
		run:    runCommand,
		sleep:  sleepCtx,
	}
}

// Capture takes a screenshot on the device, pulls it to a local temp
// directory, and returns the PNG bytes. Both the on-device file and the
// local copy are removed before returning; repeated calls are safe.
func (b *Bridge) Capture(ctx context.Context) ([]byte, error) {
	ctx, cancel := b.callContext(ctx)
	defer cancel()

	remote := b.cfg.RemoteScreenshotPath
	if out, err := b.run(ctx, b.cfg.ADBPath, b.args("shell", "screencap", "-p", remote)...); err != nil {
		return nil, captureErr("screencap on device", out, err)
	}

	// Give the device a beat to flush the file before transferring it.
	b.sleep(ctx, b.cfg.CaptureSettle)

	dir, err := os.MkdirTemp("", "droidpilot-capture-")
	if err != nil {
		return nil, fmt.Errorf("create capture temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	local := filepath.Join(dir, "screen.png")
	if out, err := b.run(ctx, b.cfg.ADBPath, b.args("pull", remote, local)...); err != nil {
		return nil, captureErr("pull screenshot from device", out, err)
	}

	data, err := os.ReadFile(local)
	if err != nil {
		return nil, fmt.Errorf("read pulled screenshot: %w", err)
	}

	// Best effort: a stale on-device file only wastes space.
	if out, err := b.run(ctx, b.cfg.ADBPath, b.args("shell", "rm", "-f", remote)...); err != nil {
		b.logger.Warn("Failed to remove on-device screenshot",
			zap.String("path", remote), zap.ByteString("output", out), zap.Error(err))
	}

	b.logger.Debug("Screen captured", zap.Int("bytes", len(data)))
	return data, nil
}

// Apply executes one action instruction. The leading token selects the
// dispatch form: a direct bridge verb runs as `adb <action>`, anything
// else runs in the device shell. Returns true only when the process
// reports success; all execution errors are logged and surface as false.
func (b *Bridge) Apply(ctx context.Context, action string) bool {
	fields := strings.Fields(strings.TrimSpace(action))
	if len(fields) == 0 {
		b.logger.Error("Refusing to apply empty action")
		return false
	}

	var args []string
	if _, direct := directVerbs[fields[0]]; direct {
		args = b.args(fields...)
	} else {
		args = b.args(append([]string{"shell"}, fields...)...)
	}

	ctx, cancel := b.callContext(ctx)
	defer cancel()

	b.logger.Info("Executing action", zap.String("cmd", b.cfg.ADBPath+" "+strings.Join(args, " ")))
	out, err := b.run(ctx, b.cfg.ADBPath, args...)
	if err != nil {
		b.logger.Error("Action failed",
			zap.String("action", action),
			zap.ByteString("output", out),
			zap.Error(err),
		)
		return false
	}
	if len(out) > 0 {
		b.logger.Debug("Action output", zap.ByteString("output", out))
	}
	return true
}

// Devices enumerates attached devices via `adb devices -l`.
func (b *Bridge) Devices(ctx context.Context) ([]Device, error) {
	ctx, cancel := b.callContext(ctx)
	defer cancel()

	out, err := b.run(ctx, b.cfg.ADBPath, "devices", "-l")
	if err != nil {
		return nil, fmt.Errorf("enumerate devices: %w (output: %s)", err, strings.TrimSpace(string(out)))
	}
	return parseDevices(string(out)), nil
}

// args prepends the -s serial selector when one is configured.
func (b *Bridge) args(rest ...string) []string {
	if b.cfg.Serial == "" {
		return rest
	}
	return append([]string{"-s", b.cfg.Serial}, rest...)
}

// callContext applies the optional per-call timeout. Zero means no
// timeout: an unresponsive bridge stalls until it errors or the process
// is killed externally, matching the documented design gap.
func (b *Bridge) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if b.cfg.CommandTimeout > 0 {
		return context.WithTimeout(ctx, b.cfg.CommandTimeout)
	}
	return ctx, func() {}
}

func captureErr(stage string, out []byte, err error) error {
	msg := strings.TrimSpace(string(out))
	if msg == "" {
		return fmt.Errorf("%s: %w (is adb installed, the device connected, and USB debugging enabled?)", stage, err)
	}
	return fmt.Errorf("%s: %w: %s", stage, err, msg)
}

func parseDevices(out string) []Device {
	var devices []Device
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "List of devices") || strings.HasPrefix(line, "*") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		d := Device{Serial: fields[0], State: fields[1]}
		for _, f := range fields[2:] {
			if v, ok := strings.CutPrefix(f, "model:"); ok {
				d.Model = v
			}
		}
		devices = append(devices, d)
	}
	return devices
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
