package pilot

import (
	"context"
	"sync"
)

// stubBridge scripts capture and apply outcomes per call ordinal.
type stubBridge struct {
	mu sync.Mutex

	// captureFn receives the 1-based capture ordinal. Nil means every
	// capture succeeds with placeholder bytes.
	captureFn func(n int) ([]byte, error)
	// applyFn receives the 1-based apply ordinal and the action. Nil
	// means every apply succeeds.
	applyFn func(n int, action string) bool

	captures int
	applied  []string
}

func (b *stubBridge) Capture(ctx context.Context) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.captures++
	if b.captureFn != nil {
		return b.captureFn(b.captures)
	}
	return []byte("png-bytes"), nil
}

func (b *stubBridge) Apply(ctx context.Context, action string) bool {
	b.mu.Lock()
	b.applied = append(b.applied, action)
	n := len(b.applied)
	b.mu.Unlock()
	if b.applyFn != nil {
		return b.applyFn(n, action)
	}
	return true
}

func (b *stubBridge) captureCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.captures
}

func (b *stubBridge) appliedActions() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.applied...)
}

// stubDecider scripts decisions per call ordinal.
type stubDecider struct {
	mu sync.Mutex

	decideFn func(n int, goal string, screenshot []byte) (Decision, error)

	calls int
}

func (d *stubDecider) Decide(ctx context.Context, goal string, screenshot []byte) (Decision, error) {
	d.mu.Lock()
	d.calls++
	n := d.calls
	d.mu.Unlock()
	if d.decideFn != nil {
		return d.decideFn(n, goal, screenshot)
	}
	return Decision{Action: "input tap 1 1", Done: false, Rationale: "stub"}, nil
}

func (d *stubDecider) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}
