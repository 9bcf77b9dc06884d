package stealth

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"
)

// DelayProfile names a preset range for outbound HTTP jitter.
type DelayProfile string

const (
	ProfileCautious   DelayProfile = "cautious"
	ProfileNormal     DelayProfile = "normal"
	ProfileAggressive DelayProfile = "aggressive"
)

// HumanDelay sleeps for a random duration between Min and Max. The random
// source is injectable so tests can pin the sequence.
type HumanDelay struct {
	Min time.Duration
	Max time.Duration

	mu  sync.Mutex
	rnd *rand.Rand

	// sleep is replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewHumanDelay returns a delay for the given profile.
func NewHumanDelay(profile DelayProfile) *HumanDelay {
	switch profile {
	case ProfileCautious:
		return NewRange(2*time.Second, 5*time.Second, nil)
	case ProfileAggressive:
		return NewRange(200*time.Millisecond, 800*time.Millisecond, nil)
	default:
		return NewRange(500*time.Millisecond, 2*time.Second, nil)
	}
}

// NewRange returns a delay over [min, max]. A nil rnd uses a time-seeded
// source.
func NewRange(min, max time.Duration, rnd *rand.Rand) *HumanDelay {
	if rnd == nil {
		seed := uint64(time.Now().UnixNano())
		rnd = rand.New(rand.NewPCG(seed, seed>>1))
	}
	if max < min {
		max = min
	}
	return &HumanDelay{Min: min, Max: max, rnd: rnd, sleep: sleepCtx}
}

// WithFloor returns a copy whose range never drops below floorMin/floorMax.
func (h *HumanDelay) WithFloor(floorMin, floorMax time.Duration) *HumanDelay {
	min, max := h.Min, h.Max
	if min < floorMin {
		min = floorMin
	}
	if max < floorMax {
		max = floorMax
	}
	if max < min {
		max = min
	}
	return &HumanDelay{Min: min, Max: max, rnd: h.rnd, sleep: h.sleep}
}

// Next draws the next duration without sleeping.
func (h *HumanDelay) Next() time.Duration {
	if h.Min >= h.Max {
		return h.Min
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.Min + time.Duration(h.rnd.Int64N(int64(h.Max-h.Min)))
}

// Wait sleeps for Next() or until ctx is done.
func (h *HumanDelay) Wait(ctx context.Context) error {
	return h.sleep(ctx, h.Next())
}

// NoSleep makes Wait return immediately. Durations are still drawn.
func (h *HumanDelay) NoSleep() *HumanDelay {
	h.sleep = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }
	return h
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
