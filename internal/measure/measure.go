package measure

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// LocalAddressUnavailable replaces the local address when it cannot be determined.
const LocalAddressUnavailable = "Unable to resolve local IP"

// ErrMeasurementFailed wraps every failure of the underlying speed test.
var ErrMeasurementFailed = errors.New("measurement failed")

// Probe is the raw outcome of one speed test, in provider units.
type Probe struct {
	Host        string
	DownloadBps float64
	UploadBps   float64
	Latency     time.Duration
}

// Prober runs a single speed test against the best endpoint it can find.
type Prober interface {
	Probe(ctx context.Context) (Probe, error)
}

// Result is a normalized measurement, ready to be stamped and stored.
type Result struct {
	RemoteAddress string
	LocalAddress  string
	DownloadMbps  float64
	UploadMbps    float64
	LatencyMs     float64
}

type LocalAddressFunc func(ctx context.Context) (string, error)

type Option func(*Adapter)

func WithLocalAddress(fn LocalAddressFunc) Option {
	return func(a *Adapter) { a.localAddr = fn }
}

// Adapter drives a Prober and converts its output to Mbps and milliseconds.
// Only one measurement runs at a time; the link is shared.
type Adapter struct {
	prober    Prober
	localAddr LocalAddressFunc
	slot      chan struct{}
	logger    zerolog.Logger
}

func NewAdapter(prober Prober, logger zerolog.Logger, opts ...Option) *Adapter {
	a := &Adapter{
		prober:    prober,
		localAddr: LookupLocalAddress,
		slot:      make(chan struct{}, 1),
		logger:    logger.With().Str("component", "measure").Logger(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Measure performs exactly one speed test. It waits for any measurement
// already in progress, giving up when ctx ends.
func (a *Adapter) Measure(ctx context.Context) (res Result, err error) {
	select {
	case a.slot <- struct{}{}:
	case <-ctx.Done():
		return Result{}, fmt.Errorf("%w: waiting for provider: %w", ErrMeasurementFailed, ctx.Err())
	}
	defer func() { <-a.slot }()

	defer func() {
		if r := recover(); r != nil {
			a.logger.Error().Interface("panic", r).Msg("speed test provider panicked")
			err = fmt.Errorf("%w: provider panic: %v", ErrMeasurementFailed, r)
		}
	}()

	start := time.Now()
	p, err := a.prober.Probe(ctx)
	if err != nil {
		a.logger.Error().Err(err).Dur("elapsed", time.Since(start)).Msg("speed test failed")
		return Result{}, fmt.Errorf("%w: %w", ErrMeasurementFailed, err)
	}
	if p.Host == "" {
		return Result{}, fmt.Errorf("%w: provider reported no endpoint host", ErrMeasurementFailed)
	}

	res = Result{
		RemoteAddress: p.Host,
		LocalAddress:  a.resolveLocal(ctx),
		DownloadMbps:  BitsToMbps(p.DownloadBps),
		UploadMbps:    BitsToMbps(p.UploadBps),
		LatencyMs:     DurationToMs(p.Latency),
	}
	a.logger.Info().
		Str("remote", res.RemoteAddress).
		Float64("download_mbps", res.DownloadMbps).
		Float64("upload_mbps", res.UploadMbps).
		Float64("latency_ms", res.LatencyMs).
		Dur("elapsed", time.Since(start)).
		Msg("speed test completed")
	return res, nil
}

func (a *Adapter) resolveLocal(ctx context.Context) string {
	addr, err := a.localAddr(ctx)
	if err != nil || addr == "" {
		a.logger.Warn().Err(err).Msg("local address unavailable")
		return LocalAddressUnavailable
	}
	return addr
}

// BitsToMbps converts bits per second to megabits per second.
func BitsToMbps(bps float64) float64 {
	if bps < 0 {
		return 0
	}
	return bps / 1e6
}

func DurationToMs(d time.Duration) float64 {
	if d < 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}
