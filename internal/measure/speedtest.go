package measure

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/showwin/speedtest-go/speedtest"
)

var errNoServers = errors.New("no speed test servers reachable")

// SpeedtestProber measures against the public speedtest.net server fleet.
type SpeedtestProber struct {
	client     *speedtest.Speedtest
	candidates int
	logger     zerolog.Logger
}

// NewSpeedtestProber pings up to candidates of the nearest servers and tests
// against the one with the lowest latency.
func NewSpeedtestProber(candidates int, logger zerolog.Logger) *SpeedtestProber {
	if candidates < 1 {
		candidates = 1
	}
	return &SpeedtestProber{
		client:     speedtest.New(),
		candidates: candidates,
		logger:     logger.With().Str("component", "speedtest").Logger(),
	}
}

func (p *SpeedtestProber) Probe(ctx context.Context) (Probe, error) {
	servers, err := p.client.FetchServerListContext(ctx)
	if err != nil {
		return Probe{}, fmt.Errorf("fetch servers: %w", err)
	}
	if len(servers) == 0 {
		return Probe{}, errNoServers
	}

	best, err := p.pickServer(ctx, servers)
	if err != nil {
		return Probe{}, err
	}
	defer best.Context.Reset()

	p.logger.Debug().
		Str("server", best.Name).
		Str("sponsor", best.Sponsor).
		Str("host", best.Host).
		Dur("latency", best.Latency).
		Msg("selected server")

	if err := best.DownloadTestContext(ctx); err != nil {
		return Probe{}, fmt.Errorf("download test: %w", err)
	}
	if err := best.UploadTestContext(ctx); err != nil {
		return Probe{}, fmt.Errorf("upload test: %w", err)
	}

	return Probe{
		Host:        best.Host,
		DownloadBps: float64(best.DLSpeed) * 8,
		UploadBps:   float64(best.ULSpeed) * 8,
		Latency:     best.Latency,
	}, nil
}

// pickServer returns the candidate with the smallest measured latency.
func (p *SpeedtestProber) pickServer(ctx context.Context, servers speedtest.Servers) (*speedtest.Server, error) {
	if len(servers) > p.candidates {
		servers = servers[:p.candidates]
	}
	var best *speedtest.Server
	for _, s := range servers {
		if err := s.PingTestContext(ctx, nil); err != nil {
			p.logger.Debug().Err(err).Str("host", s.Host).Msg("ping failed")
			continue
		}
		if best == nil || s.Latency < best.Latency {
			best = s
		}
	}
	if best == nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, errNoServers
	}
	return best, nil
}
