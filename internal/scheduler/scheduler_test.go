package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStart_RejectsBadSpec(t *testing.T) {
	s := New(context.Background(), zerolog.Nop())
	defer s.Stop()
	assert.Error(t, s.Start("not a cron spec", func(context.Context) error { return nil }))
	assert.Error(t, s.Start("* * * * *", nil))
	assert.Empty(t, s.cron.Entries())
}

func TestStart_RunsJob(t *testing.T) {
	s := New(context.Background(), zerolog.Nop())
	ran := make(chan struct{}, 1)
	require.NoError(t, s.Start("@every 1s", func(ctx context.Context) error {
		select {
		case ran <- struct{}{}:
		default:
		}
		return nil
	}))

	select {
	case <-ran:
	case <-time.After(3 * time.Second):
		t.Fatal("job did not run")
	}
	s.Stop()
}

func TestStop_CancelsRunningJob(t *testing.T) {
	s := New(context.Background(), zerolog.Nop())
	started := make(chan struct{}, 1)
	require.NoError(t, s.Start("@every 1s", func(ctx context.Context) error {
		select {
		case started <- struct{}{}:
		default:
		}
		<-ctx.Done()
		return ctx.Err()
	}))

	select {
	case <-started:
	case <-time.After(3 * time.Second):
		t.Fatal("job did not run")
	}

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("Stop did not cancel the running job")
	}
}

func TestParentCancelReachesJob(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	s := New(parent, zerolog.Nop())
	defer s.Stop()

	cancel()
	select {
	case <-s.ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("job context not derived from parent")
	}
}
