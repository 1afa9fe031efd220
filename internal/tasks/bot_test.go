package tasks

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"cronchat/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capture struct {
	mu   sync.Mutex
	msgs []models.Message
	err  error
}

func (c *capture) Publish(_ context.Context, m models.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, m)
	return c.err
}

func (c *capture) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.msgs)
}

func TestStartTwiceRegistersOneJob(t *testing.T) {
	s, err := NewBotScheduler(&capture{}, "*/10 * * * * *", "Cron Bot", zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Stop() })

	started, err := s.Start()
	require.NoError(t, err)
	assert.True(t, started)

	started, err = s.Start()
	require.NoError(t, err)
	assert.False(t, started)

	assert.Equal(t, 1, s.entries())
	st := s.Status()
	assert.True(t, st.Running)
	assert.False(t, st.NextRun.IsZero())
}

func TestConcurrentStartRegistersOneJob(t *testing.T) {
	s, err := NewBotScheduler(&capture{}, "*/10 * * * * *", "Cron Bot", zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Stop() })

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
	)
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.Start()
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, winners)
	assert.Equal(t, 1, s.entries())
}

func TestStopAndRestart(t *testing.T) {
	s, err := NewBotScheduler(&capture{}, "*/10 * * * * *", "Cron Bot", zerolog.Nop())
	require.NoError(t, err)

	assert.False(t, s.Stop())

	_, err = s.Start()
	require.NoError(t, err)
	assert.True(t, s.Stop())
	assert.False(t, s.Status().Running)
	assert.Equal(t, 0, s.entries())

	started, err := s.Start()
	require.NoError(t, err)
	assert.True(t, started)
	assert.True(t, s.Stop())
}

func TestBotFiresOnSchedule(t *testing.T) {
	pub := &capture{}
	s, err := NewBotScheduler(pub, "@every 1s", "Cron Bot", zerolog.Nop())
	require.NoError(t, err)

	_, err = s.Start()
	require.NoError(t, err)
	t.Cleanup(func() { s.Stop() })

	assert.Eventually(t, func() bool { return pub.count() >= 1 }, 3*time.Second, 20*time.Millisecond)

	pub.mu.Lock()
	first := pub.msgs[0]
	pub.mu.Unlock()
	assert.Equal(t, models.TypeCron, first.Type)
	assert.Equal(t, "Cron Bot", first.Sender)
	assert.Contains(t, first.Text, "Message from cron at ")
}

type panicky struct{ calls atomic.Int64 }

func (p *panicky) Publish(context.Context, models.Message) error {
	p.calls.Add(1)
	panic("publisher exploded")
}

func TestPanickingTickDoesNotStopBot(t *testing.T) {
	pub := &panicky{}
	s, err := NewBotScheduler(pub, "@every 1s", "Cron Bot", zerolog.Nop())
	require.NoError(t, err)

	_, err = s.Start()
	require.NoError(t, err)
	t.Cleanup(func() { s.Stop() })

	assert.Eventually(t, func() bool { return pub.calls.Load() >= 2 }, 4*time.Second, 20*time.Millisecond)
	assert.True(t, s.Status().Running)
}

func TestTickSwallowsPublishErrors(t *testing.T) {
	pub := &capture{err: errors.New("relay down")}
	s, err := NewBotScheduler(pub, "*/10 * * * * *", "Cron Bot", zerolog.Nop())
	require.NoError(t, err)

	assert.NotPanics(t, s.tick)
	assert.Equal(t, 1, pub.count())
	assert.EqualValues(t, 1, s.Status().Ticks)
}

func TestInvalidSchedule(t *testing.T) {
	_, err := NewBotScheduler(&capture{}, "every now and then", "Cron Bot", zerolog.Nop())
	assert.Error(t, err)
}

func TestDescribe(t *testing.T) {
	s, err := NewBotScheduler(&capture{}, "*/10 * * * * *", "Cron Bot", zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, "every 10 seconds", s.Describe())

	s, err = NewBotScheduler(&capture{}, "@every 1m", "Cron Bot", zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, "@every 1m", s.Describe())
}
