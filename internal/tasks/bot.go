package tasks

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"sync/atomic"
	"time"

	"cronchat/internal/metrics"
	"cronchat/internal/models"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

const tickTimeout = 5 * time.Second

var everyNSeconds = regexp.MustCompile(`^\*/(\d+) \* \* \* \* \*$`)

type Publisher interface {
	Publish(ctx context.Context, m models.Message) error
}

type Status struct {
	Running  bool
	Schedule string
	NextRun  time.Time
	Ticks    int64
}

// BotScheduler owns the single cron entry that injects bot messages.
// Start and Stop are safe to call concurrently.
type BotScheduler struct {
	mu      sync.Mutex
	cron    *cron.Cron
	entry   cron.EntryID
	running bool

	schedule string
	sender   string
	pub      Publisher
	ticks    atomic.Int64
	logger   zerolog.Logger
}

var secondsParser = cron.NewParser(
	cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

func NewBotScheduler(pub Publisher, schedule, sender string, logger zerolog.Logger) (*BotScheduler, error) {
	if _, err := secondsParser.Parse(schedule); err != nil {
		return nil, fmt.Errorf("invalid bot schedule %q: %w", schedule, err)
	}
	return &BotScheduler{
		schedule: schedule,
		sender:   sender,
		pub:      pub,
		logger:   logger.With().Str("component", "scheduler").Str("job", "bot").Logger(),
	}, nil
}

// Start registers the bot job. It reports false when the job was already
// running, in which case nothing new is registered.
func (s *BotScheduler) Start() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		s.logger.Info().Msg("bot already running")
		return false, nil
	}

	c := newCron(s.logger, cron.WithParser(secondsParser))
	id, err := c.AddFunc(s.schedule, s.tick)
	if err != nil {
		return false, fmt.Errorf("schedule bot: %w", err)
	}
	c.Start()

	s.cron, s.entry, s.running = c, id, true
	s.logger.Info().Str("schedule", s.schedule).Msg("bot started")
	return true, nil
}

// Stop removes the bot job and waits for an in-flight tick to finish.
// It reports whether the job was running.
func (s *BotScheduler) Stop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return false
	}

	s.cron.Remove(s.entry)
	<-s.cron.Stop().Done()
	s.cron, s.entry, s.running = nil, 0, false
	s.logger.Info().Msg("bot stopped")
	return true
}

func (s *BotScheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{Running: s.running, Schedule: s.schedule, Ticks: s.ticks.Load()}
	if s.running {
		st.NextRun = s.cron.Entry(s.entry).Next
	}
	return st
}

// entries reports how many cron entries are registered.
func (s *BotScheduler) entries() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron == nil {
		return 0
	}
	return len(s.cron.Entries())
}

// Describe renders the schedule for API responses ("every 10 seconds").
func (s *BotScheduler) Describe() string {
	if m := everyNSeconds.FindStringSubmatch(s.schedule); m != nil {
		return "every " + m[1] + " seconds"
	}
	return s.schedule
}

func (s *BotScheduler) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), tickTimeout)
	defer cancel()

	msg := models.NewBotMessage(s.sender, time.Now())
	s.ticks.Add(1)
	metrics.BotTicks.Inc()

	if err := s.pub.Publish(ctx, msg); err != nil {
		s.logger.Error().Err(err).Str("id", msg.ID).Msg("bot tick failed")
		return
	}
	s.logger.Debug().Str("id", msg.ID).Str("text", msg.Text).Msg("bot tick")
}
