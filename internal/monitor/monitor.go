// Package monitor keeps the cluster cache in step with the article store.
// A listener refreshes the cache on every change notification and a
// scheduled safety check compares watermarks to catch anything the listener
// missed.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"stirimm/internal/notify"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Refresher is the part of the cluster cache driven by the monitor
type Refresher interface {
	Refresh(ctx context.Context) error
	Watermark() (int64, bool)
	LogStats()
}

// WatermarkSource reports the current highest article id
type WatermarkSource interface {
	MaxArticleID(ctx context.Context) (int64, bool, error)
}

type Config struct {
	Topic            string
	ListenWait       time.Duration
	ReconnectBackoff time.Duration
	SafetyInterval   time.Duration
	StatsInterval    time.Duration
}

func DefaultConfig() Config {
	return Config{
		Topic:            "news_changed",
		ListenWait:       30 * time.Second,
		ReconnectBackoff: 5 * time.Second,
		SafetyInterval:   5 * time.Minute,
		StatsInterval:    30 * time.Minute,
	}
}

// Status is a point-in-time view of the monitor
type Status struct {
	Running          bool       `json:"running"`
	ListenerEnabled  bool       `json:"listener_enabled"`
	Listening        bool       `json:"listening"`
	Topic            string     `json:"topic,omitempty"`
	Notifications    int64      `json:"notifications"`
	LastNotification *time.Time `json:"last_notification,omitempty"`
	Reconnects       int64      `json:"reconnects"`
	SafetyChecks     int64      `json:"safety_checks"`
	LastSafetyCheck  *time.Time `json:"last_safety_check,omitempty"`
	MissedChanges    int64      `json:"missed_changes"`
}

type Monitor struct {
	cache    Refresher
	store    WatermarkSource
	notifier notify.Notifier
	cfg      Config
	logger   zerolog.Logger

	cron   *cron.Cron
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu               sync.RWMutex
	running          bool
	listening        bool
	notifications    int64
	lastNotification time.Time
	reconnects       int64
	safetyChecks     int64
	lastSafetyCheck  time.Time
	missedChanges    int64
}

// New creates a monitor. A nil notifier disables the listener; the safety
// check then is the only path that refreshes the cache.
func New(cache Refresher, store WatermarkSource, notifier notify.Notifier, cfg Config, logger zerolog.Logger) *Monitor {
	defaults := DefaultConfig()
	if cfg.Topic == "" {
		cfg.Topic = defaults.Topic
	}
	if cfg.ListenWait <= 0 {
		cfg.ListenWait = defaults.ListenWait
	}
	if cfg.ReconnectBackoff <= 0 {
		cfg.ReconnectBackoff = defaults.ReconnectBackoff
	}
	if cfg.SafetyInterval <= 0 {
		cfg.SafetyInterval = defaults.SafetyInterval
	}
	if cfg.StatsInterval <= 0 {
		cfg.StatsInterval = defaults.StatsInterval
	}

	return &Monitor{
		cache:    cache,
		store:    store,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger.With().Str("component", "change-monitor").Logger(),
	}
}

// Start launches the listener and the scheduled jobs. They run until ctx is
// cancelled or Stop is called.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return errors.New("monitor already running")
	}

	ctx, cancel := context.WithCancel(ctx)

	cronLog := cronLogger{logger: m.logger}
	c := cron.New(
		cron.WithLogger(cronLog),
		cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
	)
	if _, err := c.AddFunc(every(m.cfg.SafetyInterval), func() { m.SafetyCheck(ctx) }); err != nil {
		cancel()
		return fmt.Errorf("failed to schedule safety check: %w", err)
	}
	if _, err := c.AddFunc(every(m.cfg.StatsInterval), m.cache.LogStats); err != nil {
		cancel()
		return fmt.Errorf("failed to schedule cache stats: %w", err)
	}

	m.cron = c
	m.cancel = cancel
	m.running = true
	c.Start()

	if m.notifier != nil {
		m.wg.Add(1)
		go m.listenLoop(ctx)
	} else {
		m.logger.Info().Msg("No change notifier configured, relying on safety checks")
	}

	m.logger.Info().
		Str("topic", m.cfg.Topic).
		Dur("safety_interval", m.cfg.SafetyInterval).
		Dur("stats_interval", m.cfg.StatsInterval).
		Msg("Change monitor started")
	return nil
}

// Stop cancels the listener, waits for a running scheduled job to finish and
// returns once everything has exited.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	cancel, c := m.cancel, m.cron
	m.mu.Unlock()

	m.logger.Info().Msg("Stopping change monitor...")
	cancel()
	<-c.Stop().Done()
	m.wg.Wait()
	m.logger.Info().Msg("Change monitor stopped")
}

func (m *Monitor) listenLoop(ctx context.Context) {
	defer m.wg.Done()

	for {
		err := m.listen(ctx)
		m.setListening(false)
		if ctx.Err() != nil {
			return
		}

		m.mu.Lock()
		m.reconnects++
		m.mu.Unlock()
		m.logger.Warn().Err(err).Dur("backoff", m.cfg.ReconnectBackoff).Msg("Change listener failed, reconnecting")

		backoff := time.NewTimer(m.cfg.ReconnectBackoff)
		select {
		case <-ctx.Done():
			backoff.Stop()
			return
		case <-backoff.C:
		}
	}
}

// listen runs one subscription until it breaks or ctx ends
func (m *Monitor) listen(ctx context.Context) error {
	sub, err := m.notifier.Subscribe(ctx, m.cfg.Topic)
	if err != nil {
		return err
	}
	defer sub.Close()

	m.setListening(true)
	m.logger.Info().Str("topic", m.cfg.Topic).Msg("Listening for news changes")

	for {
		notified, err := sub.Wait(ctx, m.cfg.ListenWait)
		if err != nil {
			return err
		}
		if !notified {
			continue
		}

		m.mu.Lock()
		m.notifications++
		m.lastNotification = time.Now().UTC()
		m.mu.Unlock()

		m.logger.Debug().Msg("News change notification received")
		if err := m.cache.Refresh(ctx); err != nil && ctx.Err() == nil {
			m.logger.Error().Err(err).Msg("Cache refresh after notification failed")
		}
	}
}

// SafetyCheck refreshes the cache when the store holds a newer article than
// the published snapshot. It reports whether a refresh was attempted.
func (m *Monitor) SafetyCheck(ctx context.Context) (bool, error) {
	current, ok, err := m.store.MaxArticleID(ctx)

	m.mu.Lock()
	m.safetyChecks++
	m.lastSafetyCheck = time.Now().UTC()
	m.mu.Unlock()

	if err != nil {
		m.logger.Warn().Err(err).Msg("Safety check could not read the article watermark")
		return false, err
	}
	if !ok {
		return false, nil
	}

	cached, hasCached := m.cache.Watermark()
	if hasCached && cached == current {
		return false, nil
	}

	m.mu.Lock()
	m.missedChanges++
	m.mu.Unlock()

	event := m.logger.Warn().Int64("store_max_id", current)
	if hasCached {
		event = event.Int64("cached_max_id", cached)
	}
	event.Msg("Safety check detected missed change, refreshing")

	if err := m.cache.Refresh(ctx); err != nil {
		m.logger.Error().Err(err).Msg("Cache refresh after safety check failed")
		return true, err
	}
	return true, nil
}

func (m *Monitor) setListening(listening bool) {
	m.mu.Lock()
	m.listening = listening
	m.mu.Unlock()
}

func (m *Monitor) IsListening() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listening
}

func (m *Monitor) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

func (m *Monitor) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status := Status{
		Running:         m.running,
		ListenerEnabled: m.notifier != nil,
		Listening:       m.listening,
		Notifications:   m.notifications,
		Reconnects:      m.reconnects,
		SafetyChecks:    m.safetyChecks,
		MissedChanges:   m.missedChanges,
	}
	if m.notifier != nil {
		status.Topic = m.cfg.Topic
	}
	if !m.lastNotification.IsZero() {
		t := m.lastNotification
		status.LastNotification = &t
	}
	if !m.lastSafetyCheck.IsZero() {
		t := m.lastSafetyCheck
		status.LastSafetyCheck = &t
	}
	return status
}

func every(d time.Duration) string {
	return "@every " + d.String()
}
