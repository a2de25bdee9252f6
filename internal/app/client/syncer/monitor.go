package syncer

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/exp/slog"
)

const DefaultProbeInterval = 15 * time.Second

// Trigger is what the monitor drives; *Orchestrator implements it.
type Trigger interface {
	TriggerSync(reason Reason) error
}

// Monitor watches server reachability and turns offline→online transitions into
// network_reconnect triggers. With a non-zero SyncInterval it also emits periodic triggers.
type Monitor struct {
	trigger       Trigger
	reach         Reachability
	log           *slog.Logger
	probeInterval time.Duration
	syncInterval  time.Duration
	online        atomic.Bool
	onChange      func(online bool)
}

// MonitorConfig tunes the monitor.
type MonitorConfig struct {
	ProbeInterval time.Duration
	SyncInterval  time.Duration
	// OnChange is called after each reachability transition.
	OnChange func(online bool)
}

func NewMonitor(trigger Trigger, reach Reachability, cfg MonitorConfig, log *slog.Logger) *Monitor {
	if cfg.ProbeInterval <= 0 {
		cfg.ProbeInterval = DefaultProbeInterval
	}
	return &Monitor{
		trigger:       trigger,
		reach:         reach,
		log:           log.With(slog.String("component", "monitor")),
		probeInterval: cfg.ProbeInterval,
		syncInterval:  cfg.SyncInterval,
		onChange:      cfg.OnChange,
	}
}

// Online reports the last probed reachability.
func (m *Monitor) Online() bool {
	return m.online.Load()
}

// Run probes until ctx is done. The monitor starts out offline, so a reachable server at
// startup yields a network_reconnect trigger.
func (m *Monitor) Run(ctx context.Context) {
	probe := time.NewTicker(m.probeInterval)
	defer probe.Stop()

	var periodic <-chan time.Time
	if m.syncInterval > 0 {
		t := time.NewTicker(m.syncInterval)
		defer t.Stop()
		periodic = t.C
	}

	m.probe(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-probe.C:
			m.probe(ctx)
		case <-periodic:
			if m.Online() {
				m.fire(ReasonPeriodic)
			}
		}
	}
}

func (m *Monitor) probe(ctx context.Context) {
	online := m.reach.Reachable(ctx)
	if ctx.Err() != nil {
		return
	}
	was := m.online.Swap(online)
	if was == online {
		return
	}

	m.log.Info("connectivity changed", slog.Bool("online", online))
	if m.onChange != nil {
		m.onChange(online)
	}
	if online {
		m.fire(ReasonNetworkReconnect)
	}
}

func (m *Monitor) fire(reason Reason) {
	if err := m.trigger.TriggerSync(reason); err != nil {
		m.log.Debug("trigger not accepted", slog.String("reason", reason.String()), slog.String("cause", err.Error()))
	}
}
