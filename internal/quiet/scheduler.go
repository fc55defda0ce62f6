// Package quiet maintains the per-tenant recurring mute/unmute job pair
// that enforces scheduled quiet hours.
package quiet

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/saiinc/lynxguard/internal/config"
	"github.com/saiinc/lynxguard/internal/tenant"
	"github.com/saiinc/lynxguard/internal/transport"
)

// jobPair tracks the two cron entries of one tenant. A tenant has
// either no entry in the jobs map or a complete pair, never half.
type jobPair struct {
	mute   cron.EntryID
	unmute cron.EntryID
}

// Scheduler reconciles each tenant's night_mute toggle with its
// mute/unmute cron pair. Times are wall clock in the configured
// timezone, so they are unaffected by DST shifts.
type Scheduler struct {
	cron       *cron.Cron
	tr         transport.Transport
	reg        *tenant.Registry
	muteSpec   string
	unmuteSpec string

	mu   sync.Mutex
	jobs map[int64]jobPair
}

// New builds a scheduler from the global quiet-hours config. The cron
// runner is created stopped; call Start.
func New(tr transport.Transport, reg *tenant.Registry, cfg config.QuietHoursConfig) (*Scheduler, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("quiet-hours timezone: %w", err)
	}
	return &Scheduler{
		cron:       cron.New(cron.WithLocation(loc)),
		tr:         tr,
		reg:        reg,
		muteSpec:   cfg.MuteCron,
		unmuteSpec: cfg.UnmuteCron,
		jobs:       map[int64]jobPair{},
	}, nil
}

// Start begins firing jobs.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop halts the runner and waits for in-flight jobs.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// Reconcile aligns one tenant's job pair with its night_mute toggle.
// Re-reconciling an already-correct state performs no job churn.
// Removal is synchronous: after Reconcile returns, a removed job can no
// longer fire.
func (s *Scheduler) Reconcile(t *tenant.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pair, exists := s.jobs[t.ID]
	want := t.Enabled(tenant.ToggleNightMute)

	switch {
	case want && !exists:
		id := t.ID
		muteID, err := s.cron.AddFunc(s.muteSpec, func() { s.muteTenant(id) })
		if err != nil {
			return fmt.Errorf("schedule mute for tenant %d: %w", id, err)
		}
		unmuteID, err := s.cron.AddFunc(s.unmuteSpec, func() { s.unmuteTenant(id) })
		if err != nil {
			s.cron.Remove(muteID)
			return fmt.Errorf("schedule unmute for tenant %d: %w", id, err)
		}
		s.jobs[id] = jobPair{mute: muteID, unmute: unmuteID}
		slog.Info("quiet hours scheduled", "tenant", id, "mute", s.muteSpec, "unmute", s.unmuteSpec)

	case !want && exists:
		s.cron.Remove(pair.mute)
		s.cron.Remove(pair.unmute)
		delete(s.jobs, t.ID)
		s.reg.ClearTransientToggles(t.ID)
		slog.Info("quiet hours unscheduled", "tenant", t.ID)
	}
	return nil
}

// SetSchedule replaces the cron pair and reschedules every tenant that
// currently owns jobs. The timezone is fixed at construction; a changed
// timezone takes effect on restart.
func (s *Scheduler) SetSchedule(cfg config.QuietHoursConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cfg.MuteCron == s.muteSpec && cfg.UnmuteCron == s.unmuteSpec {
		return nil
	}
	s.muteSpec, s.unmuteSpec = cfg.MuteCron, cfg.UnmuteCron

	for id, pair := range s.jobs {
		s.cron.Remove(pair.mute)
		s.cron.Remove(pair.unmute)
		tenantID := id
		muteID, err := s.cron.AddFunc(s.muteSpec, func() { s.muteTenant(tenantID) })
		if err != nil {
			delete(s.jobs, id)
			return fmt.Errorf("reschedule mute for tenant %d: %w", id, err)
		}
		unmuteID, err := s.cron.AddFunc(s.unmuteSpec, func() { s.unmuteTenant(tenantID) })
		if err != nil {
			s.cron.Remove(muteID)
			delete(s.jobs, id)
			return fmt.Errorf("reschedule unmute for tenant %d: %w", id, err)
		}
		s.jobs[id] = jobPair{mute: muteID, unmute: unmuteID}
	}
	slog.Info("quiet hours rescheduled", "mute", s.muteSpec, "unmute", s.unmuteSpec, "tenants", len(s.jobs))
	return nil
}

// ReconcileAll reconciles every tenant currently in the registry.
func (s *Scheduler) ReconcileAll() {
	for _, t := range s.reg.All() {
		if err := s.Reconcile(t); err != nil {
			slog.Warn("quiet hours reconcile failed", "tenant", t.ID, "error", err)
		}
	}
}

// JobCount reports how many cron entries a tenant owns (0 or 2).
func (s *Scheduler) JobCount(tenantID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[tenantID]; ok {
		return 2
	}
	return 0
}

// muteTenant revokes all messaging permissions and transiently forces
// the hello/goodbye toggles off so member join/leave messages do not
// break the restricted state. The toggle flips are not
// persisted and dissolve on the next reload.
func (s *Scheduler) muteTenant(id int64) {
	ctx := context.Background()
	if err := s.tr.SetChatPermissions(ctx, id, transport.None()); err != nil {
		slog.Warn("quiet hours mute failed", "tenant", id, "error", err)
		return
	}
	s.reg.SetToggleTransient(id, tenant.ToggleHello, false)
	s.reg.SetToggleTransient(id, tenant.ToggleGoodbye, false)
	slog.Info("quiet hours started", "tenant", id)
}

// unmuteTenant restores the full member permission set and lifts the
// transient hello/goodbye suppression.
func (s *Scheduler) unmuteTenant(id int64) {
	if err := s.tr.SetChatPermissions(context.Background(), id, transport.Full()); err != nil {
		slog.Warn("quiet hours unmute failed", "tenant", id, "error", err)
		return
	}
	s.reg.ClearTransientToggles(id)
	slog.Info("quiet hours ended", "tenant", id)
}
