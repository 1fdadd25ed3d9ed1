package bns

import (
	"context"
	"sync"
	"time"

	"tweetstamp-node/types"
)

const (
	DefaultSweepInterval = 24 * time.Hour
	DefaultWarmupDelay   = 30 * time.Second
	DefaultBatchSize     = 100
	DefaultRequestDelay  = 100 * time.Millisecond
)

// BindingStore is the slice of the registration store the validator needs.
type BindingStore interface {
	FindStaleBindings(ctx context.Context, olderThan time.Time, limit int) ([]*types.Registration, error)
	UpdateBinding(ctx context.Context, contentHash string, status types.BindingStatus, currentOwner string, transferredAt *time.Time, validatedAt time.Time) error
}

type NameLookup interface {
	NamesOwnedBy(ctx context.Context, address string) ([]string, error)
}

// SweepReport summarizes one validation sweep.
type SweepReport struct {
	Checked     int `json:"checked"`
	Valid       int `json:"valid"`
	Transferred int `json:"transferred"`
	Unowned     int `json:"unowned"`
	Failed      int `json:"failed"`
}

// Validator keeps each registration's claimed name binding eventually
// consistent with the external registry. One sweep may be scheduled per
// process; Start while running is a logged no-op.
type Validator struct {
	store  BindingStore
	lookup NameLookup

	interval     time.Duration
	warmup       time.Duration
	batchSize    int
	requestDelay time.Duration

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewValidator(store BindingStore, lookup NameLookup, interval, warmup time.Duration, batchSize int, requestDelay time.Duration) *Validator {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if warmup < 0 {
		warmup = DefaultWarmupDelay
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if requestDelay < 0 {
		requestDelay = DefaultRequestDelay
	}
	return &Validator{
		store:        store,
		lookup:       lookup,
		interval:     interval,
		warmup:       warmup,
		batchSize:    batchSize,
		requestDelay: requestDelay,
	}
}

// Start schedules the recurring sweep: once after the warm-up delay, then on
// the configured interval.
func (v *Validator) Start(ctx context.Context) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.running {
		log.Warn("bns validation sweep already scheduled, ignoring start")
		return
	}
	v.running = true
	v.stopCh = make(chan struct{})
	v.doneCh = make(chan struct{})
	go v.loop(ctx, v.stopCh, v.doneCh)
	log.Infof("bns validation sweep scheduled, warmup %s interval %s", v.warmup, v.interval)
}

// Stop cancels the scheduled sweep and waits for an in-flight one to wind
// down. Stopping a validator that never started is a no-op.
func (v *Validator) Stop() {
	v.mu.Lock()
	if !v.running {
		v.mu.Unlock()
		return
	}
	v.running = false
	close(v.stopCh)
	done := v.doneCh
	v.mu.Unlock()
	<-done
	log.Info("bns validation sweep stopped")
}

func (v *Validator) loop(ctx context.Context, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	warmup := time.NewTimer(v.warmup)
	defer warmup.Stop()
	select {
	case <-warmup.C:
	case <-stopCh:
		return
	case <-ctx.Done():
		return
	}
	v.sweepAndLog(ctx)

	ticker := time.NewTicker(v.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			v.sweepAndLog(ctx)
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (v *Validator) sweepAndLog(ctx context.Context) {
	report, err := v.RunSweep(ctx)
	if err != nil {
		log.Errorf("bns validation sweep failed: %v", err)
		return
	}
	log.Infof("bns sweep done: checked %d valid %d transferred %d unowned %d failed %d",
		report.Checked, report.Valid, report.Transferred, report.Unowned, report.Failed)
}

// RunSweep validates one batch of stale bindings synchronously. A failed
// registry lookup for a record is logged and skipped without advancing its
// LastValidated stamp, so it is retried on the next sweep; a full outage
// degrades to a zero-record sweep.
func (v *Validator) RunSweep(ctx context.Context) (*SweepReport, error) {
	cutoff := time.Now().Add(-v.interval)
	regs, err := v.store.FindStaleBindings(ctx, cutoff, v.batchSize)
	if err != nil {
		return nil, types.Wrap(types.ErrSweepFailed, err)
	}

	report := &SweepReport{}
	for i, reg := range regs {
		select {
		case <-ctx.Done():
			return report, nil
		default:
		}
		if i > 0 {
			// keep a polite pace against the third-party registry
			time.Sleep(v.requestDelay)
		}
		report.Checked++

		names, err := v.lookup.NamesOwnedBy(ctx, reg.AuthorWallet)
		if err != nil {
			log.Warnf("bns lookup for %s (hash %s) failed, skipping: %v", reg.AuthorWallet, reg.ContentHash, err)
			report.Failed++
			continue
		}

		now := time.Now().UTC()
		status, currentOwner, transferredAt := classifyBinding(reg.BnsName, names, now)
		if err := v.store.UpdateBinding(ctx, reg.ContentHash, status, currentOwner, transferredAt, now); err != nil {
			log.Warnf("bns status update for hash %s failed: %v", reg.ContentHash, err)
			report.Failed++
			continue
		}
		switch status {
		case types.BindingValid:
			report.Valid++
		case types.BindingTransferred:
			report.Transferred++
		case types.BindingUnowned:
			report.Unowned++
		}
	}
	return report, nil
}

func classifyBinding(bound string, owned []string, now time.Time) (types.BindingStatus, string, *time.Time) {
	for _, name := range owned {
		if name == bound {
			return types.BindingValid, "", nil
		}
	}
	if len(owned) > 0 {
		return types.BindingTransferred, owned[0], &now
	}
	return types.BindingUnowned, "", nil
}
