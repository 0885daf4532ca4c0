// Package pool implements the instance pool manager: creation with the
// prepared fast path, expiry-driven cleanup, prepared-pool top-up, and
// rebuild invalidation. It is the only component that composes the
// registry transaction with the template lock; the transaction covers just
// the metadata write while the expensive filesystem copy runs outside it
// under the shared lock.
package pool

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/instant-demo/demopool/internal/errors"
	"github.com/instant-demo/demopool/internal/hooks"
	"github.com/instant-demo/demopool/internal/instance"
	"github.com/instant-demo/demopool/internal/lockfile"
	"github.com/instant-demo/demopool/internal/logging"
	"github.com/instant-demo/demopool/internal/registry"
	"github.com/instant-demo/demopool/internal/template"
)

// clientHashLen is the number of hex characters kept from the client
// address hash.
const clientHashLen = 10

// Config carries the read-only values the manager consumes.
type Config struct {
	// InstanceLimit is the ceiling on total registry rows.
	InstanceLimit int
	// ExpiryAbsolute is the hard TTL measured from creation.
	ExpiryAbsolute time.Duration
	// ExpiryInactivity is the TTL measured from the last content change.
	ExpiryInactivity time.Duration
}

// Manager owns the instance lifecycle. Construct one per process with its
// collaborators and pass it to the request handler and the periodic jobs.
type Manager struct {
	reg    *registry.Registry
	lock   *lockfile.Coordinator
	dirs   template.Dirs
	runner hooks.Runner
	cfg    Config
	log    *logging.Logger

	now func() time.Time
}

// NewManager wires a Manager from its collaborators.
func NewManager(reg *registry.Registry, lock *lockfile.Coordinator, dirs template.Dirs, runner hooks.Runner, cfg Config, log *logging.Logger) *Manager {
	if log == nil {
		log = logging.Nop()
	}
	return &Manager{
		reg:    reg,
		lock:   lock,
		dirs:   dirs,
		runner: runner,
		cfg:    cfg,
		log:    log.WithComponent("pool"),
		now:    time.Now,
	}
}

// ClientHash returns the truncated hash stored for a client network
// address.
func ClientHash(addr string) string {
	sum := sha256.Sum256([]byte(addr))
	return hex.EncodeToString(sum[:])[:clientHashLen]
}

// Create returns a ready-to-use instance for the given client address.
//
// With prepare=false it first tries to grab an existing prepared instance
// (lookup and grab share one registry transaction, so no copy is needed and
// no two creators can win the same row). Otherwise it inserts a new row in
// a short transaction and then, outside the transaction but under the
// shared template lock, copies the template tree and runs the create-after
// hook.
//
// A copy failure after the metadata commit is fatal to this call and leaves
// an orphaned row with no backing directory. That row is deliberately not
// rolled back; the health evaluator surfaces it as an orphan.
func (m *Manager) Create(ctx context.Context, clientAddr string, prepare bool) (*instance.Instance, error) {
	var ipHash string
	if !prepare {
		ipHash = ClientHash(clientAddr)

		rec, found, err := m.reg.GrabFirstPrepared(ipHash, m.now())
		if err != nil {
			return nil, err
		}
		if found {
			m.log.Info("instance served from prepared pool", "name", rec.Name, "id", rec.ID)
			return m.materialize(rec), nil
		}
	}

	rec, err := m.reg.Insert(prepare, ipHash, m.now(), m.cfg.InstanceLimit)
	if err != nil {
		return nil, err
	}

	if err := m.copyWithSharedLock(ctx, rec); err != nil {
		m.log.Error("instance copy failed, row is orphaned", "name", rec.Name, "id", rec.ID, "error", err)
		return nil, err
	}

	m.log.Info("instance created", "name", rec.Name, "id", rec.ID, "prepared", prepare)
	return m.materialize(rec), nil
}

// copyWithSharedLock performs the filesystem half of Create: template copy
// and create-after hook, under the shared lock so copies parallelize but
// never overlap a rebuild.
func (m *Manager) copyWithSharedLock(ctx context.Context, rec registry.Record) error {
	guard, err := m.lock.Shared()
	if err != nil {
		return err
	}
	defer guard.Release()

	if err := m.dirs.CopyTemplate(rec.Name); err != nil {
		return err
	}

	if _, err := m.runner.Run(ctx, m.dirs.InstanceRoot(rec.Name), hooks.EventCreateAfter); err != nil {
		if !errors.Is(err, errors.ErrHookNotFound) {
			return fmt.Errorf("create-after hook: %w", err)
		}
	}
	return nil
}

// Cleanup deletes every active instance past its expiry, bracketing each
// deletion with the delete-before and delete-after hooks. Returns the
// number of instances deleted.
func (m *Manager) Cleanup(ctx context.Context) (int, error) {
	recs, err := m.reg.All(registry.Active())
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, rec := range recs {
		inst := m.materialize(rec)
		if !inst.HasExpired() {
			continue
		}

		if err := m.deleteWithHooks(ctx, inst); err != nil {
			return deleted, err
		}
		deleted++
	}

	if deleted > 0 {
		m.log.Info("cleanup removed expired instances", "count", deleted)
	}
	return deleted, nil
}

// Delete removes one instance with its delete hooks. Used by Cleanup and
// by explicit release requests.
func (m *Manager) Delete(ctx context.Context, inst *instance.Instance) error {
	return m.deleteWithHooks(ctx, inst)
}

func (m *Manager) deleteWithHooks(ctx context.Context, inst *instance.Instance) error {
	root := inst.Root()

	if _, err := m.runner.Run(ctx, root, hooks.EventDeleteBefore); err != nil {
		if !errors.Is(err, errors.ErrHookNotFound) {
			return fmt.Errorf("delete-before hook: %w", err)
		}
	}

	if err := inst.Delete(); err != nil {
		return err
	}

	if _, err := m.runner.Run(ctx, root, hooks.EventDeleteAfter); err != nil {
		if !errors.Is(err, errors.ErrHookNotFound) {
			return fmt.Errorf("delete-after hook: %w", err)
		}
	}

	m.log.Info("instance deleted", "name", inst.Name(), "id", inst.ID())
	return nil
}

// Prepare tops up the prepared pool. With target <= 0 the pool auto-sizes:
// roughly 10% of the active load, floored at 10, capped at 10% of the
// instance limit, never exceeding remaining headroom. An explicit target is
// clamped to the headroom. The total row count never passes the limit.
// Returns the number of instances prepared.
func (m *Manager) Prepare(ctx context.Context, target int) (int, error) {
	active, err := m.reg.Count(registry.Active())
	if err != nil {
		return 0, err
	}
	preparedNow, err := m.reg.Count(registry.Prepared())
	if err != nil {
		return 0, err
	}

	limit := m.cfg.InstanceLimit
	if target > 0 {
		target = min(target, limit-active)
	} else {
		target = autoTarget(active, limit)
	}

	remaining := target - preparedNow
	created := 0
	for n := 0; n < remaining; n++ {
		if _, err := m.Create(ctx, "", true); err != nil {
			if errors.Is(err, errors.ErrLimitReached) {
				// A concurrent creator consumed the headroom; stop here.
				break
			}
			return created, err
		}
		created++
	}

	if created > 0 {
		m.log.Info("prepared pool topped up", "created", created, "target", target)
	}
	return created, nil
}

// autoTarget computes the prepared-pool size for the current load.
func autoTarget(active, limit int) int {
	target := max(active/10, 10)
	target = min(target, limit/10)
	target = min(target, limit-active)
	return max(target, 0)
}

// RebuildInvalidate deletes every prepared instance. Prepared rows are
// clones of the old template, so after a rebuild the trees they reference
// no longer match anything servable. Returns the number invalidated.
func (m *Manager) RebuildInvalidate(ctx context.Context) (int, error) {
	recs, err := m.reg.All(registry.Prepared())
	if err != nil {
		return 0, err
	}

	for _, rec := range recs {
		inst := m.materialize(rec)
		if err := inst.Delete(); err != nil {
			return 0, err
		}
	}

	if len(recs) > 0 {
		m.log.Info("prepared instances invalidated after rebuild", "count", len(recs))
	}
	return len(recs), nil
}

// Rebuild replaces the template tree and invalidates the prepared pool.
// The exclusive lock is held across the build hook, so no instance copy
// runs while the tree is being swapped; a rebuild in turn waits for every
// in-flight copy to finish.
func (m *Manager) Rebuild(ctx context.Context) error {
	guard, err := m.lock.Exclusive()
	if err != nil {
		return err
	}

	_, err = m.runner.Run(ctx, m.dirs.TemplateRoot, hooks.EventBuild)
	if releaseErr := guard.Release(); releaseErr != nil && err == nil {
		err = releaseErr
	}
	if err != nil && !errors.Is(err, errors.ErrHookNotFound) {
		return fmt.Errorf("build hook: %w", err)
	}

	if _, err := m.RebuildInvalidate(ctx); err != nil {
		return err
	}

	m.log.Info("template rebuilt")
	return nil
}

// All returns every instance matching the filter, materialized.
func (m *Manager) All(f registry.Filter) ([]*instance.Instance, error) {
	recs, err := m.reg.All(f)
	if err != nil {
		return nil, err
	}

	out := make([]*instance.Instance, len(recs))
	for i, rec := range recs {
		out[i] = m.materialize(rec)
	}
	return out, nil
}

// Get returns the first instance matching the filter, or ErrNotFound.
func (m *Manager) Get(f registry.Filter) (*instance.Instance, error) {
	rec, err := m.reg.Get(f)
	if err != nil {
		return nil, err
	}
	return m.materialize(rec), nil
}

// Count returns the number of records matching the filter.
func (m *Manager) Count(f registry.Filter) (int, error) {
	return m.reg.Count(f)
}

// Sequence returns the number of records ever created, independent of the
// live row count.
func (m *Manager) Sequence() (int64, error) {
	return m.reg.Sequence()
}

func (m *Manager) materialize(rec registry.Record) *instance.Instance {
	return instance.New(rec, m.reg, m.dirs, m.cfg.ExpiryAbsolute, m.cfg.ExpiryInactivity)
}
