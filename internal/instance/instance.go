// Package instance provides the runtime wrapper around one registry record:
// lazily-computed activity, expiry evaluation, and the grab and delete
// transitions. An Instance is owned by the caller that fetched it and holds
// a non-owning reference back to the store for mutation.
package instance

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/instant-demo/demopool/internal/errors"
	"github.com/instant-demo/demopool/internal/registry"
	"github.com/instant-demo/demopool/internal/template"
)

// hotWindow is the recent-activity window used for observability only;
// retirement is driven by the expiry bounds.
const hotWindow = 5 * time.Minute

// Store is the slice of the registry an Instance needs for its mutating
// operations.
type Store interface {
	Grab(id int64, ipHash string, now time.Time) (registry.Record, error)
	Delete(id int64) error
}

// Instance wraps one registry record together with its filesystem tree.
type Instance struct {
	rec   registry.Record
	store Store
	dirs  template.Dirs

	expiryAbsolute   time.Duration
	expiryInactivity time.Duration

	// lastActivity is computed once per Instance lifetime. Re-polling the
	// tree within a single logical operation buys nothing and costs a walk.
	lastActivity   time.Time
	activityCached bool

	now func() time.Time
}

// New materializes an Instance from a registry record.
func New(rec registry.Record, store Store, dirs template.Dirs, expiryAbsolute, expiryInactivity time.Duration) *Instance {
	return &Instance{
		rec:              rec,
		store:            store,
		dirs:             dirs,
		expiryAbsolute:   expiryAbsolute,
		expiryInactivity: expiryInactivity,
		now:              time.Now,
	}
}

// Record returns a copy of the underlying registry record.
func (i *Instance) Record() registry.Record { return i.rec }

// ID returns the record id.
func (i *Instance) ID() int64 { return i.rec.ID }

// Name returns the instance name.
func (i *Instance) Name() string { return i.rec.Name }

// Created returns the creation time, nil while prepared.
func (i *Instance) Created() *time.Time { return i.rec.Created }

// Root returns the instance's filesystem root.
func (i *Instance) Root() string { return i.dirs.InstanceRoot(i.rec.Name) }

// IsPrepared reports whether the instance is pre-copied and unassigned.
func (i *Instance) IsPrepared() bool { return i.rec.IsPrepared() }

// Grab assigns this prepared instance to the client with the given address
// hash. Fails with ErrNotPrepared if the instance is already active; a
// failed grab never mutates state.
func (i *Instance) Grab(ipHash string) error {
	if !i.IsPrepared() {
		return fmt.Errorf("grab instance %q: %w", i.rec.Name, errors.ErrNotPrepared)
	}

	rec, err := i.store.Grab(i.rec.ID, ipHash, i.now())
	if err != nil {
		return err
	}
	i.rec = rec
	return nil
}

// Delete removes the instance's filesystem tree and its registry row.
// Lifecycle hooks around deletion are the caller's responsibility.
func (i *Instance) Delete() error {
	if err := i.dirs.RemoveInstance(i.rec.Name); err != nil {
		return err
	}
	return i.store.Delete(i.rec.ID)
}

// LastActivity returns the most recent modification time under the
// instance's activity subpath, floored at the creation time so a prepared
// instance copied long before being grabbed does not appear falsely
// inactive. The value is cached for the lifetime of this Instance.
func (i *Instance) LastActivity() time.Time {
	if i.activityCached {
		return i.lastActivity
	}

	latest := latestModTime(i.dirs.ActivityRoot(i.rec.Name))
	if i.rec.Created != nil && latest.Before(*i.rec.Created) {
		latest = *i.rec.Created
	}

	i.lastActivity = latest
	i.activityCached = true
	return latest
}

// ExpiryMax returns the absolute expiry bound, nil while not yet created.
func (i *Instance) ExpiryMax() *time.Time {
	if i.rec.Created == nil {
		return nil
	}
	t := i.rec.Created.Add(i.expiryAbsolute)
	return &t
}

// Expiry returns the effective retirement time: whichever of the absolute
// and the inactivity bound is hit first. Nil for prepared instances, which
// are retired only by rebuild invalidation.
func (i *Instance) Expiry() *time.Time {
	max := i.ExpiryMax()
	if max == nil {
		return nil
	}

	inactive := i.LastActivity().Add(i.expiryInactivity)
	if inactive.Before(*max) {
		return &inactive
	}
	return max
}

// HasExpired reports whether the instance is past its effective expiry.
func (i *Instance) HasExpired() bool {
	e := i.Expiry()
	return e != nil && i.now().After(*e)
}

// IsHot reports recent content activity. Observability only.
func (i *Instance) IsHot() bool {
	return i.now().Sub(i.LastActivity()) < hotWindow
}

// ExpiresIn returns a human-readable rendering of the time until expiry.
func (i *Instance) ExpiresIn() string {
	return FormatUntil(i.Expiry(), i.now())
}

// latestModTime walks root and returns the most recent modification time
// seen. A missing or empty tree yields the zero time.
func latestModTime(root string) time.Time {
	var latest time.Time
	_ = filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			// A vanished subtree just contributes no activity.
			return nil
		}
		info, err := entry.Info()
		if err != nil {
			return nil
		}
		if info.ModTime().After(latest) {
			latest = info.ModTime()
		}
		return nil
	})
	return latest
}
