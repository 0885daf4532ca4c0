// Package registry is the durable store of instance records and the only
// component allowed to allocate names or mutate record state. All mutation
// happens inside a short cross-process transaction: an exclusive flock on a
// sibling lock file held only for the metadata read-modify-write, never for
// filesystem copies.
package registry

import (
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/instant-demo/demopool/internal/errors"
	"github.com/instant-demo/demopool/internal/lockfile"
	"github.com/instant-demo/demopool/internal/logging"
)

const (
	// nameAlphabet and nameLength define the random instance name tokens.
	nameAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	nameLength   = 8

	// maxNameAttempts bounds the retry loop in name allocation. With a
	// 36^8 namespace the loop effectively never exhausts; the bound only
	// guards against a pathological store.
	maxNameAttempts = 100
)

// Registry owns the durable state file. Construct one per process and pass
// it to the pool manager and the health evaluator.
type Registry struct {
	statePath string
	txn       *lockfile.Coordinator
	mu        sync.Mutex // serializes in-process transactions
	log       *logging.Logger
}

// New creates a Registry persisting to statePath, using lockPath for the
// cross-process transaction lock.
func New(statePath, lockPath string, log *logging.Logger) *Registry {
	if log == nil {
		log = logging.Nop()
	}
	return &Registry{
		statePath: statePath,
		txn:       lockfile.New(lockPath),
		log:       log.WithComponent("registry"),
	}
}

// update runs fn against the current state inside a transaction and
// persists the result if fn succeeds. The transaction must stay short: it
// blocks every other creator.
func (r *Registry) update(op string, fn func(*state) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	guard, err := r.txn.Exclusive()
	if err != nil {
		return errors.NewRegistryError(op, err)
	}
	defer guard.Release()

	st, err := loadState(r.statePath)
	if err != nil {
		return errors.NewRegistryError(op, err)
	}
	if err := fn(st); err != nil {
		return err
	}
	if err := saveState(r.statePath, st); err != nil {
		return errors.NewRegistryError(op, err)
	}
	return nil
}

// view loads a consistent snapshot of the state. Writes are atomic renames,
// so a plain read never observes a torn file.
func (r *Registry) view(op string) (*state, error) {
	st, err := loadState(r.statePath)
	if err != nil {
		return nil, errors.NewRegistryError(op, err)
	}
	return st, nil
}

// Insert allocates a unique name and appends a new record inside one
// transaction. A prepared record is inserted with nil Created/IPHash; an
// active one gets both set to now/ipHash. If limit is positive and the
// registry already holds that many rows, Insert fails with ErrLimitReached.
func (r *Registry) Insert(prepared bool, ipHash string, now time.Time, limit int) (Record, error) {
	var rec Record
	err := r.update("insert", func(st *state) error {
		if limit > 0 && len(st.Instances) >= limit {
			return errors.ErrLimitReached
		}

		name, err := allocateName(st)
		if err != nil {
			return err
		}

		st.Seq++
		rec = Record{ID: st.Seq, Name: name}
		if !prepared {
			created := now
			hash := ipHash
			rec.Created = &created
			rec.IPHash = &hash
		}
		st.Instances = append(st.Instances, rec)
		return nil
	})
	if err != nil {
		return Record{}, err
	}

	r.log.Info("record inserted", "id", rec.ID, "name", rec.Name, "prepared", prepared)
	return rec, nil
}

// GrabFirstPrepared atomically assigns the oldest prepared record to a
// client. The lookup and the grab share one transaction so no two creators
// can grab the same record. Returns false if no prepared record exists.
func (r *Registry) GrabFirstPrepared(ipHash string, now time.Time) (Record, bool, error) {
	var rec Record
	found := false
	err := r.update("grab-first-prepared", func(st *state) error {
		for i := range st.Instances {
			if st.Instances[i].IsPrepared() {
				grab(&st.Instances[i], ipHash, now)
				rec = st.Instances[i]
				found = true
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return Record{}, false, err
	}
	if found {
		r.log.Info("prepared record grabbed", "id", rec.ID, "name", rec.Name)
	}
	return rec, found, nil
}

// Grab transitions the record with the given id from prepared to active.
// Fails with ErrNotPrepared if the record is already assigned; the caller
// must not call Grab speculatively.
func (r *Registry) Grab(id int64, ipHash string, now time.Time) (Record, error) {
	var rec Record
	err := r.update("grab", func(st *state) error {
		for i := range st.Instances {
			if st.Instances[i].ID == id {
				if !st.Instances[i].IsPrepared() {
					return fmt.Errorf("grab instance %d: %w", id, errors.ErrNotPrepared)
				}
				grab(&st.Instances[i], ipHash, now)
				rec = st.Instances[i]
				return nil
			}
		}
		return fmt.Errorf("grab instance %d: %w", id, errors.ErrNotFound)
	})
	if err != nil {
		return Record{}, err
	}

	r.log.Info("record grabbed", "id", rec.ID, "name", rec.Name)
	return rec, nil
}

// grab mutates a record in place; Created and IPHash change together, never
// separately.
func grab(rec *Record, ipHash string, now time.Time) {
	created := now
	hash := ipHash
	rec.Created = &created
	rec.IPHash = &hash
}

// Delete removes the record with the given id.
func (r *Registry) Delete(id int64) error {
	err := r.update("delete", func(st *state) error {
		for i := range st.Instances {
			if st.Instances[i].ID == id {
				st.Instances = append(st.Instances[:i], st.Instances[i+1:]...)
				return nil
			}
		}
		return fmt.Errorf("delete instance %d: %w", id, errors.ErrNotFound)
	})
	if err != nil {
		return err
	}

	r.log.Info("record deleted", "id", id)
	return nil
}

// All returns every record matching the filter, in insertion order.
func (r *Registry) All(f Filter) ([]Record, error) {
	st, err := r.view("all")
	if err != nil {
		return nil, err
	}

	var out []Record
	for _, rec := range st.Instances {
		if f == nil || f(rec) {
			out = append(out, rec)
		}
	}
	return out, nil
}

// Count returns the number of records matching the filter without
// materializing them.
func (r *Registry) Count(f Filter) (int, error) {
	st, err := r.view("count")
	if err != nil {
		return 0, err
	}

	n := 0
	for _, rec := range st.Instances {
		if f == nil || f(rec) {
			n++
		}
	}
	return n, nil
}

// Get returns the first record matching the filter, or ErrNotFound.
func (r *Registry) Get(f Filter) (Record, error) {
	st, err := r.view("get")
	if err != nil {
		return Record{}, err
	}

	for _, rec := range st.Instances {
		if f == nil || f(rec) {
			return rec, nil
		}
	}
	return Record{}, errors.ErrNotFound
}

// Sequence returns the row-sequence counter: the number of records ever
// created, independent of the live row count.
func (r *Registry) Sequence() (int64, error) {
	st, err := r.view("sequence")
	if err != nil {
		return 0, err
	}
	return st.Seq, nil
}

// allocateName draws random tokens until one is unused by any live record.
func allocateName(st *state) (string, error) {
	for attempt := 0; attempt < maxNameAttempts; attempt++ {
		name, err := randomName()
		if err != nil {
			return "", fmt.Errorf("failed to generate name: %w", err)
		}

		taken := false
		for _, rec := range st.Instances {
			if rec.Name == name {
				taken = true
				break
			}
		}
		if !taken {
			return name, nil
		}
	}
	return "", errors.ErrNameExhausted
}

// randomName draws a nameLength-character token from nameAlphabet using
// crypto/rand.
func randomName() (string, error) {
	buf := make([]byte, nameLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = nameAlphabet[int(b)%len(nameAlphabet)]
	}
	return string(buf), nil
}
