// Package health aggregates registry state into operational counters and a
// severity-ranked status. The evaluator is read-only: it never mutates
// records or trees, it only observes them.
package health

import (
	"context"
	"os"
	"time"

	"github.com/instant-demo/demopool/internal/errors"
	"github.com/instant-demo/demopool/internal/hooks"
	"github.com/instant-demo/demopool/internal/instance"
	"github.com/instant-demo/demopool/internal/logging"
	"github.com/instant-demo/demopool/internal/registry"
)

// Status values, ordered from most to least severe. Evaluation is
// first-match down this list.
const (
	StatusCriticalOverload   = "CRITICAL:overload"
	StatusWarnOverloadNear   = "WARN:overload-nearing"
	StatusWarnTooOldExpired  = "WARN:too-old-expired"
	StatusWarnTooManyExpired = "WARN:too-many-expired"
	StatusWarnTooManyClient  = "WARN:too-many-per-client"
	StatusWarnTooFewPrepared = "WARN:too-few-prepared"
	StatusOK                 = "OK"
)

const (
	// overloadNearRatio of the instance limit at which load is worth a
	// warning before it becomes a hard refusal.
	overloadNearRatio = 0.7
	// expiredRatio and expiredFloor together flag a cleanup that is not
	// keeping up. The floor avoids noise at low volume.
	expiredRatio = 0.4
	expiredFloor = 20
	// cleanupGrace past the absolute expiry before an undead instance is
	// treated as a cleanup failure.
	cleanupGrace = 30 * time.Minute
	// minPrepared below which the pool is too cold to absorb a burst.
	minPrepared = 3
)

// Source is the slice of the pool manager the evaluator reads from.
type Source interface {
	All(f registry.Filter) ([]*instance.Instance, error)
	Sequence() (int64, error)
}

// Config carries the limits the status decision list is ranked against.
type Config struct {
	InstanceLimit  int
	PerClientLimit int
	ExpiryAbsolute time.Duration
}

// Evaluator computes Reports. The template-supplied status hook is consulted
// as the final fallback when no built-in rule matches.
type Evaluator struct {
	src          Source
	runner       hooks.Runner
	cfg          Config
	templateRoot string
	log          *logging.Logger

	now func() time.Time
}

// New wires an Evaluator. The status hook receives templateRoot as its
// argument.
func New(src Source, runner hooks.Runner, cfg Config, templateRoot string, log *logging.Logger) *Evaluator {
	if log == nil {
		log = logging.Nop()
	}
	return &Evaluator{
		src:          src,
		runner:       runner,
		cfg:          cfg,
		templateRoot: templateRoot,
		log:          log.WithComponent("health"),
		now:          time.Now,
	}
}

// Report takes one aggregate sample and ranks it through the status
// decision list.
func (e *Evaluator) Report(ctx context.Context) (*Report, error) {
	insts, err := e.src.All(nil)
	if err != nil {
		return nil, err
	}
	seq, err := e.src.Sequence()
	if err != nil {
		return nil, err
	}

	rep := &Report{Time: e.now(), NumTotal: seq}
	clients := make(map[string]bool)

	for _, inst := range insts {
		if _, err := os.Stat(inst.Root()); os.IsNotExist(err) {
			rep.Orphaned++
		}

		if inst.IsPrepared() {
			rep.Prepared++
			continue
		}

		rep.Active++
		if inst.IsHot() {
			rep.Hot++
		}
		if inst.HasExpired() {
			rep.Expired++
		}

		rec := inst.Record()
		if rec.IPHash != nil {
			clients[*rec.IPHash] = true
		}
		if created := inst.Created(); created != nil {
			if rep.OldestActive == nil || created.Before(*rep.OldestActive) {
				rep.OldestActive = created
			}
			if rep.LatestActive == nil || created.After(*rep.LatestActive) {
				rep.LatestActive = created
			}
		}
	}

	rep.Clients = len(clients)
	if rep.Clients > 0 {
		rep.AvgPerClient = float64(rep.Active) / float64(rep.Clients)
	}

	rep.Status = e.status(ctx, rep)
	if rep.Status != StatusOK {
		e.log.Warn("health degraded", "status", rep.Status, "active", rep.Active, "expired", rep.Expired, "prepared", rep.Prepared)
	}
	return rep, nil
}

// status walks the decision list top down and returns the first match.
func (e *Evaluator) status(ctx context.Context, rep *Report) string {
	limit := e.cfg.InstanceLimit

	switch {
	case limit > 0 && rep.Active >= limit:
		return StatusCriticalOverload
	case limit > 0 && float64(rep.Active) >= overloadNearRatio*float64(limit):
		return StatusWarnOverloadNear
	case rep.OldestActive != nil && e.now().Sub(*rep.OldestActive) > e.cfg.ExpiryAbsolute+cleanupGrace:
		return StatusWarnTooOldExpired
	case rep.Active > 0 && float64(rep.Expired)/float64(rep.Active) > expiredRatio && rep.Expired > expiredFloor:
		return StatusWarnTooManyExpired
	case e.cfg.PerClientLimit > 0 && rep.AvgPerClient > float64(e.cfg.PerClientLimit):
		return StatusWarnTooManyClient
	case rep.Prepared < minPrepared:
		return StatusWarnTooFewPrepared
	}

	out, err := e.runner.Run(ctx, e.templateRoot, hooks.EventStatus)
	if err != nil {
		if !errors.Is(err, errors.ErrHookNotFound) {
			e.log.Error("status hook failed", "error", err)
		}
		return StatusOK
	}
	if out != "" {
		return out
	}
	return StatusOK
}
