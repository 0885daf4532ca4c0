// Package hooks invokes the template-supplied lifecycle scripts. The
// relevant root path is always passed as the first argument; hooks never
// depend on the process working directory.
package hooks

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/instant-demo/demopool/internal/errors"
	"github.com/instant-demo/demopool/internal/logging"
)

// Event names a lifecycle moment a template may hook into. The event name
// is also the script file name inside the hook directory.
type Event string

// Lifecycle events
const (
	// EventCreateAfter runs after an instance tree has been copied.
	EventCreateAfter Event = "create-after"
	// EventDeleteBefore runs before an instance is deleted.
	EventDeleteBefore Event = "delete-before"
	// EventDeleteAfter runs after an instance has been deleted.
	EventDeleteAfter Event = "delete-after"
	// EventBuild replaces the template tree during a rebuild.
	EventBuild Event = "build"
	// EventCleanup runs after a cleanup sweep that deleted instances.
	EventCleanup Event = "cleanup"
	// EventStatus is consulted as the final fallback in health evaluation.
	EventStatus Event = "status"
)

// Runner executes lifecycle hooks. Implementations return
// errors.ErrHookNotFound when the template provides no script for the
// event; callers that treat hooks as optional check for that sentinel.
type Runner interface {
	Run(ctx context.Context, root string, event Event, args ...string) (string, error)
}

// ExecRunner runs hook scripts from a fixed directory as child processes.
type ExecRunner struct {
	dir string
	log *logging.Logger
}

// NewExecRunner creates an ExecRunner for the given script directory.
func NewExecRunner(dir string, log *logging.Logger) *ExecRunner {
	if log == nil {
		log = logging.Nop()
	}
	return &ExecRunner{dir: dir, log: log.WithComponent("hooks")}
}

// Run executes the script for event with root as its first argument,
// followed by args. Returns the script's trimmed stdout.
func (r *ExecRunner) Run(ctx context.Context, root string, event Event, args ...string) (string, error) {
	script := filepath.Join(r.dir, string(event))

	if _, err := os.Stat(script); err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("hook %q: %w", event, errors.ErrHookNotFound)
		}
		return "", fmt.Errorf("hook %q: %w", event, err)
	}

	cmd := exec.CommandContext(ctx, script, append([]string{root}, args...)...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	r.log.Debug("running hook", "event", string(event), "root", root)
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("hook %q failed: %w (stderr: %s)", event, err, strings.TrimSpace(stderr.String()))
	}

	return strings.TrimSpace(stdout.String()), nil
}
