package router

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/dreamware/metaroute/internal/cluster"
)

// DefaultCommandTimeout bounds one whole fan-out when the caller's context
// carries no earlier deadline.
const DefaultCommandTimeout = 4 * time.Second

// Config assembles a Router from its collaborators.
type Config struct {
	// Topology is the directory consulted afresh for every command.
	Topology TopologyReader

	// Transport delivers commands to members.
	Transport Transport

	// CommandTimeout bounds the fan-out of one command. Zero means
	// DefaultCommandTimeout.
	CommandTimeout time.Duration

	// Logger receives per-command routing logs. Nil means the standard
	// logger.
	Logger *log.Logger
}

// Router is the metadata-command routing core: it classifies a command,
// resolves its target member set from a fresh topology snapshot, fans the
// command out concurrently, and folds per-member results into one Outcome
// under the command's suppression policy.
//
// The router holds no state of its own between commands. Correctness is
// decided per command against the topology as read at resolution time;
// staleness across commands is tolerated by design.
type Router struct {
	resolver *Resolver
	exec     *Executor
	timeout  time.Duration
	logger   *log.Logger
}

// New creates a Router from cfg.
func New(cfg Config) *Router {
	timeout := cfg.CommandTimeout
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Router{
		resolver: NewResolver(cfg.Topology),
		exec:     NewExecutor(cfg.Transport),
		timeout:  timeout,
		logger:   logger,
	}
}

// RouteCommand routes one metadata command against a namespace and returns
// the aggregated outcome plus full raw per-member detail.
//
// Classification and resolution failures (unknown kind, unknown namespace)
// are fatal: they return a non-nil error and nothing is dispatched.
// Per-member failures never surface here as an error; they are folded into
// the Outcome, where a non-suppressed failure flips OK to false while the
// complete diagnostic record stays available in Raw.
func (r *Router) RouteCommand(ctx context.Context, namespace string, kind CommandKind, payload json.RawMessage) (Outcome, error) {
	policy, err := Classify(kind)
	if err != nil {
		return Outcome{}, err
	}

	targets, err := r.resolver.ResolveTargets(namespace, policy.Mode)
	if err != nil {
		return Outcome{}, err
	}

	env := cluster.CommandEnvelope{
		CommandID: uuid.NewString(),
		Kind:      string(kind),
		Namespace: namespace,
		Payload:   payload,
	}

	r.logger.Printf("routing %s %s (%s) to %d member(s) [%s]",
		kind, namespace, policy.Mode, len(targets), env.CommandID)

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	results := r.exec.Execute(ctx, targets, env)
	outcome := Aggregate(results, policy.Suppressible)

	if outcome.OK {
		r.logger.Printf("command %s succeeded on %d member(s)", env.CommandID, len(results))
	} else {
		r.logger.Printf("command %s failed: %v", env.CommandID, outcome.Err)
	}
	return outcome, nil
}
