package router

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/dreamware/metaroute/internal/cluster"
)

// Transport delivers one command to one member. Implementations must honor
// ctx cancellation and report remote coded failures as *cluster.CommandError;
// any other error is treated as a local transport failure.
type Transport interface {
	Send(ctx context.Context, m cluster.Member, env cluster.CommandEnvelope) (json.RawMessage, error)
}

// MemberResult is the outcome of one member's execution of one command:
// either an opaque success payload or a coded failure. Results are immutable
// once recorded.
type MemberResult struct {
	OK      bool            `json:"ok"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Code    cluster.Code    `json:"code,omitempty"`
	Message string          `json:"message,omitempty"`
}

// Executor dispatches a command concurrently to a resolved target set and
// collects exactly one MemberResult per target.
type Executor struct {
	transport Transport
}

// NewExecutor creates an executor dispatching over transport.
func NewExecutor(transport Transport) *Executor {
	return &Executor{transport: transport}
}

// Execute sends env to every target concurrently and returns once all
// dispatches have answered or definitively failed. There is no early return
// and no cross-target cancellation: one member's failure never cancels the
// dispatch to another.
//
// Every target gets exactly one entry in the returned map: a success payload,
// the member's own coded error, or a local failure normalized to
// MemberUnreachable / ExceededTimeLimit. Fan-out deadlines come from ctx; a
// member still outstanding at expiry is recorded as ExceededTimeLimit rather
// than left unresolved.
//
// The executor owns the map until it returns; callers must treat it as an
// immutable snapshot.
func (e *Executor) Execute(ctx context.Context, targets []cluster.Member, env cluster.CommandEnvelope) map[string]MemberResult {
	results := make(map[string]MemberResult, len(targets))

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, target := range targets {
		wg.Add(1)
		go func(m cluster.Member) {
			defer wg.Done()
			res := e.dispatch(ctx, m, env)
			mu.Lock()
			results[m.ID] = res
			mu.Unlock()
		}(target)
	}
	wg.Wait()

	return results
}

// dispatch performs one send and normalizes its outcome.
func (e *Executor) dispatch(ctx context.Context, m cluster.Member, env cluster.CommandEnvelope) MemberResult {
	payload, err := e.transport.Send(ctx, m, env)
	if err == nil {
		return MemberResult{OK: true, Payload: payload}
	}

	var cmdErr *cluster.CommandError
	if errors.As(err, &cmdErr) {
		return MemberResult{Code: cmdErr.Code, Message: cmdErr.Message}
	}
	if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
		return MemberResult{Code: cluster.CodeExceededTimeLimit, Message: err.Error()}
	}
	return MemberResult{Code: cluster.CodeMemberUnreachable, Message: err.Error()}
}
