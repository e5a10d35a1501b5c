// Package transport implements the router.Transport interface over the
// cluster's HTTP/JSON protocol: one POST to a member's /admin/command
// endpoint per dispatch.
//
// Coded failures ride inside a 200 CommandReply and come back as
// *cluster.CommandError so the executor can key suppression off the code.
// Anything else — refused connections, timeouts, non-2xx statuses — surfaces
// as a plain error and is normalized by the executor into a local failure.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dreamware/metaroute/internal/cluster"
)

// CommandPath is the member endpoint that executes metadata commands.
const CommandPath = "/admin/command"

// HTTP delivers commands to members over the cluster HTTP protocol.
// The zero value is ready to use.
type HTTP struct{}

// NewHTTP creates an HTTP transport.
func NewHTTP() *HTTP {
	return &HTTP{}
}

// Send posts env to the member and returns its success payload, a
// *cluster.CommandError for coded remote failures, or a plain error for
// transport-level failures.
func (t *HTTP) Send(ctx context.Context, m cluster.Member, env cluster.CommandEnvelope) (json.RawMessage, error) {
	url := strings.TrimRight(m.Addr, "/") + CommandPath

	var reply cluster.CommandReply
	if err := cluster.PostJSON(ctx, url, env, &reply); err != nil {
		return nil, fmt.Errorf("sending %s to %s: %w", env.Kind, m.ID, err)
	}

	if !reply.OK {
		if reply.Error == nil {
			return nil, cluster.Errf(cluster.CodeInternal,
				"member %s replied not-ok without error detail", m.ID)
		}
		return nil, reply.Error
	}
	return reply.Payload, nil
}
