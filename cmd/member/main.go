// Package main implements the Metaroute member daemon: one cluster node that
// executes routed metadata commands against its local catalog.
//
// The member is a worker in the Metaroute cluster, responsible for:
//   - Executing metadata commands (index and collection mutations)
//   - Maintaining its local metadata catalog
//   - Registering with the routing daemon
//   - Responding to health probes
//
// HTTP API:
//
//	/health         - Health probe
//	/admin/command  - Metadata command execution
//	/info           - Catalog contents and op counters
//
// Configuration:
//   - MEMBER_ID: Unique member identifier (required)
//   - MEMBER_LISTEN: Listen address (default: ":8081")
//   - MEMBER_ADDR: Public address for the router (default: "http://127.0.0.1:8081")
//   - ROUTER_ADDR: Routing daemon URL (required)
//
// Example usage:
//
//	MEMBER_ID=shard0 \
//	MEMBER_LISTEN=:8081 \
//	MEMBER_ADDR=http://localhost:8081 \
//	ROUTER_ADDR=http://localhost:8080 \
//	./member
package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dreamware/metaroute/internal/catalog"
	"github.com/dreamware/metaroute/internal/cluster"
	"github.com/dreamware/metaroute/internal/router"
	"github.com/dreamware/metaroute/internal/transport"
)

// logFatal is a variable to allow intercepting fatal errors in tests.
var logFatal = log.Fatalf

// server is the member daemon's runtime state.
type server struct {
	member  cluster.Member
	catalog *catalog.Catalog
}

func newServer(member cluster.Member) *server {
	return &server{
		member:  member,
		catalog: catalog.New(),
	}
}

func main() {
	id := os.Getenv("MEMBER_ID")
	if id == "" {
		logFatal("MEMBER_ID is required")
	}
	routerAddr := os.Getenv("ROUTER_ADDR")
	if routerAddr == "" {
		logFatal("ROUTER_ADDR is required")
	}
	listen := getenv("MEMBER_LISTEN", ":8081")
	addr := getenv("MEMBER_ADDR", "http://127.0.0.1:8081")

	srv := newServer(cluster.Member{ID: id, Addr: addr})

	mux := http.NewServeMux()
	mux.HandleFunc(transport.CommandPath, srv.handleCommand)
	mux.HandleFunc("/info", srv.handleInfo)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	httpSrv := &http.Server{
		Addr:              listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("member %s listening on %s", id, listen)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logFatal("listen: %v", err)
		}
	}()

	go registerWithRetry(srv.member, routerAddr)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(ctx)
	log.Printf("member %s stopped", id)
}

// registerWithRetry announces the member to the routing daemon, retrying
// until registration succeeds.
func registerWithRetry(m cluster.Member, routerAddr string) {
	for {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		err := cluster.PostJSON(ctx, routerAddr+"/register", cluster.RegisterRequest{Member: m}, nil)
		cancel()
		if err == nil {
			log.Printf("registered with router at %s", routerAddr)
			return
		}
		log.Printf("registration failed, retrying: %v", err)
		time.Sleep(2 * time.Second)
	}
}

// handleCommand executes one routed metadata command against the local
// catalog and answers with a CommandReply. Coded failures always travel as
// ok=false inside a 200 response so the router sees the exact code.
func (s *server) handleCommand(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var env cluster.CommandEnvelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}

	log.Printf("executing %s on %s [%s]", env.Kind, env.Namespace, env.CommandID)

	payload, err := s.execute(env)
	if err != nil {
		writeReply(w, cluster.CommandReply{OK: false, Error: toCommandError(err)})
		return
	}
	writeReply(w, cluster.CommandReply{OK: true, Payload: payload})
}

// execute dispatches on the command kind. Unknown kinds are reported with a
// code so a newer router can tell "old member" from "broken member".
func (s *server) execute(env cluster.CommandEnvelope) (json.RawMessage, error) {
	switch router.CommandKind(env.Kind) {
	case router.KindCreateIndex:
		var p struct {
			Name   string         `json:"name"`
			Keys   map[string]int `json:"keys"`
			Unique bool           `json:"unique,omitempty"`
		}
		if err := decodePayload(env.Payload, &p); err != nil {
			return nil, err
		}
		created, err := s.catalog.CreateIndex(env.Namespace, catalog.Index{
			Name:   p.Name,
			Keys:   p.Keys,
			Unique: p.Unique,
		})
		if err != nil {
			return nil, err
		}
		return json.Marshal(map[string]any{"created": created})

	case router.KindDropIndex:
		var p struct {
			Name string `json:"name"`
		}
		if err := decodePayload(env.Payload, &p); err != nil {
			return nil, err
		}
		if err := s.catalog.DropIndex(env.Namespace, p.Name); err != nil {
			return nil, err
		}
		return json.Marshal(map[string]any{"dropped": p.Name})

	case router.KindReindex:
		rebuilt, err := s.catalog.Reindex(env.Namespace)
		if err != nil {
			return nil, err
		}
		return json.Marshal(map[string]any{"rebuilt": rebuilt})

	case router.KindModCollection:
		var p struct {
			Options map[string]any `json:"options"`
		}
		if err := decodePayload(env.Payload, &p); err != nil {
			return nil, err
		}
		if err := s.catalog.SetOptions(env.Namespace, p.Options); err != nil {
			return nil, err
		}
		return json.Marshal(map[string]any{"updated": true})

	case router.KindCreateCollection:
		var p struct {
			Options map[string]any `json:"options,omitempty"`
		}
		// Options are optional for collection creation.
		if len(env.Payload) > 0 {
			if err := decodePayload(env.Payload, &p); err != nil {
				return nil, err
			}
		}
		if err := s.catalog.CreateCollection(env.Namespace, p.Options); err != nil {
			return nil, err
		}
		return json.Marshal(map[string]any{"created": true})

	default:
		return nil, cluster.Errf(cluster.CodeUnsupportedCommand, "unsupported command kind %q", env.Kind)
	}
}

// handleInfo reports the member's identity, catalog contents, and counters.
func (s *server) handleInfo(w http.ResponseWriter, r *http.Request) {
	info := struct {
		Member      cluster.Member           `json:"member"`
		Collections []catalog.CollectionInfo `json:"collections"`
		Stats       catalog.Stats            `json:"stats"`
	}{
		Member:      s.member,
		Collections: s.catalog.Collections(),
		Stats:       s.catalog.Stats(),
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(info)
}

func decodePayload(raw json.RawMessage, out any) error {
	if len(raw) == 0 {
		return cluster.Errf(cluster.CodeInvalidOptions, "missing command payload")
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return cluster.Errf(cluster.CodeInvalidOptions, "malformed command payload: %v", err)
	}
	return nil
}

func toCommandError(err error) *cluster.CommandError {
	var cmdErr *cluster.CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr
	}
	return cluster.Errf(cluster.CodeInternal, "%v", err)
}

func writeReply(w http.ResponseWriter, reply cluster.CommandReply) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(reply)
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
