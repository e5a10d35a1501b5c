// Package main implements the Metaroute routing daemon: the cluster
// coordinator that decides which members must execute a metadata command,
// fans it out, and returns one aggregated outcome.
//
// HTTP API:
//
//	/register          - Member registration
//	/members           - Registered members with probe status
//	/namespaces        - Namespace creation
//	/namespaces/shard  - One-way partitioning transition
//	/ranges/assign     - Range placement event
//	/ranges/move       - Range migration event
//	/topology          - Topology snapshot dump
//	/commands          - Metadata command routing
//	/health            - Health probe
//
// Example usage:
//
//	# Start the daemon
//	./router --config router.yaml
//
//	# Route an index creation
//	curl -X POST localhost:8080/commands \
//	  -d '{"namespace":"test.foo","kind":"create-index","payload":{"name":"idx_user","keys":{"user_id":1}}}'
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

	"github.com/spf13/cobra"

	"github.com/dreamware/metaroute/internal/cluster"
	"github.com/dreamware/metaroute/internal/router"
	"github.com/dreamware/metaroute/internal/topology"
	"github.com/dreamware/metaroute/internal/transport"
)

var configPathArg string

func main() {
	cmd := &cobra.Command{
		Use:   "router",
		Short: "Metaroute metadata-command routing daemon",
		Run:   run,
	}
	cmd.Flags().StringVarP(&configPathArg, "config", "c", "", "Path to the YAML configuration file")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig(configPathArg)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	srv := newServer(cfg)

	mux := http.NewServeMux()
	mux.HandleFunc("/register", srv.handleRegister)
	mux.HandleFunc("/members", srv.handleListMembers)
	mux.HandleFunc("/namespaces", srv.handleCreateNamespace)
	mux.HandleFunc("/namespaces/shard", srv.handleShardNamespace)
	mux.HandleFunc("/ranges/assign", srv.handleAssignRange)
	mux.HandleFunc("/ranges/move", srv.handleMoveRange)
	mux.HandleFunc("/topology", srv.handleTopology)
	mux.HandleFunc("/commands", srv.handleCommand)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	httpSrv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.prober.Start(ctx, srv.directory.Members)

	go func() {
		log.Printf("router listening on %s", cfg.Listen)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	srv.prober.Stop()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = httpSrv.Shutdown(shutdownCtx)
	log.Println("router stopped")
}

// server wires the topology directory, the routing core, and the prober
// behind the admin HTTP surface.
type server struct {
	directory *topology.Directory
	router    *router.Router
	prober    *topology.Prober
}

func newServer(cfg *config) *server {
	directory := topology.NewDirectory()
	return &server{
		directory: directory,
		router: router.New(router.Config{
			Topology:       directory,
			Transport:      transport.NewHTTP(),
			CommandTimeout: cfg.commandTimeout,
		}),
		prober: topology.NewProber(cfg.probeInterval),
	}
}

func (s *server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req cluster.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if err := s.directory.RegisterMember(req.Member); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	log.Printf("registered member %s at %s", req.Member.ID, req.Member.Addr)
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleListMembers(w http.ResponseWriter, r *http.Request) {
	type memberStatus struct {
		cluster.Member
		Status string `json:"status"`
	}

	members := s.directory.Members()
	out := make([]memberStatus, 0, len(members))
	for _, m := range members {
		status := topology.StatusUnknown
		if health := s.prober.MemberHealth(m.ID); health != nil {
			status = health.Status
		}
		out = append(out, memberStatus{Member: m, Status: status})
	}

	writeJSON(w, struct {
		Members []memberStatus `json:"members"`
	}{Members: out})
}

func (s *server) handleCreateNamespace(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Namespace string `json:"namespace"`
		Primary   string `json:"primary"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if err := s.directory.CreateNamespace(req.Namespace, req.Primary); err != nil {
		httpError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleShardNamespace(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Namespace string `json:"namespace"`
		ShardKey  string `json:"shard_key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if err := s.directory.ShardNamespace(req.Namespace, req.ShardKey); err != nil {
		httpError(w, err)
		return
	}
	log.Printf("namespace %s partitioned on %s", req.Namespace, req.ShardKey)
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleAssignRange(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Namespace string         `json:"namespace"`
		Member    string         `json:"member"`
		Range     topology.Range `json:"range"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if err := s.directory.AssignRange(req.Namespace, req.Member, req.Range); err != nil {
		httpError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleMoveRange(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Namespace string         `json:"namespace"`
		From      string         `json:"from"`
		To        string         `json:"to"`
		Range     topology.Range `json:"range"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if err := s.directory.MoveRange(req.Namespace, req.Range, req.From, req.To); err != nil {
		httpError(w, err)
		return
	}
	log.Printf("range [%s, %s) of %s moved %s -> %s",
		req.Range.Start, req.Range.End, req.Namespace, req.From, req.To)
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleTopology(w http.ResponseWriter, r *http.Request) {
	namespaces := s.directory.Namespaces()
	states := make([]topology.State, 0, len(namespaces))
	for _, ns := range namespaces {
		st, err := s.directory.Snapshot(ns)
		if err != nil {
			continue // namespace dropped between list and snapshot
		}
		states = append(states, st)
	}
	writeJSON(w, struct {
		Namespaces []topology.State `json:"namespaces"`
	}{Namespaces: states})
}

// handleCommand routes one metadata command. Fatal errors (unknown kind,
// unknown namespace) map to HTTP statuses; a dispatched command always
// answers 200 with the full Outcome, whose OK flag carries the verdict.
func (s *server) handleCommand(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Namespace string          `json:"namespace"`
		Kind      string          `json:"kind"`
		Payload   json.RawMessage `json:"payload,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}

	outcome, err := s.router.RouteCommand(r.Context(), req.Namespace, router.CommandKind(req.Kind), req.Payload)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, outcome)
}

// httpError maps routing-layer errors onto HTTP statuses.
func httpError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, topology.ErrUnknownNamespace), errors.Is(err, topology.ErrUnknownMember):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, topology.ErrNamespaceExists),
		errors.Is(err, topology.ErrAlreadyPartitioned),
		errors.Is(err, topology.ErrNotPartitioned),
		errors.Is(err, topology.ErrRangeNotOwned):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, router.ErrUnknownCommandKind):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
