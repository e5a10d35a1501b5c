package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dreamware/metaroute/internal/cluster"
)

func postCommand(t *testing.T, srv *server, env cluster.CommandEnvelope) cluster.CommandReply {
	t.Helper()
	body, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("Failed to marshal envelope: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/admin/command", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.handleCommand(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var reply cluster.CommandReply
	if err := json.NewDecoder(rec.Body).Decode(&reply); err != nil {
		t.Fatalf("Failed to decode reply: %v", err)
	}
	return reply
}

func testServer() *server {
	return newServer(cluster.Member{ID: "shard0", Addr: "http://127.0.0.1:8081"})
}

// TestHandleCommandLifecycle tests a full create/mutate/drop sequence
func TestHandleCommandLifecycle(t *testing.T) {
	srv := testServer()

	// Create the collection (no payload: options are optional)
	reply := postCommand(t, srv, cluster.CommandEnvelope{
		CommandID: "c1", Kind: "create-collection", Namespace: "test.foo",
	})
	if !reply.OK {
		t.Fatalf("create-collection failed: %v", reply.Error)
	}

	// Create an index
	reply = postCommand(t, srv, cluster.CommandEnvelope{
		CommandID: "c2", Kind: "create-index", Namespace: "test.foo",
		Payload: json.RawMessage(`{"name":"idx_user","keys":{"user_id":1}}`),
	})
	if !reply.OK {
		t.Fatalf("create-index failed: %v", reply.Error)
	}
	var created struct {
		Created bool `json:"created"`
	}
	if err := json.Unmarshal(reply.Payload, &created); err != nil || !created.Created {
		t.Errorf("Expected created=true payload, got %s (err %v)", reply.Payload, err)
	}

	// Identical re-creation succeeds idempotently
	reply = postCommand(t, srv, cluster.CommandEnvelope{
		CommandID: "c3", Kind: "create-index", Namespace: "test.foo",
		Payload: json.RawMessage(`{"name":"idx_user","keys":{"user_id":1}}`),
	})
	if !reply.OK {
		t.Fatalf("idempotent create-index failed: %v", reply.Error)
	}

	// Reindex reports the rebuilt count
	reply = postCommand(t, srv, cluster.CommandEnvelope{
		CommandID: "c4", Kind: "reindex", Namespace: "test.foo",
	})
	if !reply.OK {
		t.Fatalf("reindex failed: %v", reply.Error)
	}
	var rebuilt struct {
		Rebuilt int `json:"rebuilt"`
	}
	if err := json.Unmarshal(reply.Payload, &rebuilt); err != nil || rebuilt.Rebuilt != 1 {
		t.Errorf("Expected rebuilt=1, got %s (err %v)", reply.Payload, err)
	}

	// Modify collection options
	reply = postCommand(t, srv, cluster.CommandEnvelope{
		CommandID: "c5", Kind: "mod-collection", Namespace: "test.foo",
		Payload: json.RawMessage(`{"options":{"validationLevel":"strict"}}`),
	})
	if !reply.OK {
		t.Fatalf("mod-collection failed: %v", reply.Error)
	}

	// Drop the index
	reply = postCommand(t, srv, cluster.CommandEnvelope{
		CommandID: "c6", Kind: "drop-index", Namespace: "test.foo",
		Payload: json.RawMessage(`{"name":"idx_user"}`),
	})
	if !reply.OK {
		t.Fatalf("drop-index failed: %v", reply.Error)
	}
}

// TestHandleCommandCodedErrors tests that catalog codes cross the wire intact
func TestHandleCommandCodedErrors(t *testing.T) {
	tests := []struct {
		name     string
		env      cluster.CommandEnvelope
		wantCode cluster.Code
	}{
		{
			name: "create-index on missing database",
			env: cluster.CommandEnvelope{
				Kind: "create-index", Namespace: "nope.foo",
				Payload: json.RawMessage(`{"name":"idx","keys":{"a":1}}`),
			},
			wantCode: cluster.CodeDatabaseNotFound,
		},
		{
			name: "drop-index on missing collection",
			env: cluster.CommandEnvelope{
				Kind: "drop-index", Namespace: "test.missing",
				Payload: json.RawMessage(`{"name":"idx"}`),
			},
			wantCode: cluster.CodeNamespaceNotFound,
		},
		{
			name:     "unsupported kind",
			env:      cluster.CommandEnvelope{Kind: "compact", Namespace: "test.foo"},
			wantCode: cluster.CodeUnsupportedCommand,
		},
		{
			name:     "missing payload",
			env:      cluster.CommandEnvelope{Kind: "drop-index", Namespace: "test.foo"},
			wantCode: cluster.CodeInvalidOptions,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := testServer()
			// test.missing needs its database to exist to draw NamespaceNotFound
			srv.catalog.CreateCollection("test.foo", nil)

			reply := postCommand(t, srv, tt.env)
			if reply.OK {
				t.Fatal("Expected coded failure")
			}
			if reply.Error == nil || reply.Error.Code != tt.wantCode {
				t.Errorf("Expected %s, got %v", tt.wantCode, reply.Error)
			}
		})
	}
}

// TestHandleCommandRejectsBadRequests tests HTTP-level validation
func TestHandleCommandRejectsBadRequests(t *testing.T) {
	srv := testServer()

	req := httptest.NewRequest(http.MethodGet, "/admin/command", nil)
	rec := httptest.NewRecorder()
	srv.handleCommand(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405 for GET, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/admin/command", bytes.NewReader([]byte("{not json")))
	rec = httptest.NewRecorder()
	srv.handleCommand(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for bad json, got %d", rec.Code)
	}
}

// TestHandleInfo tests the info endpoint shape
func TestHandleInfo(t *testing.T) {
	srv := testServer()
	srv.catalog.CreateCollection("test.foo", nil)

	req := httptest.NewRequest(http.MethodGet, "/info", nil)
	rec := httptest.NewRecorder()
	srv.handleInfo(rec, req)

	var info struct {
		Member      cluster.Member `json:"member"`
		Collections []struct {
			Namespace string `json:"namespace"`
		} `json:"collections"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&info); err != nil {
		t.Fatalf("Failed to decode info: %v", err)
	}
	if info.Member.ID != "shard0" {
		t.Errorf("Expected shard0, got %s", info.Member.ID)
	}
	if len(info.Collections) != 1 || info.Collections[0].Namespace != "test.foo" {
		t.Errorf("Unexpected collections: %+v", info.Collections)
	}
}
