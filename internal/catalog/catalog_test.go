package catalog

import (
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/dreamware/metaroute/internal/cluster"
)

func codeOf(t *testing.T, err error) cluster.Code {
	t.Helper()
	var cmdErr *cluster.CommandError
	if !errors.As(err, &cmdErr) {
		t.Fatalf("Expected CommandError, got %v", err)
	}
	return cmdErr.Code
}

func userIndex() Index {
	return Index{Name: "idx_user", Keys: map[string]int{"user_id": 1}}
}

// TestCreateCollection tests collection creation and implicit databases
func TestCreateCollection(t *testing.T) {
	c := New()

	if err := c.CreateCollection("test.foo", map[string]any{"capped": true}); err != nil {
		t.Fatalf("CreateCollection failed: %v", err)
	}

	info, err := c.Collection("test.foo")
	if err != nil {
		t.Fatalf("Collection failed: %v", err)
	}
	if info.Options["capped"] != true {
		t.Errorf("Expected capped option, got %v", info.Options)
	}

	// Creating again is NamespaceExists
	err = c.CreateCollection("test.foo", nil)
	if codeOf(t, err) != cluster.CodeNamespaceExists {
		t.Errorf("Expected NamespaceExists, got %v", err)
	}

	// Malformed namespaces are rejected
	for _, ns := range []string{"", "nodot", ".leading", "trailing."} {
		if err := c.CreateCollection(ns, nil); codeOf(t, err) != cluster.CodeInvalidNamespace {
			t.Errorf("Expected InvalidNamespace for %q, got %v", ns, err)
		}
	}
}

// TestCreateIndex tests index creation, idempotence, and conflict detection
func TestCreateIndex(t *testing.T) {
	t.Run("missing database vs missing collection", func(t *testing.T) {
		c := New()

		_, err := c.CreateIndex("test.foo", userIndex())
		if codeOf(t, err) != cluster.CodeDatabaseNotFound {
			t.Errorf("Expected DatabaseNotFound, got %v", err)
		}

		// Create a sibling collection so the database exists
		if err := c.CreateCollection("test.bar", nil); err != nil {
			t.Fatalf("CreateCollection failed: %v", err)
		}
		_, err = c.CreateIndex("test.foo", userIndex())
		if codeOf(t, err) != cluster.CodeNamespaceNotFound {
			t.Errorf("Expected NamespaceNotFound, got %v", err)
		}
	})

	t.Run("identical spec is idempotent", func(t *testing.T) {
		c := New()
		if err := c.CreateCollection("test.foo", nil); err != nil {
			t.Fatalf("CreateCollection failed: %v", err)
		}

		created, err := c.CreateIndex("test.foo", userIndex())
		if err != nil || !created {
			t.Fatalf("Expected fresh creation, got created=%v err=%v", created, err)
		}

		created, err = c.CreateIndex("test.foo", userIndex())
		if err != nil {
			t.Fatalf("Idempotent re-creation failed: %v", err)
		}
		if created {
			t.Error("Expected created=false on identical re-creation")
		}
		if got := c.Stats().IndexCreates; got != 1 {
			t.Errorf("Expected 1 counted creation, got %d", got)
		}
	})

	t.Run("same name different spec conflicts", func(t *testing.T) {
		c := New()
		c.CreateCollection("test.foo", nil)
		c.CreateIndex("test.foo", userIndex())

		_, err := c.CreateIndex("test.foo", Index{Name: "idx_user", Keys: map[string]int{"user_id": -1}})
		if codeOf(t, err) != cluster.CodeIndexOptionsConflict {
			t.Errorf("Expected IndexOptionsConflict, got %v", err)
		}
		_, err = c.CreateIndex("test.foo", Index{Name: "idx_user", Keys: map[string]int{"user_id": 1}, Unique: true})
		if codeOf(t, err) != cluster.CodeIndexOptionsConflict {
			t.Errorf("Expected IndexOptionsConflict for unique change, got %v", err)
		}
	})

	t.Run("invalid spec is rejected", func(t *testing.T) {
		c := New()
		c.CreateCollection("test.foo", nil)

		_, err := c.CreateIndex("test.foo", Index{Name: "", Keys: map[string]int{"a": 1}})
		if codeOf(t, err) != cluster.CodeInvalidOptions {
			t.Errorf("Expected InvalidOptions for empty name, got %v", err)
		}
		_, err = c.CreateIndex("test.foo", Index{Name: "idx"})
		if codeOf(t, err) != cluster.CodeInvalidOptions {
			t.Errorf("Expected InvalidOptions for empty keys, got %v", err)
		}
	})
}

// TestDropIndex tests index removal
func TestDropIndex(t *testing.T) {
	c := New()
	c.CreateCollection("test.foo", nil)
	c.CreateIndex("test.foo", userIndex())

	if err := c.DropIndex("test.foo", "idx_missing"); codeOf(t, err) != cluster.CodeIndexNotFound {
		t.Errorf("Expected IndexNotFound, got %v", err)
	}
	if err := c.DropIndex("test.missing", "idx_user"); codeOf(t, err) != cluster.CodeNamespaceNotFound {
		t.Errorf("Expected NamespaceNotFound, got %v", err)
	}

	if err := c.DropIndex("test.foo", "idx_user"); err != nil {
		t.Fatalf("DropIndex failed: %v", err)
	}
	info, _ := c.Collection("test.foo")
	if len(info.Indexes) != 0 {
		t.Errorf("Expected no indexes after drop, got %v", info.Indexes)
	}
}

// TestReindex tests rebuild counting
func TestReindex(t *testing.T) {
	c := New()
	c.CreateCollection("test.foo", nil)
	c.CreateIndex("test.foo", userIndex())
	c.CreateIndex("test.foo", Index{Name: "idx_email", Keys: map[string]int{"email": 1}, Unique: true})

	n, err := c.Reindex("test.foo")
	if err != nil {
		t.Fatalf("Reindex failed: %v", err)
	}
	if n != 2 {
		t.Errorf("Expected 2 rebuilt indexes, got %d", n)
	}

	if _, err := c.Reindex("other.coll"); codeOf(t, err) != cluster.CodeDatabaseNotFound {
		t.Errorf("Expected DatabaseNotFound, got %v", err)
	}
}

// TestSetOptions tests option merging and removal
func TestSetOptions(t *testing.T) {
	c := New()
	c.CreateCollection("test.foo", map[string]any{"capped": true, "max": 100})

	if err := c.SetOptions("test.foo", map[string]any{"max": 200, "capped": nil}); err != nil {
		t.Fatalf("SetOptions failed: %v", err)
	}

	info, _ := c.Collection("test.foo")
	want := map[string]any{"max": 200}
	if diff := cmp.Diff(want, info.Options); diff != "" {
		t.Errorf("Options mismatch (-want +got):\n%s", diff)
	}

	if err := c.SetOptions("test.foo", nil); codeOf(t, err) != cluster.CodeInvalidOptions {
		t.Errorf("Expected InvalidOptions for empty options, got %v", err)
	}
}

// TestCollectionsSorted tests the catalog listing
func TestCollectionsSorted(t *testing.T) {
	c := New()
	c.CreateCollection("test.zeta", nil)
	c.CreateCollection("app.users", nil)
	c.CreateCollection("test.alpha", nil)

	infos := c.Collections()
	var namespaces []string
	for _, info := range infos {
		namespaces = append(namespaces, info.Namespace)
	}
	want := []string{"app.users", "test.alpha", "test.zeta"}
	if diff := cmp.Diff(want, namespaces); diff != "" {
		t.Errorf("Namespace order mismatch (-want +got):\n%s", diff)
	}
}

// TestCatalogConcurrency smoke-tests concurrent index creation
func TestCatalogConcurrency(t *testing.T) {
	c := New()
	c.CreateCollection("test.foo", nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// All goroutines race to create the same index; exactly one
			// creation must be counted, the rest are idempotent successes.
			if _, err := c.CreateIndex("test.foo", userIndex()); err != nil {
				t.Errorf("CreateIndex failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := c.Stats().IndexCreates; got != 1 {
		t.Errorf("Expected exactly 1 counted creation, got %d", got)
	}
}
