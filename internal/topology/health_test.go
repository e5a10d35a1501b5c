package topology

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/metaroute/internal/cluster"
)

func TestProberMarksUnreachableAfterConsecutiveFailures(t *testing.T) {
	p := NewProber(10 * time.Millisecond)
	defer p.Stop()

	var mu sync.Mutex
	failing := true
	p.SetCheckFunction(func(addr string) error {
		mu.Lock()
		defer mu.Unlock()
		if failing {
			return errors.New("connection refused")
		}
		return nil
	})

	unreachable := make(chan string, 1)
	p.SetOnUnreachable(func(memberID string) {
		select {
		case unreachable <- memberID:
		default:
		}
	})

	members := []cluster.Member{{ID: "shard0", Addr: "http://127.0.0.1:9001"}}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Start(ctx, func() []cluster.Member { return members })

	select {
	case id := <-unreachable:
		assert.Equal(t, "shard0", id)
	case <-time.After(2 * time.Second):
		t.Fatal("member was never marked unreachable")
	}

	health := p.MemberHealth("shard0")
	require.NotNil(t, health)
	assert.Equal(t, StatusUnreachable, health.Status)
	assert.GreaterOrEqual(t, health.ConsecutiveFails, 3)
	assert.False(t, p.IsReachable("shard0"))

	// Recovery on the first successful probe
	mu.Lock()
	failing = false
	mu.Unlock()

	require.Eventually(t, func() bool {
		return p.IsReachable("shard0")
	}, 2*time.Second, 10*time.Millisecond, "member never recovered")

	health = p.MemberHealth("shard0")
	require.NotNil(t, health)
	assert.Equal(t, 0, health.ConsecutiveFails)
}

func TestProberDropsDepartedMembers(t *testing.T) {
	p := NewProber(10 * time.Millisecond)
	defer p.Stop()
	p.SetCheckFunction(func(addr string) error { return nil })

	var mu sync.Mutex
	members := []cluster.Member{
		{ID: "shard0", Addr: "http://127.0.0.1:9001"},
		{ID: "shard1", Addr: "http://127.0.0.1:9002"},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Start(ctx, func() []cluster.Member {
		mu.Lock()
		defer mu.Unlock()
		return members
	})

	require.Eventually(t, func() bool {
		return p.MemberHealth("shard1") != nil
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	members = members[:1]
	mu.Unlock()

	require.Eventually(t, func() bool {
		return p.MemberHealth("shard1") == nil
	}, 2*time.Second, 10*time.Millisecond, "departed member still tracked")
	assert.NotNil(t, p.MemberHealth("shard0"))
}

func TestProberDefaultCheck(t *testing.T) {
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/health", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer healthy.Close()

	unhealthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer unhealthy.Close()

	p := NewProber(time.Second)
	defer p.Stop()

	assert.NoError(t, p.defaultCheck(healthy.URL))
	assert.Error(t, p.defaultCheck(unhealthy.URL))
	assert.Error(t, p.defaultCheck("http://127.0.0.1:1"))
}

func TestProberSnapshotCopies(t *testing.T) {
	p := NewProber(time.Second)
	defer p.Stop()
	p.SetCheckFunction(func(addr string) error { return nil })
	p.checkMember(cluster.Member{ID: "shard0", Addr: "http://127.0.0.1:9001"})

	all := p.AllMemberHealth()
	require.Contains(t, all, "shard0")

	// Mutating the returned record must not affect the prober's state
	all["shard0"].Status = StatusUnreachable
	assert.True(t, p.IsReachable("shard0"))
}
