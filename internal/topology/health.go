// Member liveness probing for the routing daemon. Probe results are
// operational telemetry only; target resolution never consults them, because
// liveness is observed at dispatch time per command.

package topology

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dreamware/metaroute/internal/cluster"
)

// Reachability states reported by the Prober.
const (
	StatusUnknown     = "unknown"
	StatusReachable   = "reachable"
	StatusUnreachable = "unreachable"
)

// MemberHealth tracks the observed reachability of a single member.
type MemberHealth struct {
	LastCheck        time.Time // Timestamp of the last probe attempt
	LastReachable    time.Time // Timestamp of the last successful probe
	MemberID         string    // Member being probed
	Status           string    // One of the Status* constants
	ConsecutiveFails int       // Consecutive failed probes
}

// Prober periodically probes every registered member's /health endpoint and
// logs reachability transitions. A member is marked unreachable after
// maxFailures consecutive failed probes and recovers on the first success.
//
// Thread-safe: all methods may be called concurrently.
type Prober struct {
	members       map[string]*MemberHealth
	httpClient    *http.Client
	checkFunc     func(addr string) error
	onUnreachable func(memberID string)
	ctx           context.Context
	cancel        context.CancelFunc
	interval      time.Duration
	timeout       time.Duration
	mu            sync.RWMutex
	wg            sync.WaitGroup
	maxFailures   int
}

// NewProber creates a prober that checks each member every interval.
// Members are marked unreachable after 3 consecutive failures.
func NewProber(interval time.Duration) *Prober {
	ctx, cancel := context.WithCancel(context.Background())

	return &Prober{
		interval:    interval,
		timeout:     2 * time.Second,
		maxFailures: 3,
		members:     make(map[string]*MemberHealth),
		httpClient: &http.Client{
			Timeout: 2 * time.Second,
		},
		ctx:    ctx,
		cancel: cancel,
	}
}

// SetOnUnreachable sets the callback invoked (in its own goroutine) when a
// member transitions to unreachable.
func (p *Prober) SetOnUnreachable(callback func(memberID string)) {
	p.onUnreachable = callback
}

// SetCheckFunction overrides the default HTTP probe, for tests.
func (p *Prober) SetCheckFunction(checkFunc func(addr string) error) {
	p.checkFunc = checkFunc
}

// Start runs the probe loop until ctx (or the prober) is canceled. The
// memberProvider is consulted on every tick so newly registered members are
// picked up without restart.
func (p *Prober) Start(ctx context.Context, memberProvider func() []cluster.Member) {
	p.wg.Add(1)
	defer p.wg.Done()

	if ctx == nil {
		ctx = p.ctx
	}
	if p.checkFunc == nil {
		p.checkFunc = p.defaultCheck
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	log.Printf("member prober started with interval %v", p.interval)

	p.checkAll(memberProvider())

	for {
		select {
		case <-ticker.C:
			p.checkAll(memberProvider())
		case <-ctx.Done():
			log.Println("member prober stopping")
			return
		case <-p.ctx.Done():
			log.Println("member prober stopping")
			return
		}
	}
}

// Stop cancels the probe loop and waits for it to exit.
func (p *Prober) Stop() {
	p.cancel()
	p.wg.Wait()
}

// checkAll probes every provided member and drops records for members that
// have left the cluster.
func (p *Prober) checkAll(members []cluster.Member) {
	current := make(map[string]bool)

	for _, m := range members {
		current[m.ID] = true
		p.checkMember(m)
	}

	p.mu.Lock()
	for id := range p.members {
		if !current[id] {
			delete(p.members, id)
			log.Printf("member %s removed from probing", id)
		}
	}
	p.mu.Unlock()
}

func (p *Prober) checkMember(m cluster.Member) {
	p.mu.Lock()
	health, exists := p.members[m.ID]
	if !exists {
		health = &MemberHealth{
			MemberID:      m.ID,
			Status:        StatusUnknown,
			LastCheck:     time.Now(),
			LastReachable: time.Now(),
		}
		p.members[m.ID] = health
	}
	p.mu.Unlock()

	err := p.checkFunc(m.Addr)

	p.mu.Lock()
	defer p.mu.Unlock()

	health.LastCheck = time.Now()

	if err != nil {
		health.ConsecutiveFails++
		log.Printf("probe failed for member %s (attempt %d/%d): %v",
			m.ID, health.ConsecutiveFails, p.maxFailures, err)

		if health.ConsecutiveFails >= p.maxFailures {
			previous := health.Status
			health.Status = StatusUnreachable

			if previous != StatusUnreachable && p.onUnreachable != nil {
				log.Printf("member %s marked unreachable after %d failures",
					m.ID, health.ConsecutiveFails)
				// Callback runs without the lock held.
				go p.onUnreachable(m.ID)
			}
		}
		return
	}

	if health.Status == StatusUnreachable {
		log.Printf("member %s recovered and is reachable again", m.ID)
	}
	health.Status = StatusReachable
	health.ConsecutiveFails = 0
	health.LastReachable = time.Now()
}

// defaultCheck issues a GET against the member's /health endpoint.
func (p *Prober) defaultCheck(addr string) error {
	url := addr
	if !strings.HasPrefix(addr, "http://") && !strings.HasPrefix(addr, "https://") {
		url = fmt.Sprintf("http://%s", addr)
	}
	if !strings.HasSuffix(url, "/health") {
		url = strings.TrimRight(url, "/") + "/health"
	}

	resp, err := p.httpClient.Get(url)
	if err != nil {
		return fmt.Errorf("probe request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("probe returned status %d", resp.StatusCode)
	}
	return nil
}

// MemberHealth returns a copy of the health record for one member, or nil if
// the member is not being probed.
func (p *Prober) MemberHealth(memberID string) *MemberHealth {
	p.mu.RLock()
	defer p.mu.RUnlock()

	health, exists := p.members[memberID]
	if !exists {
		return nil
	}

	copied := *health
	return &copied
}

// AllMemberHealth returns a copy of every member's health record.
func (p *Prober) AllMemberHealth() map[string]*MemberHealth {
	p.mu.RLock()
	defer p.mu.RUnlock()

	result := make(map[string]*MemberHealth, len(p.members))
	for id, health := range p.members {
		copied := *health
		result[id] = &copied
	}
	return result
}

// IsReachable reports whether a member's last observed status is reachable.
func (p *Prober) IsReachable(memberID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	health, exists := p.members[memberID]
	return exists && health.Status == StatusReachable
}
