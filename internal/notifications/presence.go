package notifications

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"project0/internal/middleware"

	"github.com/redis/go-redis/v9"
)

const (
	presenceOnlineSetKey  = "ws:online_users"
	presenceLastSeenKeyNS = "ws:last_seen:"
	presenceTTL           = 90 * time.Second
	presenceReapInterval  = 60 * time.Second
)

// Presence counts connected users locally and mirrors them in Redis so every
// instance sees the same online set. Entries whose last-seen key expired are
// reaped.
type Presence struct {
	rdb *redis.Client

	mu         sync.RWMutex
	localConns map[uint]int

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewPresence creates a tracker and starts the reaper when Redis is available.
func NewPresence(rdb *redis.Client) *Presence {
	p := &Presence{
		rdb:        rdb,
		localConns: make(map[uint]int),
		stopCh:     make(chan struct{}),
	}
	if rdb != nil {
		go p.reaperLoop(presenceReapInterval)
	}
	return p
}

// Stop ends the reaper.
func (p *Presence) Stop() {
	p.stopOnce.Do(func() { close(p.stopCh) })
}

func (p *Presence) Register(ctx context.Context, userID uint) {
	p.mu.Lock()
	p.localConns[userID]++
	p.mu.Unlock()
	p.Touch(ctx, userID)
}

func (p *Presence) Unregister(ctx context.Context, userID uint) {
	p.mu.Lock()
	n := p.localConns[userID] - 1
	if n > 0 {
		p.localConns[userID] = n
		p.mu.Unlock()
		return
	}
	delete(p.localConns, userID)
	p.mu.Unlock()

	if p.rdb != nil {
		uid := strconv.FormatUint(uint64(userID), 10)
		_ = p.rdb.Del(ctx, p.lastSeenKey(userID)).Err()
		_ = p.rdb.SRem(ctx, presenceOnlineSetKey, uid).Err()
	}
}

// Touch refreshes the user's last-seen key.
func (p *Presence) Touch(ctx context.Context, userID uint) {
	if p.rdb == nil {
		return
	}
	uid := strconv.FormatUint(uint64(userID), 10)
	if err := p.rdb.SAdd(ctx, presenceOnlineSetKey, uid).Err(); err != nil {
		middleware.Logger.Warn("presence SADD failed", slog.Uint64("user_id", uint64(userID)), slog.String("error", err.Error()))
	}
	if err := p.rdb.SetEx(ctx, p.lastSeenKey(userID), strconv.FormatInt(time.Now().Unix(), 10), presenceTTL).Err(); err != nil {
		middleware.Logger.Warn("presence SETEX failed", slog.Uint64("user_id", uint64(userID)), slog.String("error", err.Error()))
	}
}

func (p *Presence) IsOnline(ctx context.Context, userID uint) bool {
	p.mu.RLock()
	local := p.localConns[userID] > 0
	p.mu.RUnlock()
	if local || p.rdb == nil {
		return local
	}
	exists, err := p.rdb.Exists(ctx, p.lastSeenKey(userID)).Result()
	return err == nil && exists > 0
}

// OnlineCount returns the number of distinct online users across instances.
func (p *Presence) OnlineCount(ctx context.Context) int {
	seen := make(map[string]struct{})
	p.mu.RLock()
	for id, n := range p.localConns {
		if n > 0 {
			seen[strconv.FormatUint(uint64(id), 10)] = struct{}{}
		}
	}
	p.mu.RUnlock()

	if p.rdb != nil {
		if members, err := p.rdb.SMembers(ctx, presenceOnlineSetKey).Result(); err == nil {
			for _, m := range members {
				seen[m] = struct{}{}
			}
		}
	}
	return len(seen)
}

// reapOnce drops set members whose last-seen key has expired.
func (p *Presence) reapOnce(ctx context.Context) int {
	if p.rdb == nil {
		return 0
	}
	members, err := p.rdb.SMembers(ctx, presenceOnlineSetKey).Result()
	if err != nil {
		return 0
	}
	reaped := 0
	for _, raw := range members {
		exists, err := p.rdb.Exists(ctx, presenceLastSeenKeyNS+raw).Result()
		if err != nil || exists > 0 {
			continue
		}
		if err := p.rdb.SRem(ctx, presenceOnlineSetKey, raw).Err(); err == nil {
			reaped++
		}
	}
	return reaped
}

func (p *Presence) reaperLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.reapOnce(context.Background())
		}
	}
}

func (p *Presence) lastSeenKey(userID uint) string {
	return presenceLastSeenKeyNS + strconv.FormatUint(uint64(userID), 10)
}
