package relay

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	cacheKeyThreadPrefix = "gm-relay:thread:"
	cacheKeyTicketPrefix = "gm-relay:ticket:"
	cacheTTL             = 7 * 24 * time.Hour
)

// ThreadCache maps platform threads to ticket ids and back. The
// in-process maps are authoritative for this instance; Redis, when
// configured, is a shared write-through layer so restarts and sibling
// instances resolve threads without replaying history. Losing the Redis
// copy only costs a fallback to the thread-name convention.
type ThreadCache struct {
	mu       sync.RWMutex
	byThread map[string]uint32
	byTicket map[uint32]string
	client   *redis.Client
}

// NewThreadCache creates a cache; client may be nil.
func NewThreadCache(client *redis.Client) *ThreadCache {
	return &ThreadCache{
		byThread: make(map[string]uint32),
		byTicket: make(map[uint32]string),
		client:   client,
	}
}

// PutThread records a thread-to-ticket binding.
func (c *ThreadCache) PutThread(ctx context.Context, threadID string, ticketID uint32) {
	c.mu.Lock()
	c.byThread[threadID] = ticketID
	c.byTicket[ticketID] = threadID
	c.mu.Unlock()

	if c.client != nil {
		ticket := strconv.FormatUint(uint64(ticketID), 10)
		c.client.Set(ctx, cacheKeyThreadPrefix+threadID, ticket, cacheTTL)
		c.client.Set(ctx, cacheKeyTicketPrefix+ticket, threadID, cacheTTL)
	}
}

// TicketForThread resolves a thread to its ticket id.
func (c *ThreadCache) TicketForThread(ctx context.Context, threadID string) (uint32, bool) {
	c.mu.RLock()
	id, ok := c.byThread[threadID]
	c.mu.RUnlock()
	if ok {
		return id, true
	}

	if c.client != nil {
		if val, err := c.client.Get(ctx, cacheKeyThreadPrefix+threadID).Result(); err == nil {
			if parsed, perr := strconv.ParseUint(val, 10, 32); perr == nil {
				c.mu.Lock()
				c.byThread[threadID] = uint32(parsed)
				c.byTicket[uint32(parsed)] = threadID
				c.mu.Unlock()
				return uint32(parsed), true
			}
		}
	}
	return 0, false
}

// ThreadForTicket resolves a ticket id to its thread.
func (c *ThreadCache) ThreadForTicket(ctx context.Context, ticketID uint32) (string, bool) {
	c.mu.RLock()
	threadID, ok := c.byTicket[ticketID]
	c.mu.RUnlock()
	if ok {
		return threadID, true
	}

	if c.client != nil {
		ticket := strconv.FormatUint(uint64(ticketID), 10)
		if val, err := c.client.Get(ctx, cacheKeyTicketPrefix+ticket).Result(); err == nil && val != "" {
			c.mu.Lock()
			c.byThread[val] = ticketID
			c.byTicket[ticketID] = val
			c.mu.Unlock()
			return val, true
		}
	}
	return "", false
}

// ForgetTicket drops both directions of a binding.
func (c *ThreadCache) ForgetTicket(ctx context.Context, ticketID uint32) {
	c.mu.Lock()
	threadID, ok := c.byTicket[ticketID]
	if ok {
		delete(c.byThread, threadID)
		delete(c.byTicket, ticketID)
	}
	c.mu.Unlock()

	if c.client != nil {
		ticket := strconv.FormatUint(uint64(ticketID), 10)
		if ok {
			c.client.Del(ctx, cacheKeyThreadPrefix+threadID)
		}
		c.client.Del(ctx, cacheKeyTicketPrefix+ticket)
	}
}
