package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"helpdesk-collab/backend/internal/models"
	"helpdesk-collab/backend/pkg/config"
	"helpdesk-collab/backend/pkg/logger"

	"github.com/redis/go-redis/v9"
)

// TicketCache is a redis-backed read cache for ticket lookups. Every
// ticket mutation must invalidate its entry.
type TicketCache struct {
	client *redis.Client
	ttl    time.Duration
	log    *logger.Logger
}

// NewTicketCache connects to redis using the application configuration.
func NewTicketCache(cfg *config.Config, log *logger.Logger) *TicketCache {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	return &TicketCache{
		client: client,
		ttl:    cfg.Cache.TTL,
		log:    log,
	}
}

func ticketKey(id uint) string {
	return fmt.Sprintf("ticket:%d", id)
}

// GetTicket returns the cached ticket and true on a hit. Redis errors
// are treated as misses.
func (c *TicketCache) GetTicket(ctx context.Context, id uint) (*models.Ticket, bool) {
	raw, err := c.client.Get(ctx, ticketKey(id)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn("ticket cache read failed", "ticket_id", id, "error", err.Error())
		}
		return nil, false
	}

	var ticket models.Ticket
	if err := json.Unmarshal([]byte(raw), &ticket); err != nil {
		c.log.Warn("ticket cache entry corrupt, dropping", "ticket_id", id, "error", err.Error())
		c.client.Del(ctx, ticketKey(id))
		return nil, false
	}
	return &ticket, true
}

// SetTicket stores a ticket with the configured TTL, best-effort.
func (c *TicketCache) SetTicket(ctx context.Context, ticket *models.Ticket) {
	raw, err := json.Marshal(ticket)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, ticketKey(ticket.ID), raw, c.ttl).Err(); err != nil {
		c.log.Warn("ticket cache write failed", "ticket_id", ticket.ID, "error", err.Error())
	}
}

// Invalidate removes a ticket's cache entry, best-effort.
func (c *TicketCache) Invalidate(ctx context.Context, id uint) {
	if err := c.client.Del(ctx, ticketKey(id)).Err(); err != nil {
		c.log.Warn("ticket cache invalidation failed", "ticket_id", id, "error", err.Error())
	}
}

// Ping verifies the redis connection; used by the health endpoint.
func (c *TicketCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
