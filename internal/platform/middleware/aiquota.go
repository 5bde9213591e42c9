package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"
)

// QuotaPlan defines usage limits for the AI chat endpoint. Assistant calls
// are metered upstream, so quotas are enforced per user before the request
// ever reaches the provider.
type QuotaPlan struct {
	Name              string `json:"name"`
	MessagesPerMinute int    `json:"messages_per_minute"`
	MessagesPerDay    int    `json:"messages_per_day"`
	ConcurrentStreams int    `json:"concurrent_streams"`
}

// QuotaInfo communicates the quota decision and metadata.
type QuotaInfo struct {
	Allowed    bool   `json:"allowed"`
	Remaining  int    `json:"remaining"`
	Limit      int    `json:"limit"`
	RetryAfter int    `json:"retry_after"`
	Plan       string `json:"plan"`
}

// QuotaUsage exposes the current counters for a user.
type QuotaUsage struct {
	UserID          string `json:"user_id"`
	Plan            string `json:"plan"`
	MinuteUsed      int    `json:"minute_used"`
	MinuteLimit     int    `json:"minute_limit"`
	DayUsed         int    `json:"day_used"`
	DayLimit        int    `json:"day_limit"`
	StreamsOpen     int    `json:"streams_open"`
	ConcurrentLimit int    `json:"concurrent_limit"`
}

// quotaCounter tracks per-user message counts with atomic counters and
// time-window-based resets.
type quotaCounter struct {
	minuteCount int64
	dayCount    int64
	streams     int64
	minuteReset time.Time
	dayReset    time.Time
	mu          sync.Mutex // protects reset times
}

// ChatQuota provides thread-safe per-user quotas for the AI chat endpoint
// with minute and day windows plus an open-stream gauge. SSE responses are
// long-lived, so the stream slot must be released when the stream closes.
type ChatQuota struct {
	plans     map[string]*QuotaPlan
	userPlans map[string]string
	counters  map[string]*quotaCounter
	mu        sync.RWMutex
}

// DefaultQuotaPlans returns the predefined quota tiers.
func DefaultQuotaPlans() []QuotaPlan {
	return []QuotaPlan{
		{
			Name:              "basic",
			MessagesPerMinute: 10,
			MessagesPerDay:    100,
			ConcurrentStreams: 1,
		},
		{
			Name:              "plus",
			MessagesPerMinute: 30,
			MessagesPerDay:    500,
			ConcurrentStreams: 2,
		},
	}
}

// NewChatQuota creates a ChatQuota pre-loaded with the default tiers.
func NewChatQuota() *ChatQuota {
	q := &ChatQuota{
		plans:     make(map[string]*QuotaPlan),
		userPlans: make(map[string]string),
		counters:  make(map[string]*quotaCounter),
	}
	for _, p := range DefaultQuotaPlans() {
		plan := p // copy
		q.plans[plan.Name] = &plan
	}
	return q
}

// RegisterPlan adds or replaces a quota tier by name.
func (q *ChatQuota) RegisterPlan(plan QuotaPlan) {
	q.mu.Lock()
	defer q.mu.Unlock()
	p := plan // copy
	q.plans[p.Name] = &p
}

// AssignPlan assigns userID to the named tier. Returns an error if the tier
// does not exist.
func (q *ChatQuota) AssignPlan(userID, planName string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.plans[planName]; !ok {
		return fmt.Errorf("quota plan %q not found", planName)
	}
	q.userPlans[userID] = planName
	return nil
}

// GetPlan returns the tier assigned to userID, falling back to "basic".
func (q *ChatQuota) GetPlan(userID string) *QuotaPlan {
	q.mu.RLock()
	defer q.mu.RUnlock()
	planName, ok := q.userPlans[userID]
	if !ok {
		planName = "basic"
	}
	plan, ok := q.plans[planName]
	if !ok {
		plan = q.plans["basic"]
	}
	return plan
}

// getOrCreateCounter returns the counter for userID, creating one if needed.
// Caller must NOT hold q.mu.
func (q *ChatQuota) getOrCreateCounter(userID string) *quotaCounter {
	q.mu.RLock()
	c, ok := q.counters[userID]
	q.mu.RUnlock()
	if ok {
		return c
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	// Double-check
	if c, ok := q.counters[userID]; ok {
		return c
	}
	now := time.Now()
	c = &quotaCounter{
		minuteReset: now.Add(time.Minute),
		dayReset:    now.Add(24 * time.Hour),
	}
	q.counters[userID] = c
	return c
}

// resetExpiredWindows checks and resets expired time windows. Must be called
// with counter.mu held.
func resetExpiredWindows(c *quotaCounter) {
	now := time.Now()
	if now.After(c.minuteReset) {
		atomic.StoreInt64(&c.minuteCount, 0)
		c.minuteReset = now.Add(time.Minute)
	}
	if now.After(c.dayReset) {
		atomic.StoreInt64(&c.dayCount, 0)
		c.dayReset = now.Add(24 * time.Hour)
	}
}

// Allow checks whether userID may start a new chat message. It atomically
// increments both window counters and the stream gauge. The caller MUST call
// Release after the stream closes to free the slot.
func (q *ChatQuota) Allow(userID string) (bool, *QuotaInfo) {
	plan := q.GetPlan(userID)
	counter := q.getOrCreateCounter(userID)

	counter.mu.Lock()
	resetExpiredWindows(counter)
	minuteReset := counter.minuteReset
	dayReset := counter.dayReset
	counter.mu.Unlock()

	info := &QuotaInfo{
		Plan:  plan.Name,
		Limit: plan.MessagesPerMinute,
	}

	if plan.ConcurrentStreams > 0 {
		cur := atomic.LoadInt64(&counter.streams)
		if cur >= int64(plan.ConcurrentStreams) {
			info.Remaining = 0
			info.RetryAfter = 1 // retry quickly once the open stream ends
			return false, info
		}
	}

	minuteVal := atomic.LoadInt64(&counter.minuteCount)
	if minuteVal >= int64(plan.MessagesPerMinute) {
		info.Remaining = 0
		info.RetryAfter = secondsUntil(minuteReset)
		return false, info
	}

	dayVal := atomic.LoadInt64(&counter.dayCount)
	if dayVal >= int64(plan.MessagesPerDay) {
		info.Remaining = 0
		info.RetryAfter = secondsUntil(dayReset)
		return false, info
	}

	newMinute := atomic.AddInt64(&counter.minuteCount, 1)
	atomic.AddInt64(&counter.dayCount, 1)
	atomic.AddInt64(&counter.streams, 1)

	remaining := plan.MessagesPerMinute - int(newMinute)
	if remaining < 0 {
		remaining = 0
	}

	info.Allowed = true
	info.Remaining = remaining
	return true, info
}

// Release decrements the open-stream counter for userID. It is safe to call
// even if Allow was never called (the counter will not go below zero).
func (q *ChatQuota) Release(userID string) {
	counter := q.getOrCreateCounter(userID)
	for {
		cur := atomic.LoadInt64(&counter.streams)
		if cur <= 0 {
			return
		}
		if atomic.CompareAndSwapInt64(&counter.streams, cur, cur-1) {
			return
		}
	}
}

// GetUsage returns a snapshot of the current counters for userID.
func (q *ChatQuota) GetUsage(userID string) *QuotaUsage {
	plan := q.GetPlan(userID)
	counter := q.getOrCreateCounter(userID)

	counter.mu.Lock()
	resetExpiredWindows(counter)
	counter.mu.Unlock()

	return &QuotaUsage{
		UserID:          userID,
		Plan:            plan.Name,
		MinuteUsed:      int(atomic.LoadInt64(&counter.minuteCount)),
		MinuteLimit:     plan.MessagesPerMinute,
		DayUsed:         int(atomic.LoadInt64(&counter.dayCount)),
		DayLimit:        plan.MessagesPerDay,
		StreamsOpen:     int(atomic.LoadInt64(&counter.streams)),
		ConcurrentLimit: plan.ConcurrentStreams,
	}
}

// ResetCounters zeroes all quota counters for userID and resets the windows.
func (q *ChatQuota) ResetCounters(userID string) {
	counter := q.getOrCreateCounter(userID)
	counter.mu.Lock()
	defer counter.mu.Unlock()

	atomic.StoreInt64(&counter.minuteCount, 0)
	atomic.StoreInt64(&counter.dayCount, 0)
	atomic.StoreInt64(&counter.streams, 0)

	now := time.Now()
	counter.minuteReset = now.Add(time.Minute)
	counter.dayReset = now.Add(24 * time.Hour)
}

// StartCleanup removes stale counters (no messages in 24 h) on a periodic
// interval. It blocks until ctx is cancelled, so call it in a goroutine.
func (q *ChatQuota) StartCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			q.mu.Lock()
			now := time.Now()
			for id, c := range q.counters {
				c.mu.Lock()
				if now.After(c.dayReset) &&
					atomic.LoadInt64(&c.minuteCount) == 0 &&
					atomic.LoadInt64(&c.dayCount) == 0 &&
					atomic.LoadInt64(&c.streams) == 0 {
					delete(q.counters, id)
				}
				c.mu.Unlock()
			}
			q.mu.Unlock()
		}
	}
}

// ChatQuotaMiddleware enforces per-user chat quotas on the routes it wraps.
// The user identity comes from the "user_id" context value set by the auth
// middleware; unauthenticated requests fall back to the client IP. The stream
// slot is released when the handler returns, which for SSE responses is after
// the stream has been fully written.
func ChatQuotaMiddleware(q *ChatQuota) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := c.RealIP()
			if userID, ok := c.Get("user_id").(string); ok && userID != "" {
				key = userID
			}

			allowed, info := q.Allow(key)
			c.Response().Header().Set("X-Quota-Limit", strconv.Itoa(info.Limit))
			c.Response().Header().Set("X-Quota-Remaining", strconv.Itoa(info.Remaining))
			if !allowed {
				c.Response().Header().Set("Retry-After", strconv.Itoa(info.RetryAfter))
				return echo.NewHTTPError(http.StatusTooManyRequests, "chat quota exceeded")
			}
			defer q.Release(key)

			return next(c)
		}
	}
}

func secondsUntil(t time.Time) int {
	s := int(time.Until(t).Seconds()) + 1
	if s < 1 {
		s = 1
	}
	return s
}
