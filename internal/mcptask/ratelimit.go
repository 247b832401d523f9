// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package mcptask

import (
	"context"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// tokenBucket implements a simple token bucket algorithm.
type tokenBucket struct {
	mu         sync.Mutex
	tokens     float64
	maxTokens  float64
	refillRate float64 // tokens per second
	lastRefill time.Time
}

func newTokenBucket(perMinute int) *tokenBucket {
	return &tokenBucket{
		tokens:     float64(perMinute),
		maxTokens:  float64(perMinute),
		refillRate: float64(perMinute) / 60.0,
		lastRefill: time.Now(),
	}
}

func (tb *tokenBucket) take(n float64) bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(tb.lastRefill).Seconds()
	tb.tokens = min(tb.maxTokens, tb.tokens+elapsed*tb.refillRate)
	tb.lastRefill = now

	if tb.tokens >= n {
		tb.tokens -= n
		return true
	}
	return false
}

// RateLimiter throttles tool calls per owner, the last stage of the C5
// middleware chain before the tool's own handler runs. Grounded on
// internal/mcp/server/ratelimit.go's RateLimiter, generalized from a
// single global bucket pair to one bucket per owner so one noisy
// caller cannot starve another's task-augmented calls.
type RateLimiter struct {
	callsPerMinute int
	owners         OwnerResolver

	mu      sync.Mutex
	buckets map[string]*tokenBucket
}

// NewRateLimiter builds a RateLimiter allowing callsPerMinute tool
// calls per resolved owner.
func NewRateLimiter(callsPerMinute int, owners OwnerResolver) *RateLimiter {
	return &RateLimiter{
		callsPerMinute: callsPerMinute,
		owners:         owners,
		buckets:        make(map[string]*tokenBucket),
	}
}

func (rl *RateLimiter) bucketFor(owner string) *tokenBucket {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	b, ok := rl.buckets[owner]
	if !ok {
		b = newTokenBucket(rl.callsPerMinute)
		rl.buckets[owner] = b
	}
	return b
}

// Middleware returns the ToolHandlerMiddleware enforcing the limit.
func (rl *RateLimiter) Middleware() server.ToolHandlerMiddleware {
	return func(next server.ToolHandlerFunc) server.ToolHandlerFunc {
		return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			owner := "anonymous"
			if rl.owners != nil {
				if resolved, err := rl.owners.ResolveOwner(ctx); err == nil {
					owner = string(resolved)
				}
			}
			if !rl.bucketFor(owner).take(1) {
				return mcp.NewToolResultError("rate limit exceeded, try again shortly"), nil
			}
			return next(ctx, req)
		}
	}
}
