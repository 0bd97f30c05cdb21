// Package redis implements the Redis-backed adapters: the shared
// sliding-window admission store (atomic trim+add+count via Lua), the
// acceptance read cache, and the client hooks (metrics, circuit breaker).
package redis
