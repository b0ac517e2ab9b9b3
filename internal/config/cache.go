package config

import (
	"strings"
	"time"
)

// CacheConfig defines settings for the response cache used by the public
// catalogue routes (movies and showtime listings).  Seat maps are never cached;
// they change with every lock.
type CacheConfig struct {
	Enabled      bool
	Methods      map[string]bool
	TTL          time.Duration
	KeyStrategy  string // "route_query" or "full_url"
	Prefix       string
	MaxBodyBytes int
}

// LoadCacheConfig reads the cache settings from environment variables:
//
//	CACHE_ENABLED         turn the cache on or off (default true)
//	CACHE_METHODS         comma separated HTTP methods to cache (default GET)
//	CACHE_TTL             lifetime of a cached response (default 30s)
//	CACHE_KEY_STRATEGY    "route_query" or "full_url"
//	CACHE_PREFIX          Redis key prefix (default mb:cache)
//	CACHE_MAX_BODY_BYTES  responses larger than this are not stored
//
// Unset or unparsable values fall back to the defaults.
func LoadCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled:      envBool("CACHE_ENABLED", true),
		Methods:      parseMethods(envStr("CACHE_METHODS", "GET")),
		TTL:          envDur("CACHE_TTL", 30*time.Second),
		KeyStrategy:  envStr("CACHE_KEY_STRATEGY", "route_query"),
		Prefix:       envStr("CACHE_PREFIX", "mb:cache"),
		MaxBodyBytes: envInt("CACHE_MAX_BODY_BYTES", 1<<20),
	}
}

// parseMethods turns "get, head" into a set of upper-cased method names.
// Empty entries are skipped.
func parseMethods(s string) map[string]bool {
	m := map[string]bool{}
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(strings.ToUpper(p))
		if p != "" {
			m[p] = true
		}
	}
	return m
}
