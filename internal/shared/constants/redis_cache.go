package constants

import (
	"strings"
	"time"
)

// Redis key layout for the reservation service
// Pattern: barbuddy:{module}:{operation}:{identifier}:{params?}

// ================== CACHE TTL DURATIONS ==================

// Semi-Static Data (Medium TTL: changes occasionally)
const (
	TTL_SEMI_STATIC_LONG  = 4 * time.Hour // 4 hours - for table catalogues
	TTL_SEMI_STATIC_SHORT = 1 * time.Hour // 1 hour - for opening hours
)

// ================== REDIS KEY PREFIXES ==================

const (
	CACHE_PREFIX = "barbuddy"
)

// ================== BARS MODULE ==================

const (
	CACHE_KEY_BAR_SCHEDULE = CACHE_PREFIX + ":bars:schedule:uuid:" // + bar-id
	CACHE_KEY_BAR_TABLES   = CACHE_PREFIX + ":bars:tables:uuid:"   // + bar-id:type:table-type-id
)

const (
	TTL_BAR_SCHEDULE = TTL_SEMI_STATIC_SHORT // 1 hour
	TTL_BAR_TABLES   = TTL_SEMI_STATIC_LONG  // 4 hours
)

// ================== HOLDS MODULE ==================

// Holds are not cache entries: their TTL is the backend-owned hold expiry
const (
	HOLD_KEY_PREFIX     = CACHE_PREFIX + ":hold:"       // + bar:date:time:table
	HOLD_SET_PREFIX     = CACHE_PREFIX + ":holds:set:"  // + bar:date:time
	HOLD_CHANNEL_PREFIX = CACHE_PREFIX + ":holds:bar:"  // + bar-id (pub/sub)
	RATE_LIMIT_PREFIX   = CACHE_PREFIX + ":rate_limit:" // + type:ip
)

// ================== KEY BUILDERS ==================

func BuildBarScheduleKey(barID string) string {
	return CACHE_KEY_BAR_SCHEDULE + barID
}

func BuildBarTablesKey(barID, tableTypeID string) string {
	return CACHE_KEY_BAR_TABLES + barID + ":type:" + tableTypeID
}

// BuildBarCachePattern matches every cached entry of one bar
func BuildBarCachePattern(barID string) string {
	return CACHE_PREFIX + ":bars:*:uuid:" + barID + "*"
}

func BuildHoldKey(barID, date, clock, tableID string) string {
	return HOLD_KEY_PREFIX + strings.Join([]string{barID, date, clock, tableID}, ":")
}

func BuildHoldSetKey(barID, date, clock string) string {
	return HOLD_SET_PREFIX + strings.Join([]string{barID, date, clock}, ":")
}

func BuildHoldChannel(barID string) string {
	return HOLD_CHANNEL_PREFIX + barID
}
