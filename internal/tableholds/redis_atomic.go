package tableholds

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"barbuddy/internal/reservation"
	"barbuddy/internal/shared/constants"
)

// Lua script for atomically acquiring (or refreshing) one table hold
const luaAtomicTableHold = `
-- KEYS[1]: hold key, KEYS[2]: per-key hold set
-- ARGV[1]: holder id, ARGV[2]: ttl in milliseconds, ARGV[3]: table id
local current = redis.call('GET', KEYS[1])
if current and current ~= ARGV[1] then
	return {0, current}
end

redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[2])
redis.call('SADD', KEYS[2], ARGV[3])
redis.call('PEXPIRE', KEYS[2], ARGV[2])

if current then
	return {1, 'refreshed'}
end
return {1, 'acquired'}
`

// Lua script for releasing a hold; only the holder may delete it
const luaAtomicTableRelease = `
-- KEYS[1]: hold key, KEYS[2]: per-key hold set
-- ARGV[1]: holder id, ARGV[2]: table id
local current = redis.call('GET', KEYS[1])
if not current then
	redis.call('SREM', KEYS[2], ARGV[2])
	return {0, 'not_held'}
end

if current ~= ARGV[1] then
	return {0, 'foreign'}
end

redis.call('DEL', KEYS[1])
redis.call('SREM', KEYS[2], ARGV[2])
return {1, 'released'}
`

// Lua script for consuming every hold of a booking at once
const luaAtomicTableConsume = `
-- KEYS[1]: per-key hold set, KEYS[2..n]: hold keys
-- ARGV[1]: holder id, ARGV[2..n]: table ids matching KEYS[2..n]
for i = 2, #KEYS do
	if redis.call('GET', KEYS[i]) ~= ARGV[1] then
		return {0, ARGV[i]}
	end
end

for i = 2, #KEYS do
	redis.call('DEL', KEYS[i])
	redis.call('SREM', KEYS[1], ARGV[i])
end
return {1, tostring(#KEYS - 1)}
`

// Lua script for dropping index members whose hold has expired. Existence
// is checked at removal time so a hold acquired meanwhile keeps its member.
const luaPruneExpiredHolds = `
-- KEYS[1]: per-key hold set, KEYS[2..n]: hold keys
-- ARGV[1..n-1]: table ids matching KEYS[2..n]
local removed = 0
for i = 2, #KEYS do
	if redis.call('EXISTS', KEYS[i]) == 0 then
		removed = removed + redis.call('SREM', KEYS[1], ARGV[i - 1])
	end
end
return removed
`

// AcquireResult describes the outcome of a hold attempt
type AcquireResult struct {
	Acquired  bool
	Refreshed bool
	// HolderID is the current holder when Acquired is false
	HolderID string
}

// HoldStore keeps short-lived table holds in Redis. Every hold is a key whose
// value is the holder id and whose TTL is the hold expiry; a set per
// reservation key indexes the holds for snapshots.
type HoldStore struct {
	redis   *redis.Client
	ttl     time.Duration
	acquire *redis.Script
	release *redis.Script
	consume *redis.Script
	prune   *redis.Script
}

// NewHoldStore creates a store whose holds expire after ttl
func NewHoldStore(client *redis.Client, ttl time.Duration) *HoldStore {
	return &HoldStore{
		redis:   client,
		ttl:     ttl,
		acquire: redis.NewScript(luaAtomicTableHold),
		release: redis.NewScript(luaAtomicTableRelease),
		consume: redis.NewScript(luaAtomicTableConsume),
		prune:   redis.NewScript(luaPruneExpiredHolds),
	}
}

// TTL returns the hold expiry
func (s *HoldStore) TTL() time.Duration {
	return s.ttl
}

// Acquire holds tableID for holderID. A second acquire by the same holder
// refreshes the expiry and succeeds.
func (s *HoldStore) Acquire(ctx context.Context, key reservation.ReservationKey, tableID, holderID string) (*AcquireResult, error) {
	keys := []string{
		constants.BuildHoldKey(key.BarID, key.Date, key.Time, tableID),
		constants.BuildHoldSetKey(key.BarID, key.Date, key.Time),
	}

	result, err := s.acquire.Run(ctx, s.redis, keys, holderID, s.ttl.Milliseconds(), tableID).Result()
	if err != nil {
		return nil, fmt.Errorf("atomic hold failed: %w", err)
	}

	ok, detail, err := parseScriptResult(result)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &AcquireResult{HolderID: detail}, nil
	}

	return &AcquireResult{Acquired: true, Refreshed: detail == "refreshed", HolderID: holderID}, nil
}

// Release deletes the hold when holderID owns it and reports whether it did
func (s *HoldStore) Release(ctx context.Context, key reservation.ReservationKey, tableID, holderID string) (bool, error) {
	keys := []string{
		constants.BuildHoldKey(key.BarID, key.Date, key.Time, tableID),
		constants.BuildHoldSetKey(key.BarID, key.Date, key.Time),
	}

	result, err := s.release.Run(ctx, s.redis, keys, holderID, tableID).Result()
	if err != nil {
		return false, fmt.Errorf("atomic release failed: %w", err)
	}

	ok, _, err := parseScriptResult(result)
	if err != nil {
		return false, err
	}
	return ok, nil
}

// Consume deletes all of holderID's holds on tableIDs, or none of them if
// any is missing or owned by someone else. The offending table is returned
// in the error.
func (s *HoldStore) Consume(ctx context.Context, key reservation.ReservationKey, tableIDs []string, holderID string) error {
	if len(tableIDs) == 0 {
		return nil
	}

	keys := make([]string, 0, len(tableIDs)+1)
	args := make([]interface{}, 0, len(tableIDs)+1)
	keys = append(keys, constants.BuildHoldSetKey(key.BarID, key.Date, key.Time))
	args = append(args, holderID)
	for _, tableID := range tableIDs {
		keys = append(keys, constants.BuildHoldKey(key.BarID, key.Date, key.Time, tableID))
		args = append(args, tableID)
	}

	result, err := s.consume.Run(ctx, s.redis, keys, args...).Result()
	if err != nil {
		return fmt.Errorf("atomic consume failed: %w", err)
	}

	ok, detail, err := parseScriptResult(result)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: table %s", ErrNotHeldByCaller, detail)
	}
	return nil
}

// Holders returns the current holder of each table; tables nobody holds are absent
func (s *HoldStore) Holders(ctx context.Context, key reservation.ReservationKey, tableIDs []string) (map[string]string, error) {
	holders := make(map[string]string, len(tableIDs))
	if len(tableIDs) == 0 {
		return holders, nil
	}

	keys := make([]string, len(tableIDs))
	for i, tableID := range tableIDs {
		keys[i] = constants.BuildHoldKey(key.BarID, key.Date, key.Time, tableID)
	}

	values, err := s.redis.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read holds: %w", err)
	}

	for i, val := range values {
		if holder, ok := val.(string); ok {
			holders[tableIDs[i]] = holder
		}
	}
	return holders, nil
}

// Held returns every live hold of key, ordered by table id. Set members
// whose hold has expired are pruned on the way.
func (s *HoldStore) Held(ctx context.Context, key reservation.ReservationKey) ([]reservation.HeldTable, error) {
	setKey := constants.BuildHoldSetKey(key.BarID, key.Date, key.Time)

	members, err := s.redis.SMembers(ctx, setKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list holds: %w", err)
	}
	sort.Strings(members)

	holders, err := s.Holders(ctx, key, members)
	if err != nil {
		return nil, err
	}

	held := make([]reservation.HeldTable, 0, len(holders))
	var expired []string
	for _, tableID := range members {
		holder, ok := holders[tableID]
		if !ok {
			expired = append(expired, tableID)
			continue
		}
		held = append(held, reservation.HeldTable{TableID: tableID, HolderID: holder})
	}

	if len(expired) > 0 {
		// Best effort; the snapshot is already complete
		_ = s.pruneExpired(ctx, key, expired)
	}

	return held, nil
}

// pruneExpired removes tableIDs from the index of key unless their hold
// exists again by the time the script runs
func (s *HoldStore) pruneExpired(ctx context.Context, key reservation.ReservationKey, tableIDs []string) error {
	keys := make([]string, 0, len(tableIDs)+1)
	keys = append(keys, constants.BuildHoldSetKey(key.BarID, key.Date, key.Time))
	args := make([]interface{}, 0, len(tableIDs))
	for _, tableID := range tableIDs {
		keys = append(keys, constants.BuildHoldKey(key.BarID, key.Date, key.Time, tableID))
		args = append(args, tableID)
	}

	if err := s.prune.Run(ctx, s.redis, keys, args...).Err(); err != nil {
		return fmt.Errorf("failed to prune expired holds: %w", err)
	}
	return nil
}

// PreloadScripts loads the Lua scripts into Redis for EVALSHA
func (s *HoldStore) PreloadScripts(ctx context.Context) error {
	for _, script := range []*redis.Script{s.acquire, s.release, s.consume, s.prune} {
		if err := script.Load(ctx, s.redis).Err(); err != nil {
			return fmt.Errorf("failed to preload hold script: %w", err)
		}
	}
	return nil
}

// parseScriptResult unpacks the {status, detail} pair every script returns
func parseScriptResult(result interface{}) (bool, string, error) {
	values, ok := result.([]interface{})
	if !ok || len(values) != 2 {
		return false, "", fmt.Errorf("unexpected hold script result: %v", result)
	}

	status, ok := values[0].(int64)
	if !ok {
		return false, "", fmt.Errorf("unexpected hold script status: %v", values[0])
	}
	detail, _ := values[1].(string)

	return status == 1, detail, nil
}
