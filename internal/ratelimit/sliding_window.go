// Package ratelimit 提供基于 Redis 的限流
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// SlidingWindow 基于 Redis ZSET 的滑动窗口限流器
type SlidingWindow struct {
	rdb    *redis.Client
	script *redis.Script
}

// Lua 脚本: 清理过期成员、计数并登记，整体原子执行
const slidingWindowLua = `
local key = KEYS[1]
local window = tonumber(ARGV[1])
local limit = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local unique_id = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, 0, now - window)

local count = redis.call('ZCARD', key)
if count < limit then
    redis.call('ZADD', key, now, unique_id)
    redis.call('PEXPIRE', key, window)
    return 1
end
return 0
`

// NewSlidingWindow 创建滑动窗口限流器
func NewSlidingWindow(rdb *redis.Client) *SlidingWindow {
	return &SlidingWindow{
		rdb:    rdb,
		script: redis.NewScript(slidingWindowLua),
	}
}

// Allow 检查并登记一次请求
func (sw *SlidingWindow) Allow(ctx context.Context, key string, window time.Duration, limit int, uniqueID string) (bool, error) {
	now := time.Now().UnixMilli()
	result, err := sw.script.Run(ctx, sw.rdb, []string{key},
		window.Milliseconds(), limit, now, uniqueID).Int()
	if err != nil {
		return false, fmt.Errorf("execute lua script: %w", err)
	}
	return result == 1, nil
}

// Remaining 返回窗口内剩余配额
func (sw *SlidingWindow) Remaining(ctx context.Context, key string, window time.Duration, limit int) (int, error) {
	now := time.Now().UnixMilli()
	sw.rdb.ZRemRangeByScore(ctx, key, "0", fmt.Sprintf("%d", now-window.Milliseconds()))

	count, err := sw.rdb.ZCard(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("zcard: %w", err)
	}
	remaining := limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// Reset 清空限流键
func (sw *SlidingWindow) Reset(ctx context.Context, key string) error {
	return sw.rdb.Del(ctx, key).Err()
}
