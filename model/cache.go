package model

import (
	"fmt"
	"strconv"
	"time"

	"github.com/Laisky/errors/v2"
	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/makehub/llm-gateway/common"
	"github.com/makehub/llm-gateway/common/config"
)

// Read-through caches for the auth and billing hot path. Redis backs them when
// configured; otherwise entries live in process memory. Each key has a single
// writer: its own miss-handler, serialized by singleflight.

var (
	memoryCache = gocache.New(5*time.Minute, 10*time.Minute)
	cacheGroup  singleflight.Group
)

func balanceCacheKey(userId int) string {
	return fmt.Sprintf("user_balance:%d", userId)
}

func apiKeyCacheKey(keyHash string) string {
	return "api_key:" + keyHash
}

// CacheGetUserBalance returns the wallet balance, stale by at most
// BALANCE_CACHE_TTL_SECONDS. Debits invalidate eagerly.
func CacheGetUserBalance(userId int) (float64, error) {
	key := balanceCacheKey(userId)

	if common.IsRedisEnabled() {
		if raw, err := common.RedisGet(key); err == nil {
			if balance, err := strconv.ParseFloat(raw, 64); err == nil {
				return balance, nil
			}
		}
	} else if cached, ok := memoryCache.Get(key); ok {
		return cached.(float64), nil
	}

	value, err, _ := cacheGroup.Do(key, func() (any, error) {
		balance, err := GetUserBalance(userId)
		if err != nil {
			return 0.0, err
		}
		if common.IsRedisEnabled() {
			_ = common.RedisSet(key, strconv.FormatFloat(balance, 'f', -1, 64), config.BalanceCacheTTL)
		} else {
			memoryCache.Set(key, balance, config.BalanceCacheTTL)
		}
		return balance, nil
	})
	if err != nil {
		return 0, errors.Wrap(err, "load user balance")
	}
	return value.(float64), nil
}

// CacheInvalidateUserBalance drops the cached balance after a wallet write.
func CacheInvalidateUserBalance(userId int) {
	key := balanceCacheKey(userId)
	if common.IsRedisEnabled() {
		_ = common.RedisDel(key)
	}
	memoryCache.Delete(key)
}

// CacheValidateApiKey resolves an API key with a read-through cache bounded by
// AUTH_CACHE_TTL_SECONDS. Only successful lookups are cached; probing a bad
// key always hits storage.
func CacheValidateApiKey(key string) (*ApiKey, error) {
	cacheKey := apiKeyCacheKey(HashKey(key))

	if cached, ok := memoryCache.Get(cacheKey); ok {
		return cached.(*ApiKey), nil
	}

	value, err, _ := cacheGroup.Do(cacheKey, func() (any, error) {
		apiKey, err := ValidateApiKey(key)
		if err != nil {
			return nil, err
		}
		memoryCache.Set(cacheKey, apiKey, config.AuthCacheTTL)
		return apiKey, nil
	})
	if err != nil {
		return nil, err
	}
	return value.(*ApiKey), nil
}
