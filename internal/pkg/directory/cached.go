package directory

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"
)

const emailCachePrefix = "directory:email:"

// CachedDirectory keeps positive email lookups in Redis. Misses are not
// cached so a user who signs up after paying is found on the provider's retry.
type CachedDirectory struct {
	next Directory
	rdb  redis.Cmdable
	ttl  time.Duration
}

func NewCachedDirectory(next Directory, rdb redis.Cmdable, ttl time.Duration) *CachedDirectory {
	return &CachedDirectory{next: next, rdb: rdb, ttl: ttl}
}

func emailCacheKey(email string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(email))))
	return emailCachePrefix + hex.EncodeToString(sum[:16])
}

func (c *CachedDirectory) FindUserByEmail(ctx context.Context, email string) (*User, error) {
	key := emailCacheKey(email)

	raw, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var u User
		if jerr := json.Unmarshal(raw, &u); jerr == nil && u.ID != "" {
			return &u, nil
		}
	case !errors.Is(err, redis.Nil):
		log.Warnf("[Directory] cache read failed: %v", err)
	}

	u, err := c.next.FindUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if data, jerr := json.Marshal(u); jerr == nil {
		if serr := c.rdb.Set(ctx, key, data, c.ttl).Err(); serr != nil {
			log.Warnf("[Directory] cache write failed: %v", serr)
		}
	}
	return u, nil
}

func (c *CachedDirectory) ListUsers(ctx context.Context, page, perPage int) ([]User, error) {
	return c.next.ListUsers(ctx, page, perPage)
}

// Forget drops a cached email, e.g. after the user changed address.
func (c *CachedDirectory) Forget(ctx context.Context, email string) error {
	return c.rdb.Del(ctx, emailCacheKey(email)).Err()
}
