// Package directory finds internal users for the billing pipeline. The
// identity store is either the local users table or the admin API of the
// external auth platform, optionally fronted by a Redis cache.
package directory

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ManuelReschke/NutriFox/app/repository"
	"github.com/ManuelReschke/NutriFox/internal/pkg/env"
	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned when no user has the requested email.
var ErrNotFound = errors.New("directory: user not found")

const (
	KindDatabase = "database"
	KindHTTP     = "http"
)

// User is the directory's view of an account.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// Directory finds and lists users.
type Directory interface {
	FindUserByEmail(ctx context.Context, email string) (*User, error)
	ListUsers(ctx context.Context, page, perPage int) ([]User, error)
}

// IDLookup adapts a Directory to the email to user-id lookup of the webhook
// pipeline.
type IDLookup struct {
	Directory Directory
}

func (l IDLookup) FindUserIDByEmail(ctx context.Context, email string) (string, bool, error) {
	u, err := l.Directory.FindUserByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return u.ID, true, nil
}

// FromEnv builds the configured directory: IDENTITY_DIRECTORY selects the
// backend, IDENTITY_CACHE_TTL (0 disables) wraps it with the Redis cache.
func FromEnv(users repository.UserRepository, rdb redis.Cmdable) Directory {
	var d Directory
	switch strings.ToLower(strings.TrimSpace(env.GetEnv("IDENTITY_DIRECTORY", KindDatabase))) {
	case KindHTTP:
		d = NewHTTPDirectoryFromEnv()
	default:
		d = NewDBDirectory(users)
	}

	ttl := env.GetEnvDuration("IDENTITY_CACHE_TTL", 10*time.Minute)
	if ttl > 0 && rdb != nil {
		d = NewCachedDirectory(d, rdb, ttl)
	}
	return d
}
