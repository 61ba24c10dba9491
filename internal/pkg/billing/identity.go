package billing

import (
	"context"
	"fmt"
	"strings"

	"github.com/ManuelReschke/NutriFox/app/models"
	"github.com/go-playground/validator/v10"
)

// Directory looks up internal users by email.
type Directory interface {
	FindUserIDByEmail(ctx context.Context, email string) (userID string, found bool, err error)
}

// Identity is a resolved internal user and where it came from.
type Identity struct {
	UserID string
	Rule   string
	Email  string
}

// IdentityResolver maps a webhook envelope to an internal user id.
type IdentityResolver struct {
	dir      Directory
	validate *validator.Validate
}

// NewIdentityResolver creates a resolver. A nil directory restricts
// resolution to explicit identifiers in the payload.
func NewIdentityResolver(dir Directory) *IdentityResolver {
	return &IdentityResolver{dir: dir, validate: validator.New()}
}

// Resolve tries the explicit identity rules first, then every syntactically
// valid email in rule order until the directory knows one. Explicit ids longer
// than an internal user id are skipped. Directory failures are returned as
// ErrPersistence.
func (r *IdentityResolver) Resolve(ctx context.Context, env *Envelope) (Identity, bool, error) {
	for _, rule := range UserIDRules {
		if id, ok := rule.String(env.Root); ok && len(id) <= models.MaxUserIDLength {
			return Identity{UserID: id, Rule: rule.Path}, true, nil
		}
	}
	if r.dir == nil {
		return Identity{}, false, nil
	}

	seen := make(map[string]struct{})
	for _, rule := range EmailRules {
		raw, ok := rule.String(env.Root)
		if !ok {
			continue
		}
		email := strings.ToLower(raw)
		if _, dup := seen[email]; dup {
			continue
		}
		seen[email] = struct{}{}
		if !r.ValidEmail(email) {
			continue
		}

		userID, found, err := r.dir.FindUserIDByEmail(ctx, email)
		if err != nil {
			return Identity{}, false, fmt.Errorf("%w: identity lookup: %v", ErrPersistence, err)
		}
		if found && userID != "" {
			return Identity{UserID: userID, Rule: rule.Path, Email: email}, true, nil
		}
	}
	return Identity{}, false, nil
}

// ValidEmail reports whether s is a syntactically valid address.
func (r *IdentityResolver) ValidEmail(s string) bool {
	return r.validate.Var(s, "required,email") == nil
}
