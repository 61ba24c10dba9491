package directory

import (
	"context"
	"errors"

	"github.com/ManuelReschke/NutriFox/app/models"
	"github.com/ManuelReschke/NutriFox/app/repository"
	"gorm.io/gorm"
)

// DBDirectory reads the local users table.
type DBDirectory struct {
	users repository.UserRepository
}

func NewDBDirectory(users repository.UserRepository) *DBDirectory {
	return &DBDirectory{users: users}
}

func (d *DBDirectory) FindUserByEmail(ctx context.Context, email string) (*User, error) {
	u, err := d.users.WithContext(ctx).GetByEmail(email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if !u.IsActive() {
		return nil, ErrNotFound
	}
	return toUser(u), nil
}

// ListUsers pages are 1-based.
func (d *DBDirectory) ListUsers(ctx context.Context, page, perPage int) ([]User, error) {
	page, perPage = normalizePaging(page, perPage)
	rows, err := d.users.WithContext(ctx).List((page-1)*perPage, perPage)
	if err != nil {
		return nil, err
	}
	out := make([]User, 0, len(rows))
	for i := range rows {
		out = append(out, *toUser(&rows[i]))
	}
	return out, nil
}

func toUser(u *models.User) *User {
	return &User{ID: u.ID, Email: u.Email, Name: u.Name}
}

func normalizePaging(page, perPage int) (int, int) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 1000 {
		perPage = 50
	}
	return page, perPage
}
