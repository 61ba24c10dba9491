package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAdminAPI(t *testing.T, total int) (*httptest.Server, *[]string) {
	return newAdminAPIWithBlanks(t, total, nil)
}

// newAdminAPIWithBlanks serves total users; indexes listed in blank come back
// without an id.
func newAdminAPIWithBlanks(t *testing.T, total int, blank map[int]bool) (*httptest.Server, *[]string) {
	t.Helper()
	var seen []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.URL.RawQuery)
		if r.URL.Path != "/admin/users" || r.Header.Get("Authorization") != "Bearer service-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))

		var resp adminUsersResponse
		for i := (page - 1) * perPage; i < page*perPage && i < total; i++ {
			id := fmt.Sprintf("uid-%d", i)
			if blank[i] {
				id = ""
			}
			resp.Users = append(resp.Users, adminUser{
				ID:           id,
				Email:        fmt.Sprintf("User%d@Example.com", i),
				UserMetadata: map[string]any{"full_name": fmt.Sprintf("User %d", i)},
			})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv, &seen
}

func TestHTTPDirectoryFindUserByEmailPages(t *testing.T) {
	srv, seen := newAdminAPI(t, 7)
	d := &HTTPDirectory{BaseURL: srv.URL + "/", APIKey: "service-key", PerPage: 3, MaxPages: 5, HTTPClient: srv.Client()}

	u, err := d.FindUserByEmail(context.Background(), "user5@example.com")
	require.NoError(t, err)
	assert.Equal(t, "uid-5", u.ID)
	assert.Equal(t, "user5@example.com", u.Email)
	assert.Equal(t, "User 5", u.Name)
	assert.Equal(t, []string{"page=1&per_page=3", "page=2&per_page=3"}, *seen)
}

func TestHTTPDirectoryNotFoundStopsOnShortPage(t *testing.T) {
	srv, seen := newAdminAPI(t, 4)
	d := &HTTPDirectory{BaseURL: srv.URL, APIKey: "service-key", PerPage: 3, MaxPages: 10, HTTPClient: srv.Client()}

	_, err := d.FindUserByEmail(context.Background(), "ghost@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Len(t, *seen, 2)
}

func TestHTTPDirectoryErrors(t *testing.T) {
	srv, _ := newAdminAPI(t, 1)

	d := &HTTPDirectory{BaseURL: srv.URL, APIKey: "wrong", HTTPClient: srv.Client()}
	_, err := d.FindUserByEmail(context.Background(), "user0@example.com")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "status=401")

	_, err = (&HTTPDirectory{}).ListUsers(context.Background(), 1, 10)
	assert.Error(t, err)
}

func TestHTTPDirectoryPageLimitIsAnError(t *testing.T) {
	srv, seen := newAdminAPI(t, 50)
	d := &HTTPDirectory{BaseURL: srv.URL, APIKey: "service-key", PerPage: 3, MaxPages: 2, HTTPClient: srv.Client()}

	_, err := d.FindUserByEmail(context.Background(), "user40@example.com")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrScanLimit)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Len(t, *seen, 2)

	_, found, err := IDLookup{Directory: d}.FindUserIDByEmail(context.Background(), "user40@example.com")
	assert.Error(t, err)
	assert.False(t, found)
}

func TestHTTPDirectoryRowsWithoutIDDoNotEndScan(t *testing.T) {
	srv, seen := newAdminAPIWithBlanks(t, 6, map[int]bool{1: true})
	d := &HTTPDirectory{BaseURL: srv.URL, APIKey: "service-key", PerPage: 3, MaxPages: 5, HTTPClient: srv.Client()}

	u, err := d.FindUserByEmail(context.Background(), "user4@example.com")
	require.NoError(t, err)
	assert.Equal(t, "uid-4", u.ID)
	assert.Len(t, *seen, 2)

	users, err := d.ListUsers(context.Background(), 1, 3)
	require.NoError(t, err)
	assert.Len(t, users, 2)
}

func TestHTTPDirectoryMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"users":[`))
	}))
	t.Cleanup(srv.Close)

	d := &HTTPDirectory{BaseURL: srv.URL, HTTPClient: srv.Client()}
	_, err := d.FindUserByEmail(context.Background(), "user0@example.com")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}
