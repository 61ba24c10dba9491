package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ManuelReschke/NutriFox/internal/pkg/env"
)

const (
	defaultHTTPPerPage  = 200
	defaultHTTPMaxPages = 25
)

// ErrScanLimit is returned when FindUserByEmail reaches MaxPages before the
// end of the listing. The user may exist further on, so it is not ErrNotFound.
var ErrScanLimit = errors.New("directory: page limit reached before end of user listing")

// HTTPDirectory talks to the auth platform's admin API:
//
//	GET {BaseURL}/admin/users?page=N&per_page=M -> {"users":[{"id","email",...}]}
//
// The API has no email filter, so FindUserByEmail pages through the listing.
type HTTPDirectory struct {
	BaseURL  string
	APIKey   string
	PerPage  int
	MaxPages int

	HTTPClient *http.Client
}

type adminUser struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata"`
}

type adminUsersResponse struct {
	Users []adminUser `json:"users"`
}

func NewHTTPDirectoryFromEnv() *HTTPDirectory {
	return &HTTPDirectory{
		BaseURL:  strings.TrimSpace(env.GetEnv("IDENTITY_API_URL", "")),
		APIKey:   strings.TrimSpace(env.GetEnv("IDENTITY_API_KEY", "")),
		PerPage:  defaultHTTPPerPage,
		MaxPages: envInt("IDENTITY_API_MAX_PAGES", defaultHTTPMaxPages),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

func (d *HTTPDirectory) FindUserByEmail(ctx context.Context, email string) (*User, error) {
	want := strings.ToLower(strings.TrimSpace(email))
	if want == "" {
		return nil, ErrNotFound
	}
	perPage := d.PerPage
	if perPage <= 0 {
		perPage = defaultHTTPPerPage
	}
	maxPages := d.MaxPages
	if maxPages <= 0 {
		maxPages = defaultHTTPMaxPages
	}

	for page := 1; page <= maxPages; page++ {
		users, listed, err := d.listPage(ctx, page, perPage)
		if err != nil {
			return nil, err
		}
		for i := range users {
			if strings.EqualFold(users[i].Email, want) {
				return &users[i], nil
			}
		}
		// a short page is the end of the listing, counted before filtering
		if listed < perPage {
			return nil, ErrNotFound
		}
	}
	return nil, fmt.Errorf("%w: %d pages of %d users", ErrScanLimit, maxPages, perPage)
}

func (d *HTTPDirectory) ListUsers(ctx context.Context, page, perPage int) ([]User, error) {
	users, _, err := d.listPage(ctx, page, perPage)
	return users, err
}

// listPage returns the usable users of one page and how many entries the API
// listed on it.
func (d *HTTPDirectory) listPage(ctx context.Context, page, perPage int) ([]User, int, error) {
	if strings.TrimSpace(d.BaseURL) == "" {
		return nil, 0, errors.New("IDENTITY_API_URL is not configured")
	}
	page, perPage = normalizePaging(page, perPage)

	u, err := url.Parse(strings.TrimRight(d.BaseURL, "/") + "/admin/users")
	if err != nil {
		return nil, 0, fmt.Errorf("invalid IDENTITY_API_URL: %w", err)
	}
	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", strconv.Itoa(perPage))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Accept", "application/json")
	if d.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+d.APIKey)
		req.Header.Set("apikey", d.APIKey)
	}

	client := d.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, 0, fmt.Errorf("identity directory read failed: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, 0, fmt.Errorf("identity directory request failed: status=%d body=%s", resp.StatusCode, truncateBody(body))
	}

	var raw adminUsersResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, 0, fmt.Errorf("identity directory response: %w", err)
	}

	out := make([]User, 0, len(raw.Users))
	for _, au := range raw.Users {
		id := strings.TrimSpace(au.ID)
		if id == "" {
			continue
		}
		name, _ := au.UserMetadata["full_name"].(string)
		if name == "" {
			name, _ = au.UserMetadata["name"].(string)
		}
		out = append(out, User{ID: id, Email: strings.ToLower(strings.TrimSpace(au.Email)), Name: name})
	}
	return out, len(raw.Users), nil
}

func envInt(key string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(env.GetEnv(key, "")))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func truncateBody(b []byte) string {
	const limit = 256
	if len(b) > limit {
		return string(b[:limit]) + "..."
	}
	return string(b)
}
