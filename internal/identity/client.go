package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"groupchat-service/internal/models"
)

// Resolver fetches display profiles from the identity provider.
type Resolver interface {
	BulkUsers(ctx context.Context, ids []int) ([]models.UserProfile, error)
}

// Client is an HTTP resolver against the identity provider's internal API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient constructs a Client. An empty base URL yields a noop resolver
// so the service stays usable without the provider (names render empty).
func NewClient(baseURL string) Resolver {
	if baseURL == "" {
		return noopResolver{}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 5 * time.Second},
	}
}

// BulkUsers resolves profiles for the given user ids in one call.
func (c *Client) BulkUsers(ctx context.Context, ids []int) ([]models.UserProfile, error) {
	if len(ids) == 0 {
		return []models.UserProfile{}, nil
	}

	idParams := make([]string, 0, len(ids))
	for _, id := range ids {
		idParams = append(idParams, strconv.Itoa(id))
	}
	endpoint := c.baseURL + "/internal/users?ids=" + url.QueryEscape(strings.Join(idParams, ","))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("identity provider returned status %d", resp.StatusCode)
	}

	var body struct {
		Users []models.UserProfile `json:"users"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}
	return body.Users, nil
}

type noopResolver struct{}

func (noopResolver) BulkUsers(ctx context.Context, ids []int) ([]models.UserProfile, error) {
	return []models.UserProfile{}, nil
}
