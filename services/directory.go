// dance-battle-system/services/directory.go
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"dance-battle-system/utils"
)

// Role strings as the profile service reports them.
const (
	RoleBattler = "battler"
	RoleJudge   = "judge"
	RoleAdmin   = "admin"
)

// Caller is the identity the gateway resolved for the current request.
type Caller struct {
	Handle string
	Roles  []string
}

func (c Caller) Anonymous() bool { return c.Handle == "" }

func (c Caller) HasRole(role string) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

func (c Caller) IsBattler() bool { return c.HasRole(RoleBattler) }
func (c Caller) IsJudge() bool   { return c.HasRole(RoleJudge) }
func (c Caller) IsAdmin() bool   { return c.HasRole(RoleAdmin) }

// UserInfo is the directory's answer for a handle lookup.
type UserInfo struct {
	Exists bool     `json:"exists"`
	Roles  []string `json:"roles"`
}

func (u UserInfo) hasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

func (u UserInfo) IsBattler() bool { return u.Exists && u.hasRole(RoleBattler) }
func (u UserInfo) IsJudge() bool   { return u.Exists && u.hasRole(RoleJudge) }

// UserDirectory resolves handles to existence and role flags. The profile
// service owns the user records; this service never stores users.
type UserDirectory interface {
	Lookup(ctx context.Context, handle string) (UserInfo, error)
}

// DirectoryClient calls the profile service over the internal network.
type DirectoryClient struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

func NewDirectoryClient(baseURL, token string) *DirectoryClient {
	return &DirectoryClient{
		BaseURL: baseURL,
		Token:   token,
		Client:  utils.HTTPClient,
	}
}

// Lookup calls /profiles/{handle} on the profile service. A 404 is not an
// error, it just means the handle doesn't exist.
func (c *DirectoryClient) Lookup(ctx context.Context, handle string) (UserInfo, error) {
	url := fmt.Sprintf("%s/api/v1/public/profiles/%s", c.BaseURL, handle)

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return UserInfo{}, err
	}
	req.Header.Set("X-Service-Token", c.Token)

	resp, err := c.Client.Do(req)
	if err != nil {
		utils.Error("profile service unreachable", "handle", handle, "err", err)
		return UserInfo{}, ErrRepositoryUnavailable
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return UserInfo{Exists: false}, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		utils.Error("profile service error", "status", resp.StatusCode, "body", string(body))
		return UserInfo{}, fmt.Errorf("profile service returned %d", resp.StatusCode)
	}

	var out struct {
		Roles []string `json:"roles"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return UserInfo{}, err
	}
	return UserInfo{Exists: true, Roles: out.Roles}, nil
}
