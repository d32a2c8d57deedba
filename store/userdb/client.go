/*
Package userdb is the client for the path-addressed user tree.

PURPOSE:
  The user store is a schemaless JSON tree reached by path. This engine
  needs exactly two operations from it:
  - read the full /users subtree once per run (the snapshot)
  - patch a named field under one user (the repair path's profile backfill)

SNAPSHOT SEMANTICS:
  One GET at job start; no live subscription within a run. The decoded
  snapshot is read-only and safe to share across concurrent dispatch tasks.

DEFECT HANDLING:
  Individual records that fail to decode are counted and skipped, never
  fatal: a corrupt record in the tree must not take down the whole fleet's
  reminders.

SEE ALSO:
  - record: the typed view the snapshot decodes into
  - job: consumes Snapshot once per pass
*/
package userdb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/hybridhq/reminder-engine/record"
)

// Client reads and patches the user tree over its REST surface.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Snapshot is one full read of the users collection.
type Snapshot struct {
	Users   []*record.UserRecord
	Defects int // records present in the tree but undecodable
}

// FetchAll reads the entire users collection. Records are returned in
// stable id order so run logs are diffable.
func (c *Client) FetchAll(ctx context.Context) (*Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/users.json", nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch users: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("user store returned status %d: %s", resp.StatusCode, string(raw))
	}

	// Decode the tree in two stages: the outer map always decodes, each
	// record is attempted individually so one corrupt blob is a counted
	// defect instead of a failed snapshot.
	var tree map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&tree); err != nil {
		return nil, fmt.Errorf("decode user tree: %w", err)
	}

	snap := &Snapshot{}
	for id, raw := range tree {
		var u record.UserRecord
		if err := json.Unmarshal(raw, &u); err != nil {
			snap.Defects++
			continue
		}
		u.ID = id
		snap.Users = append(snap.Users, &u)
	}

	sort.Slice(snap.Users, func(i, j int) bool { return snap.Users[i].ID < snap.Users[j].ID })
	return snap, nil
}

// PatchProfile writes the profile section of one user. Scoped field write:
// nothing else on the record is touched. This is the repair path's only
// mutation.
func (c *Client) PatchProfile(ctx context.Context, id string, profile *record.Profile) error {
	body, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}

	url := fmt.Sprintf("%s/users/%s/userData.json", c.baseURL, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("patch profile: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("user store returned status %d: %s", resp.StatusCode, string(raw))
	}
	return nil
}

// DefaultProfile is the repair payload for records missing their profile
// section: safe defaults that keep the user on the manual flow until they
// reconfigure in the app.
func DefaultProfile() *record.Profile {
	return &record.Profile{
		TrackingMode:         record.TrackingManual,
		TargetMode:           record.TargetPercentage,
		MonthlyTarget:        record.DefaultMonthlyTarget,
		NotificationsEnabled: true,
	}
}
