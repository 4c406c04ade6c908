package forge

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// Repository is the subset of the forge repository used by this package
type Repository struct {
	Name string `json:"name"`
}

type searchResults struct {
	Data []Repository `json:"data"`
}

// MigrateRepoOptions is the payload of the migrate endpoint.
type MigrateRepoOptions struct {
	// CloneAddr is the git remote of the source repository
	CloneAddr string `json:"clone_addr"`
	// AuthToken is the token used by the forge to fetch the source
	AuthToken string `json:"auth_token"`
	// Mirror creates a pull mirror instead of a one time copy
	Mirror    bool   `json:"mirror"`
	RepoName  string `json:"repo_name"`
	RepoOwner string `json:"repo_owner"`
	// Service is the type of the source e.g. 'github'
	Service string `json:"service"`
}

// EditRepoOptions is the payload of the edit repository endpoint.
// only non nil fields are updated.
type EditRepoOptions struct {
	HasPackages *bool `json:"has_packages,omitempty"`
	HasProjects *bool `json:"has_projects,omitempty"`
	HasReleases *bool `json:"has_releases,omitempty"`
	HasWiki     *bool `json:"has_wiki,omitempty"`
}

// DisabledFeatures returns EditRepoOptions which turns off packages,
// projects, releases and wiki of the repository
func DisabledFeatures() EditRepoOptions {
	off := false
	return EditRepoOptions{
		HasPackages: &off,
		HasProjects: &off,
		HasReleases: &off,
		HasWiki:     &off,
	}
}

// ListMirrors returns names of all mirror repositories on the forge.
// Search is paginated, pages are requested until an empty page is returned.
func (c *Client) ListMirrors(ctx context.Context) ([]string, error) {
	var names []string

	for page := 1; ; page++ {
		query := url.Values{}
		query.Set("topic", "false")
		query.Set("includeDesc", "false")
		query.Set("priority_owner_id", strconv.Itoa(c.ownerID))
		query.Set("mode", "mirror")
		query.Set("page", strconv.Itoa(page))
		query.Set("limit", strconv.Itoa(c.pageSize))

		resp, err := c.Perform(ctx, http.MethodGet, "api/v1/repos/search", RequestOptions{Query: query})
		if err != nil {
			return nil, err
		}

		if resp.StatusCode != http.StatusOK {
			return nil, &StatusError{Op: "search mirrors", StatusCode: resp.StatusCode, Body: string(resp.Body)}
		}

		var results searchResults
		if err := json.Unmarshal(resp.Body, &results); err != nil {
			return nil, fmt.Errorf("unable to decode search results page:%d err:%w", page, err)
		}

		// once the data list is empty all available pages are consumed
		if len(results.Data) == 0 {
			break
		}

		for _, repo := range results.Data {
			names = append(names, repo.Name)
		}
	}

	c.log.Debug("existing mirrors listed", "count", len(names))

	return names, nil
}

// CreateMirror asks forge to migrate the source repository as a pull mirror.
// ErrAlreadyExists is returned if repository with same name exists.
func (c *Client) CreateMirror(ctx context.Context, opts MigrateRepoOptions) error {
	resp, err := c.Perform(ctx, http.MethodPost, "api/v1/repos/migrate", RequestOptions{Body: opts})
	if err != nil {
		return err
	}

	switch resp.StatusCode {
	case http.StatusCreated:
		return nil
	case http.StatusConflict:
		return fmt.Errorf("%s/%s: %w", opts.RepoOwner, opts.RepoName, ErrAlreadyExists)
	default:
		return &StatusError{Op: "create mirror " + opts.RepoName, StatusCode: resp.StatusCode, Body: string(resp.Body)}
	}
}

// EditRepo updates settings of the given repository.
func (c *Client) EditRepo(ctx context.Context, owner, repo string, opts EditRepoOptions) error {
	// path segments are escaped so names with '%' or '/' cannot change the target
	path := "api/v1/repos/" + url.PathEscape(owner) + "/" + url.PathEscape(repo)

	resp, err := c.Perform(ctx, http.MethodPatch, path, RequestOptions{Body: opts})
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		return &StatusError{Op: "edit repository " + repo, StatusCode: resp.StatusCode, Body: string(resp.Body)}
	}

	return nil
}
