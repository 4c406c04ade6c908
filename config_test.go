package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func writeFile(t *testing.T, dir, name, data string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatalf("unable to write %s err:%v", name, err)
	}
	return path
}

func Test_parseConfigFile(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		want    *Config
		wantErr string
	}{
		{
			name: "full",
			data: `
apps_repo_root: /var/lib/apps
catalog_file: catalog/apps.toml
forge:
  url: https://forge.example.com
  owner: mirrors
  owner_id: 3
  token: forge-secret
  page_size: 50
  timeout: 10s
upstream:
  org_url: https://github.com/example/
  service: github
  token: github-secret
sync:
  cooldown: 1s
  rate_limit_backoff: 30s
  rate_limit_max_attempts: 10
`,
			want: &Config{
				AppsRepoRoot: "/var/lib/apps",
				CatalogFile:  "catalog/apps.toml",
				Forge: ForgeConfig{
					URL:      "https://forge.example.com",
					Owner:    "mirrors",
					OwnerID:  3,
					Token:    "forge-secret",
					PageSize: 50,
					Timeout:  10 * time.Second,
				},
				Upstream: UpstreamConfig{
					OrgURL:  "https://github.com/example/",
					Service: "github",
					Token:   "github-secret",
				},
				Sync: SyncConfig{
					Cooldown:             time.Second,
					RateLimitBackoff:     30 * time.Second,
					RateLimitMaxAttempts: 10,
				},
			},
		},
		{
			name: "partial",
			data: `
apps_repo_root: /var/lib/apps
forge:
  token: forge-secret
`,
			want: &Config{
				AppsRepoRoot: "/var/lib/apps",
				Forge:        ForgeConfig{Token: "forge-secret"},
			},
		},
		{
			name:    "unexpected_root_key",
			data:    "apps_root: /var/lib/apps\n",
			wantErr: "unexpected key: .apps_root",
		},
		{
			name:    "unexpected_forge_key",
			data:    "forge:\n  owner_name: foo\n",
			wantErr: "unexpected key: .forge.owner_name",
		},
		{
			name:    "unexpected_sync_key",
			data:    "sync:\n  interval: 1s\n",
			wantErr: "unexpected key: .sync.interval",
		},
		{
			name:    "invalid_section",
			data:    "upstream: github\n",
			wantErr: "upstream config section is not valid",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), "config.yaml", tt.data)

			got, err := parseConfigFile(path)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("parseConfigFile() error = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("parseConfigFile() mismatch (-want +got):\n%s", diff)
			}
		})
	}

	t.Run("missing_file", func(t *testing.T) {
		if _, err := parseConfigFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
			t.Errorf("expected error for missing file")
		}
	})
}

func Test_applyDefaults(t *testing.T) {
	conf := &Config{AppsRepoRoot: "/var/lib/apps", Forge: ForgeConfig{Owner: "mirrors"}}
	applyDefaults(conf)

	want := &Config{
		AppsRepoRoot: "/var/lib/apps",
		CatalogFile:  "apps.toml",
		Forge: ForgeConfig{
			URL:      "https://git.yunohost.org",
			Owner:    "mirrors",
			OwnerID:  17,
			PageSize: 100,
			Timeout:  60 * time.Second,
		},
		Upstream: UpstreamConfig{
			OrgURL:  "https://github.com/YunoHost-Apps/",
			Service: "github",
		},
		Sync: SyncConfig{
			Cooldown:         5 * time.Second,
			RateLimitBackoff: 60 * time.Second,
		},
	}
	if diff := cmp.Diff(want, conf); diff != "" {
		t.Errorf("applyDefaults() mismatch (-want +got):\n%s", diff)
	}
}

func TestConfig_validate(t *testing.T) {
	valid := func() *Config {
		conf := &Config{
			AppsRepoRoot: "/var/lib/apps",
			Forge:        ForgeConfig{Token: "forge-secret"},
			Upstream:     UpstreamConfig{Token: "github-secret"},
		}
		applyDefaults(conf)
		return conf
	}

	tests := []struct {
		name    string
		modify  func(c *Config)
		dryRun  bool
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false, false},
		{"no_apps_root", func(c *Config) { c.AppsRepoRoot = "" }, false, true},
		{"no_apps_root_absolute_catalog", func(c *Config) {
			c.AppsRepoRoot = ""
			c.CatalogFile = "/srv/apps/apps.toml"
		}, false, false},
		{"relative_forge_url", func(c *Config) { c.Forge.URL = "git.yunohost.org" }, false, true},
		{"negative_owner_id", func(c *Config) { c.Forge.OwnerID = -1 }, false, true},
		{"invalid_org_url", func(c *Config) { c.Upstream.OrgURL = "git@github.com:YunoHost-Apps" }, false, true},
		{"negative_cooldown", func(c *Config) { c.Sync.Cooldown = -time.Second }, false, true},
		{"negative_attempts", func(c *Config) { c.Sync.RateLimitMaxAttempts = -1 }, false, true},
		{"no_forge_token", func(c *Config) { c.Forge.Token = "" }, false, true},
		{"no_upstream_token", func(c *Config) { c.Upstream.Token = "" }, false, true},
		{"dry_run_without_tokens", func(c *Config) {
			c.Forge.Token = ""
			c.Upstream.Token = ""
		}, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conf := valid()
			tt.modify(conf)
			if err := conf.validate(tt.dryRun); (err != nil) != tt.wantErr {
				t.Errorf("validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_catalogPath(t *testing.T) {
	conf := &Config{AppsRepoRoot: "/var/lib/apps", CatalogFile: "apps.toml"}
	if got := conf.catalogPath(); got != "/var/lib/apps/apps.toml" {
		t.Errorf("unexpected catalog path %s", got)
	}

	conf.CatalogFile = "/etc/apps.toml"
	if got := conf.catalogPath(); got != "/etc/apps.toml" {
		t.Errorf("unexpected catalog path %s", got)
	}
}
