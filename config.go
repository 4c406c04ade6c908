package main

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/YunoHost/apps-tools/forge"
	"github.com/YunoHost/apps-tools/giturl"
	"github.com/YunoHost/apps-tools/reconcile"
)

const (
	defaultCatalogFile    = "apps.toml"
	defaultForgeURL       = "https://git.yunohost.org"
	defaultForgeOwner     = "YunoHost-Apps"
	defaultForgeOwnerID   = 17
	defaultUpstreamOrgURL = "https://github.com/YunoHost-Apps/"
	defaultService        = "github"
)

// Config is the configuration of the mirror synchronisation
type Config struct {
	// AppsRepoRoot is the path to the local checkout of the apps repository
	AppsRepoRoot string `yaml:"apps_repo_root"`

	// CatalogFile is the path of the catalog, relative to AppsRepoRoot
	// if not absolute
	CatalogFile string `yaml:"catalog_file"`

	Forge    ForgeConfig    `yaml:"forge"`
	Upstream UpstreamConfig `yaml:"upstream"`
	Sync     SyncConfig     `yaml:"sync"`
}

// ForgeConfig describes the forge hosting the mirrors
type ForgeConfig struct {
	// URL is the base url of the forge
	URL string `yaml:"url"`
	// Owner is the user or organization owning the mirrors
	Owner string `yaml:"owner"`
	// OwnerID is the numeric id of the Owner
	OwnerID int `yaml:"owner_id"`
	// Token is the forge access token
	Token string `yaml:"token"`
	// PageSize is the number of repositories requested per search page
	PageSize int `yaml:"page_size"`
	// Timeout of a single request
	Timeout time.Duration `yaml:"timeout"`
}

// UpstreamConfig describes the organization whose repositories are mirrored
type UpstreamConfig struct {
	// OrgURL is the base url of the organization, only apps
	// with url under it are mirrored
	OrgURL string `yaml:"org_url"`
	// Service is the forge type of the upstream
	Service string `yaml:"service"`
	// Token is given to the forge to pull from the upstream
	Token string `yaml:"token"`
}

// SyncConfig controls the pace of the synchronisation
type SyncConfig struct {
	// Cooldown is the time to wait between two mirror creations
	Cooldown time.Duration `yaml:"cooldown"`
	// RateLimitBackoff is the time to wait before retrying rate limited request
	RateLimitBackoff time.Duration `yaml:"rate_limit_backoff"`
	// RateLimitMaxAttempts limits attempts of rate limited request, 0 is unlimited
	RateLimitMaxAttempts int `yaml:"rate_limit_max_attempts"`
}

func parseConfigFile(path string) (*Config, error) {
	yamlFile, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	err = validateConfigKeys(yamlFile)
	if err != nil {
		return nil, err
	}

	conf := &Config{}
	err = yaml.Unmarshal(yamlFile, conf)
	if err != nil {
		return nil, err
	}

	return conf, nil
}

// validateConfigKeys checks config sections for unexpected keys
func validateConfigKeys(yamlData []byte) error {
	var raw map[string]interface{}
	if err := yaml.Unmarshal(yamlData, &raw); err != nil {
		return err
	}

	if key := findUnexpectedKey(raw, getAllowedKeys(Config{})); key != "" {
		return fmt.Errorf("unexpected key: .%v", key)
	}

	sections := map[string]interface{}{
		"forge":    ForgeConfig{},
		"upstream": UpstreamConfig{},
		"sync":     SyncConfig{},
	}
	for name, section := range sections {
		value, ok := raw[name]
		if !ok || value == nil {
			continue
		}
		sectionMap, ok := value.(map[string]interface{})
		if !ok {
			return fmt.Errorf("%s config section is not valid", name)
		}
		if key := findUnexpectedKey(sectionMap, getAllowedKeys(section)); key != "" {
			return fmt.Errorf("unexpected key: .%s.%v", name, key)
		}
	}

	return nil
}

// getAllowedKeys retrieves a list of allowed keys from the specified struct
func getAllowedKeys(config interface{}) []string {
	var allowedKeys []string
	val := reflect.ValueOf(config)
	typ := reflect.TypeOf(config)

	for i := 0; i < val.NumField(); i++ {
		field := typ.Field(i)
		yamlTag := field.Tag.Get("yaml")
		if yamlTag != "" {
			allowedKeys = append(allowedKeys, yamlTag)
		}
	}
	return allowedKeys
}

func findUnexpectedKey(raw map[string]interface{}, allowedKeys []string) string {
	for key := range raw {
		if !slices.Contains(allowedKeys, key) {
			return key
		}
	}

	return ""
}

func applyDefaults(conf *Config) {
	if conf.CatalogFile == "" {
		conf.CatalogFile = defaultCatalogFile
	}

	if conf.Forge.URL == "" {
		conf.Forge.URL = defaultForgeURL
	}

	if conf.Forge.Owner == "" {
		conf.Forge.Owner = defaultForgeOwner
	}

	if conf.Forge.OwnerID == 0 {
		conf.Forge.OwnerID = defaultForgeOwnerID
	}

	if conf.Forge.PageSize == 0 {
		conf.Forge.PageSize = forge.DefaultPageSize
	}

	if conf.Forge.Timeout == 0 {
		conf.Forge.Timeout = forge.DefaultTimeout
	}

	if conf.Upstream.OrgURL == "" {
		conf.Upstream.OrgURL = defaultUpstreamOrgURL
	}

	if conf.Upstream.Service == "" {
		conf.Upstream.Service = defaultService
	}

	if conf.Sync.Cooldown == 0 {
		conf.Sync.Cooldown = reconcile.DefaultCooldown
	}

	if conf.Sync.RateLimitBackoff == 0 {
		conf.Sync.RateLimitBackoff = forge.DefaultBackoff
	}
}

// validate verifies config with defaults applied. tokens are only
// required if forge will be modified.
func (conf *Config) validate(dryRun bool) error {
	var errs []error

	if conf.AppsRepoRoot == "" && !filepath.IsAbs(conf.CatalogFile) {
		errs = append(errs, fmt.Errorf("apps_repo_root is required when catalog_file is relative"))
	}

	if u, err := url.Parse(conf.Forge.URL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("forge url '%s' is invalid", conf.Forge.URL))
	}

	if conf.Forge.OwnerID < 0 {
		errs = append(errs, fmt.Errorf("forge owner_id '%d' is invalid", conf.Forge.OwnerID))
	}

	if conf.Forge.PageSize < 0 {
		errs = append(errs, fmt.Errorf("forge page_size '%d' is invalid", conf.Forge.PageSize))
	}

	if conf.Forge.Timeout < 0 {
		errs = append(errs, fmt.Errorf("forge timeout cannot be negative"))
	}

	if _, err := giturl.ParseOrgURL(conf.Upstream.OrgURL); err != nil {
		errs = append(errs, err)
	}

	if conf.Sync.Cooldown < 0 || conf.Sync.RateLimitBackoff < 0 {
		errs = append(errs, fmt.Errorf("sync durations cannot be negative"))
	}

	if conf.Sync.RateLimitMaxAttempts < 0 {
		errs = append(errs, fmt.Errorf("rate_limit_max_attempts cannot be negative"))
	}

	if !dryRun {
		if conf.Forge.Token == "" {
			errs = append(errs, fmt.Errorf("forge token is required"))
		}
		if conf.Upstream.Token == "" {
			errs = append(errs, fmt.Errorf("upstream token is required"))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", errs)
	}

	return nil
}

// catalogPath returns path of the catalog file
func (conf *Config) catalogPath() string {
	if filepath.IsAbs(conf.CatalogFile) {
		return conf.CatalogFile
	}
	return filepath.Join(conf.AppsRepoRoot, conf.CatalogFile)
}
