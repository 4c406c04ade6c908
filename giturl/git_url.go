// Package giturl provides helpers around the git remote URLs found in the
// application catalog.
package giturl

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	// The organization name can contain
	// ASCII letters, digits, and the characters ., -, and _.

	// https://host.xz[:port]/org[/]
	httpsOrgURLRgx = regexp.MustCompile(`^https://(?P<host>([\w\-]+\.?[\w\-]+)+(\:\d+)?)/(?P<org>[\w\-\.]+)/?$`)
)

// OrgURL represents the base URL of an upstream organization
type OrgURL struct {
	Host string // host or host:port
	Org  string // organization (owner) name
}

// ParseOrgURL parses the base URL of an upstream organization.
// valid org urls are...
//   - https://host.xz[:port]/org
//   - https://host.xz[:port]/org/
func ParseOrgURL(rawURL string) (*OrgURL, error) {
	rawURL = strings.TrimSpace(rawURL)

	sections := httpsOrgURLRgx.FindStringSubmatch(rawURL)
	if sections == nil {
		return nil, fmt.Errorf(
			"provided '%s' organization url is invalid, supported url is 'https://host.xz/org/'",
			rawURL)
	}

	return &OrgURL{
		Host: sections[httpsOrgURLRgx.SubexpIndex("host")],
		Org:  sections[httpsOrgURLRgx.SubexpIndex("org")],
	}, nil
}

// String returns base URL of the organization, always with trailing "/"
// so that it can't match another org sharing the same name prefix.
func (o *OrgURL) String() string {
	return "https://" + o.Host + "/" + o.Org + "/"
}

// Contains returns true if given remote URL is located under the organization.
// comparison is done on the raw string, remote URL is not normalised.
func (o *OrgURL) Contains(rawURL string) bool {
	return strings.HasPrefix(rawURL, o.String())
}

// Name returns last path segment of the given remote URL. It is used as the
// repository name on the forge hence case and special chars are kept as is.
func Name(rawURL string) string {
	return rawURL[strings.LastIndex(rawURL, "/")+1:]
}
