// Package catalog reads the application catalog (apps.toml) which declares
// the source repository of every packaged application.
package catalog

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/YunoHost/apps-tools/giturl"
)

// Entry represents an application of the catalog
type Entry struct {
	// Name is the last path segment of the URL, it is compared as is
	// against repository names on the forge
	Name string
	// URL is the git remote of the application source
	URL string
}

// app is the subset of an application table required to build an Entry
type app struct {
	URL string `toml:"url"`
}

// File is a catalog stored on the local disk
type File struct {
	Path string
}

// Entries reads the catalog file and returns its entries in file order.
func (f File) Entries() ([]Entry, error) {
	return Load(f.Path)
}

// Load reads the catalog at given path.
func Load(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read catalog err:%w", err)
	}
	return Parse(data)
}

// Parse decodes catalog data. Entries are returned in the order the apps are
// declared in the document.
func Parse(data []byte) ([]Entry, error) {
	var apps map[string]app

	meta, err := toml.Decode(string(data), &apps)
	if err != nil {
		return nil, fmt.Errorf("unable to decode catalog err:%w", err)
	}

	// every top level key is an app, whether it is declared as a table,
	// an inline table, through dotted keys or only via a sub table
	var ids []string
	seen := make(map[string]bool)
	for _, key := range meta.Keys() {
		if seen[key[0]] {
			continue
		}
		seen[key[0]] = true
		ids = append(ids, key[0])
	}

	var entries []Entry
	for _, id := range ids {
		if !meta.IsDefined(id, "url") {
			return nil, fmt.Errorf("app '%s' has no url", id)
		}

		url := apps[id].URL
		entries = append(entries, Entry{Name: giturl.Name(url), URL: url})
	}

	return entries, nil
}
