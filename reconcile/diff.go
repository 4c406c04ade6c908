package reconcile

import (
	"github.com/YunoHost/apps-tools/catalog"
	"github.com/YunoHost/apps-tools/giturl"
)

// Plan is the result of comparing catalog with existing mirrors
type Plan struct {
	// Missing are catalog entries of the organization without mirror
	Missing []catalog.Entry
	// Present are names of catalog entries of the organization already mirrored
	Present []string
	// OutOfOrg are catalog entries which are not hosted in the organization
	OutOfOrg []catalog.Entry
	// Orphaned are names of mirrors not matching any catalog entry of the organization
	Orphaned []string
}

// Diff will do the diff between catalog entries and names of existing mirrors.
// Entries are matched with mirrors by name only, name is compared as is.
func Diff(entries []catalog.Entry, mirrors []string, org *giturl.OrgURL) *Plan {
	plan := &Plan{}

	existing := make(map[string]bool, len(mirrors))
	for _, name := range mirrors {
		existing[name] = true
	}

	desired := make(map[string]bool)
	for _, entry := range entries {
		// do not care about repos that are not in the upstream org
		if !org.Contains(entry.URL) {
			plan.OutOfOrg = append(plan.OutOfOrg, entry)
			continue
		}
		desired[entry.Name] = true

		if existing[entry.Name] {
			plan.Present = append(plan.Present, entry.Name)
			continue
		}
		plan.Missing = append(plan.Missing, entry)
	}

	for _, name := range mirrors {
		if desired[name] {
			continue
		}
		// same name can be listed more than once if mirrors of other owners are returned
		desired[name] = true
		plan.Orphaned = append(plan.Orphaned, name)
	}

	return plan
}
