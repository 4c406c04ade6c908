package reconcile

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
)

// WritePlan renders mirrors which would be created and orphaned mirrors as a table.
func WritePlan(w io.Writer, plan *Plan) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Repository", "Source", "Action"})
	table.SetAutoWrapText(false)

	for _, entry := range plan.Missing {
		table.Append([]string{entry.Name, entry.URL, "create"})
	}
	for _, name := range plan.Orphaned {
		table.Append([]string{name, "", "orphaned"})
	}

	table.Render()

	fmt.Fprintf(w, "%d to create, %d already mirrored, %d outside organization, %d orphaned\n",
		len(plan.Missing), len(plan.Present), len(plan.OutOfOrg), len(plan.Orphaned))
}
