package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/taskctl/taskctl/internal/domain"
	"github.com/taskctl/taskctl/internal/id"
)

// printJSON renders v as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// newTable returns a tabwriter configured for aligned CLI tables.
func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}

// renderPlans prints a plan table.
func renderPlans(w io.Writer, plans []*domain.Plan) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tTITLE\tSTATUS\tCREATED")
	for _, p := range plans {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			id.Short(p.ID), p.Title, p.Status, p.CreatedAt.Format(time.DateOnly))
	}
	return tw.Flush()
}

// renderTasks prints a task table.
func renderTasks(w io.Writer, tasks []*domain.Task) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tLVL\tTITLE\tSTATUS\tBRANCH")
	for _, t := range tasks {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\n",
			id.Short(t.ID), t.Level, t.Title, t.Status, t.BranchName)
	}
	return tw.Flush()
}

// renderSlots prints a slot table.
func renderSlots(w io.Writer, slots []*domain.Slot) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tNAME\tSTATUS\tTASK\tPATH")
	for _, s := range slots {
		taskRef := "-"
		if s.TaskID != "" {
			taskRef = id.Short(s.TaskID)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			id.Short(s.ID), s.Name, s.Status, taskRef, s.Path)
	}
	return tw.Flush()
}

// renderProgress prints the progress tuple on one line.
func renderProgress(w io.Writer, p domain.Progress) {
	fmt.Fprintf(w, "Progress: %d/%d completed, %d in progress, %d pending (%.0f%%)\n",
		p.Completed, p.Total, p.InProgress, p.Pending, p.Percent)
}
