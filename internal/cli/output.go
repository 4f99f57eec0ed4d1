package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/viant/chemflow/runtime/execution"
)

// Output renders command results as a table or JSON
type Output struct {
	jsonMode bool
	w        io.Writer
	errW     io.Writer
}

// Print writes rows as a table, or jsonData in JSON mode
func (o *Output) Print(headers []string, rows [][]string, jsonData any) {
	if o.jsonMode {
		o.JSON(jsonData)
		return
	}
	o.Table(headers, rows)
}

// Table writes aligned columns
func (o *Output) Table(headers []string, rows [][]string) {
	tw := tabwriter.NewWriter(o.w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(headers, "\t"))
	dashes := make([]string, len(headers))
	for i, h := range headers {
		dashes[i] = strings.Repeat("-", len(h))
	}
	fmt.Fprintln(tw, strings.Join(dashes, "\t"))
	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	_ = tw.Flush()
}

// JSON writes v indented
func (o *Output) JSON(v any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

// Message writes an informational line to stderr
func (o *Output) Message(format string, args ...any) {
	fmt.Fprintf(o.errW, format+"\n", args...)
}

// Snapshot prints a run header followed by per-stage rows
func (o *Output) Snapshot(snapshot *execution.Snapshot) {
	if o.jsonMode {
		o.JSON(snapshot)
		return
	}
	p := snapshot.Progress
	fmt.Fprintf(o.w, "run %s (%s): %s  [%d/%d succeeded, %d active, %d failed]\n",
		snapshot.RunID, snapshot.Workflow, snapshot.State, p.Succeeded, p.Total, p.Active, p.Failed)
	rows := make([][]string, 0, len(snapshot.Stages))
	for _, stage := range snapshot.Stages {
		message := ""
		if stage.Error != nil {
			message = stage.Error.Message
		}
		rows = append(rows, []string{stage.Stage, stage.Engine, hostOf(stage.Host), string(stage.State), strconv.Itoa(stage.Attempts), message})
	}
	o.Table([]string{"STAGE", "ENGINE", "HOST", "STATE", "ATTEMPTS", "ERROR"}, rows)
}

// Snapshots prints one row per run
func (o *Output) Snapshots(snapshots []*execution.Snapshot) {
	rows := make([][]string, 0, len(snapshots))
	for _, s := range snapshots {
		rows = append(rows, []string{s.RunID, s.Workflow, string(s.State),
			fmt.Sprintf("%d/%d", s.Progress.Succeeded, s.Progress.Total), s.UpdatedAt.Format(time.RFC3339)})
	}
	o.Print([]string{"ID", "WORKFLOW", "STATE", "PROGRESS", "UPDATED"}, rows, snapshots)
}

func hostOf(host string) string {
	if host == "" {
		return "local"
	}
	return host
}

// NewOutput creates an output writing data to w and messages to errW
func NewOutput(jsonMode bool, w, errW io.Writer) *Output {
	return &Output{jsonMode: jsonMode, w: w, errW: errW}
}
