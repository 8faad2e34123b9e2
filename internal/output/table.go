package output

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/neurender/neurender/internal/pipeline"
	"github.com/neurender/neurender/internal/storage"
	"github.com/neurender/neurender/internal/syncer"
	"github.com/olekukonko/tablewriter"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var numbers = message.NewPrinter(language.English)

// PrintObjects formats and prints a remote listing as an ASCII table.
func PrintObjects(remoteURL string, objects []storage.Object) {
	if len(objects) == 0 {
		fmt.Printf("No objects found under %s.\n", remoteURL)
		return
	}

	fmt.Println("Objects in " + remoteURL)
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Key", "Size", "Last Modified")

	var total int64
	for _, o := range objects {
		size := formatBytes(o.Size)
		if o.IsDirMarker {
			size = "dir"
		}
		table.Append(o.Key, size, formatTime(o.LastModified))
		total += o.Size
	}

	table.Render()
	fmt.Println(numbers.Sprintf("%d objects, %s", len(objects), formatBytes(total)))
}

// PrintPipelines lists the project's pipelines and their steps.
func PrintPipelines(project *pipeline.Project) {
	if len(project.Pipelines) == 0 {
		fmt.Println("No pipelines found.")
		return
	}

	fmt.Println("Pipelines in " + project.Path)
	for _, p := range project.Pipelines {
		fmt.Printf("\n%s (%s)\n", p.Name, p.File)
		table := tablewriter.NewWriter(os.Stdout)
		table.Header("#", "Step", "Kind")
		for i, step := range p.Steps {
			table.Append(strconv.Itoa(i+1), step.Name(), step.Kind())
		}
		table.Render()
	}
}

// PrintPipeline prints a planned run: each step with its output and whether
// the next run would skip it.
func PrintPipeline(plan *pipeline.Report) {
	fmt.Printf("Pipeline %s\n", plan.Pipeline)
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("#", "Step", "Kind", "Output", "Next Run")

	for _, s := range plan.Steps {
		output, action := s.Output, "run"
		if output == "" {
			output = "-"
		}
		if s.State == pipeline.StepSkipped {
			action = "skip"
		}
		table.Append(strconv.Itoa(s.Index+1), s.Name, s.Kind, output, action)
	}

	table.Render()
}

// PrintSyncResult prints the counters of one sync pass.
func PrintSyncResult(direction syncer.Direction, r *syncer.Result) {
	fmt.Printf("Sync (%s)\n", direction)
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Transferred", "Skipped", "Failed", "Directories", "Bytes")
	table.Append(
		formatCount(r.Transferred),
		formatCount(r.Skipped),
		formatCount(r.Failed),
		formatCount(r.Directories),
		formatBytes(r.Bytes),
	)
	table.Render()
}

// PrintReport prints the per-step outcome of a pipeline run.
func PrintReport(report *pipeline.Report) {
	fmt.Printf("Pipeline %s: %s\n", report.Pipeline, report.Status)
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("#", "Step", "Kind", "State", "Duration")

	for _, s := range report.Steps {
		duration := "-"
		if s.State == pipeline.StepCompleted || s.State == pipeline.StepFailed {
			duration = s.Duration.Round(time.Millisecond).String()
		}
		table.Append(strconv.Itoa(s.Index+1), s.Name, s.Kind, s.State.String(), duration)
	}

	table.Render()
	fmt.Println("Output: " + report.WorkingPath)
}

// formatCount formats a count for display, using "-" for zero values.
func formatCount(count int) string {
	if count == 0 {
		return "-"
	}
	return numbers.Sprintf("%d", count)
}

// formatBytes renders a byte count with a binary unit.
func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return numbers.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return numbers.Sprintf("%.1f", float64(n)/float64(div)) + " " + string("KMGTPE"[exp]) + "iB"
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}
