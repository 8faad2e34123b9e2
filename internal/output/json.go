package output

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/neurender/neurender/internal/pipeline"
	"github.com/neurender/neurender/internal/storage"
	"github.com/neurender/neurender/internal/types"
)

// ListingOutput is the JSON form of a remote listing.
type ListingOutput struct {
	GeneratedAt string       `json:"generatedAt"`
	Config      ConfigInfo   `json:"config"`
	URL         string       `json:"url"`
	Objects     []ObjectInfo `json:"objects"`
}

// ConfigInfo holds configuration details for JSON output.
type ConfigInfo struct {
	Region   string `json:"region"`
	Endpoint string `json:"endpoint,omitempty"`
}

// ObjectInfo represents a remote object in JSON output.
type ObjectInfo struct {
	Key          string `json:"key"`
	Size         int64  `json:"size"`
	LastModified string `json:"lastModified,omitempty"`
	Directory    bool   `json:"directory,omitempty"`
}

// ReportOutput is the JSON form of a pipeline run.
type ReportOutput struct {
	Pipeline    string       `json:"pipeline"`
	WorkingPath string       `json:"workingPath"`
	Status      string       `json:"status"`
	Steps       []StepOutput `json:"steps"`
}

// StepOutput represents one step of a run in JSON output.
type StepOutput struct {
	Name       string `json:"name"`
	Kind       string `json:"kind"`
	State      string `json:"state"`
	Output     string `json:"output,omitempty"`
	DurationMS int64  `json:"durationMs"`
	Error      string `json:"error,omitempty"`
}

// PrintObjectsJSON formats and prints a remote listing as JSON to stdout.
func PrintObjectsJSON(remoteURL string, objects []storage.Object, cfg *types.Config) error {
	out := ListingOutput{
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Config:      buildConfigInfo(cfg),
		URL:         remoteURL,
		Objects:     buildObjects(objects),
	}
	return printJSON(out)
}

// PrintReportJSON formats and prints a pipeline run as JSON to stdout.
func PrintReportJSON(report *pipeline.Report) error {
	out := ReportOutput{
		Pipeline:    report.Pipeline,
		WorkingPath: report.WorkingPath,
		Status:      report.Status.String(),
		Steps:       make([]StepOutput, 0, len(report.Steps)),
	}
	for _, s := range report.Steps {
		step := StepOutput{
			Name:       s.Name,
			Kind:       s.Kind,
			State:      s.State.String(),
			Output:     s.Output,
			DurationMS: s.Duration.Milliseconds(),
		}
		if s.Err != nil {
			step.Error = s.Err.Error()
		}
		out.Steps = append(out.Steps, step)
	}
	return printJSON(out)
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}

	fmt.Println(string(data))
	return nil
}

// buildConfigInfo extracts config information for JSON output.
func buildConfigInfo(cfg *types.Config) ConfigInfo {
	if cfg == nil {
		return ConfigInfo{}
	}
	return ConfigInfo{
		Region:   cfg.Storage.S3.Region,
		Endpoint: cfg.Storage.S3.Endpoint,
	}
}

// buildObjects converts listing entries, never returning nil so the JSON
// array is always present.
func buildObjects(objects []storage.Object) []ObjectInfo {
	out := make([]ObjectInfo, 0, len(objects))
	for _, o := range objects {
		info := ObjectInfo{Key: o.Key, Size: o.Size, Directory: o.IsDirMarker}
		if !o.LastModified.IsZero() {
			info.LastModified = o.LastModified.UTC().Format(time.RFC3339)
		}
		out = append(out, info)
	}
	return out
}
