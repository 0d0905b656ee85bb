package tools

import (
	"encoding/json"
	"fmt"
	"strings"

	"axiom/engine/internal/errinfo"
)

// ArtifactTypeField is the reserved discriminator editors use to recognise a
// UI artifact in a chat response.
const ArtifactTypeField = "__axiom_type__"

const (
	ArtifactDiff = "diff"
)

type Status string

const (
	StatusOK    Status = "ok"
	StatusError Status = "error"
)

// NoOutput stands in for a provider that returned nothing, so the model never
// sees an empty tool message.
const NoOutput = "(no output)"

// Output is what a provider returns: either Text for the model to read or an
// Artifact for the editor to display.
type Output interface {
	isOutput()
}

type Text string

func (Text) isOutput() {}

// Artifact is a structured payload meant for direct display. Summary is the
// short line the conversation keeps in its place.
type Artifact struct {
	Kind    string
	Summary string
	Payload map[string]any
}

func (Artifact) isOutput() {}

func (a Artifact) SummaryText() string {
	if a.Summary != "" {
		return a.Summary
	}
	kind := a.Kind
	if kind == "" {
		kind = "artifact"
	}
	return fmt.Sprintf("%s%s generated and displayed to user.", strings.ToUpper(kind[:1]), kind[1:])
}

func (a Artifact) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(a.Payload)+1)
	for k, v := range a.Payload {
		out[k] = v
	}
	out[ArtifactTypeField] = a.Kind
	return json.Marshal(out)
}

// Result is the outcome of one dispatch. Output is always set, on failure it
// carries the error text the model gets to see.
type Result struct {
	Status   Status             `json:"status"`
	Output   string             `json:"output"`
	Artifact *Artifact          `json:"artifact,omitempty"`
	Error    *errinfo.ErrorInfo `json:"error,omitempty"`
}

func (r Result) OK() bool {
	return r.Status == StatusOK
}

func errorResult(output string, info *errinfo.ErrorInfo) Result {
	return Result{Status: StatusError, Output: output, Error: info}
}
