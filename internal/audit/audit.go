// Package audit formats the per-invocation audit block and appends stage
// output to the flat log files that make up a run's durable record.
package audit

import (
	"strconv"
	"strings"
	"time"

	"github.com/mtzanidakis/concilium/internal/agent"
)

// OmittedRequest stands in for the request text when the caller leaves it out.
const OmittedRequest = "See configuration file"

const timeLayout = "2006-01-02 15:04:05"

type Recorder struct {
	now func() time.Time
}

func NewRecorder() *Recorder {
	return &Recorder{now: time.Now}
}

// NewRecorderWithClock is used where the timestamp must be fixed.
func NewRecorderWithClock(now func() time.Time) *Recorder {
	return &Recorder{now: now}
}

// Format renders the audit block for the agent at zero-based index.
func (r *Recorder) Format(index int, request string, spec agent.Spec) string {
	var sb strings.Builder
	sb.WriteString("\\section{Audit trail} \n\n ")
	sb.WriteString("\\begin{itemize}")
	item(&sb, "Agent Number", strconv.Itoa(index+1))
	item(&sb, "Agent Name", spec.DisplayName)
	item(&sb, "Model Name", spec.ModelName)
	item(&sb, "Model Code", spec.ModelID)
	item(&sb, "Temperature", formatTemperature(spec.Temperature))
	item(&sb, "Date \\& Time", r.now().Local().Format(timeLayout))
	item(&sb, "Request", request)
	sb.WriteString("\n\\end{itemize} \n\n")
	sb.WriteString("%==============================  \n\n")
	return sb.String()
}

// formatTemperature keeps one decimal for whole numbers, so 1 renders as 1.0.
func formatTemperature(t float64) string {
	s := strconv.FormatFloat(t, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

func item(sb *strings.Builder, label, value string) {
	sb.WriteString("\n\\item \\textbf{")
	sb.WriteString(label)
	sb.WriteString("}: ")
	sb.WriteString(value)
}

// Entry joins a response and its audit block the way every stage log stores it.
func Entry(response, block string) string {
	return response + "\n\n" + block
}
