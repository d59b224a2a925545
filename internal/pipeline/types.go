package pipeline

import "time"

// Task is one unit of work drawn from configuration.
type Task struct {
	Request      string
	Instructions string
	OutputFile   string
}

// StageRecord is one logged respond call.
type StageRecord struct {
	Stage      Stage
	AgentIndex int
	Subject    int // critiqued agent in StageCritique, -1 elsewhere
	Response   string
	Timestamp  time.Time
}

// Result collects every stage's output for one task.
type Result struct {
	Task       Task
	Index      int
	Initial    []string
	Critiques  *CritiqueMatrix
	Refined    []string
	Harmonized []string
	Final      string
	Records    []StageRecord
}

// Count returns how many records a stage produced.
func (r *Result) Count(s Stage) int {
	n := 0
	for _, rec := range r.Records {
		if rec.Stage == s {
			n++
		}
	}
	return n
}
