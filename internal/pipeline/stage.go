package pipeline

// Stage is one step of the deliberation state machine. Stages run strictly
// in declaration order and are never re-entered.
type Stage int

const (
	StageInitial Stage = iota
	StageCritique
	StageRefine
	StageHarmonize
	StageSynthesis
	StageDone
)

func (s Stage) String() string {
	names := [...]string{
		"initial_response",
		"pairwise_critique",
		"refinement",
		"harmonization",
		"final_synthesis",
		"done",
	}
	if s >= 0 && int(s) < len(names) {
		return names[s]
	}
	return "unknown"
}

// LogPrefix is prepended to the task's file name to form the stage log.
// The final synthesis writes to the bare file name.
func (s Stage) LogPrefix() string {
	switch s {
	case StageInitial:
		return "log_responses_"
	case StageCritique:
		return "log_critiques_"
	case StageRefine:
		return "log_refined_"
	case StageHarmonize:
		return "log_harmonized_"
	default:
		return ""
	}
}

// Next returns the following stage; StageDone is terminal.
func (s Stage) Next() Stage {
	if s >= StageDone {
		return StageDone
	}
	return s + 1
}
