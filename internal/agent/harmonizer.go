package agent

// Harmonizer is the agent that merges every harmonized draft of a task into
// the final output. It is never a member of the main roster.
type Harmonizer struct {
	Agent
}

func NewHarmonizer(a Agent) *Harmonizer {
	return &Harmonizer{Agent: a}
}
