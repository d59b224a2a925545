package pipeline

import (
	"fmt"
	"strings"
)

const (
	critiqueHeader   = "Another LLM responded to the same question as follows. Find the flaws:\n\n"
	refineHeader     = "Other agents criticized your response as follows. Validate criticism and refine as needed:\n\n"
	harmonizeHeader  = "The following are refined responses from different agents. Harmonize these responses to produce a single unified version of the task:\n\n"
	synthesisHeader  = "The following are harmonized responses from different agents. Produce a single unified and improved version:\n\n"
	criticismLabel   = "Criticism from another agent:\n"
	refinedLabel     = "Refined response from another agent:\n"
	entrySeparator   = "\n\n"
	harmonizedFormat = "Harmonized response from agent %d:\n%s"
)

func initialPrompt(t Task) string {
	return t.Instructions + "\n\n" + t.Request
}

func critiquePrompt(other string) string {
	return critiqueHeader + other
}

func refinePrompt(critiques []string) string {
	return refineHeader + labeled(criticismLabel, critiques)
}

func harmonizePrompt(refined []string) string {
	return harmonizeHeader + labeled(refinedLabel, refined)
}

func synthesisPrompt(harmonized []string) string {
	parts := make([]string, len(harmonized))
	for i, h := range harmonized {
		parts[i] = fmt.Sprintf(harmonizedFormat, i+1, h)
	}
	return synthesisHeader + strings.Join(parts, entrySeparator)
}

func labeled(label string, texts []string) string {
	parts := make([]string, len(texts))
	for i, t := range texts {
		parts[i] = label + t
	}
	return strings.Join(parts, entrySeparator)
}
