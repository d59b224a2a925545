package natsbus

import "fmt"

// TopicEventsRun carries every progress event of one pipeline run.
func TopicEventsRun(runID string) string {
	return fmt.Sprintf("events.run.%s", runID)
}

const TopicEventsRuns = "events.run.*"
