package pipeline

import (
	"encoding/json"
	"time"

	"github.com/mtzanidakis/concilium/internal/natsbus"
)

// Publisher receives progress events. *natsbus.Client satisfies it.
type Publisher interface {
	Publish(topic string, data []byte) error
}

func publishEvent(pub Publisher, runID, eventType string, data map[string]any) {
	if pub == nil {
		return
	}

	event := map[string]any{
		"type":      eventType,
		"run_id":    runID,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"data":      data,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	_ = pub.Publish(natsbus.TopicEventsRun(runID), payload)
}
