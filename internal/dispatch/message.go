// Package dispatch carries job ids from the intake process to worker
// processes over NATS or RabbitMQ.
//
// Delivery is at most once: a consumer acknowledges a message as soon as the
// job id has been queued locally, so a job is never run twice. A job whose
// message is lost stays PENDING until the reaper closes it out.
package dispatch

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Message is the wire form of a dispatched job.
type Message struct {
	JobID int64 `json:"jobId"`
}

func Encode(id int64) ([]byte, error) {
	if id <= 0 {
		return nil, fmt.Errorf("invalid job id %d", id)
	}
	return json.Marshal(Message{JobID: id})
}

func Decode(data []byte) (int64, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return 0, fmt.Errorf("decode dispatch message: %w", err)
	}
	if m.JobID <= 0 {
		return 0, errors.New("decode dispatch message: missing jobId")
	}
	return m.JobID, nil
}
