package model

// Envelope is the uniform body returned to clients and posted to webhooks.
type Envelope struct {
	Endpoint       string   `json:"endpoint"`
	Code           int      `json:"code"`
	ID             *string  `json:"id"`
	UserID         string   `json:"user_id,omitempty"`
	JobID          string   `json:"job_id"`
	Response       any      `json:"response,omitempty"`
	Message        string   `json:"message"`
	PID            int      `json:"pid"`
	QueueID        string   `json:"queue_id"`
	RunTime        *float64 `json:"run_time,omitempty"`
	QueueTime      *float64 `json:"queue_time,omitempty"`
	TotalTime      *float64 `json:"total_time,omitempty"`
	QueueLength    int      `json:"queue_length"`
	MaxQueueLength any      `json:"max_queue_length,omitempty"`
	BuildNumber    string   `json:"build_number"`
}

// Envelope messages
const (
	MessageSuccess    = "success"
	MessageProcessing = "processing"
	MaxQueueUnlimited = "unlimited"
)
