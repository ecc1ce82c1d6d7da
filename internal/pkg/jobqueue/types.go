package jobqueue

import (
	"encoding/json"
	"time"
)

// JobType defines the type of job
type JobType string

const (
	JobTypeFulfillment JobType = "fulfillment"
)

// JobStatus defines the status of a job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusRetrying   JobStatus = "retrying"
)

// Job represents a background job
type Job struct {
	ID          string                 `json:"id"`
	Type        JobType                `json:"type"`
	Status      JobStatus              `json:"status"`
	Payload     map[string]interface{} `json:"payload"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
	ProcessedAt *time.Time             `json:"processed_at,omitempty"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	ErrorMsg    string                 `json:"error_msg,omitempty"`
	RetryCount  int                    `json:"retry_count"`
	MaxRetries  int                    `json:"max_retries"`
}

// FulfillmentJobPayload carries one captured payment through the queue to the
// fulfillment worker. EventID is the reserved idempotency ledger entry; zero
// when the ledger was unreachable at acknowledgment time.
type FulfillmentJobPayload struct {
	EventID   uint              `json:"event_id"`
	PaymentID string            `json:"payment_id"`
	OrderID   string            `json:"order_id"`
	Amount    float64           `json:"amount"`
	Notes     map[string]string `json:"notes"`
}

// ToMap converts the payload to a map for storage
func (p FulfillmentJobPayload) ToMap() map[string]interface{} {
	notes := make(map[string]interface{}, len(p.Notes))
	for k, v := range p.Notes {
		notes[k] = v
	}
	return map[string]interface{}{
		"event_id":   p.EventID,
		"payment_id": p.PaymentID,
		"order_id":   p.OrderID,
		"amount":     p.Amount,
		"notes":      notes,
	}
}

// FulfillmentJobPayloadFromMap creates a payload from a map
func FulfillmentJobPayloadFromMap(data map[string]interface{}) (*FulfillmentJobPayload, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	var payload FulfillmentJobPayload
	err = json.Unmarshal(jsonData, &payload)
	return &payload, err
}

// IsRetryable checks whether the job has retry attempts left
func (j *Job) IsRetryable() bool {
	return j.RetryCount < j.MaxRetries
}

// MarkAsProcessing updates the job status to processing
func (j *Job) MarkAsProcessing() {
	now := time.Now()
	j.Status = JobStatusProcessing
	j.UpdatedAt = now
	j.ProcessedAt = &now
}

// MarkAsCompleted updates the job status to completed
func (j *Job) MarkAsCompleted() {
	now := time.Now()
	j.Status = JobStatusCompleted
	j.UpdatedAt = now
	j.CompletedAt = &now
	j.ErrorMsg = ""
}

// MarkAsFailed updates the job status to failed
func (j *Job) MarkAsFailed(errorMsg string) {
	j.Status = JobStatusFailed
	j.UpdatedAt = time.Now()
	j.ErrorMsg = errorMsg
	j.RetryCount++
}

// MarkAsRetrying updates the job status to retrying
func (j *Job) MarkAsRetrying() {
	j.Status = JobStatusRetrying
	j.UpdatedAt = time.Now()
}
