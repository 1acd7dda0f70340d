package domain

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/cuongbtq/assessment-reports/internal/jobs"
)

// Acknowledger settles one delivery. amqp.Delivery satisfies it.
type Acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

// JobMessage is a decoded dispatch envelope
type JobMessage struct {
	JobID      string
	Submission map[string]any
	// ReplyTo and CorrelationID are set when the publisher wants the outcome back.
	ReplyTo       string
	CorrelationID string
	DeliveryTag   uint64
	Delivery      Acknowledger
}

// ParseDelivery decodes a delivery body; the error wraps ErrInvalidPayload
func ParseDelivery(d amqp.Delivery) (*JobMessage, error) {
	jobID, submission, err := jobs.DecodeEnvelope(d.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	return &JobMessage{
		JobID:         jobID,
		Submission:    submission,
		ReplyTo:       d.ReplyTo,
		CorrelationID: d.CorrelationId,
		DeliveryTag:   d.DeliveryTag,
		Delivery:      d,
	}, nil
}
