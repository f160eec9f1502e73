package cloud

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/shopspring/decimal"
)

// SNSAPI is the subset of the SNS client the publisher uses.
type SNSAPI interface {
	Publish(ctx context.Context, in *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type EventType string

const (
	EventBillCreated       EventType = "bill.created"
	EventBillStatusChanged EventType = "bill.status_changed"
	EventBillPaid          EventType = "bill.paid"
	EventBillDeleted       EventType = "bill.deleted"
	EventOverdueSweep      EventType = "bills.overdue_sweep"
)

// BillEvent is an internal lifecycle notification. It is not a customer-facing
// bill delivery.
type BillEvent struct {
	Type        EventType       `json:"type"`
	BillID      int64           `json:"bill_id,omitempty"`
	BillNumber  string          `json:"bill_number,omitempty"`
	UserID      int64           `json:"user_id,omitempty"`
	FromStatus  string          `json:"from_status,omitempty"`
	ToStatus    string          `json:"to_status,omitempty"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Count       int             `json:"count,omitempty"`
	OccurredAt  time.Time       `json:"occurred_at"`
}

// EventPublisher sends bill lifecycle events to an SNS topic.
type EventPublisher struct {
	svc      SNSAPI
	topicArn string
}

func NewEventPublisher(cfg aws.Config, topicArn string) *EventPublisher {
	return &EventPublisher{svc: sns.NewFromConfig(cfg), topicArn: topicArn}
}

func NewEventPublisherWithClient(svc SNSAPI, topicArn string) *EventPublisher {
	return &EventPublisher{svc: svc, topicArn: topicArn}
}

// Publish sends e as a JSON message with an event_type attribute for
// subscription filtering. It returns the SNS message ID.
func (c *EventPublisher) Publish(ctx context.Context, e BillEvent) (string, error) {
	body, err := json.Marshal(e)
	if err != nil {
		return "", fmt.Errorf("failed to encode event: %w", err)
	}

	out, err := c.svc.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(c.topicArn),
		Subject:  aws.String(subjectFor(e)),
		Message:  aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"event_type": {DataType: aws.String("String"), StringValue: aws.String(string(e.Type))},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to publish to SNS: %w", err)
	}
	return aws.ToString(out.MessageId), nil
}

func subjectFor(e BillEvent) string {
	if e.Type == EventOverdueSweep {
		return fmt.Sprintf("Billing: %d bills marked overdue", e.Count)
	}
	if e.BillNumber != "" {
		return fmt.Sprintf("Billing: %s %s", e.Type, e.BillNumber)
	}
	return fmt.Sprintf("Billing: %s", e.Type)
}
