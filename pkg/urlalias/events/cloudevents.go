package events

import (
	"context"
	"fmt"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"
	"github.com/tendant/simple-urlalias/pkg/urlalias"
)

// TypePrefix is prepended to every CloudEvents type.
const TypePrefix = "io.simple-urlalias."

// DefaultSource is the CloudEvents source used when none is configured.
const DefaultSource = "/simple-urlalias"

// CloudEventsSink posts events to an HTTP endpoint in CloudEvents binary mode.
type CloudEventsSink struct {
	client cloudevents.Client
	target string
	source string
}

// NewCloudEventsSink creates a sink posting to target.
func NewCloudEventsSink(target, source string) (*CloudEventsSink, error) {
	if target == "" {
		return nil, fmt.Errorf("cloudevents target is required")
	}
	if source == "" {
		source = DefaultSource
	}
	client, err := cloudevents.NewClientHTTP()
	if err != nil {
		return nil, fmt.Errorf("create cloudevents client: %w", err)
	}
	return &CloudEventsSink{client: client, target: target, source: source}, nil
}

func (s *CloudEventsSink) send(ctx context.Context, eventType string, payload interface{}) error {
	event := cloudevents.NewEvent()
	event.SetID(uuid.NewString())
	event.SetSource(s.source)
	event.SetType(TypePrefix + eventType)
	event.SetTime(time.Now().UTC())
	if err := event.SetData(cloudevents.ApplicationJSON, payload); err != nil {
		return fmt.Errorf("encode %s event: %w", eventType, err)
	}

	result := s.client.Send(cloudevents.ContextWithTarget(ctx, s.target), event)
	if cloudevents.IsUndelivered(result) {
		return fmt.Errorf("deliver %s event: %w", eventType, result)
	}
	if !cloudevents.IsACK(result) {
		return fmt.Errorf("%s event rejected: %w", eventType, result)
	}
	return nil
}

func (s *CloudEventsSink) AliasPublished(ctx context.Context, a *urlalias.URLAlias) error {
	return s.send(ctx, TypeAliasPublished, aliasPayload(a))
}

func (s *CloudEventsSink) AliasCreated(ctx context.Context, a *urlalias.URLAlias) error {
	return s.send(ctx, TypeAliasCreated, aliasPayload(a))
}

func (s *CloudEventsSink) AliasHistorized(ctx context.Context, a *urlalias.URLAlias) error {
	return s.send(ctx, TypeAliasHistorized, aliasPayload(a))
}

func (s *CloudEventsSink) AliasRemoved(ctx context.Context, a *urlalias.URLAlias) error {
	return s.send(ctx, TypeAliasRemoved, aliasPayload(a))
}

func (s *CloudEventsSink) LocationMoved(ctx context.Context, locationID, oldParentID, newParentID int64) error {
	return s.send(ctx, TypeLocationMoved, LocationPayload{LocationID: locationID, OldParentID: oldParentID, NewParentID: newParentID})
}

func (s *CloudEventsSink) LocationCopied(ctx context.Context, locationID, oldParentID, newParentID int64) error {
	return s.send(ctx, TypeLocationCopied, LocationPayload{LocationID: locationID, OldParentID: oldParentID, NewParentID: newParentID})
}

func (s *CloudEventsSink) LocationDeleted(ctx context.Context, locationID int64, removed int) error {
	return s.send(ctx, TypeLocationDeleted, LocationPayload{LocationID: locationID, Removed: removed})
}
