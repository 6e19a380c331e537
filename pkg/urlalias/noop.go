package urlalias

import "context"

// NoopEventSink is a no-operation implementation of EventSink
type NoopEventSink struct{}

// NewNoopEventSink creates a new no-operation event sink
func NewNoopEventSink() EventSink {
	return &NoopEventSink{}
}

func (n *NoopEventSink) AliasPublished(ctx context.Context, alias *URLAlias) error  { return nil }
func (n *NoopEventSink) AliasCreated(ctx context.Context, alias *URLAlias) error    { return nil }
func (n *NoopEventSink) AliasHistorized(ctx context.Context, alias *URLAlias) error { return nil }
func (n *NoopEventSink) AliasRemoved(ctx context.Context, alias *URLAlias) error    { return nil }

func (n *NoopEventSink) LocationMoved(ctx context.Context, locationID, oldParentID, newParentID int64) error {
	return nil
}

func (n *NoopEventSink) LocationCopied(ctx context.Context, locationID, oldParentID, newParentID int64) error {
	return nil
}

func (n *NoopEventSink) LocationDeleted(ctx context.Context, locationID int64, removed int) error {
	return nil
}
