// Package events provides urlalias.EventSink implementations.
package events

import (
	"context"
	"errors"
	"log/slog"

	"github.com/tendant/simple-urlalias/pkg/urlalias"
)

// Event types, also used as CloudEvents "type" suffixes.
const (
	TypeAliasPublished  = "alias.published"
	TypeAliasCreated    = "alias.created"
	TypeAliasHistorized = "alias.historized"
	TypeAliasRemoved    = "alias.removed"
	TypeLocationMoved   = "location.moved"
	TypeLocationCopied  = "location.copied"
	TypeLocationDeleted = "location.deleted"
)

// AliasPayload is the body of alias events.
type AliasPayload struct {
	ID            string             `json:"id"`
	Link          int64              `json:"link"`
	Parent        int64              `json:"parent"`
	Type          urlalias.AliasType `json:"type"`
	Destination   string             `json:"destination"`
	LanguageCodes []string           `json:"language_codes"`
	IsHistory     bool               `json:"is_history"`
	IsCustom      bool               `json:"is_custom"`
	Forward       bool               `json:"forward"`
}

// LocationPayload is the body of location events.
type LocationPayload struct {
	LocationID  int64 `json:"location_id"`
	OldParentID int64 `json:"old_parent_id,omitempty"`
	NewParentID int64 `json:"new_parent_id,omitempty"`
	Removed     int   `json:"removed,omitempty"`
}

func aliasPayload(a *urlalias.URLAlias) AliasPayload {
	return AliasPayload{
		ID:            a.DisplayID,
		Link:          a.ID.Link,
		Parent:        a.ID.Parent,
		Type:          a.Type,
		Destination:   a.Destination,
		LanguageCodes: a.LanguageCodes,
		IsHistory:     a.IsHistory,
		IsCustom:      a.IsCustom,
		Forward:       a.Forward,
	}
}

// LogSink writes every event to a structured logger.
type LogSink struct {
	logger *slog.Logger
	level  slog.Level
}

// NewLogSink logs events at info level. A nil logger uses slog.Default.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger, level: slog.LevelInfo}
}

func (s *LogSink) alias(ctx context.Context, eventType string, a *urlalias.URLAlias) error {
	s.logger.Log(ctx, s.level, "url alias event",
		"event", eventType,
		"id", a.DisplayID,
		"link", a.ID.Link,
		"parent", a.ID.Parent,
		"type", a.Type,
		"destination", a.Destination,
		"languages", a.LanguageCodes)
	return nil
}

func (s *LogSink) location(ctx context.Context, eventType string, p LocationPayload) error {
	s.logger.Log(ctx, s.level, "url alias event",
		"event", eventType,
		"location_id", p.LocationID,
		"old_parent_id", p.OldParentID,
		"new_parent_id", p.NewParentID,
		"removed", p.Removed)
	return nil
}

func (s *LogSink) AliasPublished(ctx context.Context, a *urlalias.URLAlias) error {
	return s.alias(ctx, TypeAliasPublished, a)
}

func (s *LogSink) AliasCreated(ctx context.Context, a *urlalias.URLAlias) error {
	return s.alias(ctx, TypeAliasCreated, a)
}

func (s *LogSink) AliasHistorized(ctx context.Context, a *urlalias.URLAlias) error {
	return s.alias(ctx, TypeAliasHistorized, a)
}

func (s *LogSink) AliasRemoved(ctx context.Context, a *urlalias.URLAlias) error {
	return s.alias(ctx, TypeAliasRemoved, a)
}

func (s *LogSink) LocationMoved(ctx context.Context, locationID, oldParentID, newParentID int64) error {
	return s.location(ctx, TypeLocationMoved, LocationPayload{LocationID: locationID, OldParentID: oldParentID, NewParentID: newParentID})
}

func (s *LogSink) LocationCopied(ctx context.Context, locationID, oldParentID, newParentID int64) error {
	return s.location(ctx, TypeLocationCopied, LocationPayload{LocationID: locationID, OldParentID: oldParentID, NewParentID: newParentID})
}

func (s *LogSink) LocationDeleted(ctx context.Context, locationID int64, removed int) error {
	return s.location(ctx, TypeLocationDeleted, LocationPayload{LocationID: locationID, Removed: removed})
}

// Multi fans events out to several sinks and joins their errors.
type Multi []urlalias.EventSink

func (m Multi) each(fn func(urlalias.EventSink) error) error {
	var errs []error
	for _, sink := range m {
		if err := fn(sink); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) AliasPublished(ctx context.Context, a *urlalias.URLAlias) error {
	return m.each(func(s urlalias.EventSink) error { return s.AliasPublished(ctx, a) })
}

func (m Multi) AliasCreated(ctx context.Context, a *urlalias.URLAlias) error {
	return m.each(func(s urlalias.EventSink) error { return s.AliasCreated(ctx, a) })
}

func (m Multi) AliasHistorized(ctx context.Context, a *urlalias.URLAlias) error {
	return m.each(func(s urlalias.EventSink) error { return s.AliasHistorized(ctx, a) })
}

func (m Multi) AliasRemoved(ctx context.Context, a *urlalias.URLAlias) error {
	return m.each(func(s urlalias.EventSink) error { return s.AliasRemoved(ctx, a) })
}

func (m Multi) LocationMoved(ctx context.Context, locationID, oldParentID, newParentID int64) error {
	return m.each(func(s urlalias.EventSink) error { return s.LocationMoved(ctx, locationID, oldParentID, newParentID) })
}

func (m Multi) LocationCopied(ctx context.Context, locationID, oldParentID, newParentID int64) error {
	return m.each(func(s urlalias.EventSink) error { return s.LocationCopied(ctx, locationID, oldParentID, newParentID) })
}

func (m Multi) LocationDeleted(ctx context.Context, locationID int64, removed int) error {
	return m.each(func(s urlalias.EventSink) error { return s.LocationDeleted(ctx, locationID, removed) })
}
