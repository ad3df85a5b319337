package pipeline

import (
	"context"

	"msggate/pkg/bus"
)

// ContentTypeFilter lets through text, captioned and photo messages only.
type ContentTypeFilter struct{}

func NewContentTypeFilter() ContentTypeFilter { return ContentTypeFilter{} }

func (ContentTypeFilter) Name() string { return "content_type" }

func (ContentTypeFilter) Handle(_ context.Context, msg bus.Message, _ *bus.ChatContext) (Result, error) {
	if msg.HasText() || msg.HasPhoto {
		return Next(), nil
	}
	return Drop(ErrUnsupportedMessage), nil
}
