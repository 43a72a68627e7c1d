package eventbridge

import (
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"flowcanvas-backend/domain/events"
)

// poisonEvent cannot be marshalled to JSON because of the channel field.
type poisonEvent struct {
	events.BaseEvent
	Bad chan int `json:"bad"`
}

func TestPublisher_BuildEntries_SkipsUnmarshalableEvents(t *testing.T) {
	// Arrange
	publisher := NewPublisher(nil, "test-bus", zap.NewNop()).(*Publisher)
	now := time.Now()
	good1 := events.NewDiagramCreated("diag-1", "user1", "First", now)
	bad := poisonEvent{BaseEvent: events.BaseEvent{
		AggregateID: "diag-2",
		EventType:   "diagram.created",
		Timestamp:   now,
		Version:     1,
	}}
	good2 := events.NewDiagramDeleted("diag-3", "user1", now)

	// Act
	entries, sent := publisher.buildEntries([]events.DomainEvent{good1, bad, good2})

	// Assert: the poison event is dropped and positions stay aligned,
	// so entry i always describes sent[i].
	require.Len(t, entries, 2)
	require.Len(t, sent, 2)
	assert.Equal(t, "diag-1", sent[0].GetAggregateID())
	assert.Equal(t, "diag-3", sent[1].GetAggregateID())
	assert.Equal(t, "arn:aws:flowcanvas::diag-1", entries[0].Resources[0])
	assert.Equal(t, "arn:aws:flowcanvas::diag-3", entries[1].Resources[0])
	assert.Equal(t, "diagram.created", aws.ToString(entries[0].DetailType))
	assert.Equal(t, "diagram.deleted", aws.ToString(entries[1].DetailType))
}
