package kafka

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridatlas/queue-etl/internal/changelog"
	"github.com/gridatlas/queue-etl/internal/domain"
)

func TestSerializeTransition(t *testing.T) {
	end := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	iv := domain.StatusInterval{
		EntityID:      "miso:J100",
		Attribute:     domain.AttrInterconnectionStatus,
		Value:         "System Impact Study",
		EffectiveDate: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		EndDate:       &end,
	}

	msg, err := serializeTransition(iv, "closed", "2024-04-01")
	require.NoError(t, err)

	assert.Equal(t, []byte("miso:J100"), msg.Key)
	assert.JSONEq(t, `{
		"entity_id": "miso:J100",
		"attribute": "interconnection_status",
		"value": "System Impact Study",
		"transition": "closed",
		"effective_date": "2024-03-01",
		"end_date": "2024-04-01",
		"run_date": "2024-04-01"
	}`, string(msg.Value))

	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "attribute", msg.Headers[0].Key)
	assert.Equal(t, []byte(domain.AttrInterconnectionStatus), msg.Headers[0].Value)
	assert.Equal(t, "transition", msg.Headers[1].Key)
	assert.Equal(t, []byte("closed"), msg.Headers[1].Value)
}

func TestSerializeTransition_OpenIntervalOmitsEndDate(t *testing.T) {
	iv := domain.StatusInterval{
		EntityID:      "pjm:AB1",
		Attribute:     domain.AttrQueueStatus,
		Value:         "active",
		EffectiveDate: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	}

	msg, err := serializeTransition(iv, "opened", "2024-03-01")
	require.NoError(t, err)
	assert.NotContains(t, string(msg.Value), "end_date")
}

func TestPublishDelta_NilAndEmpty(t *testing.T) {
	var p *Publisher
	assert.NoError(t, p.PublishDelta(context.Background(), "2024-03-01", changelog.Delta{}))

	// A non-nil publisher with an empty delta never touches the writer.
	p = &Publisher{}
	assert.NoError(t, p.PublishDelta(context.Background(), "2024-03-01", changelog.Delta{}))
}
