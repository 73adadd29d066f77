package events

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/wallharvest/internal/models"
)

func TestKafkaPublisherSendsJSONKeyedByTask(t *testing.T) {
	config := mocks.NewTestConfig()
	config.Producer.Return.Successes = true
	producer := mocks.NewSyncProducer(t, config)

	var got Event
	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		key, err := msg.Key.Encode()
		if err != nil {
			return err
		}
		if string(key) != "task-1" {
			return errors.New("unexpected key " + string(key))
		}
		value, err := msg.Value.Encode()
		if err != nil {
			return err
		}
		return json.Unmarshal(value, &got)
	})

	pub := NewKafkaPublisherWithProducer(producer, "task-events", nil)
	err := pub.Publish(context.Background(), Completed("task-1", 3, models.TaskStats{Groups: 3, Posts: 7}, []int64{42}))
	require.NoError(t, err)
	require.NoError(t, pub.Close())

	assert.Equal(t, TypeCompleted, got.Type)
	assert.Equal(t, 3, got.ProcessedGroups)
	require.NotNil(t, got.Stats)
	assert.Equal(t, 7, got.Stats.Posts)
	assert.Equal(t, []int64{42}, got.SkippedGroupIDs)
}

func TestKafkaPublisherReturnsSendError(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	pub := NewKafkaPublisherWithProducer(producer, "task-events", nil)
	err := pub.Publish(context.Background(), Failed("task-2", "no groups available"))
	require.Error(t, err)
	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	require.NoError(t, pub.Close())
}

func TestLogPublisher(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	pub := NewLogPublisher(logger)
	require.NoError(t, pub.Publish(context.Background(), Failed("task-3", "boom")))

	out := buf.String()
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, "task_id=task-3")
	assert.Contains(t, out, "error=boom")
}

type errPublisher struct{ calls int }

func (p *errPublisher) Publish(context.Context, Event) error {
	p.calls++
	return errors.New("down")
}

func TestMultiTriesEveryPublisher(t *testing.T) {
	a, b := &errPublisher{}, &errPublisher{}
	err := Multi{a, b}.Publish(context.Background(), Started("t", 2, 0))
	assert.EqualError(t, err, "down")
	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 1, b.calls)
}
