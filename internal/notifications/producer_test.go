package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"barbuddy/internal/reservation"
	"barbuddy/pkg/logger"
)

func TestKafkaEventProducer_PublishHoldEvent(t *testing.T) {
	mock := mocks.NewSyncProducer(t, nil)
	defer mock.Close()

	mock.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var ev HoldEvent
		if err := json.Unmarshal(val, &ev); err != nil {
			return err
		}
		if ev.Type != HoldEventHeld || ev.TableID != "t1" || ev.HolderID != "h1" || ev.BarID != "bar-1" {
			return errors.New("unexpected hold event payload")
		}
		return nil
	})

	producer := NewKafkaEventProducerWithClient(mock, DefaultKafkaProducerConfig(), logger.NewNop())
	key := reservation.ReservationKey{BarID: "bar-1", Date: "2026-10-23", Time: "22:00"}

	err := producer.PublishHoldEvent(context.Background(), NewHoldEvent(HoldEventHeld, key, "t1", "h1"))
	require.NoError(t, err)
}

func TestKafkaEventProducer_PublishBookingConfirmed(t *testing.T) {
	mock := mocks.NewSyncProducer(t, nil)
	defer mock.Close()

	mock.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != "bookings" {
			return errors.New("wrong topic " + msg.Topic)
		}
		key, err := msg.Key.Encode()
		if err != nil {
			return err
		}
		if string(key) != "bar-1" {
			return errors.New("events must be keyed by bar")
		}
		return nil
	})

	producer := NewKafkaEventProducerWithClient(mock, DefaultKafkaProducerConfig(), logger.NewNop())
	err := producer.PublishBookingConfirmed(context.Background(), &BookingConfirmedEvent{
		BookingID: "b1",
		BarID:     "bar-1",
		TableIDs:  []string{"t1", "t2"},
	})
	require.NoError(t, err)
}

func TestKafkaEventProducer_SendFailure(t *testing.T) {
	mock := mocks.NewSyncProducer(t, nil)
	defer mock.Close()
	mock.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	producer := NewKafkaEventProducerWithClient(mock, DefaultKafkaProducerConfig(), logger.NewNop())
	err := producer.PublishHoldEvent(context.Background(), &HoldEvent{Type: HoldEventReleased, BarID: "bar-1"})

	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	assert.Contains(t, err.Error(), "table-holds")
}
