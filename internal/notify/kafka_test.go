package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
)

func TestKafka_PublishesEvent(t *testing.T) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	p := mocks.NewSyncProducer(t, cfg)
	p.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var ev Event
		if err := json.Unmarshal(val, &ev); err != nil {
			return err
		}
		if ev.ID == "" || ev.CreatedAt.IsZero() {
			return fmt.Errorf("missing id or timestamp: %+v", ev)
		}
		if ev.Destination != "5551234567" || ev.Message != "down" {
			return fmt.Errorf("unexpected event %+v", ev)
		}
		return nil
	})

	k := NewKafka(p, "alerts", nil)
	if err := k.Send(context.Background(), "5551234567", "down"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if err := k.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestKafka_PublishFailure(t *testing.T) {
	p := mocks.NewSyncProducer(t, nil)
	boom := errors.New("broker unavailable")
	p.ExpectSendMessageAndFail(boom)

	k := NewKafka(p, "alerts", nil)
	if err := k.Send(context.Background(), "5551234567", "down"); !errors.Is(err, boom) {
		t.Fatalf("want wrapped broker error, got %v", err)
	}
	_ = k.Close()
}

func TestKafka_CancelledContext(t *testing.T) {
	p := mocks.NewSyncProducer(t, nil)
	k := NewKafka(p, "alerts", nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := k.Send(ctx, "5551234567", "down"); !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
	_ = k.Close()
}
