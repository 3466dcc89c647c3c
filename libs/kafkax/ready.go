package kafkax

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

func ReadyCheck(brokers []string) func(context.Context) error {
	return func(ctx context.Context) error {
		conn, err := dial(ctx, brokers)
		if err != nil {
			return err
		}
		_ = conn.Close()
		return nil
	}
}

// VerifyPartitions checks each topic's broker partition count against the
// count the producer hashes with. A mismatch would route an entity's events
// to different partitions than its consumers expect.
func VerifyPartitions(ctx context.Context, brokers []string, want map[string]int) error {
	if len(want) == 0 {
		return nil
	}
	conn, err := dial(ctx, brokers)
	if err != nil {
		return err
	}
	defer conn.Close()

	topics := make([]string, 0, len(want))
	for t := range want {
		topics = append(topics, t)
	}
	parts, err := conn.ReadPartitions(topics...)
	if err != nil {
		return fmt.Errorf("read partitions: %w", err)
	}
	got := make(map[string]int, len(want))
	for _, p := range parts {
		got[p.Topic]++
	}
	return comparePartitions(want, got)
}

func comparePartitions(want, got map[string]int) error {
	var problems []string
	for topic, n := range want {
		switch have, ok := got[topic]; {
		case !ok:
			problems = append(problems, fmt.Sprintf("topic %q does not exist", topic))
		case have != n:
			problems = append(problems, fmt.Sprintf("topic %q has %d partitions, configured %d", topic, have, n))
		}
	}
	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

func dial(ctx context.Context, brokers []string) (*kafka.Conn, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka brokers not configured")
	}
	dialer := kafka.Dialer{Timeout: 2 * time.Second}
	var errs []error
	for _, b := range brokers {
		conn, err := dialer.DialContext(ctx, "tcp", b)
		if err == nil {
			return conn, nil
		}
		errs = append(errs, err)
	}
	return nil, errors.Join(errs...)
}
