// Package partition maps entity identifiers to bus partitions.
//
// The hash is Kafka's murmur2, the Java client's default partitioner hash,
// so consumers and tools written against any Kafka client agree on where an
// entity's events live. All events for one entity land on one partition and
// are consumed in the order they were produced.
package partition

import (
	"errors"
	"fmt"
	"sync"

	"github.com/segmentio/kafka-go"
)

var ErrEmptyID = errors.New("partition: empty entity id")

// MaxPartitions bounds the partition count a stream may declare. Kafka
// itself has no lower limit, but counts past this are configuration mistakes.
const MaxPartitions = 10000

var balancer = kafka.Murmur2Balancer{Consistent: true}

// indexes caches the [0, count) slice handed to the balancer, keyed by count.
// Streams use a handful of counts, so the cache stays small.
var indexes sync.Map

func partitionsFor(count int) []int {
	if v, ok := indexes.Load(count); ok {
		return v.([]int)
	}
	partitions := make([]int, count)
	for i := range partitions {
		partitions[i] = i
	}
	v, _ := indexes.LoadOrStore(count, partitions)
	return v.([]int)
}

// Of returns the partition in [0, count) for entityID. The result depends
// only on the identifier's UTF-8 bytes and count.
func Of(entityID string, count int) (int32, error) {
	if count <= 0 || count > MaxPartitions {
		return 0, fmt.Errorf("partition: count must be in [1, %d] (got %d)", MaxPartitions, count)
	}
	if entityID == "" {
		return 0, ErrEmptyID
	}
	return int32(balancer.Balance(kafka.Message{Key: []byte(entityID)}, partitionsFor(count)...)), nil
}
