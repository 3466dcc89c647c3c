package events

import (
	"errors"
	"fmt"

	"github.com/md-rashed-zaman/playhub/libs/partition"
)

// Stream is one logical event stream on the bus. Partitions is part of the
// stream's contract: changing it moves entities to other partitions, so it
// is changed together with Version.
type Stream struct {
	Topic      string `env:"TOPIC"`
	Partitions int    `env:"PARTITIONS"`
	Version    int    `env:"VERSION"`
}

func (s Stream) PartitionOf(entityID string) (int32, error) {
	return partition.Of(entityID, s.Partitions)
}

type Streams struct {
	User Stream `envPrefix:"USER_STREAM_"`
	Game Stream `envPrefix:"GAME_STREAM_"`
	Bet  Stream `envPrefix:"BET_STREAM_"`
}

// WithDefaults fills unset fields with the platform's standard topics.
func (s Streams) WithDefaults() Streams {
	s.User = s.User.withDefaults(Stream{Topic: "user", Partitions: 12, Version: 1})
	s.Game = s.Game.withDefaults(Stream{Topic: "game", Partitions: 12, Version: 1})
	s.Bet = s.Bet.withDefaults(Stream{Topic: "bet", Partitions: 6, Version: 1})
	return s
}

func (s Stream) withDefaults(d Stream) Stream {
	if s.Topic == "" {
		s.Topic = d.Topic
	}
	if s.Partitions == 0 {
		s.Partitions = d.Partitions
	}
	if s.Version == 0 {
		s.Version = d.Version
	}
	return s
}

func (s Streams) Validate() error {
	var errs []error
	for name, st := range map[string]Stream{"user": s.User, "game": s.Game, "bet": s.Bet} {
		if st.Topic == "" {
			errs = append(errs, fmt.Errorf("%s stream: topic is required", name))
		}
		if st.Partitions <= 0 || st.Partitions > partition.MaxPartitions {
			errs = append(errs, fmt.Errorf("%s stream: partitions must be in [1, %d] (got %d)", name, partition.MaxPartitions, st.Partitions))
		}
	}
	return errors.Join(errs...)
}

// Partitions returns the configured partition count per topic.
func (s Streams) Partitions() map[string]int {
	return map[string]int{
		s.User.Topic: s.User.Partitions,
		s.Game.Topic: s.Game.Partitions,
		s.Bet.Topic:  s.Bet.Partitions,
	}
}
