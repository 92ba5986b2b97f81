// Package kafka reads PSEE events from a Kafka topic. Partitions are consumed
// directly, without a consumer group, and the cursor carries the next offset
// of every partition seen. The read model is rebuilt by replaying from the
// zero cursor, so nothing is committed to the broker.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/twmb/franz-go/pkg/kgo"

	"mgcore/internal/psee/events"
	"mgcore/pkg/platform/sentinel"
)

const DefaultBatchSize = 500

// Client is the part of *kgo.Client the source uses.
type Client interface {
	PollRecords(ctx context.Context, maxPollRecords int) kgo.Fetches
	SetOffsets(setOffsets map[string]map[int32]kgo.EpochOffset)
	Close()
}

type topicPartition struct {
	topic     string
	partition int32
}

type Source struct {
	client    Client
	batchSize int
	logger    *slog.Logger

	// next offset per partition, as of the last cursor handed out
	offsets  map[topicPartition]int64
	position string
}

type Option func(*Source)

func WithBatchSize(n int) Option {
	return func(s *Source) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Source) { s.logger = logger }
}

// Config names the brokers and topic to read from.
type Config struct {
	Brokers []string
	Topic   string
}

// Dial creates a direct kgo consumer for cfg that starts at the beginning of
// every partition.
func Dial(cfg Config, opts ...Option) (*Source, error) {
	if len(cfg.Brokers) == 0 || cfg.Topic == "" {
		return nil, errors.New("kafka source needs brokers and topic")
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ConsumeTopics(cfg.Topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return New(client, opts...), nil
}

func New(client Client, opts ...Option) *Source {
	s := &Source{
		client:    client,
		batchSize: DefaultBatchSize,
		logger:    slog.Default(),
		offsets:   make(map[topicPartition]int64),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FetchEvents polls the batch after since. When since is not the last cursor
// this source handed out (a dropped batch, or a replay from zero), the client
// is first rewound to since; partitions since does not name restart at the
// beginning. A poll that times out without records is an empty batch, not an
// error.
func (s *Source) FetchEvents(ctx context.Context, since events.Cursor) ([]events.Event, events.Cursor, error) {
	if since.Position != s.position {
		if err := s.rewind(since); err != nil {
			return nil, since, err
		}
	}

	fetches := s.client.PollRecords(ctx, s.batchSize)
	if fetches.IsClientClosed() {
		return nil, since, fmt.Errorf("kafka client closed: %w", sentinel.ErrUnavailable)
	}

	var (
		batch []events.Event
		seen  int
	)
	next := maps.Clone(s.offsets)
	fetches.EachRecord(func(r *kgo.Record) {
		seen++
		tp := topicPartition{r.Topic, r.Partition}
		if off, ok := next[tp]; !ok || r.Offset+1 > off {
			next[tp] = r.Offset + 1
		}
		var ev events.Event
		if err := json.Unmarshal(r.Value, &ev); err != nil {
			s.logger.WarnContext(ctx, "undecodable psee record skipped",
				"topic", r.Topic,
				"partition", r.Partition,
				"offset", r.Offset,
				"error", err,
			)
			return
		}
		if ev.Seq == 0 {
			ev.Seq = r.Offset
		}
		batch = append(batch, ev)
	})

	if seen == 0 {
		if err := ctx.Err(); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return nil, since, nil
			}
			return nil, since, err
		}
		if errs := fetches.Errors(); len(errs) > 0 {
			fe := errs[0]
			return nil, since, fmt.Errorf("fetch %s[%d]: %w", fe.Topic, fe.Partition, fe.Err)
		}
		return nil, since, nil
	}
	for _, fe := range fetches.Errors() {
		s.logger.WarnContext(ctx, "partial kafka fetch",
			"topic", fe.Topic,
			"partition", fe.Partition,
			"error", fe.Err,
		)
	}

	s.offsets = next
	s.position = encode(next)
	return batch, events.Cursor{Position: s.position}, nil
}

// rewind seeks every known partition back to the offset since records for it.
func (s *Source) rewind(since events.Cursor) error {
	target, err := decode(since.Position)
	if err != nil {
		return err
	}
	for tp := range s.offsets {
		if _, ok := target[tp]; !ok {
			target[tp] = 0
		}
	}
	if len(target) > 0 {
		seek := make(map[string]map[int32]kgo.EpochOffset)
		for tp, off := range target {
			if seek[tp.topic] == nil {
				seek[tp.topic] = make(map[int32]kgo.EpochOffset)
			}
			seek[tp.topic][tp.partition] = kgo.EpochOffset{Epoch: -1, Offset: off}
		}
		s.client.SetOffsets(seek)
	}
	s.offsets = target
	s.position = since.Position
	return nil
}

// Close releases the client.
func (s *Source) Close() {
	s.client.Close()
}

// encode renders next offsets as sorted topic:partition:offset entries.
func encode(offsets map[topicPartition]int64) string {
	parts := make([]string, 0, len(offsets))
	for tp, off := range offsets {
		parts = append(parts, fmt.Sprintf("%s:%d:%d", tp.topic, tp.partition, off))
	}
	slices.Sort(parts)
	return strings.Join(parts, ",")
}

func decode(position string) (map[topicPartition]int64, error) {
	out := make(map[topicPartition]int64)
	if position == "" {
		return out, nil
	}
	for _, part := range strings.Split(position, ",") {
		offIdx := strings.LastIndexByte(part, ':')
		if offIdx < 0 {
			return nil, fmt.Errorf("invalid kafka cursor %q: %w", position, sentinel.ErrInvalidState)
		}
		partIdx := strings.LastIndexByte(part[:offIdx], ':')
		if partIdx <= 0 {
			return nil, fmt.Errorf("invalid kafka cursor %q: %w", position, sentinel.ErrInvalidState)
		}
		partition, perr := strconv.ParseInt(part[partIdx+1:offIdx], 10, 32)
		offset, oerr := strconv.ParseInt(part[offIdx+1:], 10, 64)
		if perr != nil || oerr != nil || offset < 0 {
			return nil, fmt.Errorf("invalid kafka cursor %q: %w", position, sentinel.ErrInvalidState)
		}
		out[topicPartition{part[:partIdx], int32(partition)}] = offset
	}
	return out, nil
}
