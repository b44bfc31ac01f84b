// README: Redis pub/sub change feed that tells other instances to reload a snapshot.
package infra

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"dropfee/internal/logger"
)

const changeChannelPrefix = "dropfee:changes:"

const (
	TopicZones    = "zones"
	TopicSettings = "settings"
)

// ChangeFeed publishes snapshot versions and invokes a reload callback for
// versions published by other instances.
type ChangeFeed struct {
	redis    *redis.Client
	instance string
	logg     *logger.Logger
}

func NewChangeFeed(rdb *redis.Client, logg *logger.Logger) *ChangeFeed {
	if logg == nil {
		logg = logger.Nop()
	}
	return &ChangeFeed{redis: rdb, instance: uuid.NewString(), logg: logg}
}

func (f *ChangeFeed) Publish(ctx context.Context, topic string, version int64) error {
	return f.redis.Publish(ctx, changeChannel(topic), encodeChange(f.instance, version)).Err()
}

// Subscribe blocks until ctx is done.
func (f *ChangeFeed) Subscribe(ctx context.Context, topic string, onChange func(ctx context.Context, version int64)) error {
	sub := f.redis.Subscribe(ctx, changeChannel(topic))
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", topic, err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			instance, version, err := decodeChange(msg.Payload)
			if err != nil {
				f.logg.Warn(f.logg.WithField(ctx, "payload", msg.Payload), "changefeed.bad_payload")
				continue
			}
			if instance == f.instance {
				continue
			}
			onChange(ctx, version)
		}
	}
}

func changeChannel(topic string) string {
	return changeChannelPrefix + topic
}

func encodeChange(instance string, version int64) string {
	return instance + ":" + strconv.FormatInt(version, 10)
}

func decodeChange(payload string) (string, int64, error) {
	idx := strings.LastIndex(payload, ":")
	if idx <= 0 {
		return "", 0, fmt.Errorf("malformed change payload %q", payload)
	}
	version, err := strconv.ParseInt(payload[idx+1:], 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("malformed change version %q: %w", payload, err)
	}
	return payload[:idx], version, nil
}
