package buffer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"codeberg.org/algopatterns/collab/internal/logger"
)

// implements Store on top of Redis
type RedisStore struct {
	client *redis.Client
}

// connects to Redis and verifies the connection
func NewRedisStoreFromURL(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	// test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close() //nolint:errcheck,gosec // connection never became usable
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("connected to redis replay store")

	return NewRedisStore(client), nil
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Load(ctx context.Context, roomKey string) (*Snapshot, error) {
	pipe := s.client.Pipeline()
	docCmd := pipe.Get(ctx, fmt.Sprintf(keyRoomDocument, roomKey))
	updatesCmd := pipe.LRange(ctx, fmt.Sprintf(keyRoomUpdates, roomKey), 0, -1)
	alarmCmd := pipe.ZScore(ctx, keyRoomAlarms, roomKey)

	// redis.Nil from missing keys is checked per command below
	_, err := pipe.Exec(ctx)
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to load room from redis: %w", err)
	}

	snap := &Snapshot{}

	documentID, err := docCmd.Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to get document binding: %w", err)
	}
	snap.DocumentID = documentID

	raw, err := updatesCmd.Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get replay log: %w", err)
	}

	for _, item := range raw {
		var e Event
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			logger.ErrorErr(err, "failed to unmarshal buffered update", "room", roomKey)
			continue
		}
		snap.Updates = append(snap.Updates, e)
	}

	score, err := alarmCmd.Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to get idle alarm: %w", err)
	}

	if err == nil {
		snap.AlarmAt = time.UnixMilli(int64(score))
	}

	return snap, nil
}

func (s *RedisStore) BindDocument(ctx context.Context, roomKey, documentID string) error {
	if err := s.client.Set(ctx, fmt.Sprintf(keyRoomDocument, roomKey), documentID, 0).Err(); err != nil {
		return fmt.Errorf("failed to bind document in redis: %w", err)
	}

	return nil
}

func (s *RedisStore) SaveUpdates(ctx context.Context, roomKey string, updates []Event) error {
	updatesKey := fmt.Sprintf(keyRoomUpdates, roomKey)

	values := make([]any, 0, len(updates))
	for _, e := range updates {
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("failed to marshal update: %w", err)
		}
		values = append(values, data)
	}

	// replace the list atomically so readers never see a partial log
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, updatesKey)

	if len(values) > 0 {
		pipe.RPush(ctx, updatesKey, values...)
		pipe.LTrim(ctx, updatesKey, -MaxUpdates, -1)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save replay log in redis: %w", err)
	}

	return nil
}

func (s *RedisStore) SetAlarm(ctx context.Context, roomKey string, at time.Time) error {
	err := s.client.ZAdd(ctx, keyRoomAlarms, redis.Z{
		Score:  float64(at.UnixMilli()),
		Member: roomKey,
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to set idle alarm in redis: %w", err)
	}

	return nil
}

func (s *RedisStore) ClearAlarm(ctx context.Context, roomKey string) error {
	if err := s.client.ZRem(ctx, keyRoomAlarms, roomKey).Err(); err != nil {
		return fmt.Errorf("failed to clear idle alarm in redis: %w", err)
	}

	return nil
}

func (s *RedisStore) PendingAlarms(ctx context.Context) (map[string]time.Time, error) {
	entries, err := s.client.ZRangeWithScores(ctx, keyRoomAlarms, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list idle alarms: %w", err)
	}

	alarms := make(map[string]time.Time, len(entries))

	for _, z := range entries {
		var key string

		switch m := z.Member.(type) {
		case string:
			key = m
		case []byte:
			key = string(m)
		default:
			key = fmt.Sprint(m)
		}

		alarms[key] = time.UnixMilli(int64(z.Score))
	}

	return alarms, nil
}

func (s *RedisStore) PersistedRooms(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})

	iter := s.client.Scan(ctx, 0, keyRoomPattern, 100).Iterator()
	for iter.Next(ctx) {
		// collab:room:{roomKey}:document or :updates
		rest := strings.TrimPrefix(iter.Val(), keyRoomPrefix)
		if i := strings.LastIndex(rest, ":"); i > 0 {
			seen[rest[:i]] = struct{}{}
		}
	}

	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan rooms in redis: %w", err)
	}

	alarms, err := s.PendingAlarms(ctx)
	if err != nil {
		return nil, err
	}

	for key := range alarms {
		seen[key] = struct{}{}
	}

	keys := make([]string, 0, len(seen))
	for key := range seen {
		keys = append(keys, key)
	}

	return keys, nil
}

func (s *RedisStore) Purge(ctx context.Context, roomKey string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, fmt.Sprintf(keyRoomDocument, roomKey))
	pipe.Del(ctx, fmt.Sprintf(keyRoomUpdates, roomKey))
	pipe.ZRem(ctx, keyRoomAlarms, roomKey)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to purge room from redis: %w", err)
	}

	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

// returns the underlying Redis client for advanced operations
func (s *RedisStore) Client() *redis.Client {
	return s.client
}

