// cmd/publish appends change events to the sync streams. It reads one event
// per line from stdin as {"topic": ..., "key": ..., "value": {...}} or takes a
// single event from flags.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"library-sync/internal/config"
	infraCache "library-sync/internal/infrastructure/cache"
	"library-sync/internal/infrastructure/stream"
)

type event struct {
	Topic string          `json:"topic"`
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

func main() {
	topic := flag.String("topic", "", "entity type tag (author, category, location, book, book_copy)")
	key := flag.String("key", "", "operation (create, update, delete)")
	value := flag.String("value", "", "JSON payload")
	maxLen := flag.Int64("maxlen", 0, "approximate stream cap, 0 for none")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, using system environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[Publish] %v", err)
	}

	redis := infraCache.NewRedisClient(cfg.Redis.Host, cfg.Redis.Password, cfg.Redis.DB)
	defer redis.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := redis.Connect(ctx); err != nil {
		log.Fatalf("[Publish] %v", err)
	}

	pub := stream.NewPublisher(redis.Client, cfg.Stream.Prefix, *maxLen)

	if *topic != "" {
		err = publish(ctx, pub, event{Topic: *topic, Key: *key, Value: json.RawMessage(*value)})
	} else {
		err = publishLines(ctx, pub, os.Stdin)
	}
	if err != nil {
		log.Fatalf("[Publish] %v", err)
	}
}

func publishLines(ctx context.Context, pub *stream.Publisher, r io.Reader) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	line := 0
	for sc.Scan() {
		line++
		if len(sc.Bytes()) == 0 {
			continue
		}
		evt, err := parseEvent(sc.Bytes())
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		if err := publish(ctx, pub, evt); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
	}
	return sc.Err()
}

func parseEvent(raw []byte) (event, error) {
	var evt event
	if err := json.Unmarshal(raw, &evt); err != nil {
		return event{}, err
	}
	if evt.Topic == "" || evt.Key == "" {
		return event{}, errors.New("topic and key are required")
	}
	return evt, nil
}

func publish(ctx context.Context, pub *stream.Publisher, evt event) error {
	eventID, id, err := pub.Publish(ctx, evt.Topic, evt.Key, evt.Value)
	if err != nil {
		return err
	}
	log.Printf("[Publish] %s/%s event_id=%s entry=%s", evt.Topic, evt.Key, eventID, id)
	return nil
}
