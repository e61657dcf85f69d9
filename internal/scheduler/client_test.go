package scheduler

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

type testSchedulerConfig struct {
	url   string
	queue string
}

func (c testSchedulerConfig) GetRedisURL() string       { return c.url }
func (c testSchedulerConfig) GetRedisTLSInsecure() bool { return false }
func (c testSchedulerConfig) GetAsynqQueueName() string { return c.queue }
func (c testSchedulerConfig) GetAsynqConcurrency() int  { return 5 }

func TestNewClientRequiresRedisURL(t *testing.T) {
	if _, err := NewClient(testSchedulerConfig{}); err == nil {
		t.Fatal("expected error without redis url")
	}
}

func TestRedisClientOptParsesURL(t *testing.T) {
	opt, err := redisClientOpt("redis://:secret@example.com:6380/3", false)
	if err != nil {
		t.Fatalf("redisClientOpt: %v", err)
	}
	if opt.Addr != "example.com:6380" {
		t.Fatalf("addr = %q", opt.Addr)
	}
	if opt.Password != "secret" {
		t.Fatalf("password = %q", opt.Password)
	}
	if opt.DB != 3 {
		t.Fatalf("db = %d", opt.DB)
	}
	if opt.TLSConfig != nil {
		t.Fatal("unexpected tls config for redis scheme")
	}

	opt, err = redisClientOpt("redis://example.com:6380", true)
	if err != nil {
		t.Fatalf("redisClientOpt insecure: %v", err)
	}
	if opt.TLSConfig == nil || !opt.TLSConfig.InsecureSkipVerify {
		t.Fatal("expected insecure tls config")
	}
}

func TestEnqueueNotificationOutboxDue(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := testSchedulerConfig{url: "redis://" + mr.Addr(), queue: "workflows"}
	client, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer func() { _ = client.Close() }()

	payload := NotificationOutboxDuePayload{
		OutboxID: uuid.New().String(),
		TeamID:   uuid.New().String(),
	}
	if err := client.EnqueueNotificationOutboxDue(context.Background(), payload, time.Now()); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: mr.Addr()})
	defer func() { _ = inspector.Close() }()

	tasks, err := inspector.ListPendingTasks("workflows")
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("pending tasks = %d, want 1", len(tasks))
	}
	if tasks[0].Type != TaskNotificationOutboxDue {
		t.Fatalf("task type = %q", tasks[0].Type)
	}

	var got NotificationOutboxDuePayload
	if err := json.Unmarshal(tasks[0].Payload, &got); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if got != payload {
		t.Fatalf("payload = %+v, want %+v", got, payload)
	}
}
