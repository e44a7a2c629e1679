package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "strings"
    "time"

    redis "github.com/redis/go-redis/v9"
)

// Job is one split request carried on the stream.
type Job struct {
    ID         string    `json:"job_id"`
    Source     string    `json:"source"`
    Duplex     bool      `json:"duplex"`
    Upload     bool      `json:"upload,omitempty"` // source lives in UPLOAD_DIR and is removed after the job
    EnqueuedAt time.Time `json:"enqueued_at"`
}

// RedisQueue implements Redis Streams + consumer groups with a DLQ stream.
type RedisQueue struct {
    client    *redis.Client
    Stream    string
    Group     string
    CancelKey string
    DLQStream string
}

// NewRedisQueue connects to Redis and ensures stream & group exist.
func NewRedisQueue(redisURL, stream, group string) (*RedisQueue, error) {
    opt, err := redis.ParseURL(redisURL)
    if err != nil {
        return nil, fmt.Errorf("parse redis url: %w", err)
    }
    c := redis.NewClient(opt)
    ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
    defer cancel()
    if err := c.Ping(ctx).Err(); err != nil {
        return nil, fmt.Errorf("redis ping: %w", err)
    }
    q := &RedisQueue{
        client:    c,
        Stream:    stream,
        Group:     group,
        CancelKey: stream + ":cancelled",
        DLQStream: stream + ":dlq",
    }
    // MKSTREAM creates the stream if missing
    if err := c.XGroupCreateMkStream(ctx, stream, group, "$").Err(); err != nil && !isBusyGroupErr(err) {
        return nil, fmt.Errorf("xgroup create: %w", err)
    }
    return q, nil
}

func isBusyGroupErr(err error) bool {
    if err == nil { return false }
    return strings.Contains(strings.ToUpper(err.Error()), "BUSYGROUP")
}

func (q *RedisQueue) Close() error { return q.client.Close() }

// Ping checks redis connectivity.
func (q *RedisQueue) Ping(ctx context.Context) error { return q.client.Ping(ctx).Err() }

// Enqueue adds a job to the stream as a single-field entry {data: <json>}.
func (q *RedisQueue) Enqueue(ctx context.Context, job Job) error {
    b, err := json.Marshal(job)
    if err != nil { return err }
    return q.client.XAdd(ctx, &redis.XAddArgs{
        Stream: q.Stream,
        Values: map[string]any{"data": string(b)},
    }).Err()
}

// Dequeue reads one message for consumer, blocking up to timeout. It returns
// an empty message ID when nothing arrived. Callers Ack after processing.
func (q *RedisQueue) Dequeue(ctx context.Context, consumer string, timeout time.Duration) (string, Job, error) {
    res, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
        Group:    q.Group,
        Consumer: consumer,
        Streams:  []string{q.Stream, ">"},
        Count:    1,
        Block:    timeout,
    }).Result()
    if err != nil {
        if errors.Is(err, redis.Nil) { return "", Job{}, nil }
        return "", Job{}, err
    }
    if len(res) == 0 || len(res[0].Messages) == 0 { return "", Job{}, nil }
    msg := res[0].Messages[0]
    job, err := decodeJob(msg.Values["data"])
    if err != nil {
        return msg.ID, Job{}, fmt.Errorf("decode job %s: %w", msg.ID, err)
    }
    return msg.ID, job, nil
}

func decodeJob(v any) (Job, error) {
    var raw []byte
    switch t := v.(type) {
    case string:
        raw = []byte(t)
    case []byte:
        raw = t
    default:
        return Job{}, errors.New("missing data field")
    }
    var job Job
    if err := json.Unmarshal(raw, &job); err != nil { return Job{}, err }
    if job.ID == "" || job.Source == "" { return Job{}, errors.New("job_id and source are required") }
    return job, nil
}

// Ack marks a message as processed.
func (q *RedisQueue) Ack(ctx context.Context, msgID string) error {
    if msgID == "" { return nil }
    return q.client.XAck(ctx, q.Stream, q.Group, msgID).Err()
}

// CancelJob marks a job as cancelled. Workers check this before processing.
func (q *RedisQueue) CancelJob(ctx context.Context, jobID string) error {
    return q.client.SAdd(ctx, q.CancelKey, jobID).Err()
}

// IsCancelled returns true if job is cancelled.
func (q *RedisQueue) IsCancelled(ctx context.Context, jobID string) (bool, error) {
    return q.client.SIsMember(ctx, q.CancelKey, jobID).Result()
}

// AddDLQ pushes a failed job to the DLQ stream with reason.
func (q *RedisQueue) AddDLQ(ctx context.Context, job Job, reason string) error {
    b, err := json.Marshal(job)
    if err != nil { return err }
    return q.client.XAdd(ctx, &redis.XAddArgs{Stream: q.DLQStream, Values: map[string]any{"data": string(b), "reason": reason}}).Err()
}

// Depths returns approximate stream and dlq lengths for metrics.
func (q *RedisQueue) Depths(ctx context.Context) (int64, int64, error) {
    pipe := q.client.Pipeline()
    xlen := pipe.XLen(ctx, q.Stream)
    dxlen := pipe.XLen(ctx, q.DLQStream)
    if _, err := pipe.Exec(ctx); err != nil { return 0, 0, err }
    return xlen.Val(), dxlen.Val(), nil
}
