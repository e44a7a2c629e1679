package store

import (
    "context"
    "encoding/json"
    "fmt"
    "strconv"
    "time"

    redis "github.com/redis/go-redis/v9"
)

// Job states.
const (
    StatusQueued     = "queued"
    StatusProcessing = "processing"
    StatusCompleted  = "completed"
    StatusFailed     = "failed"
    StatusCancelled  = "cancelled"
)

// statusTTL bounds how long finished jobs stay queryable.
const statusTTL = 7 * 24 * time.Hour

// Result is the outcome of a finished split. Page numbers are 1-based.
type Result struct {
    HasColor   bool   `json:"has_color"`
    TotalPages int    `json:"total_pages"`
    ColorPages []int  `json:"color_pages"`
    BWPages    []int  `json:"bw_pages"`
    ColorRef   string `json:"color_ref,omitempty"`
    BWRef      string `json:"bw_ref,omitempty"`
    Report     string `json:"report,omitempty"`
}

type Status struct {
    Status   string     `json:"status"`
    Progress int        `json:"progress"`
    Message  string     `json:"message"`
    Source   string     `json:"source,omitempty"`
    Duplex   bool       `json:"duplex"`
    Start    *time.Time `json:"start_time,omitempty"`
    End      *time.Time `json:"end_time,omitempty"`
    Result   *Result    `json:"result,omitempty"`
}

// Finished reports whether the job reached a terminal state.
func (s Status) Finished() bool {
    return s.Status == StatusCompleted || s.Status == StatusFailed || s.Status == StatusCancelled
}

type RedisStatus struct {
    client *redis.Client
    keyNS  string
}

func NewRedisStatus(redisURL string) (*RedisStatus, error) {
    opt, err := redis.ParseURL(redisURL)
    if err != nil { return nil, fmt.Errorf("parse redis url: %w", err) }
    return newRedisStatus(redis.NewClient(opt))
}

func newRedisStatus(c *redis.Client) (*RedisStatus, error) {
    ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
    defer cancel()
    if err := c.Ping(ctx).Err(); err != nil { return nil, fmt.Errorf("redis ping: %w", err) }
    return &RedisStatus{client: c, keyNS: "colorsplit:job"}, nil
}

func (s *RedisStatus) key(jobID string) string { return fmt.Sprintf("%s:%s:status", s.keyNS, jobID) }

// Set replaces the stored fields of a job status.
func (s *RedisStatus) Set(ctx context.Context, jobID string, st Status) error {
    k := s.key(jobID)
    pipe := s.client.TxPipeline()
    pipe.HSet(ctx, k, encodeStatus(st))
    pipe.Expire(ctx, k, statusTTL)
    _, err := pipe.Exec(ctx)
    return err
}

// transitionScript moves status from ARGV[1] to ARGV[2] only if the stored
// status still equals ARGV[1]. Returns 1 when the move happened.
var transitionScript = redis.NewScript(`
if redis.call('HGET', KEYS[1], 'status') ~= ARGV[1] then
    return 0
end
redis.call('HSET', KEYS[1], 'status', ARGV[2], 'message', ARGV[3])
redis.call('PEXPIRE', KEYS[1], ARGV[4])
return 1
`)

// Transition atomically moves a job from one state to another. It returns
// false without changing anything when the job is missing or not in from.
func (s *RedisStatus) Transition(ctx context.Context, jobID, from, to, message string) (bool, error) {
    n, err := transitionScript.Run(ctx, s.client, []string{s.key(jobID)},
        from, to, message, statusTTL.Milliseconds()).Int()
    if err != nil { return false, fmt.Errorf("status transition %s -> %s: %w", from, to, err) }
    return n == 1, nil
}

// SetProgress updates only progress and message of a running job.
func (s *RedisStatus) SetProgress(ctx context.Context, jobID string, progress int, message string) error {
    return s.client.HSet(ctx, s.key(jobID), "progress", progress, "message", message).Err()
}

func (s *RedisStatus) Get(ctx context.Context, jobID string) (Status, bool, error) {
    res, err := s.client.HGetAll(ctx, s.key(jobID)).Result()
    if err != nil { return Status{}, false, err }
    if len(res) == 0 { return Status{}, false, nil }
    return decodeStatus(res), true, nil
}

func (s *RedisStatus) Close() error { return s.client.Close() }

func encodeStatus(st Status) map[string]interface{} {
    m := map[string]interface{}{
        "status":   st.Status,
        "progress": st.Progress,
        "message":  st.Message,
        "source":   st.Source,
        "duplex":   strconv.FormatBool(st.Duplex),
    }
    if st.Start != nil { m["start"] = st.Start.Format(time.RFC3339Nano) }
    if st.End != nil { m["end"] = st.End.Format(time.RFC3339Nano) }
    if st.Result != nil {
        b, _ := json.Marshal(st.Result)
        m["result"] = string(b)
    }
    return m
}

func decodeStatus(res map[string]string) Status {
    st := Status{
        Status:  res["status"],
        Message: res["message"],
        Source:  res["source"],
    }
    // parse errors leave the zero value
    st.Progress, _ = strconv.Atoi(res["progress"])
    st.Duplex, _ = strconv.ParseBool(res["duplex"])
    if v := res["start"]; v != "" {
        if t, err := time.Parse(time.RFC3339Nano, v); err == nil { st.Start = &t }
    }
    if v := res["end"]; v != "" {
        if t, err := time.Parse(time.RFC3339Nano, v); err == nil { st.End = &t }
    }
    if v := res["result"]; v != "" {
        var r Result
        if json.Unmarshal([]byte(v), &r) == nil { st.Result = &r }
    }
    return st
}
