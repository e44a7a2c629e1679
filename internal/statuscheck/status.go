package statuscheck

import (
    "context"
    "errors"
    "time"
)

// RedisPinger models the minimal Redis capability we need for status checks.
type RedisPinger interface {
    Ping(ctx context.Context) error
}

// BucketChecker reports whether a bucket is reachable with the configured credentials.
type BucketChecker interface {
    HeadBucket(ctx context.Context, bucket string) error
}

// Checker aggregates health checks for the external dependencies of service mode.
type Checker struct {
    redis    RedisPinger
    objects  BucketChecker
    s3Bucket string
}

// Options configures the Checker. Objects may be nil when S3 is not configured.
type Options struct {
    Redis    RedisPinger
    Objects  BucketChecker
    S3Bucket string
}

// Status represents the readiness of a subsystem.
type Status struct {
    OK      bool   `json:"ok"`
    Message string `json:"message"`
}

// Summary bundles all subsystem statuses.
type Summary struct {
    Redis Status `json:"redis"`
    S3    Status `json:"s3"`
}

// New creates a new Checker with the provided options.
func New(opts Options) *Checker {
    return &Checker{redis: opts.Redis, objects: opts.Objects, s3Bucket: opts.S3Bucket}
}

// Summary returns the current status snapshot.
func (c *Checker) Summary(ctx context.Context) Summary {
    return Summary{
        Redis: c.checkRedis(ctx),
        S3:    c.checkS3(ctx),
    }
}

func (c *Checker) checkRedis(ctx context.Context) Status {
    if c.redis == nil {
        return Status{OK: false, Message: "client unavailable"}
    }
    ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
    defer cancel()
    if err := c.redis.Ping(ctx); err != nil {
        return Status{OK: false, Message: trimError(err)}
    }
    return Status{OK: true, Message: "Connected"}
}

func (c *Checker) checkS3(ctx context.Context) Status {
    if c.objects == nil || c.s3Bucket == "" {
        return Status{OK: false, Message: "Bucket not configured"}
    }
    ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
    defer cancel()
    if err := c.objects.HeadBucket(ctx, c.s3Bucket); err != nil {
        return Status{OK: false, Message: trimError(err)}
    }
    return Status{OK: true, Message: "Connected"}
}

func trimError(err error) string {
    if err == nil {
        return ""
    }
    var netErr interface{ Timeout() bool }
    if errors.As(err, &netErr) && netErr.Timeout() {
        return "timeout"
    }
    msg := err.Error()
    if len(msg) > 120 {
        return msg[:120]
    }
    return msg
}
