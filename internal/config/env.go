package config

import (
    "os"
    "strconv"
    "strings"
    "time"

    "github.com/joho/godotenv"
)

// LoggingConfig holds logging-related configuration.
type LoggingConfig struct {
    Level        string
    Pretty       bool
    File         string
    MaxSizeMB    int
    MaxBackups   int
    MaxAgeDays   int
    Compress     bool
}

// AxiomConfig holds Axiom logging configuration.
type AxiomConfig struct {
    Send          bool
    APIKey        string
    OrgID         string
    Dataset       string
    FlushInterval time.Duration
}

// SplitConfig tunes classification and pairing.
type SplitConfig struct {
    SaturationThreshold    float64
    ColorFractionThreshold float64
    RenderDPI              float64
    Duplex                 bool
    ClassifyWorkers        int
}

// WorkerConfig defines service worker behavior and limits.
type WorkerConfig struct {
    Concurrency int
    JobTimeout  time.Duration
}

// QueueConfig defines queue connectivity and names.
type QueueConfig struct {
    RedisURL     string
    Stream       string
    Group        string
    PollInterval time.Duration
}

// StorageConfig defines where sources come from and results go to.
type StorageConfig struct {
    Bucket       string
    Region       string
    Endpoint     string // S3-compatible endpoint; empty uses AWS
    AccessKey    string
    SecretKey    string
    UploadDir    string
    ResultDir    string
    TempMaxAge   time.Duration
}

// ServerConfig holds HTTP settings.
type ServerConfig struct {
    Port            string
    ShutdownTimeout time.Duration
}

// Config is the top-level configuration.
type Config struct {
    Logging LoggingConfig
    Axiom   AxiomConfig
    Split   SplitConfig
    Worker  WorkerConfig
    Queue   QueueConfig
    Storage StorageConfig
    Server  ServerConfig
}

// LoadDotEnv loads variables from the given .env files (default ".env") without
// overriding ones already set. Missing files are not an error.
func LoadDotEnv(files ...string) error {
    if len(files) == 0 { files = []string{".env"} }
    var existing []string
    for _, f := range files {
        if _, err := os.Stat(f); err == nil { existing = append(existing, f) }
    }
    if len(existing) == 0 { return nil }
    return godotenv.Load(existing...)
}

// FromEnv loads configuration from environment with sensible defaults.
func FromEnv() Config {
    cfg := Config{}

    // Logging defaults
    cfg.Logging = LoggingConfig{
        Level:      getEnv("LOG_LEVEL", "info"),
        Pretty:     parseBool(getEnv("LOG_PRETTY", devDefaultPretty())),
        File:       getEnv("LOG_FILE", ""),
        MaxSizeMB:  parseInt(getEnv("LOG_MAX_SIZE_MB", "100"), 100),
        MaxBackups: parseInt(getEnv("LOG_MAX_BACKUPS", "10"), 10),
        MaxAgeDays: parseInt(getEnv("LOG_MAX_AGE_DAYS", "30"), 30),
        Compress:   parseBool(getEnv("LOG_COMPRESS", "true")),
    }

    // Axiom defaults
    baseDataset := getEnv("AXIOM_DATASET", "dev")
    cfg.Axiom = AxiomConfig{
        Send:          parseBool(getEnv("SEND_LOGS_TO_AXIOM", "0")),
        APIKey:        getEnv("AXIOM_API_KEY", ""),
        OrgID:         getEnv("AXIOM_ORG_ID", ""),
        Dataset:       baseDataset + "_colorsplit",
        FlushInterval: parseDuration(getEnv("AXIOM_FLUSH_INTERVAL", "10s"), 10*time.Second),
    }

    // Split defaults; thresholds must stay at 0.35 / 0.001 unless tuned on purpose
    cfg.Split = SplitConfig{
        SaturationThreshold:    parseFloat(getEnv("SATURATION_THRESHOLD", "0.35"), 0.35),
        ColorFractionThreshold: parseFloat(getEnv("COLOR_FRACTION_THRESHOLD", "0.001"), 0.001),
        RenderDPI:              parseFloat(getEnv("RENDER_DPI", "72"), 72),
        Duplex:                 parseBool(getEnv("DUPLEX", "true")),
        ClassifyWorkers:        parseInt(getEnv("CLASSIFY_WORKERS", "1"), 1),
    }

    // Worker defaults
    cfg.Worker = WorkerConfig{
        Concurrency: parseInt(getEnv("WORKER_CONCURRENCY", "2"), 2),
        JobTimeout:  parseDuration(getEnv("JOB_TIMEOUT", "10m"), 10*time.Minute),
    }

    // Queue defaults
    cfg.Queue = QueueConfig{
        RedisURL:     getEnv("REDIS_URL", "redis://localhost:6379"),
        Stream:       getEnv("QUEUE_STREAM", "jobs:colorsplit"),
        Group:        getEnv("QUEUE_GROUP", "workers:colorsplit"),
        PollInterval: parseDuration(getEnv("QUEUE_POLL_INTERVAL", "2s"), 2*time.Second),
    }

    cfg.Storage = StorageConfig{
        Bucket:     getEnv("AWS_S3_BUCKET", ""),
        Region:     getEnv("AWS_REGION", ""),
        Endpoint:   getEnv("AWS_ENDPOINT_URL", ""),
        AccessKey:  getEnv("AWS_ACCESS_KEY_ID", ""),
        SecretKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
        UploadDir:  getEnv("UPLOAD_DIR", "uploads"),
        ResultDir:  getEnv("RESULT_DIR", "uploads/results"),
        TempMaxAge: parseDuration(getEnv("TEMP_MAX_AGE", "1h"), time.Hour),
    }

    cfg.Server = ServerConfig{
        Port:            getEnv("PORT", "8080"),
        ShutdownTimeout: parseDuration(getEnv("SHUTDOWN_TIMEOUT", "10s"), 10*time.Second),
    }

    return cfg
}

// Helpers
func getEnv(key, def string) string {
    if v := os.Getenv(key); v != "" {
        return v
    }
    return def
}

func parseInt(s string, def int) int {
    if s == "" { return def }
    if n, err := strconv.Atoi(s); err == nil { return n }
    return def
}

func parseFloat(s string, def float64) float64 {
    if s == "" { return def }
    if f, err := strconv.ParseFloat(s, 64); err == nil { return f }
    return def
}

func parseBool(s string) bool {
    v := strings.ToLower(strings.TrimSpace(s))
    return v == "1" || v == "true" || v == "yes" || v == "on"
}

func parseDuration(s string, def time.Duration) time.Duration {
    if s == "" { return def }
    if d, err := time.ParseDuration(s); err == nil { return d }
    return def
}

func devDefaultPretty() string {
    env := strings.ToLower(os.Getenv("ENVIRONMENT"))
    if env == "dev" || env == "development" || env == "local" || env == "" { return "true" }
    return "false"
}
