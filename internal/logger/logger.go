package logger

import (
    "context"
    "encoding/json"
    "fmt"
    "io"
    "os"
    "path/filepath"
    "sync"
    "time"

    "github.com/axiomhq/axiom-go/axiom"
    "github.com/axiomhq/axiom-go/axiom/ingest"
    "github.com/rs/zerolog"
    "github.com/rs/zerolog/log"
    lumberjack "gopkg.in/natefinch/lumberjack.v2"

    "github.com/local/colorsplit/internal/config"
)

// ServiceName tags every forwarded log event.
const ServiceName = "colorsplit"

// Options defines logger initialization parameters.
type Options struct {
    Level      string
    Pretty     bool
    File       string
    MaxSizeMB  int
    MaxBackups int
    MaxAgeDays int
    Compress   bool

    // Console is where console output goes; nil means stdout.
    // The CLI points this at stderr so stdout stays clean for the report.
    Console io.Writer

    // Axiom
    SendToAxiom  bool
    AxiomAPIKey  string
    AxiomOrgID   string
    AxiomDataset string
    AxiomFlush   time.Duration
}

// OptionsFromConfig maps the env-derived sections onto logger options.
func OptionsFromConfig(cfg config.Config) Options {
    return Options{
        Level:        cfg.Logging.Level,
        Pretty:       cfg.Logging.Pretty,
        File:         cfg.Logging.File,
        MaxSizeMB:    cfg.Logging.MaxSizeMB,
        MaxBackups:   cfg.Logging.MaxBackups,
        MaxAgeDays:   cfg.Logging.MaxAgeDays,
        Compress:     cfg.Logging.Compress,
        SendToAxiom:  cfg.Axiom.Send,
        AxiomAPIKey:  cfg.Axiom.APIKey,
        AxiomOrgID:   cfg.Axiom.OrgID,
        AxiomDataset: cfg.Axiom.Dataset,
        AxiomFlush:   cfg.Axiom.FlushInterval,
    }
}

var (
    mu sync.Mutex
    ax *axiomBatcher
)

// Init sets up the global logger: file rotation, console, optional Axiom forwarding.
func Init(opts Options) error {
    if opts.File != "" {
        if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
            return fmt.Errorf("create logs dir: %w", err)
        }
    }

    var writers []io.Writer
    if opts.File != "" {
        writers = append(writers, &lumberjack.Logger{
            Filename:   opts.File,
            MaxSize:    opts.MaxSizeMB,
            MaxBackups: opts.MaxBackups,
            MaxAge:     opts.MaxAgeDays,
            Compress:   opts.Compress,
        })
    }

    console := opts.Console
    if console == nil { console = os.Stdout }
    if opts.Pretty {
        writers = append(writers, zerolog.ConsoleWriter{Out: console, TimeFormat: time.RFC3339})
    } else {
        writers = append(writers, console)
    }

    if opts.SendToAxiom && opts.AxiomAPIKey != "" {
        b, err := newAxiomBatcher(opts.AxiomAPIKey, opts.AxiomOrgID, opts.AxiomDataset, opts.AxiomFlush)
        if err != nil {
            fmt.Fprintf(os.Stderr, "Axiom disabled: %v\n", err)
        } else {
            mu.Lock()
            ax = b
            mu.Unlock()
            writers = append(writers, &axiomWriter{batcher: b})
        }
    }

    zerolog.TimeFieldFormat = time.RFC3339
    lvl, err := zerolog.ParseLevel(opts.Level)
    if err != nil || opts.Level == "" {
        lvl = zerolog.InfoLevel
    }

    log.Logger = zerolog.New(io.MultiWriter(writers...)).Level(lvl).With().Timestamp().Logger()
    return nil
}

// Close flushes buffered external sinks.
func Close() {
    mu.Lock()
    b := ax
    ax = nil
    mu.Unlock()
    if b != nil { b.Close() }
}

// axiomWriter forwards zerolog JSON lines to Axiom, dropping debug level.
type axiomWriter struct{ batcher *axiomBatcher }

func (w *axiomWriter) Write(p []byte) (int, error) {
    ev, keep := axiomEvent(p, time.Now())
    if keep { w.batcher.Send(ev) }
    return len(p), nil
}

// axiomEvent decodes one log line; the bool is false for lines that are not forwarded.
func axiomEvent(p []byte, now time.Time) (axiom.Event, bool) {
    var ev map[string]interface{}
    if err := json.Unmarshal(p, &ev); err != nil {
        ev = map[string]interface{}{"message": string(p), "level": "info"}
    }
    if lvl, ok := ev["level"].(string); ok && (lvl == "debug" || lvl == "trace") {
        return nil, false
    }
    ev["service"] = ServiceName
    if _, ok := ev[ingest.TimestampField]; !ok {
        ev[ingest.TimestampField] = now
    }
    return axiom.Event(ev), true
}

type axiomBatcher struct {
    client  *axiom.Client
    dataset string
    ch      chan axiom.Event
    wg      sync.WaitGroup
    done    chan struct{}
    once    sync.Once
}

func newAxiomBatcher(token, orgID, dataset string, flushEvery time.Duration) (*axiomBatcher, error) {
    if dataset == "" { dataset = "dev_" + ServiceName }
    opts := []axiom.Option{axiom.SetToken(token)}
    if orgID != "" { opts = append(opts, axiom.SetOrganizationID(orgID)) }
    c, err := axiom.NewClient(opts...)
    if err != nil { return nil, err }
    if flushEvery <= 0 { flushEvery = 10 * time.Second }
    b := &axiomBatcher{
        client:  c,
        dataset: dataset,
        ch:      make(chan axiom.Event, 1000),
        done:    make(chan struct{}),
    }
    b.wg.Add(1)
    go b.run(flushEvery)
    return b, nil
}

// Send enqueues an event, dropping it when the buffer is full.
func (b *axiomBatcher) Send(ev axiom.Event) {
    select {
    case b.ch <- ev:
    default:
    }
}

func (b *axiomBatcher) run(flushEvery time.Duration) {
    defer b.wg.Done()
    ticker := time.NewTicker(flushEvery)
    defer ticker.Stop()
    batch := make([]axiom.Event, 0, 200)
    flush := func() {
        if len(batch) == 0 { return }
        ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
        if _, err := b.client.IngestEvents(ctx, b.dataset, batch); err != nil {
            fmt.Fprintf(os.Stderr, "axiom ingest failed: %v\n", err)
        }
        cancel()
        batch = batch[:0]
    }
    for {
        select {
        case <-b.done:
            for {
                select {
                case ev := <-b.ch:
                    batch = append(batch, ev)
                default:
                    flush()
                    return
                }
            }
        case <-ticker.C:
            flush()
        case ev := <-b.ch:
            batch = append(batch, ev)
            if len(batch) >= 200 { flush() }
        }
    }
}

func (b *axiomBatcher) Close() {
    b.once.Do(func() { close(b.done) })
    b.wg.Wait()
}
