package dispatcher

import (
    "context"
    "fmt"
    "os"
    "path/filepath"
    "sync"
    "time"

    "github.com/rs/zerolog/log"

    "github.com/local/colorsplit/internal/metrics"
    "github.com/local/colorsplit/internal/queue"
    "github.com/local/colorsplit/internal/splitter"
    "github.com/local/colorsplit/internal/storage"
    "github.com/local/colorsplit/internal/store"
)

type Queue interface {
    Dequeue(ctx context.Context, consumer string, timeout time.Duration) (string, queue.Job, error)
    Ack(ctx context.Context, msgID string) error
    AddDLQ(ctx context.Context, job queue.Job, reason string) error
    IsCancelled(ctx context.Context, jobID string) (bool, error)
}

type StatusStore interface {
    Set(ctx context.Context, jobID string, st store.Status) error
    Transition(ctx context.Context, jobID, from, to, message string) (bool, error)
    SetProgress(ctx context.Context, jobID string, progress int, message string) error
}

type Resolver interface {
    Resolve(ctx context.Context, ref string) (storage.Local, error)
}

type Splitter interface {
    Split(ctx context.Context, job splitter.Job) (*splitter.Outcome, error)
}

type Config struct {
    Concurrency int
    JobTimeout  time.Duration
    ResultDir   string
    TempMaxAge  time.Duration
    PollTimeout time.Duration
}

// Deps are the collaborators a Worker drives. Objects may be nil when S3 is not configured.
type Deps struct {
    Queue    Queue
    Status   StatusStore
    Resolver Resolver
    Splitter Splitter
    Objects  storage.ObjectStore
}

// Worker consumes split jobs from the queue, one document per job.
type Worker struct {
    cfg  Config
    deps Deps
    stop chan struct{}
    wg   sync.WaitGroup
    once sync.Once
}

func New(cfg Config, deps Deps) *Worker {
    if cfg.Concurrency <= 0 { cfg.Concurrency = 2 }
    if cfg.JobTimeout <= 0 { cfg.JobTimeout = 10 * time.Minute }
    if cfg.PollTimeout <= 0 { cfg.PollTimeout = 2 * time.Second }
    if cfg.TempMaxAge <= 0 { cfg.TempMaxAge = time.Hour }
    return &Worker{cfg: cfg, deps: deps, stop: make(chan struct{})}
}

func (w *Worker) Start() {
    host, _ := os.Hostname()
    for i := 0; i < w.cfg.Concurrency; i++ {
        w.wg.Add(1)
        go w.loop(i, fmt.Sprintf("%s-%d", host, i))
    }
}

// Stop signals the loops and waits for in-flight jobs or ctx expiry.
func (w *Worker) Stop(ctx context.Context) error {
    w.once.Do(func() { close(w.stop) })
    done := make(chan struct{})
    go func() { w.wg.Wait(); close(done) }()
    select {
    case <-done:
        return nil
    case <-ctx.Done():
        return ctx.Err()
    }
}

func (w *Worker) loop(id int, consumer string) {
    defer w.wg.Done()
    log.Info().Int("worker", id).Str("consumer", consumer).Msg("split worker started")
    for {
        select {
        case <-w.stop:
            log.Info().Int("worker", id).Msg("split worker stopped")
            return
        default:
        }

        msgID, job, err := w.deps.Queue.Dequeue(context.Background(), consumer, w.cfg.PollTimeout)
        if err != nil {
            log.Error().Err(err).Int("worker", id).Msg("queue dequeue error")
            // undecodable entries are acked so they are not redelivered forever
            if msgID != "" { _ = w.deps.Queue.Ack(context.Background(), msgID) }
            time.Sleep(500 * time.Millisecond)
            continue
        }
        if msgID == "" { continue }

        w.Process(context.Background(), job)
        if err := w.deps.Queue.Ack(context.Background(), msgID); err != nil {
            log.Error().Err(err).Str("job_id", job.ID).Msg("ack failed")
        }
        storage.CleanupTemps("", w.cfg.TempMaxAge)
    }
}

// Process runs one job end to end and records its final status.
func (w *Worker) Process(ctx context.Context, job queue.Job) {
    l := log.With().Str("job_id", job.ID).Str("source", job.Source).Logger()

    if cancelled, _ := w.deps.Queue.IsCancelled(ctx, job.ID); cancelled {
        l.Warn().Msg("job cancelled before processing; skipping")
        w.discard(job)
        return
    }
    // only a queued job may start; /cancel takes the same queued edge
    claimed, err := w.deps.Status.Transition(ctx, job.ID, store.StatusQueued, store.StatusProcessing, "resolving source")
    if err != nil {
        l.Error().Err(err).Msg("status claim failed; processing anyway")
    } else if !claimed {
        l.Warn().Msg("job is no longer queued; skipping")
        w.discard(job)
        return
    }

    start := time.Now()
    w.setStatus(ctx, job.ID, store.Status{
        Status: store.StatusProcessing, Progress: 1, Message: "resolving source",
        Source: job.Source, Duplex: job.Duplex, Start: &start,
    })

    jctx, cancel := context.WithTimeout(ctx, w.cfg.JobTimeout)
    defer cancel()

    res, err := w.run(jctx, job)
    end := time.Now()
    st := store.Status{Source: job.Source, Duplex: job.Duplex, Start: &start, End: &end, Result: res}
    if err != nil {
        reason := classifyError(err)
        l.Error().Err(err).Str("reason", reason).Msg("split job failed")
        metrics.IncSplit(metrics.OutcomeFailed)
        st.Status, st.Message = store.StatusFailed, err.Error()
        if dlqErr := w.deps.Queue.AddDLQ(ctx, job, reason); dlqErr != nil {
            l.Error().Err(dlqErr).Msg("dlq push failed")
        }
    } else {
        st.Status, st.Progress = store.StatusCompleted, 100
        st.Message = "split into color and black-and-white documents"
        outcome := metrics.OutcomeSplit
        if !res.HasColor {
            st.Message = "document is entirely monochrome, no split needed"
            outcome = metrics.OutcomeMonochrome
        }
        metrics.IncSplit(outcome)
        metrics.ObserveSplitDuration(end.Sub(start))
        l.Info().Bool("has_color", res.HasColor).Dur("duration", end.Sub(start)).Msg("split job completed")
    }
    w.finish(ctx, job, st)
}

func (w *Worker) run(ctx context.Context, job queue.Job) (*store.Result, error) {
    src, err := w.deps.Resolver.Resolve(ctx, job.Source)
    if err != nil { return nil, err }
    defer src.Cleanup()

    colorPath, bwPath := storage.LocalResultPaths(job.Source, w.cfg.ResultDir, job.ID)
    if err := os.MkdirAll(filepath.Dir(colorPath), 0o755); err != nil { return nil, err }

    out, err := w.deps.Splitter.Split(ctx, splitter.Job{
        Source: src.Path, ColorPath: colorPath, BWPath: bwPath, Duplex: job.Duplex,
        Observer: &progressObserver{ctx: ctx, status: w.deps.Status, jobID: job.ID},
    })
    if err != nil { return nil, err }

    res := &store.Result{
        HasColor:   out.HasColor,
        TotalPages: out.TotalPages,
        ColorPages: oneBased(out.ColorIndices),
        BWPages:    oneBased(out.BWIndices),
        ColorRef:   out.ColorPath,
        BWRef:      out.BWPath,
        Report:     out.Report,
    }
    if src.Kind != storage.KindS3 || !out.HasColor { return res, nil }

    colorRef, bwRef, err := storage.S3ResultRefs(job.Source)
    if err != nil { return nil, err }
    transfers := []storage.Transfer{{Local: out.ColorPath, Dst: colorRef}}
    if out.BWPath != "" { transfers = append(transfers, storage.Transfer{Local: out.BWPath, Dst: bwRef}) }
    if err := storage.PublishAll(ctx, w.deps.Objects, transfers...); err != nil { return nil, err }
    res.ColorRef = colorRef
    if out.BWPath != "" { res.BWRef = bwRef }
    return res, nil
}

func (w *Worker) finish(ctx context.Context, job queue.Job, st store.Status) {
    w.setStatus(ctx, job.ID, st)
    w.discard(job)
}

// discard drops the uploaded source of a job that will not run again.
func (w *Worker) discard(job queue.Job) {
    if job.Upload { _ = os.Remove(job.Source) }
}

func (w *Worker) setStatus(ctx context.Context, jobID string, st store.Status) {
    if err := w.deps.Status.Set(ctx, jobID, st); err != nil {
        log.Error().Err(err).Str("job_id", jobID).Msg("status update failed")
    }
}

// progressObserver maps classification progress onto 5..90 percent.
type progressObserver struct {
    ctx    context.Context
    status StatusStore
    jobID  string
    mu     sync.Mutex
    done   int
}

func (p *progressObserver) OnEvent(_ context.Context, ev splitter.Event) {
    var progress int
    var msg string
    switch ev.Kind {
    case splitter.EventClassifyStarted:
        progress, msg = 5, fmt.Sprintf("classifying %d pages", ev.Total)
    case splitter.EventPageClassified:
        p.mu.Lock()
        p.done++
        done := p.done
        p.mu.Unlock()
        if ev.Total <= 0 { return }
        progress = 5 + done*85/ev.Total
        msg = fmt.Sprintf("classified page %d of %d", done, ev.Total)
    case splitter.EventPartitionComputed:
        progress, msg = 92, "writing documents"
    default:
        return
    }
    _ = p.status.SetProgress(p.ctx, p.jobID, progress, msg)
}

func oneBased(pages []int) []int {
    out := make([]int, len(pages))
    for i, p := range pages { out[i] = p + 1 }
    return out
}
