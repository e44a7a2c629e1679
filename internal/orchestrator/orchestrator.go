package orchestrator

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "io"
    "net/http"
    "os"
    "path/filepath"
    "strconv"
    "strings"
    "time"

    "github.com/google/uuid"
    "github.com/rs/zerolog/log"

    "github.com/local/colorsplit/internal/metrics"
    "github.com/local/colorsplit/internal/queue"
    "github.com/local/colorsplit/internal/statuscheck"
    "github.com/local/colorsplit/internal/storage"
    "github.com/local/colorsplit/internal/store"
)

type Queue interface {
    Enqueue(ctx context.Context, job queue.Job) error
    CancelJob(ctx context.Context, jobID string) error
    Depths(ctx context.Context) (int64, int64, error)
    Ping(ctx context.Context) error
}

type StatusStore interface {
    Set(ctx context.Context, jobID string, st store.Status) error
    Get(ctx context.Context, jobID string) (store.Status, bool, error)
    Transition(ctx context.Context, jobID, from, to, message string) (bool, error)
}

type Checker interface {
    Summary(ctx context.Context) statuscheck.Summary
}

type Dependencies struct {
    Queue  Queue
    Status StatusStore
    // Checker backs /status; optional.
    Checker Checker
    // ValidatePDF rejects uploads that are not PDFs.
    ValidatePDF func(path string) error
    // PageCount reports the page count of an uploaded PDF; optional.
    PageCount func(path string) (int, error)
    UploadDir     string
    DefaultBucket string // bare keys in file_path resolve to s3://DefaultBucket/<key>
    DefaultDuplex bool
}

type Orchestrator struct {
    deps Dependencies
}

func New(deps Dependencies) *Orchestrator {
    if deps.UploadDir == "" { deps.UploadDir = "uploads" }
    return &Orchestrator{deps: deps}
}

func (o *Orchestrator) RegisterRoutes(mux *http.ServeMux) {
    mux.HandleFunc("/health", o.handleHealth)
    mux.Handle("/metrics", metrics.Handler())
    mux.HandleFunc("/split", o.handleSplit)
    mux.HandleFunc("/split_upload", o.handleSplitUpload)
    mux.HandleFunc("/progress/", o.handleProgress)
    mux.HandleFunc("/download/", o.handleDownload)
    mux.HandleFunc("/cancel", o.handleCancel)
    if o.deps.Checker != nil {
        mux.HandleFunc("/status", o.handleStatus)
    }
}

func (o *Orchestrator) handleStatus(w http.ResponseWriter, r *http.Request) {
    writeJSON(w, http.StatusOK, o.deps.Checker.Summary(r.Context()))
}

type splitReq struct {
    FilePath string `json:"file_path"`
    FileURL  string `json:"file_url"`
    Duplex   *bool  `json:"duplex"`
}

type splitResp struct {
    Status     string `json:"status"`
    JobID      string `json:"job_id"`
    Message    string `json:"message"`
    TotalPages int    `json:"total_pages,omitempty"`
}

func (o *Orchestrator) handleHealth(w http.ResponseWriter, r *http.Request) {
    ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
    defer cancel()
    if err := o.deps.Queue.Ping(ctx); err != nil {
        http.Error(w, "redis unavailable", http.StatusServiceUnavailable); return
    }
    if stream, dlq, err := o.deps.Queue.Depths(ctx); err == nil {
        metrics.SetQueueDepth("stream", stream)
        metrics.SetQueueDepth("dlq", dlq)
    }
    w.WriteHeader(http.StatusOK)
    _, _ = w.Write([]byte("ok"))
}

func (o *Orchestrator) handleSplit(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodPost {
        w.WriteHeader(http.StatusMethodNotAllowed); return
    }
    defer r.Body.Close()
    var req splitReq
    if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
        http.Error(w, "invalid json", http.StatusBadRequest); return
    }

    source := req.FilePath
    if source == "" { source = req.FileURL }
    if source == "" {
        http.Error(w, "missing file_path or file_url", http.StatusBadRequest); return
    }
    source = o.normalizeSource(source)
    duplex := o.deps.DefaultDuplex
    if req.Duplex != nil { duplex = *req.Duplex }

    job := queue.Job{ID: uuid.NewString(), Source: source, Duplex: duplex}
    if !o.enqueue(w, r, job) { return }
    writeJSON(w, http.StatusCreated, splitResp{Status: "ok", JobID: job.ID, Message: "split job created"})
}

// normalizeSource maps bare object keys onto the default bucket.
func (o *Orchestrator) normalizeSource(source string) string {
    if storage.KindOf(source) != storage.KindLocal || strings.HasPrefix(source, "file://") {
        return source
    }
    if o.deps.DefaultBucket == "" || filepath.IsAbs(source) { return source }
    return storage.S3URL(o.deps.DefaultBucket, strings.TrimLeft(source, "/"))
}

// handleSplitUpload accepts a multipart PDF upload (field "file", optional "duplex").
func (o *Orchestrator) handleSplitUpload(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodPost { w.WriteHeader(http.StatusMethodNotAllowed); return }
    if err := r.ParseMultipartForm(64 << 20); err != nil {
        http.Error(w, "invalid multipart form", http.StatusBadRequest); return
    }
    file, hdr, err := r.FormFile("file")
    if err != nil { http.Error(w, "missing file", http.StatusBadRequest); return }
    defer file.Close()

    duplex := o.deps.DefaultDuplex
    if v := r.FormValue("duplex"); v != "" {
        b, err := strconv.ParseBool(v)
        if err != nil && v != "on" { http.Error(w, "invalid duplex value", http.StatusBadRequest); return }
        duplex = b || v == "on"
    }

    if err := os.MkdirAll(o.deps.UploadDir, 0o755); err != nil {
        http.Error(w, "cannot create upload dir", http.StatusInternalServerError); return
    }
    jobID := uuid.NewString()
    name := filepath.Base(hdr.Filename)
    if name == "" || name == "." || name == "/" { name = "upload.pdf" }
    localPath := filepath.Join(o.deps.UploadDir, jobID+"_"+name)
    if err := saveUpload(localPath, file); err != nil {
        log.Error().Err(err).Str("path", localPath).Msg("save upload failed")
        http.Error(w, "cannot save upload", http.StatusInternalServerError); return
    }

    if o.deps.ValidatePDF != nil {
        if err := o.deps.ValidatePDF(localPath); err != nil {
            _ = os.Remove(localPath)
            http.Error(w, err.Error(), http.StatusUnsupportedMediaType); return
        }
    }
    resp := splitResp{Status: "ok", JobID: jobID, Message: "upload job created"}
    if o.deps.PageCount != nil {
        n, err := o.deps.PageCount(localPath)
        if err != nil {
            _ = os.Remove(localPath)
            http.Error(w, fmt.Sprintf("unreadable pdf: %v", err), http.StatusUnprocessableEntity); return
        }
        resp.TotalPages = n
    }

    job := queue.Job{ID: jobID, Source: localPath, Duplex: duplex, Upload: true}
    if !o.enqueue(w, r, job) {
        _ = os.Remove(localPath)
        return
    }
    writeJSON(w, http.StatusCreated, resp)
}

func saveUpload(path string, src io.Reader) error {
    out, err := os.Create(path)
    if err != nil { return err }
    if _, err := io.Copy(out, src); err != nil {
        out.Close()
        os.Remove(path)
        return err
    }
    return out.Close()
}

// enqueue records the queued status and pushes the job. It writes the error response itself.
func (o *Orchestrator) enqueue(w http.ResponseWriter, r *http.Request, job queue.Job) bool {
    now := time.Now()
    job.EnqueuedAt = now
    log.Info().Str("job_id", job.ID).Str("source", job.Source).Bool("duplex", job.Duplex).Msg("job created")
    if err := o.deps.Status.Set(r.Context(), job.ID, store.Status{
        Status: store.StatusQueued, Message: "queued", Source: job.Source, Duplex: job.Duplex, Start: &now,
    }); err != nil {
        log.Error().Err(err).Str("job_id", job.ID).Msg("status init failed")
        http.Error(w, "status store unavailable", http.StatusServiceUnavailable)
        return false
    }
    if err := o.deps.Queue.Enqueue(r.Context(), job); err != nil {
        log.Error().Err(err).Str("job_id", job.ID).Msg("enqueue failed")
        http.Error(w, "queue unavailable", http.StatusServiceUnavailable)
        return false
    }
    return true
}

func (o *Orchestrator) handleProgress(w http.ResponseWriter, r *http.Request) {
    id := strings.TrimPrefix(r.URL.Path, "/progress/")
    st, ok, err := o.deps.Status.Get(r.Context(), id)
    if err != nil { http.Error(w, "error", http.StatusInternalServerError); return }
    if !ok {
        http.Error(w, "not found", http.StatusNotFound); return
    }
    body := map[string]any{
        "success":    st.Status == store.StatusCompleted,
        "job_id":     id,
        "status":     st.Status,
        "progress":   st.Progress,
        "message":    st.Message,
        "duplex":     st.Duplex,
        "start_time": st.Start,
        "end_time":   st.End,
    }
    if res := st.Result; res != nil {
        body["has_color"] = res.HasColor
        body["total_pages"] = res.TotalPages
        body["color_pages"] = res.ColorPages
        body["bw_pages"] = res.BWPages
        body["report"] = res.Report
        if res.ColorRef != "" { body["color_ref"] = res.ColorRef }
        if res.BWRef != "" { body["bw_ref"] = res.BWRef }
    }
    writeJSON(w, http.StatusOK, body)
}

// handleDownload serves /download/{job_id}/{color|bw} for results kept on local disk.
func (o *Orchestrator) handleDownload(w http.ResponseWriter, r *http.Request) {
    id, part, _ := strings.Cut(strings.TrimPrefix(r.URL.Path, "/download/"), "/")
    if id == "" || (part != "color" && part != "bw") {
        http.Error(w, "expected /download/{job_id}/{color|bw}", http.StatusBadRequest); return
    }
    st, ok, err := o.deps.Status.Get(r.Context(), id)
    if err != nil || !ok { http.Error(w, "not found", http.StatusNotFound); return }
    if st.Status != store.StatusCompleted || st.Result == nil {
        http.Error(w, "not ready", http.StatusAccepted); return
    }
    ref := st.Result.ColorRef
    if part == "bw" { ref = st.Result.BWRef }
    if ref == "" { http.Error(w, "no "+part+" document for this job", http.StatusNotFound); return }
    if storage.KindOf(ref) == storage.KindS3 {
        http.Error(w, "result stored at "+ref, http.StatusConflict); return
    }
    f, err := os.Open(ref)
    if err != nil {
        if errors.Is(err, os.ErrNotExist) { http.Error(w, "result expired", http.StatusGone); return }
        http.Error(w, "failed to read", http.StatusInternalServerError); return
    }
    defer f.Close()
    w.Header().Set("Content-Type", "application/pdf")
    w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(ref)))
    http.ServeContent(w, r, filepath.Base(ref), time.Time{}, f)
}

type cancelReq struct {
    JobID  string `json:"job_id"`
    Reason string `json:"reason,omitempty"`
}

func (o *Orchestrator) handleCancel(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodPost { w.WriteHeader(http.StatusMethodNotAllowed); return }
    var req cancelReq
    if err := json.NewDecoder(r.Body).Decode(&req); err != nil { http.Error(w, "invalid json", http.StatusBadRequest); return }
    if req.JobID == "" { http.Error(w, "missing job_id", http.StatusBadRequest); return }

    msg := "Cancelled"
    if req.Reason != "" { msg = "Cancelled: " + req.Reason }
    // running jobs cannot be interrupted; only a job still queued can move to cancelled
    moved, err := o.deps.Status.Transition(r.Context(), req.JobID, store.StatusQueued, store.StatusCancelled, msg)
    if err != nil { http.Error(w, "error", http.StatusInternalServerError); return }
    if !moved {
        st, ok, err := o.deps.Status.Get(r.Context(), req.JobID)
        if err != nil { http.Error(w, "error", http.StatusInternalServerError); return }
        if !ok { http.Error(w, "not found", http.StatusNotFound); return }
        http.Error(w, "job already "+st.Status, http.StatusConflict); return
    }
    if err := o.deps.Queue.CancelJob(r.Context(), req.JobID); err != nil {
        log.Error().Err(err).Str("job_id", req.JobID).Msg("cancel set update failed")
    }
    if st, ok, err := o.deps.Status.Get(r.Context(), req.JobID); err == nil && ok {
        now := time.Now()
        st.End = &now
        _ = o.deps.Status.Set(r.Context(), req.JobID, st)
    }
    writeJSON(w, http.StatusOK, map[string]any{"success": true, "job_id": req.JobID, "status": store.StatusCancelled})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
    w.Header().Set("Content-Type", "application/json")
    w.WriteHeader(code)
    _ = json.NewEncoder(w).Encode(v)
}
