package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/local/colorsplit/internal/queue"
	"github.com/local/colorsplit/internal/statuscheck"
	"github.com/local/colorsplit/internal/store"
)

var cmpIgnoreEnqueuedAt = cmpopts.IgnoreFields(queue.Job{}, "EnqueuedAt")

type fakeQueue struct {
	mu         sync.Mutex
	jobs       []queue.Job
	cancelled  []string
	enqueueErr error
	pingErr    error
}

func (q *fakeQueue) Enqueue(_ context.Context, job queue.Job) error {
	if q.enqueueErr != nil {
		return q.enqueueErr
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *fakeQueue) CancelJob(_ context.Context, jobID string) error {
	q.cancelled = append(q.cancelled, jobID)
	return nil
}

func (q *fakeQueue) Depths(context.Context) (int64, int64, error) { return int64(len(q.jobs)), 0, nil }
func (q *fakeQueue) Ping(context.Context) error                  { return q.pingErr }

type memStatus struct {
	mu sync.Mutex
	m  map[string]store.Status
}

func newMemStatus() *memStatus { return &memStatus{m: map[string]store.Status{}} }

func (s *memStatus) Set(_ context.Context, id string, st store.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[id] = st
	return nil
}

func (s *memStatus) Get(_ context.Context, id string) (store.Status, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.m[id]
	return st, ok, nil
}

func (s *memStatus) Transition(_ context.Context, id, from, to, message string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.m[id]
	if !ok || st.Status != from {
		return false, nil
	}
	st.Status, st.Message = to, message
	s.m[id] = st
	return true, nil
}

func newTestServer(t *testing.T, deps Dependencies) (*httptest.Server, *fakeQueue, *memStatus) {
	t.Helper()
	q, ok := deps.Queue.(*fakeQueue)
	if !ok {
		q = &fakeQueue{}
		deps.Queue = q
	}
	st := newMemStatus()
	deps.Status = st
	mux := http.NewServeMux()
	New(deps).RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, q, st
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	b, _ := json.Marshal(body)
	resp, err := http.Post(url, "application/json", bytes.NewReader(b))
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func TestSplit_EnqueuesJob(t *testing.T) {
	srv, q, st := newTestServer(t, Dependencies{DefaultBucket: "docs", DefaultDuplex: true})

	tests := []struct {
		name       string
		body       map[string]any
		wantSource string
		wantDuplex bool
	}{
		{"bare key uses default bucket", map[string]any{"file_path": "in/a.pdf"}, "s3://docs/in/a.pdf", true},
		{"url kept", map[string]any{"file_url": "https://example.com/b.pdf", "duplex": false}, "https://example.com/b.pdf", false},
		{"absolute path kept", map[string]any{"file_path": "/data/c.pdf"}, "/data/c.pdf", true},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postJSON(t, srv.URL+"/split", tt.body)
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusCreated {
				t.Fatalf("status = %d", resp.StatusCode)
			}
			var out splitResp
			if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
				t.Fatal(err)
			}
			job := q.jobs[i]
			if job.ID != out.JobID || job.Source != tt.wantSource || job.Duplex != tt.wantDuplex {
				t.Errorf("job = %+v, response = %+v", job, out)
			}
			if got := st.m[out.JobID].Status; got != store.StatusQueued {
				t.Errorf("status = %q, want queued", got)
			}
		})
	}
}

func TestSplit_BadRequests(t *testing.T) {
	srv, _, _ := newTestServer(t, Dependencies{})

	resp := postJSON(t, srv.URL+"/split", map[string]any{})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("missing source: status = %d", resp.StatusCode)
	}

	resp, err := http.Get(srv.URL + "/split")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("GET: status = %d", resp.StatusCode)
	}
}

func TestSplit_QueueUnavailable(t *testing.T) {
	srv, _, _ := newTestServer(t, Dependencies{Queue: &fakeQueue{enqueueErr: errors.New("down")}})
	resp := postJSON(t, srv.URL+"/split", map[string]any{"file_path": "/a.pdf"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}
}

func uploadRequest(t *testing.T, url, filename string, content []byte, fields map[string]string) *http.Request {
	t.Helper()
	var b bytes.Buffer
	mw := multipart.NewWriter(&b)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	fw.Write(content)
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	mw.Close()
	req, _ := http.NewRequest(http.MethodPost, url, &b)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestSplitUpload(t *testing.T) {
	dir := t.TempDir()
	srv, q, _ := newTestServer(t, Dependencies{
		UploadDir:   dir,
		ValidatePDF: func(string) error { return nil },
		PageCount:   func(string) (int, error) { return 4, nil },
	})

	req := uploadRequest(t, srv.URL+"/split_upload", "scan.pdf", []byte("%PDF-1.4"), map[string]string{"duplex": "false"})
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var out splitResp
	json.NewDecoder(resp.Body).Decode(&out)
	if out.TotalPages != 4 {
		t.Errorf("total_pages = %d, want 4", out.TotalPages)
	}

	job := q.jobs[0]
	want := queue.Job{ID: out.JobID, Source: filepath.Join(dir, out.JobID+"_scan.pdf"), Duplex: false, Upload: true}
	if diff := cmp.Diff(want, job, cmpIgnoreEnqueuedAt); diff != "" {
		t.Errorf("job mismatch (-want +got):\n%s", diff)
	}
	if _, err := os.Stat(job.Source); err != nil {
		t.Errorf("Expected upload saved: %v", err)
	}
}

func TestSplitUpload_RejectsNonPDF(t *testing.T) {
	dir := t.TempDir()
	srv, q, _ := newTestServer(t, Dependencies{
		UploadDir:   dir,
		ValidatePDF: func(string) error { return errors.New("unsupported file type: text/plain") },
	})

	resp, err := http.DefaultClient.Do(uploadRequest(t, srv.URL+"/split_upload", "notes.txt", []byte("hello"), nil))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnsupportedMediaType {
		t.Errorf("status = %d, want 415", resp.StatusCode)
	}
	if len(q.jobs) != 0 {
		t.Error("Expected no job enqueued")
	}
	if entries, _ := os.ReadDir(dir); len(entries) != 0 {
		t.Errorf("Expected rejected upload removed, found %d files", len(entries))
	}
}

func TestProgress(t *testing.T) {
	srv, _, st := newTestServer(t, Dependencies{})
	st.m["j1"] = store.Status{
		Status: store.StatusCompleted, Progress: 100, Duplex: true,
		Result: &store.Result{HasColor: true, TotalPages: 4, ColorPages: []int{1, 2}, BWPages: []int{3, 4}, ColorRef: "/r/a_color.pdf"},
	}

	resp, err := http.Get(srv.URL + "/progress/j1")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var body struct {
		Success    bool   `json:"success"`
		Status     string `json:"status"`
		HasColor   bool   `json:"has_color"`
		ColorPages []int  `json:"color_pages"`
		BWPages    []int  `json:"bw_pages"`
		BWRef      string `json:"bw_ref"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if !body.Success || !body.HasColor || body.Status != store.StatusCompleted {
		t.Errorf("body = %+v", body)
	}
	if diff := cmp.Diff([]int{1, 2}, body.ColorPages); diff != "" {
		t.Errorf("color_pages mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{3, 4}, body.BWPages); diff != "" {
		t.Errorf("bw_pages mismatch (-want +got):\n%s", diff)
	}

	resp2, _ := http.Get(srv.URL + "/progress/missing")
	resp2.Body.Close()
	if resp2.StatusCode != http.StatusNotFound {
		t.Errorf("missing job: status = %d", resp2.StatusCode)
	}
}

func TestDownload(t *testing.T) {
	dir := t.TempDir()
	colorPath := filepath.Join(dir, "a_color.pdf")
	os.WriteFile(colorPath, []byte("%PDF color"), 0o644)

	srv, _, st := newTestServer(t, Dependencies{})
	st.m["done"] = store.Status{Status: store.StatusCompleted, Result: &store.Result{HasColor: true, ColorRef: colorPath}}
	st.m["s3"] = store.Status{Status: store.StatusCompleted, Result: &store.Result{HasColor: true, ColorRef: "s3://b/a_color.pdf"}}
	st.m["running"] = store.Status{Status: store.StatusProcessing}

	tests := []struct {
		path     string
		wantCode int
		wantBody string
	}{
		{"/download/done/color", http.StatusOK, "%PDF color"},
		{"/download/done/bw", http.StatusNotFound, ""},
		{"/download/done/other", http.StatusBadRequest, ""},
		{"/download/s3/color", http.StatusConflict, ""},
		{"/download/running/color", http.StatusAccepted, ""},
		{"/download/missing/color", http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := http.Get(srv.URL + tt.path)
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != tt.wantCode {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.wantCode)
			}
			if tt.wantBody != "" {
				var b bytes.Buffer
				b.ReadFrom(resp.Body)
				if b.String() != tt.wantBody {
					t.Errorf("body = %q, want %q", b.String(), tt.wantBody)
				}
				if ct := resp.Header.Get("Content-Type"); ct != "application/pdf" {
					t.Errorf("Content-Type = %q", ct)
				}
			}
		})
	}
}

func TestCancel(t *testing.T) {
	srv, q, st := newTestServer(t, Dependencies{})
	st.m["queued"] = store.Status{Status: store.StatusQueued}
	st.m["running"] = store.Status{Status: store.StatusProcessing}

	resp := postJSON(t, srv.URL+"/cancel", cancelReq{JobID: "queued", Reason: "user request"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if got := st.m["queued"]; got.Status != store.StatusCancelled || !strings.Contains(got.Message, "user request") {
		t.Errorf("status = %+v", got)
	}
	if diff := cmp.Diff([]string{"queued"}, q.cancelled); diff != "" {
		t.Errorf("cancelled mismatch (-want +got):\n%s", diff)
	}

	resp = postJSON(t, srv.URL+"/cancel", cancelReq{JobID: "running"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("running job: status = %d, want 409", resp.StatusCode)
	}
}

func TestCancel_AfterWorkerClaim(t *testing.T) {
	srv, q, st := newTestServer(t, Dependencies{})
	st.m["j1"] = store.Status{Status: store.StatusQueued, Source: "/in/a.pdf"}

	// the worker claims the job between the client's read and its cancel
	if ok, _ := st.Transition(context.Background(), "j1", store.StatusQueued, store.StatusProcessing, "resolving source"); !ok {
		t.Fatal("claim failed")
	}
	resp := postJSON(t, srv.URL+"/cancel", cancelReq{JobID: "j1"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("status = %d, want 409", resp.StatusCode)
	}
	want := store.Status{Status: store.StatusProcessing, Message: "resolving source", Source: "/in/a.pdf"}
	if diff := cmp.Diff(want, st.m["j1"]); diff != "" {
		t.Errorf("running job status overwritten (-want +got):\n%s", diff)
	}
	if len(q.cancelled) != 0 {
		t.Errorf("Expected no cancel marker for a running job, got %v", q.cancelled)
	}
}

func TestCancel_RacesWithClaim(t *testing.T) {
	srv, _, st := newTestServer(t, Dependencies{})
	st.m["j2"] = store.Status{Status: store.StatusQueued}

	var wg sync.WaitGroup
	var claimed bool
	var code int
	wg.Add(2)
	go func() {
		defer wg.Done()
		claimed, _ = st.Transition(context.Background(), "j2", store.StatusQueued, store.StatusProcessing, "resolving source")
	}()
	go func() {
		defer wg.Done()
		b, _ := json.Marshal(cancelReq{JobID: "j2"})
		resp, err := http.Post(srv.URL+"/cancel", "application/json", bytes.NewReader(b))
		if err != nil {
			t.Error(err)
			return
		}
		resp.Body.Close()
		code = resp.StatusCode
	}()
	wg.Wait()

	final := st.m["j2"].Status
	switch {
	case claimed && code == http.StatusConflict && final == store.StatusProcessing:
	case !claimed && code == http.StatusOK && final == store.StatusCancelled:
	default:
		t.Errorf("claimed=%v cancel=%d final=%q: exactly one side must win", claimed, code, final)
	}
}

func TestCancel_Unknown(t *testing.T) {
	srv, _, _ := newTestServer(t, Dependencies{})
	resp := postJSON(t, srv.URL+"/cancel", cancelReq{JobID: "missing"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestHealth(t *testing.T) {
	srv, _, _ := newTestServer(t, Dependencies{})
	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}

	down, _, _ := newTestServer(t, Dependencies{Queue: &fakeQueue{pingErr: errors.New("down")}})
	resp, err = http.Get(down.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}
}

type staticChecker struct{ s statuscheck.Summary }

func (c staticChecker) Summary(context.Context) statuscheck.Summary { return c.s }

func TestStatusEndpoint(t *testing.T) {
	want := statuscheck.Summary{Redis: statuscheck.Status{OK: true, Message: "Connected"}, S3: statuscheck.Status{Message: "Bucket not configured"}}
	srv, _, _ := newTestServer(t, Dependencies{Checker: staticChecker{s: want}})

	resp, err := http.Get(srv.URL + "/status")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var got statuscheck.Summary
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("summary mismatch (-want +got):\n%s", diff)
	}
}
