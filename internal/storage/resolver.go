package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/local/colorsplit/internal/splitter"
)

// Temp file prefixes; CleanupTemps only touches files carrying them.
const (
	httpTempPrefix = "colorsplit-dl-"
	s3TempPrefix   = "colorsplit-s3-"
)

// Kind reports where a source reference points.
type Kind int

const (
	KindLocal Kind = iota
	KindHTTP
	KindS3
)

// Local is a source materialized on disk. Temp is set when Path is a download
// that the caller must remove with Cleanup.
type Local struct {
	Ref  string
	Kind Kind
	Path string
	Temp bool
}

// Cleanup removes the downloaded copy, if any.
func (l Local) Cleanup() {
	if l.Temp && l.Path != "" {
		_ = os.Remove(l.Path)
	}
}

// Resolver turns file://, http(s):// and s3:// references into local PDF paths.
type Resolver struct {
	Objects ObjectStore // nil disables s3:// sources
	HTTP    *http.Client
	TempDir string // "" uses os.TempDir()
}

// KindOf classifies a reference without touching it.
func KindOf(ref string) Kind {
	switch {
	case strings.HasPrefix(ref, "s3://"):
		return KindS3
	case strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://"):
		return KindHTTP
	default:
		return KindLocal
	}
}

// Resolve returns a local path for ref, downloading remote sources to temp files.
func (r *Resolver) Resolve(ctx context.Context, ref string) (Local, error) {
	if i := strings.Index(ref, "#"); i >= 0 {
		ref = ref[:i]
	}
	if ref == "" {
		return Local{}, fmt.Errorf("%w: empty source reference", splitter.ErrInvalidInput)
	}

	l := Local{Ref: ref, Kind: KindOf(ref)}
	var err error
	switch l.Kind {
	case KindS3:
		l.Path, err = r.downloadS3(ctx, ref)
		l.Temp = err == nil
	case KindHTTP:
		l.Path, err = r.downloadHTTP(ctx, ref)
		l.Temp = err == nil
	default:
		l.Path = strings.TrimPrefix(ref, "file://")
	}
	if err != nil {
		return Local{}, err
	}
	return l, nil
}

func (r *Resolver) downloadHTTP(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", splitter.ErrInvalidInput, err)
	}
	client := r.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("download %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: download %s: http %d", splitter.ErrInvalidInput, url, resp.StatusCode)
	}

	f, err := os.CreateTemp(r.TempDir, httpTempPrefix+"*.pdf")
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("download %s: %w", url, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

func (r *Resolver) downloadS3(ctx context.Context, ref string) (string, error) {
	bucket, key, err := ParseS3URL(ref)
	if err != nil {
		return "", fmt.Errorf("%w: %v", splitter.ErrInvalidInput, err)
	}
	if r.Objects == nil {
		return "", fmt.Errorf("%w: s3 sources are not configured", splitter.ErrInvalidInput)
	}

	f, err := os.CreateTemp(r.TempDir, s3TempPrefix+"*.pdf")
	if err != nil {
		return "", err
	}
	if _, err := r.Objects.Download(ctx, bucket, key, f); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	log.Info().Str("bucket", bucket).Str("key", key).Str("file", filepath.Base(f.Name())).Msg("downloaded s3 pdf to temp")
	return f.Name(), nil
}

// SourceName is the file name a reference carries, used to name results.
func SourceName(ref string) string {
	var name string
	switch KindOf(ref) {
	case KindS3:
		if _, key, err := ParseS3URL(ref); err == nil {
			name = path.Base(key)
		}
	case KindHTTP:
		if u, err := url.Parse(ref); err == nil {
			name = path.Base(u.Path)
		}
	default:
		name = filepath.Base(strings.TrimPrefix(ref, "file://"))
	}
	if name == "" || name == "." || name == "/" {
		return "document.pdf"
	}
	return name
}

// LocalResultPaths places a job's outputs under resultDir/jobID so concurrent
// jobs never collide.
func LocalResultPaths(ref, resultDir, jobID string) (color, bw string) {
	return splitter.OutputPaths(filepath.Join(resultDir, jobID, SourceName(ref)))
}

// S3ResultRefs returns keys next to an s3:// source object.
func S3ResultRefs(ref string) (color, bw string, err error) {
	bucket, key, err := ParseS3URL(ref)
	if err != nil {
		return "", "", err
	}
	ck, bk := splitter.OutputPaths(key)
	return S3URL(bucket, filepath.ToSlash(ck)), S3URL(bucket, filepath.ToSlash(bk)), nil
}
