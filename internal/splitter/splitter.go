package splitter

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Assembler writes a new document made of the given pages of src, in the given order.
type Assembler interface {
	Assemble(ctx context.Context, src, dst string, pages []int) error
}

// Options configures a Splitter.
type Options struct {
	// Thresholds defaults to DefaultThresholds when nil. A non-nil value is
	// used as given, zero fields included.
	Thresholds *Thresholds
	Workers    int
	Observer   Observer
}

// Job describes one split operation. Empty output paths default to OutputPaths(Source).
type Job struct {
	Source    string
	ColorPath string
	BWPath    string
	Duplex    bool

	// Observer receives this job's events after the splitter-wide observer.
	Observer Observer
}

// Outcome is the result of a Split. ColorPath and BWPath are empty when no
// split was needed; BWPath is also empty when every page is color.
type Outcome struct {
	Result
	TotalPages  int
	DirectColor []int
	ColorPath   string
	BWPath      string
	Report      string
	Duration    time.Duration
}

// Splitter runs the classify, pair, partition and assemble pipeline for one job at a time.
// It holds no per-job state and may be shared across goroutines.
type Splitter struct {
	opener     Opener
	assembler  Assembler
	opts       Options
	thresholds Thresholds
}

// New returns a Splitter.
func New(opener Opener, assembler Assembler, opts Options) *Splitter {
	th := DefaultThresholds()
	if opts.Thresholds != nil {
		th = *opts.Thresholds
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	return &Splitter{opener: opener, assembler: assembler, opts: opts, thresholds: th}
}

// Split classifies job.Source and, if any page is color, writes the two output documents.
// Nothing is written unless classification and partitioning succeed for every page.
func (s *Splitter) Split(ctx context.Context, job Job) (*Outcome, error) {
	start := time.Now()
	obs := observerOrNop(s.opts.Observer)
	if job.Observer != nil {
		obs = Observers{obs, job.Observer}
	}

	if err := s.prepare(&job); err != nil {
		return nil, err
	}

	doc, err := s.opener.Open(job.Source)
	if err != nil {
		if errors.Is(err, ErrInvalidInput) {
			return nil, err
		}
		return nil, invalidInput("open %s: %v", job.Source, err)
	}
	defer doc.Close()

	total := doc.NumPage()
	classifier := &PageClassifier{
		Thresholds: s.thresholds,
		Workers:    s.opts.Workers,
		Observer:   withSource(obs, job.Source),
	}
	direct, err := classifier.Classify(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("classify %s: %w", job.Source, err)
	}

	color := ExpandDuplex(direct, total, job.Duplex)
	if job.Duplex {
		obs.OnEvent(ctx, Event{Kind: EventPairsExpanded, Source: job.Source, Total: total,
			Pages: added(direct, color)})
	}

	res := Partition(color, total)
	obs.OnEvent(ctx, Event{Kind: EventPartitionComputed, Source: job.Source, Total: total,
		Color: res.HasColor, Pages: res.ColorIndices})

	out := &Outcome{Result: res, TotalPages: total, DirectColor: direct.Sorted()}
	if !res.HasColor {
		obs.OnEvent(ctx, Event{Kind: EventNoSplitNeeded, Source: job.Source, Total: total,
			Message: "document is entirely monochrome, no split needed"})
		out.Duration = time.Since(start)
		return out, nil
	}

	bwWritten, err := s.write(ctx, job, res)
	if err != nil {
		return nil, err
	}
	out.ColorPath = job.ColorPath
	if bwWritten {
		out.BWPath = job.BWPath
	}
	out.Report = FormatReport(res, total, job.Duplex)
	out.Duration = time.Since(start)
	obs.OnEvent(ctx, Event{Kind: EventDocumentsWritten, Source: job.Source, Total: total,
		Message: fmt.Sprintf("color: %s, bw: %s", out.ColorPath, out.BWPath)})
	return out, nil
}

// prepare validates the job and fills default output paths.
func (s *Splitter) prepare(job *Job) error {
	if job.Source == "" {
		return invalidInput("no source document given")
	}
	info, err := os.Stat(job.Source)
	if err != nil {
		return invalidInput("%v", err)
	}
	if info.IsDir() {
		return invalidInput("%s is a directory", job.Source)
	}
	colorPath, bwPath := OutputPaths(job.Source)
	if job.ColorPath == "" {
		job.ColorPath = colorPath
	}
	if job.BWPath == "" {
		job.BWPath = bwPath
	}
	if samePath(job.ColorPath, job.BWPath) || samePath(job.ColorPath, job.Source) || samePath(job.BWPath, job.Source) {
		return invalidInput("output paths must differ from each other and from the source")
	}
	return nil
}

// write assembles both outputs. A failure on the second removes the first.
// A document with no monochrome page gets no bw output; a zero-page PDF is not a valid document.
func (s *Splitter) write(ctx context.Context, job Job, res Result) (bool, error) {
	if err := s.assembler.Assemble(ctx, job.Source, job.ColorPath, res.ColorIndices); err != nil {
		return false, &AssembleError{Path: job.ColorPath, Err: err}
	}
	if len(res.BWIndices) == 0 {
		return false, nil
	}
	if err := s.assembler.Assemble(ctx, job.Source, job.BWPath, res.BWIndices); err != nil {
		_ = os.Remove(job.ColorPath)
		return false, &AssembleError{Path: job.BWPath, Err: err}
	}
	return true, nil
}

func samePath(a, b string) bool {
	return filepath.Clean(a) == filepath.Clean(b)
}

// added lists the members of after missing from before, ascending.
func added(before, after PageSet) []int {
	var out []int
	for _, p := range after.Sorted() {
		if !before.Has(p) {
			out = append(out, p)
		}
	}
	return out
}

func withSource(obs Observer, source string) Observer {
	return ObserverFunc(func(ctx context.Context, ev Event) {
		ev.Source = source
		obs.OnEvent(ctx, ev)
	})
}
