package splitter

import (
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"sync"
	"sync/atomic"
)

var (
	white = color.RGBA{255, 255, 255, 255}
	red   = color.RGBA{220, 30, 30, 255}
)

// fakeDocument renders page i as a solid red raster when colorPages holds i,
// otherwise solid background (white when unset). Pages in failPages return an error.
type fakeDocument struct {
	pages      int
	colorPages PageSet
	failPages  PageSet
	background color.Color
	rendered   atomic.Int32
	closed     bool
}

func (d *fakeDocument) NumPage() int { return d.pages }

func (d *fakeDocument) RenderPage(i int) (image.Image, error) {
	d.rendered.Add(1)
	if d.failPages.Has(i) {
		return nil, errors.New("corrupt page")
	}
	if d.colorPages.Has(i) {
		return createTestImage(8, 8, red), nil
	}
	if d.background != nil {
		return createTestImage(8, 8, d.background), nil
	}
	return createTestImage(8, 8, white), nil
}

func (d *fakeDocument) Close() error {
	d.closed = true
	return nil
}

type fakeOpener struct {
	doc *fakeDocument
	err error
}

func (o *fakeOpener) Open(string) (Document, error) {
	if o.err != nil {
		return nil, o.err
	}
	return o.doc, nil
}

type assembleCall struct {
	Dst   string
	Pages []int
}

// fakeAssembler records calls and creates dst files so cleanup can be observed.
type fakeAssembler struct {
	mu     sync.Mutex
	calls  []assembleCall
	failOn string
}

func (a *fakeAssembler) Assemble(_ context.Context, _, dst string, pages []int) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, assembleCall{Dst: dst, Pages: append([]int(nil), pages...)})
	if dst == a.failOn {
		return errors.New("disk full")
	}
	return os.WriteFile(dst, []byte("%PDF-1.7\n"), 0o644)
}

// recordingObserver keeps every event it sees.
type recordingObserver struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingObserver) OnEvent(_ context.Context, ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingObserver) kinds() []EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []EventKind
	for _, ev := range r.events {
		out = append(out, ev.Kind)
	}
	return out
}
