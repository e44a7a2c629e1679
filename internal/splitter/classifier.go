package splitter

import (
	"context"
	"fmt"
	"image"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Document is an opened source document as seen by the classifier.
// RenderPage must be deterministic and must fail, not degrade, on a corrupt page.
type Document interface {
	NumPage() int
	RenderPage(i int) (image.Image, error)
	Close() error
}

// Opener opens a source path into a Document.
type Opener interface {
	Open(path string) (Document, error)
}

// PageClassifier renders every page and records the ones judged color.
type PageClassifier struct {
	Thresholds Thresholds
	// Workers > 1 renders pages concurrently. Membership of the result does not depend on it.
	Workers  int
	Observer Observer
}

// NewPageClassifier returns a sequential classifier using th.
func NewPageClassifier(th Thresholds, obs Observer) *PageClassifier {
	return &PageClassifier{Thresholds: th, Workers: 1, Observer: obs}
}

// Classify evaluates every page of doc and returns the directly-color page indices.
// The first render failure aborts the run; no partial set is returned.
func (c *PageClassifier) Classify(ctx context.Context, doc Document) (PageSet, error) {
	obs := observerOrNop(c.Observer)
	total := doc.NumPage()
	obs.OnEvent(ctx, Event{Kind: EventClassifyStarted, Total: total,
		Message: fmt.Sprintf("analyzing %d pages", total)})

	if c.Workers > 1 && total > 1 {
		return c.classifyParallel(ctx, doc, total, obs)
	}

	color := make(PageSet)
	for i := 0; i < total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		isColor, err := c.classifyPage(doc, i)
		if err != nil {
			return nil, err
		}
		if isColor {
			color.Add(i)
		}
		obs.OnEvent(ctx, Event{Kind: EventPageClassified, Page: i, Total: total, Color: isColor})
	}
	return color, nil
}

func (c *PageClassifier) classifyParallel(ctx context.Context, doc Document, total int, obs Observer) (PageSet, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.Workers)

	var mu sync.Mutex
	color := make(PageSet)
	for i := 0; i < total; i++ {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			isColor, err := c.classifyPage(doc, i)
			if err != nil {
				return err
			}
			mu.Lock()
			if isColor {
				color.Add(i)
			}
			obs.OnEvent(ctx, Event{Kind: EventPageClassified, Page: i, Total: total, Color: isColor})
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return color, nil
}

// classifyPage renders page i and discards the raster once judged.
func (c *PageClassifier) classifyPage(doc Document, i int) (bool, error) {
	img, err := doc.RenderPage(i)
	if err != nil {
		return false, &RenderError{Page: i, Err: err}
	}
	return IsColor(img, c.Thresholds), nil
}
