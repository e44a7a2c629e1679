package splitter

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestClassify_EvaluatesEveryPage(t *testing.T) {
	doc := &fakeDocument{pages: 6, colorPages: NewPageSet(0, 4)}
	c := NewPageClassifier(DefaultThresholds(), nil)

	got, err := c.Classify(context.Background(), doc)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if diff := cmp.Diff([]int{0, 4}, got.Sorted()); diff != "" {
		t.Errorf("color pages mismatch (-want +got):\n%s", diff)
	}
	if n := doc.rendered.Load(); n != 6 {
		t.Errorf("Expected all 6 pages rendered, got %d", n)
	}
}

func TestClassify_RenderFailureIsFatal(t *testing.T) {
	doc := &fakeDocument{pages: 5, colorPages: NewPageSet(0), failPages: NewPageSet(3)}
	c := NewPageClassifier(DefaultThresholds(), nil)

	got, err := c.Classify(context.Background(), doc)
	if err == nil {
		t.Fatal("Expected error for corrupt page")
	}
	if got != nil {
		t.Errorf("Expected no partial result, got %v", got.Sorted())
	}
	var rerr *RenderError
	if !errors.As(err, &rerr) {
		t.Fatalf("Expected *RenderError, got %T", err)
	}
	if rerr.Page != 3 {
		t.Errorf("Expected failing page 3, got %d", rerr.Page)
	}
}

func TestClassify_ParallelMatchesSequential(t *testing.T) {
	color := NewPageSet(1, 2, 7, 11, 12)
	seq := NewPageClassifier(DefaultThresholds(), nil)
	par := &PageClassifier{Thresholds: DefaultThresholds(), Workers: 4}

	want, err := seq.Classify(context.Background(), &fakeDocument{pages: 13, colorPages: color})
	if err != nil {
		t.Fatalf("sequential Classify: %v", err)
	}
	got, err := par.Classify(context.Background(), &fakeDocument{pages: 13, colorPages: color})
	if err != nil {
		t.Fatalf("parallel Classify: %v", err)
	}
	if diff := cmp.Diff(want.Sorted(), got.Sorted()); diff != "" {
		t.Errorf("parallel result differs (-sequential +parallel):\n%s", diff)
	}
}

func TestClassify_ParallelRenderFailure(t *testing.T) {
	par := &PageClassifier{Thresholds: DefaultThresholds(), Workers: 3}
	_, err := par.Classify(context.Background(), &fakeDocument{pages: 9, failPages: NewPageSet(5)})
	var rerr *RenderError
	if !errors.As(err, &rerr) {
		t.Fatalf("Expected *RenderError, got %v", err)
	}
}

func TestClassify_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewPageClassifier(DefaultThresholds(), nil).Classify(ctx, &fakeDocument{pages: 3})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestClassify_EmitsProgress(t *testing.T) {
	rec := &recordingObserver{}
	c := NewPageClassifier(DefaultThresholds(), rec)
	if _, err := c.Classify(context.Background(), &fakeDocument{pages: 2, colorPages: NewPageSet(1)}); err != nil {
		t.Fatalf("Classify: %v", err)
	}

	want := []EventKind{EventClassifyStarted, EventPageClassified, EventPageClassified}
	if diff := cmp.Diff(want, rec.kinds()); diff != "" {
		t.Errorf("event kinds mismatch (-want +got):\n%s", diff)
	}
	if !rec.events[2].Color || rec.events[1].Color {
		t.Errorf("Expected only page 2 reported as color, got %+v", rec.events[1:])
	}
}
