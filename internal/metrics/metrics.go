package metrics

import (
    "context"
    "net/http"
    "sync"
    "time"

    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/promhttp"

    "github.com/local/colorsplit/internal/splitter"
)

const namespace = "colorsplit"

// Split outcomes.
const (
    OutcomeSplit      = "split"
    OutcomeMonochrome = "monochrome"
    OutcomeFailed     = "failed"
)

var (
    pagesClassified = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: namespace,
            Name:      "pages_classified_total",
            Help:      "Pages classified by result (color, bw)",
        },
        []string{"result"},
    )

    partnerPages = prometheus.NewCounter(
        prometheus.CounterOpts{
            Namespace: namespace,
            Name:      "duplex_partner_pages_total",
            Help:      "Pages moved to the color output because their sheet partner is color",
        },
    )

    splits = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: namespace,
            Name:      "splits_total",
            Help:      "Split operations by outcome (split, monochrome, failed)",
        },
        []string{"outcome"},
    )

    splitDuration = prometheus.NewHistogram(
        prometheus.HistogramOpts{
            Namespace: namespace,
            Name:      "split_duration_seconds",
            Help:      "Wall time of a split operation",
            Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
        },
    )

    queueDepth = prometheus.NewGaugeVec(
        prometheus.GaugeOpts{
            Namespace: namespace,
            Name:      "queue_depth",
            Help:      "Queue depth gauges for stream and dlq",
        },
        []string{"type"},
    )

    registerOnce sync.Once
)

// Init registers collectors with the default registry. Safe to call more than once.
func Init() {
    registerOnce.Do(func() {
        prometheus.MustRegister(pagesClassified, partnerPages, splits, splitDuration, queueDepth)
    })
}

// Handler returns the http.Handler for /metrics
func Handler() http.Handler { return promhttp.Handler() }

// SplitCounter returns the splits_total child for outcome.
func SplitCounter(outcome string) prometheus.Counter { return splits.WithLabelValues(outcome) }

// IncSplit records the final outcome of one job. Call it once per job.
func IncSplit(outcome string)              { SplitCounter(outcome).Inc() }
func ObserveSplitDuration(d time.Duration) { splitDuration.Observe(d.Seconds()) }
func SetQueueDepth(kind string, v int64)   { queueDepth.WithLabelValues(kind).Set(float64(v)) }

// Observer turns split events into page counters. Job outcomes are not
// counted here since a split can still fail after its documents are written;
// the worker records them with IncSplit.
type Observer struct{}

func (Observer) OnEvent(_ context.Context, ev splitter.Event) {
    switch ev.Kind {
    case splitter.EventPageClassified:
        pagesClassified.WithLabelValues(resultLabel(ev.Color)).Inc()
    case splitter.EventPairsExpanded:
        partnerPages.Add(float64(len(ev.Pages)))
    }
}

func resultLabel(color bool) string {
    if color {
        return "color"
    }
    return "bw"
}
