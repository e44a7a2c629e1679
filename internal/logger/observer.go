package logger

import (
    "context"

    "github.com/rs/zerolog"
    "github.com/rs/zerolog/log"

    "github.com/local/colorsplit/internal/splitter"
)

// Observer logs split progress events. A nil Logger uses the global one.
type Observer struct {
    Logger *zerolog.Logger
}

func (o Observer) OnEvent(_ context.Context, ev splitter.Event) {
    l := &log.Logger
    if o.Logger != nil { l = o.Logger }

    switch ev.Kind {
    case splitter.EventClassifyStarted:
        l.Info().Str("source", ev.Source).Int("total_pages", ev.Total).Msg("classifying pages")
    case splitter.EventPageClassified:
        l.Debug().Str("source", ev.Source).Int("page", ev.Page+1).Int("total_pages", ev.Total).Bool("color", ev.Color).Msg("page classified")
    case splitter.EventPairsExpanded:
        l.Info().Str("source", ev.Source).Ints("added", oneBased(ev.Pages)).Msg("duplex partners added")
    case splitter.EventPartitionComputed:
        l.Info().Str("source", ev.Source).Int("total_pages", ev.Total).Ints("color_pages", oneBased(ev.Pages)).Msg("partition computed")
    case splitter.EventNoSplitNeeded:
        l.Info().Str("source", ev.Source).Msg("document is entirely monochrome, no split needed")
    case splitter.EventDocumentsWritten:
        l.Info().Str("source", ev.Source).Str("detail", ev.Message).Msg("split documents written")
    default:
        l.Debug().Str("kind", string(ev.Kind)).Msg("split event")
    }
}

func oneBased(pages []int) []int {
    out := make([]int, len(pages))
    for i, p := range pages { out[i] = p + 1 }
    return out
}
