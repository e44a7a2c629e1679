package main

import (
    "context"
    "errors"
    "flag"
    "fmt"
    "io"
    "os"
    "os/signal"
    "syscall"

    "github.com/rs/zerolog/log"

    "github.com/local/colorsplit/internal/assemble"
    cfgpkg "github.com/local/colorsplit/internal/config"
    logpkg "github.com/local/colorsplit/internal/logger"
    "github.com/local/colorsplit/internal/render"
    "github.com/local/colorsplit/internal/splitter"
)

type splitArgs struct {
    source     string
    job        splitter.Job
    thresholds splitter.Thresholds
    dpi        float64
    workers    int
}

// parseSplitArgs reads flags on top of the env-derived defaults.
func parseSplitArgs(args []string, cfg cfgpkg.SplitConfig, stderr io.Writer) (splitArgs, error) {
    fs := flag.NewFlagSet("split", flag.ContinueOnError)
    fs.SetOutput(stderr)
    duplex := fs.Bool("duplex", cfg.Duplex, "treat both sides of a sheet as one unit (print double-sided)")
    colorOut := fs.String("color", "", "color output path (default <name>_color.pdf next to the source)")
    bwOut := fs.String("bw", "", "black-and-white output path (default <name>_bw.pdf next to the source)")
    dpi := fs.Float64("dpi", cfg.RenderDPI, "render resolution used for classification")
    workers := fs.Int("workers", cfg.ClassifyWorkers, "pages classified concurrently")
    saturation := fs.Float64("saturation", cfg.SaturationThreshold, "per-pixel saturation threshold")
    fraction := fs.Float64("fraction", cfg.ColorFractionThreshold, "fraction of saturated pixels that makes a page color; 0 marks any saturated pixel")
    if err := fs.Parse(args); err != nil {
        return splitArgs{}, err
    }
    if fs.NArg() != 1 {
        return splitArgs{}, errors.New("expected exactly one input PDF")
    }
    if *dpi <= 0 {
        return splitArgs{}, fmt.Errorf("invalid -dpi %v", *dpi)
    }
    if *saturation < 0 || *saturation > 1 {
        return splitArgs{}, fmt.Errorf("invalid -saturation %v: want a value in [0, 1]", *saturation)
    }
    if *fraction < 0 || *fraction > 1 {
        return splitArgs{}, fmt.Errorf("invalid -fraction %v: want a value in [0, 1]", *fraction)
    }
    return splitArgs{
        source:     fs.Arg(0),
        job:        splitter.Job{Source: fs.Arg(0), ColorPath: *colorOut, BWPath: *bwOut, Duplex: *duplex},
        thresholds: splitter.Thresholds{Saturation: *saturation, ColorFraction: *fraction},
        dpi:        *dpi,
        workers:    *workers,
    }, nil
}

func runSplit(args []string, stdout, stderr io.Writer) int {
    _ = cfgpkg.LoadDotEnv()
    cfg := cfgpkg.FromEnv()

    opts := logpkg.OptionsFromConfig(cfg)
    opts.Console = stderr
    _ = logpkg.Init(opts)
    defer logpkg.Close()

    a, err := parseSplitArgs(args, cfg.Split, stderr)
    if err != nil {
        if errors.Is(err, flag.ErrHelp) {
            return 0
        }
        fmt.Fprintf(stderr, "colorsplit split: %v\n", err)
        return 2
    }

    ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
    defer stop()

    s := splitter.New(render.NewFitzOpener(a.dpi), assemble.New(), splitter.Options{
        Thresholds: &a.thresholds,
        Workers:    a.workers,
        Observer:   logpkg.Observer{},
    })
    out, err := s.Split(ctx, a.job)
    if err != nil {
        log.Error().Err(err).Str("source", a.source).Msg("split failed")
        fmt.Fprintf(stderr, "colorsplit split: %v\n", err)
        if errors.Is(err, splitter.ErrInvalidInput) {
            return 2
        }
        return 1
    }
    printOutcome(stdout, a.source, out)
    return 0
}

func printOutcome(w io.Writer, source string, out *splitter.Outcome) {
    if !out.HasColor {
        fmt.Fprintf(w, "%s is entirely monochrome, no split needed\n", source)
        return
    }
    fmt.Fprint(w, out.Report)
    fmt.Fprintf(w, "\ncolor pages written to: %s\n", out.ColorPath)
    if out.BWPath != "" {
        fmt.Fprintf(w, "black-and-white pages written to: %s\n", out.BWPath)
    } else {
        fmt.Fprintln(w, "every page is color, no black-and-white document written")
    }
}
