package main

import (
    "fmt"
    "os"
)

const usage = `usage:
  colorsplit split [-duplex=true] [-color out.pdf] [-bw out.pdf] [-dpi 72] [-workers 1] file.pdf
  colorsplit serve
`

func main() {
    os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
    if len(args) == 0 {
        fmt.Fprint(os.Stderr, usage)
        return 2
    }
    switch args[0] {
    case "split":
        return runSplit(args[1:], os.Stdout, os.Stderr)
    case "serve":
        return runServe()
    case "-h", "-help", "--help", "help":
        fmt.Fprint(os.Stdout, usage)
        return 0
    default:
        fmt.Fprintf(os.Stderr, "unknown command %q\n%s", args[0], usage)
        return 2
    }
}
