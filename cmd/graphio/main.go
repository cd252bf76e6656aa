// graphio imports and exports graph dumps in line-JSON form.
//
//	graphio export [file]    write the full graph to file (or stdout)
//	graphio import [file]    load a dump from file (or stdin)
//
// The target store is selected with the same environment variables as
// graphd: GRAPH_BACKEND, GRAPH_DB, GRAPH_DSN.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/scriptoria/semgraph/codec"
	"github.com/scriptoria/semgraph/projector"
)

func main() {
	if len(os.Args) < 2 {
		usage()
	}
	cmd := os.Args[1]

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	p, err := projector.New(ctx, &projector.Config{
		Backend: env("GRAPH_BACKEND", "sqlite"),
		DBPath:  env("GRAPH_DB", "db/graph.db"),
		DSN:     env("GRAPH_DSN", ""),
	}, logger)
	if err != nil {
		slog.Error("projector", "error", err)
		os.Exit(1)
	}
	defer p.Close()

	switch cmd {
	case "export":
		var out io.Writer = os.Stdout
		if len(os.Args) > 2 {
			f, err := os.Create(os.Args[2])
			if err != nil {
				slog.Error("create", "error", err)
				os.Exit(1)
			}
			defer f.Close()
			out = f
		}
		if err := codec.NewExporter(p.Store()).Export(ctx, out); err != nil {
			slog.Error("export", "error", err)
			os.Exit(1)
		}
	case "import":
		var in io.Reader = os.Stdin
		if len(os.Args) > 2 {
			f, err := os.Open(os.Args[2])
			if err != nil {
				slog.Error("open", "error", err)
				os.Exit(1)
			}
			defer f.Close()
			in = f
		}
		im := codec.NewImporter(p.Store(), p.Identity(), codec.DefaultBatchSize, logger)
		stats, err := im.Import(ctx, in)
		if err != nil {
			slog.Error("import", "error", err)
			os.Exit(1)
		}
		slog.Info("import done", "nodes", stats.Nodes, "triples", stats.Triples)
	default:
		usage()
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: graphio <export|import> [file]")
	os.Exit(2)
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
