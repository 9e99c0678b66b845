package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/ritzau/procgraph/pkg/compiler"
	"github.com/ritzau/procgraph/pkg/config"
	"github.com/ritzau/procgraph/pkg/lens"
	"github.com/ritzau/procgraph/pkg/logging"
	"github.com/ritzau/procgraph/pkg/output"
	"github.com/ritzau/procgraph/pkg/procedure"
	"github.com/ritzau/procgraph/pkg/render"
	"github.com/ritzau/procgraph/pkg/watcher"
	"github.com/ritzau/procgraph/pkg/web"
)

func main() {
	flags := pflag.NewFlagSet("procgraph", pflag.ExitOnError)
	flags.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: procgraph [flags] [procedure-file]\n\n")
		flags.PrintDefaults()
	}
	config.RegisterFlags(flags)
	flags.Parse(os.Args[1:])

	cfg, err := config.Load(flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}
	if err := setupLogging(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, flags); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func setupLogging(cfg *config.Config) error {
	level, err := logging.ParseLevel(cfg.Verbosity, cfg.VerboseCnt)
	if err != nil {
		return err
	}
	if cfg.JSONLogs {
		logging.SetJSONOutput(level)
	} else {
		logging.SetLevel(level)
	}
	return nil
}

func run(ctx context.Context, cfg *config.Config, flags *pflag.FlagSet) error {
	var server *web.Server
	if cfg.WebMode {
		server = web.NewServer(options(cfg))
		go func() {
			if err := server.Start(ctx, cfg.Port); err != nil {
				logging.Fatal("web server failed", "error", err)
			}
		}()
	}

	first, err := compileOnce(ctx, cfg, server)
	if !cfg.Watch {
		if err != nil {
			return err
		}
		if server != nil {
			<-ctx.Done()
		}
		return nil
	}

	// In watch mode a broken procedure is reported and waited out
	if err != nil {
		logging.Error("compilation failed", "input", cfg.Input, "error", err)
	}
	return watch(ctx, cfg, flags, server, first)
}

func options(cfg *config.Config) compiler.Options {
	return compiler.Options{Strict: cfg.Strict, Analyze: cfg.Analyze}
}

// compileOnce loads, compiles and renders the configured input. The
// result is returned whenever a graph was produced, even in strict mode.
func compileOnce(ctx context.Context, cfg *config.Config, server *web.Server) (*compiler.Result, error) {
	result, err := compileFile(ctx, cfg)
	if err != nil && !errors.Is(err, compiler.ErrDiagnostics) {
		if server != nil {
			server.PublishFailure(cfg.Input, err)
		}
		return nil, err
	}

	if server != nil {
		if perr := server.SetResult(cfg.Input, result); perr != nil {
			logging.Warn("failed to publish result", "error", perr)
		}
	}

	if rerr := writeOutput(cfg, result); rerr != nil {
		return result, rerr
	}
	output.PrintSummary(os.Stderr, cfg.Input, result.Graph)

	// Strict mode still renders the graph before failing
	return result, err
}

func compileFile(ctx context.Context, cfg *config.Config) (*compiler.Result, error) {
	proc, err := procedure.Load(cfg.Input)
	if err != nil {
		return nil, err
	}
	return compiler.Compile(ctx, proc, options(cfg))
}

func writeOutput(cfg *config.Config, result *compiler.Result) error {
	renderer, err := render.ForFormat(cfg.Format)
	if err != nil {
		return err
	}
	view := result.Graph
	if len(cfg.Focus) > 0 {
		view, err = lens.Apply(result.Graph, lens.Config{Focus: cfg.Focus, Distance: cfg.Distance})
		if err != nil {
			return err
		}
	}

	data, err := renderer(view)
	if err != nil {
		return fmt.Errorf("rendering %s: %w", cfg.Format, err)
	}

	if cfg.Output == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(cfg.Output, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", cfg.Output, err)
	}
	logging.Info("wrote output", "path", cfg.Output, "format", cfg.Format)
	return nil
}

// watch recompiles whenever the procedure or the config file changes
func watch(ctx context.Context, cfg *config.Config, flags *pflag.FlagSet, server *web.Server, first *compiler.Result) error {
	configFile := ""
	if _, err := os.Stat(config.FileName); err == nil {
		configFile = config.FileName
	}

	fw, err := watcher.NewFileWatcher(cfg.Input, configFile)
	if err != nil {
		return err
	}
	if err := fw.Start(ctx); err != nil {
		return err
	}

	debouncer := watcher.NewDebouncer(fw.Events(), 200*time.Millisecond, 2*time.Second)
	debouncer.Start(ctx)

	var snapshot *lens.GraphSnapshot
	if first != nil {
		snapshot = lens.CreateSnapshot(first.Graph)
	}

	for event := range debouncer.Output() {
		change := watcher.AnalyzeChanges(event)
		logging.Info("change detected", "type", event.Type.String(), "files", change.ChangedFiles)

		if change.ReloadConfig {
			next, err := config.Load(flags)
			if err != nil {
				logging.Error("config reload failed, keeping previous settings", "error", err)
			} else if next.Input != cfg.Input {
				logging.Warn("input changed in config; restart to watch the new file", "input", next.Input)
			} else {
				cfg = next
				if err := setupLogging(cfg); err != nil {
					logging.Warn("invalid log level in config", "error", err)
				}
			}
		}

		if !change.Recompile {
			continue
		}
		result, err := compileOnce(ctx, cfg, server)
		if err != nil {
			logging.Error("compilation failed", "input", cfg.Input, "error", err)
		}
		if result == nil {
			continue
		}
		diff := lens.ComputeDiff(snapshot, result.Graph)
		snapshot = lens.CreateSnapshot(result.Graph)
		if diff.Empty() {
			logging.Info("graph unchanged")
		} else {
			logging.Info("graph changed",
				"addedNodes", len(diff.AddedNodes),
				"removedNodes", len(diff.RemovedNodes),
				"modifiedNodes", len(diff.ModifiedNodes),
				"addedEdges", len(diff.AddedEdges),
				"removedEdges", len(diff.RemovedEdges))
		}
	}

	return nil
}
