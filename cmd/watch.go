package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/conneroisu/kiln/internal/build"
	"github.com/conneroisu/kiln/internal/config"
	"github.com/conneroisu/kiln/internal/livereload"
	"github.com/conneroisu/kiln/internal/registry"
	"github.com/conneroisu/kiln/internal/watcher"
)

func newWatchCmd(a *app) *cobra.Command {
	var serve bool

	cmd := &cobra.Command{
		Use:     "watch [paths...]",
		Aliases: []string{"w", "dev"},
		Short:   "Recompile .kiln files as they change",
		Long: `Compile every .kiln file, then watch the scan paths and recompile what a
change affects: an edited .kiln file, every consumer of an edited
stylesheet, and every file in a package whose Go code changed.

With --serve, a development server answers on server.host:server.port.
Pages that render kiln.LiveReloadScript reload after every successful
rebuild, and /_kiln/status reports the last build as JSON.

Examples:
  kiln watch                     # Recompile on change
  kiln watch --serve             # Also run the live reload server
  kiln watch --serve --static ./public --port 8080`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}
			b, err := a.builder(args, false, false)
			if err != nil {
				return err
			}
			defer b.Close()

			scanPaths := cfg.Components.ScanPaths
			if len(args) > 0 {
				scanPaths = args
			}
			return a.watch(cmd.Context(), cmd.ErrOrStderr(), b, cfg, scanPaths, serve)
		},
	}

	cmd.Flags().BoolVarP(&serve, "serve", "s", false, "run the live reload server")
	cmd.Flags().IntP("port", "p", 0, "server port")
	cmd.Flags().String("host", "", "server host")
	cmd.Flags().String("static", "", "directory served at / by the server")
	cmd.Flags().Duration("debounce", 0, "wait this long after the last change before rebuilding")
	cmd.Flags().IntP("workers", "w", 0, "number of compile workers (0 for one per CPU)")
	a.bind(cmd, "port", "server.port")
	a.bind(cmd, "host", "server.host")
	a.bind(cmd, "static", "server.static")
	a.bind(cmd, "debounce", "development.watch_debounce")
	a.bind(cmd, "workers", "build.workers")
	return cmd
}

func (a *app) watch(ctx context.Context, w io.Writer, b *build.Builder, cfg *config.Config, scanPaths []string, serve bool) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	report, err := b.Build(ctx)
	if err != nil {
		return err
	}
	report.Render(w)
	printSummary(w, report)

	var (
		srv   *livereload.Server
		errCh = make(chan error, 1)
	)
	if serve {
		static := cfg.Server.Static
		if static != "" && !filepath.IsAbs(static) {
			static = filepath.Join(b.Root(), static)
		}
		srv = livereload.NewServer(livereload.ServerOptions{
			Host: cfg.Server.Host,
			Port: cfg.Server.Port,
			Dir:  static,
			Hub: livereload.NewHub(livereload.Options{
				OriginPatterns: cfg.Server.AllowedOrigins,
				Logger:         a.log,
			}),
			Logger: a.log,
		})
		srv.SetStatus(buildStatus(b, report))
		go func() { errCh <- srv.Run(ctx) }()
		fmt.Fprintf(w, "kiln: serving on http://%s (live reload at %s)\n", srv.Addr(), srv.Hub().Path())
	}

	events := b.Registry().Watch()
	defer b.Registry().UnWatch(events)

	fw, err := watcher.NewFileWatcher(b.Root(), cfg.Development.WatchDebounce, a.log)
	if err != nil {
		return err
	}
	defer fw.Stop()

	for _, f := range watcher.DefaultFilters(b.Root(), cfg.Build.OutputSuffix) {
		fw.AddFilter(f)
	}
	for _, p := range scanPaths {
		if !filepath.IsAbs(p) {
			p = filepath.Join(b.Root(), p)
		}
		if err := fw.AddRecursive(p); err != nil {
			return err
		}
	}

	fw.AddHandler(func(ctx context.Context, changed []watcher.ChangeEvent) error {
		paths := watcher.Paths(changed)
		a.log.Debug(ctx, "changes detected", "files", len(paths), "affected", b.Affected(paths))

		report, err := b.Rebuild(ctx, paths)
		if err != nil {
			return err
		}
		report.Render(w)
		for _, line := range componentChanges(events) {
			fmt.Fprintln(w, "kiln:", line)
		}
		printSummary(w, report)
		printCacheStats(w, b)

		if srv != nil {
			srv.SetStatus(buildStatus(b, report))
			if cfg.Development.LiveReload && report.Err() == nil {
				srv.Hub().Reload()
			}
		}
		return nil
	})

	if err := fw.Start(ctx); err != nil {
		return err
	}
	fmt.Fprintf(w, "kiln: watching %d directories\n", len(fw.WatchList()))

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	}
}

// componentChanges drains the registry events queued since the last call
// and describes each changed component once. A rescan removes and adds a
// file's components, which reads as an update.
func componentChanges(events <-chan registry.Event) []string {
	type change struct {
		c           *registry.Component
		first, last registry.EventType
	}
	changes := map[registry.Key]*change{}
drain:
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				break drain
			}
			k := registry.Key{Dir: ev.Component.Dir, Name: ev.Component.Name}
			if ch, seen := changes[k]; seen {
				ch.c, ch.last = ev.Component, ev.Type
				continue
			}
			changes[k] = &change{c: ev.Component, first: ev.Type, last: ev.Type}
		default:
			break drain
		}
	}

	var out []string
	for _, ch := range changes {
		typ := ch.last
		if ch.first == registry.EventTypeRemoved && ch.last == registry.EventTypeAdded {
			typ = registry.EventTypeUpdated
		}
		out = append(out, fmt.Sprintf("component %s.%s %s", ch.c.Package, ch.c.Name, typ))
	}
	sort.Strings(out)
	return out
}

func printCacheStats(w io.Writer, b *build.Builder) {
	m := b.Metrics().Snapshot()
	stats := b.Cache().Stats()
	fmt.Fprintf(w, "kiln: %d of %d files served from cache since start (%.0f%%), %d cached entries, %.0f%% of lookups hit\n",
		m.CacheHits, m.TotalFiles, b.Metrics().CacheHitRate(), stats.Entries, b.Cache().HitRate())
}

// buildStatus is the server status after a build, with the hit rate
// accumulated since kiln watch started.
func buildStatus(b *build.Builder, report *build.Report) livereload.Status {
	st := statusOf(report)
	st.CacheHitRate = b.Metrics().CacheHitRate()
	return st
}

func statusOf(report *build.Report) livereload.Status {
	compiled, cached, failed := report.Counts()
	st := livereload.Status{
		Files:    len(report.Files),
		Compiled: compiled,
		Cached:   cached,
		Failed:   failed,
		Warnings: len(report.Diags.Warnings()),
		Duration: report.Duration.Round(time.Millisecond).String(),
		BuiltAt:  time.Now(),
	}
	for _, d := range report.Diags.Errors() {
		st.Errors = append(st.Errors, d.Error())
	}
	for _, f := range report.Files {
		if f.Err != nil {
			st.Errors = append(st.Errors, f.Err.Error())
		}
	}
	return st
}
