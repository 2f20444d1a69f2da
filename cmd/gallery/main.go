// Command gallery is a headless image gallery driven by futurize
// controllers. Every tick it polls all in-flight loads and prints the slots
// whose status changed.
//
// Commands on stdin: n (next page), p (previous page), c N (cancel slot N),
// q (quit). SIGINT cancels every load and exits once they have settled.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/caihong2050-art/futurize/fetch"
	"github.com/caihong2050-art/futurize/futurize"
	"github.com/caihong2050-art/futurize/imaging"
	"github.com/caihong2050-art/futurize/infrastructure/metrics"
	"github.com/caihong2050-art/futurize/internal/config"
	"github.com/caihong2050-art/futurize/internal/logger"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "gallery:", err)
		os.Exit(1)
	}
}

func run(args []string, in io.Reader, out io.Writer) error {
	fs := pflag.NewFlagSet("gallery", pflag.ContinueOnError)
	config.RegisterFlags(fs)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := config.Load(fs)
	if err != nil {
		return err
	}
	log, err := logger.Setup(cfg.Log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bus := futurize.NewEventBus()
	collector := metrics.NewCollector()
	collector.AttachToEventBus(bus)
	opts := []futurize.Option{futurize.WithEventBus(bus)}

	if cfg.Executor.Kind == "pool" {
		pool := futurize.NewPool(cfg.Executor.Workers, cfg.Executor.QueueCapacity)
		defer pool.Close()
		opts = append(opts, futurize.WithExecutor(pool))
	}

	backend, err := imaging.Open(cfg.Imaging.Backend, opts...)
	if err != nil {
		return err
	}
	if std, ok := backend.(*imaging.StdBackend); ok {
		std.VectorSize = cfg.Imaging.VectorSize
	}
	textures := imaging.NewTextures()

	var src source
	if cfg.Gallery.Dir != "" {
		src, err = newFileSource(cfg.Gallery.Dir, cfg.Gallery.Images, backend, textures, log)
		if err != nil {
			return err
		}
	} else {
		client := fetch.New(fetch.Config{
			Timeout:           cfg.Fetch.Timeout,
			RequestsPerSecond: cfg.Fetch.RequestsPerSecond,
			Burst:             cfg.Fetch.Burst,
			MaxAttempts:       cfg.Fetch.MaxAttempts,
			ChunkSize:         cfg.Fetch.ChunkSize,
			MaxBytes:          cfg.Fetch.MaxBytes,
			UserAgent:         cfg.Fetch.UserAgent,
		}, opts...)
		width, height := cfg.Gallery.Width, cfg.Gallery.Height
		src = newNetworkSource(client, backend, textures, cfg.Gallery.Images, cfg.Gallery.Seed,
			func(seed int) string { return fetch.PicsumURL(seed, width, height) }, log)
	}
	defer src.Close()

	var reloads <-chan string
	if cfg.Gallery.Watch && cfg.Gallery.Dir != "" {
		ch, closeWatch, err := watchDir(ctx, cfg.Gallery.Dir, log)
		if err != nil {
			return err
		}
		defer closeWatch()
		reloads = ch
	}

	loop := &galleryLoop{
		src:      src,
		out:      out,
		interval: cfg.Gallery.PollInterval,
		commands: readCommands(in),
		reloads:  reloads,
		logger:   log,
	}
	loop.run(ctx)

	err = (&metrics.LogExporter{Logger: log}).Export(collector.Snapshot())
	// Teardown below detaches leftover controllers; keep that out of the
	// exported numbers.
	bus.Clear()
	return err
}

type galleryLoop struct {
	src      source
	out      io.Writer
	interval time.Duration
	commands <-chan string
	reloads  <-chan string
	logger   *slog.Logger

	shown []string
}

// run ticks until the user quits, or until nothing is in flight and no more
// input can arrive. A canceled ctx cancels every load first.
func (l *galleryLoop) run(ctx context.Context) {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	done := ctx.Done()
	canceling := false
	for {
		select {
		case <-done:
			l.logger.Info("interrupted, canceling loads")
			l.src.CancelAll()
			canceling, done = true, nil
			l.reloads = nil
		case path, ok := <-l.reloads:
			if !ok {
				l.reloads = nil
				continue
			}
			if r, ok := l.src.(reloader); ok {
				r.Reload(path)
			}
		case cmd, ok := <-l.commands:
			if !ok {
				l.commands = nil
				continue
			}
			if l.handle(cmd) {
				l.src.CancelAll()
				canceling = true
			}
		case <-ticker.C:
		}

		active := l.src.Poll()
		l.render()
		if active > 0 {
			continue
		}
		if canceling || (l.commands == nil && l.reloads == nil) {
			return
		}
	}
}

// handle applies one stdin command and reports whether it asked to quit.
func (l *galleryLoop) handle(cmd string) bool {
	fields := strings.Fields(cmd)
	if len(fields) == 0 {
		return false
	}
	switch fields[0] {
	case "q", "quit":
		return true
	case "n", "next", "p", "prev":
		pg, ok := l.src.(pager)
		if !ok {
			l.logger.Warn("source has no pages", "command", fields[0])
			return false
		}
		if fields[0][0] == 'n' {
			pg.Next()
		} else {
			pg.Prev()
		}
	case "c", "cancel":
		if len(fields) < 2 {
			return false
		}
		i, err := strconv.Atoi(fields[1])
		if err != nil {
			l.logger.Warn("bad slot", "slot", fields[1])
			return false
		}
		l.src.Cancel(i)
	default:
		l.logger.Warn("unknown command", "command", cmd)
	}
	return false
}

func (l *galleryLoop) render() {
	lines := l.src.Lines()
	for i, line := range lines {
		if i < len(l.shown) && l.shown[i] == line {
			continue
		}
		fmt.Fprintf(l.out, "[%2d] %s\n", i, line)
	}
	l.shown = lines
}

func readCommands(in io.Reader) <-chan string {
	if in == nil {
		return nil
	}
	out := make(chan string)
	go func() {
		defer close(out)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			out <- sc.Text()
		}
	}()
	return out
}
