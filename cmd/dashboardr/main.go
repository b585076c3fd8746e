package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gyaneshwarpardhi/dashboardr/internal/cache"
	"github.com/gyaneshwarpardhi/dashboardr/internal/config"
	"github.com/gyaneshwarpardhi/dashboardr/internal/connectivity"
	"github.com/gyaneshwarpardhi/dashboardr/internal/event"
	"github.com/gyaneshwarpardhi/dashboardr/internal/notify"
	"github.com/gyaneshwarpardhi/dashboardr/internal/remote"
	"github.com/gyaneshwarpardhi/dashboardr/internal/syncer"
)

const usage = `usage:
  dashboardr [-config path] load
  dashboardr [-config path] add -title T [-date D] [-city C] [-note N]
  dashboardr [-config path] delete -id ID
  dashboardr [-config path] watch
`

func main() {
	cfgPath := flag.String("config", "dashboardr.yaml", "Path to client YAML config")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	loader, cfg, err := loadConfig(*cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// The event list goes to stdout; logs go to stderr.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Log.SlogLevel()}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := newApp(ctx, cfg, logger, os.Stdout)
	if err != nil {
		logger.Error("startup failed", "err", err)
		os.Exit(1)
	}
	defer app.close()

	cmd, args := flag.Arg(0), flag.Args()[1:]
	switch cmd {
	case "load":
		err = app.load(ctx)
	case "add":
		err = app.add(ctx, args)
	case "delete":
		err = app.delete(ctx, args)
	case "watch":
		err = app.watch(ctx, loader)
	default:
		err = fmt.Errorf("unknown command %q", cmd)
	}
	if err != nil {
		logger.Error(cmd+" failed", "err", err)
		app.close()
		os.Exit(1)
	}
}

// loadConfig reads path, falling back to defaults when the file does not exist.
// The loader is nil in that case and hot reload is unavailable.
func loadConfig(path string) (*config.Loader, *config.Config, error) {
	loader, err := config.NewLoader(path, nil)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, config.Default(), nil
	}
	if err != nil {
		return nil, nil, err
	}
	cfg := loader.Config()
	if err := config.Validate(cfg); err != nil {
		return nil, nil, err
	}
	return loader, cfg, nil
}

type app struct {
	logger *slog.Logger
	cfg    *config.Config
	handle *cache.Handle
	client *remote.Client
	ctl    *syncer.Controller
	closed bool
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, out io.Writer) (*app, error) {
	handle, err := cache.Open(ctx, cfg.Cache, logger)
	if err != nil {
		return nil, err
	}
	if handle.Degraded {
		logger.Info("events will not be kept for offline use", "backend", handle.Backend)
	}

	client := remote.New(cfg.Server.BaseURL, remote.NewHTTPClient(cfg.Server.Timeout()))
	ctl := syncer.New(ctx, syncer.Deps{
		Store:  handle.Store,
		Meta:   handle.Meta,
		Remote: client,
		View:   notify.NewTerminal(out),
		Logger: logger,
	}, cfg.Sync)

	return &app{logger: logger, cfg: cfg, handle: handle, client: client, ctl: ctl}, nil
}

// close lets background writes settle before the store goes away.
func (a *app) close() {
	if a.closed {
		return
	}
	a.closed = true
	a.ctl.Wait()
	a.ctl.Shutdown()
	if err := a.handle.Close(); err != nil {
		a.logger.Warn("closing local cache failed", "err", err)
	}
}

func (a *app) load(ctx context.Context) error {
	state := a.ctl.Load(ctx)
	a.logger.Debug("load finished", "state", state)
	return nil
}

// loadSettled loads and lets the fetched list reach the cache, so a mutation
// that follows is not overwritten by the mirror of the list it came from.
func (a *app) loadSettled(ctx context.Context) {
	a.ctl.Load(ctx)
	a.ctl.Wait()
}

func (a *app) add(ctx context.Context, args []string) error {
	flags := flag.NewFlagSet("add", flag.ContinueOnError)
	title := flags.String("title", "", "Event title (required)")
	date := flags.String("date", "", "Event date")
	city := flags.String("city", "", "Event city")
	note := flags.String("note", "", "Free-form note")
	if err := flags.Parse(args); err != nil {
		return err
	}

	a.loadSettled(ctx)
	ev, err := a.ctl.Add(event.Draft{Title: *title, Date: *date, City: *city, Note: *note})
	if err != nil {
		return err
	}
	a.logger.Debug("added", "id", ev.ID)
	return nil
}

func (a *app) delete(ctx context.Context, args []string) error {
	flags := flag.NewFlagSet("delete", flag.ContinueOnError)
	id := flags.String("id", "", "Id of the event to delete (required)")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*id) == "" {
		return errors.New("-id is required")
	}

	a.loadSettled(ctx)
	a.ctl.Delete(event.ID(strings.TrimSpace(*id)))
	return nil
}

// watch loads once and then reloads whenever the server comes back or the
// configured server address changes, until interrupted.
func (a *app) watch(ctx context.Context, loader *config.Loader) error {
	a.ctl.Load(ctx)

	// Every reload cause funnels into one channel so reloads never overlap.
	reload := make(chan struct{}, 1)
	trigger := func() {
		select {
		case reload <- struct{}{}:
		default:
		}
	}

	if loader != nil {
		current := a.cfg.Server.BaseURL
		loader.OnChange(func(c *config.Config) {
			if c.Server.BaseURL == current {
				return
			}
			a.logger.Info("server address changed", "from", current, "to", c.Server.BaseURL)
			current = c.Server.BaseURL
			a.client.SetBaseURL(current)
			trigger()
		})
		stopWatch, err := loader.Watch()
		if err != nil {
			a.logger.Warn("config watcher unavailable (hot-reload disabled)", "err", err)
		} else {
			defer stopWatch()
		}
	}

	w := connectivity.New(a.client.BaseURL, remote.NewHTTPClient(0), a.cfg.Sync.ProbeInterval(), a.logger)
	online := w.Start(ctx)
	go func() {
		for range online {
			trigger()
		}
	}()

	a.logger.Info("watching for reconnection", "server", a.client.BaseURL())
	if err := a.ctl.Run(ctx, reload); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
