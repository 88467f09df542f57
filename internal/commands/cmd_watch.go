package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/mindprints/diff-commit/internal/core/eventbus"
	"github.com/mindprints/diff-commit/internal/core/validate"
	"github.com/mindprints/diff-commit/internal/diffcommit"
	"github.com/mindprints/diff-commit/internal/printer"
	"github.com/mindprints/diff-commit/pkg/telemetry"
)

const shutdownTimeout = 5 * time.Second

type WatchCmd struct {
	flags *Flags

	metricsAddr string
	pprof       bool
}

// NewWatchCmd creates a new watch command.
func NewWatchCmd(flags *Flags) *WatchCmd {
	return &WatchCmd{flags: flags}
}

// Register adds the watch command to the application.
func (cmd *WatchCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "watch",
		Usage:     "Track edits to documents and autosave drafts",
		ArgsUsage: "FILE...",
		Description: `Watches the given files and reloads them as they change, reporting
pending changes against the latest checkpoint. Drafts are autosaved while
watching so an unfinished edit can be recovered with 'diffcommit draft'.

With --metrics-addr (or watch.metrics_addr in the config) Prometheus
metrics are served on /metrics. Stop with Ctrl-C.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "metrics-addr",
				Usage:       "serve metrics on this address, e.g. localhost:9464",
				Destination: &cmd.metricsAddr,
			},
			&cli.BoolFlag{
				Name:        "pprof",
				Usage:       "also serve /debug/pprof on the metrics address",
				Destination: &cmd.pprof,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *WatchCmd) run(ctx context.Context, c *cli.Command) error {
	if c.Args().Len() == 0 {
		return fmt.Errorf("expected at least one FILE")
	}

	app := cmd.flags.App
	docs := make([]*diffcommit.Document, 0, c.Args().Len())
	for _, path := range c.Args().Slice() {
		if err := validate.DocumentPath(path); err != nil {
			return err
		}
		doc, err := app.Open(ctx, path)
		if err != nil {
			return err
		}
		docs = append(docs, doc)
	}

	p := printer.Ctx(ctx)
	subscribeWatchOutput(app.Bus, p)

	for _, doc := range docs {
		if _, ok := doc.RecoveredDraft(); ok {
			p.Warnf("%s has an unsaved draft; see 'diffcommit draft show %s'", doc.Path, doc.Path)
		}
		p.Infof("Watching %s (%s)", doc.Path, summaryLine(doc.Stats()))
	}

	addr := cmd.metricsAddr
	if addr == "" {
		addr = cmd.flags.Config.Watch.MetricsAddr
	}
	if cmd.pprof && addr == "" {
		return fmt.Errorf("--pprof needs --metrics-addr")
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return app.Watch(ctx, docs...)
	})
	if addr != "" {
		srv := telemetry.New(addr, app.Registry, cmd.pprof)
		if err := srv.Start(ctx); err != nil {
			return err
		}
		p.Infof("Serving metrics on http://%s/metrics", srv.Addr())
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	return g.Wait()
}

func subscribeWatchOutput(bus *eventbus.EventBus, p *printer.Printer) {
	bus.SubscribeNotificationPublished(func(n eventbus.NotificationPublishedPayload) {
		switch n.Level {
		case eventbus.LevelError:
			p.Errorf("%s", n.Message)
		case eventbus.LevelWarning:
			p.Warnf("%s", n.Message)
		default:
			p.Infof("%s", n.Message)
		}
	})
	bus.SubscribeDirtyChanged(func(d eventbus.DirtyChangedPayload) {
		if d.Dirty {
			p.Infof("%s has pending changes", d.DocumentID)
		} else {
			p.Infof("%s matches its latest checkpoint", d.DocumentID)
		}
	})
}
