package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/notesearch/internal/app"
	"github.com/kailas-cloud/notesearch/internal/config"
	"github.com/kailas-cloud/notesearch/internal/domain/search/mode"
	"github.com/kailas-cloud/notesearch/internal/domain/search/page"
	"github.com/kailas-cloud/notesearch/internal/domain/tenant"
	logpkg "github.com/kailas-cloud/notesearch/internal/logger"
	mcpTransport "github.com/kailas-cloud/notesearch/internal/transport/mcp"
	"github.com/kailas-cloud/notesearch/internal/version"
)

func main() {
	if err := newCLI().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "notesctl:", err)
		os.Exit(1)
	}
}

func newCLI() *cli.App {
	return &cli.App{
		Name:    "notesctl",
		Usage:   "Operate the notesearch store: indexes, sample data, search, backfill, MCP",
		Version: version.String(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "env",
				Aliases: []string{"e"},
				Usage:   "Config environment (config/<env>.yaml)",
				Value:   config.GetEnv(),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Override logging level (debug, info, warn, error)",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "ensure-indexes",
				Usage:  "Create the lexical and vector indexes and wait until they are ready",
				Action: withApp(ensureIndexesCommand),
			},
			{
				Name:   "seed",
				Usage:  "Write sample notes for two owners across three collections",
				Action: withApp(seedCommand),
			},
			{
				Name:   "search",
				Usage:  "Search notes of one owner and collection",
				Action: withApp(searchCommand),
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "owner", Aliases: []string{"o"}, Required: true},
					&cli.StringFlag{Name: "collection", Aliases: []string{"c"}, Required: true},
					&cli.StringFlag{Name: "query", Aliases: []string{"q"}, Usage: "Free text"},
					&cli.StringSliceFlag{Name: "tag", Aliases: []string{"t"}, Usage: "Required tag (repeatable)"},
					&cli.StringFlag{Name: "mode", Aliases: []string{"m"}, Usage: "auto, lexical or vector", Value: "auto"},
					&cli.IntFlag{Name: "page", Aliases: []string{"p"}, Value: 1},
				},
			},
			{
				Name:   "backfill",
				Usage:  "Embed notes stored without a vector",
				Action: withApp(backfillCommand),
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Usage: "Maximum notes to embed (0 = all)"},
				},
			},
			{
				Name:   "mcp",
				Usage:  "Serve the search_notes tool over MCP stdio",
				Action: withApp(mcpCommand),
			},
		},
	}
}

// withApp loads config, builds the logger and the services, and hands them to action.
func withApp(action func(c *cli.Context, a *app.App) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		env := c.String("env")
		cfg, err := config.Load(env)
		if err != nil {
			return err
		}
		level := cfg.Logging.Level
		if c.IsSet("log-level") {
			level = c.String("log-level")
		}
		logger, err := logpkg.NewLogger(env, level)
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		a, err := app.New(c.Context, cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()
		return action(c, a)
	}
}

func ensureIndexesCommand(c *cli.Context, a *app.App) error {
	if err := a.Provision.Run(c.Context); err != nil {
		return err
	}
	for _, st := range a.Registry.Statuses() {
		line := fmt.Sprintf("%-20s %-8s %s", st.Name, st.Kind, st.State)
		if st.Err != "" {
			line += "  " + st.Err
		}
		fmt.Fprintln(c.App.Writer, line)
	}
	return nil
}

func seedCommand(c *cli.Context, a *app.App) error {
	notes, err := app.Seed(c.Context, a.Notes, time.Now())
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "seeded %d notes\n", len(notes))
	return nil
}

func searchCommand(c *cli.Context, a *app.App) error {
	scope, err := tenant.New(c.String("owner"), c.String("collection"))
	if err != nil {
		return err
	}
	// a one-shot process sees only what is ready right now
	if err := a.Provision.Run(c.Context); err != nil {
		return err
	}
	res, err := a.Search.Search(c.Context, scope, c.String("query"), c.StringSlice("tag"),
		mode.Mode(c.String("mode")), c.Int("page"))
	if err != nil {
		return err
	}
	printPage(c.App.Writer, &res)
	return nil
}

func printPage(w io.Writer, p *page.Page) {
	fmt.Fprintf(w, "page %d/%d, %d notes\n", p.Page, p.TotalPages, p.TotalCount)
	for _, h := range p.Documents {
		score := "      "
		if h.Score != nil {
			score = fmt.Sprintf("%.4f", *h.Score)
		}
		fmt.Fprintf(w, "%s  %s  %s  [%s]  %s\n", score, h.Note.CreatedAt().Format(time.DateOnly),
			h.Note.ID(), strings.Join(h.Note.Tags(), ","), h.Note.Content())
	}
}

func backfillCommand(c *cli.Context, a *app.App) error {
	if a.Backfill == nil {
		return errors.New("backfill needs an embedding provider (embedding.provider is none)")
	}
	res, err := a.Backfill.Run(c.Context, c.Int("limit"))
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "embedded %d notes, %d failed, %d deleted meanwhile\n", res.Embedded, res.Failed, res.Skipped)
	return nil
}

func mcpCommand(c *cli.Context, a *app.App) error {
	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()

	go func() {
		if err := a.Provision.Run(ctx); err != nil && ctx.Err() == nil {
			a.Logger.Error("Index provisioning failed", zap.Error(err))
		}
	}()

	server := mcpTransport.NewServer(a.Search, a.Logger)
	if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil {
		// stdin closed
		if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
			a.Logger.Debug("MCP server stopped", zap.Error(err))
			return nil
		}
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}
