package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/astei/anvilquery/config"
	"github.com/astei/anvilquery/export"
	"github.com/astei/anvilquery/world"
)

const ConfigPath = "anvilquery.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newApp(os.Stdout).RunContext(ctx, os.Args); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func newApp(out io.Writer) *cli.App {
	return &cli.App{
		Name:      "anvilquery",
		Usage:     "searches Minecraft worlds for tags and blocks",
		Writer:    out,
		ErrWriter: os.Stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "YAML config file",
				Value:   ConfigPath,
				EnvVars: []string{"ANVILQUERY_CONFIG"},
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "files decoded in parallel (default: one per CPU)",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "version",
				Usage:     "prints the game version a world was saved with",
				ArgsUsage: "<world>",
				Action: func(c *cli.Context) error {
					w, err := open(c)
					if err != nil {
						return err
					}
					v, rel := w.MCVersion()
					_, err = fmt.Fprintf(c.App.Writer, "%s (DataVersion %d)\n", rel, v)
					return err
				},
			},
			{
				Name:      "compound",
				Usage:     "prints every compound holding a key",
				ArgsUsage: "<world> <key>",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "first", Usage: "stop at the first match"},
				},
				Action: searchCompound,
			},
			{
				Name:      "blocks",
				Usage:     "lists the positions of blocks by identifier",
				ArgsUsage: "<world> <id>...",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "count", Usage: "only print how many were found"},
				},
				Action: searchBlocks,
			},
			{
				Name:      "json",
				Usage:     "exports the decoded world as JSON (.gz and .zst are compressed)",
				ArgsUsage: "<world> <output>",
				Action: func(c *cli.Context) error {
					if c.NArg() < 2 {
						return cli.ShowSubcommandHelp(c)
					}
					w, err := open(c)
					if err != nil {
						return err
					}
					return w.ToJSON(c.Args().Get(1))
				},
			},
		},
	}
}

func loadConfig(c *cli.Context) (config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return cfg, fmt.Errorf("loading config: %w", err)
	}
	if n := c.Int("workers"); n > 0 {
		cfg.Workers = n
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.Level(),
	})))
	return cfg, nil
}

func open(c *cli.Context) (*world.World, error) {
	if c.NArg() == 0 {
		return nil, fmt.Errorf("need a world to work with")
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	w, err := world.Load(c.Context, c.Args().Get(0), cfg)
	if err != nil {
		return nil, err
	}
	for _, e := range w.Errors() {
		slog.Warn("skipped", "err", e)
	}
	return w, nil
}

func searchCompound(c *cli.Context) error {
	if c.NArg() < 2 {
		return cli.ShowSubcommandHelp(c)
	}
	w, err := open(c)
	if err != nil {
		return err
	}
	key := c.Args().Get(1)

	if c.Bool("first") {
		match, ok := w.FirstCompound(key)
		if !ok {
			_, err = fmt.Fprintf(c.App.Writer, "no compound holds %q\n", key)
			return err
		}
		return export.WriteJSON(c.App.Writer, match, export.Options{Indent: "  "})
	}

	ok, matches := w.SearchCompound(key)
	if !ok {
		_, err = fmt.Fprintf(c.App.Writer, "no compound holds %q\n", key)
		return err
	}
	for _, m := range matches {
		if err := export.WriteJSON(c.App.Writer, m, export.Options{Indent: "  "}); err != nil {
			return err
		}
	}
	return nil
}

func searchBlocks(c *cli.Context) error {
	if c.NArg() < 2 {
		return cli.ShowSubcommandHelp(c)
	}
	w, err := open(c)
	if err != nil {
		return err
	}
	ids := c.Args().Slice()[1:]

	if c.Bool("count") {
		counts := w.CountBlocks(ids)
		for _, id := range ids {
			if _, err := fmt.Fprintf(c.App.Writer, "%s\t%d\n", id, counts[id]); err != nil {
				return err
			}
		}
		return nil
	}

	found := w.SearchBlocks(ids)
	for _, id := range ids {
		for _, b := range found[id] {
			_, err := fmt.Fprintf(c.App.Writer, "%s\t%d %d %d%s\n", b.Name, b.Coord.X, b.Coord.Y, b.Coord.Z, formatProperties(b.Properties))
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// formatProperties renders block state properties as [k=v,...] in key order.
func formatProperties(props map[string]string) string {
	if len(props) == 0 {
		return ""
	}
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, len(keys))
	for i, k := range keys {
		pairs[i] = k + "=" + props[k]
	}
	return "\t[" + strings.Join(pairs, ",") + "]"
}
