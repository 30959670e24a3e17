package main

import (
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/hbollon/go-edlib"
	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/crag/internal/automata"
	"github.com/standardbeagle/crag/internal/export"
	"github.com/standardbeagle/crag/internal/graph"
	"github.com/standardbeagle/crag/internal/loader"
	"github.com/standardbeagle/crag/internal/query"
	"github.com/standardbeagle/crag/internal/rcu"
)

func loadCommand() *cli.Command {
	return &cli.Command{
		Name:  "load",
		Usage: "Ingest the configured dump files and print a summary",
		Action: func(c *cli.Context) error {
			_, _, stats, err := buildGraph(c)
			if err != nil {
				return err
			}
			fmt.Printf("loaded %d files (%d failed), %d nodes in %s\n",
				stats.Files, stats.Failed, stats.Nodes, stats.Duration.Round(time.Millisecond))
			return nil
		},
	}
}

// resolve looks a name up and, on a miss, suggests the closest known
// node names.
func resolve(g *graph.Graph, h *rcu.Handle, name string) (graph.NodeID, error) {
	i := g.GetNode(h, name)
	if i != graph.None {
		return i, nil
	}

	type scored struct {
		name  string
		score float32
	}
	var near []scored
	for _, cand := range g.AllNames(h) {
		score, err := edlib.StringsSimilarity(name, cand, edlib.JaroWinkler)
		if err != nil {
			continue
		}
		if score >= 0.8 {
			near = append(near, scored{cand, score})
		}
	}
	if len(near) > 0 {
		sort.Slice(near, func(i, j int) bool { return near[i].score > near[j].score })
		if len(near) > 3 {
			near = near[:3]
		}
		suggestions := make([]string, len(near))
		for i, s := range near {
			suggestions[i] = s.name
		}
		return graph.None, fmt.Errorf("unknown node %q (did you mean %s?)",
			name, strings.Join(suggestions, ", "))
	}
	return graph.None, fmt.Errorf("unknown node %q", name)
}

func nodeCommand() *cli.Command {
	return &cli.Command{
		Name:      "node",
		Usage:     "Show a node's name, location and degree",
		ArgsUsage: "NAME",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("usage: crag node NAME")
			}
			g, _, _, err := buildGraph(c)
			if err != nil {
				return err
			}
			h := rcu.Register()
			defer h.Unregister()

			i, err := resolve(g, h, c.Args().First())
			if err != nil {
				return err
			}

			fmt.Printf("name:     %s\n", g.NameOf(h, i))
			if u := g.UsernameOf(h, i); u != "" {
				fmt.Printf("username: %s\n", u)
			}
			if file, line := g.LocationOf(h, i); file != "" {
				if line != graph.NoLine {
					fmt.Printf("location: %s:%d\n", file, line)
				} else {
					fmt.Printf("location: %s\n", file)
				}
			}
			fmt.Printf("external: %v\n", g.IsExternal(h, i))
			fmt.Printf("callers:  %d\n", len(g.Callers(h, i).Collect()))
			fmt.Printf("callees:  %d\n", len(g.Callees(h, i).Collect()))
			fmt.Printf("refs:     %d\n", len(g.Refs(h, i).Collect()))
			return nil
		},
	}
}

func edgeCommand(name, usage string) *cli.Command {
	return &cli.Command{
		Name:      name,
		Usage:     usage,
		ArgsUsage: "NAME",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("usage: crag %s NAME", name)
			}
			g, _, _, err := buildGraph(c)
			if err != nil {
				return err
			}
			h := rcu.Register()
			defer h.Unregister()

			i, err := resolve(g, h, c.Args().First())
			if err != nil {
				return err
			}

			var it *graph.Iter
			switch name {
			case "callers":
				it = g.Callers(h, i)
			case "callees":
				it = g.Callees(h, i)
			case "refs":
				it = g.Refs(h, i)
			}

			var names []string
			for _, n := range it.Collect() {
				names = append(names, g.DisplayName(h, n))
			}
			sort.Strings(names)
			for _, n := range names {
				fmt.Println(n)
			}
			return nil
		},
	}
}

func filesCommand() *cli.Command {
	return &cli.Command{
		Name:  "files",
		Usage: "List the source files with known definitions",
		Action: func(c *cli.Context) error {
			g, _, _, err := buildGraph(c)
			if err != nil {
				return err
			}
			h := rcu.Register()
			defer h.Unregister()

			files := g.AllFiles(h)
			sort.Strings(files)
			for _, f := range files {
				fmt.Println(f)
			}
			return nil
		},
	}
}

func labelsCommand() *cli.Command {
	return &cli.Command{
		Name:  "labels",
		Usage: "List the known labels",
		Action: func(c *cli.Context) error {
			g, _, _, err := buildGraph(c)
			if err != nil {
				return err
			}
			h := rcu.Register()
			defer h.Unregister()

			labels := g.AllLabels(h)
			sort.Strings(labels)
			for _, l := range labels {
				fmt.Println(l)
			}
			return nil
		},
	}
}

func pathsCommand() *cli.Command {
	return &cli.Command{
		Name:      "paths",
		Usage:     "Query call paths with a path regular expression",
		ArgsUsage: "EXPR...",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "include-external", Usage: "Include external functions"},
			&cli.BoolFlag{Name: "include-ref", Usage: "Follow references to functions"},
			&cli.IntFlag{Name: "limit", Usage: "Number of paths to print"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return fmt.Errorf("usage: crag paths EXPR...")
			}
			g, _, _, err := buildGraph(c)
			if err != nil {
				return err
			}
			h := rcu.Register()
			defer h.Unregister()

			nfa, err := query.ParsePathspec(g, h, strings.Join(c.Args().Slice(), " "))
			if err != nil {
				return err
			}
			paths := query.Paths(g, h, automata.NewLazyDFA(nfa), query.Options{
				IncludeExternal: c.Bool("include-external"),
				IncludeRef:      c.Bool("include-ref"),
				Limit:           c.Int("limit"),
			})
			for _, p := range paths {
				fmt.Println(strings.Join(p, " -> "))
			}
			return nil
		},
	}
}

func dotCommand() *cli.Command {
	return &cli.Command{
		Name:      "dot",
		Usage:     "Write the call graph as a Graphviz DOT document",
		ArgsUsage: "[FILE]",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "files", Usage: "Create box containers for source files"},
			&cli.BoolFlag{Name: "include-external", Usage: "Include external functions"},
			&cli.BoolFlag{Name: "include-ref", Usage: "Include references to functions"},
			&cli.StringSliceFlag{Name: "omit", Usage: "Omit the named nodes"},
			&cli.StringSliceFlag{Name: "keep", Usage: "Keep the named nodes even when omitted"},
		},
		Action: func(c *cli.Context) error {
			g, _, _, err := buildGraph(c)
			if err != nil {
				return err
			}
			h := rcu.Register()
			defer h.Unregister()

			cfg, err := loadConfigWithOverrides(c)
			if err != nil {
				return err
			}
			opts := export.Options{
				Files:           c.Bool("files") || cfg.Output.Files,
				IncludeExternal: c.Bool("include-external") || cfg.Output.IncludeExternal,
				IncludeRef:      c.Bool("include-ref") || cfg.Output.IncludeRef,
			}
			filter := export.NewFilter()
			for _, n := range c.StringSlice("omit") {
				if filter.Omitted == nil {
					filter.Omitted = make(map[string]bool)
				}
				filter.Omitted[n] = true
			}
			for _, n := range c.StringSlice("keep") {
				if filter.Keep == nil {
					filter.Keep = make(map[string]bool)
				}
				filter.Keep[n] = true
			}

			out := os.Stdout
			if c.NArg() > 0 {
				f, err := os.Create(c.Args().First())
				if err != nil {
					return err
				}
				defer f.Close()
				out = f
			}
			return export.WriteDot(out, g, h, opts, filter)
		},
	}
}

func watchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Ingest the configured dumps, then re-ingest on changes until interrupted",
		Action: func(c *cli.Context) error {
			_, l, stats, err := buildGraph(c)
			if err != nil {
				return err
			}
			fmt.Printf("loaded %d files, %d nodes; watching %s\n",
				stats.Files, stats.Nodes, l.Root())

			log, err := newLogger(c)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			w := loader.NewWatcher(l, log)
			if err := w.Run(ctx); err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		},
	}
}
