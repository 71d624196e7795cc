package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"enam/internal/config"
	"enam/internal/controller"
	"enam/internal/pages"
	"enam/internal/portfolio"
	"enam/internal/record"
	"enam/internal/render"
	"enam/internal/source"
	"enam/internal/util"
	"enam/pkg/enam"
)

const version = "0.1.0"

// exitErr carries a numeric exit code through the cobra error path.
type exitErr struct {
	code int
	msg  string
}

func (e *exitErr) Error() string { return e.msg }

func codeError(code int, format string, args ...any) error {
	return &exitErr{code: code, msg: fmt.Sprintf(format, args...)}
}

// app holds what every subcommand shares.
type app struct {
	cfgPath string
	verbose bool
	remote  string

	cfg    *config.Config
	cat    *pages.Catalogue
	logger *slog.Logger
}

func (a *app) setup(_ *cobra.Command, _ []string) error {
	cfg, err := config.LoadOrDefault(a.cfgPath)
	if err != nil {
		return codeError(3, "loading config: %s", err)
	}
	level := "warn"
	if a.verbose {
		level = "debug"
	}
	a.cfg = cfg
	a.logger = util.NewLoggerTo(os.Stderr, level, "text")
	a.cat = pages.Default()
	if err := a.cat.Apply(cfg.Pages); err != nil {
		return codeError(3, "applying page overrides: %s", err)
	}
	return nil
}

func main() {
	a := &app{}
	root := &cobra.Command{
		Use:               "enam-cli",
		Short:             "Query enam dashboard pages from the command line",
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgPath, "config", config.Path(), "Config file (missing file uses defaults)")
	pf.BoolVar(&a.verbose, "verbose", false, "Log processing steps to stderr")
	pf.StringVar(&a.remote, "remote", "", "Query a running enam-server at this URL instead of reading sources directly")

	root.AddCommand(
		&cobra.Command{
			Use:   "version",
			Short: "Print the CLI version",
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "enam-cli %s\n", version)
			},
		},
		a.pagesCmd(),
		a.queryCmd(),
		a.refreshCmd(),
		a.portfolioCmd(),
		a.healthCmd(),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := root.ExecuteContext(ctx); err != nil {
		var ee *exitErr
		if errors.As(err, &ee) {
			fmt.Fprintln(os.Stderr, "Error:", ee.msg)
			cancel()
			os.Exit(ee.code)
		}
		cancel()
		os.Exit(1)
	}
}

func (a *app) pagesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pages",
		Short: "List dashboard pages and their filters",
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := cmd.OutOrStdout()
			for _, p := range a.cat.Pages() {
				var params []string
				for _, d := range p.Dimensions {
					params = append(params, d.Param)
				}
				fmt.Fprintf(w, "%-16s %-24s %-8s %s\n", p.Name, p.Title, p.Layout, strings.Join(params, ","))
			}
			return nil
		},
	}
}

// queryFlags holds the parsed flags for the query command.
type queryFlags struct {
	filters []string
	page    int
	size    int
	format  string
}

func (a *app) queryCmd() *cobra.Command {
	var flags queryFlags
	cmd := &cobra.Command{
		Use:   "query <page>",
		Short: "Filter one page and print the visible records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runQuery(cmd.Context(), cmd.OutOrStdout(), args[0], flags)
		},
	}
	f := cmd.Flags()
	f.StringArrayVarP(&flags.filters, "filter", "f", nil, "Filter as param=value, e.g. range=1week or source=ET (may be repeated)")
	f.IntVar(&flags.page, "page", 0, "Page number (paginated pages)")
	f.IntVar(&flags.size, "size", 0, "Page size (paginated pages)")
	f.StringVar(&flags.format, "format", "md", "Output format: md or json")
	return cmd
}

func (flags queryFlags) values() (url.Values, error) {
	v := url.Values{}
	for _, f := range flags.filters {
		k, val, ok := strings.Cut(f, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("filter %q: want param=value", f)
		}
		v.Add(strings.TrimSpace(k), val)
	}
	if flags.page > 0 {
		v.Set("page", fmt.Sprint(flags.page))
	}
	if flags.size > 0 {
		v.Set("size", fmt.Sprint(flags.size))
	}
	return v, nil
}

func (a *app) runQuery(ctx context.Context, w io.Writer, name string, flags queryFlags) error {
	if flags.format != "md" && flags.format != "json" {
		return codeError(3, "invalid --format %q: want md or json", flags.format)
	}
	p, ok := a.cat.Lookup(name)
	if !ok {
		return codeError(2, "unknown page %q (see enam-cli pages)", name)
	}
	params, err := flags.values()
	if err != nil {
		return codeError(3, "%s", err)
	}
	if a.remote != "" {
		return a.runRemoteQuery(ctx, w, p, params, flags.format)
	}

	q, err := p.ParseQuery(params)
	if err != nil {
		return codeError(3, "%s", err)
	}
	src := source.NewFetcher(a.cfg.Sources.BaseURL, a.cfg.Sources.DataDir, a.logger)
	var folio portfolio.Service
	if p.Scope != nil {
		if folio, err = portfolio.Open(a.cfg, a.logger); err != nil {
			return codeError(3, "%s", err)
		}
	}
	ctrl := controller.New(&p.Pipeline, src, folio, nil, a.logger)
	if err := ctrl.Load(ctx); err != nil {
		return fmt.Errorf("loading %s: %w", name, err)
	}
	res := p.Compute(ctrl.Dataset().All, q.Filters, render.Sort{}, q.Page, q.Size, time.Now())
	a.logger.Debug("query", "page", name, "matched", len(res.Filtered), "visible", len(res.Visible))

	if flags.format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res.Visible)
	}
	if err := printRecords(w, p, res.Visible, ctrl.Columns()); err != nil {
		return err
	}
	if res.PageSize > 0 {
		fmt.Fprintf(w, "\npage %d of %d, %d matching records\n", res.Page, res.TotalPages, len(res.Filtered))
	}
	return nil
}

func (a *app) runRemoteQuery(ctx context.Context, w io.Writer, p *pages.Page, params url.Values, format string) error {
	c := enam.NewClient(a.remote)
	res, err := c.Query(ctx, p.Name, params)
	if err != nil {
		return err
	}
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res.Records)
	}
	cols := make([]render.Column, len(res.Columns))
	keys := make([]string, len(res.Columns))
	for i, c := range res.Columns {
		cols[i] = render.Column{Key: c.Key, Title: c.Title, Kind: render.ParseKind(c.Kind), NoWrap: c.NoWrap}
		if hint, ok := render.Find(p.Columns, c.Key); ok {
			cols[i].Format = hint.Format
		}
		keys[i] = c.Key
	}
	recs := make([]record.Record, len(res.Records))
	for i, m := range res.Records {
		r := record.New(len(keys))
		for _, k := range keys {
			r.Set(k, record.ValueOf(m[k]))
		}
		recs[i] = r
	}
	if err := printRecords(w, p, recs, cols); err != nil {
		return err
	}
	if res.PageSize > 0 {
		fmt.Fprintf(w, "\npage %d of %d, %d matching records\n", res.CurrentPage, res.TotalPages, res.Matched)
	}
	return nil
}

// printRecords renders records on the page's text surface. Markdown is styled
// with glamour when stdout is a terminal.
func printRecords(w io.Writer, p *pages.Page, recs []record.Record, cols []render.Column) error {
	surf := p.Text(time.Now)
	if err := surf.Render(recs, cols); err != nil {
		return err
	}
	var out string
	if s, ok := surf.(fmt.Stringer); ok {
		out = s.String()
	}
	if _, ok := surf.(*render.Markdown); ok && w == os.Stdout && term.IsTerminal(os.Stdout.Fd()) {
		r, err := glamour.NewTermRenderer(glamour.WithAutoStyle())
		if err == nil {
			if s, err := r.Render(out); err == nil {
				out = s
			}
		}
	}
	_, err := io.WriteString(w, out)
	return err
}

func (a *app) refreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh <page>",
		Short: "Ask a running enam-server (--remote) to reload a page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.remote == "" {
				return codeError(3, "refresh needs --remote")
			}
			n, err := enam.NewClient(a.remote).Refresh(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d records\n", args[0], n)
			return nil
		},
	}
}
