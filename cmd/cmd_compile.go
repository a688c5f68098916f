package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ehrbase/aqlengine/core"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// querySource is one AQL query given on the command line or in a file
type querySource struct {
	name string
	text string
}

func compileCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "compile [query]",
		Short: "Compile AQL into SQL",
		Long: `Compile AQL queries into PostgreSQL statements.

The query is taken from the argument or from one or more --file flags.
Files are compiled concurrently and printed in the order given.`,
		Args: cobra.MaximumNArgs(1),
		RunE: cmdCompile,
	}
	c.Flags().StringSlice("file", nil, "file holding an AQL query (repeatable)")
	c.Flags().String("params", "", "query parameters as a JSON object")
	c.Flags().String("format", "sql", "Output format: sql or json")
	return c
}

func checkCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "check [query]",
		Short: "Check that AQL queries are supported",
		Args:  cobra.MaximumNArgs(1),
		RunE:  cmdCheck,
	}
	c.Flags().StringSlice("file", nil, "file holding an AQL query (repeatable)")
	c.Flags().String("params", "", "query parameters as a JSON object")
	return c
}

func cmdCompile(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	format, _ := cmd.Flags().GetString("format")
	if format != "sql" && format != "json" {
		return fmt.Errorf("unknown format %q", format)
	}

	queries, params, err := readQueries(cmd, args)
	if err != nil {
		return err
	}

	s, err := newService(ctx)
	if err != nil {
		return err
	}
	defer s.Close() //nolint:errcheck

	results := make([]*core.Result, len(queries))
	g, gctx := errgroup.WithContext(ctx)

	for i, q := range queries {
		i, q := i, q
		g.Go(func() error {
			res, err := s.Compile(gctx, q.text, params)
			if err != nil {
				return fmt.Errorf("%s: %w", q.name, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for i, res := range results {
		if format == "json" {
			if err := writeJSON(out, queries[i].name, res); err != nil {
				return err
			}
			continue
		}
		writeSQL(out, queries[i].name, res)
	}
	return nil
}

func cmdCheck(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	queries, params, err := readQueries(cmd, args)
	if err != nil {
		return err
	}

	s, err := newService(ctx)
	if err != nil {
		return err
	}
	defer s.Close() //nolint:errcheck

	var failed int
	out := cmd.OutOrStdout()

	for _, q := range queries {
		err := s.Check(ctx, q.text, params)
		if err == nil {
			fmt.Fprintf(out, "%s: ok\n", q.name)
			continue
		}
		failed++

		var ce *core.Error
		if errors.As(err, &ce) && ce.Path != "" {
			fmt.Fprintf(out, "%s: %s: %s (at %s)\n", q.name, ce.Kind, ce.Msg, ce.Path)
		} else {
			fmt.Fprintf(out, "%s: %s\n", q.name, err)
		}
	}

	if failed != 0 {
		return fmt.Errorf("%d of %d queries failed", failed, len(queries))
	}
	return nil
}

// readQueries collects the queries and the parameters of a command
func readQueries(cmd *cobra.Command, args []string) ([]querySource, map[string]interface{}, error) {
	files, _ := cmd.Flags().GetStringSlice("file")
	pj, _ := cmd.Flags().GetString("params")

	var params map[string]interface{}
	if pj != "" {
		if err := json.Unmarshal([]byte(pj), &params); err != nil {
			return nil, nil, fmt.Errorf("invalid --params: %w", err)
		}
	}

	var queries []querySource
	if len(args) != 0 {
		queries = append(queries, querySource{name: "query", text: args[0]})
	}
	for _, f := range files {
		b, err := afero.ReadFile(cfs, f)
		if err != nil {
			return nil, nil, err
		}
		queries = append(queries, querySource{name: f, text: string(b)})
	}

	if len(queries) == 0 {
		return nil, nil, errors.New("no query given, pass one as argument or with --file")
	}
	return queries, params, nil
}

func writeSQL(w io.Writer, name string, res *core.Result) {
	fmt.Fprintf(w, "-- %s\n%s;\n", name, res.SQL)

	if len(res.Params) != 0 {
		ps := make([]string, len(res.Params))
		for i, p := range res.Params {
			ps[i] = fmt.Sprintf("$%d = %#v", i+1, p)
		}
		fmt.Fprintf(w, "-- params: %s\n", strings.Join(ps, ", "))
	}

	cols := make([]string, len(res.Columns))
	for i, c := range res.Columns {
		cols[i] = c.Alias + " " + c.Name
	}
	fmt.Fprintf(w, "-- columns: %s\n", strings.Join(cols, ", "))
}

func writeJSON(w io.Writer, name string, res *core.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		Name string `json:"name"`
		*core.Result
	}{name, res})
}
