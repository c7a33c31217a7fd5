package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hanpama/gqlexec/internal/eventbus"
	"github.com/hanpama/gqlexec/internal/executor"
	"github.com/hanpama/gqlexec/internal/fixture"
	"github.com/hanpama/gqlexec/internal/language"
	"github.com/hanpama/gqlexec/internal/otel"
	"github.com/hanpama/gqlexec/internal/schema"
	"github.com/hanpama/gqlexec/internal/server"
	"github.com/hanpama/gqlexec/internal/validator"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "gqlexec",
		Short:        "GraphQL execution engine and server",
		SilenceUsage: true,
	}
	root.AddCommand(newServeCmd(), newExecCmd(), newValidateCmd(), newPrintSchemaCmd())
	return root
}

// project is a schema with its fixture data, shared by all commands.
type project struct {
	schemaFile string
	dataFile   string

	sch  *schema.Schema
	data *fixture.Data
}

func (p *project) flags(cmd *cobra.Command, withData bool) {
	cmd.Flags().StringVar(&p.schemaFile, "schema", "", "GraphQL SDL file (required)")
	_ = cmd.MarkFlagRequired("schema")
	if withData {
		cmd.Flags().StringVar(&p.dataFile, "data", "", "YAML or JSON fixture with root values and subscription events")
	}
}

func (p *project) load() error {
	sdl, err := os.ReadFile(p.schemaFile)
	if err != nil {
		return err
	}
	p.sch, err = schema.BuildFromSDL(string(sdl))
	if err != nil {
		return fmt.Errorf("build schema: %w", err)
	}
	p.data = &fixture.Data{Root: map[string]any{}}
	if p.dataFile != "" {
		if p.data, err = fixture.Load(p.dataFile); err != nil {
			return fmt.Errorf("load data: %w", err)
		}
	}
	return nil
}

// runtime resolves fields from the fixture and streams its subscription
// events.
func (p *project) runtime() executor.Runtime {
	return p.data.Runtime(executor.NewSchemaRuntime(p.sch))
}

// queryFlags holds the operation selected by --query or --query-file.
type queryFlags struct {
	query     string
	queryFile string
	operation string
}

func (q *queryFlags) flags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&q.query, "query", "", "GraphQL document")
	cmd.Flags().StringVar(&q.queryFile, "query-file", "", "File containing the GraphQL document")
	cmd.Flags().StringVar(&q.operation, "operation", "", "Operation name to run")
	cmd.MarkFlagsMutuallyExclusive("query", "query-file")
	cmd.MarkFlagsOneRequired("query", "query-file")
}

func (q *queryFlags) document() (*language.QueryDocument, error) {
	src := q.query
	if q.queryFile != "" {
		b, err := os.ReadFile(q.queryFile)
		if err != nil {
			return nil, err
		}
		src = string(b)
	}
	return language.ParseQuery(src)
}

func newServeCmd() *cobra.Command {
	var (
		p   project
		cfg serveConfig
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the schema over HTTP and WebSocket",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := p.load(); err != nil {
				return err
			}

			eventbus.Use(eventbus.New())
			shutdown, err := otel.Setup(cfg.otelEndpoint, cfg.otelService)
			if err != nil {
				return fmt.Errorf("otel setup: %w", err)
			}
			defer func() { _ = shutdown(context.Background()) }()

			h, err := cfg.handler(&p)
			if err != nil {
				return fmt.Errorf("server init: %w", err)
			}
			mux := http.NewServeMux()
			mux.Handle("/graphql", h)
			srv := &http.Server{Addr: cfg.addr, Handler: mux}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			go func() {
				<-ctx.Done()
				sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = srv.Shutdown(sctx)
			}()

			log.Printf("GraphQL server listening on %s", cfg.addr)
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	p.flags(cmd, true)
	f := cmd.Flags()
	f.StringVar(&cfg.addr, "addr", ":8080", "HTTP listen address")
	f.DurationVar(&cfg.timeout, "timeout", 10*time.Second, "Per-request timeout")
	f.BoolVar(&cfg.pretty, "pretty", false, "Pretty-print JSON responses")
	f.BoolVar(&cfg.introspection, "introspection", true, "Enable GraphQL introspection")
	f.IntVar(&cfg.maxDepth, "max-depth", 0, "Maximum selection depth (0 disables the limit)")
	f.IntVar(&cfg.maxComplexity, "max-complexity", 0, "Maximum number of selected fields (0 disables the limit)")
	f.StringArrayVar(&cfg.metadataHeaders, "metadata-header", nil, "Forward HTTP header to outgoing gRPC metadata. Repeatable")
	f.StringArrayVar(&cfg.corsOrigins, "cors-origin", nil, "Allowed CORS origin, * for any. Repeatable")
	f.StringVar(&cfg.otelEndpoint, "otel-endpoint", "", "OTLP collector endpoint")
	f.StringVar(&cfg.otelService, "otel-service", "gqlexec", "OpenTelemetry service name")
	return cmd
}

type serveConfig struct {
	addr            string
	timeout         time.Duration
	pretty          bool
	introspection   bool
	maxDepth        int
	maxComplexity   int
	metadataHeaders []string
	corsOrigins     []string
	otelEndpoint    string
	otelService     string
}

func (c *serveConfig) handler(p *project) (*server.Handler, error) {
	var vopts []validator.Option
	if c.maxDepth > 0 {
		vopts = append(vopts, validator.WithMaxDepth(c.maxDepth))
	}
	if c.maxComplexity > 0 {
		vopts = append(vopts, validator.WithMaxComplexity(c.maxComplexity))
	}
	if !c.introspection {
		vopts = append(vopts, validator.WithoutIntrospection())
	}

	sopts := []server.Option{
		server.WithRootValue(p.data.Root),
		server.WithGraphiQL(c.introspection),
		server.WithExecutorOptions(executor.WithValidation(vopts...)),
	}
	if c.pretty {
		sopts = append(sopts, server.WithPretty())
	}
	if c.timeout > 0 {
		sopts = append(sopts, server.WithTimeout(c.timeout))
	}
	if len(c.metadataHeaders) > 0 {
		sopts = append(sopts, server.WithMetadataHeaders(c.metadataHeaders...))
	}
	if len(c.corsOrigins) > 0 {
		sopts = append(sopts, server.WithCORS(c.corsOrigins...))
	}
	return server.New(p.runtime(), p.sch, sopts...)
}

func newExecCmd() *cobra.Command {
	var (
		p         project
		q         queryFlags
		variables string
	)
	cmd := &cobra.Command{
		Use:   "exec",
		Short: "Run one operation against fixture data and print the response",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := p.load(); err != nil {
				return err
			}
			doc, err := q.document()
			if err != nil {
				return err
			}
			vars, err := parseVariables(variables)
			if err != nil {
				return err
			}

			exec := executor.NewExecutor(p.runtime(), p.sch)
			op, errs := exec.Validate(doc, q.operation, vars)
			if len(errs) > 0 {
				return printJSON(cmd.OutOrStdout(), &executor.ExecutionResult{Errors: executor.ErrorsFrom(errs)})
			}
			if op.Kind != language.Subscription {
				return printJSON(cmd.OutOrStdout(), exec.Execute(cmd.Context(), op, p.data.Root))
			}
			results, err := exec.Subscribe(cmd.Context(), op, p.data.Root)
			if err != nil {
				return printJSON(cmd.OutOrStdout(), executor.ErrorResult(err))
			}
			for res := range results {
				if err := printJSON(cmd.OutOrStdout(), res); err != nil {
					return err
				}
			}
			return nil
		},
	}
	p.flags(cmd, true)
	q.flags(cmd)
	cmd.Flags().StringVar(&variables, "variables", "", "Variable values as a JSON object")
	return cmd
}

func newValidateCmd() *cobra.Command {
	var (
		p project
		q queryFlags
	)
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate an operation against the schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := p.load(); err != nil {
				return err
			}
			doc, err := q.document()
			if err != nil {
				return err
			}
			_, errs := validator.Validate(p.sch, doc, q.operation, nil)
			for _, e := range errs {
				fmt.Fprintln(cmd.OutOrStdout(), e.Error())
			}
			if len(errs) > 0 {
				return fmt.Errorf("%d validation error(s)", len(errs))
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}
	p.flags(cmd, false)
	q.flags(cmd)
	return cmd
}

func newPrintSchemaCmd() *cobra.Command {
	var p project
	cmd := &cobra.Command{
		Use:   "print-schema",
		Short: "Print the schema as normalized SDL",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := p.load(); err != nil {
				return err
			}
			_, err := fmt.Fprint(cmd.OutOrStdout(), schema.Render(p.sch))
			return err
		},
	}
	p.flags(cmd, false)
	return cmd
}

func parseVariables(s string) (map[string]any, error) {
	if s == "" {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.UseNumber()
	var vars map[string]any
	if err := dec.Decode(&vars); err != nil {
		return nil, fmt.Errorf("invalid --variables: %w", err)
	}
	return vars, nil
}

func printJSON(w io.Writer, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}
