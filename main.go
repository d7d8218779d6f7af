package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/percona/percona-collection-migrator/config"
	"github.com/percona/percona-collection-migrator/errors"
	"github.com/percona/percona-collection-migrator/invoke"
	"github.com/percona/percona-collection-migrator/log"
	"github.com/percona/percona-collection-migrator/metrics"
	"github.com/percona/percona-collection-migrator/secret"
	"github.com/percona/percona-collection-migrator/util"
)

// Constants for server configuration.
const (
	ServerReadTimeout       = 30 * time.Second
	ServerReadHeaderTimeout = 3 * time.Second
	MaxRequestSize          = humanize.MiByte
	ServerShutdownTimeout   = 5 * time.Second
)

// RequestIDHeader carries the correlation id of an invocation.
const RequestIDHeader = "X-Request-Id"

// contextKey is a type for context keys used in this package.
type contextKey string

// configContextKey is the context key for storing *config.Config.
const configContextKey contextKey = "config"

// errOperationFailed makes the process exit non-zero after the result is printed.
var errOperationFailed = errors.New("operation failed")

var (
	Version   = "v0.1.0" //nolint:gochecknoglobals
	Platform  = ""       //nolint:gochecknoglobals
	GitCommit = ""       //nolint:gochecknoglobals
	GitBranch = ""       //nolint:gochecknoglobals
	BuildTime = ""       //nolint:gochecknoglobals
)

func buildVersion() string {
	return Version + " " + GitCommit + " " + BuildTime
}

//nolint:gochecknoglobals
var rootCmd = &cobra.Command{
	Use:   "pcmm",
	Short: "Percona Collection Migrator for MongoDB",

	SilenceUsage: true,

	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		// Load and validate config
		cfg, err := config.Load(cmd)
		if err != nil {
			return errors.Wrap(err, "load config")
		}

		logLevel, err := zerolog.ParseLevel(cfg.Log.Level)
		if err != nil {
			logLevel = zerolog.InfoLevel
		}

		lg := log.InitGlobals(logLevel, cfg.Log.JSON, cfg.Log.NoColor)
		ctx := lg.WithContext(context.Background())
		ctx = context.WithValue(ctx, configContextKey, cfg)
		cmd.SetContext(ctx)

		return nil
	},
}

//nolint:gochecknoglobals
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, _ []string) {
		info := fmt.Sprintf("Version:   %s\nPlatform:  %s\nGitCommit: "+
			"%s\nGitBranch: %s\nBuildTime: %s\nGoVersion: %s",
			Version,
			Platform,
			GitCommit,
			GitBranch,
			BuildTime,
			runtime.Version(),
		)

		fmt.Fprintln(cmd.OutOrStdout(), info)
	},
}

//nolint:gochecknoglobals
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve operation requests over HTTP",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg := cmd.Context().Value(configContextKey).(*config.Config) //nolint:forcetypeassert

		log.Ctx(cmd.Context()).Info("Percona Collection Migrator " + buildVersion())

		return runServer(cmd.Context(), cfg)
	},
}

//nolint:gochecknoglobals
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Copy indexes and documents of a collection, or of every collection of a database",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runOperation(cmd, invoke.OperationExecuteMigration)
	},
}

//nolint:gochecknoglobals
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check that the source and the destination are reachable",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runOperation(cmd, invoke.OperationCheckConnectivity)
	},
}

//nolint:gochecknoglobals
var sizeCmd = &cobra.Command{
	Use:   "size",
	Short: "Count the documents of a collection on the destination",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runOperation(cmd, invoke.OperationGetCollectionSize)
	},
}

//nolint:gochecknoglobals
var dropCmd = &cobra.Command{
	Use:   "drop",
	Short: "Drop a collection on the destination",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runOperation(cmd, invoke.OperationDropCollection)
	},
}

func main() {
	rootCmd.PersistentFlags().String("log-level", "info", "Log level")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output log in JSON format")
	rootCmd.PersistentFlags().Bool("log-no-color", false, "Disable log color")

	rootCmd.PersistentFlags().Int("port", config.DefaultServerPort, "Port number")
	rootCmd.PersistentFlags().String("config", config.DefaultEnvironmentsFile,
		"Environments file (YAML)")

	rootCmd.PersistentFlags().String("mongodb-operation-timeout", config.DefaultMongoDBOperationTimeout.String(),
		"Timeout for check, size and drop operations (e.g., 30s, 5m)")
	rootCmd.PersistentFlags().String("mongodb-connect-timeout", config.DefaultMongoDBConnectTimeout.String(),
		"Timeout for connecting and selecting a server")

	rootCmd.PersistentFlags().Int("batch-size", config.DefaultBatchSize,
		"Number of documents per insert batch")
	rootCmd.PersistentFlags().Int("num-parallel-collections", config.DefaultNumParallelCollections,
		"Number of collections copied in parallel when migrating a whole database")
	rootCmd.PersistentFlags().StringSlice("include-collections", nil,
		"Collection patterns to migrate when migrating a whole database (e.g. orders,audit_*)")
	rootCmd.PersistentFlags().StringSlice("exclude-collections", nil,
		"Collection patterns to skip when migrating a whole database")

	rootCmd.PersistentFlags().String("secrets-provider", config.SecretsProviderAWS,
		"Where credential references are resolved: aws or env")
	rootCmd.PersistentFlags().String("aws-region", "", "AWS region of the secrets manager")
	rootCmd.PersistentFlags().String("aws-endpoint", "", "")
	rootCmd.PersistentFlags().MarkHidden("aws-endpoint") //nolint:errcheck

	for _, cmd := range []*cobra.Command{migrateCmd, checkCmd, sizeCmd, dropCmd} {
		cmd.Flags().String("env", "", "Environment name (dev, qa or prod)")
		cmd.Flags().String("database", "", "Database name")
		cmd.Flags().String("collection", "", "Collection name")
		cmd.Flags().String("request-id", "", "Correlation id (generated when empty)")
		cmd.Flags().Bool("remote", false, "Send the request to a running pcmm serve on --port")
	}

	rootCmd.AddCommand(
		versionCmd,
		serveCmd,
		migrateCmd,
		checkCmd,
		sizeCmd,
		dropCmd,
	)

	err := rootCmd.Execute()
	if err != nil {
		zerolog.Ctx(context.Background()).Fatal().Err(err).Msg("")
	}
}

// runOperation runs op in-process, or on a server with --remote, and prints
// the result.
func runOperation(cmd *cobra.Command, op invoke.Operation) error {
	ctx := cmd.Context()
	cfg := ctx.Value(configContextKey).(*config.Config) //nolint:forcetypeassert

	env, _ := cmd.Flags().GetString("env")
	database, _ := cmd.Flags().GetString("database")
	collection, _ := cmd.Flags().GetString("collection")
	requestID, _ := cmd.Flags().GetString("request-id")
	remote, _ := cmd.Flags().GetBool("remote")

	req := invoke.OperationRequest{
		Environment:    env,
		DatabaseName:   database,
		CollectionName: collection,
		Operation:      op,
	}

	var res invoke.OperationResult

	if remote {
		var err error

		res, err = NewClient(cfg.Port).Invoke(ctx, requestID, req)
		if err != nil {
			return err
		}
	} else {
		ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
		defer stop()

		h, err := newHandler(ctx, cfg)
		if err != nil {
			return err
		}

		res = h.Handle(ctx, invoke.RequestContext{CorrelationID: requestID}, req)
	}

	err := printJSON(cmd.OutOrStdout(), res)
	if err != nil {
		return err
	}

	if !res.Succeeded() {
		return errOperationFailed
	}

	return nil
}

// newHandler wires the environments file, the secret resolver and the
// MongoDB connector of cfg.
func newHandler(ctx context.Context, cfg *config.Config) (*invoke.Handler, error) {
	envs, err := config.LoadEnvironments(cfg.EnvironmentsFile)
	if err != nil {
		return nil, errors.Wrap(err, "load environments")
	}

	resolver, err := secret.New(ctx, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "secrets")
	}

	connector, err := invoke.NewMongoConnector(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "collection filter")
	}

	log.Ctx(ctx).Debugf("Environments: %s", strings.Join(envs.Names(), ", "))

	return invoke.NewHandler(cfg, envs, resolver, connector), nil
}

// runServer starts the HTTP server with the provided configuration.
func runServer(ctx context.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, os.Kill)
	defer stop()

	h, err := newHandler(ctx, cfg)
	if err != nil {
		return errors.Wrap(err, "new server")
	}

	promRegistry := prometheus.NewRegistry()
	metrics.Init(promRegistry)

	srv := NewServer(h, promRegistry)

	addr := fmt.Sprintf("localhost:%d", cfg.Port)
	httpServer := http.Server{
		Addr:    addr,
		Handler: srv.Handler(),

		ReadTimeout:       ServerReadTimeout,
		ReadHeaderTimeout: ServerReadHeaderTimeout,
	}

	go func() {
		<-ctx.Done()

		err := util.WithTimeout(context.WithoutCancel(ctx), ServerShutdownTimeout, httpServer.Shutdown)
		if err != nil {
			log.New("server").Error(err, "Shutdown server")
		}
	}()

	log.Ctx(ctx).Info("Starting HTTP server at http://" + addr)

	err = httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}

	return err //nolint:wrapcheck
}

// Invoker handles one operation request.
type Invoker interface {
	Handle(ctx context.Context, rc invoke.RequestContext, req invoke.OperationRequest) invoke.OperationResult
}

// Server serves operation requests and metrics.
type Server struct {
	invoker Invoker

	// promRegistry is the Prometheus registry for metrics.
	promRegistry *prometheus.Registry
}

func NewServer(invoker Invoker, promRegistry *prometheus.Registry) *Server {
	return &Server{invoker: invoker, promRegistry: promRegistry}
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/invoke", s.HandleInvoke)
	mux.Handle("/metrics", s.HandleMetrics())

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			log.New("http").Trace(r.Method + " " + r.URL.String())
		} else {
			log.New("http").Info(r.Method + " " + r.URL.String())
		}
		mux.ServeHTTP(w, r)
	})
}

// HandleInvoke handles the /invoke endpoint. The operation runs for as long
// as the client keeps the connection open.
func (s *Server) HandleInvoke(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w,
			http.StatusText(http.StatusMethodNotAllowed),
			http.StatusMethodNotAllowed)

		return
	}

	if r.ContentLength > MaxRequestSize {
		http.Error(w,
			http.StatusText(http.StatusRequestEntityTooLarge),
			http.StatusRequestEntityTooLarge)

		return
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, MaxRequestSize+1))
	if err != nil {
		http.Error(w,
			http.StatusText(http.StatusInternalServerError),
			http.StatusInternalServerError)

		return
	}

	if len(data) > MaxRequestSize {
		http.Error(w,
			http.StatusText(http.StatusRequestEntityTooLarge),
			http.StatusRequestEntityTooLarge)

		return
	}

	var req invoke.OperationRequest

	err = json.Unmarshal(data, &req)
	if err != nil {
		http.Error(w,
			http.StatusText(http.StatusBadRequest),
			http.StatusBadRequest)

		return
	}

	rc := invoke.RequestContext{CorrelationID: r.Header.Get(RequestIDHeader)}

	writeResponse(w, s.invoker.Handle(r.Context(), rc, req))
}

func (s *Server) HandleMetrics() http.Handler {
	return promhttp.HandlerFor(s.promRegistry, promhttp.HandlerOpts{})
}

// writeResponse writes the response as JSON to the ResponseWriter.
func writeResponse[T any](w http.ResponseWriter, resp T) {
	w.Header().Set("Content-Type", "application/json")

	err := json.NewEncoder(w).Encode(resp)
	if err != nil {
		http.Error(w,
			http.StatusText(http.StatusInternalServerError),
			http.StatusInternalServerError)
	}
}

func printJSON(w io.Writer, v any) error {
	j := json.NewEncoder(w)
	j.SetIndent("", "  ")

	return errors.Wrap(j.Encode(v), "print response")
}

type PCMMClient struct {
	baseURL string
}

func NewClient(port int) PCMMClient {
	return PCMMClient{baseURL: fmt.Sprintf("http://localhost:%d", port)}
}

// Invoke sends an operation request to a running server.
func (c PCMMClient) Invoke(
	ctx context.Context,
	requestID string,
	req invoke.OperationRequest,
) (invoke.OperationResult, error) {
	return doClientRequest[invoke.OperationResult](ctx, c.baseURL, requestID,
		http.MethodPost, "invoke", req)
}

func doClientRequest[T any](
	ctx context.Context,
	baseURL, requestID, method, path string,
	body any,
) (T, error) {
	var resp T

	url := baseURL + "/" + path

	bodyData := []byte("")
	if body != nil {
		var err error
		bodyData, err = json.Marshal(body)
		if err != nil {
			return resp, errors.Wrap(err, "encode request")
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(bodyData))
	if err != nil {
		return resp, errors.Wrap(err, "build request")
	}

	req.Header.Set("Content-Type", "application/json")
	if requestID != "" {
		req.Header.Set(RequestIDHeader, requestID)
	}

	log.Ctx(ctx).Debugf("%s /%s %s", method, path, string(bodyData))

	res, err := http.DefaultClient.Do(req)
	if err != nil {
		return resp, errors.Wrap(err, "request")
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, MaxRequestSize))

		return resp, errors.Errorf("%s: %s", res.Status, strings.TrimSpace(string(msg)))
	}

	err = json.NewDecoder(res.Body).Decode(&resp)
	if err != nil {
		return resp, errors.Wrap(err, "decode response")
	}

	return resp, nil
}
