package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/mahesh-hegde/explorer/app/config"
	"github.com/mahesh-hegde/explorer/app/contexts"
	"github.com/mahesh-hegde/explorer/app/dataservice"
	"github.com/mahesh-hegde/explorer/app/datastore"
	"github.com/mahesh-hegde/explorer/app/memo"
	"github.com/mahesh-hegde/explorer/app/plot"
	"github.com/mahesh-hegde/explorer/app/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/pflag"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "load":
		runLoad()
	case "server":
		runServer()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "Usage: explorer <command> [options]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  load          Load entity and dataset JSONL files into the database")
	fmt.Fprintln(os.Stderr, "  server        Start the explorer server")
}

func setupLogging(level string) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid --log-level %q\n", level)
		os.Exit(1)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l})))
}

func loadConfig(dataDir string) *config.ExplorerConfig {
	if dataDir == "" {
		slog.Error("--data-dir not provided, stopping")
		os.Exit(1)
	}
	conf, err := config.Load(dataDir)
	if err != nil {
		slog.Error("error while reading config", "err", err)
		os.Exit(1)
	}
	return conf
}

func runLoad() {
	flags := pflag.NewFlagSet("load", pflag.ExitOnError)
	var dataDir, logLevel string
	var force bool
	flags.StringVarP(&dataDir, "data-dir", "d", "",
		"data directory with config.json or config.yaml and the JSONL files it names")
	flags.BoolVarP(&force, "force", "f", false, "rebuild the database even if it exists")
	flags.StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	flags.Parse(os.Args[2:])
	setupLogging(logLevel)

	conf := loadConfig(dataDir)
	if force {
		if err := os.Remove(datastore.DBPath(dataDir)); err != nil && !os.IsNotExist(err) {
			slog.Error("error while removing old database", "err", err)
			os.Exit(1)
		}
	}

	db, err := datastore.InitDB(context.Background(), conf)
	if err != nil {
		slog.Error("error while initializing DB", "err", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database ready", "path", datastore.DBPath(dataDir))
}

func runServer() {
	flags := pflag.NewFlagSet("server", pflag.ExitOnError)
	var serverConf config.ServerRuntimeConfig
	var dataDir, logLevel string
	var upstreamRate float64
	flags.StringVarP(&serverConf.Addr, "address", "a", "localhost", "Server address to bind")
	flags.IntVarP(&serverConf.Port, "port", "p", 8080, "Server port to bind")
	flags.StringVarP(&dataDir, "data-dir", "d", "",
		"data directory to read config and data JSONL files")
	flags.StringVar(&serverConf.CertDir, "cert-dir", "", "directory with TLS certificates, or the ACME cache")
	flags.BoolVar(&serverConf.AcmeEnabled, "acme", false, "obtain certificates with ACME for the configured hostnames")
	flags.IntVar(&serverConf.RateLimit, "rate-limit", 0, "requests per second allowed per client, 0 to disable")
	flags.IntVar(&serverConf.GzipLevel, "gzip-level", 0, "gzip compression level, 0 to disable")
	flags.BoolVar(&serverConf.BehindLoadBalancer, "behind-load-balancer", false,
		"identify clients by forwarded address headers")
	flags.StringVar(&serverConf.UpstreamURL, "upstream-url", "",
		"resolve plots against this data service instead of the local database")
	flags.Float64Var(&upstreamRate, "upstream-rate", 0, "requests per second sent upstream, 0 for no limit")
	flags.StringVar(&serverConf.CatalogDir, "catalog-dir", "", "directory for the context catalog, in memory if empty")
	flags.StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	flags.Parse(os.Args[2:])
	setupLogging(logLevel)

	conf := loadConfig(dataDir)
	ctx := context.Background()

	var svc dataservice.Service
	var cs *contexts.ContextService
	memoTTL := contexts.WithMemoOptions(memo.WithTTL(conf.CacheTTL()))
	if serverConf.UpstreamURL != "" {
		client := dataservice.NewClient(strings.TrimSuffix(serverConf.UpstreamURL, "/"),
			dataservice.WithRateLimit(upstreamRate, max(int(upstreamRate), 1)))
		cs = contexts.NewContextService(client, nil, memoTTL)
		svc = client
		slog.Info("using upstream data service", "url", serverConf.UpstreamURL)
	} else {
		db, err := datastore.InitDB(ctx, conf)
		if err != nil {
			slog.Error("error while initializing DB", "err", err)
			os.Exit(1)
		}
		defer db.Close()

		store := datastore.NewSQLiteStore(db)
		cas := contexts.NewSQLiteStore(db)
		if err := cas.Init(); err != nil {
			slog.Error("error while initializing context store", "err", err)
			os.Exit(1)
		}
		index, err := datastore.BuildEntityIndex(ctx, store, conf)
		if err != nil {
			slog.Error("error while building entity index", "err", err)
			os.Exit(1)
		}
		defer index.Close()

		cs = contexts.NewContextService(cas, store, memoTTL)
		svc = dataservice.NewLocal(store, index, cs)
	}

	catalogDB, err := contexts.OpenCatalogDB(serverConf.CatalogDir)
	if err != nil {
		slog.Error("error while opening context catalog", "err", err)
		os.Exit(1)
	}
	defer catalogDB.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if err := memo.RegisterMetrics(reg); err != nil {
		slog.Error("error while registering metrics", "err", err)
		os.Exit(1)
	}
	if err := plot.RegisterMetrics(reg); err != nil {
		slog.Error("error while registering metrics", "err", err)
		os.Exit(1)
	}

	controller := server.NewExplorerController(svc, cs, contexts.NewCatalog(catalogDB, cs), conf)
	fmt.Printf("Starting server on %s:%d\n", serverConf.Addr, serverConf.Port)
	server.StartServer(controller, conf, serverConf, reg)
}
