// Command cachebusdemo starts a single cache bus instance against a NATS
// Streaming cluster and logs every coherence event it receives. It is a
// diagnostic tool, not a reference application: a real host still needs
// its own EntityStore implementation.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"

	"github.com/google/uuid"
	"github.com/k-r-g/gemini"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

type noopApplication struct {
	store gemini.EntityStore
}

func (a *noopApplication) Store() gemini.EntityStore { return a.store }

func run() error {
	var (
		addr       string
		cluster    string
		clientID   string
		statusAddr string
	)

	flag.StringVar(&addr, "addr", "nats://localhost:4222", "NATS address")
	flag.StringVar(&cluster, "cluster", "cache-cluster", "NATS Streaming cluster name.")
	flag.StringVar(&clientID, "client-id", "", "NATS Streaming client id (default: a generated uuid)")
	flag.StringVar(&statusAddr, "status-addr", ":8089", "listen address for /healthz and /metrics")
	flag.Parse()

	if clientID == "" {
		clientID = "cachebusdemo-" + uuid.NewString()
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer logger.Sync()

	v := viper.New()
	v.Set("CacheMessageManager.NATSAddress", addr)
	v.Set("CacheMessageManager.NATSCluster", cluster)

	store := &demoStore{}
	app := &noopApplication{store: store}

	publishFactory := &gemini.NATSConnFactory{Addr: addr, Cluster: cluster, ClientID: clientID + "-pub", Logger: logger}
	subscribeFactory := &gemini.NATSConnFactory{Addr: addr, Cluster: cluster, ClientID: clientID + "-sub", Logger: logger}

	registry := prometheus.NewRegistry()
	metrics := gemini.NewMetrics(registry)

	var connected bool
	status := gemini.NewStatusServer(statusAddr, registry, func() bool { return connected })

	mgr := gemini.NewManager(app, publishFactory, subscribeFactory,
		gemini.WithLogger(logger), gemini.WithMetrics(metrics), gemini.WithStatusServer(status))

	if err := mgr.Configure(v); err != nil {
		return err
	}

	ctx := context.Background()
	if err := mgr.Start(ctx); err != nil {
		return err
	}
	connected = true
	defer mgr.Close()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	<-sig

	return nil
}
