package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"raichain/bootstrap"
	"raichain/callback"
	"raichain/election"
	"raichain/metrics"
	"raichain/pkg/config"
	"raichain/primitives"
	"raichain/process"
	"raichain/store"
)

func daemonCmd(envName *string) *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "run the node: processor, elections, bootstrap, callback server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(*envName)
		},
	}
}

func runDaemon(envName string) error {
	cfg, err := loadConfig(envName)
	if err != nil {
		return wrapConfigError(err)
	}

	log := newLogger(cfg)
	log.WithField("data_dir", cfg.Node.DataDir).Info("raichaind: starting")

	db, err := store.Open(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	clock := func() uint64 { return uint64(time.Now().Unix()) }
	m := metrics.New()

	procParams := process.DefaultParams()
	procParams.TransactionsPerCredit = cfg.Process.TransactionsPerCredit
	procParams.BoundedSkewSeconds = cfg.Process.BoundedSkewSeconds
	procParams.RewardRateBasisPoints = cfg.Process.RewardRateBasisPoints
	proc := process.New(db, log, clock, procParams)
	proc.Subscribe(metrics.NewProcessObserver(m))

	cb := callback.NewBroadcaster(cfg.Callback.URLs, log)
	proc.Subscribe(cb)

	electParams := election.DefaultParams()
	if cfg.Election.QuorumFactor > 0 {
		electParams.QuorumFactor = cfg.Election.QuorumFactor
	}
	if cfg.Election.Workers > 0 {
		electParams.Workers = cfg.Election.Workers
	}
	if cfg.Election.TimeoutSeconds > 0 {
		electParams.TimeoutSeconds = cfg.Election.TimeoutSeconds
	}
	if cfg.Election.ReconfirmIntervalSeconds > 0 {
		electParams.ReconfirmIntervalSeconds = cfg.Election.ReconfirmIntervalSeconds
	}
	if cfg.Election.QualifiedRepWeight != "" {
		if w, err := primitives.ParseAmountDecimal(cfg.Election.QualifiedRepWeight); err == nil {
			electParams.QualifiedRepWeight = w
		} else {
			log.WithError(err).Warn("raichaind: invalid election.qualified_rep_weight, using default")
		}
	}
	mgr := election.New(db, proc, log, election.Clock(clock), electParams)
	defer mgr.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	active := bootstrap.NewActiveSet()
	proc.Subscribe(active)
	bsServer := bootstrap.NewServer(db, log, active)

	var ln net.Listener
	if cfg.Server.ListenAddr != "" {
		ln, err = net.Listen("tcp", cfg.Server.ListenAddr)
		if err != nil {
			return err
		}
		go func() {
			if err := bsServer.Serve(ctx, ln); err != nil {
				log.WithError(err).Warn("raichaind: bootstrap server stopped")
			}
		}()
	}

	var bsClient *bootstrap.Client
	if len(cfg.Bootstrap.Peers) > 0 {
		dialTimeout := time.Duration(cfg.Bootstrap.DialTimeoutSeconds) * time.Second
		if dialTimeout <= 0 {
			dialTimeout = 5 * time.Second
		}
		bp := bootstrap.DefaultParams()
		if cfg.Bootstrap.BatchSize > 0 {
			bp.BatchMax = uint32(cfg.Bootstrap.BatchSize)
		}
		if cfg.Bootstrap.SlowPeerFloorBlkPerS > 0 {
			bp.ThroughputFloorBytesPerSec = cfg.Bootstrap.SlowPeerFloorBlkPerS
		}
		bsClient = bootstrap.NewClient(cfg.Bootstrap.Peers, bootstrap.DefaultDialer(dialTimeout), proc, db, log, bp)
		go bsClient.Run(ctx, 10*time.Minute)
	}

	go driveProcessor(ctx, proc, m)

	router := newAdminRouter(m, proc, mgr, bsClient, cb, cfg)
	var httpServer *http.Server
	if cfg.Server.ListenAddr != "" {
		httpAddr := httpAddrFor(cfg.Server.ListenAddr)
		httpServer = &http.Server{Addr: httpAddr, Handler: router}
		go func() {
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.WithError(err).Warn("raichaind: admin http server stopped")
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Info("raichaind: shutting down")
	cancel()
	if httpServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}
	return nil
}

// driveProcessor is the "block processor loop" long-lived goroutine (spec
// §5): it drains the admit queue until ctx is cancelled, sampling queue
// depth into m between drains.
func driveProcessor(ctx context.Context, proc *process.Processor, m *metrics.Handle) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for {
				if _, ok := proc.DrainOnce(); !ok {
					break
				}
			}
			for proc.DrainForkOnce() {
			}
			m.AdmitQueueDepth.Set(float64(proc.QueueDepth()))
			m.ForkQueueDepth.Set(float64(proc.ForkQueueDepth()))
		}
	}
}

func newLogger(cfg *config.Config) *logrus.Logger {
	log := logrus.New()
	if lvl, err := logrus.ParseLevel(cfg.Node.LogLevel); err == nil {
		log.SetLevel(lvl)
	}
	if cfg.Node.LogFormat == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	}
	return log
}

// httpAddrFor derives the admin HTTP listen address from the bootstrap
// listen address by shifting the port by one, so a single listen_addr
// config value covers both without an extra field.
func httpAddrFor(bootstrapAddr string) string {
	host, port, err := net.SplitHostPort(bootstrapAddr)
	if err != nil {
		return bootstrapAddr
	}
	p, err := net.LookupPort("tcp", port)
	if err != nil {
		return bootstrapAddr
	}
	return net.JoinHostPort(host, strconv.Itoa(p+1))
}
