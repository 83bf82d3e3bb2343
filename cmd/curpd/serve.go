package main

import (
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Kylemclean11/Xline/pkg/command"
	"github.com/Kylemclean11/Xline/pkg/command/kvcommand"
	"github.com/Kylemclean11/Xline/pkg/consensus"
	"github.com/Kylemclean11/Xline/pkg/engine"
	"github.com/Kylemclean11/Xline/pkg/events"
	"github.com/Kylemclean11/Xline/pkg/log"
	"github.com/Kylemclean11/Xline/pkg/metrics"
	"github.com/Kylemclean11/Xline/pkg/storage"
	"github.com/Kylemclean11/Xline/pkg/transport"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a single curpd node",
	Long: `Run a single node: start its consensus engine, serve the gRPC
transport for clients and peers, and expose Prometheus metrics and
health endpoints.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("id", "", "this node's id (required)")
	serveCmd.Flags().String("bind-addr", "0.0.0.0:7000", "address to serve the consensus gRPC API on")
	serveCmd.Flags().StringSlice("peer", nil, "peer as id=host:port, repeatable")
	serveCmd.Flags().String("data-dir", "./data", "durable storage directory")
	serveCmd.Flags().String("metrics-addr", "127.0.0.1:9090", "address to serve /metrics, /health, /ready, /live on")
	_ = serveCmd.MarkFlagRequired("id")
}

// logEngineEvents subscribes to the engine's lifecycle broker and logs
// every event it publishes (role changes, elections, commits, snapshot
// activity) until the process exits.
func logEngineEvents(b *events.Broker) {
	sub := b.Subscribe()
	for ev := range sub {
		log.Logger.Info().Str("event", string(ev.Type)).Str("detail", ev.Message).Msg("engine event")
	}
}

// parsePeers parses repeated "id=host:port" flag values into a peer
// address book, per §6's static "(node_id, address)" cluster list.
func parsePeers(raw []string) (map[consensus.PeerID]string, error) {
	addrs := make(map[consensus.PeerID]string, len(raw))
	for _, p := range raw {
		parts := strings.SplitN(p, "=", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("invalid --peer %q, want id=host:port", p)
		}
		addrs[consensus.PeerID(parts[0])] = parts[1]
	}
	return addrs, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	id, _ := cmd.Flags().GetString("id")
	bindAddr, _ := cmd.Flags().GetString("bind-addr")
	peerFlags, _ := cmd.Flags().GetStringSlice("peer")
	dataDir, _ := cmd.Flags().GetString("data-dir")
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

	peerAddrs, err := parsePeers(peerFlags)
	if err != nil {
		return err
	}

	var peers []engine.Peer
	for pid, addr := range peerAddrs {
		peers = append(peers, engine.Peer{ID: pid, Address: addr})
	}

	store, err := storage.NewBoltStore(dataDir)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}

	codec := command.CodecFunc(kvcommand.Decode)
	register := kvcommand.NewRegister()

	dialer := transport.NewPeerDialer(peerAddrs)
	peerTransport := transport.NewPeerTransport(dialer, codec)

	cfg := engine.Config{
		Self:    consensus.PeerID(id),
		Peers:   peers,
		DataDir: dataDir,
	}

	eng, err := engine.New(cfg, peerTransport, codec, register, store)
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}
	eng.Start()
	go logEngineEvents(eng.Events())

	metrics.SetVersion(Version)
	metrics.RegisterComponent("consensus", true, "started")
	metrics.RegisterComponent("storage", true, "ready")
	metrics.RegisterComponent("transport", false, "starting")
	peerIDs := make([]consensus.PeerID, len(peers))
	for i, p := range peers {
		peerIDs[i] = p.ID
	}
	collector := metrics.NewCollector(eng.Node(), consensus.Config{Peers: peerIDs})
	collector.Start()

	go func() {
		http.Handle("/metrics", metrics.Handler())
		http.Handle("/health", metrics.HealthHandler())
		http.Handle("/ready", metrics.ReadyHandler())
		http.Handle("/live", metrics.LivenessHandler())
		if err := http.ListenAndServe(metricsAddr, nil); err != nil {
			log.Logger.Error().Err(err).Msg("metrics server error")
		}
	}()
	log.Logger.Info().Str("addr", metricsAddr).Msg("metrics endpoint listening")

	srv := transport.NewServer(eng, codec)
	grpcServer := grpc.NewServer()
	transport.Register(grpcServer, srv)

	lis, err := net.Listen("tcp", bindAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", bindAddr, err)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			errCh <- fmt.Errorf("grpc server error: %w", err)
		}
	}()
	metrics.RegisterComponent("transport", true, "ready")
	log.Logger.Info().Str("addr", bindAddr).Str("id", id).Msg("curpd node serving")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		log.Logger.Info().Msg("shutting down")
	case err := <-errCh:
		log.Logger.Error().Err(err).Msg("serve error")
	}

	grpcServer.GracefulStop()
	collector.Stop()
	eng.Stop()
	_ = dialer.Close()
	if err := store.Close(); err != nil {
		log.Logger.Error().Err(err).Msg("failed to close storage")
	}
	return nil
}
