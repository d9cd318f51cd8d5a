package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/haildev/hail/internal/identity"
	"github.com/haildev/hail/internal/metainfo"
	"github.com/haildev/hail/internal/peerconn"
	"github.com/haildev/hail/internal/peerwire"
	"github.com/haildev/hail/internal/registry"
	"github.com/haildev/hail/internal/statusd"
	"github.com/haildev/hail/internal/tracker"
	"github.com/haildev/hail/internal/utils"
)

// maxConcurrentHandshakes bounds how many inbound connections may be
// mid-handshake at once, so a burst of connecting peers can't spawn an
// unbounded number of goroutines blocked in the handshake exchange.
const maxConcurrentHandshakes = 64

var logger *slog.Logger

var app = &cli.App{
	Name:        "hail",
	Usage:       "Speak the BitTorrent peer wire protocol.",
	Description: "A standalone peer-wire protocol core: handshake, serve, and tracker announce.",
	Before: func(ctx *cli.Context) error {
		logLevel := slog.LevelInfo
		if ctx.Bool("debug") {
			logLevel = slog.LevelDebug
		}
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
		return nil
	},
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:    "debug",
			Aliases: []string{"d"},
			Usage:   "enable debug logging output for troubleshooting and development",
		},
	},
	Commands: []*cli.Command{
		handshakeCommand,
		serveCommand,
		announceCommand,
	},
}

var handshakeCommand = &cli.Command{
	Name:  "handshake",
	Usage: "dial a single peer, exchange handshakes, and print what it advertised",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "torrent", Aliases: []string{"t"}, Required: true, Usage: "path to a .torrent file"},
		&cli.StringFlag{Name: "addr", Aliases: []string{"a"}, Required: true, Usage: "peer address, host:port"},
	},
	Action: func(ctx *cli.Context) error {
		info, err := loadMetainfo(ctx.String("torrent"))
		if err != nil {
			return err
		}

		peerID, err := identity.NewPeerID()
		if err != nil {
			return err
		}

		local := peerwire.NewHandshake(info.InfoHash, peerID, identity.Capabilities(identity.Options{}))

		dialCtx, cancel := context.WithTimeout(context.Background(), peerconn.KeepAliveInterval)
		defer cancel()

		conn, remote, err := peerconn.Dial(dialCtx, ctx.String("addr"), local, peerconn.DialOptions{})
		if err != nil {
			return err
		}
		defer conn.Close()

		logger.Info("handshake complete", "addr", ctx.String("addr"), "remote_peer_id", fmt.Sprintf("%x", remote.PeerID))
		fmt.Printf("Peer ID: %x\n", remote.PeerID)
		fmt.Printf("Capabilities: %#x\n", uint64(remote.Reserved))
		fmt.Printf("Negotiated: %#x\n", uint64(conn.NegotiatedExtensions()))

		return nil
	},
}

var serveCommand = &cli.Command{
	Name:  "serve",
	Usage: "listen for inbound peer connections for one torrent and register them",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "torrent", Aliases: []string{"t"}, Required: true, Usage: "path to a .torrent file"},
		&cli.StringFlag{Name: "listen", Aliases: []string{"l"}, Value: ":6881", Usage: "address to accept inbound connections on"},
		&cli.StringFlag{Name: "status-addr", Usage: "address to serve the HTTP/WebSocket observability surface on; omit to disable"},
	},
	Action: func(ctx *cli.Context) error {
		info, err := loadMetainfo(ctx.String("torrent"))
		if err != nil {
			return err
		}

		peerID, err := identity.NewPeerID()
		if err != nil {
			return err
		}

		local := peerwire.NewHandshake(info.InfoHash, peerID, identity.Capabilities(identity.Options{}))

		listener, err := net.Listen("tcp", ctx.String("listen"))
		if err != nil {
			return fmt.Errorf("hail: failed to listen on %s: %w", ctx.String("listen"), err)
		}
		defer listener.Close()

		reg := registry.New()
		logger.Info("listening for peers", "addr", listener.Addr().String(), "torrent", info.Name)

		if addr := ctx.String("status-addr"); addr != "" {
			server := &http.Server{Addr: addr, Handler: statusd.NewRouter(reg, logger)}
			go func() {
				logger.Info("status server listening", "addr", addr)
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Error("status server stopped", "err", err)
				}
			}()
			defer server.Close()
		}

		rootCtx, cancel := context.WithCancel(context.Background())
		defer cancel()

		handshakeLimit := utils.NewSemaphore(maxConcurrentHandshakes)
		go acceptLoop(rootCtx, listener, local, reg, handshakeLimit)

		sigC := make(chan os.Signal, 1)
		signal.Notify(sigC, syscall.SIGINT, syscall.SIGTERM)
		<-sigC

		logger.Info("shutting down")
		return nil
	},
}

func acceptLoop(ctx context.Context, listener net.Listener, local peerwire.Handshake, reg *registry.Registry, handshakeLimit utils.Semaphore) {
	for {
		stream, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
				logger.Error("accept failed", "err", err)
				continue
			}
		}

		go func() {
			handshakeLimit.Acquire()

			addr := stream.RemoteAddr().String()

			conn, remote, err := peerconn.Accept(stream, local)
			handshakeLimit.Release()
			if err != nil {
				logger.Warn("inbound handshake failed", "addr", addr, "err", err)
				stream.Close()
				return
			}

			conn.Start(ctx)
			reg.Add(addr, conn)
			logger.Info("peer connected", "addr", addr, "peer_id", fmt.Sprintf("%x", remote.PeerID))

			<-conn.Done()
			reg.Remove(addr)
			logger.Info("peer disconnected", "addr", addr)
		}()
	}
}

var announceCommand = &cli.Command{
	Name:  "announce",
	Usage: "send an HTTP tracker announce to one or more trackers and print the peers each returns",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "torrent", Aliases: []string{"t"}, Required: true, Usage: "path to a .torrent file"},
		&cli.StringSliceFlag{Name: "tracker", Usage: "tracker announce URL; repeatable. Defaults to the torrent's own announce URL"},
		&cli.UintFlag{Name: "port", Value: 6881, Usage: "port this client listens on, reported to the tracker"},
	},
	Action: func(ctx *cli.Context) error {
		info, err := loadMetainfo(ctx.String("torrent"))
		if err != nil {
			return err
		}

		trackerURLs := utils.NewSet()
		for _, url := range ctx.StringSlice("tracker") {
			trackerURLs.Add(url)
		}
		if trackerURLs.Size() == 0 {
			trackerURLs.Add(info.Announce)
		}

		peerID, err := identity.NewPeerID()
		if err != nil {
			return err
		}

		client := tracker.NewClient()

		for trackerURL := range trackerURLs.Entries() {
			peers, err := client.Announce(tracker.AnnounceRequest{
				TrackerURL: trackerURL,
				InfoHash:   info.InfoHash,
				PeerID:     peerID,
				Port:       uint16(ctx.Uint("port")),
				Left:       info.TotalLength,
			})
			if err != nil {
				logger.Warn("announce failed", "tracker", trackerURL, "err", err)
				continue
			}

			fmt.Printf("%s: %d peers returned:\n", trackerURL, len(peers))
			for _, peer := range peers {
				fmt.Println(peer.String())
			}
		}

		return nil
	},
}

func loadMetainfo(path string) (metainfo.Metainfo, error) {
	if !utils.FileExists(path) {
		return metainfo.Metainfo{}, fmt.Errorf("hail: torrent file %s does not exist", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return metainfo.Metainfo{}, fmt.Errorf("hail: failed to read torrent file %s: %w", path, err)
	}

	info, err := metainfo.Decode(data)
	if err != nil {
		return metainfo.Metainfo{}, err
	}

	return info, nil
}

func main() {
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
