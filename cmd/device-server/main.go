// Command device-server is the Device Server: it accepts Device Client
// TCP connections on one port and serves the Control Server HTTP API on
// another, dispatching between them through the Command Dispatcher.
//
// Usage:
//
//	device-server [flags]
//
// Flags:
//
//	-device-addr string   Device Client listen address (default ":8007")
//	-http-addr string      Control Server listen address (default ":8080")
//	-macro-file string     Macro definitions JSON file
//	-config string         YAML configuration file overlay
//	-log-level string      Log level: debug, info, warn, error (default "info")
//	-protocol-log string   File path for protocol event logging (CBOR format)
//	-advertise             Advertise this server over mDNS
package main

import (
	"context"
	"log"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/homehub/devicehub/internal/httpapi"
	"github.com/homehub/devicehub/pkg/config"
	"github.com/homehub/devicehub/pkg/devicesession"
	"github.com/homehub/devicehub/pkg/discovery"
	"github.com/homehub/devicehub/pkg/dispatcher"
	devicehublog "github.com/homehub/devicehub/pkg/log"
	"github.com/homehub/devicehub/pkg/macro"
)

const httpShutdownTimeout = 5 * time.Second

func main() {
	cfg, err := config.ParseServerFlags(os.Args[1:])
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	setupConsoleLogging(cfg.LogLevel)
	log.Println("Device Hub Server")
	log.Println("=================")
	log.Printf("Device Client listen: %s", cfg.DeviceAddr)
	log.Printf("Control Server listen: %s", cfg.HTTPAddr)

	protoLogger, err := buildProtocolLogger(cfg.ProtocolLogFile)
	if err != nil {
		log.Fatalf("failed to set up protocol logging: %v", err)
	}
	if closer, ok := protoLogger.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	registry := devicesession.NewRegistry(protoLogger)

	definitions := macro.Definitions{}
	if cfg.MacroFile != "" {
		definitions, err = macro.LoadDefinitionsFile(cfg.MacroFile)
		if err != nil {
			log.Fatalf("failed to load macro definitions: %v", err)
		}
		log.Printf("Loaded %d macro(s) from %s", len(definitions), cfg.MacroFile)
	}

	executor := macro.NewExecutor(definitions, deviceLookup(registry), macro.WithLogger(protoLogger))
	disp := dispatcher.New(dispatcher.NewRegistryAdapter(registry), executor, protoLogger)

	httpServer := httpapi.NewServer(httpapi.Config{Addr: cfg.HTTPAddr}, disp)

	listener, err := net.Listen("tcp", cfg.DeviceAddr)
	if err != nil {
		log.Fatalf("failed to listen on %s: %v", cfg.DeviceAddr, err)
	}

	var advertiser *discovery.Advertiser
	if cfg.Advertise {
		_, portStr, _ := net.SplitHostPort(listener.Addr().String())
		port, err := strconv.Atoi(portStr)
		if err != nil {
			log.Printf("warning: could not parse listen port for mDNS advertisement: %v", err)
		} else {
			advertiser, err = discovery.Advertise(cfg.ServiceName, port, nil, "")
			if err != nil {
				log.Printf("warning: mDNS advertisement failed: %v", err)
			} else {
				log.Printf("Advertising as %q over mDNS", cfg.ServiceName)
			}
		}
	}

	ctx, cancel := context.WithCancel(context.Background())

	go acceptLoop(ctx, listener, registry, protoLogger, cfg)

	go func() {
		log.Printf("Control Server listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil {
			log.Printf("Control Server stopped: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")
	cancel()
	listener.Close()
	if advertiser != nil {
		advertiser.Shutdown()
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Close(shutdownCtx); err != nil {
		log.Printf("error closing Control Server: %v", err)
	}
	log.Println("Goodbye!")
}

func acceptLoop(ctx context.Context, listener net.Listener, registry *devicesession.Registry, logger devicehublog.Logger, cfg *config.ServerConfig) {
	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
				log.Printf("accept error: %v", err)
				return
			}
		}

		var opts []devicesession.Option
		if cfg.InboundDelimiter != "" {
			opts = append(opts, devicesession.WithInboundDelimiter(cfg.InboundDelimiter))
		}
		if cfg.OutboundDelimiter != "" {
			opts = append(opts, devicesession.WithOutboundDelimiter(cfg.OutboundDelimiter))
		}

		session := devicesession.New(conn, registry, nil, nil, logger, opts...)
		log.Printf("accepted connection from %s", conn.RemoteAddr())
		go session.Serve(ctx)
	}
}

func deviceLookup(registry *devicesession.Registry) macro.LookupFunc {
	return func(deviceID string) (macro.DeviceSession, bool) {
		s, ok := registry.Get(deviceID)
		if !ok {
			return nil, false
		}
		return s, true
	}
}

func buildProtocolLogger(path string) (devicehublog.Logger, error) {
	if path == "" {
		return devicehublog.NoopLogger{}, nil
	}
	fileLogger, err := devicehublog.NewFileLogger(path)
	if err != nil {
		return nil, err
	}
	return fileLogger, nil
}

func setupConsoleLogging(level string) {
	log.SetFlags(log.Ltime | log.Lmicroseconds)

	var slogLevel slog.Level
	switch level {
	case "debug":
		slogLevel = slog.LevelDebug
		log.SetFlags(log.Ltime | log.Lmicroseconds | log.Lshortfile)
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slogLevel})))
}
