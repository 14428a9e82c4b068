// Command device-client is the Device Client: it dials a Device Server,
// announces a device id, and answers commands sent to that device.
//
// In interactive mode (-interactive) it opens a REPL so an operator can
// type responses by hand and push unsolicited lines, which is useful
// for driving the server's behavior in a demo or integration test
// without a real device attached.
//
// Usage:
//
//	device-client -device-id <id> -server-addr <host:port> [flags]
//	device-client -device-id <id> -discover [flags]
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/chzyer/readline"

	"github.com/homehub/devicehub/pkg/clientconn"
	"github.com/homehub/devicehub/pkg/config"
	"github.com/homehub/devicehub/pkg/discovery"
	devicehublog "github.com/homehub/devicehub/pkg/log"
)

const discoverTimeout = 5 * time.Second

func main() {
	cfg, err := config.ParseClientFlags(os.Args[1:])
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	setupConsoleLogging(cfg.LogLevel)

	addr := cfg.ServerAddr
	if cfg.Discover {
		log.Printf("discovering %q over mDNS...", cfg.ServiceName)
		result, err := discovery.BrowseOnce(context.Background(), discoverTimeout)
		switch {
		case err == nil:
			addr = result.Address()
			log.Printf("discovered server at %s", addr)
		case cfg.ServerAddr != "":
			log.Printf("mDNS discovery failed, falling back to %s: %v", cfg.ServerAddr, err)
		default:
			log.Fatalf("mDNS discovery failed: %v", err)
		}
	}

	protoLogger := devicehublog.Logger(devicehublog.NoopLogger{})

	responder := newResponder()

	client := clientconn.New(addr, cfg.DeviceID, responder.Handle,
		clientconn.WithLogger(protoLogger),
		clientconn.WithInboundDelimiter(cfg.InboundDelimiter),
		clientconn.WithOutboundDelimiter(cfg.OutboundDelimiter),
	)

	client.OnStateChange(func(old, new_ clientconn.State) {
		log.Printf("connection state: %s -> %s", old, new_)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := client.Start(ctx); err != nil {
		log.Printf("initial connect failed, will keep retrying in the background: %v", err)
	}
	log.Printf("device %q connecting to %s", cfg.DeviceID, addr)

	if cfg.Interactive {
		runREPL(ctx, cancel, client, responder)
		return
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Println("shutting down...")
	client.Close()
}

// responder holds the canned response this simulated device gives to
// each command it is sent, defaulting to echoing OK for anything
// unconfigured.
type responder struct {
	mu        sync.Mutex
	responses map[string]string
	def       string
}

func newResponder() *responder {
	return &responder{
		responses: make(map[string]string),
		def:       "OK",
	}
}

func (r *responder) Handle(ctx context.Context, command string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if response, ok := r.responses[command]; ok {
		return response
	}
	return r.def
}

func (r *responder) Set(command, response string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responses[command] = response
}

func (r *responder) SetDefault(response string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.def = response
}

func runREPL(ctx context.Context, cancel context.CancelFunc, client *clientconn.Client, resp *responder) {
	cacheDir, _ := os.UserCacheDir()
	historyFile := ""
	if cacheDir != "" {
		historyFile = filepath.Join(cacheDir, "devicehub-client-history")
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:      "device> ",
		HistoryFile: historyFile,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "readline init error: %v\n", err)
		cancel()
		return
	}
	defer rl.Close()

	printHelp()

	for {
		line, err := rl.Readline()
		if err != nil {
			cancel()
			return
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.Fields(line)
		switch strings.ToLower(parts[0]) {
		case "help", "?":
			printHelp()
		case "exit", "quit":
			cancel()
			client.Close()
			return
		case "set":
			if len(parts) < 3 {
				fmt.Println("usage: set <command> <response...>")
				continue
			}
			resp.Set(parts[1], strings.Join(parts[2:], " "))
			fmt.Printf("will respond to %q with %q\n", parts[1], strings.Join(parts[2:], " "))
		case "default":
			if len(parts) < 2 {
				fmt.Println("usage: default <response...>")
				continue
			}
			resp.SetDefault(strings.Join(parts[1:], " "))
			fmt.Printf("default response set to %q\n", strings.Join(parts[1:], " "))
		case "push":
			if len(parts) < 2 {
				fmt.Println("usage: push <line...>")
				continue
			}
			if err := client.PushUnsolicited(strings.Join(parts[1:], " ")); err != nil {
				fmt.Printf("push failed: %v\n", err)
			}
		case "state":
			fmt.Println(client.State())
		default:
			fmt.Printf("unknown command %q (try help)\n", parts[0])
		}
	}
}

func printHelp() {
	fmt.Println("commands:")
	fmt.Println("  set <command> <response...>   respond to <command> with <response>")
	fmt.Println("  default <response...>         change the fallback response")
	fmt.Println("  push <line...>                 push an unsolicited line to the server")
	fmt.Println("  state                          print the current connection state")
	fmt.Println("  exit                            disconnect and quit")
}

func setupConsoleLogging(level string) {
	log.SetFlags(log.Ltime | log.Lmicroseconds)

	var slogLevel slog.Level
	switch level {
	case "debug":
		slogLevel = slog.LevelDebug
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slogLevel})))
}
