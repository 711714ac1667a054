// Command ringd runs the time-series broker: it owns every open series
// file under its configured base directory and serves the wire protocol
// described in pkg/broker until interrupted.
package main

import (
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"

	flag "github.com/spf13/pflag"

	"github.com/ringdb/ringdb/pkg/broker"
	"github.com/ringdb/ringdb/pkg/config"
	"github.com/ringdb/ringdb/pkg/fs"
)

func main() {
	os.Exit(run(os.Args[1:], os.Environ()))
}

func run(args []string, environ []string) int {
	flags := flag.NewFlagSet("ringd", flag.ContinueOnError)
	configPath := flags.StringP("config", "c", "", "path to config file")
	listenAddr := flags.String("listen", "", "override the configured listen address")
	baseDir := flags.String("base-dir", "", "override the configured base directory")

	if err := flags.Parse(args); err != nil {
		return 2
	}

	env := map[string]string{}
	for _, kv := range environ {
		for i := 0; i < len(kv); i++ {
			if kv[i] == '=' {
				env[kv[:i]] = kv[i+1:]
				break
			}
		}
	}

	cwd, err := os.Getwd()
	if err != nil {
		log.Printf("ringd: %v", err)
		return 1
	}

	overrides := config.Overrides{}
	if *listenAddr != "" {
		overrides.ListenAddr = listenAddr
	}

	if *baseDir != "" {
		overrides.BaseDir = baseDir
	}

	cfg, err := config.Load(env, cwd, *configPath, overrides)
	if err != nil {
		log.Printf("ringd: %v", err)
		return 1
	}

	fsys := fs.NewReal()
	locker := fs.NewLocker(fsys)

	b, err := broker.New(fsys, locker, cfg.BaseDir, cfg.DefaultThreshold, stdLogger{})
	if err != nil {
		log.Printf("ringd: %v", err)
		return 1
	}
	defer b.Close()

	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		log.Printf("ringd: listening on %s: %v", cfg.ListenAddr, err)
		return 1
	}
	defer ln.Close()

	server := broker.NewServer(b, cfg.AuthKey, stdLogger{})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Serve(ln) }()

	log.Printf("ringd: listening on %s (base dir %s)", cfg.ListenAddr, cfg.BaseDir)

	select {
	case <-sigCh:
		log.Printf("ringd: shutting down")
		ln.Close()
		return 0
	case err := <-errCh:
		log.Printf("ringd: serve: %v", err)
		return 1
	}
}

type stdLogger struct{}

func (stdLogger) Warnf(format string, args ...any)  { log.Printf("warn: "+format, args...) }
func (stdLogger) Errorf(format string, args ...any) { log.Printf("error: "+format, args...) }
