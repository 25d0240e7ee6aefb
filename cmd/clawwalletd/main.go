package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/b0ase/path402/apps/clawwallet/internal/config"
	"github.com/b0ase/path402/apps/clawwallet/internal/daemon"
	"github.com/b0ase/path402/apps/clawwallet/internal/logging"
	"github.com/b0ase/path402/apps/clawwallet/internal/mcpserver"
)

var Version = "0.1.0"

var log = logging.New("main")

func main() {
	cfgPath := flag.String("config", "", "path to clawwallet.yaml")
	serveMCP := flag.Bool("mcp", false, "serve MCP tools on stdio alongside the daemon")
	flag.Parse()

	if *serveMCP {
		// stdout carries the MCP stream
		logging.UseStderr()
	} else {
		banner()
	}

	// Resolve config path
	if *cfgPath == "" {
		*cfgPath = config.DefaultPath()
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fatal("Failed to load config: %v", err)
	}
	log.Infof("Data dir: %s", cfg.DataDir)

	d, err := daemon.New(cfg)
	if err != nil {
		fatal("Failed to create daemon: %v", err)
	}

	if err := d.Start(); err != nil {
		fatal("Failed to start daemon: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *serveMCP {
		if err := mcpserver.New(Version, d).Run(ctx); err != nil && ctx.Err() == nil {
			log.Errorf("MCP server: %v", err)
		}
	} else {
		<-ctx.Done()
	}
	log.Infof("Shutting down...")

	d.Stop()
	log.Infof("Goodbye.")
}

func fatal(format string, args ...interface{}) {
	log.Errorf(format, args...)
	os.Exit(1)
}

func banner() {
	// ANSI orange: \033[38;5;208m  Reset: \033[0m
	orange := "\033[38;5;208m"
	reset := "\033[0m"
	dim := "\033[2m"

	fmt.Printf(orange+`
        ,/}           ,/}
       // }}         // }}
      //  }}   _ _  //  }}
     //  ,}} _| | |//  ,}}
    //__/ }}/    |_//__/ }}
    '---'{//  ___   '---'{/
         | | / __| | __ ___      __
         | || |    | |/ _`+"`"+` \ \ /\ / /
         | || |__  | | (_| |\ V  V /
         |_| \___| |_|\__,_| \_/\_/
         __        __    _ _      _
         \ \      / /_ _| | | ___| |_
          \ \ /\ / / _`+"`"+` | | |/ _ \ __|
           \ V  V / (_| | | |  __/ |_
            \_/\_/ \__,_|_|_|\___|\__|
`+reset+`
  `+dim+`Ledger wallet client  v%s`+reset+`
  `+orange+`━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━`+reset+`
`, Version)
}
