// Command ledgerd serves the in-memory ledger backend for local development.
package main

import (
	"flag"
	"net/http"
	"os"

	"github.com/b0ase/path402/apps/clawwallet/internal/gateway/gatewaytest"
	"github.com/b0ase/path402/apps/clawwallet/internal/logging"
	"github.com/shopspring/decimal"
)

var log = logging.New("ledgerd")

func main() {
	addr := flag.String("addr", "127.0.0.1:5000", "listen address")
	reward := flag.String("reward", "1", "amount credited to the miner of each block")
	flag.Parse()

	r, err := decimal.NewFromString(*reward)
	if err != nil || r.IsNegative() {
		log.Errorf("invalid -reward %q", *reward)
		os.Exit(2)
	}

	backend := gatewaytest.NewBackend()
	backend.SetReward(r)

	log.Infof("Ledger backend listening on http://%s (reward %s)", *addr, r)
	if err := http.ListenAndServe(*addr, backend.Handler()); err != nil {
		log.Errorf("%v", err)
		os.Exit(1)
	}
}
