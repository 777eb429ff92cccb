package main

import (
	"os"

	"github.com/leandrodaf/midimcp/cmd/midimcp/cmd"
)

func main() {
	if err := cmd.RootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
