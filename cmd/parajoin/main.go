// parajoin keeps the joined source text of digitized books consistent
// with their paragraph join flags, from the command line or over gRPC.
package main

import (
	"github.com/nainya/parajoin/internal/commands"
	"github.com/nainya/parajoin/internal/logger"
)

func main() {
	if err := commands.New().Execute(); err != nil {
		logger.GetGlobalLogger().Fatal("Command failed").Err(err).Send()
	}
}
