package main

import (
	"github.com/endomorphosis/kgraph/internal/server"
	"github.com/endomorphosis/kgraph/internal/util"
	"github.com/endomorphosis/kgraph/pkg/logger"
	"github.com/endomorphosis/kgraph/pkg/logger/console"

	_ "github.com/lib/pq"
)

func main() {
	util.LoadEnv()

	debug := util.GetEnvBool("DEBUG", false)

	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug:  debug,
		Prefix: "kgraph-server",
	})
	logger.Init(consoleLogger)

	server.Init()
}
