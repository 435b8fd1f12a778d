package main

import (
	"github.com/open-statutes/trellis/internal/server"
	"github.com/open-statutes/trellis/internal/util"
	"github.com/open-statutes/trellis/pkg/logger"
	"github.com/open-statutes/trellis/pkg/logger/console"

	_ "github.com/lib/pq"
)

func main() {
	util.LoadEnv()

	debug := util.GetEnvBool("DEBUG", false)

	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: debug,
	})
	logger.Init(consoleLogger)

	server.Init()
}
