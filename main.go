package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"cardroom.io/server/game"
	"cardroom.io/server/logging"
	"cardroom.io/server/nats"
	"cardroom.io/server/rest"
	"cardroom.io/server/stats"
	"cardroom.io/server/util"
	"cardroom.io/server/util/random"
)

var runServer *bool
var timingConfigFile *string
var mainLogger = logging.GetZeroLogger("main::main", nil)

func init() {
	runServer = flag.Bool("server", true, "runs the session server")
	timingConfigFile = flag.String("timing", "", "YAML file with reminder and pacing times")
}

func main() {
	// Global random seed shared by every session's shuffles.
	rand.Seed(random.NewSeed())

	err := run()
	if err != nil {
		mainLogger.Error().Msg(err.Error())
		os.Exit(1)
	}
}

func run() error {
	logLevel := util.Env.GetZeroLogLogLevel()
	fmt.Printf("Setting log level to %s\n", logLevel)
	zerolog.SetGlobalLevel(logLevel)
	flag.Parse()

	timingFile := *timingConfigFile
	if timingFile == "" {
		timingFile = util.Env.GetTimingFile()
	}
	timing, err := game.ParseTimingConfig(timingFile)
	if err != nil {
		return errors.Wrap(err, "Error while parsing timing config")
	}

	if !*runServer {
		mainLogger.Warn().Msg("Nothing to do without -server")
		return nil
	}
	return runWithNats(timing)
}

func runWithNats(timing game.TimingConfig) error {
	if util.Env.IsSystemTest() {
		mainLogger.Warn().Msg("Running in system test mode.")
	}

	var leaderboard *stats.Leaderboard
	if util.Env.IsLeaderboardEnabled() {
		var err error
		leaderboard, err = stats.NewLeaderboard()
		if err != nil {
			return errors.Wrap(err, "Error while connecting to redis")
		}
		mainLogger.Info().Msgf("Leaderboard enabled at %s", util.Env.GetRedisAddr())
	}

	mainLogger.Info().Msgf("NATS URL: %s", util.Env.GetNatsURL())
	var sink game.ResultSink
	if leaderboard != nil {
		sink = leaderboard
	}
	tableManager, err := nats.NewTableManager(timing, sink)
	if err != nil {
		return errors.Wrap(err, "Error while initializing table manager")
	}
	defer tableManager.Close()

	mainLogger.Info().Msgf("Serving REST on :%d", util.Env.GetRestPort())
	rest.RunRestServer(tableManager, leaderboard)
	return nil
}
