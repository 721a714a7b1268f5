// Command loadcsv runs one repair-and-load job from the command line:
//
//	loadcsv <bucket> <prefix> <schema> <destinationTable> [archiveFiles] [skipHeaders]
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/stanstork/stratum-loader/internal/cli"
	"github.com/stanstork/stratum-loader/internal/job"
)

const usage = "usage: loadcsv <bucket> <prefix> <schema> <destinationTable> [archiveFiles] [skipHeaders]"

func main() {
	args := os.Args[1:]
	if len(args) < 4 || len(args) > 6 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	p := job.NewCSVParams(args[0], args[1], args[2], args[3])
	flags := []*bool{&p.ArchiveFiles, &p.SkipHeaders}
	for i, raw := range args[4:] {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid boolean %q\n%s\n", raw, usage)
			os.Exit(2)
		}
		*flags[i] = v
	}

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).With().Timestamp().Logger()
	ctx := context.Background()

	env, err := cli.Setup(ctx, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to start")
	}
	defer env.Close()

	res, err := env.Runner.RunCSV(ctx, p)
	if err != nil {
		env.Close()
		cli.Fail(err)
	}
	fmt.Println("Success: " + res.Summary())
}
