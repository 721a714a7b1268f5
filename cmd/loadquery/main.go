// Command loadquery materializes one stored query from the command line:
//
//	loadquery <query> <destinationTable> [useLegacySql] [append]
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

const usage = "usage: loadquery <query> <destinationTable> [useLegacySql] [append]"

func main() {
	args := os.Args[1:]
	if len(args) < 2 || len(args) > 4 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	p := job.QueryParams{Query: args[0], DestinationTable: args[1]}
	flags := []*bool{&p.UseLegacySQL, &p.Append}
	for i, raw := range args[2:] {
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

	if err := env.Runner.RunQuery(ctx, p); err != nil {
		env.Close()
		cli.Fail(err)
	}
	fmt.Println("Success")
}
