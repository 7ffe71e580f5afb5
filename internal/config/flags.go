package config

import (
	"flag"
	"fmt"
	"io"

	"github.com/dmitrijs2005/promoclaim/internal/common"
	"github.com/dmitrijs2005/promoclaim/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// The function filters args to only the flags it knows about, using
// flagx.FilterArgs, so -c/-config and unknown flags never break parsing.
func parseFlags(cfg *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{"-d", "-n", "-p", "-l"}, "-headless", "-auto")

	fs := flag.NewFlagSet("main", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.DataDirFlag, "d", cfg.DataDirFlag, "data directory")
	fs.IntVar(&cfg.MaxConcurrency, "n", cfg.MaxConcurrency, "maximum concurrent accounts")
	fs.StringVar(&cfg.SiteProfile, "p", cfg.SiteProfile, "site profile (JSON)")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")
	fs.BoolVar(&cfg.Headless, "headless", cfg.Headless, "run browsers headless")
	fs.BoolVar(&cfg.Auto, "auto", cfg.Auto, "run one claim pass and exit")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", common.ErrConfiguration, err)
	}
	return nil
}
