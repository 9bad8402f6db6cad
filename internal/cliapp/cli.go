package cliapp

import (
	"flag"
	"io"
)

const defaultConfigPath = "./weave.toml"

type cliOptions struct {
	configPath string
	once       bool
	verbose    bool
	version    bool
	history    int
	args       []string
}

func parseOptions(args []string, output io.Writer) (cliOptions, error) {
	var opts cliOptions
	fs := flag.NewFlagSet("weave", flag.ContinueOnError)
	fs.SetOutput(output)

	fs.StringVar(&opts.configPath, "config", defaultConfigPath, "Path to config file")
	fs.BoolVar(&opts.once, "once", false, "Run a single build cycle and exit")
	fs.BoolVar(&opts.verbose, "verbose", false, "Enable verbose logging")
	fs.BoolVar(&opts.version, "version", false, "Print version and exit")
	fs.IntVar(&opts.history, "history", 0, "Print the trend of the last N recorded build cycles and exit")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, err
	}

	opts.args = fs.Args()
	return opts, nil
}
