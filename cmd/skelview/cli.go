package main

import (
	"flag"
	"fmt"
	"io"
	"strings"
)

// ExitError is an error carrying the process exit code.
type ExitError struct {
	Code    int
	Message string
}

func (e *ExitError) Error() string {
	return e.Message
}

// options are the parsed command-line flags.
type options struct {
	ConfigPath  string
	Ticks       uint64
	Headless    bool
	GPU         bool
	SoftwareGPU bool
	DumpBone    string
	LogLevel    string
	LogFormat   string
}

// parseArgs processes command-line arguments. It returns the options, whether the
// program should exit cleanly (help or no scene given), or an ExitError.
func parseArgs(args []string, output io.Writer) (*options, bool, error) {
	flagSet := flag.NewFlagSet("skelview", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
skelview - plays skeletal animation scenes described in HCL.

Usage:
  skelview [options] [SCENE_PATH]

Arguments:
  SCENE_PATH
    Path to a .hcl scene file.

Keys (windowed):
  1-9    cross-fade every entity to its Nth clip
  Space  pause or resume playback
  F      toggle root motion
  R      return every entity to its spawn transform
  Esc    quit

Options:
`)
		flagSet.PrintDefaults()
	}

	configFlag := flagSet.String("config", "", "Path to the scene file.")
	ticksFlag := flagSet.Uint64("ticks", 0, "Stop after this many ticks. 0 runs until interrupted.")
	headlessFlag := flagSet.Bool("headless", false, "Run without a window at a fixed time step.")
	gpuFlag := flagSet.Bool("gpu", false, "Upload skinning palettes to a WebGPU device.")
	softwareFlag := flagSet.Bool("software-gpu", false, "Request the fallback (software) WebGPU adapter. Implies -gpu.")
	dumpFlag := flagSet.String("dump-bone", "", "Print the world transform of this bone for every entity on exit.")
	logLevelFlag := flagSet.String("log-level", "", "Override the scene's log level. Options: 'debug', 'info', 'warn', 'error'.")
	logFormatFlag := flagSet.String("log-format", "", "Override the scene's log format. Options: 'text' or 'json'.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	path := *configFlag
	if path == "" && flagSet.NArg() > 0 {
		path = flagSet.Arg(0)
	}
	if path == "" {
		flagSet.Usage()
		return nil, true, nil
	}

	logFormat := strings.ToLower(*logFormatFlag)
	switch logFormat {
	case "", "text", "json":
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}

	return &options{
		ConfigPath:  path,
		Ticks:       *ticksFlag,
		Headless:    *headlessFlag,
		GPU:         *gpuFlag || *softwareFlag,
		SoftwareGPU: *softwareFlag,
		DumpBone:    *dumpFlag,
		LogLevel:    logLevel,
		LogFormat:   logFormat,
	}, false, nil
}
