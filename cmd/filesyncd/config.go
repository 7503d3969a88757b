package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/opsdaemons/filesyncd/internal/config"
	"github.com/opsdaemons/filesyncd/internal/pathutil"
)

var (
	errMissingArgs     = errors.New("source and destination paths are required")
	errSourceNotDir    = errors.New("source path does not exist or is not a directory")
	errDestNotDir      = errors.New("destination path does not exist or is not a directory")
	errSameRoot        = errors.New("source and destination paths cannot be the same")
	errRootNotAbs      = errors.New("source and destination paths must be absolute")
	errBadSleepTime    = errors.New("--sleep-time must be a positive integer")
	errBadFileSize     = errors.New("--big-file-size must be a positive integer")
	errConfigMissing   = errors.New("--config yaml file does not exist")
	errConfigMalformed = errors.New("--config yaml file is malformed")
)

// yamlOptions mirrors the subset of config.Config a --config file may fill
// in, in the teacher's yaml-tagged-struct style. Only flags the user did not
// pass on the command line are overridden by values found here.
type yamlOptions struct {
	SleepSeconds       int  `yaml:"sleep-time"`
	BigFileThresholdMB int  `yaml:"big-file-size"`
	Recursive          bool `yaml:"recursive"`
	Debug              bool `yaml:"debug"`
}

// parseArgs builds a config.Config from the program's argv: flags first, then
// the two positional paths (parsing stops at the first non-flag argument, so
// flags placed after the paths are not recognized). Both short and long forms of
// every flag are registered against the same destination variable so either
// spelling is accepted. An optional --config YAML file fills in any flag
// the user did not explicitly pass; direct CLI flags always win.
func parseArgs(args []string, fsys afero.Fs, stderr io.Writer) (*config.Config, *flag.FlagSet, error) {
	cfg := &config.Config{
		SleepSeconds:       config.DefaultSleepSeconds,
		BigFileThresholdMB: config.DefaultBigFileThresholdMB,
	}

	var configPath string

	fs := flag.NewFlagSet("filesyncd", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "usage: filesyncd [flags] <source_path> <destination_path>\n\n")
		fs.PrintDefaults()
	}

	fs.StringVar(&configPath, "config", "", "path to a yaml file filling in any flag not given on the command line")
	fs.BoolVar(&cfg.Debug, "debug", false, "suppress detachment; duplicate logs to stdout")
	fs.BoolVar(&cfg.Debug, "d", false, "shorthand for --debug")
	fs.BoolVar(&cfg.Recursive, "recursive", false, "recurse into subdirectories")
	fs.BoolVar(&cfg.Recursive, "R", false, "shorthand for --recursive")
	fs.IntVar(&cfg.SleepSeconds, "sleep-time", config.DefaultSleepSeconds, "cycle period in seconds")
	fs.IntVar(&cfg.SleepSeconds, "s", config.DefaultSleepSeconds, "shorthand for --sleep-time")
	fs.IntVar(&cfg.BigFileThresholdMB, "big-file-size", config.DefaultBigFileThresholdMB, "buffered/mmap threshold in MB")
	fs.IntVar(&cfg.BigFileThresholdMB, "B", config.DefaultBigFileThresholdMB, "shorthand for --big-file-size")

	if err := fs.Parse(args); err != nil {
		return nil, fs, fmt.Errorf("failed to parse flags: %w", err)
	}

	setFlags := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		setFlags[f.Name] = true
	})

	if configPath != "" {
		yamlOpts, err := loadYAMLConfig(fsys, configPath)
		if err != nil {
			return nil, fs, err
		}

		if !setFlags["debug"] && !setFlags["d"] {
			cfg.Debug = yamlOpts.Debug
		}
		if !setFlags["recursive"] && !setFlags["R"] {
			cfg.Recursive = yamlOpts.Recursive
		}
		if !setFlags["sleep-time"] && !setFlags["s"] && yamlOpts.SleepSeconds != 0 {
			cfg.SleepSeconds = yamlOpts.SleepSeconds
		}
		if !setFlags["big-file-size"] && !setFlags["B"] && yamlOpts.BigFileThresholdMB != 0 {
			cfg.BigFileThresholdMB = yamlOpts.BigFileThresholdMB
		}
	}

	if fs.NArg() < 2 {
		return nil, fs, errMissingArgs
	}

	cfg.SourceRoot = fs.Arg(0)
	cfg.DestRoot = fs.Arg(1)

	if cfg.SourceRoot == cfg.DestRoot {
		return nil, fs, errSameRoot
	}

	if !filepath.IsAbs(cfg.SourceRoot) || !filepath.IsAbs(cfg.DestRoot) {
		return nil, fs, errRootNotAbs
	}

	if cfg.SleepSeconds <= 0 {
		return nil, fs, errBadSleepTime
	}

	if cfg.BigFileThresholdMB <= 0 {
		return nil, fs, errBadFileSize
	}

	return cfg, fs, nil
}

// loadYAMLConfig decodes a --config file, rejecting unknown fields the same
// way the teacher's config loader does.
func loadYAMLConfig(fsys afero.Fs, path string) (*yamlOptions, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errConfigMissing, err)
	}
	defer f.Close()

	var opts yamlOptions

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)

	if err := dec.Decode(&opts); err != nil {
		return nil, fmt.Errorf("%w: %w", errConfigMalformed, err)
	}

	return &opts, nil
}

// validatePaths confirms both roots exist and are directories, per spec.md
// §7's configuration-error class.
func validatePaths(fsys afero.Fs, cfg *config.Config) error {
	if !pathutil.IsDirectory(fsys, cfg.SourceRoot) {
		return errSourceNotDir
	}

	if !pathutil.IsDirectory(fsys, cfg.DestRoot) {
		return errDestNotDir
	}

	return nil
}
