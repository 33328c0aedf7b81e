package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/lnashier/viper"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/rtm0/ncmet/internal/extract"
	"github.com/rtm0/ncmet/internal/grid"
	"github.com/rtm0/ncmet/internal/met"
)

// Version is the version of ncmet.
const Version = "0.3.0"

// Cfg holds configuration information.
var Cfg *viper.Viper

// UsageError reports a command line that cannot be run.
type UsageError struct {
	Msg string
}

func (e *UsageError) Error() string {
	return "usage: " + e.Msg
}

var options []struct {
	name, usage string
	defaultVal  interface{}
	flagsets    []*pflag.FlagSet
}

func init() {
	// splitat is the historical name of maxPointsPerFile.
	extractCmd.Flags().SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		if strings.EqualFold(name, "splitat") {
			name = "maxPointsPerFile"
		}
		return pflag.NormalizedName(name)
	})

	options = []struct {
		name, usage string
		defaultVal  interface{}
		flagsets    []*pflag.FlagSet
	}{
		{
			name:       "config",
			usage:      "config specifies the configuration file location.",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name:       "verbose",
			usage:      "verbose enables debug logging.",
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "vars",
			usage: `vars lists the variables to extract, comma separated.
"all" extracts every data variable.`,
			defaultVal: []string{"all"},
			flagsets:   []*pflag.FlagSet{extractCmd.Flags()},
		},
		{
			name: "levels",
			usage: `levels lists the outer-axis values of 3D variables to extract,
comma separated. "all" extracts every level.`,
			defaultVal: []string{"all"},
			flagsets:   []*pflag.FlagSet{extractCmd.Flags()},
		},
		{
			name: "maxPointsPerFile",
			usage: `maxPointsPerFile starts a new output part before a variable that
would push the current part over this many points. 0 writes a single part.`,
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{extractCmd.Flags()},
		},
		{
			name:       "ncdump",
			usage:      "ncdump is the path of the ncdump executable.",
			defaultVal: "/usr/bin/ncdump",
			flagsets:   []*pflag.FlagSet{extractCmd.Flags()},
		},
		{
			name:       "reader",
			usage:      `reader selects how granules are read: "ncdump" or "native".`,
			defaultVal: extract.ReaderNcdump,
			flagsets:   []*pflag.FlagSet{extractCmd.Flags()},
		},
		{
			name:       "datasetID",
			usage:      "datasetID is the catalog dataset id written into every part.",
			defaultVal: extract.DefaultDatasetID,
			flagsets:   []*pflag.FlagSet{extractCmd.Flags()},
		},
		{
			name: "time",
			usage: `time is the acquisition time (YYYYMMDDThhmmZ) stamped on every point.
When empty it is derived from the granule file name.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{extractCmd.Flags()},
		},
		{
			name:       "compress",
			usage:      `compress selects the part compression: "none", "gzip" or "zstd".`,
			defaultVal: string(met.None),
			flagsets:   []*pflag.FlagSet{extractCmd.Flags()},
		},
		{
			name:       "concurrency",
			usage:      "concurrency is the number of granules extracted in parallel.",
			defaultVal: 1,
			flagsets:   []*pflag.FlagSet{extractCmd.Flags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("NCMET")
	Cfg.AutomaticEnv()
	Cfg.RegisterAlias("splitat", "maxPointsPerFile")

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 {
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch v := option.defaultVal.(type) {
			case string:
				set.String(option.name, v, option.usage)
			case []string:
				set.StringSlice(option.name, v, option.usage)
			case bool:
				set.Bool(option.name, v, option.usage)
			case int:
				set.Int(option.name, v, option.usage)
			default:
				panic("invalid argument type")
			}
			Cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}
}

func init() {
	Root.AddCommand(versionCmd)
	Root.AddCommand(extractCmd)
	Root.AddCommand(inspectCmd)
}

// setConfig finds and reads in the configuration file, if there is one.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(cfgpath)
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("ncmet: problem reading configuration file: %v", err)
		}
	}
	return nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "ncmet",
	Short: "Extract catalog metadata from NetCDF granules.",
	Long: `ncmet reads NetCDF granules, projects their gridded variables onto
labeled sample points and writes them as OODT CAS metadata files.

Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'NCMET_var' where 'var' is the
name of the variable to be set.`,
	DisableAutoGenTag: true,
	SilenceErrors:     true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of ncmet.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("ncmet v%s\n", Version)
	},
	DisableAutoGenTag: true,
}

var extractCmd = &cobra.Command{
	Use:   "extract OUTPUT INPUT...",
	Short: "Extract the metadata of one or more granules.",
	Long: `extract writes the metadata of every INPUT granule into OUTPUT, which is
an existing directory or a blob URL such as file:///data/met or s3://bucket/met.`,
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) < 2 {
			return &UsageError{Msg: "ncmet extract OUTPUT INPUT..."}
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		logger := newLogger(cmd.OutOrStdout())
		cfg, err := extractConfig(args[0], logger)
		if err != nil {
			return err
		}
		concurrency := Cfg.GetInt("concurrency")
		if concurrency < 1 {
			concurrency = 1
		}
		return extractAll(cmd.Context(), logger, cfg, args[1:], concurrency)
	},
	DisableAutoGenTag: true,
}

var inspectCmd = &cobra.Command{
	Use:   "inspect OUTPUT PART...",
	Short: "Print the keys of written metadata parts.",
	Long: `inspect reads metadata parts back from OUTPUT and prints every key with
its number of values. Scalar values are printed in full.`,
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) < 2 {
			return &UsageError{Msg: "ncmet inspect OUTPUT PART..."}
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return inspect(cmd.Context(), cmd.OutOrStdout(), args[0], args[1:])
	},
	DisableAutoGenTag: true,
}

// newLogger returns the text logger used by every command.
func newLogger(w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if Cfg.GetBool("verbose") {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// extractConfig builds the per-granule configuration shared by all inputs.
func extractConfig(output string, logger *slog.Logger) (extract.Config, error) {
	vars, err := listOption("vars")
	if err != nil {
		return extract.Config{}, err
	}
	levels, err := listOption("levels")
	if err != nil {
		return extract.Config{}, err
	}
	maxPoints, err := cast.ToIntE(Cfg.Get("maxPointsPerFile"))
	if err != nil || maxPoints < 0 {
		return extract.Config{}, fmt.Errorf("ncmet: maxPointsPerFile must be a non-negative integer, got %v", Cfg.Get("maxPointsPerFile"))
	}
	codec, err := met.ParseCodec(Cfg.GetString("compress"))
	if err != nil {
		return extract.Config{}, err
	}
	t := strings.TrimSpace(Cfg.GetString("time"))
	if t != "" && !grid.ValidTime(t) {
		return extract.Config{}, fmt.Errorf("ncmet: time %q is not in %s format", t, grid.TimeLayout)
	}
	return extract.Config{
		Output: output,
		Reader: strings.ToLower(strings.TrimSpace(Cfg.GetString("reader"))),
		Ncdump: os.ExpandEnv(Cfg.GetString("ncdump")),
		Codec:  codec,
		Options: extract.Options{
			DatasetID:        strings.TrimSpace(Cfg.GetString("datasetID")),
			Vars:             grid.ParseAllowList(vars),
			Levels:           grid.ParseAllowList(levels),
			MaxPointsPerPart: maxPoints,
			Time:             t,
			Logger:           logger,
		},
	}, nil
}

// listOption returns a list option. Environment variables and configuration
// files may give lists as a single comma separated string.
func listOption(name string) ([]string, error) {
	v := Cfg.Get(name)
	if s, ok := v.(string); ok {
		v = strings.Split(s, ",")
	}
	items, err := cast.ToStringSliceE(v)
	if err != nil {
		return nil, fmt.Errorf("ncmet: invalid %s: %w", name, err)
	}
	return items, nil
}
