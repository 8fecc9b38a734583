package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/AlfredBerg/rod-route-tracker/internal/outputHandlers/sqlite"
	"github.com/AlfredBerg/rod-route-tracker/internal/outputHandlers/tsv"
	"github.com/AlfredBerg/rod-route-tracker/internal/track"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

var cfgFile string

// flag names double as viper keys and, upper cased with the env prefix, env variables
const (
	flagURL           = "url"
	flagBrowser       = "browser"
	flagResolution    = "resolution"
	flagRouteClass    = "ya_class"
	flagScreenPath    = "screen_path"
	flagScreenPattern = "screen_pattern"
	flagCSVPath       = "csv_path"
	flagSqlitePath    = "sqlite_path"
	flagTimeout       = "timeout"
	flagNavTimeout    = "navigate_timeout"
	flagVerbose       = "verbose"
	flagShow          = "show"
)

// Older invocations pass the browser as --phantomjs
var flagAliases = map[string]string{
	"phantomjs": flagBrowser,
}

func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.rod-route-tracker.yaml)")

	addFlags(rootCmd.Flags())
	cobra.CheckErr(viper.BindPFlags(rootCmd.Flags()))
}

func addFlags(f *pflag.FlagSet) {
	f.SetNormalizeFunc(normalizeFlag)
	f.String(flagURL, "", "The url of the route page to track.")
	f.String(flagBrowser, "", "Path to the browser binary (alias --phantomjs). Defaults to the browser found on the system.")
	f.IntSliceP(flagResolution, "r", track.DefaultResolution, "Screenshot resolution as width,height.")
	f.String(flagRouteClass, track.DefaultRouteClass, "Class name of the DOM element the time and distance are read from.")
	f.String(flagScreenPath, ".", "Directory the screenshots are saved to.")
	f.String(flagScreenPattern, track.DefaultScreenPattern, "Screenshot file name pattern, %s is replaced by the capture time.")
	f.String(flagCSVPath, track.DefaultCSVPath, "Tab separated file the measurements are appended to.")
	f.String(flagSqlitePath, "", "Optional sqlite database the measurements are also stored in.")
	f.Int(flagTimeout, int(track.DefaultTimeout/time.Second), "The maximum amount of time in seconds to wait for the route element.")
	f.Int(flagNavTimeout, int(track.DefaultNavigateTimeout/time.Second), "The maximum amount of time in seconds to load the page.")
	f.BoolP(flagVerbose, "v", false, "Log debug output in a human readable format.")
	f.Bool(flagShow, false, "Show the browser window instead of running headless.")
}

func normalizeFlag(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	if alias, ok := flagAliases[name]; ok {
		name = alias
	}
	return pflag.NormalizedName(name)
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Search config in home directory with name ".rod-route-tracker" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".rod-route-tracker")
	}

	bindEnv(viper.GetViper())

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix("route_tracker")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv() // read in environment variables that match
}

var rootCmd = &cobra.Command{
	Use:   "rod-route-tracker",
	Short: "Records the travel time and distance of a map route",
	Long: `Opens a map routing page in a headless browser, waits for the route to render,
saves a screenshot and appends the travel time and distance to a tab separated file.`,
	SilenceUsage: true,

	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := configFromViper(viper.GetViper())
		if err != nil {
			return err
		}

		log, err := newLogger(viper.GetBool(flagVerbose))
		if err != nil {
			return err
		}
		defer log.Sync()

		return tracker(cmd.Context(), cfg, log)
	},
}

// configFromViper reads every setting strictly. Flags always carry a default, so an
// empty or zero value here was given explicitly and is rejected rather than defaulted.
func configFromViper(v *viper.Viper) (track.Config, error) {
	cfg := track.Config{
		URL:           v.GetString(flagURL),
		Browser:       v.GetString(flagBrowser),
		RouteClass:    v.GetString(flagRouteClass),
		ScreenPath:    v.GetString(flagScreenPath),
		ScreenPattern: v.GetString(flagScreenPattern),
		CSVPath:       v.GetString(flagCSVPath),
		SqlitePath:    v.GetString(flagSqlitePath),
		Show:          v.GetBool(flagShow),
	}
	if cfg.URL == "" {
		return cfg, fmt.Errorf("%w: --%s is required", track.ErrInvalidConfig, flagURL)
	}

	var err error
	cfg.Resolution, err = intSlice(v.Get(flagResolution))
	if err != nil || len(cfg.Resolution) == 0 {
		return cfg, fmt.Errorf("%w: --%s must be width,height, got %v", track.ErrInvalidConfig, flagResolution, v.Get(flagResolution))
	}

	if cfg.Timeout, err = seconds(v, flagTimeout); err != nil {
		return cfg, err
	}
	if cfg.NavigateTimeout, err = seconds(v, flagNavTimeout); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// intSlice accepts the []int of a parsed flag as well as the "1280,720" string that
// environment variables and config files provide.
func intSlice(value interface{}) ([]int, error) {
	s, ok := value.(string)
	if !ok {
		return cast.ToIntSliceE(value)
	}
	s = strings.Trim(strings.TrimSpace(s), "[]")
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return cast.ToIntSliceE(parts)
}

func seconds(v *viper.Viper, key string) (time.Duration, error) {
	n, err := cast.ToIntE(v.Get(key))
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: --%s must be a positive number of seconds, got %v", track.ErrInvalidConfig, key, v.Get(key))
	}
	return time.Second * time.Duration(n), nil
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func tracker(ctx context.Context, cfg track.Config, log *zap.Logger) (err error) {
	handlers := []track.OutputHandler{&tsv.TsvOutput{Path: cfg.WithDefaults().CSVPath}}
	if cfg.SqlitePath != "" {
		outputHandler := &sqlite.SqliteOutput{Database: cfg.SqlitePath}
		if err := outputHandler.Init(); err != nil {
			return err
		}
		defer func() { err = multierr.Append(err, outputHandler.Cleanup()) }()
		handlers = append(handlers, outputHandler)
	}

	runner, err := track.New(ctx, cfg, log, handlers...)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, runner.Close()) }()

	_, err = runner.Track(ctx)
	return err
}
