package process

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/opdss/version"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/zeebo/errs"
	"github.com/zeebo/structs"
	"go.uber.org/zap"

	"github.com/opdss/dispatcher/cfgstruct"
)

// DefaultCfgFilename is the file looked up inside --config-dir.
const DefaultCfgFilename = "config.yaml"

// DefaultEnvPrefix is used when neither ExecOptions.EnvPrefix nor ENV_PREFIX is set.
const DefaultEnvPrefix = "dispatcher"

var (
	commandMtx sync.Mutex
	contexts   = map[*cobra.Command]context.Context{}
	configs    = map[*cobra.Command][]interface{}{}
	vipers     = map[*cobra.Command]*viper.Viper{}
)

// Bind registers flags on cmd for every field of config. The values from
// flags, environment and config file are loaded into config before cmd runs.
func Bind(cmd *cobra.Command, config interface{}, opts ...cfgstruct.BindOpt) {
	commandMtx.Lock()
	defer commandMtx.Unlock()

	cfgstruct.Bind(cmd.Flags(), config, opts...)
	configs[cmd] = append(configs[cmd], config)
}

// ExecOptions contains options for ExecWithOptions.
type ExecOptions struct {
	// FailOnValueError stops the command when a config value cannot be parsed.
	FailOnValueError bool
	EnvPrefix        string

	LoadConfig    func(cmd *cobra.Command, vip *viper.Viper) error
	LoggerFactory func(*zap.Logger) *zap.Logger
}

// Exec runs a cobra command and exits the process with status 1 on failure.
func Exec(cmd *cobra.Command) {
	ExecWithOptions(cmd, ExecOptions{})
}

// ExecWithOptions is Exec with custom options.
func ExecWithOptions(cmd *cobra.Command, opts ExecOptions) {
	if err := Run(cmd, opts); err != nil {
		os.Exit(1)
	}
}

// Run prepares cmd and its subcommands and executes it.
func Run(cmd *cobra.Command, opts ExecOptions) error {
	if opts.LoadConfig == nil {
		opts.LoadConfig = LoadConfig
	}
	cmd.AddCommand(&cobra.Command{
		Use:         "version",
		Short:       "output the version's build information, if any",
		RunE:        cmdVersion,
		Annotations: map[string]string{"type": "setup"},
	})

	if exe, err := os.Executable(); err == nil && cmd.Use == "" {
		cmd.Use = filepath.Base(exe)
	}

	pflag.CommandLine.AddGoFlagSet(flag.CommandLine)
	wrap(cmd, &opts)
	return cmd.Execute()
}

// Ctx returns the context of a running command. It is canceled on SIGINT/SIGTERM.
func Ctx(cmd *cobra.Command) context.Context {
	commandMtx.Lock()
	defer commandMtx.Unlock()
	if ctx := contexts[cmd]; ctx != nil {
		return ctx
	}
	return context.Background()
}

// Viper returns the *viper.Viper for cmd, creating it on first use.
func Viper(cmd *cobra.Command, opts ExecOptions) (*viper.Viper, error) {
	commandMtx.Lock()
	defer commandMtx.Unlock()

	if vip := vipers[cmd]; vip != nil {
		return vip, nil
	}

	vip := viper.New()
	if err := vip.BindPFlags(cmd.Flags()); err != nil {
		return nil, err
	}

	prefix := opts.EnvPrefix
	if prefix == "" {
		prefix = os.Getenv("ENV_PREFIX")
	}
	if prefix == "" {
		prefix = DefaultEnvPrefix
	}
	vip.SetEnvPrefix(prefix)
	vip.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	vip.AutomaticEnv()

	loadConfig := opts.LoadConfig
	if loadConfig == nil {
		loadConfig = LoadConfig
	}
	if err := loadConfig(cmd, vip); err != nil {
		return nil, err
	}

	vipers[cmd] = vip
	return vip, nil
}

// LoadConfig reads config.yaml from the directory given by the "config-dir" flag, if any.
func LoadConfig(cmd *cobra.Command, vip *viper.Viper) error {
	cfgFlag := cmd.Flags().Lookup("config-dir")
	if cfgFlag == nil || cfgFlag.Value.String() == "" {
		return nil
	}
	path := filepath.Join(os.ExpandEnv(cfgFlag.Value.String()), DefaultCfgFilename)
	ok, err := fileExists(path)
	if err != nil || !ok {
		return err
	}
	vip.SetConfigFile(path)
	if err := vip.ReadInConfig(); err != nil && cmd.Annotations["type"] != "setup" {
		return err
	}
	return nil
}

func wrap(cmd *cobra.Command, opts *ExecOptions) {
	for _, sub := range cmd.Commands() {
		wrap(sub, opts)
	}
	if cmd.Run != nil {
		panic("Please use cobra's RunE instead of Run")
	}
	internalRun := cmd.RunE
	if internalRun == nil {
		return
	}

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		vip, err := Viper(cmd, *opts)
		if err != nil {
			return err
		}
		if err := applySettings(cmd, vip, opts); err != nil {
			return err
		}

		logger := zap.L()
		if opts.LoggerFactory != nil {
			logger = opts.LoggerFactory(logger)
		}
		defer func() { _ = logger.Sync() }()
		defer zap.ReplaceGlobals(logger)()

		if used := vip.ConfigFileUsed(); used != "" {
			if abs, err := filepath.Abs(used); err == nil {
				used = abs
			}
			logger.Info("Configuration loaded", zap.String("Location", used))
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigs)
		go func() {
			select {
			case sig := <-sigs:
				logger.Info("Got a signal from the OS", zap.Stringer("Signal", sig))
				cancel()
			case <-ctx.Done():
			}
		}()

		commandMtx.Lock()
		contexts[cmd] = ctx
		commandMtx.Unlock()
		defer func() {
			commandMtx.Lock()
			delete(contexts, cmd)
			commandMtx.Unlock()
		}()

		if err := internalRun(cmd, args); err != nil {
			logger.Error("Unrecoverable error", zap.Error(err))
			return err
		}
		return nil
	}
}

// applySettings decodes viper settings into the bound configs and pushes
// keys the configs could not take onto the matching flags.
func applySettings(cmd *cobra.Command, vip *viper.Viper, opts *ExecOptions) error {
	commandMtx.Lock()
	configValues := configs[cmd]
	commandMtx.Unlock()

	var (
		broken   = map[string]struct{}{}
		missing  = map[string]struct{}{}
		used     = map[string]struct{}{}
		settings = vip.AllSettings()
	)
	for _, config := range configValues {
		res := structs.Decode(settings, config)
		for key := range res.Used {
			used[key] = struct{}{}
		}
		for key := range res.Missing {
			missing[key] = struct{}{}
		}
		for key := range res.Broken {
			broken[key] = struct{}{}
		}
	}

	for key := range missing {
		f := cmd.Flags().Lookup(key)
		if f == nil || strings.HasSuffix(f.Value.Type(), "Slice") {
			continue
		}
		val := vip.GetString(key)
		if val == f.Value.String() {
			used[key] = struct{}{}
			continue
		}
		if err := f.Value.Set(val); err != nil {
			broken[key] = struct{}{}
			continue
		}
		f.Changed = val != f.DefValue
		used[key] = struct{}{}
	}

	logger := zap.L()
	if cmd.Annotations["type"] != "helper" {
		for key := range missing {
			if _, ok := used[key]; !ok {
				logger.Info("Invalid configuration file key", zap.String("Key", key))
			}
		}
	}
	for key := range broken {
		if opts.FailOnValueError {
			return errs.New("Invalid configuration file value for key: %s", key)
		}
		logger.Info("Invalid configuration file value for key", zap.String("Key", key))
	}
	return nil
}

func cmdVersion(cmd *cobra.Command, args []string) error {
	_, err := fmt.Fprintln(cmd.OutOrStdout(), version.Build)
	return err
}
