package main

import (
	"io"
	"os"
	"strings"

	"github.com/go-go-golems/glazed/pkg/help"
	"github.com/go-go-golems/xllama/pkg/doc"
	"github.com/go-go-golems/xllama/pkg/settings"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"
)

var rootCmd = &cobra.Command{
	Use:   "xllama",
	Short: "xllama chats with Llama 2 models hosted on Replicate",
	// configuration errors are already reported by cobra, usage would bury them
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		configFile, _ := cmd.Flags().GetString("config")
		if err := initConfig(configFile); err != nil {
			return err
		}
		// reinitialize the logger because we can now parse --log-level and co
		// from the command line flag
		return initLogger(cmd.Name() != "chat")
	},
}

type logConfig struct {
	WithCaller bool
	Level      string
	LogFormat  string
	LogFile    string
	// ToStderr is off for the TUI, which owns the terminal.
	ToStderr bool
}

func initLogger(toStderr bool) error {
	logLevel := viper.GetString("log-level")
	if viper.GetBool("verbose") && logLevel != "trace" {
		logLevel = "debug"
	}

	return InitLogger(&logConfig{
		Level:      logLevel,
		LogFile:    viper.GetString("log-file"),
		LogFormat:  viper.GetString("log-format"),
		WithCaller: viper.GetBool("with-caller"),
		ToStderr:   toStderr,
	})
}

func InitLogger(config *logConfig) error {
	if config.WithCaller {
		log.Logger = log.With().Caller().Logger()
	}

	var writers []io.Writer
	if config.ToStderr {
		// default is json
		if config.LogFormat == "text" {
			writers = append(writers, zerolog.ConsoleWriter{Out: os.Stderr})
		} else {
			writers = append(writers, os.Stderr)
		}
	}

	if config.LogFile != "" {
		writers = append(writers, zerolog.ConsoleWriter{
			NoColor: true,
			Out: &lumberjack.Logger{
				Filename:   config.LogFile,
				MaxSize:    10, // megabytes
				MaxBackups: 3,
				MaxAge:     28, // days
				Compress:   false,
			},
		})
	}

	switch len(writers) {
	case 0:
		log.Logger = log.Output(io.Discard)
	case 1:
		log.Logger = log.Output(writers[0])
	default:
		log.Logger = log.Output(io.MultiWriter(writers...))
	}

	switch config.Level {
	case "trace":
		zerolog.SetGlobalLevel(zerolog.TraceLevel)
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	case "fatal":
		zerolog.SetGlobalLevel(zerolog.FatalLevel)
	}

	return nil
}

func initConfig(configPath string) error {
	viper.SetEnvPrefix("xllama")

	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.SetConfigName("config")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.xllama")

		xdgConfigPath, err := os.UserConfigDir()
		if err == nil {
			viper.AddConfigPath(xdgConfigPath + "/xllama")
		}
	}

	err := viper.ReadInConfig()
	if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		// Config file not found; ignore error
	} else if err != nil {
		return err
	}
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := settings.BindCredentials(viper.GetViper()); err != nil {
		return err
	}

	log.Debug().
		Str("config", viper.ConfigFileUsed()).
		Msg("Loaded configuration")

	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	helpSystem := help.NewHelpSystem()
	err := doc.AddDocToHelpSystem(helpSystem)
	cobra.CheckErr(err)

	helpFunc, usageFunc := help.GetCobraHelpUsageFuncs(helpSystem)
	helpTemplate, usageTemplate := help.GetCobraHelpUsageTemplates(helpSystem)

	rootCmd.SetHelpFunc(helpFunc)
	rootCmd.SetUsageFunc(usageFunc)
	rootCmd.SetHelpTemplate(helpTemplate)
	rootCmd.SetUsageTemplate(usageTemplate)

	helpCmd := help.NewCobraHelpCommand(helpSystem)
	rootCmd.SetHelpCommand(helpCmd)

	flags := rootCmd.PersistentFlags()

	// logging flags
	flags.Bool("with-caller", false, "Log caller")
	flags.String("log-level", "info", "Log level (trace, debug, info, warn, error, fatal)")
	flags.String("log-format", "text", "Log format (json, text)")
	flags.String("log-file", "", "Log file (default: stderr, the chat UI only logs to this file)")
	flags.Bool("verbose", false, "Verbose output")

	flags.String("config", "", "Path to config file (default ./config.yaml or ~/.xllama/config.yaml)")

	// session flags
	flags.String("api-type", string(settings.ApiTypeReplicate), "Inference provider (replicate, openai, echo)")
	flags.String("model", "", "Model name from the model table, or a raw provider model id")
	flags.String("models-file", "", "YAML file replacing the built-in model table")
	flags.Float64("temperature", settings.DefaultTemperature, "Sampling temperature (0.01-1)")
	flags.Float64("top-p", settings.DefaultTopP, "Nucleus sampling threshold (0.01-1)")
	flags.Int("max-length", settings.DefaultMaxLength, "Maximum number of tokens to generate (32-128)")
	flags.String("preamble", "", "Go template overriding the instruction preamble")
	flags.String("greeting", "", "Assistant greeting seeding a fresh conversation")
	flags.Bool("strict-alternation", false, "Reject two consecutive turns from the same role")
	flags.String("base-url", "", "Override the provider endpoint")
	flags.Bool("allow-local-base-url", false, "Allow http and local network addresses in --base-url")

	cobra.CheckErr(viper.BindPFlags(flags))

	rootCmd.AddCommand(chatCmd, runCmd, modelsCmd)
}
