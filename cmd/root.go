package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fancyinnovations/fancyspaces-client/internal/config"
	"github.com/fancyinnovations/fancyspaces-client/pkg/fancyspaces"
	"github.com/fancyinnovations/fancyspaces-client/pkg/logger"
	"github.com/spf13/cobra"
)

var (
	cfgFile      string
	apiKey       string
	baseURL      string
	outputFormat string
	logLevel     string
	Cfg          *config.Config
	Version      string
)

var RootCmd = &cobra.Command{
	Use:          "fancyspaces",
	Short:        "FancySpaces CLI - query published versions of spaces",
	Long:         `FancySpaces CLI lists, inspects and downloads versions published on FancySpaces.`,
	SilenceUsage: true,
}

func Execute(version string) error {
	Version = version

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return RootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)
	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")
	RootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "API key (overrides config file and FANCYSPACES_API_KEY)")
	RootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "", "API base URL (overrides config file)")
	RootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "", "output format: json or yaml")
	RootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (overrides config file)")
}

func initConfig() {
	var err error

	Cfg, err = config.LoadConfig(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Fatal: Configuration could not be loaded: %v\n", err)
		os.Exit(1)
	}

	// Command line flags win over file and environment
	if apiKey != "" {
		Cfg.API.Key = apiKey
	}
	if baseURL != "" {
		Cfg.API.BaseURL = baseURL
	}
	if outputFormat != "" {
		Cfg.Output.Format = outputFormat
	}
	if logLevel != "" {
		Cfg.Logging.Level = logLevel
	}

	if err := config.InitLogger(&Cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal: Logger could not be initialized: %v\n", err)
		os.Exit(1)
	}
}

// newClient builds an SDK client from the loaded configuration
func newClient() (*fancyspaces.Client, error) {
	if Cfg == nil {
		return nil, fmt.Errorf("configuration not loaded")
	}

	timeout, err := Cfg.TimeoutDuration()
	if err != nil {
		return nil, err
	}

	downloadTimeout, err := Cfg.DownloadTimeoutDuration()
	if err != nil {
		return nil, err
	}

	return fancyspaces.New(fancyspaces.Options{
		BaseURL:           Cfg.API.BaseURL,
		APIKey:            Cfg.API.Key,
		Timeout:           timeout,
		DownloadTimeout:   downloadTimeout,
		UserAgent:         Cfg.API.UserAgent,
		RequestsPerSecond: Cfg.API.RequestsPerSecond,
		Burst:             Cfg.API.Burst,
		Logger:            logger.NewLogger("cli"),
	}), nil
}
