package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vaultsync/vaultsync/internal/client"
	"github.com/vaultsync/vaultsync/internal/client/config"
	"github.com/vaultsync/vaultsync/internal/version"
)

var (
	home, _        = os.UserHomeDir()
	configFileName = "config"
)

var (
	green = color.New(color.FgHiGreen).SprintFunc()
	cyan  = color.New(color.FgHiCyan).SprintFunc()
	red   = color.New(color.FgHiRed, color.Bold).SprintFunc()
)

var rootCmd = &cobra.Command{
	Use:     "vaultsync",
	Short:   "VaultSync reconciles a local vault with a Google Drive folder",
	Version: version.Detailed(),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig(cmd)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := configFromViper()
		if err := cfg.Validate(); err != nil {
			return err
		}
		cmd.SilenceUsage = true

		c, err := client.New(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer c.Close()

		if dryRun, _ := cmd.Flags().GetBool("dry-run"); dryRun {
			return printPlan(cmd.Context(), c)
		}

		interval, _ := cmd.Flags().GetDuration("interval")
		if interval > 0 {
			defer slog.Info("bye")
			return c.Start(cmd.Context(), interval)
		}

		result, err := c.RunOnce(cmd.Context())
		if err != nil {
			return err
		}
		printResult(result)
		return nil
	},
}

func init() {
	rootCmd.Flags().SortFlags = false
	rootCmd.Flags().StringP("vault", "v", "", "vault directory to sync")
	rootCmd.Flags().StringP("remote-folder", "r", config.DefaultRemoteName, "remote folder name at the Drive root")
	rootCmd.Flags().StringP("policy", "p", "prefer-newer", "conflict policy: prefer-local|prefer-remote|prefer-newer|keep-both")
	rootCmd.Flags().DurationP("interval", "i", 0, "keep running, syncing every interval (e.g. 5m); 0 runs once")
	rootCmd.Flags().Bool("dry-run", false, "print the plan without executing it")
	rootCmd.PersistentFlags().StringP("config", "c", config.DefaultConfigPath, "config file")

	rootCmd.AddCommand(loginCmd, statusCmd)
}

func main() {
	handler := tint.NewHandler(os.Stderr, &tint.Options{
		Level:      slog.LevelInfo,
		TimeFormat: time.TimeOnly,
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
	})
	slog.SetDefault(slog.New(handler))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) error {
	if cmd.Flag("config").Changed {
		configFilePath, _ := cmd.Flags().GetString("config")
		viper.SetConfigFile(configFilePath)
	} else {
		viper.AddConfigPath(filepath.Join(home, ".vaultsync"))
		viper.AddConfigPath(filepath.Join(home, ".config/vaultsync"))
		viper.SetConfigName(configFileName)
		viper.SetConfigType("json")
	}

	if err := viper.ReadInConfig(); err != nil {
		enoent := errors.Is(err, os.ErrNotExist)
		_, notFound := err.(viper.ConfigFileNotFoundError)
		if !enoent && !notFound {
			return fmt.Errorf("config read '%s': %w", viper.ConfigFileUsed(), err)
		}
	}

	viper.BindPFlag("vault_dir", cmd.Flags().Lookup("vault"))
	viper.BindPFlag("remote_folder", cmd.Flags().Lookup("remote-folder"))
	viper.BindPFlag("policy", cmd.Flags().Lookup("policy"))

	viper.SetEnvPrefix("VAULTSYNC")
	viper.AutomaticEnv()

	return nil
}

func configFromViper() *config.Config {
	return &config.Config{
		Path:               viper.ConfigFileUsed(),
		VaultDir:           viper.GetString("vault_dir"),
		RemoteFolder:       viper.GetString("remote_folder"),
		Account:            viper.GetString("account"),
		ClientID:           viper.GetString("client_id"),
		ClientSecret:       viper.GetString("client_secret"),
		Policy:             viper.GetString("policy"),
		ExcludedFolders:    viper.GetStringSlice("excluded_folders"),
		ExcludedExtensions: viper.GetStringSlice("excluded_extensions"),
		IncludeHidden:      viper.GetBool("include_hidden"),
		Transfers:          viper.GetInt("transfers"),
	}
}
