package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/oauth2"

	"github.com/vaultsync/vaultsync/internal/client/config"
	"github.com/vaultsync/vaultsync/internal/gdrive"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authorize VaultSync against Google Drive and store the token",
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig(cmd)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		account, _ := cmd.Flags().GetString("account")
		clientID, _ := cmd.Flags().GetString("client-id")
		clientSecret, _ := cmd.Flags().GetString("client-secret")
		if clientID == "" {
			clientID = viper.GetString("client_id")
		}
		if clientSecret == "" {
			clientSecret = viper.GetString("client_secret")
		}
		if account == "" || clientID == "" || clientSecret == "" {
			return fmt.Errorf("login requires --account, --client-id and --client-secret")
		}

		oauthCfg := gdrive.OAuthConfig(clientID, clientSecret)
		authURL := oauthCfg.AuthCodeURL("state-token", oauth2.AccessTypeOffline)

		fmt.Println("Open this URL in your browser and authorize VaultSync:")
		fmt.Println()
		fmt.Println("  " + cyan(authURL))
		fmt.Println()
		fmt.Print("Paste the authorization code here: ")

		reader := bufio.NewReader(os.Stdin)
		code, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("read authorization code: %w", err)
		}
		code = strings.TrimSpace(code)
		if code == "" {
			return fmt.Errorf("empty authorization code")
		}

		token, err := oauthCfg.Exchange(cmd.Context(), code)
		if err != nil {
			return fmt.Errorf("exchange authorization code: %w", err)
		}
		if token.RefreshToken == "" {
			return fmt.Errorf("no refresh token granted; revoke access and try again")
		}

		if err := gdrive.SaveRefreshToken(account, token.RefreshToken); err != nil {
			return err
		}

		// persist account + client creds so plain `vaultsync` just works
		cfgPath := viper.ConfigFileUsed()
		if cfgPath == "" {
			cfgPath = config.DefaultConfigPath
		}
		cfg := configFromViper()
		cfg.Account = account
		cfg.ClientID = clientID
		cfg.ClientSecret = clientSecret
		if err := cfg.Save(cfgPath); err != nil {
			return fmt.Errorf("save config: %w", err)
		}

		fmt.Println(green("✓"), "logged in as", account, "(config:", cfgPath+")")
		return nil
	},
}

func init() {
	loginCmd.Flags().StringP("account", "a", "", "Google account email")
	loginCmd.Flags().String("client-id", "", "OAuth client id")
	loginCmd.Flags().String("client-secret", "", "OAuth client secret")
}
