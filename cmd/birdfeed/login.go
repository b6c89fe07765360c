package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/avlott/birdfeed/internal/config"
	"github.com/avlott/birdfeed/internal/gateway"
)

func newLoginCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Obtain and store an access credential",
		Long:  "Runs the authorization handshake interactively and saves the resulting credential, so serve can start without a browser round-trip.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "birdfeed.yaml", "path to config file")
	return cmd
}

func runLogin(cmd *cobra.Command, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	// The consumer secret may be kept out of the config file and typed in
	// at login time instead.
	if cfg.OAuthApp.ConsumerSecret == "" {
		fmt.Fprint(cmd.OutOrStdout(), "Consumer secret: ")
		secret, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(cmd.OutOrStdout())
		if err != nil {
			return fmt.Errorf("read consumer secret: %w", err)
		}
		cfg.OAuthApp.ConsumerSecret = strings.TrimSpace(string(secret))
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}

	ex := &gateway.OAuth1Exchanger{Config: oauthConfig(cfg)}

	token, secret, err := ex.RequestToken()
	if err != nil {
		return fmt.Errorf("request token: %w", err)
	}
	authURL, err := ex.AuthorizationURL(token)
	if err != nil {
		return fmt.Errorf("authorization URL: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Visit %s and authorize the application.\n", authURL)
	fmt.Fprint(cmd.OutOrStdout(), "PIN: ")
	reader := bufio.NewReader(cmd.InOrStdin())
	pin, err := reader.ReadString('\n')
	if err != nil {
		return fmt.Errorf("read PIN: %w", err)
	}
	pin = strings.TrimSpace(pin)
	if pin == "" {
		return fmt.Errorf("no PIN entered")
	}

	cred, err := ex.AccessToken(token, secret, pin)
	if err != nil {
		return fmt.Errorf("access token: %w", err)
	}

	if _, err := st.Account(cfg.Account, cfg.BaseURL); err != nil {
		return err
	}
	if err := st.SaveCredential(cfg.Account, gateway.SerializeCredential(cred)); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Credential stored for %s\n", cfg.Account)
	return nil
}
