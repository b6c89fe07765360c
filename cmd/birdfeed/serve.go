package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dghubble/oauth1"
	"github.com/spf13/cobra"

	"github.com/avlott/birdfeed/internal/config"
	"github.com/avlott/birdfeed/internal/dashboard"
	"github.com/avlott/birdfeed/internal/gateway"
	"github.com/avlott/birdfeed/internal/sink"
	"github.com/avlott/birdfeed/internal/sink/discord"
	"github.com/avlott/birdfeed/internal/store"
	"github.com/avlott/birdfeed/internal/transport"
)

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the gateway session",
		Long:  "Logs in, resolves the contact list and polls the feed until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "birdfeed.yaml", "path to config file")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}

	tr, err := transport.NewHTTP(transport.HTTPOpts{
		BaseURL:        cfg.BaseURL,
		ConsumerKey:    cfg.OAuthApp.ConsumerKey,
		ConsumerSecret: cfg.OAuthApp.ConsumerSecret,
	})
	if err != nil {
		return err
	}

	snk, cleanup, err := openSink(cfg, cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	registry := gateway.NewRegistry()
	sess, err := gateway.NewSession(gateway.SessionOpts{
		Config:    cfg,
		Transport: tr,
		Sink:      snk,
		Registry:  registry,
		Store:     st,
		Exchanger: &gateway.OAuth1Exchanger{Config: oauthConfig(cfg)},
		Out:       cmd.OutOrStdout(),
	})
	if err != nil {
		return err
	}

	// User input reaches the session through whichever frontend is
	// active: Discord traffic via a gateway handler, console lines via
	// stdin. DMs and stdin lines go to the service buddy so a pending
	// PIN prompt is answered the same way commands are issued.
	if d, ok := snk.(*discord.Sink); ok {
		err := d.Listen(func(_, text string, direct bool) {
			if direct {
				sess.HandleUserMessage(sess.ServiceBuddy(), text)
				return
			}
			sess.HandleRoomMessage(text)
		})
		if err != nil {
			return err
		}
	} else {
		go readCommands(cmd.InOrStdin(), sess)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Dashboard.Enabled {
		go func() {
			err := dashboard.Start(ctx, dashboard.StartOpts{
				Sessions: registry,
				Port:     cfg.Dashboard.Port,
				Out:      cmd.OutOrStdout(),
			})
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "dashboard: %v\n", err)
			}
		}()
	}

	if err := sess.Login(ctx); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		fmt.Fprintf(cmd.OutOrStdout(), "\nReceived %s, shutting down...\n", sig)
		sess.Logout()
	case <-sess.Done():
	}
	return nil
}

// commandSession is the slice of the gateway session the console input
// loop needs.
type commandSession interface {
	ServiceBuddy() string
	HandleUserMessage(to, text string)
}

// readCommands feeds console lines to the session as command input,
// returning when the reader is exhausted.
func readCommands(r io.Reader, sess commandSession) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		sess.HandleUserMessage(sess.ServiceBuddy(), line)
	}
}

func openStore(cfg *config.Config) (*store.Store, error) {
	if cfg.Store.MySQLHost != "" {
		return store.OpenMySQL(cfg.Store.MySQLHost, cfg.Store.MySQLPort, cfg.Store.Database)
	}
	return store.Open(cfg.Store.Path)
}

func openSink(cfg *config.Config, cmd *cobra.Command) (sink.Sink, func(), error) {
	if cfg.Discord.BotToken == "" {
		return sink.NewConsole(cmd.OutOrStdout()), func() {}, nil
	}
	d, err := discord.New(discord.Opts{
		BotToken:  cfg.Discord.BotToken,
		ChannelID: cfg.Discord.ChannelID,
	})
	if err != nil {
		return nil, nil, err
	}
	if err := d.Connect(); err != nil {
		return nil, nil, err
	}
	return d, func() { d.Close() }, nil
}

// oauthConfig builds the signing configuration for the credential
// handshake. Endpoint URLs default to the conventional paths on the base
// URL's host.
func oauthConfig(cfg *config.Config) *oauth1.Config {
	root := strings.TrimSuffix(cfg.BaseURL, "/")
	app := cfg.OAuthApp

	requestTokenURL := app.RequestTokenURL
	if requestTokenURL == "" {
		requestTokenURL = root + "/oauth/request_token"
	}
	authorizeURL := app.AuthorizeURL
	if authorizeURL == "" {
		authorizeURL = root + "/oauth/authorize"
	}
	accessTokenURL := app.AccessTokenURL
	if accessTokenURL == "" {
		accessTokenURL = root + "/oauth/access_token"
	}

	return &oauth1.Config{
		ConsumerKey:    app.ConsumerKey,
		ConsumerSecret: app.ConsumerSecret,
		CallbackURL:    "oob",
		Endpoint: oauth1.Endpoint{
			RequestTokenURL: requestTokenURL,
			AuthorizeURL:    authorizeURL,
			AccessTokenURL:  accessTokenURL,
		},
	}
}
