package main

import (
	"strings"
	"testing"

	"github.com/avlott/birdfeed/internal/config"
)

type recordingSession struct {
	lines []string
}

func (r *recordingSession) ServiceBuddy() string { return "example_chirper" }
func (r *recordingSession) HandleUserMessage(to, text string) {
	r.lines = append(r.lines, to+"|"+text)
}

func TestReadCommandsRoutesLinesToServiceBuddy(t *testing.T) {
	rs := &recordingSession{}
	readCommands(strings.NewReader("undo\n\n  post hello  \n"), rs)

	want := []string{"example_chirper|undo", "example_chirper|post hello"}
	if len(rs.lines) != len(want) {
		t.Fatalf("routed %d lines, want %d: %v", len(rs.lines), len(want), rs.lines)
	}
	for i := range want {
		if rs.lines[i] != want[i] {
			t.Fatalf("line %d = %q, want %q", i, rs.lines[i], want[i])
		}
	}
}

func TestOAuthConfigDefaultsEndpoints(t *testing.T) {
	cfg := &config.Config{
		BaseURL: "https://api.example.com/1/",
		OAuthApp: config.OAuthAppConfig{
			ConsumerKey:    "ck",
			ConsumerSecret: "cs",
		},
	}

	oc := oauthConfig(cfg)
	if oc.Endpoint.RequestTokenURL != "https://api.example.com/1/oauth/request_token" {
		t.Fatalf("RequestTokenURL = %q", oc.Endpoint.RequestTokenURL)
	}
	if oc.Endpoint.AuthorizeURL != "https://api.example.com/1/oauth/authorize" {
		t.Fatalf("AuthorizeURL = %q", oc.Endpoint.AuthorizeURL)
	}
	if oc.Endpoint.AccessTokenURL != "https://api.example.com/1/oauth/access_token" {
		t.Fatalf("AccessTokenURL = %q", oc.Endpoint.AccessTokenURL)
	}
	if oc.CallbackURL != "oob" {
		t.Fatalf("CallbackURL = %q", oc.CallbackURL)
	}
}

func TestOAuthConfigRespectsOverrides(t *testing.T) {
	cfg := &config.Config{
		BaseURL: "https://api.example.com/1",
		OAuthApp: config.OAuthAppConfig{
			ConsumerKey:     "ck",
			RequestTokenURL: "https://auth.example.com/request",
		},
	}

	oc := oauthConfig(cfg)
	if oc.Endpoint.RequestTokenURL != "https://auth.example.com/request" {
		t.Fatalf("RequestTokenURL = %q, override ignored", oc.Endpoint.RequestTokenURL)
	}
	if oc.Endpoint.AuthorizeURL != "https://api.example.com/1/oauth/authorize" {
		t.Fatalf("AuthorizeURL = %q", oc.Endpoint.AuthorizeURL)
	}
}

func TestOpenStorePrefersSQLite(t *testing.T) {
	cfg := &config.Config{Store: config.StoreConfig{Path: ":memory:"}}
	st, err := openStore(cfg)
	if err != nil {
		t.Fatalf("openStore: %v", err)
	}
	if st == nil {
		t.Fatal("nil store")
	}
}
