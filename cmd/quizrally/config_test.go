package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		server  string
		wantErr bool
	}{
		{"http", "http://localhost:8080", false},
		{"https", "https://quiz.example.com", false},
		{"missing", "", true},
		{"bad scheme", "ftp://quiz.example.com", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := config{serverURL: tc.server}
			if err := c.validate(); (err != nil) != tc.wantErr {
				t.Fatalf("validate(%q) err = %v, wantErr %v", tc.server, err, tc.wantErr)
			}
		})
	}
}

func TestWsEndpointDerivation(t *testing.T) {
	c := config{serverURL: "http://localhost:8080/"}
	if got := c.wsEndpoint(); got != "ws://localhost:8080/ws" {
		t.Fatalf("wsEndpoint = %q", got)
	}

	c = config{serverURL: "https://quiz.example.com"}
	if got := c.wsEndpoint(); got != "wss://quiz.example.com/ws" {
		t.Fatalf("wsEndpoint = %q", got)
	}

	c = config{serverURL: "https://quiz.example.com", socketURL: "wss://rt.example.com/socket"}
	if got := c.wsEndpoint(); got != "wss://rt.example.com/socket" {
		t.Fatalf("override wsEndpoint = %q", got)
	}
}

func TestApiBase(t *testing.T) {
	c := config{serverURL: "http://localhost:8080/"}
	if got := c.apiBase(); got != "http://localhost:8080/api" {
		t.Fatalf("apiBase = %q", got)
	}
}

func TestLoadFileOverlaysUnsetValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte("server_url: https://quiz.example.com\nsocket_url: wss://rt.example.com/ws\nplayer_name: Ada\n")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}

	c := config{configFile: path, serverURL: "http://flag-wins.example.com"}
	if err := c.loadFile(); err != nil {
		t.Fatalf("loadFile: %v", err)
	}
	if c.serverURL != "http://flag-wins.example.com" {
		t.Fatalf("flag value overwritten: %q", c.serverURL)
	}
	if c.socketURL != "wss://rt.example.com/ws" || c.playerName != "Ada" {
		t.Fatalf("file values not applied: %+v", c)
	}

	c = config{configFile: filepath.Join(t.TempDir(), "missing.yaml")}
	if err := c.loadFile(); err == nil {
		t.Fatal("expected error for a missing config file")
	}

	c = config{}
	if err := c.loadFile(); err != nil {
		t.Fatalf("loadFile without a file: %v", err)
	}
}
