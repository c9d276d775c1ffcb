package cmd

import "testing"

func TestGetRootCmd(t *testing.T) {
	c := GetRootCmd()
	if c == nil {
		t.Fatal("expected rootCmd to be non-nil")
	}
	if c.Use != "wlanpi-mqtt-bridge" {
		t.Errorf("expected Use to be 'wlanpi-mqtt-bridge', got %q", c.Use)
	}
}

func TestRootCmdHasExpectedFlags(t *testing.T) {
	c := GetRootCmd()
	for _, name := range []string{"server", "port", "identifier", "debug"} {
		if c.PersistentFlags().Lookup(name) == nil {
			t.Errorf("expected persistent flag %q to be registered", name)
		}
	}
}

func TestRootCmdHasSubcommands(t *testing.T) {
	c := GetRootCmd()
	names := map[string]bool{}
	for _, sub := range c.Commands() {
		names[sub.Use] = true
	}
	for _, want := range []string{"version", "routes"} {
		if !names[want] {
			t.Errorf("expected subcommand %q to be registered", want)
		}
	}
}
