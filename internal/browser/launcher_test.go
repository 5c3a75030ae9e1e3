package browser

import (
	"context"
	"net"
	"slices"
	"testing"
)

func TestLauncherArgs(t *testing.T) {
	l := NewLauncher(Config{CDPAddress: "127.0.0.1", CDPPort: 9222, ProfileDir: "/tmp/p", StartURL: "https://github.com", Headless: true})
	args := l.args()

	for _, want := range []string{"--remote-debugging-port=9222", "--remote-debugging-address=127.0.0.1", "--user-data-dir=/tmp/p", "--headless=new"} {
		if !slices.Contains(args, want) {
			t.Fatalf("args %v missing %s", args, want)
		}
	}
	if args[len(args)-1] != "https://github.com" {
		t.Fatalf("last arg = %q; want start url", args[len(args)-1])
	}
}

func TestLauncherDefaults(t *testing.T) {
	l := NewLauncher(Config{CDPAddress: "127.0.0.1", CDPPort: 9222})
	if l.cfg.StartURL != "about:blank" || l.cfg.ReadyWait <= 0 {
		t.Fatalf("cfg = %+v", l.cfg)
	}
	if slices.Contains(l.args(), "--headless=new") {
		t.Fatal("headless flag set without Headless")
	}
}

func TestLaunchSkipsWhenPortInUse(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	port := ln.Addr().(*net.TCPAddr).Port

	l := NewLauncher(Config{CDPAddress: "127.0.0.1", CDPPort: port, BinaryPath: "/nonexistent/browser"})
	if err := l.Launch(context.Background()); err != nil {
		t.Fatalf("Launch() = %v; want reuse of running browser", err)
	}
	if l.Running() {
		t.Fatal("Running() = true; launcher should not own a reused browser")
	}
	l.Stop()
}

func TestLaunchRequiresPort(t *testing.T) {
	if err := NewLauncher(Config{CDPAddress: "127.0.0.1"}).Launch(context.Background()); err == nil {
		t.Fatal("Launch() without port succeeded")
	}
}
