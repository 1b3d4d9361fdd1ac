//go:build unix

package cli

import (
	"syscall"
	"testing"
	"time"
)

func TestSetupSignalHandler(t *testing.T) {
	ctx, cancel := SetupSignalHandler()
	defer cancel()

	select {
	case <-ctx.Done():
		t.Fatal("context cancelled before any signal")
	default:
	}

	if err := syscall.Kill(syscall.Getpid(), syscall.SIGTERM); err != nil {
		t.Fatal(err)
	}
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("context not cancelled by SIGTERM")
	}
}

func TestNotifyReload(t *testing.T) {
	reload, stop := NotifyReload()
	defer stop()

	if err := syscall.Kill(syscall.Getpid(), syscall.SIGHUP); err != nil {
		t.Fatal(err)
	}
	select {
	case sig := <-reload:
		if sig != syscall.SIGHUP {
			t.Errorf("signal = %v", sig)
		}
	case <-time.After(time.Second):
		t.Fatal("SIGHUP not delivered")
	}
}
