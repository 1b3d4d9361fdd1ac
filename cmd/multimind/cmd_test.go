package main

import (
	"bytes"
	"testing"
)

// executeCmd executes the root command with args and returns stdout.
func executeCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
		output = "text"
	})

	_, err := rootCmd.ExecuteC()
	return out.String(), err
}
