/*
Package cli provides command-line helpers for the multimind command.

Results are printed through a Formatter chosen by the --output flag. Values
implementing Texter render their own text form:

	formatter := cli.NewFormatter(format)
	if err := formatter.FormatTo(cmd.OutOrStdout(), result); err != nil {
		return err
	}

A Spinner shows elapsed time while a message is in flight:

	spinner := cli.NewSpinner(os.Stderr)
	spinner.Start("Waiting for anthropic")
	reply, err := engine.HandleRequest(ctx, message, model, provider)
	elapsed := spinner.Stop()

SetupSignalHandler cancels a context on SIGINT/SIGTERM and NotifyReload
delivers SIGHUP for configuration reloads.
*/
package cli
