/*
Package cli provides command-line helpers shared by the throttle command.

Output Formatting:

Results that implement Tabular render as aligned text columns or CSV; any
value renders as JSON:

	formatter := cli.NewFormatter(cli.FormatCSV)
	if err := formatter.FormatTo(os.Stdout, events); err != nil {
		return err
	}

Signal Handling:

	ctx := cli.SetupSignalHandler()       // cancelled on SIGINT/SIGTERM
	reload, stop := cli.ReloadSignals()   // SIGHUP
	defer stop()

Exit Codes:

ExitCode maps configuration errors to exit status 2 and every other error
to 1.
*/
package cli
