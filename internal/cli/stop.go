package cli

import (
	"fmt"
	"os"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/erg0nix/ctxmeter/internal/app"
)

func newStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the gRPC plugin started with ctxmeter serve",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()

			pid := app.ReadPID(app.PIDPath(a.ConfigPath))
			if pid == 0 {
				fmt.Fprintln(out, styleDim.Render("ctxmeter server not running"))
				return nil
			}

			process, err := os.FindProcess(pid)
			if err == nil {
				err = process.Signal(syscall.SIGTERM)
			}
			if err != nil {
				fmt.Fprintln(out, styleError.Render("ctxmeter server: "+err.Error()))
				return nil
			}

			fmt.Fprintln(out, styleSuccess.Render("stopped ctxmeter server")+" "+stylePID.Render(fmt.Sprintf("pid %d", pid)))
			return nil
		},
	}
}
