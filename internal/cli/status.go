package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/erg0nix/ctxmeter/internal/app"
	grpcsvc "github.com/erg0nix/ctxmeter/internal/grpc"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the running gRPC plugin's state",
		RunE:  runStatusCmd,
	}
}

func runStatusCmd(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	pid := app.ReadPID(app.PIDPath(a.ConfigPath))
	pidText := "-"
	if pid != 0 {
		pidText = fmt.Sprintf("%d", pid)
	}

	client, err := grpcsvc.Dial(a.ServerAddr)
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Second)
	defer cancel()

	resp, err := client.Status(ctx)
	if err != nil {
		fmt.Fprintln(out, styledError("server is not running at "+a.ServerAddr,
			"start with: "+styleCommand.Render("ctxmeter serve"), err.Error()))
		return nil
	}

	t := newTable("FIELD", "VALUE")
	t.Row("status", styleSuccess.Render("running"))
	t.Row("pid", stylePID.Render(pidText))
	t.Row("address", a.ServerAddr)
	t.Row("version", resp.Version)
	t.Row("uptime", resp.Uptime)
	t.Row("encoding", resp.Encoding)
	t.Row("capacity entries", humanize.Comma(int64(resp.CapacityEntries)))
	t.Row("cached lookups", humanize.Comma(int64(resp.CachedLookups)))
	t.Row("fallback", humanize.Comma(int64(resp.FallbackSize)))
	t.Row("overrides", shortDigest(resp.OverrideDigest))
	t.Row("tools", fmt.Sprintf("%d", resp.Tools))

	fmt.Fprintln(out, t.Render())
	return nil
}
