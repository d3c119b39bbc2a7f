package cli

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/erg0nix/ctxmeter/internal/capacity"
	"github.com/erg0nix/ctxmeter/internal/registry"
)

func newModelsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models [MODEL_ID...]",
		Short: "List known context windows, or resolve the given model ids",
		RunE:  runModelsCmd,
	}

	cmd.Flags().String("filter", "", "only list table entries containing this text")

	return cmd
}

func runModelsCmd(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}

	services := a.services()
	out := cmd.OutOrStdout()

	if len(args) > 0 {
		t := newTable("MODEL", "NORMALIZED", "CONTEXT")
		for _, id := range args {
			size := services.Resolver.Resolve(cmd.Context(), id)
			t.Row(id, capacity.Normalize(id), humanize.Comma(int64(size)))
		}
		fmt.Fprintln(out, t.Render())
		return nil
	}

	filter, _ := cmd.Flags().GetString("filter")
	filter = strings.ToLower(filter)

	table := services.Resolver.Table()
	t := newTable("MODEL", "CONTEXT")
	rows := 0
	for _, entry := range table.Entries() {
		if filter != "" && !strings.Contains(entry.Name, filter) {
			continue
		}
		t.Row(entry.Name, humanize.Comma(int64(entry.Size)))
		rows++
	}

	fmt.Fprintln(out, t.Render())
	fmt.Fprintln(out, styleDim.Render(fmt.Sprintf("%d models, fallback %s tokens, overrides %s",
		rows, humanize.Comma(int64(services.Resolver.Fallback())), shortDigest(table.Digest()))))

	if endpoint := a.Config.Registry.Endpoint; endpoint != "" {
		live := registry.NewHTTP(registry.HTTPConfig{Endpoint: endpoint, APIKey: a.Config.Registry.APIKey, Timeout: a.Config.Registry.Timeout()})
		state := styleError.Render("unreachable")
		if live.IsHealthy(cmd.Context()) {
			state = styleSuccess.Render("reachable")
		}
		fmt.Fprintln(out, styleDim.Render("registry "+endpoint+": ")+state)
	}
	return nil
}

func shortDigest(digest string) string {
	if len(digest) > 12 {
		return digest[:12]
	}
	return digest
}
