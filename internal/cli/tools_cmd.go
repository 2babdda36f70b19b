package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ilkoid/apichat/pkg/app"
	"github.com/ilkoid/apichat/pkg/tools"
	"github.com/ilkoid/apichat/pkg/utils"
)

var toolsJSON bool

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Ingest the API description and print the compiled tool catalog",
	RunE:  runTools,
}

func init() {
	toolsCmd.Flags().BoolVar(&toolsJSON, "json", false, "print function declarations as JSON")
}

func runTools(cmd *cobra.Command, _ []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	if err := initLogging(cfg, nil); err != nil {
		return err
	}
	defer utils.Close()

	ops, client, registry, err := app.BuildCatalog(cmd.Context(), cfg)
	if err != nil {
		return err
	}

	defs := slices.Collect(registry.All())
	if toolsJSON {
		return printDeclarations(cmd.OutOrStdout(), defs)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "API: %s (%d operations)\n\n", client.BaseURL(), len(ops))

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TOOL\tMETHOD\tPATH\tPARAMS")
	for _, op := range ops {
		tool, err := registry.Get(op.ID)
		if err != nil {
			return err
		}
		params := 0
		if rt, ok := tool.(*tools.RESTTool); ok {
			_, routing := rt.Route()
			params = len(routing.Params)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", op.ID, op.Method, op.Path, params)
	}
	return w.Flush()
}

func printDeclarations(out io.Writer, defs []tools.ToolDefinition) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(defs)
}
