package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var docsJSON bool

var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "List uploaded documents",
	Args:  cobra.NoArgs,
	RunE:  runDocs,
}

func init() {
	rootCmd.AddCommand(docsCmd)
	docsCmd.Flags().BoolVar(&docsJSON, "json", false, "output as JSON")
}

func runDocs(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	a, err := openApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	docs, err := a.chunks.ListDocs()
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}

	if docsJSON {
		return printJSON(docs)
	}
	if len(docs) == 0 {
		fmt.Println("No documents uploaded.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DOC ID\tFILENAME\tPAGES\tCHUNKS\tINDEXED\tUPLOADED")
	for _, d := range docs {
		indexed := "no"
		if a.indexes.Exists(d.ID) {
			indexed = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%s\n",
			d.ID, d.Filename, d.Pages, d.TotalChunks, indexed, d.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	return w.Flush()
}
