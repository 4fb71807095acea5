package cli

import (
	"fmt"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/matzehuels/pcbmesh/pkg/errors"
	pcbio "github.com/matzehuels/pcbmesh/pkg/io"
	"github.com/matzehuels/pcbmesh/pkg/layer"
)

// layersCommand creates the layers command.
func (c *CLI) layersCommand() *cobra.Command {
	var (
		write string
		name  string
		pick  bool
	)

	cmd := &cobra.Command{
		Use:   "layers [dir]",
		Short: "Show how the Gerber files of a directory are classified",
		Long: `List the Gerber files of a directory with the layer each one was
classified as. Use --write to save the result as a manifest that convert
and preview accept in place of the directory.`,
		Example: `  pcbmesh layers ./gerbers
  pcbmesh layers ./gerbers --pick --write ./gerbers/board.json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			scan, err := layer.Scan(dir)
			if err != nil {
				return err
			}
			if pick {
				files, err := pickLayers(scan)
				if err != nil {
					return err
				}
				scan.Files, scan.Duplicates = files, nil
			}

			fmt.Fprintln(c.Out, scanTable(scan))

			if write == "" {
				if _, ok := scan.Files[layer.EdgeCuts]; !ok {
					printWarning(c.Out, "No %s layer; convert needs one", layer.EdgeCuts.DisplayName())
				}
				return nil
			}
			if len(scan.Files) == 0 {
				return errors.New(errors.ErrCodeInvalidInput, "no layer files in %s", dir)
			}
			m := &pcbio.Manifest{Name: name, Layers: scan.Files}
			if err := pcbio.SaveManifest(write, m); err != nil {
				return err
			}
			printSuccess(c.Out, "Wrote manifest")
			printFile(c.Out, write)
			printNextStep(c.Out, "Convert", commandLine("convert", write))
			return nil
		},
	}

	cmd.Flags().StringVarP(&write, "write", "w", "", "save the classification as a JSON manifest")
	cmd.Flags().StringVar(&name, "name", "", "board name stored in the manifest")
	cmd.Flags().BoolVar(&pick, "pick", false, "assign layers interactively")

	return cmd
}

// scanTable lists classified files in stacking order, then duplicates and
// unclassified files.
func scanTable(scan *layer.ScanResult) string {
	type row struct {
		file, layer string
		dim         bool
	}
	var rows []row
	for _, k := range scan.Files.Kinds() {
		rows = append(rows, row{file: filepath.Base(scan.Files[k]), layer: k.DisplayName()})
	}
	for _, d := range scan.Duplicates {
		rows = append(rows, row{file: filepath.Base(d.Path), layer: d.Kind.DisplayName() + " (duplicate)", dim: true})
	}
	for _, p := range scan.Unclassified {
		rows = append(rows, row{file: filepath.Base(p), layer: "-", dim: true})
	}

	cells := make([][]string, len(rows))
	for i, r := range rows {
		cells[i] = []string{r.file, r.layer}
	}
	return newTable("File", "Layer").
		Rows(cells...).
		StyleFunc(func(r, col int) lipgloss.Style {
			if r == table.HeaderRow {
				return styleHeader
			}
			base := lipgloss.NewStyle().Padding(0, 1)
			if r < len(rows) && rows[r].dim {
				return base.Inherit(StyleDim)
			}
			return base
		}).
		Render()
}
