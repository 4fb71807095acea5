package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/pcbmesh/pkg/errors"
	pcbio "github.com/matzehuels/pcbmesh/pkg/io"
	"github.com/matzehuels/pcbmesh/pkg/layer"
	"github.com/matzehuels/pcbmesh/pkg/pipeline"
)

// analyzeCommand creates the analyze command.
func (c *CLI) analyzeCommand() *cobra.Command {
	var (
		input    string
		kind     string
		output   string
		detailed bool
	)

	cmd := &cobra.Command{
		Use:     "analyze [file|dir]",
		Aliases: []string{"info"},
		Short:   "Inspect Gerber files without building a model",
		Long: `Parse and assemble Gerber files and report what they contain: units,
coordinate format, apertures, commands, polygons, holes and extent.

Given a directory, every classified layer file is analyzed; a file that
fails is reported and does not stop the others.`,
		Example: `  pcbmesh analyze board-Edge_Cuts.gbr
  pcbmesh info ./gerbers --detailed
  pcbmesh analyze ./gerbers --output yaml`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				input = args[0]
			}
			if input == "" {
				input = "."
			}
			opts, err := c.baseOptions()
			if err != nil {
				return err
			}
			aopts := pipeline.AnalyzeOptions{Geometry: opts.Geometry}
			if kind != "" {
				k, err := layer.ParseKind(kind)
				if err != nil {
					return err
				}
				aopts.Kind = &k
			}
			var enc pcbio.Encoding
			if output != "table" {
				if enc, err = pcbio.ParseEncoding(output); err != nil {
					return err
				}
			}

			info, err := os.Stat(input)
			if err != nil {
				return errors.Wrap(errors.ErrCodeFileNotFound, err, "input %s", input)
			}
			if !info.IsDir() {
				rep, err := pipeline.Analyze(input, detailed, aopts)
				if err != nil {
					return err
				}
				if enc != "" {
					return pcbio.WriteReport(c.Out, rep, enc)
				}
				c.printReports([]pipeline.LayerReport{*rep}, detailed)
				return nil
			}

			if aopts.Kind != nil {
				return errors.New(errors.ErrCodeInvalidInput, "--layer applies to a single file, not a directory")
			}
			board, err := pipeline.AnalyzeDir(input, detailed, aopts)
			if err != nil {
				return err
			}
			if enc != "" {
				return pcbio.WriteReport(c.Out, board, enc)
			}
			if len(board.Layers) == 0 && len(board.Errors) == 0 {
				printInfo(c.Out, "No layer files in %s", input)
			}
			if len(board.Layers) > 0 {
				c.printReports(board.Layers, detailed)
			}
			for _, e := range board.Errors {
				printError(c.Out, "%s (%s): %s", filepath.Base(e.Path), e.Kind, e.Error)
			}
			for _, p := range board.Duplicates {
				printWarning(c.Out, "%s: duplicate layer, ignored", filepath.Base(p))
			}
			for _, p := range board.Unclassified {
				printDetail(c.Out, "%s: not classified", filepath.Base(p))
			}
			if len(board.Layers) == 0 && len(board.Errors) > 0 {
				return errors.New(errors.ErrCodeInvalidInput, "no layer in %s could be analyzed", input)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "Gerber file or directory (default \".\")")
	cmd.Flags().BoolVarP(&detailed, "detailed", "d", false, "include command counts, apertures and warnings")
	cmd.Flags().StringVar(&kind, "layer", "", "treat a single file as this layer kind")
	cmd.Flags().StringVar(&output, "output", "table", "output: table, json, yaml")

	_ = cmd.RegisterFlagCompletionFunc("layer", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return layer.Names(), cobra.ShellCompDirectiveNoFileComp
	})
	_ = cmd.RegisterFlagCompletionFunc("output", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return []string{"table", "json", "yaml"}, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func (c *CLI) printReports(reports []pipeline.LayerReport, detailed bool) {
	fmt.Fprintln(c.Out, reportTable(reports))
	if !detailed {
		return
	}
	for _, r := range reports {
		fmt.Fprintln(c.Out)
		fmt.Fprintln(c.Out, StyleTitle.Render(r.Path))
		printKeyValue(c.Out, "mode", r.Mode)
		if r.Stats != nil {
			st := r.Stats
			printKeyValue(c.Out, "draws", fmt.Sprintf("%d (%d arcs)", st.Draws, st.Arcs))
			printKeyValue(c.Out, "flashes", fmt.Sprint(st.Flashes))
			printKeyValue(c.Out, "regions", fmt.Sprint(st.Regions))
			if st.Degenerate+st.OpenChains+st.ClearSkipped > 0 {
				printKeyValue(c.Out, "dropped", fmt.Sprintf("%d degenerate, %d open, %d clear", st.Degenerate, st.OpenChains, st.ClearSkipped))
			}
		}
		if len(r.CommandCounts) > 0 {
			names := make([]string, 0, len(r.CommandCounts))
			for n := range r.CommandCounts {
				names = append(names, n)
			}
			sort.Strings(names)
			parts := make([]string, len(names))
			for i, n := range names {
				parts[i] = fmt.Sprintf("%s=%d", n, r.CommandCounts[n])
			}
			printKeyValue(c.Out, "commands", strings.Join(parts, " "))
		}
		for _, a := range r.ApertureList {
			desc := a.Shape
			if a.Macro != "" {
				desc = a.Macro
			}
			if len(a.Params) > 0 {
				desc += fmt.Sprintf(" %v", a.Params)
			}
			if a.Hole > 0 {
				desc += fmt.Sprintf(" hole %.3f", a.Hole)
			}
			printDetail(c.Out, "D%d %s", a.ID, desc)
		}
		for _, w := range r.Warnings {
			printWarning(c.Out, "%s", w)
		}
	}
}
