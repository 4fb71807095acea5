package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/matzehuels/pcbmesh/pkg/errors"
	"github.com/matzehuels/pcbmesh/pkg/export"
	"github.com/matzehuels/pcbmesh/pkg/pipeline"
	"github.com/matzehuels/pcbmesh/pkg/preview"
)

// convertFlags holds the convert command's flags. Flags the user did not
// set leave the configured values alone.
type convertFlags struct {
	layerFlags
	output          string
	format          string
	thickness       float64
	copperThickness float64
	silkThickness   float64
	colors          bool
	preview         bool
	sequential      bool
	refresh         bool
	noCache         bool
}

// convertCommand creates the convert command.
func (c *CLI) convertCommand() *cobra.Command {
	var f convertFlags

	cmd := &cobra.Command{
		Use:   "convert [dir|manifest.json]",
		Short: "Convert Gerber layers into a 3D model",
		Long: `Convert the Gerber layers of a board into a 3D model.

The input is a directory of Gerber files, classified by file name
(KiCad names like board-F_Cu.gbr and Protel extensions like .gtl are
recognized), or a JSON manifest naming the file of each layer. Use
--layer to add or override single layers and --pick to assign them
interactively.

Only the edge cuts layer is required. A copper or silkscreen layer that
fails to parse is left out with a warning.

Results are cached, so converting unchanged files again is fast.`,
		Example: `  pcbmesh convert ./gerbers -t 1.6 -f stl
  pcbmesh convert board.json --colors -o out/blinky
  pcbmesh convert --layer edge_cuts=outline.gbr --layer top_copper=top.gbr`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				if f.input != "" {
					return errors.New(errors.ErrCodeInvalidInput, "give the input either as argument or with --input")
				}
				f.input = args[0]
			}
			return c.runConvert(cmd, f)
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&f.input, "input", "i", "", "directory of Gerber files or manifest (default \".\")")
	fl.StringToStringVar(&f.layers, "layer", nil, "layer file as kind=path (repeatable)")
	fl.BoolVar(&f.pick, "pick", false, "assign layers interactively")
	fl.StringVarP(&f.output, "output", "o", "", "output path without extension (default from config, output/pcb_model)")
	fl.StringVarP(&f.format, "format", "f", "", "output format: obj (default), stl, usdz")
	fl.Float64VarP(&f.thickness, "thickness", "t", 0, "board thickness in mm (default 1.6)")
	fl.Float64Var(&f.copperThickness, "copper-thickness", 0, "copper thickness in mm")
	fl.Float64Var(&f.silkThickness, "silk-thickness", 0, "silkscreen thickness in mm")
	fl.BoolVarP(&f.colors, "colors", "c", false, "write per-layer materials")
	fl.BoolVarP(&f.preview, "preview", "p", false, "also write a PNG preview of the top side")
	fl.BoolVar(&f.sequential, "sequential", false, "process layers one at a time")
	fl.BoolVar(&f.refresh, "refresh", false, "ignore cached results")
	fl.BoolVar(&f.noCache, "no-cache", false, "disable caching")

	_ = cmd.RegisterFlagCompletionFunc("format", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return []string{"obj", "stl", "usdz"}, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

// convertOptions layers the changed flags and the manifest over the config.
func (c *CLI) convertOptions(cmd *cobra.Command, f convertFlags, in *boardInput) (pipeline.Options, error) {
	opts, err := c.baseOptions()
	if err != nil {
		return opts, err
	}
	fl := cmd.Flags()

	if in.name != "" {
		opts.Output = filepath.Join(filepath.Dir(opts.Output), in.name)
	}
	if in.thickness > 0 {
		opts.Thickness = in.thickness
	}
	if fl.Changed("output") {
		opts.Output = f.output
	}
	if fl.Changed("format") {
		format, err := export.ParseFormat(f.format)
		if err != nil {
			return opts, err
		}
		opts.Format = format
	}
	if fl.Changed("thickness") {
		opts.Thickness = f.thickness
	}
	if fl.Changed("copper-thickness") {
		opts.CopperThickness = f.copperThickness
	}
	if fl.Changed("silk-thickness") {
		opts.SilkThickness = f.silkThickness
	}
	if fl.Changed("colors") {
		opts.Colors = f.colors
	}
	opts.Layers = in.files
	opts.Sequential = f.sequential
	opts.Refresh = f.refresh
	return opts, nil
}

func (c *CLI) runConvert(cmd *cobra.Command, f convertFlags) error {
	ctx := cmd.Context()
	in, err := c.resolveLayers(ctx, f.layerFlags)
	if err != nil {
		return err
	}
	opts, err := c.convertOptions(cmd, f, in)
	if err != nil {
		return err
	}

	runner, err := c.newRunner(ctx, f.noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	prog := newProgress(c.Logger)
	spinner := newSpinner(ctx, c.stderr, fmt.Sprintf("Converting %d layers...", len(in.files)))
	spinner.Start()
	res, err := runner.Convert(ctx, opts)
	if err != nil {
		if ctx.Err() != nil {
			spinner.Stop()
			return ctx.Err()
		}
		spinner.StopWithError(c.Out, "Conversion failed")
		return err
	}
	spinner.Stop()
	prog.done("Converted " + filepath.Base(opts.Output))

	printSuccess(c.Out, "Built %s model", opts.Format)
	fmt.Fprintln(c.Out, layerTable(res.Layers))
	for _, w := range res.Warnings {
		printWarning(c.Out, "%s", w)
	}
	for _, p := range res.Files {
		printFile(c.Out, p)
	}

	if f.preview {
		popts := preview.Options{Side: preview.Top, Scale: c.Config.Export.PreviewScale}
		path, err := c.writePreview(ctx, runner, opts, popts, opts.Output+".png")
		if err != nil {
			return err
		}
		printFile(c.Out, path)
	}
	printStats(c.Out, res.Stats, res.CacheInfo.ArtifactHit)
	if !f.preview {
		printNextStep(c.Out, "Preview", commandLine("preview", previewArg(f.layerFlags)))
	}
	return nil
}

// writePreview renders the composed board to a PNG at path.
func (c *CLI) writePreview(ctx context.Context, runner *pipeline.Runner, opts pipeline.Options, popts preview.Options, path string) (string, error) {
	inputs, err := pipeline.ReadLayers(opts.Layers)
	if err != nil {
		return "", err
	}
	board, _, err := runner.Board(ctx, inputs, opts)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", errors.Wrap(errors.ErrCodeIOWrite, err, "create %s", filepath.Dir(path))
	}
	out, err := os.Create(path)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeIOWrite, err, "create %s", path)
	}
	popts.Palette = opts.Palette
	if err := preview.PNG(out, board, popts); err != nil {
		out.Close()
		os.Remove(path)
		return "", err
	}
	if err := out.Close(); err != nil {
		return "", errors.Wrap(errors.ErrCodeIOWrite, err, "write %s", path)
	}
	return path, nil
}

func previewArg(f layerFlags) string {
	if f.input != "" {
		return f.input
	}
	return "."
}
