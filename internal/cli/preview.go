package cli

import (
	"fmt"
	"image/color"

	"github.com/spf13/cobra"

	"github.com/matzehuels/pcbmesh/pkg/preview"
)

// boardBackground is the fill used by preview --opaque.
var boardBackground = color.RGBA{R: 24, G: 24, B: 24, A: 255}

// previewCommand creates the preview command.
func (c *CLI) previewCommand() *cobra.Command {
	var (
		lf      layerFlags
		output  string
		side    string
		scale   float64
		opaque  bool
		noCache bool
	)

	cmd := &cobra.Command{
		Use:   "preview [dir|manifest.json]",
		Short: "Render a flat PNG of the board",
		Long: `Render the composed board as a flat PNG seen from the top or from below.

Layers are drawn in stacking order with their material colors; the bottom
view is mirrored as if the board were flipped over. No mesh is built.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				lf.input = args[0]
			}
			s, err := preview.ParseSide(side)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			in, err := c.resolveLayers(ctx, lf)
			if err != nil {
				return err
			}
			opts, err := c.baseOptions()
			if err != nil {
				return err
			}
			opts.Layers = in.files
			if in.thickness > 0 {
				opts.Thickness = in.thickness
			}
			if output == "" {
				output = fmt.Sprintf("%s-%s.png", opts.Output, s)
			}

			popts := preview.Options{Side: s, Scale: c.Config.Export.PreviewScale}
			if cmd.Flags().Changed("scale") {
				popts.Scale = scale
			}
			if opaque {
				popts.Background = boardBackground
			}

			runner, err := c.newRunner(ctx, noCache)
			if err != nil {
				return fmt.Errorf("initialize runner: %w", err)
			}
			defer runner.Close()

			path, err := c.writePreview(ctx, runner, opts, popts, output)
			if err != nil {
				return err
			}
			printSuccess(c.Out, "Rendered %s view", s)
			printFile(c.Out, path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "PNG file (default <output>-<side>.png)")
	cmd.Flags().StringVar(&side, "side", "top", "side to render: top, bottom")
	cmd.Flags().Float64Var(&scale, "scale", preview.DefaultScale, "pixels per mm")
	cmd.Flags().BoolVar(&opaque, "opaque", false, "fill the background instead of leaving it transparent")
	cmd.Flags().StringToStringVar(&lf.layers, "layer", nil, "layer file as kind=path (repeatable)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable caching")

	return cmd
}
