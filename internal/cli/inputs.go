package cli

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/matzehuels/pcbmesh/pkg/errors"
	pcbio "github.com/matzehuels/pcbmesh/pkg/io"
	"github.com/matzehuels/pcbmesh/pkg/layer"
)

// boardInput is the resolved set of layer files for one board.
type boardInput struct {
	files layer.Files

	// name and thickness come from a manifest; zero when unset.
	name      string
	thickness float64

	duplicates   []layer.Duplicate
	unclassified []string
}

// layerFlags holds the flags selecting layer files.
type layerFlags struct {
	input  string
	layers map[string]string // kind -> path, from --layer
	pick   bool
}

// resolveLayers turns the input argument and --layer flags into layer
// files. input may be a directory of Gerber files or a JSON manifest;
// --layer entries override whatever the input provides.
func (c *CLI) resolveLayers(ctx context.Context, f layerFlags) (*boardInput, error) {
	in := &boardInput{files: make(layer.Files)}
	input := f.input
	if input == "" && len(f.layers) == 0 {
		input = "."
	}

	if input != "" {
		info, err := os.Stat(input)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "input %s", input)
		}
		switch {
		case info.IsDir():
			scan, err := layer.Scan(input)
			if err != nil {
				return nil, err
			}
			if f.pick {
				files, err := pickLayers(scan)
				if err != nil {
					return nil, err
				}
				scan.Files, scan.Duplicates, scan.Unclassified = files, nil, nil
			}
			in.files = scan.Files
			in.duplicates = scan.Duplicates
			in.unclassified = scan.Unclassified
		case strings.EqualFold(filepath.Ext(input), ".json"):
			m, err := pcbio.LoadManifest(input)
			if err != nil {
				return nil, err
			}
			in.files, in.name, in.thickness = m.Layers, m.Name, m.Thickness
		default:
			return nil, errors.New(errors.ErrCodeInvalidInput,
				"%s is neither a directory nor a manifest; name single files with --layer kind=path", input)
		}
	}

	for name, path := range f.layers {
		k, err := layer.ParseKind(name)
		if err != nil {
			return nil, err
		}
		in.files[k] = path
	}

	logger := loggerFromContext(ctx)
	for _, d := range in.duplicates {
		logger.Warn("ignoring duplicate layer file", "layer", d.Kind, "file", filepath.Base(d.Path), "kept", filepath.Base(d.Kept))
	}
	for _, p := range in.unclassified {
		logger.Debug("unclassified file", "file", filepath.Base(p))
	}
	if len(in.files) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "no layer files found in %s", input)
	}
	return in, nil
}

// pickLayers lets the user assign kinds to the files of scan.
func pickLayers(scan *layer.ScanResult) (layer.Files, error) {
	final, err := tea.NewProgram(NewLayerPickerModel(scan)).Run()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "layer picker")
	}
	m := final.(LayerPickerModel)
	if !m.Confirmed {
		return nil, context.Canceled
	}
	return m.Files(), nil
}
