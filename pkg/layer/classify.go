package layer

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/matzehuels/pcbmesh/pkg/errors"
)

// gerberExts are the file extensions Scan treats as Gerber layers.
var gerberExts = map[string]bool{
	".gbr": true, ".ger": true, ".pho": true, ".art": true,
	".gtl": true, ".gbl": true, ".gto": true, ".gbo": true,
	".gko": true, ".gm1": true, ".gml": true,
	".gts": true, ".gbs": true, ".gtp": true, ".gbp": true,
}

// protelExts maps Protel-style extensions to the layer they imply.
var protelExts = map[string]Kind{
	".gko": EdgeCuts,
	".gm1": EdgeCuts,
	".gml": EdgeCuts,
	".gtl": TopCopper,
	".gbl": BottomCopper,
	".gto": TopSilk,
	".gbo": BottomSilk,
}

// namePatterns are matched against the lower-cased base name in order; the
// first match wins.
var namePatterns = []struct {
	kind     Kind
	patterns []string
}{
	{EdgeCuts, []string{"edge", "outline", "cuts"}},
	{TopCopper, []string{"f.cu", "f_cu", "top.cu", "top_cu", "-f.cu", "copper_top"}},
	{BottomCopper, []string{"b.cu", "b_cu", "bottom.cu", "bottom_cu", "copper_bottom"}},
	{TopSilk, []string{"f.silk", "f_silk", "top.silk", "top_silk", "silkscreen_top"}},
	{BottomSilk, []string{"b.silk", "b_silk", "bottom.silk", "bottom_silk", "silkscreen_bottom"}},
}

// IsGerber reports whether name has a Gerber file extension.
func IsGerber(name string) bool {
	return gerberExts[strings.ToLower(filepath.Ext(name))]
}

// Classify guesses the layer kind of a Gerber file from its name. Only
// files with a Gerber extension are classified.
func Classify(name string) (Kind, bool) {
	base := strings.ToLower(filepath.Base(name))
	ext := filepath.Ext(base)
	if !gerberExts[ext] {
		return 0, false
	}
	if k, ok := protelExts[ext]; ok {
		return k, true
	}
	for _, np := range namePatterns {
		for _, p := range np.patterns {
			if strings.Contains(base, p) {
				return np.kind, true
			}
		}
	}
	return 0, false
}

// Duplicate records a file that matched a kind already claimed by an
// earlier file.
type Duplicate struct {
	Kind Kind
	Path string
	Kept string
}

// ScanResult is the outcome of scanning a directory for layers.
type ScanResult struct {
	Dir          string
	Files        Files
	Duplicates   []Duplicate
	Unclassified []string
}

// Scan classifies the Gerber files directly inside dir. Files are visited
// in name order so the result is deterministic; when several files match
// one kind the first is kept and the others are reported as duplicates.
func Scan(dir string) (*ScanResult, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "layer directory %s", dir)
		}
		return nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "read layer directory %s", dir)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() && IsGerber(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	res := &ScanResult{Dir: dir, Files: make(Files)}
	for _, name := range names {
		path := filepath.Join(dir, name)
		k, ok := Classify(name)
		if !ok {
			res.Unclassified = append(res.Unclassified, path)
			continue
		}
		if kept, dup := res.Files[k]; dup {
			res.Duplicates = append(res.Duplicates, Duplicate{Kind: k, Path: path, Kept: kept})
			continue
		}
		res.Files[k] = path
	}
	return res, nil
}
