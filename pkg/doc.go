// Package pkg provides the libraries behind pcbmesh, a converter from the
// Gerber files of a two-layer PCB to a 3D triangle mesh.
//
// # Overview
//
// A board is described by up to five Gerber layers: the edge cuts outline,
// top and bottom copper, and top and bottom silkscreen. Each layer runs
// through the same stages:
//
//	Gerber source
//	     ↓
//	[gerber] (tokenize and interpret into commands)
//	     ↓
//	[assemble] (commands to closed polygons, unioned per layer)
//	     ↓
//	[compose] (stack layers at their heights, clip to the outline)
//	     ↓
//	[mesh] (extrude and triangulate)
//	     ↓
//	[export] (OBJ+MTL, STL, USDZ)
//
// [pipeline] ties the stages together, runs layers concurrently and caches
// assembled layers and finished artifacts through [cache].
//
// # Quick Start
//
//	runner := pipeline.NewRunner(nil, nil, log.Default())
//	res, err := runner.Convert(ctx, pipeline.Options{
//	    Layers: layer.Files{
//	        layer.EdgeCuts:  "gerbers/board-Edge_Cuts.gbr",
//	        layer.TopCopper: "gerbers/board-F_Cu.gbr",
//	    },
//	    Output:    "out/board",
//	    Thickness: 1.6,
//	    Format:    export.FormatSTL,
//	})
//
// # Main Packages
//
// [geom] - Points, rings, shapes and rectangles in millimeters.
//
// [layer] - Layer kinds, file name classification and material colors.
//
// [preview] - Flat PNG rendering of a composed board.
//
// [api] - HTTP server exposing convert and analyze.
//
// [config] - TOML settings file shared by the CLI and the server.
//
// [observability] - Hooks for counting layers, cache traffic and requests.
//
// [io] - Board manifests and JSON/YAML reports.
//
// [errors] - Coded errors with categories, shared by every stage.
package pkg
