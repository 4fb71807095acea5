// Package gerber parses RS-274X (Gerber) layer files into a stream of typed
// commands.
//
// # Overview
//
// A [Parser] tokenizes the source into '*'-terminated words and
// '%'-delimited extended blocks and interprets them against a parse context
// holding the coordinate format, units, interpolation mode, quadrant mode,
// modal operation and current point. The result is a lazy sequence of
// [Command] values in file order:
//
//	p := gerber.NewParser(src)
//	for cmd, err := range p.Commands() {
//	    if err != nil {
//	        return err
//	    }
//	    // use cmd
//	}
//
// Each call to [Parser.Commands] restarts from the beginning of the source
// with a fresh context, so the sequence can be consumed more than once.
//
// # Normalization
//
// All coordinates and aperture dimensions are converted to millimeters and
// incremental coordinates are resolved to absolute ones, so consumers never
// see file units. The coordinate format defaults to 2.4 with leading zeros
// omitted when no FS block precedes the first coordinate.
//
// # Tolerance
//
// Well-formed words the converter has no use for (attributes, image
// polarity, step and repeat, unknown G and M codes) are skipped and reported
// through the [WithWarningHandler] callback. Words that do not follow the
// grammar fail with MALFORMED_COMMAND, aperture templates that cannot be
// instantiated fail with UNSUPPORTED_APERTURE, and a source that ends
// without M02 fails with TRUNCATED_FILE. Every error carries the line and
// byte offset of the offending word.
//
// # Aperture Macros
//
// AM templates are recorded when defined and instantiated at the AD that
// uses them. Circle (1), outline (4), polygon (5), vector line (20) and
// center line (21) primitives with exposure on are supported, together with
// $n variables and arithmetic expressions.
package gerber
