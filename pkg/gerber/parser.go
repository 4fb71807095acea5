package gerber

import (
	"bytes"
	"fmt"
	"io"
	"iter"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/pcbmesh/pkg/errors"
	"github.com/matzehuels/pcbmesh/pkg/geom"
)

// Warning reports a word that was skipped without failing the parse.
type Warning struct {
	Line    int
	Offset  int64
	Message string
}

func (w Warning) String() string {
	return fmt.Sprintf("line %d: %s", w.Line, w.Message)
}

// Option configures a [Parser].
type Option func(*options)

type options struct {
	logger    *log.Logger
	onWarning func(Warning)
	layer     string
}

// WithLogger sets the logger skipped words are reported to at debug level.
func WithLogger(l *log.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithWarningHandler registers fn to receive every skipped-word warning.
func WithWarningHandler(fn func(Warning)) Option {
	return func(o *options) { o.onWarning = fn }
}

// WithLayer names the layer being parsed; the name is attached to errors.
func WithLayer(name string) Option {
	return func(o *options) { o.layer = name }
}

// Parser turns a Gerber source into commands.
type Parser struct {
	src  []byte
	opts options
}

// NewParser returns a parser over src. The parser does not copy src.
func NewParser(src []byte, opts ...Option) *Parser {
	p := &Parser{src: src}
	for _, opt := range opts {
		opt(&p.opts)
	}
	if p.opts.logger == nil {
		p.opts.logger = log.New(io.Discard)
	}
	return p
}

// Commands returns the command sequence. Iteration stops after the
// end-of-file command or after the first error, which is yielded with a
// zero Command. Every call starts over with a fresh parse context.
func (p *Parser) Commands() iter.Seq2[Command, error] {
	return func(yield func(Command, error) bool) {
		sc := newScanner(p.src)
		ctx := newParseContext(&p.opts)
		for {
			tok, err := sc.next()
			if err != nil {
				yield(Command{}, ctx.withLayer(err))
				return
			}
			if tok == nil {
				line, off := sc.position()
				yield(Command{}, ctx.withLayer(errors.New(errors.ErrCodeTruncatedFile,
					"file ends without M02").At(line, off)))
				return
			}
			cmds, err := ctx.handle(tok)
			if err != nil {
				yield(Command{}, ctx.withLayer(err))
				return
			}
			for _, c := range cmds {
				if !yield(c, nil) {
					return
				}
				if c.Kind == KindEndOfFile {
					return
				}
			}
		}
	}
}

// parseContext is the modal state a Gerber stream is interpreted against.
type parseContext struct {
	opts *options

	units       Units
	unitsSet    bool
	warnedUnits bool
	format      Format
	interp      Interpolation
	quadrant    QuadrantMode
	op          int
	cur         geom.Point
	macros      map[string]*Macro

	line   int
	offset int64
}

func newParseContext(opts *options) *parseContext {
	return &parseContext{
		opts:   opts,
		format: DefaultFormat,
		macros: make(map[string]*Macro),
	}
}

func (c *parseContext) errorf(code errors.Code, format string, args ...any) error {
	return errors.New(code, format, args...).At(c.line, c.offset)
}

// locate attaches the current position to a coded error that lacks one.
func (c *parseContext) locate(err error) error {
	if e, ok := errors.As(err); ok && e.Line == 0 {
		e.At(c.line, c.offset)
	}
	return err
}

func (c *parseContext) withLayer(err error) error {
	if e, ok := errors.As(err); ok && e.Layer == "" && c.opts.layer != "" {
		e.WithLayer(c.opts.layer)
	}
	return err
}

func (c *parseContext) warn(format string, args ...any) {
	w := Warning{Line: c.line, Offset: c.offset, Message: fmt.Sprintf(format, args...)}
	c.opts.logger.Debug("gerber: skipped", "layer", c.opts.layer, "line", w.Line, "reason", w.Message)
	if c.opts.onWarning != nil {
		c.opts.onWarning(w)
	}
}

// scale returns the factor to millimeters for the current units.
func (c *parseContext) scale() float64 {
	if !c.unitsSet && !c.warnedUnits {
		c.warnedUnits = true
		c.warn("no units declared before first coordinate, assuming millimeters")
	}
	return c.units.ToMM()
}

func (c *parseContext) command(k Kind) Command {
	return Command{Kind: k, Line: c.line, Offset: c.offset}
}

func (c *parseContext) handle(tok *token) ([]Command, error) {
	c.line, c.offset = tok.line, tok.offset
	if tok.extended {
		return c.extended(tok.words)
	}
	return c.word(tok.words[0])
}

func (c *parseContext) extended(words []string) ([]Command, error) {
	if len(words) == 0 {
		return nil, c.errorf(errors.ErrCodeMalformedCommand, "empty extended block")
	}
	first := strings.TrimSpace(words[0])
	if strings.HasPrefix(first, "AM") {
		m, err := parseMacro(first[2:], words[1:])
		if err != nil {
			return nil, c.locate(err)
		}
		c.macros[m.Name] = m
		return nil, nil
	}

	var out []Command
	for _, w := range words {
		w = strings.TrimSpace(w)
		if w == "" {
			continue
		}
		if len(w) < 2 || !isUpper(w[0]) || !isUpper(w[1]) {
			return nil, c.errorf(errors.ErrCodeMalformedCommand, "malformed extended command %q", w)
		}
		switch w[:2] {
		case "FS":
			f, err := c.parseFS(w)
			if err != nil {
				return nil, err
			}
			c.format = f
			cmd := c.command(KindSetFormat)
			cmd.Format = f
			out = append(out, cmd)
		case "MO":
			var u Units
			switch w {
			case "MOMM":
				u = UnitsMM
			case "MOIN":
				u = UnitsInch
			default:
				return nil, c.errorf(errors.ErrCodeMalformedCommand, "unknown units %q", w)
			}
			out = append(out, c.setUnits(u))
		case "AD":
			a, err := c.parseAD(w)
			if err != nil {
				return nil, err
			}
			cmd := c.command(KindApertureDefinition)
			cmd.Aperture = a
			cmd.ID = a.ID
			out = append(out, cmd)
		case "LP":
			cmd := c.command(KindPolarity)
			switch w {
			case "LPD":
				cmd.Polarity = Dark
			case "LPC":
				cmd.Polarity = Clear
			default:
				return nil, c.errorf(errors.ErrCodeMalformedCommand, "unknown polarity %q", w)
			}
			out = append(out, cmd)
		default:
			c.warn("ignoring %s block", w[:2])
		}
	}
	return out, nil
}

func isUpper(b byte) bool { return b >= 'A' && b <= 'Z' }

func (c *parseContext) setUnits(u Units) Command {
	c.units, c.unitsSet = u, true
	cmd := c.command(KindSetUnits)
	cmd.Units = u
	return cmd
}

func (c *parseContext) parseFS(w string) (Format, error) {
	bad := func() (Format, error) {
		return Format{}, c.errorf(errors.ErrCodeMalformedCommand, "malformed format specification %q", w)
	}
	s := w[2:]
	if len(s) < 2 {
		return bad()
	}
	var f Format
	switch s[0] {
	case 'L', 'D':
		f.Zeros = OmitLeading
	case 'T':
		f.Zeros = OmitTrailing
	default:
		return bad()
	}
	switch s[1] {
	case 'A':
		f.Notation = Absolute
	case 'I':
		f.Notation = Incremental
	default:
		return bad()
	}
	s = s[2:]
	axis := func(name byte) (int, int, bool) {
		if len(s) < 3 || s[0] != name || !isDigit(s[1]) || !isDigit(s[2]) {
			return 0, 0, false
		}
		i, d := int(s[1]-'0'), int(s[2]-'0')
		s = s[3:]
		return i, d, true
	}
	xi, xd, ok := axis('X')
	if !ok {
		return bad()
	}
	yi, yd, ok := axis('Y')
	if !ok || s != "" {
		return bad()
	}
	if xi < 1 || xd < 1 || xi > 7 || xd > 7 {
		return bad()
	}
	if xi != yi || xd != yd {
		c.warn("X format %d.%d differs from Y format %d.%d, using X", xi, xd, yi, yd)
	}
	f.Integer, f.Decimal = xi, xd
	return f, nil
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

func (c *parseContext) parseAD(w string) (*Aperture, error) {
	rest := w[2:]
	if !strings.HasPrefix(rest, "D") {
		return nil, c.errorf(errors.ErrCodeMalformedCommand, "aperture definition %q has no D code", w)
	}
	id, rest, ok := leadingInt(rest[1:])
	if !ok || id < 10 {
		return nil, c.errorf(errors.ErrCodeMalformedCommand, "invalid aperture number in %q", w)
	}
	tmpl, paramStr, hasParams := strings.Cut(rest, ",")
	if tmpl == "" {
		return nil, c.errorf(errors.ErrCodeMalformedCommand, "aperture D%d has no template", id)
	}
	var params []float64
	if hasParams {
		for _, f := range strings.Split(paramStr, "X") {
			v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
			if err != nil {
				return nil, c.errorf(errors.ErrCodeMalformedCommand, "aperture D%d: bad parameter %q", id, f)
			}
			params = append(params, v)
		}
	}

	scale := c.scale()
	switch tmpl {
	case "C", "R", "O", "P":
		a, err := newStandardAperture(id, tmpl, params, scale)
		if err != nil {
			return nil, c.locate(err)
		}
		return a, nil
	}
	m, ok := c.macros[tmpl]
	if !ok {
		return nil, c.errorf(errors.ErrCodeUnsupportedAperture, "aperture D%d uses undefined template %q", id, tmpl)
	}
	prims, err := m.Instantiate(params)
	if err != nil {
		return nil, c.locate(err)
	}
	for i := range prims {
		prims[i] = prims[i].scaled(scale)
	}
	return &Aperture{ID: id, Shape: ShapeMacro, Params: params, Macro: tmpl, Primitives: prims}, nil
}

func (c *parseContext) word(w string) ([]Command, error) {
	if w == "" {
		return nil, nil
	}
	var out []Command
	for len(w) > 0 && w[0] == 'G' {
		n, rest, ok := leadingInt(w[1:])
		if !ok {
			return nil, c.errorf(errors.ErrCodeMalformedCommand, "malformed G code in %q", w)
		}
		switch n {
		case 4:
			return out, nil
		case 1:
			c.interp = Linear
		case 2:
			c.interp = Clockwise
		case 3:
			c.interp = CounterClockwise
		case 36:
			out = append(out, c.command(KindRegionStart))
		case 37:
			out = append(out, c.command(KindRegionEnd))
		case 54, 55:
			// Select and flash-prepare prefixes carry no state of their own.
		case 70:
			out = append(out, c.setUnits(UnitsInch))
		case 71:
			out = append(out, c.setUnits(UnitsMM))
		case 74:
			c.quadrant = SingleQuadrant
		case 75:
			c.quadrant = MultiQuadrant
		case 90:
			c.format.Notation = Absolute
		case 91:
			c.format.Notation = Incremental
		default:
			c.warn("ignoring G%02d", n)
		}
		w = rest
	}
	if w == "" {
		return out, nil
	}

	switch w[0] {
	case 'M':
		n, rest, ok := leadingInt(w[1:])
		if !ok || rest != "" {
			return nil, c.errorf(errors.ErrCodeMalformedCommand, "malformed M code %q", w)
		}
		switch n {
		case 0, 2:
			out = append(out, c.command(KindEndOfFile))
		case 1:
		default:
			c.warn("ignoring M%02d", n)
		}
		return out, nil
	case 'D':
		n, rest, ok := leadingInt(w[1:])
		if !ok || rest != "" {
			return nil, c.errorf(errors.ErrCodeMalformedCommand, "malformed D code %q", w)
		}
		if n >= 10 {
			cmd := c.command(KindSetAperture)
			cmd.ID = n
			return append(out, cmd), nil
		}
		if n < 1 || n > 3 {
			return nil, c.errorf(errors.ErrCodeMalformedCommand, "reserved D code %q", w)
		}
	case 'X', 'Y', 'I', 'J':
	default:
		return nil, c.errorf(errors.ErrCodeMalformedCommand, "unrecognized command %q", w)
	}

	cw, err := parseCoordWord(w, c.format)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeMalformedCommand, err, "bad coordinate data %q", w).At(c.line, c.offset)
	}
	cmd, ok := c.operate(cw)
	if ok {
		out = append(out, cmd)
	}
	return out, nil
}

// operate applies coordinate data to the current point and produces the
// move, draw or flash it describes.
func (c *parseContext) operate(cw coordWord) (Command, bool) {
	op := cw.op
	if op == 0 {
		op = c.op
	} else {
		c.op = op
	}
	s := c.scale()

	target := c.cur
	if cw.hasX {
		if c.format.Notation == Incremental {
			target.X += cw.x * s
		} else {
			target.X = cw.x * s
		}
	}
	if cw.hasY {
		if c.format.Notation == Incremental {
			target.Y += cw.y * s
		} else {
			target.Y = cw.y * s
		}
	}

	var cmd Command
	switch op {
	case 1:
		cmd = c.command(KindDraw)
		cmd.From = c.cur
		cmd.Interp = c.interp
		cmd.Quadrant = c.quadrant
		if c.interp.IsArc() {
			cmd.Center = geom.Pt(cw.i*s, cw.j*s)
		}
	case 2:
		cmd = c.command(KindMove)
		cmd.Interp = c.interp
	case 3:
		cmd = c.command(KindFlash)
	default:
		c.warn("coordinate data without an operation")
		c.cur = target
		return Command{}, false
	}
	cmd.Point = target
	c.cur = target
	return cmd, true
}

// File is a fully parsed Gerber layer.
type File struct {
	Commands  []Command
	Apertures map[int]*Aperture
	Units     Units
	Format    Format
	Warnings  []Warning
}

// Count returns the number of commands of kind k.
func (f *File) Count(k Kind) int {
	n := 0
	for _, c := range f.Commands {
		if c.Kind == k {
			n++
		}
	}
	return n
}

// ParseBytes parses a complete source.
func ParseBytes(src []byte, opts ...Option) (*File, error) {
	f := &File{Apertures: make(map[int]*Aperture), Format: DefaultFormat}
	opts = append(opts[:len(opts):len(opts)], func(o *options) {
		prev := o.onWarning
		o.onWarning = func(w Warning) {
			f.Warnings = append(f.Warnings, w)
			if prev != nil {
				prev(w)
			}
		}
	})
	for cmd, err := range NewParser(src, opts...).Commands() {
		if err != nil {
			return nil, err
		}
		switch cmd.Kind {
		case KindApertureDefinition:
			f.Apertures[cmd.Aperture.ID] = cmd.Aperture
		case KindSetUnits:
			f.Units = cmd.Units
		case KindSetFormat:
			f.Format = cmd.Format
		}
		f.Commands = append(f.Commands, cmd)
	}
	return f, nil
}

// Parse reads r to the end and parses it.
func Parse(r io.Reader, opts ...Option) (*File, error) {
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "read gerber source")
	}
	return ParseBytes(buf.Bytes(), opts...)
}

// ParseFile reads and parses the file at path.
func ParseFile(path string, opts ...Option) (*File, error) {
	src, err := ReadSource(path)
	if err != nil {
		return nil, err
	}
	return ParseBytes(src, opts...)
}

// ReadSource reads a layer file, mapping a missing file to FILE_NOT_FOUND.
func ReadSource(path string) ([]byte, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "layer file %s", path)
		}
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "read layer file %s", path)
	}
	return src, nil
}
