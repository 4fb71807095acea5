package gerber

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/matzehuels/pcbmesh/pkg/errors"
	"github.com/matzehuels/pcbmesh/pkg/geom"
)

// Macro primitive codes.
const (
	PrimCircle     = 1
	PrimVectorLine = 20
	PrimCenterLine = 21
	PrimOutline    = 4
	PrimPolygon    = 5
	PrimMoire      = 6
	PrimThermal    = 7
)

var primNames = map[int]string{
	PrimCircle:     "circle",
	PrimVectorLine: "vector line",
	PrimCenterLine: "center line",
	PrimOutline:    "outline",
	PrimPolygon:    "polygon",
	PrimMoire:      "moire",
	PrimThermal:    "thermal",
	22:             "lower-left line",
}

// Primitive is one evaluated macro primitive. Mods holds the modifiers in
// file order, starting with the exposure flag.
type Primitive struct {
	Code int
	Mods []float64
}

// Polygon returns the footprint of p relative to the aperture origin.
// Circles are approximated with segments vertices.
func (p Primitive) Polygon(segments int) geom.Polygon {
	m := p.Mods
	var poly geom.Polygon
	var rot float64
	switch p.Code {
	case PrimCircle:
		if len(m) > 4 {
			rot = m[4]
		}
		c := geom.Pt(m[2], m[3]).Rotate(rot)
		return geom.Circle(c, m[1]/2, segments)
	case PrimVectorLine:
		s, e := geom.Pt(m[2], m[3]), geom.Pt(m[4], m[5])
		rot = m[6]
		d := e.Sub(s)
		l := d.Len()
		if l == 0 {
			return nil
		}
		n := geom.Pt(-d.Y/l, d.X/l).Scale(m[1] / 2)
		poly = geom.Polygon{s.Sub(n), e.Sub(n), e.Add(n), s.Add(n)}
	case PrimCenterLine:
		poly = geom.Box(geom.Pt(m[3], m[4]), m[1], m[2])
		rot = m[5]
	case PrimOutline:
		n := int(m[1])
		for i := 0; i <= n; i++ {
			poly = append(poly, geom.Pt(m[2+2*i], m[3+2*i]))
		}
		if len(poly) > 1 && poly[0] == poly[len(poly)-1] {
			poly = poly[:len(poly)-1]
		}
		if len(m) > 4+2*n {
			rot = m[4+2*n]
		}
	case PrimPolygon:
		n := int(m[1])
		c := geom.Pt(m[2], m[3])
		poly = geom.Circle(c, m[4]/2, n)
		rot = m[5]
	}
	if rot != 0 {
		for i := range poly {
			poly[i] = poly[i].Rotate(rot)
		}
	}
	return poly
}

func (p Primitive) bounds() (x0, y0, x1, y1 float64) {
	r := p.Polygon(16).Bounds()
	if r.Empty() {
		return 0, 0, 0, 0
	}
	return r.Min.X, r.Min.Y, r.Max.X, r.Max.Y
}

// scaled returns p with its length modifiers multiplied by s.
func (p Primitive) scaled(s float64) Primitive {
	m := append([]float64(nil), p.Mods...)
	mul := func(idx ...int) {
		for _, i := range idx {
			m[i] *= s
		}
	}
	switch p.Code {
	case PrimCircle:
		mul(1, 2, 3)
	case PrimVectorLine:
		mul(1, 2, 3, 4, 5)
	case PrimCenterLine:
		mul(1, 2, 3, 4)
	case PrimOutline:
		n := int(m[1])
		for i := 2; i < 4+2*n; i++ {
			m[i] *= s
		}
	case PrimPolygon:
		mul(2, 3, 4)
	}
	return Primitive{Code: p.Code, Mods: m}
}

// minMods is the minimum modifier count per supported primitive.
var minMods = map[int]int{
	PrimCircle:     4,
	PrimVectorLine: 7,
	PrimCenterLine: 6,
	PrimPolygon:    6,
}

// Macro is an AM aperture template.
type Macro struct {
	Name  string
	stmts []macroStmt
}

type macroStmt struct {
	assign int // variable number for $n=expr, 0 for primitives
	value  expr
	code   int
	mods   []expr
}

// parseMacro parses the primitive words of an AM block.
func parseMacro(name string, words []string) (*Macro, error) {
	if name == "" {
		return nil, errors.New(errors.ErrCodeMalformedCommand, "macro without a name")
	}
	m := &Macro{Name: name}
	for _, w := range words {
		w = strings.TrimSpace(w)
		if w == "" {
			continue
		}
		if w == "0" || strings.HasPrefix(w, "0 ") || strings.HasPrefix(w, "0,") {
			continue
		}
		if strings.HasPrefix(w, "$") {
			lhs, rhs, ok := strings.Cut(w[1:], "=")
			n, err := strconv.Atoi(lhs)
			if !ok || err != nil || n < 1 {
				return nil, errors.New(errors.ErrCodeMalformedCommand, "macro %s: bad assignment %q", name, w)
			}
			e, err := parseExpr(rhs)
			if err != nil {
				return nil, errors.Wrap(errors.ErrCodeMalformedCommand, err, "macro %s", name)
			}
			m.stmts = append(m.stmts, macroStmt{assign: n, value: e})
			continue
		}
		fields := strings.Split(w, ",")
		code, err := strconv.Atoi(strings.TrimSpace(fields[0]))
		if err != nil {
			return nil, errors.New(errors.ErrCodeMalformedCommand, "macro %s: bad primitive %q", name, w)
		}
		st := macroStmt{code: code}
		for _, f := range fields[1:] {
			e, err := parseExpr(f)
			if err != nil {
				return nil, errors.Wrap(errors.ErrCodeMalformedCommand, err, "macro %s", name)
			}
			st.mods = append(st.mods, e)
		}
		m.stmts = append(m.stmts, st)
	}
	return m, nil
}

// Instantiate evaluates the template with the AD parameters bound to $1..$n.
// The result is in file units.
func (m *Macro) Instantiate(params []float64) ([]Primitive, error) {
	vars := make(map[int]float64, len(params))
	for i, p := range params {
		vars[i+1] = p
	}
	var out []Primitive
	for _, st := range m.stmts {
		if st.assign > 0 {
			vars[st.assign] = st.value.eval(vars)
			continue
		}
		code := st.code
		if code == 2 {
			code = PrimVectorLine
		}
		switch code {
		case PrimCircle, PrimVectorLine, PrimCenterLine, PrimOutline, PrimPolygon:
		default:
			name := primNames[code]
			if name == "" {
				name = "unknown"
			}
			return nil, errors.New(errors.ErrCodeUnsupportedAperture,
				"macro %s: primitive %d (%s) is not supported", m.Name, st.code, name)
		}
		mods := make([]float64, len(st.mods))
		for i, e := range st.mods {
			mods[i] = e.eval(vars)
		}
		if err := checkMods(m.Name, code, mods); err != nil {
			return nil, err
		}
		if mods[0] == 0 {
			return nil, errors.New(errors.ErrCodeUnsupportedAperture,
				"macro %s: exposure off is not supported", m.Name)
		}
		out = append(out, Primitive{Code: code, Mods: mods})
	}
	if len(out) == 0 {
		return nil, errors.New(errors.ErrCodeUnsupportedAperture, "macro %s has no primitives", m.Name)
	}
	return out, nil
}

func checkMods(name string, code int, mods []float64) error {
	need := minMods[code]
	if code == PrimOutline {
		if len(mods) < 2 {
			need = 2
		} else {
			n := int(mods[1])
			if n < 1 {
				return errors.New(errors.ErrCodeMalformedCommand, "macro %s: outline with %d vertices", name, n)
			}
			need = 2 + 2*(n+1)
		}
	}
	if len(mods) < need {
		return errors.New(errors.ErrCodeMalformedCommand,
			"macro %s: primitive %d needs %d modifiers, got %d", name, code, need, len(mods))
	}
	if code == PrimPolygon {
		n := mods[1]
		if n != math.Trunc(n) || n < 3 || n > 12 {
			return errors.New(errors.ErrCodeMalformedCommand, "macro %s: polygon with %v vertices", name, n)
		}
	}
	return nil
}

// expr is a parsed macro arithmetic expression.
type expr interface {
	eval(vars map[int]float64) float64
}

type numExpr float64

func (n numExpr) eval(map[int]float64) float64 { return float64(n) }

// varExpr reads $n; unset variables evaluate to 0.
type varExpr int

func (v varExpr) eval(vars map[int]float64) float64 { return vars[int(v)] }

type negExpr struct{ x expr }

func (n negExpr) eval(vars map[int]float64) float64 { return -n.x.eval(vars) }

type binExpr struct {
	op   byte
	l, r expr
}

func (b binExpr) eval(vars map[int]float64) float64 {
	l, r := b.l.eval(vars), b.r.eval(vars)
	switch b.op {
	case '+':
		return l + r
	case '-':
		return l - r
	case 'x':
		return l * r
	}
	if r == 0 {
		return 0
	}
	return l / r
}

type exprParser struct {
	s   string
	pos int
}

func parseExpr(s string) (expr, error) {
	p := &exprParser{s: strings.Join(strings.Fields(s), "")}
	if p.s == "" {
		return nil, fmt.Errorf("empty expression")
	}
	e, err := p.sum()
	if err != nil {
		return nil, err
	}
	if p.pos != len(p.s) {
		return nil, fmt.Errorf("unexpected %q in expression %q", p.s[p.pos:], s)
	}
	return e, nil
}

func (p *exprParser) peek() byte {
	if p.pos < len(p.s) {
		return p.s[p.pos]
	}
	return 0
}

func (p *exprParser) sum() (expr, error) {
	l, err := p.product()
	if err != nil {
		return nil, err
	}
	for {
		op := p.peek()
		if op != '+' && op != '-' {
			return l, nil
		}
		p.pos++
		r, err := p.product()
		if err != nil {
			return nil, err
		}
		l = binExpr{op: op, l: l, r: r}
	}
}

func (p *exprParser) product() (expr, error) {
	l, err := p.unary()
	if err != nil {
		return nil, err
	}
	for {
		op := p.peek()
		if op == 'X' {
			op = 'x'
		}
		if op != 'x' && op != '/' {
			return l, nil
		}
		p.pos++
		r, err := p.unary()
		if err != nil {
			return nil, err
		}
		l = binExpr{op: op, l: l, r: r}
	}
}

func (p *exprParser) unary() (expr, error) {
	switch p.peek() {
	case '-':
		p.pos++
		x, err := p.unary()
		if err != nil {
			return nil, err
		}
		return negExpr{x}, nil
	case '+':
		p.pos++
		return p.unary()
	}
	return p.atom()
}

func (p *exprParser) atom() (expr, error) {
	switch c := p.peek(); {
	case c == '(':
		p.pos++
		e, err := p.sum()
		if err != nil {
			return nil, err
		}
		if p.peek() != ')' {
			return nil, fmt.Errorf("missing ) in expression %q", p.s)
		}
		p.pos++
		return e, nil
	case c == '$':
		p.pos++
		start := p.pos
		for p.pos < len(p.s) && p.s[p.pos] >= '0' && p.s[p.pos] <= '9' {
			p.pos++
		}
		n, err := strconv.Atoi(p.s[start:p.pos])
		if err != nil || n < 1 {
			return nil, fmt.Errorf("bad variable in expression %q", p.s)
		}
		return varExpr(n), nil
	case c == '.' || (c >= '0' && c <= '9'):
		start := p.pos
		for p.pos < len(p.s) && (p.s[p.pos] == '.' || (p.s[p.pos] >= '0' && p.s[p.pos] <= '9')) {
			p.pos++
		}
		v, err := strconv.ParseFloat(p.s[start:p.pos], 64)
		if err != nil {
			return nil, fmt.Errorf("bad number %q", p.s[start:p.pos])
		}
		return numExpr(v), nil
	case c == 0:
		return nil, fmt.Errorf("unexpected end of expression %q", p.s)
	default:
		return nil, fmt.Errorf("unexpected %q in expression %q", c, p.s)
	}
}
