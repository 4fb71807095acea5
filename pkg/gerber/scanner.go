package gerber

import (
	"strings"

	"github.com/matzehuels/pcbmesh/pkg/errors"
)

// token is one '*'-terminated word or one '%'-delimited extended block.
type token struct {
	words    []string // a single word unless extended
	extended bool
	line     int
	offset   int64
}

// scanner splits a Gerber source into tokens. Line breaks are not
// significant in Gerber and are dropped from words.
type scanner struct {
	src  []byte
	pos  int
	line int
}

func newScanner(src []byte) *scanner {
	return &scanner{src: src, line: 1}
}

// position returns the current line and byte offset.
func (s *scanner) position() (int, int64) {
	return s.line, int64(s.pos)
}

func (s *scanner) skipSpace() {
	for s.pos < len(s.src) {
		switch s.src[s.pos] {
		case '\n':
			s.line++
		case '\r', ' ', '\t':
		default:
			return
		}
		s.pos++
	}
}

// next returns the next token, or nil at the end of the source.
func (s *scanner) next() (*token, error) {
	s.skipSpace()
	if s.pos >= len(s.src) {
		return nil, nil
	}
	tok := &token{line: s.line, offset: int64(s.pos)}
	if s.src[s.pos] == '%' {
		s.pos++
		tok.extended = true
		var b strings.Builder
		for {
			if s.pos >= len(s.src) {
				return nil, errors.New(errors.ErrCodeTruncatedFile,
					"unterminated extended block").At(tok.line, tok.offset)
			}
			c := s.src[s.pos]
			s.pos++
			switch c {
			case '%':
				if rest := strings.TrimSpace(b.String()); rest != "" {
					return nil, errors.New(errors.ErrCodeMalformedCommand,
						"extended block word %q is missing '*'", rest).At(tok.line, tok.offset)
				}
				return tok, nil
			case '*':
				tok.words = append(tok.words, b.String())
				b.Reset()
			case '\n':
				s.line++
			case '\r':
			default:
				b.WriteByte(c)
			}
		}
	}

	var b strings.Builder
	for {
		if s.pos >= len(s.src) {
			return nil, errors.New(errors.ErrCodeTruncatedFile,
				"word %q is missing its '*' terminator", strings.TrimSpace(b.String())).At(tok.line, tok.offset)
		}
		c := s.src[s.pos]
		s.pos++
		switch c {
		case '*':
			tok.words = []string{strings.TrimSpace(b.String())}
			return tok, nil
		case '%':
			return nil, errors.New(errors.ErrCodeMalformedCommand,
				"unexpected '%%' inside word %q", b.String()).At(tok.line, tok.offset)
		case '\n':
			s.line++
		case '\r':
		default:
			b.WriteByte(c)
		}
	}
}
