package smtlib

import (
	"bufio"
	"bytes"
	"io"
	"strings"
	"unicode"

	"github.com/pkg/errors"
)

// Node is a parsed s-expression: either an atom or a list.
type Node struct {
	Atom   string
	List   []*Node
	IsList bool
	Line   int
}

// String returns the node in s-expression syntax.
func (n *Node) String() string {
	if !n.IsList {
		return n.Atom
	}
	a := make([]string, len(n.List))
	for i, c := range n.List {
		a[i] = c.String()
	}
	return "(" + strings.Join(a, " ") + ")"
}

// head returns the atom at the front of a list, if any.
func (n *Node) head() string {
	if !n.IsList || len(n.List) == 0 || n.List[0].IsList {
		return ""
	}
	return n.List[0].Atom
}

// Parse reads every top-level s-expression from r.
func Parse(r io.Reader) ([]*Node, error) {
	p := &parser{r: bufio.NewReader(r), line: 1}

	var nodes []*Node
	for {
		n, err := p.next()
		if err == io.EOF {
			return nodes, nil
		} else if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
}

type parser struct {
	r    *bufio.Reader
	line int
}

func (p *parser) read() (rune, error) {
	ch, _, err := p.r.ReadRune()
	if ch == '\n' {
		p.line++
	}
	return ch, err
}

func (p *parser) unread(ch rune) {
	_ = p.r.UnreadRune()
	if ch == '\n' {
		p.line--
	}
}

// skip consumes whitespace and comments.
func (p *parser) skip() error {
	for {
		ch, err := p.read()
		if err != nil {
			return err
		}
		switch {
		case ch == ';':
			for ch != '\n' {
				if ch, err = p.read(); err != nil {
					return err
				}
			}
		case unicode.IsSpace(ch):
		default:
			p.unread(ch)
			return nil
		}
	}
}

func (p *parser) next() (*Node, error) {
	if err := p.skip(); err != nil {
		return nil, err
	}

	line := p.line
	ch, err := p.read()
	if err != nil {
		return nil, err
	}

	switch ch {
	case ')':
		return nil, errors.Errorf("line %d: unexpected ')'", line)

	case '(':
		n := &Node{IsList: true, Line: line}
		for {
			if err := p.skip(); err == io.EOF {
				return nil, errors.Errorf("line %d: unterminated list", line)
			} else if err != nil {
				return nil, err
			}
			if ch, err := p.read(); err != nil {
				return nil, err
			} else if ch == ')' {
				return n, nil
			} else {
				p.unread(ch)
			}

			child, err := p.next()
			if err != nil {
				return nil, err
			}
			n.List = append(n.List, child)
		}

	case '|':
		var buf bytes.Buffer
		for {
			ch, err := p.read()
			if err == io.EOF {
				return nil, errors.Errorf("line %d: unterminated quoted symbol", line)
			} else if err != nil {
				return nil, err
			} else if ch == '|' {
				return &Node{Atom: buf.String(), Line: line}, nil
			}
			buf.WriteRune(ch)
		}

	default:
		var buf bytes.Buffer
		buf.WriteRune(ch)
		for {
			ch, err := p.read()
			if err == io.EOF {
				break
			} else if err != nil {
				return nil, errors.Wrapf(err, "line %d", line)
			} else if ch == '(' || ch == ')' || ch == ';' || unicode.IsSpace(ch) {
				p.unread(ch)
				break
			}
			buf.WriteRune(ch)
		}
		return &Node{Atom: buf.String(), Line: line}, nil
	}
}
