// Package query evaluates call-path regular expressions against a graph.
// An expression is compiled to an NFA over node-name matchers and run
// through a lazy DFA while the graph is walked depth-first. Queries are
// issued by the single-threaded front-end; the graph may still be
// growing underneath them.
package query

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/standardbeagle/crag/internal/automata"
	"github.com/standardbeagle/crag/internal/graph"
	"github.com/standardbeagle/crag/internal/rcu"
)

// Pathspec syntax, one token per call-path step:
//
//	name        exact node (canonical name or username)
//	/regex/     nodes whose display name matches the anchored regex
//	[label]     nodes carrying the label
//	(x|y)       alternation, x* x+ x?  repetition, juxtaposition sequence
type parser struct {
	g   *graph.Graph
	h   *rcu.Handle
	src string
	pos int
}

// ParsePathspec compiles a pathspec into an NFA whose matchers close
// over the graph.
func ParsePathspec(g *graph.Graph, h *rcu.Handle, s string) (*automata.NFA, error) {
	p := &parser{g: g, h: h, src: s}
	re, err := p.alt()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return nil, fmt.Errorf("pathspec: trailing input at %q", p.src[p.pos:])
	}
	return automata.Compile(re), nil
}

func (p *parser) skipSpace() {
	for p.pos < len(p.src) && p.src[p.pos] == ' ' {
		p.pos++
	}
}

func (p *parser) peek() byte {
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func (p *parser) alt() (automata.Regex, error) {
	first, err := p.seq()
	if err != nil {
		return nil, err
	}
	atoms := []automata.Regex{first}
	for {
		p.skipSpace()
		if p.peek() != '|' {
			break
		}
		p.pos++
		next, err := p.seq()
		if err != nil {
			return nil, err
		}
		atoms = append(atoms, next)
	}
	if len(atoms) == 1 {
		return atoms[0], nil
	}
	return automata.Alt{Atoms: atoms}, nil
}

func (p *parser) seq() (automata.Regex, error) {
	var atoms []automata.Regex
	for {
		p.skipSpace()
		c := p.peek()
		if c == 0 || c == '|' || c == ')' {
			break
		}
		atom, err := p.postfix()
		if err != nil {
			return nil, err
		}
		atoms = append(atoms, atom)
	}
	if len(atoms) == 0 {
		return automata.Empty{}, nil
	}
	if len(atoms) == 1 {
		return atoms[0], nil
	}
	return automata.Sequence{Atoms: atoms}, nil
}

func (p *parser) postfix() (automata.Regex, error) {
	atom, err := p.atom()
	if err != nil {
		return nil, err
	}
	for {
		switch p.peek() {
		case '*':
			p.pos++
			atom = automata.Star{Atom: atom}
		case '+':
			p.pos++
			atom = automata.Plus(atom)
		case '?':
			p.pos++
			atom = automata.Opt(atom)
		default:
			return atom, nil
		}
	}
}

func (p *parser) atom() (automata.Regex, error) {
	switch p.peek() {
	case '(':
		p.pos++
		inner, err := p.alt()
		if err != nil {
			return nil, err
		}
		p.skipSpace()
		if p.peek() != ')' {
			return nil, fmt.Errorf("pathspec: missing ) at %q", p.src[p.pos:])
		}
		p.pos++
		return inner, nil
	case '/':
		return p.regexAtom()
	case '[':
		return p.labelAtom()
	case '.':
		p.pos++
		return automata.Any(), nil
	default:
		return p.nameAtom()
	}
}

func (p *parser) regexAtom() (automata.Regex, error) {
	end := strings.IndexByte(p.src[p.pos+1:], '/')
	if end < 0 {
		return nil, fmt.Errorf("pathspec: unterminated regex at %q", p.src[p.pos:])
	}
	expr := p.src[p.pos+1 : p.pos+1+end]
	p.pos += end + 2
	re, err := regexp.Compile("^(?:" + expr + ")$")
	if err != nil {
		return nil, fmt.Errorf("pathspec: %w", err)
	}
	return automata.One{M: func(sym string) bool {
		return re.MatchString(sym)
	}}, nil
}

func (p *parser) labelAtom() (automata.Regex, error) {
	end := strings.IndexByte(p.src[p.pos+1:], ']')
	if end < 0 {
		return nil, fmt.Errorf("pathspec: unterminated label at %q", p.src[p.pos:])
	}
	label := p.src[p.pos+1 : p.pos+1+end]
	p.pos += end + 2
	g, h := p.g, p.h
	return automata.One{M: func(sym string) bool {
		i := g.GetNode(h, sym)
		return i != graph.None && g.HasLabel(h, i, label)
	}}, nil
}

const specials = " ()|*+?/["

func (p *parser) nameAtom() (automata.Regex, error) {
	start := p.pos
	for p.pos < len(p.src) && !strings.ContainsRune(specials, rune(p.src[p.pos])) {
		p.pos++
	}
	if p.pos == start {
		return nil, fmt.Errorf("pathspec: unexpected %q", p.src[p.pos:])
	}
	name := p.src[start:p.pos]
	g, h := p.g, p.h
	return automata.One{M: func(sym string) bool {
		if sym == name {
			return true
		}
		// The literal may be the canonical name of a node whose display
		// name is a username, or vice versa.
		i := g.GetNode(h, name)
		return i != graph.None && g.DisplayName(h, i) == sym
	}}, nil
}
