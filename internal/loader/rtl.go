package loader

import (
	"bufio"
	"io"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/standardbeagle/crag/internal/graph"
	"github.com/standardbeagle/crag/internal/rcu"
)

// GCC -fdump-rtl-expand dumps. A ";; Function" header opens a function;
// every symbol_ref below it is an outgoing edge, a call edge when the
// insn is a call, a reference edge otherwise.
var (
	// Old-style header: ";; Function name"
	reFunc1 = regexp.MustCompile(`^;; Function (\S+)\s*$`)
	// New-style header: ";; Function pretty name (symbol, ...)"
	reFunc2 = regexp.MustCompile(`^;; Function (.*)\s+\((\S+)(,.*)?\).*$`)

	reSymbolRef = regexp.MustCompile(`\(symbol_ref[^(]*\("([^"]*)"`)
)

// fileParser feeds one dump file into the graph under its worker's RCU
// handle.
type fileParser struct {
	g   *graph.Graph
	h   *rcu.Handle
	log *zap.Logger
}

// parse reads lines from r, attributing nodes and edges to the dump file
// named display.
func (p *fileParser) parse(display string, r io.Reader) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	cur := graph.None
	for sc.Scan() {
		line := sc.Text()
		if strings.HasPrefix(line, ";; Function ") {
			if m := reFunc1.FindStringSubmatch(line); m != nil {
				cur = p.defineNode(m[1], "", display)
				p.log.Debug("found function", zap.String("file", display), zap.String("name", m[1]))
				continue
			}
			if m := reFunc2.FindStringSubmatch(line); m != nil {
				username := strings.TrimSpace(m[1])
				cur = p.defineNode(m[2], username, display)
				p.log.Debug("found function",
					zap.String("file", display),
					zap.String("name", m[2]),
					zap.String("username", username))
				continue
			}
		} else if cur != graph.None {
			if m := reSymbolRef.FindStringSubmatch(line); m != nil {
				isCall := strings.Contains(line, "(call")
				target := p.g.AddExternal(p.h, m[1])
				p.g.AddEdge(p.h, cur, target, isCall)
			}
		}
	}
	return sc.Err()
}

// defineNode registers a defined function. The username is indexed
// before the location: once the file is set the username freezes.
func (p *fileParser) defineNode(name, username, file string) graph.NodeID {
	i := p.g.AddExternal(p.h, name)
	p.g.SetDefined(p.h, i)
	if username != "" && username != name {
		p.g.SetUsername(p.h, i, username)
	}
	p.g.SetLocation(p.h, i, file, graph.NoLine)
	return i
}
