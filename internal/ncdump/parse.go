package ncdump

import (
	"bufio"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const (
	sectionNone       = ""
	sectionHeader     = "header"
	sectionDimensions = "dimensions"
	sectionVariables  = "variables"
	sectionData       = "data"
	sectionEnd        = "end"
)

// maxLineLen bounds a single dump line. ncdump wraps data at 80 columns by
// default but -l can raise that considerably.
const maxLineLen = 64 << 20

var (
	headerRE    = regexp.MustCompile(`^netcdf\s+(\S+)\s*\{$`)
	varDeclRE   = regexp.MustCompile(`^([A-Za-z0-9_]+)\s+([^\s(]+)\s*(?:\(([^)]*)\))?$`)
	unlimitedRE = regexp.MustCompile(`\((\d+) currently\)`)
)

type parser struct {
	d       *Dump
	section string
	seen    map[string]bool
	line    int
	stmt    strings.Builder
	start   int

	// scan is how far stmt has been searched for a terminating ';', and
	// quoted whether that position is inside a string literal.
	scan   int
	quoted bool
}

// Parse turns the text printed by `ncdump -c` or `ncdump -v` into a Dump.
// Parsing the same text twice yields equal results.
func Parse(text string) (*Dump, error) {
	p := &parser{d: newDump(), seen: make(map[string]bool)}
	sc := bufio.NewScanner(strings.NewReader(text))
	sc.Buffer(make([]byte, 0, 64*1024), maxLineLen)
	for sc.Scan() {
		p.line++
		if err := p.feed(sc.Text()); err != nil {
			return nil, err
		}
	}
	if err := sc.Err(); err != nil {
		return nil, &ParseError{Section: p.sectionName(), Line: p.line, Msg: err.Error()}
	}
	if err := p.finish(); err != nil {
		return nil, err
	}
	return p.d, nil
}

func (p *parser) sectionName() string {
	if p.section == sectionNone {
		return sectionHeader
	}
	return p.section
}

func (p *parser) errorf(format string, args ...any) error {
	line := p.start
	if line == 0 {
		line = p.line
	}
	return &ParseError{Section: p.sectionName(), Line: line, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) feed(line string) error {
	code, comment := splitComment(line)
	trimmed := strings.TrimSpace(code)

	switch p.section {
	case sectionNone:
		if trimmed == "" {
			return nil
		}
		m := headerRE.FindStringSubmatch(trimmed)
		if m == nil {
			return p.errorf("expected `netcdf NAME {`, got %q", trimmed)
		}
		p.d.Name = m[1]
		p.section = sectionHeader
		return nil
	case sectionEnd:
		if trimmed != "" {
			return &ParseError{Section: "trailer", Line: p.line, Msg: fmt.Sprintf("unexpected text after closing brace: %q", trimmed)}
		}
		return nil
	}

	if strings.TrimSpace(p.stmt.String()) == "" {
		p.resetStatement()
		switch {
		case trimmed == "dimensions:", trimmed == "variables:", trimmed == "data:":
			return p.enter(strings.TrimSuffix(trimmed, ":"))
		case trimmed == "}":
			p.section = sectionEnd
			return nil
		case trimmed == "types:":
			return &ParseError{Section: "types", Line: p.line, Msg: "user-defined types are not supported"}
		case strings.HasPrefix(trimmed, "group:"):
			return &ParseError{Section: "group", Line: p.line, Msg: "nested groups are not supported"}
		case trimmed == "":
			return nil
		}
	}
	if p.section == sectionHeader {
		return p.errorf("statement outside of a section: %q", trimmed)
	}

	if p.start == 0 {
		p.start = p.line
	}
	p.stmt.WriteString(code)
	p.stmt.WriteByte(' ')
	for {
		s := p.stmt.String()
		i := p.terminator(s)
		if i < 0 {
			return nil
		}
		if err := p.statement(strings.TrimSpace(s[:i]), comment); err != nil {
			return err
		}
		rest := s[i+1:]
		p.resetStatement()
		if strings.TrimSpace(rest) != "" {
			p.stmt.WriteString(rest)
			p.start = p.line
		}
	}
}

// terminator continues the search of the pending statement s for a ';'
// outside a string literal. Bytes already searched by earlier calls are not
// visited again, so a statement spread over many lines is scanned once.
func (p *parser) terminator(s string) int {
	for ; p.scan < len(s); p.scan++ {
		switch c := s[p.scan]; {
		case c == '\\' && p.quoted:
			p.scan++
		case c == '"':
			p.quoted = !p.quoted
		case c == ';' && !p.quoted:
			return p.scan
		}
	}
	return -1
}

func (p *parser) resetStatement() {
	p.stmt.Reset()
	p.start = 0
	p.scan = 0
	p.quoted = false
}

func (p *parser) enter(section string) error {
	if p.seen[section] {
		return &ParseError{Section: section, Line: p.line, Msg: "section declared twice"}
	}
	if section == sectionDimensions && p.seen[sectionVariables] {
		return &ParseError{Section: section, Line: p.line, Msg: "dimensions must precede variables"}
	}
	if section != sectionData && p.seen[sectionData] {
		return &ParseError{Section: section, Line: p.line, Msg: "section follows data"}
	}
	p.seen[section] = true
	p.section = section
	return nil
}

func (p *parser) statement(stmt, comment string) error {
	if stmt == "" {
		return nil
	}
	switch p.section {
	case sectionDimensions:
		return p.dimensions(stmt, comment)
	case sectionVariables:
		if indexUnquoted(stmt, '=') >= 0 {
			return p.attribute(stmt)
		}
		return p.variable(stmt)
	case sectionData:
		return p.data(stmt)
	}
	return p.errorf("unexpected statement %q", stmt)
}

func (p *parser) dimensions(stmt, comment string) error {
	for _, decl := range splitUnquoted(stmt, ',') {
		name, value, ok := strings.Cut(decl, "=")
		name, value = strings.TrimSpace(name), strings.TrimSpace(value)
		if !ok || name == "" {
			return p.errorf("malformed dimension %q", decl)
		}
		if _, dup := p.d.dims[name]; dup {
			return p.errorf("dimension %q declared twice", name)
		}
		dim := Dimension{Name: name}
		if strings.EqualFold(value, "UNLIMITED") {
			dim.Unlimited = true
			m := unlimitedRE.FindStringSubmatch(comment)
			if m != nil {
				dim.Len, _ = strconv.Atoi(m[1])
			}
		} else {
			n, err := strconv.Atoi(value)
			if err != nil || n < 0 {
				return p.errorf("dimension %q has invalid length %q", name, value)
			}
			dim.Len = n
		}
		p.d.dims[name] = len(p.d.Dimensions)
		p.d.Dimensions = append(p.d.Dimensions, dim)
	}
	return nil
}

func (p *parser) variable(stmt string) error {
	m := varDeclRE.FindStringSubmatch(stmt)
	if m == nil {
		return p.errorf("malformed variable declaration %q", stmt)
	}
	v := Variable{Type: m[1], Name: m[2]}
	if _, dup := p.d.vars[v.Name]; dup {
		return p.errorf("variable %q declared twice", v.Name)
	}
	if strings.TrimSpace(m[3]) != "" {
		for _, dim := range strings.Split(m[3], ",") {
			dim = strings.TrimSpace(dim)
			if dim == "" {
				return p.errorf("empty dimension name in %q", stmt)
			}
			v.Dims = append(v.Dims, dim)
		}
	}
	p.d.vars[v.Name] = len(p.d.Variables)
	p.d.Variables = append(p.d.Variables, v)
	return nil
}

func (p *parser) attribute(stmt string) error {
	i := indexUnquoted(stmt, '=')
	lhs := strings.Fields(stmt[:i])
	if len(lhs) == 0 {
		return p.errorf("malformed attribute %q", stmt)
	}
	// A leading type, as in `string v:units = "K"`, is dropped.
	owner, name, ok := strings.Cut(lhs[len(lhs)-1], ":")
	if !ok || name == "" {
		return p.errorf("malformed attribute %q", stmt)
	}
	attr := Attribute{Name: name, Values: splitValues(stmt[i+1:])}
	if owner == "" {
		p.d.Attributes = append(p.d.Attributes, attr)
		return nil
	}
	vi, ok := p.d.vars[owner]
	if !ok {
		return p.errorf("attribute %q of undeclared variable %q", name, owner)
	}
	p.d.Variables[vi].Attributes = append(p.d.Variables[vi].Attributes, attr)
	return nil
}

func (p *parser) data(stmt string) error {
	i := indexUnquoted(stmt, '=')
	if i < 0 {
		return p.errorf("malformed data statement")
	}
	name := strings.TrimSpace(stmt[:i])
	if _, ok := p.d.vars[name]; !ok {
		return p.errorf("data for undeclared variable %q", name)
	}
	if _, dup := p.d.data[name]; dup {
		return p.errorf("data for %q printed twice", name)
	}
	p.d.data[name] = splitValues(stmt[i+1:])
	return nil
}

func (p *parser) finish() error {
	if p.section != sectionEnd {
		if strings.TrimSpace(p.stmt.String()) != "" {
			return p.errorf("unterminated statement")
		}
		return &ParseError{Section: "trailer", Line: p.line, Msg: "missing closing brace"}
	}
	for i := range p.d.Dimensions {
		dim := &p.d.Dimensions[i]
		if coords, ok := p.d.data[dim.Name]; ok {
			if len(coords) != dim.Len {
				return &ParseError{Section: sectionData, Msg: fmt.Sprintf("coordinate variable %q has %d values, dimension length is %d", dim.Name, len(coords), dim.Len)}
			}
			dim.Coords = coords
			continue
		}
		dim.Coords = make([]string, dim.Len)
		for j := range dim.Coords {
			dim.Coords[j] = strconv.Itoa(j)
		}
	}
	for i := range p.d.Variables {
		v := &p.d.Variables[i]
		v.Points = 1
		for _, name := range v.Dims {
			dim, ok := p.d.Dimension(name)
			if !ok {
				return &ParseError{Section: sectionVariables, Msg: fmt.Sprintf("variable %q uses undeclared dimension %q", v.Name, name)}
			}
			v.Points *= dim.Len
		}
	}
	return nil
}

// splitComment separates a line into code and a trailing // comment.
func splitComment(line string) (string, string) {
	quoted := false
	for i := 0; i < len(line); i++ {
		switch c := line[i]; {
		case c == '\\' && quoted:
			i++
		case c == '"':
			quoted = !quoted
		case c == '/' && !quoted && i+1 < len(line) && line[i+1] == '/':
			return line[:i], line[i+2:]
		}
	}
	return line, ""
}

// indexUnquoted returns the index of the first sep outside a string literal.
func indexUnquoted(s string, sep byte) int {
	quoted := false
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '\\' && quoted:
			i++
		case c == '"':
			quoted = !quoted
		case c == sep && !quoted:
			return i
		}
	}
	return -1
}

func splitUnquoted(s string, sep byte) []string {
	var out []string
	for {
		i := indexUnquoted(s, sep)
		if i < 0 {
			return append(out, s)
		}
		out = append(out, s[:i])
		s = s[i+1:]
	}
}

// splitValues splits a comma separated value list, unquoting strings and
// dropping the empty entries left by line continuations.
func splitValues(s string) []string {
	var out []string
	for _, v := range splitUnquoted(s, ',') {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out = append(out, unquote(v))
	}
	return out
}

func unquote(v string) string {
	if len(v) < 2 || v[0] != '"' || v[len(v)-1] != '"' {
		return v
	}
	if s, err := strconv.Unquote(v); err == nil {
		return s
	}
	return v[1 : len(v)-1]
}
