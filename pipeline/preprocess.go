// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package pipeline

import (
	"errors"
	"fmt"
	"strings"
)

// ErrShaderSyntax is returned for malformed preprocessor directives.
var ErrShaderSyntax = errors.New("pipeline: shader preprocessor syntax error")

// ImportFunc resolves an #import directive to its raw source.
type ImportFunc func(ShaderHandle) (string, error)

// Preprocess applies a line-based preprocessor to WGSL source.
//
// Supported directives:
//
//	#import "handle"     inline another registered shader, once per output
//	#define NAME [value] define NAME for the remaining lines
//	#ifdef NAME / #ifndef NAME / #else / #endif
//	#{NAME}              replaced by the value of NAME anywhere in a line
//
// imports may be nil when the source has no #import directives.
func Preprocess(source string, defs []ShaderDef, imports ImportFunc) (string, error) {
	p := &preprocessor{
		defs:     make(map[string]string, len(defs)),
		imports:  imports,
		imported: make(map[ShaderHandle]bool),
	}
	for _, d := range defs {
		p.defs[d.Name] = d.Value
	}
	var out strings.Builder
	if err := p.run(source, &out); err != nil {
		return "", err
	}
	return out.String(), nil
}

type preprocessor struct {
	defs     map[string]string
	imports  ImportFunc
	imported map[ShaderHandle]bool
}

type condFrame struct {
	active       bool
	parentActive bool
	sawElse      bool
}

func (p *preprocessor) run(source string, out *strings.Builder) error {
	var stack []condFrame
	active := func() bool {
		return len(stack) == 0 || stack[len(stack)-1].active
	}

	for i, line := range strings.Split(source, "\n") {
		lineNo := i + 1
		directive, arg, isDirective := parseDirective(line)
		if !isDirective {
			if !active() {
				continue
			}
			expanded, err := p.substitute(line, lineNo)
			if err != nil {
				return err
			}
			out.WriteString(expanded)
			out.WriteByte('\n')
			continue
		}

		switch directive {
		case "ifdef", "ifndef":
			if arg == "" {
				return fmt.Errorf("%w: line %d: #%s needs a name", ErrShaderSyntax, lineNo, directive)
			}
			_, defined := p.defs[arg]
			parent := active()
			stack = append(stack, condFrame{
				active:       parent && defined == (directive == "ifdef"),
				parentActive: parent,
			})
		case "else":
			if len(stack) == 0 {
				return fmt.Errorf("%w: line %d: #else without #ifdef", ErrShaderSyntax, lineNo)
			}
			top := &stack[len(stack)-1]
			if top.sawElse {
				return fmt.Errorf("%w: line %d: duplicate #else", ErrShaderSyntax, lineNo)
			}
			top.sawElse = true
			top.active = top.parentActive && !top.active
		case "endif":
			if len(stack) == 0 {
				return fmt.Errorf("%w: line %d: #endif without #ifdef", ErrShaderSyntax, lineNo)
			}
			stack = stack[:len(stack)-1]
		case "define":
			if !active() {
				continue
			}
			name, value, _ := strings.Cut(arg, " ")
			if name == "" {
				return fmt.Errorf("%w: line %d: #define needs a name", ErrShaderSyntax, lineNo)
			}
			p.defs[name] = strings.TrimSpace(value)
		case "import":
			if !active() {
				continue
			}
			if err := p.importShader(ShaderHandle(strings.Trim(arg, `"`)), lineNo, out); err != nil {
				return err
			}
		default:
			return fmt.Errorf("%w: line %d: unknown directive #%s", ErrShaderSyntax, lineNo, directive)
		}
	}

	if len(stack) != 0 {
		return fmt.Errorf("%w: unterminated #ifdef", ErrShaderSyntax)
	}
	return nil
}

func (p *preprocessor) importShader(h ShaderHandle, lineNo int, out *strings.Builder) error {
	if h == "" {
		return fmt.Errorf("%w: line %d: #import needs a shader", ErrShaderSyntax, lineNo)
	}
	if p.imported[h] {
		return nil
	}
	p.imported[h] = true
	if p.imports == nil {
		return fmt.Errorf("line %d: %w: %s", lineNo, ErrUnknownShader, h)
	}
	src, err := p.imports(h)
	if err != nil {
		return fmt.Errorf("line %d: import: %w", lineNo, err)
	}
	if err := p.run(src, out); err != nil {
		return fmt.Errorf("%s: %w", h, err)
	}
	return nil
}

func (p *preprocessor) substitute(line string, lineNo int) (string, error) {
	if !strings.Contains(line, "#{") {
		return line, nil
	}
	var b strings.Builder
	rest := line
	for {
		start := strings.Index(rest, "#{")
		if start < 0 {
			b.WriteString(rest)
			return b.String(), nil
		}
		end := strings.IndexByte(rest[start:], '}')
		if end < 0 {
			return "", fmt.Errorf("%w: line %d: unterminated #{", ErrShaderSyntax, lineNo)
		}
		name := rest[start+2 : start+end]
		value, ok := p.defs[name]
		if !ok {
			return "", fmt.Errorf("%w: line %d: undefined %q", ErrShaderSyntax, lineNo, name)
		}
		b.WriteString(rest[:start])
		b.WriteString(value)
		rest = rest[start+end+1:]
	}
}

// parseDirective splits "#name arg" lines. Substitutions ("#{") are not
// directives.
func parseDirective(line string) (name, arg string, ok bool) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, "#{") {
		return "", "", false
	}
	name, arg, _ = strings.Cut(trimmed[1:], " ")
	return name, strings.TrimSpace(arg), true
}
