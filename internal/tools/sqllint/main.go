// Command sqllint checks that every inline SQL statement carries a unique
// "--sql <uuid>" marker. SQLRunner logs statements by marker, so a reused id
// is reported as well.
package main

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var (
	statementPattern = regexp.MustCompile(`(?i)^\s*(select|insert|update|delete|with)\b`)
	markerPattern    = regexp.MustCompile(`^--sql [0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)
)

const defaultTarget = "internal/sqlinline"

type violation struct {
	file    string
	name    string
	line    int
	message string
}

func (v violation) String() string {
	return fmt.Sprintf("%s:%d %s (%s)", v.file, v.line, v.message, v.name)
}

// statement is a string constant that looks like SQL.
type statement struct {
	file   string
	name   string
	line   int
	marker string
}

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

func run(args []string, stderr io.Writer) int {
	targets := args
	if len(targets) == 0 {
		targets = []string{defaultTarget}
	}
	violations, err := lint(targets)
	if err != nil {
		fmt.Fprintf(stderr, "sqllint: %v\n", err)
		return 2
	}
	if len(violations) == 0 {
		return 0
	}
	fmt.Fprintln(stderr, "sqllint: SQL audit marker problems")
	for _, v := range violations {
		fmt.Fprintf(stderr, "  %s\n", v)
	}
	return 1
}

func lint(targets []string) ([]violation, error) {
	var stmts []statement
	var violations []violation
	collect := func(path string) error {
		ss, vs, err := lintFile(path)
		if err != nil {
			return err
		}
		stmts = append(stmts, ss...)
		violations = append(violations, vs...)
		return nil
	}

	for _, target := range targets {
		info, err := os.Stat(target)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			if isSource(target) {
				if err := collect(target); err != nil {
					return nil, err
				}
			}
			continue
		}
		err = filepath.WalkDir(target, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				name := d.Name()
				if path != target && (strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") || name == "vendor" || name == "testdata") {
					return filepath.SkipDir
				}
				return nil
			}
			if !isSource(path) {
				return nil
			}
			return collect(path)
		})
		if err != nil {
			return nil, err
		}
	}

	return append(violations, duplicates(stmts)...), nil
}

func isSource(path string) bool {
	return filepath.Ext(path) == ".go" && !strings.HasSuffix(path, "_test.go")
}

func lintFile(path string) ([]statement, []violation, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, nil, 0)
	if err != nil {
		return nil, nil, err
	}
	var stmts []statement
	var violations []violation
	ast.Inspect(file, func(n ast.Node) bool {
		vs, ok := n.(*ast.ValueSpec)
		if !ok {
			return true
		}
		for i, value := range vs.Values {
			bl, ok := value.(*ast.BasicLit)
			if !ok || bl.Kind != token.STRING {
				continue
			}
			raw, err := unquote(bl.Value)
			if err != nil {
				continue
			}
			marker, body := splitMarker(raw)
			if !statementPattern.MatchString(body) {
				continue
			}
			name := "_"
			if i < len(vs.Names) && vs.Names[i] != nil {
				name = vs.Names[i].Name
			}
			line := fset.Position(bl.Pos()).Line
			if !markerPattern.MatchString(marker) {
				violations = append(violations, violation{
					file:    path,
					name:    name,
					line:    line,
					message: "missing or invalid --sql <uuid> marker",
				})
				continue
			}
			stmts = append(stmts, statement{file: path, name: name, line: line, marker: marker})
		}
		return true
	})
	return stmts, violations, nil
}

func duplicates(stmts []statement) []violation {
	byMarker := make(map[string][]statement)
	for _, s := range stmts {
		byMarker[s.marker] = append(byMarker[s.marker], s)
	}
	var out []violation
	for marker, group := range byMarker {
		if len(group) < 2 {
			continue
		}
		first := group[0]
		for _, s := range group[1:] {
			out = append(out, violation{
				file:    s.file,
				name:    s.name,
				line:    s.line,
				message: fmt.Sprintf("%s already used by %s at %s:%d", marker, first.name, first.file, first.line),
			})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].file != out[j].file {
			return out[i].file < out[j].file
		}
		return out[i].line < out[j].line
	})
	return out
}

// splitMarker returns the first non-blank line and the rest of the literal.
// A literal without a marker line comes back whole as the body.
func splitMarker(s string) (string, string) {
	s = strings.TrimLeft(s, "\n\r \t")
	first, rest, _ := strings.Cut(s, "\n")
	first = strings.TrimSpace(first)
	if strings.HasPrefix(first, "--") {
		return first, rest
	}
	return "", s
}

func unquote(v string) (string, error) {
	if len(v) >= 2 && v[0] == '`' {
		return v[1 : len(v)-1], nil
	}
	return strconv.Unquote(v)
}
