package main

import (
	"flag"
	"fmt"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const moduleName = "photocontest"

type violation struct {
	File   string
	Line   int
	Import string
	Rule   string
}

// layerRule lists what a layer of a contest service may import besides the
// standard library. Layers without a rule are only checked for cross-service
// imports.
type layerRule struct {
	allowed        []string // relative to the service import path
	allowedShared  []string // relative to the module path
	forbidAdapters bool
	forbidInternal bool
}

var layerRules = map[string]layerRule{
	"domain": {
		allowed:        []string{"domain"},
		forbidAdapters: true,
		forbidInternal: true,
	},
	"application": {
		allowed:        []string{"application", "domain", "ports"},
		forbidAdapters: true,
		forbidInternal: true,
	},
	"ports": {
		allowed:       []string{"domain"},
		allowedShared: []string{"internal/shared/events"},
	},
}

func main() {
	root := flag.String("root", "contexts", "directory holding the bounded contexts")
	flag.Parse()

	violations := collectViolations(*root)
	if len(violations) == 0 {
		fmt.Println("boundary checks passed")
		return
	}

	fmt.Println("boundary violations found:")
	for _, v := range violations {
		fmt.Printf("- %s:%d imports %q (%s)\n", v.File, v.Line, v.Import, v.Rule)
	}
	os.Exit(1)
}

// collectViolations walks root, laid out as <context>/<service>/<layer>/...,
// and returns every import that breaks a layer rule, sorted by position.
func collectViolations(root string) []violation {
	var violations []violation

	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		parts := strings.Split(filepath.ToSlash(rel), "/")
		if len(parts) < 4 {
			return nil
		}

		servicePath := fmt.Sprintf("%s/contexts/%s/%s", moduleName, parts[0], parts[1])
		display := "contexts/" + filepath.ToSlash(rel)
		violations = append(violations, validateFile(path, display, parts[2], servicePath)...)
		return nil
	})

	sort.Slice(violations, func(i, j int) bool {
		if violations[i].File != violations[j].File {
			return violations[i].File < violations[j].File
		}
		if violations[i].Line != violations[j].Line {
			return violations[i].Line < violations[j].Line
		}
		return violations[i].Import < violations[j].Import
	})
	return violations
}

func validateFile(path string, display string, layer string, servicePath string) []violation {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, nil, parser.ImportsOnly)
	if err != nil {
		return []violation{{File: display, Line: 1, Rule: "file must parse"}}
	}

	var violations []violation
	for _, imp := range file.Imports {
		importPath := strings.Trim(imp.Path.Value, "\"")
		report := func(rule string) {
			violations = append(violations, violation{
				File:   display,
				Line:   fset.Position(imp.Pos()).Line,
				Import: importPath,
				Rule:   rule,
			})
		}

		if strings.HasPrefix(importPath, moduleName+"/contexts/") && !hasPrefix(importPath, servicePath) {
			report("cross-service imports are forbidden")
		}

		rule, ok := layerRules[layer]
		if !ok {
			continue
		}
		if rule.forbidAdapters && strings.Contains(importPath, "/adapters/") {
			report(layer + " must not import adapters")
		}
		if rule.forbidInternal && strings.HasPrefix(importPath, moduleName+"/internal/") {
			report(layer + " must not import runtime infrastructure")
		}
		if !isStdlib(importPath) && !rule.permits(importPath, servicePath) {
			report(layer + " import is outside explicit allowlist")
		}
	}
	return violations
}

func (r layerRule) permits(importPath string, servicePath string) bool {
	for _, p := range r.allowed {
		if hasPrefix(importPath, servicePath+"/"+p) {
			return true
		}
	}
	for _, p := range r.allowedShared {
		if hasPrefix(importPath, moduleName+"/"+p) {
			return true
		}
	}
	return false
}

func hasPrefix(path string, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

func isStdlib(importPath string) bool {
	if strings.HasPrefix(importPath, moduleName+"/") {
		return false
	}
	first := importPath
	if idx := strings.Index(first, "/"); idx != -1 {
		first = first[:idx]
	}
	return !strings.Contains(first, ".")
}
