// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package javasrc builds the classmeta model straight from Java sources
// using tree-sitter, for scans pointed at source trees instead of compiled
// output.
//
// Name resolution is single-file best effort: explicit imports win, then a
// small set of well-known java.lang types, then the file's own package.
// Generic type arguments are erased, matching how signatures behave in
// compiled form. Interfaces, enums and records are recorded with the
// appropriate flags so downstream analysis can tell them apart.
package javasrc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/java"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/NazirMuhammadZafarIqbal/spotbugs/services/analysis/classmeta"
)

var tracer = otel.Tracer("spotbugs/javasrc")

const (
	// DefaultMaxFileSize caps accepted source files.
	DefaultMaxFileSize = 8 * 1024 * 1024

	// WarnFileSize is the threshold above which a source file is logged as
	// unusually large before parsing proceeds.
	WarnFileSize = 1 * 1024 * 1024
)

var (
	// ErrFileTooLarge indicates the source exceeds the configured size cap.
	ErrFileTooLarge = errors.New("source file exceeds size limit")

	// ErrInvalidContent indicates the source is not valid UTF-8.
	ErrInvalidContent = errors.New("invalid source content")
)

// wellKnownJavaLang resolves unqualified uses of the java.lang types that
// appear in signatures without an import.
var wellKnownJavaLang = map[string]bool{
	"Boolean": true, "Byte": true, "CharSequence": true, "Character": true,
	"Class": true, "Comparable": true, "Double": true, "Error": true,
	"Exception": true, "Float": true, "Integer": true, "Iterable": true,
	"Long": true, "Math": true, "Number": true, "Object": true,
	"Runnable": true, "RuntimeException": true, "Short": true, "String": true,
	"StringBuffer": true, "StringBuilder": true, "System": true, "Thread": true,
	"Throwable": true, "Void": true,
}

// modifierFlags maps Java modifier keywords to access flags.
var modifierFlags = map[string]classmeta.Flags{
	"public":       classmeta.FlagPublic,
	"private":      classmeta.FlagPrivate,
	"protected":    classmeta.FlagProtected,
	"static":       classmeta.FlagStatic,
	"final":        classmeta.FlagFinal,
	"abstract":     classmeta.FlagAbstract,
	"native":       classmeta.FlagNative,
	"synchronized": classmeta.FlagSynchronized,
	"strictfp":     classmeta.FlagStrict,
}

// ParseResult holds everything extracted from one source file.
type ParseResult struct {
	FilePath string

	// Package is the declared package, "" for the default package.
	Package string

	// Imports maps simple names to the fully-qualified names of
	// single-type imports. Wildcard imports cannot contribute here.
	Imports map[string]string

	// Classes lists every type declared in the file, nested types
	// included, in declaration order.
	Classes []*classmeta.Class

	// Errors collects non-fatal parse notes (e.g. syntax errors in the
	// source); the extracted model is still usable.
	Errors []string
}

// Parser extracts class metadata from Java sources.
//
// Thread Safety: safe for concurrent use; a tree-sitter parser instance is
// created per Parse call.
type Parser struct {
	maxFileSize int64
	logger      *slog.Logger
}

// Option configures a Parser.
type Option func(*Parser)

// WithMaxFileSize overrides the size cap for accepted source files.
func WithMaxFileSize(n int64) Option {
	return func(p *Parser) {
		if n > 0 {
			p.maxFileSize = n
		}
	}
}

// WithLogger sets the logger used for parse warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Parser) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewParser creates a Java source parser with the given options applied.
func NewParser(opts ...Option) *Parser {
	p := &Parser{
		maxFileSize: DefaultMaxFileSize,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Language returns the canonical language name for this parser.
func (p *Parser) Language() string { return "java" }

// Extensions returns the file extensions this parser handles.
func (p *Parser) Extensions() []string { return []string{".java"} }

// Parse extracts class metadata from one Java source file.
//
// Description:
//
//	Parses content with tree-sitter and walks the declaration tree,
//	producing one classmeta.Class per declared type (nested types use the
//	'$' name separator to line up with compiled-form names). Constructors
//	are recorded under "<init>" and static initializer blocks under
//	"<clinit>" so both providers expose the same method population.
//
// Inputs:
//   - ctx: cancellation checked before and after the tree-sitter pass.
//   - content: the UTF-8 source bytes.
//   - filePath: recorded on every extracted class.
//
// Outputs:
//   - *ParseResult: extracted metadata; Errors notes syntax problems.
//   - error: size, encoding, cancellation or tree-sitter failure.
//
// Thread Safety: safe for concurrent use.
func (p *Parser) Parse(ctx context.Context, content []byte, filePath string) (*ParseResult, error) {
	ctx, span := tracer.Start(ctx, "javasrc.Parse")
	defer span.End()
	span.SetAttributes(
		attribute.String("file.path", filePath),
		attribute.Int("file.size_bytes", len(content)),
	)

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("parse canceled before start: %w", err)
	}
	if int64(len(content)) > p.maxFileSize {
		err := fmt.Errorf("%w: size %d exceeds limit %d", ErrFileTooLarge, len(content), p.maxFileSize)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if len(content) > WarnFileSize {
		p.logger.Warn("parsing large source file",
			slog.String("file", filePath),
			slog.Int("size_bytes", len(content)))
	}
	if !utf8.Valid(content) {
		err := fmt.Errorf("%w: content is not valid UTF-8", ErrInvalidContent)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	parser := sitter.NewParser()
	parser.SetLanguage(java.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("tree-sitter parse failed: %w", err)
	}
	defer tree.Close()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("parse canceled after tree-sitter: %w", err)
	}

	result := &ParseResult{
		FilePath: filePath,
		Imports:  make(map[string]string),
		Classes:  make([]*classmeta.Class, 0),
		Errors:   make([]string, 0),
	}

	root := tree.RootNode()
	if root == nil {
		result.Errors = append(result.Errors, "tree-sitter returned nil root node")
		return result, nil
	}
	if root.HasError() {
		result.Errors = append(result.Errors, "source contains syntax errors")
	}

	p.extractPackage(root, content, result)
	p.extractImports(root, content, result)

	for i := 0; i < int(root.ChildCount()); i++ {
		p.extractType(root.Child(i), content, result, "")
	}

	span.SetAttributes(attribute.Int("classes.count", len(result.Classes)))
	return result, nil
}

// extractPackage records the package declaration, if any.
func (p *Parser) extractPackage(root *sitter.Node, content []byte, result *ParseResult) {
	for i := 0; i < int(root.ChildCount()); i++ {
		child := root.Child(i)
		if child.Type() != "package_declaration" {
			continue
		}
		for j := 0; j < int(child.ChildCount()); j++ {
			g := child.Child(j)
			if g.Type() == "scoped_identifier" || g.Type() == "identifier" {
				result.Package = nodeText(g, content)
				return
			}
		}
	}
}

// extractImports records single-type imports. Wildcard and static imports
// cannot map a simple name to one type, so they are skipped.
func (p *Parser) extractImports(root *sitter.Node, content []byte, result *ParseResult) {
	for i := 0; i < int(root.ChildCount()); i++ {
		child := root.Child(i)
		if child.Type() != "import_declaration" {
			continue
		}
		text := nodeText(child, content)
		if strings.Contains(text, "*") || strings.Contains(text, " static ") {
			continue
		}
		for j := 0; j < int(child.ChildCount()); j++ {
			g := child.Child(j)
			if g.Type() == "scoped_identifier" {
				fq := nodeText(g, content)
				result.Imports[classmeta.SimpleName(fq)] = fq
			}
		}
	}
}

// extractType handles one type declaration node and recurses into nested
// declarations. enclosing carries the '$'-joined simple-name chain of outer
// types, "" at the top level.
func (p *Parser) extractType(node *sitter.Node, content []byte, result *ParseResult, enclosing string) {
	if node == nil {
		return
	}

	var flags classmeta.Flags
	superName := classmeta.ObjectClass

	switch node.Type() {
	case "class_declaration":
		if sc := p.resolveSuperclass(node, content, result); sc != "" {
			superName = sc
		}
	case "interface_declaration":
		flags |= classmeta.FlagInterface | classmeta.FlagAbstract
	case "enum_declaration":
		flags |= classmeta.FlagEnum | classmeta.FlagFinal
		superName = "java.lang.Enum"
	case "record_declaration":
		flags |= classmeta.FlagFinal
		superName = "java.lang.Record"
	case "annotation_type_declaration":
		flags |= classmeta.FlagInterface | classmeta.FlagAnnotation | classmeta.FlagAbstract
	default:
		return
	}

	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	simple := nodeText(nameNode, content)
	if enclosing != "" {
		simple = enclosing + "$" + simple
	}

	fqName := simple
	if result.Package != "" {
		fqName = result.Package + "." + simple
	}

	flags |= p.modifiers(node, content)

	class := &classmeta.Class{
		Name:       fqName,
		SuperName:  superName,
		Flags:      flags,
		SourceFile: filepath.Base(result.FilePath),
		FilePath:   result.FilePath,
	}
	p.extractInterfaces(node, content, result, class)

	body := node.ChildByFieldName("body")
	if body != nil {
		for i := 0; i < int(body.ChildCount()); i++ {
			member := body.Child(i)
			switch member.Type() {
			case "method_declaration":
				if m, ok := p.extractMethod(member, content, result, fqName); ok {
					class.Methods = append(class.Methods, m)
				}
			case "constructor_declaration":
				if m, ok := p.extractConstructor(member, content, result, fqName); ok {
					class.Methods = append(class.Methods, m)
				}
			case "static_initializer":
				class.Methods = append(class.Methods, classmeta.Method{
					ClassName:  fqName,
					Name:       classmeta.StaticInitializerName,
					ReturnType: "void",
					Flags:      classmeta.FlagStatic,
					Line:       int(member.StartPoint().Row + 1),
				})
			case "class_declaration", "interface_declaration", "enum_declaration",
				"record_declaration", "annotation_type_declaration":
				p.extractType(member, content, result, simple)
			case "enum_body_declarations":
				// Enum methods live one level deeper.
				for j := 0; j < int(member.ChildCount()); j++ {
					inner := member.Child(j)
					if inner.Type() == "method_declaration" {
						if m, ok := p.extractMethod(inner, content, result, fqName); ok {
							class.Methods = append(class.Methods, m)
						}
					}
				}
			}
		}
	}

	result.Classes = append(result.Classes, class)
}

// resolveSuperclass returns the fully-qualified superclass name for a
// class_declaration, "" when the class has no extends clause.
func (p *Parser) resolveSuperclass(node *sitter.Node, content []byte, result *ParseResult) string {
	sc := node.ChildByFieldName("superclass")
	if sc == nil {
		return ""
	}
	for i := 0; i < int(sc.ChildCount()); i++ {
		child := sc.Child(i)
		if child.Type() == "extends" {
			continue
		}
		if typ := p.resolveType(child, content, result); typ != "" {
			return typ
		}
	}
	return ""
}

// extractInterfaces records directly implemented interface names.
func (p *Parser) extractInterfaces(node *sitter.Node, content []byte, result *ParseResult, class *classmeta.Class) {
	ifs := node.ChildByFieldName("interfaces")
	if ifs == nil {
		return
	}
	for i := 0; i < int(ifs.ChildCount()); i++ {
		list := ifs.Child(i)
		if list.Type() != "type_list" {
			continue
		}
		for j := 0; j < int(list.NamedChildCount()); j++ {
			if typ := p.resolveType(list.NamedChild(j), content, result); typ != "" {
				class.Interfaces = append(class.Interfaces, typ)
			}
		}
	}
}

// extractMethod converts a method_declaration into a classmeta.Method.
func (p *Parser) extractMethod(node *sitter.Node, content []byte, result *ParseResult, className string) (classmeta.Method, bool) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return classmeta.Method{}, false
	}

	returnType := "void"
	if tn := node.ChildByFieldName("type"); tn != nil {
		if typ := p.resolveType(tn, content, result); typ != "" {
			returnType = typ
		}
	}

	return classmeta.Method{
		ClassName:  className,
		Name:       nodeText(nameNode, content),
		Params:     p.extractParams(node.ChildByFieldName("parameters"), content, result),
		ReturnType: returnType,
		Flags:      p.modifiers(node, content),
		Line:       int(node.StartPoint().Row + 1),
	}, true
}

// extractConstructor records a constructor under the compiled-form name
// "<init>" so both providers expose the same method population.
func (p *Parser) extractConstructor(node *sitter.Node, content []byte, result *ParseResult, className string) (classmeta.Method, bool) {
	return classmeta.Method{
		ClassName:  className,
		Name:       classmeta.ConstructorName,
		Params:     p.extractParams(node.ChildByFieldName("parameters"), content, result),
		ReturnType: "void",
		Flags:      p.modifiers(node, content),
		Line:       int(node.StartPoint().Row + 1),
	}, true
}

// extractParams resolves the ordered parameter types of a formal_parameters
// node. Varargs become arrays, matching their compiled form.
func (p *Parser) extractParams(params *sitter.Node, content []byte, result *ParseResult) []string {
	if params == nil {
		return nil
	}
	var out []string
	for i := 0; i < int(params.NamedChildCount()); i++ {
		param := params.NamedChild(i)
		switch param.Type() {
		case "formal_parameter":
			typ := p.resolveType(param.ChildByFieldName("type"), content, result)
			if typ == "" {
				continue
			}
			// Legacy trailing dimensions: "String args[]".
			for j := 0; j < int(param.ChildCount()); j++ {
				if param.Child(j).Type() == "dimensions" {
					typ += strings.Repeat("[]", strings.Count(nodeText(param.Child(j), content), "["))
				}
			}
			out = append(out, typ)
		case "spread_parameter":
			for j := 0; j < int(param.ChildCount()); j++ {
				child := param.Child(j)
				if typ := p.resolveType(child, content, result); typ != "" {
					out = append(out, typ+"[]")
					break
				}
			}
		}
	}
	return out
}

// resolveType converts a type node to a fully-qualified source-form name.
// Generic arguments are erased; unqualified names resolve via imports, the
// well-known java.lang set, then the file's package.
func (p *Parser) resolveType(node *sitter.Node, content []byte, result *ParseResult) string {
	if node == nil {
		return ""
	}
	switch node.Type() {
	case "void_type", "integral_type", "floating_point_type", "boolean_type":
		return nodeText(node, content)
	case "array_type":
		elem := p.resolveType(node.ChildByFieldName("element"), content, result)
		if elem == "" {
			return ""
		}
		dims := 1
		if dn := node.ChildByFieldName("dimensions"); dn != nil {
			if n := strings.Count(nodeText(dn, content), "["); n > 0 {
				dims = n
			}
		}
		return elem + strings.Repeat("[]", dims)
	case "generic_type":
		for i := 0; i < int(node.ChildCount()); i++ {
			child := node.Child(i)
			if child.Type() == "type_identifier" || child.Type() == "scoped_type_identifier" {
				return p.resolveType(child, content, result)
			}
		}
		return ""
	case "scoped_type_identifier":
		return nodeText(node, content)
	case "type_identifier":
		name := nodeText(node, content)
		if fq, ok := result.Imports[name]; ok {
			return fq
		}
		if wellKnownJavaLang[name] {
			return "java.lang." + name
		}
		if result.Package != "" {
			return result.Package + "." + name
		}
		return name
	default:
		return ""
	}
}

// modifiers folds a declaration's modifier keywords into access flags.
func (p *Parser) modifiers(node *sitter.Node, content []byte) classmeta.Flags {
	var flags classmeta.Flags
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() != "modifiers" {
			continue
		}
		for j := 0; j < int(child.ChildCount()); j++ {
			if f, ok := modifierFlags[child.Child(j).Type()]; ok {
				flags |= f
			}
		}
	}
	return flags
}

// nodeText returns the source text covered by a node.
func nodeText(node *sitter.Node, content []byte) string {
	return string(content[node.StartByte():node.EndByte()])
}
