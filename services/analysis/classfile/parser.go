// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package classfile decodes compiled JVM class files into the classmeta
// model. It reads exactly the slices of the format the detectors need —
// constant pool, access flags, this/super class, declared method signatures,
// and the SourceFile and LineNumberTable attributes for best-effort source
// attribution — and skips everything else (fields, code, annotations).
//
// The decoder is tolerant by policy: a method whose descriptor cannot be
// parsed is dropped with a warning rather than failing the class, and a file
// that is not a class file at all is reported as ErrNotClassFile so callers
// can skip it.
package classfile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/NazirMuhammadZafarIqbal/spotbugs/services/analysis/classmeta"
)

var tracer = otel.Tracer("spotbugs/classfile")

const (
	classMagic = 0xCAFEBABE

	// DefaultMaxFileSize caps the class files the parser will accept.
	// Ordinary class files are tens of kilobytes; anything near this limit
	// is either generated code or not a class file.
	DefaultMaxFileSize = 32 * 1024 * 1024

	// WarnFileSize is the threshold above which a class file is logged as
	// unusually large before parsing proceeds.
	WarnFileSize = 4 * 1024 * 1024
)

var (
	// ErrNotClassFile indicates the input does not begin with the class
	// file magic or is too short to contain it.
	ErrNotClassFile = errors.New("not a class file")

	// ErrMalformedClassFile indicates the input starts like a class file
	// but violates the format before the needed sections were read.
	ErrMalformedClassFile = errors.New("malformed class file")

	// ErrFileTooLarge indicates the input exceeds the configured size cap.
	ErrFileTooLarge = errors.New("class file exceeds size limit")
)

// Parser decodes class files. The zero value is not usable; construct with
// NewParser.
//
// Thread Safety: safe for concurrent use. Parse keeps all state on the stack.
type Parser struct {
	maxFileSize int64
	logger      *slog.Logger
}

// Option configures a Parser.
type Option func(*Parser)

// WithMaxFileSize overrides the size cap for accepted class files.
func WithMaxFileSize(n int64) Option {
	return func(p *Parser) {
		if n > 0 {
			p.maxFileSize = n
		}
	}
}

// WithLogger sets the logger used for per-method skip warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Parser) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewParser creates a class file parser with the given options applied.
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

// Parse decodes one class file.
//
// Description:
//
//	Reads the constant pool, class identity, superclass, interfaces and
//	declared methods from content and builds an immutable classmeta.Class.
//	Parameter and return types are converted from descriptor form to
//	source form. Each method's declaration line is approximated by the
//	lowest-addressed LineNumberTable entry of its Code attribute, 0 when
//	the class was compiled without debug info.
//
// Inputs:
//   - ctx: checked before decoding; no I/O happens inside.
//   - content: the full class file bytes.
//   - path: the artifact path recorded on the result for diagnostics.
//
// Outputs:
//   - *classmeta.Class: the decoded class.
//   - error: ErrNotClassFile, ErrFileTooLarge, or ErrMalformedClassFile
//     (wrapped with position detail).
//
// Thread Safety: safe for concurrent use.
func (p *Parser) Parse(ctx context.Context, content []byte, path string) (*classmeta.Class, error) {
	ctx, span := tracer.Start(ctx, "classfile.Parse")
	defer span.End()
	span.SetAttributes(
		attribute.String("file.path", path),
		attribute.Int("file.size_bytes", len(content)),
	)

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("parse canceled: %w", err)
	}
	if int64(len(content)) > p.maxFileSize {
		err := fmt.Errorf("%w: %d bytes (limit %d)", ErrFileTooLarge, len(content), p.maxFileSize)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if len(content) > WarnFileSize {
		p.logger.Warn("parsing unusually large class file",
			slog.String("file", path),
			slog.Int("size_bytes", len(content)))
	}

	c := &cursor{data: content}

	if magic := c.u4(); c.err != nil || magic != classMagic {
		span.SetStatus(codes.Error, "bad magic")
		return nil, fmt.Errorf("%w: %s", ErrNotClassFile, path)
	}
	c.skip(4) // minor_version, major_version

	pool, err := parseConstantPool(c)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	accessFlags := c.u2()
	thisClass := c.u2()
	superClass := c.u2()

	className, ok := pool.className(thisClass)
	if c.err != nil || !ok {
		return nil, c.failf("unresolvable this_class index %d", thisClass)
	}

	superName := ""
	if superClass != 0 {
		superName, ok = pool.className(superClass)
		if !ok {
			return nil, c.failf("unresolvable super_class index %d", superClass)
		}
	}

	interfaceCount := int(c.u2())
	interfaces := make([]string, 0, interfaceCount)
	for i := 0; i < interfaceCount; i++ {
		idx := c.u2()
		name, ok := pool.className(idx)
		if c.err != nil {
			return nil, c.err
		}
		if !ok {
			return nil, c.failf("unresolvable interface index %d", idx)
		}
		interfaces = append(interfaces, classmeta.DotName(name))
	}

	p.skipFields(c, pool)
	if c.err != nil {
		span.RecordError(c.err)
		span.SetStatus(codes.Error, c.err.Error())
		return nil, c.err
	}

	result := &classmeta.Class{
		Name:       classmeta.DotName(className),
		SuperName:  classmeta.DotName(superName),
		Interfaces: interfaces,
		Flags:      classmeta.Flags(accessFlags),
		FilePath:   path,
	}

	methodCount := int(c.u2())
	for i := 0; i < methodCount && c.err == nil; i++ {
		m, skip := p.parseMethod(c, pool, result.Name, path)
		if skip {
			continue
		}
		result.Methods = append(result.Methods, m)
	}
	if c.err != nil {
		span.RecordError(c.err)
		span.SetStatus(codes.Error, c.err.Error())
		return nil, c.err
	}

	// Class-level attributes: only SourceFile matters here.
	attrCount := int(c.u2())
	for i := 0; i < attrCount && c.err == nil; i++ {
		name, body := p.readAttribute(c, pool)
		if name == "SourceFile" && len(body) >= 2 {
			idx := uint16(body[0])<<8 | uint16(body[1])
			if sf, ok := pool.utf8[idx]; ok {
				result.SourceFile = sf
			}
		}
	}
	if c.err != nil {
		span.RecordError(c.err)
		span.SetStatus(codes.Error, c.err.Error())
		return nil, c.err
	}

	span.SetAttributes(
		attribute.String("class.name", result.Name),
		attribute.Int("class.method_count", len(result.Methods)),
	)
	return result, nil
}

// parseMethod decodes one method_info. skip is true when the method must be
// dropped (unparseable descriptor) without failing the class; the cursor is
// still advanced past the full entry either way.
func (p *Parser) parseMethod(c *cursor, pool *constPool, className, path string) (m classmeta.Method, skip bool) {
	access := c.u2()
	nameIdx := c.u2()
	descIdx := c.u2()

	name, nameOK := pool.utf8[nameIdx]
	desc, descOK := pool.utf8[descIdx]

	line := 0
	synthetic := false

	attrCount := int(c.u2())
	for i := 0; i < attrCount && c.err == nil; i++ {
		attrName, body := p.readAttribute(c, pool)
		switch attrName {
		case "Code":
			line = firstLineNumber(body, pool)
		case "Synthetic":
			// Pre-ACC_SYNTHETIC compilers marked generated methods with
			// this attribute instead of the flag.
			synthetic = true
		}
	}
	if c.err != nil {
		return classmeta.Method{}, true
	}

	if !nameOK || !descOK {
		c.failf("method %d of %s has unresolvable name or descriptor", nameIdx, className)
		return classmeta.Method{}, true
	}

	params, returnType, err := parseMethodDescriptor(desc)
	if err != nil {
		p.logger.Warn("skipping method with malformed descriptor",
			slog.String("class", className),
			slog.String("method", name),
			slog.String("file", path),
			slog.Any("error", err))
		return classmeta.Method{}, true
	}

	flags := classmeta.Flags(access)
	if synthetic {
		flags |= classmeta.FlagSynthetic
	}

	return classmeta.Method{
		ClassName:  className,
		Name:       name,
		Params:     params,
		ReturnType: returnType,
		Flags:      flags,
		Line:       line,
	}, false
}

// skipFields advances the cursor past the field_info table.
func (p *Parser) skipFields(c *cursor, pool *constPool) {
	fieldCount := int(c.u2())
	for i := 0; i < fieldCount && c.err == nil; i++ {
		c.skip(6) // access_flags, name_index, descriptor_index
		attrCount := int(c.u2())
		for j := 0; j < attrCount && c.err == nil; j++ {
			p.readAttribute(c, pool)
		}
	}
}

// readAttribute reads one attribute_info and returns its resolved name and
// raw body. An unresolvable name index yields "" with the body still
// consumed, keeping the cursor aligned.
func (p *Parser) readAttribute(c *cursor, pool *constPool) (string, []byte) {
	nameIdx := c.u2()
	length := int(c.u4())
	body := c.bytes(length)
	if c.err != nil {
		return "", nil
	}
	name := pool.utf8[nameIdx]
	return name, body
}

// firstLineNumber extracts the line of the lowest-addressed LineNumberTable
// entry from a Code attribute body, approximating the declaration line the
// way source annotations are derived from a method's first instruction.
// Returns 0 when the table is absent (no debug info, abstract, native).
func firstLineNumber(code []byte, pool *constPool) int {
	c := &cursor{data: code}
	c.skip(4) // max_stack, max_locals
	codeLen := int(c.u4())
	c.skip(codeLen)
	exceptionCount := int(c.u2())
	c.skip(exceptionCount * 8)

	attrCount := int(c.u2())
	for i := 0; i < attrCount && c.err == nil; i++ {
		nameIdx := c.u2()
		length := int(c.u4())
		body := c.bytes(length)
		if c.err != nil {
			return 0
		}
		if pool.utf8[nameIdx] != "LineNumberTable" {
			continue
		}

		t := &cursor{data: body}
		entries := int(t.u2())
		best := 0
		bestPC := -1
		for j := 0; j < entries && t.err == nil; j++ {
			startPC := int(t.u2())
			lineNo := int(t.u2())
			if bestPC == -1 || startPC < bestPC {
				bestPC = startPC
				best = lineNo
			}
		}
		if t.err != nil {
			return 0
		}
		return best
	}
	return 0
}
