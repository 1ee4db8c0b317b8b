// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package classmeta defines the compiled-form metadata model shared by every
// provider and detector in this repository: classes, their directly declared
// methods, and the access-flag and signature semantics the detectors reason
// about.
//
// The model is deliberately flat. A Class knows its own fully-qualified name,
// the name of its direct superclass, and the methods it declares itself —
// never the methods it inherits. Resolving a class name to a Class, and a
// Class to its ancestor chain, is the hierarchy package's job.
//
// All values are immutable once loaded; providers build them, everything else
// only reads.
package classmeta

import (
	"errors"
	"fmt"
	"strings"
)

// ObjectClass is the fully-qualified name of the universal base type. Every
// resolvable ancestor chain terminates here.
const ObjectClass = "java.lang.Object"

// Names the compiler assigns to initialization routines. Neither can be
// referenced from source, so neither participates in hiding.
const (
	StaticInitializerName = "<clinit>"
	ConstructorName       = "<init>"
)

var (
	// ErrInvalidClass indicates a Class that fails basic validation.
	ErrInvalidClass = errors.New("invalid class metadata")

	// ErrInvalidMethod indicates a Method that fails basic validation.
	ErrInvalidMethod = errors.New("invalid method metadata")
)

// ===== Access flags =====

// Flags holds JVM access and property flags for a class or method. The bit
// layout follows the class file format, so values decoded from bytecode pass
// through unchanged and values built from source are assembled from the same
// constants.
type Flags uint16

const (
	FlagPublic       Flags = 0x0001
	FlagPrivate      Flags = 0x0002
	FlagProtected    Flags = 0x0004
	FlagStatic       Flags = 0x0008
	FlagFinal        Flags = 0x0010
	FlagSynchronized Flags = 0x0020
	FlagBridge       Flags = 0x0040
	FlagVarargs      Flags = 0x0080
	FlagNative       Flags = 0x0100
	FlagInterface    Flags = 0x0200
	FlagAbstract     Flags = 0x0400
	FlagStrict       Flags = 0x0800
	FlagSynthetic    Flags = 0x1000
	FlagAnnotation   Flags = 0x2000
	FlagEnum         Flags = 0x4000
)

// Has reports whether every bit in mask is set.
func (f Flags) Has(mask Flags) bool {
	return f&mask == mask
}

// ===== Method =====

// Method describes one method declared directly by one class.
//
// Two methods are the same overload iff their names and ordered parameter
// type sequences are identical. Return type and body are irrelevant to
// overload identity: call-site resolution is signature-based.
type Method struct {
	// ClassName is the fully-qualified name of the declaring class.
	ClassName string

	// Name is the method name as declared ("<clinit>" and "<init>" for the
	// compiler-generated initialization routines).
	Name string

	// Params holds the ordered parameter types in source form, fully
	// qualified where the provider could resolve them
	// (e.g. "java.lang.String[]", "int").
	Params []string

	// ReturnType is the return type in source form ("void" included).
	ReturnType string

	// Flags carries the JVM access flags (static, private, synthetic, ...).
	Flags Flags

	// Line is the best-effort 1-based source line of the declaration,
	// 0 when unknown.
	Line int
}

// IsStatic reports whether the method is static.
func (m Method) IsStatic() bool { return m.Flags.Has(FlagStatic) }

// IsPrivate reports whether the method is private.
func (m Method) IsPrivate() bool { return m.Flags.Has(FlagPrivate) }

// IsSynthetic reports whether the compiler generated the method.
func (m Method) IsSynthetic() bool { return m.Flags.Has(FlagSynthetic) }

// Signature renders the overload identity as "name(type, type)". It contains
// exactly the attributes that matter for hiding: the name and the ordered
// parameter types. Return type is deliberately absent.
func (m Method) Signature() string {
	return m.Name + "(" + strings.Join(m.Params, ", ") + ")"
}

// SameOverload reports whether m and other share a name and an ordered
// parameter-type sequence. Declaring class, flags, return type and line are
// not compared.
func (m Method) SameOverload(other Method) bool {
	if m.Name != other.Name || len(m.Params) != len(other.Params) {
		return false
	}
	for i := range m.Params {
		if m.Params[i] != other.Params[i] {
			return false
		}
	}
	return true
}

// Validate checks the fields a provider must always populate.
func (m Method) Validate() error {
	if m.Name == "" {
		return fmt.Errorf("%w: empty method name", ErrInvalidMethod)
	}
	if m.ClassName == "" {
		return fmt.Errorf("%w: method %q has no declaring class", ErrInvalidMethod, m.Name)
	}
	for i, p := range m.Params {
		if p == "" {
			return fmt.Errorf("%w: method %q has empty parameter type at index %d", ErrInvalidMethod, m.Name, i)
		}
	}
	return nil
}

// ===== Class =====

// Class describes one loaded class: its identity, its direct superclass, and
// the methods it declares directly. Inherited members are never present.
type Class struct {
	// Name is the fully-qualified class name in dot form
	// (e.g. "com.acme.Child", nested classes keep the '$' separator).
	Name string

	// SuperName is the fully-qualified name of the direct superclass. Empty
	// only for the universal base type itself and for malformed input.
	SuperName string

	// Interfaces lists directly implemented interface names. Recorded for
	// completeness; interface members are not analyzed.
	Interfaces []string

	// Flags carries the class-level access flags.
	Flags Flags

	// SourceFile is the simple source file name recorded by the provider
	// ("Child.java"), empty when unknown.
	SourceFile string

	// FilePath is the path of the artifact the class was loaded from
	// (a .class file, a jar entry, or a .java file).
	FilePath string

	// Methods holds the directly declared methods in declaration order.
	// Callers must not modify the slice.
	Methods []Method
}

// DeclaredMethods returns the methods declared directly by the class.
// Inherited methods are never included. Callers must not modify the slice.
func (c *Class) DeclaredMethods() []Method {
	return c.Methods
}

// IsInterface reports whether the metadata describes an interface.
func (c *Class) IsInterface() bool { return c.Flags.Has(FlagInterface) }

// Location returns the best source attribution available for the class: the
// recorded source file name when present, otherwise the load path.
func (c *Class) Location() string {
	if c.SourceFile != "" {
		return c.SourceFile
	}
	return c.FilePath
}

// Validate checks the fields a provider must always populate.
func (c *Class) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: nil class", ErrInvalidClass)
	}
	if c.Name == "" {
		return fmt.Errorf("%w: empty class name", ErrInvalidClass)
	}
	if c.SuperName == c.Name {
		return fmt.Errorf("%w: class %q is its own superclass", ErrInvalidClass, c.Name)
	}
	if c.SuperName == "" && c.Name != ObjectClass {
		return fmt.Errorf("%w: class %q has no superclass", ErrInvalidClass, c.Name)
	}
	for i := range c.Methods {
		if err := c.Methods[i].Validate(); err != nil {
			return fmt.Errorf("class %q: %w", c.Name, err)
		}
	}
	return nil
}

// ===== Name forms =====

// DotName converts a JVM internal (binary) class name to dot form:
// "com/acme/Child" becomes "com.acme.Child". Nested-class '$' separators are
// preserved. Names already in dot form pass through unchanged.
func DotName(internal string) string {
	return strings.ReplaceAll(internal, "/", ".")
}

// SimpleName returns the segment after the last '.' of a fully-qualified
// name, or the name itself when it has no package.
func SimpleName(fqName string) string {
	if i := strings.LastIndex(fqName, "."); i >= 0 {
		return fqName[i+1:]
	}
	return fqName
}

// PackageName returns the package portion of a fully-qualified name, or ""
// when the name has no package.
func PackageName(fqName string) string {
	if i := strings.LastIndex(fqName, "."); i >= 0 {
		return fqName[:i]
	}
	return ""
}
