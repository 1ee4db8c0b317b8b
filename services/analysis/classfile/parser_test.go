// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package classfile

import (
	"context"
	"encoding/binary"
	"errors"
	"reflect"
	"testing"

	"github.com/NazirMuhammadZafarIqbal/spotbugs/services/analysis/classmeta"
)

// classBuilder assembles minimal but format-correct class files for the
// parser tests, so the decoder is exercised against real byte layouts rather
// than canned fixtures.
type classBuilder struct {
	pool       []byte
	poolCount  uint16 // next pool index; count field is poolCount itself
	access     uint16
	thisClass  uint16
	superClass uint16
	interfaces []uint16
	methods    []byte
	methodNum  uint16
	attrs      []byte
	attrNum    uint16
}

func newClassBuilder() *classBuilder {
	return &classBuilder{poolCount: 1}
}

func u2(v uint16) []byte {
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, v)
	return b
}

func u4(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

// utf8 appends a CONSTANT_Utf8 entry and returns its index.
func (b *classBuilder) utf8(s string) uint16 {
	b.pool = append(b.pool, tagUtf8)
	b.pool = append(b.pool, u2(uint16(len(s)))...)
	b.pool = append(b.pool, s...)
	idx := b.poolCount
	b.poolCount++
	return idx
}

// class appends a CONSTANT_Class entry (plus its name Utf8) and returns the
// class entry index.
func (b *classBuilder) class(internalName string) uint16 {
	nameIdx := b.utf8(internalName)
	b.pool = append(b.pool, tagClass)
	b.pool = append(b.pool, u2(nameIdx)...)
	idx := b.poolCount
	b.poolCount++
	return idx
}

// long appends a CONSTANT_Long entry, which occupies two pool slots.
func (b *classBuilder) long(v uint64) uint16 {
	b.pool = append(b.pool, tagLong)
	b.pool = append(b.pool, u4(uint32(v>>32))...)
	b.pool = append(b.pool, u4(uint32(v))...)
	idx := b.poolCount
	b.poolCount += 2
	return idx
}

// codeAttr builds a Code attribute whose LineNumberTable maps pc 0 to line.
func (b *classBuilder) codeAttr(line uint16) []byte {
	lntName := b.utf8("LineNumberTable")

	var lnt []byte
	lnt = append(lnt, u2(1)...) // one entry
	lnt = append(lnt, u2(0)...) // start_pc
	lnt = append(lnt, u2(line)...)

	var body []byte
	body = append(body, u2(1)...)        // max_stack
	body = append(body, u2(1)...)        // max_locals
	body = append(body, u4(1)...)        // code_length
	body = append(body, 0xB1)            // return
	body = append(body, u2(0)...)        // exception_table_length
	body = append(body, u2(1)...)        // attributes_count
	body = append(body, u2(lntName)...)  // LineNumberTable name index
	body = append(body, u4(uint32(len(lnt)))...)
	body = append(body, lnt...)

	codeName := b.utf8("Code")
	var attr []byte
	attr = append(attr, u2(codeName)...)
	attr = append(attr, u4(uint32(len(body)))...)
	attr = append(attr, body...)
	return attr
}

// markerAttr builds an empty attribute with the given name ("Synthetic",
// "Deprecated").
func (b *classBuilder) markerAttr(name string) []byte {
	idx := b.utf8(name)
	var attr []byte
	attr = append(attr, u2(idx)...)
	attr = append(attr, u4(0)...)
	return attr
}

// method appends a method_info with the given raw attributes.
func (b *classBuilder) method(access uint16, name, desc string, attrs ...[]byte) {
	nameIdx := b.utf8(name)
	descIdx := b.utf8(desc)

	b.methods = append(b.methods, u2(access)...)
	b.methods = append(b.methods, u2(nameIdx)...)
	b.methods = append(b.methods, u2(descIdx)...)
	b.methods = append(b.methods, u2(uint16(len(attrs)))...)
	for _, a := range attrs {
		b.methods = append(b.methods, a...)
	}
	b.methodNum++
}

// sourceFile appends a class-level SourceFile attribute.
func (b *classBuilder) sourceFile(name string) {
	attrName := b.utf8("SourceFile")
	valIdx := b.utf8(name)

	b.attrs = append(b.attrs, u2(attrName)...)
	b.attrs = append(b.attrs, u4(2)...)
	b.attrs = append(b.attrs, u2(valIdx)...)
	b.attrNum++
}

func (b *classBuilder) build() []byte {
	var out []byte
	out = append(out, u4(classMagic)...)
	out = append(out, u2(0)...)  // minor
	out = append(out, u2(52)...) // major (Java 8)
	out = append(out, u2(b.poolCount)...)
	out = append(out, b.pool...)
	out = append(out, u2(b.access)...)
	out = append(out, u2(b.thisClass)...)
	out = append(out, u2(b.superClass)...)
	out = append(out, u2(uint16(len(b.interfaces)))...)
	for _, i := range b.interfaces {
		out = append(out, u2(i)...)
	}
	out = append(out, u2(0)...) // fields_count
	out = append(out, u2(b.methodNum)...)
	out = append(out, b.methods...)
	out = append(out, u2(b.attrNum)...)
	out = append(out, b.attrs...)
	return out
}

const (
	accPublic  = 0x0001
	accPrivate = 0x0002
	accStatic  = 0x0008
)

func TestParser_Parse_FullClass(t *testing.T) {
	b := newClassBuilder()
	b.access = accPublic
	b.thisClass = b.class("com/example/inherit/Child")
	b.superClass = b.class("com/example/inherit/Parent")

	b.method(accPublic|accStatic, "display", "(Ljava/lang/String;)V", b.codeAttr(12))
	b.method(accPrivate|accStatic, "audit", "()V")
	b.method(accPublic, "status", "()V", b.codeAttr(30))
	b.method(accPublic, "<init>", "()V")
	b.sourceFile("Child.java")

	parser := NewParser()
	got, err := parser.Parse(context.Background(), b.build(), "Child.class")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.Name != "com.example.inherit.Child" {
		t.Errorf("Name = %q, want com.example.inherit.Child", got.Name)
	}
	if got.SuperName != "com.example.inherit.Parent" {
		t.Errorf("SuperName = %q, want com.example.inherit.Parent", got.SuperName)
	}
	if got.SourceFile != "Child.java" {
		t.Errorf("SourceFile = %q, want Child.java", got.SourceFile)
	}
	if got.FilePath != "Child.class" {
		t.Errorf("FilePath = %q, want Child.class", got.FilePath)
	}
	if len(got.Methods) != 4 {
		t.Fatalf("expected 4 methods, got %d", len(got.Methods))
	}

	display := got.Methods[0]
	if display.Name != "display" {
		t.Errorf("method 0 name = %q, want display", display.Name)
	}
	if !reflect.DeepEqual(display.Params, []string{"java.lang.String"}) {
		t.Errorf("display params = %v, want [java.lang.String]", display.Params)
	}
	if display.ReturnType != "void" {
		t.Errorf("display return = %q, want void", display.ReturnType)
	}
	if !display.IsStatic() || display.IsPrivate() {
		t.Errorf("display flags = %#x, want public static", display.Flags)
	}
	if display.Line != 12 {
		t.Errorf("display line = %d, want 12 from LineNumberTable", display.Line)
	}
	if display.ClassName != got.Name {
		t.Errorf("display owner = %q, want %q", display.ClassName, got.Name)
	}

	audit := got.Methods[1]
	if !audit.IsStatic() || !audit.IsPrivate() {
		t.Errorf("audit flags = %#x, want private static", audit.Flags)
	}
	if audit.Line != 0 {
		t.Errorf("audit line = %d, want 0 without debug info", audit.Line)
	}

	status := got.Methods[2]
	if status.IsStatic() {
		t.Error("status must be an instance method")
	}

	ctor := got.Methods[3]
	if ctor.Name != classmeta.ConstructorName {
		t.Errorf("method 3 name = %q, want %q", ctor.Name, classmeta.ConstructorName)
	}
}

func TestParser_Parse_RootClassHasNoSuper(t *testing.T) {
	b := newClassBuilder()
	b.access = accPublic
	b.thisClass = b.class("java/lang/Object")
	b.superClass = 0

	parser := NewParser()
	got, err := parser.Parse(context.Background(), b.build(), "Object.class")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Name != classmeta.ObjectClass {
		t.Errorf("Name = %q, want %q", got.Name, classmeta.ObjectClass)
	}
	if got.SuperName != "" {
		t.Errorf("SuperName = %q, want empty for the root type", got.SuperName)
	}
}

func TestParser_Parse_Interfaces(t *testing.T) {
	b := newClassBuilder()
	b.access = accPublic
	b.thisClass = b.class("com/example/Widget")
	b.superClass = b.class("java/lang/Object")
	b.interfaces = append(b.interfaces, b.class("java/io/Serializable"))
	b.interfaces = append(b.interfaces, b.class("java/lang/Comparable"))

	parser := NewParser()
	got, err := parser.Parse(context.Background(), b.build(), "Widget.class")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"java.io.Serializable", "java.lang.Comparable"}
	if !reflect.DeepEqual(got.Interfaces, want) {
		t.Errorf("Interfaces = %v, want %v", got.Interfaces, want)
	}
}

func TestParser_Parse_InterfaceFlag(t *testing.T) {
	b := newClassBuilder()
	b.access = accPublic | uint16(classmeta.FlagInterface) | uint16(classmeta.FlagAbstract)
	b.thisClass = b.class("com/example/Greeter")
	b.superClass = b.class("java/lang/Object")

	parser := NewParser()
	got, err := parser.Parse(context.Background(), b.build(), "Greeter.class")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.IsInterface() {
		t.Error("expected IsInterface from access flags")
	}
}

func TestParser_Parse_LongConstantOccupiesTwoSlots(t *testing.T) {
	b := newClassBuilder()
	b.access = accPublic
	b.long(1 << 40) // before the class entries, shifting indexes by 2
	b.thisClass = b.class("com/example/Widget")
	b.superClass = b.class("java/lang/Object")
	b.method(accPublic|accStatic, "create", "()V")

	parser := NewParser()
	got, err := parser.Parse(context.Background(), b.build(), "Widget.class")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Name != "com.example.Widget" {
		t.Errorf("Name = %q, want com.example.Widget", got.Name)
	}
	if len(got.Methods) != 1 || got.Methods[0].Name != "create" {
		t.Errorf("methods = %+v, want single create()", got.Methods)
	}
}

func TestParser_Parse_SyntheticAttribute(t *testing.T) {
	b := newClassBuilder()
	b.access = accPublic
	b.thisClass = b.class("com/example/Outer")
	b.superClass = b.class("java/lang/Object")
	b.method(accStatic, "access$000", "()I", b.markerAttr("Synthetic"))

	parser := NewParser()
	got, err := parser.Parse(context.Background(), b.build(), "Outer.class")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.Methods) != 1 {
		t.Fatalf("expected 1 method, got %d", len(got.Methods))
	}
	if !got.Methods[0].IsSynthetic() {
		t.Error("Synthetic attribute must set the synthetic flag")
	}
}

func TestParser_Parse_MalformedDescriptorSkipsMethod(t *testing.T) {
	b := newClassBuilder()
	b.access = accPublic
	b.thisClass = b.class("com/example/Widget")
	b.superClass = b.class("java/lang/Object")
	b.method(accPublic|accStatic, "broken", "(((")
	b.method(accPublic|accStatic, "fine", "()V")

	parser := NewParser()
	got, err := parser.Parse(context.Background(), b.build(), "Widget.class")
	if err != nil {
		t.Fatalf("class analysis must survive one bad descriptor: %v", err)
	}
	if len(got.Methods) != 1 {
		t.Fatalf("expected the bad method to be dropped, got %d methods", len(got.Methods))
	}
	if got.Methods[0].Name != "fine" {
		t.Errorf("surviving method = %q, want fine", got.Methods[0].Name)
	}
}

func TestParser_Parse_BadMagic(t *testing.T) {
	parser := NewParser()

	_, err := parser.Parse(context.Background(), []byte{0xDE, 0xAD, 0xBE, 0xEF, 0, 0}, "junk.bin")
	if !errors.Is(err, ErrNotClassFile) {
		t.Fatalf("expected ErrNotClassFile, got %v", err)
	}

	_, err = parser.Parse(context.Background(), []byte{0xCA}, "short.bin")
	if !errors.Is(err, ErrNotClassFile) {
		t.Fatalf("expected ErrNotClassFile for short input, got %v", err)
	}
}

func TestParser_Parse_Truncated(t *testing.T) {
	b := newClassBuilder()
	b.access = accPublic
	b.thisClass = b.class("com/example/Widget")
	b.superClass = b.class("java/lang/Object")
	b.method(accPublic|accStatic, "create", "()V", b.codeAttr(5))
	full := b.build()

	parser := NewParser()
	_, err := parser.Parse(context.Background(), full[:len(full)/2], "Widget.class")
	if !errors.Is(err, ErrMalformedClassFile) {
		t.Fatalf("expected ErrMalformedClassFile, got %v", err)
	}
}

func TestParser_Parse_SizeLimit(t *testing.T) {
	b := newClassBuilder()
	b.access = accPublic
	b.thisClass = b.class("com/example/Widget")
	b.superClass = b.class("java/lang/Object")

	parser := NewParser(WithMaxFileSize(8))
	_, err := parser.Parse(context.Background(), b.build(), "Widget.class")
	if !errors.Is(err, ErrFileTooLarge) {
		t.Fatalf("expected ErrFileTooLarge, got %v", err)
	}
}

func TestParser_Parse_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	parser := NewParser()
	_, err := parser.Parse(ctx, []byte{0xCA, 0xFE, 0xBA, 0xBE}, "Widget.class")
	if err == nil {
		t.Fatal("expected error from canceled context")
	}
}
