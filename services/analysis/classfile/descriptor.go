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
	"fmt"
	"strings"

	"github.com/NazirMuhammadZafarIqbal/spotbugs/services/analysis/classmeta"
)

// ErrBadDescriptor indicates a method descriptor that does not follow the
// class file grammar. Methods carrying one are skipped, not fatal.
var ErrBadDescriptor = fmt.Errorf("malformed method descriptor")

// baseTypes maps the single-character base type descriptors to their source
// names.
var baseTypes = map[byte]string{
	'B': "byte",
	'C': "char",
	'D': "double",
	'F': "float",
	'I': "int",
	'J': "long",
	'S': "short",
	'Z': "boolean",
	'V': "void",
}

// parseMethodDescriptor converts a JVM method descriptor such as
// "(Ljava/lang/String;I[B)V" into ordered source-form parameter types and a
// source-form return type ("java.lang.String", "int", "byte[]" / "void").
func parseMethodDescriptor(desc string) (params []string, returnType string, err error) {
	if len(desc) < 3 || desc[0] != '(' {
		return nil, "", fmt.Errorf("%w: %q", ErrBadDescriptor, desc)
	}

	pos := 1
	for pos < len(desc) && desc[pos] != ')' {
		typ, next, err := parseFieldType(desc, pos)
		if err != nil {
			return nil, "", err
		}
		if typ == "void" {
			return nil, "", fmt.Errorf("%w: void parameter in %q", ErrBadDescriptor, desc)
		}
		params = append(params, typ)
		pos = next
	}
	if pos >= len(desc) || desc[pos] != ')' {
		return nil, "", fmt.Errorf("%w: unterminated parameter list in %q", ErrBadDescriptor, desc)
	}

	pos++ // consume ')'
	returnType, next, err := parseFieldType(desc, pos)
	if err != nil {
		return nil, "", err
	}
	if next != len(desc) {
		return nil, "", fmt.Errorf("%w: trailing bytes in %q", ErrBadDescriptor, desc)
	}
	return params, returnType, nil
}

// parseFieldType decodes one type starting at pos and returns the source form
// plus the position just past it. Array dimensions become trailing "[]"
// pairs; object types lose the L...; wrapping and switch to dot form.
func parseFieldType(desc string, pos int) (string, int, error) {
	dims := 0
	for pos < len(desc) && desc[pos] == '[' {
		dims++
		pos++
	}
	if pos >= len(desc) {
		return "", 0, fmt.Errorf("%w: dangling array marker in %q", ErrBadDescriptor, desc)
	}

	var typ string
	switch c := desc[pos]; c {
	case 'L':
		end := strings.IndexByte(desc[pos:], ';')
		if end < 0 {
			return "", 0, fmt.Errorf("%w: unterminated object type in %q", ErrBadDescriptor, desc)
		}
		internal := desc[pos+1 : pos+end]
		if internal == "" {
			return "", 0, fmt.Errorf("%w: empty object type in %q", ErrBadDescriptor, desc)
		}
		typ = classmeta.DotName(internal)
		pos += end + 1
	default:
		base, ok := baseTypes[c]
		if !ok {
			return "", 0, fmt.Errorf("%w: unknown type tag %q in %q", ErrBadDescriptor, c, desc)
		}
		if base == "void" && dims > 0 {
			return "", 0, fmt.Errorf("%w: array of void in %q", ErrBadDescriptor, desc)
		}
		typ = base
		pos++
	}

	return typ + strings.Repeat("[]", dims), pos, nil
}
