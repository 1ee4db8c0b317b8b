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
	"errors"
	"reflect"
	"testing"
)

func TestParseMethodDescriptor(t *testing.T) {
	tests := []struct {
		name       string
		desc       string
		wantParams []string
		wantReturn string
	}{
		{
			name:       "no params void",
			desc:       "()V",
			wantParams: nil,
			wantReturn: "void",
		},
		{
			name:       "single object param",
			desc:       "(Ljava/lang/String;)V",
			wantParams: []string{"java.lang.String"},
			wantReturn: "void",
		},
		{
			name:       "string array param",
			desc:       "([Ljava/lang/String;)V",
			wantParams: []string{"java.lang.String[]"},
			wantReturn: "void",
		},
		{
			name:       "mixed primitives",
			desc:       "(IJZ)Ljava/lang/String;",
			wantParams: []string{"int", "long", "boolean"},
			wantReturn: "java.lang.String",
		},
		{
			name:       "nested arrays",
			desc:       "([[B[I)V",
			wantParams: []string{"byte[][]", "int[]"},
			wantReturn: "void",
		},
		{
			name:       "object and primitive mix",
			desc:       "(Ljava/lang/String;I[B)V",
			wantParams: []string{"java.lang.String", "int", "byte[]"},
			wantReturn: "void",
		},
		{
			name:       "array return",
			desc:       "()[Ljava/lang/Object;",
			wantParams: nil,
			wantReturn: "java.lang.Object[]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params, ret, err := parseMethodDescriptor(tt.desc)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(params, tt.wantParams) {
				t.Errorf("params = %v, want %v", params, tt.wantParams)
			}
			if ret != tt.wantReturn {
				t.Errorf("return = %q, want %q", ret, tt.wantReturn)
			}
		})
	}
}

func TestParseMethodDescriptor_Malformed(t *testing.T) {
	cases := []struct {
		name string
		desc string
	}{
		{"empty", ""},
		{"no opening paren", "V"},
		{"unterminated params", "(I"},
		{"unterminated object type", "(Ljava/lang/String)V"},
		{"empty object type", "(L;)V"},
		{"void parameter", "(V)V"},
		{"array of void", "()[V"},
		{"unknown tag", "(Q)V"},
		{"trailing bytes", "()Vx"},
		{"dangling array marker", "()["},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := parseMethodDescriptor(tt.desc)
			if !errors.Is(err, ErrBadDescriptor) {
				t.Fatalf("expected ErrBadDescriptor for %q, got %v", tt.desc, err)
			}
		})
	}
}
