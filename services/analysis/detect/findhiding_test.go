// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package detect

import (
	"context"
	"testing"

	"github.com/NazirMuhammadZafarIqbal/spotbugs/services/analysis/classmeta"
	"github.com/NazirMuhammadZafarIqbal/spotbugs/services/analysis/hierarchy"
	"github.com/NazirMuhammadZafarIqbal/spotbugs/services/analysis/report"
)

func method(name string, flags classmeta.Flags, params ...string) classmeta.Method {
	return classmeta.Method{
		Name:       name,
		Params:     params,
		ReturnType: "void",
		Flags:      flags,
	}
}

func testClass(name, super string, methods ...classmeta.Method) *classmeta.Class {
	c := &classmeta.Class{
		Name:       name,
		SuperName:  super,
		SourceFile: classmeta.SimpleName(name) + ".java",
		Methods:    methods,
	}
	for i := range c.Methods {
		c.Methods[i].ClassName = name
	}
	return c
}

// runHiding indexes the classes, visits each with the hiding rule, and
// returns the sorted findings plus any resolution diagnostics.
func runHiding(t *testing.T, classes ...*classmeta.Class) ([]report.Finding, []hierarchy.Diagnostic) {
	t.Helper()

	idx := hierarchy.NewClassIndex()
	if err := idx.AddBatch(classes); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var diags []hierarchy.Diagnostic
	sink := hierarchy.DiagnosticSinkFunc(func(d hierarchy.Diagnostic) {
		diags = append(diags, d)
	})
	resolver := hierarchy.NewResolver(hierarchy.WithBuiltins(idx), hierarchy.WithDiagnosticSink(sink))

	collector := report.NewCollector()
	det := NewHidingSubclass(resolver, collector)

	ctx := context.Background()
	for _, c := range classes {
		if err := det.VisitClass(ctx, c); err != nil {
			t.Fatalf("unexpected error visiting %s: %v", c.Name, err)
		}
	}
	if err := det.Finish(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return collector.Findings(), diags
}

func TestHidingSubclass_ID(t *testing.T) {
	det := NewHidingSubclass(nil, nil)
	if det.ID() != "HSBC_HIDING_SUB_CLASS" {
		t.Errorf("ID() = %q", det.ID())
	}
}

func TestHidingSubclass_ReportsHiddenStatic(t *testing.T) {
	parent := testClass("com.example.Parent", classmeta.ObjectClass,
		method("display", classmeta.FlagPublic|classmeta.FlagStatic, "java.lang.String"))
	child := testClass("com.example.Child", "com.example.Parent",
		method("display", classmeta.FlagPublic|classmeta.FlagStatic, "java.lang.String"))
	child.Methods[0].Line = 8

	findings, diags := runHiding(t, parent, child)
	if len(diags) != 0 {
		t.Errorf("unexpected diagnostics: %+v", diags)
	}
	if len(findings) != 1 {
		t.Fatalf("expected 1 finding, got %d: %+v", len(findings), findings)
	}

	f := findings[0]
	if f.RuleID != "HSBC_HIDING_SUB_CLASS" {
		t.Errorf("rule id: got %q", f.RuleID)
	}
	if f.Severity != report.SeverityNormal {
		t.Errorf("severity: got %v, want %v", f.Severity, report.SeverityNormal)
	}
	if f.Class != "com.example.Child" {
		t.Errorf("class: got %q", f.Class)
	}
	if f.Method != "display(java.lang.String)" {
		t.Errorf("method: got %q", f.Method)
	}
	if f.Ancestor != "com.example.Parent" {
		t.Errorf("ancestor: got %q", f.Ancestor)
	}
	if f.Location.File != "Child.java" || f.Location.Line != 8 {
		t.Errorf("location: got %v", f.Location)
	}
	if f.Message == "" {
		t.Error("message must not be empty")
	}
}

func TestHidingSubclass_PrivateStaticsAreInvisible(t *testing.T) {
	t.Run("both sides private", func(t *testing.T) {
		parent := testClass("com.example.Parent", classmeta.ObjectClass,
			method("audit", classmeta.FlagPrivate|classmeta.FlagStatic, "java.lang.String"))
		child := testClass("com.example.Child", "com.example.Parent",
			method("audit", classmeta.FlagPrivate|classmeta.FlagStatic, "java.lang.String"))

		findings, _ := runHiding(t, parent, child)
		if len(findings) != 0 {
			t.Errorf("expected no findings, got %+v", findings)
		}
	})

	t.Run("ancestor declaration private", func(t *testing.T) {
		parent := testClass("com.example.Parent", classmeta.ObjectClass,
			method("audit", classmeta.FlagPrivate|classmeta.FlagStatic, "java.lang.String"))
		child := testClass("com.example.Child", "com.example.Parent",
			method("audit", classmeta.FlagPublic|classmeta.FlagStatic, "java.lang.String"))

		findings, _ := runHiding(t, parent, child)
		if len(findings) != 0 {
			t.Errorf("expected no findings, got %+v", findings)
		}
	})
}

func TestHidingSubclass_InstanceOverrideIgnored(t *testing.T) {
	parent := testClass("com.example.Parent", classmeta.ObjectClass,
		method("status", classmeta.FlagPublic))
	child := testClass("com.example.Child", "com.example.Parent",
		method("status", classmeta.FlagPublic))

	findings, _ := runHiding(t, parent, child)
	if len(findings) != 0 {
		t.Errorf("expected no findings for an instance override, got %+v", findings)
	}
}

func TestHidingSubclass_AncestorInstanceMethodIsHidden(t *testing.T) {
	// The hidden declaration does not need to be static itself.
	parent := testClass("com.example.Parent", classmeta.ObjectClass,
		method("display", classmeta.FlagPublic, "java.lang.String"))
	child := testClass("com.example.Child", "com.example.Parent",
		method("display", classmeta.FlagPublic|classmeta.FlagStatic, "java.lang.String"))

	findings, _ := runHiding(t, parent, child)
	if len(findings) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(findings))
	}
	if findings[0].Ancestor != "com.example.Parent" {
		t.Errorf("ancestor: got %q", findings[0].Ancestor)
	}
}

func TestHidingSubclass_ReturnTypeDoesNotMatter(t *testing.T) {
	parent := testClass("com.example.Parent", classmeta.ObjectClass,
		method("display", classmeta.FlagPublic|classmeta.FlagStatic, "java.lang.String"))
	child := testClass("com.example.Child", "com.example.Parent",
		method("display", classmeta.FlagPublic|classmeta.FlagStatic, "java.lang.String"))
	child.Methods[0].ReturnType = "int"

	findings, _ := runHiding(t, parent, child)
	if len(findings) != 1 {
		t.Errorf("expected 1 finding regardless of return type, got %d", len(findings))
	}
}

func TestHidingSubclass_SignatureMismatches(t *testing.T) {
	cases := []struct {
		name         string
		parentParams []string
		childParams  []string
	}{
		{"different arity", []string{"java.lang.String"}, []string{"java.lang.String", "java.lang.String"}},
		{"different types", []string{"java.lang.String"}, []string{"int"}},
		{"swapped order", []string{"java.lang.String", "int"}, []string{"int", "java.lang.String"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			parent := testClass("com.example.Parent", classmeta.ObjectClass,
				method("convert", classmeta.FlagPublic|classmeta.FlagStatic, tc.parentParams...))
			child := testClass("com.example.Child", "com.example.Parent",
				method("convert", classmeta.FlagPublic|classmeta.FlagStatic, tc.childParams...))

			findings, _ := runHiding(t, parent, child)
			if len(findings) != 0 {
				t.Errorf("expected no findings, got %+v", findings)
			}
		})
	}
}

func TestHidingSubclass_OneFindingPerAncestor(t *testing.T) {
	grandparent := testClass("com.example.Grandparent", classmeta.ObjectClass,
		method("create", classmeta.FlagPublic|classmeta.FlagStatic),
		method("display", classmeta.FlagPublic|classmeta.FlagStatic, "java.lang.String"),
		method("audit", classmeta.FlagPrivate|classmeta.FlagStatic, "java.lang.String"),
		method("status", classmeta.FlagPublic),
		method("main", classmeta.FlagPublic|classmeta.FlagStatic, "java.lang.String[]"))
	parent := testClass("com.example.Parent", "com.example.Grandparent",
		method("create", classmeta.FlagPublic|classmeta.FlagStatic))
	child := testClass("com.example.Child", "com.example.Parent",
		method("create", classmeta.FlagPublic|classmeta.FlagStatic),
		method("display", classmeta.FlagPublic|classmeta.FlagStatic, "java.lang.String"),
		method("status", classmeta.FlagPublic),
		method("main", classmeta.FlagPublic|classmeta.FlagStatic, "java.lang.String[]"),
		method("audit", classmeta.FlagPrivate|classmeta.FlagStatic, "java.lang.String"))

	findings, diags := runHiding(t, grandparent, parent, child)
	if len(diags) != 0 {
		t.Errorf("unexpected diagnostics: %+v", diags)
	}

	want := []struct{ class, method, ancestor string }{
		{"com.example.Child", "create()", "com.example.Grandparent"},
		{"com.example.Child", "create()", "com.example.Parent"},
		{"com.example.Child", "display(java.lang.String)", "com.example.Grandparent"},
		{"com.example.Parent", "create()", "com.example.Grandparent"},
	}
	if len(findings) != len(want) {
		t.Fatalf("expected %d findings, got %d: %+v", len(want), len(findings), findings)
	}
	for i, w := range want {
		f := findings[i]
		if f.Class != w.class || f.Method != w.method || f.Ancestor != w.ancestor {
			t.Errorf("finding %d: got (%s, %s, %s), want (%s, %s, %s)",
				i, f.Class, f.Method, f.Ancestor, w.class, w.method, w.ancestor)
		}
	}
}

func TestHidingSubclass_EntryPointVariants(t *testing.T) {
	cases := []struct {
		name       string
		params     []string
		returnType string
		want       int
	}{
		{"canonical main", []string{"java.lang.String[]"}, "void", 0},
		{"no-arg main", nil, "void", 0},
		{"main with int parameter", []string{"int"}, "void", 1},
		{"main returning a value", []string{"java.lang.String[]"}, "java.lang.String", 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			pm := method("main", classmeta.FlagPublic|classmeta.FlagStatic, tc.params...)
			pm.ReturnType = tc.returnType
			cm := method("main", classmeta.FlagPublic|classmeta.FlagStatic, tc.params...)
			cm.ReturnType = tc.returnType

			parent := testClass("com.example.Parent", classmeta.ObjectClass, pm)
			child := testClass("com.example.Child", "com.example.Parent", cm)

			findings, _ := runHiding(t, parent, child)
			if len(findings) != tc.want {
				t.Errorf("expected %d findings, got %d: %+v", tc.want, len(findings), findings)
			}
		})
	}
}

func TestHidingSubclass_GeneratedNamesExempt(t *testing.T) {
	parent := testClass("com.example.Parent", classmeta.ObjectClass,
		method("access$000", classmeta.FlagPublic|classmeta.FlagStatic),
		method("class$lookup", classmeta.FlagPublic|classmeta.FlagStatic, "java.lang.String"))
	child := testClass("com.example.Child", "com.example.Parent",
		method("access$000", classmeta.FlagPublic|classmeta.FlagStatic),
		method("class$lookup", classmeta.FlagPublic|classmeta.FlagStatic, "java.lang.String"))

	findings, _ := runHiding(t, parent, child)
	if len(findings) != 0 {
		t.Errorf("expected no findings for generated names, got %+v", findings)
	}
}

func TestHidingSubclass_InterfacesAreSkipped(t *testing.T) {
	parent := testClass("com.example.Parent", classmeta.ObjectClass,
		method("ping", classmeta.FlagPublic|classmeta.FlagStatic))
	iface := testClass("com.example.IFace", "com.example.Parent",
		method("ping", classmeta.FlagPublic|classmeta.FlagStatic))
	iface.Flags |= classmeta.FlagInterface

	findings, _ := runHiding(t, parent, iface)
	if len(findings) != 0 {
		t.Errorf("expected no findings on an interface, got %+v", findings)
	}
}

func TestHidingSubclass_MissingAncestor(t *testing.T) {
	orphan := testClass("com.example.Orphan", "com.missing.Base",
		method("ping", classmeta.FlagPublic|classmeta.FlagStatic))

	findings, diags := runHiding(t, orphan)
	if len(findings) != 0 {
		t.Errorf("expected no findings, got %+v", findings)
	}
	if len(diags) != 1 {
		t.Fatalf("expected 1 diagnostic, got %d: %+v", len(diags), diags)
	}
	d := diags[0]
	if d.Kind != hierarchy.DiagMissingAncestor {
		t.Errorf("kind: got %v", d.Kind)
	}
	if d.Class != "com.example.Orphan" || d.Ancestor != "com.missing.Base" {
		t.Errorf("diagnostic: got %+v", d)
	}
}

func TestHidingSubclass_MidChainGapTruncates(t *testing.T) {
	// Grandparent is absent: Child must still be checked against Parent,
	// and both resolutions record the gap.
	parent := testClass("com.example.Parent", "com.missing.Grandparent",
		method("create", classmeta.FlagPublic|classmeta.FlagStatic))
	child := testClass("com.example.Child", "com.example.Parent",
		method("create", classmeta.FlagPublic|classmeta.FlagStatic))

	findings, diags := runHiding(t, parent, child)
	if len(findings) != 1 {
		t.Fatalf("expected 1 finding below the gap, got %d: %+v", len(findings), findings)
	}
	if findings[0].Class != "com.example.Child" || findings[0].Ancestor != "com.example.Parent" {
		t.Errorf("finding: got %+v", findings[0])
	}
	if len(diags) != 2 {
		t.Fatalf("expected a diagnostic per affected class, got %d: %+v", len(diags), diags)
	}
	for _, d := range diags {
		if d.Kind != hierarchy.DiagMissingAncestor || d.Ancestor != "com.missing.Grandparent" {
			t.Errorf("diagnostic: got %+v", d)
		}
	}
}

func TestHidingSubclass_NoCandidatesSkipsResolution(t *testing.T) {
	// A class with no static methods must not produce diagnostics even if
	// its ancestry is unresolvable.
	quiet := testClass("com.example.Quiet", "com.missing.Base",
		method("status", classmeta.FlagPublic))

	findings, diags := runHiding(t, quiet)
	if len(findings) != 0 || len(diags) != 0 {
		t.Errorf("expected silence, got findings=%+v diags=%+v", findings, diags)
	}
}

func TestHidingSubclass_NilClass(t *testing.T) {
	det := NewHidingSubclass(nil, report.NewCollector())
	if err := det.VisitClass(context.Background(), nil); err == nil {
		t.Error("expected error for nil class")
	}
}

func TestHidingSubclass_CanceledContext(t *testing.T) {
	idx := hierarchy.NewClassIndex()
	resolver := hierarchy.NewResolver(hierarchy.WithBuiltins(idx))
	det := NewHidingSubclass(resolver, report.NewCollector())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := testClass("com.example.Child", classmeta.ObjectClass,
		method("ping", classmeta.FlagPublic|classmeta.FlagStatic))
	if err := det.VisitClass(ctx, c); err == nil {
		t.Error("expected error for canceled context")
	}
}
