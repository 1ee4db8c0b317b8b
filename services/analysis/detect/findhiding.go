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
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/NazirMuhammadZafarIqbal/spotbugs/services/analysis/classmeta"
	"github.com/NazirMuhammadZafarIqbal/spotbugs/services/analysis/hierarchy"
	"github.com/NazirMuhammadZafarIqbal/spotbugs/services/analysis/report"
)

var tracer = otel.Tracer("spotbugs/detect")

// HidingSubclassID identifies the static method hiding rule.
const HidingSubclassID = "HSBC_HIDING_SUB_CLASS"

// HidingSubclass flags static methods that hide a method of an ancestor
// class.
//
// Description:
//
//	A static method call is bound to the compile-time reference type, not
//	the runtime type of any instance. When a subclass re-declares a static
//	method with the same name and parameter types as a non-private method
//	declared in an ancestor, code holding an ancestor-typed reference keeps
//	invoking the ancestor's version, which rarely matches the author's
//	intent. The rule walks the resolved ancestor chain and reports one
//	finding per ancestor whose declaration is hidden, so a method shadowing
//	two levels of the hierarchy yields two findings.
//
// Thread Safety: safe for concurrent use across classes; all per-class
// state is local to VisitClass.
type HidingSubclass struct {
	NopFinisher

	resolver *hierarchy.Resolver
	reporter Reporter
	logger   *slog.Logger
}

// HidingOption configures a HidingSubclass detector.
type HidingOption func(*HidingSubclass)

// WithLogger sets the logger used for per-finding debug output.
func WithLogger(logger *slog.Logger) HidingOption {
	return func(d *HidingSubclass) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// NewHidingSubclass creates the rule bound to an ancestor resolver and a
// finding reporter.
func NewHidingSubclass(resolver *hierarchy.Resolver, reporter Reporter, opts ...HidingOption) *HidingSubclass {
	d := &HidingSubclass{
		resolver: resolver,
		reporter: reporter,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// ID returns the rule identifier.
func (d *HidingSubclass) ID() string { return HidingSubclassID }

// VisitClass checks every non-private static method the class declares
// against the declarations of every resolvable ancestor.
//
// Inputs:
//   - ctx: checked before work begins; resolution honors it.
//   - c: the class under analysis. Must not be nil.
//
// Outputs:
//   - error: nil in the ordinary case. Unresolvable ancestors are not
//     errors; the resolver records them as diagnostics and the walk
//     proceeds over the ancestors it did find.
func (d *HidingSubclass) VisitClass(ctx context.Context, c *classmeta.Class) error {
	if c == nil {
		return fmt.Errorf("VisitClass: class must not be nil")
	}
	ctx, span := tracer.Start(ctx, "detect.HidingSubclass.VisitClass")
	defer span.End()
	span.SetAttributes(attribute.String("class.name", c.Name))

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("visit canceled: %w", err)
	}

	// Interfaces cannot hide: invoking an inherited static through a
	// subinterface reference is not even legal Java.
	if c.IsInterface() {
		return nil
	}

	candidates := d.candidates(c)
	if len(candidates) == 0 {
		return nil
	}

	chain := d.resolver.Resolve(ctx, c)
	emitted := 0
	for _, ancestor := range chain.Ancestors {
		for _, m := range candidates {
			if !hidesIn(ancestor, m) {
				continue
			}
			d.emit(c, m, ancestor)
			emitted++
		}
	}

	span.SetAttributes(
		attribute.Int("detect.candidates", len(candidates)),
		attribute.Int("detect.findings", emitted),
		attribute.Bool("detect.chain_truncated", chain.Truncated()),
	)
	return nil
}

// candidates returns the class's declared methods that could possibly hide:
// static, visible outside the class, and not exempt.
func (d *HidingSubclass) candidates(c *classmeta.Class) []classmeta.Method {
	var out []classmeta.Method
	for _, m := range c.DeclaredMethods() {
		if !m.IsStatic() || m.IsPrivate() {
			continue
		}
		if reason, ok := ExemptionReason(m); ok {
			d.logger.Debug("method exempt from hiding analysis",
				slog.String("class", c.Name),
				slog.String("method", m.Signature()),
				slog.String("reason", reason))
			continue
		}
		out = append(out, m)
	}
	return out
}

// hidesIn reports whether the ancestor directly declares a non-private
// method with the candidate's name and parameter types. The ancestor's
// declaration does not need to be static, and return types play no part:
// resolution in the source language matches on name and parameters alone.
func hidesIn(ancestor *classmeta.Class, m classmeta.Method) bool {
	for _, am := range ancestor.DeclaredMethods() {
		if am.IsPrivate() {
			continue
		}
		if am.SameOverload(m) {
			return true
		}
	}
	return false
}

func (d *HidingSubclass) emit(c *classmeta.Class, m classmeta.Method, ancestor *classmeta.Class) {
	f := report.Finding{
		RuleID:   HidingSubclassID,
		Severity: report.SeverityNormal,
		Class:    c.Name,
		Method:   m.Signature(),
		Ancestor: ancestor.Name,
		Location: report.Location{File: c.Location(), Line: m.Line},
		Message: fmt.Sprintf("static method %s in %s hides the declaration in %s; callers bound to the %s type keep getting the hidden version",
			m.Signature(), c.Name, ancestor.Name, classmeta.SimpleName(ancestor.Name)),
	}
	d.reporter.Report(f)
	d.logger.Debug("static method hiding detected",
		slog.String("class", c.Name),
		slog.String("method", m.Signature()),
		slog.String("ancestor", ancestor.Name))
}
