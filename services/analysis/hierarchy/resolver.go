// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package hierarchy

import (
	"context"
	"fmt"

	"github.com/NazirMuhammadZafarIqbal/spotbugs/services/analysis/classmeta"
)

// DefaultMaxDepth bounds ancestor chains. Real inheritance chains are a
// handful of levels; anything near this depth is corrupt metadata.
const DefaultMaxDepth = 64

// DiagnosticKind classifies the non-fatal conditions chain resolution can
// encounter.
type DiagnosticKind int

const (
	// DiagMissingAncestor means an ancestor's metadata was unavailable;
	// the chain was truncated below it.
	DiagMissingAncestor DiagnosticKind = iota

	// DiagInheritanceCycle means a superclass link loops back into the
	// chain; resolution stopped at the repeated class.
	DiagInheritanceCycle

	// DiagDepthExceeded means the chain passed the depth bound without
	// reaching the root type.
	DiagDepthExceeded
)

// String returns the kind as a stable lowercase token.
func (k DiagnosticKind) String() string {
	switch k {
	case DiagMissingAncestor:
		return "missing_ancestor"
	case DiagInheritanceCycle:
		return "inheritance_cycle"
	case DiagDepthExceeded:
		return "depth_exceeded"
	default:
		return "unknown"
	}
}

// Diagnostic describes one non-fatal resolution failure. Diagnostics are
// informational: the class they concern is still analyzed against the
// ancestors that did resolve.
type Diagnostic struct {
	Kind     DiagnosticKind `json:"kind"`
	Class    string         `json:"class"`
	Ancestor string         `json:"ancestor"`
	Detail   string         `json:"detail,omitempty"`
}

// String renders the diagnostic for logs and text reports.
func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: class %s, ancestor %s: %s", d.Kind, d.Class, d.Ancestor, d.Detail)
}

// DiagnosticSink receives resolution diagnostics. Implementations must be
// safe for concurrent use.
type DiagnosticSink interface {
	ReportDiagnostic(d Diagnostic)
}

// DiagnosticSinkFunc adapts a function to the DiagnosticSink interface.
type DiagnosticSinkFunc func(d Diagnostic)

// ReportDiagnostic implements DiagnosticSink.
func (f DiagnosticSinkFunc) ReportDiagnostic(d Diagnostic) { f(d) }

// Chain is the resolved ancestor sequence of one class, ordered from
// immediate parent to the highest ancestor that resolved. The class itself
// is never included.
type Chain struct {
	Ancestors   []*classmeta.Class
	Diagnostics []Diagnostic
}

// Names returns the ancestor names in chain order.
func (c Chain) Names() []string {
	out := make([]string, len(c.Ancestors))
	for i, a := range c.Ancestors {
		out[i] = a.Name
	}
	return out
}

// Truncated reports whether resolution stopped before the root type.
func (c Chain) Truncated() bool {
	return len(c.Diagnostics) > 0
}

// Resolver walks superclass links through a Repository.
//
// Thread Safety: safe for concurrent use; Resolve keeps all state on the
// stack and the repository is read-only.
type Resolver struct {
	repo     Repository
	sink     DiagnosticSink
	maxDepth int
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithDiagnosticSink forwards every diagnostic to sink as it is produced, in
// addition to returning it on the Chain.
func WithDiagnosticSink(sink DiagnosticSink) ResolverOption {
	return func(r *Resolver) { r.sink = sink }
}

// WithMaxDepth overrides the chain depth bound.
func WithMaxDepth(depth int) ResolverOption {
	return func(r *Resolver) {
		if depth > 0 {
			r.maxDepth = depth
		}
	}
}

// NewResolver creates a Resolver over the given repository.
func NewResolver(repo Repository, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		repo:     repo,
		maxDepth: DefaultMaxDepth,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve produces the ordered ancestor chain of a class.
//
// Description:
//
//	Follows SuperName links from the class upward, looking each name up in
//	the repository, until the root type (empty SuperName) is reached. An
//	unresolvable ancestor truncates the chain at the last class that did
//	resolve and records a DiagMissingAncestor diagnostic — everything
//	above the gap is omitted, the analysis below it proceeds. Cycles and
//	over-deep chains truncate the same way with their own kinds.
//
// Inputs:
//   - ctx: passed through to repository lookups.
//   - c: the loaded class whose ancestors are wanted.
//
// Outputs:
//   - Chain: ancestors from immediate parent upward, possibly empty,
//     plus any diagnostics (also forwarded to the configured sink).
//
// Thread Safety: safe for concurrent use.
func (r *Resolver) Resolve(ctx context.Context, c *classmeta.Class) Chain {
	var chain Chain
	if c == nil {
		return chain
	}

	seen := map[string]bool{c.Name: true}
	current := c

	for current.SuperName != "" {
		if len(chain.Ancestors) >= r.maxDepth {
			r.diagnose(&chain, Diagnostic{
				Kind:     DiagDepthExceeded,
				Class:    c.Name,
				Ancestor: current.SuperName,
				Detail:   fmt.Sprintf("chain exceeds %d levels", r.maxDepth),
			})
			break
		}

		next, err := r.repo.Lookup(ctx, current.SuperName)
		if err != nil {
			r.diagnose(&chain, Diagnostic{
				Kind:     DiagMissingAncestor,
				Class:    c.Name,
				Ancestor: current.SuperName,
				Detail:   err.Error(),
			})
			break
		}

		if seen[next.Name] {
			r.diagnose(&chain, Diagnostic{
				Kind:     DiagInheritanceCycle,
				Class:    c.Name,
				Ancestor: next.Name,
				Detail:   "superclass link loops back into the chain",
			})
			break
		}

		chain.Ancestors = append(chain.Ancestors, next)
		seen[next.Name] = true
		current = next
	}

	return chain
}

func (r *Resolver) diagnose(chain *Chain, d Diagnostic) {
	chain.Diagnostics = append(chain.Diagnostics, d)
	if r.sink != nil {
		r.sink.ReportDiagnostic(d)
	}
}
