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
	"strings"

	"github.com/NazirMuhammadZafarIqbal/spotbugs/services/analysis/classmeta"
)

// exemption is one reason a method can never be reported for hiding.
// Entries are checked in order; the first match wins.
type exemption struct {
	reason  string
	applies func(m classmeta.Method) bool
}

var exemptions = []exemption{
	{
		reason:  "program entry point",
		applies: isEntryPoint,
	},
	{
		reason:  "class initializer",
		applies: func(m classmeta.Method) bool { return m.Name == classmeta.StaticInitializerName },
	},
	{
		reason:  "constructor",
		applies: func(m classmeta.Method) bool { return m.Name == classmeta.ConstructorName },
	},
	{
		reason:  "compiler-generated accessor",
		applies: func(m classmeta.Method) bool { return strings.Contains(m.Name, "access$") },
	},
	{
		reason:  "class literal helper",
		applies: func(m classmeta.Method) bool { return strings.Contains(m.Name, "class$") },
	},
}

// ExemptionReason reports whether the method is categorically excluded from
// hiding analysis, and why. Entry points, initializers, constructors and
// compiler-generated members share names across a hierarchy as a matter of
// course; reporting them would be pure noise.
func ExemptionReason(m classmeta.Method) (string, bool) {
	for _, e := range exemptions {
		if e.applies(m) {
			return e.reason, true
		}
	}
	return "", false
}

// isEntryPoint matches the launcher contract: a non-private static void
// method named main taking either nothing or exactly one java.lang.String
// array. Any other main overload is an ordinary method.
func isEntryPoint(m classmeta.Method) bool {
	if m.Name != "main" || !m.IsStatic() || m.IsPrivate() {
		return false
	}
	if m.ReturnType != "void" {
		return false
	}
	switch len(m.Params) {
	case 0:
		return true
	case 1:
		return m.Params[0] == "java.lang.String[]"
	default:
		return false
	}
}
