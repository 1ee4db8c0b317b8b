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

// Constant pool tags from the class file format. Only Utf8 and Class entries
// are retained; everything else is measured and skipped.
const (
	tagUtf8               = 1
	tagInteger            = 3
	tagFloat              = 4
	tagLong               = 5
	tagDouble             = 6
	tagClass              = 7
	tagString             = 8
	tagFieldref           = 9
	tagMethodref          = 10
	tagInterfaceMethodref = 11
	tagNameAndType        = 12
	tagMethodHandle       = 15
	tagMethodType         = 16
	tagDynamic            = 17
	tagInvokeDynamic      = 18
	tagModule             = 19
	tagPackage            = 20
)

// constPool holds the resolved slices of a class file constant pool.
type constPool struct {
	// utf8 maps a pool index to its decoded CONSTANT_Utf8 string.
	utf8 map[uint16]string

	// class maps a CONSTANT_Class pool index to the utf8 index of its name.
	class map[uint16]uint16
}

// className resolves a CONSTANT_Class index to the internal class name it
// references.
func (p *constPool) className(idx uint16) (string, bool) {
	nameIdx, ok := p.class[idx]
	if !ok {
		return "", false
	}
	name, ok := p.utf8[nameIdx]
	return name, ok
}

// parseConstantPool reads constant_pool_count entries from the cursor.
// Long and Double entries occupy two pool slots; the second slot stays
// unusable, matching the format's historical quirk.
func parseConstantPool(c *cursor) (*constPool, error) {
	count := c.u2()
	if c.err != nil {
		return nil, c.err
	}

	pool := &constPool{
		utf8:  make(map[uint16]string),
		class: make(map[uint16]uint16),
	}

	for i := uint16(1); i < count && c.err == nil; i++ {
		tag := c.u1()
		switch tag {
		case tagUtf8:
			length := int(c.u2())
			raw := c.bytes(length)
			if c.err == nil {
				// Modified UTF-8 differs from UTF-8 only for NUL and
				// supplementary characters, neither of which occurs in
				// the identifiers and descriptors read here.
				pool.utf8[i] = string(raw)
			}
		case tagClass:
			pool.class[i] = c.u2()
		case tagInteger, tagFloat, tagFieldref, tagMethodref,
			tagInterfaceMethodref, tagNameAndType, tagDynamic, tagInvokeDynamic:
			c.skip(4)
		case tagLong, tagDouble:
			c.skip(8)
			i++ // second slot is phantom
		case tagString, tagMethodType, tagModule, tagPackage:
			c.skip(2)
		case tagMethodHandle:
			c.skip(3)
		default:
			return nil, c.failf("unknown constant pool tag %d at entry %d", tag, i)
		}
	}
	if c.err != nil {
		return nil, c.err
	}
	return pool, nil
}
