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

import "fmt"

// cursor is a sticky-error reader over class file bytes. Once a read runs
// past the buffer, err is set and every later read returns zero values, so
// parsing code checks err at section boundaries instead of after every read.
type cursor struct {
	data []byte
	pos  int
	err  error
}

func (c *cursor) u1() uint8 {
	if c.err != nil {
		return 0
	}
	if c.pos+1 > len(c.data) {
		c.failf("truncated at offset %d", c.pos)
		return 0
	}
	v := c.data[c.pos]
	c.pos++
	return v
}

func (c *cursor) u2() uint16 {
	if c.err != nil {
		return 0
	}
	if c.pos+2 > len(c.data) {
		c.failf("truncated at offset %d", c.pos)
		return 0
	}
	v := uint16(c.data[c.pos])<<8 | uint16(c.data[c.pos+1])
	c.pos += 2
	return v
}

func (c *cursor) u4() uint32 {
	if c.err != nil {
		return 0
	}
	if c.pos+4 > len(c.data) {
		c.failf("truncated at offset %d", c.pos)
		return 0
	}
	v := uint32(c.data[c.pos])<<24 | uint32(c.data[c.pos+1])<<16 |
		uint32(c.data[c.pos+2])<<8 | uint32(c.data[c.pos+3])
	c.pos += 4
	return v
}

// bytes returns the next n bytes without copying. The returned slice aliases
// the input buffer and must be treated as read-only.
func (c *cursor) bytes(n int) []byte {
	if c.err != nil {
		return nil
	}
	if n < 0 || c.pos+n > len(c.data) {
		c.failf("truncated at offset %d (want %d bytes)", c.pos, n)
		return nil
	}
	v := c.data[c.pos : c.pos+n]
	c.pos += n
	return v
}

func (c *cursor) skip(n int) {
	if c.err != nil {
		return
	}
	if n < 0 || c.pos+n > len(c.data) {
		c.failf("truncated at offset %d (want %d bytes)", c.pos, n)
		return
	}
	c.pos += n
}

// failf records the first failure as a wrapped ErrMalformedClassFile and
// returns it. Later calls keep the original error.
func (c *cursor) failf(format string, args ...any) error {
	if c.err == nil {
		c.err = fmt.Errorf("%w: %s", ErrMalformedClassFile, fmt.Sprintf(format, args...))
	}
	return c.err
}
