package main

import (
	"bytes"
	"io"
)

// The master file historically carries a UTF-8 BOM (it was written with
// utf-8-sig), and some bank exports do too. encoding/csv would otherwise
// fold the BOM into the first header name, breaking the required-column
// check. converter strips a leading BOM and passes everything else through.
type converter struct {
	delegate io.Reader
	pending  []byte // bytes read ahead of the caller, served first
	checked  bool
}

func newConverter(r io.Reader) *converter {
	return &converter{delegate: r}
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func (c *converter) Read(p []byte) (int, error) {
	if len(c.pending) > 0 {
		n := copy(p, c.pending)
		c.pending = c.pending[n:]
		return n, nil
	}
	if c.checked {
		return c.delegate.Read(p)
	}
	c.checked = true

	head := make([]byte, 3)
	n, err := io.ReadFull(c.delegate, head)
	switch {
	case err == io.EOF || err == io.ErrUnexpectedEOF:
		c.pending = head[:n]
	case err != nil:
		return 0, err
	case bytes.Equal(head, utf8BOM):
		// Swallow the BOM.
	default:
		c.pending = head
	}
	return c.Read(p)
}
