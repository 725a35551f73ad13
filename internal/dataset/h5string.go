package dataset

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Object header message types read by the string decoder.
const (
	h5MsgDataspace    = 0x0001
	h5MsgDatatype     = 0x0003
	h5MsgLayout       = 0x0008
	h5MsgContinuation = 0x0010
)

const (
	h5ClassVarLen = 9
	h5VarLenKind  = 1 // string, as opposed to sequence

	h5LayoutCompact    = 0
	h5LayoutContiguous = 1

	h5MaxContinuations = 64
	h5MaxRead          = 64 << 20
)

// h5Sizes holds the superblock fields needed to decode file addresses.
type h5Sizes struct {
	offset int
	length int
	order  binary.ByteOrder
}

type h5Message struct {
	typ  uint16
	data []byte
}

// readVarString decodes the first element of a variable-length string
// dataset whose object header is at addr. The element is a
// (length, global heap collection, object index) triple.
func readVarString(r io.ReaderAt, sz h5Sizes, addr uint64) (string, error) {
	msgs, err := readObjectHeader(r, sz, addr)
	if err != nil {
		return "", err
	}

	var dtype, space, layout []byte
	for _, m := range msgs {
		switch m.typ {
		case h5MsgDatatype:
			dtype = m.data
		case h5MsgDataspace:
			space = m.data
		case h5MsgLayout:
			layout = m.data
		}
	}
	if dtype == nil || space == nil || layout == nil {
		return "", fmt.Errorf("%w: object at %#x is not a dataset", ErrUnsupportedString, addr)
	}
	if len(dtype) < 8 {
		return "", fmt.Errorf("datatype message too short (%d bytes)", len(dtype))
	}
	if class := dtype[0] & 0x0F; class != h5ClassVarLen || dtype[1]&0x0F != h5VarLenKind {
		return "", fmt.Errorf("%w: datatype class %d", ErrUnsupportedString, class)
	}
	padding := dtype[1] >> 4

	n, err := h5ElementCount(space, sz)
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", fmt.Errorf("%w: string dataset is empty", ErrShapeMismatch)
	}

	elem := 4 + sz.offset + 4
	raw, err := readLayoutData(r, sz, layout, elem)
	if err != nil {
		return "", err
	}

	length := sz.order.Uint32(raw[0:4])
	if length == 0 {
		return "", nil
	}
	collection := readUint(raw[4:], sz.offset, sz.order)
	index := sz.order.Uint32(raw[4+sz.offset:])

	obj, err := readGlobalHeapObject(r, sz, collection, index)
	if err != nil {
		return "", err
	}
	if int(length) > len(obj) {
		return "", fmt.Errorf("global heap object %d holds %d bytes, string needs %d", index, len(obj), length)
	}
	return trimString(obj[:length], padding), nil
}

func readObjectHeader(r io.ReaderAt, sz h5Sizes, addr uint64) ([]h5Message, error) {
	prefix, err := readBytes(r, addr, 16)
	if err != nil {
		return nil, fmt.Errorf("object header at %#x: %w", addr, err)
	}

	var msgs []h5Message
	v2 := bytes.Equal(prefix[:4], []byte("OHDR"))
	creationOrder := v2 && prefix[5]&0x04 != 0
	switch {
	case v2:
		msgs, err = readV2Header(r, addr, prefix)
	case prefix[0] == 1 && prefix[1] == 0:
		size := sz.order.Uint32(prefix[8:12])
		msgs, err = readV1Messages(r, sz, addr+16, uint64(size))
	default:
		return nil, fmt.Errorf("object header at %#x: unknown prefix % x", addr, prefix[:4])
	}
	if err != nil {
		return nil, err
	}

	seen := 0
	for i := 0; i < len(msgs); i++ {
		if msgs[i].typ != h5MsgContinuation {
			continue
		}
		seen++
		if seen > h5MaxContinuations {
			return nil, fmt.Errorf("object header at %#x: too many continuation blocks", addr)
		}
		data := msgs[i].data
		if len(data) < sz.offset+sz.length {
			return nil, fmt.Errorf("continuation message too short (%d bytes)", len(data))
		}
		blockAddr := readUint(data, sz.offset, sz.order)
		blockLen := readUint(data[sz.offset:], sz.length, sz.order)

		var more []h5Message
		if v2 {
			more, err = readV2Continuation(r, blockAddr, blockLen, creationOrder)
		} else {
			more, err = readV1Messages(r, sz, blockAddr, blockLen)
		}
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, more...)
	}
	return msgs, nil
}

// readV1Messages parses a block of version 1 header messages: an 8-byte
// header (type, size, flags, reserved) then size bytes of data, 8-byte aligned.
func readV1Messages(r io.ReaderAt, sz h5Sizes, addr, size uint64) ([]h5Message, error) {
	block, err := readBytes(r, addr, int(size))
	if err != nil {
		return nil, fmt.Errorf("header messages at %#x: %w", addr, err)
	}

	var msgs []h5Message
	for pos := 0; pos+8 <= len(block); {
		typ := sz.order.Uint16(block[pos:])
		n := int(sz.order.Uint16(block[pos+2:]))
		start := pos + 8
		if start+n > len(block) {
			return nil, fmt.Errorf("header message at %#x overruns its block", addr+uint64(pos))
		}
		msgs = append(msgs, h5Message{typ: typ, data: block[start : start+n]})
		pos = start + align8(n)
	}
	return msgs, nil
}

// readV2Header parses an "OHDR" header. Checksums are not verified.
func readV2Header(r io.ReaderAt, addr uint64, prefix []byte) ([]h5Message, error) {
	if prefix[4] != 2 {
		return nil, fmt.Errorf("object header at %#x: unsupported version %d", addr, prefix[4])
	}
	flags := prefix[5]

	pos := uint64(6)
	if flags&0x20 != 0 {
		pos += 16
	}
	if flags&0x10 != 0 {
		pos += 4
	}
	width := 1 << (flags & 0x03)
	field, err := readBytes(r, addr+pos, width)
	if err != nil {
		return nil, fmt.Errorf("object header at %#x: %w", addr, err)
	}
	chunk := readUint(field, width, binary.LittleEndian)

	block, err := readBytes(r, addr+pos+uint64(width), int(chunk))
	if err != nil {
		return nil, fmt.Errorf("object header at %#x: %w", addr, err)
	}
	return parseV2Messages(block, flags&0x04 != 0), nil
}

func readV2Continuation(r io.ReaderAt, addr, size uint64, creationOrder bool) ([]h5Message, error) {
	block, err := readBytes(r, addr, int(size))
	if err != nil {
		return nil, fmt.Errorf("continuation block at %#x: %w", addr, err)
	}
	if len(block) < 8 || !bytes.Equal(block[:4], []byte("OCHK")) {
		return nil, fmt.Errorf("continuation block at %#x: missing OCHK signature", addr)
	}
	return parseV2Messages(block[4:len(block)-4], creationOrder), nil
}

func parseV2Messages(block []byte, creationOrder bool) []h5Message {
	head := 4
	if creationOrder {
		head += 2
	}
	var msgs []h5Message
	for pos := 0; pos+head <= len(block); {
		typ := uint16(block[pos])
		n := int(binary.LittleEndian.Uint16(block[pos+1:]))
		start := pos + head
		if start+n > len(block) {
			break
		}
		msgs = append(msgs, h5Message{typ: typ, data: block[start : start+n]})
		pos = start + n
	}
	return msgs
}

// h5ElementCount returns the number of elements a dataspace message
// describes. Scalars count as one.
func h5ElementCount(space []byte, sz h5Sizes) (uint64, error) {
	if len(space) < 4 {
		return 0, fmt.Errorf("dataspace message too short (%d bytes)", len(space))
	}
	version, ndims := space[0], int(space[1])
	off := 8
	if version >= 2 {
		off = 4
		if space[3] == 2 { // null dataspace
			return 0, nil
		}
	}
	if ndims == 0 {
		return 1, nil
	}
	if len(space) < off+ndims*sz.length {
		return 0, fmt.Errorf("dataspace message truncated (%d dims)", ndims)
	}

	n := uint64(1)
	for i := 0; i < ndims; i++ {
		n *= readUint(space[off+i*sz.length:], sz.length, sz.order)
	}
	return n, nil
}

// readLayoutData returns the first n bytes of a compact or contiguous
// dataset. Chunked storage is not handled.
func readLayoutData(r io.ReaderAt, sz h5Sizes, layout []byte, n int) ([]byte, error) {
	if len(layout) < 2 {
		return nil, errors.New("data layout message too short")
	}
	if layout[0] < 3 {
		return nil, fmt.Errorf("%w: data layout message version %d", ErrUnsupportedString, layout[0])
	}

	switch layout[1] {
	case h5LayoutCompact:
		if len(layout) < 4 {
			return nil, errors.New("compact layout message too short")
		}
		size := int(sz.order.Uint16(layout[2:4]))
		if size < n || len(layout) < 4+size {
			return nil, fmt.Errorf("compact layout holds %d bytes, need %d", size, n)
		}
		return layout[4 : 4+n], nil
	case h5LayoutContiguous:
		if len(layout) < 2+sz.offset {
			return nil, errors.New("contiguous layout message too short")
		}
		addr := readUint(layout[2:], sz.offset, sz.order)
		return readBytes(r, addr, n)
	default:
		return nil, fmt.Errorf("%w: layout class %d", ErrUnsupportedString, layout[1])
	}
}

// readGlobalHeapObject returns object index from the "GCOL" collection at
// addr. Objects are (index, refcount, reserved, size) headers followed by
// size bytes of data padded to 8; index 0 marks the free space.
func readGlobalHeapObject(r io.ReaderAt, sz h5Sizes, addr uint64, index uint32) ([]byte, error) {
	head, err := readBytes(r, addr, 8+sz.length)
	if err != nil {
		return nil, fmt.Errorf("global heap at %#x: %w", addr, err)
	}
	if !bytes.Equal(head[:4], []byte("GCOL")) {
		return nil, fmt.Errorf("global heap at %#x: bad signature %q", addr, head[:4])
	}
	size := readUint(head[8:], sz.length, sz.order)

	coll, err := readBytes(r, addr, int(size))
	if err != nil {
		return nil, fmt.Errorf("global heap at %#x: %w", addr, err)
	}

	objHead := 8 + sz.length
	for pos := 8 + sz.length; pos+objHead <= len(coll); {
		idx := sz.order.Uint16(coll[pos:])
		if idx == 0 {
			break
		}
		n := int(readUint(coll[pos+8:], sz.length, sz.order))
		start := pos + objHead
		if start+n > len(coll) {
			return nil, fmt.Errorf("global heap object %d overruns its collection", idx)
		}
		if uint32(idx) == index {
			return coll[start : start+n], nil
		}
		pos = start + align8(n)
	}
	return nil, fmt.Errorf("global heap at %#x: object %d not found", addr, index)
}

func readBytes(r io.ReaderAt, addr uint64, n int) ([]byte, error) {
	if n < 0 || n > h5MaxRead {
		return nil, fmt.Errorf("invalid read size %d", n)
	}
	buf := make([]byte, n)
	read, err := r.ReadAt(buf, int64(addr))
	if read == n {
		return buf, nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return nil, err
}

func readUint(b []byte, n int, order binary.ByteOrder) uint64 {
	switch n {
	case 2:
		return uint64(order.Uint16(b))
	case 4:
		return uint64(order.Uint32(b))
	case 8:
		return order.Uint64(b)
	}
	var v uint64
	for i := n - 1; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}

func align8(n int) int {
	return (n + 7) &^ 7
}

// trimString applies the datatype's padding rule: 0 null-terminated,
// 1 null-padded, 2 space-padded.
func trimString(b []byte, padding byte) string {
	switch padding {
	case 0:
		if i := bytes.IndexByte(b, 0); i >= 0 {
			b = b[:i]
		}
	case 1:
		b = bytes.TrimRight(b, "\x00")
	case 2:
		b = bytes.TrimRight(b, " ")
	}
	return string(b)
}
