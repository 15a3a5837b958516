package vectors

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var npyMagic = []byte("\x93NUMPY")

// ErrBadNpy is returned for arrays this package cannot read.
var ErrBadNpy = errors.New("unsupported npy file")

// encodeNpy renders a row-major little-endian float32 matrix as NumPy
// format version 1.0. An empty matrix is written with shape (0, 1).
func encodeNpy(rows [][]float32) ([]byte, error) {
	n := len(rows)
	d := 1
	if n > 0 {
		d = len(rows[0])
		for i, r := range rows {
			if len(r) != d {
				return nil, fmt.Errorf("row %d has dimension %d, want %d", i, len(r), d)
			}
		}
	}

	header := fmt.Sprintf("{'descr': '<f4', 'fortran_order': False, 'shape': (%d, %d), }", n, d)
	// Magic, version and length prefix take 10 bytes; pad so data starts on a 64-byte boundary.
	total := 10 + len(header) + 1
	if rem := total % 64; rem != 0 {
		header += strings.Repeat(" ", 64-rem)
	}
	header += "\n"

	var buf bytes.Buffer
	buf.Grow(10 + len(header) + n*d*4)
	buf.Write(npyMagic)
	buf.Write([]byte{1, 0})
	_ = binary.Write(&buf, binary.LittleEndian, uint16(len(header)))
	buf.WriteString(header)

	word := make([]byte, 4)
	for _, r := range rows {
		for _, v := range r {
			binary.LittleEndian.PutUint32(word, math.Float32bits(v))
			buf.Write(word)
		}
	}
	return buf.Bytes(), nil
}

var (
	descrRe = regexp.MustCompile(`'descr'\s*:\s*'([^']+)'`)
	orderRe = regexp.MustCompile(`'fortran_order'\s*:\s*(True|False)`)
	shapeRe = regexp.MustCompile(`'shape'\s*:\s*\(\s*(\d+)\s*,\s*(\d+)\s*,?\s*\)`)
)

// decodeNpy reads a two-dimensional C-ordered float32 or float64 array of
// size bytes. The declared shape must fit in the bytes after the header.
func decodeNpy(r io.Reader, size int64) ([][]float32, int, error) {
	br := bufio.NewReader(r)

	prefix := make([]byte, 8)
	if _, err := io.ReadFull(br, prefix); err != nil {
		return nil, 0, fmt.Errorf("read npy prefix: %w", err)
	}
	if !bytes.Equal(prefix[:6], npyMagic) {
		return nil, 0, fmt.Errorf("%w: bad magic", ErrBadNpy)
	}

	var headerLen, prefixLen int64
	switch prefix[6] {
	case 1:
		var l uint16
		if err := binary.Read(br, binary.LittleEndian, &l); err != nil {
			return nil, 0, fmt.Errorf("read npy header length: %w", err)
		}
		headerLen, prefixLen = int64(l), 10
	case 2, 3:
		var l uint32
		if err := binary.Read(br, binary.LittleEndian, &l); err != nil {
			return nil, 0, fmt.Errorf("read npy header length: %w", err)
		}
		headerLen, prefixLen = int64(l), 12
	default:
		return nil, 0, fmt.Errorf("%w: version %d", ErrBadNpy, prefix[6])
	}

	remaining := size - prefixLen - headerLen
	if remaining < 0 {
		return nil, 0, fmt.Errorf("%w: header length %d exceeds file", ErrBadNpy, headerLen)
	}
	header := make([]byte, headerLen)
	if _, err := io.ReadFull(br, header); err != nil {
		return nil, 0, fmt.Errorf("read npy header: %w", err)
	}

	descr := descrRe.FindSubmatch(header)
	order := orderRe.FindSubmatch(header)
	shape := shapeRe.FindSubmatch(header)
	if descr == nil || order == nil || shape == nil {
		return nil, 0, fmt.Errorf("%w: header %q", ErrBadNpy, header)
	}
	if string(order[1]) == "True" {
		return nil, 0, fmt.Errorf("%w: fortran order", ErrBadNpy)
	}
	n, nerr := strconv.Atoi(string(shape[1]))
	d, derr := strconv.Atoi(string(shape[2]))
	if nerr != nil || derr != nil || n < 0 || d < 0 {
		return nil, 0, fmt.Errorf("%w: shape (%s, %s)", ErrBadNpy, shape[1], shape[2])
	}

	var width int
	switch string(descr[1]) {
	case "<f4":
		width = 4
	case "<f8":
		width = 8
	default:
		return nil, 0, fmt.Errorf("%w: dtype %s", ErrBadNpy, descr[1])
	}

	// Checked before allocating; a shape larger than the data is corrupt.
	if !fits(int64(n), int64(d), int64(width), remaining) {
		return nil, 0, fmt.Errorf("%w: shape (%d, %d) needs more than %d data bytes", ErrBadNpy, n, d, remaining)
	}

	rows := make([][]float32, n)
	word := make([]byte, width)
	for i := range rows {
		row := make([]float32, d)
		for j := range row {
			if _, err := io.ReadFull(br, word); err != nil {
				return nil, 0, fmt.Errorf("read npy row %d: %w", i, err)
			}
			if width == 4 {
				row[j] = math.Float32frombits(binary.LittleEndian.Uint32(word))
			} else {
				row[j] = float32(math.Float64frombits(binary.LittleEndian.Uint64(word)))
			}
		}
		rows[i] = row
	}
	return rows, d, nil
}

// fits reports whether n*d*width is at most limit without overflowing.
func fits(n, d, width, limit int64) bool {
	if n == 0 || d == 0 {
		return true
	}
	if d > limit/width {
		return false
	}
	return n <= limit/(d*width)
}
