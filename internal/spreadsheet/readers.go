package spreadsheet

// readers.go prepares uploaded CSV bytes for encoding/csv.
//
// Spreadsheets saved on Windows arrive with a UTF-8 BOM or in Windows-1252
// instead of UTF-8. Decode sniffs the first block of the file:
//
//   - a UTF-8 BOM is dropped
//   - valid UTF-8 is passed through utf8Sanitizer, which replaces any
//     later invalid byte with '?'
//   - anything else is decoded as Windows-1252

import (
	"bufio"
	"bytes"
	"io"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

const sniffSize = 64 << 10

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Decode returns a UTF-8 reader over r.
func Decode(r io.Reader) io.Reader {
	br := bufio.NewReaderSize(r, sniffSize)
	head, _ := br.Peek(sniffSize)

	hasBOM := bytes.HasPrefix(head, utf8BOM)
	body := head
	if hasBOM {
		body = head[len(utf8BOM):]
	}
	isUTF8 := hasBOM || utf8.Valid(body[:len(body)-incompleteTrailingBytes(body)])

	if hasBOM {
		_, _ = br.Discard(len(utf8BOM))
	}
	if isUTF8 {
		return newUTF8Sanitizer(br)
	}
	return transform.NewReader(br, charmap.Windows1252.NewDecoder())
}

// utf8Sanitizer replaces invalid UTF-8 bytes with '?' while streaming.
// Multi-byte sequences split across reads are carried over in pending.
type utf8Sanitizer struct {
	reader  io.Reader
	pending []byte
}

func newUTF8Sanitizer(r io.Reader) *utf8Sanitizer {
	return &utf8Sanitizer{
		reader:  r,
		pending: make([]byte, 0, utf8.UTFMax),
	}
}

func (s *utf8Sanitizer) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	offset := 0
	if len(s.pending) > 0 {
		offset = copy(p, s.pending)
		s.pending = s.pending[:0]
	}

	n, err := s.reader.Read(p[offset:])
	n += offset
	if n == 0 {
		return 0, err
	}

	if isAllASCII(p[:n]) {
		return n, err
	}
	return s.sanitize(p[:n], err == io.EOF), err
}

func isAllASCII(data []byte) bool {
	for _, b := range data {
		if b >= 0x80 {
			return false
		}
	}
	return true
}

// sanitize rewrites data in place and returns the number of bytes to hand
// out. Unless atEOF, an incomplete trailing sequence is kept for the next
// Read.
func (s *utf8Sanitizer) sanitize(data []byte, atEOF bool) int {
	if utf8.Valid(data) {
		if !atEOF {
			if trailing := incompleteTrailingBytes(data); trailing > 0 {
				s.pending = append(s.pending, data[len(data)-trailing:]...)
				return len(data) - trailing
			}
		}
		return len(data)
	}

	write := 0
	for read := 0; read < len(data); {
		r, size := utf8.DecodeRune(data[read:])

		if !atEOF && read+size >= len(data) && isIncompleteRune(data[read:]) {
			s.pending = append(s.pending, data[read:]...)
			return write
		}

		if r == utf8.RuneError && size == 1 {
			// '?' keeps the output no longer than the input.
			data[write] = '?'
			write++
			read++
			continue
		}
		copy(data[write:], data[read:read+size])
		write += size
		read += size
	}
	return write
}

// incompleteTrailingBytes returns how many bytes at the end of data start a
// multi-byte sequence that is not complete yet.
func incompleteTrailingBytes(data []byte) int {
	for i := 1; i <= 3 && i <= len(data); i++ {
		b := data[len(data)-i]
		if b >= 0xC0 {
			if i < runeLen(b) {
				return i
			}
			return 0
		}
		if b&0xC0 != 0x80 {
			return 0
		}
	}
	return 0
}

func runeLen(b byte) int {
	switch {
	case b < 0x80:
		return 1
	case b < 0xC0:
		return 0
	case b < 0xE0:
		return 2
	case b < 0xF0:
		return 3
	default:
		return 4
	}
}

func isIncompleteRune(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	return runeLen(data[0]) > len(data)
}

// sniffDelimiter picks ';' or ',' by counting both in the first line.
// Spreadsheets exported with a Spanish locale use ';'.
func sniffDelimiter(br *bufio.Reader) rune {
	head, _ := br.Peek(br.Size())
	if i := bytes.IndexByte(head, '\n'); i >= 0 {
		head = head[:i]
	}
	if bytes.Count(head, []byte{';'}) > bytes.Count(head, []byte{','}) {
		return ';'
	}
	return ','
}
