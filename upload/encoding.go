// Package upload prepares local documents for indexing and transfers them
// to the server.
//
// Information Hiding:
// - Byte-level encoding detection and the fallback chain
// - Line terminator normalization
// - Multipart packaging, progress throttling and timeout handling
package upload

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"unicode/utf16"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/unicode"
)

// Encoding names the source encoding a text file was decoded from.
type Encoding string

const (
	EncodingUTF8    Encoding = "utf-8"
	EncodingUTF8BOM Encoding = "utf-8-bom"
	EncodingUTF16LE Encoding = "utf-16le"
	EncodingUTF16BE Encoding = "utf-16be"
	// EncodingGB18030Fallback is a best-effort guess used only when the
	// bytes are not valid UTF-8. GB18030 is a superset of GBK and GB2312.
	EncodingGB18030Fallback Encoding = "gb18030"
	// EncodingBinary marks a file that was passed through untouched.
	EncodingBinary Encoding = "binary"
)

// ErrUndetectableEncoding is returned when no supported encoding decodes
// the file cleanly.
var ErrUndetectableEncoding = errors.New("undetectable text encoding")

const encodingHint = "save the file as UTF-8, UTF-8 with BOM, UTF-16 or GB18030"

var (
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
)

// Result is a normalized text payload.
type Result struct {
	Data     []byte
	Encoding Encoding
}

// Normalize detects the encoding of data, decodes it, folds CRLF and lone
// CR into LF and returns UTF-8 without a byte-order mark.
func Normalize(data []byte) (Result, error) {
	text, enc, err := decode(data)
	if err != nil {
		return Result{}, err
	}
	return Result{Data: normalizeNewlines(text), Encoding: enc}, nil
}

func decode(data []byte) ([]byte, Encoding, error) {
	switch {
	case bytes.HasPrefix(data, bomUTF16LE):
		out, err := decodeUTF16(data[len(bomUTF16LE):], binary.LittleEndian, unicode.LittleEndian)
		if err != nil {
			return nil, "", fmt.Errorf("%w: utf-16le: %v; %s", ErrUndetectableEncoding, err, encodingHint)
		}
		return out, EncodingUTF16LE, nil

	case bytes.HasPrefix(data, bomUTF16BE):
		out, err := decodeUTF16(data[len(bomUTF16BE):], binary.BigEndian, unicode.BigEndian)
		if err != nil {
			return nil, "", fmt.Errorf("%w: utf-16be: %v; %s", ErrUndetectableEncoding, err, encodingHint)
		}
		return out, EncodingUTF16BE, nil

	case bytes.HasPrefix(data, bomUTF8):
		body := data[len(bomUTF8):]
		if !utf8.Valid(body) {
			return nil, "", fmt.Errorf("%w: invalid UTF-8 after byte-order mark; %s", ErrUndetectableEncoding, encodingHint)
		}
		return bytes.Clone(body), EncodingUTF8BOM, nil
	}

	if utf8.Valid(data) {
		return bytes.Clone(data), EncodingUTF8, nil
	}

	out, err := decodeLegacy(simplifiedchinese.GB18030, data)
	if err != nil {
		return nil, "", fmt.Errorf("%w: not UTF-8 and not GB18030 (%v); %s", ErrUndetectableEncoding, err, encodingHint)
	}
	return out, EncodingGB18030Fallback, nil
}

// decodeUTF16 rejects odd lengths and unpaired surrogates before handing
// the bytes to the x/text decoder, which would otherwise substitute U+FFFD.
func decodeUTF16(body []byte, order binary.ByteOrder, endian unicode.Endianness) ([]byte, error) {
	if len(body)%2 != 0 {
		return nil, fmt.Errorf("odd byte length %d", len(body))
	}
	for i := 0; i < len(body); i += 2 {
		u := rune(order.Uint16(body[i:]))
		if !utf16.IsSurrogate(u) {
			continue
		}
		if u >= 0xDC00 {
			return nil, fmt.Errorf("unpaired low surrogate at byte %d", i)
		}
		if i+2 >= len(body) {
			return nil, fmt.Errorf("truncated surrogate pair at byte %d", i)
		}
		lo := rune(order.Uint16(body[i+2:]))
		if lo < 0xDC00 || lo > 0xDFFF {
			return nil, fmt.Errorf("unpaired high surrogate at byte %d", i)
		}
		i += 2
	}
	return unicode.UTF16(endian, unicode.IgnoreBOM).NewDecoder().Bytes(body)
}

// decodeLegacy treats any substituted replacement character as a failed
// guess.
func decodeLegacy(enc encoding.Encoding, data []byte) ([]byte, error) {
	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return nil, err
	}
	if bytes.ContainsRune(out, utf8.RuneError) {
		return nil, errors.New("invalid byte sequence")
	}
	return out, nil
}

func normalizeNewlines(b []byte) []byte {
	b = bytes.ReplaceAll(b, []byte("\r\n"), []byte("\n"))
	return bytes.ReplaceAll(b, []byte("\r"), []byte("\n"))
}
