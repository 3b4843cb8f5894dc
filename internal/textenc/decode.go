package textenc

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/korean"
)

// FallbackChain is the fixed candidate order tried after any declared
// encoding. Korean filings dominate the corpus, so the EUC-KR family comes
// right after UTF-8.
var FallbackChain = []string{"utf-8-sig", "utf-8", "cp949", "euc-kr", "windows-1252", "iso-8859-1"}

// utf8BOM is the UTF-8 byte order mark stripped by the utf-8-sig candidate.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func decoderFor(name string) (*encoding.Decoder, bool) {
	switch name {
	case "cp949", "euc-kr":
		// x/text's EUC-KR tables cover the Unified Hangul Code (cp949)
		// extension, so one decoder serves both spellings.
		return korean.EUCKR.NewDecoder(), true
	case "windows-1252":
		return charmap.Windows1252.NewDecoder(), true
	case "iso-8859-1":
		return charmap.ISO8859_1.NewDecoder(), true
	default:
		return nil, false
	}
}

// DecodeStrict converts data from the named encoding into UTF-8, failing if
// any byte sequence is invalid for that encoding. x/text decoders substitute
// U+FFFD rather than erroring, and no legacy encoding here can legitimately
// produce U+FFFD, so a replacement rune in the output means the input did
// not decode cleanly.
func DecodeStrict(data []byte, name string) ([]byte, error) {
	switch name {
	case "utf-8-sig":
		trimmed := bytes.TrimPrefix(data, utf8BOM)
		if !utf8.Valid(trimmed) {
			return nil, fmt.Errorf("invalid utf-8-sig byte sequence")
		}
		return trimmed, nil
	case "utf-8":
		if !utf8.Valid(data) {
			return nil, fmt.Errorf("invalid utf-8 byte sequence")
		}
		return data, nil
	}

	dec, ok := decoderFor(name)
	if !ok {
		return nil, fmt.Errorf("unsupported encoding %q", name)
	}
	out, err := dec.Bytes(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	if bytes.ContainsRune(out, utf8.RuneError) {
		return nil, fmt.Errorf("decode %s: invalid byte sequence", name)
	}
	return out, nil
}

// DecodeLossy converts data from the named encoding into UTF-8, replacing
// undecodable sequences instead of failing. Used only as the last resort
// after every strict candidate has been exhausted.
func DecodeLossy(data []byte, name string) []byte {
	if dec, ok := decoderFor(name); ok {
		if out, err := dec.Bytes(data); err == nil {
			return out
		}
	}
	return bytes.ToValidUTF8(data, []byte("�"))
}

// Candidates builds the ordered, de-duplicated encoding list to attempt:
// the declared encoding first (when present and supported), then the fixed
// fallback chain.
func Candidates(declared string, hasDeclared bool) []string {
	seen := make(map[string]struct{}, len(FallbackChain)+1)
	out := make([]string, 0, len(FallbackChain)+1)
	add := func(name string) {
		if name == "" {
			return
		}
		if _, dup := seen[name]; dup {
			return
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	if hasDeclared {
		add(declared)
	}
	for _, name := range FallbackChain {
		add(name)
	}
	return out
}
