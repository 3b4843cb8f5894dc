// Package textenc detects document kinds and character encodings for
// disclosure payloads. The provider serves a mix of HTML, XML and binary
// documents whose declared encodings are frequently absent or wrong, so
// detection works on raw bytes and encoding names are canonicalized through
// a fixed alias table before any decoding is attempted.
package textenc

import (
	"bytes"
	"regexp"
	"strings"
)

// Kind classifies a payload by its detected document type.
type Kind int

const (
	// KindBinary is any payload that is neither HTML nor XML.
	KindBinary Kind = iota
	// KindHTML is an HTML document.
	KindHTML
	// KindXML is an XML document.
	KindXML
)

// String returns the lowercase kind name, matching object key extensions.
func (k Kind) String() string {
	switch k {
	case KindHTML:
		return "html"
	case KindXML:
		return "xml"
	default:
		return "bin"
	}
}

// Ext returns the filename extension for the kind, empty for binary.
func (k Kind) Ext() string {
	switch k {
	case KindHTML:
		return ".html"
	case KindXML:
		return ".xml"
	default:
		return ""
	}
}

// headWindow bounds how much of a payload is inspected for detection.
// Filings can be tens of megabytes; everything we need to see appears
// well inside the first 64KB.
const headWindow = 64 * 1024

var (
	htmlTagRe     = regexp.MustCompile(`(?is)<html[^>]*>`)
	htmlDoctypeRe = regexp.MustCompile(`(?is)<!doctype\s+html`)
	headTagRe     = regexp.MustCompile(`(?is)<head[^>]*>`)
	metaAnyRe     = regexp.MustCompile(`(?is)<meta[^>]+(?:charset\s*=|http-equiv\s*=\s*["']content-type["'][^>]*content\s*=\s*["']text/html;\s*charset=)`)

	metaCharsetRe   = regexp.MustCompile(`(?is)<meta[^>]+charset\s*=\s*["']?([a-zA-Z0-9._-]+)`)
	metaHTTPEquivRe = regexp.MustCompile(`(?is)<meta[^>]+http-equiv\s*=\s*["']content-type["'][^>]*content\s*=\s*["']text/html;\s*charset=([a-zA-Z0-9._-]+)`)
	xmlDeclEncRe    = regexp.MustCompile(`(?is)<\?xml[^>]+encoding\s*=\s*["']?([a-zA-Z0-9._-]+)`)
)

// encodingAliases collapses the provider's inconsistent encoding names onto
// canonical ones. Keys are matched after lowercasing and replacing '_' with
// '-', so legacy Korean code page spellings all land on cp949.
var encodingAliases = map[string]string{
	"ks-c-5601-1987": "cp949",
	"ks-c-5601":      "cp949",
	"x-windows-949":  "cp949",
	"windows-949":    "cp949",
	"euckr":          "euc-kr",
	"utf8":           "utf-8",
}

// CanonicalEncoding normalizes an encoding name declared inside a document.
// Empty input yields an empty result.
func CanonicalEncoding(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return ""
	}
	name = strings.ReplaceAll(name, "_", "-")
	if canonical, ok := encodingAliases[name]; ok {
		return canonical
	}
	return name
}

// SniffKind inspects a bounded head window of the payload and classifies it
// as HTML, XML or binary. It never fails: payloads that match no known
// pattern are binary. HTML markers are searched anywhere in the window, not
// just at the start, because real filings bury their <meta> tags behind
// leading whitespace and comments.
func SniffKind(data []byte) Kind {
	head := data
	if len(head) > headWindow {
		head = head[:headWindow]
	}

	// Skip byte order marks before looking at the leading bytes.
	switch {
	case bytes.HasPrefix(head, []byte{0xEF, 0xBB, 0xBF}):
		head = head[3:]
	case bytes.HasPrefix(head, []byte{0xFF, 0xFE}), bytes.HasPrefix(head, []byte{0xFE, 0xFF}):
		head = head[2:]
	}

	if htmlTagRe.Match(head) || htmlDoctypeRe.Match(head) || metaAnyRe.Match(head) || headTagRe.Match(head) {
		return KindHTML
	}

	if bytes.HasPrefix(bytes.TrimLeft(head, " \t\r\n"), []byte("<?xml")) {
		return KindXML
	}

	return KindBinary
}

// DeclaredEncoding extracts the encoding a document claims for itself: the
// charset meta attribute or http-equiv content-type for HTML, the prolog
// encoding attribute for XML. The returned name is canonicalized; ok is
// false when no declaration exists.
func DeclaredEncoding(data []byte, kind Kind) (string, bool) {
	head := data
	if len(head) > headWindow {
		head = head[:headWindow]
	}

	switch kind {
	case KindHTML:
		if m := metaCharsetRe.FindSubmatch(head); m != nil {
			return CanonicalEncoding(string(m[1])), true
		}
		if m := metaHTTPEquivRe.FindSubmatch(head); m != nil {
			return CanonicalEncoding(string(m[1])), true
		}
	case KindXML:
		if m := xmlDeclEncRe.FindSubmatch(head); m != nil {
			return CanonicalEncoding(string(m[1])), true
		}
	}
	return "", false
}
