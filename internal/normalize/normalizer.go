// Package normalize converts raw disclosure downloads into canonical UTF-8
// payloads. Inputs arrive as ZIP containers, bare HTML/XML with unknown or
// wrongly declared encodings, or opaque binaries; every input degrades to
// some safe representation rather than failing, so the ingestion pipeline
// can always proceed to the dedup/store stage.
package normalize

import (
	"archive/zip"
	"bytes"
	"errors"
	"io"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/dartwatch/disclosure-ingest/internal/textenc"
)

// Payload is the canonical result of normalization. Fallback marks bodies
// that needed lossy decoding because no strict candidate fit.
type Payload struct {
	ContentType string
	Body        []byte
	Filename    string
	Fallback    bool
}

// Content types emitted by the normalizer.
const (
	ContentTypeHTML   = "text/html; charset=UTF-8"
	ContentTypeXML    = "application/xml; charset=UTF-8"
	ContentTypeBinary = "application/octet-stream"
)

var zipSignature = []byte("PK\x03\x04")

// Poison-archive limits. A filing container holds at most a handful of
// documents; anything past these bounds is treated as hostile.
const (
	maxArchiveEntries      = 200
	maxArchiveUncompressed = 200 << 20
)

var (
	metaCharsetTagRe   = regexp.MustCompile(`(?is)<meta[^>]+charset\s*=\s*["']?[a-zA-Z0-9._-]+[^>]*>`)
	metaHTTPEquivTagRe = regexp.MustCompile(`(?is)<meta[^>]+http-equiv\s*=\s*["']content-type["'][^>]*>`)
	headOpenRe         = regexp.MustCompile(`(?is)<head[^>]*>`)
	doctypePrefixRe    = regexp.MustCompile(`(?is)\A\s*<!doctype[^>]*>\s*`)
	dupMetaUTF8Re      = regexp.MustCompile(`(?is)(<meta charset="UTF-8">\s*){2,}`)
	xmlPrologRe        = regexp.MustCompile(`(?s)\A\s*<\?xml[^>]*\?>`)
	unsafeNameRe       = regexp.MustCompile(`[^A-Za-z0-9._-]+`)
)

const (
	metaUTF8 = `<meta charset="UTF-8">`
	xmlUTF8  = `<?xml version="1.0" encoding="UTF-8"?>`
)

// Normalizer transcodes disclosure payloads to UTF-8.
type Normalizer struct {
	logger *zap.Logger
}

// New constructs a Normalizer.
func New(logger *zap.Logger) *Normalizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Normalizer{logger: logger}
}

// Normalize converts raw bytes downloaded for the given identifier into a
// (content type, body, filename) payload. It never returns an error: archive
// and decoding failures degrade to opaque passthrough representations.
func (n *Normalizer) Normalize(id string, raw []byte) Payload {
	base := SafeBaseName(id)

	if bytes.HasPrefix(raw, zipSignature) {
		return n.normalizeArchive(base, raw)
	}

	return n.normalizePlain(base, raw)
}

func (n *Normalizer) normalizePlain(base string, data []byte) Payload {
	kind := textenc.SniffKind(data)
	switch kind {
	case textenc.KindHTML, textenc.KindXML:
		body, enc := n.toUTF8(data, kind)
		n.logger.Debug("normalized document",
			zap.String("base", base),
			zap.String("kind", kind.String()),
			zap.String("source_encoding", enc),
		)
		return Payload{
			ContentType: contentTypeFor(kind),
			Body:        body,
			Filename:    base + kind.Ext(),
			Fallback:    enc == "cp949-fallback",
		}
	default:
		return Payload{ContentType: ContentTypeBinary, Body: data, Filename: base}
	}
}

type member struct {
	kind textenc.Kind
	data []byte
	name string
}

func (n *Normalizer) normalizeArchive(base string, raw []byte) Payload {
	members, err := readArchive(raw)
	if err != nil || len(members) == 0 {
		n.logger.Warn("archive processing failed, storing container as-is",
			zap.String("base", base),
			zap.Error(err),
		)
		return Payload{ContentType: ContentTypeBinary, Body: raw, Filename: base + ".zip"}
	}

	best := pickBest(members)
	n.logger.Debug("selected archive member",
		zap.String("base", base),
		zap.Int("members", len(members)),
		zap.String("picked", best.name),
		zap.String("kind", best.kind.String()),
	)

	return n.normalizePlain(base, best.data)
}

func readArchive(raw []byte) ([]member, error) {
	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, err
	}

	files := make([]*zip.File, 0, len(zr.File))
	var total uint64
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		files = append(files, f)
		total += f.UncompressedSize64
	}
	if len(files) == 0 {
		return nil, errors.New("archive has no file entries")
	}
	if len(files) > maxArchiveEntries {
		return nil, &archiveLimitError{"too many entries", len(files)}
	}
	if total > maxArchiveUncompressed {
		return nil, &archiveLimitError{"uncompressed size too large", int(total)}
	}

	members := make([]member, 0, len(files))
	for _, f := range files {
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		// Bound the copy so a lying header cannot blow past the limit.
		data, err := io.ReadAll(io.LimitReader(rc, maxArchiveUncompressed+1))
		rc.Close()
		if err != nil {
			return nil, err
		}
		if len(data) > maxArchiveUncompressed {
			return nil, &archiveLimitError{"member larger than limit", len(data)}
		}
		members = append(members, member{
			kind: textenc.SniffKind(data),
			data: data,
			name: repairMemberName(f),
		})
	}
	return members, nil
}

type archiveLimitError struct {
	reason string
	n      int
}

func (e *archiveLimitError) Error() string {
	return "archive limit exceeded: " + e.reason + " (" + strconv.Itoa(e.n) + ")"
}

// repairMemberName reinterprets legacy (non-UTF-8 flagged) member names
// through the Korean code page so log lines show readable filenames instead
// of mojibake. The repaired name is informational only; object keys derive
// from the receipt number.
func repairMemberName(f *zip.File) string {
	name := path.Base(strings.ReplaceAll(f.Name, "\\", "/"))
	if f.NonUTF8 {
		name = string(textenc.DecodeLossy([]byte(name), "cp949"))
	}
	return norm.NFC.String(strings.TrimSpace(name))
}

// pickBest selects the single archive member to keep: html beats xml beats
// binary, ties broken by larger decompressed size.
func pickBest(members []member) member {
	priority := func(k textenc.Kind) int {
		switch k {
		case textenc.KindHTML:
			return 0
		case textenc.KindXML:
			return 1
		default:
			return 2
		}
	}
	sort.SliceStable(members, func(i, j int) bool {
		pi, pj := priority(members[i].kind), priority(members[j].kind)
		if pi != pj {
			return pi < pj
		}
		return len(members[i].data) > len(members[j].data)
	})
	return members[0]
}

// toUTF8 transcodes a text document to UTF-8 and rewrites its embedded
// encoding declaration. The declared encoding is tried first, then the fixed
// fallback chain; when nothing decodes cleanly a lossy cp949 decode is the
// last resort and the data loss is logged.
func (n *Normalizer) toUTF8(data []byte, kind textenc.Kind) ([]byte, string) {
	declared, hasDeclared := textenc.DeclaredEncoding(data, kind)
	candidates := textenc.Candidates(declared, hasDeclared)

	for _, name := range candidates {
		out, err := textenc.DecodeStrict(data, name)
		if err != nil {
			continue
		}
		return rewriteDeclaration(out, kind), name
	}

	n.logger.Warn("all encoding candidates failed, lossy decode applied",
		zap.String("kind", kind.String()),
		zap.Strings("tried", candidates),
	)
	out := textenc.DecodeLossy(data, "cp949")
	return rewriteDeclaration(out, kind), "cp949-fallback"
}

func contentTypeFor(kind textenc.Kind) string {
	if kind == textenc.KindXML {
		return ContentTypeXML
	}
	return ContentTypeHTML
}

func rewriteDeclaration(data []byte, kind textenc.Kind) []byte {
	if kind == textenc.KindXML {
		return rewriteXMLDeclaration(data)
	}
	return rewriteHTMLDeclaration(data)
}

func rewriteHTMLDeclaration(data []byte) []byte {
	had := false
	if metaCharsetTagRe.Match(data) {
		had = true
		data = metaCharsetTagRe.ReplaceAll(data, []byte(metaUTF8))
	}
	if metaHTTPEquivTagRe.Match(data) {
		had = true
		data = metaHTTPEquivTagRe.ReplaceAll(data, []byte(metaUTF8))
	}

	if !had {
		if loc := headOpenRe.FindIndex(data); loc != nil {
			data = splice(data, loc[1], "\n"+metaUTF8)
		} else if loc := doctypePrefixRe.FindIndex(data); loc != nil {
			data = splice(data, loc[1], "\n"+metaUTF8+"\n")
		} else {
			data = append([]byte(metaUTF8+"\n"), data...)
		}
	}

	return dupMetaUTF8Re.ReplaceAll(data, []byte(metaUTF8))
}

func rewriteXMLDeclaration(data []byte) []byte {
	if loc := xmlPrologRe.FindIndex(data); loc != nil {
		out := make([]byte, 0, len(xmlUTF8)+len(data)-loc[1])
		out = append(out, xmlUTF8...)
		out = append(out, data[loc[1]:]...)
		return out
	}
	return append([]byte(xmlUTF8+"\n"), data...)
}

func splice(data []byte, at int, insert string) []byte {
	out := make([]byte, 0, len(data)+len(insert))
	out = append(out, data[:at]...)
	out = append(out, insert...)
	out = append(out, data[at:]...)
	return out
}

// SafeBaseName derives a filesystem- and object-key-safe ASCII base name
// from an identifier: path components stripped, unicode transliterated,
// disallowed characters collapsed to underscores.
func SafeBaseName(id string) string {
	name := path.Base(strings.ReplaceAll(strings.TrimSpace(id), "\\", "/"))
	name = strings.TrimSuffix(name, path.Ext(name))

	// NFKD then drop non-ASCII; this keeps latin letters and digits and
	// discards combining marks and Hangul outright.
	decomposed := norm.NFKD.String(name)
	var b strings.Builder
	for _, r := range decomposed {
		if r < 128 {
			b.WriteRune(r)
		}
	}
	name = unsafeNameRe.ReplaceAllString(b.String(), "_")
	name = strings.Trim(name, "._-")
	if name == "" {
		return "document"
	}
	return name
}
