package normalize

import (
	"archive/zip"
	"bytes"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/korean"
)

func encodeEUCKR(t *testing.T, s string) []byte {
	t.Helper()
	out, err := korean.EUCKR.NewEncoder().Bytes([]byte(s))
	require.NoError(t, err)
	return out
}

func buildZip(t *testing.T, entries map[string][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, data := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestNormalizeIsIdempotent(t *testing.T) {
	t.Parallel()

	n := New(zap.NewNop())
	raw := encodeEUCKR(t, `<html><head><meta charset="euc-kr"></head><body>공시</body></html>`)

	first := n.Normalize("20241125000001", raw)
	second := n.Normalize("20241125000001", raw)

	assert.Equal(t, first.ContentType, second.ContentType)
	assert.Equal(t, first.Filename, second.Filename)
	assert.True(t, bytes.Equal(first.Body, second.Body))
}

func TestNormalizeCP949HTMLRoundTrip(t *testing.T) {
	t.Parallel()

	n := New(zap.NewNop())
	src := `<html><head><meta http-equiv="Content-Type" content="text/html; charset=euc-kr"></head><body>삼성전자 사업보고서</body></html>`
	raw := encodeEUCKR(t, src)

	got := n.Normalize("20241125000001", raw)

	assert.Equal(t, ContentTypeHTML, got.ContentType)
	assert.Equal(t, "20241125000001.html", got.Filename)
	assert.True(t, utf8.Valid(got.Body), "output must be valid UTF-8")
	assert.Contains(t, string(got.Body), "삼성전자 사업보고서")
	assert.Equal(t, 1, strings.Count(string(got.Body), `<meta charset="UTF-8">`))
	assert.NotContains(t, strings.ToLower(string(got.Body)), "euc-kr")
}

func TestNormalizeArchiveMemberPriority(t *testing.T) {
	t.Parallel()

	n := New(zap.NewNop())
	html := []byte("<html><body>report</body></html>")
	blob := bytes.Repeat([]byte{0x01, 0x02}, 4096) // much larger than the html member

	// Entry order must not matter.
	for _, entries := range []map[string][]byte{
		{"a.bin": blob, "b.html": html},
		{"z.html": html, "a.bin": blob},
	} {
		got := n.Normalize("20241125000001", buildZip(t, entries))
		assert.Equal(t, ContentTypeHTML, got.ContentType)
		assert.Equal(t, "20241125000001.html", got.Filename)
		assert.Contains(t, string(got.Body), "report")
	}
}

func TestNormalizeArchiveSizeTieBreak(t *testing.T) {
	t.Parallel()

	n := New(zap.NewNop())
	small := []byte("<html><body>small</body></html>")
	large := []byte("<html><body>" + strings.Repeat("large ", 100) + "</body></html>")

	got := n.Normalize("r", buildZip(t, map[string][]byte{"s.html": small, "l.html": large}))
	assert.Contains(t, string(got.Body), "large")
}

func TestNormalizeArchiveXMLScenario(t *testing.T) {
	t.Parallel()

	n := New(zap.NewNop())
	xmlDoc := encodeEUCKR(t, `<?xml version="1.0" encoding="euc-kr"?><DOCUMENT><COMPANY>삼성전자</COMPANY></DOCUMENT>`)
	raw := buildZip(t, map[string][]byte{"20241125000001.xml": xmlDoc})

	got := n.Normalize("20241125000001", raw)

	assert.Equal(t, ContentTypeXML, got.ContentType)
	assert.Equal(t, "20241125000001.xml", got.Filename)
	assert.True(t, utf8.Valid(got.Body))
	assert.True(t, bytes.HasPrefix(got.Body, []byte(`<?xml version="1.0" encoding="UTF-8"?>`)))
	assert.Contains(t, string(got.Body), "삼성전자")
}

func TestNormalizeCorruptArchiveDegrades(t *testing.T) {
	t.Parallel()

	n := New(zap.NewNop())
	raw := append([]byte("PK\x03\x04"), []byte("definitely not a zip")...)

	got := n.Normalize("20241125000001", raw)

	assert.Equal(t, ContentTypeBinary, got.ContentType)
	assert.Equal(t, "20241125000001.zip", got.Filename)
	assert.True(t, bytes.Equal(raw, got.Body))
}

func TestNormalizePoisonArchiveDegrades(t *testing.T) {
	t.Parallel()

	entries := make(map[string][]byte, maxArchiveEntries+1)
	for i := 0; i <= maxArchiveEntries; i++ {
		entries[fmt.Sprintf("f%03d.txt", i)] = []byte("x")
	}
	raw := buildZip(t, entries)

	n := New(zap.NewNop())
	got := n.Normalize("r", raw)

	assert.Equal(t, ContentTypeBinary, got.ContentType)
	assert.Equal(t, "r.zip", got.Filename)
}

func TestNormalizeBinaryPassthrough(t *testing.T) {
	t.Parallel()

	n := New(zap.NewNop())
	raw := []byte{0x89, 0x50, 0x4E, 0x47, 0x00, 0x01}

	got := n.Normalize("20241125000001", raw)

	assert.Equal(t, ContentTypeBinary, got.ContentType)
	assert.Equal(t, "20241125000001", got.Filename)
	assert.True(t, bytes.Equal(raw, got.Body))
}

func TestNormalizeUndeclaredLegacyBytes(t *testing.T) {
	t.Parallel()

	// No declared encoding and bytes invalid as UTF-8 and EUC-KR; the
	// fallback chain must still land on some total decode so the output is
	// always valid UTF-8 with a UTF-8 declaration.
	raw := []byte("<html><head></head><body>\xb0\xa1\xff</body></html>")

	n := New(zap.NewNop())
	got := n.Normalize("r", raw)

	assert.Equal(t, ContentTypeHTML, got.ContentType)
	assert.True(t, utf8.Valid(got.Body))
	assert.Contains(t, string(got.Body), `<meta charset="UTF-8">`)
}

func TestRewriteHTMLDeclarationInsertion(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{
			"after head tag",
			`<html><head><title>t</title></head></html>`,
			`<html><head>` + "\n" + metaUTF8,
		},
		{
			"after doctype when no head",
			`<!DOCTYPE html><p>x</p>`,
			`<!DOCTYPE html>` + "\n" + metaUTF8,
		},
		{
			"prepended when nothing to anchor on",
			`<p>x</p>`,
			metaUTF8 + "\n<p>x</p>",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := string(rewriteHTMLDeclaration([]byte(tc.in)))
			assert.Contains(t, got, tc.want)
			assert.Equal(t, 1, strings.Count(got, metaUTF8))
		})
	}
}

func TestRewriteHTMLDeclarationCollapsesDuplicates(t *testing.T) {
	t.Parallel()

	in := `<head><meta charset="euc-kr"> <meta charset="cp949"></head>`
	got := string(rewriteHTMLDeclaration([]byte(in)))
	assert.Equal(t, 1, strings.Count(got, metaUTF8))
}

func TestRewriteXMLDeclaration(t *testing.T) {
	t.Parallel()

	got := string(rewriteXMLDeclaration([]byte(`<?xml version="1.0" encoding="euc-kr" standalone="yes"?><r/>`)))
	assert.Equal(t, xmlUTF8+"<r/>", got)

	got = string(rewriteXMLDeclaration([]byte(`<r/>`)))
	assert.Equal(t, xmlUTF8+"\n<r/>", got)
}

func TestSafeBaseName(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{"20241125000001", "20241125000001"},
		{"../../etc/passwd", "passwd"},
		{"dir\\file.xml", "file"},
		{"공시서류", "document"},
		{"report (final) v2", "report_final_v2"},
		{"  .._-  ", "document"},
		{"café.html", "cafe"},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, SafeBaseName(tc.in), "input %q", tc.in)
	}
}
