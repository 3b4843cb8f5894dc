package dart

import (
	"archive/zip"
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockClientListsValidFilings(t *testing.T) {
	t.Parallel()

	m := NewMockClient(nil)
	resp, err := m.FetchFilingsPage(context.Background(), "20241125", 1, 100)
	require.NoError(t, err)

	assert.Equal(t, StatusOK, resp.Status)
	assert.Equal(t, 1, resp.TotalPage)
	assert.Equal(t, len(resp.List), resp.TotalCount)
	require.GreaterOrEqual(t, len(resp.List), 3)
	require.LessOrEqual(t, len(resp.List), 8)

	seen := make(map[string]struct{})
	for _, item := range resp.List {
		f, err := FilingFromMap(item)
		require.NoError(t, err, "every generated item must construct")
		assert.Equal(t, "20241125", f.ReceiptDate)
		assert.Len(t, f.ReceiptNo, 14)
		assert.True(t, strings.HasPrefix(f.ReceiptNo, "20241125"))

		_, dup := seen[f.ReceiptNo]
		assert.False(t, dup, "receipt numbers must be unique")
		seen[f.ReceiptNo] = struct{}{}
	}
}

func TestMockClientReceiptNosUniqueAcrossPolls(t *testing.T) {
	t.Parallel()

	m := NewMockClient(nil)
	seen := make(map[string]struct{})
	for i := 0; i < 20; i++ {
		resp, err := m.FetchFilingsPage(context.Background(), "20241125", 1, 100)
		require.NoError(t, err)
		for _, item := range resp.List {
			id := item["rcept_no"].(string)
			_, dup := seen[id]
			require.False(t, dup, "receipt %s issued twice", id)
			seen[id] = struct{}{}
		}
	}
}

func TestMockClientLaterPagesAreEmpty(t *testing.T) {
	t.Parallel()

	m := NewMockClient(nil)
	resp, err := m.FetchFilingsPage(context.Background(), "20241125", 2, 100)
	require.NoError(t, err)
	assert.Equal(t, StatusOK, resp.Status)
	assert.Empty(t, resp.List)
}

func TestMockClientDocumentIsViewerShapedZip(t *testing.T) {
	t.Parallel()

	m := NewMockClient(nil)
	raw, err := m.FetchDocument(context.Background(), "20241125123456")
	require.NoError(t, err)

	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	require.NoError(t, err)
	require.Len(t, zr.File, 1)
	assert.Equal(t, "20241125123456.html", zr.File[0].Name)

	rc, err := zr.File[0].Open()
	require.NoError(t, err)
	defer rc.Close()

	var body bytes.Buffer
	_, err = body.ReadFrom(rc)
	require.NoError(t, err)
	assert.Greater(t, body.Len(), 200, "mock documents must clear the size floor")
	assert.Contains(t, body.String(), "20241125123456")
	assert.Contains(t, body.String(), `<meta charset="UTF-8">`)
}
