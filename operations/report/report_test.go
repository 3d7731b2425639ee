package report

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/jgdrummond1980/KMZ-Generator/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestReport(t *testing.T) {

	r, err := NewReport("batch.kmz")
	require.NoError(t, err)

	err = r.Add(&Entry{
		Path:        "photo1.jpg",
		Status:      StatusPackaged,
		TimeSource:  "exif",
		Fingerprint: "abc123",
		ImageHashes: []*common.ImageHashRsp{
			{Approach: "avg", Hash: "a:0011"},
		},
	})

	require.NoError(t, err)

	err = r.Add(&Entry{
		Path:   "photo2.jpg",
		Status: StatusSkipped,
		Reason: "no location metadata",
	})

	require.NoError(t, err)

	body := r.Bytes()

	assert.Equal(t, "batch.kmz", gjson.GetBytes(body, "output").String())
	assert.NotEmpty(t, gjson.GetBytes(body, "created").String())

	entries := gjson.GetBytes(body, "entries").Array()
	require.Len(t, entries, 2)

	assert.Equal(t, "photo1.jpg", entries[0].Get("path").String())
	assert.Equal(t, StatusPackaged, entries[0].Get("status").String())
	assert.Equal(t, "abc123", entries[0].Get("fingerprint").String())
	assert.Equal(t, "a:0011", entries[0].Get("imagehash_avg").String())
	assert.False(t, entries[0].Get("reason").Exists())

	assert.Equal(t, StatusSkipped, entries[1].Get("status").String())
	assert.Equal(t, "no location metadata", entries[1].Get("reason").String())
}

func TestReportPublish(t *testing.T) {

	ctx := context.Background()

	r, err := NewReport("batch.kmz")
	require.NoError(t, err)

	require.NoError(t, r.Add(&Entry{Path: "photo1.jpg", Status: StatusPackaged}))

	dir := t.TempDir()

	err = r.Publish(ctx, "fs://"+dir, "batch-report.json")
	require.NoError(t, err)

	body, err := os.ReadFile(filepath.Join(dir, "batch-report.json"))
	require.NoError(t, err)

	assert.Equal(t, "batch.kmz", gjson.GetBytes(body, "output").String())
}
