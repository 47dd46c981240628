package box

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/handiism/naip-downloader/internal/box/boxtest"
	"github.com/handiism/naip-downloader/internal/model"
)

func TestParsePage(t *testing.T) {
	tests := []struct {
		name          string
		html          string
		wantItems     int
		wantPageCount int
		wantPageIndex int
		wantErr       bool
	}{
		{
			name: "folders and files",
			html: `<html><body><script>Box.postStreamData = {"/app-api/enduserapp/shared-folder":{"items":[
				{"type":"folder","id":123,"name":"2021","filesCount":0},
				{"type":"file","id":"456","name":"ms_m_2021.zip"}
			],"pageCount":3,"pageNumber":2}};</script></body></html>`,
			wantItems:     2,
			wantPageCount: 3,
			wantPageIndex: 2,
		},
		{
			name: "only the last script is read",
			html: `<html><head><script>Box.postStreamData = {"bogus":true};</script></head>
				<body><script>Box.postStreamData = {"/app-api/enduserapp/shared-folder":{"items":[],"pageCount":1}};</script></body></html>`,
			wantItems:     0,
			wantPageCount: 1,
		},
		{
			name: "page count falls back to top level",
			html: `<script>Box.postStreamData = {"pageCount":4,"/app-api/enduserapp/shared-folder":{"items":[]}};</script>`,
			wantItems:     0,
			wantPageCount: 4,
		},
		{
			name:          "page count defaults to one",
			html:          `<script>Box.postStreamData = {"/app-api/enduserapp/shared-folder":{"items":[]}};</script>`,
			wantItems:     0,
			wantPageCount: 1,
		},
		{
			name: "web links are dropped",
			html: `<script>Box.postStreamData = {"/app-api/enduserapp/shared-folder":{"items":[
				{"type":"web_link","id":1,"name":"docs"},
				{"type":"file","id":2,"name":"a.zip"}
			]}};</script>`,
			wantItems:     1,
			wantPageCount: 1,
		},
		{
			name:    "no script",
			html:    `<html><body><p>maintenance</p></body></html>`,
			wantErr: true,
		},
		{
			name:    "no marker in last script",
			html:    `<script>Box.postStreamData = {};</script><script>console.log("x");</script>`,
			wantErr: true,
		},
		{
			name:    "invalid json",
			html:    `<script>Box.postStreamData = {"/app-api/enduserapp/shared-folder": {items: [}};</script>`,
			wantErr: true,
		},
		{
			name:    "missing namespaced key",
			html:    `<script>Box.postStreamData = {"/app-api/other":{"items":[]}};</script>`,
			wantErr: true,
		},
		{
			name:    "folder without filesCount",
			html:    `<script>Box.postStreamData = {"/app-api/enduserapp/shared-folder":{"items":[{"type":"folder","id":1,"name":"MS"}]}};</script>`,
			wantErr: true,
		},
		{
			name:    "file without id",
			html:    `<script>Box.postStreamData = {"/app-api/enduserapp/shared-folder":{"items":[{"type":"file","name":"a.zip"}]}};</script>`,
			wantErr: true,
		},
		{
			name:    "item without type",
			html:    `<script>Box.postStreamData = {"/app-api/enduserapp/shared-folder":{"items":[{"id":1,"name":"a.zip"}]}};</script>`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			listing, err := ParsePage([]byte(tt.html))

			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, model.ErrParse), "want ParseError, got %v", err)
				var pe *model.ParseError
				assert.ErrorAs(t, err, &pe)
				return
			}

			require.NoError(t, err)
			assert.Len(t, listing.Items, tt.wantItems)
			assert.Equal(t, tt.wantPageCount, listing.PageCount)
			assert.Equal(t, tt.wantPageIndex, listing.PageIndex)
		})
	}
}

func TestParsePage_ItemFields(t *testing.T) {
	html := `<script>Box.postStreamData = {"/app-api/enduserapp/shared-folder":{"items":[
		{"type":"folder","id":98765432101,"name":"ms_m_2021","filesCount":12,"parentFolderName":"MS"},
		{"type":"file","id":"55","name":"ms_m_2021.zip"}
	],"pageCount":1,"pageNumber":1}};</script>`

	listing, err := ParsePage([]byte(html))
	require.NoError(t, err)
	require.Len(t, listing.Items, 2)

	folder := listing.Items[0]
	assert.True(t, folder.IsFolder())
	assert.Equal(t, "98765432101", folder.ID)
	assert.Equal(t, "ms_m_2021", folder.Name)
	assert.Equal(t, 12, folder.FilesCount)
	assert.Equal(t, "MS", folder.ParentFolderName)

	file := listing.Items[1]
	assert.True(t, file.IsFile())
	assert.Equal(t, "55", file.ID)
}

func TestParsePage_PartitionsRenderedFixture(t *testing.T) {
	entries := []boxtest.Entry{
		{Type: "file", ID: "1", Name: "a.zip"},
		{Type: "file", ID: "2", Name: "b.zip"},
		{Type: "folder", ID: "3", Name: "ms_c_2021", FilesCount: 2},
		{Type: "folder", ID: "4", Name: "ms_n_2021", FilesCount: 2},
		{Type: "file", ID: "5", Name: "c.zip"},
	}

	listing, err := ParsePage(boxtest.RenderPage(entries, 1, 1))
	require.NoError(t, err)
	require.Len(t, listing.Items, len(entries))

	folders := listing.Folders()
	files := listing.Files()
	assert.Len(t, folders, 2)
	assert.Len(t, files, 3)

	seen := make(map[string]bool)
	for _, f := range folders {
		seen[f.ID] = true
	}
	for _, f := range files {
		assert.False(t, seen[f.ID], "file %s also listed as folder", f.ID)
		seen[f.ID] = true
	}
	assert.Len(t, seen, len(entries))
}
