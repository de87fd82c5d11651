package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wufe/catears-dashboard/internal/schema"
	"github.com/wufe/catears-dashboard/internal/wire"
)

func TestWritePreviewDefault(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, writePreview(&out, nil, "", previewOptions{useDefault: true}))

	expected, err := wire.MarshalIndent(schema.Default())
	require.NoError(t, err)
	assert.JSONEq(t, string(expected), out.String())
}

func TestWritePreviewPresets(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, writePreview(&out, nil, "", previewOptions{lights: "party", audio: "coin_collect"}))

	var doc struct {
		Lights struct {
			Left  map[string]json.RawMessage `json:"left"`
			Right map[string]json.RawMessage `json:"right"`
		} `json:"lights"`
		Speakers struct {
			Mode struct {
				Chiptune struct {
					Notes  []json.RawMessage `json:"notes"`
					Length int               `json:"length"`
				} `json:"Chiptune"`
			} `json:"mode"`
		} `json:"speakers"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &doc))
	assert.Contains(t, doc.Lights.Left, "Rainbow")
	assert.Contains(t, doc.Lights.Right, "Rainbow")
	assert.Equal(t, 2, doc.Speakers.Mode.Chiptune.Length)
	assert.Len(t, doc.Speakers.Mode.Chiptune.Notes, schema.MaxChiptuneNotes)

	err := writePreview(&out, nil, "", previewOptions{lights: "disco"})
	assert.ErrorContains(t, err, "unknown light preset")
	err = writePreview(&out, nil, "", previewOptions{audio: "kazoo"})
	assert.ErrorContains(t, err, "unknown chiptune preset")
}

func TestWritePreviewFromInput(t *testing.T) {
	cfg := schema.Default()
	cfg.Lights.Brightness = 42
	doc, err := wire.Marshal(cfg)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, writePreview(&out, bytes.NewReader(doc), "-", previewOptions{}))
	assert.JSONEq(t, string(doc), out.String())

	path := writeFile(t, "state.json", string(doc))
	out.Reset()
	require.NoError(t, writePreview(&out, nil, path, previewOptions{}))
	assert.JSONEq(t, string(doc), out.String())

	bad := strings.Replace(string(doc), `"brightness":42`, `"brightness":300`, 1)
	require.NotEqual(t, string(doc), bad)
	err = writePreview(&out, strings.NewReader(bad), "-", previewOptions{})
	assert.ErrorContains(t, err, "lights.brightness")
}
