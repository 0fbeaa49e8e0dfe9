package cactusplot

import (
	"encoding/json"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHexColor(t *testing.T) {
	tests := []struct {
		in   string
		want color.RGBA
		out  string
	}{
		{"#1f77b4", color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff}, "#1f77b4"},
		{"#FF000080", color.RGBA{R: 0xff, A: 0x80}, "#ff000080"},
	}

	for _, tt := range tests {
		got, err := ParseHexColor(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
		assert.Equal(t, tt.out, HexColor(got))
	}

	for _, bad := range []string{"", "red", "#12345", "#gggggg", "1f77b4aa"} {
		_, err := ParseHexColor(bad)
		assert.Error(t, err, bad)
	}
}

func TestLineStyleJSON(t *testing.T) {
	data, err := json.Marshal(Style{Label: "a", LineStyle: LineMarkersOnly, Visible: true})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"line_style":"markers"`)

	var style Style
	require.NoError(t, json.Unmarshal(data, &style))
	assert.Equal(t, LineMarkersOnly, style.LineStyle)

	var ls LineStyle
	assert.Error(t, json.Unmarshal([]byte(`"wavy"`), &ls))
	assert.Equal(t, "LineStyle(9)", LineStyle(9).String())

	parsed, err := ParseLineStyle("DASHED")
	require.NoError(t, err)
	assert.Equal(t, LineDashed, parsed)
}

func TestProvenanceDescribe(t *testing.T) {
	assert.Equal(t, "imported from a.xvg (column 2)", Imported{Path: "a.xvg", Column: 2}.Describe())
	assert.Equal(t, "derivative of ds3", Derived{ParentID: 3, Operation: "derivative"}.Describe())
	assert.Equal(t, "f(x) = x on [0, 1], 10 points", Generated{Expression: "x", Domain: Domain{XMin: 0, XMax: 1, NPoints: 10}}.Describe())
}
