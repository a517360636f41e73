package codec

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const yamlSnapshot = `
source: fixture
devices:
  - id: dev-a
    name: nycmesh-101-af60
    category: wireless
    type: airMax
    createdAt: 2023-02-03T00:00:00Z
  - id: dev-b
    name: nycmesh-202-lap120-west
    category: wireless
    type: airMax
    model: LAP-120
    wirelessMode: ap-ptmp
links:
  - id: link-1
    fromDeviceId: dev-a
    toDeviceId: dev-b
    type: wireless
    frequency: 60480
`

func TestYAMLParse(t *testing.T) {
	snapshot, err := NewYAMLCodec().Parse(strings.NewReader(yamlSnapshot))
	require.NoError(t, err)

	assert.Equal(t, "fixture", snapshot.Source)
	require.Len(t, snapshot.Devices, 2)
	require.NotNil(t, snapshot.Devices[0].CreatedAt)
	assert.True(t, snapshot.Devices[0].CreatedAt.Equal(time.Date(2023, 2, 3, 0, 0, 0, 0, time.UTC)))
	assert.True(t, snapshot.Devices[1].IsBroadcast())

	require.Len(t, snapshot.Links, 1)
	require.NotNil(t, snapshot.Links[0].Frequency)
	assert.Equal(t, 60480.0, *snapshot.Links[0].Frequency)
}

func TestJSONRoundTripMatchesYAML(t *testing.T) {
	fromYAML, err := NewYAMLCodec().Parse(strings.NewReader(yamlSnapshot))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, NewJSONCodec().Export(fromYAML, &buf))
	assert.Contains(t, buf.String(), `"fromDeviceId": "dev-a"`)

	fromJSON, err := NewJSONCodec().Parse(&buf)
	require.NoError(t, err)
	require.Len(t, fromJSON.Devices, len(fromYAML.Devices))
	for i := range fromYAML.Devices {
		assert.Equal(t, fromYAML.Devices[i].ID, fromJSON.Devices[i].ID)
		assert.Equal(t, fromYAML.Devices[i].WirelessMode, fromJSON.Devices[i].WirelessMode)
	}
	require.NotNil(t, fromJSON.Devices[0].CreatedAt)
	assert.True(t, fromYAML.Devices[0].CreatedAt.Equal(*fromJSON.Devices[0].CreatedAt))
	assert.Equal(t, fromYAML.Links, fromJSON.Links)
}

func TestParseRejectsUnknownFields(t *testing.T) {
	_, err := NewJSONCodec().Parse(strings.NewReader(`{"devices": [], "nodes": []}`))
	assert.Error(t, err)

	_, err = NewYAMLCodec().Parse(strings.NewReader("nodes: []\n"))
	assert.Error(t, err)
}

func TestYAMLParseEmptyDocument(t *testing.T) {
	snapshot, err := NewYAMLCodec().Parse(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, snapshot.Devices)
}

func TestForPath(t *testing.T) {
	tests := []struct {
		path    string
		want    string
		wantErr bool
	}{
		{path: "snapshot.json", want: "json"},
		{path: "snapshot.yaml", want: "yaml"},
		{path: "snapshot.YML", want: "yaml"},
		{path: "snapshot", want: "json"},
		{path: "snapshot.csv", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			c, err := ForPath(tt.path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, c.Format())
		})
	}
}
