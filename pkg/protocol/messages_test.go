package protocol

import (
	"encoding/json"
	"testing"

	"github.com/panodraw/annotator/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode_ViewChanged(t *testing.T) {
	data, err := Encode(TypeViewChanged, ViewChangedPayload{
		View: core.View{Bearing: 12.5, Elevation: -3, FOV: 90, FOVKind: core.FOVMaximum},
	})
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	assert.Equal(t, TypeViewChanged, env.Type)

	var p ViewChangedPayload
	require.NoError(t, Decode(env, &p))
	assert.Equal(t, 12.5, p.View.Bearing)
	assert.Equal(t, core.FOVMaximum, p.View.FOVKind)
}

func TestEncode_NilPayloadOmitted(t *testing.T) {
	data, err := Encode(TypeReady, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"ready"}`, string(data))
}

func TestDecode_EmptyPayload(t *testing.T) {
	var p ReadyPayload
	err := Decode(Envelope{Type: TypeReady}, &p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty payload")
}

func TestDecode_BadPayload(t *testing.T) {
	var p SurfaceResizedPayload
	err := Decode(Envelope{Type: TypeSurfaceResized, Payload: json.RawMessage(`"nope"`)}, &p)
	require.Error(t, err)
}

func TestCommand_RoundTrip(t *testing.T) {
	data, err := Encode(TypeCommand, CommandPayload{ID: "7", Command: ":MODE:", Args: []string{"draw"}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"command","payload":{"id":"7","command":":MODE:","args":["draw"]}}`, string(data))

	var env Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	var p CommandPayload
	require.NoError(t, Decode(env, &p))
	assert.Equal(t, []string{"draw"}, p.Args)
}
