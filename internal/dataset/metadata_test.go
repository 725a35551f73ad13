package dataset

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMetadata(t *testing.T) {
	md, err := ParseMetadata(`{
		"robot_1": {"id": 261, "type": "lidar"},
		"robot_2": {"id": 262},
		"camera": {"fov": 90},
		"version": "1.2",
		"bad_id": {"id": 1.5}
	}`)
	require.NoError(t, err)

	id, err := md.ActorID("robot_1")
	require.NoError(t, err)
	assert.Equal(t, int64(261), id)

	assert.Equal(t, []string{"robot_1", "robot_2"}, md.Names())
	assert.Equal(t, 2, md.Len())

	raw, ok := md.Raw("camera")
	require.True(t, ok)
	assert.JSONEq(t, `{"fov": 90}`, string(raw))
}

func TestParseMetadata_MissingActor(t *testing.T) {
	md, err := ParseMetadata(`{"robot_1": {"id": 1}, "camera": {"fov": 90}}`)
	require.NoError(t, err)

	for _, name := range []string{"robot_9", "camera"} {
		_, err := md.ActorID(name)
		assert.True(t, errors.Is(err, ErrActorNotInMetadata), "%s: got %v", name, err)
	}
}

func TestParseMetadata_Malformed(t *testing.T) {
	for _, text := range []string{"", "{", `["robot_1"]`, `{"robot_1": }`} {
		_, err := ParseMetadata(text)
		assert.Error(t, err, "input %q", text)
	}
}

func TestParseMetadata_LargeIDs(t *testing.T) {
	md, err := ParseMetadata(`{"robot_1": {"id": 9007199254740993}}`)
	require.NoError(t, err)
	id, err := md.ActorID("robot_1")
	require.NoError(t, err)
	assert.Equal(t, int64(9007199254740993), id, "ids must not round-trip through float64")
}
