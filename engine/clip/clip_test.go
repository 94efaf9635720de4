package clip

import (
	"errors"
	"strings"
	"testing"

	"github.com/Carmen-Shannon/oxy-anim/common"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func key(bone int32, time, x float32) RawKeyframe {
	return RawKeyframe{BoneIndex: bone, Time: time, Transform: common.TranslationAffine(x, 0, 0)}
}

func TestNewClip_GroupsKeysByBone(t *testing.T) {
	t.Parallel()

	// Interleaved input: bone 2 first, then bone 1.
	c, err := NewClip("walk", 3, []RawKeyframe{
		key(2, 0, 10),
		key(1, 0, 1),
		key(2, 0.5, 20),
		key(1, 0.5, 2),
	}, nil, WithLoop(true))
	require.NoError(t, err)

	assert.Equal(t, "walk", c.Name())
	assert.True(t, c.Loop())
	assert.Equal(t, 3, c.BoneCount())
	assert.Empty(t, c.Track(0))
	require.Len(t, c.Track(1), 2)
	assert.Equal(t, mgl32.Translate3D(2, 0, 0), c.Track(1)[1].Transform)

	// The first non-empty track by bone index is the reference, not the first key in input.
	assert.Equal(t, int32(1), c.ReferenceBone())
	assert.Equal(t, 2, c.KeyCount())
	assert.Equal(t, float32(0.5), c.Duration())
	assert.Nil(t, c.Track(-1))
	assert.Nil(t, c.Track(3))
}

func TestNewClip_SortsEventsStably(t *testing.T) {
	t.Parallel()

	c, err := NewClip("attack", 1, []RawKeyframe{key(0, 0, 0), key(0, 1, 0)}, []RawEvent{
		{InvokeTime: 0.8, Name: "impact"},
		{InvokeTime: 0.2, Name: "windup"},
		{InvokeTime: 0.8, Name: "sound"},
	}, WithEvents(RawEvent{InvokeTime: 0.1, Name: "start"}))
	require.NoError(t, err)

	want := []Event{
		{InvokeTime: 0.1, Name: "start"},
		{InvokeTime: 0.2, Name: "windup"},
		{InvokeTime: 0.8, Name: "impact"},
		{InvokeTime: 0.8, Name: "sound"},
	}
	if diff := cmp.Diff(want, c.Events()); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestNewClip_Rejections(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		keys   []RawKeyframe
		events []RawEvent
		want   error
	}{
		{"negative bone", []RawKeyframe{key(-1, 0, 0)}, nil, ErrInvalidBoneIndex},
		{"bone out of range", []RawKeyframe{key(2, 0, 0)}, nil, ErrInvalidBoneIndex},
		{"event name too long", nil, []RawEvent{{Name: strings.Repeat("x", MaxEventNameLength+1)}}, ErrEventNameTooLong},
		{"key count differs", []RawKeyframe{key(0, 0, 0), key(0, 1, 0), key(1, 0, 0)}, nil, ErrTrackMismatch},
		{"key times differ", []RawKeyframe{key(0, 0, 0), key(0, 1, 0), key(1, 0, 0), key(1, 0.9, 0)}, nil, ErrTrackMismatch},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, err := NewClip("bad", 2, tc.keys, tc.events)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.want), "got %v", err)
			assert.Nil(t, c)
		})
	}
}

func TestNewClip_MaxLengthEventName(t *testing.T) {
	t.Parallel()

	name := strings.Repeat("e", MaxEventNameLength)
	c, err := NewClip("ok", 1, nil, []RawEvent{{Name: name}})
	require.NoError(t, err)
	assert.Equal(t, name, c.Events()[0].Name)
}

func TestNewClip_Empty(t *testing.T) {
	t.Parallel()

	c, err := NewClip("idle", 4, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(-1), c.ReferenceBone())
	assert.Zero(t, c.KeyCount())
	assert.Zero(t, c.Duration())
	assert.Empty(t, c.Events())
}
