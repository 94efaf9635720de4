package window

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuilderOptions(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name          string
		options       []WindowBuilderOption
		width, height int
	}{
		{"defaults", nil, 1280, 720},
		{"size", []WindowBuilderOption{WithSize(800, 600)}, 800, 600},
		{"non-positive size keeps default", []WindowBuilderOption{WithSize(0, -1)}, 1280, 720},
		{"clamped to max", []WindowBuilderOption{WithSizeLimits(100, 100, 640, 480)}, 640, 480},
		{"clamped to min", []WindowBuilderOption{WithSize(50, 50), WithSizeLimits(320, 240, 1600, 1200)}, 320, 240},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := &engineWindow{minWidth: 320, minHeight: 200, maxWidth: 1600, maxHeight: 1200, width: 1280, height: 720}
			for _, opt := range tt.options {
				opt(w)
			}
			w.clampSize()
			assert.Equal(t, tt.width, w.Width())
			assert.Equal(t, tt.height, w.Height())
		})
	}
}

func TestUninitializedWindow(t *testing.T) {
	t.Parallel()
	w := &engineWindow{}
	w.SetTitle("ignored")

	assert.Equal(t, "ignored", w.title)
	assert.False(t, w.IsRunning())
	assert.False(t, w.PollEvents())
	assert.Error(t, w.Close())
}
