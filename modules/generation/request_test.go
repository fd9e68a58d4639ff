package generation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"video-studio-server/modules/media"
)

func TestNewRequestDefaults(t *testing.T) {
	req := NewRequest(Form{Prompt: "hello"}, nil, false)

	assert.Equal(t, "hello", req.Prompt())
	assert.Equal(t, DefaultDuration, req.DurationSeconds())
	assert.Equal(t, "cinematic", req.Style())
	assert.Equal(t, "Modern Standard Arabic", req.Voice())
	assert.Equal(t, "16:9", req.AspectRatio())
	assert.Equal(t, LengthShort, req.LengthType())
	assert.Equal(t, DefaultModel, req.Model())
	assert.False(t, req.Silent())
	assert.False(t, req.HasImage())
}

func TestNewRequestDuration(t *testing.T) {
	tests := []struct {
		name   string
		form   Form
		expect int
	}{
		{"within range", Form{Duration: 30}, 30},
		{"below minimum", Form{Duration: -4}, MinDuration},
		{"above maximum", Form{Duration: 600}, MaxDuration},
		{"long forces maximum", Form{Duration: 10, LengthType: LengthLong}, MaxDuration},
		{"unknown length is short", Form{Duration: 12, LengthType: "medium"}, 12},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expect, NewRequest(tt.form, nil, false).DurationSeconds())
		})
	}
}

func TestNewRequestFallsBackOnUnknownOptions(t *testing.T) {
	req := NewRequest(Form{Style: "horror", Voice: "Klingon", AspectRatio: "4:3"}, nil, false)

	assert.Equal(t, Styles[0], req.Style())
	assert.Equal(t, Voices[0], req.Voice())
	assert.Equal(t, "16:9", req.AspectRatio())

	req = NewRequest(Form{Style: "comedy", Voice: "Egyptian", AspectRatio: "9:16"}, nil, false)
	assert.Equal(t, "comedy", req.Style())
	assert.Equal(t, "Egyptian", req.Voice())
	assert.Equal(t, "9:16", req.AspectRatio())
}

func TestComposedPrompt(t *testing.T) {
	img := &ImagePayload{Data: []byte{1}, MimeType: "image/png"}

	tests := []struct {
		name     string
		form     Form
		image    *ImagePayload
		hasAudio bool
		expect   string
	}{
		{
			name:   "text only",
			form:   Form{Prompt: "a desert at dawn", Style: "documentary", Voice: "Saudi", Duration: 20},
			expect: `Create a short video in a documentary style with a voiceover in the Saudi dialect lasting 20 seconds. Script: "a desert at dawn"`,
		},
		{
			name:   "image and long",
			form:   Form{Prompt: "zoom in", LengthType: LengthLong},
			image:  img,
			expect: `Based on the attached image, Create a long, detailed video in a cinematic style with a voiceover in the Modern Standard Arabic dialect lasting 60 seconds. Script: "zoom in"`,
		},
		{
			name:     "audio omits voiceover",
			form:     Form{Prompt: "dance", Voice: "Levantine", Duration: 8},
			hasAudio: true,
			expect:   `create a silent video to match the attached audio. Create a short video in a cinematic style lasting 8 seconds. Script: "dance"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expect, NewRequest(tt.form, tt.image, tt.hasAudio).ComposedPrompt())
		})
	}
}

func TestValidate(t *testing.T) {
	assert.ErrorIs(t, NewRequest(Form{Prompt: "  "}, nil, false).Validate(), ErrValidation)
	assert.ErrorIs(t, NewRequest(Form{}, &ImagePayload{}, false).Validate(), ErrValidation)
	assert.NoError(t, NewRequest(Form{Prompt: "x"}, nil, false).Validate())
	assert.NoError(t, NewRequest(Form{}, &ImagePayload{Data: []byte{1}}, false).Validate())
}

func TestRemovedImageIsNotSent(t *testing.T) {
	store := newTestStore()
	att := media.NewAttachments(store)

	_, err := att.AttachImage("cat.png", "image/png", []byte("png"))
	require.NoError(t, err)

	blob, ok := att.Image()
	require.True(t, ok)
	req := NewRequest(Form{}, ImageFromBlob(blob), att.HasAudio())
	payload, ok := req.Image()
	require.True(t, ok)
	assert.Equal(t, "image/png", payload.MimeType)

	att.RemoveImage()
	blob, ok = att.Image()
	assert.False(t, ok)
	req = NewRequest(Form{Prompt: "text"}, ImageFromBlob(blob), att.HasAudio())
	assert.False(t, req.HasImage())
	assert.NotContains(t, req.ComposedPrompt(), "attached image")
}
