package media

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"video-studio-server/modules/common/logger"
)

func TestAttachRejectsWrongMedia(t *testing.T) {
	a := NewAttachments(NewStore(time.Hour, logger.Discard()))

	_, err := a.AttachImage("song.mp3", "audio/mpeg", []byte("x"))
	assert.True(t, errors.Is(err, ErrUnsupportedMedia))

	_, err = a.AttachAudio("pic.png", "image/png", []byte("x"))
	assert.True(t, errors.Is(err, ErrUnsupportedMedia))

	_, err = a.AttachImage("empty.png", "image/png", nil)
	assert.True(t, errors.Is(err, ErrEmptyFile))
}

func TestReplacingAudioReleasesPreviousHandleOnce(t *testing.T) {
	s := NewStore(time.Hour, logger.Discard())
	c := newReleaseCounter(s)
	a := NewAttachments(s)

	first, err := a.AttachAudio("one.mp3", "audio/mpeg", []byte("one"))
	require.NoError(t, err)
	second, err := a.AttachAudio("two.mp3", "audio/mpeg", []byte("two"))
	require.NoError(t, err)

	assert.Equal(t, 1, c.count(first.ID))
	assert.Equal(t, 0, c.count(second.ID))

	current, ok := a.AudioHandle()
	require.True(t, ok)
	assert.Equal(t, second.ID, current.ID)

	a.RemoveAudio()
	a.RemoveAudio()
	assert.Equal(t, 1, c.count(first.ID))
	assert.Equal(t, 1, c.count(second.ID))
	assert.False(t, a.HasAudio())
}

func TestReplacingAudioWhilePlayerMounted(t *testing.T) {
	s := NewStore(time.Hour, logger.Discard())
	c := newReleaseCounter(s)
	a := NewAttachments(s)

	first, err := a.AttachAudio("one.mp3", "audio/mpeg", []byte("one"))
	require.NoError(t, err)

	_, ok := s.Mount(first.ID)
	require.True(t, ok)

	_, err = a.AttachAudio("two.mp3", "audio/mpeg", []byte("two"))
	require.NoError(t, err)
	assert.Equal(t, 0, c.count(first.ID))

	s.Unmount(first.ID)
	assert.Equal(t, 1, c.count(first.ID))
}

func TestRemovedImageIsGone(t *testing.T) {
	a := NewAttachments(NewStore(time.Hour, logger.Discard()))

	_, err := a.AttachImage("cat.png", "image/png", []byte("png"))
	require.NoError(t, err)
	blob, ok := a.Image()
	require.True(t, ok)
	assert.Equal(t, "image/png", blob.MimeType)

	assert.True(t, a.RemoveImage())
	_, ok = a.Image()
	assert.False(t, ok)
	assert.False(t, a.RemoveImage())
}

func TestCloseReleasesEverything(t *testing.T) {
	s := NewStore(time.Hour, logger.Discard())
	a := NewAttachments(s)

	_, _ = a.AttachImage("cat.png", "image/png", []byte("png"))
	_, _ = a.AttachAudio("one.mp3", "audio/mpeg", []byte("one"))
	require.Equal(t, 2, s.Live())

	a.Close()
	assert.Equal(t, 0, s.Live())
}

func TestAttachmentsOutliveMediaTTL(t *testing.T) {
	s := NewStore(40*time.Millisecond, logger.Discard())
	a := NewAttachments(s)

	_, err := a.AttachImage("cat.png", "image/png", []byte("png"))
	require.NoError(t, err)
	_, err = a.AttachAudio("voice.mp3", "audio/mpeg", []byte("mp3"))
	require.NoError(t, err)

	time.Sleep(120 * time.Millisecond)

	_, ok := a.ImageHandle()
	assert.True(t, ok)
	blob, ok := a.Image()
	require.True(t, ok)
	assert.Equal(t, []byte("png"), blob.Data)
	assert.True(t, a.HasAudio())
	assert.Equal(t, 2, s.Live())
	assert.Zero(t, s.Released())

	a.Close()
	assert.Zero(t, s.Live())
	assert.Equal(t, 2, s.Released())
}
