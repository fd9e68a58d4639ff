package session

import (
	"video-studio-server/modules/common/model"
	"video-studio-server/modules/generation"
	"video-studio-server/modules/media"
)

// MediaURL - 핸들을 재생용 경로로 변환
func MediaURL(handle string) string {
	return "/media/" + handle
}

// DownloadURL - 다운로드용 경로 (Content-Disposition: attachment)
func DownloadURL(handle string) string {
	return MediaURL(handle) + "?download=1"
}

// Snapshot - generation.State → 외부로 내보내는 스냅샷
// muted: 오디오 첨부가 있으면 영상은 음소거로 재생
func Snapshot(sessionID string, st generation.State, muted bool) model.StateSnapshot {
	snap := model.StateSnapshot{
		SessionID:   sessionID,
		Token:       st.Token,
		Status:      string(st.Status),
		PhraseIndex: st.PhraseIndex,
		ErrorKind:   string(st.ErrorKind),
		Error:       st.Error,
		UpdatedAt:   st.UpdatedAt,
	}
	if st.Status == generation.StatusInProgress {
		snap.Phrase = st.Phrase
	}
	if st.Result != nil {
		id := st.Result.Handle.ID
		snap.Result = &model.VideoResult{
			Handle:      id,
			URL:         MediaURL(id),
			DownloadURL: DownloadURL(id),
			MimeType:    st.Result.MimeType,
			Size:        st.Result.Size,
			Muted:       muted,
		}
	}
	return snap
}

func attachmentView(h media.Handle) *model.Attachment {
	return &model.Attachment{
		Handle:   h.ID,
		Kind:     string(h.Kind),
		Name:     h.Name,
		MimeType: h.MimeType,
		Size:     h.Size,
		URL:      MediaURL(h.ID),
	}
}

// StudioOptions - UI 선택지
func StudioOptions() *model.StudioOptions {
	return &model.StudioOptions{
		Styles:       generation.Styles,
		Voices:       generation.Voices,
		AspectRatios: generation.AspectRatios,
		MinDuration:  generation.MinDuration,
		MaxDuration:  generation.MaxDuration,
	}
}
