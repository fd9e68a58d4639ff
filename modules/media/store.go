package media

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
)

type Kind string

const (
	KindImage Kind = "image"
	KindAudio Kind = "audio"
	KindVideo Kind = "video"
)

// Handle - 저장된 blob 정보 (값 복사 가능)
type Handle struct {
	ID       string
	Kind     Kind
	Name     string
	MimeType string
	Size     int
}

// Blob - 핸들 + 바이트. Data 는 수정 금지
type Blob struct {
	Handle
	Data []byte
}

type ref struct {
	mounts  int
	revoked bool
	// 소유자(첨부 슬롯, 현재 결과)가 있으면 Release 전까지 만료되지 않음
	owned bool
}

// Store - 핸들 id 별 blob 관리
// Release 는 정확히 한 번만 해제, mount 중이면 revoke 표시 후 마지막 Unmount 때 해제
// Claim 되지 않은 blob 은 ttl 후 만료
type Store struct {
	blobs *cache.Cache
	ttl   time.Duration
	log   zerolog.Logger

	mu        sync.Mutex
	refs      map[string]*ref
	released  int
	onRelease []func(Handle)
}

func NewStore(ttl time.Duration, log zerolog.Logger) *Store {
	sweep := ttl / 4
	if sweep <= 0 {
		sweep = time.Minute
	}
	s := &Store{
		blobs: cache.New(ttl, sweep),
		ttl:   ttl,
		log:   log,
		refs:  make(map[string]*ref),
	}
	s.blobs.OnEvicted(s.evicted)
	return s
}

// OnRelease - 핸들이 해제될 때마다 한 번씩 호출
func (s *Store) OnRelease(fn func(Handle)) {
	s.mu.Lock()
	s.onRelease = append(s.onRelease, fn)
	s.mu.Unlock()
}

// Put - 새 핸들로 저장
func (s *Store) Put(kind Kind, name, mimeType string, data []byte) Handle {
	h := Handle{
		ID:       uuid.NewString(),
		Kind:     kind,
		Name:     name,
		MimeType: mimeType,
		Size:     len(data),
	}

	s.mu.Lock()
	s.refs[h.ID] = &ref{}
	s.mu.Unlock()

	s.blobs.SetDefault(h.ID, &Blob{Handle: h, Data: data})
	s.log.Debug().Str("handle", h.ID).Str("kind", string(kind)).Int("size", h.Size).Msg("📦 Stored blob")
	return h
}

// Get - mount 없이 조회, revoke 된 핸들은 안 보임
func (s *Store) Get(id string) (*Blob, bool) {
	s.mu.Lock()
	r, ok := s.refs[id]
	if !ok || r.revoked {
		s.mu.Unlock()
		return nil, false
	}
	s.mu.Unlock()

	v, ok := s.blobs.Get(id)
	if !ok {
		return nil, false
	}
	return v.(*Blob), true
}

// Mount - reader 용 고정. 성공한 Mount 마다 Unmount 필요
func (s *Store) Mount(id string) (*Blob, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.refs[id]
	if !ok || r.revoked {
		return nil, false
	}
	v, ok := s.blobs.Get(id)
	if !ok {
		return nil, false
	}
	r.mounts++
	if r.mounts == 1 {
		// mount 중에는 만료 안 됨
		s.blobs.Set(id, v, cache.NoExpiration)
	}
	return v.(*Blob), true
}

// Claim - 핸들에 소유자가 생김. 이후 TTL 로 만료되지 않고 Release 로만 해제됨
// 이미 해제/만료된 핸들이면 false
func (s *Store) Claim(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.refs[id]
	if !ok || r.revoked {
		return false
	}
	v, ok := s.blobs.Get(id)
	if !ok {
		return false
	}
	r.owned = true
	s.blobs.Set(id, v, cache.NoExpiration)
	return true
}

// Unmount - Mount 해제, 마지막 reader 가 빠질 때 revoke 된 핸들 해제
func (s *Store) Unmount(id string) {
	s.mu.Lock()
	r, ok := s.refs[id]
	if !ok || r.mounts == 0 {
		s.mu.Unlock()
		return
	}
	r.mounts--
	free := r.mounts == 0 && r.revoked
	if r.mounts == 0 && !r.revoked && !r.owned {
		if v, found := s.blobs.Get(id); found {
			s.blobs.SetDefault(id, v)
		}
	}
	s.mu.Unlock()

	if free {
		s.blobs.Delete(id)
	}
}

// Release - 핸들 revoke. 중복 호출이나 모르는 id 는 무시
func (s *Store) Release(id string) {
	s.mu.Lock()
	r, ok := s.refs[id]
	if !ok || r.revoked {
		s.mu.Unlock()
		return
	}
	r.revoked = true
	free := r.mounts == 0
	s.mu.Unlock()

	if free {
		s.blobs.Delete(id)
	} else {
		s.log.Debug().Str("handle", id).Msg("⏳ Release deferred until player unmounts")
	}
}

// Live - 아직 할당된 핸들 수
func (s *Store) Live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.refs)
}

// Released - 시작 후 해제된 핸들 수
func (s *Store) Released() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released
}

// evicted - 핸들이 실제로 해제되는 유일한 지점 (Release / revoke 후 Unmount / ttl 만료)
func (s *Store) evicted(id string, v interface{}) {
	s.mu.Lock()
	r, ok := s.refs[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	if r.mounts > 0 {
		// 만료 직후 Mount 가 다시 고정한 경우
		if _, found := s.blobs.Get(id); found {
			s.mu.Unlock()
			return
		}
	}
	delete(s.refs, id)
	s.released++
	hooks := append([]func(Handle){}, s.onRelease...)
	s.mu.Unlock()

	blob, _ := v.(*Blob)
	var h Handle
	if blob != nil {
		h = blob.Handle
	} else {
		h = Handle{ID: id}
	}

	s.log.Debug().Str("handle", id).Str("kind", string(h.Kind)).Msg("🧹 Released blob")
	for _, fn := range hooks {
		fn(h)
	}
}
