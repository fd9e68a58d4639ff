package generation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"video-studio-server/modules/media"
)

// Options - 컨트롤러 설정
// MaxPolls / PollTimeout 이 0 이면 서비스가 완료를 알릴 때까지 무제한 폴링
type Options struct {
	PollInterval   time.Duration
	PhraseInterval time.Duration
	MaxPolls       int
	PollTimeout    time.Duration
	Phrases        []string
	Now            func() time.Time
}

func (o Options) withDefaults() Options {
	if o.PollInterval <= 0 {
		o.PollInterval = 10 * time.Second
	}
	if o.PhraseInterval <= 0 {
		o.PhraseInterval = 3 * time.Second
	}
	if len(o.Phrases) == 0 {
		o.Phrases = DefaultPhrases
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Controller - 한 번에 하나의 생성 요청을 submit → poll → fetch 까지 진행
// 새 Submit 은 이전 요청의 관찰만 중단함 (원격 작업은 계속 돌고 결과는 버려짐)
type Controller struct {
	service VideoService
	store   ResultStore
	opts    Options
	log     zerolog.Logger

	mu        sync.Mutex
	state     State
	lastToken uint64
	abandon   context.CancelFunc
	closed    bool
	subs      map[int]func(State)
	nextSub   int
}

func NewController(service VideoService, store ResultStore, opts Options, log zerolog.Logger) *Controller {
	opts = opts.withDefaults()
	return &Controller{
		service: service,
		store:   store,
		opts:    opts,
		log:     log,
		state: State{
			Status:    StatusIdle,
			Phrase:    phraseAt(opts.Phrases, 0),
			UpdatedAt: opts.Now(),
		},
		subs: make(map[int]func(State)),
	}
}

// Snapshot - 현재 상태
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Subscribe - 반영된 상태를 순서대로 fn 에 전달
// fn 은 컨트롤러 lock 안에서 호출되므로 컨트롤러를 다시 호출하면 안 됨
func (c *Controller) Subscribe(fn func(State)) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

// Submit - req 를 종료 상태까지 진행하고 반환
// 프롬프트도 이미지도 없으면 서비스 호출 없이 바로 실패
// 도중에 새 요청이 시작되면 ErrSuperseded
func (c *Controller) Submit(ctx context.Context, req *GenerationRequest) (State, error) {
	tok, runCtx, state, err := c.begin(ctx, req)
	if err != nil {
		return state, err
	}
	return c.execute(runCtx, tok, req)
}

// Start - 기다리지 않는 Submit. InProgress 상태를 바로 반환하고 나머지는 백그라운드 진행
// 검증 실패는 동기로 반환 (서비스 호출 없음)
func (c *Controller) Start(ctx context.Context, req *GenerationRequest) (State, error) {
	tok, runCtx, state, err := c.begin(ctx, req)
	if err != nil {
		return state, err
	}
	go c.execute(runCtx, tok, req)
	return state, nil
}

func (c *Controller) execute(runCtx context.Context, tok uint64, req *GenerationRequest) (State, error) {
	defer c.finish(tok)

	log := c.log.With().Uint64("token", tok).Logger()
	log.Info().Str("model", req.Model()).Int("duration", req.DurationSeconds()).
		Bool("image", req.HasImage()).Bool("silent", req.Silent()).Msg("🚀 Submitting video generation")

	phraseCtx, stopPhrases := context.WithCancel(runCtx)
	go c.cyclePhrases(phraseCtx, tok)

	result, runErr := c.run(runCtx, log, req)
	stopPhrases()

	if runErr != nil {
		genErr := asError(runErr)
		state, ok := c.apply(Failed{Token: tok, Err: genErr})
		if !ok {
			log.Info().Msg("🛑 Submission abandoned, discarding failure")
			return c.Snapshot(), c.staleErr()
		}
		log.Warn().Str("kind", string(genErr.Kind)).Err(genErr).Msg("❌ Video generation failed")
		return state, genErr
	}

	state, ok := c.apply(Succeeded{Token: tok, Result: *result})
	if !ok {
		log.Info().Str("handle", result.Handle.ID).Msg("🛑 Submission abandoned, discarding result")
		c.store.Release(result.Handle.ID)
		return c.Snapshot(), c.staleErr()
	}

	log.Info().Str("handle", result.Handle.ID).Int("size", result.Size).Msg("✅ Video ready")
	return state, nil
}

// Close - 진행 중 요청 중단 + 현재 결과 해제, 이후 Submit 은 ErrClosed
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	if c.abandon != nil {
		c.abandon()
		c.abandon = nil
	}
	prev := c.state.Result
	c.lastToken++
	c.state = State{
		Token:     c.lastToken,
		Status:    StatusIdle,
		Phrase:    phraseAt(c.opts.Phrases, 0),
		UpdatedAt: c.opts.Now(),
	}
	c.mu.Unlock()

	if prev != nil {
		c.store.Release(prev.Handle.ID)
	}
}

func (c *Controller) begin(ctx context.Context, req *GenerationRequest) (uint64, context.Context, State, error) {
	c.mu.Lock()
	if c.closed {
		state := c.state
		c.mu.Unlock()
		return 0, nil, state, ErrClosed
	}

	c.lastToken++
	tok := c.lastToken
	if c.abandon != nil {
		c.abandon()
		c.abandon = nil
	}
	prev := c.state.Result

	var verr error = validationError()
	if req != nil {
		verr = req.Validate()
	}
	if verr != nil {
		state, _ := c.applyLocked(Rejected{Token: tok, Err: asError(verr)})
		c.mu.Unlock()
		c.releaseResult(prev)
		return tok, nil, state, verr
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.abandon = cancel
	state, _ := c.applyLocked(Submitted{Token: tok})
	c.mu.Unlock()

	c.releaseResult(prev)
	return tok, runCtx, state, nil
}

func (c *Controller) finish(tok uint64) {
	c.mu.Lock()
	if c.lastToken == tok && c.abandon != nil {
		c.abandon()
		c.abandon = nil
	}
	c.mu.Unlock()
}

func (c *Controller) staleErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	return ErrSuperseded
}

func (c *Controller) releaseResult(r *Result) {
	if r != nil {
		c.store.Release(r.Handle.ID)
	}
}

func (c *Controller) apply(ev Event) (State, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.applyLocked(ev)
}

func (c *Controller) applyLocked(ev Event) (State, bool) {
	next, ok := Reduce(c.state, ev, c.opts.Phrases, c.opts.Now())
	if !ok {
		return c.state, false
	}
	c.state = next
	for _, fn := range c.subs {
		fn(next)
	}
	return next, true
}

func (c *Controller) cyclePhrases(ctx context.Context, tok uint64) {
	ticker := time.NewTicker(c.opts.PhraseInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, ok := c.apply(PhraseAdvanced{Token: tok}); !ok {
				return
			}
		}
	}
}

// run - submit, poll, fetch 수행. 반환 에러는 항상 *Error
func (c *Controller) run(ctx context.Context, log zerolog.Logger, req *GenerationRequest) (*Result, error) {
	op, err := c.service.GenerateVideos(ctx, req)
	if err != nil {
		return nil, serviceError(err)
	}
	if op == nil {
		return nil, serviceError(errors.New("service returned no operation"))
	}
	log.Info().Str("operation", op.Name).Bool("done", op.Done).Msg("📥 Operation accepted")

	var deadline <-chan time.Time
	if c.opts.PollTimeout > 0 {
		timer := time.NewTimer(c.opts.PollTimeout)
		defer timer.Stop()
		deadline = timer.C
	}

	polls := 0
	for !op.Done {
		if c.opts.MaxPolls > 0 && polls >= c.opts.MaxPolls {
			return nil, serviceError(fmt.Errorf("video generation did not finish after %d polls", polls))
		}

		wait := time.NewTimer(c.opts.PollInterval)
		select {
		case <-ctx.Done():
			wait.Stop()
			return nil, serviceError(ctx.Err())
		case <-deadline:
			wait.Stop()
			return nil, serviceError(fmt.Errorf("video generation timed out after %s", c.opts.PollTimeout))
		case <-wait.C:
		}

		polls++
		op, err = c.service.GetOperation(ctx, op)
		if err != nil {
			return nil, serviceError(err)
		}
		if op == nil {
			return nil, serviceError(errors.New("service returned no operation"))
		}
		log.Debug().Int("poll", polls).Bool("done", op.Done).Msg("⏳ Waiting for video generation to complete")
	}

	if op.Failure != "" {
		return nil, serviceError(errors.New(op.Failure))
	}
	if op.VideoURI == "" {
		return nil, emptyResultError()
	}

	log.Info().Int("polls", polls).Msg("🎬 Fetching generated video")
	data, mimeType, err := c.service.FetchVideo(ctx, op.VideoURI)
	if err != nil {
		return nil, fetchError(err)
	}
	if len(data) == 0 {
		return nil, fetchError(errors.New("downloaded video is empty"))
	}
	if err := ctx.Err(); err != nil {
		return nil, serviceError(err)
	}
	if mimeType == "" {
		mimeType = "video/mp4"
	}

	h := c.store.Put(media.KindVideo, "ai_video.mp4", mimeType, data)
	if !c.store.Claim(h.ID) {
		return nil, fetchError(errors.New("stored video expired before it was kept"))
	}
	return &Result{Handle: h, URI: op.VideoURI, MimeType: mimeType, Size: len(data)}, nil
}
