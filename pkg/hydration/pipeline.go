package hydration

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/AzielCF/az-tgclean/domains/chat"
	"github.com/AzielCF/az-tgclean/domains/session"
	"github.com/AzielCF/az-tgclean/pkg/chatview"
)

// Defaults.
const (
	DefaultBatchSize   = 15
	DefaultCallTimeout = 30 * time.Second
)

// Phase of a published snapshot.
type Phase string

const (
	PhaseQuick Phase = "quick"
	PhaseBatch Phase = "batch"
)

// AvatarCache is the subset of the avatar cache the pipeline needs.
type AvatarCache interface {
	Get(ctx context.Context, chatID, photoID string, forceCheck bool) (string, bool)
	Set(ctx context.Context, chatID, photoID, payload string)
}

// Snapshot is one published state of the chat list.
type Snapshot struct {
	Items        []chat.Item `json:"items"`
	Phase        Phase       `json:"phase"`
	BatchSeq     int         `json:"batchSeq"`
	TotalBatches int         `json:"totalBatches"`
	Done         bool        `json:"done"`
}

// Publisher receives every snapshot in order. Publish must not block for long.
type Publisher interface {
	Publish(Snapshot)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(Snapshot)

func (f PublisherFunc) Publish(s Snapshot) { f(s) }

// Observer receives timing and degradation events.
type Observer interface {
	BatchMerged(size int, took time.Duration)
	Degraded(kind string)
}

type noopObserver struct{}

func (noopObserver) BatchMerged(int, time.Duration) {}
func (noopObserver) Degraded(string)                {}

// Degradation kinds.
const (
	DegradedCount  = "count"
	DegradedAvatar = "avatar"
)

// Options tune a Pipeline.
type Options struct {
	BatchSize   int
	CallTimeout time.Duration
	// SkipCounts hydrates avatars only (chat pickers that never show counts).
	SkipCounts bool
	Observer   Observer
}

func (o Options) withDefaults() Options {
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.CallTimeout <= 0 {
		o.CallTimeout = DefaultCallTimeout
	}
	if o.Observer == nil {
		o.Observer = noopObserver{}
	}
	return o
}

// Result is the final state of one run.
type Result struct {
	Items    []chat.Item
	Batches  int
	Degraded int
	// Skipped is set when the run was ignored because another one was in flight.
	Skipped bool
}

// Pipeline produces the chat list in two phases: a quick listing decorated from the
// avatar cache, then bounded batches that fetch counts and missing avatars.
type Pipeline struct {
	gateway chat.Gateway
	cache   AvatarCache
	gate    session.Gate
	pub     Publisher
	opts    Options

	running  atomic.Bool
	batchSeq atomic.Int64
}

// New builds a pipeline. gate and pub may be nil.
func New(gateway chat.Gateway, cache AvatarCache, gate session.Gate, pub Publisher, opts Options) *Pipeline {
	if pub == nil {
		pub = PublisherFunc(func(Snapshot) {})
	}
	return &Pipeline{
		gateway: gateway,
		cache:   cache,
		gate:    gate,
		pub:     pub,
		opts:    opts.withDefaults(),
	}
}

// Running reports whether a run is in flight.
func (p *Pipeline) Running() bool {
	return p.running.Load()
}

// BatchSeq is the number of batches merged by this pipeline since it was created.
func (p *Pipeline) BatchSeq() int64 {
	return p.batchSeq.Load()
}

// Run executes both phases. A call made while another run is in flight is a no-op
// that returns Result{Skipped: true}.
//
// Session expiry at any point aborts the run with chat.ErrSessionExpired; a missing
// session aborts before any remote call with the gate's error.
func (p *Pipeline) Run(ctx context.Context) (Result, error) {
	if !p.running.CompareAndSwap(false, true) {
		logrus.Debug("[HYDRATION] Refresh ignored, a run is already in progress")
		return Result{Skipped: true}, nil
	}
	defer p.running.Store(false)
	return p.run(ctx)
}

// Start begins a run in the background and reports whether it did. The in-flight
// guard is taken before Start returns, so of two concurrent calls exactly one
// gets true. done, when set, receives the outcome after the guard is released.
func (p *Pipeline) Start(ctx context.Context, done func(Result, error)) bool {
	if !p.running.CompareAndSwap(false, true) {
		logrus.Debug("[HYDRATION] Refresh ignored, a run is already in progress")
		return false
	}
	go func() {
		res, err := p.run(ctx)
		p.running.Store(false)
		if done != nil {
			done(res, err)
		}
	}()
	return true
}

func (p *Pipeline) run(ctx context.Context) (Result, error) {
	if p.gate != nil {
		if _, err := p.gate.RequireAuth(ctx); err != nil {
			return Result{}, err
		}
	}

	summaries, err := p.listChats(ctx)
	if err != nil {
		return Result{}, err
	}

	items := p.quickPhase(ctx, summaries)
	index := make(map[string]int, len(items))
	for i, it := range items {
		index[it.ID] = i
	}

	pending := lo.Filter(items, func(it chat.Item, _ int) bool {
		return !p.opts.SkipCounts || !it.AvatarReady
	})
	batches := lo.Chunk(pending, p.opts.BatchSize)

	p.publish(Snapshot{Items: items, Phase: PhaseQuick, TotalBatches: len(batches), Done: len(batches) == 0})
	logrus.Infof("[HYDRATION] Listed %d chats, %d to enrich in %d batches", len(items), len(pending), len(batches))

	res := Result{Items: items}
	for i, batch := range batches {
		if err := ctx.Err(); err != nil {
			res.Items = cloneItems(items)
			return res, err
		}
		start := time.Now()
		enrichments, degraded, err := p.runBatch(ctx, batch)
		if err != nil {
			res.Items = cloneItems(items)
			return res, err
		}

		for id, e := range enrichments {
			pos := index[id]
			items[pos] = MergeEnrichment(items[pos], e)
		}
		p.batchSeq.Add(1)
		res.Batches++
		res.Degraded += degraded
		p.opts.Observer.BatchMerged(len(batch), time.Since(start))

		p.publish(Snapshot{
			Items:        items,
			Phase:        PhaseBatch,
			BatchSeq:     i + 1,
			TotalBatches: len(batches),
			Done:         i == len(batches)-1,
		})
	}

	res.Items = cloneItems(items)
	return res, nil
}

func (p *Pipeline) listChats(ctx context.Context) ([]chat.Summary, error) {
	cctx, cancel := context.WithTimeout(ctx, p.opts.CallTimeout)
	defer cancel()

	summaries, err := p.gateway.GetChatsQuick(cctx)
	if err != nil {
		if errors.Is(err, chat.ErrSessionExpired) {
			logrus.Warn("[HYDRATION] Session expired while listing chats")
		}
		return nil, fmt.Errorf("failed to list chats: %w", err)
	}
	return summaries, nil
}

// quickPhase decorates every summary from the cache. Lookups run concurrently and
// never validate against the remote (forceCheck=false).
func (p *Pipeline) quickPhase(ctx context.Context, summaries []chat.Summary) []chat.Item {
	items := make([]chat.Item, len(summaries))

	var g errgroup.Group
	g.SetLimit(p.opts.BatchSize)
	for i, s := range summaries {
		g.Go(func() error {
			it := chat.Item{Summary: s}
			if payload, ok := p.cache.Get(ctx, s.ID, s.PhotoID, false); ok {
				it.Avatar = chatview.Placeholder(payload, s.Type, s.Name)
				it.AvatarReady = true
			} else {
				it.Avatar = chatview.Placeholder("", s.Type, s.Name)
				it.AvatarLoading = true
			}
			items[i] = it
			return nil
		})
	}
	_ = g.Wait()

	return items
}

// runBatch enriches one batch concurrently. The only error it returns is a session
// expiry, which cancels the rest of the batch.
func (p *Pipeline) runBatch(ctx context.Context, batch []chat.Item) (map[string]Enrichment, int, error) {
	g, gctx := errgroup.WithContext(ctx)

	var (
		mu       sync.Mutex
		out      = make(map[string]Enrichment, len(batch))
		degraded atomic.Int64
	)

	for _, it := range batch {
		g.Go(func() error {
			e, n, err := p.enrichOne(gctx, it)
			if err != nil {
				return err
			}
			degraded.Add(int64(n))
			mu.Lock()
			out[it.ID] = e
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	return out, int(degraded.Load()), nil
}

// enrichOne fetches the count and the avatar of one chat in parallel.
// Failures degrade: count 0, placeholder avatar.
func (p *Pipeline) enrichOne(ctx context.Context, it chat.Item) (Enrichment, int, error) {
	var (
		wg                   sync.WaitGroup
		count                int
		countErr, avatarErr  error
		payload              string
		wantCount, wantPhoto bool
		countAt              time.Time
	)

	if !p.opts.SkipCounts && !it.IsPrivate() {
		wantCount = true
		countAt = time.Now()
		wg.Add(1)
		go func() {
			defer wg.Done()
			cctx, cancel := context.WithTimeout(ctx, p.opts.CallTimeout)
			defer cancel()
			count, countErr = p.gateway.GetChatMessageCount(cctx, it.ID, false)
		}()
	}

	if !it.AvatarReady {
		wantPhoto = true
		wg.Add(1)
		go func() {
			defer wg.Done()
			cctx, cancel := context.WithTimeout(ctx, p.opts.CallTimeout)
			defer cancel()
			payload, avatarErr = p.gateway.GetChatProfilePhoto(cctx, it.ID, it.PhotoID)
		}()
	}

	wg.Wait()

	if errors.Is(countErr, chat.ErrSessionExpired) || errors.Is(avatarErr, chat.ErrSessionExpired) {
		logrus.Warnf("[HYDRATION] Session expired while enriching chat %s", it.ID)
		return Enrichment{}, 0, chat.ErrSessionExpired
	}

	var e Enrichment
	degraded := 0

	if !p.opts.SkipCounts {
		e.CountLoaded = true
		switch {
		case !wantCount:
			e.MessageCount = chat.PrivateCountSentinel
		case countErr != nil:
			logrus.WithError(countErr).Warnf("[HYDRATION] Failed to count messages for chat %s", it.ID)
			p.opts.Observer.Degraded(DegradedCount)
			degraded++
			e.MessageCount = 0
		default:
			e.MessageCount = count
			e.CountFetchedAt = countAt
		}
	}

	if wantPhoto {
		if avatarErr != nil {
			logrus.WithError(avatarErr).Warnf("[HYDRATION] Failed to get photo for chat %s", it.ID)
			p.opts.Observer.Degraded(DegradedAvatar)
			degraded++
			payload = ""
		}
		if payload != "" {
			p.cache.Set(ctx, it.ID, it.PhotoID, payload)
		}
		e.AvatarLoaded = true
		e.Avatar = chatview.Placeholder(payload, it.Type, it.Name)
	}

	return e, degraded, nil
}

func (p *Pipeline) publish(s Snapshot) {
	s.Items = cloneItems(s.Items)
	p.pub.Publish(s)
}

func cloneItems(items []chat.Item) []chat.Item {
	out := make([]chat.Item, len(items))
	copy(out, items)
	return out
}
