// Package router fans Telegram updates out to a bounded worker pool.
//
// Updates of one chat always land on the same worker, so a chat's
// conversation steps are handled strictly in arrival order while different
// chats proceed in parallel.
package router

import (
	"context"
	"hash/fnv"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	rtsup "deadlinebot/internal/runtime/supervisor"
	kit "deadlinebot/internal/transport"
	"deadlinebot/pkg/logx"
)

// Handler processes one update. conversation.Engine satisfies it.
type Handler interface {
	Handle(ctx context.Context, up kit.Update, log logx.Logger) error
}

// Observer receives dispatch outcomes. Dropped reasons: "duplicate", "busy".
type Observer interface {
	UpdateHandled(kind, outcome string, took time.Duration)
	UpdateDropped(reason string)
}

type nopObserver struct{}

func (nopObserver) UpdateHandled(string, string, time.Duration) {}
func (nopObserver) UpdateDropped(string)                        {}

type Config struct {
	Workers        int
	QueueSize      int // per worker
	HandlerTimeout time.Duration
	DedupSize      int
}

const (
	DefaultQueueSize      = 64
	DefaultHandlerTimeout = 15 * time.Second
	DefaultDedupSize      = 1024
)

// busyText answers a text message that could not be queued.
const busyText = "Бот сейчас занят, попробуй ещё раз через минуту."

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = max(runtime.NumCPU(), 2)
	}
	if c.QueueSize <= 0 {
		c.QueueSize = DefaultQueueSize
	}
	if c.HandlerTimeout <= 0 {
		c.HandlerTimeout = DefaultHandlerTimeout
	}
	if c.DedupSize <= 0 {
		c.DedupSize = DefaultDedupSize
	}
	return c
}

// Request is the per-update context handed through the middleware chain.
type Request struct {
	Update kit.Update
	ReqID  string
	Logger logx.Logger
}

type Dispatcher struct {
	cfg     Config
	log     logx.Logger
	handler Handler
	sender  kit.Sender
	obs     Observer
	chain   HandlerFunc
	seen    *lru.Cache[int, struct{}]

	timeout atomic.Int64 // nanoseconds, hot-reloadable
	seq     atomic.Uint64

	mu     sync.Mutex
	shards []chan *Request
	sup    *rtsup.Supervisor
}

func New(cfg Config, h Handler, sender kit.Sender, obs Observer, log logx.Logger) (*Dispatcher, error) {
	cfg = cfg.withDefaults()
	if log.IsZero() {
		log = logx.Nop()
	}
	if obs == nil {
		obs = nopObserver{}
	}
	seen, err := lru.New[int, struct{}](cfg.DedupSize)
	if err != nil {
		return nil, err
	}
	d := &Dispatcher{cfg: cfg, log: log, handler: h, sender: sender, obs: obs, seen: seen}
	d.timeout.Store(int64(cfg.HandlerTimeout))
	d.chain = Chain(d.handle,
		MWObserve(obs),
		MWRequestLog(750*time.Millisecond),
		MWPanicRecover(),
	)
	return d, nil
}

// SetHandlerTimeout applies a reloaded per-update timeout.
func (d *Dispatcher) SetHandlerTimeout(t time.Duration) {
	if t <= 0 {
		t = DefaultHandlerTimeout
	}
	d.timeout.Store(int64(t))
}

func (d *Dispatcher) handle(ctx context.Context, req *Request) error {
	cctx, cancel := context.WithTimeout(ctx, time.Duration(d.timeout.Load()))
	defer cancel()
	return d.handler.Handle(cctx, req.Update, req.Logger)
}

// Supervisor returns the worker supervisor while the loop runs.
func (d *Dispatcher) Supervisor() *rtsup.Supervisor {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sup
}

// Run consumes updates until ctx is done or updates is closed, then drains
// the workers for a short grace period.
func (d *Dispatcher) Run(ctx context.Context, updates <-chan kit.Update) error {
	sup := rtsup.NewSupervisor(ctx,
		rtsup.WithLogger(d.log.With(logx.String("comp", "telegram.router"))),
		rtsup.WithCancelOnError(false),
	)
	shards := make([]chan *Request, d.cfg.Workers)
	for i := range shards {
		shards[i] = make(chan *Request, d.cfg.QueueSize)
	}
	d.mu.Lock()
	d.shards, d.sup = shards, sup
	d.mu.Unlock()

	for i, q := range shards {
		sup.Go0("router.worker."+strconv.Itoa(i), func(c context.Context) {
			d.work(c, q)
		})
	}
	d.log.Info("dispatcher started", logx.Int("workers", len(shards)), logx.Int("queue", d.cfg.QueueSize))

	defer func() {
		for _, q := range shards {
			close(q)
		}
		wctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		_ = sup.Wait(wctx)
		cancel()
		d.mu.Lock()
		d.shards, d.sup = nil, nil
		d.mu.Unlock()
		d.log.Info("dispatcher stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			d.dispatch(up, shards)
		}
	}
}

// work drains q. Queued updates are still handled after cancellation, with
// a context detached from it, so accepted clicks get their answer.
func (d *Dispatcher) work(ctx context.Context, q <-chan *Request) {
	base := context.WithoutCancel(ctx)
	for req := range q {
		_ = d.chain(base, req)
		if cb := req.Update.Callback; cb != nil && d.sender != nil {
			if err := d.sender.AnswerCallback(base, cb.ID, ""); err != nil {
				req.Logger.Debug("answer callback failed", logx.Err(err))
			}
		}
	}
}

func (d *Dispatcher) dispatch(up kit.Update, shards []chan *Request) {
	if up.ID != 0 {
		if seen, _ := d.seen.ContainsOrAdd(up.ID, struct{}{}); seen {
			d.obs.UpdateDropped("duplicate")
			d.log.Debug("duplicate update dropped", logx.Int("update_id", up.ID))
			return
		}
	}
	chat := up.ChatID()
	rid := strconv.FormatUint(d.seq.Add(1), 36)
	req := &Request{
		Update: up,
		ReqID:  rid,
		Logger: d.log.With(
			logx.String("rid", rid),
			logx.Int64("chat_id", chat),
			logx.Int64("from_id", up.FromID()),
		),
	}
	select {
	case shards[shardFor(chat, len(shards))] <- req:
	default:
		d.obs.UpdateDropped("busy")
		req.Logger.Warn("worker queue full, update dropped")
		if d.sender == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if cb := up.Callback; cb != nil {
			_ = d.sender.AnswerCallback(ctx, cb.ID, "busy")
		} else if m := up.Message; m != nil {
			_, _ = d.sender.SendText(ctx, kit.ChatTarget{ChatID: m.ChatID, ThreadID: m.ThreadID}, busyText, nil)
		}
	}
}

func shardFor(chat int64, n int) int {
	h := fnv.New32a()
	var b [8]byte
	for i := range b {
		b[i] = byte(chat >> (8 * i))
	}
	h.Write(b[:])
	return int(h.Sum32() % uint32(n))
}
