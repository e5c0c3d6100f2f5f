package cache

import (
	"container/list"
	"time"
)

type LRUOpts struct {
	Size int
}

type lruEntry struct {
	key       string
	val       any
	expiresAt time.Time // zero means no expiry
}

func (e *lruEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

type lruGet struct {
	key  string
	resp chan lruGetResp
}

type lruGetResp struct {
	val any
	ok  bool
}

type lruPut struct {
	key  string
	val  any
	opts PutOptions
}

type lruDel struct {
	key string
}

// LRU is an in-memory cache with least-recently-used eviction. All
// operations run on a single background goroutine.
type LRU struct {
	getCh  chan lruGet
	putCh  chan lruPut
	delCh  chan lruDel
	stopCh chan struct{}
}

// NewLRU creates an LRU cache holding at most opts.Size entries
// (default 128). Call Close to release the background goroutine.
func NewLRU(opts LRUOpts) *LRU {
	if opts.Size <= 0 {
		opts.Size = 128
	}

	l := &LRU{
		getCh:  make(chan lruGet),
		putCh:  make(chan lruPut),
		delCh:  make(chan lruDel),
		stopCh: make(chan struct{}),
	}

	go l.run(opts.Size)

	return l
}

func (l *LRU) Get(key string) (any, bool) {
	resp := make(chan lruGetResp)
	select {
	case l.getCh <- lruGet{key: key, resp: resp}:
		r := <-resp
		return r.val, r.ok
	case <-l.stopCh:
		return nil, false
	}
}

func (l *LRU) Put(key string, val any, opts ...PutOption) {
	var o PutOptions
	for _, opt := range opts {
		opt(&o)
	}
	select {
	case l.putCh <- lruPut{key: key, val: val, opts: o}:
	case <-l.stopCh:
	}
}

func (l *LRU) Delete(key string) {
	select {
	case l.delCh <- lruDel{key: key}:
	case <-l.stopCh:
	}
}

// Close stops the background goroutine. The cache must not be used after.
func (l *LRU) Close() {
	close(l.stopCh)
}

func (l *LRU) run(size int) {
	ll := list.New()
	entries := make(map[string]*list.Element)

	remove := func(ele *list.Element) {
		ll.Remove(ele)
		delete(entries, ele.Value.(*lruEntry).key)
	}

	for {
		select {
		case <-l.stopCh:
			return

		case req := <-l.getCh:
			ele, ok := entries[req.key]
			if !ok {
				req.resp <- lruGetResp{ok: false}
				continue
			}
			ent := ele.Value.(*lruEntry)
			if ent.expired(time.Now()) {
				remove(ele)
				req.resp <- lruGetResp{ok: false}
				continue
			}
			ll.MoveToFront(ele)
			req.resp <- lruGetResp{val: ent.val, ok: true}

		case req := <-l.putCh:
			var expiresAt time.Time
			if req.opts.TTL > 0 {
				expiresAt = time.Now().Add(req.opts.TTL)
			}
			if ele, ok := entries[req.key]; ok {
				ll.MoveToFront(ele)
				ent := ele.Value.(*lruEntry)
				ent.val = req.val
				ent.expiresAt = expiresAt
				continue
			}
			ele := ll.PushFront(&lruEntry{key: req.key, val: req.val, expiresAt: expiresAt})
			entries[req.key] = ele
			if ll.Len() > size {
				if last := ll.Back(); last != nil {
					remove(last)
				}
			}

		case req := <-l.delCh:
			if ele, ok := entries[req.key]; ok {
				remove(ele)
			}
		}
	}
}

var _ Cache = (*LRU)(nil)
