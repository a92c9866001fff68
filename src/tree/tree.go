// Package tree implements the on-disk B+-tree: a single file of fixed
// 4096-byte pages (one meta page plus leaf and internal pages), supporting
// point Get and Set with a bottom-up split cascade. It is the component
// _examples/original_source/src/lib.rs's BTree<K, V> was distilled from,
// rebuilt in the teacher's idiom: constructor options instead of a global
// settings singleton, zap logging, and errors returned rather than
// asserted away.
package tree

import (
	"cmp"
	"errors"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"bptreekv/src/codec"
	"bptreekv/src/helpers"
	"bptreekv/src/page"
)

// Tree is a single-file B+-tree index keyed by K with values V. It caches
// the meta page and the current root page; every other page is loaded on
// demand during a descent and discarded once the operation completes.
type Tree[K cmp.Ordered, V any] struct {
	path string
	file *fileHandle

	keyCodec codec.Codec[K]
	valCodec codec.Codec[V]

	meta *page.Page[K, V]
	root *page.Page[K, V]

	logger     *zap.SugaredLogger
	instanceID string
}

// Open opens path, creating an empty tree file if it does not exist or is
// zero-length, and loading the existing meta/root pages otherwise.
func Open[K cmp.Ordered, V any](path string, keyCodec codec.Codec[K], valCodec codec.Codec[V], opts ...Option) (*Tree[K, V], error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.InstanceID == "" {
		o.InstanceID = helpers.GenerateUUID()
	}

	fh, err := openFileHandle(path, o.Fsync)
	if err != nil {
		o.Logger.Warnw("tree: open file failed", "path", path, "error", err)
		return nil, err
	}

	t := &Tree[K, V]{
		path:       path,
		file:       fh,
		keyCodec:   keyCodec,
		valCodec:   valCodec,
		logger:     o.Logger.With("instance", o.InstanceID, "path", path),
		instanceID: o.InstanceID,
	}

	size, err := fh.size()
	if err != nil {
		return nil, t.logErr(err, "tree: stat failed")
	}

	if size == 0 {
		if err := t.initEmpty(); err != nil {
			return nil, err
		}
		t.logger.Debugw("initialized new tree file")
	} else {
		if err := t.initLoad(); err != nil {
			return nil, err
		}
	}
	t.logger.Infow("opened tree", "root_index", t.root.Index)
	return t, nil
}

// logErr logs err at Warn, the point at which it is about to be wrapped and
// handed back to a caller who cannot retry, and returns err unchanged so it
// can be used inline at a return statement. A nil err is a no-op, so callers
// may use it unconditionally at every error-returning path.
func (t *Tree[K, V]) logErr(err error, msg string, kv ...interface{}) error {
	if err != nil {
		t.logger.Warnw(msg, append(kv, "error", err)...)
	}
	return err
}

func (t *Tree[K, V]) initEmpty() error {
	t.file.mu.Lock()
	defer t.file.mu.Unlock()

	meta, err := page.New[K, V](0, page.KindMeta, t.keyCodec, t.valCodec)
	if err != nil {
		return t.logErr(err, "tree: allocate meta page failed")
	}
	root, err := page.New[K, V](1, page.KindLeaf, t.keyCodec, t.valCodec)
	if err != nil {
		return t.logErr(err, "tree: allocate root leaf page failed")
	}
	if err := meta.SetRootIndex(1); err != nil {
		return t.logErr(err, "tree: set root index on meta page failed")
	}
	if err := meta.SetTotalPages(2); err != nil {
		return t.logErr(err, "tree: set total pages on meta page failed")
	}
	if err := root.Sync(t.file.f); err != nil {
		return t.logErr(err, "tree: sync root leaf page failed")
	}
	if err := meta.Sync(t.file.f); err != nil {
		return t.logErr(err, "tree: sync meta page failed")
	}

	t.meta = meta
	t.root = root
	return nil
}

func (t *Tree[K, V]) initLoad() error {
	t.file.mu.RLock()
	defer t.file.mu.RUnlock()

	meta, err := page.Load[K, V](t.file.f, 0, t.keyCodec, t.valCodec)
	if err != nil {
		return t.logErr(fmt.Errorf("tree: load meta page: %w", err), "tree: load meta page failed")
	}
	if meta.Kind() != page.KindMeta {
		return t.logErr(fmt.Errorf("tree: page 0 of %s is not a meta page: %w", t.path, page.ErrInvariantViolation), "tree: page 0 is not a meta page")
	}
	rootIndex, err := meta.RootIndex()
	if err != nil {
		return t.logErr(err, "tree: read root index from meta page failed")
	}
	root, err := page.Load[K, V](t.file.f, rootIndex, t.keyCodec, t.valCodec)
	if err != nil {
		return t.logErr(fmt.Errorf("tree: load root page %d: %w", rootIndex, err), "tree: load root page failed", "root_index", rootIndex)
	}

	t.meta = meta
	t.root = root
	return nil
}

// Close flushes the cached meta and root pages and closes the file. A Tree
// must not be used after Close.
func (t *Tree[K, V]) Close() error {
	t.file.mu.Lock()
	defer t.file.mu.Unlock()

	var errs error
	if err := t.meta.Sync(t.file.f); err != nil {
		t.logger.Warnw("tree: sync meta page on close failed", "error", err)
		errs = multierr.Append(errs, err)
	}
	if err := t.root.Sync(t.file.f); err != nil {
		t.logger.Warnw("tree: sync root page on close failed", "error", err)
		errs = multierr.Append(errs, err)
	}
	if err := t.file.close(); err != nil {
		t.logger.Warnw("tree: close file failed", "error", err)
		errs = multierr.Append(errs, err)
	}
	return errs
}

// descendIndex returns the child slot to follow from an internal page,
// given a Find result: Left means "before this key" (ptr at the found
// index), Current/Right both mean "after this key" (ptr at index+1).
func descendIndex[K cmp.Ordered, V any](p *page.Page[K, V], k K) (int, error) {
	res, err := p.Find(k)
	if err != nil {
		return 0, err
	}
	if !res.Found {
		return 0, fmt.Errorf("tree: internal page %d has no keys: %w", p.Index, page.ErrInvariantViolation)
	}
	if res.Pos == page.PosLeft {
		return res.Index, nil
	}
	return res.Index + 1, nil
}

// Get returns the value stored for k, and false if no such key exists.
func (t *Tree[K, V]) Get(k K) (V, bool, error) {
	t.file.mu.RLock()
	defer t.file.mu.RUnlock()

	var zero V
	cur := t.root
	for cur.Kind() == page.KindInternal {
		idx, err := descendIndex(cur, k)
		if err != nil {
			return zero, false, t.logErr(err, "tree: get descend failed", "page_index", cur.Index)
		}
		childPtr, _, err := cur.PtrAt(idx)
		if err != nil {
			return zero, false, t.logErr(err, "tree: get read child pointer failed", "page_index", cur.Index, "slot", idx)
		}
		child, err := page.Load[K, V](t.file.f, childPtr, t.keyCodec, t.valCodec)
		if err != nil {
			return zero, false, t.logErr(fmt.Errorf("tree: load page %d: %w", childPtr, err), "tree: get load child page failed", "page_index", childPtr)
		}
		cur = child
	}

	res, err := cur.Find(k)
	if err != nil {
		return zero, false, t.logErr(err, "tree: get find failed", "page_index", cur.Index)
	}
	if !res.Found || res.Pos != page.PosCurrent {
		return zero, false, nil
	}
	v, found, err := cur.ValueAt(res.Index)
	if err != nil {
		return zero, false, t.logErr(err, "tree: get read value failed", "page_index", cur.Index, "slot", res.Index)
	}
	return v, found, nil
}

// Set inserts or overwrites the value stored for k, splitting pages and
// cascading a new separator key up toward the root as needed.
func (t *Tree[K, V]) Set(k K, v V) error {
	t.file.mu.Lock()
	defer t.file.mu.Unlock()

	path := make([]*page.Page[K, V], 0, 4)
	cur := t.root
	for cur.Kind() == page.KindInternal {
		idx, err := descendIndex(cur, k)
		if err != nil {
			return t.logErr(err, "tree: set descend failed", "page_index", cur.Index)
		}
		childPtr, _, err := cur.PtrAt(idx)
		if err != nil {
			return t.logErr(err, "tree: set read child pointer failed", "page_index", cur.Index, "slot", idx)
		}
		child, err := page.Load[K, V](t.file.f, childPtr, t.keyCodec, t.valCodec)
		if err != nil {
			return t.logErr(fmt.Errorf("tree: load page %d: %w", childPtr, err), "tree: set load child page failed", "page_index", childPtr)
		}
		path = append(path, child)
		cur = child
	}
	leaf := cur

	if err := leaf.Insert(k, v); err == nil {
		return t.logErr(t.syncAll(nil, []*page.Page[K, V]{leaf}), "tree: set sync after leaf insert failed")
	} else if !errors.Is(err, page.ErrPageFull) {
		return t.logErr(err, "tree: set leaf insert failed", "leaf_index", leaf.Index)
	}

	t.logger.Infow("leaf full, splitting", "leaf_index", leaf.Index)

	promotedKey, newLeaf, err := t.splitLeaf(leaf, k, v)
	if err != nil {
		return t.logErr(err, "tree: set split leaf failed", "leaf_index", leaf.Index)
	}

	newPages := []*page.Page[K, V]{newLeaf}
	touched := []*page.Page[K, V]{leaf}
	promotedPtr := newLeaf.Index

	var ancestors []*page.Page[K, V]
	if len(path) > 0 {
		ancestors = path[:len(path)-1]
	}

	for i := len(ancestors) - 1; i >= 0; i-- {
		anc := ancestors[i]
		full, err := anc.IsFull()
		if err != nil {
			return t.logErr(err, "tree: set check ancestor full failed", "page_index", anc.Index)
		}
		if !full {
			if err := anc.InsertPtr(promotedKey, promotedPtr); err != nil {
				return t.logErr(err, "tree: set insert promoted key into ancestor failed", "page_index", anc.Index)
			}
			touched = append(touched, anc)
			return t.logErr(t.syncAll(newPages, touched), "tree: set sync after ancestor insert failed")
		}

		t.logger.Infow("internal page full, splitting", "page_index", anc.Index)
		var newAnc *page.Page[K, V]
		promotedKey, newAnc, err = t.splitInternal(anc, promotedKey, promotedPtr)
		if err != nil {
			return t.logErr(err, "tree: set split internal page failed", "page_index", anc.Index)
		}
		touched = append(touched, anc)
		newPages = append(newPages, newAnc)
		promotedPtr = newAnc.Index
	}

	// Every ancestor on the path was full (or there was no path at all,
	// meaning the root itself was the leaf that just split). Either way
	// the promotion lands on the root.
	if t.root.Kind() == page.KindLeaf {
		newRoot, err := t.newPage(page.KindInternal)
		if err != nil {
			return t.logErr(err, "tree: set allocate new root failed")
		}
		if err := newRoot.SetItemCount(1); err != nil {
			return t.logErr(err, "tree: set new root item count failed")
		}
		if err := newRoot.SetPtrAt(0, t.root.Index); err != nil {
			return t.logErr(err, "tree: set new root ptr[0] failed")
		}
		if err := newRoot.SetKeyAt(0, promotedKey); err != nil {
			return t.logErr(err, "tree: set new root key[0] failed")
		}
		if err := newRoot.SetPtrAt(1, promotedPtr); err != nil {
			return t.logErr(err, "tree: set new root ptr[1] failed")
		}
		if err := t.meta.SetRootIndex(newRoot.Index); err != nil {
			return t.logErr(err, "tree: set meta root index failed")
		}
		// leaf == t.root here (path was empty), already in touched.
		newPages = append(newPages, newRoot)
		t.logger.Infow("root leaf split, new root", "new_root_index", newRoot.Index)
		t.root = newRoot
		return t.logErr(t.syncAll(newPages, touched), "tree: set sync after root leaf split failed")
	}

	rootFull, err := t.root.IsFull()
	if err != nil {
		return t.logErr(err, "tree: set check root full failed")
	}
	if !rootFull {
		if err := t.root.InsertPtr(promotedKey, promotedPtr); err != nil {
			return t.logErr(err, "tree: set insert promoted key into root failed")
		}
		touched = append(touched, t.root)
		return t.logErr(t.syncAll(newPages, touched), "tree: set sync after root insert failed")
	}

	rootKey, newRootSibling, err := t.splitInternal(t.root, promotedKey, promotedPtr)
	if err != nil {
		return t.logErr(err, "tree: set split root failed")
	}
	newRoot, err := t.newPage(page.KindInternal)
	if err != nil {
		return t.logErr(err, "tree: set allocate new root failed")
	}
	if err := newRoot.SetItemCount(1); err != nil {
		return t.logErr(err, "tree: set new root item count failed")
	}
	if err := newRoot.SetPtrAt(0, t.root.Index); err != nil {
		return t.logErr(err, "tree: set new root ptr[0] failed")
	}
	if err := newRoot.SetKeyAt(0, rootKey); err != nil {
		return t.logErr(err, "tree: set new root key[0] failed")
	}
	if err := newRoot.SetPtrAt(1, newRootSibling.Index); err != nil {
		return t.logErr(err, "tree: set new root ptr[1] failed")
	}
	if err := t.meta.SetRootIndex(newRoot.Index); err != nil {
		return t.logErr(err, "tree: set meta root index failed")
	}
	touched = append(touched, t.root)
	newPages = append(newPages, newRootSibling, newRoot)
	t.logger.Infow("root split, new root", "new_root_index", newRoot.Index)
	t.root = newRoot
	return t.logErr(t.syncAll(newPages, touched), "tree: set sync after root split failed")
}

// newPage allocates a fresh page at the next free index and bumps the
// meta page's total-pages counter. It does not sync anything; the caller
// folds the new page into its syncAll batch once the operation commits.
func (t *Tree[K, V]) newPage(kind page.Kind) (*page.Page[K, V], error) {
	total, err := t.meta.TotalPages()
	if err != nil {
		return nil, err
	}
	if err := t.meta.SetTotalPages(total + 1); err != nil {
		return nil, err
	}
	t.logger.Debugw("allocated page", "page_index", total, "kind", kind.String())
	return page.New[K, V](total, kind, t.keyCodec, t.valCodec)
}

// splitLeaf splits a full leaf p, inserting (k, v) into the merged,
// ordered sequence first. cut = ceil((n+1)/2) keeps the lower half in p
// and moves the rest to a newly allocated leaf, matching
// original_source/src/lib.rs's split_leaf_page.
func (t *Tree[K, V]) splitLeaf(p *page.Page[K, V], k K, v V) (promoted K, newLeaf *page.Page[K, V], err error) {
	newLeaf, err = t.newPage(page.KindLeaf)
	if err != nil {
		return
	}

	n, err := p.ItemCount()
	if err != nil {
		return
	}

	keys := make([]K, 0, n+1)
	vals := make([]V, 0, n+1)
	inserted := false
	for i := 0; i < n; i++ {
		var ek K
		var ev V
		ek, _, err = p.KeyAt(i)
		if err != nil {
			return
		}
		ev, _, err = p.ValueAt(i)
		if err != nil {
			return
		}
		if !inserted && ek > k {
			keys = append(keys, k)
			vals = append(vals, v)
			inserted = true
		}
		keys = append(keys, ek)
		vals = append(vals, ev)
	}
	if !inserted {
		keys = append(keys, k)
		vals = append(vals, v)
	}

	cut := (len(keys) + 1) / 2
	if err = p.SetItemCount(cut); err != nil {
		return
	}
	if err = newLeaf.SetItemCount(len(keys) - cut); err != nil {
		return
	}
	for i := 0; i < cut; i++ {
		if err = p.SetKeyAt(i, keys[i]); err != nil {
			return
		}
		if err = p.SetValueAt(i, vals[i]); err != nil {
			return
		}
	}
	for i := cut; i < len(keys); i++ {
		if err = newLeaf.SetKeyAt(i-cut, keys[i]); err != nil {
			return
		}
		if err = newLeaf.SetValueAt(i-cut, vals[i]); err != nil {
			return
		}
	}

	promoted = keys[cut]
	return
}

// splitInternal splits a full internal page p after inserting separator
// key k (owning child pointer ptr) into its ordered key/pointer sequence.
// Over the m = n+1 merged keys, up = floor((m-1)/2): the key at that position
// is promoted and stored in neither half, matching split_internal_page in the
// same file.
func (t *Tree[K, V]) splitInternal(p *page.Page[K, V], k K, ptr int64) (promoted K, newPage *page.Page[K, V], err error) {
	newPage, err = t.newPage(page.KindInternal)
	if err != nil {
		return
	}

	n, err := p.ItemCount()
	if err != nil {
		return
	}

	keys := make([]K, 0, n+1)
	ptrs := make([]int64, 0, n+2)
	p0, _, err := p.PtrAt(0)
	if err != nil {
		return
	}
	ptrs = append(ptrs, p0)

	inserted := false
	for i := 0; i < n; i++ {
		var ek K
		var nextPtr int64
		ek, _, err = p.KeyAt(i)
		if err != nil {
			return
		}
		nextPtr, _, err = p.PtrAt(i + 1)
		if err != nil {
			return
		}
		if !inserted && ek > k {
			keys = append(keys, k)
			ptrs = append(ptrs, ptr)
			inserted = true
		}
		keys = append(keys, ek)
		ptrs = append(ptrs, nextPtr)
	}
	if !inserted {
		keys = append(keys, k)
		ptrs = append(ptrs, ptr)
	}

	up := (len(keys) - 1) / 2
	if err = p.SetItemCount(up); err != nil {
		return
	}
	if err = newPage.SetItemCount(len(keys) - up - 1); err != nil {
		return
	}
	for i := 0; i < up; i++ {
		if err = p.SetKeyAt(i, keys[i]); err != nil {
			return
		}
		if err = p.SetPtrAt(i+1, ptrs[i+1]); err != nil {
			return
		}
	}
	if err = newPage.SetPtrAt(0, ptrs[up+1]); err != nil {
		return
	}
	for i := up + 1; i < len(keys); i++ {
		if err = newPage.SetKeyAt(i-up-1, keys[i]); err != nil {
			return
		}
		if err = newPage.SetPtrAt(i-up, ptrs[i+1]); err != nil {
			return
		}
	}

	promoted = keys[up]
	return
}

// syncAll writes newPages then touched pages then, if any new page was
// allocated (which always means the meta page's total-pages counter
// changed), the meta page — children durable before the parents that
// reference them, parents durable before the root pointer that reaches
// them. This syncs every mutated page unconditionally, unlike the
// reference implementation this tree is grounded on, whose sync() only
// ever flushed the meta and root pages and silently dropped the rest of
// a split cascade.
func (t *Tree[K, V]) syncAll(newPages, touched []*page.Page[K, V]) error {
	for _, p := range newPages {
		if err := p.Sync(t.file.f); err != nil {
			return fmt.Errorf("tree: sync new page %d: %w", p.Index, err)
		}
	}
	for _, p := range touched {
		if err := p.Sync(t.file.f); err != nil {
			return fmt.Errorf("tree: sync page %d: %w", p.Index, err)
		}
	}
	if len(newPages) > 0 {
		if err := t.meta.Sync(t.file.f); err != nil {
			return fmt.Errorf("tree: sync meta page: %w", err)
		}
	}
	if t.file.fsync {
		if err := t.file.f.Sync(); err != nil {
			return fmt.Errorf("tree: fsync: %w", err)
		}
	}
	return nil
}
