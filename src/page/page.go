// Package page implements the fixed 4096-byte page: the sole unit of I/O
// for the tree package. A Page is bound to a page index in the file,
// tagged with a kind (meta/internal/leaf), and exposes typed accessors for
// keys, values, and child pointers plus in-page binary search and ordered
// in-place insertion. It never reads or writes any page other than
// itself — ownership of which pages exist and how they chain together
// belongs entirely to the tree package.
package page

import (
	"cmp"
	"fmt"
	"io"
	"os"

	"bptreekv/src/codec"
)

// Size is the fixed on-disk size of every page, meta included.
const Size = 4096

const ptrSize = 4

var ptrCodec = codec.Uint32Codec{}

// Kind identifies what a page's buffer holds.
type Kind uint8

const (
	KindLeaf Kind = iota
	KindInternal
	KindMeta
)

func (k Kind) String() string {
	switch k {
	case KindMeta:
		return "meta"
	case KindInternal:
		return "internal"
	case KindLeaf:
		return "leaf"
	default:
		return "unknown"
	}
}

func tagByte(k Kind) byte {
	switch k {
	case KindMeta:
		return 0x01
	case KindInternal:
		return 0x02
	default:
		return 0x00
	}
}

func kindFromTag(b byte) Kind {
	if b&0x01 == 1 {
		return KindMeta
	}
	if b&0x02 > 0 {
		return KindInternal
	}
	return KindLeaf
}

// FindPos classifies where a search key sits relative to a page's
// contents, replacing the more common "insertion point" integer with the
// three states the split/insert logic branches on directly.
type FindPos int

const (
	PosCurrent FindPos = iota
	PosLeft
	PosRight
)

// FindResult is the outcome of Find. Found is false only when the page
// holds zero items.
type FindResult struct {
	Index int
	Pos   FindPos
	Found bool
}

// Page is a 4096-byte buffer bound to a page index, typed over a key type
// K (ordered, so in-page binary search has a comparison to use) and a
// value type V. It holds a Codec[K] and a Codec[V] rather than requiring K
// and V to carry methods themselves, since Go cannot attach methods to
// builtin types such as uint32 or float64.
type Page[K cmp.Ordered, V any] struct {
	Index int64

	buf      [Size]byte
	kind     Kind
	keyCodec codec.Codec[K]
	valCodec codec.Codec[V]

	keysPos   int
	valuesPos int
	ptrsPos   int
	maxItems  int
}

// New initializes a zeroed page of the given kind bound to index, with
// layout constants computed from the codecs' bin sizes.
func New[K cmp.Ordered, V any](index int64, kind Kind, keyCodec codec.Codec[K], valCodec codec.Codec[V]) (*Page[K, V], error) {
	p := &Page[K, V]{
		Index:    index,
		kind:     kind,
		keyCodec: keyCodec,
		valCodec: valCodec,
	}
	p.buf[0] = tagByte(kind)
	if err := p.initLayout(); err != nil {
		return nil, err
	}
	switch kind {
	case KindMeta:
		p.setRootIndexRaw(0)
		p.setTotalPagesRaw(0)
	case KindInternal, KindLeaf:
		if err := p.SetItemCount(0); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Load reads the page at the given index from f and decodes its kind and
// layout. It fails with an IO error on a short read.
func Load[K cmp.Ordered, V any](f *os.File, index int64, keyCodec codec.Codec[K], valCodec codec.Codec[V]) (*Page[K, V], error) {
	p := &Page[K, V]{
		Index:    index,
		keyCodec: keyCodec,
		valCodec: valCodec,
	}
	offset := index * Size
	n, err := f.ReadAt(p.buf[:], offset)
	if err != nil && !(err == io.EOF && n == Size) {
		return nil, fmt.Errorf("page: read page %d: %w", index, err)
	}
	if n < Size {
		return nil, fmt.Errorf("page: short read of page %d: got %d of %d bytes", index, n, Size)
	}
	p.kind = kindFromTag(p.buf[0])
	if err := p.initLayout(); err != nil {
		return nil, err
	}
	return p, nil
}

// Sync writes the entire page buffer back to its file offset.
func (p *Page[K, V]) Sync(f *os.File) error {
	offset := p.Index * Size
	if _, err := f.WriteAt(p.buf[:], offset); err != nil {
		return fmt.Errorf("page: write page %d: %w", p.Index, err)
	}
	return nil
}

// Kind reports the page's kind.
func (p *Page[K, V]) Kind() Kind { return p.kind }

func (p *Page[K, V]) initLayout() error {
	switch p.kind {
	case KindMeta:
		// no key/value slots on a meta page
	case KindInternal:
		p.maxItems = (Size - 8 - ptrSize) / (p.keyCodec.BinSize() + ptrSize)
		p.keysPos = 8
		p.ptrsPos = p.keysPos + p.maxItems*p.keyCodec.BinSize()
	case KindLeaf:
		p.maxItems = (Size - 8) / (p.keyCodec.BinSize() + p.valCodec.BinSize())
		p.keysPos = 8
		p.valuesPos = p.keysPos + p.maxItems*p.keyCodec.BinSize()
	}
	if p.kind != KindMeta && p.maxItems < 2 {
		return fmt.Errorf("page: key/value sizes leave max_items=%d for a %s page, need at least 2: %w", p.maxItems, p.kind, ErrInvariantViolation)
	}
	return nil
}

func (p *Page[K, V]) requireKind(kinds ...Kind) error {
	for _, k := range kinds {
		if p.kind == k {
			return nil
		}
	}
	return fmt.Errorf("page: operation not valid on a %s page: %w", p.kind, ErrInvariantViolation)
}

// RootIndex returns the root page index stored on a meta page.
func (p *Page[K, V]) RootIndex() (int64, error) {
	if err := p.requireKind(KindMeta); err != nil {
		return 0, err
	}
	v, _, err := ptrCodec.Decode(p.buf[4:])
	return int64(v), err
}

// SetRootIndex sets the root page index on a meta page.
func (p *Page[K, V]) SetRootIndex(index int64) error {
	if err := p.requireKind(KindMeta); err != nil {
		return err
	}
	p.setRootIndexRaw(index)
	return nil
}

func (p *Page[K, V]) setRootIndexRaw(index int64) {
	_, _ = ptrCodec.Encode(uint32(index), p.buf[4:])
}

// TotalPages returns the total-pages counter stored on a meta page.
func (p *Page[K, V]) TotalPages() (int64, error) {
	if err := p.requireKind(KindMeta); err != nil {
		return 0, err
	}
	v, _, err := ptrCodec.Decode(p.buf[8:])
	return int64(v), err
}

// SetTotalPages sets the total-pages counter on a meta page.
func (p *Page[K, V]) SetTotalPages(n int64) error {
	if err := p.requireKind(KindMeta); err != nil {
		return err
	}
	p.setTotalPagesRaw(n)
	return nil
}

func (p *Page[K, V]) setTotalPagesRaw(n int64) {
	_, _ = ptrCodec.Encode(uint32(n), p.buf[8:])
}

// ItemCount returns the number of keys stored on a leaf or internal page.
func (p *Page[K, V]) ItemCount() (int, error) {
	if err := p.requireKind(KindInternal, KindLeaf); err != nil {
		return 0, err
	}
	v, _, err := ptrCodec.Decode(p.buf[4:])
	return int(v), err
}

// SetItemCount sets the item count. It fails with ErrPageFull if n exceeds
// the page's capacity.
func (p *Page[K, V]) SetItemCount(n int) error {
	if err := p.requireKind(KindInternal, KindLeaf); err != nil {
		return err
	}
	if n > p.maxItems {
		return ErrPageFull
	}
	_, err := ptrCodec.Encode(uint32(n), p.buf[4:])
	return err
}

// IsFull reports whether the page has reached max_items. Defined only for
// leaf and internal pages.
func (p *Page[K, V]) IsFull() (bool, error) {
	n, err := p.ItemCount()
	if err != nil {
		return false, err
	}
	return n >= p.maxItems, nil
}

// MaxItems returns the page's key capacity.
func (p *Page[K, V]) MaxItems() int { return p.maxItems }

// KeyAt decodes the key at slot i. found is false when i is past the
// current item count.
func (p *Page[K, V]) KeyAt(i int) (k K, found bool, err error) {
	n, err := p.ItemCount()
	if err != nil {
		return k, false, err
	}
	if i >= n || i < 0 {
		return k, false, nil
	}
	off := p.keysPos + i*p.keyCodec.BinSize()
	k, _, err = p.keyCodec.Decode(p.buf[off:])
	if err != nil {
		return k, false, fmt.Errorf("page: decode key at slot %d of page %d: %w", i, p.Index, err)
	}
	return k, true, nil
}

// ValueAt decodes the value at slot i (leaf pages only).
func (p *Page[K, V]) ValueAt(i int) (v V, found bool, err error) {
	if err := p.requireKind(KindLeaf); err != nil {
		return v, false, err
	}
	n, err := p.ItemCount()
	if err != nil {
		return v, false, err
	}
	if i >= n || i < 0 {
		return v, false, nil
	}
	off := p.valuesPos + i*p.valCodec.BinSize()
	v, _, err = p.valCodec.Decode(p.buf[off:])
	if err != nil {
		return v, false, fmt.Errorf("page: decode value at slot %d of page %d: %w", i, p.Index, err)
	}
	return v, true, nil
}

// PtrAt decodes the child pointer at slot i (internal pages only). An
// internal page with item_count n has n+1 valid pointer slots.
func (p *Page[K, V]) PtrAt(i int) (ptr int64, found bool, err error) {
	if err := p.requireKind(KindInternal); err != nil {
		return 0, false, err
	}
	n, err := p.ItemCount()
	if err != nil {
		return 0, false, err
	}
	if i >= n+1 || i < 0 {
		return 0, false, nil
	}
	off := p.ptrsPos + i*ptrSize
	v, _, err := ptrCodec.Decode(p.buf[off:])
	return int64(v), true, err
}

// SetKeyAt writes the key at slot i. i must be within the current item
// count.
func (p *Page[K, V]) SetKeyAt(i int, k K) error {
	n, err := p.ItemCount()
	if err != nil {
		return err
	}
	if i >= n || i < 0 {
		return ErrOutOfRange
	}
	off := p.keysPos + i*p.keyCodec.BinSize()
	_, err = p.keyCodec.Encode(k, p.buf[off:])
	return err
}

// SetValueAt writes the value at slot i (leaf pages only).
func (p *Page[K, V]) SetValueAt(i int, v V) error {
	if err := p.requireKind(KindLeaf); err != nil {
		return err
	}
	n, err := p.ItemCount()
	if err != nil {
		return err
	}
	if i >= n || i < 0 {
		return ErrOutOfRange
	}
	off := p.valuesPos + i*p.valCodec.BinSize()
	_, err = p.valCodec.Encode(v, p.buf[off:])
	return err
}

// SetPtrAt writes the child pointer at slot i (internal pages only). i may
// be up to item_count (inclusive), since an internal page with n keys has
// n+1 pointers.
func (p *Page[K, V]) SetPtrAt(i int, ptr int64) error {
	if err := p.requireKind(KindInternal); err != nil {
		return err
	}
	n, err := p.ItemCount()
	if err != nil {
		return err
	}
	if i >= n+1 || i < 0 {
		return ErrOutOfRange
	}
	off := p.ptrsPos + i*ptrSize
	_, err = ptrCodec.Encode(uint32(ptr), p.buf[off:])
	return err
}

// Find performs binary search over the page's keys. It returns Found=false
// only when the page holds zero items.
func (p *Page[K, V]) Find(k K) (FindResult, error) {
	n, err := p.ItemCount()
	if err != nil {
		return FindResult{}, err
	}
	if n == 0 {
		return FindResult{}, nil
	}
	min, max := 0, n-1
	for min <= max {
		mid := (min + max) / 2
		midKey, _, err := p.KeyAt(mid)
		if err != nil {
			return FindResult{}, err
		}
		switch {
		case midKey == k:
			return FindResult{Index: mid, Pos: PosCurrent, Found: true}, nil
		case k > midKey:
			if mid == n-1 {
				return FindResult{Index: mid, Pos: PosRight, Found: true}, nil
			}
			nextKey, _, err := p.KeyAt(mid + 1)
			if err != nil {
				return FindResult{}, err
			}
			if nextKey > k {
				return FindResult{Index: mid, Pos: PosRight, Found: true}, nil
			}
			min = mid + 1
		default: // k < midKey
			if mid == 0 {
				return FindResult{Index: mid, Pos: PosLeft, Found: true}, nil
			}
			max = mid - 1
		}
	}
	return FindResult{}, nil
}

// Insert performs ordered in-place insertion of (k, v) into a leaf page.
// A duplicate key overwrites its existing value. It returns ErrPageFull if
// the page has no room for a genuinely new key.
func (p *Page[K, V]) Insert(k K, v V) error {
	if err := p.requireKind(KindLeaf); err != nil {
		return err
	}
	old, err := p.ItemCount()
	if err != nil {
		return err
	}
	res, err := p.Find(k)
	if err != nil {
		return err
	}
	if !res.Found {
		if err := p.SetItemCount(1); err != nil {
			return err
		}
		if err := p.SetKeyAt(0, k); err != nil {
			return err
		}
		return p.SetValueAt(0, v)
	}
	switch res.Pos {
	case PosCurrent:
		if err := p.SetKeyAt(res.Index, k); err != nil {
			return err
		}
		return p.SetValueAt(res.Index, v)
	case PosLeft:
		if err := p.SetItemCount(old + 1); err != nil {
			return err
		}
		for j := old - 1; j >= res.Index; j-- {
			if err := p.shiftKV(j, j+1); err != nil {
				return err
			}
		}
		if err := p.SetKeyAt(res.Index, k); err != nil {
			return err
		}
		return p.SetValueAt(res.Index, v)
	default: // PosRight
		if err := p.SetItemCount(old + 1); err != nil {
			return err
		}
		for j := old - 1; j >= res.Index+1; j-- {
			if err := p.shiftKV(j, j+1); err != nil {
				return err
			}
		}
		if err := p.SetKeyAt(res.Index+1, k); err != nil {
			return err
		}
		return p.SetValueAt(res.Index+1, v)
	}
}

func (p *Page[K, V]) shiftKV(from, to int) error {
	k, _, err := p.KeyAt(from)
	if err != nil {
		return err
	}
	v, _, err := p.ValueAt(from)
	if err != nil {
		return err
	}
	if err := p.SetKeyAt(to, k); err != nil {
		return err
	}
	return p.SetValueAt(to, v)
}

// InsertPtr performs ordered in-place insertion of a (separator key, child
// pointer) pair into an internal page. A key at logical slot i owns the
// pointer at slot i+1. Inserting into an empty internal page requires that
// ptr[0] has already been set by the caller.
func (p *Page[K, V]) InsertPtr(k K, ptr int64) error {
	if err := p.requireKind(KindInternal); err != nil {
		return err
	}
	old, err := p.ItemCount()
	if err != nil {
		return err
	}
	res, err := p.Find(k)
	if err != nil {
		return err
	}
	if !res.Found {
		p0, _, err := p.PtrAt(0)
		if err != nil {
			return err
		}
		if p0 <= 0 {
			return fmt.Errorf("page: insert_ptr into empty internal page %d without ptr[0] set: %w", p.Index, ErrInvariantViolation)
		}
		if err := p.SetItemCount(1); err != nil {
			return err
		}
		if err := p.SetKeyAt(0, k); err != nil {
			return err
		}
		return p.SetPtrAt(1, ptr)
	}
	switch res.Pos {
	case PosCurrent:
		if err := p.SetKeyAt(res.Index, k); err != nil {
			return err
		}
		return p.SetPtrAt(res.Index+1, ptr)
	case PosLeft:
		if err := p.SetItemCount(old + 1); err != nil {
			return err
		}
		for j := old - 1; j >= res.Index; j-- {
			if err := p.shiftKeyPtr(j, j+1); err != nil {
				return err
			}
		}
		if err := p.SetKeyAt(res.Index, k); err != nil {
			return err
		}
		return p.SetPtrAt(res.Index+1, ptr)
	default: // PosRight
		if err := p.SetItemCount(old + 1); err != nil {
			return err
		}
		for j := old - 1; j >= res.Index+1; j-- {
			if err := p.shiftKeyPtr(j, j+1); err != nil {
				return err
			}
		}
		if err := p.SetKeyAt(res.Index+1, k); err != nil {
			return err
		}
		return p.SetPtrAt(res.Index+2, ptr)
	}
}

// shiftKeyPtr moves key[from] to key[to] and ptr[from+1] to ptr[to+1], the
// "one further right" shift InsertPtr needs since a key at slot i owns the
// pointer at slot i+1.
func (p *Page[K, V]) shiftKeyPtr(from, to int) error {
	k, _, err := p.KeyAt(from)
	if err != nil {
		return err
	}
	ptr, _, err := p.PtrAt(from + 1)
	if err != nil {
		return err
	}
	if err := p.SetKeyAt(to, k); err != nil {
		return err
	}
	return p.SetPtrAt(to+1, ptr)
}
