// Copyright (c) 2025 The Helios developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package kv

// Bucket provides a logical key prefix over a kv store, so independent
// subsystems can share one database file without key collisions.
type Bucket string

type bucketGetter struct {
	b   Bucket
	src Getter
}

func (g *bucketGetter) Get(key []byte) ([]byte, error) {
	return g.src.Get(g.b.makeKey(key))
}

func (g *bucketGetter) Has(key []byte) (bool, error) {
	return g.src.Has(g.b.makeKey(key))
}

func (g *bucketGetter) IsNotFound(err error) bool {
	return g.src.IsNotFound(err)
}

type bucketPutter struct {
	b   Bucket
	src Putter
}

func (p *bucketPutter) Put(key, val []byte) error {
	return p.src.Put(p.b.makeKey(key), val)
}

func (p *bucketPutter) Delete(key []byte) error {
	return p.src.Delete(p.b.makeKey(key))
}

func (b Bucket) makeKey(key []byte) []byte {
	return append(append(make([]byte, 0, len(b)+len(key)), b...), key...)
}

// NewGetter creates a bucket getter from the source getter.
func (b Bucket) NewGetter(src Getter) Getter {
	return &bucketGetter{b, src}
}

// NewPutter creates a bucket putter from the source putter.
func (b Bucket) NewPutter(src Putter) Putter {
	return &bucketPutter{b, src}
}

// MakeRange shifts the key range into the bucket space.
func (b Bucket) MakeRange(r Range) Range {
	start := b.makeKey(r.Start)
	var limit []byte
	if len(r.Limit) == 0 {
		// until the end of the bucket
		limit = upperBound([]byte(b))
	} else {
		limit = b.makeKey(r.Limit)
	}
	return Range{Start: start, Limit: limit}
}

// upperBound returns the smallest key greater than every key prefixed by b,
// or nil when no such key exists.
func upperBound(b []byte) []byte {
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] < 0xff {
			bound := append([]byte(nil), b[:i+1]...)
			bound[i]++
			return bound
		}
	}
	return nil
}
