// Package prs implements the PRS compression scheme, the LZ77 variant
// the game uses for quest payloads and other archives. Control bits are
// consumed least significant first from control bytes interleaved ahead
// of the data they describe.
package prs

import (
	"errors"
	"fmt"
)

// ErrCorrupt reports compressed input the decoder cannot follow.
var ErrCorrupt = errors.New("prs: corrupt input")

const (
	windowSize   = 0x2000
	shortWindow  = 0x100
	maxCopySize  = 256
	maxShortSize = 5
	minMatchSize = 3
	maxChainLen  = 64
)

// Decompress expands PRS compressed data.
func Decompress(src []byte) ([]byte, error) {
	r := reader{src: src}
	var out []byte
	for {
		bit, err := r.bit()
		if err != nil {
			return nil, err
		}
		if bit == 1 {
			b, err := r.byte()
			if err != nil {
				return nil, err
			}
			out = append(out, b)
			continue
		}
		long, err := r.bit()
		if err != nil {
			return nil, err
		}
		var offset, size int
		if long == 1 {
			lo, err := r.byte()
			if err != nil {
				return nil, err
			}
			hi, err := r.byte()
			if err != nil {
				return nil, err
			}
			if lo == 0 && hi == 0 {
				return out, nil
			}
			raw := int(hi)<<8 | int(lo)
			offset = raw>>3 - windowSize
			size = int(lo & 7)
			if size == 0 {
				b, err := r.byte()
				if err != nil {
					return nil, err
				}
				size = int(b) + 1
			} else {
				size += 2
			}
		} else {
			hi, err := r.bit()
			if err != nil {
				return nil, err
			}
			lo, err := r.bit()
			if err != nil {
				return nil, err
			}
			b, err := r.byte()
			if err != nil {
				return nil, err
			}
			size = hi*2 + lo + 2
			offset = int(b) - shortWindow
		}
		start := len(out) + offset
		if offset >= 0 || start < 0 {
			return nil, fmt.Errorf("%w: copy offset %d at output position %d", ErrCorrupt, offset, len(out))
		}
		// Copies may overlap their own output, so this stays byte wise.
		for i := 0; i < size; i++ {
			out = append(out, out[start+i])
		}
	}
}

type reader struct {
	src  []byte
	pos  int
	ctrl byte
	bits int
}

func (r *reader) bit() (int, error) {
	if r.bits == 0 {
		if r.pos >= len(r.src) {
			return 0, fmt.Errorf("%w: ran out of control bytes", ErrCorrupt)
		}
		r.ctrl = r.src[r.pos]
		r.pos++
		r.bits = 8
	}
	bit := int(r.ctrl & 1)
	r.ctrl >>= 1
	r.bits--
	return bit, nil
}

func (r *reader) byte() (byte, error) {
	if r.pos >= len(r.src) {
		return 0, fmt.Errorf("%w: truncated data", ErrCorrupt)
	}
	b := r.src[r.pos]
	r.pos++
	return b, nil
}

// Compress encodes data as PRS. The matcher is greedy over a hash chain
// of three byte seeds, which trades a little ratio for predictability.
func Compress(src []byte) []byte {
	w := newWriter(len(src)/2 + 16)
	chains := make(map[uint32][]int)
	seed := func(pos int) uint32 {
		return uint32(src[pos]) | uint32(src[pos+1])<<8 | uint32(src[pos+2])<<16
	}
	index := func(pos int) {
		if pos+minMatchSize > len(src) {
			return
		}
		key := seed(pos)
		chain := chains[key]
		if len(chain) >= maxChainLen {
			chain = chain[1:]
		}
		chains[key] = append(chain, pos)
	}

	pos := 0
	for pos < len(src) {
		offset, size := bestMatch(src, pos, chains)
		if size < minMatchSize {
			w.putBit(1)
			w.putByte(src[pos])
			index(pos)
			pos++
			continue
		}
		if size <= maxShortSize && offset >= -shortWindow {
			w.putBit(0)
			w.putBit(0)
			w.putBit((size - 2) >> 1)
			w.putBit((size - 2) & 1)
			w.putByte(byte(offset + shortWindow))
		} else {
			w.putBit(0)
			w.putBit(1)
			raw := (offset + windowSize) << 3
			if size <= 9 {
				raw |= size - 2
				w.putByte(byte(raw))
				w.putByte(byte(raw >> 8))
			} else {
				w.putByte(byte(raw))
				w.putByte(byte(raw >> 8))
				w.putByte(byte(size - 1))
			}
		}
		for i := 0; i < size; i++ {
			index(pos + i)
		}
		pos += size
	}

	// End marker.
	w.putBit(0)
	w.putBit(1)
	w.putByte(0)
	w.putByte(0)
	return w.out
}

func bestMatch(src []byte, pos int, chains map[uint32][]int) (offset, size int) {
	if pos+minMatchSize > len(src) {
		return 0, 0
	}
	key := uint32(src[pos]) | uint32(src[pos+1])<<8 | uint32(src[pos+2])<<16
	limit := len(src) - pos
	if limit > maxCopySize {
		limit = maxCopySize
	}
	chain := chains[key]
	for i := len(chain) - 1; i >= 0; i-- {
		cand := chain[i]
		// Distance 0x2000 with an extension byte would collide with the
		// end marker, so the usable window stops one byte short.
		if pos-cand >= windowSize {
			break
		}
		n := 0
		for n < limit && src[cand+n] == src[pos+n] {
			n++
		}
		if n > size {
			size = n
			offset = cand - pos
			if size == limit {
				break
			}
		}
	}
	return offset, size
}

type writer struct {
	out     []byte
	ctrlPos int
	bits    int
}

func newWriter(sizeHint int) *writer {
	w := &writer{out: make([]byte, 1, sizeHint+1)}
	return w
}

func (w *writer) putBit(bit int) {
	if w.bits == 8 {
		w.ctrlPos = len(w.out)
		w.out = append(w.out, 0)
		w.bits = 0
	}
	if bit != 0 {
		w.out[w.ctrlPos] |= 1 << w.bits
	}
	w.bits++
}

func (w *writer) putByte(b byte) {
	w.out = append(w.out, b)
}
