package metadata

/** @brief Direction of a staging copy. */
type TransferDirection uint8

const (
	TransferUpload TransferDirection = iota
	TransferDownload
)

func (d TransferDirection) String() string {
	if d == TransferDownload {
		return "download"
	}
	return "upload"
}

type transferKey struct {
	dir  TransferDirection
	size uint64
}

/**
 * @brief Caches idle staging buffers by direction and size so repeated updates
 * of the same resource do not allocate. B is the backend's staging buffer type.
 */
type TransferBufferPool[B any] struct {
	idle      map[transferKey][]B
	maxPerKey int
	create    func(dir TransferDirection, size uint64) (B, error)
	destroy   func(B)

	created uint64
	reused  uint64
}

func NewTransferBufferPool[B any](
	maxPerKey int,
	create func(dir TransferDirection, size uint64) (B, error),
	destroy func(B),
) *TransferBufferPool[B] {
	if maxPerKey < 1 {
		maxPerKey = 1
	}
	return &TransferBufferPool[B]{
		idle:      make(map[transferKey][]B),
		maxPerKey: maxPerKey,
		create:    create,
		destroy:   destroy,
	}
}

// Acquire returns an idle buffer of exactly size bytes, creating one on a miss.
func (p *TransferBufferPool[B]) Acquire(dir TransferDirection, size uint64) (B, error) {
	k := transferKey{dir, size}
	if list := p.idle[k]; len(list) > 0 {
		b := list[len(list)-1]
		p.idle[k] = list[:len(list)-1]
		p.reused++
		return b, nil
	}
	b, err := p.create(dir, size)
	if err != nil {
		var zero B
		return zero, err
	}
	p.created++
	return b, nil
}

// Return hands a buffer back. Buffers beyond the per-key limit are destroyed.
func (p *TransferBufferPool[B]) Return(dir TransferDirection, size uint64, b B) {
	k := transferKey{dir, size}
	if len(p.idle[k]) >= p.maxPerKey {
		p.destroy(b)
		return
	}
	p.idle[k] = append(p.idle[k], b)
}

// Drain destroys every idle buffer.
func (p *TransferBufferPool[B]) Drain() {
	for k, list := range p.idle {
		for _, b := range list {
			p.destroy(b)
		}
		delete(p.idle, k)
	}
}

func (p *TransferBufferPool[B]) Idle() int {
	n := 0
	for _, list := range p.idle {
		n += len(list)
	}
	return n
}

// Stats returns how many buffers were created and how many acquisitions were served from the pool.
func (p *TransferBufferPool[B]) Stats() (created, reused uint64) {
	return p.created, p.reused
}
