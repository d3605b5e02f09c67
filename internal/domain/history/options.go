package history

// DefaultCapacity is the number of attempts kept when no capacity is set.
const DefaultCapacity = 10

// Option applies a configuration option to the Buffer.
type Option func(*Buffer)

// WithCapacity sets how many attempts the buffer keeps.
// Values <= 0 keep DefaultCapacity.
func WithCapacity(capacity int) Option {
	return func(b *Buffer) {
		if capacity > 0 {
			b.capacity = capacity
		}
	}
}
