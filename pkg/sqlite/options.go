package sqlite

// Op holds the configuration gathered from a chain of OpOption.
type Op struct {
	readOnly bool
}

type OpOption func(*Op)

// WithReadOnly opens the database in read-only mode, allowing unlimited
// concurrent readers.
func WithReadOnly(b bool) OpOption {
	return func(op *Op) {
		op.readOnly = b
	}
}

func (op *Op) applyOpts(opts []OpOption) error {
	for _, opt := range opts {
		opt(op)
	}
	return nil
}
