package generic

// Void is the zero-size value type, used for set membership and error-only results.
type Void = struct{}

func NewVoid() Void {
	return Void{}
}
