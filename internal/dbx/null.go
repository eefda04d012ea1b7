package dbx

// Null turns a nil pointer into SQL NULL and dereferences anything else.
// Drivers differ in whether they accept pointer arguments, so repositories
// pass optional columns through it.
func Null[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}
