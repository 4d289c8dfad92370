package tier

import "fmt"

// InvalidateError is returned when Invalidate could neither retire the
// generation nor delete the record, i.e. the old value may still be served.
type InvalidateError struct {
	Key     string
	BumpErr error
	DelErr  error
}

func (e *InvalidateError) Error() string {
	return fmt.Sprintf("tier: invalidate %q: gen bump: %v; delete: %v", e.Key, e.BumpErr, e.DelErr)
}

func (e *InvalidateError) Unwrap() []error {
	var errs []error
	if e.BumpErr != nil {
		errs = append(errs, e.BumpErr)
	}
	if e.DelErr != nil {
		errs = append(errs, e.DelErr)
	}
	return errs
}
