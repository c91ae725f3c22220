package epub

import "github.com/pkg/errors"

var (
	ErrMissingRootfile = errors.New("container.xml has no rootfile")
	ErrOpfParseFailed  = errors.New("failed to parse opf")
	ErrNcxParseFailed  = errors.New("failed to parse ncx")
)
