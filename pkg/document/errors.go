package document

import "errors"

// ErrMalformed indicates a document that is not structurally valid JSON
var ErrMalformed = errors.New("document: malformed")
