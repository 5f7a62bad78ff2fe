package join

import "errors"

var (
	// ErrParagraphNotFound indicates a toggle for a key absent from the document
	ErrParagraphNotFound = errors.New("join: paragraph not found")

	// ErrUnknownPolicy indicates an unrecognized reset policy name
	ErrUnknownPolicy = errors.New("join: unknown reset policy")
)
