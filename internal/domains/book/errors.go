package book

import "errors"

var (
	ErrBookNotFound     = errors.New("book not found")
	ErrBookCopyNotFound = errors.New("book copy not found")
)
