package errs

import (
	"errors"
)

var (
	ErrNotFound = errors.New("not found")

	ErrInvalidIdentifier     = errors.New("invalid isbn")
	ErrPalindromicIdentifier = errors.New("palindromic books can only be lent inside the library")
	ErrBookNotInInventory    = errors.New("the book is not in the inventory")
	ErrAlreadyLoaned         = errors.New("the book is not available")

	ErrBookAlreadyExists = errors.New("book already exists")
)
