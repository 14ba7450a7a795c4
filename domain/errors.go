package domain

import "pilotage/bizerror"

var (
	ErrNotFound = bizerror.ErrNotFound
)
