package repository

import "errors"

var (
	ErrOrderNotFound  = errors.New("order not found")
	ErrOrderFinalized = errors.New("order already in a terminal status")
)
