package repository

import "errors"

var (
	ErrProductNotFound     = errors.New("product not found in inventory")
	ErrReservationNotFound = errors.New("reservation not found")
	ErrVersionConflict     = errors.New("inventory version conflict")
)
