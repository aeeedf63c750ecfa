package repo

import (
	"errors"

	"github.com/jackc/pgx/v5"
)

var ErrNotFound = errors.New("record not found")

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
