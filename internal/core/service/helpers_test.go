package service

import (
	"io"
	"log/slog"

	"github.com/rl1809/shoe-store/internal/port/porttest"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func reposOf(s *porttest.Store) Repositories {
	return Repositories{Shoes: s, Orders: s, Users: s}
}
