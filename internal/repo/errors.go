package repo

import "errors"

// Общие ошибки репозиториев. pgx-ошибки наружу не выходят:
// ErrNoRows и конфликты уникальности маппятся здесь же.
var (
	// ErrNotFound — запись не найдена в БД.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists — запись уже существует
	// (конфликт уникальности, в том числе idempotency key).
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidState — операция невозможна в текущем состоянии.
	ErrInvalidState = errors.New("invalid state")
)
