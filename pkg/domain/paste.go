package domain

import (
	"time"
)

// Paste is one submitted snippet. ID, Body, Language and CreatedAt are
// immutable after creation; Deleted only ever transitions false -> true.
type Paste struct {
	ID        string    `json:"id"`
	Body      string    `json:"body"`
	Language  string    `json:"language"`
	CreatedAt time.Time `json:"created_at"`
	Seq       int64     `json:"-"`
	Deleted   bool      `json:"-"`
	Views     int       `json:"views"`
}

type CreateParams struct {
	Body     string
	Language string
}
