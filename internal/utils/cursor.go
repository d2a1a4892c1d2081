package utils

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Cursor is a keyset position over rows ordered by (At, ID) descending.
type Cursor struct {
	At time.Time `json:"at"`
	ID string    `json:"id"`
}

// FirstPage is the DESC keyset sentinel: far future plus the max UUID.
func FirstPage() Cursor {
	return Cursor{
		At: time.Date(9999, 12, 31, 23, 59, 59, 0, time.UTC),
		ID: "ffffffff-ffff-ffff-ffff-ffffffffffff",
	}
}

func EncodeCursor(at time.Time, id string) (string, error) {
	b, err := json.Marshal(Cursor{At: at, ID: id})
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func DecodeCursor(cursor string) (Cursor, error) {
	if cursor == "" {
		return Cursor{}, errors.New("empty cursor")
	}
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return Cursor{}, err
	}
	var c Cursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return Cursor{}, err
	}
	if c.ID == "" || c.At.IsZero() {
		return Cursor{}, errors.New("invalid cursor payload")
	}
	return c, nil
}

func IsUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
