package pagination

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 500
)

var ErrInvalidPageToken = errors.New("invalid_page_token")

type Pagination struct {
	PageToken string `form:"page_token" json:"page_token"`
	PageSize  int    `form:"page_size" json:"page_size"`
}

type PageInfo struct {
	NextPageToken string `json:"next_page_token,omitempty"`
	HasMore       bool   `json:"has_more"`
}

// Cursor points at the last row of a page ordered by (created_at DESC, id DESC).
type Cursor struct {
	ID        string `json:"id"`
	CreatedAt string `json:"created_at"`
}

func EncodeCursor(c Cursor) (string, error) {
	raw, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

func DecodeCursor(token string) (*Cursor, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, ErrInvalidPageToken
	}
	var c Cursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, ErrInvalidPageToken
	}
	if _, err := time.Parse(time.RFC3339Nano, c.CreatedAt); err != nil {
		return nil, ErrInvalidPageToken
	}
	return &c, nil
}

func (p Pagination) Size() int {
	switch {
	case p.PageSize <= 0:
		return DefaultPageSize
	case p.PageSize > MaxPageSize:
		return MaxPageSize
	default:
		return p.PageSize
	}
}

// Apply orders the query newest first and fetches one extra row so the
// caller can tell whether another page exists.
func (p Pagination) Apply(q *gorm.DB) (*gorm.DB, error) {
	cursor, err := DecodeCursor(p.PageToken)
	if err != nil {
		return nil, err
	}
	if cursor != nil {
		createdAt, _ := time.Parse(time.RFC3339Nano, cursor.CreatedAt)
		id, err := strconv.ParseInt(cursor.ID, 10, 64)
		if err != nil {
			return nil, ErrInvalidPageToken
		}
		q = q.Where("(created_at < ?) OR (created_at = ? AND id < ?)", createdAt, createdAt, id)
	}
	return q.Order("created_at DESC").Order("id DESC").Limit(p.Size() + 1), nil
}

// Trim cuts the extra look-ahead row and builds the page info.
func Trim[T any](items []T, size int, cursorOf func(T) Cursor) ([]T, PageInfo) {
	if len(items) <= size {
		return items, PageInfo{}
	}
	items = items[:size]
	token, err := EncodeCursor(cursorOf(items[len(items)-1]))
	if err != nil {
		return items, PageInfo{}
	}
	return items, PageInfo{NextPageToken: token, HasMore: true}
}
