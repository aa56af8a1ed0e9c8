package domain

import "time"

type Like struct {
	ID        int
	ItemID    string
	UserID    string
	CreatedAt time.Time
}
