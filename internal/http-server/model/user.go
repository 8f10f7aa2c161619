package model

import (
	"time"
)

type User struct {
	ID           int64     `json:"id"`
	UUID         string    `json:"uuid"`
	Username     string    `json:"username"`
	TotalWagered float64   `json:"total_wagered"`
	TotalWon     float64   `json:"total_won"`
	TotalLost    float64   `json:"total_lost"`
	GamesPlayed  int       `json:"games_played"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
