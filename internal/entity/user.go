package entity

import "time"

type User struct {
	ID          int       `json:"id"`
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	CreatedDate time.Time `json:"created_date"`
}
