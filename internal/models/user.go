package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role определяет роль пользователя
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid сообщает, является ли роль известной
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// User представляет пользователя в системе
type User struct {
	ID          uuid.UUID `json:"id"`
	Username    string    `json:"username,omitempty"`
	FirstName   string    `json:"first_name,omitempty"`
	LastName    string    `json:"last_name,omitempty"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
	Location    string    `json:"location,omitempty"`
	Points      int64     `json:"points"`
	Role        Role      `json:"role"`
	IsBanned    bool      `json:"is_banned"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	LastLoginAt time.Time `json:"last_login_at"`
}

// IsAdmin сообщает, может ли пользователь модерировать
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin && !u.IsBanned
}

// Summary возвращает минимальную информацию о пользователе для API
func (u *User) Summary() *UserSummary {
	return &UserSummary{
		ID:        u.ID,
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		AvatarURL: u.AvatarURL,
	}
}

// UserSummary представляет минимальную информацию о пользователе для API
type UserSummary struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username,omitempty"`
	FirstName string    `json:"first_name,omitempty"`
	LastName  string    `json:"last_name,omitempty"`
	AvatarURL string    `json:"avatar_url,omitempty"`
}

// PublicProfile – данные пользователя, видимые другим участникам
type PublicProfile struct {
	UserSummary
	Location  string    `json:"location,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Profile возвращает публичный профиль пользователя
func (u *User) Profile() *PublicProfile {
	return &PublicProfile{
		UserSummary: *u.Summary(),
		Location:    u.Location,
		CreatedAt:   u.CreatedAt,
	}
}

// UserFilter – фильтр списка пользователей для администратора
type UserFilter struct {
	Search string // подстрока username, имени или фамилии без учёта регистра
	Limit  int
	Offset int
}

// Matches проверяет пользователя на соответствие фильтру
func (f UserFilter) Matches(u *User) bool {
	if f.Search == "" {
		return true
	}
	needle := strings.ToLower(f.Search)
	for _, field := range []string{u.Username, u.FirstName, u.LastName} {
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}

// TelegramProfile содержит данные пользователя из Telegram initData
type TelegramProfile struct {
	TelegramID   int64
	Username     string
	FirstName    string
	LastName     string
	PhotoURL     string
	IsPremium    bool
	LanguageCode string
}
