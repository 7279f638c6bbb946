package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/rajivgeraev/rewear-api/internal/exchange"
	"github.com/rajivgeraev/rewear-api/internal/models"
)

const userColumns = `id, username, first_name, last_name, avatar_url, location,
	points, role, is_banned, created_at, updated_at, last_login_at`

func scanUser(row rowScanner) (*models.User, error) {
	var user models.User
	var username, firstName, lastName, avatarURL, location pgtype.Text

	err := row.Scan(
		&user.ID, &username, &firstName, &lastName, &avatarURL, &location,
		&user.Points, &user.Role, &user.IsBanned, &user.CreatedAt, &user.UpdatedAt, &user.LastLoginAt,
	)
	if err != nil {
		return nil, err
	}

	// Преобразуем nullable поля
	if username.Valid {
		user.Username = username.String
	}
	if firstName.Valid {
		user.FirstName = firstName.String
	}
	if lastName.Valid {
		user.LastName = lastName.String
	}
	if avatarURL.Valid {
		user.AvatarURL = avatarURL.String
	}
	if location.Valid {
		user.Location = location.String
	}

	return &user, nil
}

// getUserByID получает пользователя по ID через пул или транзакцию
func getUserByID(ctx context.Context, q querier, userID uuid.UUID) (*models.User, error) {
	user, err := scanUser(q.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID))
	if err != nil {
		return nil, notFound(err, "пользователь не найден")
	}
	return user, nil
}

type accounts struct {
	q   querier
	now func() time.Time
}

func (a *accounts) GetUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	return getUserByID(ctx, a.q, userID)
}

func (a *accounts) GetBalance(ctx context.Context, userID uuid.UUID) (int64, error) {
	var points int64
	err := a.q.QueryRow(ctx, `SELECT points FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&points)
	if err != nil {
		return 0, notFound(err, "пользователь не найден")
	}
	return points, nil
}

func (a *accounts) AdjustBalance(ctx context.Context, userID uuid.UUID, delta int64) error {
	tag, err := a.q.Exec(ctx, `
		UPDATE users SET points = points + $2, updated_at = $3 WHERE id = $1
	`, userID, delta, a.now())
	if pgErrorCode(err) == codeCheckViolation {
		return &exchange.Error{Kind: exchange.ErrInsufficientFunds, Message: "недостаточно баллов"}
	}
	if err != nil {
		return fmt.Errorf("ошибка при изменении баланса: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return exchange.NotFoundf("пользователь не найден")
	}
	return nil
}

// CreateUser добавляет пользователя как есть
func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	if u.Role == "" {
		u.Role = models.RoleUser
	}
	now := s.now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	if u.LastLoginAt.IsZero() {
		u.LastLoginAt = now
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, username, first_name, last_name, avatar_url, location,
			points, role, is_banned, created_at, updated_at, last_login_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, u.ID, u.Username, u.FirstName, u.LastName, u.AvatarURL, u.Location,
		u.Points, u.Role, u.IsBanned, u.CreatedAt, u.UpdatedAt, u.LastLoginAt)
	if pgErrorCode(err) == codeUniqueViolation {
		return exchange.Conflictf("пользователь %s уже существует", u.ID)
	}
	if err != nil {
		return fmt.Errorf("ошибка при создании пользователя: %w", err)
	}
	return nil
}

// GetUser получает пользователя по ID
func (s *Store) GetUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	return getUserByID(ctx, s.pool, userID)
}

// UpsertTelegramUser создает нового пользователя через Telegram или обновляет существующего.
// Возвращает true, если пользователь создан.
func (s *Store) UpsertTelegramUser(ctx context.Context, p models.TelegramProfile) (*models.User, bool, error) {
	rawData, err := json.Marshal(p)
	if err != nil {
		return nil, false, fmt.Errorf("ошибка при сериализации данных Telegram: %w", err)
	}

	// Начинаем транзакцию
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("ошибка при начале транзакции: %w", err)
	}
	defer tx.Rollback(ctx) // Откатываем транзакцию в случае ошибки

	// Проверяем, существует ли пользователь Telegram
	var telegramUserID, userID uuid.UUID
	err = tx.QueryRow(ctx, `
		SELECT id, user_id FROM telegram_users WHERE telegram_id = $1 FOR UPDATE
	`, p.TelegramID).Scan(&telegramUserID, &userID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("ошибка при проверке существования пользователя Telegram: %w", err)
	}

	created := errors.Is(err, pgx.ErrNoRows)
	if created {
		// Создаем запись в users с приветственными баллами
		err = tx.QueryRow(ctx, `
			INSERT INTO users (first_name, last_name, username, avatar_url, points, last_login_at)
			VALUES ($1, $2, $3, $4, $5, CURRENT_TIMESTAMP)
			RETURNING id
		`, p.FirstName, p.LastName, p.Username, p.PhotoURL, s.signupPoints).Scan(&userID)
		if err != nil {
			return nil, false, fmt.Errorf("ошибка при создании пользователя: %w", err)
		}

		// Создаем запись в telegram_users
		_, err = tx.Exec(ctx, `
			INSERT INTO telegram_users (user_id, telegram_id, username, first_name, last_name, photo_url, is_premium, language_code, raw_data)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, userID, p.TelegramID, p.Username, p.FirstName, p.LastName, p.PhotoURL, p.IsPremium, p.LanguageCode, rawData)
		if pgErrorCode(err) == codeUniqueViolation {
			// Параллельный вход того же пользователя успел его зарегистрировать
			return nil, false, exchange.Conflictf("пользователь Telegram уже зарегистрирован, повторите вход")
		}
		if err != nil {
			return nil, false, fmt.Errorf("ошибка при создании Telegram пользователя: %w", err)
		}
	} else {
		// Обновляем только last_login_at у существующего пользователя
		_, err = tx.Exec(ctx, `
			UPDATE users
			SET last_login_at = CURRENT_TIMESTAMP
			WHERE id = $1
		`, userID)
		if err != nil {
			return nil, false, fmt.Errorf("ошибка при обновлении времени входа пользователя: %w", err)
		}

		// Обновляем данные telegram_users
		_, err = tx.Exec(ctx, `
			UPDATE telegram_users
			SET username = $1, first_name = $2, last_name = $3, photo_url = $4,
				is_premium = $5, language_code = $6, raw_data = $7, updated_at = CURRENT_TIMESTAMP
			WHERE id = $8
		`, p.Username, p.FirstName, p.LastName, p.PhotoURL, p.IsPremium, p.LanguageCode, rawData, telegramUserID)
		if err != nil {
			return nil, false, fmt.Errorf("ошибка при обновлении Telegram пользователя: %w", err)
		}
	}

	// Создаем запись в user_sessions
	_, err = tx.Exec(ctx, `
		INSERT INTO user_sessions (user_id, login_time)
		VALUES ($1, CURRENT_TIMESTAMP)
	`, userID)
	if err != nil {
		return nil, false, fmt.Errorf("ошибка при создании сессии пользователя: %w", err)
	}

	// Получаем пользователя
	user, err := getUserByID(ctx, tx, userID)
	if err != nil {
		return nil, false, fmt.Errorf("ошибка при получении пользователя: %w", err)
	}

	// Фиксируем транзакцию
	if err = tx.Commit(ctx); err != nil {
		return nil, false, fmt.Errorf("ошибка при фиксации транзакции: %w", err)
	}

	return user, created, nil
}

// SetUserBanned блокирует или разблокирует пользователя
func (s *Store) SetUserBanned(ctx context.Context, userID uuid.UUID, banned bool) (*models.User, error) {
	user, err := scanUser(s.pool.QueryRow(ctx, `
		UPDATE users SET is_banned = $2, updated_at = $3 WHERE id = $1
		RETURNING `+userColumns,
		userID, banned, s.now()))
	if err != nil {
		return nil, notFound(err, "пользователь не найден")
	}
	return user, nil
}

// SetUserRole назначает роль пользователю
func (s *Store) SetUserRole(ctx context.Context, userID uuid.UUID, role models.Role) (*models.User, error) {
	if !role.Valid() {
		return nil, exchange.Validationf("недопустимая роль: %q", role)
	}
	user, err := scanUser(s.pool.QueryRow(ctx, `
		UPDATE users SET role = $2, updated_at = $3 WHERE id = $1
		RETURNING `+userColumns,
		userID, role, s.now()))
	if err != nil {
		return nil, notFound(err, "пользователь не найден")
	}
	return user, nil
}
