package domain

import "time"

// Session — непрозрачный серверный токен для admin-авторизатора. Выдача
// сессии — внешний участник вне периметра системы; здесь сессия только
// читается для проверки допуска к admin-отмене заказа.
type Session struct {
	SessionToken string
	Username     string
	CreatedAt    time.Time
	ExpiresAt    time.Time
}
