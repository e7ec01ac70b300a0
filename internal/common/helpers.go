// Package common содержит общие утилиты, используемые во всём проекте.
// Сюда входят: форматирование денег (копейки → рубли), работа с временем.
package common

import (
	"fmt"
	"strings"
	"time"
)

// FormatMoney форматирует сумму в копейках в читабельную строку с рублями.
// Разряды рублей разделяются пробелами.
//
// Примеры:
//
//	FormatMoney(150000)    → "1 500,00 ₽"
//	FormatMoney(1234567)   → "12 345,67 ₽"
//	FormatMoney(-5000)     → "-50,00 ₽"
func FormatMoney(kopecks int64) string {
	sign := ""
	if kopecks < 0 {
		sign = "-"
		kopecks = -kopecks
	}

	rubles := kopecks / 100
	cents := kopecks % 100

	// Разделяем разряды рублей пробелами: 1234567 → "1 234 567"
	digits := fmt.Sprintf("%d", rubles)
	var groups []string
	for len(digits) > 3 {
		groups = append([]string{digits[len(digits)-3:]}, groups...)
		digits = digits[:len(digits)-3]
	}
	groups = append([]string{digits}, groups...)

	return fmt.Sprintf("%s%s,%02d ₽", sign, strings.Join(groups, " "), cents)
}

// GetMoscowTime возвращает текущее время в часовом поясе Москвы (Europe/Moscow).
// Платформа работает по московскому времени: дедлайны челленджей
// и расписание фоновых задач считаются в нём.
func GetMoscowTime() time.Time {
	loc, err := time.LoadLocation("Europe/Moscow")
	if err != nil {
		// Если не удалось загрузить — используем UTC+3 вручную
		loc = time.FixedZone("MSK", 3*60*60)
	}
	return time.Now().In(loc)
}

// FormatDateTime форматирует время в формат "02.01.2006 15:04".
// Используется для отображения дат в API и уведомлениях.
func FormatDateTime(t time.Time) string {
	loc, err := time.LoadLocation("Europe/Moscow")
	if err != nil {
		loc = time.FixedZone("MSK", 3*60*60)
	}
	return t.In(loc).Format("02.01.2006 15:04")
}

// WeeksToDuration переводит число недель в time.Duration.
// Неделя везде в движке — ровно 168 часов.
func WeeksToDuration(weeks int) time.Duration {
	return time.Duration(weeks) * 7 * 24 * time.Hour
}
