// Package common — pluralize.go содержит русскую плюрализацию
// для текстов уведомлений.
package common

import "math"

// PluralizeWeeks возвращает правильную форму слова «неделя» для числа n.
//
// Правила русского языка:
//   - n%10==1 И n%100!=11 → "неделя" (1, 21, 31, ...)
//   - n%10 в [2,4] И n%100 НЕ в [12,14] → "недели" (2, 3, 4, 22, ...)
//   - Остальные случаи → "недель" (0, 5-20, 25-30, ...)
func PluralizeWeeks(n int) string {
	absN := int(math.Abs(float64(n)))
	lastDigit := absN % 10
	lastTwoDigits := absN % 100

	if lastDigit == 1 && lastTwoDigits != 11 {
		return "неделя"
	}
	if lastDigit >= 2 && lastDigit <= 4 && (lastTwoDigits < 12 || lastTwoDigits > 14) {
		return "недели"
	}
	return "недель"
}

// PluralizeDays возвращает правильную форму слова «день» для числа n.
func PluralizeDays(n int) string {
	absN := int(math.Abs(float64(n)))
	lastDigit := absN % 10
	lastTwoDigits := absN % 100

	if lastDigit == 1 && lastTwoDigits != 11 {
		return "день"
	}
	if lastDigit >= 2 && lastDigit <= 4 && (lastTwoDigits < 12 || lastTwoDigits > 14) {
		return "дня"
	}
	return "дней"
}

// PluralizePartners возвращает правильную форму слова «партнёр».
// Используется в сводке реферальной сети.
func PluralizePartners(n int) string {
	absN := int(math.Abs(float64(n)))
	lastDigit := absN % 10
	lastTwoDigits := absN % 100

	if lastDigit == 1 && lastTwoDigits != 11 {
		return "партнёр"
	}
	if lastDigit >= 2 && lastDigit <= 4 && (lastTwoDigits < 12 || lastTwoDigits > 14) {
		return "партнёра"
	}
	return "партнёров"
}
