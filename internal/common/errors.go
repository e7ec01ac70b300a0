// Package common — errors.go определяет пользовательские ошибки,
// которые используются во всех модулях движка начислений.
// Эти ошибки позволяют вызывающему коду различать типы проблем:
// что можно повторить, что нужно пропустить, а что отдать наружу.
package common

import "errors"

// Ошибки синхронизации начислений
var (
	// ErrStaleSync — конкурирующая синхронизация успела обновить
	// last_synced_earnings раньше нас. Не фатально: перечитываем позицию
	// и повторяем попытку. Наружу эта ошибка не выходит.
	ErrStaleSync = errors.New("конкурирующая синхронизация: позиция уже обновлена")
	// ErrNegativeDelta — вычисленная дельта оказалась отрицательной
	// (сдвиг часов или некорректные данные). Начислять нельзя, пропускаем.
	ErrNegativeDelta = errors.New("отрицательная дельта начисления")
)

// Ошибки депозитов и позиций
var (
	// ErrInvalidAmount — некорректная сумма (ноль или отрицательная)
	ErrInvalidAmount = errors.New("сумма должна быть положительной")
	// ErrInvalidRate — ставка вне диапазона (0, 100]
	ErrInvalidRate = errors.New("недельная ставка вне допустимого диапазона")
	// ErrDuplicateOrder — депозит с таким order_id уже зарегистрирован
	ErrDuplicateOrder = errors.New("депозит с таким order_id уже зарегистрирован")
	// ErrPositionNotFound — позиция не найдена в базе
	ErrPositionNotFound = errors.New("позиция не найдена")
	// ErrPositionNotActive — позиция не в статусе active
	ErrPositionNotActive = errors.New("позиция не активна")
)

// Ошибки аккаунтов
var (
	// ErrAccountNotFound — аккаунт не найден в базе
	ErrAccountNotFound = errors.New("аккаунт не найден")
	// ErrReferrerNotFound — указанный реферер не существует
	ErrReferrerNotFound = errors.New("реферер не найден")
)

// Ошибки админ-API
var (
	// ErrNotAuthorized — токен администратора не прошёл проверку
	ErrNotAuthorized = errors.New("неверный токен администратора")
)
