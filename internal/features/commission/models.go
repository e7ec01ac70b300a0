// Package commission управляет партнёрскими комиссиями: делит дельту
// начисления между владельцем позиции и его реферером.
// models.go описывает неизменяемую запись комиссии.
package commission

import "time"

// Commission — запись аудита одной комиссионной выплаты.
// Создаётся ровно один раз на событие синхронизации с ненулевой дельтой
// у владельца с реферером. Никогда не изменяется и не удаляется.
type Commission struct {
	ID         int64     `db:"id" json:"id"`                   // ID записи
	PositionID int64     `db:"position_id" json:"position_id"` // Позиция-источник дельты
	PayerID    int64     `db:"payer_id" json:"payer_id"`       // Владелец позиции
	PayeeID    int64     `db:"payee_id" json:"payee_id"`       // Реферер-получатель
	Amount     int64     `db:"amount" json:"amount"`           // Сумма комиссии в копейках
	Percent    float64   `db:"percent" json:"percent"`         // Применённый процент
	CreatedAt  time.Time `db:"created_at" json:"created_at"`   // Момент синхронизации
}
