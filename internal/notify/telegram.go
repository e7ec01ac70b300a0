// Package notify доставляет уведомления о переходах уровней в Telegram.
// Ошибки доставки только логируются: движок от них не зависит.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/mymmrac/telego"
	log "github.com/sirupsen/logrus"

	"vkladpro.ru/accrual-engine/internal/common"
	"vkladpro.ru/accrual-engine/internal/features/accounts"
	"vkladpro.ru/accrual-engine/internal/features/levels"
)

const sendTimeout = 10 * time.Second

// TelegramNotifier шлёт сообщения партнёрам, у которых привязан Telegram.
type TelegramNotifier struct {
	bot      *telego.Bot
	accounts *accounts.Repository
	machine  levels.Machine
}

// NewTelegramNotifier создаёт нотификатор.
func NewTelegramNotifier(token string, accountsRepo *accounts.Repository, machine levels.Machine) (*TelegramNotifier, error) {
	bot, err := telego.NewBot(token, telego.WithDefaultLogger(false, true))
	if err != nil {
		return nil, fmt.Errorf("ошибка создания Telegram-бота: %w", err)
	}
	return &TelegramNotifier{bot: bot, accounts: accountsRepo, machine: machine}, nil
}

// TierAdvanced сообщает о повышении уровня.
func (n *TelegramNotifier) TierAdvanced(accountID int64, newTier int) {
	n.send(accountID, func(a *accounts.Account) string {
		if newTier >= n.machine.MaxTier {
			return fmt.Sprintf("🏆 Поздравляем! Вы достигли максимального, %d-го уровня. Челленджи позади.", newTier)
		}
		weeks := n.machine.WindowWeeks
		msg := fmt.Sprintf(
			"🎉 Поздравляем! Вы перешли на %d-й уровень.\nНовое окно челленджа — %d %s, цель прежняя: %s.",
			newTier,
			weeks,
			common.PluralizeWeeks(weeks),
			common.FormatMoney(a.ChallengeTarget),
		)
		// Аккаунт перечитан после повышения — дедлайн уже новый
		if a.ChallengeDeadline != nil {
			days := int(a.ChallengeDeadline.Sub(common.GetMoscowTime()).Hours() / 24)
			msg += fmt.Sprintf("\nДедлайн: %s (осталось %d %s).",
				common.FormatDateTime(*a.ChallengeDeadline), days, common.PluralizeDays(days))
		}
		return msg
	})
}

// BenefitsBlocked сообщает о блокировке личных начислений.
func (n *TelegramNotifier) BenefitsBlocked(accountID int64) {
	n.send(accountID, func(a *accounts.Account) string {
		shortfall := a.ChallengeTarget - a.ChallengePot
		if shortfall < 0 {
			shortfall = 0
		}
		return fmt.Sprintf(
			"⚠️ Срок челленджа истёк, до цели не хватило %s.\n"+
				"Личные начисления временно удерживаются — они вернутся, как только цель будет выполнена. "+
				"Комиссии с партнёров начисляются как обычно.",
			common.FormatMoney(shortfall),
		)
	})
}

// BenefitsUnblocked сообщает о снятии блокировки.
func (n *TelegramNotifier) BenefitsUnblocked(accountID int64) {
	n.send(accountID, func(a *accounts.Account) string {
		return "✅ Цель челленджа выполнена!\nБлокировка снята, удержанные начисления переведены на баланс."
	})
}

// send доставляет текст владельцу аккаунта. Аккаунты без привязанного
// Telegram молча пропускаются.
func (n *TelegramNotifier) send(accountID int64, build func(a *accounts.Account) string) {
	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	a, err := n.accounts.GetByID(ctx, accountID)
	if err != nil {
		log.WithError(err).WithField("account_id", accountID).
			Error("Уведомление: не удалось прочитать аккаунт")
		return
	}
	if a.TelegramID == nil {
		log.WithField("account_id", accountID).Debug("Telegram не привязан — уведомление пропущено")
		return
	}

	_, err = n.bot.SendMessage(&telego.SendMessageParams{
		ChatID: telego.ChatID{ID: *a.TelegramID},
		Text:   build(a),
	})
	if err != nil {
		log.WithError(err).WithFields(log.Fields{
			"account_id":  accountID,
			"telegram_id": *a.TelegramID,
		}).Error("Не удалось отправить уведомление")
		return
	}

	log.WithField("account_id", accountID).Debug("Уведомление отправлено")
}
