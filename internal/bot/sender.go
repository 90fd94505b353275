package bot

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"
)

// botAPI - часть tgbotapi.BotAPI, которой пользуется бот
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// throttledAPI ограничивает частоту исходящих запросов к Telegram
type throttledAPI struct {
	api     botAPI
	limiter *rate.Limiter
}

func newThrottledAPI(api botAPI, perSecond float64, burst int) *throttledAPI {
	return &throttledAPI{api: api, limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

func (t *throttledAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if err := t.limiter.Wait(context.Background()); err != nil {
		return tgbotapi.Message{}, err
	}
	return t.api.Send(c)
}

func (t *throttledAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	if err := t.limiter.Wait(context.Background()); err != nil {
		return nil, err
	}
	return t.api.Request(c)
}
