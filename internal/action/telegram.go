package action

import (
	"net/http"
	"time"

	tele "gopkg.in/telebot.v4"
)

// newBot builds a send-only bot. Offline skips the getMe round trip, so no
// network call happens until the first Send.
func newBot(token string, timeout time.Duration) (Sender, error) {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	b, err := tele.NewBot(tele.Settings{
		Token:   token,
		Offline: true,
		Client:  &http.Client{Timeout: timeout},
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}
