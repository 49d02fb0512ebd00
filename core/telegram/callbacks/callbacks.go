// Package callbacks decodes inline button data. Telebot packs a button as
// "\f<unique>|<data>"; handlers bound to tele.OnCallback see it raw, while
// handlers bound to a button see the unique and data already split.
package callbacks

import (
	"errors"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"
)

// ErrBadPayload means the button carries no usable id.
var ErrBadPayload = errors.New("callbacks: bad payload")

// Data is a decoded button press.
type Data struct {
	Key     string
	Payload string
}

// Parse splits cb into its key and payload. A nil callback yields zero Data.
func Parse(cb *tele.Callback) Data {
	if cb == nil {
		return Data{}
	}
	if cb.Unique != "" {
		return Data{Key: cb.Unique, Payload: cb.Data}
	}
	key, payload, _ := strings.Cut(strings.TrimPrefix(cb.Data, "\f"), "|")
	return Data{Key: strings.TrimSpace(key), Payload: payload}
}

// Of decodes the callback of c.
func Of(c tele.Context) Data {
	return Parse(c.Callback())
}

// ID reads the payload as a positive entity id.
func (d Data) ID() (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(d.Payload), 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrBadPayload
	}
	return id, nil
}
