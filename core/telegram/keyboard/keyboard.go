// Package keyboard builds inline keyboards from plain button values.
package keyboard

import tele "gopkg.in/telebot.v4"

// Button is a callback button, or a link button when URL is set.
type Button struct {
	Text   string
	Unique string
	Data   string
	URL    string
}

const cancelText = "❌ Cancel"

func (b Button) inline(m *tele.ReplyMarkup) tele.InlineButton {
	if b.URL != "" {
		return *m.URL(b.Text, b.URL).Inline()
	}
	if b.Data == "" {
		return *m.Data(b.Text, b.Unique).Inline()
	}
	return *m.Data(b.Text, b.Unique, b.Data).Inline()
}

// Inline lays rows out as given. Empty rows are skipped.
func Inline(rows ...[]Button) *tele.ReplyMarkup {
	m := &tele.ReplyMarkup{}
	m.InlineKeyboard = make([][]tele.InlineButton, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		line := make([]tele.InlineButton, len(row))
		for i, b := range row {
			line[i] = b.inline(m)
		}
		m.InlineKeyboard = append(m.InlineKeyboard, line)
	}
	return m
}

// Column puts every button on its own row.
func Column(buttons ...Button) *tele.ReplyMarkup {
	rows := make([][]Button, len(buttons))
	for i, b := range buttons {
		rows[i] = []Button{b}
	}
	return Inline(rows...)
}

// Cancel is a single cancel button bound to unique.
func Cancel(unique string) *tele.ReplyMarkup {
	return Column(Button{Text: cancelText, Unique: unique})
}
