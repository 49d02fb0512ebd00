package keyboard

import "testing"

func TestInlineLayout(t *testing.T) {
	m := Inline(
		[]Button{{Text: "A", Unique: "a", Data: "1"}, {Text: "B", Unique: "b"}},
		nil,
		[]Button{{Text: "Pay", URL: "https://pay.example"}},
	)
	if len(m.InlineKeyboard) != 2 {
		t.Fatalf("rows = %d, want 2", len(m.InlineKeyboard))
	}
	first := m.InlineKeyboard[0]
	if len(first) != 2 || first[0].Unique != "a" || first[0].Data != "1" || first[1].Unique != "b" {
		t.Fatalf("first row = %+v", first)
	}
	if link := m.InlineKeyboard[1][0]; link.URL != "https://pay.example" || link.Unique != "" {
		t.Fatalf("link button = %+v", link)
	}
}

func TestColumnAndCancel(t *testing.T) {
	m := Column(Button{Text: "A", Unique: "a"}, Button{Text: "B", Unique: "b"})
	if len(m.InlineKeyboard) != 2 || len(m.InlineKeyboard[1]) != 1 {
		t.Fatalf("column = %+v", m.InlineKeyboard)
	}
	c := Cancel("stop")
	if len(c.InlineKeyboard) != 1 || c.InlineKeyboard[0][0].Unique != "stop" || c.InlineKeyboard[0][0].Text != cancelText {
		t.Fatalf("cancel = %+v", c.InlineKeyboard)
	}
}
