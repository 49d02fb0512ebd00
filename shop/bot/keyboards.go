package bot

import (
	"strconv"

	"github.com/m3rciful/coursebot/core/telegram/format"
	"github.com/m3rciful/coursebot/core/telegram/keyboard"
	"github.com/m3rciful/coursebot/shop/domain"

	tele "gopkg.in/telebot.v4"
)

// Callback keys. Payloads carry a course id where noted.
const (
	cbMenu         = "menu"
	cbCatalog      = "catalog"
	cbCourse       = "course"      // course id
	cbCartAdd      = "cart_add"    // course id, from the course card
	cbCartUnpick   = "cart_unpick" // course id, from the course card
	cbCartRemove   = "cart_rm"     // course id, from the cart view
	cbCart         = "cart"
	cbCheckout     = "checkout"
	cbMyCourses    = "my_courses"
	cbAdmin        = "adm"
	cbAdminAdd     = "adm_add"
	cbAdminDelete  = "adm_del"
	cbAdminHide    = "adm_hide" // course id
	cbAdminStats   = "adm_stats"
	cbAdminCancel  = "adm_cancel"
	maxButtonTitle = 40
)

func idData(id int64) string { return strconv.FormatInt(id, 10) }

func menuMarkup(isAdmin bool) *tele.ReplyMarkup {
	rows := [][]keyboard.Button{
		{{Text: "📚 Catalog", Unique: cbCatalog}},
		{{Text: "🛒 Cart", Unique: cbCart}, {Text: "🎓 My courses", Unique: cbMyCourses}},
	}
	if isAdmin {
		rows = append(rows, []keyboard.Button{{Text: "⚙️ Admin", Unique: cbAdmin}})
	}
	return keyboard.Inline(rows...)
}

func catalogMarkup(courses []domain.Course, currency string) *tele.ReplyMarkup {
	rows := make([][]keyboard.Button, 0, len(courses)+1)
	for _, c := range courses {
		rows = append(rows, []keyboard.Button{{
			Text:   format.Truncate(c.Title, maxButtonTitle) + " · " + format.Money(c.Price, currency),
			Unique: cbCourse,
			Data:   idData(c.ID),
		}})
	}
	rows = append(rows, []keyboard.Button{
		{Text: "🛒 Cart", Unique: cbCart},
		{Text: "⬅️ Menu", Unique: cbMenu},
	})
	return keyboard.Inline(rows...)
}

func courseMarkup(courseID int64, inCart bool) *tele.ReplyMarkup {
	toggle := keyboard.Button{Text: "➕ Add to cart", Unique: cbCartAdd, Data: idData(courseID)}
	if inCart {
		toggle = keyboard.Button{Text: "➖ Remove from cart", Unique: cbCartUnpick, Data: idData(courseID)}
	}
	return keyboard.Inline(
		[]keyboard.Button{toggle},
		[]keyboard.Button{
			{Text: "⬅️ Catalog", Unique: cbCatalog},
			{Text: "🛒 Cart", Unique: cbCart},
		},
	)
}

func cartMarkup(courses []domain.Course) *tele.ReplyMarkup {
	rows := make([][]keyboard.Button, 0, len(courses)+2)
	for _, c := range courses {
		rows = append(rows, []keyboard.Button{{
			Text:   "✖️ " + format.Truncate(c.Title, maxButtonTitle),
			Unique: cbCartRemove,
			Data:   idData(c.ID),
		}})
	}
	if len(courses) > 0 {
		rows = append(rows, []keyboard.Button{{Text: "💳 Checkout", Unique: cbCheckout}})
	}
	rows = append(rows, []keyboard.Button{
		{Text: "📚 Catalog", Unique: cbCatalog},
		{Text: "⬅️ Menu", Unique: cbMenu},
	})
	return keyboard.Inline(rows...)
}

func payMarkup(redirectURL string) *tele.ReplyMarkup {
	return keyboard.Inline(
		[]keyboard.Button{{Text: "💳 Pay", URL: redirectURL}},
		[]keyboard.Button{
			{Text: "🎓 My courses", Unique: cbMyCourses},
			{Text: "⬅️ Menu", Unique: cbMenu},
		},
	)
}

func backToMenuMarkup() *tele.ReplyMarkup {
	return keyboard.Column(keyboard.Button{Text: "⬅️ Menu", Unique: cbMenu})
}

func adminMarkup() *tele.ReplyMarkup {
	return keyboard.Column(
		keyboard.Button{Text: "➕ Add course", Unique: cbAdminAdd},
		keyboard.Button{Text: "🗑 Hide course", Unique: cbAdminDelete},
		keyboard.Button{Text: "📊 Statistics", Unique: cbAdminStats},
		keyboard.Button{Text: "⬅️ Menu", Unique: cbMenu},
	)
}

func adminHideMarkup(courses []domain.Course) *tele.ReplyMarkup {
	buttons := make([]keyboard.Button, 0, len(courses)+1)
	for _, c := range courses {
		buttons = append(buttons, keyboard.Button{
			Text:   "🗑 " + format.Truncate(c.Title, maxButtonTitle),
			Unique: cbAdminHide,
			Data:   idData(c.ID),
		})
	}
	buttons = append(buttons, keyboard.Button{Text: "⬅️ Admin", Unique: cbAdmin})
	return keyboard.Column(buttons...)
}

func adminBackMarkup() *tele.ReplyMarkup {
	return keyboard.Column(keyboard.Button{Text: "⬅️ Admin", Unique: cbAdmin})
}

func wizardCancelMarkup() *tele.ReplyMarkup {
	return keyboard.Cancel(cbAdminCancel)
}
