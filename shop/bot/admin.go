package bot

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/m3rciful/coursebot/core/logger"
	"github.com/m3rciful/coursebot/core/telegram/format"
	tghelpers "github.com/m3rciful/coursebot/core/telegram/helpers"
	"github.com/m3rciful/coursebot/core/telegram/state"
	"github.com/m3rciful/coursebot/shop/catalog"
	"github.com/m3rciful/coursebot/shop/domain"

	tele "gopkg.in/telebot.v4"
)

// Course wizard states.
const (
	stTitle       state.State = "course_wizard.title"
	stDescription state.State = "course_wizard.description"
	stPrice       state.State = "course_wizard.price"
	stURL         state.State = "course_wizard.url"
)

const (
	tmpTitle       = "course.title"
	tmpDescription = "course.description"
	tmpPrice       = "course.price"

	skipDescription = "-"

	promptTitle       = "New course.\nSend the title."
	promptDescription = "Send a short description, or <code>-</code> to skip."
	promptPrice       = "Send the price, e.g. <code>1990</code> or <code>1990.50</code>."
	promptURL         = "Send the link to the course materials (http or https)."
	textWizardExpired = "The course wizard has expired. Start it again from the admin panel."
)

func (b *Bot) newCourseWizard() *state.Flow {
	return state.NewFlow("course_wizard", stTitle).
		Step(stTitle, b.wizardTitle, stDescription).
		Step(stDescription, b.wizardDescription, stPrice).
		Step(stPrice, b.wizardPrice, stURL).
		Step(stURL, b.wizardURL)
}

func (b *Bot) adminMenu(c tele.Context) error {
	return tghelpers.EditOrSendHTML(c, format.Bold("Admin panel"), adminMarkup())
}

func (b *Bot) adminAdd(c tele.Context) error {
	b.wizard.Begin(b.fsm, c.Sender().ID)
	logger.Debug(tghelpers.Ctx(c), logger.ComponentAdmin, "wizard.begin")
	return tghelpers.EditOrSendHTML(c, promptTitle, wizardCancelMarkup())
}

// cancel leaves the wizard from either the inline button or /cancel.
func (b *Bot) cancel(c tele.Context) error {
	uid := c.Sender().ID
	if !b.wizard.Active(b.fsm, uid) {
		if c.Callback() != nil {
			return b.adminMenu(c)
		}
		return tghelpers.SendText(c, "Nothing to cancel.")
	}
	b.wizard.Finish(b.fsm, uid)
	_ = tghelpers.Toast(c, "Cancelled")
	if c.Callback() != nil {
		return b.adminMenu(c)
	}
	return tghelpers.SendHTML(c, format.Bold("Admin panel"), adminMarkup())
}

func (b *Bot) wizardTitle(c tele.Context) error {
	title := strings.TrimSpace(c.Text())
	if err := catalog.ValidateTitle(title); err != nil {
		return b.retry(c, err)
	}
	b.fsm.SetTemp(c.Sender().ID, tmpTitle, title)
	return b.advance(c, stDescription, promptDescription)
}

func (b *Bot) wizardDescription(c tele.Context) error {
	desc := strings.TrimSpace(c.Text())
	if desc == skipDescription {
		desc = ""
	}
	b.fsm.SetTemp(c.Sender().ID, tmpDescription, desc)
	return b.advance(c, stPrice, promptPrice)
}

func (b *Bot) wizardPrice(c tele.Context) error {
	price, err := catalog.ParsePrice(c.Text())
	if err != nil {
		return b.retry(c, err)
	}
	b.fsm.SetTemp(c.Sender().ID, tmpPrice, price.String())
	return b.advance(c, stURL, promptURL)
}

func (b *Bot) wizardURL(c tele.Context) error {
	uid := c.Sender().ID
	link := strings.TrimSpace(c.Text())
	if err := catalog.ValidateMaterialURL(link); err != nil {
		return b.retry(c, err)
	}

	title, okTitle := b.fsm.GetTempString(uid, tmpTitle)
	desc, _ := b.fsm.GetTempString(uid, tmpDescription)
	rawPrice, okPrice := b.fsm.GetTempString(uid, tmpPrice)
	price, err := catalog.ParsePrice(rawPrice)
	if !okTitle || !okPrice || err != nil {
		b.wizard.Finish(b.fsm, uid)
		return tghelpers.SendText(c, textWizardExpired)
	}

	ctx := tghelpers.Ctx(c)
	course, err := b.d.Catalog.Add(ctx, catalog.NewCourse{
		Title:       title,
		Description: desc,
		Price:       price,
		MaterialURL: link,
	})
	if errors.Is(err, domain.ErrValidation) {
		return b.retry(c, err)
	}
	b.wizard.Finish(b.fsm, uid)
	if err != nil {
		return b.fail(c, err)
	}

	logger.Info(ctx, logger.ComponentAdmin, "wizard.done", slog.Int64("course_id", course.ID))
	text := fmt.Sprintf("Course #%d %s is added at %s.",
		course.ID, format.Bold(course.Title), format.Money(course.Price, b.d.Currency))
	return tghelpers.SendHTML(c, text, adminMarkup())
}

// advance moves the wizard and prompts for the next field.
func (b *Bot) advance(c tele.Context, to state.State, prompt string) error {
	if err := b.wizard.Advance(b.fsm, c.Sender().ID, to); err != nil {
		b.wizard.Finish(b.fsm, c.Sender().ID)
		return err
	}
	return tghelpers.SendHTML(c, prompt, wizardCancelMarkup())
}

// retry keeps the wizard on the current step.
func (b *Bot) retry(c tele.Context, err error) error {
	return tghelpers.SendHTML(c, format.Escape(ErrorText(err))+"\nTry again.", wizardCancelMarkup())
}

func (b *Bot) adminHideList(c tele.Context) error {
	courses, err := b.d.Catalog.ListActive(tghelpers.Ctx(c))
	if err != nil {
		return b.fail(c, err)
	}
	text := "Tap a course to hide it from the catalog. Buyers keep access to what they paid for."
	if len(courses) == 0 {
		text = "There are no active courses."
	}
	return tghelpers.EditOrSendHTML(c, text, adminHideMarkup(courses))
}

func (b *Bot) adminHide(c tele.Context) error {
	id, ok := courseID(c)
	if !ok {
		return tghelpers.Alert(c, textStaleButton)
	}
	if err := b.d.Catalog.SoftDelete(tghelpers.Ctx(c), id); err != nil {
		return b.fail(c, err)
	}
	_ = tghelpers.Toast(c, "Course hidden")
	return b.adminHideList(c)
}

func (b *Bot) adminStats(c tele.Context) error {
	report, err := b.d.Stats.Snapshot(tghelpers.Ctx(c))
	if err != nil {
		return b.fail(c, err)
	}
	return tghelpers.EditOrSendHTML(c, StatsText(report, b.d.Currency), adminBackMarkup())
}

// payStatus asks the provider about a payment: /paystatus <payment id>.
func (b *Bot) payStatus(c tele.Context) error {
	args := c.Args()
	if len(args) != 1 || strings.TrimSpace(args[0]) == "" {
		return tghelpers.SendText(c, "Usage: /paystatus <payment id>")
	}
	ctx := tghelpers.Ctx(c)
	st, err := b.d.Gateway.FetchStatus(ctx, strings.TrimSpace(args[0]))
	if err != nil {
		logger.Warn(ctx, logger.ComponentAdmin, "paystatus.fail", slog.String("err", err.Error()))
		return b.fail(c, err)
	}
	return tghelpers.SendHTML(c, RemoteStatusText(st, b.d.Currency), adminBackMarkup())
}
