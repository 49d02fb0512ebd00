package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/m3rciful/coursebot/core/logger"
	"github.com/m3rciful/coursebot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/coursebot/core/telegram/helpers"
	"github.com/m3rciful/coursebot/shop/cart"
	"github.com/m3rciful/coursebot/shop/domain"

	tele "gopkg.in/telebot.v4"
)

const textCourseGone = "This course is no longer available."

func (b *Bot) start(c tele.Context) error {
	ctx := tghelpers.Ctx(c)
	cu := customer(c)
	if _, err := b.d.Users.GetOrCreate(ctx, cu.TelegramID, cu.FullName, cu.Username); err != nil {
		return b.fail(c, err)
	}
	if b.wizard.Active(b.fsm, cu.TelegramID) {
		b.wizard.Finish(b.fsm, cu.TelegramID)
	}
	return tghelpers.SendHTML(c, WelcomeText(c.Sender().FirstName), menuMarkup(b.isAdmin(c)))
}

func (b *Bot) menu(c tele.Context) error {
	return tghelpers.EditOrSendHTML(c, WelcomeText(c.Sender().FirstName), menuMarkup(b.isAdmin(c)))
}

func (b *Bot) showCatalog(c tele.Context) error {
	courses, err := b.d.Catalog.ListActive(tghelpers.Ctx(c))
	if err != nil {
		return b.fail(c, err)
	}
	return tghelpers.EditOrSendHTML(c, CatalogText(courses), catalogMarkup(courses, b.d.Currency))
}

// courseID reads the course id payload of a button.
func courseID(c tele.Context) (int64, bool) {
	id, err := callbacks.Of(c).ID()
	return id, err == nil
}

// activeCourse reports inactive courses as domain.ErrNotFound.
func (b *Bot) activeCourse(ctx context.Context, id int64) (domain.Course, error) {
	course, err := b.d.Catalog.Get(ctx, id)
	if err != nil {
		return domain.Course{}, err
	}
	if !course.Active {
		return domain.Course{}, fmt.Errorf("course %d inactive: %w", id, domain.ErrNotFound)
	}
	return course, nil
}

func (b *Bot) showCourse(c tele.Context) error {
	id, ok := courseID(c)
	if !ok {
		return tghelpers.Alert(c, textStaleButton)
	}
	course, err := b.activeCourse(tghelpers.Ctx(c), id)
	if errors.Is(err, domain.ErrNotFound) {
		_ = tghelpers.Alert(c, textCourseGone)
		return b.showCatalog(c)
	}
	if err != nil {
		return b.fail(c, err)
	}
	return b.renderCourse(c, course)
}

func (b *Bot) renderCourse(c tele.Context, course domain.Course) error {
	inCart, err := b.d.Cart.Contains(tghelpers.Ctx(c), c.Sender().ID, course.ID)
	if err != nil {
		return b.fail(c, err)
	}
	return tghelpers.EditOrSendHTML(c, CourseText(course, b.d.Currency, inCart), courseMarkup(course.ID, inCart))
}

func (b *Bot) addToCart(c tele.Context) error {
	id, ok := courseID(c)
	if !ok {
		return tghelpers.Alert(c, textStaleButton)
	}
	ctx := tghelpers.Ctx(c)
	course, err := b.activeCourse(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		_ = tghelpers.Alert(c, textCourseGone)
		return b.showCatalog(c)
	}
	if err != nil {
		return b.fail(c, err)
	}

	res, err := b.d.Cart.Add(ctx, c.Sender().ID, id)
	if err != nil {
		return b.fail(c, err)
	}
	if res == cart.Added {
		_ = tghelpers.Toast(c, "Added to cart")
	} else {
		_ = tghelpers.Toast(c, "Already in your cart")
	}
	return b.renderCourse(c, course)
}

// unpick removes a course from the cart while its card is open.
func (b *Bot) unpick(c tele.Context) error {
	id, ok := courseID(c)
	if !ok {
		return tghelpers.Alert(c, textStaleButton)
	}
	ctx := tghelpers.Ctx(c)
	if _, err := b.d.Cart.Remove(ctx, c.Sender().ID, id); err != nil {
		return b.fail(c, err)
	}
	_ = tghelpers.Toast(c, "Removed from cart")

	course, err := b.activeCourse(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return b.showCatalog(c)
	}
	if err != nil {
		return b.fail(c, err)
	}
	return b.renderCourse(c, course)
}

func (b *Bot) removeFromCart(c tele.Context) error {
	id, ok := courseID(c)
	if !ok {
		return tghelpers.Alert(c, textStaleButton)
	}
	res, err := b.d.Cart.Remove(tghelpers.Ctx(c), c.Sender().ID, id)
	if err != nil {
		return b.fail(c, err)
	}
	if res == cart.Removed {
		_ = tghelpers.Toast(c, "Removed from cart")
	}
	return b.showCart(c)
}

// showCart renders the active part of the cart and drops courses that left
// the catalog since they were added.
func (b *Bot) showCart(c tele.Context) error {
	ctx := tghelpers.Ctx(c)
	uid := c.Sender().ID
	ids, err := b.d.Cart.List(ctx, uid)
	if err != nil {
		return b.fail(c, err)
	}

	courses := make([]domain.Course, 0, len(ids))
	active := make(map[int64]bool, len(ids))
	for _, id := range ids {
		course, err := b.activeCourse(ctx, id)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return b.fail(c, err)
		}
		courses = append(courses, course)
		active[id] = true
	}
	if len(courses) < len(ids) {
		dropped, err := b.d.Cart.Retain(ctx, uid, func(id int64) bool { return active[id] })
		if err != nil {
			logger.Warn(ctx, logger.ComponentShop, "cart.prune_fail", slog.String("err", err.Error()))
		} else if dropped > 0 {
			logger.Info(ctx, logger.ComponentShop, "cart.pruned", slog.Int("dropped", dropped))
		}
	}
	return tghelpers.EditOrSendHTML(c, CartText(courses, b.d.Currency), cartMarkup(courses))
}

func (b *Bot) checkout(c tele.Context) error {
	placed, err := b.d.Checkout.PlaceOrder(tghelpers.Ctx(c), customer(c))
	if err != nil {
		return b.fail(c, err)
	}
	return tghelpers.EditOrSendHTML(c, OrderCreatedText(placed.Order, b.d.Currency), payMarkup(placed.RedirectURL))
}

func (b *Bot) myCourses(c tele.Context) error {
	ctx := tghelpers.Ctx(c)
	var courses []domain.Course
	u, err := b.d.Users.GetByTelegramID(ctx, c.Sender().ID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
	case err != nil:
		return b.fail(c, err)
	default:
		if courses, err = b.d.Users.PurchasedCourses(ctx, u.ID); err != nil {
			return b.fail(c, err)
		}
	}
	return tghelpers.EditOrSendHTML(c, MyCoursesText(courses), backToMenuMarkup())
}
