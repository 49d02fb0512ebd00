package bot

import (
	"errors"
	"fmt"
	"strings"

	"github.com/m3rciful/coursebot/core/telegram/format"
	"github.com/m3rciful/coursebot/shop/domain"
	"github.com/m3rciful/coursebot/shop/payment"
	"github.com/m3rciful/coursebot/shop/stats"
)

const (
	textWelcome        = "Hi, %s! Here you can buy online courses.\nPick a section below."
	textCatalogEmpty   = "The catalog is empty for now."
	textCartEmpty      = "Your cart is empty."
	textNoPurchases    = "You have not bought any courses yet."
	textUnknown        = "I did not get that. Use /start to open the menu."
	textUnexpectedDoc  = "Files are not accepted here."
	textStaleButton    = "This button is outdated"
	textAdminOnly      = "This section is for admins only."
	textGenericFailure = "Something went wrong, please try again later."
)

// WelcomeText greets the user by first name.
func WelcomeText(firstName string) string {
	name := strings.TrimSpace(firstName)
	if name == "" {
		name = "there"
	}
	return fmt.Sprintf(textWelcome, format.Escape(name))
}

// CatalogText introduces the course list rendered as buttons.
func CatalogText(courses []domain.Course) string {
	if len(courses) == 0 {
		return textCatalogEmpty
	}
	return fmt.Sprintf("%s\n%d course(s) available. Tap one for details.", format.Bold("Catalog"), len(courses))
}

// CourseText renders the course card.
func CourseText(c domain.Course, currency string, inCart bool) string {
	var b strings.Builder
	b.WriteString(format.Bold(c.Title))
	b.WriteString("\n\n")
	if d := strings.TrimSpace(c.Description); d != "" {
		b.WriteString(format.Escape(d))
		b.WriteString("\n\n")
	}
	b.WriteString("Price: " + format.Bold(format.Money(c.Price, currency)))
	if inCart {
		b.WriteString("\nAlready in your cart.")
	}
	return b.String()
}

// CartText lists the cart with its total. Courses must already be the active ones.
func CartText(courses []domain.Course, currency string) string {
	if len(courses) == 0 {
		return textCartEmpty
	}
	var b strings.Builder
	b.WriteString(format.Bold("Cart"))
	b.WriteString("\n\n")
	items := make([]domain.OrderItem, 0, len(courses))
	for _, c := range courses {
		fmt.Fprintf(&b, "• %s · %s\n", format.Escape(c.Title), format.Money(c.Price, currency))
		items = append(items, domain.OrderItem{Price: c.Price})
	}
	fmt.Fprintf(&b, "\nTotal: %s", format.Bold(format.Money(domain.SumItems(items), currency)))
	return b.String()
}

// OrderCreatedText follows a successful checkout.
func OrderCreatedText(o domain.Order, currency string) string {
	return fmt.Sprintf("Order #%d is created.\nTotal: %s\n\nTap the button below to pay.",
		o.ID, format.Bold(format.Money(o.TotalAmount, currency)))
}

// PaidText delivers the course materials.
func PaidText(o domain.Order) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\nOrder #%d\n\nYour course materials:\n", format.Bold("Payment received!"), o.ID)
	for _, it := range o.Items {
		fmt.Fprintf(&b, "\n%s\n%s\n", format.Bold(it.CourseTitle), format.Escape(it.MaterialURL))
	}
	return b.String()
}

// CancelledText tells the buyer how to retry.
func CancelledText(o domain.Order) string {
	return fmt.Sprintf("Payment for order #%d was cancelled.\nAdd the courses to the cart again via /start to retry.", o.ID)
}

// MyCoursesText lists purchased courses with their material links.
func MyCoursesText(courses []domain.Course) string {
	if len(courses) == 0 {
		return textNoPurchases
	}
	var b strings.Builder
	b.WriteString(format.Bold("My courses"))
	b.WriteString("\n")
	for _, c := range courses {
		fmt.Fprintf(&b, "\n%s\n%s\n", format.Bold(c.Title), format.Escape(c.MaterialURL))
	}
	return b.String()
}

// StatsText renders the admin dashboard.
func StatsText(r stats.Report, currency string) string {
	return fmt.Sprintf("%s\n\nUsers: %d\nOrders: %d\n  paid: %d\n  pending: %d\n  cancelled: %d\nRevenue: %s\nAverage paid order: %s",
		format.Bold("Statistics"),
		r.Users, r.Orders, r.PaidOrders, r.PendingOrders, r.CancelledOrders,
		format.Money(r.Revenue, currency), format.Money(r.AveragePaid, currency))
}

// RemoteStatusText renders a provider status lookup.
func RemoteStatusText(st payment.RemoteStatus, currency string) string {
	order := st.OrderID
	if order == "" {
		order = "-"
	}
	return fmt.Sprintf("Payment %s\nStatus: %s\nPaid: %t\nAmount: %s\nOrder: %s",
		format.Escape(st.ExternalID), format.Escape(st.Raw), st.Paid,
		format.Money(st.Amount, currency), format.Escape(order))
}

// ErrorText maps a service error to what the user sees.
func ErrorText(err error) string {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		return "Invalid " + strings.ReplaceAll(verr.Field, "_", " ") + ": " + verr.Reason + "."
	case errors.Is(err, domain.ErrEmptyCart):
		return textCartEmpty
	case errors.Is(err, domain.ErrNoValidItems):
		return "None of the courses in your cart are available anymore."
	case errors.Is(err, domain.ErrGateway):
		return "The payment service is unavailable. Your cart is kept, please try again later."
	case errors.Is(err, domain.ErrNotFound):
		return "Not found."
	}
	return textGenericFailure
}

// expected reports whether err is a user-level outcome rather than a failure worth an error log.
func expected(err error) bool {
	return errors.Is(err, domain.ErrValidation) ||
		errors.Is(err, domain.ErrEmptyCart) ||
		errors.Is(err, domain.ErrNoValidItems) ||
		errors.Is(err, domain.ErrNotFound)
}
