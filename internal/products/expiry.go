package products

import "fmt"

// DueSoonDays is the inclusive upper bound of the due-soon window.
const DueSoonDays = 7

type Status string

const (
	StatusExpired Status = "expired"
	StatusDueSoon Status = "due_soon"
	StatusSafe    Status = "safe"
)

// Statuses lists every status in severity order.
var Statuses = []Status{StatusExpired, StatusDueSoon, StatusSafe}

func DeriveExpiry(productionDate Date, shelfLifeDays int) Date {
	return productionDate.AddDays(shelfLifeDays)
}

// DaysUntilExpiry is negative once the product has expired.
func DaysUntilExpiry(expiryDate, today Date) int {
	return expiryDate.DaysSince(today)
}

func Classify(daysUntilExpiry int) Status {
	switch {
	case daysUntilExpiry < 0:
		return StatusExpired
	case daysUntilExpiry <= DueSoonDays:
		return StatusDueSoon
	default:
		return StatusSafe
	}
}

// View is a product as presented in a list on a given day.
type View struct {
	Product
	DaysUntilExpiry int    `json:"days_until_expiry" example:"3"`
	Status          Status `json:"status" example:"due_soon"`
	StatusText      string `json:"status_text" example:"3 days left"`
}

func Describe(p Product, today Date) View {
	days := DaysUntilExpiry(p.ExpiryDate, today)
	return View{
		Product:         p,
		DaysUntilExpiry: days,
		Status:          Classify(days),
		StatusText:      statusText(days),
	}
}

func DescribeAll(list []Product, today Date) []View {
	views := make([]View, 0, len(list))
	for _, p := range list {
		views = append(views, Describe(p, today))
	}
	return views
}

func statusText(days int) string {
	switch {
	case days < -1:
		return fmt.Sprintf("expired %d days ago", -days)
	case days == -1:
		return "expired yesterday"
	case days == 0:
		return "expires today"
	case days == 1:
		return "expires tomorrow"
	default:
		return fmt.Sprintf("%d days left", days)
	}
}

func ReminderTitle(name string) string {
	return "Expiry reminder: " + name
}

func ReminderDescription(name string, expiryDate Date) string {
	return fmt.Sprintf("%s expires on %s", name, expiryDate)
}
