package notifications

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// formatKES renders an amount as whole shillings with thousands separators,
// matching the copy tenants already receive ("KES 25,000").
func formatKES(amount decimal.Decimal) string {
	whole := amount.Round(0).IntPart()

	negative := whole < 0
	if negative {
		whole = -whole
	}

	digits := fmt.Sprintf("%d", whole)
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if negative {
		return "-" + b.String()
	}
	return b.String()
}

func houseName(propertyName, apartmentReference string) string {
	return fmt.Sprintf("%s - %s", propertyName, apartmentReference)
}

func renderConfirmation(tenantName string, amount decimal.Decimal, house, receipt string) string {
	return fmt.Sprintf(
		"Dear %s, we have received your payment of KES %s for %s. M-Pesa Ref: %s. Thank you!",
		tenantName, formatKES(amount), house, receipt,
	)
}

func renderPartialNotice(tenantName string, paid, due, balance decimal.Decimal, house string) string {
	return fmt.Sprintf(
		"Dear %s, we received KES %s for %s. Your balance is KES %s out of KES %s. Please pay the remaining amount soon.",
		tenantName, formatKES(paid), house, formatKES(balance), formatKES(due),
	)
}

func renderReminder(tenantName string, amount decimal.Decimal, house string, dueDate time.Time, paybill, accountReference string) string {
	return fmt.Sprintf(
		"Dear %s, your rent of KES %s for %s is due on %s. Please pay via M-Pesa Paybill %s. Account: %s.",
		tenantName, formatKES(amount), house, dueDate.Format("January 2, 2006"), paybill, accountReference,
	)
}

func renderOverdueNotice(tenantName string, amount decimal.Decimal, house string, daysOverdue int, paybill string) string {
	return fmt.Sprintf(
		"Dear %s, your rent of KES %s for %s is %d days overdue. Please pay immediately via M-Pesa Paybill %s to avoid penalties.",
		tenantName, formatKES(amount), house, daysOverdue, paybill,
	)
}
