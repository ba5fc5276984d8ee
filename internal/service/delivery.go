package service

import (
	"fmt"
	"math/rand"
	"strings"
	"time"
)

const fieldPlaceholder = "N/A"

// Credential is one parsed stock line. Lines are comma-delimited
// "login, password, extra..."; short lines degrade to placeholders
// instead of failing the delivery.
type Credential struct {
	Login    string
	Password string
	Extra    []string
}

func ParseStockLine(raw string) Credential {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Credential{Login: fieldPlaceholder, Password: fieldPlaceholder}
	}
	if !strings.Contains(raw, ",") {
		return Credential{Login: raw, Password: fieldPlaceholder}
	}

	parts := strings.Split(raw, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	c := Credential{Login: parts[0], Password: fieldPlaceholder}
	if c.Login == "" {
		c.Login = fieldPlaceholder
	}
	if len(parts) > 1 && parts[1] != "" {
		c.Password = parts[1]
	}
	for _, p := range parts[2:] {
		if p != "" {
			c.Extra = append(c.Extra, p)
		}
	}
	return c
}

const detailsDivider = "= = = = = = = = = = = = = = = = = = = = = ="

// FormatDelivery renders the confirmation message with one block per
// delivered credential, mirroring what the chat front end shows.
func FormatDelivery(o *Order, payloads []string, trxID string) string {
	var b strings.Builder
	b.WriteString("✅ PAYMENT CONFIRMED\n")
	b.WriteString("Thank you, your payment has been received!\n\n")
	b.WriteString("Order Details:\n")
	b.WriteString(detailsDivider + "\n")
	fmt.Fprintf(&b, "Product: %s\n", o.ProductName)
	fmt.Fprintf(&b, "Variant: %s\n", o.VariantName)
	fmt.Fprintf(&b, "Quantity: x%d\n", o.Quantity)
	fmt.Fprintf(&b, "Total: $%s\n", o.Total().StringFixed(2))
	b.WriteString(detailsDivider + "\n")

	for i, raw := range payloads {
		c := ParseStockLine(raw)
		fmt.Fprintf(&b, "\nItem Details #%d\n", i+1)
		fmt.Fprintf(&b, "Email/Username : `%s`\n", c.Login)
		fmt.Fprintf(&b, "Password : `%s`\n\n", c.Password)
		if len(c.Extra) > 0 {
			b.WriteString("Additional Information:\n")
			b.WriteString(strings.Join(c.Extra, "\n") + "\n\n")
		}
		if o.TutorialURL != nil && *o.TutorialURL != "" {
			fmt.Fprintf(&b, "[Tutorial Sign In](%s)\n", *o.TutorialURL)
		}
	}

	fmt.Fprintf(&b, "\nTransaction ID: `%s`", trxID)
	return b.String()
}

func FormatPaidPending(o *Order) string {
	return fmt.Sprintf(
		"✅ PAID\n⚠️ %s (%s) is out of stock right now.\nYour payment was received; the admin has been notified and will deliver manually.",
		o.ProductName, o.VariantName,
	)
}

// FormatExpired names the actual payment window, which is configurable
// and not always the default ten minutes.
func FormatExpired(o *Order, window time.Duration) string {
	return fmt.Sprintf(
		"⏰ EXPIRED — payment timeout after %s.\n\nNo payment was detected. Please try again, or contact admin if you already paid.",
		formatWindow(window),
	)
}

func formatWindow(d time.Duration) string {
	if d >= time.Minute && d%time.Minute == 0 {
		m := int(d / time.Minute)
		if m == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", m)
	}
	return d.String()
}

func FormatCancelled(o *Order) string {
	return "❌ Order Cancelled."
}

const trxLetters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"

func generateTrxID(now time.Time) string {
	suffix := make([]byte, 5)
	for i := range suffix {
		suffix[i] = trxLetters[rand.Intn(len(trxLetters))]
	}
	return fmt.Sprintf("DZPREM-%s-%s", now.Format("02012006"), suffix)
}

func billNumber(now time.Time) string {
	return "INV" + now.Format("20060102150405")
}
