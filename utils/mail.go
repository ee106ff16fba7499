package utils

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/smtp"
	"os"

	"github.com/fameuxarte/fameuxarte-api/models"
	"github.com/samber/lo"
)

//go:embed templates/*.html
var templateFS embed.FS

var orderConfirmationTemplate = template.Must(template.ParseFS(templateFS, "templates/order_confirmation.html"))

type OrderEmailItem struct {
	Title    string
	Quantity int
	Price    string
}

type OrderEmailData struct {
	OrderID   string
	PaymentID string
	Currency  string
	Total     string
	Items     []OrderEmailItem
}

func MailConfigured() bool {
	return os.Getenv("SMTP_ADDRESS") != "" && os.Getenv("FROM_EMAIL") != ""
}

func NewOrderEmailData(order models.Order) OrderEmailData {
	data := OrderEmailData{
		OrderID:  order.ID,
		Currency: order.Currency,
		Total:    order.TotalAmount.StringFixed(2),
		Items: lo.Map(order.OrderItems, func(item models.OrderItem, _ int) OrderEmailItem {
			return OrderEmailItem{Title: item.Title, Quantity: item.Quantity, Price: item.PriceAtPurchase.StringFixed(2)}
		}),
	}
	if order.PaymentIntentID != nil {
		data.PaymentID = *order.PaymentIntentID
	}
	return data
}

func RenderOrderConfirmation(data OrderEmailData) (string, error) {
	var body bytes.Buffer
	if err := orderConfirmationTemplate.Execute(&body, data); err != nil {
		return "", fmt.Errorf("template execution error: %w", err)
	}
	return body.String(), nil
}

func SendOrderConfirmation(order models.Order) error {
	body, err := RenderOrderConfirmation(NewOrderEmailData(order))
	if err != nil {
		return err
	}
	return SendEmail(order.Email, "Your Fameux Arte order "+order.ID, body)
}

func SendEmail(emailTo string, emailSubject string, htmlBody string) error {
	message := fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-version: 1.0;\r\nContent-Type: text/html; charset=\"UTF-8\";\r\n\r\n%s",
		os.Getenv("FROM_EMAIL"),
		emailTo,
		emailSubject,
		htmlBody,
	)

	auth := smtp.PlainAuth(
		"",
		os.Getenv("FROM_EMAIL"),
		os.Getenv("FROM_EMAIL_PASSWORD"),
		os.Getenv("FROM_EMAIL_SMTP"),
	)

	err := smtp.SendMail(os.Getenv("SMTP_ADDRESS"), auth, os.Getenv("FROM_EMAIL"), []string{emailTo}, []byte(message))
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	return nil
}
