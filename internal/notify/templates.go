package notify

import (
	"bytes"
	"embed"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"

	"github.com/wolfman30/mortgage-leads/internal/leads"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

const (
	// DefaultBrand names the business in subjects and bodies.
	DefaultBrand = "PrimeMortgage"
	// DefaultBusinessPhone is shown in the customer acknowledgment.
	DefaultBusinessPhone = "(416) 555-0123"

	noMessage = "No message provided"
)

var (
	htmlTemplates = htmltemplate.Must(htmltemplate.ParseFS(templateFS, "templates/*.html.tmpl"))
	textTemplates = texttemplate.Must(texttemplate.ParseFS(templateFS, "templates/*.txt.tmpl"))
)

// templateData is the view of a lead handed to the templates. html/template
// escapes every field for its context.
type templateData struct {
	Name          string
	Email         string
	Phone         string
	Message       string
	Type          string
	SubmittedAt   string
	Brand         string
	BusinessPhone string
}

func newTemplateData(lead leads.Lead, brand, businessPhone string) templateData {
	message := lead.Message
	if message == "" {
		message = noMessage
	}
	return templateData{
		Name:          lead.Name,
		Email:         lead.Email,
		Phone:         lead.Phone,
		Message:       message,
		Type:          lead.Type,
		SubmittedAt:   lead.SubmittedAtString(),
		Brand:         brand,
		BusinessPhone: businessPhone,
	}
}

// BusinessAlert renders the internal notification for a new lead.
func BusinessAlert(lead leads.Lead, to, brand string) (EmailMessage, error) {
	data := newTemplateData(lead, brand, "")
	msg := EmailMessage{
		To:      to,
		Subject: subjectLine(fmt.Sprintf("New Lead Submission: %s", lead.Name)),
	}
	return render(msg, "business", data)
}

// CustomerAcknowledgment renders the confirmation sent back to the lead.
func CustomerAcknowledgment(lead leads.Lead, brand, businessPhone string) (EmailMessage, error) {
	data := newTemplateData(lead, brand, businessPhone)
	msg := EmailMessage{
		To:      lead.Email,
		ToName:  lead.Name,
		Subject: subjectLine(fmt.Sprintf("Thank You for Your Inquiry - %s", brand)),
	}
	return render(msg, "customer", data)
}

func render(msg EmailMessage, name string, data templateData) (EmailMessage, error) {
	var html, text bytes.Buffer
	if err := htmlTemplates.ExecuteTemplate(&html, name+".html.tmpl", data); err != nil {
		return EmailMessage{}, fmt.Errorf("notify: render %s html: %w", name, err)
	}
	if err := textTemplates.ExecuteTemplate(&text, name+".txt.tmpl", data); err != nil {
		return EmailMessage{}, fmt.Errorf("notify: render %s text: %w", name, err)
	}
	msg.HTML = html.String()
	msg.Body = text.String()
	return msg, nil
}

// subjectLine keeps header values on one line.
func subjectLine(s string) string {
	return strings.Join(strings.FieldsFunc(s, func(r rune) bool { return r == '\r' || r == '\n' }), " ")
}
