package notify

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
)

// Email is a rendered claim notification ready for transport.
type Email struct {
	To      string
	ReplyTo string
	Subject string
	Text    string
	HTML    string
}

type templateData struct {
	RecipientName string
	ClaimantName  string
	ClaimantEmail string
	ItemName      string
	Category      string
	Location      string
	DateLabel     string
	DateValue     string
	LostOrFound   string
}

const textBody = `Hello {{.RecipientName}},

I believe the {{.LostOrFound}} item you reported on the Lost & Found platform belongs to me. I would like to claim it.

Item Details:
- Item: {{.ItemName}}
- Category: {{.Category}}
- Location: {{.Location}}
- {{.DateLabel}}: {{.DateValue}}

My Contact Information:
- Name: {{.ClaimantName}}
- Email: {{.ClaimantEmail}}

I would appreciate if we could arrange a time to meet so I can verify and retrieve my item.

Please reply to this email at your earliest convenience so we can coordinate the return of the item.

This message was sent through the Lost & Found platform.
`

const htmlBody = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<title>Item Claim Request</title>
</head>
<body style="font-family: Arial, sans-serif; color: #333; line-height: 1.6;">
<div style="max-width: 600px; margin: 0 auto; padding: 20px;">
<h2 style="color: #1976d2;">Item Claim Request</h2>
<p>Hello {{.RecipientName}},</p>
<p>I believe the {{.LostOrFound}} item you reported on the Lost &amp; Found platform belongs to me. I would like to claim it.</p>
<div style="background-color: #f5f7fa; border-radius: 5px; margin: 20px 0; padding: 15px;">
<h3 style="margin-top: 0; color: #444;">Item Details:</h3>
<p><strong>Item:</strong> {{.ItemName}}</p>
<p><strong>Category:</strong> {{.Category}}</p>
<p><strong>Location:</strong> {{.Location}}</p>
<p><strong>{{.DateLabel}}:</strong> {{.DateValue}}</p>
</div>
<div style="background-color: #e3f2fd; border-radius: 5px; margin: 20px 0; padding: 15px;">
<h3 style="margin-top: 0; color: #1976d2;">My Contact Information:</h3>
<p><strong>Name:</strong> {{.ClaimantName}}</p>
<p><strong>Email:</strong> {{.ClaimantEmail}}</p>
</div>
<p>Please reply to this email at your earliest convenience so we can coordinate the return of the item.</p>
<p style="font-size: 0.9em; color: #777; border-top: 1px solid #ddd; padding-top: 10px;">
This message was sent through the Lost &amp; Found platform.
</p>
</div>
</body>
</html>
`

var (
	textTmpl = texttemplate.Must(texttemplate.New("claim-text").Parse(textBody))
	htmlTmpl = htmltemplate.Must(htmltemplate.New("claim-html").Parse(htmlBody))
)

// RenderEmail builds the plain-text and HTML claim message addressed to the
// item's reporter contact, with the claimant on Reply-To so the two parties
// can coordinate directly.
func RenderEmail(notice ClaimNotice) (Email, error) {
	lostOrFound := "found"
	dateLabel := "Date Found"
	if notice.Disposition == "Lost" {
		lostOrFound = "lost"
		dateLabel = "Date Lost"
	}

	data := templateData{
		RecipientName: notice.ContactName,
		ClaimantName:  notice.ClaimantName,
		ClaimantEmail: notice.ClaimantEmail,
		ItemName:      notice.ItemName,
		Category:      notice.Category,
		Location:      notice.Location,
		DateLabel:     dateLabel,
		DateValue:     notice.OccurredOn.Format("January 2, 2006"),
		LostOrFound:   lostOrFound,
	}

	var text bytes.Buffer
	if err := textTmpl.Execute(&text, data); err != nil {
		return Email{}, err
	}
	var html bytes.Buffer
	if err := htmlTmpl.Execute(&html, data); err != nil {
		return Email{}, err
	}

	subject := fmt.Sprintf("Claim Request for your %s item: %s", lostOrFound, notice.ItemName)

	return Email{
		To:      strings.TrimSpace(notice.ContactEmail),
		ReplyTo: strings.TrimSpace(notice.ClaimantEmail),
		Subject: subject,
		Text:    text.String(),
		HTML:    html.String(),
	}, nil
}
