package service

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	textTemplate "text/template"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/intellego/platform/internal/config"
	"github.com/intellego/platform/internal/logger"
	"github.com/tidwall/gjson"
)

const TemplateFeedback = "feedback"

type DeliveryResult struct {
	MessageID string
	Accepted  bool
}

type EmailSender interface {
	Send(ctx context.Context, templateName, recipient string, data any) (*DeliveryResult, error)
}

// FeedbackEmailData feeds the feedback template.
type FeedbackEmailData struct {
	StudentName   string
	Subject       string
	WeekStart     time.Time
	WeekEnd       time.Time
	Content       string
	ProgressScore *float64
}

func (d FeedbackEmailData) ScoreText() string {
	if d.ProgressScore == nil {
		return ""
	}
	return strconv.FormatFloat(*d.ProgressScore, 'f', 0, 64)
}

var emailTemplates = map[string]struct {
	subject *textTemplate.Template
	body    *template.Template
}{
	TemplateFeedback: {
		subject: textTemplate.Must(textTemplate.New("subject").Parse(`Devolución semanal de {{.Subject}}`)),
		body: template.Must(template.New("body").Parse(`<p>Hola {{.StudentName}},</p>
<p>Esta es la devolución de tu reporte de {{.Subject}} de la semana del {{.WeekStart.Format "02/01/2006"}} al {{.WeekEnd.Format "02/01/2006"}}.</p>
{{with .ScoreText}}<p>Progreso: {{.}}/100</p>{{end}}
<div>{{.Content}}</div>`)),
	},
}

type EmailService struct {
	client *resty.Client
	apiURL string
	from   string
	log    *logger.Logger
}

func NewEmailService(cfg *config.EmailConfig, log *logger.Logger) *EmailService {
	client := resty.New().
		SetAuthToken(cfg.APIKey).
		SetHeader("Content-Type", "application/json").
		SetTimeout(30 * time.Second)
	return &EmailService{client: client, apiURL: cfg.APIURL, from: cfg.From, log: log}
}

func render(name string, data any) (string, string, error) {
	tmpl, ok := emailTemplates[name]
	if !ok {
		return "", "", fmt.Errorf("unknown email template %q", name)
	}
	var subject, body bytes.Buffer
	if err := tmpl.subject.Execute(&subject, data); err != nil {
		return "", "", fmt.Errorf("render subject: %w", err)
	}
	if err := tmpl.body.Execute(&body, data); err != nil {
		return "", "", fmt.Errorf("render body: %w", err)
	}
	return subject.String(), body.String(), nil
}

func (s *EmailService) Send(ctx context.Context, templateName, recipient string, data any) (*DeliveryResult, error) {
	if recipient == "" {
		return nil, fmt.Errorf("recipient is empty")
	}
	subject, html, err := render(templateName, data)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(map[string]any{
			"from":    s.from,
			"to":      []string{recipient},
			"subject": subject,
			"html":    html,
		}).
		Post(s.apiURL)
	if err != nil {
		return nil, fmt.Errorf("send email: %w", err)
	}
	if resp.StatusCode() != http.StatusOK && resp.StatusCode() != http.StatusAccepted {
		return nil, fmt.Errorf("email provider status %d: %s", resp.StatusCode(), gjson.Get(resp.String(), "message").String())
	}

	id := gjson.Get(resp.String(), "id").String()
	s.log.Info("email sent", "template", templateName, "recipient", recipient, "message_id", id)
	return &DeliveryResult{MessageID: id, Accepted: true}, nil
}
