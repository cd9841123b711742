package mailer

import (
	"fmt"
	"net/smtp"
	"strings"

	"github.com/jordan-wright/email"
	log "github.com/sirupsen/logrus"

	"salchimonster/restaurant-reports/models"
)

type Config struct {
	Server       string
	Port         int
	EmailAddress string
	Password     string
}

type Mailer struct {
	config Config
	send   func(e *email.Email, addr string, auth smtp.Auth) error
}

func New(config Config) *Mailer {
	return &Mailer{
		config: config,
		send:   func(e *email.Email, addr string, auth smtp.Auth) error { return e.Send(addr, auth) },
	}
}

// Send mails a plain text message. Servers without AUTH are retried unauthenticated.
func (m *Mailer) Send(to []string, subject string, body string) error {
	if m.config.Server == "" || m.config.EmailAddress == "" {
		return fmt.Errorf("Mailer.Send: smtp no configurado: %w", models.ErrUnavailable)
	}
	if len(to) == 0 {
		return fmt.Errorf("Mailer.Send: sin destinatarios: %w", models.ErrInvalidInput)
	}

	mail := email.NewEmail()
	mail.From = fmt.Sprintf("Salchimonster Reportes <%s>", m.config.EmailAddress)
	mail.To = to
	mail.Subject = subject
	mail.Text = []byte(body)

	addr := fmt.Sprintf("%s:%d", m.config.Server, m.config.Port)
	err := m.send(mail, addr, smtp.PlainAuth("", m.config.EmailAddress, m.config.Password, m.config.Server))
	if err != nil && strings.Contains(err.Error(), "server doesn't support AUTH") {
		err = m.send(mail, addr, nil)
	}
	if err != nil {
		return fmt.Errorf("Mailer.Send: %w", err)
	}
	log.Infof("Correo enviado a %s: %s", strings.Join(to, ", "), subject)

	return nil
}

// PlanillasPendientes builds the reminder for locations that did not upload their planilla.
func PlanillasPendientes(fecha string, pendientes []models.Locale) (string, string) {
	subject := fmt.Sprintf("Planillas pendientes %s", fecha)

	body := strings.Builder{}
	body.WriteString(fmt.Sprintf("Sedes sin planilla para el %s:\n\n", fecha))
	for _, l := range pendientes {
		body.WriteString(fmt.Sprintf("- %s (%s)\n", l.Name, l.ID))
	}
	body.WriteString("\nSube la planilla desde el panel de la sede.\n")

	return subject, body.String()
}
