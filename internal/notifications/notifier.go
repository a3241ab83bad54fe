package notifications

import (
	"bytes"
	"context"
	"fmt"
	"text/template"

	"storefront/internal/kafka"
	"storefront/internal/logger"
	"storefront/internal/metrics"
	"storefront/internal/models"
)

// Message представляет готовое уведомление покупателю.
type Message struct {
	OrderID string
	Status  models.OrderStatus
	Subject string
	Body    string
}

// Sender доставляет уведомление покупателю.
type Sender interface {
	Send(ctx context.Context, msg *Message) error
}

// LogSender пишет уведомления в лог вместо реальной доставки.
type LogSender struct {
	log *logger.Logger
}

// NewLogSender создает отправителя, который только логирует сообщения.
func NewLogSender(log *logger.Logger) *LogSender {
	return &LogSender{log: log}
}

func (s *LogSender) Send(_ context.Context, msg *Message) error {
	s.log.WithFields(map[string]interface{}{
		"order_id": msg.OrderID,
		"status":   msg.Status,
		"subject":  msg.Subject,
	}).Info(msg.Body)
	return nil
}

type messageTemplate struct {
	subject string
	body    *template.Template
}

// templateData содержит поля, доступные в шаблонах.
type templateData struct {
	OrderID      string
	Reason       string
	RefundAmount string
}

var defaultTemplates = map[models.OrderStatus][2]string{
	models.OrderStatusCancelled: {
		"Your order has been cancelled",
		`Order {{.OrderID}} has been cancelled.{{if .Reason}} Reason: {{.Reason}}.{{end}}`,
	},
	models.OrderStatusRefunded: {
		"Your refund is on its way",
		`Order {{.OrderID}} has been refunded{{if .RefundAmount}} for {{.RefundAmount}}{{end}}.{{if .Reason}} Reason: {{.Reason}}.{{end}}`,
	},
	models.OrderStatusReturned: {
		"We received your return",
		`Return for order {{.OrderID}} has been registered.{{if .Reason}} Reason: {{.Reason}}.{{end}}`,
	},
}

// Notifier превращает события смены статуса в уведомления покупателю.
type Notifier struct {
	sender    Sender
	log       *logger.Logger
	templates map[models.OrderStatus]messageTemplate
}

// NewNotifier создает уведомитель со стандартными шаблонами.
func NewNotifier(sender Sender, log *logger.Logger) *Notifier {
	templates := make(map[models.OrderStatus]messageTemplate, len(defaultTemplates))
	for status, tpl := range defaultTemplates {
		templates[status] = messageTemplate{
			subject: tpl[0],
			body:    template.Must(template.New(string(status)).Parse(tpl[1])),
		}
	}
	return &Notifier{
		sender:    sender,
		log:       log,
		templates: templates,
	}
}

// Render собирает сообщение для события. ok=false, если для статуса нет шаблона.
func (n *Notifier) Render(data *models.OrderStatusChangedData) (msg *Message, ok bool, err error) {
	tpl, found := n.templates[data.NewStatus]
	if !found {
		return nil, false, nil
	}

	view := templateData{OrderID: data.OrderID, Reason: data.Reason}
	if data.RefundAmount != nil {
		view.RefundAmount = fmt.Sprintf("%.2f", *data.RefundAmount)
	}

	var buf bytes.Buffer
	if err := tpl.body.Execute(&buf, view); err != nil {
		return nil, false, fmt.Errorf("render %s template: %w", data.NewStatus, err)
	}

	return &Message{
		OrderID: data.OrderID,
		Status:  data.NewStatus,
		Subject: tpl.subject,
		Body:    buf.String(),
	}, true, nil
}

// HandleOrderStatusChanged обрабатывает событие order.status_changed.
// Ошибки отправки только логируются: смена статуса уже зафиксирована.
func (n *Notifier) HandleOrderStatusChanged(ctx context.Context, event *models.Event) error {
	var data models.OrderStatusChangedData
	if err := kafka.DecodeData(event, &data); err != nil {
		return fmt.Errorf("decode order status event: %w", err)
	}

	log := n.log.WithFields(map[string]interface{}{
		"event_id":   event.ID,
		"order_id":   data.OrderID,
		"new_status": data.NewStatus,
	})

	msg, ok, err := n.Render(&data)
	if err != nil {
		metrics.NotificationsTotal.WithLabelValues(string(data.NewStatus), metrics.ResultFailed).Inc()
		log.WithError(err).Warn("Failed to render notification")
		return nil
	}
	if !ok {
		metrics.NotificationsTotal.WithLabelValues(string(data.NewStatus), metrics.ResultSkipped).Inc()
		log.Debug("No notification template for status")
		return nil
	}

	if err := n.sender.Send(ctx, msg); err != nil {
		metrics.NotificationsTotal.WithLabelValues(string(data.NewStatus), metrics.ResultFailed).Inc()
		log.WithError(err).Warn("Failed to send notification")
		return nil
	}

	metrics.NotificationsTotal.WithLabelValues(string(data.NewStatus), metrics.ResultSent).Inc()
	return nil
}
