package email

import (
	"context"
	"fmt"
	"net/smtp"

	"go.uber.org/zap"
)

type SMTPNotifier struct {
	host   string
	port   int
	from   string
	logger *zap.Logger
}

func NewSMTPNotifier(host string, port int, from string, logger *zap.Logger) *SMTPNotifier {
	return &SMTPNotifier{host: host, port: port, from: from, logger: logger}
}

func (n *SMTPNotifier) NotifyFailure(_ context.Context, to, runID, errorMsg string) error {
	addr := fmt.Sprintf("%s:%d", n.host, n.port)

	subject := fmt.Sprintf("Wan Animator - Run Failed [%s]", runID)
	body := fmt.Sprintf(
		"Hello,\r\n\r\n"+
			"An animation run aborted before finishing its queue.\r\n\r\n"+
			"Run ID: %s\r\n"+
			"Error: %s\r\n\r\n"+
			"Outputs already uploaded and videos already marked processed were kept;\r\n"+
			"the next run resumes with the remaining videos.\r\n\r\n"+
			"-- Wan Animator",
		runID, errorMsg,
	)

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s",
		n.from, to, subject, body,
	)

	err := smtp.SendMail(addr, nil, n.from, []string{to}, []byte(msg))
	if err != nil {
		n.logger.Error("failed to send failure notification email",
			zap.String("to", to),
			zap.String("run_id", runID),
			zap.Error(err),
		)
		return fmt.Errorf("send email: %w", err)
	}

	n.logger.Info("failure notification email sent",
		zap.String("to", to),
		zap.String("run_id", runID),
	)
	return nil
}
