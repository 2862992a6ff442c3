package emailsvc

import (
	"fmt"
	"net/http"
	"net/mail"
	"sync"
	"time"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/trezcool/examhall/core"
)

var (
	host     = "https://api.sendgrid.com"
	endpoint = "/v3/mail/send"

	sendgridAPIFunc = sendgrid.API // mockable
)

const (
	maxSendAttempts = 3
	maxInFlight     = 8 // access links go out to a whole olympiad at once
)

type sendgridService struct {
	key             string
	appName         string
	frontendBaseURL string
	from            *sgmail.Email
	subjPrefix      string
	logger          core.Logger
	slots           chan struct{}
	backoff         time.Duration
}

var _ core.EmailService = (*sendgridService)(nil)

func NewSendgridService(conf *core.Config, logger core.Logger) core.EmailService {
	return &sendgridService{
		key:             conf.SendgridApiKey,
		appName:         conf.AppName,
		frontendBaseURL: conf.FrontendBaseURL,
		from:            sgmail.NewEmail(conf.DefaultFromEmail.Name, conf.DefaultFromEmail.Address),
		subjPrefix:      "[" + conf.AppName + "] ",
		logger:          logger,
		slots:           make(chan struct{}, maxInFlight),
		backoff:         time.Second,
	}
}

func (svc *sendgridService) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		go func(msg *core.EmailMessage) { _ = svc.sendMessage(msg) }(msg)
	}
}

func (svc *sendgridService) SendMessagesAndWait(messages ...*core.EmailMessage) core.SendResult {
	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		res core.SendResult
	)
	for _, msg := range messages {
		wg.Add(1)
		go func(msg *core.EmailMessage) {
			defer wg.Done()
			ok := svc.sendMessage(msg)

			mu.Lock()
			defer mu.Unlock()
			if ok {
				res.Sent++
			} else {
				res.Failed++
			}
		}(msg)
	}
	wg.Wait()
	return res
}

// sendMessage returns whether msg was accepted by SendGrid.
func (svc *sendgridService) sendMessage(msg *core.EmailMessage) bool {
	svc.slots <- struct{}{}
	defer func() { <-svc.slots }()

	if err := msg.Render(svc.appName, svc.frontendBaseURL); err != nil {
		svc.logger.Error(fmt.Sprintf("rendering email: %v", err), err)
		return false
	}
	if !(msg.HasRecipients() && msg.HasContent()) {
		return false
	}
	return svc.send(*msg)
}

func (svc *sendgridService) prepare(msg core.EmailMessage) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = svc.subjPrefix + msg.Subject

	for _, to := range msg.To {
		p.AddTos(sgEmail(to))
	}
	for _, cc := range msg.Cc {
		p.AddCCs(sgEmail(cc))
	}
	for _, bcc := range msg.Bcc {
		p.AddBCCs(sgEmail(bcc))
	}

	m := sgmail.NewV3Mail()
	m.SetFrom(svc.from)
	m.AddPersonalizations(p)

	m.AddContent(sgmail.NewContent("text/plain", msg.TextContent))
	if msg.HTMLContent != "" {
		m.AddContent(sgmail.NewContent("text/html", msg.HTMLContent))
	}
	return m
}

func sgEmail(addr mail.Address) *sgmail.Email {
	return sgmail.NewEmail(addr.Name, addr.Address)
}

// retryable reports whether SendGrid may accept the same request later.
func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}

func (svc *sendgridService) send(msg core.EmailMessage) bool {
	body := sgmail.GetRequestBody(svc.prepare(msg))

	for attempt := 1; ; attempt++ {
		req := sendgrid.GetRequest(svc.key, endpoint, host)
		req.Method = http.MethodPost
		req.Body = body

		res, err := sendgridAPIFunc(req)
		switch {
		case err == nil && res.StatusCode < http.StatusBadRequest:
			return true
		case err == nil && !retryable(res.StatusCode):
			svc.logger.Error(fmt.Sprintf("sending email - status: %d - Body: %s", res.StatusCode, res.Body))
			return false
		case attempt == maxSendAttempts:
			if err != nil {
				svc.logger.Error(fmt.Sprintf("sending email: %v", err), err)
			} else {
				svc.logger.Error(fmt.Sprintf("sending email - gave up after %d attempts - status: %d", attempt, res.StatusCode))
			}
			return false
		}
		time.Sleep(time.Duration(attempt) * svc.backoff)
	}
}
