package core

import (
	"bytes"
	"fmt"
	htmltmpl "html/template"
	"io"
	"io/fs"
	"net/mail"
	"path"
	"strings"
	"sync"
	texttmpl "text/template"

	"github.com/pkg/errors"

	appfs "github.com/trezcool/examhall/fs"
)

var (
	templates   = map[string]emailTemplates{}
	templatesMu sync.RWMutex

	emailTemplatesDir = "templates/email"
)

type (
	// emailTemplates are the two renditions of one email; either may be missing.
	emailTemplates struct {
		text *texttmpl.Template
		html *htmltmpl.Template
	}

	EmailMessage struct {
		To      []mail.Address
		Cc      []mail.Address
		Bcc     []mail.Address
		Subject string
		BodyStr string // plain text, used as is

		TemplateName string // file name without extension
		TemplateData interface{}
		TextContent  string
		HTMLContent  string
	}

	ContextData struct {
		AppName         string
		FrontendBaseURL string
		Data            interface{}
	}

	// SendResult counts the messages of a batch; dropped messages count as failed.
	SendResult struct {
		Sent   int `json:"sent"`
		Failed int `json:"failed"`
	}

	EmailService interface {
		// SendMessages sends messages concurrently
		SendMessages(messages ...*EmailMessage)
		// SendMessagesAndWait sends messages concurrently and returns once every send is done.
		SendMessagesAndWait(messages ...*EmailMessage) SendResult
	}
)

func lookupTemplates(name string) emailTemplates {
	templatesMu.RLock()
	defer templatesMu.RUnlock()
	return templates[name]
}

type executor interface {
	ExecuteTemplate(w io.Writer, name string, data interface{}) error
}

func execute(tmpl executor, data ContextData) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base", data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Render fills TextContent and HTMLContent from the message's templates.
func (m *EmailMessage) Render(appName, frontendBaseURL string) error {
	data := ContextData{
		AppName:         appName,
		FrontendBaseURL: frontendBaseURL,
		Data:            m.TemplateData,
	}
	if m.BodyStr != "" {
		m.TextContent = m.BodyStr
	}
	if m.TemplateName == "" {
		return nil
	}

	var err error
	tmpls := lookupTemplates(m.TemplateName)
	if tmpls.text != nil && m.BodyStr == "" {
		if m.TextContent, err = execute(tmpls.text, data); err != nil {
			return errors.Wrap(err, "rendering text")
		}
	}
	if tmpls.html != nil {
		if m.HTMLContent, err = execute(tmpls.html, data); err != nil {
			return errors.Wrap(err, "rendering html")
		}
	}
	return nil
}

func (m *EmailMessage) HasRecipients() bool { return len(m.To) > 0 }
func (m *EmailMessage) HasContent() bool    { return (m.TextContent != "") || (m.HTMLContent != "") }

// ParseEmailTemplates parses the embedded email templates. Every template is
// rendered inside the "_base" layout of the same extension.
func ParseEmailTemplates(logger Logger) {
	parsed := make(map[string]emailTemplates)

	fps, err := fs.Glob(appfs.FS, path.Join(emailTemplatesDir, "*"))
	if err != nil {
		logger.Error(fmt.Sprintf("core.ParseEmailTemplates: %v", err), err)
	}

	for _, fp := range fps {
		fname := path.Base(fp)
		if strings.HasPrefix(fname, "_") {
			continue
		}
		ext := path.Ext(fname)
		name := strings.TrimSuffix(fname, ext)
		base := path.Join(emailTemplatesDir, "_base"+ext)
		tmpls := parsed[name]

		switch ext {
		case ".txt":
			tmpls.text, err = texttmpl.ParseFS(appfs.FS, base, fp)
			if err == nil {
				tmpls.text.Option("missingkey=error")
			}
		case ".gohtml":
			tmpls.html, err = htmltmpl.ParseFS(appfs.FS, base, fp)
			if err == nil {
				tmpls.html.Option("missingkey=error")
			}
		default:
			continue
		}
		if err != nil {
			logger.Error(fmt.Sprintf("core.ParseEmailTemplates(%s): %v", fp, err), err)
			continue
		}
		parsed[name] = tmpls
	}

	templatesMu.Lock()
	templates = parsed
	templatesMu.Unlock()
}
