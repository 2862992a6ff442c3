package core_test

import (
	"net/mail"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/examhall/core"
	"github.com/trezcool/examhall/tests"
)

func TestEmailMessage_Render(t *testing.T) {
	conf := testutil.NewConfig()
	core.ParseEmailTemplates(testutil.NewLogger(conf))

	link := map[string]string{"Nickname": "alice", "URL": "http://exam.test/user/tok-alice"}
	to := []mail.Address{{Name: "alice", Address: "alice@test.ee"}}

	tests := []struct {
		name        string
		msg         core.EmailMessage
		wantErr     bool
		wantText    []string
		wantHTML    []string
		wantContent bool
	}{
		{name: "empty", msg: core.EmailMessage{To: to}},
		{
			name:        "plain body",
			msg:         core.EmailMessage{To: to, BodyStr: "See you tomorrow."},
			wantText:    []string{"See you tomorrow."},
			wantContent: true,
		},
		{
			name:        "unknown template",
			msg:         core.EmailMessage{To: to, TemplateName: "lol", TemplateData: link},
			wantContent: false,
		},
		{
			name:        "access link",
			msg:         core.EmailMessage{To: to, TemplateName: "access_link", TemplateData: link},
			wantText:    []string{"Hello alice,", link["URL"], "The Olympiad team", conf.FrontendBaseURL},
			wantHTML:    []string{`<a href="http://exam.test/user/tok-alice">`, "<p>Hello alice,</p>"},
			wantContent: true,
		},
		{
			name:    "missing data",
			msg:     core.EmailMessage{To: to, TemplateName: "access_link", TemplateData: map[string]string{}},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.msg
			err := msg.Render(conf.AppName, conf.FrontendBaseURL)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, msg.HasRecipients())
			assert.Equal(t, tt.wantContent, msg.HasContent())
			for _, s := range tt.wantText {
				assert.Contains(t, msg.TextContent, s)
			}
			for _, s := range tt.wantHTML {
				assert.Contains(t, msg.HTMLContent, s)
			}
		})
	}
}
