package main

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/examhall/core"
	"github.com/trezcool/examhall/core/grader"
	"github.com/trezcool/examhall/core/participant"
	inmemdb "github.com/trezcool/examhall/storage/database/inmem"
	"github.com/trezcool/examhall/tests"
)

const pwd = "Str0ng!Pass"

// failingMail gives up on every message.
type failingMail struct {
	calls int
}

func (m *failingMail) SendMessages(messages ...*core.EmailMessage) {
	_ = m.SendMessagesAndWait(messages...)
}

func (m *failingMail) SendMessagesAndWait(messages ...*core.EmailMessage) core.SendResult {
	m.calls += len(messages)
	return core.SendResult{Failed: len(messages)}
}

func setup(t *testing.T) (*commandLine, *testutil.App, *bytes.Buffer) {
	app := testutil.NewApp(t)
	out := new(bytes.Buffer)
	return &commandLine{
		out:            out,
		graderSvc:      app.GraderSvc,
		participantSvc: app.ParticipantSvc,
	}, app, out
}

func mockPassword(t *testing.T, pwd *string) {
	orig := readPasswordFunc
	readPasswordFunc = func(fd int) ([]byte, error) { return []byte(*pwd), nil }
	t.Cleanup(func() { readPasswordFunc = orig })
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func runCLITest(t *testing.T, cli *commandLine, tt cliTest) error {
	t.Helper()
	err := cli.run(append([]string{"admin"}, tt.args...))
	switch {
	case tt.wantErr != nil:
		assert.Equal(t, tt.wantErr, errors.Cause(err))
	case tt.wantErrStr != "":
		if assert.Error(t, err) {
			assert.Contains(t, err.Error(), tt.wantErrStr)
		}
	default:
		assert.NoError(t, err)
	}
	return err
}

func Test_commandLine_help(t *testing.T) {
	cli, _, out := setup(t)

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "migrate without subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "addgrader without username", args: []string{"addgrader"}, wantErr: errHelp},
		{name: "resetpassword without username", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "importparticipants without file", args: []string{"importparticipants"}, wantErr: errHelp},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out.Reset()
			runCLITest(t, cli, tt)
			assert.NotEmpty(t, out.String())
		})
	}
}

func Test_commandLine_migrate(t *testing.T) {
	cli, _, _ := setup(t)

	orig := gooseRunFunc
	t.Cleanup(func() { gooseRunFunc = orig })

	var ran []string
	gooseRunFunc = func(db *sql.DB, command string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		ran = append(ran, strings.Join(append([]string{command}, args...), " "))
		return nil
	}

	tests := []cliTest{
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: `"lol": no such command`},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "create", args: []string{"migrate", "create", "resolved_comments", "sql"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runCLITest(t, cli, tt)
		})
	}
	assert.Equal(t, []string{"up", "up-to 2", "down-to 1", "status", "create resolved_comments sql"}, ran)
}

func Test_commandLine_addGrader(t *testing.T) {
	cli, app, out := setup(t)
	testutil.CreateGrader(t, app.GraderRepo, "Ann", "ann", "ann@test.ee", pwd, nil, true)

	var password string
	mockPassword(t, &password)

	type extra struct {
		pwd       string
		wantRoles []string
	}
	tests := []cliTest{
		{name: "no password", args: []string{"addgrader", "-username", "bob"}, wantErr: errHelp},
		{name: "bad flag", args: []string{"addgrader", "-lol"}, wantErrStr: "flag provided but not defined: -lol"},
		{
			name: "username taken", args: []string{"addgrader", "-username", "ann"},
			extra: extra{pwd: pwd}, wantErrStr: "a grader with this username already exists",
		},
		{
			name: "grader", args: []string{"addgrader", "-username", "bob", "-email", "bob@test.ee"},
			extra: extra{pwd: pwd, wantRoles: []string{grader.RoleGrader}},
		},
		{
			name: "admin", args: []string{"addgrader", "-username", "boss", "-name", "The Boss", "-admin"},
			extra: extra{pwd: pwd, wantRoles: grader.AllRoles},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex, _ := tt.extra.(extra)
			password = ex.pwd
			out.Reset()

			if err := runCLITest(t, cli, tt); err != nil || ex.wantRoles == nil {
				return
			}
			uname := tt.args[2]
			g, err := app.GraderSvc.GetByUsernameOrEmail(context.Background(), uname)
			require.NoError(t, err)
			assert.Equal(t, ex.wantRoles, g.Roles)
			assert.True(t, g.IsActive)
			assert.NoError(t, g.CheckPassword(pwd))
			assert.Contains(t, out.String(), fmt.Sprintf("grader %q created", uname))
		})
	}

	boss, err := app.GraderSvc.GetByUsernameOrEmail(context.Background(), "boss")
	require.NoError(t, err)
	assert.Equal(t, "The Boss", boss.Name)
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli, app, _ := setup(t)
	ann := testutil.CreateGrader(t, app.GraderRepo, "Ann", "ann", "ann@test.ee", pwd, nil, true)

	var password string
	mockPassword(t, &password)

	tests := []cliTest{
		{name: "username but no password", args: []string{"resetpassword", "-username", "ann"}, wantErr: errHelp},
		{name: "grader not found", args: []string{"resetpassword", "-username", "lol"}, extra: "N3w!Passw0rd", wantErr: grader.ErrNotFound},
		{name: "weak password", args: []string{"resetpassword", "-username", "ann"}, extra: "weak", wantErrStr: "password"},
		{name: "reset with username", args: []string{"resetpassword", "-username", "ann"}, extra: "N3w!Passw0rd"},
		{name: "reset with email", args: []string{"resetpassword", "-username", "ANN@test.ee"}, extra: "An0ther!Pass"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			password, _ = tt.extra.(string)
			if err := runCLITest(t, cli, tt); err != nil {
				return
			}
			g, err := app.GraderSvc.GetByID(context.Background(), ann.ID)
			require.NoError(t, err)
			assert.NoError(t, g.CheckPassword(password))
		})
	}
}

func Test_commandLine_participants(t *testing.T) {
	cli, app, out := setup(t)

	dir := t.TempDir()
	good := filepath.Join(dir, "participants.csv")
	require.NoError(t, os.WriteFile(good, []byte("nickname,email,preferred_lang\nalice,alice@test.ee,french\nbob,,\n"), 0o600))
	bad := filepath.Join(dir, "bad.csv")
	require.NoError(t, os.WriteFile(bad, []byte("carol,not-an-email\n"), 0o600))

	tests := []cliTest{
		{name: "missing file", args: []string{"importparticipants", "-file", filepath.Join(dir, "nope.csv")}, extra: "error"},
		{name: "invalid row", args: []string{"importparticipants", "-file", bad}, extra: "error"},
		{name: "import", args: []string{"importparticipants", "-file", good}, extra: "2 participants imported"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out.Reset()
			err := cli.run(append([]string{"admin"}, tt.args...))
			if tt.extra == "error" {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.extra.(string)+"\n", out.String())
		})
	}

	participants, err := app.ParticipantSvc.QueryAll(context.Background())
	require.NoError(t, err)
	require.Len(t, participants, 2)
	assert.Equal(t, "french", participants[0].PreferredLang)

	t.Run("export csv", func(t *testing.T) {
		out.Reset()
		require.NoError(t, cli.run([]string{"admin", "exportlinks"}))
		lines := strings.Split(strings.TrimSpace(out.String()), "\n")
		require.Len(t, lines, 3)
		assert.Equal(t, "nickname,email,url", lines[0])
		assert.Equal(t, "alice,alice@test.ee,http://exam.test/user/"+participants[0].AccessToken, lines[1])
		assert.Equal(t, "bob,,http://exam.test/user/"+participants[1].AccessToken, lines[2])
	})

	t.Run("export json", func(t *testing.T) {
		out.Reset()
		require.NoError(t, cli.run([]string{"admin", "exportlinks", "-format", "json"}))
		var links []participant.AccessLink
		require.NoError(t, json.Unmarshal(out.Bytes(), &links))
		require.Len(t, links, 2)
		assert.Equal(t, "bob", links[1].Nickname)
	})

	t.Run("export unknown format", func(t *testing.T) {
		err := cli.run([]string{"admin", "exportlinks", "-format", "xml"})
		if assert.Error(t, err) {
			assert.Equal(t, `unknown format "xml"`, err.Error())
		}
	})

	t.Run("send", func(t *testing.T) {
		out.Reset()
		require.NoError(t, cli.run([]string{"admin", "sendlinks"}))
		assert.Equal(t, "1 access links sent, 0 failed\n", out.String())
		sent := app.Mail.SentMessages()
		require.Len(t, sent, 1)
		assert.Equal(t, "alice@test.ee", sent[0].To[0].Address)
	})

	t.Run("send with failures", func(t *testing.T) {
		mail := &failingMail{}
		cli.participantSvc = participant.NewService(
			inmemdb.NewTxRunner(app.DB), app.ParticipantRepo, mail, app.Validate, app.Metrics, app.Conf,
		)
		out.Reset()
		err := cli.run([]string{"admin", "sendlinks"})
		if assert.Error(t, err) {
			assert.Equal(t, "1 access links could not be sent", err.Error())
		}
		assert.Equal(t, 1, mail.calls)
		assert.Equal(t, "0 access links sent, 1 failed\n", out.String())
	})
}
