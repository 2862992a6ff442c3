package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"syscall"

	"golang.org/x/term"

	"github.com/trezcool/examhall/core/grader"
	"github.com/trezcool/examhall/core/participant"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db             *sql.DB
	out            io.Writer
	graderSvc      grader.Service
	participantSvc participant.Service
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS...]                        - run a goose command (up, down, status, ...)")
	fmt.Fprintln(cli.out, "  addgrader -username U [-name N] [-email E] [-admin] - create a grader, the password is prompted")
	fmt.Fprintln(cli.out, "  resetpassword -username USERNAME|EMAIL           - reset a grader's password")
	fmt.Fprintln(cli.out, "  importparticipants -file FILE.csv                - import nickname,email,preferred_lang rows")
	fmt.Fprintln(cli.out, "  exportlinks [-format csv|json]                   - print every participant's access link")
	fmt.Fprintln(cli.out, "  sendlinks                                        - email every participant their access link")
}

func (cli *commandLine) newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(cli.out)
	return fs
}

// promptPassword reads a password without echoing it.
func (cli *commandLine) promptPassword() (string, error) {
	fmt.Fprint(cli.out, "Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Fprintln(cli.out)
	if err != nil {
		return "", err
	}
	return string(pwd), nil
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addGraderCmd := cli.newFlagSet("addgrader")
	addGraderUname := addGraderCmd.String("username", "", "The grader's username. The password will be prompted next.")
	addGraderName := addGraderCmd.String("name", "", "The grader's full name.")
	addGraderEmail := addGraderCmd.String("email", "", "The grader's email.")
	addGraderAdmin := addGraderCmd.Bool("admin", false, "Give the grader the admin role.")

	resetPasswordCmd := cli.newFlagSet("resetpassword")
	resetPasswordUname := resetPasswordCmd.String("username", "", "The grader's username or email. The password will be prompted next.")

	importCmd := cli.newFlagSet("importparticipants")
	importFile := importCmd.String("file", "", "CSV file of nickname,email,preferred_lang rows.")

	exportCmd := cli.newFlagSet("exportlinks")
	exportFormat := exportCmd.String("format", "csv", "Output format: csv or json.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "addgrader":
		if err := addGraderCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addGraderUname == "" {
			addGraderCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			addGraderCmd.Usage()
			return errHelp
		}
		return cli.addGrader(*addGraderName, *addGraderUname, *addGraderEmail, pwd, *addGraderAdmin)

	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordUname == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		return cli.resetPassword(*resetPasswordUname, pwd)

	case "importparticipants":
		if err := importCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *importFile == "" {
			importCmd.Usage()
			return errHelp
		}
		return cli.importParticipants(*importFile)

	case "exportlinks":
		if err := exportCmd.Parse(args[2:]); err != nil {
			return err
		}
		return cli.exportLinks(*exportFormat)

	case "sendlinks":
		return cli.sendLinks()

	default:
		cli.printUsage()
		return errHelp
	}
}
