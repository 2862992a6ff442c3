package main

import (
	"context"

	"github.com/trezcool/examhall/core/grader"
)

func (cli *commandLine) resetPassword(uname, pwd string) error {
	ctx := context.Background()
	g, err := cli.graderSvc.GetByUsernameOrEmail(ctx, uname)
	if err != nil {
		return err
	}
	_, err = cli.graderSvc.SetPassword(ctx, g.ID, grader.SetPassword{Password: pwd, PasswordConfirm: pwd})
	return err
}
