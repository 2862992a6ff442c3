package main

import (
	"context"
	"fmt"

	"github.com/trezcool/examhall/core/grader"
)

func (cli *commandLine) addGrader(name, uname, email, pwd string, isAdmin bool) error {
	roles := []string{grader.RoleGrader}
	if isAdmin {
		roles = grader.AllRoles
	}
	if name == "" {
		name = uname
	}

	g, err := cli.graderSvc.Create(context.Background(), grader.NewGrader{
		Name:            name,
		Username:        uname,
		Email:           email,
		Password:        pwd,
		PasswordConfirm: pwd,
		Roles:           roles,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "grader %q created (%s)\n", g.Username, g.ID)
	return nil
}
