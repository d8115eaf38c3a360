package main

import (
	"context"

	"github.com/trezcool/neighborguard/core"
	"github.com/trezcool/neighborguard/core/user"
)

func (cli *commandLine) resetPassword(uname, pwd string) error {
	ctx := context.Background()
	usr, err := cli.users.GetUser(ctx, user.GetFilter{UsernameOrEmail: core.CleanString(uname, true /* lower */)})
	if err != nil {
		return err
	}
	if err := usr.SetPassword(pwd); err != nil {
		return err
	}
	usr.UpdatedAt = cli.clock.Now()
	if _, err := cli.users.UpdateUser(ctx, usr); err != nil {
		return err
	}
	return nil
}
