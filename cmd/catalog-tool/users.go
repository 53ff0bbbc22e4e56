package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/drallgood/book-catalog/internal/api/users"
	"github.com/drallgood/book-catalog/internal/app"
	"github.com/drallgood/book-catalog/internal/logger"
	"github.com/drallgood/book-catalog/internal/models"
	"github.com/drallgood/book-catalog/internal/validation"
)

func usersCommand() *cli.Command {
	return &cli.Command{
		Name:  "users",
		Usage: "Manage records of the users API",
		Subcommands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List all users",
				Action: listUsers,
			},
			{
				Name:      "get",
				Usage:     "Show one user",
				ArgsUsage: "ID",
				Action:    getUser,
			},
			{
				Name:  "create",
				Usage: "Create a user",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Required: true},
					&cli.StringFlag{Name: "email", Required: true},
					&cli.StringFlag{Name: "phone"},
				},
				Action: createUser,
			},
			{
				Name:      "delete",
				Usage:     "Delete a user",
				ArgsUsage: "ID",
				Action:    deleteUser,
			},
		},
	}
}

func usersClient(c *cli.Context) (*users.Client, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	return app.NewUsersClient(cfg, logger.Get())
}

func userID(c *cli.Context) (int64, error) {
	if c.NArg() != 1 {
		return 0, cli.Exit("expected exactly one user ID", 2)
	}
	id, err := strconv.ParseInt(c.Args().First(), 10, 64)
	if err != nil {
		return 0, cli.Exit(fmt.Sprintf("invalid user ID %q", c.Args().First()), 2)
	}
	return id, nil
}

func printUser(w io.Writer, u models.User) {
	fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", u.ID, u.Name, u.Email, u.Phone)
}

func listUsers(c *cli.Context) error {
	client, err := usersClient(c)
	if err != nil {
		return err
	}
	list, err := client.List(c.Context)
	if err != nil {
		return err
	}
	for _, u := range list {
		printUser(c.App.Writer, u)
	}
	return nil
}

func getUser(c *cli.Context) error {
	id, err := userID(c)
	if err != nil {
		return err
	}
	client, err := usersClient(c)
	if err != nil {
		return err
	}
	u, err := client.Get(c.Context, id)
	if err != nil {
		return err
	}
	printUser(c.App.Writer, u)
	return nil
}

func createUser(c *cli.Context) error {
	client, err := usersClient(c)
	if err != nil {
		return err
	}
	u, err := client.Create(c.Context, models.User{
		Name:  c.String("name"),
		Email: c.String("email"),
		Phone: c.String("phone"),
	})
	if err != nil {
		if _, ok := validation.Fields(err); ok {
			describeInvalid(c.App.ErrWriter, err)
			return cli.Exit("user rejected", 2)
		}
		return err
	}
	printUser(c.App.Writer, u)
	return nil
}

func deleteUser(c *cli.Context) error {
	id, err := userID(c)
	if err != nil {
		return err
	}
	client, err := usersClient(c)
	if err != nil {
		return err
	}
	if err := client.Delete(c.Context, id); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "deleted user %d\n", id)
	return nil
}
