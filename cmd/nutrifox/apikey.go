package main

import (
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"
	"gorm.io/gorm"

	"github.com/ManuelReschke/NutriFox/app/models"
	"github.com/ManuelReschke/NutriFox/app/repository"
	"github.com/ManuelReschke/NutriFox/internal/pkg/database"
)

func apiKeyCommand() *cli.Command {
	emailFlag := &cli.StringFlag{Name: "email", Aliases: []string{"e"}, Usage: "Account email", Required: true}
	return &cli.Command{
		Name:  "apikey",
		Usage: "Manage subscription reader API keys",
		Subcommands: []*cli.Command{
			{
				Name:  "issue",
				Usage: "Issue a new API key (replaces an existing one)",
				Flags: []cli.Flag{
					emailFlag,
					&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "Create the account with this name if it does not exist"},
				},
				Action: func(c *cli.Context) error {
					repos := openRepositories()
					user, err := findOrCreateUser(repos.User, c.String("email"), c.String("name"))
					if err != nil {
						return err
					}
					settings, err := repos.UserSettings.GetOrCreate(user.ID)
					if err != nil {
						return fmt.Errorf("load settings: %w", err)
					}
					rawKey, err := settings.IssueAPIKey()
					if err != nil {
						return err
					}
					if err := repos.UserSettings.Save(settings); err != nil {
						return fmt.Errorf("save api key: %w", err)
					}
					fmt.Fprintf(c.App.Writer, "API key for %s (%s):\n%s\n", user.Email, user.ID, rawKey)
					return nil
				},
			},
			{
				Name:  "revoke",
				Usage: "Revoke the API key of an account",
				Flags: []cli.Flag{emailFlag},
				Action: func(c *cli.Context) error {
					repos := openRepositories()
					user, err := repos.User.GetByEmail(models.NormalizeEmail(c.String("email")))
					if err != nil {
						return fmt.Errorf("find user: %w", err)
					}
					settings, err := repos.UserSettings.GetOrCreate(user.ID)
					if err != nil {
						return fmt.Errorf("load settings: %w", err)
					}
					settings.RevokeAPIKey()
					if err := repos.UserSettings.Save(settings); err != nil {
						return fmt.Errorf("save settings: %w", err)
					}
					fmt.Fprintf(c.App.Writer, "API key of %s revoked\n", user.Email)
					return nil
				},
			},
		},
	}
}

func openRepositories() *repository.Repositories {
	database.SetupDatabase()
	repository.InitializeFactory(database.GetDB())
	return repository.GetGlobalRepositories()
}

func findOrCreateUser(users repository.UserRepository, email, name string) (*models.User, error) {
	user, err := users.GetByEmail(models.NormalizeEmail(email))
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if name == "" {
		return nil, fmt.Errorf("no account with email %s (pass --name to create one)", email)
	}
	user, err = models.CreateUser(name, email)
	if err != nil {
		return nil, err
	}
	if err := users.Create(user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}
