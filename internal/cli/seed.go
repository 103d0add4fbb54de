package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ctf-quiz-service/internal/app"
	"ctf-quiz-service/internal/domain"
)

// defaultCategories are created by seed-categories.
var defaultCategories = []string{"Python", "OWL", "Odoo Technical", "Odoo Functional", "SQL", "General"}

// NewSeedCategoriesCmd inserts the default categories, skipping existing ones.
func NewSeedCategoriesCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "seed-categories",
		Short: "Create the default question categories",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			defer log.Sync()

			b, err := openBackend(cmd.Context(), cfg, log, true)
			if err != nil {
				return err
			}
			defer b.Close()

			for _, name := range defaultCategories {
				c, err := b.store.CreateCategory(cmd.Context(), domain.Category{Name: name})
				switch {
				case errors.Is(err, domain.ErrDuplicateCategory):
					log.Info("category exists", "name", name)
				case err != nil:
					return err
				default:
					log.Info("category created", "name", c.Name, "id", c.ID)
				}
			}
			return nil
		},
	}
}

// NewImportCmd runs the CSV question import offline.
func NewImportCmd(configPath *string) *cobra.Command {
	var file, variant string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import questions from a CSV file",
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := domain.ParseImportVariant(variant)
			if err != nil {
				return err
			}
			cfg, log, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			defer log.Sync()

			f, err := os.Open(file)
			if err != nil {
				return err
			}
			defer f.Close()

			b, err := openBackend(cmd.Context(), cfg, log, true)
			if err != nil {
				return err
			}
			defer b.Close()
			svc, err := buildServices(cfg, b)
			if err != nil {
				return err
			}

			res, err := svc.content.Import(cmd.Context(), f, v)
			if err != nil {
				return err
			}
			for _, msg := range res.Errors {
				log.Warn(msg)
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Message())
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "CSV file to import")
	cmd.Flags().StringVar(&variant, "variant", string(domain.VariantText), "correct option format: text or letter")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// NewClearDataCmd deletes responses, sessions, options and questions.
func NewClearDataCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "clear-data",
		Short: "Delete all questions and play history",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			defer log.Sync()

			b, err := openBackend(cmd.Context(), cfg, log, true)
			if err != nil {
				return err
			}
			defer b.Close()

			if err := b.store.DeleteAllQuestions(cmd.Context()); err != nil {
				return err
			}
			log.Info("quiz data cleared")
			return nil
		},
	}
}

// NewCreateAdminCmd bootstraps an administrator; registration only ever creates participants.
func NewCreateAdminCmd(configPath *string) *cobra.Command {
	var in app.UserInput
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an administrator account",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			defer log.Sync()

			b, err := openBackend(cmd.Context(), cfg, log, true)
			if err != nil {
				return err
			}
			defer b.Close()
			svc, err := buildServices(cfg, b)
			if err != nil {
				return err
			}

			in.Role = string(domain.RoleAdmin)
			user, err := svc.users.Create(cmd.Context(), in)
			if err != nil {
				return err
			}
			log.Info("admin created", "id", user.ID, "username", user.Username)
			return nil
		},
	}
	cmd.Flags().StringVar(&in.Username, "username", "", "admin username")
	cmd.Flags().StringVar(&in.Email, "email", "", "admin email")
	cmd.Flags().StringVar(&in.Password, "password", "", "admin password")
	for _, name := range []string{"username", "email", "password"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}
