package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/alumnijourney/apiserver/config"
	"github.com/alumnijourney/apiserver/internal/db"
	"github.com/alumnijourney/apiserver/internal/logger"
	"github.com/alumnijourney/apiserver/internal/services"
	"github.com/alumnijourney/apiserver/internal/store"
	"github.com/alumnijourney/apiserver/internal/tokens"
	"github.com/spf13/cobra"
)

// adminServices opens the database and wires the services the admin commands need.
// The returned func closes the connection.
func adminServices(ctx context.Context) (*services.UserService, *services.PostService, func(), error) {
	cfg := config.LoadConfig()
	log := logger.New(cfg.Log)

	conn, err := db.Open(ctx, cfg.Database)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open database: %w", err)
	}

	opts := []services.Option{services.WithLogger(log)}
	users := services.NewUserService(store.NewUserRepository(conn), store.NewTokenRepository(conn),
		tokens.NewSigner(cfg.Auth.JWTSecret), nil, cfg.Auth.BcryptCost, opts...)
	posts := services.NewPostService(store.NewPostRepository(conn), store.NewCommentRepository(conn), opts...)
	return users, posts, func() { _ = conn.Close() }, nil
}

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage user accounts",
}

var userPromoteCmd = &cobra.Command{
	Use:   "promote <username>",
	Short: "Grant staff rights and the admin role",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		users, _, closeFn, err := adminServices(cmd.Context())
		if err != nil {
			return err
		}
		defer closeFn()

		user, err := users.Promote(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "promoted %s (id %d)\n", user.Username, user.ID)
		return nil
	},
}

var userDeactivateCmd = &cobra.Command{
	Use:   "deactivate <username>",
	Short: "Disable an account and revoke its token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		users, _, closeFn, err := adminServices(cmd.Context())
		if err != nil {
			return err
		}
		defer closeFn()

		user, err := users.Deactivate(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deactivated %s (id %d)\n", user.Username, user.ID)
		return nil
	},
}

var postCmd = &cobra.Command{
	Use:   "post",
	Short: "Moderate career posts",
}

func approvalCmd(use, short string, approved bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil || id < 1 {
				return fmt.Errorf("invalid post id %q", args[0])
			}
			_, posts, closeFn, err := adminServices(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			if err := posts.SetApproval(cmd.Context(), id, approved); err != nil {
				return err
			}
			state := "hidden"
			if approved {
				state = "approved"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "post %d is now %s\n", id, state)
			return nil
		},
	}
}

func init() {
	userCmd.AddCommand(userPromoteCmd, userDeactivateCmd)
	postCmd.AddCommand(
		approvalCmd("approve", "Make a post publicly visible", true),
		approvalCmd("hide", "Hide a post from every listing", false),
	)
	rootCmd.AddCommand(userCmd, postCmd)
}
