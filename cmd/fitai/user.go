package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

var (
	userName     string
	userEmail    string
	userPassword string
)

// createUserCmd creates a user with a bcrypt-hashed password. Values not
// given as flags are prompted for.
var createUserCmd = &cobra.Command{
	Use:   "create-user",
	Short: "Create an API user and print its auth token",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.DBURL == "" {
			return errNoDB
		}
		in := bufio.NewReader(cmd.InOrStdin())
		out := cmd.OutOrStdout()
		username := prompt(in, out, "Username", userName)
		email := prompt(in, out, "Email", userEmail)
		password := prompt(in, out, "Password", userPassword)
		if username == "" || password == "" {
			return fmt.Errorf("username and password are required")
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}

		ctx := cmd.Context()
		conn, err := pgx.Connect(ctx, cfg.DBURL)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer conn.Close(context.Background())

		userID := uuid.NewString()
		authToken := uuid.NewString()
		_, err = conn.Exec(ctx,
			`INSERT INTO users (id, username, email, password, auth_token)
			 VALUES (@id, @username, @email, @password, @auth_token)`,
			pgx.NamedArgs{"id": userID, "username": username, "email": email, "password": string(hash), "auth_token": authToken},
		)
		if err != nil {
			return fmt.Errorf("create user: %w", err)
		}

		fmt.Fprintf(out, "\nUser created successfully!\n")
		fmt.Fprintf(out, "  ID:         %s\n", userID)
		fmt.Fprintf(out, "  Username:   %s\n", username)
		fmt.Fprintf(out, "  Auth Token: %s\n", authToken)
		return nil
	},
}

// prompt returns given when set, otherwise reads one line from in.
func prompt(in *bufio.Reader, out io.Writer, label, given string) string {
	if given != "" {
		return given
	}
	fmt.Fprintf(out, "%s: ", label)
	line, _ := in.ReadString('\n')
	return strings.TrimSpace(line)
}

func init() {
	createUserCmd.Flags().StringVar(&userName, "username", "", "Username")
	createUserCmd.Flags().StringVar(&userEmail, "email", "", "Email")
	createUserCmd.Flags().StringVar(&userPassword, "password", "", "Password (prompted when omitted)")
	rootCmd.AddCommand(createUserCmd)
}
