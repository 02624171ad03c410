package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"listening/api"
)

var (
	loginEmail     string
	signupEmail    string
	signupNickname string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and store the access and refresh tokens",
	RunE: func(cmd *cobra.Command, _ []string) error {
		email, err := valueOrPrompt(loginEmail, "Email: ")
		if err != nil {
			return err
		}
		password, err := promptPassword("Password: ")
		if err != nil {
			return err
		}
		if _, err := app.client.Login(cmd.Context(), email, password); err != nil {
			return fmt.Errorf("login failed: %s", api.MessageOr(err, err.Error()))
		}
		fmt.Println("Logged in.")
		return nil
	},
}

var signupCmd = &cobra.Command{
	Use:   "signup",
	Short: "Create an account (email check, verification code, password)",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		email, err := valueOrPrompt(signupEmail, "Email: ")
		if err != nil {
			return err
		}
		if _, err := app.client.CheckEmail(ctx, email); err != nil {
			return fmt.Errorf("email not available: %s", api.MessageOr(err, err.Error()))
		}
		if err := verifyEmail(ctx, email); err != nil {
			return err
		}

		nickname, err := valueOrPrompt(signupNickname, "Nickname: ")
		if err != nil {
			return err
		}
		password, err := promptPassword("Password: ")
		if err != nil {
			return err
		}
		confirm, err := promptPassword("Confirm password: ")
		if err != nil {
			return err
		}
		if password != confirm {
			return errors.New("passwords do not match")
		}

		msg, err := app.client.Signup(ctx, nickname, email, password)
		if err != nil {
			return fmt.Errorf("signup failed: %s", api.MessageOr(err, err.Error()))
		}
		fmt.Println(orDefault(msg, "Account created. Run `listening login` to sign in."))
		return nil
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify <email>",
	Short: "Send a verification code to an email address and confirm it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return verifyEmail(cmd.Context(), args[0])
	},
}

func verifyEmail(ctx context.Context, email string) error {
	if _, err := app.client.SendVerificationCode(ctx, email); err != nil {
		return fmt.Errorf("could not send verification code: %s", api.MessageOr(err, err.Error()))
	}
	fmt.Printf("A verification code was sent to %s.\n", email)
	code, err := prompt("Code: ")
	if err != nil {
		return err
	}
	if _, err := app.client.VerifyEmail(ctx, email, code); err != nil {
		return fmt.Errorf("verification failed: %s", api.MessageOr(err, err.Error()))
	}
	fmt.Println("Email verified.")
	return nil
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Revoke the refresh token and clear stored credentials",
	RunE: func(cmd *cobra.Command, _ []string) error {
		msg, err := app.client.Logout(cmd.Context())
		if errors.Is(err, api.ErrNotAuthenticated) {
			fmt.Println("Not logged in.")
			return nil
		}
		if err != nil {
			return fmt.Errorf("logout failed: %s", api.MessageOr(err, err.Error()))
		}
		fmt.Println(orDefault(msg, "Logged out."))
		return nil
	},
}

var nicknameCmd = &cobra.Command{
	Use:   "nickname <name>",
	Short: "Change the account nickname",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		msg, err := app.client.UpdateNickname(cmd.Context(), strings.Join(args, " "))
		if err != nil {
			return fmt.Errorf("nickname update failed: %s", api.MessageOr(err, err.Error()))
		}
		fmt.Println(orDefault(msg, "Nickname updated."))
		return nil
	},
}

func valueOrPrompt(value, label string) (string, error) {
	if value != "" {
		return value, nil
	}
	return prompt(label)
}

func orDefault(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}

func init() {
	loginCmd.Flags().StringVar(&loginEmail, "email", "", "account email")
	signupCmd.Flags().StringVar(&signupEmail, "email", "", "account email")
	signupCmd.Flags().StringVar(&signupNickname, "nickname", "", "display name")

	rootCmd.AddCommand(loginCmd, signupCmd, verifyCmd, logoutCmd, nicknameCmd)
}
