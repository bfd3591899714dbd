package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AzielCF/az-tgclean/domains/chat"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in to Telegram interactively and store the session",
	RunE:  login,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored session and cached avatars",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := buildApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()
		if err := a.sessions.Logout(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("logged out")
		return nil
	},
}

func init() {
	loginCmd.Flags().String("phone", "", "phone number in international format, defaults to TELEGRAM_PHONE")
	rootCmd.AddCommand(loginCmd, logoutCmd)
}

func login(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	in := bufio.NewReader(os.Stdin)
	phone, _ := cmd.Flags().GetString("phone")
	if phone == "" {
		phone = cfg.Telegram.Phone
	}
	if phone == "" {
		if phone, err = prompt(in, "Phone: "); err != nil {
			return err
		}
	}

	sent, err := a.sessions.SendCode(ctx, phone)
	if err != nil {
		return err
	}
	code, err := prompt(in, "Code: ")
	if err != nil {
		return err
	}

	rec, err := a.sessions.SignIn(ctx, chat.SignInRequest{Phone: phone, PhoneCodeHash: sent.PhoneCodeHash, Code: code})
	if errors.Is(err, chat.ErrPasswordRequired) {
		password, perr := prompt(in, "Two-step verification password: ")
		if perr != nil {
			return perr
		}
		rec, err = a.sessions.CheckPassword(ctx, phone, password)
	}
	if err != nil {
		return err
	}

	fmt.Printf("logged in as %s\n", rec.UserID)
	return nil
}

func prompt(in *bufio.Reader, label string) (string, error) {
	fmt.Print(label)
	line, err := in.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
