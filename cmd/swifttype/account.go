package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/verte-zerg/swifttype/internal/auth"
	"github.com/verte-zerg/swifttype/internal/client"
	"github.com/verte-zerg/swifttype/internal/config"
)

var (
	accountUsername string
	accountEmail    string
)

func newRegisterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account on the server and log in",
		Args:  cobra.NoArgs,
		RunE:  runRegisterCmd,
	}
	cmd.Flags().StringVar(&accountUsername, "username", "", "account name")
	cmd.Flags().StringVar(&accountEmail, "email", "", "email address")
	return cmd
}

func newLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login [username-or-email]",
		Short: "Log in to the server and save the token",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runLoginCmd,
	}
	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved token",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if err := os.Remove(config.DefaultCredentialsPath()); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("failed to remove credentials: %w", err)
			}
			logErrln("Logged out.")
			return nil
		},
	}
}

func accountClient(cmd *cobra.Command) (*client.Client, error) {
	fileCfg, err := loadFileConfig()
	if err != nil {
		return nil, err
	}
	applyStringConfig(cmd, "server", &serverURL, fileCfg.Client.Server)
	c, ok, err := remoteClient(false)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("no server configured (use --server or [client] server)")
	}
	return c, nil
}

func runRegisterCmd(cmd *cobra.Command, _ []string) error {
	c, err := accountClient(cmd)
	if err != nil {
		return err
	}
	in := bufio.NewReader(cmd.InOrStdin())
	username, err := promptValue(in, "Username: ", accountUsername)
	if err != nil {
		return err
	}
	email, err := promptValue(in, "Email: ", accountEmail)
	if err != nil {
		return err
	}
	password, err := promptPassword(in)
	if err != nil {
		return err
	}
	sess, err := c.Register(context.Background(), auth.RegisterRequest{
		Username: username,
		Email:    email,
		Password: password,
	})
	if err != nil {
		return fmt.Errorf("registration failed: %w", describeAPIError(err))
	}
	return saveSession(sess)
}

func runLoginCmd(cmd *cobra.Command, args []string) error {
	c, err := accountClient(cmd)
	if err != nil {
		return err
	}
	in := bufio.NewReader(cmd.InOrStdin())
	preset := ""
	if len(args) == 1 {
		preset = args[0]
	}
	identifier, err := promptValue(in, "Username or email: ", preset)
	if err != nil {
		return err
	}
	password, err := promptPassword(in)
	if err != nil {
		return err
	}
	req := auth.LoginRequest{Username: identifier, Password: password}
	if strings.Contains(identifier, "@") {
		req = auth.LoginRequest{Email: identifier, Password: password}
	}
	sess, err := c.Login(context.Background(), req)
	if err != nil {
		return fmt.Errorf("login failed: %w", describeAPIError(err))
	}
	return saveSession(sess)
}

func saveSession(sess client.Session) error {
	creds := config.Credentials{Server: serverURL, Username: sess.User.Username, Token: sess.Token}
	if err := config.SaveCredentials(config.DefaultCredentialsPath(), creds); err != nil {
		return err
	}
	logErrf("%s Logged in as %s.\n", sess.Message, sess.User.Username)
	return nil
}

func currentCredentials() (config.Credentials, error) {
	creds, err := config.LoadCredentials(config.DefaultCredentialsPath())
	if err != nil || creds.Server != serverURL {
		return config.Credentials{}, err
	}
	return creds, nil
}

func promptValue(in *bufio.Reader, label, preset string) (string, error) {
	if v := strings.TrimSpace(preset); v != "" {
		return v, nil
	}
	logErrf("%s", label)
	line, err := in.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// promptPassword reads without echo on a terminal and falls back to a plain
// line read when stdin is piped.
func promptPassword(in *bufio.Reader) (string, error) {
	logErrf("Password: ")
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		raw, err := term.ReadPassword(fd)
		logErrln()
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(raw), nil
	}
	line, err := in.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
