package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/user/accountd/client"
)

func defaultTokenFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".accountd-token.json"
	}
	return filepath.Join(dir, "accountd", "token.json")
}

func clientCommand() *cli.Command {
	return &cli.Command{
		Name:  "client",
		Usage: "talk to a running accountd server",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "base-url", Value: "http://localhost:3000", EnvVars: []string{"ACCOUNTD_URL"}, Usage: "server address"},
			&cli.StringFlag{Name: "token-file", Value: defaultTokenFile(), EnvVars: []string{"ACCOUNTD_TOKEN_FILE"}, Usage: "where remembered tokens are kept"},
			&cli.StringFlag{Name: "token", EnvVars: []string{"ACCOUNTD_TOKEN"}, Usage: "access token to use instead of the token file"},
		},
		Subcommands: []*cli.Command{
			{
				Name:  "register",
				Usage: "create an account",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "first-name", Required: true},
					&cli.StringFlag{Name: "last-name", Required: true},
					&cli.StringFlag{Name: "email", Required: true},
					&cli.StringFlag{Name: "password", Required: true, EnvVars: []string{"ACCOUNTD_PASSWORD"}},
					&cli.StringFlag{Name: "confirm-password", Usage: "defaults to --password"},
					&cli.StringFlag{Name: "birth-date", Required: true, Usage: "YYYY-MM-DD"},
					&cli.StringFlag{Name: "avatar-url"},
				},
				Action: runRegister,
			},
			{
				Name:  "login",
				Usage: "sign in",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "email", Required: true},
					&cli.StringFlag{Name: "password", Required: true, EnvVars: []string{"ACCOUNTD_PASSWORD"}},
					&cli.BoolFlag{Name: "remember", Usage: "keep the token in --token-file"},
				},
				Action: runLogin,
			},
			{
				Name:   "logout",
				Usage:  "forget the stored token",
				Action: runLogout,
			},
			{
				Name:   "me",
				Usage:  "show the signed-in user",
				Action: runMe,
			},
			{
				Name:  "update",
				Usage: "edit the signed-in user's profile",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "first-name"},
					&cli.StringFlag{Name: "last-name"},
					&cli.StringFlag{Name: "birth-date", Usage: "YYYY-MM-DD"},
				},
				Action: runUpdate,
			},
			{
				Name:  "history",
				Usage: "list recent logins",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Usage: "number of entries; the server default when unset"},
				},
				Action: runHistory,
			},
			{
				Name:  "avatar",
				Usage: "upload a new avatar image",
				Flags: []cli.Flag{
					&cli.PathFlag{Name: "file", Required: true, Usage: "JPEG, PNG or WebP image"},
				},
				Action: runAvatar,
			},
		},
	}
}

func clientLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	log.SetLevel(logrus.WarnLevel)
	return log
}

func newAPIClient(c *cli.Context) (*client.Client, error) {
	return client.New(c.String("base-url"), client.WithUserAgent("accountd-cli/"+c.App.Version))
}

// openSession restores the stored token, or the --token value when given.
func openSession(c *cli.Context) (*client.Session, *client.Client, error) {
	api, err := newAPIClient(c)
	if err != nil {
		return nil, nil, err
	}
	session := client.NewSession(api, client.NewFileTokenStore(c.String("token-file")), clientLogger())

	if token := c.String("token"); token != "" {
		err = session.UseToken(c.Context, token)
	} else {
		err = session.Init(c.Context)
	}
	if err != nil {
		return nil, nil, err
	}
	return session, api, nil
}

// requireSession is openSession for commands that need a signed-in user.
func requireSession(c *cli.Context) (*client.Session, *client.Client, error) {
	session, api, err := openSession(c)
	if err != nil {
		return nil, nil, err
	}
	if session.State().Status != client.StatusAuthenticated {
		return nil, nil, cli.Exit(fmt.Sprintf("not logged in to %s: run `accountd client login` or set ACCOUNTD_TOKEN", api.BaseURL()), 1)
	}
	return session, api, nil
}

func printJSON(c *cli.Context, v interface{}) error {
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runRegister(c *cli.Context) error {
	api, err := newAPIClient(c)
	if err != nil {
		return err
	}

	confirm := c.String("confirm-password")
	if !c.IsSet("confirm-password") {
		confirm = c.String("password")
	}
	req := client.RegisterRequest{
		FirstName:       c.String("first-name"),
		LastName:        c.String("last-name"),
		Email:           c.String("email"),
		Password:        c.String("password"),
		ConfirmPassword: confirm,
		BirthDate:       c.String("birth-date"),
	}
	if c.IsSet("avatar-url") {
		u := c.String("avatar-url")
		req.AvatarURL = &u
	}

	user, err := api.Register(c.Context, req)
	if err != nil {
		return err
	}
	return printJSON(c, user)
}

func runLogin(c *cli.Context) error {
	api, err := newAPIClient(c)
	if err != nil {
		return err
	}
	store := client.NewFileTokenStore(c.String("token-file"))
	session := client.NewSession(api, store, clientLogger())

	remember := c.Bool("remember")
	user, err := session.Login(c.Context, client.LoginRequest{
		Email:      c.String("email"),
		Password:   c.String("password"),
		RememberMe: remember,
	})
	if err != nil {
		return err
	}

	st := session.State()
	out := map[string]interface{}{"user": user, "expiresAt": st.ExpiresAt}
	if st.Persisted {
		out["tokenFile"] = store.Path()
	} else {
		// Not persisted, so hand it to the caller.
		out["accessToken"] = st.Token
	}
	return printJSON(c, out)
}

func runLogout(c *cli.Context) error {
	api, err := newAPIClient(c)
	if err != nil {
		return err
	}
	return client.NewSession(api, client.NewFileTokenStore(c.String("token-file")), clientLogger()).Logout()
}

func runMe(c *cli.Context) error {
	session, api, err := requireSession(c)
	if err != nil {
		return err
	}
	user := session.State().User
	if user.AvatarURL != nil {
		resolved := api.ResolveAssetURL(*user.AvatarURL)
		user.AvatarURL = &resolved
	}
	return printJSON(c, user)
}

func runUpdate(c *cli.Context) error {
	session, _, err := requireSession(c)
	if err != nil {
		return err
	}

	var update client.ProfileUpdate
	for flag, dst := range map[string]**string{
		"first-name": &update.FirstName,
		"last-name":  &update.LastName,
		"birth-date": &update.BirthDate,
	} {
		if c.IsSet(flag) {
			v := c.String(flag)
			*dst = &v
		}
	}

	user, err := session.UpdateProfile(c.Context, update)
	if err != nil {
		return err
	}
	return printJSON(c, user)
}

func runHistory(c *cli.Context) error {
	session, _, err := requireSession(c)
	if err != nil {
		return err
	}
	items, err := session.AccessHistory(c.Context, c.Int("limit"))
	if err != nil {
		return err
	}
	return printJSON(c, map[string]interface{}{"items": items})
}

func runAvatar(c *cli.Context) error {
	session, api, err := requireSession(c)
	if err != nil {
		return err
	}

	path := c.Path("file")
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open avatar: %w", err)
	}
	defer f.Close()

	user, err := session.UploadAvatar(c.Context, filepath.Base(path), f)
	if err != nil {
		return err
	}
	if user.AvatarURL != nil {
		fmt.Fprintln(c.App.ErrWriter, "avatar:", api.ResolveAssetURL(*user.AvatarURL))
	}
	return printJSON(c, user)
}
