package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/shhac/devcopilot/internal/webui"
)

type formCheckOptions struct {
	driverURL string
	formURL   string
	headless  bool
	firstName string
	email     string
	timeout   time.Duration
}

func newFormCheckCmd(g *globalOptions) *cobra.Command {
	opts := &formCheckOptions{}

	cmd := &cobra.Command{
		Use:   "formcheck",
		Short: "Fill the practice form through a WebDriver endpoint",
		Long: `formcheck starts a Chrome session on a running WebDriver (chromedriver or
selenium), fills the first name, email and gender fields of the practice form
and verifies each value.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := setupConsoleLogging(g.logLevel); err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()
			return runFormCheck(ctx, cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.driverURL, "webdriver-url", "http://localhost:9515", "WebDriver endpoint")
	cmd.Flags().StringVar(&opts.formURL, "url", webui.PracticeFormURL, "Practice form URL")
	cmd.Flags().BoolVar(&opts.headless, "headless", true, "Run Chrome headless")
	cmd.Flags().StringVar(&opts.firstName, "first-name", "John", "First name to enter")
	cmd.Flags().StringVar(&opts.email, "email", "john.doe@example.com", "Email to enter")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 3*time.Minute, "Overall time limit")
	return cmd
}

func runFormCheck(ctx context.Context, out io.Writer, opts *formCheckOptions) error {
	s, err := webui.NewSession(ctx, opts.driverURL, webui.SessionOptions{Headless: opts.headless})
	if err != nil {
		return err
	}
	defer s.Quit(context.Background())

	page := webui.NewPracticeFormPage(s, webui.NewFinder(s))
	page.URL = opts.formURL
	if err := page.Navigate(ctx); err != nil {
		return err
	}
	if !page.IsPageLoaded(ctx) {
		return fmt.Errorf("practice form did not load at %s", opts.formURL)
	}
	if err := page.WaitForFields(ctx); err != nil {
		return err
	}

	check := func(field, want string, enter func(context.Context, string) error, read func(context.Context) (string, error)) error {
		if err := enter(ctx, want); err != nil {
			return fmt.Errorf("%s: %w", field, err)
		}
		got, err := read(ctx)
		if err != nil {
			return fmt.Errorf("%s: %w", field, err)
		}
		if got != want {
			return fmt.Errorf("%s = %q, want %q", field, got, want)
		}
		fmt.Fprintf(out, "✓ %s: %s\n", field, got)
		return nil
	}
	if err := check("first name", opts.firstName, page.EnterFirstName, page.FirstNameValue); err != nil {
		return err
	}
	if err := check("email", opts.email, page.EnterEmail, page.EmailValue); err != nil {
		return err
	}

	if err := page.SelectMale(ctx); err != nil {
		return err
	}
	selected, err := page.IsMaleSelected(ctx)
	if err != nil {
		return err
	}
	if !selected {
		return errors.New("male gender radio is not selected")
	}
	fmt.Fprintln(out, "✓ gender: male")
	return nil
}
