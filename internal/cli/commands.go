package cli

import (
	"bufio"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/spf13/cobra"

	"github.com/anatolykoptev/go_hh/internal/store"
)

func newAuthCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "auth [code-or-redirect-url]",
		Short: "Authorize go_hh against your hh.ru account",
		Long: "Prints the authorization URL to open in a browser. After approving, " +
			"the provider redirects to a hhandroid:// URL carrying a 'code' parameter; " +
			"paste that URL (or just the code) back here.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			var input string
			if len(args) == 1 {
				input = args[0]
			} else {
				authorizeURL, err := app.Client.AuthorizeURL(app.RedirectURI, "", "")
				if err != nil {
					return err
				}
				fmt.Fprintln(out, "Open this URL in a browser and sign in:")
				fmt.Fprintln(out, "  "+authorizeURL)
				fmt.Fprint(out, "Paste the redirect URL or the code: ")
				scanner := bufio.NewScanner(cmd.InOrStdin())
				if !scanner.Scan() {
					return fmt.Errorf("no input")
				}
				input = strings.TrimSpace(scanner.Text())
			}

			code, err := extractCode(input)
			if err != nil {
				return err
			}
			if err := app.Client.Authenticate(cmd.Context(), code); err != nil {
				return fmt.Errorf("authentication failed: %w", err)
			}
			fmt.Fprintln(out, "Authorized.")
			return nil
		},
	}
}

// extractCode accepts either a bare authorization code or the full
// redirect URL (any scheme) carrying a 'code' query parameter.
func extractCode(input string) (string, error) {
	if input == "" {
		return "", fmt.Errorf("empty authorization code")
	}
	if !strings.Contains(input, "://") {
		return input, nil
	}
	u, err := url.Parse(input)
	if err != nil {
		return "", fmt.Errorf("parse redirect url: %w", err)
	}
	code := u.Query().Get("code")
	if code == "" {
		return "", fmt.Errorf("redirect url carries no authorization code")
	}
	return code, nil
}

func newResumesCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "resumes",
		Short: "List your résumés",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireAuth(app); err != nil {
				return err
			}
			data, err := app.Client.API(cmd.Context(), http.MethodGet, "/resumes/mine", nil)
			if err != nil {
				return err
			}
			items, _ := data["items"].([]any)
			if len(items) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No résumés found.")
				return nil
			}
			selected, _ := app.Store.Get(store.KeySelectedResumeID)
			for _, raw := range items {
				item, ok := raw.(map[string]any)
				if !ok {
					continue
				}
				id, _ := item["id"].(string)
				title, _ := item["title"].(string)
				marker := " "
				if id != "" && id == selected {
					marker = "*"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s  %s\n", marker, id, title)
			}
			return nil
		},
	}
}

// settingAliases maps user-facing names to settings keys.
var settingAliases = map[string]string{
	"resume":        store.KeySelectedResumeID,
	"query":         store.KeySearchQuery,
	"letter":        store.KeyCoverLetter,
	"always-attach": store.KeyAlwaysAttach,
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change automation settings",
	}

	get := &cobra.Command{
		Use:       "get <name>",
		Short:     "Print one setting (resume, query, letter, always-attach)",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"resume", "query", "letter", "always-attach"},
		RunE: func(cmd *cobra.Command, args []string) error {
			key, ok := settingAliases[args[0]]
			if !ok {
				return fmt.Errorf("unknown setting %q", args[0])
			}
			value, err := app.Store.Get(key)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), value)
			return nil
		},
	}

	set := &cobra.Command{
		Use:   "set <name> <value>",
		Short: "Change one setting",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, ok := settingAliases[args[0]]
			if !ok {
				return fmt.Errorf("unknown setting %q", args[0])
			}
			value := args[1]
			if key == store.KeyAlwaysAttach {
				if _, err := strconv.ParseBool(value); err != nil {
					return fmt.Errorf("always-attach wants true or false, got %q", value)
				}
			}
			return app.Store.Set(key, value)
		},
	}

	cmd.AddCommand(get, set)
	return cmd
}

func newHistoryCmd(app *App) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List submitted applications",
		RunE: func(cmd *cobra.Command, args []string) error {
			apps, err := app.Store.ListApplications(limit)
			if err != nil {
				return err
			}
			if len(apps) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No applications recorded yet.")
				return nil
			}
			for _, a := range apps {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  %s\n", a.AppliedAt, a.Name, a.URL)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "max entries to show")
	return cmd
}

func newVacancyCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "vacancy <id>",
		Short: "Show a vacancy, with its description rendered as markdown",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireAuth(app); err != nil {
				return err
			}
			data, err := app.Client.API(cmd.Context(), http.MethodGet, "/vacancies/"+args[0], nil)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			name, _ := data["name"].(string)
			alternateURL, _ := data["alternate_url"].(string)
			fmt.Fprintln(out, name)
			fmt.Fprintln(out, alternateURL)
			if employer, ok := data["employer"].(map[string]any); ok {
				if employerName, ok := employer["name"].(string); ok {
					fmt.Fprintln(out, "Employer: "+employerName)
				}
			}
			if description, ok := data["description"].(string); ok && description != "" {
				markdown, err := htmltomarkdown.ConvertString(description)
				if err != nil {
					markdown = description
				}
				fmt.Fprintln(out)
				fmt.Fprintln(out, markdown)
			}
			return nil
		},
	}
}
