package main

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sakif/halal-finder/internal/model"
)

var (
	sortOptions  = []string{string(model.SortByName), string(model.SortByRating)}
	groupOptions = []string{string(model.GroupByNone), string(model.GroupByLocation), string(model.GroupByCuisine)}
)

func certOptions() []string {
	opts := []string{model.CertificationAll}
	for _, c := range model.Certifications {
		opts = append(opts, string(c))
	}
	return opts
}

func oneOf(flag, value string, allowed []string) error {
	if slices.Contains(allowed, value) {
		return nil
	}
	return fmt.Errorf("--%s must be one of %s, got %q", flag, strings.Join(allowed, ", "), value)
}

func listCommand(a *app) *cobra.Command {
	var search, sortBy, cert, group string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List restaurants, optionally filtered, sorted and grouped",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := oneOf("sort", sortBy, sortOptions); err != nil {
				return err
			}
			if err := oneOf("cert", cert, certOptions()); err != nil {
				return err
			}
			if err := oneOf("group", group, groupOptions); err != nil {
				return err
			}

			dir, err := a.openDirectory(cmd)
			if err != nil {
				return err
			}
			defer dir.Close()

			if dir.SessionState().MutationAllowed() {
				if err := dir.LoadFavorites(cmd.Context()); err != nil {
					a.logger.Warn("loading favorites failed", slog.String("error", err.Error()))
				}
			}

			dir.SetSearchTerm(search)
			dir.SetSortOption(model.SortOption(sortBy))
			dir.SetCertificationFilter(cert)
			dir.SetGroupingKey(model.GroupingKey(group))

			printView(cmd.OutOrStdout(), dir.ViewModel(), dir.IsFavorite)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&search, "search", "s", "", "match name, description or address")
	f.StringVar(&sortBy, "sort", string(model.SortByName), "sort by: "+strings.Join(sortOptions, ", "))
	f.StringVar(&cert, "cert", model.CertificationAll, "certification: "+strings.Join(certOptions(), ", "))
	f.StringVar(&group, "group", string(model.GroupByNone), "group by: "+strings.Join(groupOptions, ", "))
	return cmd
}

func showCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a restaurant and its reviews",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := a.openDirectory(cmd)
			if err != nil {
				return err
			}
			defer dir.Close()

			r, err := dir.Restaurant(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			reviews, err := dir.Reviews(cmd.Context(), r.ID)
			if err != nil {
				return err
			}
			printRestaurant(cmd.OutOrStdout(), *r, reviews)
			return nil
		},
	}
}

func addCommand(a *app) *cobra.Command {
	var draft model.RestaurantDraft
	var cert string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a restaurant (requires login)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			draft.Certification = model.Certification(cert)

			dir, err := a.openDirectory(cmd)
			if err != nil {
				return err
			}
			defer dir.Close()

			r, err := dir.SubmitNewRestaurant(cmd.Context(), draft)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added %s (%s)\n", r.Name, r.ID)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&draft.Name, "name", "", "restaurant name")
	f.StringVar(&draft.Description, "description", "", "short description")
	f.StringVar(&draft.Address, "address", "", "street address")
	f.Float64Var(&draft.Rating, "rating", 0, "rating from 0 to 5")
	f.StringVar(&cert, "cert", "", "certification: "+strings.Join(certOptions()[1:], ", "))
	f.StringVar(&draft.ImageRef, "image", "", "image URL")
	f.StringVar(&draft.ExternalMapLink, "map", "", "map link URL")
	f.StringVar(&draft.Hours, "hours", "", "opening hours")
	f.StringVar(&draft.Phone, "phone", "", "phone number")
	f.StringVar(&draft.Cuisine, "cuisine", "", "cuisine, e.g. Afghani")
	f.StringVar(&draft.Location, "location", "", "city or area")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func reviewCommand(a *app) *cobra.Command {
	var draft model.ReviewDraft

	cmd := &cobra.Command{
		Use:   "review <id>",
		Short: "Review a restaurant (requires login)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := a.openDirectory(cmd)
			if err != nil {
				return err
			}
			defer dir.Close()

			r, err := dir.SubmitReview(cmd.Context(), args[0], draft)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "reviewed %s: %s\n", args[0], stars(float64(r.Rating)))
			return nil
		},
	}

	f := cmd.Flags()
	f.IntVar(&draft.Rating, "rating", 0, "rating from 1 to 5")
	f.StringVar(&draft.Comment, "comment", "", "what you thought")
	_ = cmd.MarkFlagRequired("rating")
	_ = cmd.MarkFlagRequired("comment")
	return cmd
}

func favoriteCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "favorite <id>",
		Short: "Save or unsave a restaurant (requires login)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := a.openDirectory(cmd)
			if err != nil {
				return err
			}
			defer dir.Close()

			if err := dir.LoadFavorites(cmd.Context()); err != nil {
				return err
			}
			on, err := dir.ToggleFavorite(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			verb := "removed from"
			if on {
				verb = "saved to"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s favorites\n", args[0], verb)
			return nil
		},
	}
}

func meCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "me",
		Short: "Show the signed-in account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			user, err := a.client.GetCurrentSession(cmd.Context())
			if err != nil {
				return err
			}
			if user == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "not signed in")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", displayName(user), user.ID)
			return nil
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "reviews",
		Short: "List your reviews",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dir, err := a.openDirectory(cmd)
			if err != nil {
				return err
			}
			defer dir.Close()

			reviews, err := dir.MyReviews(cmd.Context())
			if err != nil {
				return err
			}
			printMyReviews(cmd.OutOrStdout(), reviews, dir.ViewModel())
			return nil
		},
	})
	return cmd
}

func signupCommand(a *app) *cobra.Command {
	var creds model.Credentials

	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account and sign in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := readPassword(cmd, &creds); err != nil {
				return err
			}
			user, err := a.client.SignUp(cmd.Context(), creds)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "signed up as %s\n", displayName(user))
			return nil
		},
	}
	credentialFlags(cmd, &creds)
	return cmd
}

func loginCommand(a *app) *cobra.Command {
	var creds model.Credentials

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with email and password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := readPassword(cmd, &creds); err != nil {
				return err
			}
			user, err := a.client.SignIn(cmd.Context(), creds)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "signed in as %s\n", displayName(user))
			return nil
		},
	}
	credentialFlags(cmd, &creds)
	return cmd
}

func logoutCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.client.Token() == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "not signed in")
				return nil
			}
			if err := a.client.SignOut(cmd.Context()); err != nil {
				a.logger.Warn("server logout failed, local session cleared anyway", slog.String("error", err.Error()))
			}
			fmt.Fprintln(cmd.OutOrStdout(), "signed out")
			return nil
		},
	}
}

func credentialFlags(cmd *cobra.Command, creds *model.Credentials) {
	cmd.Flags().StringVar(&creds.Email, "email", "", "account email")
	cmd.Flags().StringVar(&creds.Password, "password", "", "password (read from stdin when omitted)")
	_ = cmd.MarkFlagRequired("email")
}

// readPassword fills in a missing password from the first line of stdin.
func readPassword(cmd *cobra.Command, creds *model.Credentials) error {
	if creds.Password != "" {
		return nil
	}
	fmt.Fprint(cmd.ErrOrStderr(), "password: ")
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	creds.Password = strings.TrimRight(line, "\r\n")
	if creds.Password == "" {
		if err != nil {
			return fmt.Errorf("reading password: %w", err)
		}
		return errors.New("password is required")
	}
	return nil
}
