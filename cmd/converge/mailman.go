package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cuemby/converge/pkg/mailman"
)

// Mailman commands run single primitives without reconciliation
var mailmanCmd = &cobra.Command{
	Use:   "mailman",
	Short: "Run Mailman list operations directly",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := rootCmd.PersistentPreRunE(cmd, args); err != nil {
			return err
		}
		if !newMailmanCLI().Available() {
			return fmt.Errorf("mailman tools not found in %s", cfg.Mailman.BinDir)
		}
		return nil
	},
}

var mailmanExistsCmd = &cobra.Command{
	Use:   "exists LIST",
	Short: "Report whether a list exists",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ok, err := newMailmanCLI().Exists(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), ok)
		return nil
	},
}

var mailmanCreateCmd = &cobra.Command{
	Use:   "create LIST",
	Short: "Create a list",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := mailman.CreateOptions{}
		opts.Owner, _ = cmd.Flags().GetString("owner")
		opts.Password, _ = cmd.Flags().GetString("password")
		opts.Language, _ = cmd.Flags().GetString("language")
		opts.URLHost, _ = cmd.Flags().GetString("urlhost")
		opts.EmailHost, _ = cmd.Flags().GetString("emailhost")
		if opts.Owner == "" {
			opts.Owner = cfg.Mailman.DefaultOwner
		}
		if opts.Password == "" {
			pw, err := mailman.RandomPassword(cfg.Mailman.PasswordLength)
			if err != nil {
				return err
			}
			opts.Password = pw
			fmt.Fprintf(cmd.OutOrStdout(), "Generated password: %s\n", pw)
		}

		if err := newMailmanCLI().Create(cmd.Context(), args[0], opts); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "List %s has been created\n", args[0])
		return nil
	},
}

var mailmanRemoveCmd = &cobra.Command{
	Use:   "remove LIST",
	Short: "Remove a list",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		keepArchives, _ := cmd.Flags().GetBool("keep-archives")
		if err := newMailmanCLI().Remove(cmd.Context(), args[0], !keepArchives); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "List %s has been removed\n", args[0])
		return nil
	},
}

var mailmanMembersCmd = &cobra.Command{
	Use:   "members LIST",
	Short: "List the subscribers of a list",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fullnames, _ := cmd.Flags().GetBool("fullnames")
		members, err := newMailmanCLI().ListMembers(cmd.Context(), args[0], fullnames)
		if err != nil {
			return err
		}
		printLines(cmd, members)
		return nil
	},
}

var mailmanIsMemberCmd = &cobra.Command{
	Use:   "is-member LIST ADDRESS",
	Short: "Report whether an address is subscribed",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ok, err := newMailmanCLI().IsMember(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), ok)
		return nil
	},
}

var mailmanAddMembersCmd = &cobra.Command{
	Use:   "add-members LIST ADDRESS...",
	Short: "Subscribe addresses",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return newMailmanCLI().AddMembers(cmd.Context(), args[0], splitArgs(args[1:]))
	},
}

var mailmanRemoveMembersCmd = &cobra.Command{
	Use:   "remove-members LIST ADDRESS...",
	Short: "Unsubscribe addresses",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return newMailmanCLI().RemoveMembers(cmd.Context(), args[0], splitArgs(args[1:]))
	},
}

var mailmanOwnersCmd = &cobra.Command{
	Use:   "owners LIST",
	Short: "List the owners of a list",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		owners, err := newMailmanCLI().GetOwners(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		printLines(cmd, owners)
		return nil
	},
}

var mailmanSetOwnersCmd = &cobra.Command{
	Use:   "set-owners LIST ADDRESS...",
	Short: "Replace the owner list",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		owners := mailman.NormalizeAddresses(splitArgs(args[1:]))
		return newMailmanCLI().SetOwners(cmd.Context(), args[0], owners)
	},
}

var mailmanSetPasswordCmd = &cobra.Command{
	Use:   "set-password LIST PASSWORD",
	Short: "Set the list administrator password",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return newMailmanCLI().SetPassword(cmd.Context(), args[0], args[1])
	},
}

var mailmanCheckPasswordCmd = &cobra.Command{
	Use:   "check-password LIST PASSWORD",
	Short: "Report whether PASSWORD is the list administrator password",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ok, err := newMailmanCLI().CheckPassword(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), ok)
		return nil
	},
}

func init() {
	mailmanCreateCmd.Flags().String("owner", "", "List owner (default from config)")
	mailmanCreateCmd.Flags().String("password", "", "List administrator password (generated when empty)")
	mailmanCreateCmd.Flags().String("language", "", "List language")
	mailmanCreateCmd.Flags().String("urlhost", "", "Web host name")
	mailmanCreateCmd.Flags().String("emailhost", "", "Email host name")
	mailmanRemoveCmd.Flags().Bool("keep-archives", false, "Keep the list archives")
	mailmanMembersCmd.Flags().Bool("fullnames", false, "Include display names")

	mailmanCmd.AddCommand(mailmanExistsCmd)
	mailmanCmd.AddCommand(mailmanCreateCmd)
	mailmanCmd.AddCommand(mailmanRemoveCmd)
	mailmanCmd.AddCommand(mailmanMembersCmd)
	mailmanCmd.AddCommand(mailmanIsMemberCmd)
	mailmanCmd.AddCommand(mailmanAddMembersCmd)
	mailmanCmd.AddCommand(mailmanRemoveMembersCmd)
	mailmanCmd.AddCommand(mailmanOwnersCmd)
	mailmanCmd.AddCommand(mailmanSetOwnersCmd)
	mailmanCmd.AddCommand(mailmanSetPasswordCmd)
	mailmanCmd.AddCommand(mailmanCheckPasswordCmd)

	rootCmd.AddCommand(mailmanCmd)
}

// splitArgs accepts addresses as separate arguments or comma separated
func splitArgs(args []string) []string {
	var out []string
	for _, a := range args {
		for _, part := range strings.Split(a, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func printLines(cmd *cobra.Command, lines []string) {
	for _, l := range lines {
		fmt.Fprintln(cmd.OutOrStdout(), l)
	}
}
