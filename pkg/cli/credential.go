package cli

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dshills/svcprobe/pkg/storage"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const maxCredentialSize = 1 << 20 // 1MB limit for all credential inputs

// newCredentialStore is swapped in tests.
var newCredentialStore = func() storage.CredentialStore {
	return storage.NewKeyringCredentialStore()
}

// isOnlyWhitespace reports whether data is empty or holds only Unicode
// whitespace, without allocating a string.
func isOnlyWhitespace(data []byte) bool {
	for i := 0; i < len(data); {
		r, size := utf8.DecodeRune(data[i:])
		if r == utf8.RuneError && size == 1 {
			return false
		}
		if !unicode.IsSpace(r) {
			return false
		}
		i += size
	}
	return true
}

// NewCredentialCommand creates the credential management command
func NewCredentialCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credential",
		Short: "Manage secrets injected into the server environment",
		Long: `Manage secrets referenced by server.env_credentials in svcprobe.yaml.

Secrets live in the system keyring (Keychain on macOS, Credential Manager on
Windows, Secret Service on Linux) and never in plain text files:

  server:
    env_credentials:
      ORDERS_API_KEY: orders-api-key`,
	}

	cmd.AddCommand(newCredentialSetCommand())
	cmd.AddCommand(newCredentialGetCommand())
	cmd.AddCommand(newCredentialDeleteCommand())
	cmd.AddCommand(newCredentialListCommand())

	return cmd
}

func newCredentialSetCommand() *cobra.Command {
	var useStdin bool

	cmd := &cobra.Command{
		Use:   "set <ref>",
		Short: "Store a secret",
		Long: `Store a secret under a reference name.

Examples:
  # Interactive hidden prompt
  svcprobe credential set orders-api-key

  # From stdin, for automation
  printf '%s' "$API_KEY" | svcprobe credential set orders-api-key --stdin

Only trailing CR/LF characters are removed from stdin input. Values are
limited to 1MB and may not be whitespace only.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref := args[0]

			var (
				input []byte
				err   error
			)
			if useStdin {
				input, err = io.ReadAll(io.LimitReader(cmd.InOrStdin(), maxCredentialSize+1))
				if err != nil {
					return fmt.Errorf("failed to read from stdin: %w", err)
				}
				input = bytes.TrimRight(input, "\r\n")
			} else {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Enter value for '%s': ", ref)
				input, err = term.ReadPassword(int(os.Stdin.Fd()))
				_, _ = fmt.Fprintln(cmd.OutOrStdout())
				if err != nil {
					return fmt.Errorf("failed to read credential value: %w", err)
				}
			}
			defer func() {
				for i := range input {
					input[i] = 0
				}
			}()

			if len(input) > maxCredentialSize {
				return fmt.Errorf("credential value exceeds maximum size of %d bytes", maxCredentialSize)
			}
			if len(input) == 0 {
				return fmt.Errorf("credential value cannot be empty")
			}
			if isOnlyWhitespace(input) {
				return fmt.Errorf("credential cannot contain only whitespace characters")
			}

			if err := newCredentialStore().Set(ref, string(input)); err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "✓ Credential '%s' stored\n", ref)
			return nil
		},
	}

	cmd.Flags().BoolVar(&useStdin, "stdin", false, "Read the value from stdin")

	return cmd
}

func newCredentialGetCommand() *cobra.Command {
	var reveal bool

	cmd := &cobra.Command{
		Use:   "get <ref>",
		Short: "Check whether a secret is stored",
		Long: `Report whether a secret is stored. The value is printed only with --reveal.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := newCredentialStore().Get(args[0])
			if err != nil {
				return err
			}

			if reveal {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), value)
				return nil
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s: (set)\n", args[0])
			return nil
		},
	}

	cmd.Flags().BoolVar(&reveal, "reveal", false, "Print the secret value")

	return cmd
}

func newCredentialDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <ref>",
		Short: "Remove a secret",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := newCredentialStore().Delete(args[0]); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "✓ Credential '%s' deleted\n", args[0])
			return nil
		},
	}
}

func newCredentialListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored secret references",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			refs, err := newCredentialStore().List()
			if err != nil {
				return fmt.Errorf("failed to list credentials: %w", err)
			}

			if len(refs) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No credentials stored.")
				return nil
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), strings.Join(refs, "\n"))
			return nil
		},
	}
}
