package cli

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"listinggen/cmd/security/passcode"

	"github.com/spf13/cobra"
)

func newHashOverrideCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-override [code]",
		Short: "Print the ADMIN_BYPASS_HASH value for an override code",
		Long:  "Hashes an admin override code with Argon2id. The code is read from stdin when no argument is given.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var code string
			if len(args) == 1 {
				code = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return errors.New("no override code on stdin")
				}
				code = line
			}
			code = strings.TrimSpace(code)

			cfg, err := passcode.FromEnv()
			if err != nil {
				return err
			}
			hash, err := cfg.Hash(code)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), hash)
			return err
		},
	}
}
