package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MrEthical07/skyAuth"
	"github.com/MrEthical07/skyAuth/password"
)

// newHashPasswordCmd prints an argon2id hash for seeding user records. The
// password is read from the first line of stdin when no argument is given.
func newHashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Print an argon2id hash using the engine's default cost",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var plain string
			if len(args) == 1 {
				plain = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return errors.New("no password on stdin")
				}
				plain = strings.TrimRight(line, "\r\n")
			}

			pc := skyAuth.DefaultConfig().Password
			if len(plain) < pc.MinLength {
				return fmt.Errorf("password must be at least %d characters", pc.MinLength)
			}
			hasher, err := password.NewHasher(password.Config{
				Memory:           pc.Memory,
				Time:             pc.Time,
				Parallelism:      pc.Parallelism,
				SaltLength:       pc.SaltLength,
				KeyLength:        pc.KeyLength,
				MaxPasswordBytes: pc.MaxPasswordBytes,
			})
			if err != nil {
				return err
			}
			hash, err := hasher.Hash(plain)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}
