// SPDX-License-Identifier: LGPL-3.0-or-later

package main

import (
	"crypto/ed25519"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/didcomm-x/mediator/crypto/keys"
	"github.com/didcomm-x/mediator/secrets"
	"github.com/didcomm-x/mediator/server"
)

var genkeyOut string
var genkeyKid string

var genkeyCmd = &cobra.Command{
	Use:   "genkey",
	Short: "Generate an Ed25519 signing key and write a secrets file",
	Long: `genkey generates a fresh Ed25519 key pair for the mediator's own
signing identity (access/refresh token signing and self-originated
messages) and writes it to a JSON secrets file in the format
mediator.secrets_file expects. Re-running with the same --out merges
in the new key alongside whatever is already there.`,
	RunE: runGenkey,
}

func init() {
	rootCmd.AddCommand(genkeyCmd)
	genkeyCmd.Flags().StringVar(&genkeyOut, "out", "secrets.json", "path to write the secrets file")
	genkeyCmd.Flags().StringVar(&genkeyKid, "kid", server.MediatorSigningKid, "key id to store the new key under")
}

func runGenkey(cmd *cobra.Command, args []string) error {
	kp, err := keys.GenerateEd25519KeyPair()
	if err != nil {
		return fmt.Errorf("generate key: %w", err)
	}
	priv, ok := kp.PrivateKey().(ed25519.PrivateKey)
	if !ok {
		return fmt.Errorf("generate key: unexpected private key type %T", kp.PrivateKey())
	}

	existing := map[string]*secrets.Secret{}
	if resolver, err := secrets.LoadFile(genkeyOut); err == nil {
		existing = resolver.All()
	}
	existing[genkeyKid] = &secrets.Secret{ID: genkeyKid, Type: secrets.KeyTypeEd25519, Material: priv.Seed()}

	if err := secrets.SaveFile(genkeyOut, existing); err != nil {
		return fmt.Errorf("write secrets file: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "wrote key %q to %s\n", genkeyKid, genkeyOut)
	return nil
}
