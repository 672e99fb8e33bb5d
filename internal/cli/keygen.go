package cli

import (
	"encoding/json"
	"fmt"

	"github.com/layer-3/wide/adapters/tokenizer"
	"github.com/layer-3/wide/internal/eth"
	"github.com/spf13/cobra"
)

// GeneratedKeys are fresh values for the key settings of the configuration.
type GeneratedKeys struct {
	IntegrityPrivateKey string `json:"integrity_private_key"`
	IntegrityAddress    string `json:"integrity_address"`
	SessionSigningKey   string `json:"session_signing_key"`
}

// GenerateKeys creates a secp256k1 integrity key and a P-256 session key.
func GenerateKeys() (*GeneratedKeys, error) {
	integrityKey, err := eth.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate integrity key: %w", err)
	}

	sessionKey, err := tokenizer.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session key: %w", err)
	}
	encodedSessionKey, err := tokenizer.EncodeKey(sessionKey)
	if err != nil {
		return nil, err
	}

	return &GeneratedKeys{
		IntegrityPrivateKey: eth.EncodePrivateKey(integrityKey),
		IntegrityAddress:    eth.NewKeySigner(integrityKey).Address().Hex(),
		SessionSigningKey:   encodedSessionKey,
	}, nil
}

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate the integrity and session signing keys",
	Long: `Generate a secp256k1 key for integrity.private_key, which signs proofs and
pays for ledger transactions, and a P-256 key for session.signing_key, which
signs session cookies.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		keys, err := GenerateKeys()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if outputFormat == "json" {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(keys)
		}

		fmt.Fprintf(out, "integrity.private_key: %s\n", keys.IntegrityPrivateKey)
		fmt.Fprintf(out, "integrity address:     %s\n", keys.IntegrityAddress)
		fmt.Fprintf(out, "session.signing_key:   %s\n", keys.SessionSigningKey)
		return nil
	},
}
