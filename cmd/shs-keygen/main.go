// Command shs-keygen creates and inspects the identity keyfiles consumed by
// shs-chat, the way gosuda-portal's vanity-id tool mints Ed25519 identities
// for its own protocol.
package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/gosuda/shsnet/internal/keystore"
)

var (
	flagOut   string
	flagNetID string
)

var rootCmd = &cobra.Command{
	Use:   "shs-keygen",
	Short: "Generate and inspect shsnet identity keyfiles",
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Create a new identity keyfile",
	RunE:  runGenerate,
}

var showCmd = &cobra.Command{
	Use:   "show <keyfile>",
	Short: "Print an identity's network id, public key and display id",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

func init() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})

	generateCmd.Flags().StringVar(&flagOut, "out", "identity.json", "keyfile path to write")
	generateCmd.Flags().StringVar(&flagNetID, "net-id", "", "32-byte hex network identifier (random if omitted)")

	rootCmd.AddCommand(generateCmd, showCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("shs-keygen")
	}
}

func runGenerate(cmd *cobra.Command, args []string) error {
	var netID [32]byte
	if flagNetID != "" {
		raw, err := hex.DecodeString(flagNetID)
		if err != nil || len(raw) != 32 {
			return fmt.Errorf("--net-id must be 64 hex characters (32 bytes)")
		}
		copy(netID[:], raw)
	} else if _, err := io.ReadFull(rand.Reader, netID[:]); err != nil {
		return fmt.Errorf("generate random net id: %w", err)
	}

	id, err := keystore.Generate(netID)
	if err != nil {
		return fmt.Errorf("generate identity: %w", err)
	}
	if err := keystore.Save(flagOut, id); err != nil {
		return fmt.Errorf("save identity: %w", err)
	}

	log.Info().
		Str("path", flagOut).
		Str("id", id.ID()).
		Str("net_id", hex.EncodeToString(id.NetID[:])).
		Msg("identity generated")
	return nil
}

func runShow(cmd *cobra.Command, args []string) error {
	id, err := keystore.Load(args[0])
	if err != nil {
		return err
	}
	fmt.Printf("id:          %s\n", id.ID())
	fmt.Printf("net_id:      %s\n", hex.EncodeToString(id.NetID[:]))
	fmt.Printf("public_key:  %s\n", hex.EncodeToString(id.PublicKey))
	return nil
}
