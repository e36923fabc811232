// Copyright (C) 2025, Lux Industries, Inc.
// See the file LICENSE for licensing terms.

package main

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/log"
	"github.com/spf13/cobra"

	"github.com/luxfi/vaa"
	"github.com/luxfi/vaa/bridge"
	"github.com/luxfi/vaa/ledger"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "vaa",
	Short: "VAA verification core CLI",
	Long: `Tools for the guardian-attested message bridge: compute canonical
body digests, inspect quorum thresholds, and work with payload envelopes.`,
	Version: fmt.Sprintf("%s (built %s)", version, buildDate),
}

func init() {
	rootCmd.AddCommand(hashCmd)
	rootCmd.AddCommand(quorumCmd)
	rootCmd.AddCommand(encodeCmd)
	rootCmd.AddCommand(decodeCmd)
	rootCmd.AddCommand(genesisCmd)
}

var hashCmd = &cobra.Command{
	Use:   "hash",
	Short: "Compute the canonical body digest guardians sign over",
	Run: func(cmd *cobra.Command, args []string) {
		timestamp, _ := cmd.Flags().GetUint32("timestamp")
		nonce, _ := cmd.Flags().GetUint32("nonce")
		chain, _ := cmd.Flags().GetUint8("chain")
		emitterHex, _ := cmd.Flags().GetString("emitter")
		payloadHex, _ := cmd.Flags().GetString("payload")

		emitter, err := hexToEmitter(emitterHex)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid emitter: %v\n", err)
			os.Exit(1)
		}
		payload, err := hex.DecodeString(payloadHex)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid payload hex: %v\n", err)
			os.Exit(1)
		}

		body := &vaa.Body{
			Timestamp:      timestamp,
			Nonce:          nonce,
			EmitterChain:   chain,
			EmitterAddress: emitter,
			Payload:        payload,
		}
		fmt.Println(body.Digest().Hex())
	},
}

var quorumCmd = &cobra.Command{
	Use:   "quorum",
	Short: "Print the quorum threshold for each committee size",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("guardians  threshold")
		for n := 0; n <= vaa.MaxGuardians; n++ {
			set := &vaa.GuardianSet{Keys: make([]common.Address, n)}
			fmt.Printf("%9d  %9d\n", n, set.QuorumThreshold())
		}
	},
}

var encodeCmd = &cobra.Command{
	Use:   "encode",
	Short: "Wrap a payload in an envelope",
	Run: func(cmd *cobra.Command, args []string) {
		payloadHex, _ := cmd.Flags().GetString("payload")
		payload, err := hex.DecodeString(payloadHex)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid payload hex: %v\n", err)
			os.Exit(1)
		}

		env := &vaa.Envelope{Kind: vaa.EnvelopeKindPostVAA, Payload: payload}
		b, err := env.Serialize()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Encode failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(hex.EncodeToString(b))
	},
}

var decodeCmd = &cobra.Command{
	Use:   "decode",
	Short: "Decode an envelope and print its payload",
	Run: func(cmd *cobra.Command, args []string) {
		envelopeHex, _ := cmd.Flags().GetString("envelope")
		b, err := hex.DecodeString(envelopeHex)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid envelope hex: %v\n", err)
			os.Exit(1)
		}

		env, err := vaa.ParseEnvelope(b)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Decode failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("kind:    %d\n", env.Kind)
		fmt.Printf("payload: %s\n", hex.EncodeToString(env.Payload))
	},
}

var genesisCmd = &cobra.Command{
	Use:   "genesis",
	Short: "Initialize a bridge instance from a config file and print its record addresses",
	Run: func(cmd *cobra.Command, args []string) {
		v, err := bridge.BuildViper(cmd.Flags())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
			os.Exit(1)
		}
		cfg, err := bridge.NewGenesisConfig(v)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
			os.Exit(1)
		}
		keys, err := cfg.ParsedGuardianKeys()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
			os.Exit(1)
		}

		mem := ledger.NewMemory()
		payer := ledger.DeriveID([]byte("genesis-payer"))
		mem.Credit(payer, uint256.NewInt(1_000_000_000))

		b := bridge.New(log.NewNoOpLogger(), mem, mem, ledger.WallClock{}, []byte(cfg.Instance))
		set, err := b.Initialize(payer, keys, cfg.BridgeConfig())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Initialize failed: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("state:        %s\n", b.TreasuryID())
		fmt.Printf("guardian set: %s\n", b.GuardianSetID(set.Index))
		fmt.Printf("guardians:    %d\n", len(set.Keys))
		fmt.Printf("threshold:    %d\n", set.QuorumThreshold())
	},
}

func hexToEmitter(s string) ([vaa.EmitterAddressLen]byte, error) {
	var out [vaa.EmitterAddressLen]byte
	if len(s) >= 2 && s[:2] == "0x" {
		s = s[2:]
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return out, err
	}
	if len(b) != vaa.EmitterAddressLen {
		return out, fmt.Errorf("emitter must be %d bytes, got %d", vaa.EmitterAddressLen, len(b))
	}
	copy(out[:], b)
	return out, nil
}

func init() {
	hashCmd.Flags().Uint32("timestamp", 0, "Body timestamp (unix seconds)")
	hashCmd.Flags().Uint32("nonce", 0, "Message nonce")
	hashCmd.Flags().Uint8("chain", uint8(vaa.ChainIDLocal), "Emitter chain id")
	hashCmd.Flags().String("emitter", "", "Emitter address (32-byte hex)")
	hashCmd.Flags().String("payload", "", "Payload (hex)")

	encodeCmd.Flags().String("payload", "", "Payload (hex)")
	decodeCmd.Flags().String("envelope", "", "Envelope (hex)")

	genesisCmd.Flags().String(bridge.ConfigFileKey, "", "Path to the genesis config file (JSON)")
	genesisCmd.Flags().String(bridge.InstanceKey, "", "Bridge instance seed")
}
