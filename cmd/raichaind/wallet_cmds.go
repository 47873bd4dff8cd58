package main

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"raichain/pkg/config"
	"raichain/pkg/utils"
	"raichain/store"
	"raichain/wallet"
)

// walletPasswordFlag, walletPhraseFlag and walletImportKeyHex back the flags
// of the wallet_create/wallet_import/account_create subcommands (spec §6).
var (
	walletPasswordFlag string
	walletPhraseFlag   string
	walletImportKeyHex string
)

func passwordFor(cmd *cobra.Command) []byte {
	if walletPasswordFlag != "" {
		return []byte(walletPasswordFlag)
	}
	return []byte(utils.EnvOrDefault("RAICHAIN_WALLET_PASSWORD", ""))
}

func openWalletStore(envName string) (*store.DB, *config.Config, error) {
	cfg, err := loadConfig(envName)
	if err != nil {
		return nil, nil, wrapConfigError(err)
	}
	path := cfg.Wallet.SeedFile
	if path == "" {
		path = cfg.Store.Path
	}
	db, err := store.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return db, cfg, nil
}

// walletCreateCmd generates a fresh seed, seals it, and prints the recovery
// mnemonic exactly once (spec §6 "wallet_create").
func walletCreateCmd(envName *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wallet_create",
		Short: "generate a new wallet seed and print its recovery phrase",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, cfg, err := openWalletStore(*envName)
			if err != nil {
				return err
			}
			defer db.Close()
			now := func() uint64 { return uint64(time.Now().Unix()) }
			w, phrase, err := wallet.Create(db, newLogger(cfg), now, passwordFor(cmd))
			if err != nil {
				return err
			}
			index, account, err := w.NewAccount()
			if err != nil {
				return err
			}
			fmt.Println("recovery phrase (write this down, shown only once):")
			fmt.Println(phrase)
			fmt.Printf("account[%d]: %s\n", index, account.String())
			return nil
		},
	}
	cmd.Flags().StringVar(&walletPasswordFlag, "password", "", "seed encryption password (or RAICHAIN_WALLET_PASSWORD)")
	return cmd
}

// walletImportCmd recovers a wallet from a mnemonic phrase and, when
// --import-key is given, also registers a raw imported private key (spec §6
// "wallet_import").
func walletImportCmd(envName *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wallet_import",
		Short: "recover a wallet from a mnemonic phrase",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, cfg, err := openWalletStore(*envName)
			if err != nil {
				return err
			}
			defer db.Close()
			now := func() uint64 { return uint64(time.Now().Unix()) }
			log := newLogger(cfg)
			w, err := wallet.Import(db, log, now, walletPhraseFlag, passwordFor(cmd))
			if err != nil {
				return err
			}
			if walletImportKeyHex != "" {
				raw, err := hex.DecodeString(walletImportKeyHex)
				if err != nil {
					return fmt.Errorf("--import-key: %w", err)
				}
				if len(raw) != ed25519.SeedSize {
					return fmt.Errorf("--import-key: want %d bytes, got %d", ed25519.SeedSize, len(raw))
				}
				priv := ed25519.NewKeyFromSeed(raw)
				account, err := w.ImportKey(priv)
				if err != nil {
					return err
				}
				fmt.Printf("imported account: %s\n", account.String())
				return nil
			}
			accounts, err := w.Accounts()
			if err != nil {
				return err
			}
			fmt.Printf("wallet recovered with %d account(s)\n", len(accounts))
			return nil
		},
	}
	cmd.Flags().StringVar(&walletPasswordFlag, "password", "", "seed encryption password (or RAICHAIN_WALLET_PASSWORD)")
	cmd.Flags().StringVar(&walletPhraseFlag, "phrase", "", "recovery mnemonic")
	cmd.Flags().StringVar(&walletImportKeyHex, "import-key", "", "hex-encoded ed25519 seed to register under the imported-key slot")
	_ = cmd.MarkFlagRequired("phrase")
	return cmd
}

// accountCreateCmd derives and registers the next sequential account on the
// currently selected wallet (spec §6 "account_create").
func accountCreateCmd(envName *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account_create",
		Short: "derive the next account on the selected wallet",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, cfg, err := openWalletStore(*envName)
			if err != nil {
				return err
			}
			defer db.Close()
			var id store.WalletID
			err = db.View(func(tx *store.Tx) error {
				var ok bool
				var err error
				id, ok, err = tx.GetSelectedWallet()
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("no selected wallet; run wallet_create or wallet_import first")
				}
				return nil
			})
			if err != nil {
				return err
			}
			now := func() uint64 { return uint64(time.Now().Unix()) }
			log := newLogger(cfg)
			w, err := wallet.Open(db, log, now, id, passwordFor(cmd))
			if err != nil {
				return err
			}
			index, account, err := w.NewAccount()
			if err != nil {
				return err
			}
			fmt.Printf("account[%d]: %s\n", index, account.String())
			return nil
		},
	}
	cmd.Flags().StringVar(&walletPasswordFlag, "password", "", "seed encryption password (or RAICHAIN_WALLET_PASSWORD)")
	return cmd
}
