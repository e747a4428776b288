package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/polysight-org/polysight/client"
)

const (
	outfileCmdName      = "outfile"
	forceCmdName        = "force"
	passphraseCmdName   = "passphrase"
	noPassphraseCmdName = "no-passphrase"
	mnemonicCmdName     = "mnemonic"
)

type keysConfig struct {
	Base *baseConfiguration

	OutFile      string
	Force        bool
	Passphrase   string
	NoPassphrase bool
	Mnemonic     string
}

func newKeysCmd(baseConfig *baseConfiguration) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manages keypair files",
	}
	cmd.AddCommand(keysGenerateCmd(baseConfig))
	cmd.AddCommand(keysRecoverCmd(baseConfig))
	cmd.AddCommand(keysShowCmd(baseConfig))
	return cmd
}

func keysGenerateCmd(baseConfig *baseConfiguration) *cobra.Command {
	config := &keysConfig{Base: baseConfig}
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generates new keypair from a new BIP39 mnemonic",
		RunE: func(cmd *cobra.Command, args []string) error {
			return execKeysGenerateCmd(cmd, config)
		},
	}
	config.addWriteFlags(cmd)
	return cmd
}

func keysRecoverCmd(baseConfig *baseConfiguration) *cobra.Command {
	config := &keysConfig{Base: baseConfig}
	cmd := &cobra.Command{
		Use:   "recover",
		Short: "Recovers keypair from BIP39 mnemonic",
		RunE: func(cmd *cobra.Command, args []string) error {
			return execKeysRecoverCmd(cmd, config)
		},
	}
	config.addWriteFlags(cmd)
	cmd.Flags().StringVarP(&config.Mnemonic, mnemonicCmdName, "m", "", "the 12 (or 24) word mnemonic")
	_ = cmd.MarkFlagRequired(mnemonicCmdName)
	return cmd
}

func keysShowCmd(baseConfig *baseConfiguration) *cobra.Command {
	config := &keysConfig{Base: baseConfig}
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Prints the public key of the keypair file",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := client.LoadKeygenFile(config.outFile())
			if err != nil {
				return err
			}
			consoleWriter.Println(key.PublicKey().String())
			return nil
		},
	}
	cmd.Flags().StringVarP(&config.OutFile, outfileCmdName, "o", "", fmt.Sprintf("keypair file (default %s)", defaultWalletFile()))
	return cmd
}

func (c *keysConfig) addWriteFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&c.OutFile, outfileCmdName, "o", "", fmt.Sprintf("path to the keypair file to write (default %s)", defaultWalletFile()))
	cmd.Flags().BoolVarP(&c.Force, forceCmdName, "f", false, "overwrite the existing keypair file")
	cmd.Flags().StringVar(&c.Passphrase, passphraseCmdName, "", "BIP39 passphrase, prompted for when not set")
	cmd.Flags().BoolVar(&c.NoPassphrase, noPassphraseCmdName, false, "do not prompt for BIP39 passphrase")
}

func (c *keysConfig) outFile() string {
	if c.OutFile != "" {
		return c.OutFile
	}
	return defaultWalletFile()
}

func execKeysGenerateCmd(cmd *cobra.Command, config *keysConfig) error {
	mnemonic, err := client.NewMnemonic()
	if err != nil {
		return err
	}
	passphrase, err := config.passphrase(true)
	if err != nil {
		return err
	}
	key, err := client.KeyFromMnemonic(mnemonic, passphrase)
	if err != nil {
		return err
	}
	if err := config.writeKey(key); err != nil {
		return err
	}
	consoleWriter.Println("Wrote new keypair to " + config.outFile())
	consoleWriter.Println("pubkey: " + key.PublicKey().String())
	consoleWriter.Println("Save this seed phrase to recover your keypair:")
	consoleWriter.Println(mnemonic)
	return nil
}

func execKeysRecoverCmd(cmd *cobra.Command, config *keysConfig) error {
	passphrase, err := config.passphrase(false)
	if err != nil {
		return err
	}
	key, err := client.KeyFromMnemonic(strings.Join(strings.Fields(config.Mnemonic), " "), passphrase)
	if err != nil {
		return err
	}
	if err := config.writeKey(key); err != nil {
		return err
	}
	consoleWriter.Println("Wrote recovered keypair to " + config.outFile())
	consoleWriter.Println("pubkey: " + key.PublicKey().String())
	return nil
}

func (c *keysConfig) writeKey(key solana.PrivateKey) error {
	file := c.outFile()
	if c.Force {
		if err := os.Remove(file); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("removing existing keypair file: %w", err)
		}
	}
	return client.SaveKeygenFile(file, key)
}

func (c *keysConfig) passphrase(confirm bool) (string, error) {
	if c.NoPassphrase {
		return "", nil
	}
	if c.Passphrase != "" {
		return c.Passphrase, nil
	}
	p1, err := readPassword("BIP39 Passphrase (empty for none): ")
	if err != nil {
		return "", err
	}
	if !confirm || p1 == "" {
		return p1, nil
	}
	p2, err := readPassword("Confirm passphrase: ")
	if err != nil {
		return "", err
	}
	if p1 != p2 {
		return "", errors.New("passphrases do not match")
	}
	return p1, nil
}

func readPassword(promptMessage string) (string, error) {
	consoleWriter.Print(promptMessage)
	passwordBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
	if err != nil {
		return "", err
	}
	consoleWriter.Println("") // line break after reading password
	return string(passwordBytes), nil
}
