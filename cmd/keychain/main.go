// Copyright (c) 2025-2026 complex (complex@ft.hn)
// See LICENSE for licensing information

// Package main provides the keychain CLI tool for managing BLS keys derived
// from mnemonic seed phrases.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/btcsuite/btclog/v2"
	"github.com/charmbracelet/lipgloss"
	"github.com/complex-gh/keychain"
	"github.com/mattn/go-isatty"
	"github.com/mattn/go-tty"
	mcobra "github.com/muesli/mango-cobra"
	"github.com/muesli/roff"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const (
	maxWidth = 72

	// passphraseEnv names the environment variable holding the keyring
	// passphrase for non-interactive use.
	passphraseEnv = "KEYCHAIN_PASSPHRASE"

	maxPassphraseAttempts = 3
)

var (
	baseStyle  = lipgloss.NewStyle().Margin(0, 0, 1, 2) //nolint:mnd
	red        = lipgloss.Color(completeColor("#FF4444", "196", "9"))
	purple     = lipgloss.Color(completeColor("#8B5CF6", "99", "5"))
	errorStyle = baseStyle.
			Foreground(red).
			Background(lipgloss.AdaptiveColor{Light: completeColor("#FFEBEB", "255", "7"), Dark: completeColor("#2B1A1A", "235", "8")}).
			Padding(1, 2) //nolint:mnd
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(purple)

	configPath  string
	keyringPath string
	service     string
	user        string
	debugLevel  string

	wordCount    int
	label        string
	noStore      bool
	publicOnly   bool
	showMnemonic bool
	fingerprint  string
	assumeYes    bool
	hint         string

	rootCmd = &cobra.Command{
		Use:   "keychain",
		Short: "Manage BLS keys derived from mnemonic seed phrases",
		Long: `Manage BLS keys derived from mnemonic seed phrases.

Keys are kept in an encrypted keyring file and identified by a fingerprint.
Each key may carry a unique label. Mnemonics may be given in full or as
short words (unique prefixes, e.g. the first four letters of each word).

The keyring passphrase is read from $KEYCHAIN_PASSPHRASE, or prompted for
when needed. Without a passphrase a built-in default is used.

SECURITY TIP: Add a space before the command to prevent it from being
saved in your shell history. Most shells (bash, zsh) are configured to
ignore commands that start with a space.`,
		SilenceUsage: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return setupLogging(debugLevel)
		},
	}

	generateCmd = &cobra.Command{
		Use:   "generate",
		Short: "Generate a new mnemonic and add its key",
		Example: `  keychain generate
  keychain generate --words 12 --label savings
  keychain generate --no-store`,
		Args: cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			bits, err := wordCountBits(wordCount)
			if err != nil {
				return err
			}
			words, err := keychain.GenerateMnemonicBits(bits)
			if err != nil {
				return err
			}
			mnemonic := keychain.MnemonicString(words)

			if noStore {
				kd, err := keychain.KeyDataFromMnemonic(mnemonic, label)
				if err != nil {
					return err
				}
				return printKey(os.Stdout, kd, true)
			}

			kc, err := openKeychain()
			if err != nil {
				return err
			}
			defer kc.Close() //nolint:errcheck

			kd, err := kc.AddKey(mnemonic, label, true)
			if err != nil {
				return err
			}
			return printKey(os.Stdout, kd, true)
		},
	}

	addCmd = &cobra.Command{
		Use:   "add",
		Short: "Add a key from a mnemonic or a bech32m public key",
		Long: `Add a key from a mnemonic or a bech32m public key.

The mnemonic (or public key) is read from stdin when it is piped, or
prompted for without echo otherwise. Public keys are stored without
secrets; --public-only does the same for a mnemonic.`,
		Example: `  keychain add --label savings
  cat mnemonic.txt | keychain add
  echo bls12381... | keychain add --label watch-only`,
		Args: cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			input, err := readSecretInput("Mnemonic or public key: ")
			if err != nil {
				return err
			}

			kc, err := openKeychain()
			if err != nil {
				return err
			}
			defer kc.Close() //nolint:errcheck

			kd, err := kc.AddKey(input, label, !publicOnly)
			if err != nil {
				return err
			}
			fmt.Printf("Added key %d\n", kd.Fingerprint)
			return nil
		},
	}

	showCmd = &cobra.Command{
		Use:   "show",
		Short: "Show stored keys",
		Example: `  keychain show
  keychain show --fingerprint 1310648153 --show-mnemonic`,
		Args: cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			kc, err := openKeychain()
			if err != nil {
				return err
			}
			defer kc.Close() //nolint:errcheck

			var keys []*keychain.KeyData
			if fingerprint != "" {
				fp, err := parseFingerprint(fingerprint)
				if err != nil {
					return err
				}
				kd, err := kc.GetKey(fp, showMnemonic)
				if err != nil {
					return err
				}
				keys = append(keys, kd)
			} else {
				keys, err = kc.GetKeys(showMnemonic)
				if err != nil {
					return err
				}
			}

			if len(keys) == 0 {
				fmt.Println("There are no saved keys")
				return nil
			}
			for i, kd := range keys {
				if i > 0 {
					fmt.Println()
				}
				if err := printKey(os.Stdout, kd, showMnemonic); err != nil {
					return err
				}
			}
			return nil
		},
	}

	deleteCmd = &cobra.Command{
		Use:   "delete <fingerprint>",
		Short: "Delete a key and its label",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			fp, err := parseFingerprint(args[0])
			if err != nil {
				return err
			}
			kc, err := openKeychain()
			if err != nil {
				return err
			}
			defer kc.Close() //nolint:errcheck

			if err := kc.DeleteKeyByFingerprint(fp); err != nil {
				return err
			}
			fmt.Printf("Deleted key %d\n", fp)
			return nil
		},
	}

	deleteAllCmd = &cobra.Command{
		Use:   "delete-all",
		Short: "Delete every key in the keychain",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			if !assumeYes {
				ok, err := confirm("Delete ALL keys? This can't be undone. Type 'yes' to continue: ")
				if err != nil {
					return err
				}
				if !ok {
					return errors.New("aborted")
				}
			}

			kc, err := openKeychain()
			if err != nil {
				return err
			}
			defer kc.Close() //nolint:errcheck

			if err := kc.DeleteAllKeys(); err != nil {
				return err
			}
			fmt.Println("Deleted all keys")
			return nil
		},
	}

	labelCmd = &cobra.Command{
		Use:   "label",
		Short: "Manage key labels",
	}

	labelSetCmd = &cobra.Command{
		Use:   "set <fingerprint> <label>",
		Short: "Set the label of a key",
		Args:  cobra.ExactArgs(2), //nolint:mnd
		RunE: func(_ *cobra.Command, args []string) error {
			fp, err := parseFingerprint(args[0])
			if err != nil {
				return err
			}
			kc, err := openKeychain()
			if err != nil {
				return err
			}
			defer kc.Close() //nolint:errcheck

			if err := kc.SetLabel(fp, args[1]); err != nil {
				return err
			}
			fmt.Printf("Label of key %d set to %q\n", fp, args[1])
			return nil
		},
	}

	labelDeleteCmd = &cobra.Command{
		Use:   "delete <fingerprint>",
		Short: "Remove the label of a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			fp, err := parseFingerprint(args[0])
			if err != nil {
				return err
			}
			kc, err := openKeychain()
			if err != nil {
				return err
			}
			defer kc.Close() //nolint:errcheck

			if err := kc.DeleteLabel(fp); err != nil {
				return err
			}
			fmt.Printf("Label of key %d removed\n", fp)
			return nil
		},
	}

	passphraseCmd = &cobra.Command{
		Use:   "passphrase",
		Short: "Manage the keyring passphrase",
	}

	passphraseSetCmd = &cobra.Command{
		Use:   "set",
		Short: "Change the keyring passphrase",
		Long: `Change the keyring passphrase.

The new passphrase is prompted for twice. Entering an empty passphrase
reverts to the built-in default.`,
		Args: cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ring, current, err := unlock(cfg, func(passphrase string) (*keychain.FileKeyring, error) {
				return keychain.OpenFileKeyring(cfg.KeyringPath,
					keychain.WithPassphrase(passphrase),
					keychain.WithKDFParams(cfg.KDF),
				)
			})
			if err != nil {
				return err
			}
			defer ring.Close() //nolint:errcheck

			next, err := readPassword("New passphrase: ")
			if err != nil {
				return err
			}
			again, err := readPassword("Confirm new passphrase: ")
			if err != nil {
				return err
			}
			if string(next) != string(again) {
				return errors.New("passphrases don't match")
			}

			if err := ring.ChangePassphrase(current, string(next), hint); err != nil {
				return err
			}
			if len(next) == 0 {
				fmt.Println("Keyring passphrase removed")
			} else {
				fmt.Println("Keyring passphrase updated")
			}
			return nil
		},
	}

	passphraseHintCmd = &cobra.Command{
		Use:   "hint",
		Short: "Show the keyring passphrase hint",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			h, err := keychain.ReadPassphraseHint(cfg.KeyringPath)
			if err != nil {
				return err
			}
			if h == "" {
				fmt.Println("No passphrase hint is set")
				return nil
			}
			fmt.Println(h)
			return nil
		},
	}

	manCmd = &cobra.Command{
		Use:          "man",
		Args:         cobra.NoArgs,
		Short:        "generate man pages",
		Hidden:       true,
		SilenceUsage: true,
		RunE: func(*cobra.Command, []string) error {
			manPage, err := mcobra.NewManPage(1, rootCmd)
			if err != nil {
				//nolint: wrapcheck
				return err
			}
			manPage = manPage.WithSection("Copyright", "(C) 2025-2026 complex.\n"+
				"See LICENSE for licensing information.")
			fmt.Println(manPage.Build(roff.NewDocument()))
			return nil
		},
	}

	completionCmd = &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate completion script",
		Long: `To load completions:

Bash:
  $ source <(keychain completion bash)

Zsh:
  $ keychain completion zsh > "${fpath[1]}/_keychain"

Fish:
  $ keychain completion fish | source

PowerShell:
  PS> keychain completion powershell | Out-String | Invoke-Expression
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		SilenceUsage:          true,
		RunE: func(_ *cobra.Command, args []string) error {
			switch args[0] {
			case "bash":
				return rootCmd.GenBashCompletion(os.Stdout)
			case "zsh":
				return rootCmd.GenZshCompletion(os.Stdout)
			case "fish":
				return rootCmd.GenFishCompletion(os.Stdout, true)
			case "powershell":
				return rootCmd.GenPowerShellCompletionWithDesc(os.Stdout)
			default:
				return fmt.Errorf("unknown shell: %s", args[0])
			}
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&keyringPath, "keyring", "", "Keyring file (overrides the config)")
	rootCmd.PersistentFlags().StringVar(&service, "service", "", "Keyring service namespace (overrides the config)")
	rootCmd.PersistentFlags().StringVar(&user, "user", "", "Keyring user namespace (overrides the config)")
	rootCmd.PersistentFlags().StringVar(&debugLevel, "debuglevel", "off", "Logging level: trace, debug, info, warn, error, critical or off")

	generateCmd.Flags().IntVarP(&wordCount, "words", "w", 24, "Number of words: 12, 15, 18, 21 or 24") //nolint:mnd
	generateCmd.Flags().StringVar(&label, "label", "", "Label for the new key")
	generateCmd.Flags().BoolVar(&noStore, "no-store", false, "Print the mnemonic without adding it")

	addCmd.Flags().StringVar(&label, "label", "", "Label for the key")
	addCmd.Flags().BoolVar(&publicOnly, "public-only", false, "Store only the public key of a mnemonic")

	showCmd.Flags().StringVarP(&fingerprint, "fingerprint", "f", "", "Show only the key with this fingerprint")
	showCmd.Flags().BoolVar(&showMnemonic, "show-mnemonic", false, "Include the mnemonic and private key")

	deleteAllCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Don't ask for confirmation")

	passphraseSetCmd.Flags().StringVar(&hint, "hint", "", "Passphrase hint stored with the keyring")

	labelCmd.AddCommand(labelSetCmd, labelDeleteCmd)
	passphraseCmd.AddCommand(passphraseSetCmd, passphraseHintCmd)
	rootCmd.AddCommand(generateCmd, addCmd, showCmd, deleteCmd, deleteAllCmd,
		labelCmd, passphraseCmd, manCmd, completionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		renderError(err)
		os.Exit(1)
	}
}

func setupLogging(level string) error {
	lvl, ok := btclog.LevelFromString(level)
	if !ok {
		return fmt.Errorf("invalid debug level %q", level)
	}
	logger := btclog.NewSLogger(btclog.NewDefaultHandler(os.Stderr))
	logger.SetLevel(lvl)
	keychain.UseLogger(logger)
	return nil
}

// loadConfig reads --config, if given, and applies the flag overrides.
func loadConfig() (*keychain.Config, error) {
	cfg := keychain.DefaultConfig()
	if configPath != "" {
		var err error
		if cfg, err = keychain.LoadConfig(configPath); err != nil {
			return nil, err
		}
	}
	if keyringPath != "" {
		cfg.KeyringPath = keyringPath
	}
	if service != "" {
		cfg.Service = service
	}
	if user != "" {
		cfg.User = user
	}
	return cfg, cfg.Validate()
}

func openKeychain() (*keychain.Keychain, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	kc, _, err := unlock(cfg, func(passphrase string) (*keychain.Keychain, error) {
		return keychain.Open(cfg, passphrase)
	})
	return kc, err
}

// unlock calls open with the passphrase from the environment (or the
// default) and, on a terminal, prompts for the passphrase while it's
// wrong. It returns the passphrase that worked.
func unlock[T any](cfg *keychain.Config, open func(passphrase string) (T, error)) (T, string, error) {
	passphrase := os.Getenv(passphraseEnv)
	v, err := open(passphrase)
	if !errors.Is(err, keychain.ErrBadPassphrase) || !isatty.IsTerminal(os.Stdin.Fd()) {
		return v, passphrase, err
	}

	if h, _ := keychain.ReadPassphraseHint(cfg.KeyringPath); h != "" {
		_, _ = fmt.Fprintf(os.Stderr, "Passphrase hint: %s\n", h)
	}
	for i := 0; i < maxPassphraseAttempts; i++ {
		p, perr := readPassword("Keyring passphrase: ")
		if perr != nil {
			return v, "", perr
		}
		passphrase = string(p)
		v, err = open(passphrase)
		if !errors.Is(err, keychain.ErrBadPassphrase) {
			return v, passphrase, err
		}
		_, _ = fmt.Fprintln(os.Stderr, "Wrong passphrase.")
	}
	return v, "", err
}

func printKey(w io.Writer, kd *keychain.KeyData, withSecrets bool) error {
	encoded, err := kd.PublicKey.Encode()
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("[key %d]", kd.Fingerprint)))
	_, _ = fmt.Fprintln(w)
	if kd.Label != "" {
		_, _ = fmt.Fprintf(w, "Label:       %s\n", kd.Label)
	}
	_, _ = fmt.Fprintf(w, "Fingerprint: %d\n", kd.Fingerprint)
	_, _ = fmt.Fprintf(w, "Public key:  %s\n", kd.PublicKey.Hex())
	_, _ = fmt.Fprintf(w, "Bech32m:     %s\n", encoded)

	if !withSecrets {
		return nil
	}
	if !kd.HasSecrets() {
		_, _ = fmt.Fprintln(w, "Secrets:     not stored (public key only)")
		return nil
	}
	sk, err := kd.PrivateKey()
	if err != nil {
		return err
	}
	mnemonic, err := kd.MnemonicString()
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(w, "Private key: %s\n", sk.Hex())
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("[%d word mnemonic]", len(kd.Secrets.Mnemonic))))
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, mnemonic)
	return nil
}

func wordCountBits(words int) (int, error) {
	switch words {
	case 12, 15, 18, 21, 24: //nolint:mnd
		return words * 32 / 3, nil //nolint:mnd
	default:
		return 0, fmt.Errorf("invalid word count %d: must be 12, 15, 18, 21 or 24", words)
	}
}

func parseFingerprint(s string) (uint32, error) {
	fp, err := strconv.ParseUint(strings.TrimSpace(s), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid fingerprint %q", s)
	}
	return uint32(fp), nil
}

// readSecretInput reads from stdin when it is piped and prompts on the tty
// otherwise.
func readSecretInput(prompt string) (string, error) {
	piped, err := isPiped(os.Stdin)
	if err != nil {
		return "", err
	}
	if piped {
		bts, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("could not read stdin: %w", err)
		}
		return strings.TrimSpace(string(bts)), nil
	}
	bts, err := readPassword(prompt)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(bts)), nil
}

// isPiped reports whether f is something other than a terminal.
func isPiped(f *os.File) (bool, error) {
	fi, err := f.Stat()
	if err != nil {
		return false, fmt.Errorf("could not stat %s: %w", f.Name(), err)
	}
	return fi.Mode()&os.ModeCharDevice == 0, nil
}

func readPassword(msg string) ([]byte, error) {
	_, _ = fmt.Fprint(os.Stderr, msg)
	t, err := tty.Open()
	if err != nil {
		return nil, fmt.Errorf("could not open tty: %w", err)
	}
	defer t.Close()                                     //nolint: errcheck
	pass, err := term.ReadPassword(int(t.Input().Fd())) //nolint: gosec
	_, _ = fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("could not read passphrase: %w", err)
	}
	return pass, nil
}

func confirm(msg string) (bool, error) {
	_, _ = fmt.Fprint(os.Stderr, msg)
	t, err := tty.Open()
	if err != nil {
		return false, fmt.Errorf("could not open tty: %w", err)
	}
	defer t.Close() //nolint: errcheck
	answer, err := t.ReadString()
	if err != nil {
		return false, fmt.Errorf("could not read answer: %w", err)
	}
	return strings.EqualFold(strings.TrimSpace(answer), "yes"), nil
}

func getWidth(maxw int) int {
	w, _, err := term.GetSize(int(os.Stdout.Fd())) //nolint: gosec
	if err != nil || w > maxw {
		return maxWidth
	}
	return w
}

func renderBlock(w io.Writer, s lipgloss.Style, width int, str string) {
	_, _ = io.WriteString(w, s.Width(width).Render(str))
	_, _ = io.WriteString(w, "\n")
}

// renderError shows err in a styled block on terminals. Cobra has already
// printed the plain message.
func renderError(err error) {
	if !isatty.IsTerminal(os.Stderr.Fd()) {
		return
	}
	msg := err.Error()
	switch {
	case errors.Is(err, keychain.ErrBadPassphrase):
		msg = "The keyring passphrase is wrong. Set " + passphraseEnv + " or run from a terminal to be prompted."
	case errors.Is(err, keychain.ErrInvalidMnemonic):
		msg = "Invalid mnemonic: " + msg
	}

	b := strings.Builder{}
	b.WriteRune('\n')
	renderBlock(&b, errorStyle, getWidth(maxWidth), msg)
	_, _ = fmt.Fprint(os.Stderr, b.String())
}

func completeColor(truecolor, ansi256, ansi string) string {
	//nolint: exhaustive
	switch lipgloss.ColorProfile() {
	case termenv.TrueColor:
		return truecolor
	case termenv.ANSI256:
		return ansi256
	}
	return ansi
}
