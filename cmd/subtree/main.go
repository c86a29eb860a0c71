package main

import (
	"fmt"
	"os"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/spf13/cobra"

	"subtree-go/internal/app"
	"subtree-go/internal/config"
	"subtree-go/internal/database"
	"subtree-go/internal/database/migrations"
	"subtree-go/internal/subtree"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates an App. The caller must defer
// a.Close(). operation identifies the CLI command being run.
func newApp(operation string) (*app.App, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.New(cfg, operation)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

// readPassphrase prompts on stderr and reads without echo.
func readPassphrase(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	pw, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	return string(pw), nil
}

// maybeUnlock prompts for the passphrase when the blob store is encrypted.
func maybeUnlock(a *app.App) error {
	if !a.Locked() {
		return nil
	}
	pw, err := readPassphrase("Passphrase: ")
	if err != nil {
		return err
	}
	return a.Unlock(pw)
}

func parseExclude(cmd *cobra.Command) (subtree.Owner, error) {
	s, _ := cmd.Flags().GetString("exclude")
	owner, ok := subtree.ParseOwner(s)
	if !ok {
		return subtree.OwnerNone, fmt.Errorf("invalid owner %q (want student, teacher or both)", s)
	}
	return owner, nil
}

var rootCmd = &cobra.Command{
	Use:   "subtree",
	Short: "Submission file tree storage",
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults["base_dir"])
		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Base Dir:  %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:   %s\n", cfg.LogDir)
		fmt.Printf("Storage:   %s (encrypted=%v)\n", cfg.Storage.Type, cfg.Storage.Encrypted)
		fmt.Printf("Database:  %s\n", cfg.Database.Type)
		return nil
	},
}

// keys command
var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage encryption keys",
}

var keysInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate an encryption key pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("getting defaults: %w", err)
		}
		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("reading config: %w", err)
		}

		a, err := app.New(cfg, "KeysInit")
		if err != nil {
			return err
		}
		defer a.Close()

		if a.Encryptor().Ready() {
			return fmt.Errorf("key pair already exists at %s", cfg.Encryption.RecipientPath)
		}

		pw, err := readPassphrase("New passphrase: ")
		if err != nil {
			return err
		}
		confirm, err := readPassphrase("Confirm passphrase: ")
		if err != nil {
			return err
		}
		if pw != confirm {
			return fmt.Errorf("passphrases do not match")
		}

		if err := a.Encryptor().Setup(pw); err != nil {
			return fmt.Errorf("generating keys: %w", err)
		}
		fmt.Printf("Key pair written to %s\n", cfg.Encryption.RecipientPath)
		return nil
	},
}

// db command
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the file tree database",
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run pending schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		if err := migrations.MigrateUp(store.DB()); err != nil {
			return err
		}
		fmt.Println("Database is up to date.")
		return nil
	},
}

var dbStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check schema version",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		if err := migrations.CheckStatus(store.DB()); err != nil {
			return err
		}
		fmt.Println("Database schema is current.")
		return nil
	},
}

// openStore opens the configured SQLite store without going through App,
// so migration commands work on an out-of-date schema.
func openStore() (*database.SQLiteStore, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}
	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	store, err := database.NewStoreFromConfig(cfg.Database, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	sq, ok := store.(*database.SQLiteStore)
	if !ok {
		store.Close()
		return nil, fmt.Errorf("database type %q does not support migrations", cfg.Database.Type)
	}
	return sq, nil
}

// ingest command
var ingestCmd = &cobra.Command{
	Use:   "ingest SUBMISSION_ID PATH...",
	Short: "Ingest uploads into a submission tree",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		policyName, _ := cmd.Flags().GetString("policy")
		ignoreFile, _ := cmd.Flags().GetString("ignore-file")
		plain, _ := cmd.Flags().GetBool("plain")

		policy, ok := subtree.ParsePolicy(policyName)
		if !ok {
			return fmt.Errorf("invalid policy %q (want keep, delete or error)", policyName)
		}

		a, err := newApp("Ingest")
		if err != nil {
			return err
		}
		defer a.Close()

		warnings, err := a.Ingest(args[0], args[1:], policy, ignoreFile, plain)
		for _, w := range warnings {
			fmt.Fprintf(os.Stderr, "warning: %s\n", w)
		}
		if err != nil {
			return err
		}

		fmt.Printf("Ingested %d upload(s) into submission %s\n", len(args)-1, args[0])
		return nil
	},
}

// ls command
var lsCmd = &cobra.Command{
	Use:   "ls SUBMISSION_ID",
	Short: "List a submission tree",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		exclude, err := parseExclude(cmd)
		if err != nil {
			return err
		}
		startID, _ := cmd.Flags().GetString("start")

		a, err := newApp("List")
		if err != nil {
			return err
		}
		defer a.Close()

		listing, err := a.List(args[0], exclude, startID)
		if err != nil {
			return err
		}
		printListing(listing, 0)
		return nil
	},
}

func printListing(l *subtree.Listing, depth int) {
	name := l.Name
	if l.Entries != nil {
		name += "/"
	}
	fmt.Printf("%s%s\t%s\n", strings.Repeat("  ", depth), name, l.ID)
	for _, e := range l.Entries {
		printListing(e, depth+1)
	}
}

// search command
var searchCmd = &cobra.Command{
	Use:   "search SUBMISSION_ID PATH",
	Short: "Resolve a path inside a submission tree",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		exclude, err := parseExclude(cmd)
		if err != nil {
			return err
		}

		a, err := newApp("Search")
		if err != nil {
			return err
		}
		defer a.Close()

		f, err := a.Search(args[0], args[1], exclude)
		if err != nil {
			return err
		}

		kind := "file"
		if f.IsDirectory {
			kind = "directory"
		}
		fmt.Printf("%s\t%s\t%s\n", f.ID, kind, f.Name)
		return nil
	},
}

// stat command
var statCmd = &cobra.Command{
	Use:   "stat FILE_ID",
	Short: "Show metadata for a file or directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Stat")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := maybeUnlock(a); err != nil {
			return err
		}

		st, err := a.Stat(args[0])
		if err != nil {
			return err
		}

		kind := "file"
		if st.IsDirectory {
			kind = "directory"
		}
		fmt.Printf("Name:     %s\n", st.Name)
		fmt.Printf("Kind:     %s\n", kind)
		fmt.Printf("Size:     %d\n", st.Size)
		fmt.Printf("Modified: %s\n", st.ModifiedAt.Format("2006-01-02 15:04:05"))
		return nil
	},
}

// cat command
var catCmd = &cobra.Command{
	Use:   "cat FILE_ID",
	Short: "Print a file's contents",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("FileContents")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := maybeUnlock(a); err != nil {
			return err
		}
		return a.FileContents(args[0], os.Stdout)
	},
}

// rename command
var renameCmd = &cobra.Command{
	Use:   "rename FILE_ID NEW_NAME",
	Short: "Rename or move a file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		exclude, err := parseExclude(cmd)
		if err != nil {
			return err
		}
		parentID, _ := cmd.Flags().GetString("parent")

		a, err := newApp("Rename")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Rename(args[0], args[1], parentID, exclude); err != nil {
			return err
		}
		fmt.Printf("Renamed %s to %s\n", args[0], args[1])
		return nil
	},
}

// chown command
var chownCmd = &cobra.Command{
	Use:   "chown FILE_ID OWNER",
	Short: "Retag a file's ownership",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, ok := subtree.ParseOwner(args[1])
		if !ok || owner == subtree.OwnerNone {
			return fmt.Errorf("invalid owner %q (want student, teacher or both)", args[1])
		}

		a, err := newApp("SetOwner")
		if err != nil {
			return err
		}
		defer a.Close()

		return a.SetOwner(args[0], owner)
	},
}

// restore command
var restoreCmd = &cobra.Command{
	Use:   "restore SUBMISSION_ID DEST",
	Short: "Write a submission tree to a directory",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		exclude, err := parseExclude(cmd)
		if err != nil {
			return err
		}

		a, err := newApp("Restore")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := maybeUnlock(a); err != nil {
			return err
		}

		rootName, err := a.Restore(args[0], exclude, args[1])
		if err != nil {
			return err
		}
		fmt.Printf("Restored submission %s to %s/%s\n", args[0], args[1], rootName)
		return nil
	},
}

// export command
var exportCmd = &cobra.Command{
	Use:   "export SUBMISSION_ID OUT",
	Short: "Export a submission tree as a zip archive",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		exclude, err := parseExclude(cmd)
		if err != nil {
			return err
		}

		a, err := newApp("ExportZip")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := maybeUnlock(a); err != nil {
			return err
		}

		if err := a.ExportZip(args[0], exclude, args[1]); err != nil {
			return err
		}
		fmt.Printf("Exported submission %s to %s\n", args[0], args[1])
		return nil
	},
}

// rm command
var rmCmd = &cobra.Command{
	Use:   "rm SUBMISSION_ID",
	Short: "Delete a submission tree and its stored files",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("DeleteSubmission")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.DeleteSubmission(args[0]); err != nil {
			return err
		}
		fmt.Printf("Deleted submission %s\n", args[0])
		return nil
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	keysCmd.AddCommand(keysInitCmd)

	dbCmd.AddCommand(dbMigrateCmd)
	dbCmd.AddCommand(dbStatusCmd)

	ingestCmd.Flags().String("policy", "keep", "Ignored-file policy: keep, delete or error")
	ingestCmd.Flags().String("ignore-file", "", "Ignore rules file (gitignore syntax)")
	ingestCmd.Flags().Bool("plain", false, "Store archives as plain files instead of extracting")

	for _, c := range []*cobra.Command{lsCmd, searchCmd, renameCmd, restoreCmd, exportCmd} {
		c.Flags().String("exclude", "", "Hide records with this ownership tag (student or teacher)")
	}
	lsCmd.Flags().String("start", "", "List from this file id instead of the root")
	renameCmd.Flags().String("parent", "", "Move under this directory id")

	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(keysCmd)
	rootCmd.AddCommand(dbCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(lsCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(statCmd)
	rootCmd.AddCommand(catCmd)
	rootCmd.AddCommand(renameCmd)
	rootCmd.AddCommand(chownCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(rmCmd)
}
