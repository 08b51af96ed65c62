// cmd/vellum/main.go
package main

import (
	stderrors "errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"vellum/internal/config"
	"vellum/internal/errors"
	"vellum/internal/filestore"
	"vellum/internal/logging"
	shared "vellum/shared/types"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "vellum",
	Short: "Vellum is a versioned, path-addressed file store",
	Long: `Vellum stores files under plain paths and keeps every change as a
revision. Updates based on a stale revision are merged three ways, and
conflicting edits come back with conflict markers instead of silently
overwriting anyone's work.`,
}

func init() {
	var initBackend string
	var initCmd = &cobra.Command{
		Use:   "init",
		Short: "Initialize a new store in the current directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("getting current directory: %w", err)
			}

			cfg := config.Default()
			cfg.Backend = initBackend
			if err := filestore.Init(dir, cfg); err != nil {
				return fmt.Errorf("initializing store: %w", err)
			}

			fmt.Printf("Initialized empty %s store in %s\n", cfg.Backend, dir)
			return nil
		},
	}
	initCmd.Flags().StringVar(&initBackend, "backend", config.BackendCommit,
		"store backend: commit or workdir")

	var importAuthor, importMessage string
	var importCmd = &cobra.Command{
		Use:   "import <dir>",
		Short: "Import a directory tree as one revision",
		Long: `Imports every file under the given directory, keeping content byte
for byte. Dot-prefixed files and directories are skipped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := openStore()
			if err != nil {
				return err
			}
			defer b.Close()

			entries, err := collectEntries(args[0])
			if err != nil {
				return fmt.Errorf("reading import directory: %w", err)
			}
			if len(entries) == 0 {
				return fmt.Errorf("nothing to import under %s", args[0])
			}

			rev, err := b.Import(entries, importAuthor, importMessage)
			if err != nil {
				return fmt.Errorf("importing: %w", err)
			}

			fmt.Printf("Imported %d entries as revision %s\n", len(entries), shortRev(rev))
			return nil
		},
	}
	importCmd.Flags().StringVar(&importAuthor, "author", "anonymous", "author to record")
	importCmd.Flags().StringVar(&importMessage, "message", "", "change description")

	var getCmd = &cobra.Command{
		Use:   "get <path>",
		Short: "Print the current content of a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := openStore()
			if err != nil {
				return err
			}
			defer b.Close()

			f, err := b.GetFile(args[0])
			if err != nil {
				return err
			}
			if f == nil {
				return fmt.Errorf("no file at %s", args[0])
			}
			if f.IsDirectory() {
				return fmt.Errorf("%s is a directory (try \"vellum ls %s\")", args[0], args[0])
			}

			content, err := f.Content()
			if err != nil {
				return err
			}
			_, err = os.Stdout.Write(content)
			return err
		},
	}

	var putFile, putAuthor, putMessage, putParent string
	var putMatchEndings bool
	var putCmd = &cobra.Command{
		Use:   "put <path>",
		Short: "Write a file as a new revision",
		Long: `Writes content (from --file, or stdin) to the given path. With
--parent, the edit is merged against what changed since that revision;
conflicting edits fail and print the marked-up merge result.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var content []byte
			var err error
			if putFile != "" {
				content, err = os.ReadFile(putFile)
			} else {
				content, err = io.ReadAll(cmd.InOrStdin())
			}
			if err != nil {
				return fmt.Errorf("reading content: %w", err)
			}

			b, err := openStore()
			if err != nil {
				return err
			}
			defer b.Close()

			var opts []shared.UpdateOption
			if putMatchEndings {
				opts = append(opts, shared.WithMatchedLineEndings())
			}

			err = b.UpdateFile(args[0], content, putAuthor, shared.RevisionID(putParent), putMessage, opts...)
			var conflict *errors.UpdateConflictsError
			if stderrors.As(err, &conflict) {
				red := color.New(color.FgRed).SprintFunc()
				fmt.Printf("%s the file changed since revision %q; resolve the markers below and retry with --parent %s\n",
					red("conflict:"), putParent, conflict.BasisRev)
				printConflict(string(conflict.Content))
				return err
			}
			if err != nil {
				return err
			}

			head, err := b.Head()
			if err != nil {
				return err
			}
			fmt.Printf("Wrote %s as revision %s\n", args[0], shortRev(head))
			return nil
		},
	}
	putCmd.Flags().StringVar(&putFile, "file", "", "read content from this file instead of stdin")
	putCmd.Flags().StringVar(&putAuthor, "author", "anonymous", "author to record")
	putCmd.Flags().StringVar(&putMessage, "message", "", "change description")
	putCmd.Flags().StringVar(&putParent, "parent", "", "revision the edit is based on")
	putCmd.Flags().BoolVar(&putMatchEndings, "match-endings", false,
		"convert incoming line endings to the stored file's style")

	var lsCmd = &cobra.Command{
		Use:   "ls [path]",
		Short: "List a directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := ""
			if len(args) > 0 {
				p = args[0]
			}

			b, err := openStore()
			if err != nil {
				return err
			}
			defer b.Close()

			files, err := b.ListDirectory(p)
			if err != nil {
				return err
			}
			if files == nil {
				return fmt.Errorf("no directory at %s", p)
			}

			blue := color.New(color.FgBlue).SprintFunc()
			for _, f := range files {
				if f.IsDirectory() {
					fmt.Printf("%s/\n", blue(f.Name()))
					continue
				}
				fmt.Printf("%s\t%s\t%s\n", f.Name(), shortRev(f.LastModifiedRevision()), f.LastModifiedBy())
			}
			return nil
		},
	}

	var logLimit int
	var logCmd = &cobra.Command{
		Use:   "log [path]",
		Short: "Show revision history, newest first",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := ""
			if len(args) > 0 {
				p = args[0]
			}

			b, err := openStore()
			if err != nil {
				return err
			}
			defer b.Close()

			revisions, err := b.History(p, logLimit)
			if err != nil {
				return err
			}
			if len(revisions) == 0 {
				fmt.Println("No revisions")
				return nil
			}

			yellow := color.New(color.FgYellow).SprintFunc()
			for _, r := range revisions {
				fmt.Printf("%s  %s  %s\n", yellow(shortRev(r.ID)), r.Time.Local().Format("2006-01-02 15:04"), r.Author)
				fmt.Printf("    %s\n", r.Message)
			}
			return nil
		},
	}
	logCmd.Flags().IntVar(&logLimit, "limit", 0, "cap the number of revisions shown")

	var diffCmd = &cobra.Command{
		Use:   "diff <path> <revision> <revision>",
		Short: "Show what changed in a file between two revisions",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := openStore()
			if err != nil {
				return err
			}
			defer b.Close()

			d, err := b.DiffRevisions(args[0], shared.RevisionID(args[1]), shared.RevisionID(args[2]))
			if err != nil {
				return err
			}

			printColoredDiff(d)
			return nil
		},
	}

	var headCmd = &cobra.Command{
		Use:   "head",
		Short: "Print the current head revision",
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := openStore()
			if err != nil {
				return err
			}
			defer b.Close()

			head, err := b.Head()
			if err != nil {
				return err
			}
			if head == "" {
				fmt.Println("Empty store, no revisions yet")
				return nil
			}
			fmt.Println(head)
			return nil
		},
	}

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(putCmd)
	rootCmd.AddCommand(lsCmd)
	rootCmd.AddCommand(logCmd)
	rootCmd.AddCommand(diffCmd)
	rootCmd.AddCommand(headCmd)
}

// openStore locates the store root from the current directory and opens
// the backend it was initialized with.
func openStore() (filestore.Backend, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting current directory: %w", err)
	}

	root, err := filestore.FindRoot(cwd)
	if err != nil {
		return nil, fmt.Errorf("not inside a vellum store (run \"vellum init\" first): %w", err)
	}

	cfg, err := config.Load(config.Path(root))
	if err != nil {
		return nil, fmt.Errorf("loading store config: %w", err)
	}
	logger, err := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}

	return filestore.Open(root, logger)
}

// collectEntries walks dir and builds import entries for everything in
// it, skipping dot-prefixed names.
func collectEntries(dir string) ([]shared.ImportEntry, error) {
	var entries []shared.ImportEntry
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == dir {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}

		entry := shared.ImportEntry{Path: filepath.ToSlash(rel), Dir: d.IsDir()}
		if !d.IsDir() {
			entry.Content, err = os.ReadFile(path)
			if err != nil {
				return err
			}
		}
		entries = append(entries, entry)
		return nil
	})
	return entries, err
}

func shortRev(rev shared.RevisionID) string {
	if len(rev) > 12 {
		return string(rev[:12])
	}
	return string(rev)
}

func printConflict(content string) {
	marker := color.New(color.FgRed)

	for _, line := range strings.Split(content, "\n") {
		switch {
		case strings.HasPrefix(line, "<<<<<<<"),
			strings.HasPrefix(line, "======="),
			strings.HasPrefix(line, ">>>>>>>"):
			marker.Println(line)
		default:
			fmt.Println(line)
		}
	}
}

func printColoredDiff(diff string) {
	added := color.New(color.FgGreen)
	removed := color.New(color.FgRed)
	header := color.New(color.FgCyan)

	for _, line := range strings.Split(diff, "\n") {
		switch {
		case strings.HasPrefix(line, "---"), strings.HasPrefix(line, "+++"):
			header.Println(line)
		case strings.HasPrefix(line, "+"):
			added.Println(line)
		case strings.HasPrefix(line, "-"):
			removed.Println(line)
		default:
			fmt.Println(line)
		}
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
