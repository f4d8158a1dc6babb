package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/kjk/entitystore/backup"
	"github.com/kjk/entitystore/entitylog"
	"github.com/kjk/entitystore/log"

	"github.com/spf13/cobra"
	"github.com/tidwall/pretty"
)

type rootOptions struct {
	Verbose bool
	LogDir  string
}

// records are kept as raw JSON so that files of any entity type
// can be inspected and converted without losing fields or precision
func openLog(path string) (*entitylog.Log[json.RawMessage], error) {
	l := entitylog.New[json.RawMessage](path)
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	if err := l.LoadFromFile(); err != nil {
		return nil, err
	}
	return l, nil
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "entitylog",
		Short:         "Inspect and convert entity snapshot files",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			log.Verbose = opts.Verbose
			// stdout is for command output
			log.Out = cmd.ErrOrStderr()
			if opts.LogDir != "" {
				log.Init(&log.Config{Dir: opts.LogDir})
			} else {
				log.Close()
			}
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			log.Close()
		},
	}
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.LogDir, "log-dir", "", "directory for log files")

	cmd.AddCommand(newDumpCommand())
	cmd.AddCommand(newConvertCommand())
	cmd.AddCommand(newCountCommand())
	cmd.AddCommand(newPushCommand(backup.ConfigFromEnv))
	cmd.AddCommand(newPullCommand(backup.ConfigFromEnv))
	return cmd
}

func newDumpCommand() *cobra.Command {
	var asTOON bool
	cmd := &cobra.Command{
		Use:   "dump <file>",
		Short: "Print records as indented JSON or TOON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := openLog(args[0])
			if err != nil {
				return err
			}
			if asTOON {
				return l.WriteTOON(cmd.OutOrStdout())
			}
			d, err := json.Marshal(l.GetAll())
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(pretty.Pretty(d))
			return err
		},
	}
	cmd.Flags().BoolVar(&asTOON, "toon", false, "print in TOON format")
	return cmd
}

func newConvertCommand() *cobra.Command {
	var prettyJSON bool
	cmd := &cobra.Command{
		Use:   "convert <src> <dst>",
		Short: "Re-save records to dst, compression is picked from dst extension",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := openLog(args[0])
			if err != nil {
				return err
			}
			dst := entitylog.New[json.RawMessage](args[1])
			dst.Pretty = prettyJSON
			dst.AddAll(src.GetAll()...)
			if err = dst.SaveToFile(); err != nil {
				return err
			}
			log.Verbosef("converted %d records from '%s' to '%s'\n", dst.Len(), args[0], args[1])
			return nil
		},
	}
	cmd.Flags().BoolVar(&prettyJSON, "pretty", false, "save indented JSON")
	return cmd
}

func newCountCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "count <file>",
		Short: "Print number of records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := openLog(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d\n", l.Len())
			return nil
		},
	}
}

func newPushCommand(getConfig func() *backup.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "push <file>",
		Short: "Upload file to S3 storage configured with ENTITYLOG_S3_* env variables",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// only upload files we can read back
			if _, err := openLog(args[0]); err != nil {
				return err
			}
			c, err := backup.New(getConfig())
			if err != nil {
				return err
			}
			info, err := c.Push(args[0])
			if err != nil {
				return err
			}
			log.Verbosef("uploaded '%s' as '%s', %d bytes\n", args[0], info.Key, info.Size)
			return nil
		},
	}
}

func newPullCommand(getConfig func() *backup.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "pull <file>",
		Short: "Download file from S3 storage configured with ENTITYLOG_S3_* env variables",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := backup.New(getConfig())
			if err != nil {
				return err
			}
			return pullValidated(c, args[0])
		},
	}
}

// pullValidated downloads next to path and replaces path only if
// the downloaded file loads
func pullValidated(c *backup.Client, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	tmpDir, err := os.MkdirTemp(dir, ".pull-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmpDir)

	// same name so that compression is picked from the same extension
	tmpPath := filepath.Join(tmpDir, filepath.Base(path))
	if err = c.PullTo(path, tmpPath); err != nil {
		return err
	}
	l, err := openLog(tmpPath)
	if err != nil {
		return fmt.Errorf("downloaded '%s' is not valid, '%s' not changed: %w", c.RemotePath(path), path, err)
	}
	if st, err := os.Stat(path); err == nil {
		_ = os.Chmod(tmpPath, st.Mode().Perm())
	}
	if err = os.Rename(tmpPath, path); err != nil {
		return err
	}
	log.Verbosef("downloaded '%s', %d records\n", path, l.Len())
	return nil
}

func run(args []string, stdout io.Writer, stderr io.Writer) int {
	cmd := newRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	err := cmd.Execute()
	// log.Out is only set once a command runs
	log.Out = stderr
	failed := log.IfErrf(err, "error: %s", err)
	log.Close()
	if failed {
		return 1
	}
	return 0
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}
