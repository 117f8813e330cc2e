// Package cmd implements the ilfs command line on top of
// github.com/spf13/cobra: mount (the default action), -u to unmount, and
// -i to run initializers without mounting.
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/agentic-research/ilfs/internal/errs"
	"github.com/agentic-research/ilfs/internal/session"
	"github.com/spf13/cobra"
)

var (
	readOnly   bool
	initOnly   bool
	optStrings []string
	treeFile   string
	pathFile   string
	unmountArg string
	verbose    bool
)

func init() {
	rootCmd.Flags().BoolVarP(&readOnly, "ro", "r", false, "shorthand for -o ro")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print each bind mount as it is issued")
	rootCmd.Flags().BoolVarP(&initOnly, "init-only", "i", false, "run initializers only, do not mount")
	rootCmd.Flags().StringArrayVarP(&optStrings, "opt", "o", nil, "global option string (repeatable, comma-separated name[=value] items)")
	rootCmd.Flags().StringVar(&treeFile, "treefile", "", "path to the trees table")
	rootCmd.Flags().StringVar(&pathFile, "pathfile", "", "path to the paths table")
	rootCmd.Flags().StringVarP(&unmountArg, "unmount", "u", "", "unmount TARGET instead of mounting")
}

var rootCmd = &cobra.Command{
	Use:   "ilfs [-r] [-i] [-o OPTSTR]... --treefile PATH --pathfile PATH TARGET",
	Short: "Compose a bind-mounted directory tree from a trees/paths configuration",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if unmountArg != "" {
			return runUnmount(unmountArg)
		}
		if len(args) != 1 {
			return errs.New(errs.KindUsage, "", "TARGET is required")
		}
		return runMount(args[0])
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func runUnmount(target string) error {
	sess, err := session.New(target, "")
	if err != nil {
		return err
	}
	return sess.Unmount()
}

func runMount(target string) error {
	if treeFile == "" || pathFile == "" {
		return errs.New(errs.KindUsage, "", "--treefile and --pathfile are required")
	}

	globalOptstr := buildGlobalOptstr()
	sess, err := session.New(target, globalOptstr)
	if err != nil {
		return err
	}
	sess.Verbose = verbose

	treeData, err := os.ReadFile(treeFile)
	if err != nil {
		return errs.Wrap(errs.KindUsage, treeFile, err)
	}
	pathData, err := os.ReadFile(pathFile)
	if err != nil {
		return errs.Wrap(errs.KindUsage, pathFile, err)
	}

	if err := sess.Configure(treeData, pathData); err != nil {
		return err
	}

	if initOnly {
		return sess.InitOnly()
	}
	return sess.Mount()
}

// buildGlobalOptstr concatenates every -o value (and -r's "ro" shorthand)
// into one comma-separated option string for the global scope.
func buildGlobalOptstr() string {
	items := make([]string, 0, len(optStrings)+1)
	if readOnly {
		items = append(items, "ro")
	}
	items = append(items, optStrings...)
	return strings.Join(items, ",")
}

// Execute runs the root command and maps any error to its CLI exit code.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		kind, ok := errs.KindOf(err)
		if !ok {
			os.Exit(1)
		}
		os.Exit(errs.ExitCode(kind))
	}
}
