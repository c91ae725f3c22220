package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/pechorka/quire/internal/config"
	"github.com/pechorka/quire/internal/service"
	"github.com/pechorka/quire/pkg/contenttype"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

var importCmd = &cobra.Command{
	Use:   "import <file|url>...",
	Short: "Import EPUB files or URLs into the library",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer func() { err = multierr.Append(err, a.Close()) }()

		for _, arg := range args {
			res, ierr := importOne(cmd, a, arg)
			if ierr != nil {
				a.log.Error("import failed", zap.String("source", arg), zap.Error(ierr))
				err = multierr.Append(err, errors.Wrap(ierr, arg))
				continue
			}
			for _, w := range res.Warnings {
				a.log.Warn(w, zap.String("source", arg))
			}
			state := "imported"
			if res.Duplicate {
				state = "already in library"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s by %s\t%s\n", res.Entry.BookID, state, res.Entry.Title, res.Entry.Author, arg)
		}
		return err
	},
}

func importOne(cmd *cobra.Command, a *app, source string) (service.Result, error) {
	if !contenttype.IsURL(source) {
		return a.svc.Import(cmd.Context(), source)
	}
	result, err := a.svc.ImportURL(cmd.Context(), source)
	if err != nil {
		return service.Result{}, err
	}
	select {
	case res := <-result:
		return res, res.Err
	case <-cmd.Context().Done():
		a.svc.CancelImport()
		return service.Result{}, cmd.Context().Err()
	}
}

var libraryCmd = &cobra.Command{
	Use:   "library",
	Short: "List imported books",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer func() { err = multierr.Append(err, a.Close()) }()

		books, err := a.svc.Library()
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tTITLE\tAUTHOR\tCHAPTERS\tPOSITION")
		for _, b := range books {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d:%d\n", b.BookID, b.Title, b.Author, b.SpineCount, b.CurrentChapter, b.CurrentPage)
		}
		return tw.Flush()
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	Long: `Print the effective configuration. With --default the configuration
template is printed instead, ready to be saved and edited.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			data []byte
			err  error
		)
		if def, _ := cmd.Flags().GetBool("default"); def {
			data, err = config.Prepare()
		} else {
			path, _ := cmd.Flags().GetString("config")
			var cfg *config.Config
			if cfg, err = config.LoadConfiguration(path); err == nil {
				data, err = config.Dump(cfg)
			}
		}
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

func init() {
	configCmd.Flags().Bool("default", false, "print the configuration template")
}
