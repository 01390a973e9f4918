package cmd

import (
	"errors"
	"io/fs"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/hiring-pipeline/internal/store"
	"github.com/spigell/hiring-pipeline/internal/tables"
	"github.com/spigell/hiring-pipeline/internal/tables/xlsxfile"
)

var exportCmd = &cobra.Command{
	Use:   "export FILE.xlsx",
	Short: "Copy every pipeline table into an xlsx workbook",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		e := bootstrap(ctx)
		defer e.Close()

		overwrite, _ := cmd.Flags().GetBool("force")

		wb, err := xlsxfile.New(args[0], e.logger)
		if err != nil {
			e.logger.Fatal("opening workbook", zap.Error(err))
		}

		// Copy appends, so the snapshot always starts from an empty workbook.
		if _, err := os.Stat(wb.Path()); err == nil {
			if !overwrite {
				e.logger.Fatal("workbook already exists", zap.String("filename", wb.Path()), zap.String("hint", "use --force to overwrite it"))
			}
			if err := os.Remove(wb.Path()); err != nil {
				e.logger.Fatal("removing workbook", zap.Error(err))
			}
		} else if !errors.Is(err, fs.ErrNotExist) {
			e.logger.Fatal("checking workbook", zap.Error(err))
		}

		if _, err := wb.Provision(ctx, store.Schemas()); err != nil {
			e.logger.Fatal("creating workbook tables", zap.Error(err))
		}

		counts, err := tables.Copy(ctx, e.transport, wb, store.Schemas())
		if err != nil {
			e.logger.Fatal("exporting tables", zap.Any("copied", counts), zap.Error(err))
		}

		e.logger.Info("tables exported", zap.String("filename", wb.Path()), zap.Any("rows", counts))
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().BoolP("force", "f", false, "overwrite an existing workbook")
}
