package cmd

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/emrgen/qda/internal/config"
	"github.com/emrgen/qda/internal/model"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "db commands",
}

func init() {
	dbCmd.AddCommand(migrateCmd())
}

func migrateCmd() *cobra.Command {
	command := &cobra.Command{
		Use:   "migrate",
		Short: "Migrate the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig()
			cfg.SetupLogger()

			db, err := config.GetDb(cfg)
			if err != nil {
				return err
			}
			if err := model.Migrate(db); err != nil {
				return err
			}

			logrus.Infof("migrated %s database", cfg.DB.Driver)
			return nil
		},
	}

	return command
}
