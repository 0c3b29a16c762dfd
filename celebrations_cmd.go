package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"church-portal/internal/config"
	"church-portal/internal/db"
	"church-portal/internal/digest"
	"church-portal/internal/logging"
	"church-portal/internal/repositories"
)

func celebrationsCmd(configPath *string) *cobra.Command {
	var (
		date         string
		templatePath string
	)

	cmd := &cobra.Command{
		Use:   "celebrations",
		Short: "Print the weekly celebration digest",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			week, err := cfg.WeekConfig()
			if err != nil {
				return err
			}

			ref := time.Now().In(week.Location)
			if date != "" {
				if ref, err = time.ParseInLocation("2006-01-02", date, week.Location); err != nil {
					return fmt.Errorf("--date must be YYYY-MM-DD: %w", err)
				}
			}

			renderer, err := digest.LoadRenderer(templatePath)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			client, err := db.ConnectMongo(ctx, cfg.Mongo.URI)
			if err != nil {
				return err
			}
			defer client.Disconnect(context.Background())

			log := logging.Setup(cfg.Env, cfg.LogLevel)
			directory := repositories.NewDirectoryRepo(client, cfg.Mongo.Database)
			svc, err := digest.NewService(directory, directory, week, renderer, log)
			if err != nil {
				return err
			}

			text, err := svc.Render(ctx, ref)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), text)
			return nil
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "Reference date (YYYY-MM-DD), default today")
	cmd.Flags().StringVar(&templatePath, "template", "", "Liquid template file overriding the built-in digest")
	return cmd
}
