package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

func newUploadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upload <path>",
		Short: "Upload a file attachment to the backend",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			if err := a.client.Upload(cmd.Context(), filepath.Base(args[0]), f); err != nil {
				return err
			}
			fmt.Printf("uploaded %s\n", filepath.Base(args[0]))
			return nil
		},
	}
}

func newFilesCmd() *cobra.Command {
	var remove string

	cmd := &cobra.Command{
		Use:   "files",
		Short: "List or remove uploaded file attachments",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			if remove != "" {
				if err := a.client.DeleteFile(cmd.Context(), remove); err != nil {
					return err
				}
				fmt.Printf("removed %s\n", remove)
				return nil
			}

			files, err := a.client.ListFiles(cmd.Context())
			if err != nil {
				return err
			}
			for _, name := range files {
				fmt.Println(name)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&remove, "rm", "", "remove the named file instead of listing")
	return cmd
}
