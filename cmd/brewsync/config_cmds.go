package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/brewlog/brewsync/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and change brewsync settings",
	}
	cmd.AddCommand(newConfigShowCmd(), newConfigSetCmd())
	return cmd
}

func configPath() (string, error) {
	if flagConfig != "" {
		return flagConfig, nil
	}
	return config.Path()
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the active configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configPath()
			if err != nil {
				return err
			}
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}

			fmt.Printf("config file:           %s\n", path)
			fmt.Printf("api.base_url:          %s\n", cfg.API.BaseURL)
			fmt.Printf("api.ws_url:            %s\n", cfg.API.WSURL)
			fmt.Printf("probe.url:             %s\n", cfg.Probe.URL)
			fmt.Printf("probe.network_interval: %s\n", cfg.NetworkInterval())
			fmt.Printf("probe.server_interval:  %s\n", cfg.ServerInterval())
			fmt.Printf("storage.data_dir:      %s\n", cfg.Storage.DataDir)
			return nil
		},
	}
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration key and save the file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configPath()
			if err != nil {
				return err
			}
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}

			key, value := args[0], args[1]
			switch key {
			case "api.base_url":
				cfg.API.BaseURL = value
			case "api.ws_url":
				cfg.API.WSURL = value
			case "probe.url":
				cfg.Probe.URL = value
			case "probe.network_interval_sec":
				n, err := strconv.Atoi(value)
				if err != nil {
					return fmt.Errorf("invalid interval %q", value)
				}
				cfg.Probe.NetworkIntervalSec = n
			case "probe.server_interval_sec":
				n, err := strconv.Atoi(value)
				if err != nil {
					return fmt.Errorf("invalid interval %q", value)
				}
				cfg.Probe.ServerIntervalSec = n
			case "storage.data_dir":
				cfg.Storage.DataDir = value
			default:
				return fmt.Errorf("unknown config key %q", key)
			}

			if err := cfg.Save(path); err != nil {
				return err
			}
			fmt.Printf("%s = %s\n", key, value)
			return nil
		},
	}
}
